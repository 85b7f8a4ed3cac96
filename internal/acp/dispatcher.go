package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentation/broker/internal/store"
)

// Dispatcher answers JSON-RPC-shaped requests over the fixed tool catalog
// by translating each call into HTTP requests against the co-hosted
// surface.
type Dispatcher struct {
	http *httpClient
}

// NewDispatcher builds a Dispatcher that calls httpBase (e.g.
// http://127.0.0.1:4590) using apiKey when non-empty.
func NewDispatcher(httpBase, apiKey string) *Dispatcher {
	return &Dispatcher{http: newHTTPClient(httpBase, apiKey)}
}

func (d *Dispatcher) dispatch(ctx context.Context, req request) response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]any{"name": "agentation", "version": "0.1.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": toolCatalog})
	case "tools/call":
		result, err := d.handleToolCall(ctx, req.Params)
		if err != nil {
			return errorResponse(req.ID, -32000, err.Error())
		}
		return resultResponse(req.ID, result)
	default:
		return errorResponse(req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (d *Dispatcher) handleToolCall(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	var call toolCallParams
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	fn, ok := toolHandlers[call.Name]
	if !ok {
		return toolErrorResult(fmt.Sprintf("unknown tool: %s", call.Name)), nil
	}
	result, err := fn(ctx, d.http, call.Arguments)
	if err != nil {
		return toolErrorResult(err.Error()), nil
	}
	return toolSuccessResult(result), nil
}

type toolFunc func(ctx context.Context, c *httpClient, args json.RawMessage) (any, error)

var toolHandlers = map[string]toolFunc{
	"list_sessions":     toolListSessions,
	"get_session":       toolGetSession,
	"get_pending":       toolGetPending,
	"get_all_pending":   toolGetAllPending,
	"acknowledge":       toolAcknowledge,
	"resolve":           toolResolve,
	"dismiss":           toolDismiss,
	"reply":             toolReply,
	"watch_annotations": toolWatchAnnotations,
}

func toolListSessions(ctx context.Context, c *httpClient, _ json.RawMessage) (any, error) {
	var out []store.Session
	if err := c.do(ctx, "GET", "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type sessionIDArgs struct {
	SessionID string `json:"sessionId"`
}

func toolGetSession(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args sessionIDArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.SessionID == "" {
		return nil, fmt.Errorf("get_session requires sessionId")
	}
	var out store.SessionDetail
	if err := c.do(ctx, "GET", "/sessions/"+args.SessionID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toolGetPending(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args sessionIDArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.SessionID == "" {
		return nil, fmt.Errorf("get_pending requires sessionId")
	}
	var out struct {
		Annotations []store.Annotation `json:"annotations"`
	}
	if err := c.do(ctx, "GET", "/sessions/"+args.SessionID+"/pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

func toolGetAllPending(ctx context.Context, c *httpClient, _ json.RawMessage) (any, error) {
	var out struct {
		Annotations []store.Annotation `json:"annotations"`
	}
	if err := c.do(ctx, "GET", "/pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

func toolAcknowledge(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args struct {
		AnnotationID string `json:"annotationId"`
	}
	if err := json.Unmarshal(raw, &args); err != nil || args.AnnotationID == "" {
		return nil, fmt.Errorf("annotationId is required")
	}
	var out store.Annotation
	body := map[string]any{"status": store.StatusAcknowledged}
	if err := c.do(ctx, "PATCH", "/annotations/"+args.AnnotationID, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toolResolve(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args struct {
		AnnotationID string `json:"annotationId"`
		Summary      string `json:"summary"`
		ResolvedBy   string `json:"resolvedBy"`
	}
	if err := json.Unmarshal(raw, &args); err != nil || args.AnnotationID == "" {
		return nil, fmt.Errorf("annotationId is required")
	}
	resolvedBy := store.ResolverKind(args.ResolvedBy)
	if resolvedBy == "" {
		resolvedBy = store.ResolverAgent
	}

	var out store.Annotation
	body := map[string]any{"status": store.StatusResolved, "resolvedBy": resolvedBy}
	if err := c.do(ctx, "PATCH", "/annotations/"+args.AnnotationID, body, &out); err != nil {
		return nil, err
	}
	if args.Summary != "" {
		return appendThreadMessage(ctx, c, args.AnnotationID, "Resolved: "+args.Summary)
	}
	return out, nil
}

func toolDismiss(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args struct {
		AnnotationID string `json:"annotationId"`
		Reason       string `json:"reason"`
		ResolvedBy   string `json:"resolvedBy"`
	}
	if err := json.Unmarshal(raw, &args); err != nil || args.AnnotationID == "" {
		return nil, fmt.Errorf("annotationId is required")
	}
	if args.Reason == "" {
		return nil, fmt.Errorf("reason is required")
	}
	resolvedBy := store.ResolverKind(args.ResolvedBy)
	if resolvedBy == "" {
		resolvedBy = store.ResolverAgent
	}

	var out store.Annotation
	body := map[string]any{"status": store.StatusDismissed, "resolvedBy": resolvedBy}
	if err := c.do(ctx, "PATCH", "/annotations/"+args.AnnotationID, body, &out); err != nil {
		return nil, err
	}
	return appendThreadMessage(ctx, c, args.AnnotationID, "Dismissed: "+args.Reason)
}

func appendThreadMessage(ctx context.Context, c *httpClient, annotationID, content string) (any, error) {
	var out store.Annotation
	body := map[string]any{"role": store.RoleAgent, "content": content}
	if err := c.do(ctx, "POST", "/annotations/"+annotationID+"/thread", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type replyArgs struct {
	AnnotationID string `json:"annotationId"`
	Content      string `json:"content"`
}

func toolReply(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args replyArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.AnnotationID == "" || args.Content == "" {
		return nil, fmt.Errorf("reply requires annotationId and content")
	}
	var out store.Annotation
	body := map[string]any{"role": store.RoleAgent, "content": args.Content}
	if err := c.do(ctx, "POST", "/annotations/"+args.AnnotationID+"/thread", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

const (
	watchDefaultTimeout = 30 * time.Second
	watchPollInterval   = 500 * time.Millisecond
)

// toolWatchAnnotations blocks until one or more pending annotations appear
// that were not already pending when the call started (any session), then
// returns that batch. If none appear before the timeout it returns an
// empty batch. The ACP transport has no long-lived event channel of its
// own, so this is implemented by polling the HTTP surface's /pending
// endpoint rather than subscribing to the event bus directly.
func toolWatchAnnotations(ctx context.Context, c *httpClient, raw json.RawMessage) (any, error) {
	var args struct {
		Timeout int `json:"timeout"`
	}
	_ = json.Unmarshal(raw, &args)
	timeout := watchDefaultTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}

	baseline, err := fetchPendingIDs(ctx, c)
	if err != nil {
		return nil, err
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.Done():
			return []store.Annotation{}, nil
		case <-ticker.C:
			current, err := fetchPendingAnnotations(ctx, c)
			if err != nil {
				return nil, err
			}
			fresh := make([]store.Annotation, 0)
			for _, ann := range current {
				if !baseline[ann.ID] {
					fresh = append(fresh, ann)
				}
			}
			if len(fresh) > 0 {
				return fresh, nil
			}
		}
	}
}

func fetchPendingAnnotations(ctx context.Context, c *httpClient) ([]store.Annotation, error) {
	var out struct {
		Annotations []store.Annotation `json:"annotations"`
	}
	if err := c.do(ctx, "GET", "/pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

func fetchPendingIDs(ctx context.Context, c *httpClient) (map[string]bool, error) {
	anns, err := fetchPendingAnnotations(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(anns))
	for _, ann := range anns {
		ids[ann.ID] = true
	}
	return ids, nil
}
