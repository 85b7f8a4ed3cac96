// Package acp implements the Agent Control Protocol dispatcher: a
// line-delimited JSON request/response loop over stdio exposing a fixed
// tool catalog, each tool translating to one or more calls against the
// co-hosted HTTP surface. The request/response envelope and dispatch
// structure is grounded on the teacher pack's codex-orchestrator MCP
// server (cmd/codex-orchestrator/main.go); the framing departs from its
// Content-Length-prefixed transport in favor of one JSON object per line.
package acp

import "encoding/json"

const protocolVersion = "2024-11-05"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func errorResponse(id any, code int, message string) response {
	return response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func resultResponse(id any, result any) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

func toolSuccessResult(result any) map[string]any {
	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		text = []byte(`"` + err.Error() + `"`)
	}
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"structuredContent": result,
		"isError":           false,
	}
}

func toolErrorResult(message string) map[string]any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": message},
		},
		"isError": true,
	}
}
