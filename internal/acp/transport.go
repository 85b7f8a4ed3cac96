package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// Serve runs the dispatch loop: one JSON request per input line, one JSON
// response per output line. Notifications (requests with no id) never
// produce a response line, matching JSON-RPC semantics.
func Serve(ctx context.Context, in io.Reader, out io.Writer, disp *Dispatcher) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytesTrim(line)) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			writeLine(w, errorResponse(nil, -32700, "invalid JSON-RPC request"))
			continue
		}
		if req.Method == "" {
			writeLine(w, errorResponse(req.ID, -32600, "method is required"))
			continue
		}

		resp := disp.dispatch(ctx, req)
		if req.ID == nil {
			continue
		}
		writeLine(w, resp)
	}
	return scanner.Err()
}

func writeLine(w *bufio.Writer, resp response) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
	_ = w.Flush()
}

func bytesTrim(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
