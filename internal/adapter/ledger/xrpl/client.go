// Package xrpl implements ledger.Gateway against a rippled node over
// JSON-RPC (queries, sign-and-submit) and WebSocket (payment stream).
package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponse bounds a single JSON-RPC response body.
const maxResponse = 8 << 20

// RPCError is an error result returned by rippled.
type RPCError struct {
	Method  string
	Code    string `json:"error"`
	Message string `json:"error_message"`
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xrpl: %s: %s (%s)", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("xrpl: %s: %s", e.Method, e.Code)
}

type rpcClient struct {
	url  string
	http *http.Client
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status  string `json:"status"`
	Code    string `json:"error"`
	Message string `json:"error_message"`
}

// call posts one JSON-RPC request and decodes result into out.
func (c *rpcClient) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return fmt.Errorf("xrpl: encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("xrpl: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("xrpl: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return fmt.Errorf("xrpl: read %s: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("xrpl: %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env rpcEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("xrpl: decode %s: %w", method, err)
	}
	var st rpcStatus
	if err := json.Unmarshal(env.Result, &st); err != nil {
		return fmt.Errorf("xrpl: decode %s status: %w", method, err)
	}
	if st.Status == "error" || st.Code != "" {
		return &RPCError{Method: method, Code: st.Code, Message: st.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("xrpl: decode %s result: %w", method, err)
	}
	return nil
}
