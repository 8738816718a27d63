package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client sends work to remote agents.
type Client interface {
	// SendMessage sends a message and returns the resulting task. With
	// Configuration.Blocking set the agent replies once the task is terminal.
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)

	// GetTask fetches a task by id.
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)

	// DiscoverAgent fetches the agent card below baseURL.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}

var _ Client = (*HTTPClient)(nil)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	http *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient returns a client with a 2 minute default timeout.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{http: &http.Client{Timeout: 2 * time.Minute}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage calls message/send.
func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodSendMessage, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask calls tasks/get.
func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodGetTask, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DiscoverAgent fetches /.well-known/agent-card.json.
func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + "/.well-known/agent-card.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	body, err := c.do(httpReq, "discover agent")
	if err != nil {
		return nil, err
	}
	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("a2a: marshal params: %w", err)
	}
	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      NewID(),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("a2a: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("a2a: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	respBody, err := c.do(httpReq, method)
	if err != nil {
		return err
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("a2a: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("a2a: decode result: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("a2a: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("a2a: %s: HTTP %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
