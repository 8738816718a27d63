package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Handler processes incoming A2A calls for one agent.
type Handler interface {
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)
}

// Server exposes a Handler over HTTP.
type Server struct {
	card    AgentCard
	handler Handler
}

// NewServer creates a server for the agent described by card.
func NewServer(card AgentCard, handler Handler) *Server {
	return &Server{card: card, handler: handler}
}

// Handler returns the HTTP routes: the agent card and the JSON-RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("a2a: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, ErrCodeParse, "parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeRPCError(w, req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
		return
	}

	var (
		result *Task
		err    error
	)
	switch req.Method {
	case MethodSendMessage:
		var params SendMessageRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
			return
		}
		result, err = s.handler.HandleSendMessage(r.Context(), params)
	case MethodGetTask:
		var params GetTaskRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
			return
		}
		result, err = s.handler.HandleGetTask(r.Context(), params)
	default:
		writeRPCError(w, req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	switch {
	case errors.Is(err, ErrTaskNotFound):
		writeRPCError(w, req.ID, ErrCodeTaskNotFound, err.Error())
	case err != nil && result == nil:
		writeRPCError(w, req.ID, ErrCodeInternal, err.Error())
	default:
		// A failed task is still a result; its status carries the error.
		writeRPCResult(w, req.ID, result)
	}
}

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, ErrCodeInternal, "marshal result: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data})
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
