package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the OneSheet tools registered.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "onesheet",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_generation",
		Description: "Generate a OneSheet for a target: concepts, iterations, hooks, visuals and best practices. Returns a run id, or the per-stage outcome when wait is set.",
	}, svc.RunGeneration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run",
		Description: "Get the per-stage progress of a generation run.",
	}, svc.GetRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_onesheet",
		Description: "Load the persisted OneSheet for a target.",
	}, svc.LoadOneSheet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hooks_for_concept",
		Description: "List the visual and audio hooks of a OneSheet that are linked to a concept.",
	}, svc.HooksForConcept)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_onesheets",
		Description: "List the targets that have a persisted OneSheet.",
	}, svc.ListOneSheets)

	return server
}

// RunStdio serves on stdio until stdin is closed or ctx is canceled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP tools over streamable HTTP at addr.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
