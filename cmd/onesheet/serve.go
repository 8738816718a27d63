package main

import (
	"context"
	"flag"

	"github.com/dusk-indust/onesheet/internal/agent"
	"github.com/dusk-indust/onesheet/internal/httpapi"
	"github.com/dusk-indust/onesheet/internal/mcptools"
	"github.com/dusk-indust/onesheet/internal/research"
)

const defaultAddr = "127.0.0.1:8080"

func (a *app) listenAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if a.cfg.ListenAddr != "" {
		return a.cfg.ListenAddr
	}
	return defaultAddr
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", "", "listen address (overrides listenAddr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sources, err := research.LoadDir(a.researchDir())
	if err != nil {
		return err
	}
	srv := httpapi.New(a.orchestrator(sources, nil), a.store, httpapi.WithLogger(a.logger))
	a.logger.Info("onesheet: serving HTTP API", "addr", a.listenAddr(*addr))
	return srv.ListenAndServe(ctx, a.listenAddr(*addr))
}

func (a *app) runServeMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	httpAddr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sources, err := research.LoadDir(a.researchDir())
	if err != nil {
		return err
	}
	server := mcptools.NewMCPServer(mcptools.NewService(ctx, a.orchestrator(sources, nil), a.store))
	if *httpAddr != "" {
		a.logger.Info("onesheet: serving MCP over HTTP", "addr", *httpAddr)
		return mcptools.RunHTTP(ctx, server, *httpAddr)
	}
	return mcptools.RunStdio(ctx, server)
}

func (a *app) runServeAgent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-agent", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", "", "listen address (overrides listenAddr)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ag := agent.NewDraftAgent(version)
	a.logger.Info("onesheet: serving draft agent", "addr", a.listenAddr(*addr), "agent", ag.Card().Name)
	return ag.ListenAndServe(ctx, a.listenAddr(*addr))
}
