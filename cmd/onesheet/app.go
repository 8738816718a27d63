package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dusk-indust/onesheet/internal/agent"
	"github.com/dusk-indust/onesheet/internal/config"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
	"github.com/dusk-indust/onesheet/internal/provider"
	"github.com/dusk-indust/onesheet/internal/research"
	"github.com/dusk-indust/onesheet/internal/store"
)

// app holds what every command needs once flags and onesheet.yml have been
// merged. Flags win over the config file.
type app struct {
	cfg    *config.ProjectConfig
	flags  cliFlags
	logger *slog.Logger
	store  store.Store
	stdout io.Writer
	stderr io.Writer
}

func newApp(flags cliFlags, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flags.ProjectRoot)
	if err != nil {
		return nil, err
	}
	if flags.StorePath != "" {
		cfg.StorePath = flags.StorePath
	} else if cfg.StorePath != "" && !filepath.IsAbs(cfg.StorePath) {
		cfg.StorePath = filepath.Join(flags.ProjectRoot, cfg.StorePath)
	}
	if flags.Agent != "" {
		cfg.AgentEndpoint = flags.Agent
	}
	if flags.Model != "" {
		cfg.Model = flags.Model
	}
	cfg.Verbose = cfg.Verbose || flags.Verbose

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	logger.Debug("onesheet: store opened", "path", cfg.StorePath)

	return &app{cfg: cfg, flags: flags, logger: logger, store: st, stdout: stdout, stderr: stderr}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) researchDir() string {
	if a.flags.ResearchDir != "" {
		return a.flags.ResearchDir
	}
	return filepath.Join(a.flags.ProjectRoot, "research")
}

// provider returns the remote agent when an endpoint is configured and the
// in-process draft agent otherwise.
func (a *app) provider() provider.Provider {
	if a.cfg.AgentEndpoint != "" {
		a.logger.Debug("onesheet: using remote agent", "endpoint", a.cfg.AgentEndpoint)
		return provider.NewA2AProvider(nil, a.cfg.AgentEndpoint)
	}
	return agent.NewDraftAgent(version)
}

func (a *app) orchestrator(sources research.Sources, observer func(orchestrator.ProgressEvent)) *orchestrator.Orchestrator {
	return orchestrator.New(sources, a.provider(), a.store, orchestrator.Config{
		StageTimeout: time.Duration(a.cfg.StageTimeout),
		Logger:       a.logger,
		Observer:     observer,
	})
}

// withDefaults fills the model id and context flags of req from the config
// when the request left them out.
func (a *app) withDefaults(req orchestrator.GenerationRequest, hasFlags bool) orchestrator.GenerationRequest {
	if req.ModelID == "" {
		req.ModelID = a.cfg.Model
	}
	if !hasFlags && a.cfg.ContextFlags != nil {
		req.ContextFlags = *a.cfg.ContextFlags
	}
	return req
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}
