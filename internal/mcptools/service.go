package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
	"github.com/dusk-indust/onesheet/internal/store"
)

// Runner is the subset of *orchestrator.Orchestrator the tools use.
type Runner interface {
	Run(ctx context.Context, req orchestrator.GenerationRequest) (*orchestrator.Result, error)
	Start(ctx context.Context, req orchestrator.GenerationRequest) (string, error)
	Snapshot(runID string) (orchestrator.RunStatus, error)
}

// Reader is the subset of store.Store the tools use.
type Reader interface {
	Load(ctx context.Context, targetID string) (creative.AggregateResult, error)
	HooksForConcept(ctx context.Context, targetID, conceptID string) ([]store.ConceptHook, error)
	Targets(ctx context.Context) ([]string, error)
}

// Service handles MCP tool calls against an orchestrator and a store.
type Service struct {
	runner Runner
	reader Reader
	// runCtx bounds runs started without waiting.
	runCtx context.Context
}

// NewService creates a Service. Background runs live until ctx is canceled.
func NewService(ctx context.Context, runner Runner, reader Reader) *Service {
	return &Service{runner: runner, reader: reader, runCtx: ctx}
}

// RunGeneration starts a run, or runs it to completion when input.Wait is
// set.
func (s *Service) RunGeneration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunGenerationInput,
) (*mcp.CallToolResult, RunGenerationOutput, error) {
	req := orchestrator.GenerationRequest{
		TargetID:           input.TargetID,
		ModelID:            input.ModelID,
		EvidenceSelection:  input.EvidenceSelection,
		IterationSelection: input.IterationSelection,
	}
	if input.ContextFlags != nil {
		req.ContextFlags = *input.ContextFlags
	}

	if !input.Wait {
		runID, err := s.runner.Start(s.runCtx, req)
		if err != nil {
			return nil, RunGenerationOutput{}, fmt.Errorf("run_generation: %w", err)
		}
		return nil, RunGenerationOutput{RunID: runID, Status: "started", Stages: []StageSummary{}}, nil
	}

	res, err := s.runner.Run(ctx, req)
	if res == nil {
		return nil, RunGenerationOutput{}, fmt.Errorf("run_generation: %w", err)
	}
	out := RunGenerationOutput{
		RunID:     res.RunID,
		Status:    "completed",
		Stages:    summarize(res.Snapshot),
		Persisted: res.Persisted,
	}
	switch {
	case errors.Is(err, orchestrator.ErrCanceled):
		out.Status = "canceled"
		out.Message = err.Error()
	case errors.Is(err, orchestrator.ErrNotPersisted):
		out.Status = "not-persisted"
		out.Message = err.Error()
	}
	return nil, out, nil
}

// GetRun reports a run's per-stage progress.
func (s *Service) GetRun(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, GetRunOutput, error) {
	st, err := s.runner.Snapshot(input.RunID)
	if err != nil {
		return nil, GetRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	return nil, GetRunOutput{
		RunID:       st.RunID,
		TargetID:    st.TargetID,
		ActiveStage: string(st.Snapshot.ActiveStageID),
		Stages:      summarize(st.Snapshot),
		Finished:    st.Finished,
		Persisted:   st.Persisted,
		Error:       st.Error,
	}, nil
}

// LoadOneSheet returns the persisted OneSheet for a target.
func (s *Service) LoadOneSheet(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LoadOneSheetInput,
) (*mcp.CallToolResult, LoadOneSheetOutput, error) {
	agg, err := s.reader.Load(ctx, input.TargetID)
	if err != nil {
		return nil, LoadOneSheetOutput{}, fmt.Errorf("load_onesheet: %w", err)
	}
	return nil, LoadOneSheetOutput{TargetID: input.TargetID, OneSheet: agg}, nil
}

// HooksForConcept lists hooks linked to a concept.
func (s *Service) HooksForConcept(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HooksForConceptInput,
) (*mcp.CallToolResult, HooksForConceptOutput, error) {
	hooks, err := s.reader.HooksForConcept(ctx, input.TargetID, input.ConceptID)
	if err != nil {
		return nil, HooksForConceptOutput{}, fmt.Errorf("hooks_for_concept: %w", err)
	}
	out := HooksForConceptOutput{Hooks: make([]HookSummary, 0, len(hooks))}
	for _, h := range hooks {
		out.Hooks = append(out.Hooks, HookSummary{ID: h.ID, Kind: string(h.Kind), Text: h.Text})
	}
	return nil, out, nil
}

// ListOneSheets lists targets with a saved OneSheet.
func (s *Service) ListOneSheets(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListOneSheetsInput,
) (*mcp.CallToolResult, ListOneSheetsOutput, error) {
	targets, err := s.reader.Targets(ctx)
	if err != nil {
		return nil, ListOneSheetsOutput{}, fmt.Errorf("list_onesheets: %w", err)
	}
	if targets == nil {
		targets = []string{}
	}
	return nil, ListOneSheetsOutput{Targets: targets}, nil
}

func summarize(snap orchestrator.Snapshot) []StageSummary {
	out := make([]StageSummary, 0, len(snap.Stages))
	for _, o := range snap.Stages {
		out = append(out, StageSummary{
			Stage:  string(o.StageID),
			Status: string(o.Status),
			Error:  o.ErrorDetail,
		})
	}
	return out
}
