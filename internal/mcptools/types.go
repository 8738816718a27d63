package mcptools

import (
	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
)

// --- MCP tool types ---

// RunGenerationInput is the input for the run_generation tool.
type RunGenerationInput struct {
	TargetID           string                  `json:"targetId" jsonschema:"OneSheet target id"`
	ModelID            string                  `json:"modelId,omitempty" jsonschema:"model used by the provider"`
	ContextFlags       *assembler.ContextFlags `json:"contextFlags,omitempty" jsonschema:"research categories to include"`
	EvidenceSelection  []string                `json:"evidenceSelection,omitempty" jsonschema:"selected evidence ids (ads)"`
	IterationSelection []string                `json:"iterationSelection,omitempty" jsonschema:"subset of evidenceSelection used by the iterations stage"`
	Wait               bool                    `json:"wait,omitempty" jsonschema:"block until the run finishes"`
}

// RunGenerationOutput is the result of the run_generation tool.
type RunGenerationOutput struct {
	RunID     string         `json:"runId"`
	Status    string         `json:"status"` // "started", "completed", "canceled" or "not-persisted"
	Stages    []StageSummary `json:"stages"`
	Persisted bool           `json:"persisted"`
	Message   string         `json:"message,omitempty"`
}

// StageSummary is one stage's status without its payload.
type StageSummary struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GetRunInput is the input for the get_run tool.
type GetRunInput struct {
	RunID string `json:"runId" jsonschema:"id returned by run_generation"`
}

// GetRunOutput is the result of the get_run tool.
type GetRunOutput struct {
	RunID       string         `json:"runId"`
	TargetID    string         `json:"targetId"`
	ActiveStage string         `json:"activeStage,omitempty"`
	Stages      []StageSummary `json:"stages"`
	Finished    bool           `json:"finished"`
	Persisted   bool           `json:"persisted"`
	Error       string         `json:"error,omitempty"`
}

// LoadOneSheetInput is the input for the load_onesheet tool.
type LoadOneSheetInput struct {
	TargetID string `json:"targetId" jsonschema:"OneSheet target id"`
}

// LoadOneSheetOutput is the result of the load_onesheet tool.
type LoadOneSheetOutput struct {
	TargetID string                   `json:"targetId"`
	OneSheet creative.AggregateResult `json:"onesheet"`
}

// HooksForConceptInput is the input for the hooks_for_concept tool.
type HooksForConceptInput struct {
	TargetID  string `json:"targetId" jsonschema:"OneSheet target id"`
	ConceptID string `json:"conceptId" jsonschema:"concept id"`
}

// HooksForConceptOutput is the result of the hooks_for_concept tool.
type HooksForConceptOutput struct {
	Hooks []HookSummary `json:"hooks"`
}

// HookSummary is a hook and the list it belongs to.
type HookSummary struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "visual" or "audio"
	Text string `json:"text"`
}

// ListOneSheetsInput is the input for the list_onesheets tool.
type ListOneSheetsInput struct{}

// ListOneSheetsOutput is the result of the list_onesheets tool.
type ListOneSheetsOutput struct {
	Targets []string `json:"targets"`
}
