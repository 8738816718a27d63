package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
)

// OneSheetExport is the top-level JSON export structure.
type OneSheetExport struct {
	TargetID   string                   `json:"targetId"`
	ExportedAt string                   `json:"exportedAt"`
	Stages     []StageExport            `json:"stages,omitempty"`
	Stats      Stats                    `json:"stats"`
	OneSheet   creative.AggregateResult `json:"onesheet"`
}

// StageExport describes one stage of the run that produced the OneSheet.
type StageExport struct {
	Order  int    `json:"order"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Stats counts the sections of a OneSheet.
type Stats struct {
	Concepts      int `json:"concepts"`
	Iterations    int `json:"iterations"`
	VisualHooks   int `json:"visualHooks"`
	AudioHooks    int `json:"audioHooks"`
	LinkedHooks   int `json:"linkedHooks"`
	Visuals       int `json:"visuals"`
	BestPractices int `json:"bestPractices"`
}

// Build assembles the export for agg. snap may be nil when the OneSheet was
// loaded from the store rather than produced by a run in this process.
func Build(targetID string, agg creative.AggregateResult, snap *orchestrator.Snapshot, now time.Time) *OneSheetExport {
	agg.Normalize()
	out := &OneSheetExport{
		TargetID:   targetID,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Stats:      StatsOf(agg),
		OneSheet:   agg,
	}
	if snap != nil {
		for _, o := range snap.Stages {
			out.Stages = append(out.Stages, StageExport{
				Order:  o.Order,
				Stage:  string(o.StageID),
				Status: string(o.Status),
				Error:  o.ErrorDetail,
			})
		}
	}
	return out
}

// StatsOf counts the entries in each section of agg.
func StatsOf(agg creative.AggregateResult) Stats {
	s := Stats{
		Concepts:      len(agg.Concepts),
		Iterations:    len(agg.Iterations),
		VisualHooks:   len(agg.Hooks.Visual),
		AudioHooks:    len(agg.Hooks.Audio),
		Visuals:       len(agg.Visuals),
		BestPractices: len(agg.BestPractices),
	}
	for _, h := range agg.AllHooks() {
		if h.ConceptID != "" {
			s.LinkedHooks++
		}
	}
	return s
}

// WriteJSON writes e as indented JSON.
func WriteJSON(w io.Writer, e *OneSheetExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("export: write json: %w", err)
	}
	return nil
}
