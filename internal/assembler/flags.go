package assembler

import (
	"slices"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// ContextFlags selects which research categories ground a run. The set of
// categories and options is fixed; request decoders reject unknown keys.
type ContextFlags struct {
	ContextHub         ContextHubFlags         `json:"contextHub" yaml:"contextHub"`
	AdAudit            AdAuditFlags            `json:"adAudit" yaml:"adAudit"`
	AudienceResearch   AudienceResearchFlags   `json:"audienceResearch" yaml:"audienceResearch"`
	CompetitorResearch CompetitorResearchFlags `json:"competitorResearch" yaml:"competitorResearch"`
}

type ContextHubFlags struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// AdAuditFlags controls the ad-performance category. FullTable includes the
// performance rows verbatim; without it only a compact summary is sent.
// SelectedAdsOnly restricts rows to the evidence selection.
type AdAuditFlags struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	FullTable       bool `json:"fullTable" yaml:"fullTable"`
	SelectedAdsOnly bool `json:"selectedAdsOnly" yaml:"selectedAdsOnly"`
}

// Reads reports whether the ad-performance table must be fetched.
func (f AdAuditFlags) Reads() bool {
	return f.Enabled || f.FullTable || f.SelectedAdsOnly
}

type AudienceResearchFlags struct {
	Personas   bool `json:"personas" yaml:"personas"`
	PainPoints bool `json:"painPoints" yaml:"painPoints"`
	Angles     bool `json:"angles" yaml:"angles"`
}

// Reads reports whether any audience sub-option is enabled.
func (f AudienceResearchFlags) Reads() bool {
	return f.Personas || f.PainPoints || f.Angles
}

type CompetitorResearchFlags struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	IncludeAds bool `json:"includeAds" yaml:"includeAds"`
}

// Selection is the caller-chosen evidence for a run.
type Selection struct {
	// Evidence is the set of selected evidence item ids (e.g. ads).
	Evidence []string `json:"evidenceSelection"`

	// Iteration is an optional subset of Evidence used only by the
	// iterations stage.
	Iteration []string `json:"iterationSelection,omitempty"`
}

// Normalized returns the selection with ids sorted and deduplicated.
func (s Selection) Normalized() Selection {
	return Selection{
		Evidence:  normalizeIDs(s.Evidence),
		Iteration: normalizeIDs(s.Iteration),
	}
}

// ForStage returns the effective evidence for stage. The iterations stage
// uses the iteration subset when one was given.
func (s Selection) ForStage(stage creative.StageID) []string {
	if stage == creative.StageIterations && len(s.Iteration) > 0 {
		return normalizeIDs(s.Iteration)
	}
	return normalizeIDs(s.Evidence)
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
