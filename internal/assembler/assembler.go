// Package assembler builds the grounding context sent to the provider for a
// single stage. Only research categories enabled by the caller's flags are
// read; large tables are summarized unless explicitly requested.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/research"
)

// topPerformers is the number of ads listed in an AdSummary.
const topPerformers = 5

// StageContext is the assembled grounding for one stage. Empty categories
// are omitted from the JSON form.
type StageContext struct {
	Stage       creative.StageID      `json:"stage"`
	TargetID    string                `json:"targetId"`
	Evidence    []string              `json:"evidence"`
	ContextHub  []research.HubEntry   `json:"contextHub,omitempty"`
	Audience    *AudienceContext      `json:"audience,omitempty"`
	Competitors []research.Competitor `json:"competitors,omitempty"`
	Ads         []research.AdRecord   `json:"ads,omitempty"`
	AdSummary   *AdSummary            `json:"adSummary,omitempty"`
}

// AudienceContext carries the enabled audience sub-categories.
type AudienceContext struct {
	Personas   []research.Persona `json:"personas,omitempty"`
	PainPoints []string           `json:"painPoints,omitempty"`
	Angles     []string           `json:"angles,omitempty"`
}

// AdSummary is the compact stand-in for the ad-performance table.
type AdSummary struct {
	AdCount          int           `json:"adCount"`
	TotalSpend       float64       `json:"totalSpend"`
	TotalRevenue     float64       `json:"totalRevenue"`
	TotalImpressions int64         `json:"totalImpressions"`
	TotalClicks      int64         `json:"totalClicks"`
	TotalConversions int64         `json:"totalConversions"`
	ROAS             float64       `json:"roas"`
	CTR              float64       `json:"ctr"`
	TopPerformers    []AdHighlight `json:"topPerformers"`
}

// AdHighlight is one row of AdSummary.TopPerformers.
type AdHighlight struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Hook string  `json:"hook,omitempty"`
	ROAS float64 `json:"roas"`
	CTR  float64 `json:"ctr"`
}

// CheckPreconditions validates a request before any stage runs.
func CheckPreconditions(flags ContextFlags, sel Selection) error {
	sel = sel.Normalized()
	if flags.AdAudit.SelectedAdsOnly && len(sel.Evidence) == 0 {
		return &ContextError{
			Kind:    KindPreconditionFailed,
			Message: "selectedAdsOnly requires a non-empty evidence selection",
		}
	}
	for _, id := range sel.Iteration {
		if _, found := slices.BinarySearch(sel.Evidence, id); !found {
			return &ContextError{
				Kind:    KindPreconditionFailed,
				Message: fmt.Sprintf("iteration selection id %q is not in the evidence selection", id),
			}
		}
	}
	return nil
}

// Assemble builds the StageContext for stage. The result depends only on its
// inputs and the research returned by sources.
func Assemble(ctx context.Context, stage creative.StageID, targetID string, flags ContextFlags, sel Selection, sources research.Sources) (StageContext, error) {
	if err := CheckPreconditions(flags, sel); err != nil {
		var ce *ContextError
		if errors.As(err, &ce) {
			ce.Stage = stage
		}
		return StageContext{}, err
	}

	evidence := sel.ForStage(stage)
	sc := StageContext{
		Stage:    stage,
		TargetID: targetID,
		Evidence: evidence,
	}

	var (
		hub         []research.HubEntry
		audience    research.Audience
		competitors []research.Competitor
		ads         []research.AdRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	if flags.ContextHub.Enabled {
		g.Go(func() error {
			var err error
			hub, err = sources.ContextHub(gctx, targetID)
			return sourceErr(stage, research.CategoryContextHub, err)
		})
	}
	if flags.AudienceResearch.Reads() {
		g.Go(func() error {
			var err error
			audience, err = sources.AudienceResearch(gctx, targetID)
			return sourceErr(stage, research.CategoryAudience, err)
		})
	}
	if flags.CompetitorResearch.Enabled {
		g.Go(func() error {
			var err error
			competitors, err = sources.Competitors(gctx, targetID)
			return sourceErr(stage, research.CategoryCompetitors, err)
		})
	}
	if flags.AdAudit.Reads() {
		g.Go(func() error {
			var err error
			ads, err = sources.AdPerformance(gctx, targetID)
			return sourceErr(stage, research.CategoryAdPerformance, err)
		})
	}
	if err := g.Wait(); err != nil {
		return StageContext{}, err
	}

	if flags.ContextHub.Enabled && len(hub) > 0 {
		sc.ContextHub = slices.Clone(hub)
	}

	if flags.AudienceResearch.Reads() {
		ac := &AudienceContext{}
		if flags.AudienceResearch.Personas {
			ac.Personas = slices.Clone(audience.Personas)
		}
		if flags.AudienceResearch.PainPoints {
			ac.PainPoints = slices.Clone(audience.PainPoints)
		}
		if flags.AudienceResearch.Angles {
			ac.Angles = slices.Clone(audience.Angles)
		}
		if len(ac.Personas)+len(ac.PainPoints)+len(ac.Angles) > 0 {
			sc.Audience = ac
		}
	}

	if flags.CompetitorResearch.Enabled && len(competitors) > 0 {
		sc.Competitors = make([]research.Competitor, len(competitors))
		for i, c := range competitors {
			if flags.CompetitorResearch.IncludeAds {
				c.Ads = slices.Clone(c.Ads)
			} else {
				c.Ads = nil
			}
			sc.Competitors[i] = c
		}
	}

	if flags.AdAudit.Reads() {
		rows := ads
		if flags.AdAudit.SelectedAdsOnly {
			rows = filterAds(ads, evidence)
			if len(rows) == 0 {
				return StageContext{}, &ContextError{
					Kind:     KindInconsistentSelection,
					Stage:    stage,
					Category: research.CategoryAdPerformance,
					Message:  "none of the selected ads exist in the performance data",
				}
			}
		}
		switch {
		case flags.AdAudit.FullTable || flags.AdAudit.SelectedAdsOnly:
			sc.Ads = slices.Clone(rows)
		case len(rows) > 0:
			sc.AdSummary = Summarize(rows)
		}
	}

	return sc, nil
}

// Summarize reduces an ad-performance table to totals and the best
// performers by ROAS. Ties are broken by ad id.
func Summarize(rows []research.AdRecord) *AdSummary {
	s := &AdSummary{AdCount: len(rows), TopPerformers: []AdHighlight{}}
	for _, r := range rows {
		s.TotalSpend += r.Spend
		s.TotalRevenue += r.Revenue
		s.TotalImpressions += r.Impressions
		s.TotalClicks += r.Clicks
		s.TotalConversions += r.Conversions
	}
	if s.TotalSpend > 0 {
		s.ROAS = s.TotalRevenue / s.TotalSpend
	}
	if s.TotalImpressions > 0 {
		s.CTR = float64(s.TotalClicks) / float64(s.TotalImpressions)
	}

	ranked := slices.Clone(rows)
	slices.SortStableFunc(ranked, func(a, b research.AdRecord) int {
		ra, rb := a.ROAS(), b.ROAS()
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if len(ranked) > topPerformers {
		ranked = ranked[:topPerformers]
	}
	for _, r := range ranked {
		s.TopPerformers = append(s.TopPerformers, AdHighlight{
			ID:   r.ID,
			Name: r.Name,
			Hook: r.Hook,
			ROAS: r.ROAS(),
			CTR:  r.CTR(),
		})
	}
	return s
}

// filterAds keeps rows whose id is in the sorted evidence list, preserving
// table order.
func filterAds(rows []research.AdRecord, evidence []string) []research.AdRecord {
	var out []research.AdRecord
	for _, r := range rows {
		if _, found := slices.BinarySearch(evidence, r.ID); found {
			out = append(out, r)
		}
	}
	return out
}

func sourceErr(stage creative.StageID, cat research.Category, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Kind:     KindSourceUnavailable,
		Stage:    stage,
		Category: cat,
		Err:      err,
	}
}
