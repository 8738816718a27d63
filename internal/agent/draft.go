package agent

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/onesheet/internal/a2a"
	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
	"github.com/dusk-indust/onesheet/internal/research"
)

// maxConcepts caps the number of concepts a draft proposes.
const maxConcepts = 3

var _ provider.Provider = (*DraftAgent)(nil)

// DraftAgent produces schema-valid stage payloads from the assembled
// research alone, without a language model. The same input always yields
// the same draft. It runs in-process as a provider.Provider or remotely
// over A2A.
type DraftAgent struct {
	*BaseAgent
}

// NewDraftAgent creates a DraftAgent with its card and process function
// wired up.
func NewDraftAgent(version string) *DraftAgent {
	d := &DraftAgent{}
	card := a2a.AgentCard{
		Name:        "onesheet-draft-agent",
		Description: "Drafts OneSheet creative sections from research context",
		Version:     version,
		Skills: []a2a.AgentSkill{
			{
				ID:          "draft-stage",
				Name:        "Draft Stage",
				Description: "Return the JSON payload for one creative stage",
				Tags:        []string{"onesheet", "creative", "draft"},
			},
		},
		DefaultInputModes:  []string{"application/json"},
		DefaultOutputModes: []string{"application/json"},
	}
	d.BaseAgent = NewBaseAgent(card, d.process)
	return d
}

func (d *DraftAgent) process(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	req, err := provider.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	raw, err := d.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return []a2a.Artifact{{
		ArtifactID: a2a.NewID(),
		Name:       string(req.Stage),
		Parts:      []a2a.Part{{Data: raw, MediaType: "application/json"}},
	}}, nil
}

// Generate implements provider.Provider.
func (d *DraftAgent) Generate(ctx context.Context, req provider.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p creative.Payload
	switch req.Stage {
	case creative.StageConcepts:
		p = draftConcepts(req.Context)
	case creative.StageIterations:
		p = draftIterations(req.Context, req.References)
	case creative.StageHooks:
		p = draftHooks(req.Context, req.References)
	case creative.StageVisuals:
		p = draftVisuals(req.Context, req.References)
	case creative.StageBestPractices:
		p = draftPractices(req.Context)
	default:
		return nil, fmt.Errorf("agent: draft: unknown stage %q", req.Stage)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("agent: draft %s: %w", req.Stage, err)
	}
	return data, nil
}

// seeds picks the creative starting points in priority order: angles, pain
// points, persona names, proven ad hooks, context-hub titles.
func seeds(sc assembler.StageContext) []string {
	var out []string
	if a := sc.Audience; a != nil {
		out = append(out, a.Angles...)
		out = append(out, a.PainPoints...)
		for _, p := range a.Personas {
			out = append(out, p.Name)
		}
	}
	for _, ad := range rankedAds(sc) {
		if ad.Hook != "" {
			out = append(out, ad.Hook)
		}
	}
	for _, e := range sc.ContextHub {
		out = append(out, e.Title)
	}

	seen := make(map[string]bool, len(out))
	uniq := out[:0]
	for _, s := range out {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return []string{"the core product benefit"}
	}
	return uniq
}

// rankedAds returns the ads visible in sc, best ROAS first.
func rankedAds(sc assembler.StageContext) []assembler.AdHighlight {
	if sc.AdSummary != nil {
		return sc.AdSummary.TopPerformers
	}
	out := make([]assembler.AdHighlight, 0, len(sc.Ads))
	for _, r := range sc.Ads {
		out = append(out, assembler.AdHighlight{ID: r.ID, Name: r.Name, Hook: r.Hook, ROAS: r.ROAS(), CTR: r.CTR()})
	}
	slices.SortStableFunc(out, func(a, b assembler.AdHighlight) int {
		if c := cmp.Compare(b.ROAS, a.ROAS); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func personaFor(sc assembler.StageContext, i int) string {
	if sc.Audience == nil || len(sc.Audience.Personas) == 0 {
		return ""
	}
	return sc.Audience.Personas[i%len(sc.Audience.Personas)].Name
}

func draftConcepts(sc assembler.StageContext) creative.ConceptsPayload {
	src := seeds(sc)
	n := min(len(src), maxConcepts)
	out := make([]creative.Concept, 0, n)
	for i, s := range src[:n] {
		out = append(out, creative.Concept{
			ID:          fmt.Sprintf("concept-%d", i+1),
			Title:       titleCase(s),
			Angle:       s,
			Description: fmt.Sprintf("Lead with %s and close on the offer.", s),
			Audience:    personaFor(sc, i),
			EvidenceIDs: slices.Clone(sc.Evidence),
		})
	}
	return creative.ConceptsPayload{Concepts: out}
}

func draftIterations(sc assembler.StageContext, refs []string) creative.IterationsPayload {
	names := make(map[string]string)
	for _, ad := range rankedAds(sc) {
		names[ad.ID] = ad.Name
	}
	out := make([]creative.Iteration, 0, len(sc.Evidence))
	for i, id := range sc.Evidence {
		name := names[id]
		if name == "" {
			name = id
		}
		out = append(out, creative.Iteration{
			ID:         "iteration-" + id,
			SourceAdID: id,
			Title:      "Iterate on " + name,
			Changes:    []string{"Cut the intro to under two seconds", "Test a new opening hook"},
			Rationale:  "Selected for iteration",
			ConceptID:  pick(refs, i),
		})
	}
	return creative.IterationsPayload{Iterations: out}
}

func draftHooks(sc assembler.StageContext, refs []string) creative.HooksPayload {
	src := seeds(sc)
	n := max(len(refs), 1)
	p := creative.HooksPayload{
		Visual: make([]creative.Hook, 0, n),
		Audio:  make([]creative.Hook, 0, n),
	}
	for i := range n {
		s := src[i%len(src)]
		p.Visual = append(p.Visual, creative.Hook{
			ID:        fmt.Sprintf("hook-visual-%d", i+1),
			Text:      "Open on a close-up that shows " + s,
			ConceptID: pick(refs, i),
		})
		p.Audio = append(p.Audio, creative.Hook{
			ID:        fmt.Sprintf("hook-audio-%d", i+1),
			Text:      fmt.Sprintf("%q, in the first second", titleCase(s)),
			ConceptID: pick(refs, i),
		})
	}
	return p
}

func draftVisuals(sc assembler.StageContext, refs []string) creative.VisualsPayload {
	src := seeds(sc)
	n := max(len(refs), 1)
	out := make([]creative.Visual, 0, n)
	for i := range n {
		out = append(out, creative.Visual{
			ID:          fmt.Sprintf("visual-%d", i+1),
			Description: "Handheld demo built around " + src[i%len(src)],
			Format:      "9:16 video",
			ConceptID:   pick(refs, i),
		})
	}
	return creative.VisualsPayload{Visuals: out}
}

func draftPractices(sc assembler.StageContext) creative.BestPracticesPayload {
	out := []creative.BestPractice{{
		ID:       "practice-1",
		Category: "hook",
		Guidance: "Show the product in the first three seconds",
	}}
	for _, ad := range rankedAds(sc) {
		if len(out) > 3 {
			break
		}
		out = append(out, creative.BestPractice{
			ID:       fmt.Sprintf("practice-%d", len(out)+1),
			Category: "performance",
			Guidance: fmt.Sprintf("Reuse what works in %s (ROAS %.2f)", adLabel(ad), ad.ROAS),
		})
	}
	for _, c := range sc.Competitors {
		out = append(out, creative.BestPractice{
			ID:       fmt.Sprintf("practice-%d", len(out)+1),
			Category: "competition",
			Guidance: "Differentiate from " + competitorLabel(c),
		})
	}
	return creative.BestPracticesPayload{Practices: out}
}

func adLabel(ad assembler.AdHighlight) string {
	if ad.Name != "" {
		return ad.Name
	}
	return ad.ID
}

func competitorLabel(c research.Competitor) string {
	if c.Positioning != "" {
		return fmt.Sprintf("%s (%s)", c.Name, c.Positioning)
	}
	return c.Name
}

func pick(refs []string, i int) string {
	if len(refs) == 0 {
		return ""
	}
	return refs[i%len(refs)]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
