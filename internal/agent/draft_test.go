package agent

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/onesheet/internal/a2a"
	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
	"github.com/dusk-indust/onesheet/internal/research"
)

func richContext(stage creative.StageID) assembler.StageContext {
	return assembler.StageContext{
		Stage:    stage,
		TargetID: "sheet-1",
		Evidence: []string{"ad-1", "ad-2"},
		ContextHub: []research.HubEntry{
			{ID: "h1", Title: "Brand voice", Content: "Warm"},
		},
		Audience: &assembler.AudienceContext{
			Personas: []research.Persona{{Name: "Busy parent"}},
			Angles:   []string{"dinner in ten minutes", "no more takeout"},
		},
		Competitors: []research.Competitor{{Name: "MealCo", Positioning: "cheapest"}},
		Ads: []research.AdRecord{
			{ID: "ad-1", Name: "UGC", Hook: "POV: it's 6pm", Spend: 100, Revenue: 300},
			{ID: "ad-2", Name: "Static", Spend: 100, Revenue: 90},
		},
	}
}

func TestDraftAgent_EveryStageDecodes(t *testing.T) {
	d := NewDraftAgent("test")
	for _, def := range creative.Definitions() {
		t.Run(string(def.ID), func(t *testing.T) {
			raw, err := d.Generate(context.Background(), provider.Request{
				Stage:      def.ID,
				Context:    richContext(def.ID),
				References: []string{"concept-1", "concept-2"},
			})
			require.NoError(t, err)

			p, err := def.Shape.Decode(def.ID, raw)
			require.NoError(t, err)
			assert.Equal(t, def.ID, p.Stage())
		})
	}
}

func TestDraftAgent_EmptyContextStillValid(t *testing.T) {
	d := NewDraftAgent("test")
	for _, def := range creative.Definitions() {
		raw, err := d.Generate(context.Background(), provider.Request{Stage: def.ID})
		require.NoError(t, err, def.ID)
		_, err = creative.Decode(def.ID, raw)
		require.NoError(t, err, def.ID)
	}
}

func TestDraftAgent_Concepts(t *testing.T) {
	raw, err := NewDraftAgent("test").Generate(context.Background(), provider.Request{
		Stage:   creative.StageConcepts,
		Context: richContext(creative.StageConcepts),
	})
	require.NoError(t, err)

	var got creative.ConceptsPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Concepts, maxConcepts)
	assert.Equal(t, "Dinner in ten minutes", got.Concepts[0].Title)
	assert.Equal(t, "No more takeout", got.Concepts[1].Title)
	assert.Equal(t, "Busy parent", got.Concepts[0].Audience)
	assert.Equal(t, []string{"ad-1", "ad-2"}, got.Concepts[0].EvidenceIDs)
}

func TestDraftAgent_HooksLinkReferences(t *testing.T) {
	raw, err := NewDraftAgent("test").Generate(context.Background(), provider.Request{
		Stage:      creative.StageHooks,
		Context:    richContext(creative.StageHooks),
		References: []string{"concept-1", "concept-2"},
	})
	require.NoError(t, err)

	var got creative.HooksPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Visual, 2)
	require.Len(t, got.Audio, 2)
	assert.Equal(t, "concept-1", got.Visual[0].ConceptID)
	assert.Equal(t, "concept-2", got.Audio[1].ConceptID)
}

func TestDraftAgent_IterationsFollowEvidence(t *testing.T) {
	sc := richContext(creative.StageIterations)
	sc.Evidence = []string{"ad-2"}
	raw, err := NewDraftAgent("test").Generate(context.Background(), provider.Request{
		Stage:   creative.StageIterations,
		Context: sc,
	})
	require.NoError(t, err)

	var got creative.IterationsPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Iterations, 1)
	assert.Equal(t, "ad-2", got.Iterations[0].SourceAdID)
	assert.Equal(t, "Iterate on Static", got.Iterations[0].Title)
	assert.Empty(t, got.Iterations[0].ConceptID)
}

func TestDraftAgent_PracticesRankAdsByROAS(t *testing.T) {
	raw, err := NewDraftAgent("test").Generate(context.Background(), provider.Request{
		Stage:   creative.StageBestPractices,
		Context: richContext(creative.StageBestPractices),
	})
	require.NoError(t, err)

	var got creative.BestPracticesPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Practices, 4)
	assert.Contains(t, got.Practices[1].Guidance, "UGC (ROAS 3.00)")
	assert.Contains(t, got.Practices[3].Guidance, "MealCo (cheapest)")
}

func TestDraftAgent_Deterministic(t *testing.T) {
	d := NewDraftAgent("test")
	req := provider.Request{Stage: creative.StageVisuals, Context: richContext(creative.StageVisuals), References: []string{"concept-1"}}
	a, err := d.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := d.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestDraftAgent_UnknownStage(t *testing.T) {
	_, err := NewDraftAgent("test").Generate(context.Background(), provider.Request{Stage: "mystery"})
	assert.Error(t, err)
}

func TestDraftAgent_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDraftAgent("test").Generate(ctx, provider.Request{Stage: creative.StageConcepts})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDraftAgent_ServedOverA2A(t *testing.T) {
	d := NewDraftAgent("test")
	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	p := provider.NewA2AProvider(a2a.NewHTTPClient(a2a.WithTimeout(5*time.Second)), srv.URL)
	raw, err := p.Generate(context.Background(), provider.Request{
		Stage:   creative.StageConcepts,
		Context: richContext(creative.StageConcepts),
	})
	require.NoError(t, err)

	local, err := d.Generate(context.Background(), provider.Request{
		Stage:   creative.StageConcepts,
		Context: richContext(creative.StageConcepts),
	})
	require.NoError(t, err)
	assert.JSONEq(t, string(local), string(raw))
}

func TestDraftAgent_RemoteRejectsMalformedRequest(t *testing.T) {
	d := NewDraftAgent("test")
	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	client := a2a.NewHTTPClient(a2a.WithTimeout(5 * time.Second))
	task, err := client.SendMessage(context.Background(), srv.URL, a2a.SendMessageRequest{
		Message: a2a.Message{MessageID: "m1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart("hello")}},
	})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.StatusText(), "no data part")
}
