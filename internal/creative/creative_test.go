package creative

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions_FixedOrder(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 5)

	want := []StageID{StageConcepts, StageIterations, StageHooks, StageVisuals, StageBestPractices}
	for i, d := range defs {
		assert.Equal(t, want[i], d.ID)
		assert.Equal(t, i, d.Order)
	}

	// Mutating the returned slice must not affect the registry.
	defs[1].DependsOn[0] = "mutated"
	again, ok := Lookup(StageIterations)
	require.True(t, ok)
	assert.Equal(t, []StageID{StageConcepts}, again.DependsOn)
}

func TestStageID_Valid(t *testing.T) {
	assert.True(t, StageHooks.Valid())
	assert.False(t, StageID("captions").Valid())
}

func TestNewAggregate_MarshalsEmptyArrays(t *testing.T) {
	data, err := json.Marshal(NewAggregate())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"concepts": [],
		"iterations": [],
		"hooks": {"visual": [], "audio": []},
		"visuals": [],
		"bestPractices": []
	}`, string(data))
}

func TestMerge_IsIdempotent(t *testing.T) {
	payloads := []Payload{
		ConceptsPayload{Concepts: []Concept{{ID: "c1", Title: "Before/after", EvidenceIDs: []string{"ad-1"}}}},
		IterationsPayload{Iterations: []Iteration{{ID: "i1", SourceAdID: "ad-1", Title: "Shorter intro"}}},
		HooksPayload{Visual: []Hook{{ID: "h1", Text: "Watch this", ConceptID: "c1"}}, Audio: []Hook{{ID: "h2", Text: "Stop scrolling"}}},
		VisualsPayload{Visuals: []Visual{{ID: "v1", Description: "Split screen", ConceptID: "c1"}}},
		BestPracticesPayload{Practices: []BestPractice{{ID: "b1", Guidance: "Hook in 2s"}}},
	}

	first, err := json.Marshal(Merge(payloads...))
	require.NoError(t, err)
	second, err := json.Marshal(Merge(payloads...))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMerge_DoesNotAliasPayload(t *testing.T) {
	p := ConceptsPayload{Concepts: []Concept{{ID: "c1", Title: "one"}}}
	agg := Merge(p)
	p.Concepts[0].Title = "changed"
	assert.Equal(t, "one", agg.Concepts[0].Title)
}

func TestMerge_MissingStagesKeepEmptyValues(t *testing.T) {
	agg := Merge(ConceptsPayload{Concepts: []Concept{{ID: "c1", Title: "one"}}})

	assert.Len(t, agg.Concepts, 1)
	assert.Equal(t, HooksPayload{Visual: []Hook{}, Audio: []Hook{}}, agg.Hooks)
	assert.Equal(t, EmptyPayload(StageHooks), agg.Section(StageHooks))
	assert.NotNil(t, agg.Iterations)
	assert.NotNil(t, agg.Visuals)
	assert.NotNil(t, agg.BestPractices)
}

func TestAggregate_Normalize(t *testing.T) {
	var agg AggregateResult
	require.NoError(t, json.Unmarshal([]byte(`{"concepts":[{"id":"c1","title":"x"}]}`), &agg))
	agg.Normalize()

	assert.Len(t, agg.Concepts, 1)
	assert.Equal(t, NewAggregate().Hooks, agg.Hooks)
	assert.Equal(t, []Iteration{}, agg.Iterations)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		stage   StageID
		raw     string
		wantErr bool
	}{
		{name: "concepts ok", stage: StageConcepts, raw: `{"concepts":[{"id":"c1","title":"A"}]}`},
		{name: "concepts empty list ok", stage: StageConcepts, raw: `{"concepts":[]}`},
		{name: "concepts missing field", stage: StageConcepts, raw: `{"ideas":[]}`, wantErr: true},
		{name: "concepts null", stage: StageConcepts, raw: `{"concepts":null}`, wantErr: true},
		{name: "concepts missing id", stage: StageConcepts, raw: `{"concepts":[{"title":"A"}]}`, wantErr: true},
		{name: "concepts duplicate id", stage: StageConcepts, raw: `{"concepts":[{"id":"c1","title":"A"},{"id":"c1","title":"B"}]}`, wantErr: true},
		{name: "hooks ok", stage: StageHooks, raw: `{"visual":[{"id":"h1","text":"x"}],"audio":[]}`},
		{name: "hooks missing audio", stage: StageHooks, raw: `{"visual":[]}`, wantErr: true},
		{name: "hooks duplicate across kinds", stage: StageHooks, raw: `{"visual":[{"id":"h1","text":"x"}],"audio":[{"id":"h1","text":"y"}]}`, wantErr: true},
		{name: "hooks missing text", stage: StageHooks, raw: `{"visual":[{"id":"h1"}],"audio":[]}`, wantErr: true},
		{name: "visuals wrong type", stage: StageVisuals, raw: `{"visuals":{"id":"v1"}}`, wantErr: true},
		{name: "practices ok", stage: StageBestPractices, raw: `{"practices":[{"id":"b1","guidance":"g"}]}`},
		{name: "not json", stage: StageIterations, raw: `sorry, I cannot help`, wantErr: true},
		{name: "unknown stage", stage: "captions", raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.stage, []byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPayload)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stage, p.Stage())
		})
	}
}

func TestPruneReferences(t *testing.T) {
	known := map[string]bool{"c1": true}

	hooks := HooksPayload{
		Visual: []Hook{{ID: "h1", Text: "a", ConceptID: "c1"}, {ID: "h2", Text: "b", ConceptID: "c9"}},
		Audio:  []Hook{{ID: "h3", Text: "c", ConceptID: "c9"}},
	}
	got := PruneReferences(hooks, known).(HooksPayload)
	assert.Equal(t, "c1", got.Visual[0].ConceptID)
	assert.Empty(t, got.Visual[1].ConceptID)
	assert.Empty(t, got.Audio[0].ConceptID)

	// Input is untouched.
	assert.Equal(t, "c9", hooks.Visual[1].ConceptID)

	visuals := PruneReferences(VisualsPayload{Visuals: []Visual{{ID: "v1", Description: "d", ConceptID: "c2"}}}, nil).(VisualsPayload)
	assert.Empty(t, visuals.Visuals[0].ConceptID)

	concepts := ConceptsPayload{Concepts: []Concept{{ID: "c1", Title: "t"}}}
	assert.Equal(t, concepts, PruneReferences(concepts, known))
}

func TestConceptIDs(t *testing.T) {
	p := ConceptsPayload{Concepts: []Concept{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, []string{"a", "b"}, ConceptIDs(p))
	assert.Nil(t, ConceptIDs(VisualsPayload{}))
}

func TestClone_DeepCopiesNestedSlices(t *testing.T) {
	orig := ConceptsPayload{Concepts: []Concept{{ID: "c1", Title: "T", EvidenceIDs: []string{"ad-1"}}}}
	cp := Clone(orig).(ConceptsPayload)
	cp.Concepts[0].EvidenceIDs[0] = "changed"
	cp.Concepts[0].Title = "changed"

	assert.Equal(t, "ad-1", orig.Concepts[0].EvidenceIDs[0])
	assert.Equal(t, "T", orig.Concepts[0].Title)
	assert.Nil(t, Clone(nil))
}
