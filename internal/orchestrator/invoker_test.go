package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
)

func stageDef(t *testing.T, id creative.StageID) creative.StageDefinition {
	t.Helper()
	def, ok := creative.Lookup(id)
	require.True(t, ok)
	return def
}

func priorWithConcepts(ids ...string) PriorOutcomes {
	var cs []creative.Concept
	for _, id := range ids {
		cs = append(cs, creative.Concept{ID: id, Title: id})
	}
	return PriorOutcomes{payloads: map[creative.StageID]creative.Payload{
		creative.StageConcepts: creative.ConceptsPayload{Concepts: cs},
	}}
}

func TestInvoker_Success(t *testing.T) {
	p := newFakeProvider()
	iv := NewInvoker(p, time.Second)

	got, err := iv.Invoke(context.Background(), stageDef(t, creative.StageHooks),
		assembler.StageContext{Stage: creative.StageHooks}, "model-x", priorWithConcepts("c1"))
	require.NoError(t, err)

	hooks, ok := got.(creative.HooksPayload)
	require.True(t, ok)
	require.Len(t, hooks.Visual, 1)
	assert.Equal(t, "c1", hooks.Visual[0].ConceptID)

	req, ok := p.request(creative.StageHooks)
	require.True(t, ok)
	assert.Equal(t, "model-x", req.ModelID)
	assert.Equal(t, []string{"c1"}, req.References)
}

func TestInvoker_DropsReferencesToMissingConcepts(t *testing.T) {
	iv := NewInvoker(newFakeProvider(), time.Second)

	got, err := iv.Invoke(context.Background(), stageDef(t, creative.StageHooks),
		assembler.StageContext{}, "", PriorOutcomes{})
	require.NoError(t, err)

	hooks := got.(creative.HooksPayload)
	assert.Empty(t, hooks.Visual[0].ConceptID)
	assert.Empty(t, hooks.Audio[0].ConceptID)
	assert.Equal(t, "Watch the timer", hooks.Visual[0].Text)
}

func TestInvoker_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		fn   generateFunc
		kind ProviderErrorKind
	}{
		{
			name: "transport",
			fn: func(context.Context, provider.Request) (json.RawMessage, error) {
				return nil, errBoom
			},
			kind: KindTransport,
		},
		{
			name: "timeout honouring context",
			fn: func(ctx context.Context, _ provider.Request) (json.RawMessage, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			kind: KindTimeout,
		},
		{
			name: "timeout ignoring context",
			fn: func(context.Context, provider.Request) (json.RawMessage, error) {
				time.Sleep(300 * time.Millisecond)
				return json.RawMessage(validResponses[creative.StageHooks]), nil
			},
			kind: KindTimeout,
		},
		{
			name: "not an object",
			fn: func(context.Context, provider.Request) (json.RawMessage, error) {
				return json.RawMessage(`["nope"]`), nil
			},
			kind: KindInvalidResponse,
		},
		{
			name: "missing audio",
			fn: func(context.Context, provider.Request) (json.RawMessage, error) {
				return json.RawMessage(`{"visual":[]}`), nil
			},
			kind: KindInvalidResponse,
		},
		{
			name: "panic",
			fn: func(context.Context, provider.Request) (json.RawMessage, error) {
				panic("provider bug")
			},
			kind: KindTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider().on(creative.StageHooks, tt.fn)
			iv := NewInvoker(p, 50*time.Millisecond)

			start := time.Now()
			got, err := iv.Invoke(context.Background(), stageDef(t, creative.StageHooks), assembler.StageContext{}, "", PriorOutcomes{})
			assert.Less(t, time.Since(start), 250*time.Millisecond)
			assert.Nil(t, got)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, creative.StageHooks, pe.Stage)
			assert.Contains(t, err.Error(), "stage hooks")
		})
	}
}

func TestInvoker_InvalidResponseUnwrapsPayloadError(t *testing.T) {
	p := newFakeProvider().on(creative.StageConcepts, func(context.Context, provider.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"concepts":[{"id":"c1"}]}`), nil
	})
	_, err := NewInvoker(p, time.Second).Invoke(context.Background(), stageDef(t, creative.StageConcepts), assembler.StageContext{}, "", PriorOutcomes{})
	assert.True(t, errors.Is(err, creative.ErrInvalidPayload))
}

func TestInvoker_ParentCancelDoesNotAbortCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newFakeProvider().on(creative.StageVisuals, func(ctx context.Context, _ provider.Request) (json.RawMessage, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return json.RawMessage(validResponses[creative.StageVisuals]), nil
	})
	got, err := NewInvoker(p, time.Second).Invoke(ctx, stageDef(t, creative.StageVisuals), assembler.StageContext{}, "", PriorOutcomes{})
	require.NoError(t, err)
	assert.Len(t, got.(creative.VisualsPayload).Visuals, 1)
}

func TestNewInvoker_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultStageTimeout, NewInvoker(newFakeProvider(), 0).timeout)
}

func TestPriorFromSnapshot(t *testing.T) {
	tr := NewTracker(creative.Definitions())
	require.NoError(t, tr.Start(creative.StageConcepts))
	require.NoError(t, tr.Complete(creative.StageConcepts, creative.ConceptsPayload{
		Concepts: []creative.Concept{{ID: "c1", Title: "A"}, {ID: "c2", Title: "B"}},
	}))
	require.NoError(t, tr.Start(creative.StageIterations))
	require.NoError(t, tr.Fail(creative.StageIterations, "x"))

	prior := PriorFromSnapshot(tr.Snapshot())
	assert.Equal(t, []string{"c1", "c2"}, prior.ConceptIDs())
	assert.NotContains(t, prior.payloads, creative.StageIterations)

	assert.Nil(t, PriorOutcomes{}.ConceptIDs())
}
