package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
)

// DefaultStageTimeout bounds a single provider call.
const DefaultStageTimeout = 90 * time.Second

// ProviderErrorKind classifies a failed stage invocation.
type ProviderErrorKind string

const (
	KindTimeout         ProviderErrorKind = "timeout"
	KindTransport       ProviderErrorKind = "transport"
	KindInvalidResponse ProviderErrorKind = "invalid-response"
)

// ProviderError is the only error Invoke returns.
type ProviderError struct {
	Stage creative.StageID
	Kind  ProviderErrorKind
	Err   error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PriorOutcomes is a read-only view of the payloads completed earlier in the
// same run.
type PriorOutcomes struct {
	payloads map[creative.StageID]creative.Payload
}

// PriorFromSnapshot collects the completed payloads of snap.
func PriorFromSnapshot(snap Snapshot) PriorOutcomes {
	p := PriorOutcomes{payloads: make(map[creative.StageID]creative.Payload)}
	for _, o := range snap.Stages {
		if o.Status == StatusCompleted && o.Payload != nil {
			p.payloads[o.StageID] = o.Payload
		}
	}
	return p
}

// ConceptIDs returns the ids produced by a completed concepts stage, or nil.
func (p PriorOutcomes) ConceptIDs() []string {
	v, ok := p.payloads[creative.StageConcepts]
	if !ok {
		return nil
	}
	return creative.ConceptIDs(v)
}

// Invoker calls the provider for one stage and turns every failure mode into
// a *ProviderError.
type Invoker struct {
	provider provider.Provider
	timeout  time.Duration
}

// NewInvoker returns an Invoker. A non-positive timeout uses
// DefaultStageTimeout.
func NewInvoker(p provider.Provider, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Invoker{provider: p, timeout: timeout}
}

type generateResult struct {
	raw json.RawMessage
	err error
}

// Invoke generates, validates and returns the payload for def. Cancellation
// of ctx does not interrupt an in-flight call; only the stage timeout does.
// Links to concepts absent from prior are dropped.
func (iv *Invoker) Invoke(ctx context.Context, def creative.StageDefinition, sc assembler.StageContext, modelID string, prior PriorOutcomes) (creative.Payload, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), iv.timeout)
	defer cancel()

	refs := prior.ConceptIDs()
	req := provider.Request{
		Stage:      def.ID,
		ModelID:    modelID,
		Context:    sc,
		References: refs,
	}

	done := make(chan generateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generateResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		raw, err := iv.provider.Generate(callCtx, req)
		done <- generateResult{raw: raw, err: err}
	}()

	var res generateResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		return nil, &ProviderError{Stage: def.ID, Kind: KindTimeout, Err: fmt.Errorf("no response within %s", iv.timeout)}
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, &ProviderError{Stage: def.ID, Kind: KindTimeout, Err: res.err}
		}
		return nil, &ProviderError{Stage: def.ID, Kind: KindTransport, Err: res.err}
	}

	payload, err := def.Shape.Decode(def.ID, res.raw)
	if err != nil {
		return nil, &ProviderError{Stage: def.ID, Kind: KindInvalidResponse, Err: err}
	}

	known := make(map[string]bool, len(refs))
	for _, id := range refs {
		known[id] = true
	}
	return creative.PruneReferences(payload, known), nil
}
