// Package store persists finished OneSheet aggregates. Every save replaces
// the previous document for the same target.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// ErrNotFound is returned when no OneSheet has been saved for a target.
var ErrNotFound = errors.New("store: onesheet not found")

// Store is the document store behind the orchestrator.
// Implementations: KuzuStore (production, cgo), MemStore (tests and
// builds without cgo).
type Store interface {
	io.Closer

	// Save replaces the OneSheet for targetID. Last write wins.
	Save(ctx context.Context, targetID string, agg creative.AggregateResult) error

	// Load returns the OneSheet for targetID or ErrNotFound.
	Load(ctx context.Context, targetID string) (creative.AggregateResult, error)

	// HooksForConcept returns the hooks of targetID linked to conceptID,
	// visual hooks first, in document order.
	HooksForConcept(ctx context.Context, targetID, conceptID string) ([]ConceptHook, error)

	// Targets lists the target ids that have a saved OneSheet, sorted.
	Targets(ctx context.Context) ([]string, error)
}

// HookKind distinguishes the two hook lists of a OneSheet.
type HookKind string

const (
	HookVisual HookKind = "visual"
	HookAudio  HookKind = "audio"
)

// ConceptHook is a hook together with the list it came from.
type ConceptHook struct {
	Kind HookKind `json:"kind"`
	creative.Hook
}

// conceptHooks walks agg in document order and returns the hooks linked to
// conceptID. Unlinked hooks never match, so an empty conceptID yields none.
func conceptHooks(agg creative.AggregateResult, conceptID string) []ConceptHook {
	out := []ConceptHook{}
	if conceptID == "" {
		return out
	}
	for _, h := range agg.Hooks.Visual {
		if h.ConceptID == conceptID {
			out = append(out, ConceptHook{Kind: HookVisual, Hook: h})
		}
	}
	for _, h := range agg.Hooks.Audio {
		if h.ConceptID == conceptID {
			out = append(out, ConceptHook{Kind: HookAudio, Hook: h})
		}
	}
	return out
}
