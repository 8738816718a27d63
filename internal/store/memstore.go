package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore keeps encoded documents in a map. Safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string][]byte)}
}

// Save encodes agg and stores it under targetID.
func (m *MemStore) Save(_ context.Context, targetID string, agg creative.AggregateResult) error {
	if targetID == "" {
		return fmt.Errorf("store: save: empty target id")
	}
	doc, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", targetID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[targetID] = doc
	return nil
}

// Load decodes the stored document for targetID.
func (m *MemStore) Load(_ context.Context, targetID string) (creative.AggregateResult, error) {
	m.mu.RLock()
	doc, ok := m.docs[targetID]
	m.mu.RUnlock()
	if !ok {
		return creative.AggregateResult{}, fmt.Errorf("%w: %s", ErrNotFound, targetID)
	}
	return decodeDocument(targetID, doc)
}

// HooksForConcept filters the stored hooks by concept.
func (m *MemStore) HooksForConcept(ctx context.Context, targetID, conceptID string) ([]ConceptHook, error) {
	agg, err := m.Load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return conceptHooks(agg, conceptID), nil
}

// Targets returns the saved target ids.
func (m *MemStore) Targets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for id := range m.docs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}

func decodeDocument(targetID string, doc []byte) (creative.AggregateResult, error) {
	var agg creative.AggregateResult
	if err := json.Unmarshal(doc, &agg); err != nil {
		return creative.AggregateResult{}, fmt.Errorf("store: decode %s: %w", targetID, err)
	}
	agg.Normalize()
	return agg, nil
}
