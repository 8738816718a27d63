package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
	"github.com/dusk-indust/onesheet/internal/research"
)

// validResponses holds one schema-valid document per stage.
var validResponses = map[creative.StageID]string{
	creative.StageConcepts:      `{"concepts":[{"id":"c1","title":"Dinner in minutes","evidenceIds":["ad-1"]}]}`,
	creative.StageIterations:    `{"iterations":[{"id":"i1","title":"Shorter intro","sourceAdId":"ad-1","conceptId":"c1"}]}`,
	creative.StageHooks:         `{"visual":[{"id":"h1","text":"Watch the timer","conceptId":"c1"}],"audio":[{"id":"h2","text":"Ding!","conceptId":"c1"}]}`,
	creative.StageVisuals:       `{"visuals":[{"id":"v1","description":"Split screen prep","conceptId":"c1"}]}`,
	creative.StageBestPractices: `{"practices":[{"id":"p1","guidance":"Show the product in the first second"}]}`,
}

type generateFunc func(ctx context.Context, req provider.Request) (json.RawMessage, error)

// fakeProvider answers with validResponses unless a stage is overridden.
type fakeProvider struct {
	mu        sync.Mutex
	overrides map[creative.StageID]generateFunc
	calls     []provider.Request
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{overrides: make(map[creative.StageID]generateFunc)}
}

func (f *fakeProvider) on(stage creative.StageID, fn generateFunc) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[stage] = fn
	return f
}

func (f *fakeProvider) fail(stage creative.StageID, err error) *fakeProvider {
	return f.on(stage, func(context.Context, provider.Request) (json.RawMessage, error) {
		return nil, err
	})
}

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.overrides[req.Stage]
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return json.RawMessage(validResponses[req.Stage]), nil
}

func (f *fakeProvider) requests() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.calls...)
}

func (f *fakeProvider) request(stage creative.StageID) (provider.Request, bool) {
	for _, r := range f.requests() {
		if r.Stage == stage {
			return r, true
		}
	}
	return provider.Request{}, false
}

// memSaver records saved aggregates.
type memSaver struct {
	mu    sync.Mutex
	saved map[string]creative.AggregateResult
	saves int
	err   error
}

func newMemSaver() *memSaver {
	return &memSaver{saved: make(map[string]creative.AggregateResult)}
}

func (m *memSaver) Save(_ context.Context, targetID string, agg creative.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.saved[targetID] = agg
	return nil
}

func (m *memSaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memSaver) get(targetID string) (creative.AggregateResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.saved[targetID]
	return agg, ok
}

// eventLog collects observer events.
type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ProgressEvent(nil), l.events...)
}

func testSources() *research.StaticSources {
	s := research.NewStaticSources()
	b := research.Bundle{
		ContextHub: []research.HubEntry{{ID: "h1", Title: "Voice", Content: "Warm"}},
		Audience: research.Audience{
			Personas: []research.Persona{{Name: "Busy parent"}},
			Angles:   []string{"convenience"},
		},
		AdPerformance: []research.AdRecord{
			{ID: "ad-1", Name: "UGC", Spend: 100, Revenue: 300},
			{ID: "ad-2", Name: "Static", Spend: 100, Revenue: 90},
		},
	}
	s.Put("sheet-1", b)
	s.Put("sheet-2", b)
	return s
}

var errBoom = errors.New("boom")
