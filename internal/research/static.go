package research

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Compile-time interface checks.
var (
	_ Sources = (*StaticSources)(nil)
	_ Sources = (*CountingSources)(nil)
)

// Bundle is all research for one OneSheet.
type Bundle struct {
	ContextHub    []HubEntry   `json:"contextHub,omitempty"`
	Audience      Audience     `json:"audienceResearch"`
	Competitors   []Competitor `json:"competitorResearch,omitempty"`
	AdPerformance []AdRecord   `json:"adAudit,omitempty"`
}

// StaticSources serves research from memory, keyed by target id.
// Safe for concurrent use.
type StaticSources struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewStaticSources returns an empty StaticSources.
func NewStaticSources() *StaticSources {
	return &StaticSources{bundles: make(map[string]Bundle)}
}

// Put replaces the research bundle for targetID.
func (s *StaticSources) Put(targetID string, b Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[targetID] = b
}

func (s *StaticSources) bundle(targetID string) Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundles[targetID]
}

// ContextHub returns the hub entries for targetID.
func (s *StaticSources) ContextHub(_ context.Context, targetID string) ([]HubEntry, error) {
	return nonNil(s.bundle(targetID).ContextHub), nil
}

// AudienceResearch returns the audience research for targetID.
func (s *StaticSources) AudienceResearch(_ context.Context, targetID string) (Audience, error) {
	a := s.bundle(targetID).Audience
	return Audience{
		Personas:   nonNil(a.Personas),
		PainPoints: nonNil(a.PainPoints),
		Angles:     nonNil(a.Angles),
	}, nil
}

// Competitors returns the competitor profiles for targetID.
func (s *StaticSources) Competitors(_ context.Context, targetID string) ([]Competitor, error) {
	return nonNil(s.bundle(targetID).Competitors), nil
}

// AdPerformance returns the ad-performance table for targetID.
func (s *StaticSources) AdPerformance(_ context.Context, targetID string) ([]AdRecord, error) {
	return nonNil(s.bundle(targetID).AdPerformance), nil
}

// LoadFile reads a JSON research bundle and registers it under targetID.
func LoadFile(path, targetID string) (*StaticSources, error) {
	b, err := readBundle(path)
	if err != nil {
		return nil, err
	}
	s := NewStaticSources()
	s.Put(targetID, b)
	return s, nil
}

// LoadDir registers every <targetID>.json bundle in dir. A missing dir
// yields an empty StaticSources.
func LoadDir(dir string) (*StaticSources, error) {
	s := NewStaticSources()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("research: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		b, err := readBundle(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		s.Put(strings.TrimSuffix(name, ".json"), b)
	}
	return s, nil
}

func readBundle(path string) (Bundle, error) {
	var b Bundle
	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("research: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("research: parse %s: %w", path, err)
	}
	return b, nil
}

func nonNil[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// CountingSources wraps a Sources and records how many times each category
// was read.
type CountingSources struct {
	Sources

	mu     sync.Mutex
	counts map[Category]int
}

// NewCountingSources wraps inner.
func NewCountingSources(inner Sources) *CountingSources {
	return &CountingSources{Sources: inner, counts: make(map[Category]int)}
}

// Count returns how many times c was read.
func (c *CountingSources) Count(cat Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[cat]
}

func (c *CountingSources) hit(cat Category) {
	c.mu.Lock()
	c.counts[cat]++
	c.mu.Unlock()
}

func (c *CountingSources) ContextHub(ctx context.Context, targetID string) ([]HubEntry, error) {
	c.hit(CategoryContextHub)
	return c.Sources.ContextHub(ctx, targetID)
}

func (c *CountingSources) AudienceResearch(ctx context.Context, targetID string) (Audience, error) {
	c.hit(CategoryAudience)
	return c.Sources.AudienceResearch(ctx, targetID)
}

func (c *CountingSources) Competitors(ctx context.Context, targetID string) ([]Competitor, error) {
	c.hit(CategoryCompetitors)
	return c.Sources.Competitors(ctx, targetID)
}

func (c *CountingSources) AdPerformance(ctx context.Context, targetID string) ([]AdRecord, error) {
	c.hit(CategoryAdPerformance)
	return c.Sources.AdPerformance(ctx, targetID)
}
