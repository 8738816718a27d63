// Package research provides read-only access to the upstream research that
// grounds creative generation: context-hub entries, audience research,
// competitor data, and ad-performance records.
package research

import "context"

// Category names one research source.
type Category string

const (
	CategoryContextHub    Category = "contextHub"
	CategoryAudience      Category = "audienceResearch"
	CategoryCompetitors   Category = "competitorResearch"
	CategoryAdPerformance Category = "adAudit"
)

// Sources is the accessor for research belonging to a OneSheet. A category
// with no data yields an empty container, not an error; errors are reserved
// for failures to reach the backing store.
type Sources interface {
	ContextHub(ctx context.Context, targetID string) ([]HubEntry, error)
	AudienceResearch(ctx context.Context, targetID string) (Audience, error)
	Competitors(ctx context.Context, targetID string) ([]Competitor, error)
	AdPerformance(ctx context.Context, targetID string) ([]AdRecord, error)
}

// HubEntry is a brand document or note from the context hub.
type HubEntry struct {
	ID      string `json:"id"`
	Kind    string `json:"kind,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Persona is a target-audience profile.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Audience is the audience-research container.
type Audience struct {
	Personas   []Persona `json:"personas"`
	PainPoints []string  `json:"painPoints"`
	Angles     []string  `json:"angles"`
}

// CompetitorAd is an ad observed for a competitor.
type CompetitorAd struct {
	ID   string `json:"id"`
	Hook string `json:"hook,omitempty"`
	Copy string `json:"copy,omitempty"`
}

// Competitor is one competitor profile.
type Competitor struct {
	Name        string         `json:"name"`
	Positioning string         `json:"positioning,omitempty"`
	Ads         []CompetitorAd `json:"ads,omitempty"`
}

// AdRecord is one row of the ad-performance table.
type AdRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Hook        string  `json:"hook,omitempty"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// CTR is clicks over impressions, zero when there were no impressions.
func (r AdRecord) CTR() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions)
}

// ROAS is revenue over spend, zero when nothing was spent.
func (r AdRecord) ROAS() float64 {
	if r.Spend == 0 {
		return 0
	}
	return r.Revenue / r.Spend
}
