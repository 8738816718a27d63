package creative

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when a provider response does not match the
// payload shape of its stage.
var ErrInvalidPayload = errors.New("creative: invalid payload")

// Payload is the typed output of one completed stage.
type Payload interface {
	Stage() StageID
	validate() error
}

// Compile-time interface checks.
var (
	_ Payload = ConceptsPayload{}
	_ Payload = IterationsPayload{}
	_ Payload = HooksPayload{}
	_ Payload = VisualsPayload{}
	_ Payload = BestPracticesPayload{}
)

// Concept is a top-level creative direction.
type Concept struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Angle       string   `json:"angle,omitempty"`
	Description string   `json:"description,omitempty"`
	Audience    string   `json:"audience,omitempty"`
	EvidenceIDs []string `json:"evidenceIds,omitempty"`
}

// Iteration is a proposed variant of an existing ad.
type Iteration struct {
	ID         string   `json:"id"`
	SourceAdID string   `json:"sourceAdId,omitempty"`
	Title      string   `json:"title"`
	Changes    []string `json:"changes,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
	ConceptID  string   `json:"conceptId,omitempty"`
}

// Hook is an opening line or shot. ConceptID is a soft reference.
type Hook struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ConceptID string `json:"conceptId,omitempty"`
}

// Visual is a visual direction for a concept.
type Visual struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Format      string `json:"format,omitempty"`
	ConceptID   string `json:"conceptId,omitempty"`
}

// BestPractice is a production guideline derived from research.
type BestPractice struct {
	ID       string `json:"id"`
	Category string `json:"category,omitempty"`
	Guidance string `json:"guidance"`
}

type ConceptsPayload struct {
	Concepts []Concept `json:"concepts"`
}

type IterationsPayload struct {
	Iterations []Iteration `json:"iterations"`
}

type HooksPayload struct {
	Visual []Hook `json:"visual"`
	Audio  []Hook `json:"audio"`
}

type VisualsPayload struct {
	Visuals []Visual `json:"visuals"`
}

type BestPracticesPayload struct {
	Practices []BestPractice `json:"practices"`
}

func (ConceptsPayload) Stage() StageID      { return StageConcepts }
func (IterationsPayload) Stage() StageID    { return StageIterations }
func (HooksPayload) Stage() StageID         { return StageHooks }
func (VisualsPayload) Stage() StageID       { return StageVisuals }
func (BestPracticesPayload) Stage() StageID { return StageBestPractices }

func (p ConceptsPayload) validate() error {
	ids := newIDSet(StageConcepts)
	for i, c := range p.Concepts {
		field := fmt.Sprintf("concepts[%d]", i)
		if err := ids.add(field, c.ID); err != nil {
			return err
		}
		if c.Title == "" {
			return invalid(StageConcepts, "%s: missing title", field)
		}
	}
	return nil
}

func (p IterationsPayload) validate() error {
	ids := newIDSet(StageIterations)
	for i, it := range p.Iterations {
		field := fmt.Sprintf("iterations[%d]", i)
		if err := ids.add(field, it.ID); err != nil {
			return err
		}
		if it.Title == "" {
			return invalid(StageIterations, "%s: missing title", field)
		}
	}
	return nil
}

func (p HooksPayload) validate() error {
	ids := newIDSet(StageHooks)
	check := func(kind string, hooks []Hook) error {
		for i, h := range hooks {
			field := fmt.Sprintf("%s[%d]", kind, i)
			if err := ids.add(field, h.ID); err != nil {
				return err
			}
			if h.Text == "" {
				return invalid(StageHooks, "%s: missing text", field)
			}
		}
		return nil
	}
	if err := check("visual", p.Visual); err != nil {
		return err
	}
	return check("audio", p.Audio)
}

func (p VisualsPayload) validate() error {
	ids := newIDSet(StageVisuals)
	for i, v := range p.Visuals {
		field := fmt.Sprintf("visuals[%d]", i)
		if err := ids.add(field, v.ID); err != nil {
			return err
		}
		if v.Description == "" {
			return invalid(StageVisuals, "%s: missing description", field)
		}
	}
	return nil
}

func (p BestPracticesPayload) validate() error {
	ids := newIDSet(StageBestPractices)
	for i, bp := range p.Practices {
		field := fmt.Sprintf("practices[%d]", i)
		if err := ids.add(field, bp.ID); err != nil {
			return err
		}
		if bp.Guidance == "" {
			return invalid(StageBestPractices, "%s: missing guidance", field)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// Shape describes the JSON document a stage must return: the top-level array
// fields that must be present, and the typed payload they decode into.
type Shape struct {
	Fields []string
	decode func(data []byte) (Payload, error)
}

// Decode validates raw against the shape and returns the typed payload.
// Every violation wraps ErrInvalidPayload.
func (s Shape) Decode(stage StageID, raw []byte) (Payload, error) {
	if s.decode == nil {
		return nil, invalid(stage, "no shape registered")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, invalid(stage, "not a JSON object: %v", err)
	}
	for _, f := range s.Fields {
		v, ok := top[f]
		if !ok {
			return nil, invalid(stage, "missing field %q", f)
		}
		if !bytes.HasPrefix(bytes.TrimSpace(v), []byte("[")) {
			return nil, invalid(stage, "field %q is not an array", f)
		}
	}
	p, err := s.decode(raw)
	if err != nil {
		return nil, invalid(stage, "%v", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func shapeOf[P Payload](fields ...string) Shape {
	return Shape{
		Fields: fields,
		decode: func(data []byte) (Payload, error) {
			var p P
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

var (
	conceptsShape      = shapeOf[ConceptsPayload]("concepts")
	iterationsShape    = shapeOf[IterationsPayload]("iterations")
	hooksShape         = shapeOf[HooksPayload]("visual", "audio")
	visualsShape       = shapeOf[VisualsPayload]("visuals")
	bestPracticesShape = shapeOf[BestPracticesPayload]("practices")
)

// Decode validates raw against the shape registered for stage.
func Decode(stage StageID, raw []byte) (Payload, error) {
	def, ok := Lookup(stage)
	if !ok {
		return nil, invalid(stage, "unknown stage")
	}
	return def.Shape.Decode(stage, raw)
}

// EmptyPayload returns the schema-defined empty value for stage.
func EmptyPayload(stage StageID) Payload {
	switch stage {
	case StageConcepts:
		return ConceptsPayload{Concepts: []Concept{}}
	case StageIterations:
		return IterationsPayload{Iterations: []Iteration{}}
	case StageHooks:
		return HooksPayload{Visual: []Hook{}, Audio: []Hook{}}
	case StageVisuals:
		return VisualsPayload{Visuals: []Visual{}}
	case StageBestPractices:
		return BestPracticesPayload{Practices: []BestPractice{}}
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func invalid(stage StageID, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, stage, fmt.Sprintf(format, args...))
}

type idSet struct {
	stage StageID
	seen  map[string]bool
}

func newIDSet(stage StageID) *idSet {
	return &idSet{stage: stage, seen: make(map[string]bool)}
}

func (s *idSet) add(field, id string) error {
	if id == "" {
		return invalid(s.stage, "%s: missing id", field)
	}
	if s.seen[id] {
		return invalid(s.stage, "%s: duplicate id %q", field, id)
	}
	s.seen[id] = true
	return nil
}
