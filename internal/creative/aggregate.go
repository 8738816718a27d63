package creative

// AggregateResult is the merged creative document persisted for a OneSheet.
// Every field is always present; a field whose stage did not complete holds
// that stage's empty value, so JSON consumers see [] rather than null.
type AggregateResult struct {
	Concepts      []Concept      `json:"concepts"`
	Iterations    []Iteration    `json:"iterations"`
	Hooks         HooksPayload   `json:"hooks"`
	Visuals       []Visual       `json:"visuals"`
	BestPractices []BestPractice `json:"bestPractices"`
}

// NewAggregate returns an aggregate with every field set to its empty value.
func NewAggregate() AggregateResult {
	return AggregateResult{
		Concepts:      []Concept{},
		Iterations:    []Iteration{},
		Hooks:         HooksPayload{Visual: []Hook{}, Audio: []Hook{}},
		Visuals:       []Visual{},
		BestPractices: []BestPractice{},
	}
}

// Merge folds payloads, in order, into a fresh aggregate. It does not retain
// references to the payload slices, so merging the same payloads twice
// yields identical documents.
func Merge(payloads ...Payload) AggregateResult {
	agg := NewAggregate()
	for _, p := range payloads {
		agg.Apply(p)
	}
	return agg
}

// Apply replaces the field owned by p's stage with a copy of p.
// A nil payload is ignored.
func (a *AggregateResult) Apply(p Payload) {
	switch v := Clone(p).(type) {
	case ConceptsPayload:
		a.Concepts = v.Concepts
	case IterationsPayload:
		a.Iterations = v.Iterations
	case HooksPayload:
		a.Hooks = v
	case VisualsPayload:
		a.Visuals = v.Visuals
	case BestPracticesPayload:
		a.BestPractices = v.Practices
	}
}

// Clone returns a deep copy of p with non-nil slices. Clone(nil) is nil.
func Clone(p Payload) Payload {
	switch v := p.(type) {
	case ConceptsPayload:
		out := cloneSlice(v.Concepts)
		for i := range out {
			if out[i].EvidenceIDs != nil {
				out[i].EvidenceIDs = cloneSlice(out[i].EvidenceIDs)
			}
		}
		return ConceptsPayload{Concepts: out}
	case IterationsPayload:
		out := cloneSlice(v.Iterations)
		for i := range out {
			if out[i].Changes != nil {
				out[i].Changes = cloneSlice(out[i].Changes)
			}
		}
		return IterationsPayload{Iterations: out}
	case HooksPayload:
		return HooksPayload{Visual: cloneSlice(v.Visual), Audio: cloneSlice(v.Audio)}
	case VisualsPayload:
		return VisualsPayload{Visuals: cloneSlice(v.Visuals)}
	case BestPracticesPayload:
		return BestPracticesPayload{Practices: cloneSlice(v.Practices)}
	default:
		return p
	}
}

// Normalize replaces nil fields with empty values. Documents decoded from
// storage written by older versions may lack fields.
func (a *AggregateResult) Normalize() {
	if a.Concepts == nil {
		a.Concepts = []Concept{}
	}
	if a.Iterations == nil {
		a.Iterations = []Iteration{}
	}
	if a.Hooks.Visual == nil {
		a.Hooks.Visual = []Hook{}
	}
	if a.Hooks.Audio == nil {
		a.Hooks.Audio = []Hook{}
	}
	if a.Visuals == nil {
		a.Visuals = []Visual{}
	}
	if a.BestPractices == nil {
		a.BestPractices = []BestPractice{}
	}
}

// Section returns the payload view of the field owned by stage.
func (a AggregateResult) Section(stage StageID) Payload {
	switch stage {
	case StageConcepts:
		return ConceptsPayload{Concepts: a.Concepts}
	case StageIterations:
		return IterationsPayload{Iterations: a.Iterations}
	case StageHooks:
		return a.Hooks
	case StageVisuals:
		return VisualsPayload{Visuals: a.Visuals}
	case StageBestPractices:
		return BestPracticesPayload{Practices: a.BestPractices}
	default:
		return nil
	}
}

// AllHooks returns visual hooks followed by audio hooks.
func (a AggregateResult) AllHooks() []Hook {
	out := make([]Hook, 0, len(a.Hooks.Visual)+len(a.Hooks.Audio))
	out = append(out, a.Hooks.Visual...)
	return append(out, a.Hooks.Audio...)
}

func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
