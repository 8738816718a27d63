// Package creative defines the stages of the OneSheet creative-generation
// pipeline, the typed payload each stage produces, and the aggregate document
// those payloads are merged into.
package creative

// StageID identifies one independently generated section of the creative.
type StageID string

const (
	StageConcepts      StageID = "concepts"
	StageIterations    StageID = "iterations"
	StageHooks         StageID = "hooks"
	StageVisuals       StageID = "visuals"
	StageBestPractices StageID = "best-practices"
)

func (s StageID) String() string {
	return string(s)
}

// Valid reports whether s names a known stage.
func (s StageID) Valid() bool {
	_, ok := Lookup(s)
	return ok
}

// StageDefinition is the static description of a pipeline stage.
type StageDefinition struct {
	ID    StageID
	Order int

	// DependsOn lists stages whose ids this stage may reference. The
	// dependency is soft: a missing upstream output only drops the link.
	DependsOn []StageID

	// Shape validates and decodes the provider response for this stage.
	Shape Shape
}

var definitions = []StageDefinition{
	{ID: StageConcepts, Order: 0, Shape: conceptsShape},
	{ID: StageIterations, Order: 1, DependsOn: []StageID{StageConcepts}, Shape: iterationsShape},
	{ID: StageHooks, Order: 2, DependsOn: []StageID{StageConcepts}, Shape: hooksShape},
	{ID: StageVisuals, Order: 3, DependsOn: []StageID{StageConcepts}, Shape: visualsShape},
	{ID: StageBestPractices, Order: 4, Shape: bestPracticesShape},
}

// Definitions returns every stage definition in ascending order.
func Definitions() []StageDefinition {
	out := make([]StageDefinition, len(definitions))
	for i, d := range definitions {
		d.DependsOn = append([]StageID(nil), d.DependsOn...)
		out[i] = d
	}
	return out
}

// Lookup returns the definition for id.
func Lookup(id StageID) (StageDefinition, bool) {
	for _, d := range definitions {
		if d.ID == id {
			return d, true
		}
	}
	return StageDefinition{}, false
}
