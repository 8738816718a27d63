package creative

// ConceptIDs returns the ids of the concepts in p, or nil when p is not a
// concepts payload.
func ConceptIDs(p Payload) []string {
	cp, ok := p.(ConceptsPayload)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(cp.Concepts))
	for _, c := range cp.Concepts {
		ids = append(ids, c.ID)
	}
	return ids
}

// PruneReferences returns a copy of p in which every concept reference not
// contained in known is cleared. A link to a concept that was never produced
// is simply dropped.
func PruneReferences(p Payload, known map[string]bool) Payload {
	keep := func(id string) string {
		if id != "" && known[id] {
			return id
		}
		return ""
	}

	switch v := p.(type) {
	case IterationsPayload:
		out := cloneSlice(v.Iterations)
		for i := range out {
			out[i].ConceptID = keep(out[i].ConceptID)
		}
		return IterationsPayload{Iterations: out}
	case HooksPayload:
		visual := cloneSlice(v.Visual)
		for i := range visual {
			visual[i].ConceptID = keep(visual[i].ConceptID)
		}
		audio := cloneSlice(v.Audio)
		for i := range audio {
			audio[i].ConceptID = keep(audio[i].ConceptID)
		}
		return HooksPayload{Visual: visual, Audio: audio}
	case VisualsPayload:
		out := cloneSlice(v.Visuals)
		for i := range out {
			out[i].ConceptID = keep(out[i].ConceptID)
		}
		return VisualsPayload{Visuals: out}
	default:
		return p
	}
}
