package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// Markdown renders agg as a creative brief. Hooks are grouped under the
// concept they link to; hooks without a known concept are listed last.
func Markdown(targetID string, agg creative.AggregateResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# OneSheet: %s\n\n", targetID)

	titles := make(map[string]string, len(agg.Concepts))

	sb.WriteString("## Concepts\n\n")
	if len(agg.Concepts) == 0 {
		sb.WriteString("_None._\n\n")
	}
	for _, c := range agg.Concepts {
		titles[c.ID] = c.Title
		fmt.Fprintf(&sb, "### %s\n\n", c.Title)
		if c.Angle != "" {
			fmt.Fprintf(&sb, "- **Angle:** %s\n", c.Angle)
		}
		if c.Audience != "" {
			fmt.Fprintf(&sb, "- **Audience:** %s\n", c.Audience)
		}
		if len(c.EvidenceIDs) > 0 {
			fmt.Fprintf(&sb, "- **Evidence:** %s\n", strings.Join(c.EvidenceIDs, ", "))
		}
		if c.Description != "" {
			fmt.Fprintf(&sb, "\n%s\n", c.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Hooks\n\n")
	writeHooks(&sb, agg, titles)

	sb.WriteString("## Iterations\n\n")
	if len(agg.Iterations) == 0 {
		sb.WriteString("_None._\n\n")
	} else {
		sb.WriteString("| Source ad | Iteration | Changes |\n")
		sb.WriteString("|-----------|-----------|---------|\n")
		for _, it := range agg.Iterations {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", cell(it.SourceAdID), cell(it.Title), cell(strings.Join(it.Changes, "; ")))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Visuals\n\n")
	if len(agg.Visuals) == 0 {
		sb.WriteString("_None._\n\n")
	} else {
		for _, v := range agg.Visuals {
			line := v.Description
			if v.Format != "" {
				line += " (" + v.Format + ")"
			}
			if t, ok := titles[v.ConceptID]; ok {
				line += " [" + t + "]"
			}
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Best Practices\n\n")
	if len(agg.BestPractices) == 0 {
		sb.WriteString("_None._\n")
	}
	for _, bp := range agg.BestPractices {
		if bp.Category != "" {
			fmt.Fprintf(&sb, "- **%s:** %s\n", bp.Category, bp.Guidance)
		} else {
			fmt.Fprintf(&sb, "- %s\n", bp.Guidance)
		}
	}
	return sb.String()
}

type labeledHook struct {
	kind string
	creative.Hook
}

func writeHooks(sb *strings.Builder, agg creative.AggregateResult, titles map[string]string) {
	var all []labeledHook
	for _, h := range agg.Hooks.Visual {
		all = append(all, labeledHook{"visual", h})
	}
	for _, h := range agg.Hooks.Audio {
		all = append(all, labeledHook{"audio", h})
	}
	if len(all) == 0 {
		sb.WriteString("_None._\n\n")
		return
	}

	grouped := make(map[string][]labeledHook)
	var unlinked []labeledHook
	for _, h := range all {
		if _, ok := titles[h.ConceptID]; ok {
			grouped[h.ConceptID] = append(grouped[h.ConceptID], h)
		} else {
			unlinked = append(unlinked, h)
		}
	}

	emit := func(heading string, hooks []labeledHook) {
		fmt.Fprintf(sb, "### %s\n\n", heading)
		for _, h := range hooks {
			fmt.Fprintf(sb, "- _%s:_ %s\n", h.kind, h.Text)
		}
		sb.WriteString("\n")
	}
	// Concept order, not map order.
	for _, c := range agg.Concepts {
		if hooks := grouped[c.ID]; len(hooks) > 0 {
			emit(c.Title, hooks)
		}
	}
	if len(unlinked) > 0 {
		emit("Unlinked", unlinked)
	}
}

// cell escapes a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
