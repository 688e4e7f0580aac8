package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// MaxItems bounds the list elements drawn per list; the rest collapse into one node.
const MaxItems = 5

// Overlay contains dynamic state data to visualize on the graph.
type Overlay struct {
	// Changed names the top-level containers touched by the last update.
	Changed []string
}

// GenerateMermaid produces a Mermaid flowchart of a document: the root, its
// top-level containers and their nested values. It applies semantic styling:
// - Document root: ((Circle))
// - Text: [Rectangle]
// - List: [[Subroutine]]
// - Map: {{Hexagon}}
// - Plain value: (Rounded)
// Optional names are linked with dotted arrows; absent ones are still drawn.
func GenerateMermaid(title string, rec schema.Record, data map[string]any, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    doc((\"%s\"))\n", escape(title))

	var absent []string
	for _, f := range rec {
		id := nodeID([]string{f.Name})
		arrow := "-->"
		if f.Optional {
			arrow = "-.->"
		}
		v, ok := data[f.Name]
		if !ok {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, escape(f.Name+": "+f.Type.Name()))
			absent = append(absent, id)
		} else {
			writeNode(&sb, []string{f.Name}, f.Name, f.Type, v)
		}
		fmt.Fprintf(&sb, "    doc %s %s\n", arrow, id)
	}

	if len(absent) > 0 {
		sb.WriteString("    classDef absent stroke-dasharray: 5 5,color:#888;\n")
		for _, id := range absent {
			fmt.Fprintf(&sb, "    class %s absent;\n", id)
		}
	}

	// Apply Overlay Styles
	if overlay != nil && len(overlay.Changed) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[string]bool)
		for _, name := range overlay.Changed {
			if _, ok := rec.Lookup(name); !ok || seen[name] {
				continue
			}
			seen[name] = true
			fmt.Fprintf(&sb, "    class %s changed;\n", nodeID([]string{name}))
		}
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, path []string, label string, t schema.Type, v any) {
	id := nodeID(path)
	kind := domain.KindPlain
	if t != nil {
		kind = t.Kind()
	}

	switch kind {
	case domain.KindText:
		fmt.Fprintf(sb, "    %s[\"%s\"]\n", id, escape(label+": "+preview(v)))
	case domain.KindList:
		items, _ := v.([]any)
		fmt.Fprintf(sb, "    %s[[\"%s (%d)\"]]\n", id, escape(label), len(items))
		var elem schema.Type
		if lt, ok := t.(*schema.ListType); ok {
			elem = lt.Elem()
		}
		for i, it := range items {
			if i == MaxItems {
				more := nodeID(domain.JoinPath(path, "more"))
				fmt.Fprintf(sb, "    %s(\"… +%d more\")\n", more, len(items)-MaxItems)
				fmt.Fprintf(sb, "    %s --> %s\n", id, more)
				break
			}
			child := domain.JoinPath(path, fmt.Sprint(i))
			writeNode(sb, child, fmt.Sprint(i), elem, it)
			fmt.Fprintf(sb, "    %s --> %s\n", id, nodeID(child))
		}
	case domain.KindMap:
		obj, _ := v.(map[string]any)
		fmt.Fprintf(sb, "    %s{{\"%s\"}}\n", id, escape(label))
		mt, _ := t.(*schema.MapType)
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var ft schema.Type
			arrow := "-->"
			if mt != nil && !mt.Open() {
				if f, ok := mt.Fields().Lookup(k); ok {
					ft = f.Type
					if f.Optional {
						arrow = "-.->"
					}
				}
			}
			child := domain.JoinPath(path, k)
			writeNode(sb, child, k, ft, obj[k])
			fmt.Fprintf(sb, "    %s %s %s\n", id, arrow, nodeID(child))
		}
	default:
		fmt.Fprintf(sb, "    %s(\"%s\")\n", id, escape(label+" = "+preview(v)))
	}
}

func preview(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(raw)
	if r := []rune(s); len(r) > 30 {
		s = string(r[:29]) + "…"
	}
	return s
}

// escape keeps labels inside Mermaid double quotes.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func nodeID(path []string) string {
	return "n_" + sanitizeMermaidID(strings.Join(path, "__"))
}

func sanitizeMermaidID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteString(fmt.Sprintf("x%x", r))
		}
	}
	return b.String()
}
