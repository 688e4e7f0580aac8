package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Summary renders a markdown report of a document: one table row per
// top-level name with its declared type and a short preview of its value.
func Summary(title string, rec schema.Record, data map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Schema: `%s`\n\n", rec.String())
	b.WriteString("| Name | Type | Value |\n")
	b.WriteString("|------|------|-------|\n")
	for _, f := range rec {
		name := f.Name
		if f.Optional {
			name += "?"
		}
		value := "_absent_"
		if v, ok := data[f.Name]; ok {
			value = "`" + preview(v, 40) + "`"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", name, f.Type.Name(), value)
	}
	return b.String()
}

func preview(v any, max int) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := strings.ReplaceAll(string(raw), "|", "\\|")
	if len([]rune(s)) > max {
		s = string([]rune(s)[:max-1]) + "…"
	}
	return s
}

// Tree renders data as an indented tree, labeling every node with the kind
// declared by rec. Kind labels are colored for the terminal profile p.
func Tree(p termenv.Profile, rec schema.Record, data map[string]any) string {
	var b strings.Builder
	for _, f := range rec {
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		writeNode(&b, p, 0, f.Name, f.Type, v)
	}
	return b.String()
}

var kindColors = map[domain.Kind]string{
	domain.KindText:  "#34d399",
	domain.KindList:  "#60a5fa",
	domain.KindMap:   "#f472b6",
	domain.KindPlain: "#9ca3af",
}

func writeNode(b *strings.Builder, p termenv.Profile, depth int, name string, t schema.Type, v any) {
	indent := strings.Repeat("  ", depth)
	kind := domain.KindPlain
	if t != nil {
		kind = t.Kind()
	}
	label := p.String("[" + kind.String() + "]").Foreground(p.Color(kindColors[kind]))

	switch kind {
	case domain.KindList:
		items, _ := v.([]any)
		fmt.Fprintf(b, "%s%s %s (%d)\n", indent, name, label, len(items))
		var elem schema.Type
		if lt, ok := t.(*schema.ListType); ok {
			elem = lt.Elem()
		}
		for i, it := range items {
			writeNode(b, p, depth+1, fmt.Sprint(i), elem, it)
		}
	case domain.KindMap:
		obj, _ := v.(map[string]any)
		fmt.Fprintf(b, "%s%s %s\n", indent, name, label)
		mt, _ := t.(*schema.MapType)
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var ft schema.Type
			if mt != nil && !mt.Open() {
				if f, ok := mt.Fields().Lookup(k); ok {
					ft = f.Type
				}
			}
			writeNode(b, p, depth+1, k, ft, obj[k])
		}
	default:
		fmt.Fprintf(b, "%s%s %s %s\n", indent, name, label, preview(v, 60))
	}
}
