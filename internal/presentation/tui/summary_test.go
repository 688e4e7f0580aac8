package tui

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/schema"
)

func boardRecord(t *testing.T) schema.Record {
	rec, err := schema.ParseRecord("{title:text,tags:list<string>,meta:map{done:bool},notes?:text}")
	require.NoError(t, err)
	return rec
}

var boardData = map[string]any{
	"title": "hello",
	"tags":  []any{"a", "b"},
	"meta":  map[string]any{"done": false},
}

func TestSummary(t *testing.T) {
	out := Summary("board", boardRecord(t), boardData)

	assert.Contains(t, out, "# board")
	assert.Contains(t, out, "| title | `text` | `\"hello\"` |")
	assert.Contains(t, out, "| tags | `list<string>` | `[\"a\",\"b\"]` |")
	assert.Contains(t, out, "| notes? | `text` | _absent_ |")
}

func TestPreview_Truncates(t *testing.T) {
	assert.Equal(t, `"abcd…`, preview("abcdefghij", 6))
	assert.Equal(t, `"a\|b"`, preview("a|b", 10))
}

func TestTree(t *testing.T) {
	out := Tree(termenv.Ascii, boardRecord(t), boardData)

	expected := "" +
		"title [text] \"hello\"\n" +
		"tags [list] (2)\n" +
		"  0 [plain] \"a\"\n" +
		"  1 [plain] \"b\"\n" +
		"meta [map]\n" +
		"  done [plain] false\n"
	assert.Equal(t, expected, out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_____")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(80)
	require.NoError(t, err)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}
