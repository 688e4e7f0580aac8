package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom"
)

func TestWriteJSON(t *testing.T) {
	var compact, pretty bytes.Buffer
	v := map[string]any{"tags": []any{"a"}}

	require.NoError(t, WriteJSON(&compact, v, false))
	require.NoError(t, WriteJSON(&pretty, v, true))

	assert.Equal(t, "{\"tags\":[\"a\"]}\n", compact.String())
	assert.Equal(t, "{\n  \"tags\": [\n    \"a\"\n  ]\n}\n", pretty.String())
}

func TestInspect(t *testing.T) {
	d, err := loom.FromContext(context.Background(), boardEntries())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Inspect(&out, "board", d, InspectOptions{Profile: termenv.Ascii}))

	s := out.String()
	assert.Contains(t, s, "# board")
	assert.Contains(t, s, "| title | `text` |")
	assert.Contains(t, s, "owner [map]")
}

func TestInspect_Markdown(t *testing.T) {
	d, err := loom.FromContext(context.Background(), boardEntries())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Inspect(&out, "board", d, InspectOptions{Markdown: true, Width: 80, Profile: termenv.Ascii}))
	assert.Contains(t, out.String(), "board")
}

func TestInspect_Mermaid(t *testing.T) {
	d, err := loom.FromContext(context.Background(), boardEntries())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Inspect(&out, "board", d, InspectOptions{Mermaid: true}))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.Contains(t, out.String(), `n_owner{{"owner"}}`)
}
