package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

func board() *Builder {
	b := New()
	b.Text("title", "hello")
	b.List("tags", schema.String(), "a", "b")
	b.Map("meta").
		Field("done", schema.Bool(), false).
		OptionalField("owner", schema.String(), nil)
	b.Text("notes", "").Deferred()
	return b
}

func TestBuilder_Record(t *testing.T) {
	rec := board().Record()
	assert.Equal(t, "{title:text,tags:list<string>,meta:map{done:bool,owner?:string},notes?:text}", rec.String())
}

func TestBuilder_Document(t *testing.T) {
	d, err := board().Document()
	require.NoError(t, err)

	data, err := d.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}, data, "deferred entries are not seeded")

	_, err = d.GetText("tags")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)

	notes, err := d.GetText("notes")
	require.NoError(t, err)
	assert.Equal(t, "", notes.String())

	view, err := d.Map("meta")
	require.NoError(t, err)
	require.NoError(t, view.Set("owner", "me"))
	require.NoError(t, view.Delete("owner"))
	assert.ErrorIs(t, view.Delete("done"), domain.ErrRequiredKey)
}

func TestBuilder_ReplacesInPlace(t *testing.T) {
	b := New()
	b.Text("a", "first")
	b.List("b", schema.Int(), 1)
	b.Text("a", "second")

	rec, entries, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Names())
	assert.Equal(t, seed.Text("second"), entries[0].Seed)

	b.Map("m").Field("k", schema.Int(), 1).Field("k", schema.String(), "x")
	_, entries, err = b.Build()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "x"}, seed.Strip(entries[2].Seed))
}

func TestBuilder_RejectsDisagreement(t *testing.T) {
	b := New()
	b.List("tags", schema.Int(), "not-an-int")

	_, _, err := b.Build()
	assert.ErrorIs(t, err, domain.ErrShapeViolation)

	_, err = b.Document()
	assert.Error(t, err)
}

func TestBuilder_OpenMapAndOptions(t *testing.T) {
	b := New()
	b.OpenMap("cfg", seed.F("anything", 1))
	b.Text("title", "x").Optional()

	var updates int
	d, err := b.Document(loom.WithObserver(func(u ports.Update) { updates++ }))
	require.NoError(t, err)
	assert.Equal(t, 1, updates)

	rec, err := d.Schema()
	require.NoError(t, err)
	assert.Equal(t, "{cfg:map,title?:text}", rec.String())
}

func TestBuilder_Loader(t *testing.T) {
	loader, err := board().Loader("board")
	require.NoError(t, err)

	ids, err := loader.ListSeeds()
	require.NoError(t, err)
	assert.Equal(t, []string{"board"}, ids)

	d, err := loom.Load(t.Context(), loader, "board")
	require.NoError(t, err)
	data, _ := d.ToJSON()
	assert.Equal(t, "hello", data["title"])
}
