package loom_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

func scenario() []seed.Field {
	return []seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a", "b")),
		seed.F("meta", seed.Map(seed.F("done", false))),
	}
}

func scenarioSchema() schema.Record {
	return schema.Record{
		schema.Required("title", schema.Text()),
		schema.Required("tags", schema.List(schema.String())),
		schema.Required("meta", schema.Map(schema.Required("done", schema.Bool()))),
	}
}

func TestFrom_Scenario(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	data, err := doc.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}, data)

	title, err := doc.GetText("title")
	require.NoError(t, err)
	assert.Equal(t, "hello", title.String())

	tags, err := doc.GetArray("tags")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, tags.ToArray())

	meta, err := doc.GetMap("meta")
	require.NoError(t, err)
	done, ok := meta.Get("done")
	require.True(t, ok)
	assert.Equal(t, false, done)
}

func TestGetText_RejectsList(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	_, err = doc.GetText("tags")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKindMismatch)
	assert.ErrorIs(t, err, domain.ErrShapeViolation)

	var se *domain.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"tags"}, se.Path)
	assert.Equal(t, "text", se.Expected)
	assert.Equal(t, "list", se.Actual)

	// The rejected access does not disturb the document.
	data, _ := doc.ToJSON()
	assert.Equal(t, []any{"a", "b"}, data["tags"])
}

func TestAccessors_UnknownName(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	_, err = doc.GetMap("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownName)

	_, err = loom.GetAs[ports.Text](doc, "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownName)

	_, ok := doc.Get("missing")
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	c, ok := doc.Get("tags")
	require.True(t, ok)
	assert.Equal(t, domain.KindList, c.Kind())
	assert.Equal(t, 2, c.Len())
}

func TestGetAs(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	arr, err := loom.GetAs[ports.Array](doc, "tags")
	require.NoError(t, err)
	assert.Equal(t, 2, arr.Len())

	concrete, err := loom.GetAs[*memory.Array](doc, "tags")
	require.NoError(t, err)
	assert.Same(t, arr.(*memory.Array), concrete)

	_, err = loom.GetAs[ports.Map](doc, "tags")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)

	_, err = loom.GetAs[*memory.Text](doc, "tags")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)
}

func TestZeroDocument(t *testing.T) {
	var doc loom.Document

	assert.False(t, doc.Constructed())

	_, err := doc.ToJSON()
	assert.ErrorIs(t, err, domain.ErrNotConstructed)
	_, err = doc.GetText("title")
	assert.ErrorIs(t, err, domain.ErrNotConstructed)
	_, err = loom.GetAs[ports.Text](&doc, "title")
	assert.ErrorIs(t, err, domain.ErrNotConstructed)
	_, err = doc.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNotConstructed)
	assert.ErrorIs(t, doc.Transact(func() error { return nil }), domain.ErrNotConstructed)

	_, ok := doc.Get("title")
	assert.False(t, ok)

	var nilDoc *loom.Document
	_, err = nilDoc.Names()
	assert.ErrorIs(t, err, domain.ErrNotConstructed)
}

func TestFrom_IsAtomic(t *testing.T) {
	var updates []ports.Update
	doc, err := loom.From(scenario(),
		loom.WithOrigin("seed"),
		loom.WithObserver(func(u ports.Update) { updates = append(updates, u) }),
	)
	require.NoError(t, err)

	require.Len(t, updates, 1, "construction must commit exactly once")
	u := updates[0]
	assert.Equal(t, "seed", u.Origin)
	assert.Equal(t, []string{"title", "tags", "meta"}, u.Changed)

	data, _ := doc.ToJSON()
	assert.Equal(t, data, u.Snapshot)
	assert.JSONEq(t, `{"title":"hello","tags":["a","b"],"meta":{"done":false}}`, string(u.Patch))
}

// readingRuntime starts concurrent snapshot readers on every new document.
type readingRuntime struct {
	*memory.Runtime
	stop  chan struct{}
	wg    sync.WaitGroup
	mu    sync.Mutex
	sizes map[int]int
}

func (r *readingRuntime) NewDoc() ports.Doc {
	d := r.Runtime.NewDoc()
	for range 4 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-r.stop:
					return
				default:
				}
				_, data := d.Snapshot()
				r.mu.Lock()
				r.sizes[len(data)]++
				r.mu.Unlock()
			}
		}()
	}
	return d
}

func TestFrom_ConcurrentReadersSeeAllOrNothing(t *testing.T) {
	rt := &readingRuntime{Runtime: memory.NewRuntime(), stop: make(chan struct{}), sizes: map[int]int{}}

	doc, err := loom.From(scenario(), loom.WithRuntime(rt))
	require.NoError(t, err)

	d, _ := doc.Doc()
	for {
		rt.mu.Lock()
		n := rt.sizes[3]
		rt.mu.Unlock()
		if n > 0 {
			break
		}
		_, _ = d.Snapshot()
	}
	close(rt.stop)
	rt.wg.Wait()

	for size := range rt.sizes {
		assert.Contains(t, []int{0, 3}, size, "reader observed a partial document")
	}
}

var errBoom = errors.New("boom")

type failingDoc struct {
	ports.Doc
	failOn string
}

func (d failingDoc) GetMap(name string) (ports.Map, error) {
	if name == d.failOn {
		return nil, errBoom
	}
	return d.Doc.GetMap(name)
}

type failingRuntime struct {
	*memory.Runtime
	inner ports.Doc
}

func (r *failingRuntime) NewDoc() ports.Doc {
	r.inner = r.Runtime.NewDoc()
	return failingDoc{Doc: r.inner, failOn: "meta"}
}

func TestFrom_RollsBackOnFailure(t *testing.T) {
	rt := &failingRuntime{Runtime: memory.NewRuntime()}
	var updates int
	var failed *domain.ConstructEvent

	doc, err := loom.From(scenario(),
		loom.WithRuntime(rt),
		loom.WithObserver(func(ports.Update) { updates++ }),
		loom.WithHooks(domain.Hooks{
			OnConstructFailed: func(_ context.Context, e *domain.ConstructEvent) { failed = e },
		}),
	)
	require.ErrorIs(t, err, errBoom)
	assert.Nil(t, doc)

	assert.Zero(t, updates, "observers must not see a failed construction")
	assert.Empty(t, rt.inner.ToJSON())
	assert.Empty(t, rt.inner.Names())
	seq, snap := rt.inner.Snapshot()
	assert.Zero(t, seq)
	assert.Empty(t, snap)

	require.NotNil(t, failed)
	assert.ErrorIs(t, failed.Err, errBoom)
	assert.Equal(t, 3, failed.Entries)
}

func TestFrom_RejectsInvalidUTF8(t *testing.T) {
	var count int
	_, err := loom.From([]seed.Field{seed.F("title", seed.Text("a\xffb"))},
		loom.WithObserver(func(ports.Update) { count++ }))
	assert.ErrorIs(t, err, domain.ErrShapeViolation)
	assert.Zero(t, count)
}

func TestFrom_ShapeChecks(t *testing.T) {
	tests := []struct {
		name    string
		entries []seed.Field
		want    error
	}{
		{
			name:    "plain top-level seed",
			entries: []seed.Field{seed.F("count", 3)},
			want:    domain.ErrShapeViolation,
		},
		{
			name:    "nil seed",
			entries: []seed.Field{{Key: "title"}},
			want:    domain.ErrShapeViolation,
		},
		{
			name: "nil nested seed",
			entries: []seed.Field{
				seed.F("items", seed.ListSeed{Items: []seed.Seed{nil}}),
			},
			want: domain.ErrShapeViolation,
		},
		{
			name: "duplicate names",
			entries: []seed.Field{
				seed.F("title", seed.Text("a")),
				seed.F("title", seed.Text("b")),
			},
			want: domain.ErrDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var updates int
			_, err := loom.From(tt.entries, loom.WithObserver(func(ports.Update) { updates++ }))
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, updates)
		})
	}
}

func TestFrom_DuplicateNameIsPrecondition(t *testing.T) {
	_, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("a")),
		seed.F("title", seed.List()),
	})
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	var pe *domain.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"title"}, pe.Path)
}

func TestFrom_WithSchema(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		doc, err := loom.From(scenario(), loom.WithSchema(scenarioSchema()))
		require.NoError(t, err)
		names, _ := doc.Names()
		assert.Equal(t, []string{"title", "tags", "meta"}, names)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		entries := scenario()
		entries[1] = seed.F("tags", seed.Text("a,b"))
		_, err := loom.From(entries, loom.WithSchema(scenarioSchema()))
		assert.ErrorIs(t, err, domain.ErrKindMismatch)
	})

	t.Run("plain element type", func(t *testing.T) {
		entries := scenario()
		entries[1] = seed.F("tags", seed.List("a", 2))
		_, err := loom.From(entries, loom.WithSchema(scenarioSchema()))
		assert.ErrorIs(t, err, domain.ErrShapeViolation)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := loom.From(scenario()[:2], loom.WithSchema(scenarioSchema()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "meta")
	})

	t.Run("plain field in record", func(t *testing.T) {
		rec := append(scenarioSchema(), schema.Optional("count", schema.Int()))
		_, err := loom.From(scenario(), loom.WithSchema(rec))
		assert.ErrorIs(t, err, domain.ErrShapeViolation)
	})

	t.Run("optional root created on access", func(t *testing.T) {
		rec := append(scenarioSchema(), schema.Optional("notes", schema.Text()))
		doc, err := loom.From(scenario(), loom.WithSchema(rec))
		require.NoError(t, err)

		data, _ := doc.ToJSON()
		assert.NotContains(t, data, "notes")

		notes, err := doc.GetText("notes")
		require.NoError(t, err)
		require.NoError(t, notes.Insert(0, "later"))

		data, _ = doc.ToJSON()
		assert.Equal(t, "later", data["notes"])
	})
}

func TestRoundTrip(t *testing.T) {
	cases := map[string]seed.Seed{
		"empty text":   seed.Text(""),
		"unicode text": seed.Text("héllo 🌍"),
		"plain list":   seed.List(1, "two", 3.5, nil, true),
		"nested": seed.Map(
			seed.F("title", seed.Text("t")),
			seed.F("rows", seed.List(
				seed.Map(seed.F("cells", seed.List(seed.Text("a"), seed.Text("b")))),
				map[string]any{"raw": []any{1, 2}},
			)),
		),
		"empty map": seed.Map(),
	}

	rt := memory.NewRuntime()
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := seed.Materialize(rt, s)
			require.NoError(t, err)
			if diff := cmp.Diff(seed.Strip(s), seed.ToJSON(v)); diff != "" {
				t.Errorf("ToJSON(Materialize(s)) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTrip_Document(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	data, _ := doc.ToJSON()
	assert.Equal(t, seed.StripDocument(scenario()), data)

	reseeded, err := doc.Reseed()
	require.NoError(t, err)

	again, err := loom.From(reseeded)
	require.NoError(t, err)
	againData, _ := again.ToJSON()
	if diff := cmp.Diff(data, againData); diff != "" {
		t.Errorf("reseeded document mismatch (-want +got):\n%s", diff)
	}
}

func TestTagNonCollision(t *testing.T) {
	lookalike := map[string]any{"kind": "text", "text": "hi"}
	doc, err := loom.From([]seed.Field{
		seed.F("meta", seed.Map(seed.F("payload", lookalike))),
	})
	require.NoError(t, err)

	meta, err := doc.GetMap("meta")
	require.NoError(t, err)
	v, ok := meta.Get("payload")
	require.True(t, ok)

	_, isContainer := v.(ports.Container)
	assert.False(t, isContainer, "a plain map carrying a kind key must stay plain")
	assert.Equal(t, lookalike, v)
}

func TestMapKeys_LastWins(t *testing.T) {
	doc, err := loom.From([]seed.Field{
		seed.F("m", seed.Map(seed.F("a", 1), seed.F("b", 2), seed.F("a", 3))),
	})
	require.NoError(t, err)

	m, err := doc.GetMap("m")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, 2, m.Len())
	v, _ := m.Get("a")
	assert.Equal(t, 3, v)
}

func TestListOrder(t *testing.T) {
	doc, err := loom.From([]seed.Field{
		seed.F("l", seed.List(seed.Text("x"), "y", seed.Map(), "y")),
	})
	require.NoError(t, err)

	data, _ := doc.ToJSON()
	assert.Equal(t, []any{"x", "y", map[string]any{}, "y"}, data["l"])
}

func TestMapView(t *testing.T) {
	rec := schema.Record{
		schema.Required("meta", schema.Map(
			schema.Required("done", schema.Bool()),
			schema.Optional("note", schema.Text()),
			schema.Optional("sub", schema.Map(schema.Optional("x", schema.Int()))),
		)),
	}
	doc, err := loom.From([]seed.Field{
		seed.F("meta", seed.Map(seed.F("done", false), seed.F("sub", seed.Map()))),
	}, loom.WithSchema(rec))
	require.NoError(t, err)

	view, err := doc.Map("meta")
	require.NoError(t, err)

	require.NoError(t, view.Set("done", true))
	require.NoError(t, view.Set("note", seed.Text("n")))
	assert.Equal(t, map[string]any{"done": true, "note": "n", "sub": map[string]any{}}, view.ToJSON())
	assert.Equal(t, []string{"done", "sub", "note"}, view.Keys())

	values := view.Values()
	require.Len(t, values, 3)
	assert.Equal(t, true, values[0])
	var visited []string
	view.ForEach(func(key string, _ any) { visited = append(visited, key) })
	assert.Equal(t, view.Keys(), visited)
	for key, v := range view.All() {
		if key == "note" {
			assert.Equal(t, "n", v.(ports.Text).String())
		}
	}

	err = view.Set("done", "yes")
	assert.ErrorIs(t, err, domain.ErrShapeViolation)

	err = view.Set("note", "plain string")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)

	err = view.Set("other", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownName)

	err = view.Delete("done")
	assert.ErrorIs(t, err, domain.ErrRequiredKey)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.True(t, view.Has("done"))

	require.NoError(t, view.Delete("note"))
	assert.False(t, view.Has("note"))
	require.NoError(t, view.Delete("note"), "deleting an absent optional key is a no-op")

	sub, err := view.Map("sub")
	require.NoError(t, err)
	require.NoError(t, sub.Set("x", 7))
	err = sub.Set("x", "seven")
	var se *domain.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"meta", "sub", "x"}, se.Path)

	data, _ := doc.ToJSON()
	assert.Equal(t, map[string]any{"done": true, "sub": map[string]any{"x": 7}}, data["meta"])
}

func TestMapView_Inferred(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	view, err := doc.Map("meta")
	require.NoError(t, err)

	// Inferred records declare every seeded key as required.
	assert.ErrorIs(t, view.Delete("done"), domain.ErrRequiredKey)
	assert.ErrorIs(t, view.Set("extra", 1), domain.ErrUnknownName)
}

func TestMapView_Open(t *testing.T) {
	rec := schema.Record{schema.Required("bag", schema.AnyMap())}
	doc, err := loom.From([]seed.Field{seed.F("bag", seed.Map())}, loom.WithSchema(rec))
	require.NoError(t, err)

	view, err := doc.Map("bag")
	require.NoError(t, err)
	assert.True(t, view.Type().Open())

	require.NoError(t, view.Set("anything", seed.List(1, 2)))
	require.NoError(t, view.Set("plain", map[string]any{"k": "v"}))
	require.NoError(t, view.Delete("plain"))
	assert.Equal(t, map[string]any{"anything": []any{1, 2}}, view.ToJSON())
}

func TestTransact_Batches(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	var updates []ports.Update
	cancel, err := doc.Observe(func(u ports.Update) { updates = append(updates, u) })
	require.NoError(t, err)
	defer cancel()

	title, _ := doc.GetText("title")
	tags, _ := doc.GetArray("tags")
	err = doc.Transact(func() error {
		if err := title.Insert(5, " world"); err != nil {
			return err
		}
		return tags.Push("c")
	})
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, []string{"title", "tags"}, updates[0].Changed)

	snap, err := doc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Equal(t, "hello world", snap.Data["title"])
	assert.Equal(t, "{title:text,tags:list<string>,meta:map{done:bool}}", snap.Schema)
}

func TestDecode(t *testing.T) {
	doc, err := loom.From(scenario())
	require.NoError(t, err)

	var out struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
		Meta  struct {
			Done bool `json:"done"`
		} `json:"meta"`
	}
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, "hello", out.Title)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.False(t, out.Meta.Done)
}

func TestElements(t *testing.T) {
	doc, err := loom.From([]seed.Field{
		seed.F("names", seed.List("a", "b")),
		seed.F("rows", seed.List(seed.Map(), seed.Map())),
		seed.F("mixed", seed.List("a", 1)),
	})
	require.NoError(t, err)

	names, _ := doc.GetArray("names")
	strs, err := loom.Elements[string](names)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)

	rows, _ := doc.GetArray("rows")
	maps, err := loom.Elements[ports.Map](rows)
	require.NoError(t, err)
	assert.Len(t, maps, 2)

	mixed, _ := doc.GetArray("mixed")
	_, err = loom.Elements[string](mixed)
	assert.ErrorIs(t, err, domain.ErrShapeViolation)
}

func TestHooks(t *testing.T) {
	var constructed *domain.ConstructEvent
	doc, err := loom.From(scenario(), loom.WithHooks(domain.Hooks{
		OnConstructed: func(_ context.Context, e *domain.ConstructEvent) { constructed = e },
	}))
	require.NoError(t, err)

	require.NotNil(t, constructed)
	guid, _ := doc.GUID()
	assert.Equal(t, guid, constructed.DocID)
	assert.Equal(t, 3, constructed.Entries)
	assert.NoError(t, constructed.Err)
}

func TestWithSanitizer(t *testing.T) {
	_, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("bad\xffbyte")),
	}, loom.WithSanitizer())
	assert.ErrorIs(t, err, seed.ErrInvalidUTF8)

	doc, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("fine\ttext\x00")),
	}, loom.WithSanitizer())
	require.NoError(t, err)
	data, _ := doc.ToJSON()
	assert.Equal(t, "fine\ttext", data["title"])
}

type schemaLoader struct {
	*memory.Loader
	schemas map[string]string
}

func (l schemaLoader) GetSchema(id string) (string, error) {
	return l.schemas[id], nil
}

func TestLoad(t *testing.T) {
	inner, err := memory.NewFromEntries(map[string][]seed.Field{"board": scenario()})
	require.NoError(t, err)

	t.Run("inferred", func(t *testing.T) {
		doc, err := loom.Load(context.Background(), inner, "board")
		require.NoError(t, err)
		data, _ := doc.ToJSON()
		assert.Equal(t, seed.StripDocument(scenario()), data)
	})

	t.Run("declared schema", func(t *testing.T) {
		loader := schemaLoader{Loader: inner, schemas: map[string]string{
			"board": "{title:text,tags:list<string>,meta:map{done:bool},notes?:text}",
		}}
		doc, err := loom.Load(context.Background(), loader, "board")
		require.NoError(t, err)
		rec, _ := doc.Schema()
		assert.Equal(t, []string{"notes"}, schema.OptionalKeyof(rec))
	})

	t.Run("schema violation", func(t *testing.T) {
		loader := schemaLoader{Loader: inner, schemas: map[string]string{"board": "{title:list<string>}"}}
		_, err := loom.Load(context.Background(), loader, "board")
		assert.ErrorIs(t, err, domain.ErrShapeViolation)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := loom.Load(context.Background(), inner, "missing")
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	repoPath := t.TempDir()
	content := []byte(`---
id: board
schema: "{title:text,tags:list<string>,meta:map{done:bool}}"
---
title: !text hello
tags: !list [a, b]
meta: !map
  done: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "board.md"), content, 0644))

	doc, err := loom.Open(context.Background(), repoPath, "board")
	require.NoError(t, err)

	data, _ := doc.ToJSON()
	assert.Equal(t, map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}, data)

	_, err = doc.GetText("tags")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)
}
