package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRuntimeContract runs a suite of tests to verify that a Runtime implementation
// adheres to the defined interface contract.
func RunRuntimeContract(t *testing.T, rt Runtime) {
	t.Run("Text", func(t *testing.T) {
		txt := rt.NewText()
		assert.Equal(t, domain.KindText, txt.Kind())
		require.NoError(t, txt.Insert(0, "héllo"))
		require.NoError(t, txt.Insert(5, " wörld"))
		assert.Equal(t, "héllo wörld", txt.String())
		assert.Equal(t, 11, txt.Len())

		require.NoError(t, txt.Delete(0, 6))
		assert.Equal(t, "wörld", txt.ToJSON())
		assert.ErrorIs(t, txt.Insert(42, "x"), domain.ErrIndexOutOfRange)
		assert.ErrorIs(t, txt.Delete(3, 10), domain.ErrIndexOutOfRange)
		assert.ErrorIs(t, txt.Insert(0, "a\xffb"), domain.ErrShapeViolation)
		assert.Equal(t, "wörld", txt.String())
	})

	t.Run("Array", func(t *testing.T) {
		arr := rt.NewArray()
		assert.Equal(t, domain.KindList, arr.Kind())
		require.NoError(t, arr.Insert(0, "a", "b", "c"))
		require.NoError(t, arr.Push("d"))
		require.NoError(t, arr.Insert(1, "x"))
		assert.Equal(t, []any{"a", "x", "b", "c", "d"}, arr.ToArray())

		require.NoError(t, arr.Delete(1, 2))
		assert.Equal(t, []any{"a", "c", "d"}, arr.ToJSON())

		v, err := arr.Get(2)
		require.NoError(t, err)
		assert.Equal(t, "d", v)
		_, err = arr.Get(3)
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)

		var seen []int
		for i := range arr.All() {
			seen = append(seen, i)
		}
		assert.Equal(t, []int{0, 1, 2}, seen)
	})

	t.Run("Map", func(t *testing.T) {
		m := rt.NewMap()
		assert.Equal(t, domain.KindMap, m.Kind())
		require.NoError(t, m.Set("b", 1))
		require.NoError(t, m.Set("a", 2))
		require.NoError(t, m.Set("b", 3))
		assert.Equal(t, []string{"b", "a"}, m.Keys(), "overwrite keeps insertion position")
		assert.Equal(t, 2, m.Len())

		v, ok := m.Get("b")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
		assert.Equal(t, []any{3, 2}, m.Values())

		var visited []string
		m.ForEach(func(key string, value any) {
			visited = append(visited, key)
		})
		assert.Equal(t, []string{"b", "a"}, visited)

		entries := map[string]any{}
		for k, v := range m.All() {
			entries[k] = v
		}
		assert.Equal(t, map[string]any{"b": 3, "a": 2}, entries)

		assert.True(t, m.Has("a"))
		assert.True(t, m.Delete("a"))
		assert.False(t, m.Delete("a"))
		assert.False(t, m.Has("a"))
		assert.Equal(t, map[string]any{"b": 3}, m.ToJSON())
	})

	t.Run("Nested ToJSON", func(t *testing.T) {
		doc := rt.NewDoc()
		root, err := doc.GetMap("root")
		require.NoError(t, err)

		inner := rt.NewArray()
		require.NoError(t, inner.Push("x"))
		txt := rt.NewText()
		require.NoError(t, txt.Insert(0, "t"))
		require.NoError(t, inner.Push(txt))
		require.NoError(t, root.Set("items", inner))
		require.NoError(t, root.Set("plain", map[string]any{"kind": "text"}))

		assert.Equal(t, map[string]any{
			"root": map[string]any{
				"items": []any{"x", "t"},
				"plain": map[string]any{"kind": "text"},
			},
		}, doc.ToJSON())
	})

	t.Run("Plain values are copied", func(t *testing.T) {
		m := rt.NewMap()
		src := map[string]any{"n": 1.0}
		require.NoError(t, m.Set("obj", src))
		src["n"] = 2.0
		assert.Equal(t, map[string]any{"obj": map[string]any{"n": 1.0}}, m.ToJSON())
	})

	t.Run("Fetch or create roots", func(t *testing.T) {
		doc := rt.NewDoc()
		assert.NotEmpty(t, doc.GUID())

		a, err := doc.GetText("title")
		require.NoError(t, err)
		b, err := doc.GetText("title")
		require.NoError(t, err)
		require.NoError(t, a.Insert(0, "hi"))
		assert.Equal(t, "hi", b.String(), "same name and kind yields the same container")

		_, err = doc.GetMap("title")
		assert.ErrorIs(t, err, domain.ErrKindConflict)

		_, err = doc.GetArray("tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"title", "tags"}, doc.Names())

		c, ok := doc.Lookup("tags")
		assert.True(t, ok)
		assert.Equal(t, domain.KindList, c.Kind())
		_, ok = doc.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("Double integration rejected", func(t *testing.T) {
		doc := rt.NewDoc()
		arr, err := doc.GetArray("list")
		require.NoError(t, err)

		child := rt.NewMap()
		require.NoError(t, arr.Push(child))
		assert.ErrorIs(t, arr.Push(child), domain.ErrAlreadyIntegrated)

		root, err := doc.GetMap("other")
		require.NoError(t, err)
		assert.ErrorIs(t, root.Set("k", child), domain.ErrAlreadyIntegrated)
		assert.ErrorIs(t, root.Set("k", arr), domain.ErrAlreadyIntegrated)
	})

	t.Run("Transact commits once", func(t *testing.T) {
		doc := rt.NewDoc()
		var updates []Update
		cancel := doc.Observe(func(u Update) { updates = append(updates, u) })
		defer cancel()

		err := doc.Transact("test", func() error {
			txt, err := doc.GetText("a")
			if err != nil {
				return err
			}
			if err := txt.Insert(0, "x"); err != nil {
				return err
			}
			// nested transactions join the outer one
			return doc.Transact("inner", func() error {
				m, err := doc.GetMap("b")
				if err != nil {
					return err
				}
				return m.Set("k", true)
			})
		})
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, "test", updates[0].Origin)
		assert.Equal(t, []string{"a", "b"}, updates[0].Changed)
		assert.Equal(t, map[string]any{"a": "x", "b": map[string]any{"k": true}}, updates[0].Snapshot)
		assert.NotEmpty(t, updates[0].Patch)

		seq, snap := doc.Snapshot()
		assert.Equal(t, updates[0].Seq, seq)
		assert.Equal(t, updates[0].Snapshot, snap)
	})

	t.Run("Transact reverts on error", func(t *testing.T) {
		doc := rt.NewDoc()
		m, err := doc.GetMap("m")
		require.NoError(t, err)
		require.NoError(t, m.Set("keep", 1))

		var updates []Update
		cancel := doc.Observe(func(u Update) { updates = append(updates, u) })
		defer cancel()

		boom := errors.New("boom")
		err = doc.Transact(nil, func() error {
			_ = m.Set("keep", 2)
			_ = m.Set("new", 3)
			m.Delete("keep")
			arr, _ := doc.GetArray("extra")
			_ = arr.Push("x")
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, updates)
		assert.Equal(t, map[string]any{"m": map[string]any{"keep": 1}}, doc.ToJSON())
		assert.Equal(t, []string{"m"}, doc.Names())
	})

	t.Run("Implicit transactions", func(t *testing.T) {
		doc := rt.NewDoc()
		var count int
		cancel := doc.Observe(func(Update) { count++ })

		txt, err := doc.GetText("t")
		require.NoError(t, err)
		require.NoError(t, txt.Insert(0, "a"))
		require.NoError(t, txt.Insert(1, "b"))
		assert.Equal(t, 3, count)

		cancel()
		require.NoError(t, txt.Insert(2, "c"))
		assert.Equal(t, 3, count)
		_, snap := doc.Snapshot()
		assert.Equal(t, "abc", snap["t"])
	})

	t.Run("Concurrent snapshot readers", func(t *testing.T) {
		doc := rt.NewDoc()
		done := make(chan struct{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		go func() {
			defer close(done)
			for ctx.Err() == nil {
				_, snap := doc.Snapshot()
				if n := len(snap); n != 0 && n != 3 {
					t.Errorf("observed partial snapshot with %d entries", n)
					return
				}
				if len(snap) == 3 {
					return
				}
			}
		}()

		err := doc.Transact(nil, func() error {
			for _, name := range []string{"x", "y", "z"} {
				m, err := doc.GetMap(name)
				if err != nil {
					return err
				}
				if err := m.Set("v", name); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		<-done
	})
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	docID := "contract-test-doc-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.Snapshot {
		return &domain.Snapshot{
			DocID:   id,
			Seq:     7,
			Schema:  "map{title:text}",
			Data:    map[string]any{"title": "hello", "tags": []any{"a", "b"}},
			SavedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(docID)
		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.DocID, loaded.DocID)
		assert.Equal(t, snap.Seq, loaded.Seq)
		assert.Equal(t, snap.Schema, loaded.Schema)
		assert.Equal(t, "hello", loaded.Data["title"])
		assert.Equal(t, []any{"a", "b"}, loaded.Data["tags"])
		assert.True(t, snap.SavedAt.Equal(loaded.SavedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+docID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot(docID)))

		require.NoError(t, store.Delete(ctx, docID), "Delete should not return error")

		_, err := store.Load(ctx, docID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := docID + "-1"
		id2 := docID + "-2"
		_ = store.Save(ctx, newSnapshot(id1))
		_ = store.Save(ctx, newSnapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
