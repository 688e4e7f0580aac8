package memory_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRuntime_Contract(t *testing.T) {
	ports.RunRuntimeContract(t, memory.NewRuntime())
}

func TestDoc_PatchDescribesChange(t *testing.T) {
	rt := memory.NewRuntime()
	doc := rt.NewDoc()
	m, err := doc.GetMap("meta")
	require.NoError(t, err)
	require.NoError(t, m.Set("done", false))

	var got ports.Update
	cancel := doc.Observe(func(u ports.Update) { got = u })
	defer cancel()

	require.NoError(t, m.Set("done", true))

	var patch map[string]any
	require.NoError(t, json.Unmarshal(got.Patch, &patch))
	assert.Equal(t, map[string]any{"meta": map[string]any{"done": true}}, patch)
	assert.Equal(t, []string{"meta"}, got.Changed)
}

func TestDoc_NestedChangesTouchRoot(t *testing.T) {
	rt := memory.NewRuntime()
	doc := rt.NewDoc()
	arr, err := doc.GetArray("items")
	require.NoError(t, err)

	child := rt.NewMap()
	require.NoError(t, child.Set("n", 1.0))
	require.NoError(t, arr.Push(child))

	var changed [][]string
	cancel := doc.Observe(func(u ports.Update) { changed = append(changed, u.Changed) })
	defer cancel()

	require.NoError(t, child.Set("n", 2.0))
	assert.Equal(t, [][]string{{"items"}}, changed)
	assert.Equal(t, map[string]any{"items": []any{map[string]any{"n": 2.0}}}, doc.ToJSON())
}

func TestDoc_RollbackDetachesIntegratedContainers(t *testing.T) {
	rt := memory.NewRuntime()
	doc := rt.NewDoc()
	child := rt.NewText()

	err := doc.Transact(nil, func() error {
		arr, err := doc.GetArray("items")
		if err != nil {
			return err
		}
		if err := arr.Push(child); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, doc.Names())

	// the container is free again after rollback
	arr, err := doc.GetArray("items")
	require.NoError(t, err)
	require.NoError(t, arr.Push(child))
	assert.Equal(t, 1, arr.Len())
}

func TestDoc_RemovedContainersStopTouchingDocument(t *testing.T) {
	rt := memory.NewRuntime()
	doc := rt.NewDoc()
	root, err := doc.GetMap("root")
	require.NoError(t, err)

	child := rt.NewText()
	require.NoError(t, root.Set("t", child))
	root.Delete("t")

	var count int
	cancel := doc.Observe(func(ports.Update) { count++ })
	defer cancel()

	require.NoError(t, child.Insert(0, "orphan"))
	assert.Zero(t, count)
	assert.ErrorIs(t, root.Set("t", child), domain.ErrAlreadyIntegrated)
}

func TestDoc_RemovedSubtreeStopsTouchingDocument(t *testing.T) {
	rt := memory.NewRuntime()
	doc := rt.NewDoc()
	root, err := doc.GetMap("root")
	require.NoError(t, err)

	a, b := rt.NewMap(), rt.NewMap()
	require.NoError(t, a.Set("b", b))
	require.NoError(t, root.Set("a", a))
	root.Delete("a")

	var count int
	cancel := doc.Observe(func(ports.Update) { count++ })
	defer cancel()

	require.NoError(t, b.Set("x", 1))
	late := rt.NewText()
	require.NoError(t, b.Set("t", late))
	require.NoError(t, late.Insert(0, "late"))
	assert.Zero(t, count)

	_, snap := doc.Snapshot()
	assert.Equal(t, map[string]any{"root": map[string]any{}}, snap)

	// A reverted delete brings the whole subtree back.
	require.NoError(t, root.Set("c", rt.NewMap()))
	c, _ := root.Get("c")
	grand := rt.NewArray()
	require.NoError(t, c.(*memory.Map).Set("g", grand))
	err = doc.Transact(nil, func() error {
		root.Delete("c")
		return errors.New("abort")
	})
	require.Error(t, err)
	seq, _ := doc.Snapshot()
	require.NoError(t, grand.Push("kept"))
	next, snap := doc.Snapshot()
	assert.Equal(t, seq+1, next)
	assert.Equal(t, map[string]any{"c": map[string]any{"g": []any{"kept"}}}, snap["root"])
}

func TestText_RejectsInvalidUTF8(t *testing.T) {
	txt := memory.NewRuntime().NewText()
	err := txt.Insert(0, "a\xffb")

	var shape *domain.ShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "utf-8 text", shape.Expected)
	assert.Zero(t, txt.Len())
}

func TestMap_ForEachToleratesMutation(t *testing.T) {
	m := memory.NewRuntime().NewMap()
	require.NoError(t, m.Set("a", 1))
	require.NoError(t, m.Set("b", 2))

	var seen []string
	m.ForEach(func(key string, _ any) {
		seen = append(seen, key)
		m.Delete("b")
	})
	assert.Equal(t, []string{"a"}, seen)
}

func TestMap_PlainValuesAreDeepCopied(t *testing.T) {
	m := memory.NewRuntime().NewMap()
	grid := [][]string{{"a", "b"}}
	index := map[string][]int{"x": {1, 2}}
	require.NoError(t, m.Set("grid", grid))
	require.NoError(t, m.Set("index", index))

	grid[0][0] = "changed"
	index["x"][0] = 99

	g, _ := m.Get("grid")
	assert.Equal(t, [][]string{{"a", "b"}}, g)
	i, _ := m.Get("index")
	assert.Equal(t, map[string][]int{"x": {1, 2}}, i)
}

func TestDoc_EmptyTransactionPublishesNothing(t *testing.T) {
	doc := memory.NewRuntime().NewDoc()
	var count int
	cancel := doc.Observe(func(ports.Update) { count++ })
	defer cancel()

	require.NoError(t, doc.Transact(nil, func() error { return nil }))
	assert.Zero(t, count)
	seq, snap := doc.Snapshot()
	assert.Zero(t, seq)
	assert.Empty(t, snap)
}

func TestDoc_NewDocWithGUID(t *testing.T) {
	doc := memory.NewRuntime().NewDocWithGUID("fixed")
	assert.Equal(t, "fixed", doc.GUID())
}

type foreignText struct{ ports.Text }

func TestArray_RejectsForeignContainers(t *testing.T) {
	arr := memory.NewRuntime().NewArray()
	err := arr.Push(foreignText{})
	assert.ErrorIs(t, err, domain.ErrShapeViolation)
	assert.Zero(t, arr.Len())
}
