package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/session"
)

const boardSeed = `title: !text hello
tags: !list [a, b]
meta: !map {done: false}
`

func newTestServer() *Server {
	return NewServer(session.NewManager(memory.NewStore()), logging.NewNop())
}

func TestServer_CreateAndGet(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	created, err := s.handleCreate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"id":     "board",
		"seed":   boardSeed,
		"schema": "{title:text,tags:list<string>,meta:map{done:bool}}",
	})
	require.NoError(t, err)
	assert.Equal(t, "board", created.ID)
	assert.Equal(t, "{title:text,tags:list<string>,meta:map{done:bool}}", created.Schema)

	got, err := s.handleGetSnapshot(ctx, mcp.CallToolRequest{}, map[string]interface{}{"id": "board"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}, got.Data)

	list, err := s.handleList(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"board"}, list.IDs)
}

func TestServer_CreateRejects(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	_, err := s.handleCreate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"seed": ""})
	assert.Error(t, err)

	_, err = s.handleCreate(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"seed":   boardSeed,
		"schema": "{title:list<string>}",
	})
	assert.ErrorIs(t, err, domain.ErrShapeViolation)

	_, err = s.handleCreate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"seed": "n: 1\n"})
	assert.ErrorIs(t, err, domain.ErrShapeViolation, "untagged top-level values are plain")
}

func TestServer_ApplyMutations(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	_, err := s.handleCreate(ctx, mcp.CallToolRequest{}, map[string]interface{}{"id": "board", "seed": boardSeed})
	require.NoError(t, err)

	res, err := s.handleApply(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"id":        "board",
		"mutations": `[{"op":"list.push","name":"tags","value":"c"},{"op":"text.insert","name":"title","index":5,"text":"!"}]`,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello!", res.Data["title"])
	assert.Equal(t, []any{"a", "b", "c"}, res.Data["tags"])

	_, err = s.handleApply(ctx, mcp.CallToolRequest{}, map[string]interface{}{"id": "board", "mutations": `not json`})
	assert.Error(t, err)

	_, err = s.handleApply(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"id":        "board",
		"mutations": `[{"op":"text.insert","name":"tags","text":"x"}]`,
	})
	assert.ErrorIs(t, err, domain.ErrKindMismatch)
}
