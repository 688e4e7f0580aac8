package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
	"github.com/aretw0/loom/pkg/session"
)

// DocumentResponse is the structured result of every document tool.
type DocumentResponse struct {
	ID     string         `json:"id" jsonschema_description:"Document identifier"`
	Seq    uint64         `json:"seq" jsonschema_description:"Sequence number of the last committed transaction"`
	Schema string         `json:"schema" jsonschema_description:"Declared record, e.g. {title:text,tags:list<string>}"`
	Data   map[string]any `json:"data" jsonschema_description:"JSON projection of the document"`
}

// ListResponse is the structured result of list_documents.
type ListResponse struct {
	IDs []string `json:"ids" jsonschema_description:"Stored document identifiers"`
}

// Server exposes a session.Manager as an MCP Server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(manager *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		manager:   manager,
		mcpServer: server.NewMCPServer("loom-mcp", strings.TrimSpace(loom.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the identifiers of all stored documents."),
		mcp.WithOutputSchema[ListResponse](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Get the last committed JSON projection of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithOutputSchema[DocumentResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetSnapshot))

	s.mcpServer.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document from a seed document. Seeds are YAML with !text, !list and !map tags on top-level values, or JSON envelopes."),
		mcp.WithString("id", mcp.Description("Document identifier (optional, defaults to a generated GUID)")),
		mcp.WithString("seed", mcp.Required(), mcp.Description("Seed document, e.g. 'title: !text hello'")),
		mcp.WithString("schema", mcp.Description("Record notation, e.g. {title:text,tags:list<string>} (optional, inferred when omitted)")),
		mcp.WithOutputSchema[DocumentResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	s.mcpServer.AddTool(mcp.NewTool("apply_mutations",
		mcp.WithDescription("Apply a batch of edits atomically. Ops: text.insert, text.delete, list.push, list.insert, list.delete, map.set, map.delete."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithString("mutations", mcp.Required(), mcp.Description(`JSON array, e.g. [{"op":"list.push","name":"tags","value":"c"}]`)),
		mcp.WithOutputSchema[DocumentResponse](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a stored document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document identifier")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["id"].(string)
		if err := s.manager.Delete(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcp.NewToolResultText("deleted " + id), nil
	})
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ListResponse, error) {
	ids, err := s.manager.List(ctx)
	if err != nil {
		return ListResponse{}, fmt.Errorf("list failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ListResponse{IDs: ids}, nil
}

func (s *Server) handleGetSnapshot(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DocumentResponse, error) {
	id, _ := args["id"].(string)
	snap, err := s.manager.Snapshot(ctx, id)
	if err != nil {
		return DocumentResponse{}, fmt.Errorf("get snapshot failed: %w", err)
	}
	return fromSnapshot(snap), nil
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DocumentResponse, error) {
	id, _ := args["id"].(string)
	raw, _ := args["seed"].(string)
	if strings.TrimSpace(raw) == "" {
		return DocumentResponse{}, errors.New("seed is required")
	}

	entries, err := seed.UnmarshalDocument([]byte(raw))
	if err != nil {
		return DocumentResponse{}, fmt.Errorf("invalid seed: %w", err)
	}

	opts := []loom.Option{loom.WithSanitizer(), loom.WithOrigin("mcp")}
	if text, _ := args["schema"].(string); text != "" {
		rec, err := schema.ParseRecord(text)
		if err != nil {
			return DocumentResponse{}, fmt.Errorf("invalid schema: %w", err)
		}
		opts = append(opts, loom.WithSchema(rec))
	}

	d, err := s.manager.Create(ctx, id, entries, opts...)
	if err != nil {
		s.logger.Warn("MCP create_document rejected", "err", err)
		return DocumentResponse{}, fmt.Errorf("create failed: %w", err)
	}
	snap, err := d.Snapshot()
	if err != nil {
		return DocumentResponse{}, err
	}
	if id != "" {
		snap.DocID = id
	}
	return fromSnapshot(snap), nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DocumentResponse, error) {
	id, _ := args["id"].(string)
	raw, _ := args["mutations"].(string)

	var muts []loom.Mutation
	if err := json.Unmarshal([]byte(raw), &muts); err != nil {
		return DocumentResponse{}, fmt.Errorf("invalid mutations: %w", err)
	}

	snap, err := s.manager.Update(ctx, id, func(d *loom.Document) error {
		return d.Apply(muts...)
	})
	if err != nil {
		return DocumentResponse{}, fmt.Errorf("apply failed: %w", err)
	}
	return fromSnapshot(snap), nil
}

func fromSnapshot(snap *domain.Snapshot) DocumentResponse {
	return DocumentResponse{ID: snap.DocID, Seq: snap.Seq, Schema: snap.Schema, Data: snap.Data}
}

func (s *Server) registerResources() {
	// EXPOSE: loom://docs
	s.mcpServer.AddResource(mcp.NewResource("loom://docs", "Stored Documents",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "loom://docs",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
