package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
)

// Loader adapts the Loam library to the ports.SeedLoader interface.
//
// A seed document is a Markdown file whose frontmatter is SeedMetadata and
// whose body is the seed document (tagged YAML or the JSON envelope), or a
// JSON/YAML file carrying the entries inline.
type Loader struct {
	Repo *loam.TypedRepository[SeedMetadata]
}

var (
	_ ports.SeedLoader   = (*Loader)(nil)
	_ ports.SchemaSource = (*Loader)(nil)
	_ ports.Watchable    = (*Loader)(nil)
)

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[SeedMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// GetSeed retrieves the raw seed document for id.
// Loam resolves "board" to "board.md" (or .json/.yaml).
func (l *Loader) GetSeed(id string) ([]byte, error) {
	ctx := context.Background()

	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}

	if body := strings.TrimSpace(doc.Content); body != "" {
		return []byte(body), nil
	}

	if doc.Data.Entries == nil {
		return nil, fmt.Errorf("seed document %s has neither body nor entries", id)
	}
	bytes, err := json.Marshal(map[string]any{"entries": doc.Data.Entries})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inline entries of %s: %w", id, err)
	}
	return bytes, nil
}

// GetSchema returns the record declared in the frontmatter of id, normalized
// to the inline notation. Returns "" when the document declares none.
func (l *Loader) GetSchema(id string) (string, error) {
	doc, err := l.Repo.Get(context.Background(), id)
	if err != nil {
		return "", fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return normalizeSchema(doc.Data.Schema)
}

func normalizeSchema(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		rec, err := schema.ParseRecord(v)
		if err != nil {
			return "", fmt.Errorf("schema: %w", err)
		}
		return rec.String(), nil
	case map[string]any, map[any]any:
		var fields map[string]any
		if err := mapstructure.Decode(v, &fields); err != nil {
			return "", fmt.Errorf("failed to decode schema: %w", err)
		}
		typeMap := make(map[string]string, len(fields))
		for key, value := range fields {
			typeStr, err := formatSchemaType(value)
			if err != nil {
				return "", fmt.Errorf("schema.%s: %w", key, err)
			}
			typeMap[key] = typeStr
		}
		rec, err := schema.ParseTypeMap(typeMap)
		if err != nil {
			return "", fmt.Errorf("schema: %w", err)
		}
		return rec.String(), nil
	default:
		return "", fmt.Errorf("schema: expected string or mapping, got %T", raw)
	}
}

// formatSchemaType accepts the YAML sugar "[T]" written as a one-element list.
func formatSchemaType(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) != 1 {
			return "", fmt.Errorf("expected single element list for slice type")
		}
		inner, err := formatSchemaType(v[0])
		if err != nil {
			return "", err
		}
		return "[" + inner + "]", nil
	case []string:
		if len(v) != 1 {
			return "", fmt.Errorf("expected single element list for slice type")
		}
		return "[" + v[0] + "]", nil
	default:
		return "", fmt.Errorf("expected string or list, got %T", value)
	}
}

// ListSeeds lists all seed documents in the repository.
func (l *Loader) ListSeeds() ([]string, error) {
	ctx := context.Background()
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		// Use the ID from metadata if available, otherwise filename ID
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
