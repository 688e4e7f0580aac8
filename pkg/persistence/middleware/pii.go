package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// Mask replaces string values under matching keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks string values of keys matching the patterns.
// Only strings are masked so a masked snapshot still satisfies its record
// and can be restored.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, snap *domain.Snapshot) error {
	// Copy so the caller's snapshot is untouched.
	cloned := *snap
	cloned.Data = maskObject(snap.Data, m.patterns)
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, docID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, docID)
}

func (m *piiMiddleware) Delete(ctx context.Context, docID string) error {
	return m.next.Delete(ctx, docID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskObject(obj map[string]any, patterns []*regexp.Regexp) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, ok := v.(string); ok && matches(k, patterns) {
			out[k] = Mask
			continue
		}
		out[k] = maskValue(v, patterns)
	}
	return out
}

func maskValue(v any, patterns []*regexp.Regexp) any {
	switch x := v.(type) {
	case map[string]any:
		return maskObject(x, patterns)
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			out[i] = maskValue(it, patterns)
		}
		return out
	default:
		return v
	}
}

func matches(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
