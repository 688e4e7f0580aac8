package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/ports"
)

// settle gives the file system time to finish writing before a rebuild.
var settle = 100 * time.Millisecond

// Watch builds the source document, hands the result to render, and rebuilds
// every time the source changes in its loam repository. It returns nil once
// ctx is done or the watcher stops.
func Watch(ctx context.Context, src Source, logger *slog.Logger, render func(*loom.Document, error), opts ...loom.Option) error {
	loader, err := src.Loader()
	if err != nil {
		return err
	}
	return watch(ctx, src, loader, logger, render, opts...)
}

func watch(ctx context.Context, src Source, loader ports.SeedLoader, logger *slog.Logger, render func(*loom.Document, error), opts ...loom.Option) error {
	w, ok := loader.(ports.Watchable)
	if !ok {
		return fmt.Errorf("%s cannot be watched: use a loam repository or a Markdown seed", src.Ref)
	}

	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	id := src.ID()
	logger.Info("Starting watcher", "source", src.Ref, "id", id)
	for {
		render(src.build(ctx, loader, opts...))

		if !waitChange(ctx, events, id, logger) {
			logger.Info("Stopping watcher")
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(settle):
		}
	}
}

// waitChange blocks until id changes. It reports false when watching ends.
func waitChange(ctx context.Context, events <-chan string, id string, logger *slog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case changed, ok := <-events:
			if !ok {
				return false
			}
			if changed != id {
				logger.Debug("Ignoring change", "id", changed)
				continue
			}
			logger.Info("Change detected, rebuilding", "id", id)
			return true
		}
	}
}
