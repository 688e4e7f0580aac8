package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates document access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex            // guards locks and docs
	locks map[string]*lockEntry // active per-document locks
	docs  map[string]*loom.Document

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	docOpts []loom.Option
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDocumentOptions applies opts to every document the Manager builds.
func WithDocumentOptions(opts ...loom.Option) Option {
	return func(m *Manager) {
		m.docOpts = append(m.docOpts, opts...)
	}
}

// NewManager creates a new document Manager with the given snapshot store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		docs:    make(map[string]*loom.Document),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(docID) after unlocking.
func (m *Manager) acquire(docID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		entry = &lockEntry{}
		m.locks[docID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[docID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, docID)
	}
}

func (m *Manager) cached(docID string) (*loom.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[docID]
	return d, ok
}

func (m *Manager) remember(docID string, d *loom.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d == nil {
		delete(m.docs, docID)
		return
	}
	m.docs[docID] = d
}

// Create builds a document from entries and persists its first snapshot.
// An empty id is replaced by the runtime GUID. Creating an ID that is already
// stored fails with domain.ErrDocumentExists.
func (m *Manager) Create(ctx context.Context, id string, entries []seed.Field, opts ...loom.Option) (*loom.Document, error) {
	all := append(append([]loom.Option{}, m.docOpts...), opts...)
	d, err := loom.FromContext(ctx, entries, all...)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id, _ = d.GUID()
	}

	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		if _, ok := m.cached(id); ok {
			return fmt.Errorf("%s: %w", id, domain.ErrDocumentExists)
		}
		_, err := m.store.Load(ctx, id)
		if err == nil {
			return fmt.Errorf("%s: %w", id, domain.ErrDocumentExists)
		}
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("failed to check document existence: %w", err)
		}
		if _, err := m.persist(ctx, id, d); err != nil {
			return err
		}
		m.remember(id, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("document created", "doc_id", id)
	return d, nil
}

// Open returns the live document for id, rebuilding it from its stored
// snapshot when it is not held in memory.
func (m *Manager) Open(ctx context.Context, id string) (*loom.Document, error) {
	var d *loom.Document
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		d, err = m.open(ctx, id, false)
		return err
	})
	return d, err
}

// open must be called with the lock for id held. With fresh set the cached
// document is ignored and the stored snapshot wins.
func (m *Manager) open(ctx context.Context, id string, fresh bool) (*loom.Document, error) {
	if d, ok := m.cached(id); ok && !fresh {
		return d, nil
	}
	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := m.restore(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", id, err)
	}
	m.remember(id, d)
	m.logger.Debug("document restored", "doc_id", id, "seq", snap.Seq)
	return d, nil
}

func (m *Manager) restore(ctx context.Context, snap *domain.Snapshot) (*loom.Document, error) {
	if snap.Schema == "" {
		return nil, fmt.Errorf("snapshot carries no schema")
	}
	rec, err := schema.ParseRecord(snap.Schema)
	if err != nil {
		return nil, err
	}
	entries, err := schema.ReseedDocument(rec, snap.Data)
	if err != nil {
		return nil, err
	}
	opts := append(append([]loom.Option{}, m.docOpts...), loom.WithSchema(rec))
	return loom.FromContext(ctx, entries, opts...)
}

// Update runs fn against the document inside one transaction and persists
// the committed result. If fn fails the transaction is rolled back and
// nothing is stored.
//
// With a distributed locker other instances may have written since this one
// last did, so the document is always rebuilt from the store first.
func (m *Manager) Update(ctx context.Context, id string, fn func(*loom.Document) error) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		d, err := m.open(ctx, id, m.locker != nil)
		if err != nil {
			return err
		}
		if err := d.Transact(func() error { return fn(d) }); err != nil {
			return err
		}
		snap, err = m.persist(ctx, id, d)
		return err
	})
	return snap, err
}

func (m *Manager) persist(ctx context.Context, id string, d *loom.Document) (*domain.Snapshot, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	snap.DocID = id
	if err := m.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}
	return snap, nil
}

// Snapshot returns the last stored snapshot for id.
func (m *Manager) Snapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, id)
		return err
	})
	return snap, err
}

// Evict drops the in-memory document for id. The stored snapshot is kept.
func (m *Manager) Evict(id string) {
	m.remember(id, nil)
}

// Delete removes the document from memory and from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.remember(id, nil)
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes a function while holding the lock for the document.
func (m *Manager) WithLock(ctx context.Context, docID string, fn func(context.Context) error) error {
	entry := m.acquire(docID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(docID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, docID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"doc_id", docID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
