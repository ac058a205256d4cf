// Package persist owns the load-once, save-many lifecycle of the dataset.
//
// The dataset is read exactly once. Until that read has finished, scheduled
// saves are dropped so defaults can never overwrite stored data. After it,
// every scheduled snapshot replaces the pending one and a single write
// happens once the debounce period passes without further changes.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/imkarma/pillars/internal/logging"
	"github.com/imkarma/pillars/internal/schema"
	"github.com/imkarma/pillars/internal/store"
)

// DefaultDebounce is the quiet period before a scheduled save is written.
const DefaultDebounce = 500 * time.Millisecond

// Backend is the durable single-blob store.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, version int, shape string, payload []byte) error
}

// Backuper is implemented by backends that can keep a copy of a payload
// that could not be decoded.
type Backuper interface {
	Backup(ctx context.Context, key, reason string, payload []byte) (int64, error)
}

// ErrTablesRecovered marks a load whose normalized tables were unusable.
// The dataset came from the nested legacy copy, which may be older or
// empty, and the stored payload was backed up first.
var ErrTablesRecovered = errors.New("stored tables inconsistent, recovered from nested copy")

// Options configures a Controller.
type Options struct {
	Key      string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Report describes the outcome of Load.
type Report struct {
	Found    bool // a blob existed under the key
	Shape    schema.Shape
	Detected schema.Shape
	Migrated bool
	Fallback bool
	Problems []string
	Repairs  []string
	BackupID int64 // set when an undecodable or inconsistent payload was preserved
	Err      error // load failed and defaults are in use, or ErrTablesRecovered
}

// Controller debounces saves of dataset snapshots to a Backend.
type Controller struct {
	backend  Backend
	key      string
	debounce time.Duration
	log      *slog.Logger

	once    sync.Once
	dataset *store.Dataset
	report  Report

	writeMu sync.Mutex // serializes backend writes

	mu      sync.Mutex
	loaded  bool
	closed  bool
	shape   schema.Shape
	pending *store.Dataset
	timer   *time.Timer
}

// New creates a controller. Nothing is read until Load.
func New(backend Backend, opts Options) *Controller {
	if opts.Key == "" {
		opts.Key = "pillars-state"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger
	}
	return &Controller{
		backend:  backend,
		key:      opts.Key,
		debounce: opts.Debounce,
		log:      opts.Logger.With("component", "persist", "key", opts.Key),
		shape:    schema.Normalized,
	}
}

// Load reads the dataset once. Later calls return a copy of the first
// result without touching the backend. Failures never escape: the default
// dataset is returned and Report.Err says why.
func (c *Controller) Load(ctx context.Context) (*store.Dataset, Report) {
	c.once.Do(func() {
		c.dataset, c.report = c.load(ctx)

		c.mu.Lock()
		c.shape = c.report.Shape
		c.loaded = true
		c.mu.Unlock()
	})
	return c.dataset.Clone(), c.report
}

func (c *Controller) load(ctx context.Context) (*store.Dataset, Report) {
	rep := Report{Shape: schema.Normalized}

	payload, err := c.backend.Load(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		c.log.Info("no stored dataset, starting empty")
		return store.DefaultDataset(), rep
	}
	if err != nil {
		rep.Err = fmt.Errorf("load dataset: %w", err)
		c.log.Error("load failed, using defaults", "error", err)
		return store.DefaultDataset(), rep
	}
	rep.Found = true

	res, err := schema.Load(payload)
	if err != nil {
		rep.Err = fmt.Errorf("decode dataset: %w", err)
		c.log.Error("stored dataset unreadable, using defaults", "error", err, "bytes", len(payload))
		rep.BackupID = c.preserve(ctx, "undecodable", payload)
		return store.DefaultDataset(), rep
	}

	rep.Shape = res.Shape
	rep.Detected = res.Detected
	rep.Migrated = res.Migrated
	rep.Fallback = res.Fallback
	rep.Problems = res.Problems
	rep.Repairs = res.Repairs

	switch {
	case res.Fallback:
		rep.Err = fmt.Errorf("decode dataset: %w", ErrTablesRecovered)
		c.log.Warn("normalized tables inconsistent, read nested copy",
			"problems", res.Problems, "pillars", len(res.Dataset.Pillars))
		rep.BackupID = c.preserve(ctx, "inconsistent", payload)
	case res.Detected == schema.Legacy && !res.Migrated:
		c.log.Warn("legacy dataset inconsistent, migration skipped", "problems", res.Problems)
	case res.Migrated:
		c.log.Info("legacy dataset will be saved normalized")
	}
	for _, r := range res.Repairs {
		c.log.Debug("default applied", "repair", r)
	}
	return res.Dataset, rep
}

// preserve copies payload into the backend's backups, if it keeps any, and
// returns the backup id or 0.
func (c *Controller) preserve(ctx context.Context, reason string, payload []byte) int64 {
	b, ok := c.backend.(Backuper)
	if !ok {
		return 0
	}
	id, err := b.Backup(ctx, c.key, reason, payload)
	if err != nil {
		c.log.Error("backup of stored dataset failed", "reason", reason, "error", err)
		return 0
	}
	c.log.Info("stored dataset backed up", "reason", reason, "backup_id", id)
	return id
}

// Loaded reports whether Load has completed.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Shape reports the shape the next save will use.
func (c *Controller) Shape() schema.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shape
}

// Schedule records ds as the state to persist and restarts the debounce
// period. It is ignored before Load has completed and after Close.
func (c *Controller) Schedule(ds *store.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded || c.closed {
		c.log.Debug("save dropped", "loaded", c.loaded, "closed", c.closed)
		return
	}
	c.pending = ds.Clone()
	if c.timer == nil {
		c.timer = time.AfterFunc(c.debounce, c.fire)
		return
	}
	c.timer.Reset(c.debounce)
}

func (c *Controller) fire() {
	if err := c.Flush(context.Background()); err != nil {
		c.log.Error("debounced save failed, will retry on next change", "error", err)
	}
}

// Flush writes the pending snapshot now, if there is one. A failed write
// leaves the snapshot pending unless a newer one arrived meanwhile.
func (c *Controller) Flush(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	snap := c.pending
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
	}
	shape := c.shape
	c.mu.Unlock()

	if snap == nil {
		return nil
	}

	payload, err := schema.AdapterFor(shape).Encode(snap)
	if err != nil && shape == schema.Normalized {
		c.log.Warn("dataset does not normalize cleanly, saving legacy shape", "error", err)
		shape = schema.Legacy
		payload, err = schema.AdapterFor(shape).Encode(snap)
		if err == nil {
			c.mu.Lock()
			c.shape = shape
			c.mu.Unlock()
		}
	}
	if err == nil {
		err = c.backend.Save(ctx, c.key, shape.Version(), string(shape), payload)
	}
	if err != nil {
		c.mu.Lock()
		if c.pending == nil {
			c.pending = snap
		}
		c.mu.Unlock()
		return fmt.Errorf("save dataset: %w", err)
	}

	c.log.Debug("dataset saved", "shape", shape, "bytes", len(payload))
	return nil
}

// Close stops accepting snapshots and writes whatever is pending.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Flush(ctx)
}
