// Package tracker owns the in-memory dataset and is the only writer of it.
//
// Every mutation runs against a private copy of the dataset under one lock.
// Derived fields are recomputed on that copy before it replaces the visible
// one, so readers never see a progress change with a stale stuck flag, and a
// rejected mutation leaves nothing behind.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imkarma/pillars/internal/logging"
	"github.com/imkarma/pillars/internal/progress"
	"github.com/imkarma/pillars/internal/session"
	"github.com/imkarma/pillars/internal/store"
	"github.com/imkarma/pillars/internal/worker"
)

// DefaultMaxActiveGoals caps goals that are not done.
const DefaultMaxActiveGoals = 3

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrGoalLimit  = errors.New("active goal limit reached")

	// errNoChange aborts a mutation without error and without a save.
	errNoChange = errors.New("no change")
)

// ValidationError rejects malformed input for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Saver receives every committed dataset. persist.Controller satisfies it.
type Saver interface {
	Schedule(ds *store.Dataset)
}

// Options configures a Tracker. Zero values select defaults.
type Options struct {
	Clock          Clock
	Saver          Saver
	MaxActiveGoals int
	HistoryLimit   int
	GraceDays      int
	CoalesceDelay  time.Duration
	NewID          func() string
	Logger         *slog.Logger
}

// Tracker serializes all reads and writes of the dataset.
type Tracker struct {
	mu sync.Mutex
	ds *store.Dataset

	clock     Clock
	saver     Saver
	machine   session.Machine
	detector  progress.Detector
	maxActive int
	newID     func() string
	log       *slog.Logger
	coalescer *worker.Coalescer
}

// New wraps ds, which the tracker takes ownership of.
func New(ds *store.Dataset, opts Options) *Tracker {
	if ds == nil {
		ds = store.DefaultDataset()
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.MaxActiveGoals <= 0 {
		opts.MaxActiveGoals = DefaultMaxActiveGoals
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger
	}

	t := &Tracker{
		ds:        ds,
		clock:     opts.Clock,
		saver:     opts.Saver,
		machine:   session.New(opts.HistoryLimit),
		detector:  progress.NewDetector(opts.GraceDays),
		maxActive: opts.MaxActiveGoals,
		newID:     opts.NewID,
		log:       opts.Logger.With("component", "tracker"),
	}
	t.machine.NewID = opts.NewID
	t.coalescer = worker.NewCoalescer(opts.CoalesceDelay, t.applyQueued)
	t.detector.RefreshAll(t.ds, t.clock.Now())
	return t
}

// mutate runs fn on a copy of the dataset and commits the copy if fn
// succeeds. fn may return errNoChange to discard the copy silently.
func (t *Tracker) mutate(fn func(ds *store.Dataset, now time.Time) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	work := t.ds.Clone()
	if err := fn(work, now); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	t.detector.RefreshAll(work, now)
	t.ds = work
	if t.saver != nil {
		t.saver.Schedule(t.ds)
	}
	return nil
}

// read runs fn against the current dataset under the lock. Derived fields
// are recomputed first since they depend on the time of the read.
func (t *Tracker) read(fn func(ds *store.Dataset, now time.Time)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.detector.RefreshAll(t.ds, now)
	fn(t.ds, now)
}

// Snapshot returns a deep copy of the current dataset.
func (t *Tracker) Snapshot() *store.Dataset {
	var out *store.Dataset
	t.read(func(ds *store.Dataset, _ time.Time) {
		out = ds.Clone()
	})
	return out
}

// Replace swaps in a whole dataset, as on import. A dataset with more goals
// not done than the cap allows is refused and the current one kept.
func (t *Tracker) Replace(ds *store.Dataset) error {
	if ds == nil {
		return invalid("dataset", "is empty")
	}
	return t.mutate(func(work *store.Dataset, now time.Time) error {
		*work = *ds.Clone()
		if n := activeGoals(work); n > t.maxActive {
			return fmt.Errorf("replace dataset: %d goals are not done, limit is %d: %w", n, t.maxActive, ErrGoalLimit)
		}
		t.log.Info("dataset replaced", "pillars", len(work.Pillars), "ideas", len(work.Ideas))
		return nil
	})
}

// Flush applies queued progress values now. It must not be called from
// inside another tracker call.
func (t *Tracker) Flush() []worker.Result {
	return t.coalescer.Flush()
}

// Close applies queued progress values and stops accepting new ones.
func (t *Tracker) Close() []worker.Result {
	return t.coalescer.Stop()
}

func findPillar(ds *store.Dataset, id int64) (*store.Pillar, error) {
	p := ds.Pillar(id)
	if p == nil {
		return nil, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func findTask(ds *store.Dataset, id int64) (*store.Task, *store.Pillar, error) {
	task, p := ds.Task(id)
	if task == nil {
		return nil, nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return task, p, nil
}

func touch(p *store.Pillar, now time.Time) {
	if now.After(p.LastActivity) {
		p.LastActivity = now
	}
}
