package tracker

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/guileen/dbtrack/logger"
)

// Resource is implemented by every tracked wrapper.
type Resource interface {
	ID() uuid.UUID
	Kind() Kind
	CreatedAt() time.Time
	// Allocation is nil unless trace logging was enabled at creation.
	Allocation() *Allocation
	// Children exposes the resource's child registries for inspection.
	Children() []Child
	Closed() bool
	// AddOnClose registers a callback run once, in registration order, when
	// the resource closes or is released.
	AddOnClose(fn func() error)
	Close() error
}

// Trackable is a Resource wrapping a handle of type H. Wrappers satisfy it by
// embedding *Tracker[H].
type Trackable[H any] interface {
	Resource
	Handle() H
	base() *Tracker[H]
}

// Child is a collection of tracked resources owned by a parent resource.
type Child interface {
	Kind() Kind
	Len() int
	// Resources returns a snapshot of the tracked resources.
	Resources() []Resource
	// drain atomically empties the collection and returns what it held.
	drain() []Resource
}

// Tracker pairs one handle with its lifecycle bookkeeping.
type Tracker[H any] struct {
	handle   H
	kind     Kind
	id       uuid.UUID
	created  time.Time
	opts     *Options
	closeFn  func(H) error
	children []Child
	alloc    *Allocation

	mu      sync.Mutex
	closed  bool
	onClose []func() error
}

// New creates the tracker for handle. closeFn performs the underlying close
// and may be nil when the handle has nothing to close. children are closed
// before closeFn runs, ordered by Kind.Rank.
func New[H any](opts *Options, kind Kind, handle H, closeFn func(H) error, children ...Child) *Tracker[H] {
	sorted := slices.Clone(children)
	slices.SortStableFunc(sorted, func(a, b Child) int {
		return cmp.Compare(a.Kind().Rank(), b.Kind().Rank())
	})
	t := &Tracker[H]{
		handle:   handle,
		kind:     kind,
		id:       uuid.New(),
		created:  time.Now(),
		opts:     opts,
		closeFn:  closeFn,
		children: sorted,
		alloc:    captureAllocation(opts, 1),
	}
	opts.tracked(kind)
	return t
}

// Handle returns the wrapped handle.
func (t *Tracker[H]) Handle() H {
	return t.handle
}

func (t *Tracker[H]) ID() uuid.UUID {
	return t.id
}

func (t *Tracker[H]) Kind() Kind {
	return t.kind
}

func (t *Tracker[H]) CreatedAt() time.Time {
	return t.created
}

func (t *Tracker[H]) Allocation() *Allocation {
	return t.alloc
}

func (t *Tracker[H]) Children() []Child {
	return slices.Clone(t.children)
}

// Options returns the options the tracker was created with.
func (t *Tracker[H]) Options() *Options {
	return t.opts
}

func (t *Tracker[H]) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// AddOnClose registers fn to run when the tracker closes. On a tracker that
// has already closed, fn runs immediately.
func (t *Tracker[H]) AddOnClose(fn func() error) {
	if t.addOnClose(fn) {
		return
	}
	if err := fn(); err != nil {
		t.opts.logger().Warn("on-close callback failed", logger.Kind(string(t.kind)), logger.ErrorField(err))
	}
}

// addOnClose appends fn unless the tracker is closed, in which case it
// reports false and does nothing.
func (t *Tracker[H]) addOnClose(fn func() error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.onClose = append(t.onClose, fn)
	return true
}

// markClosed flips the tracker to closed and hands back the callbacks to run.
// Only the first caller gets ok == true.
func (t *Tracker[H]) markClosed() (callbacks []func() error, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false
	}
	t.closed = true
	callbacks, t.onClose = t.onClose, nil
	return callbacks, true
}

// Close runs the on-close callbacks, closes every tracked child, then closes
// the handle. Only the first call does any work.
func (t *Tracker[H]) Close() error {
	return t.Finish("close", t.closeFn)
}

// Finish is Close with a different terminal operation, for handles that end
// in more than one way (a transaction commits or rolls back).
func (t *Tracker[H]) Finish(op string, fn func(H) error) error {
	callbacks, ok := t.markClosed()
	if !ok {
		return nil
	}
	errs := runCallbacks(callbacks)
	for _, child := range t.children {
		errs = multierr.Append(errs, closeDrained(t.opts, op, child))
	}
	if fn != nil {
		errs = multierr.Append(errs, fn(t.handle))
	}
	err := aggregate(op, t.kind, errs)
	t.opts.closed(t.kind, err)
	return err
}

// release ends the tracker without touching the handle: only the on-close
// callbacks run. Savepoints are released this way; the driver-side release
// is issued by whoever triggered it.
func (t *Tracker[H]) release() error {
	callbacks, ok := t.markClosed()
	if !ok {
		return nil
	}
	err := aggregate("release", t.kind, runCallbacks(callbacks))
	t.opts.closed(t.kind, err)
	return err
}

func (t *Tracker[H]) base() *Tracker[H] {
	return t
}

func runCallbacks(callbacks []func() error) error {
	var errs error
	for _, fn := range callbacks {
		errs = multierr.Append(errs, fn())
	}
	return errs
}

// closeDrained empties child and closes everything it held, collecting every
// failure.
func closeDrained(opts *Options, op string, child Child) error {
	return closeAll(opts, op, child.Kind(), child.drain())
}

func closeAll(opts *Options, op string, kind Kind, items []Resource) error {
	if len(items) == 0 {
		return nil
	}
	ctx := context.Background()
	l := opts.logger()
	l.Debug("closing tracked resources",
		logger.Operation(op), logger.Kind(string(kind)), logger.Int("count", len(items)))
	trace := l.Enabled(ctx, logger.LevelTrace)
	var errs error
	for i, item := range items {
		if trace {
			l.Log(ctx, logger.LevelTrace, "closing tracked resource",
				logger.Kind(string(kind)), logger.Int("index", i), logger.String("id", item.ID().String()))
		}
		errs = multierr.Append(errs, item.Close())
	}
	return errs
}
