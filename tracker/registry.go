package tracker

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/guileen/dbtrack/logger"
)

// View is a live, read-only window onto a tracked collection. It is not a
// copy: every call observes the collection's current state.
type View[H any, T Trackable[H]] interface {
	Kind() Kind
	Len() int
	Get(h H) (T, bool)
	Contains(h H) bool
	// Range calls fn for a snapshot of the entries until fn returns false.
	Range(fn func(h H, t T) bool)
}

// Registry maps handles of one kind, by identity, to their trackers. Each
// registry has its own lock.
type Registry[H any, T Trackable[H]] struct {
	kind Kind
	opts *Options

	mu      sync.Mutex
	entries map[Identity]T
	// sealed is set once the owner has drained the registry while closing.
	sealed bool
}

// NewRegistry creates an empty registry of the given kind. opts is used only
// to report invariant violations.
func NewRegistry[H any, T Trackable[H]](opts *Options, kind Kind) *Registry[H, T] {
	return &Registry[H, T]{
		kind:    kind,
		opts:    opts,
		entries: make(map[Identity]T),
	}
}

func (r *Registry[H, T]) Kind() Kind {
	return r.kind
}

func (r *Registry[H, T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[H, T]) Get(h H) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.entries[IdentityOf(h)]
	return t, ok
}

func (r *Registry[H, T]) Contains(h H) bool {
	_, ok := r.Get(h)
	return ok
}

func (r *Registry[H, T]) Range(fn func(h H, t T) bool) {
	for _, t := range r.snapshot() {
		if !fn(t.Handle(), t) {
			return
		}
	}
}

func (r *Registry[H, T]) Resources() []Resource {
	snap := r.snapshot()
	out := make([]Resource, len(snap))
	for i, t := range snap {
		out[i] = t
	}
	return out
}

func (r *Registry[H, T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.entries))
	for _, t := range r.entries {
		out = append(out, t)
	}
	return out
}

// GetOrCreate returns the tracker already registered for h, or calls factory
// and registers what it returns. A nil h yields the zero T and no error.
//
// factory runs with the registry locked and so must not touch this registry;
// it may register the tracker in other registries.
func (r *Registry[H, T]) GetOrCreate(h H, factory func() (T, error)) (T, error) {
	var zero T
	if isNil(h) {
		return zero, nil
	}
	key := IdentityOf(h)

	t, tracked, err := r.lookupOrCreate(key, factory)
	if err != nil || tracked || isNil(t) {
		return t, err
	}
	r.closeRejected(t)
	return t, nil
}

func (r *Registry[H, T]) lookupOrCreate(key Identity, factory func() (T, error)) (T, bool, error) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.entries[key]; ok {
		r.checkKey(key, t)
		return t, true, nil
	}
	t, err := factory()
	if err != nil {
		return zero, false, err
	}
	if isNil(t) {
		return zero, false, nil
	}
	newKey := IdentityOf(t.Handle())
	if newKey != key {
		r.opts.violated(errors.AssertionFailedf("%s registry: factory tracker does not track the requested handle", r.kind))
		if existing, ok := r.entries[newKey]; ok {
			return existing, true, nil
		}
	}
	return t, r.insertLocked(newKey, t), nil
}

// CreateIfAbsent returns the tracker registered for h, creating it with
// newTracker when absent. A nil h yields the zero T.
func (r *Registry[H, T]) CreateIfAbsent(h H, newTracker func(H) T) T {
	var zero T
	if isNil(h) {
		return zero
	}
	key := IdentityOf(h)

	r.mu.Lock()
	if t, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return t
	}
	t := newTracker(h)
	inserted := r.insertLocked(key, t)
	r.mu.Unlock()
	if !inserted {
		r.closeRejected(t)
	}
	return t
}

// insertLocked adds t under key along with the callback that removes exactly
// this (key, t) pair on close. It reports false, leaving the registry
// unchanged, when t is already closed or the registry is sealed.
func (r *Registry[H, T]) insertLocked(key Identity, t T) bool {
	if r.sealed {
		return false
	}
	b := t.base()
	r.entries[key] = t
	if !b.addOnClose(func() error {
		r.remove(key, b)
		return nil
	}) {
		delete(r.entries, key)
		return false
	}
	return true
}

// closeRejected closes a tracker that was created after its owner closed, so
// it cannot outlive the owner untracked. Must be called without r.mu held.
func (r *Registry[H, T]) closeRejected(t T) {
	if err := t.Close(); err != nil {
		r.opts.logger().Warn("failed to close resource created on a closed owner",
			logger.Kind(string(r.kind)), logger.ErrorField(err))
	}
}

// remove deletes key only while it still maps to tracker b, so a later
// tracker that reuses the key is left alone.
func (r *Registry[H, T]) remove(key Identity, b *Tracker[H]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[key]; ok && cur.base() == b {
		delete(r.entries, key)
	}
}

func (r *Registry[H, T]) checkKey(key Identity, t T) {
	if IdentityOf(t.Handle()) != key {
		r.opts.violated(errors.AssertionFailedf("%s registry: tracker from map does not track the expected handle", r.kind))
	}
}

// drain empties and seals the registry: later inserts are refused.
func (r *Registry[H, T]) drain() []Resource {
	return r.empty(true)
}

// take empties the registry and leaves it open for new entries.
func (r *Registry[H, T]) take() []Resource {
	return r.empty(false)
}

func (r *Registry[H, T]) empty(seal bool) []Resource {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[Identity]T)
	r.sealed = r.sealed || seal
	r.mu.Unlock()

	out := make([]Resource, 0, len(entries))
	for _, t := range entries {
		out = append(out, t)
	}
	return out
}
