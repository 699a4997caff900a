package tracker

import (
	"slices"
	"sync"

	"go.uber.org/multierr"

	"github.com/guileen/dbtrack/logger"
)

type ledgerEntry[T any] struct {
	key Identity
	t   T
}

// Ledger is a Registry that remembers creation order. It tracks transaction
// savepoints: releasing or rolling back to a savepoint also ends every
// savepoint created after it.
type Ledger[H any, T Trackable[H]] struct {
	kind Kind

	mu      sync.Mutex
	entries []ledgerEntry[T]
	sealed  bool
}

// NewLedger creates an empty ledger.
func NewLedger[H any, T Trackable[H]](kind Kind) *Ledger[H, T] {
	return &Ledger[H, T]{kind: kind}
}

func (l *Ledger[H, T]) Kind() Kind {
	return l.kind
}

func (l *Ledger[H, T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger[H, T]) Get(h H) (T, bool) {
	key := IdentityOf(h)
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOfKeyLocked(key); i >= 0 {
		return l.entries[i].t, true
	}
	var zero T
	return zero, false
}

func (l *Ledger[H, T]) Contains(h H) bool {
	_, ok := l.Get(h)
	return ok
}

// Range visits a snapshot of the entries, oldest first.
func (l *Ledger[H, T]) Range(fn func(h H, t T) bool) {
	for _, e := range l.snapshot() {
		if !fn(e.t.Handle(), e.t) {
			return
		}
	}
}

// Active returns the tracked entries, oldest first.
func (l *Ledger[H, T]) Active() []T {
	snap := l.snapshot()
	out := make([]T, len(snap))
	for i, e := range snap {
		out[i] = e.t
	}
	return out
}

func (l *Ledger[H, T]) Resources() []Resource {
	snap := l.snapshot()
	out := make([]Resource, len(snap))
	for i, e := range snap {
		out[i] = e.t
	}
	return out
}

func (l *Ledger[H, T]) snapshot() []ledgerEntry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Track returns the tracker for h, creating and appending it when absent. A
// nil h yields the zero T.
func (l *Ledger[H, T]) Track(h H, newTracker func(H) T) T {
	var zero T
	if isNil(h) {
		return zero
	}
	key := IdentityOf(h)

	l.mu.Lock()
	if i := l.indexOfKeyLocked(key); i >= 0 {
		t := l.entries[i].t
		l.mu.Unlock()
		return t
	}
	t := newTracker(h)
	sealed := l.sealed
	if !sealed {
		b := t.base()
		l.entries = append(l.entries, ledgerEntry[T]{key: key, t: t})
		if !b.addOnClose(func() error {
			l.remove(b)
			return nil
		}) {
			l.entries = l.entries[:len(l.entries)-1]
		}
	}
	l.mu.Unlock()
	if sealed {
		if err := t.Close(); err != nil {
			logger.Warn("failed to close savepoint created on a closed owner",
				logger.Kind(string(l.kind)), logger.ErrorField(err))
		}
	}
	return t
}

// ReleaseAll releases every savepoint, newest first. Commit, rollback and a
// return to auto-commit all end every savepoint.
func (l *Ledger[H, T]) ReleaseAll() error {
	l.mu.Lock()
	toRelease := l.entries
	l.entries = nil
	l.mu.Unlock()
	return l.releaseNewestFirst(toRelease)
}

// RollbackTo releases every savepoint created after target, newest first.
// target itself stays active. An untracked target releases nothing.
func (l *Ledger[H, T]) RollbackTo(target T) error {
	l.mu.Lock()
	var toRelease []ledgerEntry[T]
	if i := l.indexOfLocked(target.base()); i >= 0 {
		toRelease = slices.Clone(l.entries[i+1:])
		l.entries = l.entries[:i+1]
	}
	l.mu.Unlock()
	return l.releaseNewestFirst(toRelease)
}

// Release releases target and every savepoint created after it, newest
// first. An untracked target is released on its own.
func (l *Ledger[H, T]) Release(target T) error {
	l.mu.Lock()
	var toRelease []ledgerEntry[T]
	if i := l.indexOfLocked(target.base()); i >= 0 {
		toRelease = slices.Clone(l.entries[i:])
		l.entries = l.entries[:i]
	} else {
		toRelease = []ledgerEntry[T]{{key: IdentityOf(target.Handle()), t: target}}
	}
	l.mu.Unlock()
	return l.releaseNewestFirst(toRelease)
}

func (l *Ledger[H, T]) releaseNewestFirst(entries []ledgerEntry[T]) error {
	var errs error
	for i := len(entries) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, entries[i].t.base().release())
	}
	return aggregate("release", l.kind, errs)
}

func (l *Ledger[H, T]) remove(b *Tracker[H]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOfLocked(b); i >= 0 {
		l.entries = slices.Delete(l.entries, i, i+1)
	}
}

func (l *Ledger[H, T]) indexOfLocked(b *Tracker[H]) int {
	return slices.IndexFunc(l.entries, func(e ledgerEntry[T]) bool {
		return e.t.base() == b
	})
}

func (l *Ledger[H, T]) indexOfKeyLocked(key Identity) int {
	return slices.IndexFunc(l.entries, func(e ledgerEntry[T]) bool {
		return e.key == key
	})
}

// drain empties and seals the ledger, oldest first; the caller closes the
// entries as ordinary resources.
func (l *Ledger[H, T]) drain() []Resource {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	l.sealed = true
	l.mu.Unlock()

	out := make([]Resource, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out
}
