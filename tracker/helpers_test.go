package tracker

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// fakeHandle stands in for a driver handle and counts underlying closes.
type fakeHandle struct {
	name   string
	err    error
	closes atomic.Int32
	log    *closeLog
}

func (h *fakeHandle) close() error {
	h.closes.Add(1)
	if h.log != nil {
		h.log.add(h.name)
	}
	return h.err
}

type closeLog struct {
	mu    sync.Mutex
	names []string
}

func (l *closeLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *closeLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

// fakeTracker is a wrapper the way adapters build them: it embeds the
// generic tracker and owns child registries.
type fakeTracker struct {
	*Tracker[*fakeHandle]
	cursors    *Registry[*fakeHandle, *fakeTracker]
	statements *Registry[*fakeHandle, *fakeTracker]
	streams    *Registry[*fakeHandle, *fakeTracker]
	savepoints *Ledger[*fakeHandle, *fakeTracker]
}

func newFakeTracker(opts *Options, kind Kind, h *fakeHandle) *fakeTracker {
	ft := &fakeTracker{
		cursors:    NewRegistry[*fakeHandle, *fakeTracker](opts, KindRows),
		statements: NewRegistry[*fakeHandle, *fakeTracker](opts, KindStatement),
		streams:    NewRegistry[*fakeHandle, *fakeTracker](opts, KindStream),
		savepoints: NewLedger[*fakeHandle, *fakeTracker](KindSavepoint),
	}
	// Passed out of rank order on purpose; New sorts them.
	ft.Tracker = New(opts, kind, h, (*fakeHandle).close, ft.statements, ft.savepoints, ft.cursors, ft.streams)
	return ft
}

func leaf(opts *Options, kind Kind) func(*fakeHandle) *fakeTracker {
	return func(h *fakeHandle) *fakeTracker {
		return &fakeTracker{Tracker: New(opts, kind, h, (*fakeHandle).close)}
	}
}

// savepointTracker has no underlying close, like a driver savepoint.
func savepointTracker(opts *Options) func(*fakeHandle) *fakeTracker {
	return func(h *fakeHandle) *fakeTracker {
		return &fakeTracker{Tracker: New[*fakeHandle](opts, KindSavepoint, h, nil)}
	}
}

var errBoom = errors.New("boom")

type countingObserver struct {
	mu      sync.Mutex
	tracked map[Kind]int
	closed  map[Kind]int
	failed  map[Kind]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		tracked: make(map[Kind]int),
		closed:  make(map[Kind]int),
		failed:  make(map[Kind]int),
	}
}

func (o *countingObserver) Tracked(kind Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracked[kind]++
}

func (o *countingObserver) Closed(kind Kind, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed[kind]++
	if err != nil {
		o.failed[kind]++
	}
}
