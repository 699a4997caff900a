package pebbletrack

import (
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/guileen/dbtrack/tracker"
)

// Snapshot is a tracked pebble snapshot. Iterators and values read through
// it are tracked both here and on the database.
type Snapshot struct {
	*tracker.Tracker[*pebble.Snapshot]
	db     *DB
	values *tracker.Registry[io.Closer, *Value]
	iters  *tracker.Registry[*pebble.Iterator, *Iterator]
}

func newSnapshot(d *DB, s *pebble.Snapshot) *Snapshot {
	snap := &Snapshot{
		db:     d,
		values: tracker.NewRegistry[io.Closer, *Value](d.opts, tracker.KindValue),
		iters:  tracker.NewRegistry[*pebble.Iterator, *Iterator](d.opts, tracker.KindIterator),
	}
	snap.Tracker = tracker.New(d.opts, tracker.KindSnapshot, s, (*pebble.Snapshot).Close, snap.values, snap.iters)
	return snap
}

// TrackedIterators is the live view of iterators opened on the snapshot.
func (s *Snapshot) TrackedIterators() tracker.View[*pebble.Iterator, *Iterator] {
	return s.iters
}

// NewIter opens a tracked iterator reading at the snapshot.
func (s *Snapshot) NewIter(o *pebble.IterOptions) (*Iterator, error) {
	if s.Closed() {
		return nil, tracker.ErrClosed
	}
	it, err := s.Handle().NewIter(o)
	if err != nil {
		return nil, err
	}
	return s.iters.GetOrCreate(it, func() (*Iterator, error) {
		return s.db.wrapIter(it), nil
	})
}

// Get reads key at the snapshot.
func (s *Snapshot) Get(key []byte) (*Value, error) {
	if s.Closed() {
		return nil, tracker.ErrClosed
	}
	data, closer, err := s.Handle().Get(key)
	if err != nil {
		return nil, err
	}
	return s.values.GetOrCreate(closer, func() (*Value, error) {
		return s.db.wrapValue(data, closer), nil
	})
}
