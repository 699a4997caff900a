package pebbletrack

import (
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/guileen/dbtrack/tracker"
)

// DB is a tracked pebble database. Closing it closes every value, iterator,
// snapshot and batch still open, so pebble never sees a leaked iterator.
type DB struct {
	*tracker.Tracker[*pebble.DB]
	opts *tracker.Options

	values    *tracker.Registry[io.Closer, *Value]
	iters     *tracker.Registry[*pebble.Iterator, *Iterator]
	snapshots *tracker.Registry[*pebble.Snapshot, *Snapshot]
	batches   *tracker.Registry[*pebble.Batch, *Batch]
}

func newDB(opts *tracker.Options, db *pebble.DB) *DB {
	d := &DB{
		opts:      opts,
		values:    tracker.NewRegistry[io.Closer, *Value](opts, tracker.KindValue),
		iters:     tracker.NewRegistry[*pebble.Iterator, *Iterator](opts, tracker.KindIterator),
		snapshots: tracker.NewRegistry[*pebble.Snapshot, *Snapshot](opts, tracker.KindSnapshot),
		batches:   tracker.NewRegistry[*pebble.Batch, *Batch](opts, tracker.KindBatch),
	}
	d.Tracker = tracker.New(opts, tracker.KindDB, db, (*pebble.DB).Close,
		d.values, d.iters, d.snapshots, d.batches)
	return d
}

// TrackedValues is the live view of pinned Get results.
func (d *DB) TrackedValues() tracker.View[io.Closer, *Value] {
	return d.values
}

// TrackedIterators is the live view of open iterators, whatever they were
// opened on.
func (d *DB) TrackedIterators() tracker.View[*pebble.Iterator, *Iterator] {
	return d.iters
}

// TrackedSnapshots is the live view of open snapshots.
func (d *DB) TrackedSnapshots() tracker.View[*pebble.Snapshot, *Snapshot] {
	return d.snapshots
}

// TrackedBatches is the live view of open batches.
func (d *DB) TrackedBatches() tracker.View[*pebble.Batch, *Batch] {
	return d.batches
}

// NewIter opens a tracked iterator over the database.
func (d *DB) NewIter(o *pebble.IterOptions) (*Iterator, error) {
	if d.Closed() {
		return nil, tracker.ErrClosed
	}
	it, err := d.Handle().NewIter(o)
	if err != nil {
		return nil, err
	}
	return d.wrapIter(it), nil
}

// NewSnapshot takes a tracked point-in-time snapshot.
func (d *DB) NewSnapshot() (*Snapshot, error) {
	if d.Closed() {
		return nil, tracker.ErrClosed
	}
	snap := d.Handle().NewSnapshot()
	return d.snapshots.CreateIfAbsent(snap, func(s *pebble.Snapshot) *Snapshot {
		return newSnapshot(d, s)
	}), nil
}

// NewBatch creates a tracked write-only batch.
func (d *DB) NewBatch() (*Batch, error) {
	if d.Closed() {
		return nil, tracker.ErrClosed
	}
	return d.wrapBatch(d.Handle().NewBatch()), nil
}

// NewIndexedBatch creates a tracked batch that can also be read and iterated.
func (d *DB) NewIndexedBatch() (*Batch, error) {
	if d.Closed() {
		return nil, tracker.ErrClosed
	}
	return d.wrapBatch(d.Handle().NewIndexedBatch()), nil
}

// Get returns the value for key, pinned until the returned Value is closed.
// A missing key reports pebble.ErrNotFound.
func (d *DB) Get(key []byte) (*Value, error) {
	if d.Closed() {
		return nil, tracker.ErrClosed
	}
	data, closer, err := d.Handle().Get(key)
	if err != nil {
		return nil, err
	}
	return d.wrapValue(data, closer), nil
}

func (d *DB) Set(key, value []byte, opts *pebble.WriteOptions) error {
	if d.Closed() {
		return tracker.ErrClosed
	}
	return d.Handle().Set(key, value, opts)
}

func (d *DB) Delete(key []byte, opts *pebble.WriteOptions) error {
	if d.Closed() {
		return tracker.ErrClosed
	}
	return d.Handle().Delete(key, opts)
}

func (d *DB) wrapIter(it *pebble.Iterator) *Iterator {
	return d.iters.CreateIfAbsent(it, func(it *pebble.Iterator) *Iterator {
		return newIterator(d.opts, it)
	})
}

func (d *DB) wrapValue(data []byte, closer io.Closer) *Value {
	return d.values.CreateIfAbsent(closer, func(c io.Closer) *Value {
		return newValue(d.opts, c, data)
	})
}

func (d *DB) wrapBatch(b *pebble.Batch) *Batch {
	return d.batches.CreateIfAbsent(b, func(b *pebble.Batch) *Batch {
		return newBatch(d, b)
	})
}
