package pebbletrack

import (
	"github.com/cockroachdb/pebble"

	"github.com/guileen/dbtrack/tracker"
)

// Batch is a tracked pebble batch. A committed batch stays tracked until it
// is closed.
type Batch struct {
	*tracker.Tracker[*pebble.Batch]
	db    *DB
	iters *tracker.Registry[*pebble.Iterator, *Iterator]
}

func newBatch(d *DB, b *pebble.Batch) *Batch {
	batch := &Batch{
		db:    d,
		iters: tracker.NewRegistry[*pebble.Iterator, *Iterator](d.opts, tracker.KindIterator),
	}
	batch.Tracker = tracker.New(d.opts, tracker.KindBatch, b, (*pebble.Batch).Close, batch.iters)
	return batch
}

// TrackedIterators is the live view of iterators opened on the batch.
func (b *Batch) TrackedIterators() tracker.View[*pebble.Iterator, *Iterator] {
	return b.iters
}

func (b *Batch) Set(key, value []byte) error {
	return b.Handle().Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	return b.Handle().Delete(key, nil)
}

func (b *Batch) Count() uint32 {
	return b.Handle().Count()
}

// Commit applies the batch to the database.
func (b *Batch) Commit(opts *pebble.WriteOptions) error {
	if b.Closed() {
		return tracker.ErrClosed
	}
	return b.Handle().Commit(opts)
}

// NewIter iterates over the batch merged with the database. Only indexed
// batches support it.
func (b *Batch) NewIter(o *pebble.IterOptions) (*Iterator, error) {
	if b.Closed() {
		return nil, tracker.ErrClosed
	}
	it, err := b.Handle().NewIter(o)
	if err != nil {
		return nil, err
	}
	return b.iters.GetOrCreate(it, func() (*Iterator, error) {
		return b.db.wrapIter(it), nil
	})
}
