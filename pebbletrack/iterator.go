package pebbletrack

import (
	"github.com/cockroachdb/pebble"

	"github.com/guileen/dbtrack/tracker"
)

// Iterator is a tracked pebble iterator.
type Iterator struct {
	*tracker.Tracker[*pebble.Iterator]
}

func newIterator(opts *tracker.Options, it *pebble.Iterator) *Iterator {
	return &Iterator{Tracker: tracker.New(opts, tracker.KindIterator, it, (*pebble.Iterator).Close)}
}

func (i *Iterator) First() bool            { return i.Handle().First() }
func (i *Iterator) Last() bool             { return i.Handle().Last() }
func (i *Iterator) Next() bool             { return i.Handle().Next() }
func (i *Iterator) Prev() bool             { return i.Handle().Prev() }
func (i *Iterator) SeekGE(key []byte) bool { return i.Handle().SeekGE(key) }
func (i *Iterator) SeekLT(key []byte) bool { return i.Handle().SeekLT(key) }
func (i *Iterator) Valid() bool            { return i.Handle().Valid() }
func (i *Iterator) Key() []byte            { return i.Handle().Key() }
func (i *Iterator) Value() []byte          { return i.Handle().Value() }
func (i *Iterator) Err() error             { return i.Handle().Error() }
