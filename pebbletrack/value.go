package pebbletrack

import (
	"io"

	"github.com/guileen/dbtrack/tracker"
)

// Value is a Get result. Its bytes stay valid until Close.
type Value struct {
	*tracker.Tracker[io.Closer]
	data []byte
}

func newValue(opts *tracker.Options, c io.Closer, data []byte) *Value {
	return &Value{
		Tracker: tracker.New(opts, tracker.KindValue, c, io.Closer.Close),
		data:    data,
	}
}

// Bytes returns the pinned value. It must not be used after Close.
func (v *Value) Bytes() []byte {
	return v.data
}

// Copy returns the value in memory owned by the caller.
func (v *Value) Copy() []byte {
	return append([]byte(nil), v.data...)
}
