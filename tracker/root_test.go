package tracker

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/dbtrack/logger"
)

func newTestRoot(opts *Options, name string) *Root[*fakeHandle, *fakeTracker] {
	return NewRoot[*fakeHandle, *fakeTracker](opts, name, KindConnection)
}

func bufferOptions() (*Options, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logger.NewLogger(logger.Config{Level: logger.LevelTrace, Format: "json", Writer: &buf})
	return &Options{Logger: l}, &buf
}

func TestRegistrarRejectsDuplicateName(t *testing.T) {
	opts := &Options{Logger: logger.Discard(logger.LevelInfo)}
	reg := NewRegistrar(opts)

	require.NoError(t, reg.Register(newTestRoot(opts, "pg")))
	err := reg.Register(newTestRoot(opts, "pg"))
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Contains(t, err.Error(), `"pg"`)
}

func TestRegistrarLookupAndRoots(t *testing.T) {
	opts := &Options{Logger: logger.Discard(logger.LevelInfo)}
	reg := NewRegistrar(opts)
	require.NoError(t, reg.Register(newTestRoot(opts, "pebble")))
	require.NoError(t, reg.Register(newTestRoot(opts, "pg")))

	root, ok := reg.Lookup("pg")
	require.True(t, ok)
	assert.Equal(t, "pg", root.Name())
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	names := []string{}
	for _, r := range reg.Roots() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"pebble", "pg"}, names)
}

func TestDeregisterClosesTrackedConnections(t *testing.T) {
	opts := &Options{Logger: logger.Discard(logger.LevelInfo)}
	reg := NewRegistrar(opts)
	root := newTestRoot(opts, "pg")
	require.NoError(t, reg.Register(root))

	handles := []*fakeHandle{{name: "c1"}, {name: "c2"}}
	for _, h := range handles {
		conn := root.TrackConnection(h, func(h *fakeHandle) *fakeTracker {
			return newFakeTracker(opts, KindConnection, h)
		})
		conn.cursors.CreateIfAbsent(&fakeHandle{name: h.name + "-rows"}, leaf(opts, KindRows))
	}
	require.Equal(t, 2, root.TrackedConnections().Len())

	callbackRan := false
	root.AddOnClose(func() error {
		callbackRan = true
		return nil
	})

	assert.True(t, reg.Deregister("pg"))
	assert.True(t, callbackRan)
	assert.Zero(t, root.TrackedConnections().Len())
	for _, h := range handles {
		assert.EqualValues(t, 1, h.closes.Load())
	}
	_, ok := reg.Lookup("pg")
	assert.False(t, ok)
	assert.False(t, reg.Deregister("pg"))
}

func TestDeregisterLogsFailuresInsteadOfReturning(t *testing.T) {
	opts, buf := bufferOptions()
	reg := NewRegistrar(opts)
	root := newTestRoot(opts, "pg")
	require.NoError(t, reg.Register(root))

	root.TrackConnection(&fakeHandle{name: "bad", err: errBoom}, leaf(opts, KindConnection))
	good := &fakeHandle{name: "good"}
	root.TrackConnection(good, leaf(opts, KindConnection))

	assert.True(t, reg.Deregister("pg"))
	assert.EqualValues(t, 1, good.closes.Load())
	out := buf.String()
	assert.Contains(t, out, "errors during deregister closing connections")
	assert.Contains(t, out, `"root":"pg"`)
	assert.Contains(t, out, "boom")
}

func TestRegistrarCloseDeregistersEverything(t *testing.T) {
	opts := &Options{Logger: logger.Discard(logger.LevelInfo)}
	reg := NewRegistrar(opts)
	var handles []*fakeHandle
	for _, name := range []string{"a", "b"} {
		root := newTestRoot(opts, name)
		require.NoError(t, reg.Register(root))
		h := &fakeHandle{name: name}
		handles = append(handles, h)
		root.TrackConnection(h, leaf(opts, KindConnection))
	}

	reg.Close()
	assert.Empty(t, reg.Roots())
	for _, h := range handles {
		assert.EqualValues(t, 1, h.closes.Load())
	}
}

func TestClosedConnectionLeavesRoot(t *testing.T) {
	opts := &Options{}
	root := newTestRoot(opts, "pg")
	h := &fakeHandle{name: "c"}
	conn := root.TrackConnection(h, leaf(opts, KindConnection))

	assert.True(t, root.TrackedConnections().Contains(h))
	require.NoError(t, conn.Close())
	assert.False(t, root.TrackedConnections().Contains(h))
	assert.Len(t, root.Children(), 1)
}

func TestRootTracksConnectionsAfterDeregister(t *testing.T) {
	opts := &Options{Logger: logger.Discard(logger.LevelInfo)}
	reg := NewRegistrar(opts)
	root := newTestRoot(opts, "pg")
	require.NoError(t, reg.Register(root))
	root.TrackConnection(&fakeHandle{name: "old"}, leaf(opts, KindConnection))
	require.True(t, reg.Deregister("pg"))

	h := &fakeHandle{name: "new"}
	conn := root.TrackConnection(h, leaf(opts, KindConnection))
	assert.False(t, conn.Closed())
	assert.Zero(t, h.closes.Load())
	assert.Equal(t, 1, root.TrackedConnections().Len())
}
