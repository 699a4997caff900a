// Package pebbletrack tracks the handles a pebble database hands out:
// snapshots, batches, iterators and pinned Get results. Closing a tracked
// database closes whatever is still open, newest dependents first.
package pebbletrack
