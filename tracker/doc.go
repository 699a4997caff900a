// Package tracker keeps books on handles handed out by a database client
// library: which ones are open, where they were allocated, and which parent
// owns them.
//
// Every wrapper embeds a *Tracker[H] around exactly one handle. A parent owns
// one Registry per child kind; children remove themselves from the parent's
// registries when they close, and closing a parent drains and closes every
// child registry, in a fixed kind order, before the parent's own handle is
// closed. Savepoints live in an ordered Ledger instead of a Registry so that
// rollback and release can drop every savepoint newer than their target.
//
// Handles are keyed by reference identity. Pointer-like handles (pointers,
// maps, channels, funcs, slices) compare by address; two distinct zero-size
// values may share an address, so handle types should not be zero-size.
package tracker
