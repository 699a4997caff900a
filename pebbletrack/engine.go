package pebbletrack

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

// Engine is the tracking root for pebble databases. Every database opened
// through it stays tracked until closed.
type Engine struct {
	*tracker.Root[*pebble.DB, *DB]
}

var _ tracker.RootNode = (*Engine)(nil)

// NewEngine creates an engine root. opts may be nil.
func NewEngine(name string, opts *tracker.Options) *Engine {
	opts = opts.With(logger.String("root", name))
	return &Engine{Root: tracker.NewRoot[*pebble.DB, *DB](opts, name, tracker.KindDB)}
}

// Register creates an engine root and adds it to registrar.
func Register(registrar *tracker.Registrar, name string, opts *tracker.Options) (*Engine, error) {
	e := NewEngine(name, opts)
	if err := registrar.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Open opens the database described by cfg and tracks it.
func (e *Engine) Open(cfg *Config) (*DB, error) {
	opts := cfg.Options()
	db, err := pebble.Open(cfg.Path, opts)
	if opts.Cache != nil {
		opts.Cache.Unref()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %q", cfg.Path)
	}
	return e.Wrap(db), nil
}

// Wrap tracks a database opened elsewhere.
func (e *Engine) Wrap(db *pebble.DB) *DB {
	return e.TrackConnection(db, func(db *pebble.DB) *DB {
		return newDB(e.Options(), db)
	})
}
