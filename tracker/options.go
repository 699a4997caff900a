package tracker

import (
	"log/slog"

	"github.com/guileen/dbtrack/logger"
)

// Observer is told about every tracker that is created and every tracker that
// finishes closing or releasing. Implementations must be safe for concurrent
// use.
type Observer interface {
	Tracked(kind Kind)
	Closed(kind Kind, err error)
}

// Options are shared by a family of trackers, typically every tracker that
// descends from one driver root.
type Options struct {
	// Logger receives cascade logging. Allocation stacks are captured only when
	// it is enabled for logger.LevelTrace. Defaults to logger.Logger.
	Logger *slog.Logger
	// Observer, when set, is notified of tracker lifecycle events.
	Observer Observer
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return logger.Logger
	}
	return o.Logger
}

func (o *Options) tracked(kind Kind) {
	if o != nil && o.Observer != nil {
		o.Observer.Tracked(kind)
	}
}

func (o *Options) closed(kind Kind, err error) {
	if o != nil && o.Observer != nil {
		o.Observer.Closed(kind, err)
	}
}

// With returns a copy of o whose logger carries args.
func (o *Options) With(args ...any) *Options {
	c := &Options{}
	if o != nil {
		*c = *o
	}
	c.Logger = c.logger().With(args...)
	return c
}

// Log returns the logger trackers built with o write to.
func (o *Options) Log() *slog.Logger {
	return o.logger()
}
