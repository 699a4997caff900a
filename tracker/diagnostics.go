package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/guileen/dbtrack/logger"
)

const maxAllocationDepth = 64

// Allocation records where a tracker was created. It exists only when the
// tracker's logger was enabled for logger.LevelTrace at construction time.
type Allocation struct {
	pcs    []uintptr
	logger *slog.Logger
	time   time.Time
}

// captureAllocation returns nil unless trace logging is enabled. skip counts
// frames above captureAllocation's caller.
func captureAllocation(opts *Options, skip int) *Allocation {
	l := opts.logger()
	if !l.Enabled(context.Background(), logger.LevelTrace) {
		return nil
	}
	pcs := make([]uintptr, maxAllocationDepth)
	// +2: runtime.Callers and captureAllocation itself.
	n := runtime.Callers(skip+2, pcs)
	return &Allocation{
		pcs:    pcs[:n],
		logger: l,
		time:   time.Now(),
	}
}

// Logger returns the logger that was in effect when the tracker was created.
func (a *Allocation) Logger() *slog.Logger {
	return a.logger
}

// Time returns the allocation time.
func (a *Allocation) Time() time.Time {
	return a.time
}

// Frames resolves the captured program counters, innermost first.
func (a *Allocation) Frames() []runtime.Frame {
	frames := runtime.CallersFrames(a.pcs)
	out := make([]runtime.Frame, 0, len(a.pcs))
	for {
		frame, more := frames.Next()
		out = append(out, frame)
		if !more {
			break
		}
	}
	return out
}

// Stack formats the allocation site the way runtime/debug.Stack does.
func (a *Allocation) Stack() string {
	var sb strings.Builder
	for _, frame := range a.Frames() {
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
	}
	return sb.String()
}

// String implements fmt.Stringer
func (a *Allocation) String() string {
	return "allocated at " + a.time.Format(time.RFC3339Nano) + "\n" + a.Stack()
}
