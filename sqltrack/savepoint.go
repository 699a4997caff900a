package sqltrack

import (
	"context"
	"fmt"
	"regexp"

	"github.com/guileen/dbtrack/tracker"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type savepointHandle struct {
	name string
}

// Savepoint is a tracked transaction savepoint. Rolling back to a savepoint
// ends every savepoint set after it; releasing one also ends the savepoint
// itself.
type Savepoint struct {
	*tracker.Tracker[*savepointHandle]
	conn *Conn
}

// Name returns the SQL identifier of the savepoint.
func (s *Savepoint) Name() string {
	return s.Handle().name
}

// Savepoint issues SAVEPOINT on the connection and records it. An empty name
// is replaced by a generated one.
func (c *Conn) Savepoint(ctx context.Context, name string) (*Savepoint, error) {
	if c.Closed() {
		return nil, tracker.Errorf(tracker.CodeClosed, "savepoint", "connection is closed")
	}
	if name == "" {
		name = fmt.Sprintf("dbtrack_sp_%d", c.savepointSeq.Add(1))
	}
	if !savepointName.MatchString(name) {
		return nil, tracker.Errorf(tracker.CodeInvalidSavepoint, "savepoint", "invalid savepoint name %q", name)
	}
	if err := c.exec(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return c.savepoints.Track(&savepointHandle{name: name}, func(h *savepointHandle) *Savepoint {
		return &Savepoint{
			Tracker: tracker.New[*savepointHandle](c.opts, tracker.KindSavepoint, h, nil),
			conn:    c,
		}
	}), nil
}

// RollbackTo issues ROLLBACK TO SAVEPOINT and releases every savepoint set
// after sp. sp stays active.
func (c *Conn) RollbackTo(ctx context.Context, sp *Savepoint) error {
	if err := c.checkSavepoint("rollback to savepoint", sp); err != nil {
		return err
	}
	if err := c.exec(ctx, "ROLLBACK TO SAVEPOINT "+sp.Name()); err != nil {
		return err
	}
	return c.savepoints.RollbackTo(sp)
}

// ReleaseSavepoint issues RELEASE SAVEPOINT and releases sp along with every
// savepoint set after it.
func (c *Conn) ReleaseSavepoint(ctx context.Context, sp *Savepoint) error {
	if err := c.checkSavepoint("release savepoint", sp); err != nil {
		return err
	}
	if err := c.exec(ctx, "RELEASE SAVEPOINT "+sp.Name()); err != nil {
		return err
	}
	return c.savepoints.Release(sp)
}

func (c *Conn) checkSavepoint(op string, sp *Savepoint) error {
	switch {
	case sp == nil:
		return tracker.Errorf(tracker.CodeInvalidSavepoint, op, "nil savepoint")
	case sp.conn != c:
		return tracker.Errorf(tracker.CodeInvalidSavepoint, op, "savepoint %q belongs to another connection", sp.Name())
	case sp.Closed():
		return tracker.Errorf(tracker.CodeInvalidSavepoint, op, "savepoint %q is no longer active", sp.Name())
	}
	return nil
}
