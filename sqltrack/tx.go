package sqltrack

import (
	"context"
	"database/sql/driver"

	"go.uber.org/multierr"

	"github.com/guileen/dbtrack/tracker"
)

// Tx is a tracked driver.Tx. Ending it, either way, releases every savepoint
// recorded on the connection before the driver commits or rolls back. A
// transaction still open when its connection closes is rolled back.
type Tx struct {
	*tracker.Tracker[driver.Tx]
	conn *Conn
}

var _ driver.Tx = (*Tx)(nil)

func newTx(c *Conn, tx driver.Tx) *Tx {
	return &Tx{
		Tracker: tracker.New(c.opts, tracker.KindTransaction, tx, driver.Tx.Rollback),
		conn:    c,
	}
}

func (t *Tx) Commit() error {
	return t.end("commit", driver.Tx.Commit)
}

func (t *Tx) Rollback() error {
	return t.end("rollback", driver.Tx.Rollback)
}

func (t *Tx) end(op string, fn func(driver.Tx) error) error {
	if t.Closed() {
		return tracker.Errorf(tracker.CodeClosed, op, "transaction already ended")
	}
	return t.Finish(op, func(tx driver.Tx) error {
		return multierr.Append(t.conn.savepoints.ReleaseAll(), fn(tx))
	})
}

// Savepoint sets a savepoint inside the transaction. See Conn.Savepoint.
func (t *Tx) Savepoint(ctx context.Context, name string) (*Savepoint, error) {
	if t.Closed() {
		return nil, tracker.Errorf(tracker.CodeClosed, "savepoint", "transaction already ended")
	}
	return t.conn.Savepoint(ctx, name)
}
