package sqltrack

import (
	"context"
	"database/sql/driver"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

// Conn is a tracked driver.Conn. Every statement, result set, transaction and
// savepoint created through it is tracked until closed, and closing the Conn
// closes whatever is still open.
type Conn struct {
	*tracker.Tracker[driver.Conn]
	opts *tracker.Options

	rows       *tracker.Registry[driver.Rows, *Rows]
	stmts      *tracker.Registry[driver.Stmt, *Stmt]
	txs        *tracker.Registry[driver.Tx, *Tx]
	savepoints *tracker.Ledger[*savepointHandle, *Savepoint]

	savepointSeq atomic.Uint64
}

var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)

func newConn(opts *tracker.Options, c driver.Conn) *Conn {
	cn := &Conn{
		opts:       opts,
		rows:       tracker.NewRegistry[driver.Rows, *Rows](opts, tracker.KindRows),
		stmts:      tracker.NewRegistry[driver.Stmt, *Stmt](opts, tracker.KindStatement),
		txs:        tracker.NewRegistry[driver.Tx, *Tx](opts, tracker.KindTransaction),
		savepoints: tracker.NewLedger[*savepointHandle, *Savepoint](tracker.KindSavepoint),
	}
	cn.Tracker = tracker.New(opts, tracker.KindConnection, c, driver.Conn.Close,
		cn.rows, cn.stmts, cn.txs, cn.savepoints)
	return cn
}

// TrackedRows is the live view of open result sets, including those produced
// by statements.
func (c *Conn) TrackedRows() tracker.View[driver.Rows, *Rows] {
	return c.rows
}

// TrackedStatements is the live view of open statements.
func (c *Conn) TrackedStatements() tracker.View[driver.Stmt, *Stmt] {
	return c.stmts
}

// TrackedTxs is the live view of open transactions.
func (c *Conn) TrackedTxs() tracker.View[driver.Tx, *Tx] {
	return c.txs
}

// TrackedSavepoints returns the active savepoints, oldest first.
func (c *Conn) TrackedSavepoints() []*Savepoint {
	return c.savepoints.Active()
}

// WrapStmt returns the tracker for s, tracking it if needed. Wrapping the
// same statement twice yields the same *Stmt.
func (c *Conn) WrapStmt(s driver.Stmt, query string) *Stmt {
	return c.stmts.CreateIfAbsent(s, func(s driver.Stmt) *Stmt {
		return newStmt(c, s, query)
	})
}

// WrapRows returns the tracker for r, tracking it if needed.
func (c *Conn) WrapRows(r driver.Rows) *Rows {
	return c.rows.CreateIfAbsent(r, c.newRows)
}

func (c *Conn) newRows(r driver.Rows) *Rows {
	return newRows(c.opts, r)
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.WrapStmt(s, query).driverStmt(), nil
}

// prepare prepares on the driver connection without tracking.
func (c *Conn) prepare(ctx context.Context, query string) (driver.Stmt, error) {
	if pc, ok := c.Handle().(driver.ConnPrepareContext); ok {
		return pc.PrepareContext(ctx, query)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Handle().Prepare(query)
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		tx  driver.Tx
		err error
	)
	if bt, ok := c.Handle().(driver.ConnBeginTx); ok {
		tx, err = bt.BeginTx(ctx, opts)
	} else {
		if opts.Isolation != driver.IsolationLevel(0) || opts.ReadOnly {
			return nil, tracker.Errorf(tracker.CodeUnsupported, "begin", "driver does not support isolation level or read-only transactions")
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		tx, err = c.Handle().Begin() //nolint:staticcheck // fallback for drivers without BeginTx
	}
	if err != nil {
		return nil, err
	}
	return c.txs.CreateIfAbsent(tx, func(tx driver.Tx) *Tx {
		return newTx(c, tx)
	}), nil
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ex, ok := c.Handle().(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return ex.ExecContext(ctx, query, args)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := c.Handle().(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	r, err := q.QueryContext(ctx, query, args)
	if err != nil || r == nil {
		return nil, err
	}
	return c.WrapRows(r), nil
}

func (c *Conn) Ping(ctx context.Context) error {
	if p, ok := c.Handle().(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ResetSession runs when database/sql hands the connection back out of its
// pool. Every savepoint still recorded is released first.
func (c *Conn) ResetSession(ctx context.Context) error {
	if err := c.savepoints.ReleaseAll(); err != nil {
		c.opts.Log().WarnContext(ctx, "releasing savepoints on session reset",
			logger.ErrorField(err))
	}
	if sr, ok := c.Handle().(driver.SessionResetter); ok {
		return sr.ResetSession(ctx)
	}
	return nil
}

func (c *Conn) IsValid() bool {
	if c.Closed() {
		return false
	}
	if v, ok := c.Handle().(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := c.Handle().(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

// exec runs query on the driver connection, untracked, for statements the
// tracking layer issues itself.
func (c *Conn) exec(ctx context.Context, query string) error {
	if ex, ok := c.Handle().(driver.ExecerContext); ok {
		_, err := ex.ExecContext(ctx, query, nil)
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}
	s, err := c.prepare(ctx, query)
	if err != nil {
		return err
	}
	defer s.Close()
	if se, ok := s.(driver.StmtExecContext); ok {
		_, err = se.ExecContext(ctx, nil)
		return err
	}
	_, err = s.Exec(nil) //nolint:staticcheck // fallback for drivers without StmtExecContext
	return err
}
