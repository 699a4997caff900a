package sqltrack

import (
	"context"
	"database/sql/driver"

	"github.com/guileen/dbtrack/tracker"
)

// Stmt is a tracked driver.Stmt. Result sets it produces are tracked both
// here and on the owning connection.
type Stmt struct {
	*tracker.Tracker[driver.Stmt]
	conn  *Conn
	query string
	rows  *tracker.Registry[driver.Rows, *Rows]
}

var (
	_ driver.Stmt              = (*Stmt)(nil)
	_ driver.StmtExecContext   = (*Stmt)(nil)
	_ driver.StmtQueryContext  = (*Stmt)(nil)
	_ driver.NamedValueChecker = (*Stmt)(nil)
)

func newStmt(c *Conn, s driver.Stmt, query string) *Stmt {
	st := &Stmt{
		conn:  c,
		query: query,
		rows:  tracker.NewRegistry[driver.Rows, *Rows](c.opts, tracker.KindRows),
	}
	st.Tracker = tracker.New(c.opts, tracker.KindStatement, s, driver.Stmt.Close, st.rows)
	return st
}

// driverStmt is what database/sql is handed for s.
func (s *Stmt) driverStmt() driver.Stmt {
	if _, ok := s.Handle().(driver.ColumnConverter); ok { //nolint:staticcheck // still honoured by database/sql
		return columnConverterStmt{s}
	}
	return s
}

// columnConverterStmt exposes the driver statement's ColumnConverter, which
// database/sql only looks for on the statement it was handed.
type columnConverterStmt struct {
	*Stmt
}

func (s columnConverterStmt) ColumnConverter(idx int) driver.ValueConverter {
	return s.Handle().(driver.ColumnConverter).ColumnConverter(idx) //nolint:staticcheck // still honoured by database/sql
}

// SQL returns the text the statement was prepared from.
func (s *Stmt) SQL() string {
	return s.query
}

// TrackedRows is the live view of result sets produced by this statement.
func (s *Stmt) TrackedRows() tracker.View[driver.Rows, *Rows] {
	return s.rows
}

// WrapRows tracks r under this statement and its connection.
func (s *Stmt) WrapRows(r driver.Rows) *Rows {
	rows, _ := s.rows.GetOrCreate(r, func() (*Rows, error) {
		return s.conn.WrapRows(r), nil
	})
	return rows
}

func (s *Stmt) NumInput() int {
	return s.Handle().NumInput()
}

//nolint:staticcheck // required by driver.Stmt
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.Handle().Exec(args)
}

//nolint:staticcheck // required by driver.Stmt
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	r, err := s.Handle().Query(args)
	if err != nil || r == nil {
		return nil, err
	}
	return s.WrapRows(r), nil
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if se, ok := s.Handle().(driver.StmtExecContext); ok {
		return se.ExecContext(ctx, args)
	}
	values, err := namedValuesToValues(args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Handle().Exec(values) //nolint:staticcheck // fallback for drivers without StmtExecContext
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	var (
		r   driver.Rows
		err error
	)
	if sq, ok := s.Handle().(driver.StmtQueryContext); ok {
		r, err = sq.QueryContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = namedValuesToValues(args); err != nil {
			return nil, err
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		r, err = s.Handle().Query(values) //nolint:staticcheck // fallback for drivers without StmtQueryContext
	}
	if err != nil || r == nil {
		return nil, err
	}
	return s.WrapRows(r), nil
}

// CheckNamedValue defers to the statement's checker, then the connection's.
func (s *Stmt) CheckNamedValue(nv *driver.NamedValue) error {
	if nvc, ok := s.Handle().(driver.NamedValueChecker); ok {
		return nvc.CheckNamedValue(nv)
	}
	return s.conn.CheckNamedValue(nv)
}

func namedValuesToValues(args []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, tracker.Errorf(tracker.CodeUnsupported, "exec", "driver does not support named parameter %q", arg.Name)
		}
		values[i] = arg.Value
	}
	return values, nil
}
