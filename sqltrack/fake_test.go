package sqltrack

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

var errFakeClose = errors.New("fake close failed")

// events records what the fake driver was asked to do, in order.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

func (e *events) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = nil
}

type fakeDriver struct {
	ev *events
	// convertArgs makes prepared statements implement driver.ColumnConverter.
	convertArgs bool

	mu    sync.Mutex
	conns []*fakeConn
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{ev: &events{}}
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	c := &fakeConn{ev: d.ev, convertArgs: d.convertArgs}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDriver) opened() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

type fakeConnector struct {
	d *fakeDriver
}

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return c.d.Open("")
}

func (c fakeConnector) Driver() driver.Driver {
	return c.d
}

type fakeConn struct {
	ev          *events
	closeErr    error
	convertArgs bool

	mu     sync.Mutex
	closes int
	resets int
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	c.ev.add("prepare " + query)
	if c.convertArgs {
		return &fakeConverterStmt{fakeStmt: &fakeStmt{ev: c.ev, query: query}}, nil
	}
	return &fakeStmt{ev: c.ev, query: query}, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.ev.add("close conn")
	return c.closeErr
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.ev.add("begin")
	return &fakeTx{ev: c.ev}, nil
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.ev.add("exec " + query)
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.ev.add("query " + query)
	return &fakeRows{ev: c.ev, name: query, remaining: 2}, nil
}

func (c *fakeConn) ResetSession(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	return nil
}

type fakeStmt struct {
	ev       *events
	query    string
	closeErr error
}

func (s *fakeStmt) Close() error {
	s.ev.add("close stmt " + s.query)
	return s.closeErr
}

func (s *fakeStmt) NumInput() int {
	return -1
}

func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	s.ev.add("stmt exec " + s.query)
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	s.ev.add("stmt query " + s.query)
	return &fakeRows{ev: s.ev, name: s.query, remaining: 2}, nil
}

// fakeConverterStmt takes one argument and logs every conversion.
type fakeConverterStmt struct {
	*fakeStmt
}

func (s *fakeConverterStmt) NumInput() int {
	return 1
}

func (s *fakeConverterStmt) ColumnConverter(int) driver.ValueConverter {
	return recordingConverter{ev: s.ev}
}

type recordingConverter struct {
	ev *events
}

func (c recordingConverter) ConvertValue(v any) (driver.Value, error) {
	c.ev.add(fmt.Sprintf("convert %v", v))
	return driver.DefaultParameterConverter.ConvertValue(v)
}

type fakeRows struct {
	ev        *events
	name      string
	remaining int
	closeErr  error
}

func (r *fakeRows) Columns() []string {
	return []string{"n"}
}

func (r *fakeRows) Close() error {
	r.ev.add("close rows " + r.name)
	return r.closeErr
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.remaining == 0 {
		return io.EOF
	}
	dest[0] = int64(r.remaining)
	r.remaining--
	return nil
}

type fakeTx struct {
	ev *events
}

func (t *fakeTx) Commit() error {
	t.ev.add("commit")
	return nil
}

func (t *fakeTx) Rollback() error {
	t.ev.add("rollback")
	return nil
}
