package sqltrack

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

func testOptions() *tracker.Options {
	return &tracker.Options{Logger: logger.Discard(logger.LevelInfo)}
}

func openConn(t *testing.T) (*Conn, *fakeDriver) {
	t.Helper()
	fd := newFakeDriver()
	d := NewDriver("fake", fd, testOptions())
	c, err := d.Open("")
	require.NoError(t, err)
	conn, ok := c.(*Conn)
	require.True(t, ok)
	return conn, fd
}

func TestStatementRowsTrackedOnStatementAndConnection(t *testing.T) {
	ctx := context.Background()
	conn, _ := openConn(t)

	ds, err := conn.PrepareContext(ctx, "select n")
	require.NoError(t, err)
	stmt := ds.(*Stmt)
	assert.Equal(t, "select n", stmt.SQL())
	assert.Equal(t, 1, conn.TrackedStatements().Len())

	dr, err := stmt.QueryContext(ctx, nil)
	require.NoError(t, err)
	rows := dr.(*Rows)
	assert.Equal(t, 1, stmt.TrackedRows().Len())
	assert.Equal(t, 1, conn.TrackedRows().Len())
	assert.Same(t, rows, stmt.WrapRows(rows.Handle()))
	assert.Same(t, rows, conn.WrapRows(rows.Handle()))

	require.NoError(t, rows.Close())
	assert.Zero(t, stmt.TrackedRows().Len())
	assert.Zero(t, conn.TrackedRows().Len())
}

func TestStatementCloseClosesItsRows(t *testing.T) {
	ctx := context.Background()
	conn, fd := openConn(t)

	ds, err := conn.PrepareContext(ctx, "select n")
	require.NoError(t, err)
	dr, err := ds.(*Stmt).QueryContext(ctx, nil)
	require.NoError(t, err)
	fd.ev.reset()

	require.NoError(t, ds.Close())
	assert.True(t, dr.(*Rows).Closed())
	assert.Zero(t, conn.TrackedRows().Len())
	assert.Zero(t, conn.TrackedStatements().Len())
	assert.Equal(t, []string{"close rows select n", "close stmt select n"}, fd.ev.all())
}

func TestConnCloseCascadesInOrder(t *testing.T) {
	ctx := context.Background()
	conn, fd := openConn(t)

	_, err := conn.QueryContext(ctx, "select q", nil)
	require.NoError(t, err)
	_, err = conn.PrepareContext(ctx, "s")
	require.NoError(t, err)
	_, err = conn.BeginTx(ctx, driver.TxOptions{})
	require.NoError(t, err)
	sp, err := conn.Savepoint(ctx, "a")
	require.NoError(t, err)
	fd.ev.reset()

	require.NoError(t, conn.Close())
	assert.Equal(t, []string{"close rows select q", "close stmt s", "rollback", "close conn"}, fd.ev.all())
	assert.True(t, sp.Closed())
	assert.Empty(t, conn.TrackedSavepoints())
	assert.Zero(t, conn.TrackedTxs().Len())

	require.NoError(t, conn.Close())
	assert.Equal(t, 1, fd.opened()[0].closeCount())
}

func TestConnCloseAggregatesFailures(t *testing.T) {
	conn, fd := openConn(t)
	fd.opened()[0].closeErr = errFakeClose
	errRows := errors.New("rows close failed")
	conn.WrapRows(&fakeRows{ev: fd.ev, name: "r", closeErr: errRows})

	err := conn.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errRows)
	assert.ErrorIs(t, err, errFakeClose)
	causes := tracker.Causes(err)
	require.Len(t, causes, 2)
	assert.Equal(t, errRows, causes[0])
}

func TestBeginTxFallbackRejectsOptions(t *testing.T) {
	conn, _ := openConn(t)

	_, err := conn.BeginTx(context.Background(), driver.TxOptions{ReadOnly: true})
	assert.ErrorIs(t, err, tracker.ErrUnsupported)
	assert.Zero(t, conn.TrackedTxs().Len())
}

func TestCheckNamedValueDefersToDefault(t *testing.T) {
	conn, _ := openConn(t)
	assert.ErrorIs(t, conn.CheckNamedValue(&driver.NamedValue{Value: 1}), driver.ErrSkip)
	assert.True(t, conn.IsValid())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsValid())
}

func TestAllocationCapturedForConnectionsAtTrace(t *testing.T) {
	d := NewDriver("fake", newFakeDriver(), &tracker.Options{Logger: logger.Discard(logger.LevelTrace)})
	c, err := d.Open("")
	require.NoError(t, err)
	alloc := c.(*Conn).Allocation()
	require.NotNil(t, alloc)
	assert.Contains(t, alloc.Stack(), "TestAllocationCapturedForConnectionsAtTrace")
	require.NoError(t, c.Close())
}

func TestPreparedStatementKeepsColumnConverter(t *testing.T) {
	ctx := context.Background()
	conn, _ := openConn(t)

	ds, err := conn.PrepareContext(ctx, "select n")
	require.NoError(t, err)
	_, ok := ds.(driver.ColumnConverter) //nolint:staticcheck
	assert.False(t, ok, "plain statements do not claim a converter")

	conn.Handle().(*fakeConn).convertArgs = true
	ds, err = conn.PrepareContext(ctx, "insert n")
	require.NoError(t, err)
	cc, ok := ds.(driver.ColumnConverter) //nolint:staticcheck
	require.True(t, ok)
	assert.Equal(t, 1, ds.NumInput())
	_, err = cc.ColumnConverter(0).ConvertValue(7)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.TrackedStatements().Len())

	require.NoError(t, ds.Close())
	assert.Equal(t, 1, conn.TrackedStatements().Len())
}
