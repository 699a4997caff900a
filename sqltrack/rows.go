package sqltrack

import (
	"database/sql/driver"
	"io"
	"reflect"

	"github.com/guileen/dbtrack/tracker"
)

var scanTypeAny = reflect.TypeFor[any]()

// Rows is a tracked driver.Rows cursor.
type Rows struct {
	*tracker.Tracker[driver.Rows]
}

var (
	_ driver.Rows                           = (*Rows)(nil)
	_ driver.RowsNextResultSet              = (*Rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
	_ driver.RowsColumnTypeLength           = (*Rows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*Rows)(nil)
)

func newRows(opts *tracker.Options, r driver.Rows) *Rows {
	return &Rows{Tracker: tracker.New(opts, tracker.KindRows, r, driver.Rows.Close)}
}

func (r *Rows) Columns() []string {
	return r.Handle().Columns()
}

func (r *Rows) Next(dest []driver.Value) error {
	return r.Handle().Next(dest)
}

func (r *Rows) HasNextResultSet() bool {
	if nrs, ok := r.Handle().(driver.RowsNextResultSet); ok {
		return nrs.HasNextResultSet()
	}
	return false
}

func (r *Rows) NextResultSet() error {
	if nrs, ok := r.Handle().(driver.RowsNextResultSet); ok {
		return nrs.NextResultSet()
	}
	return io.EOF
}

func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if ct, ok := r.Handle().(driver.RowsColumnTypeDatabaseTypeName); ok {
		return ct.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	if ct, ok := r.Handle().(driver.RowsColumnTypeScanType); ok {
		return ct.ColumnTypeScanType(index)
	}
	return scanTypeAny
}

func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	if ct, isCT := r.Handle().(driver.RowsColumnTypeNullable); isCT {
		return ct.ColumnTypeNullable(index)
	}
	return false, false
}

func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	if ct, isCT := r.Handle().(driver.RowsColumnTypeLength); isCT {
		return ct.ColumnTypeLength(index)
	}
	return 0, false
}

func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if ct, isCT := r.Handle().(driver.RowsColumnTypePrecisionScale); isCT {
		return ct.ColumnTypePrecisionScale(index)
	}
	return 0, 0, false
}
