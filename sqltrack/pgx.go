package sqltrack

import (
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/guileen/dbtrack/tracker"
)

// NewPgxDriver wraps pgx's database/sql driver.
func NewPgxDriver(name string, opts *tracker.Options) *Driver {
	return NewDriver(name, stdlib.GetDefaultDriver(), opts)
}

// OpenPgx opens a database whose connections are made by pgx and tracked
// under d. No connection is made until the pool needs one.
func OpenPgx(d *Driver, dsn string, options ...stdlib.OptionOpenDB) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	return sql.OpenDB(d.Connector(stdlib.GetConnector(*cfg, options...))), nil
}
