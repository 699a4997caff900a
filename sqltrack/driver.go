package sqltrack

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/tracker"
)

// ErrDriverNameTaken is returned by Register when database/sql already knows
// the driver name.
var ErrDriverNameTaken = errors.New("sql driver name already registered")

// Driver is a tracking driver.Driver. It is the root of everything opened
// through it.
type Driver struct {
	*tracker.Root[driver.Conn, *Conn]
	driver driver.Driver
}

var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
	_ tracker.RootNode     = (*Driver)(nil)
)

// NewDriver wraps d under the root name. opts may be nil.
func NewDriver(name string, d driver.Driver, opts *tracker.Options) *Driver {
	opts = opts.With(logger.String("root", name))
	return &Driver{
		Root:   tracker.NewRoot[driver.Conn, *Conn](opts, name, tracker.KindConnection),
		driver: d,
	}
}

// Register wraps d, adds the root to registrar and registers it with
// database/sql under name.
func Register(registrar *tracker.Registrar, name string, d driver.Driver, opts *tracker.Options) (*Driver, error) {
	if slices.Contains(sql.Drivers(), name) {
		return nil, errors.Wrapf(ErrDriverNameTaken, "driver %q", name)
	}
	drv := NewDriver(name, d, opts)
	if err := registrar.Register(drv); err != nil {
		return nil, err
	}
	sql.Register(name, drv)
	return drv, nil
}

// Unwrap returns the wrapped driver.
func (d *Driver) Unwrap() driver.Driver {
	return d.driver
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.driver.Open(name)
	if err != nil {
		return nil, err
	}
	return d.track(c), nil
}

func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	if dc, ok := d.driver.(driver.DriverContext); ok {
		c, err := dc.OpenConnector(name)
		if err != nil {
			return nil, err
		}
		return d.Connector(c), nil
	}
	return d.Connector(dsnConnector{dsn: name, driver: d.driver}), nil
}

// Connector wraps c so that the connections it makes are tracked under d.
func (d *Driver) Connector(c driver.Connector) *Connector {
	return &Connector{connector: c, driver: d}
}

func (d *Driver) track(c driver.Conn) *Conn {
	return d.TrackConnection(c, func(c driver.Conn) *Conn {
		return newConn(d.Options(), c)
	})
}

// Connector is a tracking driver.Connector.
type Connector struct {
	connector driver.Connector
	driver    *Driver
}

var (
	_ driver.Connector = (*Connector)(nil)
	_ io.Closer        = (*Connector)(nil)
)

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return c.driver.track(conn), nil
}

func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Close closes the wrapped connector when it holds resources of its own.
func (c *Connector) Close() error {
	if closer, ok := c.connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver {
	return c.driver
}

// WithConn runs fn with the tracked connection behind a pooled connection of
// db. db must have been opened through a tracking driver or connector.
func WithConn(ctx context.Context, db *sql.DB, fn func(*Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*Conn)
		if !ok {
			return tracker.Errorf(tracker.CodeNotTracked, "raw", "connection of type %T is not tracked", driverConn)
		}
		return fn(c)
	})
}
