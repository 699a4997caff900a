// Package sqltrack wraps a database/sql driver so that every connection,
// statement, result set, transaction and savepoint it hands out is tracked.
//
// Closing a tracked connection closes, in order, its open result sets,
// statements and transactions, then any savepoints still recorded, and only
// then the driver connection. Register a wrapped driver under its own name,
// or pass a wrapped Connector to sql.OpenDB:
//
//	reg := tracker.NewRegistrar(nil)
//	drv, err := sqltrack.Register(reg, "pgx-tracked", stdlib.GetDefaultDriver(), nil)
//	if err != nil {
//	    // handle error
//	}
//	db, err := sql.Open("pgx-tracked", dsn)
//
// Savepoints are driven through the tracked connection, reachable with
// (*sql.Conn).Raw or WithConn.
package sqltrack
