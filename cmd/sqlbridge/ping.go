package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/spi"
	"github.com/seuros/reactive-sql-bridge/src/spitest"
	"github.com/seuros/reactive-sql-bridge/src/urlresolver"
)

// pingCommand resolves a connection URL and round-trips one connection
// through the in-memory reference driver, proving the resolver's output
// and the spi.ConnectionFactory contract line up before a caller ever
// issues a query.
func pingCommand(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	urlFlag := fs.String("url", os.Getenv("SQLBRIDGE_URL"), "Connection URL (or set SQLBRIDGE_URL)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &exitError{code: 0}
		}
		return usageErrorf(2, "%v", err)
	}
	if *urlFlag == "" {
		return usageErrorf(2, "Missing --url (or set SQLBRIDGE_URL)")
	}

	cfg, err := urlresolver.Resolve(*urlFlag)
	if err != nil {
		return usageErrorf(2, "%v", err)
	}

	driver := spitest.NewDriver()
	var conn spi.Connection
	var connErr error
	driver.Subscribe(rs.SubscriberFunc[spi.Connection]{
		Subscribe: func(sub rs.Subscription) { sub.Request(1) },
		Next:      func(c spi.Connection) { conn = c },
		Err:       func(e error) { connErr = e },
	})
	if connErr != nil {
		return connErr
	}
	if conn != nil {
		conn.Close().Subscribe(rs.SubscriberFunc[struct{}]{
			Subscribe: func(sub rs.Subscription) { sub.Request(1) },
		})
	}

	fmt.Printf("dialect=%s address=%s database=%s ssl=%v\n", cfg.Dialect, cfg.Address(), cfg.Database, cfg.SSL)
	fmt.Printf("connections=%d closes=%d\n", driver.Connections.Load(), driver.Closes.Load())
	return nil
}
