// Package spitest is a minimal in-memory implementation of the spi
// capability set (spec section 6), used only by src/reactivesql's tests,
// the cmd/sqlbridge fixture runner and benchmarks/. It is not a real driver: there is no
// network I/O, no wire protocol, and every Result is held fully in memory.
//
// Grounded on the teacher's MockStreamConnection (src/driver/result_test.go):
// an index cursor over a canned record slice, plus a pull counter tests can
// assert on.
package spitest

import (
	"sync"
	"sync/atomic"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// Column describes one column of a canned table.
type Column struct {
	Name string
	Kind spi.Kind
}

// Table is a canned row set a Driver serves for a given SQL string.
type Table struct {
	Columns []Column
	Rows    [][]any // each row has len(Columns) values, nil meaning SQL NULL
}

// Driver is an in-memory spi.ConnectionFactory. Register query results with
// OnQuery/OnExec before subscribing; unregistered SQL text fails with
// ErrNoFixture.
type Driver struct {
	mu      sync.Mutex
	queries map[string]Table
	execs   map[string]int64 // SQL -> rows-affected

	// FailConnect, when non-nil, is returned instead of a Connection on the
	// next Subscribe call (and only that one).
	FailConnect error

	Connections atomic.Int64 // count of connections handed out, for tests
	Closes      atomic.Int64 // count of Close calls observed, for tests
}

func NewDriver() *Driver {
	return &Driver{queries: make(map[string]Table), execs: make(map[string]int64)}
}

func (d *Driver) OnQuery(sql string, t Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries[sql] = t
}

func (d *Driver) OnExec(sql string, rowsAffected int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs[sql] = rowsAffected
}

func (d *Driver) Subscribe(sub rs.Subscriber[spi.Connection]) {
	sub.OnSubscribe(noopSubscription{})
	if err := d.FailConnect; err != nil {
		d.FailConnect = nil
		sub.OnError(err)
		return
	}
	d.Connections.Add(1)
	sub.OnNext(&conn{driver: d})
	sub.OnComplete()
}

type conn struct {
	driver *Driver
	closed atomic.Bool
}

func (c *conn) CreateStatement(sql string) (spi.Statement, error) {
	return &statement{driver: c.driver, sql: sql}, nil
}

func (c *conn) CreateBatch() (spi.Batch, error) {
	return &batch{driver: c.driver}, nil
}

func (c *conn) Close() rs.Publisher[struct{}] {
	return closePublisher{c: c}
}

type closePublisher struct{ c *conn }

func (p closePublisher) Subscribe(sub rs.Subscriber[struct{}]) {
	sub.OnSubscribe(noopSubscription{})
	if p.c.closed.CompareAndSwap(false, true) {
		p.c.driver.Closes.Add(1)
	}
	sub.OnNext(struct{}{})
	sub.OnComplete()
}

// statement is a prepared statement over one SQL string. Bind/BindNull are
// accepted but not validated against positions; a fixture either matches
// by SQL text or it doesn't. Add() queues the currently-bound row for a
// single-statement batch driven through Statement.Execute.
type statement struct {
	driver    *Driver
	sql       string
	fetchSize int
	returning []string
	queued    int
}

func (s *statement) Bind(int, any) error           { return nil }
func (s *statement) BindNull(int, spi.Kind) error  { return nil }
func (s *statement) Add() error                    { s.queued++; return nil }
func (s *statement) FetchSize(n int) error          { s.fetchSize = n; return nil }
func (s *statement) ReturnGeneratedValues(names ...string) error {
	s.returning = names
	return nil
}

func (s *statement) Execute() rs.Publisher[spi.Result] {
	s.driver.mu.Lock()
	table, isQuery := s.driver.queries[s.sql]
	rowsAffected, isExec := s.driver.execs[s.sql]
	s.driver.mu.Unlock()

	n := s.queued
	if n == 0 {
		n = 1
	}
	return resultsPublisher{
		build: func() []spi.Result {
			results := make([]spi.Result, 0, n)
			for i := 0; i < n; i++ {
				switch {
				case isQuery:
					results = append(results, &result{table: table})
				case isExec:
					results = append(results, &result{rowsAffected: rowsAffected})
				default:
					return nil
				}
			}
			return results
		},
		missing: !isQuery && !isExec,
		sql:     s.sql,
	}
}

type batch struct {
	driver  *Driver
	entries []string
}

func (b *batch) Add(sql string) error {
	b.entries = append(b.entries, sql)
	return nil
}

func (b *batch) Execute() rs.Publisher[spi.Result] {
	b.driver.mu.Lock()
	defer b.driver.mu.Unlock()
	results := make([]spi.Result, 0, len(b.entries))
	for _, sql := range b.entries {
		rowsAffected, isExec := b.driver.execs[sql]
		if !isExec {
			return resultsPublisher{missing: true, sql: sql}
		}
		results = append(results, &result{rowsAffected: rowsAffected})
	}
	return resultsPublisher{build: func() []spi.Result { return results }}
}

// ErrNoFixture is returned when a Statement or Batch entry's SQL text has
// no registered OnQuery/OnExec fixture.
type ErrNoFixture struct{ SQL string }

func (e *ErrNoFixture) Error() string { return "spitest: no fixture registered for: " + e.SQL }

type resultsPublisher struct {
	build   func() []spi.Result
	missing bool
	sql     string
}

// Results are never back-pressured by this module (spec 4.3: only rows
// within a Result are paced), so this subscription delivers everything on
// its first Request and ignores the rest, while still honoring Cancel.
func (p resultsPublisher) Subscribe(sub rs.Subscriber[spi.Result]) {
	sub.OnSubscribe(&resultsSubscription{pub: p, sub: sub})
}

type resultsSubscription struct {
	pub       resultsPublisher
	sub       rs.Subscriber[spi.Result]
	started   bool
	cancelled atomic.Bool
}

func (s *resultsSubscription) Request(int64) {
	if s.started || s.cancelled.Load() {
		return
	}
	s.started = true
	if s.pub.missing {
		s.sub.OnError(&ErrNoFixture{SQL: s.pub.sql})
		return
	}
	for _, r := range s.pub.build() {
		if s.cancelled.Load() {
			return
		}
		s.sub.OnNext(r)
	}
	if !s.cancelled.Load() {
		s.sub.OnComplete()
	}
}

func (s *resultsSubscription) Cancel() { s.cancelled.Store(true) }

// result is a canned Result: either a row-bearing query result or a
// row-count exec result, never both.
type result struct {
	table        Table
	rowsAffected int64
}

func (r *result) RowsUpdated() rs.Publisher[int64] {
	return rowCountPublisher{n: r.rowsAffected}
}

func (r *result) Map(f func(spi.Row, spi.RowMetadata) (any, error)) rs.Publisher[any] {
	return mappedRowsPublisher{table: r.table, f: f}
}

type rowCountPublisher struct{ n int64 }

func (p rowCountPublisher) Subscribe(sub rs.Subscriber[int64]) {
	sub.OnSubscribe(&rowCountSubscription{n: p.n, sub: sub})
}

type rowCountSubscription struct {
	n    int64
	sub  rs.Subscriber[int64]
	done bool
}

func (s *rowCountSubscription) Request(int64) {
	if s.done {
		return
	}
	s.done = true
	s.sub.OnNext(s.n)
	s.sub.OnComplete()
}

func (s *rowCountSubscription) Cancel() { s.done = true }

type mappedRowsPublisher struct {
	table Table
	f     func(spi.Row, spi.RowMetadata) (any, error)
}

// Subscribe hands back a genuinely pull-based Subscription: each Request(n)
// maps and emits up to n more rows, synchronously and re-entrantly, so
// src/reactivesql's forwarder pacing (one row requested at a time) is
// exercised for real rather than raced against an eager dump.
func (p mappedRowsPublisher) Subscribe(sub rs.Subscriber[any]) {
	sub.OnSubscribe(&mappedRowsSubscription{
		rows: p.table.Rows,
		meta: &rowMetadata{cols: p.table.Columns},
		cols: p.table.Columns,
		f:    p.f,
		sub:  sub,
	})
}

type mappedRowsSubscription struct {
	rows [][]any
	cols []Column
	meta *rowMetadata
	f    func(spi.Row, spi.RowMetadata) (any, error)
	sub  rs.Subscriber[any]

	idx       int
	done      bool
	cancelled atomic.Bool
}

// Request emits up to n rows and, like a typical finite in-memory
// Iterable-backed publisher, signals onComplete eagerly as soon as it
// notices the row list is exhausted rather than waiting for one more pull
// to discover it (also covers the zero-row case, completing on the first
// Request with no elements emitted at all).
func (s *mappedRowsSubscription) Request(n int64) {
	if s.done || s.cancelled.Load() {
		return
	}
	for i := int64(0); i < n; i++ {
		if s.done || s.cancelled.Load() {
			return
		}
		if s.idx >= len(s.rows) {
			s.done = true
			s.sub.OnComplete()
			return
		}
		values := s.rows[s.idx]
		s.idx++
		mapped, err := s.f(&row{values: values, cols: s.cols}, s.meta)
		if err != nil {
			s.done = true
			s.sub.OnError(err)
			return
		}
		s.sub.OnNext(mapped)
	}
	if !s.done && s.idx >= len(s.rows) {
		s.done = true
		s.sub.OnComplete()
	}
}

func (s *mappedRowsSubscription) Cancel() { s.cancelled.Store(true) }

// noopSubscription is used for single-element publishers (connection
// factory, close) that never need real back-pressure.
type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

type row struct {
	values []any
	cols   []Column
}

func (r *row) Get(index0 int) (any, error) {
	return r.values[index0], nil
}

func (r *row) GetAs(index0 int, _ spi.Kind) (any, error) {
	return r.values[index0], nil
}

type rowMetadata struct {
	cols []Column
}

func (m *rowMetadata) ColumnCount() int          { return len(m.cols) }
func (m *rowMetadata) ColumnName(index0 int) string { return m.cols[index0].Name }
func (m *rowMetadata) Precision(int) int         { return 0 }
func (m *rowMetadata) Scale(int) int             { return 0 }
func (m *rowMetadata) Nullability(int) spi.Nullability {
	return spi.NullabilityUnknown
}

// NativeType always reports unsupported, exercising the row metadata
// adapter's derived-type fallback path (spec 4.2, "Driver version probing").
func (m *rowMetadata) NativeType(int) (string, bool) { return "", false }

func (m *rowMetadata) ColumnType(index0 int) spi.ColumnType {
	return spi.ColumnType{Kind: m.cols[index0].Kind}
}
