package reactivesql_test

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/retry"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// noopSubscription is handed to a connection subscriber that never itself
// gates on demand, mirroring spitest.Driver's single-element eager
// connection publisher.
type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

// noopVoidPublisher backs Close() for the fakes below; nothing in these
// tests asserts on connection-close behavior.
type noopVoidPublisher struct{}

func (noopVoidPublisher) Subscribe(sub rs.Subscriber[struct{}]) {
	sub.OnSubscribe(noopSubscription{})
	sub.OnComplete()
}

// fakeConn fails at CreateStatement, a stage only reachable once a
// Connection has actually been handed back through onConn. Its "prepare"
// stage error is how these tests distinguish "connect succeeded" from
// "connect produced nothing."
type fakeConn struct{}

func (fakeConn) CreateStatement(sql string) (spi.Statement, error) {
	return nil, fmt.Errorf("prepare boom")
}
func (fakeConn) CreateBatch() (spi.Batch, error) { return nil, fmt.Errorf("batch boom") }
func (fakeConn) Close() rs.Publisher[struct{}]   { return noopVoidPublisher{} }

// asyncConnFactory delivers its connection (or error) from a separate
// goroutine, after Subscribe has already returned — unlike spitest.Driver,
// which calls OnNext/OnError before Subscribe returns. A connect path that
// assumes synchronous delivery (reading closed-over locals right after
// calling Subscribe) sees no connection at all against a factory shaped
// like this one.
type asyncConnFactory struct {
	conn spi.Connection
	err  error
}

func (f *asyncConnFactory) Subscribe(sub rs.Subscriber[spi.Connection]) {
	sub.OnSubscribe(noopSubscription{})
	go func() {
		if f.err != nil {
			sub.OnError(f.err)
			return
		}
		sub.OnNext(f.conn)
		sub.OnComplete()
	}()
}

// flakyAsyncFactory fails the first failTimes connect attempts with a
// retriable error, asynchronously, then succeeds.
type flakyAsyncFactory struct {
	attempts  int32
	failTimes int32
	conn      spi.Connection
}

func (f *flakyAsyncFactory) Subscribe(sub rs.Subscriber[spi.Connection]) {
	sub.OnSubscribe(noopSubscription{})
	n := atomic.AddInt32(&f.attempts, 1)
	go func() {
		if n <= f.failTimes {
			sub.OnError(fmt.Errorf("connection refused (attempt %d)", n))
			return
		}
		sub.OnNext(f.conn)
		sub.OnComplete()
	}()
}

// asyncResultSubscriber signals a channel on the terminal signal so a test
// can wait for a connect sequence that settles on another goroutine.
type asyncResultSubscriber struct {
	sub  rs.Subscription
	done chan struct{}
	err  error
}

func (s *asyncResultSubscriber) OnSubscribe(sub rs.Subscription) { s.sub = sub }
func (s *asyncResultSubscriber) OnNext(record.Record)            {}
func (s *asyncResultSubscriber) OnError(err error) {
	s.err = err
	close(s.done)
}
func (s *asyncResultSubscriber) OnComplete() { close(s.done) }

func waitForDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the async connect sequence to settle")
	}
}

func TestRecords_AsyncConnectionFactory_DeliversFromAnotherGoroutine(t *testing.T) {
	factory := &asyncConnFactory{conn: fakeConn{}}

	pub := reactivesql.Records(factory, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{})

	sub := &asyncResultSubscriber{done: make(chan struct{})}
	pub.Subscribe(sub)
	sub.sub.Request(1)
	waitForDone(t, sub.done)

	de, ok := sub.err.(*reactivesql.DriverError)
	if !ok {
		t.Fatalf("expected *DriverError from the fake connection's CreateStatement failure, got %T (%v)", sub.err, sub.err)
	}
	if de.Stage != "prepare" {
		t.Fatalf("expected prepare-stage error (proves render/bind/execute ran after an async connect), got stage %q", de.Stage)
	}
}

func TestRecords_AsyncConnectionFactory_ErrorPropagatesAsConnectStage(t *testing.T) {
	factory := &asyncConnFactory{err: fmt.Errorf("syntax error near SELECT")}

	pub := reactivesql.Records(factory, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{})

	sub := &asyncResultSubscriber{done: make(chan struct{})}
	pub.Subscribe(sub)
	sub.sub.Request(1)
	waitForDone(t, sub.done)

	de, ok := sub.err.(*reactivesql.DriverError)
	if !ok {
		t.Fatalf("expected *DriverError, got %T (%v)", sub.err, sub.err)
	}
	if de.Stage != "connect" {
		t.Fatalf("expected connect-stage error, got stage %q", de.Stage)
	}
}

func TestRecords_AsyncConnectionFactory_RetriesTransientErrorThenSucceeds(t *testing.T) {
	factory := &flakyAsyncFactory{failTimes: 2, conn: fakeConn{}}
	policy := &retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 1, JitterFactor: 0}

	pub := reactivesql.Records(factory, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{RetryPolicy: policy})

	sub := &asyncResultSubscriber{done: make(chan struct{})}
	pub.Subscribe(sub)
	sub.sub.Request(1)
	waitForDone(t, sub.done)

	de, ok := sub.err.(*reactivesql.DriverError)
	if !ok {
		t.Fatalf("expected *DriverError from the fake connection's CreateStatement failure after a successful retry, got %T (%v)", sub.err, sub.err)
	}
	if de.Stage != "prepare" {
		t.Fatalf("expected prepare-stage error, proving the 3rd connect attempt succeeded, got stage %q", de.Stage)
	}
	if got := atomic.LoadInt32(&factory.attempts); got != 3 {
		t.Fatalf("expected exactly 3 connect attempts, got %d", got)
	}
}

func TestRecords_AsyncConnectionFactory_ExhaustsRetriesAndFails(t *testing.T) {
	factory := &flakyAsyncFactory{failTimes: 10, conn: fakeConn{}}
	policy := &retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 1, JitterFactor: 0}

	pub := reactivesql.Records(factory, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{RetryPolicy: policy})

	sub := &asyncResultSubscriber{done: make(chan struct{})}
	pub.Subscribe(sub)
	sub.sub.Request(1)
	waitForDone(t, sub.done)

	de, ok := sub.err.(*reactivesql.DriverError)
	if !ok {
		t.Fatalf("expected *DriverError, got %T (%v)", sub.err, sub.err)
	}
	if _, ok := de.Err.(*retry.ExhaustedError); !ok {
		t.Fatalf("expected the connect-stage error to wrap *retry.ExhaustedError, got %T (%v)", de.Err, de.Err)
	}
	if got := atomic.LoadInt32(&factory.attempts); got != 2 {
		t.Fatalf("expected exactly 2 connect attempts (MaxAttempts), got %d", got)
	}
}
