// Package blocking is the legacy, synchronous cursor path (spec 4.7): a
// thin bridge that drives an rs.Publisher to completion on the calling
// goroutine and hands back a plain slice or scalar. A caller opts into it
// simply by importing this package instead of driving src/reactivesql's
// Publisher directly; it shares no mutable state with the non-blocking
// core — each call opens its own cursor-style subscriber, independent of
// any other in-flight subscription.
//
// Grounded on the teacher driver's synchronous Run/RunWithContext
// (src/driver/run.go): a blocking call that logs start/end, times the
// call and returns ([]columns, []rows, error) rather than a stream.
package blocking

import (
	"context"
	"sync"
	"time"

	"github.com/seuros/reactive-sql-bridge/src/logging"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
)

// Options configures a blocking call.
type Options struct {
	// MaxRows caps how many elements the record cursor fetches before it
	// stops requesting more and cancels the subscription. Zero means
	// unbounded (fetch until the publisher completes).
	MaxRows int64
	Logger  logging.Logger
}

// DataAccessError wraps a failure surfaced while draining a publisher
// synchronously, or a context cancellation (spec 7).
type DataAccessError struct {
	Query string
	Err   error
}

func (e *DataAccessError) Error() string {
	if e.Query != "" {
		return "blocking: " + e.Query + ": " + e.Err.Error()
	}
	return "blocking: " + e.Err.Error()
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// Records drains pub to completion, applying the classic JDBC-style
// "fetchNext while moreRequested" loop: the cursor subscription requests
// one row at a time and the caller's context or MaxRows can stop it early
// by cancelling (spec 4.7, "record subscription").
func Records[T any](ctx context.Context, pub rs.Publisher[T], opts Options) ([]T, error) {
	log := logger(opts.Logger)
	started := time.Now()
	log.Debug("blocking: opening cursor")

	cur := &cursorSubscription[T]{
		ctx:     ctx,
		limit:   opts.MaxRows,
		done:    make(chan struct{}),
	}
	pub.Subscribe(cur)
	<-cur.done

	log.Debug("blocking: cursor closed", "rows", len(cur.rows), "elapsed", time.Since(started))
	if cur.err != nil {
		return cur.rows, &DataAccessError{Err: cur.err}
	}
	return cur.rows, nil
}

// RowCount drains pub for exactly one value: a row-count Result's
// RowsUpdated stream has one element followed by completion (spec 4.7,
// "row-count subscription": single onNext then onComplete).
func RowCount(ctx context.Context, pub rs.Publisher[int64], opts Options) (int64, error) {
	rows, err := Records[int64](ctx, pub, Options{MaxRows: 1, Logger: opts.Logger})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0], nil
}

func logger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOp{}
	}
	return l
}

// cursorSubscription lazily opens on OnSubscribe (the first Request call
// only happens once a caller actually asks for rows, matching the
// teacher's lazy-connection acquisition) and pulls one element at a time
// until the limit is reached, the context is cancelled, or the publisher
// terminates. It closes its upstream on cancel or error, independent of
// any non-blocking subscription sharing the same driver.
type cursorSubscription[T any] struct {
	ctx   context.Context
	limit int64

	mu   sync.Mutex
	sub  rs.Subscription
	rows []T
	err  error

	once sync.Once
	done chan struct{}
}

func (c *cursorSubscription[T]) OnSubscribe(sub rs.Subscription) {
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	if c.ctx != nil {
		go func() {
			select {
			case <-c.ctx.Done():
				c.fail(c.ctx.Err())
			case <-c.done:
			}
		}()
	}
	sub.Request(1)
}

func (c *cursorSubscription[T]) OnNext(v T) {
	c.mu.Lock()
	c.rows = append(c.rows, v)
	n := int64(len(c.rows))
	sub := c.sub
	c.mu.Unlock()

	if c.limit > 0 && n >= c.limit {
		sub.Cancel()
		c.finish()
		return
	}
	sub.Request(1)
}

func (c *cursorSubscription[T]) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.finish()
}

func (c *cursorSubscription[T]) OnComplete() {
	c.finish()
}

func (c *cursorSubscription[T]) fail(err error) {
	c.mu.Lock()
	sub := c.sub
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
	c.finish()
}

func (c *cursorSubscription[T]) finish() {
	c.once.Do(func() { close(c.done) })
}
