package reactivesql

import (
	"sync"
	"sync/atomic"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// subscriptionCore is the shared engine behind both Subscription variants
// (query and batch, spec 4.5). It owns the demand pump, the connection
// slot and the forwarder table; queryPublisher[T] and batchPublisher are
// thin, type-safe wrappers that plug in their own start/execute logic and
// bridge `any`-typed internals back to a typed rs.Subscriber.
//
// Internals use `any` rather than a type parameter because a forwarder may
// relay either row counts (int64) or records, and spi.Result.Map is itself
// type-erased (Go has no generic interface methods) — see spi.Result's doc
// comment. The public Subscribe entry point is generic and converts once,
// at the boundary.
type subscriptionCore struct {
	demand demandCounter

	// id correlates every log line and mapping-error notification this
	// subscription produces across its lifetime, since a single caller may
	// have many concurrent subscriptions in flight against the same logger.
	id string

	subscribed atomic.Bool
	conn       atomic.Pointer[spi.Connection]

	forwarders   sync.Map // int64 -> *forwarder
	nextFwdIndex atomic.Int64

	resultStreamDone atomic.Bool

	emit     func(any)
	fail     func(error)
	complete func()

	// mappingErrors receives non-terminal per-row mapping failures (spec
	// 4.3: the offending row is suppressed, the stream continues). Defaults
	// to a no-op if left nil; queryPublisher wires it to the package
	// logger.
	mappingErrors func(error)

	// start is invoked exactly once, the first time demand becomes
	// positive (spec 4.5: IDLE -> RUNNING transition).
	start func()
}

func (c *subscriptionCore) init() {
	c.demand.pump = c.pump
}

// Request implements rs.Subscription. An invalid n is routed through
// failWith so it closes the connection and marks the subscription
// terminated, not just the downstream OnError (reactive-streams rule 3.9).
func (c *subscriptionCore) Request(n int64) {
	c.demand.request(n, c.failWith)
}

// pump runs under demandCounter's re-entrancy guard. It lazily starts the
// query/batch on first positive demand, then tries to unstall any
// forwarder that previously ran out of demand.
func (c *subscriptionCore) pump() {
	if c.demand.completed.Load() {
		return
	}
	if c.subscribed.CompareAndSwap(false, true) {
		c.start()
		return
	}
	c.forwarders.Range(func(_, v any) bool {
		v.(*forwarder).tryAdvance()
		return true
	})
}

// deliver forwards one item downstream, honoring the completed flag so no
// OnNext is ever emitted after a terminal signal (spec 5, ordering
// guarantees).
func (c *subscriptionCore) deliver(item any) {
	if c.demand.completed.Load() {
		return
	}
	c.emit(item)
}

// registerForwarder installs a new forwarder under the next monotonically
// increasing index (spec 3: "never concurrently inserted under the same
// key").
func (c *subscriptionCore) registerForwarder(f *forwarder) int64 {
	idx := c.nextFwdIndex.Add(1) - 1
	c.forwarders.Store(idx, f)
	return idx
}

func (c *subscriptionCore) forwarderDone(idx int64) {
	c.forwarders.Delete(idx)
	c.tryComplete()
}

func (c *subscriptionCore) resultStreamComplete() {
	c.resultStreamDone.Store(true)
	c.tryComplete()
}

// tryComplete implements spec 4.3's completion rule: the subscription only
// signals onComplete once the result stream is exhausted AND the forwarder
// table is empty.
func (c *subscriptionCore) tryComplete() {
	if !c.resultStreamDone.Load() {
		return
	}
	empty := true
	c.forwarders.Range(func(_, _ any) bool {
		empty = false
		return false
	})
	if !empty {
		return
	}
	if !c.demand.completed.CompareAndSwap(false, true) {
		return
	}
	c.closeConnection()
	c.complete()
}

// failWith terminates the subscription with an error, exactly once, closing
// the connection on the same path (spec 7, propagation policy).
func (c *subscriptionCore) failWith(err error) {
	if !c.demand.completed.CompareAndSwap(false, true) {
		return
	}
	c.closeConnection()
	c.fail(err)
}

// Cancel implements rs.Subscription: the first successful CAS closes
// the connection and suppresses onComplete (spec 4.5, 5).
func (c *subscriptionCore) Cancel() {
	if !c.demand.completed.CompareAndSwap(false, true) {
		return
	}
	c.forwarders.Range(func(key, v any) bool {
		v.(*forwarder).cancelUpstream()
		c.forwarders.Delete(key)
		return true
	})
	c.closeConnection()
}

// closeConnection atomically swaps the connection slot to nil and
// subscribes a fire-and-forget handler to its close publisher (spec 4.5:
// "closing a null or already-closed connection is a no-op").
func (c *subscriptionCore) closeConnection() {
	old := c.conn.Swap(nil)
	if old == nil {
		return
	}
	conn := *old
	if conn == nil {
		return
	}
	conn.Close().Subscribe(rs.SubscriberFunc[struct{}]{
		Subscribe: func(sub rs.Subscription) { sub.Request(unboundedDemand) },
	})
}

func (c *subscriptionCore) setConnection(conn spi.Connection) {
	c.conn.Store(&conn)
}
