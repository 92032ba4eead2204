package reactivesql

import (
	"sync/atomic"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
)

// forwarder relays one driver-side publisher (a Result's row-count stream
// or its mapped record stream) to the owning subscription one item at a
// time, pacing its own upstream requests against the subscription's shared
// demand counter (spec 4.4, "Forwarder").
//
// A nil item (produced when the record mapper suppresses a row after a
// mapping error, see resultSubscriber) is swallowed here: the upstream
// slot it occupied still counts as delivered for pacing purposes, but
// nothing is emitted downstream.
type forwarder struct {
	owner *subscriptionCore
	index int64

	upstream       rs.Subscription
	awaitingDemand atomic.Bool
	done           atomic.Bool
}

func newForwarder(owner *subscriptionCore) *forwarder {
	return &forwarder{owner: owner}
}

func (f *forwarder) OnSubscribe(sub rs.Subscription) {
	f.upstream = sub
	f.index = f.owner.registerForwarder(f)
	f.pullOrStall()
}

func (f *forwarder) OnNext(item any) {
	if f.done.Load() {
		return
	}
	if item != nil {
		f.owner.deliver(item)
	}
	f.pullOrStall()
}

func (f *forwarder) OnError(err error) {
	if f.done.CompareAndSwap(false, true) {
		f.owner.forwarders.Delete(f.index)
		f.owner.failWith(err)
	}
}

func (f *forwarder) OnComplete() {
	if f.done.CompareAndSwap(false, true) {
		f.owner.forwarderDone(f.index)
	}
}

// pullOrStall consumes one unit of the subscription's demand and requests
// the next upstream item, or marks itself stalled so subscriptionCore.pump
// retries it once more demand arrives.
func (f *forwarder) pullOrStall() {
	if f.owner.demand.moreRequested() {
		f.upstream.Request(1)
		return
	}
	f.awaitingDemand.Store(true)
}

// tryAdvance is called from subscriptionCore.pump after new demand arrives.
func (f *forwarder) tryAdvance() {
	if f.done.Load() {
		return
	}
	if !f.awaitingDemand.CompareAndSwap(true, false) {
		return
	}
	if f.owner.demand.moreRequested() {
		f.upstream.Request(1)
		return
	}
	f.awaitingDemand.Store(true)
}

func (f *forwarder) cancelUpstream() {
	if f.done.CompareAndSwap(false, true) && f.upstream != nil {
		f.upstream.Cancel()
	}
}

// boxInt64 adapts a rs.Subscriber[any] so it can subscribe to a
// rs.Publisher[int64] (spi.Result.RowsUpdated), boxing each count as an
// any at the one point where the two type parameters meet.
type boxInt64 struct {
	inner rs.Subscriber[any]
}

func (b boxInt64) OnSubscribe(sub rs.Subscription) { b.inner.OnSubscribe(sub) }
func (b boxInt64) OnNext(v int64)                  { b.inner.OnNext(v) }
func (b boxInt64) OnError(err error)               { b.inner.OnError(err) }
func (b boxInt64) OnComplete()                     { b.inner.OnComplete() }
