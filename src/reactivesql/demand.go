package reactivesql

import "sync/atomic"

// unboundedDemand is the sticky fixed point a demand counter saturates at.
// Once reached it is treated as "no further limit" and is never decremented.
const unboundedDemand = int64(1<<63 - 1)

// demandCounter is a saturating 64-bit accumulator with a re-entrancy guard
// around its pump callback. It underpins every Subscription in this
// package: a downstream Request(n) adds to the counter and then tries to
// drain it by invoking pump; pump is where a Subscription actually talks to
// the driver and calls the downstream's OnNext.
//
// The guard exists because a synchronous downstream may call Request from
// within OnNext (re-entering pump while pump is already running on the same
// goroutine). Rather than recursing, the nested call sets pumpAgain and
// returns; the outer pump loop re-reads the counter until no caller asked
// for another pass.
type demandCounter struct {
	n         atomic.Int64
	completed atomic.Bool
	inPump    atomic.Bool
	pumpAgain atomic.Bool
	pump      func()
}

// add performs the saturating addition described in spec 4.1/8: for all
// non-negative x, y the result is min(x+y, 2^63-1), detected with the
// classical overflow sign test ((x ^ r) & (y ^ r)) < 0.
func (d *demandCounter) add(n int64) {
	for {
		cur := d.n.Load()
		if cur == unboundedDemand {
			return
		}
		sum := cur + n
		if ((cur ^ sum) & (n ^ sum)) < 0 || sum < 0 {
			sum = unboundedDemand
		}
		if d.n.CompareAndSwap(cur, sum) {
			return
		}
	}
}

// moreRequested is the only legal way to ask "may I emit one more item?".
// It returns false once completed, and otherwise atomically decrements the
// counter by one, leaving the unbounded value sticky.
func (d *demandCounter) moreRequested() bool {
	if d.completed.Load() {
		return false
	}
	for {
		cur := d.n.Load()
		if cur == unboundedDemand {
			return true
		}
		if cur <= 0 {
			return false
		}
		if d.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// request implements the request(n) contract: invalid n fails the
// subscriber, otherwise demand accumulates and the pump runs under the
// re-entrancy guard.
func (d *demandCounter) request(n int64, onInvalid func(error)) {
	if n <= 0 {
		onInvalid(ErrInvalidRequest)
		return
	}
	if d.completed.Load() {
		return
	}
	d.add(n)
	d.runPump()
}

// runPump collapses recursive pump invocations into a single iterative
// loop: if a pump is already running on some call stack, this call just
// flags pumpAgain and returns, trusting the running pump to notice the flag
// and loop again before it exits.
func (d *demandCounter) runPump() {
	if !d.inPump.CompareAndSwap(false, true) {
		d.pumpAgain.Store(true)
		return
	}
	defer d.inPump.Store(false)
	for {
		d.pumpAgain.Store(false)
		d.pump()
		if !d.pumpAgain.Load() {
			return
		}
	}
}
