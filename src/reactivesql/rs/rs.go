// Package rs defines the minimal reactive-streams-style primitives the
// rest of this module builds on: a demand-driven Publisher/Subscriber pair
// connected by a Subscription that carries back-pressure.
//
// No example in the retrieved reference pack ships a reactive-streams
// implementation, so these three interfaces are written from the protocol
// description in the spec rather than adapted from an existing Go library.
package rs

// Subscription is the contract a Publisher hands to a Subscriber on
// OnSubscribe. A Subscriber uses it to signal demand and to cancel.
//
// Request must be safe to call from within Subscriber.OnNext or
// Subscriber.OnSubscribe (synchronous re-entrant demand). Cancel must be
// safe to call from any goroutine, at any time, any number of times.
type Subscription interface {
	// Request signals that the subscriber is willing to receive up to n
	// more elements. n must be positive; n <= 0 terminates the
	// subscription with an invalid-argument error (reactive-streams rule
	// 3.9).
	Request(n int64)

	// Cancel requests the publisher stop sending signals. It is
	// idempotent and never blocks.
	Cancel()
}

// Subscriber consumes the signals of a Publisher. Exactly one of OnComplete
// or OnError is delivered, at most once, and only after OnSubscribe. No
// OnNext is delivered after OnComplete or OnError.
type Subscriber[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// Publisher produces a stream of T for a single Subscriber. Subscribing
// more than once is undefined; this module never does so (see spec
// Non-goal: no multi-subscriber fan-out).
type Publisher[T any] interface {
	Subscribe(sub Subscriber[T])
}

// SubscriberFunc adapts four plain functions into a Subscriber, useful for
// leaf publishers (e.g. a single-element connection-factory publisher)
// that don't need the full ceremony of a named type.
type SubscriberFunc[T any] struct {
	Subscribe func(sub Subscription)
	Next      func(value T)
	Err       func(err error)
	Complete  func()
}

func (f SubscriberFunc[T]) OnSubscribe(sub Subscription) {
	if f.Subscribe != nil {
		f.Subscribe(sub)
	}
}

func (f SubscriberFunc[T]) OnNext(value T) {
	if f.Next != nil {
		f.Next(value)
	}
}

func (f SubscriberFunc[T]) OnError(err error) {
	if f.Err != nil {
		f.Err(err)
	}
}

func (f SubscriberFunc[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}
