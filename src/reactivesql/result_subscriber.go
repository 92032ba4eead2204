package reactivesql

import (
	"fmt"

	"github.com/seuros/reactive-sql-bridge/src/binding"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// resultVariant picks which of a spi.Result's two publishers a forwarder
// subscribes to (spec 4.3: "two concrete variants"). It is a small
// capability rather than a type switch so resultSubscriber itself stays
// variant-agnostic.
type resultVariant struct {
	subscribe func(result spi.Result, sub rs.Subscriber[any])
}

// rowCountVariant relays each Result's affected-row count.
func rowCountVariant() resultVariant {
	return resultVariant{subscribe: func(result spi.Result, sub rs.Subscriber[any]) {
		result.RowsUpdated().Subscribe(boxInt64{inner: sub})
	}}
}

// recordVariant relays mapped rows, built by fieldCache.mapRow.
func recordVariant(fields *fieldCache) resultVariant {
	return resultVariant{subscribe: func(result spi.Result, sub rs.Subscriber[any]) {
		result.Map(fields.mapRow).Subscribe(sub)
	}}
}

// fieldCache resolves and remembers, once per query, the field list a
// record query maps every row of every Result through (spec 4.3, "caches
// per statement").
// When explicit is non-empty it is used as-is; otherwise the field list is
// derived from the first Result's RowMetadata using the default Kind ->
// Binding table, naming each field after its column.
type fieldCache struct {
	explicit []binding.Field
	factory  record.Factory

	owner *subscriptionCore

	fields []binding.Field
}

func newFieldCache(owner *subscriptionCore, rt binding.RecordType, factory record.Factory) *fieldCache {
	if factory == nil {
		factory = record.NewRecord
	}
	return &fieldCache{explicit: rt.Fields, factory: factory, owner: owner}
}

func (c *fieldCache) resolve(meta spi.RowMetadata) []binding.Field {
	if c.fields != nil {
		return c.fields
	}
	if len(c.explicit) > 0 {
		c.fields = c.explicit
		return c.fields
	}
	adapter := newMetaAdapter(meta)
	fields := make([]binding.Field, meta.ColumnCount())
	for i := range fields {
		fields[i] = binding.Field{
			Name:    adapter.ColumnName(i + 1),
			Binding: defaultBindingFor(meta.ColumnType(i).Kind),
		}
	}
	c.fields = fields
	return c.fields
}

func defaultBindingFor(k spi.Kind) binding.Binding {
	switch k {
	case spi.KindBool:
		return binding.Bool
	case spi.KindInt64:
		return binding.Int64
	case spi.KindFloat64:
		return binding.Float64
	case spi.KindBytes:
		return binding.Bytes
	case spi.KindDate:
		return binding.Date
	case spi.KindTime:
		return binding.Time
	case spi.KindTimestamp:
		return binding.Timestamp
	default:
		return binding.String
	}
}

// mapRow is the mapper passed to spi.Result.Map. It is the sole place a
// panic or a field Get error becomes a mapping error: per spec 4.3, both
// are reported through the subscription's error channel and the row is
// suppressed (reported as a nil value, which the forwarder swallows)
// rather than poisoning the whole row stream.
func (c *fieldCache) mapRow(row spi.Row, meta spi.RowMetadata) (rec any, _ error) {
	defer func() {
		if r := recover(); r != nil {
			c.owner.failMapping(toMappingErr(r))
			rec = nil
		}
	}()

	fields := c.resolve(meta)
	adapter := newRowAdapter(row, meta)
	out := c.factory(binding.RecordType{Fields: fields})
	for i, f := range fields {
		v, err := f.Binding.Get(binding.GetContext{Row: adapter, Index1: i + 1})
		if err != nil {
			c.owner.failMapping(&MappingError{Err: err})
			return nil, nil
		}
		out[f.Name] = v
	}
	return out, nil
}

func toMappingErr(recovered any) *MappingError {
	if err, ok := recovered.(error); ok {
		return &MappingError{Err: err}
	}
	return &MappingError{Err: fmt.Errorf("%v", recovered)}
}

// resultSubscriber subscribes to a connection subscriber's stream of
// spi.Result values (one per statement, more than one for a multi-result
// batch) and attaches a fresh forwarder to each (spec 4.3).
type resultSubscriber struct {
	owner   *subscriptionCore
	variant resultVariant
}

func newResultSubscriber(owner *subscriptionCore, variant resultVariant) *resultSubscriber {
	return &resultSubscriber{owner: owner, variant: variant}
}

func (r *resultSubscriber) OnSubscribe(sub rs.Subscription) {
	// Results themselves are never back-pressured: only the rows within
	// each Result are. Pulling all results eagerly keeps the row-level
	// forwarder as the sole pacing point, matching spec 4.3/4.4.
	sub.Request(unboundedDemand)
}

func (r *resultSubscriber) OnNext(result spi.Result) {
	fwd := newForwarder(r.owner)
	r.variant.subscribe(result, fwd)
}

func (r *resultSubscriber) OnError(err error) {
	r.owner.failWith(&DriverError{Stage: "execute", Err: err})
}

func (r *resultSubscriber) OnComplete() {
	r.owner.resultStreamComplete()
}

// failMapping reports a mapping error without tearing down the whole
// subscription: per spec 4.3 the offending row is suppressed but the
// stream continues. A dedicated hook (rather than reusing failWith, which
// is terminal) keeps that distinction explicit.
func (c *subscriptionCore) failMapping(err error) {
	if errSink := c.mappingErrors; errSink != nil {
		errSink(err)
	}
}
