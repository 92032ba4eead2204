package reactivesql

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/reactive-sql-bridge/src/binding"
	"github.com/seuros/reactive-sql-bridge/src/logging"
	"github.com/seuros/reactive-sql-bridge/src/observability"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/retry"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

func logger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOp{}
	}
	return l
}

// QueryOptions configures one statement execution (spec 4.5, "Connection
// subscriber"). Every field is optional; the zero value executes the
// rendered SQL with no fetch-size hint, no generated-value return clause
// and auto-derived record fields.
type QueryOptions struct {
	// ParamKinds gives the Kind of each rendered bind value, 0-based, used
	// to pick a BindNull kind when a value is nil. Renderers that already
	// carry typed binding.Param values (the only kind this module ships)
	// populate this automatically; see newParamKinds.
	ParamKinds []binding.Kind

	// FetchSize, when non-zero, is passed to Statement.FetchSize before
	// execution.
	FetchSize int

	// ReturningColumns, when non-empty, is passed to
	// Statement.ReturnGeneratedValues before execution.
	ReturningColumns []string

	// DialectOverride lets a caller intercept individual bind calls; see
	// paramAdapter.
	DialectOverride DialectOverride

	// RecordType supplies an explicit field list for the record variant.
	// Left empty, fields are derived from the first Result's RowMetadata
	// and cached for the remainder of the query (spec 4.3).
	RecordType binding.RecordType

	// Factory constructs the empty record each row is written into.
	// Defaults to record.NewRecord.
	Factory record.Factory

	// Logger receives non-terminal mapping-error notifications (spec 4.3).
	// Defaults to logging.NoOp.
	Logger logging.Logger

	// RetryPolicy wraps the connect stage, retrying a transient
	// connection-factory error with backoff. Defaults to retry.NoRetry,
	// i.e. unchanged behavior.
	RetryPolicy *retry.Policy

	// Context bounds the connect stage's retry loop. Defaults to
	// context.Background.
	Context context.Context

	// Observability, when non-nil, spans and counts this query's
	// execution (spec.md's Non-goals exclude a full telemetry layer but
	// not the ambient tracing/metrics the teacher always carries).
	Observability       *observability.Instruments
	ObservabilityConfig *observability.Config
}

func newParamKinds(values []binding.Param) []binding.Kind {
	kinds := make([]binding.Kind, len(values))
	for i, v := range values {
		kinds[i] = v.Type
	}
	return kinds
}

// Records runs q and relays each mapped row as a record.Record (spec 4.3,
// record result subscriber).
func Records(conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, q render.Query, opts QueryOptions) rs.Publisher[record.Record] {
	return &queryPublisher[record.Record]{conns: conns, renderer: renderer, cfg: cfg, query: q, opts: opts, record: true}
}

// RowCounts runs q and relays each Result's affected-row count (spec 4.3,
// row-count result subscriber).
func RowCounts(conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, q render.Query, opts QueryOptions) rs.Publisher[int64] {
	return &queryPublisher[int64]{conns: conns, renderer: renderer, cfg: cfg, query: q, opts: opts, record: false}
}

type queryPublisher[T any] struct {
	conns    spi.ConnectionFactory
	renderer render.Renderer
	cfg      render.Config
	query    render.Query
	opts     QueryOptions
	record   bool // true: record.Record variant, false: int64 row-count variant
}

func (p *queryPublisher[T]) Subscribe(sub rs.Subscriber[T]) {
	core := &subscriptionCore{id: uuid.NewString()}
	core.init()

	var span *observability.Span
	obs := p.opts.Observability

	core.emit = func(v any) {
		if obs != nil {
			span.RecordRow()
		}
		sub.OnNext(v.(T))
	}
	core.fail = func(err error) {
		if obs != nil {
			obs.Finish(span, p.opts.ObservabilityConfig, err)
		}
		sub.OnError(err)
	}
	core.complete = func() {
		if obs != nil {
			obs.Finish(span, p.opts.ObservabilityConfig, nil)
		}
		sub.OnComplete()
	}
	core.mappingErrors = func(err error) {
		logger(p.opts.Logger).Warn("row mapping failed", "error", err, "correlation_id", core.id)
	}

	var variant resultVariant
	if p.record {
		variant = recordVariant(newFieldCache(core, p.opts.RecordType, p.opts.Factory))
	} else {
		variant = rowCountVariant()
	}

	core.start = func() {
		logger(p.opts.Logger).Debug("starting query", "correlation_id", core.id, "query", queryText(p.query))
		if obs != nil {
			_, span = obs.StartQuery(context.Background(), queryText(p.query), p.opts.ObservabilityConfig)
		}
		startQuery(core, p.conns, p.renderer, p.cfg, p.query, p.opts, variant)
	}
	sub.OnSubscribe(core)
}

// startQuery is invoked once, lazily, by subscriptionCore.pump on the
// first positive demand (spec 4.5: IDLE -> RUNNING). It drives a single
// Connection through render -> createStatement -> bind -> execute and
// hands the Result stream to a resultSubscriber. The connect stage runs
// under opts.RetryPolicy, so a transient factory error is retried with
// backoff before the subscription fails.
//
// pump calls start() directly from Request (spec §5: execution between
// signals must stay non-blocking on the non-blocking path), so this must
// never block that goroutine's stack: render/bind/execute runs inside
// conns.Subscribe's own Next callback, exactly where
// startMultiStatementBatch (batch_subscription.go) does it, and backoff between connect
// attempts is driven by timers rather than a blocking sleep.
func startQuery(core *subscriptionCore, conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, q render.Query, opts QueryOptions, variant resultVariant) {
	policy := opts.RetryPolicy
	if policy == nil {
		policy = retry.NoRetry()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	connectWithRetry(ctx, policy, conns, 1, 0,
		func(conn spi.Connection) {
			core.setConnection(conn)
			runOnConnection(core, conn, renderer, cfg, q, opts, variant)
		},
		func(err error) { core.failWith(&DriverError{Stage: "connect", Err: err}) },
	)
}

// connectWithRetry pulls one Connection out of conns, calling onConn from
// inside Subscribe's own Next callback rather than after Subscribe
// returns, since a real factory may deliver its signal from a different
// goroutine entirely. A retriable failure arms a timer for the next
// attempt instead of sleeping the calling goroutine, reproducing
// retry.Do's backoff math and error shapes without retry.Do's blocking
// time.After wait. A factory that completes without ever emitting a
// connection is treated the same as a delivered error: errNoConnection.
func connectWithRetry(ctx context.Context, policy *retry.Policy, conns spi.ConnectionFactory, attempt int, cumulative time.Duration, onConn func(spi.Connection), onErr func(error)) {
	select {
	case <-ctx.Done():
		onErr(ctx.Err())
		return
	default:
	}

	settled := false
	conns.Subscribe(rs.SubscriberFunc[spi.Connection]{
		Subscribe: func(sub rs.Subscription) { sub.Request(1) },
		Next: func(conn spi.Connection) {
			if settled {
				return
			}
			settled = true
			if policy.OnSuccess != nil {
				policy.OnSuccess(attempt)
			}
			onConn(conn)
		},
		Err: func(err error) {
			if settled {
				return
			}
			settled = true
			retryOrFail(ctx, policy, conns, attempt, cumulative, err, onConn, onErr)
		},
		Complete: func() {
			if settled {
				return
			}
			settled = true
			retryOrFail(ctx, policy, conns, attempt, cumulative, errNoConnection, onConn, onErr)
		},
	})
}

// retryOrFail applies one connect failure against policy: a non-retriable
// error or an exhausted attempt count fails immediately with the same
// error shapes retry.Do produces; otherwise it arms a timer for the next
// attempt and a context.AfterFunc that cancels that timer (and fails
// with ctx.Err()) if ctx is done first, so a cancelled caller never
// leaves a pending retry behind.
func retryOrFail(ctx context.Context, policy *retry.Policy, conns spi.ConnectionFactory, attempt int, cumulative time.Duration, err error, onConn func(spi.Connection), onErr func(error)) {
	if !retry.IsRetriable(err) {
		if policy.OnFailure != nil {
			policy.OnFailure(err, attempt)
		}
		onErr(err)
		return
	}
	if attempt >= policy.MaxAttempts {
		if policy.OnFailure != nil {
			policy.OnFailure(err, policy.MaxAttempts)
		}
		onErr(&retry.ExhaustedError{OriginalError: err, Attempts: policy.MaxAttempts, CumulativeDelay: cumulative})
		return
	}

	delay := policy.CalculateDelay(attempt)
	cumulative += delay
	if policy.OnRetry != nil {
		policy.OnRetry(retry.Context{Attempt: attempt, Error: err, NextDelay: delay, CumulativeDelay: cumulative})
	}

	timer := time.AfterFunc(delay, func() {
		connectWithRetry(ctx, policy, conns, attempt+1, cumulative, onConn, onErr)
	})
	context.AfterFunc(ctx, func() {
		if timer.Stop() {
			onErr(ctx.Err())
		}
	})
}

var errNoConnection = errNoConnectionInner{}

type errNoConnectionInner struct{}

func (errNoConnectionInner) Error() string { return "connection factory produced no connection" }

func runOnConnection(core *subscriptionCore, conn spi.Connection, renderer render.Renderer, cfg render.Config, q render.Query, opts QueryOptions, variant resultVariant) {
	rendered, err := renderer.Render(cfg, q)
	if err != nil {
		core.failWith(&RenderError{Query: queryText(q), Err: err})
		return
	}

	stmt, err := conn.CreateStatement(rendered.SQL)
	if err != nil {
		core.failWith(&DriverError{Stage: "prepare", Err: err})
		return
	}

	kinds := opts.ParamKinds
	if kinds == nil {
		kinds = newParamKinds(rendered.BindValues)
	}
	params := newParamAdapter(stmt, kinds, opts.DialectOverride)
	for i, bv := range rendered.BindValues {
		if err := params.Set(i+1, bv.Value); err != nil {
			core.failWith(&DriverError{Stage: "bind", Err: err})
			return
		}
	}

	if opts.FetchSize > 0 {
		if err := stmt.FetchSize(opts.FetchSize); err != nil {
			core.failWith(&DriverError{Stage: "fetchSize", Err: err})
			return
		}
	}
	if len(opts.ReturningColumns) > 0 {
		if err := stmt.ReturnGeneratedValues(opts.ReturningColumns...); err != nil {
			core.failWith(&DriverError{Stage: "returning", Err: err})
			return
		}
	}

	results := newResultSubscriber(core, variant)
	stmt.Execute().Subscribe(rs.SubscriberFunc[spi.Result]{
		Subscribe: results.OnSubscribe,
		Next:      results.OnNext,
		Err:       results.OnError,
		Complete:  results.OnComplete,
	})
}

func queryText(q render.Query) string {
	if t, ok := q.(*render.Template); ok {
		return t.Text
	}
	return ""
}
