package reactivesql

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// MultiStatementBatch runs each query in queries as one entry of a
// driver-level Batch, with no bind phase: every bind value is inlined into
// the statement text as a SQL literal before it reaches the driver (spec
// 4.6). It relays one row count per entry, in order.
func MultiStatementBatch(conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, queries []render.Query) rs.Publisher[int64] {
	inlineCfg := cfg
	inlineCfg.InlineLiterals = true

	core := &subscriptionCore{id: uuid.NewString()}
	publisher := &batchPublisher{
		conns: conns,
		core:  core,
		start: func() {
			startMultiStatementBatch(core, conns, renderer, inlineCfg, queries)
		},
	}
	return publisher
}

// SingleStatementBatch prepares q once and runs it once per entry in rows,
// binding each row's named values and queuing it with Statement.Add before
// a single Execute (spec 4.6). Every row must supply a value for every
// bind name discovered when the first row is rendered (checkBindValues).
func SingleStatementBatch(conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, q render.Query, rows []map[string]any, opts QueryOptions) rs.Publisher[int64] {
	core := &subscriptionCore{id: uuid.NewString()}
	publisher := &batchPublisher{
		conns: conns,
		core:  core,
		start: func() {
			logger(opts.Logger).Debug("starting single-statement batch", "correlation_id", core.id, "rows", len(rows))
			startSingleStatementBatch(core, conns, renderer, cfg, q, rows, opts)
		},
	}
	return publisher
}

type batchPublisher struct {
	conns spi.ConnectionFactory
	core  *subscriptionCore
	start func()
}

func (p *batchPublisher) Subscribe(sub rs.Subscriber[int64]) {
	c := p.core
	c.init()
	c.emit = func(v any) { sub.OnNext(v.(int64)) }
	c.fail = func(err error) { sub.OnError(err) }
	c.complete = func() { sub.OnComplete() }
	c.mappingErrors = func(error) {}
	c.start = p.start
	sub.OnSubscribe(c)
}

func startMultiStatementBatch(core *subscriptionCore, conns spi.ConnectionFactory, renderer render.Renderer, inlineCfg render.Config, queries []render.Query) {
	conns.Subscribe(rs.SubscriberFunc[spi.Connection]{
		Subscribe: func(sub rs.Subscription) { sub.Request(1) },
		Next: func(conn spi.Connection) {
			core.setConnection(conn)
			batch, err := conn.CreateBatch()
			if err != nil {
				core.failWith(&DriverError{Stage: "createBatch", Err: err})
				return
			}
			for i, q := range queries {
				rendered, err := renderer.Render(inlineCfg, q)
				if err != nil {
					core.failWith(&RenderError{Query: queryText(q), Err: err})
					return
				}
				if err := batch.Add(rendered.SQL); err != nil {
					core.failWith(&DriverError{Stage: fmt.Sprintf("batch.add[%d]", i), Err: err})
					return
				}
			}
			results := newResultSubscriber(core, rowCountVariant())
			batch.Execute().Subscribe(rs.SubscriberFunc[spi.Result]{
				Subscribe: results.OnSubscribe,
				Next:      results.OnNext,
				Err:       results.OnError,
				Complete:  results.OnComplete,
			})
		},
		Err: func(err error) { core.failWith(&DriverError{Stage: "connect", Err: err}) },
	})
}

// checkBindValues verifies that row supplies a value for every name
// discovered in the first render, failing fast rather than letting a
// missing value surface as an ambiguous driver-side bind error.
func checkBindValues(names []string, row map[string]any) error {
	for _, name := range names {
		if _, ok := row[name]; !ok {
			return fmt.Errorf("render: batch row missing value for parameter %q", name)
		}
	}
	return nil
}

func startSingleStatementBatch(core *subscriptionCore, conns spi.ConnectionFactory, renderer render.Renderer, cfg render.Config, q render.Query, rows []map[string]any, opts QueryOptions) {
	conns.Subscribe(rs.SubscriberFunc[spi.Connection]{
		Subscribe: func(sub rs.Subscription) { sub.Request(1) },
		Next: func(conn spi.Connection) {
			core.setConnection(conn)

			tmpl, ok := q.(*render.Template)
			if !ok {
				core.failWith(&RenderError{Err: fmt.Errorf("render: single-statement batch requires a *render.Template")})
				return
			}
			if len(rows) == 0 {
				core.failWith(&DriverError{Stage: "batch", Err: fmt.Errorf("reactivesql: single-statement batch requires at least one row")})
				return
			}

			first := *tmpl
			first.Params = rows[0]
			rendered, err := renderer.Render(cfg, &first)
			if err != nil {
				core.failWith(&RenderError{Query: tmpl.Text, Err: err})
				return
			}
			names := make([]string, len(rendered.BindValues))
			for i, bv := range rendered.BindValues {
				names[i] = bv.Name
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

			for i, row := range rows {
				if err := checkBindValues(names, row); err != nil {
					core.failWith(&DriverError{Stage: fmt.Sprintf("batch.bind[%d]", i), Err: err})
					return
				}
				for j, name := range names {
					if err := params.Set(j+1, row[name]); err != nil {
						core.failWith(&DriverError{Stage: fmt.Sprintf("batch.bind[%d]", i), Err: err})
						return
					}
				}
				if err := stmt.Add(); err != nil {
					core.failWith(&DriverError{Stage: fmt.Sprintf("batch.add[%d]", i), Err: err})
					return
				}
			}

			results := newResultSubscriber(core, rowCountVariant())
			stmt.Execute().Subscribe(rs.SubscriberFunc[spi.Result]{
				Subscribe: results.OnSubscribe,
				Next:      results.OnNext,
				Err:       results.OnError,
				Complete:  results.OnComplete,
			})
		},
		Err: func(err error) { core.failWith(&DriverError{Stage: "connect", Err: err}) },
	})
}
