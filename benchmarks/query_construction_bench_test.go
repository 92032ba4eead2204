package benchmarks

import (
	"testing"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/spi"
	"github.com/seuros/reactive-sql-bridge/src/spitest"
)

func BenchmarkNamedParamRenderer_SimpleQuery(b *testing.B) {
	tmpl := &render.Template{
		Text:   "select id, name from accounts where id = :id",
		Params: map[string]any{"id": int64(1)},
	}
	renderer := render.NamedParamRenderer{}
	cfg := render.DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := renderer.Render(cfg, tmpl); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNamedParamRenderer_ManyParams(b *testing.B) {
	tmpl := &render.Template{
		Text: "insert into accounts (id, name, email, balance, created_at) " +
			"values (:id, :name, :email, :balance, :created_at)",
		Params: map[string]any{
			"id": int64(1), "name": "foo", "email": "foo@example.com",
			"balance": 10.5, "created_at": "2026-01-01",
		},
	}
	renderer := render.NamedParamRenderer{}
	cfg := render.DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := renderer.Render(cfg, tmpl); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRecords_Drain measures the forwarder/demand-pump overhead of
// relaying a fixed row set end to end under unbounded demand, the hot path
// every real query execution runs through.
func BenchmarkRecords_Drain(b *testing.B) {
	rows := make([][]any, 100)
	for i := range rows {
		rows[i] = []any{int64(i), "row"}
	}
	table := spitest.Table{
		Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}, {Name: "name", Kind: spi.KindString}},
		Rows:    rows,
	}

	renderer := render.NamedParamRenderer{}
	cfg := render.DefaultConfig()
	query := &render.Template{Text: "select id, name from t"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		driver := spitest.NewDriver()
		driver.OnQuery("select id, name from t", table)

		pub := reactivesql.Records(driver, renderer, cfg, query, reactivesql.QueryOptions{})
		pub.Subscribe(drainSubscriber{})
	}
}

// drainSubscriber requests everything up front and discards every value,
// isolating the pacing machinery's overhead from any downstream work.
type drainSubscriber struct{}

func (drainSubscriber) OnSubscribe(sub rs.Subscription) { sub.Request(1 << 62) }
func (drainSubscriber) OnNext(record.Record)            {}
func (drainSubscriber) OnError(error)                   {}
func (drainSubscriber) OnComplete()                     {}
