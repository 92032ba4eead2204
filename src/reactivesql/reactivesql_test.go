package reactivesql_test

import (
	"testing"
	"time"

	"github.com/seuros/reactive-sql-bridge/src/reactivesql"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/spi"
	"github.com/seuros/reactive-sql-bridge/src/spitest"
)

// recordingSubscriber collects every signal it receives so tests can
// assert on the exact sequence, mirroring the teacher's table-driven
// assertions against canned mock connections (src/driver/result_test.go).
type recordingSubscriber[T any] struct {
	sub        rs.Subscription
	values     []T
	err        error
	completed  bool
	onNextHook func(sub rs.Subscription, v T)
}

func (r *recordingSubscriber[T]) OnSubscribe(sub rs.Subscription) { r.sub = sub }
func (r *recordingSubscriber[T]) OnNext(v T) {
	r.values = append(r.values, v)
	if r.onNextHook != nil {
		r.onNextHook(r.sub, v)
	}
}
func (r *recordingSubscriber[T]) OnError(err error) { r.err = err }
func (r *recordingSubscriber[T]) OnComplete()       { r.completed = true }

func newTemplate(text string, params map[string]any) *render.Template {
	return &render.Template{Text: text, Params: params}
}

func TestRecords_EmptyResult(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select 1", spitest.Table{
		Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}},
	})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(10)

	if !sub.completed {
		t.Fatalf("expected completion, got none (err=%v)", sub.err)
	}
	if len(sub.values) != 0 {
		t.Fatalf("expected no rows, got %d", len(sub.values))
	}
}

func TestRecords_BoundedDemand(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select id from t", spitest.Table{
		Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}},
		Rows:    [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select id from t", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(2)

	if sub.completed {
		t.Fatalf("expected subscription to remain open after bounded demand")
	}
	if len(sub.values) != 2 {
		t.Fatalf("expected exactly 2 rows delivered, got %d", len(sub.values))
	}

	sub.sub.Request(1)
	if !sub.completed {
		t.Fatalf("expected completion after remaining demand satisfied")
	}
	if len(sub.values) != 3 {
		t.Fatalf("expected 3 rows total, got %d", len(sub.values))
	}
	if got := sub.values[0]["id"]; got != int64(1) {
		t.Fatalf("expected first row id=1, got %v", got)
	}
}

func TestRecords_UnboundedDemand(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select id from t", spitest.Table{
		Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}},
		Rows:    [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select id from t", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(1<<63 - 1)

	if !sub.completed || len(sub.values) != 3 {
		t.Fatalf("expected all 3 rows and completion, got %d rows completed=%v", len(sub.values), sub.completed)
	}
}

func TestRecords_InvalidRequest(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select 1", spitest.Table{Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}}})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(0)

	if sub.err == nil {
		t.Fatalf("expected an error for request(0)")
	}
	if _, ok := sub.err.(*reactivesql.DriverError); ok {
		t.Fatalf("request(0) should fail as InvalidRequestError, not a driver error")
	}
}

func TestRowCounts_DeleteStatement(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnExec("delete from t", 7)

	pub := reactivesql.RowCounts(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("delete from t", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[int64]{}
	pub.Subscribe(sub)
	sub.sub.Request(1)

	if !sub.completed {
		t.Fatalf("expected row-count subscriber to complete")
	}
	if len(sub.values) != 1 || sub.values[0] != 7 {
		t.Fatalf("expected single value 7, got %v", sub.values)
	}
}

func TestRecords_CancelDuringEmission(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select id from t", spitest.Table{
		Columns: []spitest.Column{{Name: "id", Kind: spi.KindInt64}},
		Rows:    [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select id from t", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	sub.onNextHook = func(s rs.Subscription, _ record.Record) {
		if len(sub.values) == 1 {
			s.Cancel()
		}
	}
	pub.Subscribe(sub)
	sub.sub.Request(3)

	if sub.completed {
		t.Fatalf("cancel must suppress onComplete")
	}
	if len(sub.values) != 1 {
		t.Fatalf("expected exactly 1 row before cancel took effect, got %d", len(sub.values))
	}
	if driver.Closes.Load() != 1 {
		t.Fatalf("expected cancel to close the connection exactly once, got %d", driver.Closes.Load())
	}
}

func TestRecords_DriverConnectError(t *testing.T) {
	driver := spitest.NewDriver()
	driver.FailConnect = errBoom{}

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select 1", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(1)

	de, ok := sub.err.(*reactivesql.DriverError)
	if !ok {
		t.Fatalf("expected *DriverError, got %T (%v)", sub.err, sub.err)
	}
	if de.Stage != "connect" {
		t.Fatalf("expected connect-stage error, got stage %q", de.Stage)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// TestRecords_TemporalColumns_ConvertToTime round-trips date/time/timestamp
// columns through Records, proving rowAdapter.Get converts the driver's
// local-date/local-time/local-datetime shapes into time.Time rather than
// leaking them into the mapped record (spec 4.2). spitest's GetAs ignores
// its Kind argument and echoes back whatever the fixture row stored, so
// storing the spi.LocalDate/LocalTime/LocalDateTime values directly here
// exercises the conversion the same way a real driver's GetAs result would.
func TestRecords_TemporalColumns_ConvertToTime(t *testing.T) {
	driver := spitest.NewDriver()
	driver.OnQuery("select d, tm, ts from t", spitest.Table{
		Columns: []spitest.Column{
			{Name: "d", Kind: spi.KindDate},
			{Name: "tm", Kind: spi.KindTime},
			{Name: "ts", Kind: spi.KindTimestamp},
		},
		Rows: [][]any{{
			spi.LocalDate{Year: 2024, Month: 3, Day: 15},
			spi.LocalTime{Hour: 9, Minute: 30, Second: 45, Nanos: 123000},
			spi.LocalDateTime{
				Date: spi.LocalDate{Year: 2024, Month: 3, Day: 15},
				Time: spi.LocalTime{Hour: 9, Minute: 30, Second: 45, Nanos: 123000},
			},
		}},
	})

	pub := reactivesql.Records(driver, render.NamedParamRenderer{}, render.DefaultConfig(), newTemplate("select d, tm, ts from t", nil), reactivesql.QueryOptions{})

	sub := &recordingSubscriber[record.Record]{}
	pub.Subscribe(sub)
	sub.sub.Request(1)

	if !sub.completed {
		t.Fatalf("expected completion, got none (err=%v)", sub.err)
	}
	if len(sub.values) != 1 {
		t.Fatalf("expected exactly 1 row, got %d", len(sub.values))
	}
	row := sub.values[0]

	d, ok := row["d"].(time.Time)
	if !ok {
		t.Fatalf("expected d to be time.Time, got %T (%v)", row["d"], row["d"])
	}
	if d.Year() != 2024 || d.Month() != time.March || d.Day() != 15 {
		t.Fatalf("expected 2024-03-15, got %v", d)
	}

	tm, ok := row["tm"].(time.Time)
	if !ok {
		t.Fatalf("expected tm to be time.Time, got %T (%v)", row["tm"], row["tm"])
	}
	if tm.Hour() != 9 || tm.Minute() != 30 || tm.Second() != 45 || tm.Nanosecond() != 123000 {
		t.Fatalf("expected 09:30:45.000123, got %v", tm)
	}

	ts, ok := row["ts"].(time.Time)
	if !ok {
		t.Fatalf("expected ts to be time.Time, got %T (%v)", row["ts"], row["ts"])
	}
	if ts.Year() != 2024 || ts.Month() != time.March || ts.Day() != 15 ||
		ts.Hour() != 9 || ts.Minute() != 30 || ts.Second() != 45 || ts.Nanosecond() != 123000 {
		t.Fatalf("expected 2024-03-15T09:30:45.000123, got %v", ts)
	}
}
