package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/seuros/reactive-sql-bridge/src/blocking"
	"github.com/seuros/reactive-sql-bridge/src/config"
	"github.com/seuros/reactive-sql-bridge/src/logging"
	"github.com/seuros/reactive-sql-bridge/src/observability"
	"github.com/seuros/reactive-sql-bridge/src/reactivesql"
	"github.com/seuros/reactive-sql-bridge/src/record"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/spitest"
	"github.com/seuros/reactive-sql-bridge/src/urlresolver"
)

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	urlFlag := fs.String("url", os.Getenv("SQLBRIDGE_URL"), "Connection URL (or set SQLBRIDGE_URL)")
	queryFlag := fs.String("query", "", "SQL text with :name placeholders")
	paramsFlag := fs.String("params", "", "Params as a JSON object (e.g. '{\"id\": 1}')")
	paramsFileFlag := fs.String("params-file", "", "Path to a JSON file containing params")
	fixtureFlag := fs.String("fixture", "", "Path to the JSON fixture the in-memory driver serves")
	formatFlag := fs.String("format", "table", "Output format: table|json|jsonl")
	timeoutFlag := fs.Duration("timeout", 0, "Optional context timeout (e.g. 10s). 0 disables.")
	telemetryFlag := fs.Bool("telemetry", false, "Export query spans and metrics to stdout")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return &exitError{code: 0}
		}
		return usageErrorf(2, "%v", err)
	}

	if *urlFlag == "" {
		return usageErrorf(2, "Missing --url (or set SQLBRIDGE_URL)")
	}
	if *queryFlag == "" {
		return usageErrorf(2, "Missing --query")
	}
	if *fixtureFlag == "" {
		return usageErrorf(2, "Missing --fixture")
	}

	resolved, err := urlresolver.Resolve(*urlFlag)
	if err != nil {
		return usageErrorf(2, "%v", err)
	}

	params, err := resolveParams(*paramsFlag, *paramsFileFlag)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *timeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()
	}

	query := &render.Template{Text: normalizeQuery(*queryFlag), Params: params}
	renderer := render.NamedParamRenderer{}
	rendered, err := renderer.Render(resolved.Render, query)
	if err != nil {
		return fmt.Errorf("rendering query: %w", err)
	}

	table, rowsAffected, err := loadFixture(*fixtureFlag)
	if err != nil {
		return fmt.Errorf("loading fixture: %w", err)
	}

	driver := spitest.NewDriver()
	log := logging.NewStandard(logging.LevelWarn)
	retryCfg := config.Default().Retry
	opts := reactivesql.QueryOptions{Logger: log, RetryPolicy: retryCfg.ToPolicy(), Context: ctx}

	if *telemetryFlag {
		shutdown, err := enableTelemetry()
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		opts.Observability = observability.New()
		opts.ObservabilityConfig = observability.DefaultConfig()
	}

	if rowsAffected != nil {
		driver.OnExec(rendered.SQL, *rowsAffected)
		pub := reactivesql.RowCounts(driver, renderer, resolved.Render, query, opts)
		n, err := blocking.RowCount(ctx, pub, blocking.Options{Logger: log})
		if err != nil {
			return err
		}
		fmt.Printf("rows_affected=%d\n", n)
		return nil
	}

	driver.OnQuery(rendered.SQL, *table)
	pub := reactivesql.Records(driver, renderer, resolved.Render, query, opts)
	rows, err := blocking.Records[record.Record](ctx, pub, blocking.Options{Logger: log})
	if err != nil {
		return err
	}

	keys := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		keys[i] = c.Name
	}

	switch strings.ToLower(*formatFlag) {
	case "table":
		writeTable(os.Stdout, keys, rows)
	case "json":
		if err := writeJSONArray(os.Stdout, rows); err != nil {
			return err
		}
	case "jsonl":
		if err := writeJSONLines(os.Stdout, rows); err != nil {
			return err
		}
	default:
		return usageErrorf(2, "Unknown --format %q (expected table|json|jsonl)", *formatFlag)
	}

	fmt.Fprintf(os.Stderr, "rows=%d\n", len(rows))
	return nil
}

func normalizeQuery(query string) string {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	return strings.TrimSpace(q)
}

func resolveParams(paramsFlag, paramsFile string) (map[string]any, error) {
	if paramsFlag != "" && paramsFile != "" {
		return nil, usageErrorf(2, "Provide either --params or --params-file, not both")
	}
	if paramsFlag == "" && paramsFile == "" {
		return map[string]any{}, nil
	}

	var data []byte
	var err error
	if paramsFile != "" {
		data, err = os.ReadFile(paramsFile)
	} else {
		data = []byte(paramsFlag)
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, usageErrorf(2, "Invalid params JSON: %v", err)
	}

	params, ok := normalizeJSONNumbers(v).(map[string]any)
	if !ok {
		return nil, usageErrorf(2, "Params must be a JSON object")
	}
	return params, nil
}

func normalizeJSONNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			x[k] = normalizeJSONNumbers(vv)
		}
		return x
	case []any:
		for i, vv := range x {
			x[i] = normalizeJSONNumbers(vv)
		}
		return x
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return s
	default:
		return v
	}
}
