package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/seuros/reactive-sql-bridge/src/record"
)

// writeTable, writeJSONArray and writeJSONLines all operate on an
// already-materialized []record.Record (the result of blocking.Records),
// rather than a live cursor: this module's core API is reactive-streams
// based, not an imperative Next()/Record() cursor like the teacher's
// driver.Result, so the slice-returning boundary moves from inside the
// writer to before it (see runCommand).
func writeTable(w io.Writer, keys []string, rows []record.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if len(keys) > 0 {
		_, _ = fmt.Fprintln(tw, strings.Join(keys, "\t"))
	}
	for _, rec := range rows {
		line := make([]string, 0, len(keys))
		for _, key := range keys {
			line = append(line, stringifyValue(rec[key]))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
}

func writeJSONLines(w io.Writer, rows []record.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range rows {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONArray(w io.Writer, rows []record.Record) error {
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func stringifyValue(v any) string {
	if v == nil {
		return "null"
	}
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
		return fmt.Sprint(v)
	}
}
