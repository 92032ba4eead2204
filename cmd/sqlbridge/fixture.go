package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/seuros/reactive-sql-bridge/src/spi"
	"github.com/seuros/reactive-sql-bridge/src/spitest"
)

// fixtureFile is the on-disk shape of a --fixture JSON file: either a
// row-bearing query result (Columns+Rows) or a DML exec result
// (RowsAffected), never both.
type fixtureFile struct {
	Columns []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	} `json:"columns"`
	RawRows      [][]any `json:"rows"`
	RowsAffected *int64  `json:"rows_affected"`
}

func loadFixture(path string) (*spitest.Table, *int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var f fixtureFile
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("invalid fixture JSON: %w", err)
	}

	if f.RowsAffected != nil {
		return nil, f.RowsAffected, nil
	}

	columns := make([]spitest.Column, len(f.Columns))
	for i, c := range f.Columns {
		columns[i] = spitest.Column{Name: c.Name, Kind: parseKind(c.Kind)}
	}

	rows := make([][]any, len(f.RawRows))
	for i, raw := range f.RawRows {
		row := make([]any, len(raw))
		for j, v := range raw {
			kind := spi.KindUnknown
			if j < len(columns) {
				kind = columns[j].Kind
			}
			row[j] = coerce(v, kind)
		}
		rows[i] = row
	}

	return &spitest.Table{Columns: columns, Rows: rows}, nil, nil
}

// coerce converts a json.Number (or other decoded JSON value) to the Go
// type the column's Kind expects, since encoding/json otherwise hands
// back every number as a string under UseNumber.
func coerce(v any, kind spi.Kind) any {
	if v == nil {
		return nil
	}
	num, isNumber := v.(json.Number)
	switch kind {
	case spi.KindInt64:
		if isNumber {
			if n, err := num.Int64(); err == nil {
				return n
			}
		}
	case spi.KindFloat64:
		if isNumber {
			if n, err := num.Float64(); err == nil {
				return n
			}
		}
	}
	if isNumber {
		return num.String()
	}
	return v
}

func parseKind(name string) spi.Kind {
	switch name {
	case "bool":
		return spi.KindBool
	case "int64":
		return spi.KindInt64
	case "float64":
		return spi.KindFloat64
	case "bytes":
		return spi.KindBytes
	case "date":
		return spi.KindDate
	case "time":
		return spi.KindTime
	case "timestamp":
		return spi.KindTimestamp
	case "string", "":
		return spi.KindString
	default:
		return spi.KindUnknown
	}
}
