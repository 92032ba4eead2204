package observability

import "testing"

func TestInferStatementType(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM accounts WHERE id = $1":    "READ",
		"insert into accounts (id) values ($1)":   "WRITE",
		"UPDATE accounts SET balance = $1":        "WRITE",
		"delete from accounts where id = $1":      "WRITE",
		"CREATE TABLE accounts (id BIGINT)":       "SCHEMA",
		"alter table accounts add column x text":  "SCHEMA",
		"DROP TABLE accounts":                     "SCHEMA",
		"BEGIN":                                   "UNKNOWN",
	}
	for query, want := range cases {
		if got := inferStatementType(query); got != want {
			t.Errorf("inferStatementType(%q) = %q, want %q", query, got, want)
		}
	}
}
