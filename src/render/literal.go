package render

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Literal formats a bind value as a SQL literal, for the multi-statement
// batch path where entries have no bind phase at all and values must be
// inlined directly into the statement text (spec 4.6: "multi-statement
// batch... inlined params, no bind phase").
//
// Types with a String method (the driver's LocalDate/LocalTime/
// LocalDateTime among them) are quoted via that method rather than
// type-switched individually, keeping this function free of a dependency
// on src/spi.
func Literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []byte:
		return "'\\x" + hex.EncodeToString(v) + "'"
	case string:
		return quote(v)
	case time.Time:
		return quote(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quote(v.String())
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
