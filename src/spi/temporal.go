package spi

import "fmt"

// LocalDate, LocalTime and LocalDateTime are the driver's timezone-less
// temporal representations. The row and parameter adapters convert to and
// from these rather than handing the driver a zoned time.Time, because
// (per spec 4.2) the driver does not accept the library's own temporal
// classes directly.
type LocalDate struct {
	Year  int
	Month int
	Day   int
}

func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

type LocalTime struct {
	Hour   int
	Minute int
	Second int
	Nanos  int
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanos)
}

type LocalDateTime struct {
	Date LocalDate
	Time LocalTime
}

func (dt LocalDateTime) String() string {
	return dt.Date.String() + "T" + dt.Time.String()
}
