package postgres

import (
	"database/sql"
	"time"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// dateArg formats a calendar day for a DATE column.
func dateArg(day time.Time) string {
	return day.UTC().Format(time.DateOnly)
}

func nullDateArg(day *time.Time) sql.NullString {
	if day == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: dateArg(*day), Valid: true}
}

// calendarDay normalizes a scanned DATE value to midnight UTC.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
