package medication

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Kind is the cache/entity name shared by every medication log query.
const Kind = "medicationLogs"

// PlaceholderPrefix starts the id of a log patched in on the client and not
// yet confirmed by the server.
const PlaceholderPrefix = "optimistic-"

// Log is one day of the adherence log. There is at most one per (UserID, Date).
type Log struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Date      time.Time `json:"date" db:"date"` // UTC midnight of the calendar day
	Taken     bool      `json:"taken" db:"taken"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Day returns the calendar day the log is keyed on.
func (l Log) Day() civil.Date {
	return civil.DateOf(l.Date.UTC())
}

func (l Log) IsPlaceholder() bool {
	return strings.HasPrefix(l.ID, PlaceholderPrefix)
}

type UpsertRequest struct {
	UserID string `json:"userId"`
	Date   string `json:"date"`
	Taken  bool   `json:"taken"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// DayTime converts a calendar day to the UTC midnight instant used on the wire.
func DayTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// ParseDay accepts "2006-01-02" or an RFC 3339 timestamp. For timestamps the
// calendar day is taken in the timestamp's own offset.
func ParseDay(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return civil.DateOf(t), nil
}

// MonthBounds returns the first and last calendar day of the month.
func MonthBounds(year int, month time.Month) (civil.Date, civil.Date) {
	first := civil.Date{Year: year, Month: month, Day: 1}
	last := civil.DateOf(first.In(time.UTC).AddDate(0, 1, -1))
	return first, last
}
