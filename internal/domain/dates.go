package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateLayout is the canonical storage format for payment and activation dates.
const DateLayout = "2006-01-02"

// ParseDate parses a stored date. Both plain dates and RFC 3339 timestamps are
// accepted; anything else reports false.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), true
	}
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		if d, err := civil.ParseDate(s[:len(DateLayout)]); err == nil {
			return d, true
		}
	}
	return civil.Date{}, false
}

// DateRange is an inclusive date interval. A zero range matches everything.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// IsZero reports whether no bounds are set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether d falls inside the range. Unset bounds are open.
func (r DateRange) Contains(d civil.Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End) {
		return false
	}
	return true
}

// ParseDateRange builds a range from two optional YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if start != "" {
		d, err := civil.ParseDate(start)
		if err != nil {
			return r, &ValidationError{Field: "start_date", Reason: "expected YYYY-MM-DD"}
		}
		r.Start = d
	}
	if end != "" {
		d, err := civil.ParseDate(end)
		if err != nil {
			return r, &ValidationError{Field: "end_date", Reason: "expected YYYY-MM-DD"}
		}
		r.End = d
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return r, &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return r, nil
}
