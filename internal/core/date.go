package core

import (
	"strings"
	"time"
)

// FeedDateLayout is the calendar date format used by the remote feed.
const FeedDateLayout = "2006-01-02"

// ParseFeedDate parses a YYYY-MM-DD date in UTC. The layout is fixed and does
// not depend on the host locale or time zone.
func ParseFeedDate(s string) (Date, error) {
	t, err := time.ParseInLocation(FeedDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date with FeedDateLayout.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(FeedDateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseFeedDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
