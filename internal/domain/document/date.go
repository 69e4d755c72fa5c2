package document

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DisplayLocation is the zone calendar dates are shown in.
var DisplayLocation = time.FixedZone("IST", 5*3600+30*60)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Date is a calendar date decoded leniently from the API. Unparseable values
// decode as the zero date.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// ParseDate parses s using the layouts the API is known to send.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		loc := time.UTC
		if layout == "02/01/2006" {
			loc = DisplayLocation
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Date{Time: t}, true
		}
	}
	return Date{}, false
}

// Display formats the date the way en-IN locales do, e.g. 5/1/2026.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.In(DisplayLocation).Format("2/1/2006")
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.In(DisplayLocation).Format("2006-01-02")
}

// OrToday returns d, or today according to now when d is unknown.
func (d Date) OrToday(now time.Time) Date {
	if d.IsZero() {
		return Date{Time: now}
	}
	return d
}

// MarshalJSON writes RFC 3339 or null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts the layouts in dateLayouts and ignores anything else.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if parsed, ok := ParseDate(s); ok {
		*d = parsed
	}
	return nil
}
