package selector

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Status selects members by lifecycle state
type Status string

const (
	StatusAny           Status = ""
	StatusDraft         Status = "draft"
	StatusActiveCurrent Status = "1a" // active, subscription up to date or not required
	StatusActiveLate    Status = "1b" // active, subscription required but expired
	StatusResigned      Status = "0"
)

// ParseStatus maps a form value to a Status. Unknown values, including "-1", mean no filter.
func ParseStatus(s string) Status {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusDraft, StatusActiveCurrent, StatusActiveLate, StatusResigned:
		return st
	}
	return StatusAny
}

// Filter holds the criteria of a member selection.
// Zero values mean no restriction.
type Filter struct {
	Status              Status
	TypeID              int64
	CategoryID          int64
	EndAfter            time.Time // exclusive
	EndBefore           time.Time // exclusive
	IncludeUnsubscribed bool
}

// ParseFilter reads a Filter from submitted form values.
// Malformed values are ignored rather than reported.
func ParseFilter(values url.Values, loc *time.Location) Filter {
	if loc == nil {
		loc = time.UTC
	}

	return Filter{
		Status:              ParseStatus(values.Get("filter")),
		TypeID:              parseID(values.Get("filter_type")),
		CategoryID:          parseID(values.Get("filter_category")),
		EndAfter:            parseDate(values, "subscriptionafter", loc),
		EndBefore:           parseDate(values, "subscriptionbefore", loc),
		IncludeUnsubscribed: parseBool(values.Get("evenunsubscribe")),
	}
}

func parseID(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// parseDate reads the hour, min, sec, month, day and year fields sharing prefix
func parseDate(values url.Values, prefix string, loc *time.Location) time.Time {
	part := func(name string) int {
		n, err := strconv.Atoi(strings.TrimSpace(values.Get(prefix + name)))
		if err != nil {
			return 0
		}
		return n
	}

	return Date(part("year"), part("month"), part("day"), part("hour"), part("min"), part("sec"), loc)
}

// Date builds a time from calendar components.
// It returns the zero time when a component is out of range, when the day
// does not exist in the month or when the result is not after the Unix epoch.
func Date(year, month, day, hour, min, sec int, loc *time.Location) time.Time {
	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}
	}

	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, loc)
	if t.Day() != day || t.Unix() <= 0 {
		return time.Time{}
	}
	return t
}
