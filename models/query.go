package models

import (
	"fmt"
	"time"
)

// DateLayout is the day-granularity format accepted by the API and used in cache keys.
const DateLayout = "2006-01-02"

// DateRange filters aggregation queries. Both ends are inclusive at day granularity:
// From's day from 00:00:00 and To's day until 23:59:59. A zero bound is absent.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set ("all data").
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Start returns the first second covered by the range, or zero when From is absent.
func (r DateRange) Start() time.Time {
	if r.From.IsZero() {
		return time.Time{}
	}
	y, m, d := r.From.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// End returns the last second covered by the range, or zero when To is absent.
func (r DateRange) End() time.Time {
	if r.To.IsZero() {
		return time.Time{}
	}
	y, m, d := r.To.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// WithDefaults fills absent bounds so that the range spans the trailing days ending on now's date.
func (r DateRange) WithDefaults(now time.Time, days int) DateRange {
	if r.To.IsZero() {
		r.To = now.UTC()
	}
	if r.From.IsZero() {
		r.From = r.To.UTC().AddDate(0, 0, -days)
	}
	return r
}

// Params renders the range for cache key derivation.
func (r DateRange) Params() map[string]string {
	p := map[string]string{"date_from": "", "date_to": ""}
	if !r.From.IsZero() {
		p["date_from"] = r.From.UTC().Format(DateLayout)
	}
	if !r.To.IsZero() {
		p["date_to"] = r.To.UTC().Format(DateLayout)
	}
	return p
}

// ParseDateRange parses optional YYYY-MM-DD bounds.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	var err error
	if from != "" {
		if r.From, err = time.Parse(DateLayout, from); err != nil {
			return DateRange{}, fmt.Errorf("invalid date_from %q: use YYYY-MM-DD", from)
		}
	}
	if to != "" {
		if r.To, err = time.Parse(DateLayout, to); err != nil {
			return DateRange{}, fmt.Errorf("invalid date_to %q: use YYYY-MM-DD", to)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return DateRange{}, fmt.Errorf("date_to must not be before date_from")
	}
	return r, nil
}

// Interval is the timeline bucket width.
type Interval string

const (
	IntervalHour  Interval = "hour"
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval maps the API value onto an Interval; empty selects day.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case "":
		return IntervalDay, nil
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return Interval(s), nil
	}
	return "", fmt.Errorf("invalid interval %q: use hour, day, week or month", s)
}

// Truncate returns the start of the bucket containing t, in UTC. Weeks start on Monday.
func (i Interval) Truncate(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch i {
	case IntervalHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	case IntervalWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
	case IntervalMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Label formats the canonical label of the bucket containing t.
func (i Interval) Label(t time.Time) string {
	start := i.Truncate(t)
	switch i {
	case IntervalHour:
		return start.Format("2006-01-02 15:00")
	case IntervalMonth:
		return start.Format("2006-01")
	default:
		return start.Format(DateLayout)
	}
}

// ProductSortField is the closed set of top-product ranking fields.
type ProductSortField string

const (
	SortByViews     ProductSortField = "views"
	SortByAddToCart ProductSortField = "add_to_cart"
	SortByOrders    ProductSortField = "orders"
	SortByRevenue   ProductSortField = "revenue"
)

// ParseProductSortField maps the API value onto a ProductSortField; empty selects views.
func ParseProductSortField(s string) (ProductSortField, error) {
	switch ProductSortField(s) {
	case "":
		return SortByViews, nil
	case SortByViews, SortByAddToCart, SortByOrders, SortByRevenue:
		return ProductSortField(s), nil
	}
	return "", fmt.Errorf("invalid orderby %q: use views, add_to_cart, orders or revenue", s)
}
