package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeBoundsAreClosedAtSecondGranularity(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start())
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), r.End())
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("", "")
	require.NoError(t, err)
	assert.True(t, r.IsZero())

	_, err = ParseDateRange("01/02/2024", "")
	assert.Error(t, err)

	_, err = ParseDateRange("2024-02-01", "2024-01-01")
	assert.Error(t, err)
}

func TestDateRangeWithDefaults(t *testing.T) {
	now := time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC)

	r := DateRange{}.WithDefaults(now, 30)
	assert.Equal(t, "2024-03-01", r.From.Format(DateLayout))
	assert.Equal(t, "2024-03-31", r.To.Format(DateLayout))

	explicit := DateRange{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}.WithDefaults(now, 30)
	assert.Equal(t, "2024-01-01", explicit.From.Format(DateLayout))
	assert.Equal(t, "2024-03-31", explicit.To.Format(DateLayout))
}

func TestDateRangeParamsAreStable(t *testing.T) {
	a := DateRange{From: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	b := DateRange{From: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)}
	assert.Equal(t, a.Params(), b.Params())
}

func TestIntervalLabelsGroupByDay(t *testing.T) {
	events := []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
	}

	var labels []string
	counts := map[string]int{}
	for _, ts := range events {
		l := IntervalDay.Label(ts)
		if counts[l] == 0 {
			labels = append(labels, l)
		}
		counts[l]++
	}

	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, labels)
	assert.Equal(t, 2, counts["2024-01-01"])
	assert.Equal(t, 1, counts["2024-01-02"])
}

func TestIntervalLabels(t *testing.T) {
	ts := time.Date(2024, 1, 4, 10, 35, 12, 0, time.UTC) // a Thursday

	assert.Equal(t, "2024-01-04 10:00", IntervalHour.Label(ts))
	assert.Equal(t, "2024-01-04", IntervalDay.Label(ts))
	assert.Equal(t, "2024-01-01", IntervalWeek.Label(ts))
	assert.Equal(t, "2024-01", IntervalMonth.Label(ts))

	sunday := time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01", IntervalWeek.Label(sunday))
}

func TestParseEnums(t *testing.T) {
	i, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, IntervalDay, i)
	_, err = ParseInterval("minute")
	assert.Error(t, err)

	f, err := ParseProductSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortByViews, f)
	_, err = ParseProductSortField("total_views; DROP TABLE")
	assert.Error(t, err)

	assert.True(t, EventSortRevenue.Valid())
	assert.False(t, EventSortField("ip_address").Valid())
}

func TestSanitizeEventType(t *testing.T) {
	assert.Equal(t, EventType("add_to_cart"), SanitizeEventType("Add_To_Cart"))
	assert.Equal(t, EventType("wishlistadd"), SanitizeEventType("wishlist add!"))
}
