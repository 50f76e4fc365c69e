package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perftracker/api/models"
)

func rollupRows(first string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{first, "views", "add_to_cart", "orders", "revenue"})
}

func TestProductRollupsExcludeEventsWithoutProduct(t *testing.T) {
	events, mock := newTestEventStore(t)
	s := NewAnalyticsStore(events, quietLogger())
	r, err := models.ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM performance_events WHERE product_id IS NOT NULL AND created_at >= $1 AND created_at <= $2 "+
			"GROUP BY product_id ORDER BY orders DESC, product_id ASC LIMIT $3")).
		WithArgs(r.Start(), r.End(), 5).
		WillReturnRows(rollupRows("product_id").
			AddRow(int64(2), int64(10), int64(4), int64(3), "90.00").
			AddRow(int64(1), int64(50), int64(5), int64(1), "30.00"))

	rows, err := s.ProductRollups(context.Background(), r, models.SortByOrders, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ProductID)
	assert.Equal(t, int64(3), rows[0].Orders)
	assert.Equal(t, "90", rows[0].Revenue.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRollupsRejectUnknownSort(t *testing.T) {
	events, mock := newTestEventStore(t)
	s := NewAnalyticsStore(events, quietLogger())

	_, err := s.ProductRollups(context.Background(), models.DateRange{}, "total_views; --", 10)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRollupsTruncateInDatabase(t *testing.T) {
	events, mock := newTestEventStore(t)
	s := NewAnalyticsStore(events, quietLogger())
	r, err := models.ParseDateRange("2024-01-01", "2024-01-02")
	require.NoError(t, err)

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_trunc($1, created_at) AS bucket")).
		WithArgs("day", r.Start(), r.End()).
		WillReturnRows(rollupRows("bucket").
			AddRow(day1, int64(2), int64(0), int64(0), "0").
			AddRow(day2, int64(1), int64(0), int64(0), "0"))

	buckets, err := s.BucketRollups(context.Background(), models.IntervalDay, r)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, day1, buckets[0].Start)
	assert.Equal(t, int64(2), buckets[0].Views)
	assert.Equal(t, int64(1), buckets[1].Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketRollupsRejectUnknownInterval(t *testing.T) {
	events, _ := newTestEventStore(t)
	s := NewAnalyticsStore(events, quietLogger())

	_, err := s.BucketRollups(context.Background(), "minute", models.DateRange{})
	assert.Error(t, err)
}
