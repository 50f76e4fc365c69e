package store

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perftracker/api/models"
)

var fixedNow = time.Date(2024, 3, 15, 12, 30, 45, 500, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func expectSchema(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS performance_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 4; i++ {
		mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func newTestEventStore(t *testing.T) (*EventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewEventStore(db, quietLogger())
	s.now = func() time.Time { return fixedNow }

	expectSchema(mock)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s, mock
}

func TestEnsureSchemaRunsLazilyBeforeFirstQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewEventStore(db, quietLogger())
	expectSchema(mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = s.CleanupOldData(context.Background(), 30)
	require.NoError(t, err)
	_, err = s.CleanupOldData(context.Background(), 30)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNormalizesEvent(t *testing.T) {
	s, mock := newTestEventStore(t)
	revenue := decimal.RequireFromString("19.99")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO performance_events")).
		WithArgs("add_to_cart", int64(42), nil, nil, "guest_abc", sqlmock.AnyArg(), `{"quantity":2}`, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	ev, err := s.Insert(context.Background(), models.NewEvent{
		EventType: "Add_To_Cart",
		ProductID: 42,
		SessionID: "guest_abc",
		Revenue:   &revenue,
		Metadata:  map[string]interface{}{"quantity": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), ev.ID)
	assert.Equal(t, models.EventAddToCart, ev.EventType)
	require.NotNil(t, ev.ProductID)
	assert.Equal(t, int64(42), *ev.ProductID)
	assert.Nil(t, ev.OrderID)
	assert.Nil(t, ev.IPAddress)
	assert.True(t, ev.Revenue.Valid)
	assert.True(t, revenue.Equal(ev.Revenue.Decimal))
	assert.Equal(t, time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC), ev.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventRejectsEmptyType(t *testing.T) {
	s, mock := newTestEventStore(t)

	_, err := s.InsertEvent(context.Background(), models.NewEvent{EventType: "!!!"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventReturnsStorageErrors(t *testing.T) {
	s, mock := newTestEventStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO performance_events")).
		WillReturnError(assert.AnError)

	_, err := s.InsertEvent(context.Background(), models.NewEvent{EventType: models.EventProductView, ProductID: 1})
	assert.ErrorIs(t, err, assert.AnError)
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "event_type", "product_id", "order_id", "user_id", "session_id",
		"revenue", "metadata", "ip_address", "user_agent", "created_at",
	})
}

func TestGetEventsAppliesFiltersAndOrdering(t *testing.T) {
	s, mock := newTestEventStore(t)
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "performance_events" WHERE .*"event_type" = \$1.*"product_id" = \$2.* ORDER BY "revenue" ASC LIMIT`).
		WillReturnRows(eventRows().
			AddRow(int64(1), "order_completed", int64(42), int64(900), nil, "user_5", "25.50", `{"order_total":"25.50"}`, "10.0.0.1", nil, created))

	events, err := s.GetEvents(context.Background(), models.EventFilter{
		EventType: models.EventOrderCompleted,
		ProductID: 42,
		OrderBy:   models.EventSortRevenue,
		Order:     models.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, models.EventOrderCompleted, ev.EventType)
	assert.Equal(t, int64(900), *ev.OrderID)
	assert.Nil(t, ev.UserID)
	assert.Equal(t, "25.5", ev.Revenue.Decimal.String())
	assert.JSONEq(t, `{"order_total":"25.50"}`, string(ev.Metadata))
	assert.Equal(t, "10.0.0.1", *ev.IPAddress)
	assert.Nil(t, ev.UserAgent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEventsFallsBackToCreatedAt(t *testing.T) {
	s, mock := newTestEventStore(t)

	mock.ExpectQuery(`ORDER BY "created_at" DESC LIMIT`).
		WillReturnRows(eventRows())

	events, err := s.GetEvents(context.Background(), models.EventFilter{OrderBy: "ip_address; DROP TABLE"})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func statsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"total_views", "total_add_to_cart", "total_orders", "total_revenue", "unique_sessions"})
}

func TestGetStatsIsIdempotent(t *testing.T) {
	s, mock := newTestEventStore(t)
	r, err := models.ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("COUNT(DISTINCT session_id)")).
			WithArgs(r.Start(), r.End()).
			WillReturnRows(statsRows().AddRow(int64(100), int64(30), int64(9), "450.00", int64(12)))
	}

	first, err := s.GetStats(context.Background(), r)
	require.NoError(t, err)
	second, err := s.GetStats(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, int64(100), first.Views)
	assert.Equal(t, int64(30), first.AddToCart)
	assert.Equal(t, int64(9), first.Orders)
	assert.Equal(t, int64(12), first.UniqueSessions)
	assert.True(t, decimal.NewFromInt(450).Equal(first.Revenue))
	assert.Equal(t, first.Views, second.Views)
	assert.True(t, first.Revenue.Equal(second.Revenue))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatsWithoutRangeHasNoWhereClause(t *testing.T) {
	s, mock := newTestEventStore(t)

	mock.ExpectQuery(`FROM performance_events\s*$`).
		WillReturnRows(statsRows().AddRow(int64(0), int64(0), int64(0), "0", int64(0)))

	stats, err := s.GetStats(context.Background(), models.DateRange{})
	require.NoError(t, err)
	assert.Zero(t, stats.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatsMissingTableReturnsZeros(t *testing.T) {
	s, mock := newTestEventStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(DISTINCT session_id)")).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "performance_events" does not exist`})
	expectSchema(mock)

	stats, err := s.GetStats(context.Background(), models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, models.RawStats{}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupOldDataSecondRunRemovesNothing(t *testing.T) {
	s, mock := newTestEventStore(t)
	cutoff := fixedNow.AddDate(0, 0, -90)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_events WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_events WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := s.CleanupOldData(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = s.CleanupOldData(context.Background(), 90)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupOldDataRejectsNonPositiveRetention(t *testing.T) {
	s, _ := newTestEventStore(t)

	_, err := s.CleanupOldData(context.Background(), 0)
	assert.Error(t, err)
}
