package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perftracker/api/models"
)

const (
	eventsTable = "performance_events"

	defaultEventLimit = 1000
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS performance_events (
		id BIGSERIAL PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		product_id BIGINT NULL,
		order_id BIGINT NULL,
		user_id BIGINT NULL,
		session_id VARCHAR(100) NULL,
		revenue NUMERIC(10,2) NULL,
		metadata TEXT NULL,
		ip_address VARCHAR(45) NULL,
		user_agent TEXT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_events_event_type ON performance_events (event_type)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_events_product_id ON performance_events (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_events_created_at ON performance_events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_events_session_id ON performance_events (session_id)`,
}

var eventColumns = []interface{}{
	"id", "event_type", "product_id", "order_id", "user_id", "session_id",
	"revenue", "metadata", "ip_address", "user_agent", "created_at",
}

// EventStore is the append-only event log kept in PostgreSQL.
type EventStore struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	log     *logrus.Logger
	now     func() time.Time

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewEventStore(db *sql.DB, log *logrus.Logger) *EventStore {
	return &EventStore{
		db:      db,
		dialect: goqu.Dialect("postgres"),
		log:     log,
		now:     time.Now,
	}
}

// EnsureSchema creates the event table and its indexes when they are missing. Safe to call repeatedly.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.schemaReady = false
			return fmt.Errorf("failed to ensure event schema: %w", err)
		}
	}
	s.schemaReady = true
	return nil
}

// ready runs EnsureSchema once before the first query; a failed attempt is retried on the next call.
func (s *EventStore) ready(ctx context.Context) error {
	s.schemaMu.Lock()
	done := s.schemaReady
	s.schemaMu.Unlock()
	if done {
		return nil
	}
	return s.EnsureSchema(ctx)
}

// recoverMissingTable reports whether err means the event table is gone, re-creating it if so.
func (s *EventStore) recoverMissingTable(ctx context.Context, err error) bool {
	if !isUndefinedTable(err) {
		return false
	}
	s.log.Warn("Event table missing, recreating schema")
	s.schemaMu.Lock()
	s.schemaReady = false
	s.schemaMu.Unlock()
	if err := s.EnsureSchema(ctx); err != nil {
		s.log.WithError(err).Error("Failed to recreate event schema")
	}
	return true
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

// InsertEvent normalizes and appends one event, returning its id.
func (s *EventStore) InsertEvent(ctx context.Context, e models.NewEvent) (int64, error) {
	ev, err := s.Insert(ctx, e)
	if err != nil {
		return 0, err
	}
	return ev.ID, nil
}

// Insert is InsertEvent returning the row as stored.
func (s *EventStore) Insert(ctx context.Context, e models.NewEvent) (models.Event, error) {
	ev, err := s.normalize(e)
	if err != nil {
		return models.Event{}, err
	}
	if err := s.ready(ctx); err != nil {
		return models.Event{}, err
	}

	var metadata interface{}
	if len(ev.Metadata) > 0 {
		metadata = string(ev.Metadata)
	}

	query := `
		INSERT INTO performance_events (
			event_type, product_id, order_id, user_id, session_id, revenue,
			metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`
	err = s.db.QueryRowContext(ctx, query,
		string(ev.EventType),
		nullID(e.ProductID),
		nullID(e.OrderID),
		nullID(e.UserID),
		nullString(ev.SessionID),
		ev.Revenue,
		metadata,
		nullString(e.IPAddress),
		nullString(e.UserAgent),
		ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to insert %s event: %w", ev.EventType, err)
	}
	return ev, nil
}

func (s *EventStore) normalize(e models.NewEvent) (models.Event, error) {
	ev := models.Event{
		EventType: models.SanitizeEventType(string(e.EventType)),
		SessionID: e.SessionID,
	}
	if ev.EventType == "" {
		return ev, fmt.Errorf("event type is required")
	}
	if e.ProductID > 0 {
		ev.ProductID = &e.ProductID
	}
	if e.OrderID > 0 {
		ev.OrderID = &e.OrderID
	}
	if e.UserID > 0 {
		ev.UserID = &e.UserID
	}
	if e.Revenue != nil {
		ev.Revenue = decimal.NewNullDecimal(*e.Revenue)
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return ev, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		ev.Metadata = raw
	}
	if e.IPAddress != "" {
		ev.IPAddress = &e.IPAddress
	}
	if e.UserAgent != "" {
		ev.UserAgent = &e.UserAgent
	}

	ev.CreatedAt = e.CreatedAt
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC().Truncate(time.Second)
	return ev, nil
}

// GetEvents lists raw events matching every set field of the filter.
func (s *EventStore) GetEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	ds := s.dialect.From(eventsTable).Select(eventColumns...)
	if f.EventType != "" {
		ds = ds.Where(goqu.C("event_type").Eq(string(f.EventType)))
	}
	if f.ProductID > 0 {
		ds = ds.Where(goqu.C("product_id").Eq(f.ProductID))
	}
	if f.UserID > 0 {
		ds = ds.Where(goqu.C("user_id").Eq(f.UserID))
	}
	if !f.DateFrom.IsZero() {
		ds = ds.Where(goqu.C("created_at").Gte(f.DateFrom.UTC()))
	}
	if !f.DateTo.IsZero() {
		ds = ds.Where(goqu.C("created_at").Lte(f.DateTo.UTC()))
	}

	orderBy := f.OrderBy
	if !orderBy.Valid() {
		orderBy = models.EventSortCreatedAt
	}
	if f.Order == models.SortAsc {
		ds = ds.Order(goqu.C(string(orderBy)).Asc())
	} else {
		ds = ds.Order(goqu.C(string(orderBy)).Desc())
	}

	limit := f.Limit
	if limit == 0 {
		limit = defaultEventLimit
	}
	ds = ds.Limit(limit)
	if f.Offset > 0 {
		ds = ds.Offset(f.Offset)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build events query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if s.recoverMissingTable(ctx, err) {
			return []models.Event{}, nil
		}
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			ev                          models.Event
			eventType                   string
			productID, orderID, userID  sql.NullInt64
			sessionID, metadata, ip, ua sql.NullString
		)
		if err := rows.Scan(
			&ev.ID, &eventType, &productID, &orderID, &userID, &sessionID,
			&ev.Revenue, &metadata, &ip, &ua, &ev.CreatedAt,
		); err != nil {
			s.log.WithError(err).Error("Error scanning event row")
			continue
		}
		ev.EventType = models.EventType(eventType)
		ev.ProductID = int64Ptr(productID)
		ev.OrderID = int64Ptr(orderID)
		ev.UserID = int64Ptr(userID)
		ev.SessionID = sessionID.String
		if metadata.Valid && metadata.String != "" {
			ev.Metadata = json.RawMessage(metadata.String)
		}
		ev.IPAddress = stringPtr(ip)
		ev.UserAgent = stringPtr(ua)
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// GetStats computes the headline counters over the range. A missing table yields zeros.
func (s *EventStore) GetStats(ctx context.Context, r models.DateRange) (models.RawStats, error) {
	var stats models.RawStats
	if err := s.ready(ctx); err != nil {
		return stats, err
	}

	conds, args := rangeConds(r, 1)
	query := fmt.Sprintf(`
		SELECT
			COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS total_views,
			COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS total_add_to_cart,
			COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS total_orders,
			COALESCE(SUM(revenue), 0) AS total_revenue,
			COUNT(DISTINCT session_id) AS unique_sessions
		FROM performance_events
		%s
	`, models.EventProductView, models.EventAddToCart, models.EventOrderCompleted, whereClause(conds))

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Views,
		&stats.AddToCart,
		&stats.Orders,
		&stats.Revenue,
		&stats.UniqueSessions,
	)
	if err != nil {
		if s.recoverMissingTable(ctx, err) {
			return models.RawStats{}, nil
		}
		return models.RawStats{}, fmt.Errorf("failed to query event stats: %w", err)
	}
	return stats, nil
}

// CleanupOldData deletes events older than retentionDays days and returns how many were removed.
func (s *EventStore) CleanupOldData(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM performance_events WHERE created_at < $1`, cutoff)
	if err != nil {
		if s.recoverMissingTable(ctx, err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}

	s.log.WithFields(logrus.Fields{"removed": removed, "retention_days": retentionDays}).Info("Old performance events cleaned up")
	return removed, nil
}

// rangeConds renders created_at bounds for r, numbering placeholders from first.
func rangeConds(r models.DateRange, first int) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if start := r.Start(); !start.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", first+len(args)))
		args = append(args, start)
	}
	if end := r.End(); !end.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", first+len(args)))
		args = append(args, end)
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func nullID(v int64) interface{} {
	if v <= 0 {
		return nil
	}
	return v
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
