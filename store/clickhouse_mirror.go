package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"perftracker/api/database"
	"perftracker/api/models"
)

// ClickHouseMirror copies ingested events into ClickHouse for ad-hoc analysis. PostgreSQL stays the
// source of truth; nothing reads the mirror back.
type ClickHouseMirror struct {
	DB  *database.ClickHouseClient
	log *logrus.Logger
}

func NewClickHouseMirror(chClient *database.ClickHouseClient, log *logrus.Logger) *ClickHouseMirror {
	return &ClickHouseMirror{
		DB:  chClient,
		log: log,
	}
}

func (m *ClickHouseMirror) EnsureSchema(ctx context.Context) error {
	err := m.DB.Conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS performance_events (
			id Int64,
			event_type LowCardinality(String),
			product_id Nullable(Int64),
			order_id Nullable(Int64),
			user_id Nullable(Int64),
			session_id String,
			revenue Nullable(Decimal(10, 2)),
			metadata String,
			ip_address String,
			user_agent String,
			created_at DateTime
		) ENGINE = MergeTree
		ORDER BY (event_type, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure clickhouse schema: %w", err)
	}
	return nil
}

// MirrorEvents batch-inserts events. Rows that fail to append are logged and skipped.
func (m *ClickHouseMirror) MirrorEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Column order must match the table definition above.
	batch, err := m.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO performance_events (
			id, event_type, product_id, order_id, user_id, session_id, revenue,
			metadata, ip_address, user_agent, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, ev := range events {
		var revenue interface{}
		if ev.Revenue.Valid {
			revenue = ev.Revenue.Decimal
		}
		err := batch.Append(
			ev.ID,
			string(ev.EventType),
			ev.ProductID,
			ev.OrderID,
			ev.UserID,
			ev.SessionID,
			revenue,
			string(ev.Metadata),
			deref(ev.IPAddress),
			deref(ev.UserAgent),
			ev.CreatedAt,
		)
		if err != nil {
			m.log.WithError(err).WithField("event_id", ev.ID).Error("Error appending event to batch")
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	m.log.WithField("count", len(events)).Debug("Mirrored events to ClickHouse")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
