package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a tracked storefront action. Custom types are allowed.
type EventType string

const (
	EventProductView       EventType = "product_view"
	EventAddToCart         EventType = "add_to_cart"
	EventCheckoutInitiated EventType = "checkout_initiated"
	EventOrderCompleted    EventType = "order_completed"
)

// SanitizeEventType lowercases the type and keeps only [a-z0-9_-].
func SanitizeEventType(raw string) EventType {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return EventType(b.String())
}

// Event is one immutable row of the event log.
type Event struct {
	ID        int64               `json:"id"`
	EventType EventType           `json:"event_type"`
	ProductID *int64              `json:"product_id,omitempty"`
	OrderID   *int64              `json:"order_id,omitempty"`
	UserID    *int64              `json:"user_id,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	Revenue   decimal.NullDecimal `json:"revenue"`
	Metadata  json.RawMessage     `json:"metadata,omitempty"`
	IPAddress *string             `json:"ip_address,omitempty"`
	UserAgent *string             `json:"user_agent,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// NewEvent is a proposed event before normalization and persistence.
type NewEvent struct {
	EventType EventType              `json:"event_type"`
	ProductID int64                  `json:"product_id,omitempty"`
	OrderID   int64                  `json:"order_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Revenue   *decimal.Decimal       `json:"revenue,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IPAddress string                 `json:"-"`
	UserAgent string                 `json:"-"`
	CreatedAt time.Time              `json:"-"`
}

// EventFilter restricts GetEvents. Zero fields are ignored.
type EventFilter struct {
	EventType EventType
	ProductID int64
	UserID    int64
	DateFrom  time.Time
	DateTo    time.Time
	Limit     uint
	Offset    uint
	OrderBy   EventSortField
	Order     SortDirection
}

// EventSortField is the closed set of columns events may be ordered by.
type EventSortField string

const (
	EventSortCreatedAt EventSortField = "created_at"
	EventSortID        EventSortField = "id"
	EventSortType      EventSortField = "event_type"
	EventSortProduct   EventSortField = "product_id"
	EventSortRevenue   EventSortField = "revenue"
)

// Valid reports whether f is one of the known sort columns.
func (f EventSortField) Valid() bool {
	switch f {
	case EventSortCreatedAt, EventSortID, EventSortType, EventSortProduct, EventSortRevenue:
		return true
	}
	return false
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// RawStats is the single aggregate row computed over the event table.
type RawStats struct {
	Views          int64
	AddToCart      int64
	Orders         int64
	Revenue        decimal.Decimal
	UniqueSessions int64
}

// ProductRollup is one GROUP BY product_id row.
type ProductRollup struct {
	ProductID int64
	Views     int64
	AddToCart int64
	Orders    int64
	Revenue   decimal.Decimal
}

// BucketRollup is one time bucket of the timeline query; Start is the bucket's first instant (UTC).
type BucketRollup struct {
	Start     time.Time
	Views     int64
	AddToCart int64
	Orders    int64
	Revenue   decimal.Decimal
}
