package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"perftracker/api/models"
)

// productSortColumns maps each ranking field onto its rollup column. Anything else never reaches SQL.
var productSortColumns = map[models.ProductSortField]string{
	models.SortByViews:     "views",
	models.SortByAddToCart: "add_to_cart",
	models.SortByOrders:    "orders",
	models.SortByRevenue:   "revenue",
}

var rollupColumns = fmt.Sprintf(`
	COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS views,
	COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS add_to_cart,
	COUNT(CASE WHEN event_type = '%s' THEN 1 END) AS orders,
	COALESCE(SUM(revenue), 0) AS revenue`,
	models.EventProductView, models.EventAddToCart, models.EventOrderCompleted)

// AnalyticsStore runs the grouped rollups the aggregation engine is built on.
type AnalyticsStore struct {
	events *EventStore
	log    *logrus.Logger
}

func NewAnalyticsStore(events *EventStore, log *logrus.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		events: events,
		log:    log,
	}
}

// Stats returns the headline counters for the range.
func (s *AnalyticsStore) Stats(ctx context.Context, r models.DateRange) (models.RawStats, error) {
	return s.events.GetStats(ctx, r)
}

// ProductRollups groups events by product, skipping rows without one, ranked by sortBy descending
// with product_id ascending breaking ties.
func (s *AnalyticsStore) ProductRollups(ctx context.Context, r models.DateRange, sortBy models.ProductSortField, limit int) ([]models.ProductRollup, error) {
	column, ok := productSortColumns[sortBy]
	if !ok {
		return nil, fmt.Errorf("invalid product sort field: %s", sortBy)
	}
	if limit <= 0 {
		limit = 10
	}
	if err := s.events.ready(ctx); err != nil {
		return nil, err
	}

	conds, args := rangeConds(r, 1)
	conds = append([]string{"product_id IS NOT NULL"}, conds...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT product_id,%s
		FROM performance_events
		%s
		GROUP BY product_id
		ORDER BY %s DESC, product_id ASC
		LIMIT $%d
	`, rollupColumns, whereClause(conds), column, len(args))

	rows, err := s.events.db.QueryContext(ctx, query, args...)
	if err != nil {
		if s.events.recoverMissingTable(ctx, err) {
			return []models.ProductRollup{}, nil
		}
		return nil, fmt.Errorf("failed to query product rollups: %w", err)
	}
	defer rows.Close()

	results := []models.ProductRollup{}
	for rows.Next() {
		var p models.ProductRollup
		if err := rows.Scan(&p.ProductID, &p.Views, &p.AddToCart, &p.Orders, &p.Revenue); err != nil {
			s.log.WithError(err).Error("Error scanning product rollup row")
			continue
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rollup rows: %w", err)
	}
	return results, nil
}

// BucketRollups groups events into interval-wide buckets, ascending. Empty buckets are absent.
func (s *AnalyticsStore) BucketRollups(ctx context.Context, interval models.Interval, r models.DateRange) ([]models.BucketRollup, error) {
	if _, err := models.ParseInterval(string(interval)); err != nil {
		return nil, err
	}
	if interval == "" {
		interval = models.IntervalDay
	}
	if err := s.events.ready(ctx); err != nil {
		return nil, err
	}

	conds, rangeArgs := rangeConds(r, 2)
	args := append([]interface{}{string(interval)}, rangeArgs...)

	query := fmt.Sprintf(`
		SELECT date_trunc($1, created_at) AS bucket,%s
		FROM performance_events
		%s
		GROUP BY bucket
		ORDER BY bucket ASC
	`, rollupColumns, whereClause(conds))

	rows, err := s.events.db.QueryContext(ctx, query, args...)
	if err != nil {
		if s.events.recoverMissingTable(ctx, err) {
			return []models.BucketRollup{}, nil
		}
		return nil, fmt.Errorf("failed to query timeline buckets: %w", err)
	}
	defer rows.Close()

	results := []models.BucketRollup{}
	for rows.Next() {
		var b models.BucketRollup
		if err := rows.Scan(&b.Start, &b.Views, &b.AddToCart, &b.Orders, &b.Revenue); err != nil {
			s.log.WithError(err).Error("Error scanning timeline bucket row")
			continue
		}
		b.Start = b.Start.UTC()
		results = append(results, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline bucket rows: %w", err)
	}
	return results, nil
}
