// Package analytics derives storefront metrics from the event store rollups.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perftracker/api/models"
)

// DefaultRangeDays is the trailing window used when a timeline has no bounds.
const DefaultRangeDays = 30

// RollupSource is the read side of the event store.
type RollupSource interface {
	Stats(ctx context.Context, r models.DateRange) (models.RawStats, error)
	ProductRollups(ctx context.Context, r models.DateRange, sortBy models.ProductSortField, limit int) ([]models.ProductRollup, error)
	BucketRollups(ctx context.Context, interval models.Interval, r models.DateRange) ([]models.BucketRollup, error)
}

// ProductResolver looks up catalog names and links for ranked products.
type ProductResolver interface {
	Resolve(ctx context.Context, productID int64) (models.ProductInfo, error)
}

type Engine struct {
	source   RollupSource
	products ProductResolver
	log      *logrus.Logger
	now      func() time.Time
}

func NewEngine(source RollupSource, products ProductResolver, log *logrus.Logger) *Engine {
	return &Engine{
		source:   source,
		products: products,
		log:      log,
		now:      time.Now,
	}
}

// CalculateConversionRate returns orders per hundred views, rounded half-up to two decimals.
func CalculateConversionRate(views, orders int64) float64 {
	return percentage(orders, views)
}

var halfCent = decimal.New(5, -3)

// percentage returns part/whole*100 rounded half-up (toward +Inf on ties) to two decimals,
// or 0 when whole is 0.
func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Add(halfCent).
		RoundFloor(2).
		InexactFloat64()
}

// GetStats combines the raw counters with the derived rates.
func (e *Engine) GetStats(ctx context.Context, r models.DateRange) (models.StatsBundle, error) {
	raw, err := e.source.Stats(ctx, r)
	if err != nil {
		return models.StatsBundle{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return models.StatsBundle{
		Views:           raw.Views,
		AddToCart:       raw.AddToCart,
		Orders:          raw.Orders,
		ConversionRate:  CalculateConversionRate(raw.Views, raw.Orders),
		Revenue:         raw.Revenue,
		AbandonmentRate: abandonmentRate(raw.AddToCart, raw.Orders),
		UniqueSessions:  raw.UniqueSessions,
	}, nil
}

// GetAbandonmentRate is the store-wide share of cart adds without a completed order.
// It compares raw event counts, not per-session journeys.
func (e *Engine) GetAbandonmentRate(ctx context.Context, r models.DateRange) (float64, error) {
	raw, err := e.source.Stats(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("failed to load cart counts: %w", err)
	}
	return abandonmentRate(raw.AddToCart, raw.Orders), nil
}

func abandonmentRate(carts, orders int64) float64 {
	return percentage(carts-orders, carts)
}

func (e *Engine) GetFunnelData(ctx context.Context, r models.DateRange) (models.Funnel, error) {
	raw, err := e.source.Stats(ctx, r)
	if err != nil {
		return models.Funnel{}, fmt.Errorf("failed to load funnel counts: %w", err)
	}
	return models.Funnel{
		Views:     raw.Views,
		AddToCart: raw.AddToCart,
		Orders:    raw.Orders,
	}, nil
}

// GetTopProducts ranks products by sortBy. Products the catalog cannot resolve keep their
// metrics under a placeholder name.
func (e *Engine) GetTopProducts(ctx context.Context, limit int, r models.DateRange, sortBy models.ProductSortField) ([]models.ProductPerformance, error) {
	if sortBy == "" {
		sortBy = models.SortByViews
	}
	rollups, err := e.source.ProductRollups(ctx, r, sortBy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load product rollups: %w", err)
	}

	products := make([]models.ProductPerformance, 0, len(rollups))
	for _, p := range rollups {
		name := fmt.Sprintf("Product #%d", p.ProductID)
		url := "#"
		if e.products != nil {
			info, err := e.products.Resolve(ctx, p.ProductID)
			if err == nil {
				name, url = info.Name, info.URL
			} else {
				e.log.WithError(err).WithField("product_id", p.ProductID).Debug("Product lookup failed, using placeholder")
			}
		}

		products = append(products, models.ProductPerformance{
			ProductID:      p.ProductID,
			ProductName:    name,
			ProductURL:     url,
			Views:          p.Views,
			AddToCart:      p.AddToCart,
			Orders:         p.Orders,
			Revenue:        p.Revenue,
			ConversionRate: CalculateConversionRate(p.Views, p.Orders),
		})
	}
	return products, nil
}

// GetTimelineData returns one point per non-empty bucket, oldest first. Missing bounds default
// to the trailing DefaultRangeDays days.
func (e *Engine) GetTimelineData(ctx context.Context, interval models.Interval, r models.DateRange) (models.Timeline, error) {
	if interval == "" {
		interval = models.IntervalDay
	}
	r = r.WithDefaults(e.now(), DefaultRangeDays)

	buckets, err := e.source.BucketRollups(ctx, interval, r)
	if err != nil {
		return models.Timeline{}, fmt.Errorf("failed to load timeline buckets: %w", err)
	}

	timeline := models.NewTimeline()
	for _, b := range buckets {
		timeline.Labels = append(timeline.Labels, interval.Label(b.Start))
		timeline.Views = append(timeline.Views, b.Views)
		timeline.AddToCart = append(timeline.AddToCart, b.AddToCart)
		timeline.Orders = append(timeline.Orders, b.Orders)
		timeline.Revenue = append(timeline.Revenue, b.Revenue)
	}
	return timeline, nil
}
