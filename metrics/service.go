// Package metrics serves dashboard metrics through the cache, computing them on a miss.
package metrics

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"perftracker/api/analytics"
	"perftracker/api/cache"
	"perftracker/api/models"
	"perftracker/api/telemetry"
)

const (
	kindStats       = "stats"
	kindTopProducts = "top_products"
	kindTimeline    = "timeline"
	kindFunnel      = "funnel"

	// DefaultTopProducts is the ranking size used by the dashboard and warmup.
	DefaultTopProducts = 10
)

// Calculator computes metrics from the event store.
type Calculator interface {
	GetStats(ctx context.Context, r models.DateRange) (models.StatsBundle, error)
	GetTopProducts(ctx context.Context, limit int, r models.DateRange, sortBy models.ProductSortField) ([]models.ProductPerformance, error)
	GetTimelineData(ctx context.Context, interval models.Interval, r models.DateRange) (models.Timeline, error)
	GetFunnelData(ctx context.Context, r models.DateRange) (models.Funnel, error)
}

type Service struct {
	calc      Calculator
	cache     cache.Cache
	ttl       time.Duration
	log       *logrus.Logger
	telemetry *telemetry.Metrics
	now       func() time.Time
}

// NewService builds the facade. ttl <= 0 leaves expiry to the cache default; m may be nil.
func NewService(calc Calculator, c cache.Cache, ttl time.Duration, log *logrus.Logger, m *telemetry.Metrics) *Service {
	return &Service{
		calc:      calc,
		cache:     c,
		ttl:       ttl,
		log:       log,
		telemetry: m,
		now:       time.Now,
	}
}

// withDefaults fills missing bounds with the trailing window ending today.
func (s *Service) withDefaults(r models.DateRange) models.DateRange {
	return r.WithDefaults(s.now(), analytics.DefaultRangeDays)
}

// cached returns the value stored under kind/params, computing and storing it on a miss.
// Any cache failure is logged and treated as a miss.
func cached[T any](ctx context.Context, s *Service, kind string, params map[string]string, compute func() (T, error)) (T, error) {
	key := cache.Key(kind, params)
	entry := s.log.WithFields(logrus.Fields{"kind": kind, "key": key})

	lookup, err := s.cache.Get(ctx, key)
	if err != nil {
		s.telemetry.CacheError("get")
		entry.WithError(err).Warn("Cache read failed, computing metrics")
	} else if lookup.Hit {
		var v T
		if err := json.Unmarshal(lookup.Value, &v); err == nil {
			s.telemetry.CacheLookup(kind, true)
			return v, nil
		}
		entry.WithError(err).Warn("Discarding undecodable cache entry")
		_ = s.cache.Delete(ctx, key)
	}
	s.telemetry.CacheLookup(kind, false)

	v, err := compute()
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		entry.WithError(err).Error("Failed to encode metrics for cache")
		return v, nil
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.telemetry.CacheError("set")
		entry.WithError(err).Warn("Cache write failed")
	}
	return v, nil
}

func (s *Service) GetStats(ctx context.Context, r models.DateRange) (models.StatsBundle, error) {
	r = s.withDefaults(r)
	return cached(ctx, s, kindStats, r.Params(), func() (models.StatsBundle, error) {
		return s.calc.GetStats(ctx, r)
	})
}

func (s *Service) GetTopProducts(ctx context.Context, limit int, r models.DateRange, sortBy models.ProductSortField) ([]models.ProductPerformance, error) {
	r = s.withDefaults(r)
	if sortBy == "" {
		sortBy = models.SortByViews
	}
	if limit <= 0 {
		limit = DefaultTopProducts
	}
	params := r.Params()
	params["limit"] = strconv.Itoa(limit)
	params["orderby"] = string(sortBy)

	return cached(ctx, s, kindTopProducts, params, func() ([]models.ProductPerformance, error) {
		return s.calc.GetTopProducts(ctx, limit, r, sortBy)
	})
}

func (s *Service) GetTimeline(ctx context.Context, interval models.Interval, r models.DateRange) (models.Timeline, error) {
	r = s.withDefaults(r)
	if interval == "" {
		interval = models.IntervalDay
	}
	params := r.Params()
	params["interval"] = string(interval)

	return cached(ctx, s, kindTimeline, params, func() (models.Timeline, error) {
		return s.calc.GetTimelineData(ctx, interval, r)
	})
}

func (s *Service) GetFunnel(ctx context.Context, r models.DateRange) (models.Funnel, error) {
	r = s.withDefaults(r)
	return cached(ctx, s, kindFunnel, r.Params(), func() (models.Funnel, error) {
		return s.calc.GetFunnelData(ctx, r)
	})
}

// GetDashboard assembles every view for one range. Each part is cached on its own.
func (s *Service) GetDashboard(ctx context.Context, r models.DateRange) (models.Dashboard, error) {
	var d models.Dashboard
	var err error

	if d.Stats, err = s.GetStats(ctx, r); err != nil {
		return d, err
	}
	if d.Timeline, err = s.GetTimeline(ctx, models.IntervalDay, r); err != nil {
		return d, err
	}
	if d.TopProducts, err = s.GetTopProducts(ctx, DefaultTopProducts, r, models.SortByViews); err != nil {
		return d, err
	}
	if d.Funnel, err = s.GetFunnel(ctx, r); err != nil {
		return d, err
	}
	return d, nil
}

// Flush drops every cached metric. reason only labels the flush for logs and metrics.
func (s *Service) Flush(ctx context.Context, reason string) error {
	if err := s.cache.Flush(ctx); err != nil {
		s.telemetry.CacheError("flush")
		return err
	}
	s.telemetry.CacheFlushed(reason)
	s.log.WithField("reason", reason).Info("Metrics cache flushed")
	return nil
}

func (s *Service) CacheInfo(ctx context.Context) (cache.Info, error) {
	return s.cache.Info(ctx)
}

// Warmup precomputes the daily timeline and top products for today and the last seven days.
func (s *Service) Warmup(ctx context.Context) error {
	today := s.now().UTC()
	ranges := []models.DateRange{
		{From: today, To: today},
		{From: today.AddDate(0, 0, -7), To: today},
	}
	for _, r := range ranges {
		if _, err := s.GetTimeline(ctx, models.IntervalDay, r); err != nil {
			return err
		}
		if _, err := s.GetTopProducts(ctx, DefaultTopProducts, r, models.SortByViews); err != nil {
			return err
		}
	}
	s.log.Info("Metrics cache warmed up")
	return nil
}
