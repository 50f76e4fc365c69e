package models

import "github.com/shopspring/decimal"

// StatsBundle is the summary served to the dashboard for one date range.
type StatsBundle struct {
	Views           int64           `json:"total_views"`
	AddToCart       int64           `json:"total_add_to_cart"`
	Orders          int64           `json:"total_orders"`
	ConversionRate  float64         `json:"conversion_rate"`
	Revenue         decimal.Decimal `json:"revenue"`
	AbandonmentRate float64         `json:"cart_abandonment_rate"`
	UniqueSessions  int64           `json:"unique_sessions"`
}

// ProductPerformance is one ranked row of the top-products view.
type ProductPerformance struct {
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ProductURL     string          `json:"product_url"`
	Views          int64           `json:"views"`
	AddToCart      int64           `json:"add_to_cart"`
	Orders         int64           `json:"orders"`
	Revenue        decimal.Decimal `json:"revenue"`
	ConversionRate float64         `json:"conversion_rate"`
}

// Timeline holds parallel arrays, one entry per non-empty bucket, ascending by label.
type Timeline struct {
	Labels    []string          `json:"labels"`
	Views     []int64           `json:"views"`
	AddToCart []int64           `json:"add_to_cart"`
	Orders    []int64           `json:"orders"`
	Revenue   []decimal.Decimal `json:"revenue"`
}

// NewTimeline returns a timeline with non-nil arrays so it encodes as [] rather than null.
func NewTimeline() Timeline {
	return Timeline{
		Labels:    []string{},
		Views:     []int64{},
		AddToCart: []int64{},
		Orders:    []int64{},
		Revenue:   []decimal.Decimal{},
	}
}

type Funnel struct {
	Views     int64 `json:"views"`
	AddToCart int64 `json:"add_to_cart"`
	Orders    int64 `json:"orders"`
}

// Dashboard combines every view of the metrics bundle for one request.
type Dashboard struct {
	Stats       StatsBundle          `json:"stats"`
	Timeline    Timeline             `json:"timeline"`
	TopProducts []ProductPerformance `json:"top_products"`
	Funnel      Funnel               `json:"funnel"`
}

// ProductInfo is the catalog data shown next to a ranked product.
type ProductInfo struct {
	ID   int64
	Name string
	URL  string
}
