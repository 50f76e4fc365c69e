package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"perftracker/api/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStore resolves product ids against the storefront catalog table.
// Successful lookups are memoized for ttl.
type ProductStore struct {
	db          *sql.DB
	urlTemplate string
	memo        *lru.LRU[int64, models.ProductInfo]
}

func NewProductStore(db *sql.DB, urlTemplate string, size int, ttl time.Duration) *ProductStore {
	if size <= 0 {
		size = 512
	}
	return &ProductStore{
		db:          db,
		urlTemplate: urlTemplate,
		memo:        lru.NewLRU[int64, models.ProductInfo](size, nil, ttl),
	}
}

func (s *ProductStore) Resolve(ctx context.Context, id int64) (models.ProductInfo, error) {
	if info, ok := s.memo.Get(id); ok {
		return info, nil
	}

	var name, slug string
	err := s.db.QueryRowContext(ctx, `SELECT name, slug FROM products WHERE id = $1`, id).Scan(&name, &slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ProductInfo{}, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
		}
		return models.ProductInfo{}, fmt.Errorf("failed to look up product %d: %w", id, err)
	}

	info := models.ProductInfo{ID: id, Name: name, URL: fmt.Sprintf(s.urlTemplate, slug)}
	s.memo.Add(id, info)
	return info, nil
}
