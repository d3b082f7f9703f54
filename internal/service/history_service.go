package service

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
)

const (
	HistoryTypeHistory = "history"
	HistoryTypeRelated = "related"
)

type ProductCatalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)
	GetRelatedProducts(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]*domain.Product, error)
}

type HistoryService struct {
	catalog ProductCatalog
	limit   int
}

func NewHistoryService(catalog ProductCatalog, limit int) *HistoryService {
	return &HistoryService{catalog: catalog, limit: limit}
}

// Browse returns recently viewed products ("history") or products related to them
// ("related"). Unpublished products never appear.
func (s *HistoryService) Browse(ctx context.Context, kind string, ids []int64, categories []string) ([]*domain.Product, error) {
	switch kind {
	case HistoryTypeHistory:
		products, err := s.catalog.GetProductsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		published := make([]*domain.Product, 0, len(products))
		for _, p := range products {
			if p.IsPublished {
				published = append(published, p)
			}
		}
		return published, nil
	case HistoryTypeRelated:
		return s.catalog.GetRelatedProducts(ctx, categories, ids, s.limit)
	default:
		return nil, fieldError("type", "must be history or related")
	}
}
