package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CatalogService handles product listing, lookup and administration
type CatalogService struct {
	products ProductStore
	cache    ProductCache
	metrics  *metrics.AppMetrics
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(products ProductStore, cache ProductCache, metrics *metrics.AppMetrics) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		metrics:  metrics,
	}
}

// ListProducts returns products matching filter, newest first
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, models.NewError(models.ErrInvalidRequest, fmt.Sprintf("Invalid category: %s", filter.Category))
	}
	return s.products.List(ctx, filter)
}

// GetProduct returns a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("product_id", id).Msg("product cache read failed")
		}
		s.metrics.RecordCacheLookup(ctx, "product", found)
		if found {
			s.recordView(ctx, cached)
			return cached, nil
		}
	}

	p, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, "Product not found")
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			log.Warn().Err(err).Int64("product_id", id).Msg("product cache write failed")
		}
	}

	s.recordView(ctx, p)
	return p, nil
}

// CreateProduct validates and stores a new product
func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().Int64("product_id", p.ID).Str("name", p.Name).Msg("product created")
	return p, nil
}

// UpdateProduct applies a partial update to an existing product. The
// product is read and written under its row lock, so fields the patch does
// not name, stock in particular, keep whatever value they have at write time.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	p, err := s.products.Update(ctx, id, func(p *models.Product) error {
		patch.Apply(p)
		p.Normalize()
		return p.Validate()
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, "Product not found")
		}
		return nil, err
	}
	s.invalidate(ctx, id)

	log.Info().Int64("product_id", id).Msg("product updated")
	return p, nil
}

// DeleteProduct removes a product. Existing orders keep their lines and
// show no product details for it afterwards.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewError(models.ErrNotFound, "Product not found")
		}
		return err
	}
	s.invalidate(ctx, id)

	log.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

// SeedProducts inserts products when the catalog is empty and reports how
// many were added.
func (s *CatalogService) SeedProducts(ctx context.Context, products []models.Product) (int, error) {
	n, err := s.products.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int("existing", n).Msg("catalog not empty, skipping seed")
		return 0, nil
	}

	for i := range products {
		if _, err := s.CreateProduct(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", products[i].Name, err)
		}
	}
	return len(products), nil
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		log.Warn().Err(err).Ints64("product_ids", ids).Msg("product cache invalidation failed")
	}
}

func (s *CatalogService) recordView(ctx context.Context, p *models.Product) {
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("product_category", string(p.Category)),
		attribute.String("product_fit", string(p.Fit)),
	})...))
}
