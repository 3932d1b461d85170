package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	"github.com/Skotchmaster/shop_checkout/internal/transport"
)

type CatalogService struct {
	Repo   *repo.GormRepo
	Events Publisher
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, err
}

func (s *CatalogService) GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetProducts(ctx, offset, limit)
}

func normalizeSizes(sizes []string) string {
	out := make([]string, 0, len(sizes))
	for _, sz := range sizes {
		if sz = strings.TrimSpace(sz); sz != "" {
			out = append(out, sz)
		}
	}
	return strings.Join(out, ",")
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be > 0", ErrValidation)
	}

	prod := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price.Round(2),
		Sizes:       normalizeSizes(req.Sizes),
		Count:       req.Count,
	}
	created, err := s.Repo.CreateProduct(ctx, prod)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicProductEvents, created.ID.String(), map[string]any{
		"type":      "product_created",
		"productID": created.ID,
		"name":      created.Name,
	})
	return created, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, req transport.PatchProductRequest, id uuid.UUID) (*models.Product, error) {
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be > 0", ErrValidation)
		}
		price := req.Price.Round(2)
		req.Price = &price
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if req.Sizes != nil {
		cleaned := strings.Split(normalizeSizes(*req.Sizes), ",")
		if cleaned[0] == "" {
			cleaned = nil
		}
		req.Sizes = &cleaned
	}

	prod, err := s.Repo.PatchProduct(ctx, req, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicProductEvents, prod.ID.String(), map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})
	return prod, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.Repo.DeleteProduct(ctx, id)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	publish(ctx, s.Events, TopicProductEvents, id.String(), map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	return nil
}
