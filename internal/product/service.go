package product

import (
	"context"

	"larder/internal/domain"
)

// ProductStock is a product with stock levels summed over its batches.
type ProductStock struct {
	domain.Product
	Stock domain.StockLevels
}

type productService struct {
	repo    Repository
	batches BatchRepository
}

func NewService(repo Repository, batches BatchRepository) Service {
	return &productService{repo: repo, batches: batches}
}

func (s *productService) GetProductsByIDs(ctx context.Context, ids []uint) ([]ProductStock, []uint, error) {
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	withStock, err := s.attachStock(ctx, found)
	if err != nil {
		return nil, nil, err
	}

	foundSet := make(map[uint]struct{}, len(found))
	for _, p := range found {
		foundSet[p.ID] = struct{}{}
	}

	var notFoundIDs []uint
	for _, id := range ids {
		if _, ok := foundSet[id]; !ok {
			notFoundIDs = append(notFoundIDs, id)
		}
	}

	return withStock, notFoundIDs, nil
}

func (s *productService) GetProduct(ctx context.Context, id uint) (*ProductStock, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	withStock, err := s.attachStock(ctx, []domain.Product{*p})
	if err != nil {
		return nil, err
	}
	return &withStock[0], nil
}

func (s *productService) attachStock(ctx context.Context, products []domain.Product) ([]ProductStock, error) {
	if len(products) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	batches, err := s.batches.FindByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[uint][]domain.Batch, len(products))
	for _, b := range batches {
		byProduct[b.ProductID] = append(byProduct[b.ProductID], b)
	}

	out := make([]ProductStock, 0, len(products))
	for _, p := range products {
		out = append(out, ProductStock{Product: p, Stock: domain.SumStock(byProduct[p.ID])})
	}
	return out, nil
}
