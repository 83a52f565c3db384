package product

import (
	"context"

	"larder/internal/domain"
)

type SearchUseCase interface {
	SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error)
	GetProduct(ctx context.Context, id uint) (*ProductDTO, error)
}

type Service interface {
	GetProductsByIDs(ctx context.Context, ids []uint) (found []ProductStock, notFoundIDs []uint, err error)
	GetProduct(ctx context.Context, id uint) (*ProductStock, error)
}

type Repository interface {
	FindByID(ctx context.Context, id uint) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []uint) ([]domain.Product, error)
}

type BatchRepository interface {
	FindByProducts(ctx context.Context, productIDs []uint) ([]domain.Batch, error)
}
