package product

import (
	"context"
)

type searchUseCase struct {
	service Service
}

func NewSearchUseCase(service Service) SearchUseCase {
	return &searchUseCase{service: service}
}

func (uc *searchUseCase) SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error) {
	found, notFoundIDs, err := uc.service.GetProductsByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}

	products := make([]ProductDTO, 0, len(found))
	for _, p := range found {
		products = append(products, toDTO(p))
	}

	if notFoundIDs == nil {
		notFoundIDs = []uint{}
	}

	return &SearchProductsResponse{
		Products: products,
		NotFound: notFoundIDs,
	}, nil
}

func (uc *searchUseCase) GetProduct(ctx context.Context, id uint) (*ProductDTO, error) {
	p, err := uc.service.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	out := toDTO(*p)
	return &out, nil
}

func toDTO(p ProductStock) ProductDTO {
	return ProductDTO{
		ID:               p.ID,
		NameEn:           p.NameEn,
		NameAr:           p.NameAr,
		Price:            p.Price,
		MaxOrderQuantity: p.MaxOrderQuantity,
		IsActive:         p.IsActive,
		TotalStock:       p.Stock.Total,
		ReservedStock:    p.Stock.Reserved,
		AvailableStock:   p.Stock.Available,
	}
}
