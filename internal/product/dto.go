package product

import "github.com/shopspring/decimal"

type SearchProductsRequest struct {
	ProductIDs []uint `json:"productIds" validate:"required,min=1,max=100,dive,gt=0"`
}

type SearchProductsResponse struct {
	Products []ProductDTO `json:"products"`
	NotFound []uint       `json:"notFound"`
}

type ProductDTO struct {
	ID               uint            `json:"id"`
	NameEn           string          `json:"nameEn"`
	NameAr           string          `json:"nameAr"`
	Price            decimal.Decimal `json:"price"`
	MaxOrderQuantity int             `json:"maxOrderQuantity"`
	IsActive         bool            `json:"isActive"`
	TotalStock       int             `json:"totalStock"`
	ReservedStock    int             `json:"reservedStock"`
	AvailableStock   int             `json:"availableStock"`
}
