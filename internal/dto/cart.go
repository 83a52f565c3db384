package dto

import (
	"sort"
	"strconv"

	apperrors "larder/internal/errors"
)

type CartLine struct {
	Quantity int `json:"quantity"`
}

// Cart is the storefront payload: product ID keys mapped to a line.
//
//	{"12": {"quantity": 3}, "40": {"quantity": 1}}
type Cart map[string]CartLine

type CartEntry struct {
	ProductID uint
	Quantity  int
}

// Entries validates the cart and returns its lines sorted by product ID.
// Keys naming the same product ("12", "012") collapse into one line with
// their quantities summed. maxItems <= 0 disables the size limit.
func (c Cart) Entries(maxItems int) ([]CartEntry, error) {
	if len(c) == 0 {
		return nil, apperrors.NewValidationError("cart must not be empty",
			apperrors.ValidationDetail{Field: "cart", Message: "cart must contain at least one product"})
	}

	var details []apperrors.ValidationDetail
	quantities := make(map[uint]int, len(c))
	for key, line := range c {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "cart[" + key + "]",
				Message: "product id must be a positive integer",
			})
			continue
		}
		if line.Quantity <= 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "cart[" + key + "].quantity",
				Message: "quantity must be greater than zero",
			})
			continue
		}
		quantities[uint(id)] += line.Quantity
	}

	if maxItems > 0 && len(quantities) > maxItems {
		details = append(details, apperrors.ValidationDetail{
			Field:   "cart",
			Message: "cart exceeds maximum of " + strconv.Itoa(maxItems) + " products",
		})
	}

	if len(details) > 0 {
		sort.Slice(details, func(i, j int) bool { return details[i].Field < details[j].Field })
		return nil, apperrors.NewValidationError("invalid cart", details...)
	}

	entries := make([]CartEntry, 0, len(quantities))
	for id, qty := range quantities {
		entries = append(entries, CartEntry{ProductID: id, Quantity: qty})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ProductID < entries[j].ProductID })
	return entries, nil
}
