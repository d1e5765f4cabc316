package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engravehub/backoffice/internal/domain"
)

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrUnpricedCustom  = errors.New("custom item needs a unit price")
	ErrEmptyQuote      = errors.New("quote has no items")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
)

// ProductCatalog resolves catalog products for pricing. Satisfied by
// inventory.ProductRepository.
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// QuoteItem is one line of a quote request before pricing. Catalog items are
// priced from the product catalog; custom engravings must carry their own
// unit price.
type QuoteItem struct {
	ProductID      string
	CustomRef      string
	Description    string
	Quantity       int
	UnitPriceCents int64
}

// Service prices quote requests from the public wizard.
type Service struct {
	catalog  ProductCatalog
	shipping ShippingQuoter
}

func NewService(catalog ProductCatalog, shipping ShippingQuoter) *Service {
	return &Service{
		catalog:  catalog,
		shipping: shipping,
	}
}

// Price resolves and prices the requested items, returning an unsaved open
// quote with subtotal, shipping, and total filled in.
func (s *Service) Price(ctx context.Context, customerName, customerEmail string, items []QuoteItem) (*domain.Quote, error) {
	if len(items) == 0 {
		return nil, ErrEmptyQuote
	}

	quote := &domain.Quote{
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		Status:        domain.QuoteStatusOpen,
		CreatedAt:     time.Now().UTC(),
	}

	var itemCount int
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}

		line := domain.LineItem{
			CustomRef:   it.CustomRef,
			Description: it.Description,
			Quantity:    it.Quantity,
		}

		switch {
		case it.ProductID != "":
			product, err := s.catalog.GetByID(ctx, it.ProductID)
			if err != nil {
				return nil, fmt.Errorf("look up product %s: %w", it.ProductID, err)
			}
			if product == nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
			}
			line.ProductID = product.ID
			line.UnitPriceCents = product.PriceCents
			if line.Description == "" {
				line.Description = product.Name
			}
		case it.UnitPriceCents > 0:
			line.UnitPriceCents = it.UnitPriceCents
		default:
			return nil, ErrUnpricedCustom
		}

		quote.SubtotalCents += line.UnitPriceCents * int64(line.Quantity)
		itemCount += line.Quantity
		quote.Items = append(quote.Items, line)
	}

	quote.ShippingCents = s.shipping.Quote(quote.SubtotalCents, itemCount)
	quote.TotalCents = quote.SubtotalCents + quote.ShippingCents

	return quote, nil
}
