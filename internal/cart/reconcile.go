package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/denim-store/storefront/internal/models"
)

// Catalog looks up live product details
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// Adjustment describes one change made while reconciling a cart
type Adjustment struct {
	ProductID int64  `json:"productId"`
	Size      string `json:"size"`
	Reason    string `json:"reason"`
}

// Reconcile checks a cart against the live catalog before checkout. Lines
// for missing products or sizes are removed, quantities are capped at the
// stock shared by all sizes of a product, and prices are refreshed.
func Reconcile(ctx context.Context, catalog Catalog, s State) (State, []Adjustment, error) {
	var (
		adjustments []Adjustment
		remaining   = make(map[int64]int)
		products    = make(map[int64]*models.Product)
	)
	adjust := func(it Item, format string, args ...any) {
		adjustments = append(adjustments, Adjustment{ProductID: it.ProductID, Size: it.Size, Reason: fmt.Sprintf(format, args...)})
	}

	out := State{Items: []Item{}}
	for _, it := range s.Items {
		if it.Quantity <= 0 {
			continue
		}

		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = catalog.GetProduct(ctx, it.ProductID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return State{}, nil, err
			}
			products[it.ProductID] = p
			if p != nil {
				remaining[p.ID] = p.Stock
			}
		}

		if p == nil {
			adjust(it, "%s is no longer available", displayName(it))
			continue
		}
		if !p.HasSize(it.Size) {
			adjust(it, "Size %s is no longer available for %s", it.Size, p.Name)
			continue
		}
		if remaining[p.ID] == 0 {
			adjust(it, "%s is out of stock", p.Name)
			continue
		}

		if it.Quantity > remaining[p.ID] {
			adjust(it, "Only %d of %s available", remaining[p.ID], p.Name)
			it.Quantity = remaining[p.ID]
		}
		remaining[p.ID] -= it.Quantity

		if !it.Price.Equal(p.Price) {
			adjust(it, "Price of %s changed from %s to %s", p.Name, it.Price.StringFixed(2), p.Price.StringFixed(2))
		}
		it.Price = p.Price
		it.Name = p.Name
		it.Image = p.Image

		out = AddItem{Item: it}.apply(out)
	}

	if adjustments == nil {
		adjustments = []Adjustment{}
	}
	return withTotals(out), adjustments, nil
}

func displayName(it Item) string {
	if it.Name != "" {
		return it.Name
	}
	return fmt.Sprintf("Product %d", it.ProductID)
}
