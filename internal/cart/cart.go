// Package cart models the shopper's cart as a serializable state changed
// only through explicit actions.
package cart

import (
	"encoding/json"
	"fmt"

	"github.com/denim-store/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// Item is one product and size in the cart
type Item struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

// State is the whole cart. Totals are derived and recomputed on every change.
type State struct {
	Items       []Item          `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// NewState returns a state holding items with totals filled in
func NewState(items []Item) State {
	return withTotals(State{Items: items})
}

func withTotals(s State) State {
	if s.Items == nil {
		s.Items = []Item{}
	}
	s.TotalItems = 0
	s.TotalAmount = decimal.Zero
	for _, it := range s.Items {
		s.TotalItems += it.Quantity
		s.TotalAmount = s.TotalAmount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return s
}

func (s State) find(productID int64, size string) int {
	for i, it := range s.Items {
		if it.ProductID == productID && it.Size == size {
			return i
		}
	}
	return -1
}

// Lines converts the cart into checkout lines
func (s State) Lines() []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, models.OrderLine{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity})
	}
	return lines
}

// Action is a change to the cart. The set of actions is closed.
type Action interface {
	apply(State) State
}

// AddItem adds quantity of a product in a size, merging with an existing line
type AddItem struct {
	Item Item
}

// RemoveItem drops a product in a size
type RemoveItem struct {
	ProductID int64
	Size      string
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
type UpdateQuantity struct {
	ProductID int64
	Size      string
	Quantity  int
}

// Clear empties the cart
type Clear struct{}

func (a AddItem) apply(s State) State {
	if a.Item.Quantity <= 0 {
		return s
	}
	items := append([]Item(nil), s.Items...)
	if i := s.find(a.Item.ProductID, a.Item.Size); i >= 0 {
		items[i].Quantity += a.Item.Quantity
	} else {
		items = append(items, a.Item)
	}
	return State{Items: items}
}

func (a RemoveItem) apply(s State) State {
	items := make([]Item, 0, len(s.Items))
	for _, it := range s.Items {
		if it.ProductID == a.ProductID && it.Size == a.Size {
			continue
		}
		items = append(items, it)
	}
	return State{Items: items}
}

func (a UpdateQuantity) apply(s State) State {
	if a.Quantity <= 0 {
		return RemoveItem{ProductID: a.ProductID, Size: a.Size}.apply(s)
	}
	items := append([]Item(nil), s.Items...)
	if i := s.find(a.ProductID, a.Size); i >= 0 {
		items[i].Quantity = a.Quantity
	}
	return State{Items: items}
}

func (Clear) apply(State) State {
	return State{}
}

// Reduce returns the state after applying a. s is not modified.
func Reduce(s State, a Action) State {
	return withTotals(a.apply(s))
}

// wire form: {"type": "ADD_TO_CART", "payload": {...}}
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type linePayload struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

// DecodeAction parses an action from its wire form
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid cart action: %w", err)
	}

	var p linePayload
	if env.Type != "CLEAR_CART" {
		if len(env.Payload) == 0 {
			return nil, fmt.Errorf("cart action %s needs a payload", env.Type)
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
	}

	switch env.Type {
	case "ADD_TO_CART":
		if p.Quantity == 0 {
			p.Quantity = 1
		}
		return AddItem{Item: Item(p)}, nil
	case "REMOVE_FROM_CART":
		return RemoveItem{ProductID: p.ProductID, Size: p.Size}, nil
	case "UPDATE_QUANTITY":
		return UpdateQuantity{ProductID: p.ProductID, Size: p.Size, Quantity: p.Quantity}, nil
	case "CLEAR_CART":
		return Clear{}, nil
	}
	return nil, fmt.Errorf("unknown cart action %q", env.Type)
}
