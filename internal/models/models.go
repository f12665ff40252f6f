package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the department a product is listed under
type Category string

const (
	CategoryMen   Category = "Men"
	CategoryWomen Category = "Women"
	CategoryKids  Category = "Kids"
)

// Categories lists every valid category
var Categories = []Category{CategoryMen, CategoryWomen, CategoryKids}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Sizes is the vocabulary of sizes a product may be offered in
var Sizes = []string{"XS", "S", "M", "L", "XL", "XXL", "28", "30", "32", "34", "36", "38", "40", "42"}

// ValidSize reports whether s belongs to the size vocabulary
func ValidSize(s string) bool {
	for _, known := range Sizes {
		if s == known {
			return true
		}
	}
	return false
}

// Product represents a pair of jeans in the catalog
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Fit         Fit             `json:"fit,omitempty"`
	Sizes       []string        `json:"sizes"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasSize reports whether the product is offered in size s
func (p *Product) HasSize(s string) bool {
	for _, size := range p.Sizes {
		if size == s {
			return true
		}
	}
	return false
}

// ProductFilter narrows a catalog listing. Empty fields match everything.
type ProductFilter struct {
	Category Category
	Fit      string
}

// ProductPatch is a partial product update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Fit         *Fit             `json:"fit,omitempty"`
	Sizes       []string         `json:"sizes,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}

// Apply copies the set fields of the patch onto p. A rename without a fit
// drops a fit that came from the old name so Normalize infers it again.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		if pp.Fit == nil && *pp.Name != p.Name && p.Fit == InferFit(p.Name) {
			p.Fit = ""
		}
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Fit != nil {
		p.Fit = *pp.Fit
	}
	if pp.Sizes != nil {
		p.Sizes = append([]string(nil), pp.Sizes...)
	}
	if pp.Image != nil {
		p.Image = *pp.Image
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
}

// User represents a customer or administrator account
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ShippingAddress is where an order is delivered
type ShippingAddress struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// ProductSummary is the slice of a product shown next to an order line
type ProductSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// OrderItem is one line of a placed order with the price captured at checkout
type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Product   *ProductSummary `json:"product"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal returns price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a placed order
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderLine is a requested product, size and quantity at checkout
type OrderLine struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	Items           []OrderLine     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress" validate:"required"`
}

// UpdateOrderStatusRequest represents a request to move an order to a new status
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

// SignupRequest represents a request to create an account
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Actor identifies who is calling a service operation
type Actor struct {
	UserID  int64
	IsAdmin bool
}
