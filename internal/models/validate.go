package models

import (
	"fmt"
	"strings"
)

// Validate checks the invariants every stored product must satisfy
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewError(ErrInvalidRequest, "Product name is required")
	}
	if p.Price.IsNegative() {
		return NewError(ErrInvalidRequest, "Price cannot be negative")
	}
	if !p.Category.Valid() {
		return NewError(ErrInvalidRequest, fmt.Sprintf("Invalid category: %s", p.Category))
	}
	if p.Fit != "" {
		if _, ok := ParseFit(string(p.Fit)); !ok {
			return NewError(ErrInvalidRequest, fmt.Sprintf("Invalid fit: %s", p.Fit))
		}
	}
	seen := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if !ValidSize(s) {
			return NewError(ErrInvalidRequest, fmt.Sprintf("Invalid size: %s", s))
		}
		if seen[s] {
			return NewError(ErrInvalidRequest, fmt.Sprintf("Duplicate size: %s", s))
		}
		seen[s] = true
	}
	if strings.TrimSpace(p.Image) == "" {
		return NewError(ErrInvalidRequest, "Product image is required")
	}
	if p.Stock < 0 {
		return NewError(ErrInvalidRequest, "Stock cannot be negative")
	}
	return nil
}

// Normalize canonicalizes the fit spelling and infers a fit from the name
// when none was given.
func (p *Product) Normalize() {
	if p.Fit == "" {
		p.Fit = InferFit(p.Name)
		return
	}
	if f, ok := ParseFit(string(p.Fit)); ok {
		p.Fit = f
	}
}
