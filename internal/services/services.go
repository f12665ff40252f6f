// Package services implements the catalog, order and account operations
// on top of the store interfaces below.
package services

import (
	"context"

	"github.com/denim-store/storefront/internal/models"
	"github.com/denim-store/storefront/internal/store"
)

// ProductStore persists catalog products
type ProductStore interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	// Update runs apply against the locked current row and stores the result
	Update(ctx context.Context, id int64, apply func(p *models.Product) error) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// UserStore persists user accounts
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// OrderStore persists orders. Anything that must be atomic goes through RunInTx.
type OrderStore interface {
	RunInTx(ctx context.Context, fn func(tx store.OrderTx) error) error
	Get(ctx context.Context, id int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
}

// ProductCache is an optional read-through cache of product details
type ProductCache interface {
	Get(ctx context.Context, id int64) (*models.Product, bool, error)
	Set(ctx context.Context, p *models.Product) error
	Invalidate(ctx context.Context, ids ...int64) error
}

// TokenManager issues and verifies session tokens
type TokenManager interface {
	Issue(userID int64) (string, error)
	Verify(token string) (int64, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}
