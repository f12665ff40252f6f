package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/denim-store/storefront/internal/db"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
)

const productColumns = "id, name, description, price, category, fit, sizes, image, stock, created_at, updated_at"

// ProductStore persists catalog products
type ProductStore struct {
	database *db.DB
	db       instrumented
	metrics  *metrics.AppMetrics
}

// NewProductStore creates a new product store
func NewProductStore(database *db.DB, m *metrics.AppMetrics) *ProductStore {
	return &ProductStore{database: database, db: instrumented{q: database, metrics: m}, metrics: m}
}

// List returns products matching filter, newest first
func (s *ProductStore) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if fit := strings.TrimSpace(filter.Fit); fit != "" {
		where = append(where, "(LOWER(fit) = LOWER(?) OR LOWER(name) LIKE ?)")
		args = append(args, fit, "%"+escapeLike(strings.ToLower(fit))+"%")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.query(ctx, "products", query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// Get returns a product by ID
func (s *ProductStore) Get(ctx context.Context, id int64) (*models.Product, error) {
	return getProduct(ctx, s.db, id)
}

// Create inserts a product and fills in its ID and timestamps
func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	sizes, err := json.Marshal(nonNilSizes(p.Sizes))
	if err != nil {
		return fmt.Errorf("failed to encode sizes: %w", err)
	}

	query := "INSERT INTO products (name, description, price, category, fit, sizes, image, stock) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := s.db.exec(ctx, "INSERT", "products", query,
		p.Name, p.Description, p.Price, string(p.Category), string(p.Fit), string(sizes), p.Image, p.Stock)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product ID: %w", err)
	}

	created, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	*p = *created
	s.metrics.RecordInventory(ctx, p.ID, string(p.Category), p.Stock)
	return nil
}

// Update locks the product row, lets apply modify it and writes it back in
// the same transaction. Stock moved by orders in the meantime is never
// overwritten with a stale value because orders lock the same row.
func (s *ProductStore) Update(ctx context.Context, id int64, apply func(p *models.Product) error) (*models.Product, error) {
	err := s.database.InTx(ctx, func(tx *sql.Tx) error {
		q := instrumented{q: tx, metrics: s.metrics}

		rows, err := q.query(ctx, "products", "SELECT "+productColumns+" FROM products WHERE id = ? FOR UPDATE", id)
		if err != nil {
			return fmt.Errorf("failed to lock product: %w", err)
		}
		if !rows.Next() {
			rows.Close()
			if err := rows.Err(); err != nil {
				return fmt.Errorf("failed to lock product: %w", err)
			}
			return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
		}
		p, err := scanProduct(rows)
		rows.Close()
		if err != nil {
			return err
		}

		if err := apply(p); err != nil {
			return err
		}

		sizes, err := json.Marshal(nonNilSizes(p.Sizes))
		if err != nil {
			return fmt.Errorf("failed to encode sizes: %w", err)
		}
		query := "UPDATE products SET name = ?, description = ?, price = ?, category = ?, fit = ?, sizes = ?, image = ?, stock = ? WHERE id = ?"
		_, err = q.exec(ctx, "UPDATE", "products", query,
			p.Name, p.Description, p.Price, string(p.Category), string(p.Fit), string(sizes), p.Image, p.Stock, id)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordInventory(ctx, updated.ID, string(updated.Category), updated.Stock)
	return updated, nil
}

// Delete removes a product. Orders that reference it are left as they are.
func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	query := "DELETE FROM products WHERE id = ?"
	res, err := s.db.exec(ctx, "DELETE", "products", query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Count returns the number of products in the catalog
func (s *ProductStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.queryRow(ctx, "products", "SELECT COUNT(*) FROM products", nil, &n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func getProduct(ctx context.Context, q instrumented, id int64) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"

	rows, err := q.query(ctx, "products", query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get product: %w", err)
		}
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return scanProduct(rows)
}

func scanProduct(rows *sql.Rows) (*models.Product, error) {
	var (
		p        models.Product
		category string
		fit      string
		sizes    []byte
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &category, &fit,
		&sizes, &p.Image, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Category = models.Category(category)
	p.Fit = models.Fit(fit)
	if len(sizes) > 0 {
		if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
			return nil, fmt.Errorf("failed to decode sizes for product %d: %w", p.ID, err)
		}
	}
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	return &p, nil
}

func nonNilSizes(sizes []string) []string {
	if sizes == nil {
		return []string{}
	}
	return sizes
}

// errNoRows maps sql.ErrNoRows to a not found error for the named entity
func errNoRows(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
