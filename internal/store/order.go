package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/denim-store/storefront/internal/db"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
)

const orderColumns = "id, user_id, status, total_amount, ship_street, ship_city, ship_state, ship_zip_code, ship_country, created_at, updated_at"

// OrderTx is the set of order and stock operations available inside one
// transaction. Row locks taken through it are held until the transaction ends.
type OrderTx interface {
	// LockProducts locks the given products in ascending ID order and returns
	// the ones that exist, keyed by ID.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	// AdjustStock adds delta to a product's stock unless the result would be
	// negative, returning the new level.
	AdjustStock(ctx context.Context, productID int64, delta int) (int, error)
	// InsertOrder stores a new order with its items and fills in the IDs.
	InsertOrder(ctx context.Context, o *models.Order) error
	// LockOrder locks an order row and returns it with its items.
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	// SetOrderStatus changes the status of an order.
	SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
}

// OrderStore persists orders
type OrderStore struct {
	database *db.DB
	db       instrumented
	metrics  *metrics.AppMetrics
}

// NewOrderStore creates a new order store
func NewOrderStore(database *db.DB, m *metrics.AppMetrics) *OrderStore {
	return &OrderStore{database: database, db: instrumented{q: database, metrics: m}, metrics: m}
}

// RunInTx runs fn in a single transaction, committing only when fn returns nil
func (s *OrderStore) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return s.database.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&orderTx{db: instrumented{q: tx, metrics: s.metrics}})
	})
}

// Get returns an order with its items and product summaries
func (s *OrderStore) Get(ctx context.Context, id int64) (*models.Order, error) {
	o, err := getOrder(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, s.db, []int64{o.ID}, true)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns the user's orders, newest first
func (s *OrderStore) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	rows, err := s.db.query(ctx, "orders", query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, s.db, ids, true)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

type orderTx struct {
	db instrumented
}

func (t *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	// ORDER BY id makes InnoDB take the row locks in a consistent order
	query := "SELECT " + productColumns + " FROM products WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id FOR UPDATE"
	rows, err := t.db.query(ctx, "products", query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *orderTx) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	query := "UPDATE products SET stock = stock + ? WHERE id = ? AND stock + ? >= 0"
	res, err := t.db.exec(ctx, "UPDATE", "products", query, delta, productID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	var stock int
	err = t.db.queryRow(ctx, "products", "SELECT stock FROM products WHERE id = ?", []any{productID}, &stock)
	if err != nil {
		return 0, errNoRows(err, "product", productID)
	}
	if n == 0 && delta != 0 {
		return stock, fmt.Errorf("product %d has %d, requested %d: %w", productID, stock, -delta, models.ErrInsufficientStock)
	}
	return stock, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *models.Order) error {
	a := o.ShippingAddress
	query := "INSERT INTO orders (user_id, status, total_amount, ship_street, ship_city, ship_state, ship_zip_code, ship_country) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := t.db.exec(ctx, "INSERT", "orders", query,
		o.UserID, string(o.Status), o.TotalAmount, a.Street, a.City, a.State, a.ZipCode, a.Country)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	o.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}

	itemQuery := "INSERT INTO order_items (order_id, product_id, quantity, size, price) VALUES (?, ?, ?, ?, ?)"
	for i := range o.Items {
		item := &o.Items[i]
		res, err := t.db.exec(ctx, "INSERT", "order_items", itemQuery, o.ID, item.ProductID, item.Quantity, item.Size, item.Price)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get order item ID: %w", err)
		}
	}
	return nil
}

func (t *orderTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := getOrder(ctx, t.db, id, true)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, t.db, []int64{o.ID}, false)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (t *orderTx) SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	query := "UPDATE orders SET status = ? WHERE id = ?"
	if _, err := t.db.exec(ctx, "UPDATE", "orders", query, string(status), id); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func getOrder(ctx context.Context, q instrumented, id int64, forUpdate bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := q.query(ctx, "orders", query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return scanOrder(rows)
}

func scanOrder(rows *sql.Rows) (*models.Order, error) {
	var (
		o      models.Order
		status string
		a      = &o.ShippingAddress
	)
	if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount,
		&a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.Status = models.OrderStatus(status)
	o.Items = []models.OrderItem{}
	return &o, nil
}

// loadItems returns the items of the given orders keyed by order ID. With
// withProducts set, each item carries a summary of its product, or nil when
// the product has since been deleted.
func loadItems(ctx context.Context, q instrumented, orderIDs []int64, withProducts bool) (map[int64][]models.OrderItem, error) {
	var query string
	if withProducts {
		query = "SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.size, oi.price, p.id, p.name, p.image " +
			"FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id " +
			"WHERE oi.order_id IN (" + placeholders(len(orderIDs)) + ") ORDER BY oi.id"
	} else {
		query = "SELECT id, order_id, product_id, quantity, size, price FROM order_items " +
			"WHERE order_id IN (" + placeholders(len(orderIDs)) + ") ORDER BY id"
	}

	rows, err := q.query(ctx, "order_items", query, int64Args(orderIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item    models.OrderItem
			orderID int64
		)
		dest := []any{&item.ID, &orderID, &item.ProductID, &item.Quantity, &item.Size, &item.Price}

		var (
			pID    sql.NullInt64
			pName  sql.NullString
			pImage sql.NullString
		)
		if withProducts {
			dest = append(dest, &pID, &pName, &pImage)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if pID.Valid {
			item.Product = &models.ProductSummary{ID: pID.Int64, Name: pName.String, Image: pImage.String}
		}
		out[orderID] = append(out[orderID], item)
	}
	return out, rows.Err()
}
