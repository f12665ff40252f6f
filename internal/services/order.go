package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
	"github.com/denim-store/storefront/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errOrderNotFound = models.NewError(models.ErrNotFound, "Order not found")

// OrderService handles order placement and the order lifecycle
type OrderService struct {
	orders  OrderStore
	cache   ProductCache
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service. cache may be nil.
func NewOrderService(orders OrderStore, cache ProductCache, metrics *metrics.AppMetrics) *OrderService {
	return &OrderService{
		orders:  orders,
		cache:   cache,
		metrics: metrics,
	}
}

// stockLevel is a product's stock after an adjustment
type stockLevel struct {
	productID int64
	category  models.Category
	stock     int
}

// CreateOrder validates every line against the catalog, captures prices,
// stores the order and reserves stock. Either all of it happens or none.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, models.NewError(models.ErrInvalidRequest, "Order must contain at least one item")
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, models.NewError(models.ErrInvalidRequest, "Quantity must be at least 1")
		}
	}

	// Requested quantity per product across all lines
	requested := make(map[int64]int)
	var productIDs []int64
	for _, line := range req.Items {
		if _, seen := requested[line.ProductID]; !seen {
			productIDs = append(productIDs, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	order := &models.Order{
		UserID:          userID,
		Status:          models.StatusPending,
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     decimal.Zero,
	}
	var (
		levels     []stockLevel
		categories = make(map[int64]models.Category)
	)

	err := s.orders.RunInTx(ctx, func(tx store.OrderTx) error {
		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return err
		}

		order.Items = order.Items[:0]
		order.TotalAmount = decimal.Zero
		counted := make(map[int64]int)
		for _, line := range req.Items {
			p, ok := products[line.ProductID]
			if !ok {
				return models.NewError(models.ErrNotFound, fmt.Sprintf("Product not found: %d", line.ProductID))
			}
			if !p.HasSize(line.Size) {
				return models.NewError(models.ErrInvalidRequest, fmt.Sprintf("Size %s not available for %s", line.Size, p.Name))
			}
			counted[p.ID] += line.Quantity
			if counted[p.ID] > p.Stock {
				return models.NewError(models.ErrInsufficientStock,
					fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", p.Name, p.Stock, counted[p.ID]))
			}

			item := models.OrderItem{
				ProductID: p.ID,
				Product:   &models.ProductSummary{ID: p.ID, Name: p.Name, Image: p.Image},
				Quantity:  line.Quantity,
				Size:      line.Size,
				Price:     p.Price,
			}
			order.Items = append(order.Items, item)
			order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
			categories[p.ID] = p.Category
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		levels = levels[:0]
		for _, id := range productIDs {
			stock, err := tx.AdjustStock(ctx, id, -requested[id])
			if err != nil {
				if errors.Is(err, models.ErrInsufficientStock) {
					p := products[id]
					return models.NewError(models.ErrInsufficientStock,
						fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", p.Name, stock, requested[id]))
				}
				return err
			}
			levels = append(levels, stockLevel{productID: id, category: categories[id], stock: stock})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProducts(ctx, productIDs)
	s.recordStock(ctx, levels)
	s.recordOrderCreated(ctx, order, categories)

	log.Info().
		Int64("order_id", order.ID).
		Int64("user_id", userID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("order placed")

	return s.reload(ctx, order)
}

// UpdateStatus moves an order to status through the transition table.
// Entering cancelled restores the reserved stock.
func (s *OrderService) UpdateStatus(ctx context.Context, actor models.Actor, orderID int64, status models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, actor, orderID, status)
}

// CancelOrder cancels an order and restores its stock. Cancelling an
// already cancelled order succeeds without touching stock again.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	return s.transition(ctx, actor, orderID, models.StatusCancelled)
}

func (s *OrderService) transition(ctx context.Context, actor models.Actor, orderID int64, next models.OrderStatus) (*models.Order, error) {
	var (
		from    models.OrderStatus
		changed bool
		levels  []stockLevel
	)

	err := s.orders.RunInTx(ctx, func(tx store.OrderTx) error {
		// The row lock serializes concurrent transitions of the same order
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return errOrderNotFound
			}
			return err
		}
		if !canAccess(actor, o) {
			return errOrderNotFound
		}

		from = o.Status
		if err := models.CheckTransition(o.Status, next); err != nil {
			return err
		}
		if o.Status == next {
			return nil
		}

		levels = levels[:0]
		if next == models.StatusCancelled {
			levels, err = restoreStock(ctx, tx, o)
			if err != nil {
				return err
			}
		}

		if err := tx.SetOrderStatus(ctx, o.ID, next); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ids := make([]int64, len(levels))
		for i, l := range levels {
			ids[i] = l.productID
		}
		s.invalidateProducts(ctx, ids)
		s.recordStock(ctx, levels)
		s.recordTransition(ctx, from, next)

		log.Info().
			Int64("order_id", orderID).
			Int64("actor_id", actor.UserID).
			Str("from", string(from)).
			Str("to", string(next)).
			Msg("order status changed")
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// restoreStock gives back every line's quantity. Lines whose product has
// been deleted are skipped.
func restoreStock(ctx context.Context, tx store.OrderTx, o *models.Order) ([]stockLevel, error) {
	qty := make(map[int64]int)
	var ids []int64
	for _, item := range o.Items {
		if _, seen := qty[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		qty[item.ProductID] += item.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	var levels []stockLevel
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			log.Warn().Int64("order_id", o.ID).Int64("product_id", id).Int("quantity", qty[id]).
				Msg("product no longer exists, stock not restored")
			continue
		}
		stock, err := tx.AdjustStock(ctx, id, qty[id])
		if err != nil {
			return nil, err
		}
		levels = append(levels, stockLevel{productID: id, category: p.Category, stock: stock})
	}
	return levels, nil
}

// ListOrders returns the actor's own orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, actor.UserID)
}

// GetOrder returns an order the actor owns, or any order for an admin
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errOrderNotFound
		}
		return nil, err
	}
	if !canAccess(actor, o) {
		return nil, errOrderNotFound
	}
	return o, nil
}

// canAccess hides other users' orders behind not found
func canAccess(actor models.Actor, o *models.Order) bool {
	return actor.IsAdmin || o.UserID == actor.UserID
}

func (s *OrderService) reload(ctx context.Context, order *models.Order) (*models.Order, error) {
	stored, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		// The order is committed; fall back to what was written
		log.Warn().Err(err).Int64("order_id", order.ID).Msg("failed to reload placed order")
		return order, nil
	}
	return stored, nil
}

func (s *OrderService) invalidateProducts(ctx context.Context, ids []int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		log.Warn().Err(err).Ints64("product_ids", ids).Msg("product cache invalidation failed")
	}
}

func (s *OrderService) recordStock(ctx context.Context, levels []stockLevel) {
	for _, l := range levels {
		s.metrics.RecordInventory(ctx, l.productID, string(l.category), l.stock)
	}
}

func (s *OrderService) recordOrderCreated(ctx context.Context, order *models.Order, categories map[int64]models.Category) {
	revenue := make(map[models.Category]decimal.Decimal)
	for _, item := range order.Items {
		c := categories[item.ProductID]
		revenue[c] = revenue[c].Add(item.LineTotal())
	}

	names := make([]string, 0, len(revenue))
	for c, amount := range revenue {
		names = append(names, string(c))
		s.metrics.RevenueTotal.Add(ctx, amount.InexactFloat64(), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
			attribute.String("product_category", string(c)),
		})...))
	}
	sort.Strings(names)

	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", string(order.Status)),
		attribute.String("product_categories", strings.Join(names, ",")),
	})...))
}

func (s *OrderService) recordTransition(ctx context.Context, from, to models.OrderStatus) {
	attrs := metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("from_status", string(from)),
		attribute.String("to_status", string(to)),
	})...)
	s.metrics.OrderStatusChanges.Add(ctx, 1, attrs)
	if to == models.StatusCancelled {
		s.metrics.OrdersCancelled.Add(ctx, 1, attrs)
	}
}
