package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
	"github.com/denim-store/storefront/internal/store"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newTestMetrics(t *testing.T) *metrics.AppMetrics {
	t.Helper()
	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "test")
	require.NoError(t, err)
	return m
}

// memStore is an in-memory ProductStore, UserStore and OrderStore.
// Transactions are serialized and roll back to a snapshot on error.
type memStore struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	users    map[int64]*models.User
	orders   map[int64]*models.Order
	nextID   int64
	clock    time.Time

	// failAdjust, when set, is returned by AdjustStock for that product
	failAdjust map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		products:   make(map[int64]*models.Product),
		users:      make(map[int64]*models.User),
		orders:     make(map[int64]*models.Order),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failAdjust: make(map[int64]error),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func copyProduct(p *models.Product) *models.Product {
	c := *p
	c.Sizes = append([]string(nil), p.Sizes...)
	return &c
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = make([]models.OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

// stock returns a product's current stock for assertions
func (s *memStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// ProductStore

func (s *memStore) List(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Product{}
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Fit != "" && !strings.EqualFold(string(p.Fit), filter.Fit) &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Fit)) {
			continue
		}
		out = append(out, *copyProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return copyProduct(p), nil
}

func (s *memStore) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = copyProduct(p)
	return nil
}

func (s *memStore) Update(_ context.Context, id int64, apply func(p *models.Product) error) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	p := copyProduct(current)
	if err := apply(p); err != nil {
		return nil, err
	}
	p.ID = id
	p.UpdatedAt = s.tick()
	s.products[id] = copyProduct(p)
	return p, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *memStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products), nil
}

// OrderStore

func (s *memStore) RunInTx(_ context.Context, fn func(tx store.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[int64]*models.Product, len(s.products))
	for id, p := range s.products {
		products[id] = copyProduct(p)
	}
	orders := make(map[int64]*models.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = copyOrder(o)
	}
	nextID := s.nextID

	if err := fn(&memTx{s: s}); err != nil {
		s.products, s.orders, s.nextID = products, orders, nextID
		return err
	}
	return nil
}

// withSummaries attaches product summaries from the live catalog
func (s *memStore) withSummaries(o *models.Order) *models.Order {
	c := copyOrder(o)
	for i := range c.Items {
		c.Items[i].Product = nil
		if p, ok := s.products[c.Items[i].ProductID]; ok {
			c.Items[i].Product = &models.ProductSummary{ID: p.ID, Name: p.Name, Image: p.Image}
		}
	}
	return c
}

func (s *memStore) getOrder(id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return s.withSummaries(o), nil
}

func (s *memStore) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *s.withSummaries(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// orderStore adapts memStore to OrderStore, whose Get returns orders
type orderStore struct{ *memStore }

func (o orderStore) Get(_ context.Context, id int64) (*models.Order, error) {
	return o.memStore.getOrder(id)
}

// userStore adapts memStore to UserStore
type userStore struct{ *memStore }

func (u userStore) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, existing := range u.users {
		if existing.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Email, models.ErrConflict)
		}
	}
	user.ID = u.id()
	user.CreatedAt = u.tick()
	c := *user
	u.users[user.ID] = &c
	return nil
}

func (u userStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	c := *user
	return &c, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == strings.ToLower(strings.TrimSpace(email)) {
			c := *user
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

// memTx runs with memStore.mu held
type memTx struct {
	s *memStore
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = copyProduct(p)
		}
	}
	return out, nil
}

func (t *memTx) AdjustStock(_ context.Context, productID int64, delta int) (int, error) {
	if err := t.s.failAdjust[productID]; err != nil {
		return 0, err
	}
	p, ok := t.s.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}
	if p.Stock+delta < 0 {
		return p.Stock, fmt.Errorf("product %d: %w", productID, models.ErrInsufficientStock)
	}
	p.Stock += delta
	return p.Stock, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *models.Order) error {
	o.ID = t.s.id()
	o.CreatedAt = t.s.tick()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = t.s.id()
	}
	t.s.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*models.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (t *memTx) SetOrderStatus(_ context.Context, id int64, status models.OrderStatus) error {
	o, ok := t.s.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = t.s.tick()
	return nil
}
