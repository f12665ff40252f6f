package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/denim-store/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = models.ShippingAddress{
	Street:  "12 Linking Road",
	City:    "Mumbai",
	State:   "MH",
	ZipCode: "400050",
	Country: "India",
}

type orderFixture struct {
	store   *memStore
	orders  *OrderService
	catalog *CatalogService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	s := newMemStore()
	m := newTestMetrics(t)
	return &orderFixture{
		store:   s,
		orders:  NewOrderService(orderStore{s}, nil, m),
		catalog: NewCatalogService(s, nil, m),
	}
}

func (f *orderFixture) addProduct(t *testing.T, name, price string, stock int, sizes ...string) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: models.CategoryMen,
		Sizes:    sizes,
		Image:    "https://example.com/jeans.jpg",
		Stock:    stock,
	}
	created, err := f.catalog.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return created
}

func line(p *models.Product, size string, qty int) models.OrderLine {
	return models.OrderLine{ProductID: p.ID, Size: size, Quantity: qty}
}

func orderRequest(lines ...models.OrderLine) models.CreateOrderRequest {
	return models.CreateOrderRequest{Items: lines, ShippingAddress: testAddress}
}

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	straight := f.addProduct(t, "Men's Classic Straight Fit Jeans", "2999", 10, "30", "32")
	kids := f.addProduct(t, "Kids' Slim Fit Stretch", "1399.50", 5, "M")

	order, err := f.orders.CreateOrder(ctx, 7, orderRequest(line(straight, "30", 2), line(kids, "M", 3)))
	require.NoError(t, err)

	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, testAddress, order.ShippingAddress)
	require.Len(t, order.Items, 2)

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		require.NotNil(t, item.Product)
	}
	assert.True(t, order.TotalAmount.Equal(sum))
	assert.Equal(t, "10196.50", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "Kids' Slim Fit Stretch", order.Items[1].Product.Name)

	assert.Equal(t, 8, f.store.stock(straight.ID))
	assert.Equal(t, 2, f.store.stock(kids.ID))
}

func TestCreateOrderCapturesPrice(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")

	order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)

	newPrice := decimal.NewFromInt(999)
	_, err = f.catalog.UpdateProduct(ctx, p.ID, models.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, models.Actor{UserID: 1}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "3499", got.Items[0].Price.String())
	assert.Equal(t, "3499", got.TotalAmount.String())
}

func TestCreateOrderRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("size not offered", func(t *testing.T) {
		f := newOrderFixture(t)
		p := f.addProduct(t, "Men's Bootcut Vintage Wash", "2799", 5, "30", "32")

		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "XL", 1)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidRequest))
		assert.Equal(t, "Size XL not available for Men's Bootcut Vintage Wash", err.Error())
		assert.Equal(t, 5, f.store.stock(p.ID))
		assert.Zero(t, f.store.orderCount())
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newOrderFixture(t)

		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(models.OrderLine{ProductID: 999, Size: "M", Quantity: 1}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.Equal(t, "Product not found: 999", err.Error())
	})

	t.Run("insufficient stock leaves every line untouched", func(t *testing.T) {
		f := newOrderFixture(t)
		plenty := f.addProduct(t, "Men's Regular Fit Blue Jeans", "2499", 20, "32")
		scarce := f.addProduct(t, "Men's Relaxed Fit Comfort Jeans", "2699", 2, "34")

		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(plenty, "32", 4), line(scarce, "34", 3)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInsufficientStock))
		assert.Equal(t, "Insufficient stock for Men's Relaxed Fit Comfort Jeans. Available: 2, Requested: 3", err.Error())

		assert.Equal(t, 20, f.store.stock(plenty.ID))
		assert.Equal(t, 2, f.store.stock(scarce.ID))
		assert.Zero(t, f.store.orderCount())
	})

	t.Run("quantities for one product add up across lines", func(t *testing.T) {
		f := newOrderFixture(t)
		p := f.addProduct(t, "Men's Skinny Fit Black Jeans", "2899", 5, "30", "32")

		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "30", 3), line(p, "32", 3)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInsufficientStock))
		assert.Contains(t, err.Error(), "Requested: 6")
		assert.Equal(t, 5, f.store.stock(p.ID))
	})

	t.Run("empty order", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.orders.CreateOrder(ctx, 1, orderRequest())
		assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	})

	t.Run("zero quantity", func(t *testing.T) {
		f := newOrderFixture(t)
		p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 5, "32")
		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 0)))
		assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	})

	t.Run("store failure after insert rolls back", func(t *testing.T) {
		f := newOrderFixture(t)
		a := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 5, "32")
		b := f.addProduct(t, "Men's Regular Fit Blue Jeans", "2499", 5, "32")
		f.store.failAdjust[b.ID] = errors.New("connection reset")

		_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(a, "32", 1), line(b, "32", 1)))
		require.Error(t, err)
		assert.Equal(t, 5, f.store.stock(a.ID))
		assert.Zero(t, f.store.orderCount())
	})
}

func TestConcurrentOrdersCannotOversell(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Women's Mom Fit Vintage", "3199", 5, "M", "L")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := f.orders.CreateOrder(ctx, user, orderRequest(line(p, "M", 3)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, models.ErrInsufficientStock) {
				fail++
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, fail)
	assert.Equal(t, 2, f.store.stock(p.ID))
}

func TestManyConcurrentOrdersDrainStockExactly(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Women's Straight Leg Classic", "2999", 5, "S")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "S", 1))); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, f.store.stock(p.ID))
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	owner := models.Actor{UserID: 1}

	t.Run("restores stock exactly once", func(t *testing.T) {
		f := newOrderFixture(t)
		a := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "30", "32")
		b := f.addProduct(t, "Men's Regular Fit Blue Jeans", "2499", 10, "32")
		order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(a, "30", 2), line(a, "32", 1), line(b, "32", 4)))
		require.NoError(t, err)
		require.Equal(t, 7, f.store.stock(a.ID))
		require.Equal(t, 6, f.store.stock(b.ID))

		cancelled, err := f.orders.CancelOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		assert.Equal(t, 10, f.store.stock(a.ID))
		assert.Equal(t, 10, f.store.stock(b.ID))

		again, err := f.orders.CancelOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, again.Status)
		assert.Equal(t, 10, f.store.stock(a.ID))
		assert.Equal(t, 10, f.store.stock(b.ID))

		_, err = f.orders.UpdateStatus(ctx, owner, order.ID, models.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, 10, f.store.stock(a.ID))
	})

	t.Run("shipped order cannot be cancelled", func(t *testing.T) {
		f := newOrderFixture(t)
		p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")
		order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 2)))
		require.NoError(t, err)
		for _, s := range []models.OrderStatus{models.StatusConfirmed, models.StatusShipped} {
			_, err := f.orders.UpdateStatus(ctx, owner, order.ID, s)
			require.NoError(t, err)
		}

		_, err = f.orders.CancelOrder(ctx, owner, order.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidState))
		assert.Equal(t, "Cannot cancel order with status: shipped", err.Error())
		assert.Equal(t, 8, f.store.stock(p.ID))
	})

	t.Run("confirmed order can be cancelled and restores stock", func(t *testing.T) {
		f := newOrderFixture(t)
		p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")
		order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 2)))
		require.NoError(t, err)
		admin := models.Actor{UserID: 99, IsAdmin: true}
		confirmed, err := f.orders.UpdateStatus(ctx, admin, order.ID, models.StatusConfirmed)
		require.NoError(t, err)
		require.Equal(t, models.StatusConfirmed, confirmed.Status)
		require.Equal(t, 8, f.store.stock(p.ID))

		cancelled, err := f.orders.CancelOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		assert.Equal(t, 10, f.store.stock(p.ID))
	})

	t.Run("deleted product is skipped", func(t *testing.T) {
		f := newOrderFixture(t)
		gone := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")
		kept := f.addProduct(t, "Men's Regular Fit Blue Jeans", "2499", 10, "32")
		order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(gone, "32", 1), line(kept, "32", 1)))
		require.NoError(t, err)
		require.NoError(t, f.catalog.DeleteProduct(ctx, gone.ID))

		cancelled, err := f.orders.CancelOrder(ctx, owner, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, f.store.stock(kept.ID))
		assert.Nil(t, cancelled.Items[0].Product)
		assert.NotNil(t, cancelled.Items[1].Product)
	})
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	owner := models.Actor{UserID: 1}
	p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")
	order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, owner, order.ID, models.StatusDelivered)
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	for _, s := range []models.OrderStatus{models.StatusConfirmed, models.StatusShipped, models.StatusDelivered} {
		got, err := f.orders.UpdateStatus(ctx, owner, order.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, got.Status)
	}

	_, err = f.orders.UpdateStatus(ctx, owner, order.ID, models.StatusPending)
	require.Error(t, err)
	assert.Equal(t, "Cannot change order status from delivered to pending", err.Error())

	_, err = f.orders.UpdateStatus(ctx, owner, order.ID, models.OrderStatus("returned"))
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))

	assert.Equal(t, 9, f.store.stock(p.ID))
}

func TestOrderOwnership(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")
	order, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)

	stranger := models.Actor{UserID: 2}
	_, err = f.orders.GetOrder(ctx, stranger, order.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, "Order not found", err.Error())

	_, err = f.orders.CancelOrder(ctx, stranger, order.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, 9, f.store.stock(p.ID))

	admin := models.Actor{UserID: 99, IsAdmin: true}
	got, err := f.orders.UpdateStatus(ctx, admin, order.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	_, err = f.orders.GetOrder(ctx, models.Actor{UserID: 1}, 12345)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 10, "32")

	first, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(ctx, 2, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 1)))
	require.NoError(t, err)

	orders, err := f.orders.ListOrders(ctx, models.Actor{UserID: 1})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	assert.Equal(t, "Men's Slim Fit Dark Denim", orders[0].Items[0].Product.Name)
}
