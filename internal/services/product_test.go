package services

import (
	"context"
	"errors"
	"testing"

	"github.com/denim-store/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id int64) (*models.Product, bool, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, ids ...int64) error {
	return m.Called(ctx, ids).Error(0)
}

func seedCatalog(t *testing.T, c *CatalogService) map[string]*models.Product {
	t.Helper()
	items := []struct {
		name     string
		category models.Category
	}{
		{"Men's Slim Fit Dark Denim", models.CategoryMen},
		{"Men's Classic Straight Fit Jeans", models.CategoryMen},
		{"Women's Slim Fit Low Rise", models.CategoryWomen},
		{"Women's High-Waist Skinny Jeans", models.CategoryWomen},
		{"Kids' Slim Fit Stretch", models.CategoryKids},
	}

	out := make(map[string]*models.Product)
	for _, it := range items {
		p, err := c.CreateProduct(context.Background(), &models.Product{
			Name:     it.name,
			Price:    decimal.NewFromInt(1999),
			Category: it.category,
			Sizes:    []string{"M"},
			Image:    "https://example.com/p.jpg",
			Stock:    10,
		})
		require.NoError(t, err)
		out[it.name] = p
	}
	return out
}

func TestListProducts(t *testing.T) {
	s := newMemStore()
	c := NewCatalogService(s, nil, newTestMetrics(t))
	seedCatalog(t, c)
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		all, err := c.ListProducts(ctx, models.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "Kids' Slim Fit Stretch", all[0].Name)
	})

	t.Run("category", func(t *testing.T) {
		men, err := c.ListProducts(ctx, models.ProductFilter{Category: models.CategoryMen})
		require.NoError(t, err)
		require.Len(t, men, 2)
		for _, p := range men {
			assert.Equal(t, models.CategoryMen, p.Category)
		}
	})

	t.Run("fit spans categories", func(t *testing.T) {
		slim, err := c.ListProducts(ctx, models.ProductFilter{Fit: "slim"})
		require.NoError(t, err)
		require.Len(t, slim, 3)
		for _, p := range slim {
			assert.Contains(t, p.Name, "Slim")
		}
	})

	t.Run("category and fit", func(t *testing.T) {
		got, err := c.ListProducts(ctx, models.ProductFilter{Category: models.CategoryWomen, Fit: "Slim"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Women's Slim Fit Low Rise", got[0].Name)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := c.ListProducts(ctx, models.ProductFilter{Category: "Pets"})
		assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	})
}

func TestCreateProductInfersFit(t *testing.T) {
	c := NewCatalogService(newMemStore(), nil, newTestMetrics(t))
	products := seedCatalog(t, c)

	assert.Equal(t, models.FitSkinny, products["Women's High-Waist Skinny Jeans"].Fit)
	assert.Equal(t, models.FitStraight, products["Men's Classic Straight Fit Jeans"].Fit)
}

func TestCreateProductValidation(t *testing.T) {
	c := NewCatalogService(newMemStore(), nil, newTestMetrics(t))

	_, err := c.CreateProduct(context.Background(), &models.Product{
		Name:     "Mystery Jeans",
		Price:    decimal.NewFromInt(-5),
		Category: models.CategoryMen,
		Image:    "x.jpg",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))
}

func TestGetProduct(t *testing.T) {
	c := NewCatalogService(newMemStore(), nil, newTestMetrics(t))
	products := seedCatalog(t, c)
	ctx := context.Background()

	want := products["Men's Slim Fit Dark Denim"]
	got, err := c.GetProduct(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)

	_, err = c.GetProduct(ctx, 4040)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, "Product not found", err.Error())
}

func TestGetProductUsesCache(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	cache := new(mockCache)
	c := NewCatalogService(s, cache, newTestMetrics(t))

	cached := &models.Product{ID: 1, Name: "Cached", Category: models.CategoryKids}
	cache.On("Get", ctx, int64(1)).Return(cached, true, nil).Once()

	got, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, cached, got)
	cache.AssertExpectations(t)
}

func TestGetProductFillsCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	cache := new(mockCache)
	c := NewCatalogService(s, cache, newTestMetrics(t))
	p := seedCatalog(t, c)["Kids' Slim Fit Stretch"]

	cache.On("Get", ctx, p.ID).Return(nil, false, nil).Once()
	cache.On("Set", ctx, mock.MatchedBy(func(got *models.Product) bool { return got.ID == p.ID })).Return(nil).Once()

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	cache.AssertExpectations(t)
}

func TestGetProductIgnoresCacheErrors(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	cache := new(mockCache)
	c := NewCatalogService(s, cache, newTestMetrics(t))
	p := seedCatalog(t, c)["Kids' Slim Fit Stretch"]

	cache.On("Get", ctx, p.ID).Return(nil, false, errors.New("redis down"))
	cache.On("Set", ctx, mock.Anything).Return(errors.New("redis down"))

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	cache := new(mockCache)
	c := NewCatalogService(s, cache, newTestMetrics(t))
	p := seedCatalog(t, c)["Men's Slim Fit Dark Denim"]

	cache.On("Invalidate", ctx, []int64{p.ID}).Return(nil).Once()

	stock := 3
	sizes := []string{"30", "32", "34"}
	updated, err := c.UpdateProduct(ctx, p.ID, models.ProductPatch{Stock: &stock, Sizes: sizes})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, sizes, updated.Sizes)
	assert.Equal(t, p.Name, updated.Name)
	cache.AssertExpectations(t)

	negative := -1
	_, err = c.UpdateProduct(ctx, p.ID, models.ProductPatch{Stock: &negative})
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))

	_, err = c.UpdateProduct(ctx, 999, models.ProductPatch{Stock: &stock})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

// orderDuringUpdate places an order just before the product row is read for
// an update, the way a checkout can land between an admin's read and write.
type orderDuringUpdate struct {
	*memStore
	order func()
}

func (o orderDuringUpdate) Update(ctx context.Context, id int64, apply func(p *models.Product) error) (*models.Product, error) {
	o.order()
	return o.memStore.Update(ctx, id, apply)
}

func TestUpdateProductKeepsConcurrentStockChange(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	p := f.addProduct(t, "Men's Slim Fit Dark Denim", "3499", 5, "32")

	c := NewCatalogService(orderDuringUpdate{
		memStore: f.store,
		order: func() {
			_, err := f.orders.CreateOrder(ctx, 1, orderRequest(line(p, "32", 3)))
			require.NoError(t, err)
		},
	}, nil, newTestMetrics(t))

	description := "Rinsed indigo"
	updated, err := c.UpdateProduct(ctx, p.ID, models.ProductPatch{Description: &description})
	require.NoError(t, err)
	assert.Equal(t, description, updated.Description)
	assert.Equal(t, 2, updated.Stock)
	assert.Equal(t, 2, f.store.stock(p.ID))
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	c := NewCatalogService(s, nil, newTestMetrics(t))
	p := seedCatalog(t, c)["Men's Slim Fit Dark Denim"]

	require.NoError(t, c.DeleteProduct(ctx, p.ID))

	err := c.DeleteProduct(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, "Product not found", err.Error())
}

func TestSeedProducts(t *testing.T) {
	ctx := context.Background()
	c := NewCatalogService(newMemStore(), nil, newTestMetrics(t))

	batch := func() []models.Product {
		return []models.Product{{
			Name:     "Men's Slim Fit Dark Denim",
			Price:    decimal.NewFromInt(3499),
			Category: models.CategoryMen,
			Sizes:    []string{"30"},
			Image:    "x.jpg",
			Stock:    30,
		}}
	}

	n, err := c.SeedProducts(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.SeedProducts(ctx, batch())
	require.NoError(t, err)
	assert.Zero(t, n)
}
