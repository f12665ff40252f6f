package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/denim-store/storefront/internal/cart"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/middleware"
	"github.com/denim-store/storefront/internal/models"
	"github.com/gorilla/mux"
)

// Catalog is the product side of the API
type Catalog interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Orders is the order lifecycle side of the API
type Orders interface {
	CreateOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor models.Actor, orderID int64, status models.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error)
	GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
}

// Accounts is the signup, login and session side of the API
type Accounts interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context, userID int64) (*models.User, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds application dependencies
type App struct {
	catalog     Catalog
	orders      Orders
	accounts    Accounts
	db          Pinger
	metrics     *metrics.AppMetrics
	corsOrigins []string
}

// NewApp creates a new application instance
func NewApp(catalog Catalog, orders Orders, accounts Accounts, db Pinger, m *metrics.AppMetrics, corsOrigins []string) *App {
	return &App{
		catalog:     catalog,
		orders:      orders,
		accounts:    accounts,
		db:          db,
		metrics:     m,
		corsOrigins: corsOrigins,
	}
}

// Handler returns the complete HTTP handler, CORS included
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	a.SetupRoutes(r)
	return middleware.CORSMiddleware(a.corsOrigins)(r)
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, "Route not found")
	})

	api := r.PathPrefix("/api").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods(http.MethodGet)
	api.Handle("/products", a.adminOnly(a.CreateProductHandler)).Methods(http.MethodPost)
	api.Handle("/products/{id}", a.adminOnly(a.UpdateProductHandler)).Methods(http.MethodPut)
	api.Handle("/products/{id}", a.adminOnly(a.DeleteProductHandler)).Methods(http.MethodDelete)

	// Orders
	api.Handle("/orders", a.authenticated(a.CreateOrderHandler)).Methods(http.MethodPost)
	api.Handle("/orders", a.authenticated(a.ListOrdersHandler)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", a.authenticated(a.GetOrderHandler)).Methods(http.MethodGet)
	api.Handle("/orders/{id}/status", a.authenticated(a.UpdateOrderStatusHandler)).Methods(http.MethodPut)
	api.Handle("/orders/{id}", a.authenticated(a.CancelOrderHandler)).Methods(http.MethodDelete)

	// Auth
	api.HandleFunc("/auth/signup", a.SignupHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", a.LoginHandler).Methods(http.MethodPost)
	api.Handle("/auth/me", a.authenticated(a.MeHandler)).Methods(http.MethodGet)

	// Cart
	api.HandleFunc("/cart/validate", a.ValidateCartHandler).Methods(http.MethodPost)

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/", a.IndexHandler).Methods(http.MethodGet)
}

func (a *App) authenticated(h http.HandlerFunc) http.Handler {
	return middleware.AuthMiddleware(a.accounts)(h)
}

func (a *App) adminOnly(h http.HandlerFunc) http.Handler {
	return middleware.AuthMiddleware(a.accounts)(middleware.AdminMiddleware(h))
}

// IndexHandler handles GET /
func (a *App) IndexHandler(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "Denim Store API is running!")
}

// HealthHandler handles GET /health
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/products?category=&fit=
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProductFilter{
		Category: models.Category(q.Get("category")),
		Fit:      q.Get("fit"),
	}

	products, err := a.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid product ID")
	if !ok {
		return
	}

	product, err := a.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// CreateProductHandler handles POST /api/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !decode(w, r, &p) {
		return
	}

	created, err := a.catalog.CreateProduct(r.Context(), &p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": created,
	})
}

// UpdateProductHandler handles PUT /api/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid product ID")
	if !ok {
		return
	}
	var patch models.ProductPatch
	if !decode(w, r, &patch) {
		return
	}

	updated, err := a.catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": updated,
	})
}

// DeleteProductHandler handles DELETE /api/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid product ID")
	if !ok {
		return
	}

	if err := a.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Product deleted successfully")
}

// CreateOrderHandler handles POST /api/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req models.CreateOrderRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order, err := a.orders.CreateOrder(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

// ListOrdersHandler handles GET /api/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.ListOrders(r.Context(), actorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrderHandler handles GET /api/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid order ID")
	if !ok {
		return
	}

	order, err := a.orders.GetOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler handles PUT /api/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid order ID")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order, err := a.orders.UpdateStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

// CancelOrderHandler handles DELETE /api/orders/{id}
func (a *App) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid order ID")
	if !ok {
		return
	}

	order, err := a.orders.CancelOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully and stock restored",
		"order":   order,
	})
}

// SignupHandler handles POST /api/auth/signup
func (a *App) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeValid(w, r, &req) {
		return
	}

	resp, err := a.accounts.Signup(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// LoginHandler handles POST /api/auth/login
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	resp, err := a.accounts.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// MeHandler handles GET /api/auth/me
func (a *App) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	current, err := a.accounts.CurrentUser(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, current)
}

type validateCartRequest struct {
	Cart    cart.State        `json:"cart"`
	Actions []json.RawMessage `json:"actions"`
}

// ValidateCartHandler handles POST /api/cart/validate. Pending actions are
// applied to the cart before it is checked against the catalog.
func (a *App) ValidateCartHandler(w http.ResponseWriter, r *http.Request) {
	var req validateCartRequest
	if !decode(w, r, &req) {
		return
	}

	state := cart.NewState(req.Cart.Items)
	for _, raw := range req.Actions {
		action, err := cart.DecodeAction(raw)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		state = cart.Reduce(state, action)
	}

	reconciled, adjustments, err := cart.Reconcile(r.Context(), a.catalog, state)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"cart":        reconciled,
		"adjustments": adjustments,
	})
}

func actorFrom(r *http.Request) models.Actor {
	user, _ := middleware.UserFromContext(r.Context())
	return models.Actor{UserID: user.ID, IsAdmin: user.IsAdmin}
}

func pathID(w http.ResponseWriter, r *http.Request, invalid string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondMessage(w, http.StatusBadRequest, invalid)
		return 0, false
	}
	return id, true
}
