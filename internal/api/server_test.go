package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/api"
	"github.com/safar/quickcart/internal/auth"
	"github.com/safar/quickcart/internal/gateway/gatewaytest"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	mem    *gatewaytest.Memory
	tokens *auth.Tokens
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret-0123456789", "quickcart-test", time.Hour)
	require.NoError(t, err)

	mem := gatewaytest.NewMemory()
	server := api.NewServer(api.Deps{Catalog: mem, Carts: mem, Auth: mem, Tokens: tokens}, slog.New(slog.DiscardHandler))
	return &testServer{mem: mem, tokens: tokens, router: server.Router()}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// shopper signs up through the gateway and returns a bearer token for
// the new identity.
func (s *testServer) shopper(t *testing.T) string {
	t.Helper()
	id, _, err := s.mem.SignUp(context.Background(), "shopper@example.com", "secret1")
	require.NoError(t, err)
	token, err := s.tokens.Issue(id)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestWelcome(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to QuickCart API!"}`, rec.Body.String())
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)
	for i := 1; i <= 15; i++ {
		s.mem.AddProduct(models.Product{Name: "Item " + string(rune('A'+i-1)), Price: decimal.NewFromInt(int64(i))})
	}

	rec := s.do(t, http.MethodGet, "/api/products?page=2&limit=10&sortBy=price-low", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Products []models.Product `json:"products"`
		Page     int              `json:"page"`
		Total    int64            `json:"total"`
		Pages    int              `json:"pages"`
		HasMore  bool             `json:"has_more"`
	}](t, rec)
	assert.Len(t, body.Products, 5)
	assert.Equal(t, 2, body.Page)
	assert.EqualValues(t, 15, body.Total)
	assert.Equal(t, 2, body.Pages)
	assert.False(t, body.HasMore)
	assert.True(t, body.Products[0].Price.Equal(decimal.NewFromInt(11)))

	rec = s.do(t, http.MethodGet, "/api/products?maxPrice=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)
}

func TestListProductsPastLastPage(t *testing.T) {
	s := newTestServer(t)
	s.mem.AddProduct(models.Product{Name: "Only", Price: decimal.NewFromInt(1)})

	for _, page := range []string{"3", "768614336404564651", "9223372036854775807"} {
		rec := s.do(t, http.MethodGet, "/api/products?limit=100&page="+page, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, "page=%s", page)

		body := decode[struct {
			Products []models.Product `json:"products"`
			Total    int64            `json:"total"`
			HasMore  bool             `json:"has_more"`
		}](t, rec)
		assert.Empty(t, body.Products, "page=%s", page)
		assert.EqualValues(t, 1, body.Total)
		assert.False(t, body.HasMore)
	}
}

func TestAllProducts(t *testing.T) {
	s := newTestServer(t)
	s.mem.AddProduct(models.Product{Name: "Star", Price: decimal.NewFromInt(5), Featured: true})
	s.mem.AddProduct(models.Product{Name: "Plain", Price: decimal.NewFromInt(5)})

	rec := s.do(t, http.MethodGet, "/api/all-products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]json.RawMessage](t, rec)
	for _, key := range []string{"featured_products", "all_products", "shop_page", "shop_total", "shop_pages", "shop_has_more"} {
		assert.Contains(t, body, key)
	}

	var featured []models.Product
	require.NoError(t, json.Unmarshal(body["featured_products"], &featured))
	require.Len(t, featured, 1)
	assert.Equal(t, "Star", featured[0].Name)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Desk Lamp", "price": "24.99", "stock": 3, "image_url": "lamp.png"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	assert.Equal(t, "desk-lamp", created.Slug)
	assert.Equal(t, []string{"lamp.png"}, created.Images)

	rec = s.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Free", "price": "0"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"price"`)

	rec = s.do(t, http.MethodGet, "/api/products/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid product ID"}`, rec.Body.String())

	path := "/api/products/" + jsonNumber(created.ID) + "/feature"
	rec = s.do(t, http.MethodPut, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Product 'Desk Lamp' is now featured."}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/featured-products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 1)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Home Office"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "home-office", decode[models.Category](t, rec).Slug)

	rec = s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Home Office"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Category](t, rec), 1)
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/signup", map[string]any{"email": "a@example.com", "password": "secret1", "confirm_password": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"confirm_password"`)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", map[string]any{"email": "a@example.com", "password": "secret1", "confirm_password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "a@example.com", decode[struct {
		User models.Identity `json:"user"`
	}](t, rec).User.Email)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", map[string]any{"email": "a@example.com", "password": "secret1", "confirm_password": "secret1"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signin", map[string]any{"email": "a@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signin", map[string]any{"email": "a@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[struct {
		Token string `json:"token"`
	}](t, rec).Token)
}

func TestCartRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authorization header is missing"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired token"}`, rec.Body.String())
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.shopper(t)
	mug := s.mem.AddProduct(models.Product{Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: 5})

	rec := s.do(t, http.MethodPost, "/api/cart", map[string]any{"product_id": mug.ID}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/cart", map[string]any{"product_id": mug.ID, "quantity": 2}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	type cartBody struct {
		Items []models.CartLine `json:"items"`
		Count int               `json:"count"`
		Total decimal.Decimal   `json:"total"`
	}
	body := decode[cartBody](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, 3, body.Count)
	assert.True(t, body.Total.Equal(decimal.RequireFromString("37.50")))

	rec = s.do(t, http.MethodPost, "/api/cart", map[string]any{"product_id": 4242}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart", map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cart/"+jsonNumber(mug.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Item removed from cart"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartBody](t, rec).Items)
}

func TestBackendFailureIsHidden(t *testing.T) {
	s := newTestServer(t)
	s.mem.FailOn("Categories", assert.AnError)

	rec := s.do(t, http.MethodGet, "/api/categories", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	tokens, err := auth.NewTokens("test-secret-0123456789", "quickcart-test", time.Hour)
	require.NoError(t, err)
	mem := gatewaytest.NewMemory()
	router := api.NewServer(api.Deps{
		Catalog: mem, Carts: mem, Auth: mem, Tokens: tokens,
		AllowOrigins: []string{"https://shop.example.com"},
	}, slog.New(slog.DiscardHandler)).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpdateProduct(t *testing.T) {
	s := newTestServer(t)
	s.mem.AddProduct(models.Product{Name: "Taken", Price: decimal.NewFromInt(1)})
	p := s.mem.AddProduct(models.Product{Name: "Desk Lamp", Price: decimal.NewFromInt(30), Stock: 4})
	path := fmt.Sprintf("/api/products/%d", p.ID)

	rec := s.do(t, http.MethodPut, path, map[string]any{"price": "24.99", "image_url": "lamp.png"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Product](t, rec)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("24.99")))
	assert.Equal(t, []string{"lamp.png"}, updated.Images)
	assert.Equal(t, "Desk Lamp", updated.Name, "fields not sent are kept")
	assert.Equal(t, 4, updated.Stock)

	rec = s.do(t, http.MethodPut, path, map[string]any{"price": "0"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, path, map[string]any{"slug": "taken"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/products/9999", map[string]any{"name": "Ghost"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/products/abc", map[string]any{"name": "Ghost"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProduct(t *testing.T) {
	s := newTestServer(t)
	p := s.mem.AddProduct(models.Product{Name: "Old Stock", Price: decimal.NewFromInt(3)})
	path := fmt.Sprintf("/api/products/%d", p.ID)

	rec := s.do(t, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Product deleted")

	rec = s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrderedProductConflicts(t *testing.T) {
	s := newTestServer(t)
	p := s.mem.AddProduct(models.Product{Name: "Bestseller", Price: decimal.NewFromInt(9)})
	ctx := context.Background()

	orderID, err := s.mem.InsertOrder(ctx, uuid.New(), decimal.NewFromInt(9), models.ShippingAddress{})
	require.NoError(t, err)
	require.NoError(t, s.mem.InsertOrderLines(ctx, []models.OrderLine{
		{OrderID: orderID, ProductID: p.ID, Quantity: 1, Price: p.Price},
	}))

	rec := s.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", p.ID), nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
