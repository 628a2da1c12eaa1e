// Package apiclient reads the catalog from a QuickCart REST service
// instead of the database. It backs catalog.Query in the service-backed
// variant, where paging is driven by the service's has_more flag.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/telemetry"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ catalog.Source = (*Client)(nil)

// New returns a client for the service rooted at baseURL, e.g.
// "http://localhost:5001/api".
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.Transport(nil),
		},
		logger: logger.With("component", "apiclient"),
	}
}

// productPage is the object form of GET /products.
type productPage struct {
	Products []models.Product `json:"products"`
	Total    *int64           `json:"total"`
	HasMore  *bool            `json:"has_more"`
}

func (c *Client) FetchProducts(ctx context.Context, filter models.ProductFilter, page, limit int) (catalog.Page, error) {
	body, err := c.get(ctx, "/products", catalog.Encode(filter, page, limit))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("fetch products: %w", err)
	}

	result, err := decodeProductPage(body)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("decode products: %w", err)
	}
	return result, nil
}

// decodeProductPage accepts either a bare product array or an object
// with products and has_more.
func decodeProductPage(body []byte) (catalog.Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var products []models.Product
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return catalog.Page{}, err
		}
		return catalog.Page{Products: nonNil(products)}, nil
	}

	var page productPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return catalog.Page{}, err
	}

	result := catalog.Page{Products: nonNil(page.Products), More: page.HasMore}
	if page.Total != nil {
		result.Total = *page.Total
		result.Counted = true
	}
	return result, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	body, err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	var product models.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &product, nil
}

func (c *Client) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	body, err := c.get(ctx, "/featured-products", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch featured products: %w", err)
	}

	page, err := decodeProductPage(body)
	if err != nil {
		return nil, fmt.Errorf("decode featured products: %w", err)
	}
	return page.Products, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	body, err := c.get(ctx, "/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	categories := []models.Category{}
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "path", path, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError maps a non-200 response onto the storefront error kinds,
// keeping the service's {"error": ...} message when present.
func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, apperr.ErrNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, apperr.ErrAuthRequired)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, apperr.ErrConflict)
	case http.StatusBadRequest:
		return &apperr.ValidationError{Message: msg}
	}
	return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, status, msg)
}

func nonNil(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}
