package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultTimeout              = 10 * time.Second
	errorBodyReadLimit    int64 = 1024
	responseBodyReadLimit int64 = 4 << 20
)

var errBaseURLRequired = errors.New("commerce api base url is required")

// Client calls the storefront REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken overrides the configured bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// statusError keeps the upstream status so the breaker can ignore client errors.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// NewClient builds the API client from configuration.
func NewClient(cfg config.CommerceConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	client.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "commerce-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return client, nil
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

// BreakerState reports the circuit breaker state, e.g. "closed" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// GetCart fetches the authenticated user's cart.
func (c *Client) GetCart(ctx context.Context) ([]CartEntry, error) {
	body, err := c.get(ctx, "cart/", "cart")
	if err != nil {
		return nil, err
	}
	var wire cartWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart response")
	}
	entries := make([]CartEntry, 0, len(wire.Items))
	for _, item := range wire.Items {
		entries = append(entries, CartEntry{Product: item.Product.product(), Quantity: item.Quantity})
	}
	return entries, nil
}

// GetProduct looks up a product by slug.
func (c *Client) GetProduct(ctx context.Context, slug string) (Product, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}
	body, err := c.get(ctx, "products/"+url.PathEscape(trimmed)+"/", "product")
	if err != nil {
		return Product{}, err
	}
	var wire productWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product response")
	}
	return wire.product(), nil
}

func (c *Client) get(ctx context.Context, path, what string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, path)
	})
	if err == nil {
		return body, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce api unavailable")
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, what+" request rejected")
		case http.StatusNotFound:
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, what+" request failed")
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
