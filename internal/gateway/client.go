package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/example/storefront-sync/internal/payment"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrUnavailable  = errors.New("storefront server unavailable")
	ErrNotFound     = errors.New("not found")
)

const defaultTimeout = 10 * time.Second

// Line is the wire representation of one cart line as the storefront API
// returns it. Field names follow the server contract.
type Line struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	ProductImage string `json:"productImage"`
	UnitPrice    int64  `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
}

// Confirmation is the server's answer to a payment verification request.
type Confirmation struct {
	Confirmed      bool   `json:"confirmed"`
	ConfirmationID string `json:"confirmationId"`
}

// Client maps cart and payment operations onto the storefront REST API. It
// holds no cart state: every call carries the caller's credential and
// returns a typed result or a classified failure. Calls are safe to retry
// by the caller; the client itself never retries.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: breaker,
		logger:  logger,
	}
}

// envelope is the response wrapper the storefront API puts around payloads.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) FetchCart(ctx context.Context, credential string) ([]Line, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart", credential, nil)
	if err != nil {
		return nil, err
	}

	var lines []Line
	if err := json.Unmarshal(body, &lines); err != nil {
		return nil, fmt.Errorf("%w: malformed cart payload: %v", ErrUnavailable, err)
	}
	return lines, nil
}

func (c *Client) AddItem(ctx context.Context, credential, productID string, quantity int) error {
	req := map[string]any{"productId": productID, "quantity": quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart/items", credential, req)
	return err
}

func (c *Client) RemoveItem(ctx context.Context, credential, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items/"+productID, credential, nil)
	return err
}

// UpdateQuantity sets the absolute quantity for a product. The server treats
// repeated identical calls as the same state change, so callers may retry.
func (c *Client) UpdateQuantity(ctx context.Context, credential, productID string, quantity int) error {
	req := map[string]any{"productId": productID, "quantity": quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart/items/"+productID+"/quantity", credential, req)
	return err
}

func (c *Client) CreateOrder(ctx context.Context, credential string, amountMinor int64, currency string) (payment.Order, error) {
	req := map[string]any{"amountMinorUnits": amountMinor, "currency": currency}
	body, err := c.do(ctx, http.MethodPost, "/payment/orders", credential, req)
	if err != nil {
		return payment.Order{}, err
	}

	var resp struct {
		OrderID          string `json:"orderId"`
		AmountMinorUnits int64  `json:"amountMinorUnits"`
		Currency         string `json:"currency"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return payment.Order{}, fmt.Errorf("%w: malformed order payload: %v", ErrUnavailable, err)
	}
	return payment.Order{
		OrderID:     resp.OrderID,
		AmountMinor: resp.AmountMinorUnits,
		Currency:    resp.Currency,
	}, nil
}

// VerifyPayment submits the assertion payload verbatim for server-side
// verification. A transport or server fault here is NOT a verification
// verdict; it comes back as Unavailable so the caller can distinguish
// "server said no" from "could not ask".
func (c *Client) VerifyPayment(ctx context.Context, credential string, assertion payment.Assertion) (Confirmation, error) {
	body, err := c.do(ctx, http.MethodPost, "/payment/verify", credential, assertion)
	if err != nil {
		return Confirmation{}, err
	}

	var conf Confirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		return Confirmation{}, fmt.Errorf("%w: malformed verification payload: %v", ErrUnavailable, err)
	}
	return conf, nil
}

// do executes one request through the circuit breaker and classifies the
// outcome. The envelope is unwrapped here so callers see bare payloads.
func (c *Client) do(ctx context.Context, method, path, credential string, payload any) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("storefront circuit open", zap.String("path", path))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuthRequired
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("storefront request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		// Some deployments return bare payloads without the envelope.
		return raw, nil
	}
	return env.Data, nil
}
