// Package razorpay is a minimal client for the payment gateway order API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const maxErrorBody = 4 << 10

// Order status values reported by the gateway.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Client calls the gateway REST API with basic auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	logg       *logger.Logger
}

// CreateOrderParams describes a new gateway order.
type CreateOrderParams struct {
	AmountMinorUnits int64
	Currency         string
	Receipt          string
	Notes            map[string]string
}

// Order mirrors the gateway order entity.
type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// APIError is a well-formed rejection returned by the gateway.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
	Field       string `json:"field"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// TransportError wraps failures where the gateway never produced a usable answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("razorpay %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is safe to retry: network failures,
// timeouts and gateway 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return !errors.Is(err, context.Canceled)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("gateway key id and secret are required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		logg:       logg,
	}, nil
}

// KeyID returns the public key handed to checkout clients.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder mints a gateway order for the supplied amount.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	if params.AmountMinorUnits <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	body, err := json.Marshal(createOrderRequest{
		Amount:   params.AmountMinorUnits,
		Currency: strings.ToUpper(params.Currency),
		Receipt:  params.Receipt,
		Notes:    params.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &TransportError{Op: "create order", Err: errors.New("response missing order id")}
	}
	return &order, nil
}

// FetchOrder loads the current state of a gateway order.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	op := strings.ToLower(method) + " " + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeAPIError(resp)
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"gateway_op":     op,
				"gateway_status": apiErr.StatusCode,
				"gateway_code":   apiErr.Code,
			})
			c.logg.Warn(logCtx, "razorpay.request_rejected")
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		*apiErr = envelope.Error
		apiErr.StatusCode = resp.StatusCode
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	return apiErr
}
