// Package paypal is a small client for the PayPal Orders v2 REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const (
	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"

	defaultCurrency = "USD"
)

// Capture is the part of a capture response the store relies on.
type Capture struct {
	ID         string
	Status     string
	PayerEmail string
	Amount     decimal.Decimal
}

type Config struct {
	BaseURL   string
	ClientID  string
	AppSecret string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker[[]byte]

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
		// client errors (4xx) mean PayPal is up
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < 500)
		},
	})

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   cb,
	}
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: status %d: %s", e.StatusCode, e.Body)
}

// AccessToken returns a client-credentials token, reusing it until shortly
// before it expires.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.AppSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("paypal: empty access token")
	}

	c.token = resp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// CreateOrder opens a remote order for amount and returns its id.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": defaultCurrency,
				"value":         amount.StringFixed(2),
			},
		}},
	}

	body, err := c.postJSON(ctx, "/v2/checkout/orders", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode create order response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("paypal: create order returned no id")
	}
	return resp.ID, nil
}

// CaptureOrder captures the payment of an approved remote order.
func (c *Client) CaptureOrder(ctx context.Context, remoteOrderID string) (*Capture, error) {
	body, err := c.postJSON(ctx, "/v2/checkout/orders/"+url.PathEscape(remoteOrderID)+"/capture", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}

	capture := &Capture{
		ID:         resp.ID,
		Status:     resp.Status,
		PayerEmail: resp.Payer.EmailAddress,
	}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		value := resp.PurchaseUnits[0].Payments.Captures[0].Amount.Value
		if amount, err := decimal.NewFromString(value); err == nil {
			capture.Amount = amount
		}
	}
	return capture, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// do sends req through the circuit breaker. Timeouts and an open breaker are
// reported as domain.ErrProviderUnavailable.
func (c *Client) do(req *http.Request) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
	if err == nil {
		return body, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	// transport failures, including deadline and client timeouts
	return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}
