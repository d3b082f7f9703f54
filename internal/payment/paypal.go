package payment

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
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/circuitbreaker"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const PayPalCompleted = "COMPLETED"

var (
	ErrCaptureRejected = errors.New("paypal capture rejected")
	ErrProvider        = errors.New("payment provider error")
)

type PayPalConfig struct {
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  time.Duration
}

type PayPalClient struct {
	cfg     PayPalConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*providerResponse]
	log     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type providerResponse struct {
	status int
	body   []byte
}

func NewPayPalClient(cfg PayPalConfig, log *zap.Logger) *PayPalClient {
	return &PayPalClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*providerResponse](circuitbreaker.DefaultConfig("paypal"), log),
		log:     log,
	}
}

// PayPalCapture is the normalized outcome of capturing an approved PayPal order.
type PayPalCapture struct {
	OrderID   string
	CaptureID string
	Status    string
	Email     string
	Amount    decimal.Decimal
}

func (c PayPalCapture) Result() *domain.PaymentResult {
	return &domain.PaymentResult{
		ID:           c.OrderID,
		Status:       c.Status,
		EmailAddress: c.Email,
		PricePaid:    c.Amount,
	}
}

// CreateOrder opens a PayPal order for amount and returns its id.
func (p *PayPalClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": currency,
				"value":         amount.StringFixed(2),
			},
		}},
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return "", fmt.Errorf("create paypal order: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create paypal order: %w: empty id", ErrProvider)
	}
	return out.ID, nil
}

// CaptureOrder captures an approved PayPal order.
func (p *PayPalClient) CaptureOrder(ctx context.Context, paypalOrderID string) (*PayPalCapture, error) {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(paypalOrderID) + "/capture"
	if err := p.call(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("capture paypal order: %w", err)
	}

	capture := &PayPalCapture{
		OrderID: out.ID,
		Status:  out.Status,
		Email:   out.Payer.EmailAddress,
	}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		c := out.PurchaseUnits[0].Payments.Captures[0]
		capture.CaptureID = c.ID
		if amt, err := decimal.NewFromString(c.Amount.Value); err == nil {
			capture.Amount = amt
		}
	}
	return capture, nil
}

func (p *PayPalClient) call(ctx context.Context, method, path string, in, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return err
	}
	if resp.status < 200 || resp.status >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrProvider, method, path, resp.status, truncate(resp.body))
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return nil
}

func (p *PayPalClient) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	resp, err := p.do(ctx, func() (*http.Request, error) {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/oauth2/token",
			strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(p.cfg.ClientID, p.cfg.Secret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("paypal token: %w: status %d", ErrProvider, resp.status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("paypal token: %w: bad token response", ErrProvider)
	}

	p.token = out.AccessToken
	// refresh a minute early
	p.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

// do sends one request through the breaker. Server errors and transport failures
// count against the breaker; client errors are returned to the caller as responses.
func (p *PayPalClient) do(ctx context.Context, build func() (*http.Request, error)) (*providerResponse, error) {
	resp, err := p.breaker.Execute(func() (*providerResponse, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		res, err := p.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		out := &providerResponse{status: res.StatusCode, body: body}
		if res.StatusCode >= 500 {
			return nil, fmt.Errorf("status %d", res.StatusCode)
		}
		return out, nil
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			p.log.Warn("paypal breaker open", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return resp, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
