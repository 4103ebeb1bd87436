package gateway

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

	"github.com/shopspring/decimal"
)

var (
	// ErrAuth means the processor rejected our credentials or token.
	ErrAuth = errors.New("gateway: authentication rejected")
	// ErrUnavailable covers network failures and timeouts; the charge
	// outcome is unknown and the job must be retried by the broker.
	ErrUnavailable = errors.New("gateway: unavailable")
)

type Card struct {
	Number     string `json:"number"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holder_name"`
}

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ChargePayload is the processor wire format. The idempotency key is
// generated once at enqueue time so a redelivered job repeats the exact
// original charge.
type ChargePayload struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Card           Card            `json:"card"`
	Customer       Customer        `json:"customer"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Response is any HTTP response the processor actually returned, declines
// included. Decline vs approval is the classifier's business, not ours.
type Response struct {
	StatusCode int
	Body       []byte
}

type Config struct {
	TokenURL     string
	ChargeURL    string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the payment processor. One instance per worker process;
// the bearer token is cached in memory and reacquired on expiry.
type Client struct {
	cfg  Config
	http *http.Client

	mu    sync.Mutex
	token string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// AcquireToken authenticates against the token endpoint and caches the
// bearer token for subsequent charges.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	form := url.Values{
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
		"grant_type": {"password"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: token missing in response", ErrAuth)
	}

	c.mu.Lock()
	c.token = tokenResp.AccessToken
	c.mu.Unlock()
	return tokenResp.AccessToken, nil
}

// Charge submits the payment. A 401 invalidates the cached token; the token
// is reacquired once and the charge retried exactly once before ErrAuth
// surfaces. Every other received response is returned as-is.
func (c *Client) Charge(ctx context.Context, payload ChargePayload) (*Response, error) {
	token := c.cachedToken()
	if token == "" {
		var err error
		token, err = c.AcquireToken(ctx)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.doCharge(ctx, token, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	c.invalidate(token)
	token, err = c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = c.doCharge(ctx, token, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: token rejected after refresh", ErrAuth)
	}
	return resp, nil
}

func (c *Client) doCharge(ctx context.Context, token string, payload ChargePayload) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChargeURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) cachedToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// invalidate discards the cached token, but only if it is still the one
// that failed; a concurrent refresh must not be thrown away.
func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}
