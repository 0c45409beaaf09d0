package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"riciti/pkg/helpers"
	"riciti/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"
)

// Config holds Daraja credentials and call policy
type Config struct {
	Environment string
	// Overrides the environment's host, used by tests
	BaseURL string

	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	ShortCode      string

	Timeout         time.Duration
	TokenMaxRetries int
	TokenRetryBase  time.Duration
}

// IsProduction reports whether the live Daraja host is targeted
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.IsProduction() {
		return ProductionURL
	}
	return SandboxURL
}

// Client talks to Daraja. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *resty.Client
	tokens *TokenCache
	now    func() time.Time
}

// Option customises a Client
type Option func(*Client)

// WithClock replaces time.Now, for deterministic timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client; zero policy fields get Daraja-friendly defaults
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TokenMaxRetries < 0 {
		cfg.TokenMaxRetries = 0
	}
	if cfg.TokenRetryBase <= 0 {
		cfg.TokenRetryBase = 500 * time.Millisecond
	}

	tokens := NewTokenCache(DefaultTokenMargin)
	// every attempt plus the backoff between them
	tokens.refreshTimeout = cfg.Timeout*time.Duration(cfg.TokenMaxRetries+1) +
		cfg.TokenRetryBase*time.Duration(1<<cfg.TokenMaxRetries)

	c := &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.baseURL()).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client's settings
func (c *Client) Config() Config {
	return c.cfg
}

/* 🔑 Access token */

// AccessToken returns a cached bearer token, refreshing when needed
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.tokens.GetOrRefresh(ctx, c.fetchToken)
}

// fetchToken retries network and server failures with exponential
// backoff. Rejected credentials fail immediately.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.TokenMaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.TokenRetryBase * time.Duration(1<<(attempt-1))
			logger.WarnString("M-Pesa", "token", fmt.Sprintf("retrying access token (attempt %d) in %v", attempt+1, delay))
			if err := sleep(ctx, delay); err != nil {
				return "", 0, err
			}
		}

		var body tokenResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
			SetQueryParam("grant_type", "client_credentials").
			Get("/oauth/v1/generate")
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
			return "", 0, fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode())
		case !resp.IsSuccess():
			lastErr = fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode(), helpers.Truncate(resp.String(), 200))
			continue
		case json.Unmarshal(resp.Body(), &body) != nil || body.AccessToken == "":
			lastErr = errors.New("token endpoint returned no access_token")
			continue
		}

		expiresIn := cast.ToInt(body.ExpiresIn)
		if expiresIn <= 0 {
			expiresIn = 3599
		}
		return body.AccessToken, time.Duration(expiresIn) * time.Second, nil
	}

	return "", 0, fmt.Errorf("%w: %v", ErrTokenUnavailable, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

/* 💸 STK push */

// Timestamp formats t as YYYYMMDDHHmmss in EAT
func Timestamp(t time.Time) string {
	return t.In(EAT).Format("20060102150405")
}

// Password is base64(shortcode + passkey + timestamp)
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// InitiateSTKPush sends a payment prompt to the customer's phone. The
// amount is rounded up to a whole shilling.
func (c *Client) InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	amount := req.Amount.Ceil()
	desc := req.TransactionDesc
	if desc == "" {
		desc = DefaultTransactionDesc
	}
	timestamp := Timestamp(c.now())

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   TransactionTypePayBill,
		Amount:            amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       req.CallbackURL,
		AccountReference:  helpers.Truncate(req.AccountReference, MaxAccountReference),
		TransactionDesc:   helpers.Truncate(desc, MaxTransactionDesc),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return nil, &ProviderError{Kind: ErrChargeInitiationFailed, Message: err.Error()}
	}

	if perr := providerError(ErrChargeInitiationFailed, resp); perr != nil {
		if perr.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return nil, perr
	}

	var out STKPushResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &ProviderError{Kind: ErrChargeInitiationFailed, StatusCode: resp.StatusCode(), Message: "unreadable response"}
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, &ProviderError{
			Kind:       ErrChargeInitiationFailed,
			StatusCode: resp.StatusCode(),
			Code:       out.ResponseCode,
			Message:    out.ResponseDescription,
		}
	}
	out.Amount = amount
	return &out, nil
}

/* 🔍 STK query */

// QuerySTKPush asks Daraja for the outcome of a push. A *ProviderError of
// kind ErrQueryPending means the customer has not answered yet.
func (c *Client) QuerySTKPush(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now())
	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		Post("/mpesa/stkpushquery/v1/query")
	if err != nil {
		return nil, &ProviderError{Kind: ErrQueryFailed, Message: err.Error()}
	}

	if perr := providerError(ErrQueryFailed, resp); perr != nil {
		if perr.Code == ErrorCodeQueryPending {
			perr.Kind = ErrQueryPending
			return nil, perr
		}
		if perr.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return nil, perr
	}

	var out STKQueryResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &ProviderError{Kind: ErrQueryFailed, StatusCode: resp.StatusCode(), Message: "unreadable response"}
	}
	return &out, nil
}

// providerError returns nil for a 2xx response without an errorCode
func providerError(kind error, resp *resty.Response) *ProviderError {
	var body errorBody
	_ = json.Unmarshal(resp.Body(), &body)

	if resp.IsSuccess() && body.ErrorCode == "" {
		return nil
	}

	msg := body.ErrorMessage
	if msg == "" {
		msg = helpers.Truncate(resp.String(), 200)
	}
	return &ProviderError{
		Kind:       kind,
		StatusCode: resp.StatusCode(),
		Code:       body.ErrorCode,
		Message:    msg,
	}
}
