// Package payclient calls the riciti payment API over HTTP. Client
// satisfies poller.Client.
package payclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	paysvc "riciti/pkg/payment"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds each request
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx answer or an error envelope
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payclient: %d %s", e.StatusCode, e.Message)
}

// Conflict reports a 409: the invoice is paid or a charge is in flight
func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// Client talks to one API base URL
type Client struct {
	http *resty.Client
}

// Option customises a Client
type Option func(*Client)

// WithTimeout replaces DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHeader adds a header to every request
func WithHeader(name, value string) Option {
	return func(c *Client) { c.http.SetHeader(name, value) }
}

// New returns a client for baseURL, e.g. https://riciti.example
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate sends the STK push for an invoice
func (c *Client) Initiate(ctx context.Context, publicInvoiceID, phone string) (*paysvc.InitiateResult, error) {
	body := map[string]string{
		"publicInvoiceId": publicInvoiceID,
		"phoneNumber":     phone,
	}
	var out paysvc.InitiateResult
	if err := c.do(ctx, http.MethodPost, "/v1/payments/initiate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reads the invoice's payment status
func (c *Client) Status(ctx context.Context, publicInvoiceID string) (*paysvc.InvoiceStatus, error) {
	var out paysvc.InvoiceStatus
	path := "/v1/invoices/" + url.PathEscape(publicInvoiceID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query asks the server to query the provider for a charge
func (c *Client) Query(ctx context.Context, checkoutRequestID string) (*paysvc.QueryResult, error) {
	body := map[string]string{"checkoutRequestId": checkoutRequestID}
	var out paysvc.QueryResult
	if err := c.do(ctx, http.MethodPost, "/v1/payments/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("payclient: %s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode(), Message: "unreadable response"}
	}
	if resp.IsError() || env.Status != "success" {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("payclient: decode %s: %w", path, err)
	}
	return nil
}
