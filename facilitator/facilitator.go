// Package facilitator provides an HTTP client for x402 facilitator services,
// which verify and settle signed payments on behalf of payer and merchant.
// The payer normally only sees the facilitator indirectly through the
// resource server; this client exists for reconciliation after ambiguous
// failures and for server-side integrations.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	x402 "github.com/palisade-labs/x402-go"
)

// DefaultURL is the default x402 facilitator endpoint.
const DefaultURL = "https://x402.org/facilitator"

const (
	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"

	authActionVerify    = "verify"
	authActionSettle    = "settle"
	authActionSupported = "supported"
)

// VerifyResponse is the facilitator's verdict on a payment payload.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SupportedKind is one scheme/network pair a facilitator can settle.
type SupportedKind struct {
	X402Version int               `json:"x402Version"`
	Scheme      string            `json:"scheme"`
	Network     x402.Network      `json:"network"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// SupportedResponse lists a facilitator's supported payment kinds.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// Client talks to a facilitator's verify/settle/supported endpoints.
type Client struct {
	URL        string
	HTTPClient *http.Client

	// CreateAuthHeaders optionally supplies per-action auth headers, keyed
	// by action name ("verify", "settle", "supported").
	CreateAuthHeaders func() (map[string]map[string]string, error)
}

// ClientOption configures a facilitator client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// WithAuthHeaders sets the auth-header factory.
func WithAuthHeaders(create func() (map[string]map[string]string, error)) ClientOption {
	return func(c *Client) {
		c.CreateAuthHeaders = create
	}
}

// NewClient creates a facilitator client. An empty url means DefaultURL.
func NewClient(url string, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		URL:        url,
		HTTPClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifySettleRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements"`
}

// Verify asks the facilitator whether the payload satisfies the
// requirements: recipient, amount, asset and network must all match.
func (c *Client) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*VerifyResponse, error) {
	var verifyResp VerifyResponse
	if err := c.post(ctx, authActionVerify, payload, requirements, &verifyResp); err != nil {
		return nil, err
	}
	return &verifyResp, nil
}

// Settle asks the facilitator to broadcast and confirm the payment on-chain,
// paying network fees on the merchant's behalf.
func (c *Client) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettlementResponse, error) {
	var settleResp x402.SettlementResponse
	if err := c.post(ctx, authActionSettle, payload, requirements, &settleResp); err != nil {
		return nil, err
	}
	return &settleResp, nil
}

// Supported retrieves the payment kinds the facilitator can settle.
func (c *Client) Supported(ctx context.Context) (*SupportedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/supported", c.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supported request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	if err := c.addAuthHeader(req, authActionSupported); err != nil {
		return nil, fmt.Errorf("failed to apply supported auth headers: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindNetworkError, "supported request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get supported payment kinds: %s", resp.Status)
	}

	var supportedResp SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&supportedResp); err != nil {
		return nil, fmt.Errorf("failed to decode supported response: %w", err)
	}

	return &supportedResp, nil
}

// Reconcile checks whether a previously signed payment is still unsettled
// and valid for resubmission. After an ambiguous network failure on the paid
// retry the caller cannot know whether the payment was broadcast; a false
// result means the payload must not be resubmitted (it may already have
// settled or its lifetime anchor lapsed), so a fresh payment flow is needed.
func (c *Client) Reconcile(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (bool, error) {
	verdict, err := c.Verify(ctx, payload, requirements)
	if err != nil {
		return false, err
	}
	return verdict.IsValid, nil
}

func (c *Client) post(ctx context.Context, action string, payload x402.PaymentPayload, requirements x402.PaymentRequirements, out interface{}) error {
	body, err := json.Marshal(verifySettleRequest{
		X402Version:         x402.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.URL, action), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	if err := c.addAuthHeader(req, action); err != nil {
		return fmt.Errorf("failed to apply %s auth headers: %w", action, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return x402.NewPaymentError(x402.KindNetworkError, fmt.Sprintf("%s request failed", action), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator %s failed: %s", action, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}

	return nil
}

func (c *Client) addAuthHeader(req *http.Request, action string) error {
	if c.CreateAuthHeaders == nil {
		return nil
	}

	headers, err := c.CreateAuthHeaders()
	if err != nil {
		return fmt.Errorf("create auth headers: %w", err)
	}

	actionHeaders, ok := headers[action]
	if !ok {
		return nil
	}

	for key, value := range actionHeaders {
		req.Header.Set(key, value)
	}

	return nil
}
