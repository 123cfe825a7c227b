package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client drives the x402 payment flow: initial request, 402 parsing,
// requirement selection, transaction building, signing, paid retry and
// settlement decoding. Each PayResource call is an independent flow; a single
// Client may serve concurrent payments without coordination.
type Client struct {
	mu sync.RWMutex

	// Registered transaction builders: network pattern -> scheme -> builder.
	builders map[Network]map[string]SchemeBuilder

	httpClient *http.Client
	policy     SelectionPolicy
	logger     logrus.FieldLogger
	now        func() time.Time

	onAttempt PaymentCallback
	onSuccess PaymentCallback
	onFailure PaymentCallback
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for resource requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSelectionPolicy sets the requirement selection policy.
func WithSelectionPolicy(policy SelectionPolicy) ClientOption {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithScheme registers a transaction builder at creation time.
func WithScheme(network Network, builder SchemeBuilder) ClientOption {
	return func(c *Client) {
		c.RegisterScheme(network, builder)
	}
}

// OnPaymentAttempt sets the callback invoked when a payment attempt starts.
func OnPaymentAttempt(cb PaymentCallback) ClientOption {
	return func(c *Client) {
		c.onAttempt = cb
	}
}

// OnPaymentSuccess sets the callback invoked after a settled payment.
func OnPaymentSuccess(cb PaymentCallback) ClientOption {
	return func(c *Client) {
		c.onSuccess = cb
	}
}

// OnPaymentFailure sets the callback invoked when a payment attempt fails.
func OnPaymentFailure(cb PaymentCallback) ClientOption {
	return func(c *Client) {
		c.onFailure = cb
	}
}

// NewClient creates a payment client. Builders for at least one network must
// be registered before PayResource can succeed on a 402.
func NewClient(opts ...ClientOption) *Client {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Client{
		builders:   make(map[Network]map[string]SchemeBuilder),
		httpClient: &http.Client{},
		logger:     quiet,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterScheme registers a transaction builder for a network. The network
// may be a wildcard pattern such as "solana:*".
func (c *Client) RegisterScheme(network Network, builder SchemeBuilder) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.builders[network] == nil {
		c.builders[network] = make(map[string]SchemeBuilder)
	}
	c.builders[network][builder.Scheme()] = builder

	return c
}

// SupportedNetworks returns the network patterns with a registered builder.
func (c *Client) SupportedNetworks() []Network {
	c.mu.RLock()
	defer c.mu.RUnlock()

	networks := make([]Network, 0, len(c.builders))
	for network := range c.builders {
		networks = append(networks, network)
	}
	return networks
}

func (c *Client) builderFor(network Network, scheme string) SchemeBuilder {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if schemeMap, exists := c.builders[network]; exists {
		if builder, exists := schemeMap[scheme]; exists {
			return builder
		}
	}

	for registered, schemeMap := range c.builders {
		if network.Match(registered) || registered.Match(network) {
			if builder, exists := schemeMap[scheme]; exists {
				return builder
			}
		}
	}

	return nil
}

// Result is the outcome of a successful PayResource call. Settlement is nil
// when the resource was served without requiring payment.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Settlement *SettlementResponse
}

// PayResource fetches a resource, paying for it if the server demands
// payment. The signer gateway is supplied per call so concurrent flows each
// receive their own connection snapshot; the core never holds key material.
//
// Exactly one payment is attempted per call. A second 402 after the paid
// retry is surfaced as KindPaymentRejected and is not retried here; retry
// policy is the caller's concern.
func (c *Client) PayResource(ctx context.Context, method, url string, body []byte, gateway SignerGateway) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewPaymentError(KindNetworkError, "initial request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, NewPaymentError(KindNetworkError, "failed to read response body", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
		}
		return nil, (&PaymentError{
			Kind:    KindHTTPError,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}).WithDetails("body", string(respBody))
	}

	receivedAt := c.now()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewPaymentError(KindNetworkError, "failed to read 402 response body", err)
	}

	required, err := ParsePaymentRequired(respBody)
	if err != nil {
		return nil, err
	}

	paidResp, settlement, err := c.completePayment(ctx, req, required, receivedAt, gateway)
	if err != nil {
		return nil, err
	}
	defer paidResp.Body.Close()

	paidBody, err := io.ReadAll(paidResp.Body)
	if err != nil {
		return nil, &PaymentError{Kind: KindNetworkError, Message: "failed to read resource body", Attempted: true, Err: err}
	}

	return &Result{
		StatusCode: paidResp.StatusCode,
		Header:     paidResp.Header,
		Body:       paidBody,
		Settlement: settlement,
	}, nil
}

// GetResource is a convenience wrapper for paying for a GET resource.
func (c *Client) GetResource(ctx context.Context, url string, gateway SignerGateway) (*Result, error) {
	return c.PayResource(ctx, http.MethodGet, url, nil, gateway)
}

// ParsePaymentRequired parses and validates a 402 response body. A body that
// does not parse, carries an unknown version, or offers no accepts entries is
// a protocol violation, not a retryable condition.
func ParsePaymentRequired(body []byte) (PaymentRequired, error) {
	var required PaymentRequired
	if err := json.Unmarshal(body, &required); err != nil {
		return PaymentRequired{}, NewPaymentError(KindMalformedRequirements, "402 body is not valid JSON", err)
	}
	if required.X402Version != ProtocolVersion {
		return PaymentRequired{}, NewPaymentError(
			KindMalformedRequirements,
			fmt.Sprintf("unsupported x402 version %d", required.X402Version),
			nil,
		)
	}
	if len(required.Accepts) == 0 {
		return PaymentRequired{}, NewPaymentError(KindMalformedRequirements, "402 body is missing accepts", nil)
	}
	return required, nil
}

// completePayment runs the flow from requirement selection through the paid
// retry. origReq must be clonable (GetBody set when it carries a body). The
// returned response body is unread.
func (c *Client) completePayment(ctx context.Context, origReq *http.Request, required PaymentRequired, receivedAt time.Time, gateway SignerGateway) (*http.Response, *SettlementResponse, error) {
	if gateway == nil {
		return nil, nil, NewPaymentError(KindUserCancelled, "no signer gateway provided", nil)
	}

	selected, err := SelectRequirement(required.Accepts, receivedAt, c.SupportedNetworks(), c.policy)
	if err != nil {
		return nil, nil, err
	}

	builder := c.builderFor(selected.Network, selected.Scheme)
	if builder == nil {
		return nil, nil, NewPaymentError(
			KindUnsupportedRequirements,
			fmt.Sprintf("no builder registered for scheme %s on network %s", selected.Scheme, selected.Network),
			nil,
		)
	}

	attemptID := uuid.NewString()
	started := c.now()

	log := c.logger.WithFields(logrus.Fields{
		"attempt_id": attemptID,
		"url":        origReq.URL.String(),
		"network":    selected.Network,
		"asset":      selected.Asset,
		"amount":     selected.MaxAmountRequired,
		"pay_to":     selected.PayTo,
	})
	log.Info("payment required, building transaction")

	c.emit(c.onAttempt, PaymentEvent{
		Type:      PaymentEventAttempt,
		AttemptID: attemptID,
		Timestamp: started,
		URL:       origReq.URL.String(),
		Network:   selected.Network,
		Scheme:    selected.Scheme,
		Amount:    selected.MaxAmountRequired,
		Asset:     selected.Asset,
		Recipient: selected.PayTo,
	})

	fail := func(err error) (*http.Response, *SettlementResponse, error) {
		log.WithError(err).Warn("payment attempt failed")
		c.emit(c.onFailure, PaymentEvent{
			Type:      PaymentEventFailure,
			AttemptID: attemptID,
			Timestamp: c.now(),
			URL:       origReq.URL.String(),
			Network:   selected.Network,
			Scheme:    selected.Scheme,
			Error:     err,
			Duration:  c.now().Sub(started),
		})
		return nil, nil, err
	}

	unsigned, err := builder.BuildTransaction(ctx, selected, gateway.Address())
	if err != nil {
		return fail(err)
	}

	signed, err := c.sign(ctx, builder, selected, gateway, unsigned)
	if err != nil {
		return fail(err)
	}
	log.Debug("transaction signed")

	// The signed transaction is discarded, never submitted later, when the
	// caller cancelled or the requirement's deadline passed while signing.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fail(NewPaymentError(KindNetworkError, "cancelled before submission", ctxErr))
	}
	if selected.MaxTimeoutSeconds > 0 {
		deadline := receivedAt.Add(time.Duration(selected.MaxTimeoutSeconds) * time.Second)
		if c.now().After(deadline) {
			return fail(NewPaymentError(
				KindRequirementExpired,
				fmt.Sprintf("requirement expired after %ds", selected.MaxTimeoutSeconds),
				nil,
			))
		}
	}

	payload := PaymentPayload{
		X402Version: ProtocolVersion,
		Scheme:      selected.Scheme,
		Network:     selected.Network,
		Payload:     ExactPayload{Transaction: signed},
	}

	header, err := EncodePaymentHeader(payload)
	if err != nil {
		return fail(err)
	}

	retryReq := origReq.Clone(ctx)
	if origReq.GetBody != nil {
		retryBody, err := origReq.GetBody()
		if err != nil {
			return fail(NewPaymentError(KindNetworkError, "failed to replay request body", err))
		}
		retryReq.Body = retryBody
	}
	retryReq.Header.Set(HeaderPayment, header)

	resp, err := c.httpClient.Do(retryReq)
	if err != nil {
		return fail(&PaymentError{Kind: KindNetworkError, Message: "paid retry failed", Attempted: true, Err: err})
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		reason := readRejectionReason(resp.Body)
		resp.Body.Close()
		return fail((&PaymentError{
			Kind:      KindPaymentRejected,
			Message:   "payment rejected by server",
			Attempted: true,
		}).WithDetails("errorReason", reason))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return fail(&PaymentError{
			Kind:      KindHTTPError,
			Message:   fmt.Sprintf("unexpected status %d after payment", resp.StatusCode),
			Status:    resp.StatusCode,
			Attempted: true,
		})
	}

	settlementHeader := resp.Header.Get(HeaderPaymentResponse)
	if settlementHeader == "" {
		resp.Body.Close()
		return fail(&PaymentError{Kind: KindMalformedHeader, Message: "missing settlement header", Attempted: true})
	}

	settlement, err := DecodeSettlementHeader(settlementHeader)
	if err != nil {
		resp.Body.Close()
		var pe *PaymentError
		if errors.As(err, &pe) {
			pe.Attempted = true
		}
		return fail(err)
	}

	log.WithFields(logrus.Fields{
		"transaction": settlement.Transaction,
		"payer":       settlement.Payer,
	}).Info("payment settled")

	c.emit(c.onSuccess, PaymentEvent{
		Type:        PaymentEventSuccess,
		AttemptID:   attemptID,
		Timestamp:   c.now(),
		URL:         origReq.URL.String(),
		Network:     settlement.Network,
		Scheme:      selected.Scheme,
		Amount:      selected.MaxAmountRequired,
		Asset:       selected.Asset,
		Recipient:   selected.PayTo,
		Payer:       settlement.Payer,
		Transaction: settlement.Transaction,
		Duration:    c.now().Sub(started),
	})

	return resp, &settlement, nil
}

// sign invokes the gateway, rebuilding with a fresh lifetime anchor exactly
// once when the gateway reports the anchor expired while the prompt was open.
func (c *Client) sign(ctx context.Context, builder SchemeBuilder, selected PaymentRequirements, gateway SignerGateway, unsigned []byte) (string, error) {
	signed, err := gateway.SignTransaction(ctx, unsigned)
	if errors.Is(err, ErrAnchorExpired) {
		rebuilt, buildErr := builder.BuildTransaction(ctx, selected, gateway.Address())
		if buildErr != nil {
			return "", buildErr
		}
		signed, err = gateway.SignTransaction(ctx, rebuilt)
	}

	switch {
	case err == nil:
		return encodeTransactionBase64(signed), nil
	case errors.Is(err, ErrSigningRejected):
		return "", NewPaymentError(KindUserCancelled, "signing rejected by user", err)
	case errors.Is(err, ErrAnchorExpired):
		return "", NewPaymentError(KindAnchorExpired, "lifetime anchor expired after rebuild", err)
	default:
		return "", NewPaymentError(KindNetworkError, "signer gateway failed", err)
	}
}

func (c *Client) emit(cb PaymentCallback, event PaymentEvent) {
	if cb != nil {
		cb(event)
	}
}

func readRejectionReason(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 1<<16))
	if err != nil || len(data) == 0 {
		return ""
	}
	var rejection struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &rejection); err != nil {
		return ""
	}
	return rejection.Error
}
