package x402

import (
	"io"
	"net/http"
)

// PaymentRoundTripper implements http.RoundTripper with transparent x402
// payment handling. A 402 response triggers one payment attempt and one
// retry; anything else passes through unchanged. Requests carrying a body
// must have GetBody set so the retry can replay it (http.NewRequest does
// this for common body types).
type PaymentRoundTripper struct {
	// Base is the underlying transport. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// Client drives the payment flow on 402 responses.
	Client *Client

	// Gateway signs payment transactions.
	Gateway SignerGateway
}

// WrapHTTPClient wraps an HTTP client so that 402 responses are paid
// automatically. The settlement is available to callers through the
// X-PAYMENT-RESPONSE header of the returned response.
func WrapHTTPClient(httpClient *http.Client, client *Client, gateway SignerGateway) *http.Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient.Transport = &PaymentRoundTripper{
		Base:    base,
		Client:  client,
		Gateway: gateway,
	}

	return httpClient
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	receivedAt := t.Client.now()

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, NewPaymentError(KindNetworkError, "failed to read 402 response body", err)
	}

	required, err := ParsePaymentRequired(body)
	if err != nil {
		return nil, err
	}

	paidResp, _, err := t.Client.completePayment(req.Context(), req, required, receivedAt, t.Gateway)
	if err != nil {
		return nil, err
	}

	return paidResp, nil
}
