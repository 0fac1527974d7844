package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitwit/pinetwork/types"
)

// DefaultBaseURL is the production Pi Platform API.
const DefaultBaseURL = "https://api.minepi.com"

// DefaultTimeout bounds every request when no HTTP client is supplied.
const DefaultTimeout = 20 * time.Second

// APIConfig configures the Pi Platform API client.
type APIConfig struct {
	// APIKey is the app's server API key. Sent as "Authorization: Key <key>".
	APIKey string

	// BaseURL overrides DefaultBaseURL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests when HTTPClient is nil (optional, defaults to 20s).
	Timeout time.Duration
}

// APIClient implements PaymentAPI over HTTP.
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ PaymentAPI = (*APIClient)(nil)

// NewAPIClient creates a Pi Platform API client.
func NewAPIClient(config APIConfig) *APIClient {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &APIClient{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

// BaseURL returns the API host requests are sent to.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) CreatePayment(ctx context.Context, args types.PaymentArgs) (*types.Payment, error) {
	if args.Metadata == nil {
		args.Metadata = json.RawMessage("{}")
	}
	body := struct {
		Payment types.PaymentArgs `json:"payment"`
	}{Payment: args}

	return c.paymentRequest(ctx, http.MethodPost, "/v2/payments", body)
}

func (c *APIClient) GetPayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	return c.paymentRequest(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(paymentID), nil)
}

func (c *APIClient) CompletePayment(ctx context.Context, paymentID, txID string) (*types.Payment, error) {
	endpoint := fmt.Sprintf("/v2/payments/%s/complete?txid=%s", url.PathEscape(paymentID), url.QueryEscape(txID))
	body := struct {
		TxID string `json:"txid"`
	}{TxID: txID}

	return c.paymentRequest(ctx, http.MethodPost, endpoint, body)
}

func (c *APIClient) CancelPayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	endpoint := fmt.Sprintf("/v2/payments/%s/cancel", url.PathEscape(paymentID))
	return c.paymentRequest(ctx, http.MethodPost, endpoint, nil)
}

func (c *APIClient) GetIncompleteServerPayments(ctx context.Context) ([]types.Payment, error) {
	res, err := c.send(ctx, http.MethodGet, "/v2/payments/incomplete_server_payments", nil)
	if err != nil {
		return nil, err
	}

	out, err := decode[types.IncompletePaymentsResponse](res.body)
	if err != nil {
		return nil, err
	}
	if out.IncompleteServerPayments == nil {
		return []types.Payment{}, nil
	}
	return out.IncompleteServerPayments, nil
}

func (c *APIClient) paymentRequest(ctx context.Context, method, endpoint string, reqBody any) (*types.Payment, error) {
	res, err := c.send(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	return decode[types.Payment](res.body)
}

// send performs the request and turns any status other than 200 into an
// API error carrying the response body verbatim.
func (c *APIClient) send(ctx context.Context, method, endpoint string, reqBody any) (*response, error) {
	body, err := jsonBody(reqBody)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Key "+c.apiKey)
	header.Set("Content-Type", "application/json")

	res, err := do(ctx, c.httpClient, method, c.baseURL+endpoint, header, body)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, types.NewAPIError(res.status, res.text())
	}
	return res, nil
}
