package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"market-checkout/internal/config"
	"market-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// httpGateway implements Gateway against the provider's REST API.
type httpGateway struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
	logger   zerolog.Logger
}

// NewHTTPGateway creates a Gateway that talks to the configured provider.
func NewHTTPGateway(cfg config.PaymentConfig, logger zerolog.Logger) Gateway {
	return &httpGateway{
		baseURL:  strings.TrimRight(cfg.ProviderBaseURL, "/"),
		apiKey:   cfg.ProviderAPIKey,
		currency: cfg.Currency,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		logger:   logger.With().Str("component", "payment-gateway").Logger(),
	}
}

// chargeRequest is the provider's charge payload. Amounts travel as
// strings so the provider never sees binary floating point.
type chargeRequest struct {
	Amount    string         `json:"amount"`
	Currency  string         `json:"currency"`
	Method    string         `json:"method,omitempty"`
	Reference string         `json:"reference,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type providerResponse struct {
	ID         string      `json:"id"`
	ResultCode string      `json:"resultCode"`
	Status     string      `json:"status"`
	Method     string      `json:"method"`
	Amount     json.Number `json:"amount"`
	Message    string      `json:"message"`
}

// ProcessPayment charges the given amount using the request payload.
func (g *httpGateway) ProcessPayment(ctx context.Context, payload model.ConfirmationPayload, amount decimal.Decimal) (*model.GatewayResult, error) {
	body, err := json.Marshal(chargeRequest{
		Amount:    amount.StringFixed(2),
		Currency:  g.currency,
		Method:    payload.Method,
		Reference: payload.Resource,
		Metadata:  payload.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPost, "/v1/payments", body)
	if err != nil {
		return nil, err
	}

	return g.toResult(resp), nil
}

// VerifyPayment resolves a provider reference token into the current state
// of that payment.
func (g *httpGateway) VerifyPayment(ctx context.Context, reference string) (*model.GatewayResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("payment reference is empty")
	}

	resp, err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	return g.toResult(resp), nil
}

func (g *httpGateway) do(ctx context.Context, method, path string, body []byte) (*providerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error().Err(err).Str("path", path).Msg("provider request failed")
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		g.logger.Error().Int("status", resp.StatusCode).Str("path", path).Msg("provider returned server error")
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	return &pr, nil
}

// toResult normalises the provider reply. Declines and auth failures come
// back as non-success results, not transport errors.
func (g *httpGateway) toResult(pr *providerResponse) *model.GatewayResult {
	code := pr.ResultCode
	if code == "" {
		code = pr.Status
	}
	state, _ := ClassifyResultCode(strings.ToUpper(code))

	amount := decimal.Zero
	if pr.Amount != "" {
		if d, err := decimal.NewFromString(pr.Amount.String()); err == nil {
			amount = d
		}
	}

	return &model.GatewayResult{
		Success:       pr.ID != "" && state == model.OutcomeSuccess,
		TransactionID: pr.ID,
		ResultCode:    code,
		Amount:        amount,
		Method:        pr.Method,
		Message:       pr.Message,
	}
}
