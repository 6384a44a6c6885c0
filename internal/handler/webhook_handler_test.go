package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockWebhookService is a mock implementation of service.WebhookService.
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandleWebhook(ctx context.Context, payload *model.ConfirmationPayload) (*model.WebhookResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookResult), args.Error(1)
}

func TestWebhookHandler_HandlePayment(t *testing.T) {
	body := []byte(`{"event":"payment.updated","providerPaymentId":"pay-1","status":"success"}`)

	t.Run("forwards raw body and signature", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(p *model.ConfirmationPayload) bool {
			return p.ProviderPaymentID == "pay-1" &&
				bytes.Equal(p.RawBody, body) &&
				p.Signature == "deadbeef"
		})).Return(&model.WebhookResult{Success: true, Status: "completed"}, nil)

		h := NewWebhookHandler(svc, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Signature", "deadbeef")
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result model.WebhookResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Success)
		svc.AssertExpectations(t)
	})

	t.Run("duplicate delivery is still a 200", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(&model.WebhookResult{
			Success:   true,
			Duplicate: true,
		}, nil)

		h := NewWebhookHandler(svc, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result model.WebhookResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Duplicate)
	})

	t.Run("unknown payment yields 404 so the provider retries", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(nil, model.ErrPaymentNotFound)

		h := NewWebhookHandler(svc, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("signature mismatch yields 400", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(nil,
			model.NewDomainError(model.ErrCodeValidation, "webhook signature mismatch"))

		h := NewWebhookHandler(svc, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Signature", "bogus")
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		h := NewWebhookHandler(new(MockWebhookService), zerolog.Nop())

		req := httptest.NewRequest(http.MethodGet, "/api/webhooks/payment", nil)
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		h := NewWebhookHandler(new(MockWebhookService), zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBufferString("{broken"))
		w := httptest.NewRecorder()
		h.HandlePayment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
