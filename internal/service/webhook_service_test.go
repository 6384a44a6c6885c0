package service

import (
	"context"
	"testing"
	"time"

	"market-checkout/internal/config"
	"market-checkout/internal/idempotency"
	"market-checkout/internal/inventory"
	"market-checkout/internal/model"
	"market-checkout/internal/payment"
	"market-checkout/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	orderRepo       *MockOrderRepository
	sellerOrderRepo *MockSellerOrderRepository
	couponRepo      *MockCouponRepository
	paymentRepo     *MockPaymentRepository
	productRepo     *MockProductRepository
	couponSource    *MockCouponSource
	publisher       *MockPublisher
	markers         idempotency.Store
	tx              *MockTx
	svc             WebhookService
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		orderRepo:       new(MockOrderRepository),
		sellerOrderRepo: new(MockSellerOrderRepository),
		couponRepo:      new(MockCouponRepository),
		paymentRepo:     new(MockPaymentRepository),
		productRepo:     new(MockProductRepository),
		couponSource:    new(MockCouponSource),
		publisher:       new(MockPublisher),
		markers:         idempotency.NewMemoryStore(),
		tx:              new(MockTx),
	}

	cfg := checkoutPricingConfig()
	calc := pricing.NewCalculator(f.productRepo, f.couponSource, cfg, zerolog.Nop())
	reserver := inventory.NewReserver(f.productRepo, zerolog.Nop())
	normalizer := payment.NewNormalizer(new(MockGateway), config.PaymentConfig{
		Environment: "development",
		Currency:    "USD",
		TimeoutSecs: 30,
	}, zerolog.Nop())

	f.svc = NewWebhookService(
		f.orderRepo, f.sellerOrderRepo, f.couponRepo, f.paymentRepo,
		calc, reserver, normalizer, f.markers, f.publisher,
		cfg, time.Minute, zerolog.Nop(),
	)

	return f
}

func successPayload(providerID string) *model.ConfirmationPayload {
	return &model.ConfirmationPayload{
		Event:             "payment.updated",
		ProviderPaymentID: providerID,
		Status:            "success",
	}
}

func penPaymentRecord(providerID string) *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:                uuid.New(),
		ProviderPaymentID: providerID,
		BuyerID:           "buyer-1",
		Amount:            dec("34.50"),
		Currency:          "USD",
		Status:            model.PaymentRecordPending,
		Method:            "card",
		RequestItems:      []model.PaymentRequestItem{{ProductID: "P-PEN", Quantity: 1}},
	}
}

func TestWebhookService_HandleWebhook_NilPayload(t *testing.T) {
	f := newWebhookFixture()

	result, err := f.svc.HandleWebhook(context.Background(), nil)

	require.Error(t, err)
	assert.Nil(t, result)
	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.ErrCodeValidation, derr.Code)
}

func TestWebhookService_HandleWebhook_UnknownStatus(t *testing.T) {
	f := newWebhookFixture()

	payload := successPayload("pay-1")
	payload.Status = "shrugged"

	_, err := f.svc.HandleWebhook(context.Background(), payload)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.ErrCodeValidation, derr.Code)
	f.paymentRepo.AssertNotCalled(t, "FindByProviderPaymentID", mock.Anything, mock.Anything)
}

func TestWebhookService_HandleWebhook_MissingIdentifier(t *testing.T) {
	f := newWebhookFixture()

	payload := successPayload("")

	_, err := f.svc.HandleWebhook(context.Background(), payload)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.ErrCodeValidation, derr.Code)
}

func TestWebhookService_HandleWebhook_TransactionIDFallback(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("txn-7")
	order := &model.Order{ID: uuid.New(), Status: model.OrderStatusProcessing}
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "txn-7").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(order, nil)
	f.expectPropagation(record, order)

	payload := successPayload("")
	payload.TransactionID = "txn-7"

	result, err := f.svc.HandleWebhook(context.Background(), payload)

	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestWebhookService_HandleWebhook_DuplicateAcknowledged(t *testing.T) {
	f := newWebhookFixture()

	_, err := f.markers.Claim(context.Background(), "webhook:pay-1:success", time.Minute)
	require.NoError(t, err)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-1"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Duplicate)
	f.paymentRepo.AssertNotCalled(t, "FindByProviderPaymentID", mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestWebhookService_HandleWebhook_UnknownPayment(t *testing.T) {
	f := newWebhookFixture()
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-404").Return(nil, nil)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-404"))

	assert.ErrorIs(t, err, model.ErrPaymentNotFound)
	assert.Nil(t, result)

	// The attempt must not mark the webhook as seen, the provider will retry
	seen, serr := f.markers.Seen(context.Background(), "webhook:pay-404:success")
	require.NoError(t, serr)
	assert.False(t, seen)
}

func (f *webhookFixture) expectPropagation(record *model.PaymentRecord, order *model.Order) {
	f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, order.ID, record.ID, record.Method, model.OrderStatusPaid, model.PaymentStatusCompleted).Return(nil)
	f.sellerOrderRepo.On("UpdatePaymentStatusByOrder", mock.Anything, f.tx, order.ID, model.PaymentStatusCompleted).Return(nil)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, model.PaymentRecordCompleted).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)
}

func TestWebhookService_HandleWebhook_PropagatesToExistingOrder(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-1")
	order := &model.Order{ID: uuid.New(), BuyerID: "buyer-1", Status: model.OrderStatusProcessing}
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-1").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(order, nil)
	f.expectPropagation(record, order)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-1"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, string(model.PaymentRecordCompleted), result.Status)
	f.tx.AssertExpectations(t)
	// No new order, no new event
	f.orderRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)

	// The marker is recorded so a redelivery becomes a no-op
	seen, serr := f.markers.Seen(context.Background(), "webhook:pay-1:success")
	require.NoError(t, serr)
	assert.True(t, seen)
}

func TestWebhookService_HandleWebhook_MaterializesMissingOrder(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-2")
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-2").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(nil, nil)

	f.productRepo.On("GetByIDs", mock.Anything, mock.Anything).Return([]model.Product{
		{ID: "P-PEN", Name: "Pen", SellerID: "seller-1", Price: dec("20.00"), Stock: 10},
	}, nil)
	f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.orderRepo.On("CreateOrder", mock.Anything, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		return o.Status == model.OrderStatusPaid && o.PaymentStatus == model.PaymentStatusCompleted
	})).Return(nil)
	f.orderRepo.On("CreateOrderItems", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, mock.Anything, record.ID, "card", model.OrderStatusPaid, model.PaymentStatusCompleted).Return(nil)
	f.sellerOrderRepo.On("Create", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orderRepo.On("AttachSellerOrder", mock.Anything, f.tx, mock.Anything, "seller-1", mock.Anything).Return(nil)
	f.productRepo.On("LockForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(map[string]model.Product{
		"P-PEN": {ID: "P-PEN", SellerID: "seller-1", Price: dec("20.00"), Stock: 10},
	}, nil)
	f.productRepo.On("UpdateStock", mock.Anything, f.tx, "P-PEN", 1, model.StockDecrease).Return(nil)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, model.PaymentRecordCompleted).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)
	f.orderRepo.On("GetByID", mock.Anything, mock.Anything).Return(&model.Order{}, []model.OrderItem{}, nil)
	f.publisher.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-2"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	f.tx.AssertExpectations(t)
	f.publisher.AssertNumberOfCalls(t, "PublishOrderCreated", 1)
}

func TestWebhookService_HandleWebhook_MaterializationEventSharedWithCheckout(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-3")
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-3").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(nil, nil)
	f.productRepo.On("GetByIDs", mock.Anything, mock.Anything).Return([]model.Product{
		{ID: "P-PEN", SellerID: "seller-1", Price: dec("20.00"), Stock: 10},
	}, nil)
	f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.orderRepo.On("CreateOrder", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orderRepo.On("CreateOrderItems", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sellerOrderRepo.On("Create", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.orderRepo.On("AttachSellerOrder", mock.Anything, f.tx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.productRepo.On("LockForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(map[string]model.Product{
		"P-PEN": {ID: "P-PEN", SellerID: "seller-1", Price: dec("20.00"), Stock: 10},
	}, nil)
	f.productRepo.On("UpdateStock", mock.Anything, f.tx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, mock.Anything, mock.Anything).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)
	f.orderRepo.On("GetByID", mock.Anything, mock.Anything).Return(&model.Order{}, []model.OrderItem{}, nil)

	// The synchronous checkout path already emitted for this payment
	_, err := f.markers.Claim(context.Background(), "order-created:pay-3", time.Minute)
	require.NoError(t, err)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-3"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	f.publisher.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)
}

func TestWebhookService_HandleWebhook_DegradedOrderWithoutRequestItems(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-4")
	record.RequestItems = nil
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-4").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(nil, nil)
	f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.orderRepo.On("CreateOrder", mock.Anything, f.tx, mock.MatchedBy(func(o *model.Order) bool {
		// Amount-only order: the settled total is preserved, items are absent
		return o.Pricing.Total.Equal(dec("34.50")) && len(o.Pricing.Lines) == 0
	})).Return(nil)
	f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, mock.Anything, record.ID, "card", model.OrderStatusPaid, model.PaymentStatusCompleted).Return(nil)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, model.PaymentRecordCompleted).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)
	f.orderRepo.On("GetByID", mock.Anything, mock.Anything).Return(&model.Order{}, []model.OrderItem{}, nil)
	f.publisher.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-4"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	f.orderRepo.AssertNotCalled(t, "CreateOrderItems", mock.Anything, mock.Anything, mock.Anything)
	f.productRepo.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_HandleWebhook_Pending(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-5")
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-5").Return(record, nil)

	payload := successPayload("pay-5")
	payload.Status = "processing"

	result, err := f.svc.HandleWebhook(context.Background(), payload)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, string(model.PaymentRecordPending), result.Status)
	f.orderRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestWebhookService_HandleWebhook_SuccessAfterPending(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-8")
	order := &model.Order{ID: uuid.New(), BuyerID: "buyer-1", Status: model.OrderStatusProcessing}
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-8").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(order, nil)
	f.expectPropagation(record, order)

	// Providers often deliver an intermediate state first. Acknowledging it
	// must not swallow the terminal success that follows.
	pending := successPayload("pay-8")
	pending.Status = "processing"
	first, err := f.svc.HandleWebhook(context.Background(), pending)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.Duplicate)

	second, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-8"))

	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.False(t, second.Duplicate)
	assert.Equal(t, string(model.PaymentRecordCompleted), second.Status)
	f.tx.AssertExpectations(t)

	// Only a redelivery of the same state is deduplicated
	third, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-8"))
	require.NoError(t, err)
	assert.True(t, third.Duplicate)
}

func TestWebhookService_HandleWebhook_RefundAfterSuccess(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-9")
	order := &model.Order{ID: uuid.New(), BuyerID: "buyer-1", Status: model.OrderStatusProcessing}
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-9").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(order, nil)
	f.expectPropagation(record, order)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, model.PaymentRecordRefunded).Return(nil)
	f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, order.ID, record.ID, record.Method, model.OrderStatusProcessing, model.PaymentStatusFailed).Return(nil)
	f.sellerOrderRepo.On("UpdatePaymentStatusByOrder", mock.Anything, f.tx, order.ID, model.PaymentStatusFailed).Return(nil)

	first, err := f.svc.HandleWebhook(context.Background(), successPayload("pay-9"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	refund := successPayload("pay-9")
	refund.Status = "refunded"

	second, err := f.svc.HandleWebhook(context.Background(), refund)

	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.False(t, second.Duplicate)
	assert.Equal(t, string(model.PaymentRecordRefunded), second.Status)
}

func TestWebhookService_HandleWebhook_TerminalFailures(t *testing.T) {
	tests := []struct {
		status   string
		expected model.PaymentRecordStatus
	}{
		{status: "failed", expected: model.PaymentRecordFailed},
		{status: "cancelled", expected: model.PaymentRecordCancelled},
		{status: "refunded", expected: model.PaymentRecordRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := newWebhookFixture()
			record := penPaymentRecord("pay-6")
			order := &model.Order{ID: uuid.New(), Status: model.OrderStatusProcessing}
			f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-6").Return(record, nil)
			f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(order, nil)
			f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, tt.expected).Return(nil)
			// The order keeps its lifecycle status, only the payment marking flips
			f.orderRepo.On("UpdatePaymentInfo", mock.Anything, f.tx, order.ID, record.ID, record.Method, model.OrderStatusProcessing, model.PaymentStatusFailed).Return(nil)
			f.sellerOrderRepo.On("UpdatePaymentStatusByOrder", mock.Anything, f.tx, order.ID, model.PaymentStatusFailed).Return(nil)
			f.tx.On("Commit", mock.Anything).Return(nil)

			payload := successPayload("pay-6")
			payload.Status = tt.status

			result, err := f.svc.HandleWebhook(context.Background(), payload)

			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, string(tt.expected), result.Status)
			f.tx.AssertExpectations(t)
		})
	}
}

func TestWebhookService_HandleWebhook_TerminalFailureWithoutOrder(t *testing.T) {
	f := newWebhookFixture()
	record := penPaymentRecord("pay-7")
	f.paymentRepo.On("FindByProviderPaymentID", mock.Anything, "pay-7").Return(record, nil)
	f.orderRepo.On("FindByPaymentID", mock.Anything, record.ID).Return(nil, nil)
	f.orderRepo.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.paymentRepo.On("UpdateStatus", mock.Anything, f.tx, record.ID, model.PaymentRecordFailed).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)

	payload := successPayload("pay-7")
	payload.Status = "failed"

	result, err := f.svc.HandleWebhook(context.Background(), payload)

	require.NoError(t, err)
	assert.True(t, result.Success)
	f.orderRepo.AssertNotCalled(t, "UpdatePaymentInfo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
