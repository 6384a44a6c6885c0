package service

import (
	"context"

	"market-checkout/internal/events"
	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockTx is a mock pgx.Tx for exercising transaction boundaries. Only
// Commit and Rollback carry expectations; repositories are mocked above
// the SQL layer so the remaining methods are inert stubs.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Begin(_ context.Context) (pgx.Tx, error) { return m, nil }

func (m *MockTx) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *MockTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }

func (m *MockTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (m *MockTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *MockTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *MockTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return nil, nil }

func (m *MockTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }

func (m *MockTx) Conn() *pgx.Conn { return nil }

// MockOrderRepository is a mock implementation of repository.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	return m.Called(ctx, tx, items).Error(0)
}

func (m *MockOrderRepository) AttachSellerOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, sellerID string, sellerOrderID uuid.UUID) error {
	return m.Called(ctx, tx, orderID, sellerID, sellerOrderID).Error(0)
}

func (m *MockOrderRepository) UpdatePaymentInfo(ctx context.Context, tx pgx.Tx, orderID, paymentID uuid.UUID, method string, status model.OrderStatus, paymentStatus model.PaymentStatus) error {
	return m.Called(ctx, tx, orderID, paymentID, method, status, paymentStatus).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, id)
	var order *model.Order
	if args.Get(0) != nil {
		order = args.Get(0).(*model.Order)
	}
	var items []model.OrderItem
	if args.Get(1) != nil {
		items = args.Get(1).([]model.OrderItem)
	}
	return order, items, args.Error(2)
}

func (m *MockOrderRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockSellerOrderRepository is a mock implementation of repository.SellerOrderRepository.
type MockSellerOrderRepository struct {
	mock.Mock
}

func (m *MockSellerOrderRepository) Create(ctx context.Context, tx pgx.Tx, so *model.SellerOrder) error {
	return m.Called(ctx, tx, so).Error(0)
}

func (m *MockSellerOrderRepository) UpdatePaymentStatusByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.PaymentStatus) error {
	return m.Called(ctx, tx, orderID, status).Error(0)
}

func (m *MockSellerOrderRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.SellerOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SellerOrder), args.Error(1)
}

// MockCartRepository is a mock implementation of repository.CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) FindByUserID(ctx context.Context, userID string) (*model.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) ClearCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	return m.Called(ctx, tx, cartID).Error(0)
}

// MockCouponRepository is a mock implementation of repository.CouponRepository.
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponRepository) MarkAsUsed(ctx context.Context, tx pgx.Tx, code, userID string) error {
	return m.Called(ctx, tx, code, userID).Error(0)
}

// MockPaymentRepository is a mock implementation of repository.PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx pgx.Tx, rec *model.PaymentRecord) error {
	return m.Called(ctx, tx, rec).Error(0)
}

func (m *MockPaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.PaymentRecord, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.PaymentRecordStatus) error {
	return m.Called(ctx, tx, id, status).Error(0)
}

// MockProductRepository is a mock implementation of repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]model.Product, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.Product), args.Error(1)
}

func (m *MockProductRepository) UpdateStock(ctx context.Context, tx pgx.Tx, id string, qty int, mode model.StockUpdateMode) error {
	return m.Called(ctx, tx, id, qty, mode).Error(0)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ProcessPayment(ctx context.Context, payload model.ConfirmationPayload, amount decimal.Decimal) (*model.GatewayResult, error) {
	args := m.Called(ctx, payload, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GatewayResult), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, reference string) (*model.GatewayResult, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GatewayResult), args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(ctx context.Context, event *events.OrderCreated) error {
	return m.Called(ctx, event).Error(0)
}

// MockCouponSource is a mock implementation of pricing.CouponSource.
type MockCouponSource struct {
	mock.Mock
}

func (m *MockCouponSource) Resolve(ctx context.Context, code, buyerID string) (*model.Coupon, error) {
	args := m.Called(ctx, code, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}
