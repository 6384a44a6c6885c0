package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-checkout/internal/config"
	"market-checkout/internal/events"
	"market-checkout/internal/idempotency"
	"market-checkout/internal/inventory"
	"market-checkout/internal/model"
	"market-checkout/internal/payment"
	"market-checkout/internal/pricing"
	"market-checkout/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	orderRepo       repository.OrderRepository
	sellerOrderRepo repository.SellerOrderRepository
	cartRepo        repository.CartRepository
	couponRepo      repository.CouponRepository
	paymentRepo     repository.PaymentRepository
	calc            *pricing.Calculator
	verifier        *pricing.Verifier
	reserver        *inventory.Reserver
	gateway         payment.Gateway
	normalizer      *payment.Normalizer
	markers         idempotency.Store
	publisher       events.Publisher
	pricingCfg      config.PricingConfig
	currency        string
	markerTTL       time.Duration
	logger          zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	sellerOrderRepo repository.SellerOrderRepository,
	cartRepo repository.CartRepository,
	couponRepo repository.CouponRepository,
	paymentRepo repository.PaymentRepository,
	calc *pricing.Calculator,
	verifier *pricing.Verifier,
	reserver *inventory.Reserver,
	gateway payment.Gateway,
	normalizer *payment.Normalizer,
	markers idempotency.Store,
	publisher events.Publisher,
	pricingCfg config.PricingConfig,
	currency string,
	markerTTL time.Duration,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orderRepo:       orderRepo,
		sellerOrderRepo: sellerOrderRepo,
		cartRepo:        cartRepo,
		couponRepo:      couponRepo,
		paymentRepo:     paymentRepo,
		calc:            calc,
		verifier:        verifier,
		reserver:        reserver,
		gateway:         gateway,
		normalizer:      normalizer,
		markers:         markers,
		publisher:       publisher,
		pricingCfg:      pricingCfg,
		currency:        currency,
		markerTTL:       markerTTL,
		logger:          logger.With().Str("service", "checkout").Logger(),
	}
}

// newOrderNumber derives a human-readable unique order number.
func newOrderNumber(id uuid.UUID, now time.Time) string {
	compact := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), compact[:6])
}

// Checkout executes a full checkout attempt for a buyer. Every step from
// stock validation to coupon consumption runs inside one database
// transaction; any failure rolls the whole attempt back so no partial
// order state is ever visible.
func (s *checkoutService) Checkout(ctx context.Context, req *model.CheckoutRequest) (resp *model.CheckoutResponse, err error) {
	if req == nil || req.BuyerID == "" {
		return nil, model.NewDomainError(model.ErrCodeValidation, "buyer id is required")
	}

	// Step 1: resolve items. Explicit request items win over the cart.
	items, cartID, fromCart, err := s.resolveItems(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 2: price the cart from trusted catalogue data.
	breakdown, err := s.calc.Calculate(ctx, items, req.BuyerID, req.CouponCode)
	if err != nil {
		return nil, err
	}

	// Step 3: price integrity. Skipped only for payloads whose amount the
	// gateway itself confirmed.
	if !req.Payment.TrustedAmount {
		ok, verr := s.verifier.Verify(ctx, items, req.BuyerID, req.CouponCode)
		if verr != nil {
			return nil, verr
		}
		if ok && req.CalculatedTotals != nil {
			ok, verr = s.verifier.VerifyTotals(ctx, items, req.CalculatedTotals, req.BuyerID, req.CouponCode)
			if verr != nil {
				return nil, verr
			}
		}
		if !ok {
			s.auditFailure(req, "price tampering detected")
			return nil, model.ErrPriceTampering
		}
	}

	sellerID := req.SellerID
	if sellerID == "" && len(breakdown.Lines) > 0 {
		sellerID = breakdown.Lines[0].SellerID
	}

	lines := make([]inventory.Line, len(items))
	for i, item := range items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start checkout transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback checkout transaction")
			}
		}
	}()

	// Step 4: pre-payment stock validation under row locks.
	if err = s.reserver.ReserveAndValidate(ctx, tx, lines); err != nil {
		s.auditFailure(req, "stock validation failed")
		return nil, err
	}

	// Step 5: persist the order with its immutable pricing snapshot.
	now := time.Now()
	order := &model.Order{
		ID:              uuid.New(),
		BuyerID:         req.BuyerID,
		SellerID:        sellerID,
		Status:          model.OrderStatusProcessing,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   req.Payment.Method,
		Pricing:         *breakdown,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.OrderNumber = newOrderNumber(order.ID, now)

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	orderItems := orderItemsFromBreakdown(order.ID, breakdown)
	if err = s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
		return nil, err
	}

	// Step 6: settle the payment with the server-computed total. The
	// client never dictates the amount.
	result, err := s.settlePayment(ctx, req.Payment, breakdown.RoundedTotal())
	if err != nil {
		s.auditFailure(req, "payment settlement failed")
		return nil, err
	}

	// Step 7: record the settlement.
	record := &model.PaymentRecord{
		ID:                uuid.New(),
		ProviderPaymentID: result.TransactionID,
		OrderReference:    order.OrderNumber,
		BuyerID:           req.BuyerID,
		Amount:            breakdown.RoundedTotal(),
		Currency:          s.currency,
		Status:            model.PaymentRecordCompleted,
		Method:            result.Method,
		RequestItems:      requestItems(items),
		CouponCode:        req.CouponCode,
		ShippingAddress:   req.ShippingAddress,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err = s.paymentRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	if err = s.orderRepo.UpdatePaymentInfo(ctx, tx, order.ID, record.ID, record.Method, model.OrderStatusPaid, model.PaymentStatusCompleted); err != nil {
		return nil, err
	}
	order.PaymentID = &record.ID
	order.Status = model.OrderStatusPaid
	order.PaymentStatus = model.PaymentStatusCompleted

	// Step 9: fan out into one settlement sub-order per seller.
	sellerOrders := splitSellerOrders(order.ID, breakdown, s.pricingCfg.MaxShippingShare, s.pricingCfg.PlatformFeePct, now)
	for i := range sellerOrders {
		if err = s.sellerOrderRepo.Create(ctx, tx, &sellerOrders[i]); err != nil {
			return nil, err
		}
		if err = s.orderRepo.AttachSellerOrder(ctx, tx, order.ID, sellerOrders[i].SellerID, sellerOrders[i].ID); err != nil {
			return nil, err
		}
	}

	// Step 10: commit the stock decrement. Stock may have moved since the
	// pre-check; exhaustion here aborts the whole saga.
	if err = s.reserver.CommitDecrement(ctx, tx, lines); err != nil {
		s.auditFailure(req, "stock commit failed")
		return nil, err
	}

	// Step 11: best-effort cart clearing; losing this is an inconvenience,
	// not a money problem.
	if fromCart {
		if cerr := s.cartRepo.ClearCart(ctx, tx, cartID); cerr != nil {
			s.logger.Warn().Err(cerr).Str("cart_id", cartID.String()).Msg("failed to clear cart after checkout")
		}
	}

	// Step 12: consume the coupon, non-reentrant.
	if breakdown.CouponCode != "" {
		if err = s.couponRepo.MarkAsUsed(ctx, tx, breakdown.CouponCode, req.BuyerID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit checkout transaction: %w", err)
	}

	// Step 8 (post-commit): emit the domain event exactly once, guarded by
	// a marker keyed on the gateway transaction id.
	s.emitOrderCreated(ctx, order, orderItems, result.TransactionID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("buyer_id", req.BuyerID).
		Int("seller_count", len(sellerOrders)).
		Str("total", breakdown.RoundedTotal().String()).
		Msg("checkout completed")

	return &model.CheckoutResponse{
		Success:      true,
		Order:        order,
		SellerOrders: sellerOrders,
		Payment:      record,
		PricingInfo:  breakdown,
	}, nil
}

// GetOrder retrieves an order with its items.
func (s *checkoutService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// resolveItems returns the lines to check out: explicit request items take
// precedence, otherwise the buyer's persisted cart.
func (s *checkoutService) resolveItems(ctx context.Context, req *model.CheckoutRequest) ([]model.CheckoutItem, uuid.UUID, bool, error) {
	if len(req.Items) > 0 {
		for i, item := range req.Items {
			if item.ProductID == "" {
				return nil, uuid.Nil, false, fmt.Errorf("item %d: %w", i, model.ErrInvalidLineItem)
			}
			if item.Quantity <= 0 {
				return nil, uuid.Nil, false, model.ErrInvalidQuantity
			}
		}
		return req.Items, uuid.Nil, false, nil
	}

	cart, err := s.cartRepo.FindByUserID(ctx, req.BuyerID)
	if err != nil {
		return nil, uuid.Nil, false, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, uuid.Nil, false, model.NewDomainError(model.ErrCodeValidation, "no items to check out")
	}

	items := make([]model.CheckoutItem, len(cart.Items))
	for i, ci := range cart.Items {
		items[i] = model.CheckoutItem{ProductID: ci.ProductID, Quantity: ci.Quantity}
	}
	return items, cart.ID, true, nil
}

// emitOrderCreated publishes the domain event guarded by an idempotency
// marker. Emission problems are logged, never allowed to fail a checkout
// that already settled.
func (s *checkoutService) emitOrderCreated(ctx context.Context, order *model.Order, items []model.OrderItem, transactionID string) {
	key := "order-created:" + transactionID
	claimed, err := s.markers.Claim(ctx, key, s.markerTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("idempotency marker unavailable, emitting anyway")
	} else if !claimed {
		s.logger.Warn().Str("key", key).Msg("duplicate order created emission skipped")
		return
	}

	event := &events.OrderCreated{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		Total:         order.Pricing.RoundedTotal(),
		Subtotal:      order.Pricing.SubtotalAfterDiscounts,
		Items:         items,
		PaymentStatus: string(order.PaymentStatus),
		OccurredAt:    time.Now(),
	}
	if perr := s.publisher.PublishOrderCreated(ctx, event); perr != nil {
		s.logger.Error().Err(perr).Str("order_id", order.ID.String()).Msg("failed to publish order created event")
	}
}

// auditFailure records a failed attempt with request context, without
// secrets. The audit trail must never block the primary flow.
func (s *checkoutService) auditFailure(req *model.CheckoutRequest, reason string) {
	s.logger.Warn().
		Str("buyer_id", req.BuyerID).
		Int("item_count", len(req.Items)).
		Str("payment_method", req.Payment.Method).
		Str("reason", reason).
		Msg("checkout attempt failed")
}

// settlePayment resolves the payment for a checkout attempt. Payloads that
// carry a widget resource token or a simulated test confirmation are
// verified through the normalizer, and the verified outcome is the
// settlement; plain payment methods are charged directly on the gateway.
func (s *checkoutService) settlePayment(ctx context.Context, payload model.ConfirmationPayload, amount decimal.Decimal) (*model.GatewayResult, error) {
	source := payment.DetectSource(&payload)
	if source != model.SourceWidget && source != model.SourceTest {
		result, err := s.gateway.ProcessPayment(ctx, payload, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", model.ErrGatewayUnavailable, err.Error())
		}
		if !result.Success {
			return nil, paymentFailure(result)
		}
		return result, nil
	}

	outcome := s.normalizer.Validate(ctx, &payload)
	if !outcome.Success {
		switch outcome.ErrorCode {
		case model.ErrCodeGatewayUnavailable:
			return nil, model.ErrGatewayUnavailable
		case model.ErrCodePaymentAuthFailed:
			return nil, model.ErrPaymentAuthFailed
		case model.ErrCodeValidation:
			return nil, model.NewDomainError(model.ErrCodeValidation, outcome.ErrorMessage)
		default:
			return nil, model.ErrPaymentDeclined
		}
	}

	s.logger.Info().
		Str("source", string(outcome.Source)).
		Str("transaction_id", outcome.TransactionID).
		Bool("simulated", outcome.Simulated).
		Msg("payment confirmation verified")

	method := outcome.Method
	if method == "" {
		method = payload.Method
	}
	transactionID := outcome.TransactionID
	if transactionID == "" {
		transactionID = "test_" + uuid.NewString()
	}

	return &model.GatewayResult{
		Success:       true,
		TransactionID: transactionID,
		Amount:        amount,
		Method:        method,
	}, nil
}

// paymentFailure maps an unsuccessful gateway result onto the domain error
// taxonomy so the caller sees an actionable, non-leaky message.
func paymentFailure(result *model.GatewayResult) error {
	_, errCode := payment.ClassifyResultCode(strings.ToUpper(result.ResultCode))
	switch errCode {
	case model.ErrCodePaymentAuthFailed:
		return model.ErrPaymentAuthFailed
	case model.ErrCodeGatewayUnavailable:
		return model.ErrGatewayUnavailable
	default:
		return model.ErrPaymentDeclined
	}
}

// requestItems snapshots the requested lines for the payment record.
func requestItems(items []model.CheckoutItem) []model.PaymentRequestItem {
	out := make([]model.PaymentRequestItem, len(items))
	for i, item := range items {
		out[i] = model.PaymentRequestItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
