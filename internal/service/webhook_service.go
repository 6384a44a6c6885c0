package service

import (
	"context"
	"fmt"
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
)

// webhookService reconciles asynchronous provider confirmations against the
// order store. Confirmations may arrive before, after, or instead of the
// synchronous checkout result, and may be delivered more than once.
type webhookService struct {
	orderRepo       repository.OrderRepository
	sellerOrderRepo repository.SellerOrderRepository
	couponRepo      repository.CouponRepository
	paymentRepo     repository.PaymentRepository
	calc            *pricing.Calculator
	reserver        *inventory.Reserver
	normalizer      *payment.Normalizer
	markers         idempotency.Store
	publisher       events.Publisher
	pricingCfg      config.PricingConfig
	markerTTL       time.Duration
	logger          zerolog.Logger
}

// NewWebhookService creates a new webhook reconciliation service.
func NewWebhookService(
	orderRepo repository.OrderRepository,
	sellerOrderRepo repository.SellerOrderRepository,
	couponRepo repository.CouponRepository,
	paymentRepo repository.PaymentRepository,
	calc *pricing.Calculator,
	reserver *inventory.Reserver,
	normalizer *payment.Normalizer,
	markers idempotency.Store,
	publisher events.Publisher,
	pricingCfg config.PricingConfig,
	markerTTL time.Duration,
	logger zerolog.Logger,
) WebhookService {
	return &webhookService{
		orderRepo:       orderRepo,
		sellerOrderRepo: sellerOrderRepo,
		couponRepo:      couponRepo,
		paymentRepo:     paymentRepo,
		calc:            calc,
		reserver:        reserver,
		normalizer:      normalizer,
		markers:         markers,
		publisher:       publisher,
		pricingCfg:      pricingCfg,
		markerTTL:       markerTTL,
		logger:          logger.With().Str("service", "webhook").Logger(),
	}
}

// HandleWebhook processes one inbound provider confirmation. Duplicates are
// acknowledged without side effects; unknown payment references are
// rejected so the provider keeps retrying until the payment record exists.
func (s *webhookService) HandleWebhook(ctx context.Context, payload *model.ConfirmationPayload) (*model.WebhookResult, error) {
	if payload == nil {
		return nil, model.NewDomainError(model.ErrCodeValidation, "empty webhook payload")
	}
	payload.Source = model.SourceWebhook

	outcome := s.normalizer.Validate(ctx, payload)
	if outcome.ErrorCode == model.ErrCodeValidation || outcome.ErrorCode == model.ErrCodeUnknownSource {
		return nil, model.NewDomainError(outcome.ErrorCode, outcome.ErrorMessage)
	}

	providerID := payload.ProviderPaymentID
	if providerID == "" {
		providerID = payload.TransactionID
	}
	if providerID == "" {
		return nil, model.NewDomainError(model.ErrCodeValidation, "webhook payload carries no payment identifier")
	}

	// The marker is keyed by payment id and normalized state so redelivery
	// of the same confirmation is a no-op, while a later SUCCESS after a
	// PENDING, or a REFUNDED after a SUCCESS, is still processed.
	markerKey := "webhook:" + providerID + ":" + string(outcome.State)
	seen, err := s.markers.Seen(ctx, markerKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider_payment_id", providerID).Msg("duplicate check unavailable, proceeding")
	} else if seen {
		s.logger.Info().Str("provider_payment_id", providerID).Msg("duplicate webhook acknowledged")
		return &model.WebhookResult{Success: true, Status: string(outcome.State), Duplicate: true}, nil
	}

	record, err := s.paymentRepo.FindByProviderPaymentID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// The checkout that created this payment may not have committed
		// yet. Rejecting tells the provider to retry later.
		s.logger.Error().Str("provider_payment_id", providerID).Msg("webhook for unknown payment")
		return nil, model.ErrPaymentNotFound
	}

	var result *model.WebhookResult
	switch outcome.State {
	case model.OutcomeSuccess:
		result, err = s.applySuccess(ctx, record, payload)
	case model.OutcomePending:
		result = &model.WebhookResult{Success: true, PaymentID: record.ID.String(), Status: string(model.PaymentRecordPending)}
	case model.OutcomeFailed, model.OutcomeCancelled, model.OutcomeRefunded:
		result, err = s.applyTerminalFailure(ctx, record, outcome.State)
	default:
		return nil, model.NewDomainError(model.ErrCodeValidation, "unhandled payment state: "+string(outcome.State))
	}
	if err != nil {
		return nil, err
	}

	if _, cerr := s.markers.Claim(ctx, markerKey, s.markerTTL); cerr != nil {
		s.logger.Warn().Err(cerr).Str("provider_payment_id", providerID).Msg("failed to record webhook marker")
	}

	return result, nil
}

// applySuccess reconciles a successful confirmation: if the order already
// exists the statuses are propagated, otherwise the order is materialised
// from the stored payment request.
func (s *webhookService) applySuccess(ctx context.Context, record *model.PaymentRecord, payload *model.ConfirmationPayload) (*model.WebhookResult, error) {
	order, err := s.orderRepo.FindByPaymentID(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	if order != nil {
		if err := s.propagateSuccess(ctx, record, order); err != nil {
			return nil, err
		}
		return &model.WebhookResult{Success: true, PaymentID: record.ID.String(), Status: string(model.PaymentRecordCompleted)}, nil
	}

	order, err = s.materializeOrder(ctx, record, payload)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0)
	if order != nil {
		_, items, err = s.orderRepo.GetByID(ctx, order.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to reload order items for event emission")
			err = nil
		}
		s.emitOrderCreated(ctx, order, items, record.ProviderPaymentID)
	}

	return &model.WebhookResult{Success: true, PaymentID: record.ID.String(), Status: string(model.PaymentRecordCompleted)}, nil
}

// propagateSuccess marks an existing order, its seller orders and the
// payment record as settled.
func (s *webhookService) propagateSuccess(ctx context.Context, record *model.PaymentRecord, order *model.Order) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start webhook transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback webhook transaction")
			}
		}
	}()

	if err = s.orderRepo.UpdatePaymentInfo(ctx, tx, order.ID, record.ID, record.Method, model.OrderStatusPaid, model.PaymentStatusCompleted); err != nil {
		return err
	}
	if err = s.sellerOrderRepo.UpdatePaymentStatusByOrder(ctx, tx, order.ID, model.PaymentStatusCompleted); err != nil {
		return err
	}
	if err = s.paymentRepo.UpdateStatus(ctx, tx, record.ID, model.PaymentRecordCompleted); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit webhook transaction: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("provider_payment_id", record.ProviderPaymentID).
		Msg("payment confirmation propagated to existing order")

	return nil
}

// materializeOrder builds the order the synchronous checkout never
// persisted, strictly from the stored payment request. Items embedded in
// the inbound payload are never trusted for this.
func (s *webhookService) materializeOrder(ctx context.Context, record *model.PaymentRecord, payload *model.ConfirmationPayload) (order *model.Order, err error) {
	now := time.Now()

	if len(record.RequestItems) == 0 {
		return s.materializeDegraded(ctx, record, now)
	}

	items := make([]model.CheckoutItem, len(record.RequestItems))
	for i, ri := range record.RequestItems {
		items[i] = model.CheckoutItem{ProductID: ri.ProductID, Quantity: ri.Quantity}
	}

	// The coupon may have expired or been consumed since the payment was
	// taken; the money already moved, so pricing proceeds without it
	// rather than failing the reconciliation.
	breakdown, err := s.calc.CalculateWithOptions(ctx, items, record.BuyerID, record.CouponCode, pricing.Options{BestEffortCoupon: true})
	if err != nil {
		return nil, err
	}

	lines := make([]inventory.Line, len(items))
	for i, item := range items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start webhook transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback webhook transaction")
			}
		}
	}()

	order = &model.Order{
		ID:              uuid.New(),
		BuyerID:         record.BuyerID,
		Status:          model.OrderStatusPaid,
		PaymentStatus:   model.PaymentStatusCompleted,
		PaymentID:       &record.ID,
		PaymentMethod:   record.Method,
		Pricing:         *breakdown,
		ShippingAddress: record.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if len(breakdown.Lines) > 0 {
		order.SellerID = breakdown.Lines[0].SellerID
	}
	order.OrderNumber = newOrderNumber(order.ID, now)

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err = s.orderRepo.CreateOrderItems(ctx, tx, orderItemsFromBreakdown(order.ID, breakdown)); err != nil {
		return nil, err
	}
	if err = s.orderRepo.UpdatePaymentInfo(ctx, tx, order.ID, record.ID, record.Method, model.OrderStatusPaid, model.PaymentStatusCompleted); err != nil {
		return nil, err
	}

	sellerOrders := splitSellerOrders(order.ID, breakdown, s.pricingCfg.MaxShippingShare, s.pricingCfg.PlatformFeePct, now)
	for i := range sellerOrders {
		if err = s.sellerOrderRepo.Create(ctx, tx, &sellerOrders[i]); err != nil {
			return nil, err
		}
		if err = s.orderRepo.AttachSellerOrder(ctx, tx, order.ID, sellerOrders[i].SellerID, sellerOrders[i].ID); err != nil {
			return nil, err
		}
	}

	if err = s.reserver.CommitDecrement(ctx, tx, lines); err != nil {
		return nil, err
	}

	if breakdown.CouponCode != "" {
		// Best effort: the coupon may have been consumed by another order
		// in the meantime, which must not undo a settled payment.
		if cerr := s.couponRepo.MarkAsUsed(ctx, tx, breakdown.CouponCode, record.BuyerID); cerr != nil {
			s.logger.Warn().Err(cerr).Str("coupon", breakdown.CouponCode).Msg("coupon could not be consumed during reconciliation")
		}
	}

	if err = s.paymentRepo.UpdateStatus(ctx, tx, record.ID, model.PaymentRecordCompleted); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit webhook transaction: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("provider_payment_id", record.ProviderPaymentID).
		Msg("order materialised from webhook confirmation")

	return order, nil
}

// materializeDegraded creates an amount-only order when the payment record
// carries no request items. The money moved and must be accounted for, but
// the missing item data is an upstream defect worth alerting on.
func (s *webhookService) materializeDegraded(ctx context.Context, record *model.PaymentRecord, now time.Time) (order *model.Order, err error) {
	s.logger.Error().
		Str("payment_id", record.ID.String()).
		Str("provider_payment_id", record.ProviderPaymentID).
		Msg("payment record carries no request items, creating amount-only order")

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start webhook transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback webhook transaction")
			}
		}
	}()

	order = &model.Order{
		ID:              uuid.New(),
		BuyerID:         record.BuyerID,
		Status:          model.OrderStatusPaid,
		PaymentStatus:   model.PaymentStatusCompleted,
		PaymentID:       &record.ID,
		PaymentMethod:   record.Method,
		Pricing:         model.PricingBreakdown{Total: record.Amount},
		ShippingAddress: record.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.OrderNumber = newOrderNumber(order.ID, now)

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err = s.orderRepo.UpdatePaymentInfo(ctx, tx, order.ID, record.ID, record.Method, model.OrderStatusPaid, model.PaymentStatusCompleted); err != nil {
		return nil, err
	}
	if err = s.paymentRepo.UpdateStatus(ctx, tx, record.ID, model.PaymentRecordCompleted); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit webhook transaction: %w", err)
	}

	return order, nil
}

// applyTerminalFailure records a failed, cancelled or refunded payment and
// propagates it to the order when one exists. Stock is not restocked here;
// cancellation flows own that.
func (s *webhookService) applyTerminalFailure(ctx context.Context, record *model.PaymentRecord, state model.OutcomeState) (result *model.WebhookResult, err error) {
	status := model.PaymentRecordFailed
	switch state {
	case model.OutcomeCancelled:
		status = model.PaymentRecordCancelled
	case model.OutcomeRefunded:
		status = model.PaymentRecordRefunded
	}

	order, err := s.orderRepo.FindByPaymentID(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start webhook transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback webhook transaction")
			}
		}
	}()

	if err = s.paymentRepo.UpdateStatus(ctx, tx, record.ID, status); err != nil {
		return nil, err
	}
	if order != nil {
		if err = s.orderRepo.UpdatePaymentInfo(ctx, tx, order.ID, record.ID, record.Method, order.Status, model.PaymentStatusFailed); err != nil {
			return nil, err
		}
		if err = s.sellerOrderRepo.UpdatePaymentStatusByOrder(ctx, tx, order.ID, model.PaymentStatusFailed); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit webhook transaction: %w", err)
	}

	s.logger.Info().
		Str("provider_payment_id", record.ProviderPaymentID).
		Str("status", string(status)).
		Msg("terminal payment state recorded")

	return &model.WebhookResult{Success: true, PaymentID: record.ID.String(), Status: string(status)}, nil
}

// emitOrderCreated publishes the domain event guarded by the same marker
// the synchronous checkout path uses, so a race between the two paths emits
// at most once.
func (s *webhookService) emitOrderCreated(ctx context.Context, order *model.Order, items []model.OrderItem, providerPaymentID string) {
	key := "order-created:" + providerPaymentID
	claimed, err := s.markers.Claim(ctx, key, s.markerTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("idempotency marker unavailable, emitting anyway")
	} else if !claimed {
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
