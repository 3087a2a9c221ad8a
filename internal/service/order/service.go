// Package order manages the lifecycle of existing orders: cancellation,
// the refund approval flow and shipping-status changes.
package order

import (
	"context"
	"fmt"
	"io"
	"log"

	"heavenly-backend/internal/domain"
	"heavenly-backend/internal/payment"
	orderrepo "heavenly-backend/internal/repository/order"
	"heavenly-backend/internal/service/notify"
)

// Fee percentages applied to refunds, kept as integers over minor units.
const (
	cancellationFeePercent = 5
	refundFeePercent       = 10
)

type repo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error)
	UpdateLifecycle(ctx context.Context, up orderrepo.LifecycleUpdate) (*domain.Order, error)
}

type refunder interface {
	CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*payment.Refund, error)
}

type mailer interface {
	SendCancellationConfirmation(ctx context.Context, to, orderID string) error
	SendRefundUpdate(ctx context.Context, to, orderID string, amountCents int64) error
	SendStatusUpdate(ctx context.Context, to, orderID, status string) error
}

type dispatcher interface {
	Notify(ctx context.Context, rec domain.Recipient, orderID, statusLabel, message string, extra map[string]interface{}) (*notify.Payload, error)
}

// Service applies lifecycle transitions. Every mutation goes through a
// compare-and-swap on the order's version so concurrent admin actions
// surface as domain.ErrConflict instead of silently overwriting.
type Service struct {
	orders   repo
	gateway  refunder
	mail     mailer
	notifier dispatcher
	logger   *log.Logger
}

func New(orders repo, gateway refunder, mail mailer, notifier dispatcher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{orders: orders, gateway: gateway, mail: mail, notifier: notifier, logger: logger}
}

func percentFee(totalCents int64, percent int) int64 {
	return (totalCents*int64(percent) + 50) / 100
}

// Cancel cancels a still-pending order, refunding the total minus a 5% fee.
// The gateway refund is issued before any state is written: if the refund
// call fails the order is left exactly as it was.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	ord, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if ord.ShippingStatus != domain.ShippingPending {
		return nil, fmt.Errorf("%w: order cannot be cancelled at this stage", domain.ErrInvalidState)
	}

	fee := percentFee(ord.TotalCents, cancellationFeePercent)
	refundAmount := ord.TotalCents - fee
	if _, err := s.gateway.CreateRefund(ctx, ord.PaymentIntentID, refundAmount); err != nil {
		return nil, fmt.Errorf("refund for cancelled order %s: %w", ord.ID, err)
	}

	refund := ord.Refund
	refund.Refunded = true
	refund.RefundAmount = refundAmount
	refund.CancellationFee = fee
	updated, err := s.orders.UpdateLifecycle(ctx, orderrepo.LifecycleUpdate{
		OrderID:         ord.ID,
		ExpectedVersion: ord.Version,
		ShippingStatus:  domain.ShippingCancelled,
		Refund:          refund,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mail.SendCancellationConfirmation(ctx, updated.Email, updated.ID); err != nil {
		s.logger.Printf("order: cancellation email for %s: %v", updated.ID, err)
	}
	if err := s.mail.SendRefundUpdate(ctx, updated.Email, updated.ID, refundAmount); err != nil {
		s.logger.Printf("order: refund email for %s: %v", updated.ID, err)
	}
	s.notifyBestEffort(ctx, domain.AdminRecipient(), updated.ID, string(updated.ShippingStatus),
		fmt.Sprintf("User cancelled order #%s.", shortID(updated.ID)), nil)
	s.notifyBestEffort(ctx, domain.UserRecipient(updated.UserID), updated.ID, string(updated.ShippingStatus),
		fmt.Sprintf("Order cancelled. A 5%% fee of %d was applied, so your refund amount is %d.", fee, refundAmount), nil)
	return updated, nil
}

// RequestRefund opens the admin approval flow for a delivered order.
func (s *Service) RequestRefund(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	ord, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if ord.ShippingStatus != domain.ShippingDelivered {
		return nil, fmt.Errorf("%w: refunds are only available for delivered orders", domain.ErrInvalidState)
	}
	if ord.Refund.AdminApproval == domain.RefundApprovalApproved || ord.Refund.AdminApproval == domain.RefundApprovalRejected {
		return nil, fmt.Errorf("%w: refund request has already been processed", domain.ErrInvalidState)
	}

	refund := ord.Refund
	refund.AdminApproval = domain.RefundApprovalPending
	updated, err := s.orders.UpdateLifecycle(ctx, orderrepo.LifecycleUpdate{
		OrderID:         ord.ID,
		ExpectedVersion: ord.Version,
		ShippingStatus:  ord.ShippingStatus,
		Refund:          refund,
	})
	if err != nil {
		return nil, err
	}

	s.notifyBestEffort(ctx, domain.AdminRecipient(), updated.ID, "Refund Requested",
		fmt.Sprintf("User %s requested a refund for order #%s", updated.UserID, shortID(updated.ID)), nil)
	return updated, nil
}

// DecideRefund records the admin's approve/reject decision. Approval also
// moves the order to Refunded; the money itself moves in ExecuteRefund.
func (s *Service) DecideRefund(ctx context.Context, orderID string, decision domain.RefundApproval) (*domain.Order, error) {
	if decision != domain.RefundApprovalApproved && decision != domain.RefundApprovalRejected {
		return nil, fmt.Errorf("%w: decision must be Approved or Rejected", domain.ErrValidation)
	}
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Refund.AdminApproval != domain.RefundApprovalPending {
		return nil, fmt.Errorf("%w: refund request has already been processed", domain.ErrInvalidState)
	}

	refund := ord.Refund
	refund.AdminApproval = decision
	status := ord.ShippingStatus
	if decision == domain.RefundApprovalApproved {
		status = domain.ShippingRefunded
	}
	updated, err := s.orders.UpdateLifecycle(ctx, orderrepo.LifecycleUpdate{
		OrderID:         ord.ID,
		ExpectedVersion: ord.Version,
		ShippingStatus:  status,
		Refund:          refund,
	})
	if err != nil {
		return nil, err
	}

	extra := map[string]interface{}{"refundApproval": string(decision)}
	verb := "approved"
	if decision == domain.RefundApprovalRejected {
		verb = "rejected"
	}
	s.notifyBestEffort(ctx, domain.UserRecipient(updated.UserID), updated.ID, string(updated.ShippingStatus),
		fmt.Sprintf("Your refund request has been %s.", verb), extra)
	s.notifyBestEffort(ctx, domain.AdminRecipient(), updated.ID, string(updated.ShippingStatus),
		fmt.Sprintf("Refund request for order #%s has been %s.", shortID(updated.ID), verb), extra)
	return updated, nil
}

// ExecuteRefund moves the money for an approved refund, minus a 10% fee.
func (s *Service) ExecuteRefund(ctx context.Context, orderID string) (*domain.Order, *payment.Refund, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if ord.Refund.AdminApproval != domain.RefundApprovalApproved {
		return nil, nil, fmt.Errorf("%w: refund is not approved yet", domain.ErrInvalidState)
	}
	if ord.Refund.Refunded {
		return nil, nil, fmt.Errorf("%w: order has already been refunded", domain.ErrConflict)
	}
	if ord.PaymentIntentID == "" {
		return nil, nil, fmt.Errorf("%w: no payment transaction on file", domain.ErrValidation)
	}

	fee := percentFee(ord.TotalCents, refundFeePercent)
	refundAmount := ord.TotalCents - fee
	gwRefund, err := s.gateway.CreateRefund(ctx, ord.PaymentIntentID, refundAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("refund for order %s: %w", ord.ID, err)
	}

	refund := ord.Refund
	refund.Refunded = true
	refund.RefundAmount = refundAmount
	refund.RefundFee = fee
	updated, err := s.orders.UpdateLifecycle(ctx, orderrepo.LifecycleUpdate{
		OrderID:         ord.ID,
		ExpectedVersion: ord.Version,
		ShippingStatus:  domain.ShippingRefunded,
		Refund:          refund,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.mail.SendRefundUpdate(ctx, updated.Email, updated.ID, refundAmount); err != nil {
		s.logger.Printf("order: refund email for %s: %v", updated.ID, err)
	}
	s.notifyBestEffort(ctx, domain.UserRecipient(updated.UserID), updated.ID, string(updated.ShippingStatus),
		fmt.Sprintf("Refund processed successfully. A 10%% fee of %d was applied, so your refund amount is %d.", fee, refundAmount), nil)
	return updated, gwRefund, nil
}

// UpdateShippingStatus lets an admin set any shipping status. Transitions
// are deliberately unrestricted beyond enum membership so support staff can
// correct mis-set orders; the refund flow keeps its own stricter guards.
func (s *Service) UpdateShippingStatus(ctx context.Context, orderID string, status domain.ShippingStatus) (*domain.Order, error) {
	if !domain.ValidShippingStatus(status) {
		return nil, fmt.Errorf("%w: unknown shipping status %q", domain.ErrValidation, status)
	}
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.UpdateLifecycle(ctx, orderrepo.LifecycleUpdate{
		OrderID:         ord.ID,
		ExpectedVersion: ord.Version,
		ShippingStatus:  status,
		Refund:          ord.Refund,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mail.SendStatusUpdate(ctx, updated.Email, updated.ID, string(status)); err != nil {
		s.logger.Printf("order: status email for %s: %v", updated.ID, err)
	}
	s.notifyBestEffort(ctx, domain.UserRecipient(updated.UserID), updated.ID, string(status),
		fmt.Sprintf("Your order is now %s.", status), nil)
	return updated, nil
}

// Page describes the pagination of a ListForUser result.
type Page struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// ListForUser returns the user's orders newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page, limit int) ([]domain.Order, Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	orders, total, err := s.orders.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, Page{}, err
	}
	pages := (total + limit - 1) / limit
	return orders, Page{Total: total, Page: page, Pages: pages}, nil
}

// VerifyBySession resolves the buyer's paid order for a checkout session;
// the success page polls this after the gateway redirect.
func (s *Service) VerifyBySession(ctx context.Context, sessionID, userID string) (*domain.Order, error) {
	ord, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID || ord.PaymentStatus != domain.PaymentPaid {
		return nil, domain.ErrNotFound
	}
	return ord, nil
}

func (s *Service) notifyBestEffort(ctx context.Context, rec domain.Recipient, orderID, statusLabel, message string, extra map[string]interface{}) {
	if _, err := s.notifier.Notify(ctx, rec, orderID, statusLabel, message, extra); err != nil {
		s.logger.Printf("order: notification for %s to %s: %v", orderID, rec.Key(), err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
