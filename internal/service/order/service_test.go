package order

import (
	"context"
	"errors"
	"testing"

	"heavenly-backend/internal/domain"
	"heavenly-backend/internal/payment"
	orderrepo "heavenly-backend/internal/repository/order"
	"heavenly-backend/internal/service/notify"
)

// memoryOrders applies lifecycle updates with the same compare-and-swap
// semantics as the postgres repository.
type memoryOrders struct {
	byID      map[string]domain.Order
	updateErr error
}

func newMemoryOrders(orders ...domain.Order) *memoryOrders {
	r := &memoryOrders{byID: make(map[string]domain.Order)}
	for _, o := range orders {
		r.byID[o.ID] = o
	}
	return r
}

func (r *memoryOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := o
	return &clone, nil
}

func (r *memoryOrders) GetByIDForUser(_ context.Context, id, userID string) (*domain.Order, error) {
	o, ok := r.byID[id]
	if !ok || o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	clone := o
	return &clone, nil
}

func (r *memoryOrders) GetBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	for _, o := range r.byID {
		if o.CheckoutSessionID == sessionID {
			clone := o
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryOrders) ListByUser(_ context.Context, userID string, page, limit int) ([]domain.Order, int, error) {
	var all []domain.Order
	for _, o := range r.byID {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memoryOrders) UpdateLifecycle(_ context.Context, up orderrepo.LifecycleUpdate) (*domain.Order, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	o, ok := r.byID[up.OrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Version != up.ExpectedVersion {
		return nil, domain.ErrConflict
	}
	o.ShippingStatus = up.ShippingStatus
	o.Refund = up.Refund
	o.Version++
	r.byID[up.OrderID] = o
	clone := o
	return &clone, nil
}

type stubRefunder struct {
	refunds   []payment.Refund
	refundErr error
}

func (g *stubRefunder) CreateRefund(_ context.Context, paymentIntentID string, amountCents int64) (*payment.Refund, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	ref := payment.Refund{ID: "re_1", AmountCents: amountCents}
	g.refunds = append(g.refunds, ref)
	return &ref, nil
}

type stubMailer struct{ sent []string }

func (m *stubMailer) SendCancellationConfirmation(_ context.Context, to, orderID string) error {
	m.sent = append(m.sent, "cancel:"+to)
	return nil
}

func (m *stubMailer) SendRefundUpdate(_ context.Context, to, orderID string, amountCents int64) error {
	m.sent = append(m.sent, "refund:"+to)
	return nil
}

func (m *stubMailer) SendStatusUpdate(_ context.Context, to, orderID, status string) error {
	m.sent = append(m.sent, "status:"+to)
	return nil
}

type stubDispatcher struct{ recipients []domain.Recipient }

func (d *stubDispatcher) Notify(_ context.Context, rec domain.Recipient, orderID, statusLabel, message string, extra map[string]interface{}) (*notify.Payload, error) {
	d.recipients = append(d.recipients, rec)
	return &notify.Payload{ID: "n-1", OrderID: orderID}, nil
}

func pendingOrder() domain.Order {
	return domain.Order{
		ID:              "order-1",
		UserID:          "user-1",
		Email:           "buyer@example.com",
		TotalCents:      10000,
		Currency:        "USD",
		PaymentIntentID: "pi_1",
		ShippingStatus:  domain.ShippingPending,
		PaymentStatus:   domain.PaymentPaid,
		Version:         1,
	}
}

func newService(repo *memoryOrders) (*Service, *stubRefunder, *stubMailer, *stubDispatcher) {
	gw := &stubRefunder{}
	mail := &stubMailer{}
	disp := &stubDispatcher{}
	return New(repo, gw, mail, disp, nil), gw, mail, disp
}

func TestCancel_RefundsTotalMinusFee(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, gw, mail, _ := newService(repo)

	updated, err := svc.Cancel(context.Background(), "order-1", "user-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.ShippingStatus != domain.ShippingCancelled {
		t.Fatalf("status = %s", updated.ShippingStatus)
	}
	if updated.Refund.CancellationFee != 500 || updated.Refund.RefundAmount != 9500 {
		t.Fatalf("fee bookkeeping = %+v, want fee 500 refund 9500", updated.Refund)
	}
	if !updated.Refund.Refunded {
		t.Fatal("order must be marked refunded")
	}
	if len(gw.refunds) != 1 || gw.refunds[0].AmountCents != 9500 {
		t.Fatalf("gateway refunds = %+v", gw.refunds)
	}
	if len(mail.sent) != 2 {
		t.Fatalf("expected cancellation and refund emails, got %v", mail.sent)
	}
}

func TestCancel_OnlyPendingOrders(t *testing.T) {
	for _, status := range []domain.ShippingStatus{domain.ShippingShipped, domain.ShippingDelivered, domain.ShippingCancelled} {
		ord := pendingOrder()
		ord.ShippingStatus = status
		repo := newMemoryOrders(ord)
		svc, gw, _, _ := newService(repo)

		_, err := svc.Cancel(context.Background(), "order-1", "user-1")
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("status %s: expected invalid state, got %v", status, err)
		}
		if len(gw.refunds) != 0 {
			t.Fatalf("status %s: no refund may be issued", status)
		}
	}
}

func TestCancel_WrongUserGetsNotFound(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, _, _, _ := newService(repo)

	_, err := svc.Cancel(context.Background(), "order-1", "someone-else")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel_GatewayFailureLeavesOrderUntouched(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, gw, _, _ := newService(repo)
	gw.refundErr = errors.New("gateway down")

	_, err := svc.Cancel(context.Background(), "order-1", "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	stored, _ := repo.GetByID(context.Background(), "order-1")
	if stored.ShippingStatus != domain.ShippingPending || stored.Refund.Refunded {
		t.Fatalf("order mutated despite refund failure: %+v", stored)
	}
}

func TestCancel_ConcurrentUpdateConflicts(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, _, _, _ := newService(repo)
	repo.updateErr = domain.ErrConflict

	_, err := svc.Cancel(context.Background(), "order-1", "user-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRequestRefund_DeliveredOnly(t *testing.T) {
	ord := pendingOrder()
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	_, err := svc.RequestRefund(context.Background(), "order-1", "user-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for pending order, got %v", err)
	}
}

func TestRequestRefund_OpensPendingApproval(t *testing.T) {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingDelivered
	repo := newMemoryOrders(ord)
	svc, _, _, disp := newService(repo)

	updated, err := svc.RequestRefund(context.Background(), "order-1", "user-1")
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if updated.Refund.AdminApproval != domain.RefundApprovalPending {
		t.Fatalf("approval = %q", updated.Refund.AdminApproval)
	}
	if updated.ShippingStatus != domain.ShippingDelivered {
		t.Fatal("requesting a refund must not change the shipping status")
	}
	if len(disp.recipients) != 1 || disp.recipients[0].Kind != domain.RecipientAdmin {
		t.Fatalf("admin must be notified, got %+v", disp.recipients)
	}
}

func TestRequestRefund_AlreadyDecided(t *testing.T) {
	for _, decision := range []domain.RefundApproval{domain.RefundApprovalApproved, domain.RefundApprovalRejected} {
		ord := pendingOrder()
		ord.ShippingStatus = domain.ShippingDelivered
		ord.Refund.AdminApproval = decision
		repo := newMemoryOrders(ord)
		svc, _, _, _ := newService(repo)

		_, err := svc.RequestRefund(context.Background(), "order-1", "user-1")
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("decision %s: expected invalid state, got %v", decision, err)
		}
	}
}

func TestDecideRefund_RejectsUnknownDecision(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, _, _, _ := newService(repo)

	_, err := svc.DecideRefund(context.Background(), "order-1", domain.RefundApproval("Maybe"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecideRefund_ApproveMovesToRefunded(t *testing.T) {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingDelivered
	ord.Refund.AdminApproval = domain.RefundApprovalPending
	repo := newMemoryOrders(ord)
	svc, _, _, disp := newService(repo)

	updated, err := svc.DecideRefund(context.Background(), "order-1", domain.RefundApprovalApproved)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if updated.Refund.AdminApproval != domain.RefundApprovalApproved {
		t.Fatalf("approval = %q", updated.Refund.AdminApproval)
	}
	if updated.ShippingStatus != domain.ShippingRefunded {
		t.Fatalf("status = %s, want Refunded", updated.ShippingStatus)
	}
	if len(disp.recipients) != 2 {
		t.Fatalf("buyer and admin must both be notified, got %d", len(disp.recipients))
	}
}

func TestDecideRefund_RejectKeepsStatus(t *testing.T) {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingDelivered
	ord.Refund.AdminApproval = domain.RefundApprovalPending
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	updated, err := svc.DecideRefund(context.Background(), "order-1", domain.RefundApprovalRejected)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if updated.ShippingStatus != domain.ShippingDelivered {
		t.Fatalf("rejection must not move the order, status = %s", updated.ShippingStatus)
	}
}

func TestDecideRefund_SecondDecisionFails(t *testing.T) {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingDelivered
	ord.Refund.AdminApproval = domain.RefundApprovalPending
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	if _, err := svc.DecideRefund(context.Background(), "order-1", domain.RefundApprovalApproved); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	_, err := svc.DecideRefund(context.Background(), "order-1", domain.RefundApprovalRejected)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on the second decision, got %v", err)
	}
}

func approvedOrder() domain.Order {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingRefunded
	ord.Refund.AdminApproval = domain.RefundApprovalApproved
	return ord
}

func TestExecuteRefund_MovesMoneyMinusFee(t *testing.T) {
	repo := newMemoryOrders(approvedOrder())
	svc, gw, mail, _ := newService(repo)

	updated, ref, err := svc.ExecuteRefund(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("execute refund: %v", err)
	}
	if updated.Refund.RefundFee != 1000 || updated.Refund.RefundAmount != 9000 {
		t.Fatalf("fee bookkeeping = %+v, want fee 1000 refund 9000", updated.Refund)
	}
	if ref == nil || ref.AmountCents != 9000 {
		t.Fatalf("gateway refund = %+v", ref)
	}
	if len(gw.refunds) != 1 {
		t.Fatalf("gateway calls = %d", len(gw.refunds))
	}
	if len(mail.sent) != 1 || mail.sent[0] != "refund:buyer@example.com" {
		t.Fatalf("emails = %v", mail.sent)
	}
}

func TestExecuteRefund_RequiresApproval(t *testing.T) {
	ord := pendingOrder()
	ord.Refund.AdminApproval = domain.RefundApprovalPending
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	_, _, err := svc.ExecuteRefund(context.Background(), "order-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestExecuteRefund_AlreadyRefunded(t *testing.T) {
	ord := approvedOrder()
	ord.Refund.Refunded = true
	repo := newMemoryOrders(ord)
	svc, gw, _, _ := newService(repo)

	_, _, err := svc.ExecuteRefund(context.Background(), "order-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(gw.refunds) != 0 {
		t.Fatal("double refund must never reach the gateway")
	}
}

func TestExecuteRefund_MissingPaymentIntent(t *testing.T) {
	ord := approvedOrder()
	ord.PaymentIntentID = ""
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	_, _, err := svc.ExecuteRefund(context.Background(), "order-1")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateShippingStatus_RejectsUnknownStatus(t *testing.T) {
	repo := newMemoryOrders(pendingOrder())
	svc, _, _, _ := newService(repo)

	_, err := svc.UpdateShippingStatus(context.Background(), "order-1", domain.ShippingStatus("Lost"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateShippingStatus_AllowsAnyKnownTransition(t *testing.T) {
	ord := pendingOrder()
	ord.ShippingStatus = domain.ShippingDelivered
	repo := newMemoryOrders(ord)
	svc, _, mail, disp := newService(repo)

	// Support staff can move an order backwards to correct mistakes.
	updated, err := svc.UpdateShippingStatus(context.Background(), "order-1", domain.ShippingShipped)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.ShippingStatus != domain.ShippingShipped {
		t.Fatalf("status = %s", updated.ShippingStatus)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("status email expected, got %v", mail.sent)
	}
	if len(disp.recipients) != 1 || disp.recipients[0] != domain.UserRecipient("user-1") {
		t.Fatalf("buyer notification expected, got %+v", disp.recipients)
	}
}

func TestListForUser_PaginationMath(t *testing.T) {
	var orders []domain.Order
	for i := 0; i < 25; i++ {
		o := pendingOrder()
		o.ID = "order-" + string(rune('a'+i))
		orders = append(orders, o)
	}
	repo := newMemoryOrders(orders...)
	svc, _, _, _ := newService(repo)

	got, page, err := svc.ListForUser(context.Background(), "user-1", 3, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 25 || page.Pages != 3 || page.Page != 3 {
		t.Fatalf("pagination = %+v", page)
	}
	if len(got) != 5 {
		t.Fatalf("last page should hold 5 orders, got %d", len(got))
	}
}

func TestVerifyBySession(t *testing.T) {
	ord := pendingOrder()
	ord.CheckoutSessionID = "sess_done"
	repo := newMemoryOrders(ord)
	svc, _, _, _ := newService(repo)

	got, err := svc.VerifyBySession(context.Background(), "sess_done", "user-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != "order-1" {
		t.Fatalf("order = %+v", got)
	}

	if _, err := svc.VerifyBySession(context.Background(), "sess_done", "someone-else"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign session must read as not found, got %v", err)
	}

	unpaid := pendingOrder()
	unpaid.ID = "order-2"
	unpaid.CheckoutSessionID = "sess_unpaid"
	unpaid.PaymentStatus = domain.PaymentPending
	repo.byID[unpaid.ID] = unpaid
	if _, err := svc.VerifyBySession(context.Background(), "sess_unpaid", "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unpaid session must read as not found, got %v", err)
	}
}

func TestPercentFee_Rounding(t *testing.T) {
	cases := []struct {
		total   int64
		percent int
		want    int64
	}{
		{10000, 5, 500},
		{10000, 10, 1000},
		{999, 5, 50},  // 49.95 rounds up
		{101, 10, 10}, // 10.1 rounds down
		{0, 5, 0},
	}
	for _, tc := range cases {
		if got := percentFee(tc.total, tc.percent); got != tc.want {
			t.Errorf("percentFee(%d, %d) = %d, want %d", tc.total, tc.percent, got, tc.want)
		}
	}
}
