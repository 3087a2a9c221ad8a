package order

import (
	"context"
	"errors"
	"io"
	"log"

	"heavenly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) CreateFromCheckout(ctx context.Context, in CreateFromCheckoutInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Conditional decrement per line. A zero rows-affected result means a
	// concurrent checkout won the remaining stock; the whole transaction
	// aborts so no partial decrement is ever observable.
	for _, line := range in.Lines {
		cmd, err := tx.Exec(ctx, `
UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1
`, line.Quantity, line.ProductID)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			r.logger.Printf("order repo: stock decrement rejected product=%s qty=%d", line.ProductID, line.Quantity)
			return nil, domain.ErrInsufficientStock
		}
	}

	const insertOrder = `
INSERT INTO orders (
    user_id, email, total_cents, currency, shipping_name, shipping_phone,
    shipping_address, coupon_code, checkout_session_id, payment_intent_id,
    receipt_url, shipping_status, payment_status
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'Pending', 'paid')
RETURNING id::text, version, created_at, updated_at
`
	ord := domain.Order{
		UserID:            in.UserID,
		Email:             in.Email,
		TotalCents:        in.TotalCents,
		Currency:          in.Currency,
		Shipping:          in.Shipping,
		CouponCode:        in.CouponCode,
		CheckoutSessionID: in.CheckoutSessionID,
		PaymentIntentID:   in.PaymentIntentID,
		ReceiptURL:        in.ReceiptURL,
		ShippingStatus:    domain.ShippingPending,
		PaymentStatus:     domain.PaymentPaid,
	}
	err = tx.QueryRow(ctx, insertOrder,
		in.UserID,
		in.Email,
		in.TotalCents,
		in.Currency,
		in.Shipping.Name,
		in.Shipping.Phone,
		in.Shipping.Address,
		in.CouponCode,
		in.CheckoutSessionID,
		in.PaymentIntentID,
		in.ReceiptURL,
	).Scan(&ord.ID, &ord.Version, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Another webhook delivery inserted this session first.
			return nil, domain.ErrConflict
		}
		r.logger.Printf("order repo: insert session=%s error=%v", in.CheckoutSessionID, err)
		return nil, err
	}

	for _, line := range in.Lines {
		var lineID string
		err := tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, product_id, title, color, size, image, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text
`, ord.ID, line.ProductID, line.Title, line.Color, line.Size, line.Image, line.Quantity, line.UnitPriceCents).Scan(&lineID)
		if err != nil {
			return nil, err
		}
		ord.Lines = append(ord.Lines, domain.OrderLine{
			ID:             lineID,
			OrderID:        ord.ID,
			ProductID:      line.ProductID,
			Title:          line.Title,
			Color:          line.Color,
			Size:           line.Size,
			Image:          line.Image,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, in.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: created id=%s session=%s total=%d", ord.ID, in.CheckoutSessionID, in.TotalCents)
	return &ord, nil
}

const orderColumns = `
id::text, user_id::text, email, total_cents, currency, shipping_name,
shipping_phone, shipping_address, coupon_code, checkout_session_id,
COALESCE(payment_intent_id, ''), COALESCE(receipt_url, ''), shipping_status,
payment_status, refunded, refund_amount_cents, COALESCE(admin_refund_approval, ''),
cancellation_fee_cents, refund_fee_cents, version, created_at, updated_at`

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.fetchOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_session_id = $1`, sessionID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetchOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	return r.fetchOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var ord domain.Order
		if err := scanOrder(rows, &ord); err != nil {
			return nil, 0, err
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		lines, err := r.fetchLines(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Lines = lines
	}
	return orders, total, nil
}

func (r *postgresRepo) UpdateLifecycle(ctx context.Context, up LifecycleUpdate) (*domain.Order, error) {
	const q = `
UPDATE orders
SET shipping_status = $1,
    refunded = $2,
    refund_amount_cents = $3,
    admin_refund_approval = NULLIF($4, ''),
    cancellation_fee_cents = $5,
    refund_fee_cents = $6,
    version = version + 1,
    updated_at = now()
WHERE id = $7 AND version = $8
`
	cmd, err := r.pool.Exec(ctx, q,
		string(up.ShippingStatus),
		up.Refund.Refunded,
		up.Refund.RefundAmount,
		string(up.Refund.AdminApproval),
		up.Refund.CancellationFee,
		up.Refund.RefundFee,
		up.OrderID,
		up.ExpectedVersion,
	)
	if err != nil {
		r.logger.Printf("order repo: lifecycle update id=%s error=%v", up.OrderID, err)
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		// Either the order vanished or someone else moved it first.
		return nil, domain.ErrConflict
	}
	return r.GetByID(ctx, up.OrderID)
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, args ...interface{}) (*domain.Order, error) {
	var ord domain.Order
	if err := scanOrder(r.pool.QueryRow(ctx, q, args...), &ord); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	lines, err := r.fetchLines(ctx, ord.ID)
	if err != nil {
		return nil, err
	}
	ord.Lines = lines
	return &ord, nil
}

func (r *postgresRepo) fetchLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	const q = `
SELECT id::text, order_id::text, product_id::text, title, color, size, image, quantity, unit_price_cents
FROM order_lines
WHERE order_id = $1
ORDER BY id ASC
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Title, &line.Color, &line.Size, &line.Image, &line.Quantity, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanOrder(row pgx.Row, ord *domain.Order) error {
	var shippingStatus, paymentStatus, approval string
	err := row.Scan(
		&ord.ID,
		&ord.UserID,
		&ord.Email,
		&ord.TotalCents,
		&ord.Currency,
		&ord.Shipping.Name,
		&ord.Shipping.Phone,
		&ord.Shipping.Address,
		&ord.CouponCode,
		&ord.CheckoutSessionID,
		&ord.PaymentIntentID,
		&ord.ReceiptURL,
		&shippingStatus,
		&paymentStatus,
		&ord.Refund.Refunded,
		&ord.Refund.RefundAmount,
		&approval,
		&ord.Refund.CancellationFee,
		&ord.Refund.RefundFee,
		&ord.Version,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if err != nil {
		return err
	}
	ord.ShippingStatus = domain.ShippingStatus(shippingStatus)
	ord.PaymentStatus = domain.PaymentStatus(paymentStatus)
	ord.Refund.AdminApproval = domain.RefundApproval(approval)
	return nil
}
