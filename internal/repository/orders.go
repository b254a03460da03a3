package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

const orderColumns = `id, user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price,
	is_paid, paid_at, is_delivered, delivered_at, payment_result, wallet_order_id, created_at`

func (r *Repository) CreateOrderFromCart(ctx context.Context, order *domain.Order, cartID string, cartVersion int) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer rollback(tx)

	var version int
	err = tx.QueryRowContext(ctx, `SELECT version FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	if version != cartVersion {
		return domain.ErrCartChanged
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID,
		order.UserID,
		string(addressJSON),
		string(order.PaymentMethod),
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.TotalPrice,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, slug, image, unit_price, qty, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID,
			item.ProductID,
			item.Name,
			item.Slug,
			item.Image,
			item.UnitPrice,
			item.Qty,
			i,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE carts
		 SET items = '[]', items_price = 0, shipping_price = 0, tax_price = 0, total_price = 0,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		addressJSON   []byte
		paymentMethod string
		paidAt        sql.NullTime
		deliveredAt   sql.NullTime
		resultJSON    []byte
		walletOrderID sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&addressJSON,
		&paymentMethod,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&resultJSON,
		&walletOrderID,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.WalletOrderID = walletOrderID.String
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(resultJSON) > 0 {
		var pr domain.PaymentResult
		if err := json.Unmarshal(resultJSON, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		order.PaymentResult = &pr
	}
	return &order, nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, product_id, name, slug, image, unit_price, qty
		 FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.Slug,
			&item.Image,
			&item.UnitPrice,
			&item.Qty,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders by user id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, total, nil
}

// orderState distinguishes "missing" from "already paid" after a guarded
// update touched no rows.
func (r *Repository) orderState(ctx context.Context, id string) (paid bool, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT is_paid FROM orders WHERE id = $1`, id).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query order state: %w", err)
	}
	return paid, nil
}

func (r *Repository) SetWalletOrderID(ctx context.Context, orderID, walletOrderID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET wallet_order_id = $2 WHERE id = $1 AND is_paid = FALSE`,
		orderID, walletOrderID)
	if err != nil {
		return fmt.Errorf("set wallet order id: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	paid, err := r.orderState(ctx, orderID)
	if err != nil {
		return err
	}
	if paid {
		return domain.ErrOrderAlreadyPaid
	}
	return nil
}

func (r *Repository) MarkPaid(ctx context.Context, orderID string, result *domain.PaymentResult, paidAt time.Time) (bool, error) {
	var resultJSON any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return false, fmt.Errorf("failed to marshal payment result: %w", err)
		}
		resultJSON = string(b)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin mark paid: %w", err)
	}
	defer rollback(tx)

	// The row lock serialises concurrent reconciliations of the same order.
	var isPaid bool
	err = tx.QueryRowContext(ctx, `SELECT is_paid FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&isPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock order: %w", err)
	}
	if isPaid {
		return false, nil
	}

	type line struct {
		productID string
		qty       int
	}
	// product_id order keeps row locks on products acquired in a stable order
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, qty FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return false, fmt.Errorf("query order lines: %w", err)
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return false, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("row iteration error: %w", err)
	}

	for _, l := range lines {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`, l.qty, l.productID)
		if err != nil {
			return false, fmt.Errorf("decrement stock for %s: %w", l.productID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, l.productID).Scan(&exists); err != nil {
				return false, fmt.Errorf("check product %s: %w", l.productID, err)
			}
			if !exists {
				return false, fmt.Errorf("%w: %s", domain.ErrProductNotFound, l.productID)
			}
			return false, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, l.productID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $2, payment_result = $3 WHERE id = $1`,
		orderID, paidAt, resultJSON)
	if err != nil {
		return false, fmt.Errorf("flip paid flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark paid: %w", err)
	}
	return true, nil
}

func (r *Repository) MarkDelivered(ctx context.Context, orderID string, deliveredAt time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin mark delivered: %w", err)
	}
	defer rollback(tx)

	var isPaid, isDelivered bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_paid, is_delivered FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&isPaid, &isDelivered)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock order: %w", err)
	}
	if !isPaid {
		return false, domain.ErrOrderNotPaid
	}
	if isDelivered {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET is_delivered = TRUE, delivered_at = $2 WHERE id = $1`, orderID, deliveredAt); err != nil {
		return false, fmt.Errorf("flip delivered flag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark delivered: %w", err)
	}
	return true, nil
}

func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND is_paid = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	paid, err := r.orderState(ctx, id)
	if err != nil {
		return err
	}
	if paid {
		return domain.ErrOrderAlreadyPaid
	}
	return nil
}
