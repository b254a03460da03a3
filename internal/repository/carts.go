package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

const cartColumns = `id, user_id, session_token, items, items_price, shipping_price, tax_price, total_price, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*domain.Cart, error) {
	var (
		cart         domain.Cart
		userID       sql.NullString
		sessionToken sql.NullString
		itemsJSON    []byte
	)
	err := row.Scan(
		&cart.ID,
		&userID,
		&sessionToken,
		&itemsJSON,
		&cart.ItemsPrice,
		&cart.ShippingPrice,
		&cart.TaxPrice,
		&cart.TotalPrice,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cart.UserID = userID.String
	cart.SessionToken = sessionToken.String
	if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	return &cart, nil
}

func (r *Repository) GetCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	var query string
	if owner.IsUser() {
		query = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	} else {
		query = `SELECT ` + cartColumns + ` FROM carts WHERE session_token = $1 AND user_id IS NULL`
	}

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, owner.Value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart for %s: %w", owner, err)
	}
	return cart, nil
}

func (r *Repository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	if err := cart.Items.Validate(); err != nil {
		return err
	}
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}
	if cart.Items == nil {
		itemsJSON = []byte("[]")
	}

	if cart.ID == "" {
		return r.insertCart(ctx, cart, itemsJSON)
	}

	query := `UPDATE carts
	          SET items = $3, items_price = $4, shipping_price = $5, tax_price = $6, total_price = $7,
	              version = version + 1, updated_at = NOW()
	          WHERE id = $1 AND version = $2
	          RETURNING version, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		cart.ID,
		cart.Version,
		string(itemsJSON),
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice,
	).Scan(&cart.Version, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCartChanged
	}
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

func (r *Repository) insertCart(ctx context.Context, cart *domain.Cart, itemsJSON []byte) error {
	id := uuid.New().String()
	query := `INSERT INTO carts (id, user_id, session_token, items, items_price, shipping_price, tax_price, total_price, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, NOW(), NOW())
	          RETURNING version, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		id,
		nullString(cart.UserID),
		nullString(cart.SessionToken),
		string(itemsJSON),
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice,
	).Scan(&cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// a concurrent request created this owner's cart first
			return domain.ErrCartChanged
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	cart.ID = id
	return nil
}

func (r *Repository) MergeGuestCart(ctx context.Context, sessionToken, userID string, policy MergePolicy) (MergeOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return MergeNoGuestCart, fmt.Errorf("begin merge: %w", err)
	}
	defer rollback(tx)

	var guestID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE session_token = $1 AND user_id IS NULL FOR UPDATE`,
		sessionToken).Scan(&guestID)
	if errors.Is(err, sql.ErrNoRows) {
		return MergeNoGuestCart, nil
	}
	if err != nil {
		return MergeNoGuestCart, fmt.Errorf("lock guest cart: %w", err)
	}

	var userCartID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&userCartID)
	hasUserCart := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return MergeNoGuestCart, fmt.Errorf("lock user cart: %w", err)
	}

	outcome := MergeReassigned
	if hasUserCart {
		switch policy {
		case ReplaceUserCart:
			if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, userCartID); err != nil {
				return MergeNoGuestCart, fmt.Errorf("delete user cart: %w", err)
			}
			outcome = MergeUserReplaced
		default:
			if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, guestID); err != nil {
				return MergeNoGuestCart, fmt.Errorf("delete guest cart: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return MergeNoGuestCart, fmt.Errorf("commit merge: %w", err)
			}
			return MergeGuestDiscarded, nil
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE carts SET user_id = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
		guestID, userID)
	if err != nil {
		return MergeNoGuestCart, fmt.Errorf("reassign guest cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return MergeNoGuestCart, fmt.Errorf("commit merge: %w", err)
	}
	return outcome, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
