package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p          domain.Product
		imagesJSON []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, price, stock, images FROM products WHERE id = $1`, id).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Price,
		&p.Stock,
		&imagesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal product images: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p             domain.Profile
		addressJSON   []byte
		paymentMethod string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, address, payment_method FROM user_profiles WHERE user_id = $1`, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.Email,
		&addressJSON,
		&paymentMethod,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p.PaymentMethod = domain.PaymentMethod(paymentMethod)
	if len(addressJSON) > 0 && string(addressJSON) != "null" {
		var addr domain.ShippingAddress
		if err := json.Unmarshal(addressJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal address: %w", err)
		}
		p.Address = &addr
	}
	return &p, nil
}
