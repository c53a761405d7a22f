package db

import (
	"context"
	"time"

	"ms-deals/internal/database"
	"ms-deals/internal/errs"
	"ms-deals/internal/models"
)

// GetMerchantByOwner resolves the merchant account an authenticated user owns.
func (d *DB) GetMerchantByOwner(ctx context.Context, userID string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := d.Bun.NewSelect().
		Model(&merchant).
		Where("owner_user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrNoMerchant, "get merchant for "+userID)
	}
	return &merchant, nil
}

func (d *DB) CreateMerchant(ctx context.Context, merchant *models.Merchant) error {
	if merchant.CreatedAt.IsZero() {
		merchant.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(merchant).Exec(ctx)
	return database.Translate(err, errs.ErrNoMerchant, "insert merchant")
}
