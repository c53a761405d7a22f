package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-deals/internal/database"
	"ms-deals/internal/errs"
	"ms-deals/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateDeal(ctx context.Context, deal *models.Deal) error {
	_, err := d.Bun.NewInsert().Model(deal).Exec(ctx)
	return database.Translate(err, errs.ErrDealNotFound, "insert deal")
}

func (d *DB) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	var deal models.Deal
	err := d.Bun.NewSelect().
		Model(&deal).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrDealNotFound, "get deal "+id)
	}
	return &deal, nil
}

func (d *DB) GetDealByShortCode(ctx context.Context, code string) (*models.Deal, error) {
	var deal models.Deal
	err := d.Bun.NewSelect().
		Model(&deal).
		Where("short_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrDealNotFound, "get deal by short code "+code)
	}
	return &deal, nil
}

// GetDealsByIDs returns the deals that exist among ids, in no particular order.
func (d *DB) GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error) {
	var deals []models.Deal
	if len(ids) == 0 {
		return deals, nil
	}
	err := d.Bun.NewSelect().
		Model(&deals).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrDealNotFound, "get deals")
	}
	return deals, nil
}

func (d *DB) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Deal)(nil)).
		Where("short_code = ?", code).
		Exists(ctx)
	if err != nil {
		return false, errs.Unexpected(err, "check short code")
	}
	return exists, nil
}

// UpdateDeal writes every mutable column; id, merchant, short code and lineage never change.
func (d *DB) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	res, err := d.Bun.NewUpdate().
		Model(deal).
		Column("title", "description", "discount_type", "discount_value", "currency",
			"starts_at", "ends_at", "redemption_cap", "image_url", "updated_at").
		Where("id = ?", deal.ID).
		Exec(ctx)
	if err != nil {
		return database.Translate(err, errs.ErrDealNotFound, "update deal "+deal.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Wrap(errs.ErrDealNotFound, "update deal "+deal.ID)
	}
	return nil
}

func (d *DB) DeleteDeal(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Deal)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Translate(err, errs.ErrDealNotFound, "delete deal "+id)
}

func (d *DB) ListDealsByMerchant(ctx context.Context, merchantID string) ([]models.Deal, error) {
	var deals []models.Deal
	err := d.Bun.NewSelect().
		Model(&deals).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrDealNotFound, "list deals")
	}
	return deals, nil
}
