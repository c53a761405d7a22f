package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-deals/internal/database"
	"ms-deals/internal/errs"
	"ms-deals/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateRedemption(ctx context.Context, r *models.Redemption) error {
	_, err := d.Bun.NewInsert().Model(r).Exec(ctx)
	return database.Translate(err, errs.ErrCodeNotFound, "insert redemption")
}

func (d *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Redemption)(nil)).
		Where("code = ?", code).
		Exists(ctx)
	if err != nil {
		return false, errs.Unexpected(err, "check redemption code")
	}
	return exists, nil
}

func (d *DB) GetRedemptionByCode(ctx context.Context, code string) (*models.Redemption, error) {
	var r models.Redemption
	err := d.Bun.NewSelect().
		Model(&r).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrCodeNotFound, "get redemption "+code)
	}
	return &r, nil
}

func (d *DB) ListRedemptionsByDeal(ctx context.Context, dealID string) ([]models.Redemption, error) {
	var out []models.Redemption
	err := d.Bun.NewSelect().
		Model(&out).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, errs.ErrCodeNotFound, "list redemptions")
	}
	return out, nil
}

// MarkRedeemed flips an issued code to redeemed in one conditional UPDATE. It reports false
// when no row matched: the code is unknown, already redeemed, or the cap guard refused it.
// A non-nil cap adds a guard on the deal's current redeemed count. On Postgres the deal row
// is locked first so concurrent confirms of different codes cannot both pass the guard.
func (d *DB) MarkRedeemed(ctx context.Context, code, dealID string, cap *int, at time.Time, by string) (bool, error) {
	capped := cap != nil && *cap > 0

	var won bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if capped && d.Bun.Dialect().Name() == dialect.PG {
			var id string
			err := tx.NewSelect().
				Model((*models.Deal)(nil)).
				Column("id").
				Where("id = ?", dealID).
				For("UPDATE").
				Scan(ctx, &id)
			if err != nil {
				return err
			}
		}

		q := tx.NewUpdate().
			Model((*models.Redemption)(nil)).
			Set("redeemed_at = ?", at).
			Set("status = ?", models.RedemptionRedeemed).
			Set("redeemed_by = ?", by).
			Where("code = ?", code).
			Where("redeemed_at IS NULL")

		if capped {
			counted := tx.NewSelect().
				TableExpr("redemptions AS r2").
				ColumnExpr("COUNT(*)").
				Where("r2.deal_id = ?", dealID).
				Where("r2.redeemed_at IS NOT NULL")
			q = q.Where("(?) < ?", counted, *cap)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		won = n == 1
		return nil
	})
	if err != nil {
		return false, database.Translate(err, errs.ErrDealNotFound, "mark redeemed "+code)
	}
	return won, nil
}

func (d *DB) CountRedeemed(ctx context.Context, dealID string) (int, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Redemption)(nil)).
		Where("deal_id = ?", dealID).
		Where("redeemed_at IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, errs.Unexpected(err, "count redeemed")
	}
	return count, nil
}

// CountRedeemedByDeals runs one grouped aggregate. Deals with no redemptions are absent.
func (d *DB) CountRedeemedByDeals(ctx context.Context, dealIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(dealIDs))
	if len(dealIDs) == 0 {
		return counts, nil
	}

	var rows []models.RedeemedCount
	err := d.Bun.NewSelect().
		Model((*models.Redemption)(nil)).
		Column("deal_id").
		ColumnExpr("COUNT(*) AS count").
		Where("deal_id IN (?)", bun.In(dealIDs)).
		Where("redeemed_at IS NOT NULL").
		Group("deal_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errs.Unexpected(err, "count redeemed by deals")
	}
	for _, row := range rows {
		counts[row.DealID] = row.Count
	}
	return counts, nil
}

func (d *DB) HasRedemptions(ctx context.Context, dealID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Redemption)(nil)).
		Where("deal_id = ?", dealID).
		Exists(ctx)
	if err != nil {
		return false, errs.Unexpected(err, "check redemptions")
	}
	return exists, nil
}
