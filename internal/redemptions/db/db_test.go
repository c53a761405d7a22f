package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-deals/internal/database/dbtest"
	"ms-deals/internal/errs"
	"ms-deals/internal/models"
	"ms-deals/internal/redemptions/db"
)

var issuedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func issue(t *testing.T, d *db.DB, dealID, code string) *models.Redemption {
	t.Helper()
	r := &models.Redemption{
		ID:        uuid.NewString(),
		DealID:    dealID,
		Code:      code,
		Status:    models.RedemptionIssued,
		CreatedAt: issuedAt,
	}
	require.NoError(t, d.CreateRedemption(context.Background(), r))
	return r
}

func TestCreateAndGetRedemption(t *testing.T) {
	rdb := &db.DB{Bun: dbtest.NewSQLiteDB(t)}
	ctx := context.Background()

	issue(t, rdb, "deal-1", "HJK23")

	got, err := rdb.GetRedemptionByCode(ctx, "HJK23")
	require.NoError(t, err)
	assert.Equal(t, "deal-1", got.DealID)
	assert.Equal(t, models.RedemptionIssued, got.Status)
	assert.Nil(t, got.RedeemedAt)

	_, err = rdb.GetRedemptionByCode(ctx, "ZZZZZ")
	assert.True(t, errs.Is(err, errs.ErrCodeNotFound))

	err = rdb.CreateRedemption(ctx, &models.Redemption{ID: uuid.NewString(), DealID: "deal-1", Code: "HJK23", Status: models.RedemptionIssued, CreatedAt: issuedAt})
	assert.True(t, errs.Is(err, errs.ErrConflict))
}

func TestMarkRedeemedOnce(t *testing.T) {
	rdb := &db.DB{Bun: dbtest.NewSQLiteDB(t)}
	ctx := context.Background()
	issue(t, rdb, "deal-1", "MNP45")

	at := issuedAt.Add(time.Hour)
	ok, err := rdb.MarkRedeemed(ctx, "MNP45", "deal-1", nil, at, "merchant-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rdb.MarkRedeemed(ctx, "MNP45", "deal-1", nil, at.Add(time.Minute), "merchant-1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := rdb.GetRedemptionByCode(ctx, "MNP45")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionRedeemed, got.Status)
	require.NotNil(t, got.RedeemedAt)
	assert.True(t, at.Equal(*got.RedeemedAt))
	require.NotNil(t, got.RedeemedBy)
	assert.Equal(t, "merchant-1", *got.RedeemedBy)
}

func TestMarkRedeemedConcurrent(t *testing.T) {
	rdb := &db.DB{Bun: dbtest.NewSQLiteDB(t)}
	issue(t, rdb, "deal-1", "QRS67")

	const attempts = 8
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := rdb.MarkRedeemed(context.Background(), "QRS67", "deal-1", nil, issuedAt, "merchant-1")
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestMarkRedeemedCapGuard(t *testing.T) {
	rdb := &db.DB{Bun: dbtest.NewSQLiteDB(t)}
	ctx := context.Background()
	capacity := 1
	issue(t, rdb, "deal-1", "AAAA2")
	issue(t, rdb, "deal-1", "AAAA3")

	ok, err := rdb.MarkRedeemed(ctx, "AAAA2", "deal-1", &capacity, issuedAt, "merchant-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rdb.MarkRedeemed(ctx, "AAAA3", "deal-1", &capacity, issuedAt, "merchant-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountRedeemedByDeals(t *testing.T) {
	rdb := &db.DB{Bun: dbtest.NewSQLiteDB(t)}
	ctx := context.Background()

	issue(t, rdb, "deal-1", "BBBB2")
	issue(t, rdb, "deal-1", "BBBB3")
	issue(t, rdb, "deal-1", "BBBB4")
	issue(t, rdb, "deal-2", "BBBB5")
	issue(t, rdb, "deal-3", "BBBB6")

	for _, code := range []string{"BBBB2", "BBBB3", "BBBB5"} {
		_, err := rdb.MarkRedeemed(ctx, code, "", nil, issuedAt, "merchant-1")
		require.NoError(t, err)
	}

	counts, err := rdb.CountRedeemedByDeals(ctx, []string{"deal-1", "deal-2", "deal-3"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["deal-1"])
	assert.Equal(t, 1, counts["deal-2"])
	_, present := counts["deal-3"]
	assert.False(t, present)

	single, err := rdb.CountRedeemed(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 2, single)

	has, err := rdb.HasRedemptions(ctx, "deal-3")
	require.NoError(t, err)
	assert.True(t, has)

	list, err := rdb.ListRedemptionsByDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
