package redemptions_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-deals/internal/auth"
	"ms-deals/internal/availability"
	"ms-deals/internal/clock"
	"ms-deals/internal/database/dbtest"
	dealsdb "ms-deals/internal/deals/db"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/redemptions"
	redemptionsdb "ms-deals/internal/redemptions/db"
	idem "ms-deals/internal/redemptions/redis"
	"ms-deals/internal/utils"
)

var day = 24 * time.Hour

type recordingEvents struct {
	mu        sync.Mutex
	issued    []string
	confirmed []string
}

func (r *recordingEvents) RedemptionIssued(_ context.Context, red *models.Redemption, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, red.Code)
}

func (r *recordingEvents) RedemptionConfirmed(_ context.Context, red *models.Redemption, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, red.Code)
}

type fixture struct {
	svc    *redemptions.RedemptionService
	deals  *dealsdb.DB
	ledger *redemptionsdb.DB
	clock  *clock.MockClock
	events *recordingEvents
	staff  auth.Principal
}

func setup(t *testing.T, opts redemptions.Options) *fixture {
	t.Helper()
	bunDB := dbtest.NewSQLiteDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	f := &fixture{
		deals:  &dealsdb.DB{Bun: bunDB},
		ledger: &redemptionsdb.DB{Bun: bunDB},
		clock:  clock.NewMockClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
		events: &recordingEvents{},
		staff:  auth.Principal{UserID: "staff-1", MerchantID: "merchant-1"},
	}
	f.svc = redemptions.NewRedemptionService(
		f.ledger, f.deals, idem.NewIdempotencyStore(client, time.Hour),
		utils.NewUniqueCodeAllocator(5, 3), f.clock, f.events, logger.NewWithWriter(io.Discard), opts,
	)
	return f
}

func (f *fixture) seedDeal(t *testing.T, starts, ends time.Time, capacity *int) *models.Deal {
	t.Helper()
	d := &models.Deal{
		ID:            uuid.NewString(),
		MerchantID:    "merchant-1",
		ShortCode:     shortCode(t),
		Title:         "Free pastry with any coffee",
		DiscountType:  models.DiscountNone,
		DiscountValue: decimal.Zero,
		StartsAt:      starts,
		EndsAt:        ends,
		RedemptionCap: capacity,
		CreatedAt:     starts,
		UpdatedAt:     starts,
	}
	require.NoError(t, f.deals.CreateDeal(context.Background(), d))
	return d
}

func (f *fixture) activeDeal(t *testing.T, capacity *int) *models.Deal {
	now := f.clock.Now()
	return f.seedDeal(t, now.Add(-day), now.Add(day), capacity)
}

func intPtr(v int) *int { return &v }

func shortCode(t *testing.T) string {
	code, err := utils.GenerateShortCode(5)
	require.NoError(t, err)
	return code
}

func TestIssue_ActiveDeal(t *testing.T) {
	f := setup(t, redemptions.Options{})
	deal := f.activeDeal(t, nil)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		r, err := f.svc.Issue(context.Background(), deal.ID)
		require.NoError(t, err)
		assert.Len(t, r.Code, 5)
		assert.Equal(t, models.RedemptionIssued, r.Status)
		assert.False(t, seen[r.Code], "code %s issued twice", r.Code)
		seen[r.Code] = true
	}
	assert.Len(t, f.events.issued, 20)
}

func TestIssue_WindowBoundsInclusive(t *testing.T) {
	f := setup(t, redemptions.Options{})
	now := f.clock.Now()

	startsNow := f.seedDeal(t, now, now.Add(day), nil)
	endsNow := f.seedDeal(t, now.Add(-day), now, nil)

	_, err := f.svc.Issue(context.Background(), startsNow.ID)
	assert.NoError(t, err)
	_, err = f.svc.Issue(context.Background(), endsNow.ID)
	assert.NoError(t, err)
}

func TestIssue_OutsideWindowCreatesNoRow(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	now := f.clock.Now()

	future := f.seedDeal(t, now.Add(time.Second), now.Add(day), nil)
	past := f.seedDeal(t, now.Add(-2*day), now.Add(-time.Second), nil)

	for _, d := range []*models.Deal{future, past} {
		_, err := f.svc.Issue(ctx, d.ID)
		assert.True(t, errs.Is(err, errs.ErrDealNotActive))
		assert.True(t, errs.Is(err, errs.ErrNotActive))

		rows, err := f.ledger.ListRedemptionsByDeal(ctx, d.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestIssue_UnknownDeal(t *testing.T) {
	f := setup(t, redemptions.Options{})
	_, err := f.svc.Issue(context.Background(), "nope")
	assert.True(t, errs.Is(err, errs.ErrDealNotFound))
}

func TestIssue_SoldOut(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, intPtr(1))

	r, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.staff, r.Code, "")
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, deal.ID)
	assert.True(t, errs.Is(err, errs.ErrSoldOut))
}

func TestConfirm_Once(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, nil)

	r, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, f.staff, " "+r.Code+" ", "")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionRedeemed, confirmed.Status)
	require.NotNil(t, confirmed.RedeemedAt)
	assert.True(t, confirmed.RedeemedAt.Equal(f.clock.Now()))

	_, err = f.svc.Confirm(ctx, f.staff, r.Code, "")
	assert.True(t, errs.Is(err, errs.ErrAlreadyRedeemed))

	stored, err := f.svc.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.True(t, stored.IsRedeemed())
	assert.Equal(t, []string{r.Code}, f.events.confirmed)
}

func TestConfirm_ConcurrentExactlyOneWins(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, nil)

	r, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)

	const callers = 2
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Confirm(ctx, f.staff, r.Code, "")
		}(i)
	}
	wg.Wait()

	wins, already := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errs.Is(err, errs.ErrAlreadyRedeemed):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, already)
}

func TestConfirm_UnknownCode(t *testing.T) {
	f := setup(t, redemptions.Options{})
	_, err := f.svc.Confirm(context.Background(), f.staff, "ZZZZZ", "")
	assert.True(t, errs.Is(err, errs.ErrCodeNotFound))

	_, err = f.svc.Confirm(context.Background(), f.staff, "  ", "")
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestConfirm_OtherMerchantRejected(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, nil)
	r, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)

	outsider := auth.Principal{UserID: "staff-9", MerchantID: "merchant-9"}
	_, err = f.svc.Confirm(ctx, outsider, r.Code, "")
	assert.True(t, errs.Is(err, errs.ErrCodeNotFound), "got %v", err)
	assert.False(t, errs.Is(err, errs.ErrNotOwner))

	_, unknownErr := f.svc.Confirm(ctx, outsider, "QQQQQ", "")
	assert.Equal(t, errs.Reason(unknownErr), errs.Reason(err))

	_, err = f.svc.Confirm(ctx, auth.Principal{}, r.Code, "")
	assert.True(t, errs.Is(err, errs.ErrMissingIdentity))

	stored, err := f.svc.Get(ctx, r.Code)
	require.NoError(t, err)
	assert.False(t, stored.IsRedeemed())
}

func TestConfirm_CapGuard(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, intPtr(1))

	first, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, f.staff, first.Code, "")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.staff, second.Code, "")
	assert.True(t, errs.Is(err, errs.ErrSoldOut))

	view, err := f.svc.Availability(ctx, deal.ID)
	require.NoError(t, err)
	assert.True(t, view.SoldOut)
	assert.Equal(t, 0, *view.Left)
}

func TestConfirm_IdempotentReplay(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, nil)
	r, err := f.svc.Issue(ctx, deal.ID)
	require.NoError(t, err)

	first, err := f.svc.Confirm(ctx, f.staff, r.Code, "scan-42")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := f.svc.Confirm(ctx, f.staff, r.Code, "scan-42")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, r.Code, again.Code)

	_, err = f.svc.Confirm(ctx, f.staff, r.Code, "scan-43")
	assert.True(t, errs.Is(err, errs.ErrAlreadyRedeemed))

	assert.Len(t, f.events.confirmed, 1)
}

func TestConfirm_AfterExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed by default", func(t *testing.T) {
		f := setup(t, redemptions.Options{})
		deal := f.activeDeal(t, nil)
		r, err := f.svc.Issue(ctx, deal.ID)
		require.NoError(t, err)

		f.clock.Add(2 * day)
		_, err = f.svc.Confirm(ctx, f.staff, r.Code, "")
		assert.NoError(t, err)
	})

	t.Run("rejected when enforced", func(t *testing.T) {
		f := setup(t, redemptions.Options{EnforceExpiryOnConfirm: true})
		deal := f.activeDeal(t, nil)
		r, err := f.svc.Issue(ctx, deal.ID)
		require.NoError(t, err)

		f.clock.Add(2 * day)
		_, err = f.svc.Confirm(ctx, f.staff, r.Code, "")
		assert.True(t, errs.Is(err, errs.ErrDealExpired))
		assert.True(t, errs.Is(err, errs.ErrNotActive))
	})
}

func TestListByDeal(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, nil)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Issue(ctx, deal.ID)
		require.NoError(t, err)
	}

	rows, err := f.svc.ListByDeal(ctx, f.staff, deal.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = f.svc.ListByDeal(ctx, auth.Principal{UserID: "x", MerchantID: "merchant-9"}, deal.ID)
	assert.True(t, errs.Is(err, errs.ErrNotOwner))
}

func TestAvailability_CountsOnlyConfirmed(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()
	deal := f.activeDeal(t, intPtr(5))

	var codes []string
	for i := 0; i < 3; i++ {
		r, err := f.svc.Issue(ctx, deal.ID)
		require.NoError(t, err)
		codes = append(codes, r.Code)
	}
	_, err := f.svc.Confirm(ctx, f.staff, codes[0], "")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.staff, codes[1], "")
	require.NoError(t, err)

	view, err := f.svc.Availability(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, deal.ID, view.DealID)
	assert.True(t, view.Limited)
	assert.Equal(t, 3, *view.Left)
	assert.False(t, view.SoldOut)
	assert.Equal(t, availability.StatusOK, view.Status)
}

func TestAvailabilityBatch(t *testing.T) {
	f := setup(t, redemptions.Options{})
	ctx := context.Background()

	capped := f.activeDeal(t, intPtr(2))
	unlimited := f.activeDeal(t, nil)

	r, err := f.svc.Issue(ctx, capped.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, f.staff, r.Code, "")
	require.NoError(t, err)

	views, err := f.svc.AvailabilityBatch(ctx, []string{capped.ID, unlimited.ID, capped.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, 1, *views[capped.ID].Left)
	assert.False(t, views[unlimited.ID].Limited)
	assert.Nil(t, views[unlimited.ID].Left)
	_, ok := views["missing"]
	assert.False(t, ok)
}

func TestAvailability_UnknownDeal(t *testing.T) {
	f := setup(t, redemptions.Options{})
	_, err := f.svc.Availability(context.Background(), "missing")
	assert.True(t, errs.Is(err, errs.ErrDealNotFound))
}
