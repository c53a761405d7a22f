package redemptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-deals/internal/auth"
	"ms-deals/internal/availability"
	"ms-deals/internal/clock"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/utils"
)

const DefaultAvailabilityTimeout = 2 * time.Second

type RedemptionDBLayer interface {
	CreateRedemption(ctx context.Context, r *models.Redemption) error
	CodeExists(ctx context.Context, code string) (bool, error)
	GetRedemptionByCode(ctx context.Context, code string) (*models.Redemption, error)
	ListRedemptionsByDeal(ctx context.Context, dealID string) ([]models.Redemption, error)
	MarkRedeemed(ctx context.Context, code, dealID string, cap *int, at time.Time, by string) (bool, error)
	CountRedeemed(ctx context.Context, dealID string) (int, error)
	CountRedeemedByDeals(ctx context.Context, dealIDs []string) (map[string]int, error)
}

type DealReader interface {
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error)
}

// IdempotencyStore records which code a confirm Idempotency-Key belongs to.
type IdempotencyStore interface {
	Remember(ctx context.Context, key, code string) (bool, error)
	Lookup(ctx context.Context, key string) (string, error)
}

type EventPublisher interface {
	RedemptionIssued(ctx context.Context, r *models.Redemption, merchantID string)
	RedemptionConfirmed(ctx context.Context, r *models.Redemption, merchantID string)
}

type Options struct {
	// EnforceExpiryOnConfirm rejects confirmation once the deal window has closed.
	EnforceExpiryOnConfirm bool
	AvailabilityTimeout    time.Duration
}

type RedemptionService struct {
	DB          RedemptionDBLayer
	Deals       DealReader
	Idempotency IdempotencyStore
	Codes       *utils.UniqueCodeAllocator
	Clock       clock.Clock
	Events      EventPublisher
	Logger      *logger.Logger
	Options     Options
}

func NewRedemptionService(db RedemptionDBLayer, deals DealReader, idem IdempotencyStore, codes *utils.UniqueCodeAllocator, clk clock.Clock, events EventPublisher, log *logger.Logger, opts Options) *RedemptionService {
	if opts.AvailabilityTimeout <= 0 {
		opts.AvailabilityTimeout = DefaultAvailabilityTimeout
	}
	return &RedemptionService{
		DB:          db,
		Deals:       deals,
		Idempotency: idem,
		Codes:       codes,
		Clock:       clk,
		Events:      events,
		Logger:      log,
		Options:     opts,
	}
}

// NormalizeCode upper-cases and trims a code typed in by staff.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ---------------- ISSUE ----------------

// Issue hands out a fresh code for a deal inside its validity window.
func (s *RedemptionService) Issue(ctx context.Context, dealID string) (*models.Redemption, error) {
	deal, err := s.Deals.GetDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if !deal.IsActiveAt(now) {
		return nil, errs.Wrapf(errs.ErrDealNotActive, "deal %s window %s..%s", deal.ID, utils.FormatISO(deal.StartsAt), utils.FormatISO(deal.EndsAt))
	}

	if deal.RedemptionCap != nil {
		redeemed, err := s.DB.CountRedeemed(ctx, deal.ID)
		if err != nil {
			return nil, err
		}
		if availability.Compute(deal.RedemptionCap, redeemed).SoldOut {
			return nil, errs.Wrap(errs.ErrSoldOut, deal.ID)
		}
	}

	r := &models.Redemption{
		ID:        utils.GenerateID(),
		DealID:    deal.ID,
		Status:    models.RedemptionIssued,
		CreatedAt: now,
	}
	_, err = s.Codes.Allocate(ctx, s.DB.CodeExists, func(ctx context.Context, code string) error {
		r.Code = code
		return s.DB.CreateRedemption(ctx, r)
	})
	if err != nil {
		if errs.Is(err, errs.ErrShortCodeExhausted) {
			s.Logger.Warn("REDEMPTION", fmt.Sprintf("Code allocation exhausted for deal %s", deal.ID))
		}
		return nil, err
	}

	s.Logger.LogRedemption("ISSUE", r.Code, fmt.Sprintf("issued for deal %s", deal.ID))
	s.Events.RedemptionIssued(ctx, r, deal.MerchantID)
	return r, nil
}

// ---------------- CONFIRM ----------------

// Confirm redeems a code exactly once. Concurrent calls for the same code race on a
// conditional update; the loser gets ErrAlreadyRedeemed. A retried call carrying the
// Idempotency-Key of the winning call is answered with the redemption and Replayed set.
func (s *RedemptionService) Confirm(ctx context.Context, p auth.Principal, code, idempotencyKey string) (*models.Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errs.Validation("code is required")
	}

	r, err := s.DB.GetRedemptionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	deal, err := s.Deals.GetDealByID(ctx, r.DealID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.Resource{Kind: "redemption", ID: code, MerchantID: deal.MerchantID}, auth.ActionRedemptionConfirm); err != nil {
		s.Logger.LogSecurity("CONFIRM_DENIED", fmt.Sprintf("user %s on code %s", p.UserID, code))
		if errs.Is(err, errs.ErrNotOwner) {
			// another merchant's code answers like an unknown one
			return nil, errs.Wrap(errs.ErrCodeNotFound, "get redemption "+code)
		}
		return nil, err
	}

	now := s.Clock.Now()
	if s.Options.EnforceExpiryOnConfirm && !r.IsRedeemed() && deal.HasEndedAt(now) {
		return nil, errs.Wrapf(errs.ErrDealExpired, "deal %s ended %s", deal.ID, utils.FormatISO(deal.EndsAt))
	}

	won, err := s.DB.MarkRedeemed(ctx, code, deal.ID, deal.RedemptionCap, now, p.UserID)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.lostConfirm(ctx, code, idempotencyKey)
	}

	by := p.UserID
	r.Status = models.RedemptionRedeemed
	r.RedeemedAt = &now
	r.RedeemedBy = &by

	s.rememberKey(ctx, idempotencyKey, code)
	s.Logger.LogRedemption("CONFIRM", code, fmt.Sprintf("redeemed for deal %s by %s", deal.ID, by))
	s.Events.RedemptionConfirmed(ctx, r, deal.MerchantID)
	return r, nil
}

// lostConfirm re-reads the row after the conditional update matched nothing.
func (s *RedemptionService) lostConfirm(ctx context.Context, code, idempotencyKey string) (*models.Redemption, error) {
	current, err := s.DB.GetRedemptionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !current.IsRedeemed() {
		return nil, errs.Wrap(errs.ErrSoldOut, code)
	}

	if s.isReplay(ctx, idempotencyKey, code) {
		current.Replayed = true
		s.Logger.LogRedemption("REPLAY", code, "answered from idempotency record")
		return current, nil
	}
	return nil, errs.Wrap(errs.ErrAlreadyRedeemed, code)
}

func (s *RedemptionService) rememberKey(ctx context.Context, key, code string) {
	if s.Idempotency == nil || key == "" {
		return
	}
	if _, err := s.Idempotency.Remember(ctx, key, code); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Failed to record idempotency key for %s: %v", code, err))
	}
}

func (s *RedemptionService) isReplay(ctx context.Context, key, code string) bool {
	if s.Idempotency == nil || key == "" {
		return false
	}
	stored, err := s.Idempotency.Lookup(ctx, key)
	if err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Failed to read idempotency key for %s: %v", code, err))
		return false
	}
	return stored == code
}

// ---------------- READS ----------------

func (s *RedemptionService) Get(ctx context.Context, code string) (*models.Redemption, error) {
	return s.DB.GetRedemptionByCode(ctx, NormalizeCode(code))
}

func (s *RedemptionService) ListByDeal(ctx context.Context, p auth.Principal, dealID string) ([]models.Redemption, error) {
	deal, err := s.Deals.GetDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.Resource{Kind: "deal", ID: deal.ID, MerchantID: deal.MerchantID}, auth.ActionDealRedemptions); err != nil {
		return nil, err
	}
	return s.DB.ListRedemptionsByDeal(ctx, deal.ID)
}

// ---------------- AVAILABILITY ----------------

// Availability counts confirmed redemptions for one deal under a short deadline.
func (s *RedemptionService) Availability(ctx context.Context, dealID string) (availability.View, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Options.AvailabilityTimeout)
	defer cancel()

	deal, err := s.Deals.GetDealByID(ctx, dealID)
	if err != nil {
		return availability.View{}, err
	}
	redeemed, err := s.DB.CountRedeemed(ctx, deal.ID)
	if err != nil {
		return availability.View{}, err
	}
	view := availability.Compute(deal.RedemptionCap, redeemed)
	view.DealID = deal.ID
	return view, nil
}

// AvailabilityBatch answers many deals with one deal fetch and one grouped count.
// Unknown deal ids are left out of the result.
func (s *RedemptionService) AvailabilityBatch(ctx context.Context, dealIDs []string) (map[string]availability.View, error) {
	ids := DedupeIDs(dealIDs)
	out := make(map[string]availability.View, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	deals, err := s.Deals.GetDealsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make([]string, 0, len(deals))
	for _, d := range deals {
		found = append(found, d.ID)
	}

	counts, err := s.DB.CountRedeemedByDeals(ctx, found)
	if err != nil {
		return nil, err
	}
	for _, d := range deals {
		view := availability.Compute(d.RedemptionCap, counts[d.ID])
		view.DealID = d.ID
		out[d.ID] = view
	}
	return out, nil
}

// DedupeIDs trims ids and drops blanks and repeats, keeping first-seen order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
