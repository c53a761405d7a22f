package deals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ms-deals/internal/auth"
	"ms-deals/internal/clock"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/utils"
)

const DefaultRepostDuration = 7 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

type DealDBLayer interface {
	CreateDeal(ctx context.Context, deal *models.Deal) error
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	GetDealByShortCode(ctx context.Context, code string) (*models.Deal, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	UpdateDeal(ctx context.Context, deal *models.Deal) error
	DeleteDeal(ctx context.Context, id string) error
	ListDealsByMerchant(ctx context.Context, merchantID string) ([]models.Deal, error)
}

type RedemptionChecker interface {
	HasRedemptions(ctx context.Context, dealID string) (bool, error)
}

type EventPublisher interface {
	DealCreated(ctx context.Context, deal *models.Deal)
	DealUpdated(ctx context.Context, deal *models.Deal)
	DealReposted(ctx context.Context, deal *models.Deal)
}

type DealService struct {
	DB             DealDBLayer
	Redemptions    RedemptionChecker
	Codes          *utils.UniqueCodeAllocator
	Clock          clock.Clock
	Events         EventPublisher
	Logger         *logger.Logger
	RepostDuration time.Duration
}

func NewDealService(db DealDBLayer, redemptions RedemptionChecker, codes *utils.UniqueCodeAllocator, clk clock.Clock, events EventPublisher, log *logger.Logger) *DealService {
	return &DealService{
		DB:             db,
		Redemptions:    redemptions,
		Codes:          codes,
		Clock:          clk,
		Events:         events,
		Logger:         log,
		RepostDuration: DefaultRepostDuration,
	}
}

// ---------------- READS ----------------

func (s *DealService) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	return s.DB.GetDealByID(ctx, id)
}

func (s *DealService) GetDealByShortCode(ctx context.Context, code string) (*models.Deal, error) {
	return s.DB.GetDealByShortCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *DealService) ListByMerchant(ctx context.Context, p auth.Principal) ([]models.Deal, error) {
	if p.UserID == "" {
		return nil, errs.ErrMissingIdentity
	}
	if p.MerchantID == "" {
		return nil, errs.ErrNoMerchant
	}
	return s.DB.ListDealsByMerchant(ctx, p.MerchantID)
}

// ---------------- WRITES ----------------

// CreateDeal validates the input and stores a new deal under the principal's merchant.
func (s *DealService) CreateDeal(ctx context.Context, p auth.Principal, in models.DealInput) (*models.Deal, error) {
	if p.UserID == "" {
		return nil, errs.ErrMissingIdentity
	}
	if p.MerchantID == "" {
		return nil, errs.ErrNoMerchant
	}
	if err := ValidateInput(in); err != nil {
		return nil, err
	}

	now := storedTime(s.Clock.Now())
	deal := &models.Deal{
		ID:            utils.GenerateID(),
		MerchantID:    p.MerchantID,
		Title:         in.Title,
		Description:   in.Description,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		Currency:      in.Currency,
		StartsAt:      storedTime(*in.StartsAt),
		EndsAt:        storedTime(*in.EndsAt),
		RedemptionCap: in.RedemptionCap,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.ImageURL != nil {
		deal.ImageURL = *in.ImageURL
	}

	if err := s.insertWithFreshCode(ctx, deal); err != nil {
		return nil, err
	}

	s.Logger.LogDeal("CREATE", deal.ID, fmt.Sprintf("short code %s for merchant %s", deal.ShortCode, deal.MerchantID))
	s.Events.DealCreated(ctx, deal)
	return deal, nil
}

// UpdateDeal applies a partial patch. Only supplied fields change.
func (s *DealService) UpdateDeal(ctx context.Context, p auth.Principal, id string, patch models.DealPatch) (*models.Deal, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}
	deal, err := s.DB.GetDealByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, dealResource(deal), auth.ActionDealUpdate); err != nil {
		return nil, err
	}

	applyPatch(deal, patch)
	if err := validateDeal(deal); err != nil {
		return nil, err
	}
	deal.UpdatedAt = storedTime(s.Clock.Now())

	if err := s.DB.UpdateDeal(ctx, deal); err != nil {
		return nil, err
	}

	s.Logger.LogDeal("UPDATE", deal.ID, "deal updated")
	s.Events.DealUpdated(ctx, deal)
	return deal, nil
}

// DeleteDeal removes a deal that has never been redeemed against.
func (s *DealService) DeleteDeal(ctx context.Context, p auth.Principal, id string) error {
	deal, err := s.DB.GetDealByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, dealResource(deal), auth.ActionDealDelete); err != nil {
		return err
	}

	has, err := s.Redemptions.HasRedemptions(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return errs.Wrap(errs.ErrHasRedemptions, id)
	}

	if err := s.DB.DeleteDeal(ctx, id); err != nil {
		return err
	}
	s.Logger.LogDeal("DELETE", id, "deal deleted")
	return nil
}

// RepostDeal clones an ended deal into a new one starting now. The new window keeps the
// source's span, or RepostDuration when the span is not positive.
func (s *DealService) RepostDeal(ctx context.Context, p auth.Principal, id string) (*models.Deal, error) {
	source, err := s.DB.GetDealByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, dealResource(source), auth.ActionDealRepost); err != nil {
		return nil, err
	}

	now := storedTime(s.Clock.Now())
	if !source.HasEndedAt(now) {
		return nil, errs.Wrapf(errs.ErrDealNotExpired, "deal %s ends at %s", source.ID, utils.FormatISO(source.EndsAt))
	}

	span := source.Span()
	if span <= 0 {
		span = s.RepostDuration
		if span <= 0 {
			span = DefaultRepostDuration
		}
	}

	sourceID := source.ID
	deal := &models.Deal{
		ID:             utils.GenerateID(),
		MerchantID:     source.MerchantID,
		Title:          source.Title,
		Description:    source.Description,
		DiscountType:   source.DiscountType,
		DiscountValue:  source.DiscountValue,
		Currency:       source.Currency,
		StartsAt:       now,
		EndsAt:         now.Add(span),
		RedemptionCap:  copyCap(source.RedemptionCap),
		ImageURL:       source.ImageURL,
		RepostedFromID: &sourceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.insertWithFreshCode(ctx, deal); err != nil {
		return nil, err
	}

	s.Logger.LogDeal("REPOST", deal.ID, fmt.Sprintf("reposted from %s", sourceID))
	s.Events.DealReposted(ctx, deal)
	return deal, nil
}

func (s *DealService) insertWithFreshCode(ctx context.Context, deal *models.Deal) error {
	_, err := s.Codes.Allocate(ctx, s.DB.ShortCodeExists, func(ctx context.Context, code string) error {
		deal.ShortCode = code
		return s.DB.CreateDeal(ctx, deal)
	})
	if err != nil {
		if errs.Is(err, errs.ErrShortCodeExhausted) {
			s.Logger.Warn("DEAL", fmt.Sprintf("Short code allocation exhausted for deal %s", deal.ID))
		}
		return err
	}
	return nil
}

func dealResource(d *models.Deal) auth.Resource {
	return auth.Resource{Kind: "deal", ID: d.ID, MerchantID: d.MerchantID}
}

func copyCap(c *int) *int {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
