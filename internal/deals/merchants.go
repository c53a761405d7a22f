package deals

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ms-deals/internal/clock"
	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
	"ms-deals/internal/utils"
)

type MerchantDBLayer interface {
	GetMerchantByOwner(ctx context.Context, userID string) (*models.Merchant, error)
	CreateMerchant(ctx context.Context, merchant *models.Merchant) error
}

// MerchantService onboards a user as the owner of one merchant account.
type MerchantService struct {
	DB     MerchantDBLayer
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewMerchantService(db MerchantDBLayer, clk clock.Clock, log *logger.Logger) *MerchantService {
	return &MerchantService{DB: db, Clock: clk, Logger: log}
}

func (s *MerchantService) Register(ctx context.Context, userID, name string) (*models.Merchant, error) {
	if userID == "" {
		return nil, errs.ErrMissingIdentity
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > MaxTitleLength {
		return nil, errs.Validation("name must be at most %d characters", MaxTitleLength)
	}

	merchant := &models.Merchant{
		ID:          utils.GenerateID(),
		OwnerUserID: userID,
		Name:        name,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.DB.CreateMerchant(ctx, merchant); err != nil {
		if errs.Is(err, errs.ErrConflict) {
			return nil, errs.Wrapf(err, "user %s already owns a merchant", userID)
		}
		return nil, err
	}

	s.Logger.Info("DEAL", fmt.Sprintf("Merchant %s registered for user %s", merchant.ID, userID))
	return merchant, nil
}

func (s *MerchantService) Get(ctx context.Context, userID string) (*models.Merchant, error) {
	if userID == "" {
		return nil, errs.ErrMissingIdentity
	}
	return s.DB.GetMerchantByOwner(ctx, userID)
}
