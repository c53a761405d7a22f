package auth

import (
	"context"

	"ms-deals/internal/errs"
	"ms-deals/internal/models"
)

// Principal is an authenticated user resolved to the merchant account it acts for.
type Principal struct {
	UserID     string
	MerchantID string
	// Demo is set when MerchantID came from the configured demo tenant.
	Demo bool
}

type MerchantLookup interface {
	GetMerchantByOwner(ctx context.Context, userID string) (*models.Merchant, error)
}

type Resolver struct {
	Merchants         MerchantLookup
	DemoMode          bool
	DefaultMerchantID string
}

// Resolve maps the user in ctx to a merchant. Outside demo mode a user with no merchant fails closed.
func (r *Resolver) Resolve(ctx context.Context) (Principal, error) {
	userID := UserID(ctx)
	if userID == "" {
		return Principal{}, errs.ErrMissingIdentity
	}

	merchant, err := r.Merchants.GetMerchantByOwner(ctx, userID)
	if err == nil {
		return Principal{UserID: userID, MerchantID: merchant.ID}, nil
	}
	if !errs.Is(err, errs.ErrNoMerchant) {
		return Principal{}, err
	}
	if r.DemoMode && r.DefaultMerchantID != "" {
		return Principal{UserID: userID, MerchantID: r.DefaultMerchantID, Demo: true}, nil
	}
	return Principal{UserID: userID}, errs.Wrap(errs.ErrNoMerchant, userID)
}
