package auth

import (
	"ms-deals/internal/errs"
)

type Action string

const (
	ActionDealUpdate        Action = "deal:update"
	ActionDealDelete        Action = "deal:delete"
	ActionDealRepost        Action = "deal:repost"
	ActionDealRedemptions   Action = "deal:redemptions"
	ActionRedemptionConfirm Action = "redemption:confirm"
)

// Resource is anything owned by a merchant account.
type Resource struct {
	Kind       string
	ID         string
	MerchantID string
}

// Authorize is the one ownership check every merchant-side operation goes through.
func Authorize(p Principal, res Resource, action Action) error {
	if p.UserID == "" {
		return errs.ErrMissingIdentity
	}
	if p.MerchantID == "" {
		return errs.Wrapf(errs.ErrNoMerchant, "%s on %s %s", action, res.Kind, res.ID)
	}
	switch action {
	case ActionDealUpdate, ActionDealDelete, ActionDealRepost, ActionDealRedemptions, ActionRedemptionConfirm:
		if res.MerchantID != p.MerchantID {
			return errs.Wrapf(errs.ErrNotOwner, "%s on %s %s", action, res.Kind, res.ID)
		}
		return nil
	}
	return errs.Wrapf(errs.ErrNotOwner, "unknown action %s", action)
}
