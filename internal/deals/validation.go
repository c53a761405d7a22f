package deals

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"ms-deals/internal/errs"
	"ms-deals/internal/models"
)

// Column limits of the deals table.
const (
	MaxTitleLength = 200
	discountScale  = 2
)

// maxDiscount is the first value NUMERIC(12,2) cannot hold.
var maxDiscount = decimal.New(1, 10)

// storedTime drops what a timestamptz column cannot keep, so a deal reads back as written.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ValidateInput checks a create request before any store access.
func ValidateInput(in models.DealInput) error {
	if in.StartsAt == nil {
		return errs.Validation("startsAt is required")
	}
	if in.EndsAt == nil {
		return errs.Validation("endsAt is required")
	}
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) == "" {
		return errs.Validation("imageUrl must not be empty")
	}
	return validateDeal(&models.Deal{
		Title:         in.Title,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		Currency:      in.Currency,
		StartsAt:      *in.StartsAt,
		EndsAt:        *in.EndsAt,
		RedemptionCap: in.RedemptionCap,
	})
}

// validateDeal holds the rules shared by create and update.
func validateDeal(d *models.Deal) error {
	if strings.TrimSpace(d.Title) == "" {
		return errs.Validation("title is required")
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return errs.Validation("title must be at most %d characters", MaxTitleLength)
	}
	if !d.DiscountType.Valid() {
		return errs.Validation("discountType must be percentage, fixed or none")
	}
	if err := validateDiscountValue(d.DiscountValue); err != nil {
		return err
	}
	if d.Currency != "" && !isCurrencyCode(d.Currency) {
		return errs.Validation("currency must be a 3-letter code")
	}

	switch d.DiscountType {
	case models.DiscountPercentage:
		if !d.DiscountValue.IsPositive() || d.DiscountValue.GreaterThan(hundred) {
			return errs.Validation("percentage discount must be in (0, 100]")
		}
	case models.DiscountFixed:
		if !d.DiscountValue.IsPositive() {
			return errs.Validation("fixed discount must be greater than 0")
		}
		if d.Currency == "" {
			return errs.Validation("fixed discount needs a 3-letter currency")
		}
	}

	if d.StartsAt.IsZero() || d.EndsAt.IsZero() {
		return errs.Validation("startsAt and endsAt are required")
	}
	if d.RedemptionCap != nil && *d.RedemptionCap < 1 {
		return errs.Validation("redemptionCap must be null or at least 1")
	}
	return nil
}

func validateDiscountValue(v decimal.Decimal) error {
	if !v.Equal(v.Truncate(discountScale)) {
		return errs.Validation("discountValue must have at most %d decimal places", discountScale)
	}
	if v.Abs().GreaterThanOrEqual(maxDiscount) {
		return errs.Validation("discountValue is too large")
	}
	return nil
}

func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// ValidatePatch rejects field values that are malformed on their own. Rules that depend
// on the stored deal run after the patch is applied.
func ValidatePatch(p models.DealPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errs.Validation("title must not be empty")
	}
	if p.DiscountType != nil && !p.DiscountType.Valid() {
		return errs.Validation("discountType must be percentage, fixed or none")
	}
	if p.RedemptionCap != nil && *p.RedemptionCap < 1 {
		return errs.Validation("redemptionCap must be null or at least 1")
	}
	if p.ImageURL != nil && strings.TrimSpace(*p.ImageURL) == "" {
		return errs.Validation("imageUrl must not be empty")
	}
	return nil
}

func applyPatch(d *models.Deal, p models.DealPatch) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.DiscountType != nil {
		d.DiscountType = *p.DiscountType
	}
	if p.DiscountValue != nil {
		d.DiscountValue = *p.DiscountValue
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
	}
	if p.StartsAt != nil {
		d.StartsAt = storedTime(*p.StartsAt)
	}
	if p.EndsAt != nil {
		d.EndsAt = storedTime(*p.EndsAt)
	}
	switch {
	case p.ClearCap:
		d.RedemptionCap = nil
	case p.RedemptionCap != nil:
		d.RedemptionCap = copyCap(p.RedemptionCap)
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
}
