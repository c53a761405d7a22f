package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	DiscountNone       DiscountType = "none"
)

func (d DiscountType) Valid() bool {
	switch d {
	case DiscountPercentage, DiscountFixed, DiscountNone:
		return true
	}
	return false
}

type Deal struct {
	bun.BaseModel `bun:"table:deals"`

	ID             string          `bun:"id,pk" json:"id"`
	MerchantID     string          `bun:"merchant_id,notnull" json:"merchantId"`
	ShortCode      string          `bun:"short_code,unique,notnull" json:"shortCode"`
	Title          string          `bun:"title,notnull" json:"title"`
	Description    string          `bun:"description" json:"description"`
	DiscountType   DiscountType    `bun:"discount_type,notnull" json:"discountType"`
	DiscountValue  decimal.Decimal `bun:"discount_value,type:numeric(12,2),notnull" json:"discountValue"`
	Currency       string          `bun:"currency" json:"currency,omitempty"`
	StartsAt       time.Time       `bun:"starts_at,notnull" json:"startsAt"`
	EndsAt         time.Time       `bun:"ends_at,notnull" json:"endsAt"`
	RedemptionCap  *int            `bun:"redemption_cap" json:"redemptionCap"`
	ImageURL       string          `bun:"image_url" json:"imageUrl,omitempty"`
	RepostedFromID *string         `bun:"reposted_from_id" json:"repostedFromId,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
}

// IsActiveAt reports whether t falls inside the validity window, bounds included.
func (d *Deal) IsActiveAt(t time.Time) bool {
	return !t.Before(d.StartsAt) && !t.After(d.EndsAt)
}

func (d *Deal) HasEndedAt(t time.Time) bool {
	return t.After(d.EndsAt)
}

// Span is the length of the validity window; zero or negative when the window is inverted.
func (d *Deal) Span() time.Duration {
	return d.EndsAt.Sub(d.StartsAt)
}

// DealInput carries the fields a merchant supplies on create.
type DealInput struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	Currency      string          `json:"currency"`
	StartsAt      *time.Time      `json:"startsAt"`
	EndsAt        *time.Time      `json:"endsAt"`
	RedemptionCap *int            `json:"redemptionCap"`
	ImageURL      *string         `json:"imageUrl"`
}

// DealPatch is a partial update. Nil fields are left untouched; ClearCap removes the cap.
type DealPatch struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	DiscountType  *DiscountType    `json:"discountType"`
	DiscountValue *decimal.Decimal `json:"discountValue"`
	Currency      *string          `json:"currency"`
	StartsAt      *time.Time       `json:"startsAt"`
	EndsAt        *time.Time       `json:"endsAt"`
	RedemptionCap *int             `json:"redemptionCap"`
	ClearCap      bool             `json:"clearCap"`
	ImageURL      *string          `json:"imageUrl"`
}
