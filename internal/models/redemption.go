package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RedemptionStatus string

const (
	RedemptionIssued   RedemptionStatus = "issued"
	RedemptionRedeemed RedemptionStatus = "redeemed"
)

type Redemption struct {
	bun.BaseModel `bun:"table:redemptions"`

	ID         string           `bun:"id,pk" json:"id"`
	DealID     string           `bun:"deal_id,notnull" json:"dealId"`
	Code       string           `bun:"code,unique,notnull" json:"code"`
	Status     RedemptionStatus `bun:"status,notnull" json:"status"`
	CreatedAt  time.Time        `bun:"created_at,notnull" json:"createdAt"`
	RedeemedAt *time.Time       `bun:"redeemed_at" json:"redeemedAt"`
	RedeemedBy *string          `bun:"redeemed_by" json:"redeemedBy,omitempty"`

	// Replayed is set when a retried confirm is answered from the idempotency record.
	Replayed bool `bun:"-" json:"replayed,omitempty"`
}

func (r *Redemption) IsRedeemed() bool {
	return r.RedeemedAt != nil
}

// RedeemedCount is a row of the grouped per-deal count.
type RedeemedCount struct {
	DealID string `bun:"deal_id"`
	Count  int    `bun:"count"`
}
