package models

import "time"

type DealEvent struct {
	Type       string    `json:"type"`
	DealID     string    `json:"dealId"`
	MerchantID string    `json:"merchantId"`
	ShortCode  string    `json:"shortCode"`
	SourceID   string    `json:"sourceId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type RedemptionEvent struct {
	Type         string     `json:"type"`
	RedemptionID string     `json:"redemptionId"`
	DealID       string     `json:"dealId"`
	MerchantID   string     `json:"merchantId"`
	Code         string     `json:"code"`
	RedeemedAt   *time.Time `json:"redeemedAt,omitempty"`
	OccurredAt   time.Time  `json:"occurredAt"`
}
