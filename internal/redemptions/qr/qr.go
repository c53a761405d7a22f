package qr

import (
	"encoding/json"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-deals/internal/models"
)

const DefaultSize = 256

type DealPayload struct {
	Type      string `json:"type"`
	DealID    string `json:"dealId"`
	ExpiresAt string `json:"expiresAt"`
}

type QRGenerator struct {
	size int
}

func NewQRGenerator(size int) *QRGenerator {
	if size <= 0 {
		size = DefaultSize
	}
	return &QRGenerator{size: size}
}

// CodePNG encodes the redemption code as plain text.
func (q *QRGenerator) CodePNG(code string) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, q.size)
}

// DealPNG encodes a DEAL payload pointing at the deal page.
func (q *QRGenerator) DealPNG(deal *models.Deal) ([]byte, error) {
	data, err := json.Marshal(NewDealPayload(deal))
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(data), qrcode.Medium, q.size)
}

func NewDealPayload(deal *models.Deal) DealPayload {
	return DealPayload{
		Type:      "DEAL",
		DealID:    deal.ID,
		ExpiresAt: deal.EndsAt.UTC().Format(time.RFC3339),
	}
}
