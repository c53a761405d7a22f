package qr

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-deals/internal/models"
)

func TestCodePNG_DecodesAsImage(t *testing.T) {
	g := NewQRGenerator(0)

	data, err := g.CodePNG("ABCDE")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestNewDealPayload(t *testing.T) {
	ends := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	p := NewDealPayload(&models.Deal{ID: "deal-1", EndsAt: ends})

	assert.Equal(t, "DEAL", p.Type)
	assert.Equal(t, "deal-1", p.DealID)
	assert.Equal(t, "2026-03-01T18:00:00Z", p.ExpiresAt)
}

func TestDealPNG(t *testing.T) {
	g := NewQRGenerator(128)
	data, err := g.DealPNG(&models.Deal{ID: "deal-1", EndsAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
