package utils_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ms-deals/internal/errs"
	"ms-deals/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShortCode(t *testing.T) {
	code, err := utils.GenerateShortCode(0)
	require.NoError(t, err)
	assert.Len(t, code, utils.DefaultShortCodeLength)

	code, err = utils.GenerateShortCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	for _, r := range code {
		assert.True(t, strings.ContainsRune(utils.ShortCodeAlphabet, r), "unexpected glyph %q", r)
	}
}

func TestShortCodeAlphabetHasNoAmbiguousGlyphs(t *testing.T) {
	for _, r := range "0O1I" {
		assert.False(t, strings.ContainsRune(utils.ShortCodeAlphabet, r), "alphabet contains %q", r)
	}
}

func TestGenerateShortCodeCollisionRate(t *testing.T) {
	// 10k draws over 32^5 (~33.5M) codes expect about 1.5 collisions.
	seen := make(map[string]struct{}, 10000)
	collisions := 0
	for i := 0; i < 10000; i++ {
		code, err := utils.GenerateShortCode(5)
		require.NoError(t, err)
		if _, ok := seen[code]; ok {
			collisions++
		}
		seen[code] = struct{}{}
	}
	assert.Less(t, collisions, 20)
}

func TestAllocateSkipsExistingCodes(t *testing.T) {
	codes := []string{"AAAAA", "BBBBB"}
	a := &utils.UniqueCodeAllocator{
		Generate: func(int) (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		},
		Attempts: 3,
	}

	var inserted string
	code, err := a.Allocate(context.Background(),
		func(_ context.Context, c string) (bool, error) { return c == "AAAAA", nil },
		func(_ context.Context, c string) error { inserted = c; return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "BBBBB", code)
	assert.Equal(t, "BBBBB", inserted)
}

func TestAllocateRetriesUniqueViolation(t *testing.T) {
	calls := 0
	a := &utils.UniqueCodeAllocator{
		Generate: func(int) (string, error) { return "CCCCC", nil },
		Attempts: 3,
	}
	_, err := a.Allocate(context.Background(), nil, func(context.Context, string) error {
		calls++
		return errs.Mark(errors.New("duplicate key"), errs.ErrConflict)
	})
	assert.True(t, errs.Is(err, errs.ErrShortCodeExhausted))
	assert.Equal(t, 3, calls)
}

func TestAllocateStopsOnStorageError(t *testing.T) {
	calls := 0
	a := &utils.UniqueCodeAllocator{Generate: func(int) (string, error) { return "DDDDD", nil }, Attempts: 3}
	_, err := a.Allocate(context.Background(), nil, func(context.Context, string) error {
		calls++
		return errs.Unexpected(errors.New("connection reset"), "insert")
	})
	assert.True(t, errs.Is(err, errs.ErrUnexpected))
	assert.Equal(t, 1, calls)
}
