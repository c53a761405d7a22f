package utils

import (
	"context"

	"ms-deals/internal/errs"
)

const DefaultCodeAttempts = 3

// CodeGenerator is swapped in tests to force collisions.
type CodeGenerator func(length int) (string, error)

// UniqueCodeAllocator regenerates a short code until insert succeeds or attempts run out.
type UniqueCodeAllocator struct {
	Generate CodeGenerator
	Length   int
	Attempts int
}

func NewUniqueCodeAllocator(length, attempts int) *UniqueCodeAllocator {
	return &UniqueCodeAllocator{Generate: GenerateShortCode, Length: length, Attempts: attempts}
}

// Allocate calls exists before each insert to skip known codes; an insert that reports
// errs.ErrConflict (unique violation) also counts as a collision. Any other error stops the loop.
func (a *UniqueCodeAllocator) Allocate(ctx context.Context, exists func(context.Context, string) (bool, error), insert func(context.Context, string) error) (string, error) {
	attempts := a.Attempts
	if attempts <= 0 {
		attempts = DefaultCodeAttempts
	}
	generate := a.Generate
	if generate == nil {
		generate = GenerateShortCode
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", errs.Unexpected(err, "allocate code")
		}
		code, err := generate(a.Length)
		if err != nil {
			return "", errs.Unexpected(err, "generate code")
		}

		if exists != nil {
			taken, err := exists(ctx, code)
			if err != nil {
				return "", err
			}
			if taken {
				continue
			}
		}

		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errs.Is(err, errs.ErrConflict) {
			return "", err
		}
	}
	return "", errs.ErrShortCodeExhausted
}
