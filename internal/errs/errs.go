package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Kinds. Every error leaving a service is marked with exactly one of these.
var (
	ErrValidation   = cr.New("validation error")
	ErrNotFound     = cr.New("not found")
	ErrConflict     = cr.New("conflict")
	ErrNotActive    = cr.New("not active")
	ErrUnauthorized = cr.New("unauthenticated")
	ErrForbidden    = cr.New("forbidden")
	ErrUnexpected   = cr.New("unexpected error")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

// Is reports whether err matches reference. A kind sentinel as reference
// matches every error of that kind, domain errors included.
func Is(err, reference error) bool {
	if err == nil || reference == nil {
		return err == reference
	}
	if isKind(reference) {
		return Kind(err) == reference
	}
	return cr.Is(err, reference)
}

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrNotActive, ErrUnauthorized, ErrForbidden}

func isKind(err error) bool {
	if err == ErrUnexpected {
		return true
	}
	for _, k := range kinds {
		if err == k {
			return true
		}
	}
	return false
}

// Validation builds a caller-fixable error.
func Validation(format string, args ...interface{}) error {
	return cr.Mark(cr.Newf(format, args...), ErrValidation)
}

// Unexpected wraps a storage or network failure.
func Unexpected(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrUnexpected)
}

// Kind returns the kind of the domain error err carries, or the kind sentinel
// err is marked with, ErrUnexpected if neither.
func Kind(err error) error {
	for _, d := range domainErrors {
		if cr.Is(err, d.err) {
			return d.kind
		}
	}
	for _, k := range kinds {
		if cr.Is(err, k) {
			return k
		}
	}
	return ErrUnexpected
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
