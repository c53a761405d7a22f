package errs

import cr "github.com/cockroachdb/errors"

// Domain-specific errors. Each keeps its own identity; its kind comes from the
// domainErrors table rather than a mark, so two reasons of the same kind never
// compare equal under Is.
var (
	ErrDealNotFound = cr.New("deal not found")
	ErrCodeNotFound = cr.New("redemption code not found")

	ErrAlreadyRedeemed    = cr.New("redemption code already redeemed")
	ErrSoldOut            = cr.New("deal is sold out")
	ErrDealNotExpired     = cr.New("deal has not expired yet")
	ErrShortCodeExhausted = cr.New("could not allocate a unique code")
	ErrHasRedemptions     = cr.New("deal has redemptions")

	ErrDealNotActive = cr.New("deal is not active")
	ErrDealExpired   = cr.New("deal has expired")

	ErrNotOwner        = cr.New("caller does not own this resource")
	ErrNoMerchant      = cr.New("no merchant account for principal")
	ErrMissingIdentity = cr.New("authentication required")
)

var domainErrors = []struct {
	err  error
	kind error
	name string
}{
	{ErrDealNotFound, ErrNotFound, "DealNotFound"},
	{ErrCodeNotFound, ErrNotFound, "CodeNotFound"},
	{ErrAlreadyRedeemed, ErrConflict, "AlreadyRedeemed"},
	{ErrSoldOut, ErrConflict, "SoldOut"},
	{ErrDealNotExpired, ErrConflict, "DealNotExpired"},
	{ErrShortCodeExhausted, ErrConflict, "ShortCodeExhausted"},
	{ErrHasRedemptions, ErrConflict, "HasRedemptions"},
	{ErrDealNotActive, ErrNotActive, "DealNotActive"},
	{ErrDealExpired, ErrNotActive, "DealExpired"},
	{ErrNotOwner, ErrForbidden, "NotOwner"},
	{ErrNoMerchant, ErrForbidden, "NoMerchant"},
	{ErrMissingIdentity, ErrUnauthorized, "Unauthenticated"},
}

// Reason names the domain error err carries, falling back to its kind.
func Reason(err error) string {
	for _, d := range domainErrors {
		if cr.Is(err, d.err) {
			return d.name
		}
	}
	switch Kind(err) {
	case ErrValidation:
		return "ValidationError"
	case ErrNotFound:
		return "NotFound"
	case ErrConflict:
		return "Conflict"
	case ErrNotActive:
		return "NotActive"
	case ErrUnauthorized:
		return "Unauthenticated"
	case ErrForbidden:
		return "Forbidden"
	}
	return "UnexpectedError"
}
