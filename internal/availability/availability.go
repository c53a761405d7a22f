// Package availability derives remaining stock for a deal from its cap and redeemed count.
package availability

type Status string

const (
	StatusOK Status = "ok"
	// StatusUnknown is served when the count could not be read in time.
	StatusUnknown Status = "unknown"
)

type View struct {
	DealID  string `json:"dealId"`
	Limited bool   `json:"limited"`
	Cap     *int   `json:"cap"`
	Left    *int   `json:"left"`
	SoldOut bool   `json:"soldOut"`
	Status  Status `json:"status"`
}

// Compute applies the cap only when it is set and positive. A zero cap is never
// accepted on write, so a stored zero only comes from legacy rows and reads as unlimited.
func Compute(cap *int, redeemed int) View {
	if cap == nil || *cap <= 0 {
		return View{Status: StatusOK}
	}
	left := *cap - redeemed
	if left < 0 {
		left = 0
	}
	c := *cap
	return View{
		Limited: true,
		Cap:     &c,
		Left:    &left,
		SoldOut: redeemed >= *cap,
		Status:  StatusOK,
	}
}

func Unknown(dealID string) View {
	return View{DealID: dealID, Status: StatusUnknown}
}
