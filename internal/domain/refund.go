package domain

import "time"

// Refund reverses part or all of a charge. Refunds are never updated; they
// go away only with their charge.
type Refund struct {
	ID        string
	ChargeID  string
	Amount    int64
	Currency  string
	CreatedAt time.Time
}

// SumRefunds returns the total of refunds, or nil for an empty slice so
// "never refunded" stays distinguishable.
func SumRefunds(refunds []*Refund) *int64 {
	if len(refunds) == 0 {
		return nil
	}
	var total int64
	for _, r := range refunds {
		total += r.Amount
	}
	return &total
}
