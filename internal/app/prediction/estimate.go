package prediction

import (
	"math"

	"github.com/shopspring/decimal"
)

// AmountEstimator converts a predicted sales count into money.
type AmountEstimator interface {
	Estimate(salesCount int) decimal.Decimal
}

// TicketAmountEstimator prices every predicted sale at a fixed average
// ticket. The model forecasts volume only; amounts are derived, never
// learned.
type TicketAmountEstimator struct {
	AverageTicket decimal.Decimal
}

// Estimate returns salesCount × AverageTicket, rounded to cents.
func (e TicketAmountEstimator) Estimate(salesCount int) decimal.Decimal {
	return e.AverageTicket.Mul(decimal.NewFromInt(int64(salesCount))).Round(2)
}

// StaffFor returns how many staff a predicted sales count needs:
// ceil(count / salesPerStaff), never below one.
func StaffFor(salesCount int, salesPerStaff float64) int {
	if salesPerStaff <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(salesCount)/salesPerStaff)))
}
