package revenue

import (
	"fmt"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Share is one party's portion of a payment
type Share struct {
	Party  Party
	Amount valueobject.Money
	// Percent is the rule percentage the share was computed from
	Percent string
}

// SplitCalculator computes revenue shares for a payment under a rule
type SplitCalculator struct{}

func NewSplitCalculator() *SplitCalculator {
	return &SplitCalculator{}
}

// Split rounds each party's share to the currency minor unit and assigns
// the rounding residual to the party with the largest percentage (canonical
// order on ties), so the shares always sum to the amount exactly. Parties
// whose share rounds to zero are omitted.
func (c *SplitCalculator) Split(amount valueobject.Money, rule *RevenueRule) ([]Share, error) {
	if rule == nil {
		return nil, shared.NewValidationError("a revenue rule is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount to split must be positive")
	}
	if err := ValidatePercentages(rule.AdminPercent, rule.TeamPercent, rule.VendorPercent); err != nil {
		return nil, err
	}

	parts := rule.Shares()
	percents := make([]decimal.Decimal, len(parts))
	for i, pp := range parts {
		percents[i] = pp.Percent
	}

	allocated, err := amount.AllocateByPercent(percents)
	if err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("cannot split amount: %v", err))
	}

	shares := make([]Share, 0, len(parts))
	for i, pp := range parts {
		if !allocated[i].IsPositive() {
			continue
		}
		shares = append(shares, Share{
			Party:   pp.Party,
			Amount:  allocated[i],
			Percent: pp.Percent.String(),
		})
	}
	return shares, nil
}
