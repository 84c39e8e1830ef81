package revenue

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const maxRuleNameLength = 100

var (
	hundredPercent   = decimal.NewFromInt(100)
	percentTolerance = decimal.RequireFromString("0.01")
)

// RevenueRule is a named percentage split across admin, team and vendor.
// Rules are never deleted: deactivation keeps them resolvable for the ledger
// entries that reference them.
type RevenueRule struct {
	shared.BaseAggregateRoot
	Name          string
	Description   string
	AdminPercent  decimal.Decimal
	TeamPercent   decimal.Decimal
	VendorPercent decimal.Decimal
	IsDefault     bool
	IsActive      bool
}

// PartyPercent pairs a party with its configured percentage
type PartyPercent struct {
	Party   Party
	Percent decimal.Decimal
}

// ValidatePercentages checks each percentage lies in [0,100] with at most
// four decimal places and that they total 100 within 0.01.
func ValidatePercentages(admin, team, vendor decimal.Decimal) error {
	for _, pp := range []PartyPercent{{PartyAdmin, admin}, {PartyTeam, team}, {PartyVendor, vendor}} {
		if pp.Percent.IsNegative() || pp.Percent.GreaterThan(hundredPercent) {
			return shared.NewValidationError(fmt.Sprintf("%s percent must be between 0 and 100, got %s", pp.Party, pp.Percent.String()))
		}
		if !pp.Percent.Equal(pp.Percent.Round(4)) {
			return shared.NewValidationError(fmt.Sprintf("%s percent supports at most 4 decimal places", pp.Party))
		}
	}
	total := admin.Add(team).Add(vendor)
	if total.Sub(hundredPercent).Abs().GreaterThan(percentTolerance) {
		return shared.NewValidationError(fmt.Sprintf("percentages must total 100, got %s", total.String()))
	}
	return nil
}

func validateRuleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.NewValidationError("rule name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxRuleNameLength {
		return "", shared.NewValidationError(fmt.Sprintf("rule name cannot exceed %d characters", maxRuleNameLength))
	}
	return name, nil
}

// NewRevenueRule creates an active rule after structural validation
func NewRevenueRule(name, description string, admin, team, vendor decimal.Decimal, isDefault bool) (*RevenueRule, error) {
	name, err := validateRuleName(name)
	if err != nil {
		return nil, err
	}
	if err := ValidatePercentages(admin, team, vendor); err != nil {
		return nil, err
	}

	rule := &RevenueRule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       strings.TrimSpace(description),
		AdminPercent:      admin,
		TeamPercent:       team,
		VendorPercent:     vendor,
		IsDefault:         isDefault,
		IsActive:          true,
	}
	rule.AddDomainEvent(NewRevenueRuleCreatedEvent(rule))
	return rule, nil
}

// Percent returns the configured percentage for a party
func (r *RevenueRule) Percent(p Party) decimal.Decimal {
	switch p {
	case PartyAdmin:
		return r.AdminPercent
	case PartyTeam:
		return r.TeamPercent
	case PartyVendor:
		return r.VendorPercent
	}
	return decimal.Zero
}

// Shares returns every party's percentage in canonical order
func (r *RevenueRule) Shares() []PartyPercent {
	out := make([]PartyPercent, 0, len(AllParties))
	for _, p := range AllParties {
		out = append(out, PartyPercent{Party: p, Percent: r.Percent(p)})
	}
	return out
}

// RuleUpdate is a partial patch; nil fields are left unchanged
type RuleUpdate struct {
	Name          *string
	Description   *string
	AdminPercent  *decimal.Decimal
	TeamPercent   *decimal.Decimal
	VendorPercent *decimal.Decimal
	IsDefault     *bool
	IsActive      *bool
}

// IsEmpty reports whether the patch changes nothing
func (u RuleUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.AdminPercent == nil &&
		u.TeamPercent == nil && u.VendorPercent == nil && u.IsDefault == nil && u.IsActive == nil
}

// Apply validates the merged result of the patch and, if valid, applies it.
// An invalid patch leaves the rule untouched. Deactivating a rule also clears
// its default flag. It returns the names of the fields that changed.
func (r *RevenueRule) Apply(u RuleUpdate, hasLedgerActivity bool) ([]string, error) {
	next := *r
	var changed []string

	if u.Name != nil {
		name, err := validateRuleName(*u.Name)
		if err != nil {
			return nil, err
		}
		if name != r.Name {
			next.Name = name
			changed = append(changed, "name")
		}
	}
	if u.Description != nil && strings.TrimSpace(*u.Description) != r.Description {
		next.Description = strings.TrimSpace(*u.Description)
		changed = append(changed, "description")
	}
	if u.AdminPercent != nil && !u.AdminPercent.Equal(r.AdminPercent) {
		next.AdminPercent = *u.AdminPercent
		changed = append(changed, "admin_percent")
	}
	if u.TeamPercent != nil && !u.TeamPercent.Equal(r.TeamPercent) {
		next.TeamPercent = *u.TeamPercent
		changed = append(changed, "team_percent")
	}
	if u.VendorPercent != nil && !u.VendorPercent.Equal(r.VendorPercent) {
		next.VendorPercent = *u.VendorPercent
		changed = append(changed, "vendor_percent")
	}
	if u.IsActive != nil && *u.IsActive != r.IsActive {
		next.IsActive = *u.IsActive
		changed = append(changed, "is_active")
	}
	if u.IsDefault != nil && *u.IsDefault != r.IsDefault {
		next.IsDefault = *u.IsDefault
		changed = append(changed, "is_default")
	}

	if next.IsDefault && !next.IsActive {
		if u.IsDefault != nil && *u.IsDefault {
			return nil, shared.NewValidationError("an inactive rule cannot be the default")
		}
		next.IsDefault = false
		if r.IsDefault {
			changed = append(changed, "is_default")
		}
	}

	if err := ValidatePercentages(next.AdminPercent, next.TeamPercent, next.VendorPercent); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}

	r.Name = next.Name
	r.Description = next.Description
	r.AdminPercent = next.AdminPercent
	r.TeamPercent = next.TeamPercent
	r.VendorPercent = next.VendorPercent
	r.IsActive = next.IsActive
	r.IsDefault = next.IsDefault
	r.Touch()
	r.AddDomainEvent(NewRevenueRuleUpdatedEvent(r, changed, hasLedgerActivity))
	if !r.IsActive && slices.Contains(changed, "is_active") {
		r.AddDomainEvent(NewRevenueRuleDeactivatedEvent(r))
	}
	return changed, nil
}

// Deactivate soft-deletes the rule. It returns false when already inactive.
func (r *RevenueRule) Deactivate() bool {
	if !r.IsActive {
		return false
	}
	r.IsActive = false
	r.IsDefault = false
	r.Touch()
	r.AddDomainEvent(NewRevenueRuleDeactivatedEvent(r))
	return true
}

// ClearDefault unsets the default flag when another rule takes over
func (r *RevenueRule) ClearDefault() {
	if !r.IsDefault {
		return
	}
	r.IsDefault = false
	r.Touch()
}
