package revenue

import (
	"strings"
	"testing"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestRule(t *testing.T, admin, team, vendor string, isDefault bool) *RevenueRule {
	t.Helper()
	rule, err := NewRevenueRule("Standard", "default split", d(admin), d(team), d(vendor), isDefault)
	require.NoError(t, err)
	rule.ClearDomainEvents()
	return rule
}

func TestValidatePercentages(t *testing.T) {
	tests := []struct {
		name                string
		admin, team, vendor string
		wantErr             bool
	}{
		{"exact hundred", "40", "40", "20", false},
		{"within tolerance below", "33.33", "33.33", "33.33", false},
		{"within tolerance above", "33.34", "33.34", "33.33", false},
		{"zero share allowed", "70", "30", "0", false},
		{"all to one party", "100", "0", "0", false},
		{"four decimals", "33.3333", "33.3333", "33.3334", false},
		{"sum too low", "40", "40", "19", true},
		{"sum too high", "50", "40", "20", true},
		{"negative", "-10", "60", "50", true},
		{"over hundred", "101", "0", "-1", true},
		{"five decimals", "33.33333", "33.33333", "33.33334", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePercentages(d(tt.admin), d(tt.team), d(tt.vendor))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewRevenueRule(t *testing.T) {
	t.Run("creates active rule and raises created event", func(t *testing.T) {
		rule, err := NewRevenueRule("  Standard  ", " split ", d("40"), d("40"), d("20"), true)

		require.NoError(t, err)
		assert.Equal(t, "Standard", rule.Name)
		assert.Equal(t, "split", rule.Description)
		assert.True(t, rule.IsActive)
		assert.True(t, rule.IsDefault)
		assert.Equal(t, 1, rule.GetVersion())

		events := rule.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeRevenueRuleCreated, events[0].EventType())
		assert.Equal(t, rule.ID, events[0].AggregateID())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewRevenueRule("   ", "", d("40"), d("40"), d("20"), false)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects long name", func(t *testing.T) {
		_, err := NewRevenueRule(strings.Repeat("x", 101), "", d("40"), d("40"), d("20"), false)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects bad percentages", func(t *testing.T) {
		_, err := NewRevenueRule("Bad", "", d("50"), d("50"), d("50"), false)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestRevenueRule_Shares(t *testing.T) {
	rule := newTestRule(t, "40", "35", "25", false)

	shares := rule.Shares()

	require.Len(t, shares, 3)
	assert.Equal(t, PartyAdmin, shares[0].Party)
	assert.Equal(t, PartyTeam, shares[1].Party)
	assert.Equal(t, PartyVendor, shares[2].Party)
	assert.True(t, shares[1].Percent.Equal(d("35")))
	assert.True(t, rule.Percent(Party("nobody")).IsZero())
}

func TestRevenueRule_Apply(t *testing.T) {
	t.Run("updates percentages together", func(t *testing.T) {
		rule := newTestRule(t, "40", "40", "20", false)
		admin, vendor := d("50"), d("10")

		changed, err := rule.Apply(RuleUpdate{AdminPercent: &admin, VendorPercent: &vendor}, true)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"admin_percent", "vendor_percent"}, changed)
		assert.True(t, rule.AdminPercent.Equal(admin))
		events := rule.GetDomainEvents()
		require.Len(t, events, 1)
		updated, ok := events[0].(*RevenueRuleUpdatedEvent)
		require.True(t, ok)
		assert.True(t, updated.HasLedgerActivity)
	})

	t.Run("invalid merge leaves rule untouched", func(t *testing.T) {
		rule := newTestRule(t, "40", "40", "20", false)
		admin := d("60")

		_, err := rule.Apply(RuleUpdate{AdminPercent: &admin}, false)

		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.True(t, rule.AdminPercent.Equal(d("40")))
		assert.Empty(t, rule.GetDomainEvents())
	})

	t.Run("no-op patch reports nothing changed", func(t *testing.T) {
		rule := newTestRule(t, "40", "40", "20", false)
		name := "Standard"

		changed, err := rule.Apply(RuleUpdate{Name: &name}, false)

		require.NoError(t, err)
		assert.Empty(t, changed)
		assert.Empty(t, rule.GetDomainEvents())
	})

	t.Run("deactivation clears default", func(t *testing.T) {
		rule := newTestRule(t, "40", "40", "20", true)
		inactive := false

		changed, err := rule.Apply(RuleUpdate{IsActive: &inactive}, false)

		require.NoError(t, err)
		assert.Contains(t, changed, "is_active")
		assert.Contains(t, changed, "is_default")
		assert.False(t, rule.IsDefault)
		events := rule.GetDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventTypeRevenueRuleDeactivated, events[1].EventType())
	})

	t.Run("inactive rule cannot become default", func(t *testing.T) {
		rule := newTestRule(t, "40", "40", "20", false)
		rule.Deactivate()
		rule.ClearDomainEvents()
		yes := true

		_, err := rule.Apply(RuleUpdate{IsDefault: &yes}, false)

		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.False(t, rule.IsDefault)
	})
}

func TestRevenueRule_Deactivate(t *testing.T) {
	rule := newTestRule(t, "40", "40", "20", true)

	assert.True(t, rule.Deactivate())
	assert.False(t, rule.IsActive)
	assert.False(t, rule.IsDefault)
	assert.False(t, rule.Deactivate())
	assert.Len(t, rule.GetDomainEvents(), 1)
}
