package persistence

import (
	"testing"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	for input, want := range map[string]string{
		"":                          "DESC",
		"asc":                       "ASC",
		" ASC ":                     "ASC",
		"desc":                      "DESC",
		"ascending":                 "DESC",
		"ASC; DELETE FROM payments": "DESC",
	} {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		input    string
		fallback string
		want     string
	}{
		{"", "settlement_date", "settlement_date"},
		{"total_amount", "settlement_date", "total_amount"},
		{"  party ", "settlement_date", "party"},
		{"PARTY", "settlement_date", "settlement_date"},
		{"notes", "settlement_date", "settlement_date"},
		{"party, created_by", "settlement_date", "settlement_date"},
		{"proof_reference", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortField(tt.input, SettlementSortFields, tt.fallback))
		})
	}
}

func TestSortFieldsWhitelists(t *testing.T) {
	whitelists := map[string]map[string]bool{
		"CommonSortFields":      CommonSortFields,
		"RevenueRuleSortFields": RevenueRuleSortFields,
		"PaymentSortFields":     PaymentSortFields,
		"LedgerEntrySortFields": LedgerEntrySortFields,
		"SettlementSortFields":  SettlementSortFields,
	}

	commonFields := []string{"id", "created_at", "updated_at"}

	for name, whitelist := range whitelists {
		t.Run(name+" contains common fields", func(t *testing.T) {
			for _, field := range commonFields {
				assert.True(t, whitelist[field], "%s should contain '%s'", name, field)
			}
		})

		t.Run(name+" is not empty", func(t *testing.T) {
			assert.GreaterOrEqual(t, len(whitelist), 3, "%s should have at least 3 fields", name)
		})
	}
}

func TestSQLInjectionPrevention(t *testing.T) {
	injectionPayloads := []string{
		"amount; UPDATE ledger_entries SET status = 'cleared'--",
		"amount' OR '1'='1",
		"party UNION SELECT * FROM settlements",
		"(SELECT MAX(amount) FROM ledger_entries)",
		"CASE WHEN 1=1 THEN amount ELSE party END",
		"entry_date/**/;DROP TABLE payments",
		"status\n; TRUNCATE outbox_events",
	}

	for _, payload := range injectionPayloads {
		t.Run("field: "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "entry_date", ValidateSortField(payload, LedgerEntrySortFields, "entry_date"))
		})

		t.Run("order: "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "DESC", ValidateSortOrder(payload))
		})
	}
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name   string
		filter shared.Filter
		want   string
	}{
		{"default field and direction", shared.Filter{}, "entry_date DESC, id DESC"},
		{"allowed field ascending", shared.Filter{OrderBy: "amount", OrderDir: "asc"}, "amount ASC, id ASC"},
		{"id has no tie-break", shared.Filter{OrderBy: "id", OrderDir: "asc"}, "id ASC"},
		{"unknown field falls back", shared.Filter{OrderBy: "remarks; --", OrderDir: "asc"}, "entry_date ASC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.filter, LedgerEntrySortFields, "entry_date"))
		})
	}
}
