package revenue

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PartyBalance is a projection of a party's ledger entries in one currency.
// It is always recomputable from the entries and never stored.
type PartyBalance struct {
	Party             Party
	Currency          valueobject.Currency
	TotalPending      decimal.Decimal
	TotalCleared      decimal.Decimal
	NetBalance        decimal.Decimal
	PendingEntryCount int
	ClearedEntryCount int
	LastUpdated       time.Time
}

// ComputeBalance folds entries into pending and cleared totals with debits
// negative. Entries for other parties or currencies are ignored.
func ComputeBalance(party Party, currency valueobject.Currency, entries []*LedgerEntry) PartyBalance {
	b := PartyBalance{
		Party:        party,
		Currency:     currency,
		TotalPending: decimal.Zero,
		TotalCleared: decimal.Zero,
	}
	for _, e := range entries {
		if e.Party != party || e.Currency != currency {
			continue
		}
		switch e.Status {
		case EntryStatusPending:
			b.TotalPending = b.TotalPending.Add(e.SignedAmount())
			b.PendingEntryCount++
		case EntryStatusCleared:
			b.TotalCleared = b.TotalCleared.Add(e.SignedAmount())
			b.ClearedEntryCount++
		}
		if e.UpdatedAt.After(b.LastUpdated) {
			b.LastUpdated = e.UpdatedAt
		}
	}
	b.TotalPending = valueobject.NormalizeZero(b.TotalPending)
	b.TotalCleared = valueobject.NormalizeZero(b.TotalCleared)
	b.NetBalance = valueobject.NormalizeZero(b.TotalPending.Add(b.TotalCleared))
	if b.LastUpdated.IsZero() {
		b.LastUpdated = time.Now().UTC()
	}
	return b
}

// SortForSettlement orders entries oldest first with the id as tie-break
func SortForSettlement(entries []*LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].EntryDate.Before(entries[j].EntryDate)
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
}

// WithoutOffsetPairs drops every pending credit whose pending reversing debit
// is also in entries, together with that debit. Such a pair nets to zero and
// is never payable. A debit whose credit is absent stays in the result.
func WithoutOffsetPairs(entries []*LedgerEntry) []*LedgerEntry {
	pendingCredits := make(map[uuid.UUID]bool)
	for _, e := range entries {
		if e.Type == EntryTypeCredit && e.IsPending() {
			pendingCredits[e.ID] = true
		}
	}
	offset := make(map[uuid.UUID]bool)
	for _, e := range entries {
		if e.Type == EntryTypeDebit && e.IsPending() && e.ReversesEntryID != nil && pendingCredits[*e.ReversesEntryID] {
			offset[*e.ReversesEntryID] = true
			offset[e.ID] = true
		}
	}
	if len(offset) == 0 {
		return entries
	}
	out := make([]*LedgerEntry, 0, len(entries)-len(offset))
	for _, e := range entries {
		if !offset[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
