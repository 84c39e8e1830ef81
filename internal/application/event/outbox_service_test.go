package event

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memOutboxRepo keeps outbox rows in insertion order
type memOutboxRepo struct {
	order   []uuid.UUID
	entries map[uuid.UUID]*shared.OutboxEntry
}

func newMemOutboxRepo() *memOutboxRepo {
	return &memOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

// put stores an entry for eventType in status and returns it
func (r *memOutboxRepo) put(eventType string, status shared.OutboxStatus) *shared.OutboxEntry {
	now := time.Now().UTC()
	e := &shared.OutboxEntry{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   uuid.New(),
		AggregateType: "Payment",
		Status:        status,
		MaxRetries:    5,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == shared.OutboxStatusDead {
		e.RetryCount = e.MaxRetries
		e.LastError = "handler failed: settlement archive unreachable"
	}
	_ = r.Save(context.Background(), e)
	return e
}

func (r *memOutboxRepo) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		if _, ok := r.entries[e.ID]; !ok {
			r.order = append(r.order, e.ID)
		}
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memOutboxRepo) withStatus(status shared.OutboxStatus) []*shared.OutboxEntry {
	var out []*shared.OutboxEntry
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok && e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func (r *memOutboxRepo) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	pending := r.withStatus(shared.OutboxStatusPending)
	return pending[:min(limit, len(pending))], nil
}

func (r *memOutboxRepo) FindRetryable(context.Context, time.Time, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memOutboxRepo) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.withStatus(shared.OutboxStatusDead)
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	return dead[start:min(start+pageSize, len(dead))], total, nil
}

func (r *memOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	return r.entries[id], nil
}

func (r *memOutboxRepo) MarkProcessing(context.Context, []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memOutboxRepo) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *memOutboxRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.UpdatedAt.Before(before) {
			delete(r.entries, id)
			r.order = slices.DeleteFunc(r.order, func(x uuid.UUID) bool { return x == id })
			n++
		}
	}
	return n, nil
}

func (r *memOutboxRepo) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())

	for range 5 {
		repo.put("SettlementCreated", shared.OutboxStatusDead)
	}
	repo.put("PaymentVerified", shared.OutboxStatusPending)

	first, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 5, first.Total)
	assert.Len(t, first.Entries, 3)

	second, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, second.Entries, 2)
	for _, e := range append(first.Entries, second.Entries...) {
		assert.Equal(t, "DEAD", e.Status)
		assert.Equal(t, "SettlementCreated", e.EventType)
		assert.NotEmpty(t, e.LastError)
	}
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	dead := repo.put("LedgerEntriesCreated", shared.OutboxStatusDead)
	pending := repo.put("PaymentApproved", shared.OutboxStatusPending)

	t.Run("dead entry is requeued", func(t *testing.T) {
		out, err := svc.RetryDeadEntry(context.Background(), dead.ID)
		require.NoError(t, err)
		assert.Equal(t, "PENDING", out.Status)
		assert.Zero(t, out.RetryCount)
		assert.Empty(t, out.LastError)
	})

	t.Run("live entry is rejected", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(context.Background(), pending.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, nil)

	for range 150 {
		repo.put("PaymentReversed", shared.OutboxStatusDead)
	}
	sent := repo.put("PaymentRecorded", shared.OutboxStatusSent)

	count, err := svc.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 150, count)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Dead)
	assert.EqualValues(t, 150, stats.Pending)
	assert.Equal(t, shared.OutboxStatusSent, repo.entries[sent.ID].Status)
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())

	counts := map[shared.OutboxStatus]int{
		shared.OutboxStatusPending:    2,
		shared.OutboxStatusProcessing: 1,
		shared.OutboxStatusSent:       3,
		shared.OutboxStatusFailed:     1,
		shared.OutboxStatusDead:       1,
	}
	for status, n := range counts {
		for range n {
			repo.put("PaymentVerified", status)
		}
	}

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutboxStatsDTO{Pending: 2, Processing: 1, Sent: 3, Failed: 1, Dead: 1, Total: 8}, *stats)
}

func TestOutboxService_GetEntry(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())

	entry := repo.put("SettlementCreated", shared.OutboxStatusFailed)
	entry.LastError = "archive unavailable"

	out, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, out.EventID)
	assert.Equal(t, "FAILED", out.Status)
	assert.Equal(t, "archive unavailable", out.LastError)

	_, err = svc.GetEntry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxService_PurgeSent(t *testing.T) {
	repo := newMemOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())

	old := repo.put("PaymentRecorded", shared.OutboxStatusSent)
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	repo.put("PaymentApproved", shared.OutboxStatusSent)
	staleDead := repo.put("PaymentVerified", shared.OutboxStatusDead)
	staleDead.UpdatedAt = time.Now().Add(-48 * time.Hour)

	n, err := svc.PurgeSent(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Len(t, repo.entries, 2)
	assert.NotContains(t, repo.entries, old.ID)
}
