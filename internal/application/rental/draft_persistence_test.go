package rental

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "rental:draft:test"

func newTestPersistence(store rental.DraftStore, metrics Metrics) *DraftPersistence {
	return NewDraftPersistence(store, testKey,
		WithDebounce(MinSaveDebounce),
		WithPersistenceMetrics(metrics),
		WithPersistenceClock(fixedClock),
	)
}

func TestClampDebounce(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero uses default", 0, DefaultSaveDebounce},
		{"below window", 50 * time.Millisecond, MinSaveDebounce},
		{"inside window", 650 * time.Millisecond, 650 * time.Millisecond},
		{"above window", 5 * time.Second, MaxSaveDebounce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampDebounce(tt.in))
		})
	}
}

func TestDraftPersistence_Save_DebouncesBurst(t *testing.T) {
	store := newMemStore()
	p := newTestPersistence(store, nil)

	d := newDraft(12, "400")
	for _, rent := range []string{"410", "420", "430"} {
		require.NoError(t, d.SetMonthlyRent(dec(rent)))
		require.NoError(t, p.Save(d, rental.StepTerms))
	}
	assert.True(t, p.Pending())
	assert.Equal(t, 0, store.putCount())

	require.Eventually(t, func() bool { return store.putCount() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(2 * MinSaveDebounce)
	assert.Equal(t, 1, store.putCount())
	assert.False(t, p.Pending())

	data, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	restored, step, err := rental.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, rental.StepTerms, step)
	assert.Equal(t, "430.000", restored.MonthlyRent.StringFixed(3))
}

func TestDraftPersistence_Flush(t *testing.T) {
	t.Run("writes pending snapshot immediately", func(t *testing.T) {
		store := newMemStore()
		p := newTestPersistence(store, nil)

		require.NoError(t, p.Save(newDraft(6, "300"), rental.StepParties))
		require.NoError(t, p.Flush(context.Background()))
		assert.Equal(t, 1, store.putCount())
		assert.False(t, p.Pending())

		time.Sleep(2 * MinSaveDebounce)
		assert.Equal(t, 1, store.putCount())
	})

	t.Run("nothing pending", func(t *testing.T) {
		store := newMemStore()
		p := newTestPersistence(store, nil)
		require.NoError(t, p.Flush(context.Background()))
		assert.Equal(t, 0, store.putCount())
	})

	t.Run("failed write stays pending", func(t *testing.T) {
		store := newMemStore()
		metrics := &recordingMetrics{}
		p := newTestPersistence(store, metrics)

		store.fail(nil, errStoreDown, nil)
		require.NoError(t, p.Save(newDraft(6, "300"), rental.StepParties))
		err := p.Flush(context.Background())
		require.Error(t, err)
		assert.True(t, rental.IsTransient(err))
		assert.ErrorIs(t, err, errStoreDown)
		assert.True(t, p.Pending())

		store.fail(nil, nil, nil)
		require.NoError(t, p.Flush(context.Background()))
		assert.Equal(t, 1, store.putCount())
		assert.Equal(t, []string{OutcomeError, OutcomeOK}, metrics.snapshot().saved)
	})
}

func TestDraftPersistence_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stored snapshot", func(t *testing.T) {
		store := newMemStore()
		metrics := &recordingMetrics{}
		d := newDraft(24, "750")
		data, err := rental.EncodeSnapshot(d, rental.StepPayments, testNow)
		require.NoError(t, err)
		store.set(testKey, data)

		got, step, restored := newTestPersistence(store, metrics).Load(ctx, testOrgID)
		assert.True(t, restored)
		assert.Equal(t, rental.StepPayments, step)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, 24, got.DurationMonths)
		assert.Equal(t, []string{OutcomeRestored}, metrics.snapshot().restored)
	})

	t.Run("nothing stored", func(t *testing.T) {
		got, step, restored := newTestPersistence(newMemStore(), nil).Load(ctx, testOrgID)
		assert.False(t, restored)
		assert.Equal(t, rental.StepParties, step)
		assert.True(t, got.StartDate.Equal(rental.Date(testNow)))
		assert.Equal(t, testOrgID, got.OrgID)
	})

	t.Run("read failure starts fresh", func(t *testing.T) {
		store := newMemStore()
		store.fail(errStoreDown, nil, nil)
		metrics := &recordingMetrics{}
		_, _, restored := newTestPersistence(store, metrics).Load(ctx, testOrgID)
		assert.False(t, restored)
		assert.Equal(t, []string{OutcomeFailed}, metrics.snapshot().restored)
	})

	t.Run("corrupt snapshot is discarded", func(t *testing.T) {
		store := newMemStore()
		store.set(testKey, []byte(`{"schema_version":1,"draft":{"duration_months":`))
		metrics := &recordingMetrics{}

		got, step, restored := newTestPersistence(store, metrics).Load(ctx, testOrgID)
		assert.False(t, restored)
		assert.Equal(t, rental.StepParties, step)
		assert.NotNil(t, got)
		assert.False(t, store.has(testKey))
		assert.Equal(t, []string{OutcomeDiscarded}, metrics.snapshot().restored)
	})

	t.Run("snapshot of another organization is discarded", func(t *testing.T) {
		store := newMemStore()
		other := rental.NewContractDraft(uuid.New(), rental.NewDate(2025, time.January, 1))
		data, err := rental.EncodeSnapshot(other, rental.StepTerms, testNow)
		require.NoError(t, err)
		store.set(testKey, data)

		got, _, restored := newTestPersistence(store, nil).Load(ctx, testOrgID)
		assert.False(t, restored)
		assert.NotEqual(t, other.ID, got.ID)
		assert.False(t, store.has(testKey))
	})
}

func TestDraftPersistence_Discard(t *testing.T) {
	store := newMemStore()
	store.set(testKey, []byte(`{}`))
	p := newTestPersistence(store, nil)

	require.NoError(t, p.Save(newDraft(12, "500"), rental.StepTerms))
	require.NoError(t, p.Discard(context.Background()))
	assert.False(t, p.Pending())
	assert.False(t, store.has(testKey))

	time.Sleep(2 * MinSaveDebounce)
	assert.Equal(t, 0, store.putCount())
	assert.False(t, store.has(testKey))
}

func TestDraftPersistence_Discard_StoreError(t *testing.T) {
	store := newMemStore()
	store.fail(nil, nil, errStoreDown)
	err := newTestPersistence(store, nil).Discard(context.Background())
	require.Error(t, err)
	assert.True(t, rental.IsTransient(err))
}
