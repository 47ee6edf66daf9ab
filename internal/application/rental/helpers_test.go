package rental

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
)

var (
	testOrgID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testNow   = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
)

func fixedClock() time.Time { return testNow }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory DraftStore that counts writes
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	getErr error
	putErr error
	delErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.data[key], nil
}

func (s *memStore) Put(_ context.Context, key string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.data[key] = append([]byte(nil), snapshot...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.data, key)
	return nil
}

func (s *memStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *memStore) set(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
}

func (s *memStore) fail(get, put, del error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr, s.putErr, s.delErr = get, put, del
}

// recordingMetrics keeps the labels it was called with
type recordingMetrics struct {
	mu         sync.Mutex
	saved      []string
	restored   []string
	conflicts  []string
	superseded []string
	submitted  []string
}

func (m *recordingMetrics) DraftSaved(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, outcome)
}

func (m *recordingMetrics) DraftRestored(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, outcome)
}

func (m *recordingMetrics) ConflictDetected(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = append(m.conflicts, stage)
}

func (m *recordingMetrics) ResultSuperseded(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.superseded = append(m.superseded, op)
}

func (m *recordingMetrics) SubmissionFinished(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, outcome)
}

func (m *recordingMetrics) snapshot() recordingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recordingMetrics{
		saved:      append([]string(nil), m.saved...),
		restored:   append([]string(nil), m.restored...),
		conflicts:  append([]string(nil), m.conflicts...),
		superseded: append([]string(nil), m.superseded...),
		submitted:  append([]string(nil), m.submitted...),
	}
}

func newDraft(months int, rent string) *rental.ContractDraft {
	d := rental.NewContractDraft(testOrgID, rental.NewDate(2025, time.January, 1))
	if err := d.SetDuration(months); err != nil {
		panic(err)
	}
	if err := d.SetMonthlyRent(dec(rent)); err != nil {
		panic(err)
	}
	return d
}
