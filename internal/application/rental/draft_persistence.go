package rental

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"go.uber.org/zap"
)

// Debounce bounds for draft saves
const (
	DefaultSaveDebounce = 500 * time.Millisecond
	MinSaveDebounce     = 300 * time.Millisecond
	MaxSaveDebounce     = 800 * time.Millisecond
	defaultWriteTimeout = 5 * time.Second
)

// DraftPersistence writes full draft snapshots to a DraftStore behind a
// trailing debounce. Only the latest snapshot is written; a write that
// finishes after a newer one is skipped.
type DraftPersistence struct {
	store        rental.DraftStore
	key          string
	debounce     time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	metrics      Metrics
	now          func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	pending []byte
	seq     uint64

	writeMu sync.Mutex
	written uint64
}

// PersistenceOption configures a DraftPersistence
type PersistenceOption func(*DraftPersistence)

// WithDebounce sets the trailing debounce, clamped to the 300-800ms window
func WithDebounce(d time.Duration) PersistenceOption {
	return func(p *DraftPersistence) {
		p.debounce = ClampDebounce(d)
	}
}

// WithPersistenceLogger sets the logger
func WithPersistenceLogger(l *zap.Logger) PersistenceOption {
	return func(p *DraftPersistence) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPersistenceMetrics sets the metrics recorder
func WithPersistenceMetrics(m Metrics) PersistenceOption {
	return func(p *DraftPersistence) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPersistenceClock overrides the clock used for snapshot times and fresh drafts
func WithPersistenceClock(now func() time.Time) PersistenceOption {
	return func(p *DraftPersistence) {
		p.now = now
	}
}

// ClampDebounce keeps d inside the supported window; zero selects the default
func ClampDebounce(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSaveDebounce
	case d < MinSaveDebounce:
		return MinSaveDebounce
	case d > MaxSaveDebounce:
		return MaxSaveDebounce
	}
	return d
}

// NewDraftPersistence creates a persistence bound to one store key
func NewDraftPersistence(store rental.DraftStore, key string, opts ...PersistenceOption) *DraftPersistence {
	p := &DraftPersistence{
		store:        store,
		key:          key,
		debounce:     DefaultSaveDebounce,
		writeTimeout: defaultWriteTimeout,
		logger:       zap.NewNop(),
		metrics:      nopMetrics{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the store key
func (p *DraftPersistence) Key() string {
	return p.key
}

// Save captures the draft now and schedules its write. Each call restarts the debounce.
func (p *DraftPersistence) Save(d *rental.ContractDraft, step rental.Step) error {
	data, err := rental.EncodeSnapshot(d, step, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.pending = data
	if p.timer != nil {
		p.timer.Stop()
	}
	seq := p.seq
	p.timer = time.AfterFunc(p.debounce, func() {
		p.fire(seq)
	})
	return nil
}

func (p *DraftPersistence) fire(seq uint64) {
	p.mu.Lock()
	if seq != p.seq || p.pending == nil {
		p.mu.Unlock()
		return
	}
	data := p.pending
	p.pending = nil
	p.timer = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()
	_ = p.write(ctx, seq, data)
}

// Flush writes the pending snapshot immediately, if any
func (p *DraftPersistence) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	data, seq := p.pending, p.seq
	p.pending = nil
	p.mu.Unlock()

	if data == nil {
		return nil
	}
	return p.write(ctx, seq, data)
}

// Pending reports whether a snapshot is waiting for its write
func (p *DraftPersistence) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

func (p *DraftPersistence) write(ctx context.Context, seq uint64, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if seq <= p.written {
		return nil
	}

	start := time.Now()
	err := p.store.Put(ctx, p.key, data)
	if err != nil {
		p.metrics.DraftSaved(OutcomeError, time.Since(start))
		p.logger.Warn("Failed to save contract draft",
			zap.String("key", p.key),
			zap.Error(err),
		)
		// keep the snapshot for the next Flush unless a newer one arrived
		p.mu.Lock()
		if p.pending == nil && p.seq == seq {
			p.pending = data
		}
		p.mu.Unlock()
		return rental.NewTransientIOError("save draft", err)
	}
	p.written = seq
	p.metrics.DraftSaved(OutcomeOK, time.Since(start))
	p.logger.Debug("Contract draft saved",
		zap.String("key", p.key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load restores the stored draft. Missing, unreadable or foreign snapshots
// yield a fresh draft starting today; the failure is logged, never returned.
// restored reports whether the draft came from the store.
func (p *DraftPersistence) Load(ctx context.Context, orgID uuid.UUID) (draft *rental.ContractDraft, step rental.Step, restored bool) {
	fresh := func() (*rental.ContractDraft, rental.Step, bool) {
		return rental.NewContractDraft(orgID, rental.Date(p.now())), rental.StepParties, false
	}

	data, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.metrics.DraftRestored(OutcomeFailed)
		p.logger.Warn("Failed to read contract draft, starting fresh",
			zap.String("key", p.key),
			zap.Error(err),
		)
		return fresh()
	}
	if data == nil {
		p.metrics.DraftRestored(OutcomeFresh)
		return fresh()
	}

	d, step, err := rental.DecodeSnapshot(data)
	if err == nil && d.OrgID != orgID {
		err = errors.Join(rental.ErrDraftIntegrity, errors.New("snapshot belongs to another organization"))
	}
	if err != nil {
		p.metrics.DraftRestored(OutcomeDiscarded)
		p.logger.Warn("Discarding unreadable contract draft",
			zap.String("key", p.key),
			zap.Error(err),
		)
		if delErr := p.store.Delete(ctx, p.key); delErr != nil {
			p.logger.Warn("Failed to delete unreadable contract draft",
				zap.String("key", p.key),
				zap.Error(delErr),
			)
		}
		return fresh()
	}

	p.metrics.DraftRestored(OutcomeRestored)
	return d, step, true
}

// Discard cancels any pending write and deletes the stored snapshot
func (p *DraftPersistence) Discard(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.written = seq
	if err := p.store.Delete(ctx, p.key); err != nil {
		return rental.NewTransientIOError("delete draft", err)
	}
	return nil
}
