package rental

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDraftKeyPrefix prefixes every draft store key
const DefaultDraftKeyPrefix = "rental:draft:"

// DefaultSessionIdleTTL is how long an untouched wizard session stays in memory
const DefaultSessionIdleTTL = 30 * time.Minute

// ErrSubmissionInProgress rejects edits while the draft is being turned into a contract
var ErrSubmissionInProgress = shared.NewDomainError("INVALID_STATE", "Contract draft is being submitted")

// ChequeList selects the rent or the deposit cheque list
type ChequeList string

const (
	ChequeListRent    ChequeList = "rent"
	ChequeListDeposit ChequeList = "deposit"
)

// WizardService runs contract wizard sessions. Each session holds one draft
// guarded by its own mutex; lookups and checks run outside the lock and their
// results are dropped with ErrSuperseded when a newer action came in meanwhile.
type WizardService struct {
	directory    rental.PropertyDirectory
	completeness rental.CompletenessChecker
	guard        *rental.ConflictGuard
	submitter    rental.ContractSubmitter
	store        rental.DraftStore
	events       shared.EventPublisher
	logger       *zap.Logger
	metrics      Metrics
	policy       rental.DerivationPolicy
	gate         *rental.Gate
	debounce     time.Duration
	keyPrefix    string
	idleTTL      time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type session struct {
	mu          sync.Mutex
	orgID       uuid.UUID
	key         string
	draft       *rental.ContractDraft
	step        rental.Step
	restored    bool
	generation  uint64
	submitting  bool
	persistence *DraftPersistence
	lastUsed    time.Time // guarded by WizardService.mu
}

func (s *session) bump() uint64 {
	s.generation++
	return s.generation
}

// WizardOption configures a WizardService
type WizardOption func(*WizardService)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) WizardOption {
	return func(s *WizardService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) WizardOption {
	return func(s *WizardService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithEventPublisher sets the publisher of domain events
func WithEventPublisher(p shared.EventPublisher) WizardOption {
	return func(s *WizardService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithPolicy sets the derivation policy
func WithPolicy(p rental.DerivationPolicy) WizardOption {
	return func(s *WizardService) {
		s.policy = p
	}
}

// WithSaveDebounce sets the draft save debounce
func WithSaveDebounce(d time.Duration) WizardOption {
	return func(s *WizardService) {
		s.debounce = ClampDebounce(d)
	}
}

// WithKeyPrefix sets the draft store key prefix
func WithKeyPrefix(prefix string) WizardOption {
	return func(s *WizardService) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithSessionIdleTTL sets how long an untouched session is kept in memory
func WithSessionIdleTTL(d time.Duration) WizardOption {
	return func(s *WizardService) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) WizardOption {
	return func(s *WizardService) {
		s.now = now
	}
}

// NewWizardService creates a new WizardService
func NewWizardService(
	directory rental.PropertyDirectory,
	completeness rental.CompletenessChecker,
	contracts rental.ContractQuery,
	submitter rental.ContractSubmitter,
	store rental.DraftStore,
	opts ...WizardOption,
) *WizardService {
	s := &WizardService{
		directory:    directory,
		completeness: completeness,
		guard:        rental.NewConflictGuard(contracts),
		submitter:    submitter,
		store:        store,
		events:       nopPublisher{},
		logger:       zap.NewNop(),
		metrics:      nopMetrics{},
		policy:       rental.DefaultPolicy(),
		gate:         rental.DefaultGate,
		debounce:     DefaultSaveDebounce,
		keyPrefix:    DefaultDraftKeyPrefix,
		idleTTL:      DefaultSessionIdleTTL,
		now:          time.Now,
		sessions:     make(map[string]*session),
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

func (s *WizardService) storeKey(orgID uuid.UUID, key string) string {
	return fmt.Sprintf("%s%s:%s", s.keyPrefix, orgID, key)
}

func (s *WizardService) newPersistence(orgID uuid.UUID, key string) *DraftPersistence {
	return NewDraftPersistence(s.store, s.storeKey(orgID, key),
		WithDebounce(s.debounce),
		WithPersistenceLogger(s.logger),
		WithPersistenceMetrics(s.metrics),
		WithPersistenceClock(s.now),
	)
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > 128 {
		return shared.NewDomainError("INVALID_INPUT", "Wizard key must be 1-128 characters")
	}
	return nil
}

// session returns the live session for key, restoring it from the store on first use
func (s *WizardService) session(ctx context.Context, orgID uuid.UUID, key string) (*session, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	id := s.storeKey(orgID, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		return sess, nil
	}

	p := s.newPersistence(orgID, key)
	draft, step, restored := p.Load(ctx, orgID)
	sess := &session{
		orgID:       orgID,
		key:         key,
		draft:       draft,
		step:        step,
		restored:    restored,
		persistence: p,
		lastUsed:    s.now(),
	}
	s.sessions[id] = sess
	s.logger.Info("Contract wizard opened",
		zap.String("key", key),
		zap.String("org_id", orgID.String()),
		zap.Bool("restored", restored),
	)
	return sess, nil
}

// view renders the session. The caller holds sess.mu.
func (s *WizardService) view(sess *session) (*DraftView, error) {
	draft, err := cloneDraft(sess.draft)
	if err != nil {
		return nil, err
	}
	return &DraftView{
		Key:      sess.key,
		Step:     sess.step.String(),
		Restored: sess.restored,
		Draft:    draft,
		EndDate:  draft.EndDate(),
		Summary:  s.policy.Derive(sess.draft),
		Issues:   s.gate.Evaluate(sess.step, sess.draft),
	}, nil
}

// save schedules a snapshot write. The caller holds sess.mu.
func (s *WizardService) save(sess *session) {
	if err := sess.persistence.Save(sess.draft, sess.step); err != nil {
		s.logger.Error("Failed to encode contract draft",
			zap.String("key", sess.key),
			zap.Error(err),
		)
	}
}

// apply runs fn on a copy of the draft and swaps it in only when fn succeeds.
// The caller holds sess.mu.
func (s *WizardService) apply(sess *session, fn func(d *rental.ContractDraft) error) (*DraftView, error) {
	if sess.submitting {
		return nil, ErrSubmissionInProgress
	}
	next, err := cloneDraft(sess.draft)
	if err != nil {
		return nil, err
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	sess.draft = next
	sess.bump()
	s.save(sess)
	return s.view(sess)
}

func (s *WizardService) mutate(ctx context.Context, orgID uuid.UUID, key string, fn func(d *rental.ContractDraft) error) (*DraftView, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.apply(sess, fn)
}

// begin marks the start of an action that performs I/O before it mutates the draft
func (s *WizardService) begin(sess *session) (uint64, *rental.ContractDraft, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.submitting {
		return 0, nil, ErrSubmissionInProgress
	}
	if !sess.draft.Status.CanEdit() {
		return 0, nil, shared.NewDomainError("INVALID_STATE", "Contract draft is no longer editable")
	}
	snapshot, err := cloneDraft(sess.draft)
	if err != nil {
		return 0, nil, err
	}
	return sess.bump(), snapshot, nil
}

// current reports ErrSuperseded when an action newer than gen has started. The caller holds sess.mu.
func (s *WizardService) current(sess *session, gen uint64, op string) error {
	if sess.generation != gen {
		s.metrics.ResultSuperseded(op)
		s.logger.Debug("Discarding superseded result",
			zap.String("key", sess.key),
			zap.String("op", op),
		)
		return rental.ErrSuperseded
	}
	return nil
}

func (s *WizardService) commit(sess *session, gen uint64, op string, fn func(d *rental.ContractDraft) error) (*DraftView, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.current(sess, gen, op); err != nil {
		return nil, err
	}
	return s.apply(sess, fn)
}

// rejectConflict reports an open contract found for a selection or a submission
func (s *WizardService) rejectConflict(ctx context.Context, d *rental.ContractDraft, stage string, propertyID uuid.UUID, unitID *uuid.UUID, c rental.ContractSummary) error {
	s.metrics.ConflictDetected(stage)
	s.logger.Info("Open contract blocks selection",
		zap.String("stage", stage),
		zap.String("property_id", propertyID.String()),
		zap.String("contract_id", c.ID.String()),
		zap.String("contract_state", string(c.State)),
	)
	event := rental.NewContractConflictDetectedEvent(d, propertyID, unitID, c)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish conflict event", zap.Error(err))
	}
	return rental.NewContractConflictError(c)
}

// Open returns the session for key, restoring a stored draft when one exists
func (s *WizardService) Open(ctx context.Context, orgID uuid.UUID, key string) (*DraftView, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(sess)
}

// UpdateInputs applies a set of primary inputs atomically
func (s *WizardService) UpdateInputs(ctx context.Context, orgID uuid.UUID, key string, in DraftInput) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, in.ApplyTo)
}

// SelectProperty loads the property and selects it. Single-unit properties
// are checked for an open contract first.
func (s *WizardService) SelectProperty(ctx context.Context, orgID uuid.UUID, key string, propertyID uuid.UUID) (*DraftView, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	gen, snapshot, err := s.begin(sess)
	if err != nil {
		return nil, err
	}

	property, err := s.directory.GetProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, rental.NewTransientIOError("load property", err)
	}
	if property == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Property not found")
	}
	if property.SingleUnit() {
		result, err := s.guard.Check(ctx, orgID, propertyID, nil)
		if err != nil {
			return nil, err
		}
		if result.Exists {
			return nil, s.rejectAfter(ctx, sess, gen, snapshot, "select_property", propertyID, nil, *result.Contract)
		}
	}
	return s.commit(sess, gen, "select_property", func(d *rental.ContractDraft) error {
		return d.SelectProperty(property.Ref())
	})
}

// SelectUnit loads the unit and selects it unless an open contract holds it
func (s *WizardService) SelectUnit(ctx context.Context, orgID uuid.UUID, key string, unitID uuid.UUID) (*DraftView, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	gen, snapshot, err := s.begin(sess)
	if err != nil {
		return nil, err
	}
	if snapshot.PropertyID == nil {
		return nil, shared.NewDomainError("PROPERTY_REQUIRED", "Select a property before choosing a unit")
	}
	propertyID := *snapshot.PropertyID

	unit, err := s.directory.GetUnit(ctx, orgID, unitID)
	if err != nil {
		return nil, rental.NewTransientIOError("load unit", err)
	}
	if unit == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Unit not found")
	}
	if unit.PropertyID != propertyID {
		return nil, shared.NewDomainError("UNIT_NOT_IN_PROPERTY", "Unit does not belong to the selected property")
	}

	result, err := s.guard.Check(ctx, orgID, propertyID, &unitID)
	if err != nil {
		return nil, err
	}
	if result.Exists {
		return nil, s.rejectAfter(ctx, sess, gen, snapshot, "select_unit", propertyID, &unitID, *result.Contract)
	}
	return s.commit(sess, gen, "select_unit", func(d *rental.ContractDraft) error {
		return d.SelectUnit(unit.Ref())
	})
}

func (s *WizardService) rejectAfter(ctx context.Context, sess *session, gen uint64, snapshot *rental.ContractDraft, op string, propertyID uuid.UUID, unitID *uuid.UUID, c rental.ContractSummary) error {
	sess.mu.Lock()
	err := s.current(sess, gen, op)
	sess.mu.Unlock()
	if err != nil {
		return err
	}
	return s.rejectConflict(ctx, snapshot, op, propertyID, unitID, c)
}

// SelectTenant loads the tenant and selects them
func (s *WizardService) SelectTenant(ctx context.Context, orgID uuid.UUID, key string, tenantID uuid.UUID) (*DraftView, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	gen, _, err := s.begin(sess)
	if err != nil {
		return nil, err
	}
	tenant, err := s.directory.GetTenant(ctx, orgID, tenantID)
	if err != nil {
		return nil, rental.NewTransientIOError("load tenant", err)
	}
	if tenant == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Tenant not found")
	}
	return s.commit(sess, gen, "select_tenant", func(d *rental.ContractDraft) error {
		return d.SelectTenant(tenant.Ref())
	})
}

// SearchProperties lists properties matching the search
func (s *WizardService) SearchProperties(ctx context.Context, orgID uuid.UUID, search rental.PropertySearch) ([]rental.Property, error) {
	if search.Limit <= 0 || search.Limit > 100 {
		search.Limit = 20
	}
	properties, err := s.directory.SearchProperties(ctx, orgID, search)
	if err != nil {
		return nil, rental.NewTransientIOError("search properties", err)
	}
	return properties, nil
}

// GenerateRentCheques rebuilds the rent cheque schedule
func (s *WizardService) GenerateRentCheques(ctx context.Context, orgID uuid.UUID, key string) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, func(d *rental.ContractDraft) error {
		return d.RegenerateRentCheques()
	})
}

// EditChequeNumber edits one cheque number of the rent or deposit list
func (s *WizardService) EditChequeNumber(ctx context.Context, orgID uuid.UUID, key string, list ChequeList, index int, value string) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, func(d *rental.ContractDraft) error {
		switch list {
		case ChequeListRent:
			return d.EditRentChequeNumber(index, value)
		case ChequeListDeposit:
			return d.EditDepositChequeNumber(index, value)
		}
		return shared.NewDomainError("INVALID_INPUT", "Cheque list must be rent or deposit")
	})
}

// AddDepositCheque appends a deposit cheque
func (s *WizardService) AddDepositCheque(ctx context.Context, orgID uuid.UUID, key string, number string, amount decimal.Decimal, date *time.Time) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, func(d *rental.ContractDraft) error {
		return d.AddDepositCheque(number, amount, date)
	})
}

// RemoveDepositCheque removes a deposit cheque
func (s *WizardService) RemoveDepositCheque(ctx context.Context, orgID uuid.UUID, key string, index int) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, func(d *rental.ContractDraft) error {
		return d.RemoveDepositCheque(index)
	})
}

// SetDepositChequeDate dates or undates a deposit cheque
func (s *WizardService) SetDepositChequeDate(ctx context.Context, orgID uuid.UUID, key string, index int, date *time.Time) (*DraftView, error) {
	return s.mutate(ctx, orgID, key, func(d *rental.ContractDraft) error {
		return d.SetDepositChequeDate(index, date)
	})
}

// Advance moves the wizard to target. Moving back is always allowed; moving
// forward requires every earlier step to pass, and leaving the terms step
// also requires the property's additional data to be complete.
func (s *WizardService) Advance(ctx context.Context, orgID uuid.UUID, key string, target rental.Step) (*DraftView, error) {
	if !target.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown wizard step")
	}
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if target > sess.step {
		if step, issues, blocked := s.gate.FirstBlocked(target, sess.draft); blocked {
			sess.mu.Unlock()
			return nil, rental.NewValidationFailedError(step, issues)
		}
	}
	crossing := sess.step < rental.StepPayments && target >= rental.StepPayments
	if !crossing || s.completeness == nil || sess.draft.PropertyID == nil {
		defer sess.mu.Unlock()
		return s.moveTo(sess, target)
	}
	gen := sess.bump()
	propertyID := *sess.draft.PropertyID
	sess.mu.Unlock()

	report, err := s.completeness.CheckAdditionalData(ctx, orgID, propertyID)
	if err != nil {
		return nil, rental.NewTransientIOError("check property data", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.current(sess, gen, "advance"); err != nil {
		return nil, err
	}
	if issues := rental.CompletenessIssues(report); len(issues) > 0 {
		return nil, rental.NewValidationFailedError(rental.StepTerms, issues)
	}
	return s.moveTo(sess, target)
}

func (s *WizardService) moveTo(sess *session, target rental.Step) (*DraftView, error) {
	sess.step = target
	sess.bump()
	s.save(sess)
	return s.view(sess)
}

// Issues returns the issues of one step, or of every step when step is nil
func (s *WizardService) Issues(ctx context.Context, orgID uuid.UUID, key string, step *rental.Step) ([]rental.ValidationIssue, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if step == nil {
		return s.gate.EvaluateAll(sess.draft), nil
	}
	return s.gate.Evaluate(*step, sess.draft), nil
}

// Summary derives the financial summary of the current draft
func (s *WizardService) Summary(ctx context.Context, orgID uuid.UUID, key string) (rental.FinancialSummary, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return rental.FinancialSummary{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.policy.Derive(sess.draft), nil
}

// Flush writes the pending snapshot of key now
func (s *WizardService) Flush(ctx context.Context, orgID uuid.UUID, key string) error {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return err
	}
	return sess.persistence.Flush(ctx)
}

// Submit re-derives and re-validates the draft, checks once more for an open
// contract and hands the draft to the contract service. The stored draft is
// deleted once the contract is created.
func (s *WizardService) Submit(ctx context.Context, orgID uuid.UUID, key string) (*SubmitResult, error) {
	sess, err := s.session(ctx, orgID, key)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if !sess.draft.Status.CanEdit() {
		sess.mu.Unlock()
		return nil, shared.NewDomainError("INVALID_STATE", "Contract draft was already submitted")
	}
	for _, step := range rental.Steps {
		if issues := s.gate.Evaluate(step, sess.draft); len(issues) > 0 {
			sess.mu.Unlock()
			s.metrics.SubmissionFinished(OutcomeInvalid)
			return nil, rental.NewValidationFailedError(step, issues)
		}
	}
	summary := s.policy.Derive(sess.draft)
	snapshot, err := cloneDraft(sess.draft)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	// edits wait for the outcome; pending lookups are superseded
	sess.submitting = true
	sess.bump()
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		sess.submitting = false
		sess.mu.Unlock()
	}()

	result, err := s.guard.CheckDraft(ctx, snapshot)
	if err != nil {
		s.metrics.SubmissionFinished(OutcomeError)
		return nil, err
	}
	if result.Exists {
		s.metrics.SubmissionFinished(OutcomeConflict)
		return nil, s.rejectConflict(ctx, snapshot, "submit", *snapshot.PropertyID, snapshot.UnitID, *result.Contract)
	}

	contractID, err := s.submitter.Submit(ctx, snapshot, summary)
	if err != nil {
		s.metrics.SubmissionFinished(OutcomeError)
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, rental.NewTransientIOError("submit contract", err)
	}

	sess.mu.Lock()
	if err := sess.draft.MarkSubmitted(contractID, summary); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	events := sess.draft.GetDomainEvents()
	sess.draft.ClearDomainEvents()
	sess.mu.Unlock()

	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish submission events", zap.Error(err))
	}
	s.forget(orgID, key)
	if err := sess.persistence.Discard(ctx); err != nil {
		s.logger.Warn("Failed to delete submitted contract draft",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	s.metrics.SubmissionFinished(OutcomeOK)
	s.logger.Info("Contract submitted",
		zap.String("key", key),
		zap.String("contract_id", contractID.String()),
		zap.String("tenant_total_due", summary.TenantTotalDue.StringFixed(3)),
	)
	return &SubmitResult{ContractID: contractID, Summary: summary}, nil
}

func (s *WizardService) forget(orgID uuid.UUID, key string) *session {
	id := s.storeKey(orgID, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	return sess
}

// Discard drops the session and its stored draft
func (s *WizardService) Discard(ctx context.Context, orgID uuid.UUID, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	p := s.newPersistence(orgID, key)
	if sess := s.forget(orgID, key); sess != nil {
		p = sess.persistence
	}
	return p.Discard(ctx)
}

// Preview derives financials, the rent cheque schedule and every issue for a
// set of inputs without opening a session
func (s *WizardService) Preview(orgID uuid.UUID, in DraftInput) (*PreviewView, error) {
	d := rental.NewContractDraft(orgID, rental.Date(s.now()))
	if err := in.ApplyTo(d); err != nil {
		return nil, err
	}
	return &PreviewView{
		Draft:   d,
		EndDate: d.EndDate(),
		Summary: s.policy.Derive(d),
		Cheques: rental.GenerateRentCheques(d),
		Issues:  s.gate.EvaluateAll(d),
	}, nil
}

// StartEviction drops sessions idle for longer than the idle TTL every
// interval, flushing their pending snapshot first. It stops on Close.
func (s *WizardService) StartEviction(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.EvictIdle(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()
}

// EvictIdle flushes and forgets every session idle for longer than the idle
// TTL. Sessions with a submission in flight are kept. It returns the number
// of sessions dropped.
func (s *WizardService) EvictIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	idle := make(map[string]*session)
	for id, sess := range s.sessions {
		if !sess.lastUsed.Before(cutoff) {
			continue
		}
		sess.mu.Lock()
		busy := sess.submitting
		sess.mu.Unlock()
		if busy {
			continue
		}
		delete(s.sessions, id)
		idle[id] = sess
	}
	s.mu.Unlock()

	evicted := 0
	for id, sess := range idle {
		if err := sess.persistence.Flush(ctx); err != nil {
			// keep the draft in memory until the store takes it
			s.logger.Warn("Failed to flush idle contract draft",
				zap.String("key", sess.key),
				zap.Error(err),
			)
			s.mu.Lock()
			if _, reopened := s.sessions[id]; !reopened {
				s.sessions[id] = sess
			}
			s.mu.Unlock()
			continue
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Debug("Evicted idle wizard sessions", zap.Int("count", evicted))
	}
	return evicted
}

// Close stops eviction and flushes every open session
func (s *WizardService) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.persistence.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
