package rental

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPropertyDirectory is a mock implementation of rental.PropertyDirectory
type MockPropertyDirectory struct {
	mock.Mock
}

func (m *MockPropertyDirectory) GetProperty(ctx context.Context, orgID, id uuid.UUID) (*rental.Property, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rental.Property), args.Error(1)
}

func (m *MockPropertyDirectory) GetUnit(ctx context.Context, orgID, id uuid.UUID) (*rental.Unit, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rental.Unit), args.Error(1)
}

func (m *MockPropertyDirectory) GetTenant(ctx context.Context, orgID, id uuid.UUID) (*rental.Tenant, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rental.Tenant), args.Error(1)
}

func (m *MockPropertyDirectory) SearchProperties(ctx context.Context, orgID uuid.UUID, search rental.PropertySearch) ([]rental.Property, error) {
	args := m.Called(ctx, orgID, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rental.Property), args.Error(1)
}

// MockCompletenessChecker is a mock implementation of rental.CompletenessChecker
type MockCompletenessChecker struct {
	mock.Mock
}

func (m *MockCompletenessChecker) CheckAdditionalData(ctx context.Context, orgID, propertyID uuid.UUID) (rental.CompletenessReport, error) {
	args := m.Called(ctx, orgID, propertyID)
	return args.Get(0).(rental.CompletenessReport), args.Error(1)
}

// MockContractQuery is a mock implementation of rental.ContractQuery
type MockContractQuery struct {
	mock.Mock
}

func (m *MockContractQuery) FindContracts(ctx context.Context, filter rental.ContractFilter) ([]rental.ContractSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rental.ContractSummary), args.Error(1)
}

// MockContractSubmitter is a mock implementation of rental.ContractSubmitter
type MockContractSubmitter struct {
	mock.Mock
}

func (m *MockContractSubmitter) Submit(ctx context.Context, draft *rental.ContractDraft, summary rental.FinancialSummary) (uuid.UUID, error) {
	args := m.Called(ctx, draft, summary)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type wizardFixture struct {
	service      *WizardService
	directory    *MockPropertyDirectory
	completeness *MockCompletenessChecker
	contracts    *MockContractQuery
	submitter    *MockContractSubmitter
	events       *MockEventPublisher
	store        *memStore
	metrics      *recordingMetrics

	property rental.Property
	unit     rental.Unit
	tenant   rental.Tenant
}

func newWizardFixture() *wizardFixture {
	f := &wizardFixture{
		directory:    new(MockPropertyDirectory),
		completeness: new(MockCompletenessChecker),
		contracts:    new(MockContractQuery),
		submitter:    new(MockContractSubmitter),
		events:       new(MockEventPublisher),
		store:        newMemStore(),
		metrics:      &recordingMetrics{},
	}
	f.property = rental.Property{ID: uuid.New(), OrgID: testOrgID, Name: "Al Khuwair Tower", UnitCount: 8}
	f.unit = rental.Unit{ID: uuid.New(), PropertyID: f.property.ID, Number: "A-12", Area: dec("85.5")}
	f.tenant = rental.Tenant{ID: uuid.New(), Name: "Salim Al Harthy"}
	f.service = NewWizardService(f.directory, f.completeness, f.contracts, f.submitter, f.store,
		WithMetrics(f.metrics),
		WithEventPublisher(f.events),
		WithClock(fixedClock),
		WithSaveDebounce(MinSaveDebounce),
	)
	return f
}

func (f *wizardFixture) expectDirectory() {
	f.directory.On("GetProperty", mock.Anything, testOrgID, f.property.ID).Return(&f.property, nil)
	f.directory.On("GetUnit", mock.Anything, testOrgID, f.unit.ID).Return(&f.unit, nil)
	f.directory.On("GetTenant", mock.Anything, testOrgID, f.tenant.ID).Return(&f.tenant, nil)
}

func unitFilter(f rental.ContractFilter) bool     { return f.UnitID != nil }
func propertyFilter(f rental.ContractFilter) bool { return f.UnitlessOnly }

// fillDraft fills every step of the wizard so the draft passes all gates
func (f *wizardFixture) fillDraft(t *testing.T, key string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.service.SelectProperty(ctx, testOrgID, key, f.property.ID)
	require.NoError(t, err)
	_, err = f.service.SelectUnit(ctx, testOrgID, key, f.unit.ID)
	require.NoError(t, err)
	_, err = f.service.SelectTenant(ctx, testOrgID, key, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.service.UpdateInputs(ctx, testOrgID, key, DraftInput{
		StartDate:      ptr(rental.NewDate(2025, time.January, 1)),
		DurationMonths: ptr(3),
		MonthlyRent:    ptr(dec("500")),
		Deposit:        ptr(dec("500")),
		RentDueDay:     ptr(5),
		RentPayment: json.RawMessage(`{"method":"cheque",` +
			`"bank":{"bank_name":"Bank Muscat","account_number":"0301-123456"},` +
			`"payer":{"kind":"tenant"}}`),
		DepositPayment: json.RawMessage(`{"method":"cash","receipt_number":"R-77"}`),
		Municipal:      &rental.MunicipalFiling{FilingNumber: "MF-2025-1", FilingAttachmentRef: "files/mf.pdf"},
		Utilities:      &rental.Utilities{ElectricityMeterReading: "10432", WaterMeterReading: "883"},
	})
	require.NoError(t, err)
	_, err = f.service.GenerateRentCheques(ctx, testOrgID, key)
	require.NoError(t, err)
	view, err := f.service.EditChequeNumber(ctx, testOrgID, key, ChequeListRent, 0, "1001")
	require.NoError(t, err)
	require.Empty(t, f.service.gate.EvaluateAll(view.Draft))
}

func TestWizardService_Open(t *testing.T) {
	f := newWizardFixture()
	view, err := f.service.Open(context.Background(), testOrgID, "new-contract")
	require.NoError(t, err)

	assert.Equal(t, "new-contract", view.Key)
	assert.Equal(t, rental.StepParties.String(), view.Step)
	assert.False(t, view.Restored)
	assert.True(t, view.Draft.StartDate.Equal(rental.Date(testNow)))
	assert.Equal(t, []string{OutcomeFresh}, f.metrics.snapshot().restored)

	_, err = f.service.Open(context.Background(), testOrgID, "  ")
	require.Error(t, err)
}

func TestWizardService_Open_RestoresSavedDraft(t *testing.T) {
	f := newWizardFixture()
	ctx := context.Background()

	_, err := f.service.UpdateInputs(ctx, testOrgID, "k1", DraftInput{
		DurationMonths: ptr(18),
		MonthlyRent:    ptr(dec("640")),
	})
	require.NoError(t, err)
	require.NoError(t, f.service.Close(ctx))

	other := NewWizardService(f.directory, f.completeness, f.contracts, f.submitter, f.store, WithClock(fixedClock))
	view, err := other.Open(ctx, testOrgID, "k1")
	require.NoError(t, err)
	assert.True(t, view.Restored)
	assert.Equal(t, 18, view.Draft.DurationMonths)
	assert.Equal(t, "640.000", view.Summary.MonthlyRent.StringFixed(3))
	assert.Equal(t, "11520.000", view.Summary.FullRent.StringFixed(3))
}

func TestWizardService_UpdateInputs_IsAtomic(t *testing.T) {
	f := newWizardFixture()
	ctx := context.Background()

	_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("500"))})
	require.NoError(t, err)

	_, err = f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{
		MonthlyRent:    ptr(dec("900")),
		DurationMonths: ptr(0),
	})
	require.Error(t, err)

	summary, err := f.service.Summary(ctx, testOrgID, "k")
	require.NoError(t, err)
	assert.Equal(t, "500.000", summary.MonthlyRent.StringFixed(3))
}

func TestWizardService_SelectProperty(t *testing.T) {
	ctx := context.Background()

	t.Run("multi-unit property skips the conflict check", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()

		view, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		require.NoError(t, err)
		require.NotNil(t, view.Draft.PropertyID)
		assert.Equal(t, f.property.ID, *view.Draft.PropertyID)
		f.contracts.AssertNotCalled(t, "FindContracts", mock.Anything, mock.Anything)
	})

	t.Run("single-unit property with an open contract is rejected", func(t *testing.T) {
		f := newWizardFixture()
		f.property.UnitCount = 0
		f.expectDirectory()
		existing := rental.ContractSummary{ID: uuid.New(), PropertyID: f.property.ID, State: rental.ContractStateActive, TenantName: "Previous Tenant"}
		f.contracts.On("FindContracts", mock.Anything, mock.MatchedBy(propertyFilter)).
			Return([]rental.ContractSummary{existing}, nil)
		f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		var conflict *rental.ContractConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, existing.ID, conflict.Contract.ID)

		view, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		assert.Nil(t, view.Draft.PropertyID)
		assert.Equal(t, []string{"select_property"}, f.metrics.snapshot().conflicts)
		f.events.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("unknown property", func(t *testing.T) {
		f := newWizardFixture()
		missing := uuid.New()
		f.directory.On("GetProperty", mock.Anything, testOrgID, missing).Return(nil, nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", missing)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})

	t.Run("directory failure is transient", func(t *testing.T) {
		f := newWizardFixture()
		f.directory.On("GetProperty", mock.Anything, testOrgID, f.property.ID).Return(nil, errors.New("connection reset"))

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		assert.True(t, rental.IsTransient(err))
	})
}

func TestWizardService_SelectUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("free unit is selected", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		require.NoError(t, err)
		view, err := f.service.SelectUnit(ctx, testOrgID, "k", f.unit.ID)
		require.NoError(t, err)
		require.NotNil(t, view.Draft.UnitID)
		assert.Equal(t, f.unit.ID, *view.Draft.UnitID)
		f.contracts.AssertNumberOfCalls(t, "FindContracts", 2)
	})

	t.Run("occupied unit keeps the previous selection", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		occupied := rental.Unit{ID: uuid.New(), PropertyID: f.property.ID, Number: "B-3"}
		f.directory.On("GetUnit", mock.Anything, testOrgID, occupied.ID).Return(&occupied, nil)
		f.contracts.On("FindContracts", mock.Anything, mock.MatchedBy(func(filter rental.ContractFilter) bool {
			return filter.UnitID != nil && *filter.UnitID == occupied.ID
		})).Return([]rental.ContractSummary{{ID: uuid.New(), UnitID: &occupied.ID, State: rental.ContractStateReserved}}, nil)
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		require.NoError(t, err)
		_, err = f.service.SelectUnit(ctx, testOrgID, "k", f.unit.ID)
		require.NoError(t, err)

		_, err = f.service.SelectUnit(ctx, testOrgID, "k", occupied.ID)
		var conflict *rental.ContractConflictError
		require.ErrorAs(t, err, &conflict)

		view, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		require.NotNil(t, view.Draft.UnitID)
		assert.Equal(t, f.unit.ID, *view.Draft.UnitID)
	})

	t.Run("closed contracts do not block", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.MatchedBy(unitFilter)).
			Return([]rental.ContractSummary{{ID: uuid.New(), State: rental.ContractStateExpired}}, nil)
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		require.NoError(t, err)
		_, err = f.service.SelectUnit(ctx, testOrgID, "k", f.unit.ID)
		require.NoError(t, err)
	})

	t.Run("unit from another property", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		stray := rental.Unit{ID: uuid.New(), PropertyID: uuid.New(), Number: "Z-1"}
		f.directory.On("GetUnit", mock.Anything, testOrgID, stray.ID).Return(&stray, nil)

		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		require.NoError(t, err)
		_, err = f.service.SelectUnit(ctx, testOrgID, "k", stray.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNIT_NOT_IN_PROPERTY", domainErr.Code)
	})

	t.Run("property required", func(t *testing.T) {
		f := newWizardFixture()
		_, err := f.service.SelectUnit(ctx, testOrgID, "k", f.unit.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "PROPERTY_REQUIRED", domainErr.Code)
	})
}

func TestWizardService_SupersededLookupIsDiscarded(t *testing.T) {
	f := newWizardFixture()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.directory.On("GetProperty", mock.Anything, testOrgID, f.property.ID).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&f.property, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := f.service.SelectProperty(ctx, testOrgID, "k", f.property.ID)
		errc <- err
	}()

	<-entered
	_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("450"))})
	require.NoError(t, err)
	close(release)

	require.ErrorIs(t, <-errc, rental.ErrSuperseded)
	view, err := f.service.Open(ctx, testOrgID, "k")
	require.NoError(t, err)
	assert.Nil(t, view.Draft.PropertyID)
	assert.Equal(t, "450.000", view.Draft.MonthlyRent.StringFixed(3))
	assert.Equal(t, []string{"select_property"}, f.metrics.snapshot().superseded)
}

func TestWizardService_Advance(t *testing.T) {
	ctx := context.Background()

	t.Run("forward move blocked by missing fields", func(t *testing.T) {
		f := newWizardFixture()
		_, err := f.service.Advance(ctx, testOrgID, "k", rental.StepTerms)

		var failed *rental.ValidationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, rental.StepParties, failed.Step)
		assert.Equal(t, "property_id", failed.Issues[0].FieldID)
	})

	t.Run("incomplete property data blocks payments", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.completeness.On("CheckAdditionalData", mock.Anything, testOrgID, f.property.ID).
			Return(rental.CompletenessReport{Complete: false, Missing: []string{"land_number"}}, nil)
		f.fillDraft(t, "k")

		_, err := f.service.Advance(ctx, testOrgID, "k", rental.StepPayments)
		var failed *rental.ValidationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, rental.StepTerms, failed.Step)
		assert.Equal(t, rental.AnchorPropertyAdditionalData, failed.Issues[0].Anchor)

		view, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		assert.Equal(t, rental.StepParties.String(), view.Step)
	})

	t.Run("forward and back", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.completeness.On("CheckAdditionalData", mock.Anything, testOrgID, f.property.ID).
			Return(rental.CompletenessReport{Complete: true}, nil)
		f.fillDraft(t, "k")

		view, err := f.service.Advance(ctx, testOrgID, "k", rental.StepReview)
		require.NoError(t, err)
		assert.Equal(t, rental.StepReview.String(), view.Step)

		view, err = f.service.Advance(ctx, testOrgID, "k", rental.StepParties)
		require.NoError(t, err)
		assert.Equal(t, rental.StepParties.String(), view.Step)
		f.completeness.AssertNumberOfCalls(t, "CheckAdditionalData", 1)
	})

	t.Run("completeness failure is transient", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.completeness.On("CheckAdditionalData", mock.Anything, testOrgID, f.property.ID).
			Return(rental.CompletenessReport{}, errors.New("timeout"))
		f.fillDraft(t, "k")

		_, err := f.service.Advance(ctx, testOrgID, "k", rental.StepPayments)
		assert.True(t, rental.IsTransient(err))
	})
}

func TestWizardService_DepositCheques(t *testing.T) {
	f := newWizardFixture()
	ctx := context.Background()

	_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{
		Deposit:        ptr(dec("1000")),
		DepositPayment: json.RawMessage(`{"method":"cash_and_cheque","cash_amount":"400","cash_receipt_number":"C-1","payer":{"kind":"tenant"}}`),
	})
	require.NoError(t, err)

	view, err := f.service.AddDepositCheque(ctx, testOrgID, "k", "5001", dec("0"), nil)
	require.NoError(t, err)
	cheques := view.Draft.DepositCheques()
	require.Len(t, cheques, 1)
	assert.Equal(t, "600.000", cheques[0].Amount.StringFixed(3))
	assert.False(t, cheques[0].HasDate)

	date := rental.NewDate(2025, time.February, 1)
	view, err = f.service.SetDepositChequeDate(ctx, testOrgID, "k", 0, &date)
	require.NoError(t, err)
	assert.True(t, view.Draft.DepositCheques()[0].HasDate)

	view, err = f.service.EditChequeNumber(ctx, testOrgID, "k", ChequeListDeposit, 0, "5009")
	require.NoError(t, err)
	assert.Equal(t, "5009", view.Draft.DepositCheques()[0].CheckNumber)

	view, err = f.service.RemoveDepositCheque(ctx, testOrgID, "k", 0)
	require.NoError(t, err)
	assert.Empty(t, view.Draft.DepositCheques())

	_, err = f.service.EditChequeNumber(ctx, testOrgID, "k", ChequeList("other"), 0, "1")
	require.Error(t, err)
}

func TestWizardService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the contract and clears the draft", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.fillDraft(t, "k")

		contractID := uuid.New()
		f.submitter.On("Submit", mock.Anything, mock.AnythingOfType("*rental.ContractDraft"), mock.AnythingOfType("rental.FinancialSummary")).
			Return(contractID, nil)
		f.events.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return len(events) == 1 && events[0].EventType() == rental.EventTypeContractDraftSubmitted
		})).Return(nil)

		result, err := f.service.Submit(ctx, testOrgID, "k")
		require.NoError(t, err)
		assert.Equal(t, contractID, result.ContractID)
		assert.Equal(t, "1500.000", result.Summary.FullRent.StringFixed(3))
		assert.Equal(t, "45.000", result.Summary.MunicipalityFees.StringFixed(3))

		assert.False(t, f.store.has(f.service.storeKey(testOrgID, "k")))
		assert.Equal(t, []string{OutcomeOK}, f.metrics.snapshot().submitted)
		f.events.AssertExpectations(t)

		view, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		assert.False(t, view.Restored)
		assert.Nil(t, view.Draft.PropertyID)
	})

	t.Run("incomplete draft is rejected", func(t *testing.T) {
		f := newWizardFixture()
		_, err := f.service.Submit(ctx, testOrgID, "k")

		var failed *rental.ValidationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, rental.StepParties, failed.Step)
		f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, []string{OutcomeInvalid}, f.metrics.snapshot().submitted)
	})

	t.Run("contract opened meanwhile blocks submission", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.MatchedBy(unitFilter)).
			Return([]rental.ContractSummary{}, nil).Once()
		f.contracts.On("FindContracts", mock.Anything, mock.MatchedBy(unitFilter)).
			Return([]rental.ContractSummary{{ID: uuid.New(), State: rental.ContractStatePaid}}, nil)
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)
		f.fillDraft(t, "k")

		_, err := f.service.Submit(ctx, testOrgID, "k")
		var conflict *rental.ContractConflictError
		require.ErrorAs(t, err, &conflict)
		f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, []string{"submit"}, f.metrics.snapshot().conflicts)
	})

	t.Run("submitter failure keeps the draft", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.fillDraft(t, "k")
		f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.Nil, errors.New("db down"))

		_, err := f.service.Submit(ctx, testOrgID, "k")
		assert.True(t, rental.IsTransient(err))

		view, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		require.NotNil(t, view.Draft.PropertyID)
		assert.Equal(t, rental.DraftStatusDraft, view.Draft.Status)
	})
}

func TestWizardService_Discard(t *testing.T) {
	f := newWizardFixture()
	ctx := context.Background()

	_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("300"))})
	require.NoError(t, err)
	require.NoError(t, f.service.Flush(ctx, testOrgID, "k"))
	require.True(t, f.store.has(f.service.storeKey(testOrgID, "k")))

	require.NoError(t, f.service.Discard(ctx, testOrgID, "k"))
	assert.False(t, f.store.has(f.service.storeKey(testOrgID, "k")))

	view, err := f.service.Open(ctx, testOrgID, "k")
	require.NoError(t, err)
	assert.True(t, view.Draft.MonthlyRent.IsZero())
}

func TestWizardService_Preview(t *testing.T) {
	f := newWizardFixture()

	preview, err := f.service.Preview(testOrgID, DraftInput{
		StartDate:      ptr(rental.NewDate(2025, time.January, 31)),
		DurationMonths: ptr(3),
		MonthlyRent:    ptr(dec("1000")),
		RentPayment:    json.RawMessage(`{"method":"cheque","payer":{"kind":"tenant"}}`),
	})
	require.NoError(t, err)

	require.NotNil(t, preview.EndDate)
	assert.Equal(t, "2025-04-29", preview.EndDate.Format(time.DateOnly))
	assert.Equal(t, "3000.000", preview.Summary.FullRent.StringFixed(3))
	require.Len(t, preview.Cheques, 3)
	assert.Equal(t, "2025-02-28", preview.Cheques[1].Date.Format(time.DateOnly))
	assert.NotEmpty(t, preview.Issues)
}

func TestWizardService_EditsWaitForSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("edits during submission are rejected", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)
		f.fillDraft(t, "k")

		entered := make(chan struct{})
		release := make(chan struct{})
		f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(entered)
				<-release
			}).
			Return(uuid.New(), nil)

		errc := make(chan error, 1)
		go func() {
			_, err := f.service.Submit(ctx, testOrgID, "k")
			errc <- err
		}()
		<-entered

		_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("450"))})
		assert.ErrorIs(t, err, ErrSubmissionInProgress)
		_, err = f.service.SelectTenant(ctx, testOrgID, "k", f.tenant.ID)
		assert.ErrorIs(t, err, ErrSubmissionInProgress)
		_, err = f.service.Advance(ctx, testOrgID, "k", rental.StepParties)
		assert.ErrorIs(t, err, ErrSubmissionInProgress)
		_, err = f.service.Submit(ctx, testOrgID, "k")
		assert.ErrorIs(t, err, ErrSubmissionInProgress)

		close(release)
		require.NoError(t, <-errc)
		f.submitter.AssertNumberOfCalls(t, "Submit", 1)
	})

	t.Run("edits resume after a failed submission", func(t *testing.T) {
		f := newWizardFixture()
		f.expectDirectory()
		f.contracts.On("FindContracts", mock.Anything, mock.Anything).Return([]rental.ContractSummary{}, nil)
		f.fillDraft(t, "k")
		f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(uuid.Nil, errors.New("db down"))

		_, err := f.service.Submit(ctx, testOrgID, "k")
		require.Error(t, err)

		view, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("450"))})
		require.NoError(t, err)
		assert.Equal(t, "450.000", view.Draft.MonthlyRent.StringFixed(3))
	})
}

// steppedClock is a clock the test moves forward by hand
type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (s *WizardService) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func newIdleFixture(clock *steppedClock) *wizardFixture {
	f := newWizardFixture()
	f.service = NewWizardService(f.directory, f.completeness, f.contracts, f.submitter, f.store,
		WithClock(clock.Now),
		WithSessionIdleTTL(10*time.Minute),
		WithSaveDebounce(MaxSaveDebounce),
	)
	return f
}

func TestWizardService_EvictIdle(t *testing.T) {
	ctx := context.Background()

	t.Run("flushes and drops idle sessions", func(t *testing.T) {
		clock := &steppedClock{now: testNow}
		f := newIdleFixture(clock)

		_, err := f.service.UpdateInputs(ctx, testOrgID, "idle", DraftInput{MonthlyRent: ptr(dec("300"))})
		require.NoError(t, err)
		_, err = f.service.UpdateInputs(ctx, testOrgID, "busy", DraftInput{MonthlyRent: ptr(dec("400"))})
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		_, err = f.service.Open(ctx, testOrgID, "busy")
		require.NoError(t, err)
		clock.Advance(6 * time.Minute)

		assert.Equal(t, 1, f.service.EvictIdle(ctx))
		assert.Equal(t, 1, f.service.sessionCount())
		assert.True(t, f.store.has(f.service.storeKey(testOrgID, "idle")))

		view, err := f.service.Open(ctx, testOrgID, "idle")
		require.NoError(t, err)
		assert.True(t, view.Restored)
		assert.Equal(t, "300.000", view.Draft.MonthlyRent.StringFixed(3))
	})

	t.Run("keeps sessions the store rejected", func(t *testing.T) {
		clock := &steppedClock{now: testNow}
		f := newIdleFixture(clock)

		_, err := f.service.UpdateInputs(ctx, testOrgID, "k", DraftInput{MonthlyRent: ptr(dec("300"))})
		require.NoError(t, err)
		f.store.fail(nil, errStoreDown, nil)
		clock.Advance(time.Hour)

		assert.Zero(t, f.service.EvictIdle(ctx))
		assert.Equal(t, 1, f.service.sessionCount())

		f.store.fail(nil, nil, nil)
		assert.Equal(t, 1, f.service.EvictIdle(ctx))
		assert.True(t, f.store.has(f.service.storeKey(testOrgID, "k")))
	})

	t.Run("background eviction stops on close", func(t *testing.T) {
		clock := &steppedClock{now: testNow}
		f := newIdleFixture(clock)

		_, err := f.service.Open(ctx, testOrgID, "k")
		require.NoError(t, err)
		clock.Advance(time.Hour)

		f.service.StartEviction(5 * time.Millisecond)
		require.Eventually(t, func() bool { return f.service.sessionCount() == 0 }, time.Second, 5*time.Millisecond)
		require.NoError(t, f.service.Close(ctx))
	})
}
