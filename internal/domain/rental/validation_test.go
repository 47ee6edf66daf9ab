package rental

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldIDs(issues []ValidationIssue) []string {
	ids := make([]string, len(issues))
	for i, is := range issues {
		ids[i] = is.FieldID
	}
	return ids
}

func TestGate_CompleteDraftIsClean(t *testing.T) {
	d := completeDraft(t)
	for _, step := range Steps {
		assert.Empty(t, Evaluate(step, d), "step %s", step)
	}
	assert.True(t, CanEnter(StepReview, d))
}

func TestGate_Parties(t *testing.T) {
	d := NewContractDraft(testOrgID, NewDate(2025, time.January, 1))
	assert.Equal(t, []string{"property_id", "tenant_id"}, fieldIDs(Evaluate(StepParties, d)))

	require.NoError(t, d.SelectProperty(PropertyRef{ID: uuid.New(), Name: "Tower"}))
	assert.Equal(t, []string{"unit_id", "tenant_id"}, fieldIDs(Evaluate(StepParties, d)))

	require.NoError(t, d.SelectProperty(PropertyRef{ID: uuid.New(), Name: "Villa", SingleUnit: true}))
	assert.Equal(t, []string{"tenant_id"}, fieldIDs(Evaluate(StepParties, d)))
}

func TestGate_RentBasisToggle(t *testing.T) {
	d := NewContractDraft(testOrgID, NewDate(2025, time.January, 1))
	assert.Equal(t, []string{"monthly_rent"}, fieldIDs(Evaluate(StepTerms, d)))

	require.NoError(t, d.SetRentByArea(dec("0"), dec("0")))
	assert.Equal(t, []string{"rent_area", "price_per_meter"}, fieldIDs(Evaluate(StepTerms, d)))

	require.NoError(t, d.SetRentByArea(dec("80"), dec("5")))
	assert.Empty(t, Evaluate(StepTerms, d))
}

func TestGate_TaxToggles(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 12, "100")
	require.NoError(t, d.SetVAT(true, dec("0")))
	require.NoError(t, d.SetOtherTax(true, "", dec("0")))
	assert.Equal(t, []string{"vat_rate", "other_tax_name", "other_tax_rate"}, fieldIDs(Evaluate(StepTerms, d)))
}

func TestGate_RentPayment(t *testing.T) {
	d := completeDraft(t)

	t.Run("missing method", func(t *testing.T) {
		d.RentPayment = nil
		assert.Equal(t, []string{"rent_payment_method"}, fieldIDs(Evaluate(StepPayments, d)))
	})

	t.Run("receipt methods need a receipt number", func(t *testing.T) {
		for _, p := range []RentPayment{CashPayment{}, BankTransferPayment{}, ElectronicPayment{}} {
			require.NoError(t, d.SetRentPayment(p))
			assert.Equal(t, []string{"rent_receipt_number"}, fieldIDs(Evaluate(StepPayments, d)), p.Method().String())
		}
	})

	t.Run("cheque needs lines bank and payer", func(t *testing.T) {
		require.NoError(t, d.SetRentPayment(ChequePayment{}))
		assert.Equal(t,
			[]string{"rent_cheques", "rent_bank_name", "rent_account_number", "rent_payer"},
			fieldIDs(Evaluate(StepPayments, d)))
	})

	t.Run("individual payer", func(t *testing.T) {
		require.NoError(t, d.SetRentPayment(ChequePayment{
			Lines: []ChequeLine{{CheckNumber: "1", Amount: dec("10")}},
			Bank:  BankAccount{BankName: "NBO", AccountNumber: "1"},
			Payer: IndividualPayer{FullName: "Aisha"},
		}))
		assert.Equal(t,
			[]string{"rent_cheques[0].date", "rent_payer_national_id"},
			fieldIDs(Evaluate(StepPayments, d)))
	})

	t.Run("company payer", func(t *testing.T) {
		date := NewDate(2025, time.February, 1)
		require.NoError(t, d.SetRentPayment(ChequePayment{
			Lines: []ChequeLine{{CheckNumber: "1", Amount: dec("10"), Date: &date, HasDate: true}},
			Bank:  BankAccount{BankName: "NBO", AccountNumber: "1"},
			Payer: CompanyPayer{CompanyName: "Oasis LLC", RegistrationNumber: "CR-1"},
		}))
		issues := Evaluate(StepPayments, d)
		assert.Equal(t,
			[]string{"rent_payer_signatory_name", "rent_payer_signatory_national_id"},
			fieldIDs(issues))
		assert.Equal(t, "payments-rent", issues[0].Anchor)
	})
}

func TestGate_DepositPayment(t *testing.T) {
	d := completeDraft(t)

	t.Run("no deposit needs no method", func(t *testing.T) {
		require.NoError(t, d.SetDeposit(dec("0")))
		d.DepositPayment = nil
		assert.Empty(t, Evaluate(StepPayments, d))
		require.NoError(t, d.SetDeposit(dec("500")))
	})

	t.Run("cash and cheque needs cash fields and cheques", func(t *testing.T) {
		require.NoError(t, d.SetDepositPayment(CashAndChequePayment{Payer: TenantPayer{}}))
		assert.Equal(t,
			[]string{"deposit_cash_amount", "deposit_cash_receipt_number", "deposit_cheques",
				"deposit_bank_name", "deposit_account_number"},
			fieldIDs(Evaluate(StepPayments, d)))
	})

	t.Run("undated deposit cheque is exempt from the date rule", func(t *testing.T) {
		require.NoError(t, d.SetDepositPayment(ChequePayment{
			Bank:  BankAccount{BankName: "NBO", AccountNumber: "9"},
			Payer: TenantPayer{},
		}))
		require.NoError(t, d.AddDepositCheque("D-1", dec("0"), nil))
		assert.Empty(t, Evaluate(StepPayments, d))
	})

	t.Run("dated deposit cheque without date is flagged", func(t *testing.T) {
		p := d.DepositPayment.(ChequePayment)
		p.Lines[0].HasDate = true
		d.DepositPayment = p
		assert.Equal(t, []string{"deposit_cheques[0].date"}, fieldIDs(Evaluate(StepPayments, d)))
	})
}

func TestGate_MunicipalAlwaysRequiresFilingAndMeters(t *testing.T) {
	d := completeDraft(t)
	require.NoError(t, d.SetMunicipal(MunicipalFiling{ApprovedContractNumber: "AC-1"}))
	require.NoError(t, d.SetUtilities(Utilities{ElectricityBillAmount: dec("3")}))

	assert.Equal(t,
		[]string{"municipal_filing_number", "municipal_filing_attachment", "electricity_meter_reading", "water_meter_reading"},
		fieldIDs(Evaluate(StepMunicipal, d)))
}

func TestGate_CanEnterRequiresEveryPriorStep(t *testing.T) {
	d := completeDraft(t)
	require.NoError(t, d.SetMunicipal(MunicipalFiling{}))

	assert.True(t, CanEnter(StepMunicipal, d))
	assert.False(t, CanEnter(StepReview, d))

	step, issues, blocked := DefaultGate.FirstBlocked(StepReview, d)
	assert.True(t, blocked)
	assert.Equal(t, StepMunicipal, step)
	assert.Equal(t, "municipal_filing_number", issues[0].FieldID)

	d.TenantID = nil
	step, _, _ = DefaultGate.FirstBlocked(StepReview, d)
	assert.Equal(t, StepParties, step)
	assert.False(t, CanEnter(StepTerms, d))
}

func TestCompletenessIssues(t *testing.T) {
	assert.Nil(t, CompletenessIssues(CompletenessReport{Complete: true}))

	issues := CompletenessIssues(CompletenessReport{Missing: []string{"Title deed", "Floor plan"}})
	require.Len(t, issues, 2)
	assert.Equal(t, "Title deed", issues[0].Label)
	assert.Equal(t, AnchorPropertyAdditionalData, issues[1].Anchor)

	issues = CompletenessIssues(CompletenessReport{})
	require.Len(t, issues, 1)
	assert.Equal(t, AnchorPropertyAdditionalData, issues[0].FieldID)
}

func TestParseStep(t *testing.T) {
	step, ok := ParseStep("Payments")
	assert.True(t, ok)
	assert.Equal(t, StepPayments, step)

	_, ok = ParseStep("signing")
	assert.False(t, ok)
	assert.Equal(t, "review", StepReview.String())
}
