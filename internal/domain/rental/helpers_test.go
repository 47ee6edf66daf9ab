package rental

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testOrgID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDraft(t *testing.T, start time.Time, months int, rent string) *ContractDraft {
	t.Helper()
	d := NewContractDraft(testOrgID, start)
	require.NoError(t, d.SetDuration(months))
	require.NoError(t, d.SetMonthlyRent(dec(rent)))
	return d
}

// completeDraft returns a draft that passes every step gate
func completeDraft(t *testing.T) *ContractDraft {
	t.Helper()
	d := newTestDraft(t, NewDate(2025, time.January, 1), 3, "500")
	require.NoError(t, d.SelectProperty(PropertyRef{ID: uuid.New(), Name: "Al Khuwair Tower"}))
	require.NoError(t, d.SelectUnit(UnitRef{ID: uuid.New(), Number: "A-12"}))
	require.NoError(t, d.SelectTenant(TenantRef{ID: uuid.New(), Name: "Salim Al Harthy"}))
	require.NoError(t, d.SetRentDueDay(5))
	require.NoError(t, d.SetRentPayment(ChequePayment{
		Bank:  BankAccount{BankName: "Bank Muscat", AccountNumber: "0301-123456"},
		Payer: TenantPayer{},
	}))
	require.NoError(t, d.RegenerateRentCheques())
	require.NoError(t, d.EditRentChequeNumber(0, "1001"))
	require.NoError(t, d.SetDeposit(dec("500")))
	require.NoError(t, d.SetDepositPayment(CashPayment{ReceiptNumber: "R-77"}))
	require.NoError(t, d.SetMunicipal(MunicipalFiling{FilingNumber: "MF-2025-1", FilingAttachmentRef: "files/mf.pdf"}))
	require.NoError(t, d.SetUtilities(Utilities{ElectricityMeterReading: "10432", WaterMeterReading: "883"}))
	return d
}
