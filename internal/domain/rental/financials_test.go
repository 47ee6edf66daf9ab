package rental

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rentdesk/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_RentByArea(t *testing.T) {
	tests := []struct {
		area, price, want string
	}{
		{"92.5", "15.125", "1399.063"},
		{"120", "4.5", "540.000"},
		{"0.333", "0.333", "0.111"},
	}
	for _, tt := range tests {
		t.Run(tt.area+"x"+tt.price, func(t *testing.T) {
			d := NewContractDraft(testOrgID, NewDate(2025, time.March, 1))
			require.NoError(t, d.SetRentByArea(dec(tt.area), dec(tt.price)))

			s := Derive(d)
			assert.Equal(t, tt.want, s.MonthlyRent.StringFixed(3))
			assert.True(t, s.MonthlyRent.Equal(valueobject.Round3(dec(tt.area).Mul(dec(tt.price)))))
		})
	}
}

func TestDerive_MunicipalityFeesIgnoreDiscountsAndTaxes(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 12, "433.333")
	base := Derive(d).MunicipalityFees

	require.NoError(t, d.SetVAT(true, dec("0.05")))
	require.NoError(t, d.SetOtherTax(true, "Tourism levy", dec("0.04")))
	require.NoError(t, d.SetGracePeriodDays(15))
	require.NoError(t, d.SetUseCustomMonthlyRents(true))
	require.NoError(t, d.SetCustomMonthlyRent(0, dec("0")))

	s := Derive(d)
	want := valueobject.Round3(dec("433.333").Mul(dec("12")).Mul(dec("0.03")))
	assert.True(t, s.MunicipalityFees.Equal(want), "got %s want %s", s.MunicipalityFees, want)
	assert.True(t, s.MunicipalityFees.Equal(base))
}

func TestDerive_FullSummary(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 12, "500")
	require.NoError(t, d.SetGracePeriodDays(10))
	require.NoError(t, d.SetVAT(true, dec("0.05")))
	require.NoError(t, d.SetDeposit(dec("500")))
	require.NoError(t, d.SetFees(Fees{
		InternetIncluded:            true,
		InternetMonthly:             true,
		InternetFees:                dec("10"),
		MunicipalityRegistrationFee: dec("20"),
		OtherFees:                   []FeeLine{{Name: "Parking card", Amount: dec("25.5")}},
	}))
	require.NoError(t, d.SetUtilities(Utilities{
		ElectricityMeterReading: "1",
		WaterMeterReading:       "2",
		ElectricityBillAmount:   dec("12.345"),
		WaterBillAmount:         dec("7.5"),
	}))

	s := Derive(d)

	assert.Equal(t, valueobject.OMR, s.Currency)
	assert.Equal(t, "6000.000", s.FullRent.StringFixed(3))
	assert.Equal(t, "180.000", s.MunicipalityFees.StringFixed(3))
	assert.Equal(t, "166.667", s.GracePeriodAmount.StringFixed(3))
	assert.True(t, s.CustomRentDiscount.IsZero())
	assert.Equal(t, "166.667", s.TotalDiscounts.StringFixed(3))
	assert.Equal(t, "5833.333", s.ActualRent.StringFixed(3))
	assert.Equal(t, "25.000", s.MonthlyVAT.StringFixed(3))
	assert.Equal(t, "291.667", s.TotalVAT.StringFixed(3))
	assert.True(t, s.TotalOtherTax.IsZero())
	assert.Equal(t, "120.000", s.InternetTotal.StringFixed(3))
	assert.Equal(t, "25.500", s.OtherFeesTotal.StringFixed(3))
	assert.Equal(t, "6770.500", s.TenantTotalDue.StringFixed(3))
	assert.Equal(t, "219.845", s.OwnerTotalDue.StringFixed(3))
	assert.Equal(t, "6770.500 OMR", s.TenantTotal().String())
}

func TestDerive_OneOffInternetFee(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 6, "100")
	require.NoError(t, d.SetFees(Fees{InternetIncluded: true, InternetFees: dec("35")}))
	assert.Equal(t, "35.000", Derive(d).InternetTotal.StringFixed(3))

	require.NoError(t, d.SetFees(Fees{InternetIncluded: false, InternetFees: dec("35")}))
	assert.True(t, Derive(d).InternetTotal.IsZero())
}

func TestDerive_CustomRentDiscount(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 3, "100")
	require.NoError(t, d.SetUseCustomMonthlyRents(true))
	require.NoError(t, d.SetCustomMonthlyRent(1, dec("90")))
	require.NoError(t, d.SetCustomMonthlyRent(2, dec("80")))

	s := Derive(d)
	assert.Equal(t, "30.000", s.CustomRentDiscount.StringFixed(3))
	assert.Equal(t, "270.000", s.ActualRent.StringFixed(3))
}

func TestDerive_GracePeriodAmountRoundsOnce(t *testing.T) {
	tests := []struct {
		rent string
		days int
		want string
	}{
		{"500", 10, "166.667"},
		{"100", 29, "96.667"},
		{"433.333", 15, "216.667"},
		{"1", 1, "0.033"},
		{"300", 0, "0.000"},
	}
	for _, tt := range tests {
		t.Run(tt.rent, func(t *testing.T) {
			d := newTestDraft(t, NewDate(2025, time.January, 1), 12, tt.rent)
			require.NoError(t, d.SetGracePeriodDays(tt.days))

			s := Derive(d)
			assert.Equal(t, tt.want, s.GracePeriodAmount.StringFixed(3))
			assert.Equal(t, valueobject.Round3(s.FullRent.Sub(s.GracePeriodAmount)).StringFixed(3), s.ActualRent.StringFixed(3))
		})
	}
}

func TestDerive_GracePeriodDoesNotMoveDates(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.December, 1), 12, "300")
	before := *d.EndDate()
	require.NoError(t, d.SetGracePeriodDays(30))

	assert.Equal(t, NewDate(2025, time.December, 1), d.StartDate)
	assert.Equal(t, before, *d.EndDate())
	assert.Equal(t, "300.000", Derive(d).GracePeriodAmount.StringFixed(3))
}

func TestDerive_Idempotent(t *testing.T) {
	d := completeDraft(t)
	require.NoError(t, d.SetVAT(true, dec("0.05")))
	require.NoError(t, d.SetGracePeriodDays(7))

	first, err := json.Marshal(Derive(d))
	require.NoError(t, err)
	second, err := json.Marshal(Derive(d))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDerivationPolicy_CustomFeeRate(t *testing.T) {
	d := newTestDraft(t, NewDate(2025, time.January, 1), 12, "1000")
	p := DerivationPolicy{MunicipalityFeeRate: dec("0.05")}
	assert.Equal(t, "600.000", p.Derive(d).MunicipalityFees.StringFixed(3))
}
