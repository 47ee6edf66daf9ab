package rental

import (
	"github.com/rentdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DefaultMunicipalityFeeRate is the share of the nominal full rent owed to the municipality
var DefaultMunicipalityFeeRate = decimal.RequireFromString("0.03")

var daysPerRentMonth = decimal.NewFromInt(30)

// FinancialSummary is the projection of every derived monetary value of a draft.
// It is recomputed on read and never stored as the source of truth.
type FinancialSummary struct {
	Currency           valueobject.Currency `json:"currency"`
	MonthlyRent        decimal.Decimal      `json:"monthly_rent"`
	FullRent           decimal.Decimal      `json:"full_rent"`
	MunicipalityFees   decimal.Decimal      `json:"municipality_fees"`
	GracePeriodAmount  decimal.Decimal      `json:"grace_period_amount"`
	CustomRentDiscount decimal.Decimal      `json:"custom_rent_discount"`
	TotalDiscounts     decimal.Decimal      `json:"total_discounts"`
	ActualRent         decimal.Decimal      `json:"actual_rent"`
	MonthlyVAT         decimal.Decimal      `json:"monthly_vat"`
	TotalVAT           decimal.Decimal      `json:"total_vat"`
	MonthlyOtherTax    decimal.Decimal      `json:"monthly_other_tax"`
	TotalOtherTax      decimal.Decimal      `json:"total_other_tax"`
	Deposit            decimal.Decimal      `json:"deposit"`
	InternetTotal      decimal.Decimal      `json:"internet_total"`
	OtherFeesTotal     decimal.Decimal      `json:"other_fees_total"`
	TenantTotalDue     decimal.Decimal      `json:"tenant_total_due"`
	OwnerTotalDue      decimal.Decimal      `json:"owner_total_due"`
}

// TenantTotal returns the tenant's total as Money
func (s FinancialSummary) TenantTotal() valueobject.Money {
	return valueobject.MustMoney(s.TenantTotalDue, s.Currency)
}

// OwnerTotal returns the owner's total as Money
func (s FinancialSummary) OwnerTotal() valueobject.Money {
	return valueobject.MustMoney(s.OwnerTotalDue, s.Currency)
}

// DerivationPolicy carries the configurable constants of the derivation
type DerivationPolicy struct {
	MunicipalityFeeRate decimal.Decimal
}

// DefaultPolicy returns the policy with the standard municipality fee rate
func DefaultPolicy() DerivationPolicy {
	return DerivationPolicy{MunicipalityFeeRate: DefaultMunicipalityFeeRate}
}

// Derive computes the financial summary with the default policy
func Derive(d *ContractDraft) FinancialSummary {
	return DefaultPolicy().Derive(d)
}

// Derive computes every dependent monetary value of d. Each intermediate is
// rounded to 3 digits where it is computed. Taxes are charged on the
// discounted actual rent; the monthly figures describe an undiscounted month.
// The grace period reduces the amount due and never moves contract dates.
func (p DerivationPolicy) Derive(d *ContractDraft) FinancialSummary {
	round := valueobject.Round3
	months := decimal.NewFromInt(int64(max(d.DurationMonths, 0)))

	s := FinancialSummary{Currency: d.Currency}
	if s.Currency == "" {
		s.Currency = valueobject.DefaultCurrency
	}

	s.MonthlyRent = d.EffectiveMonthlyRent()
	s.FullRent = valueobject.Mul3(s.MonthlyRent, months)
	s.MunicipalityFees = valueobject.Mul3(s.FullRent, p.MunicipalityFeeRate)

	graceDays := decimal.NewFromInt(int64(max(d.GracePeriodDays, 0)))
	s.GracePeriodAmount = round(s.MonthlyRent.Mul(graceDays).DivRound(daysPerRentMonth, 16))

	s.CustomRentDiscount = decimal.Zero
	if d.UseCustomMonthlyRents {
		s.CustomRentDiscount = round(s.FullRent.Sub(valueobject.Sum3(d.CustomMonthlyRents...)))
	}
	s.TotalDiscounts = round(s.CustomRentDiscount.Add(s.GracePeriodAmount))
	s.ActualRent = round(s.FullRent.Sub(s.TotalDiscounts))

	s.MonthlyVAT, s.TotalVAT = decimal.Zero, decimal.Zero
	if d.IncludesVAT {
		s.MonthlyVAT = valueobject.Mul3(s.MonthlyRent, d.VATRate)
		s.TotalVAT = valueobject.Mul3(s.ActualRent, d.VATRate)
	}
	s.MonthlyOtherTax, s.TotalOtherTax = decimal.Zero, decimal.Zero
	if d.HasOtherTaxes {
		s.MonthlyOtherTax = valueobject.Mul3(s.MonthlyRent, d.OtherTaxRate)
		s.TotalOtherTax = valueobject.Mul3(s.ActualRent, d.OtherTaxRate)
	}

	s.InternetTotal = decimal.Zero
	if d.Fees.InternetIncluded {
		s.InternetTotal = round(d.Fees.InternetFees)
		if d.Fees.InternetMonthly {
			s.InternetTotal = valueobject.Mul3(d.Fees.InternetFees, months)
		}
	}
	otherFees := make([]decimal.Decimal, 0, len(d.Fees.OtherFees))
	for _, f := range d.Fees.OtherFees {
		otherFees = append(otherFees, f.Amount)
	}
	s.OtherFeesTotal = valueobject.Sum3(otherFees...)
	s.Deposit = round(d.Deposit)

	s.TenantTotalDue = valueobject.Sum3(
		s.ActualRent, s.TotalVAT, s.TotalOtherTax, s.Deposit, s.InternetTotal, s.OtherFeesTotal,
	)
	s.OwnerTotalDue = valueobject.Sum3(
		s.MunicipalityFees,
		d.Fees.MunicipalityRegistrationFee,
		d.Utilities.ElectricityBillAmount,
		d.Utilities.WaterBillAmount,
	)
	return s
}

// MonthRent is the rent due for month i (0-based): the custom rent when the
// per-month schedule is on, the monthly rent otherwise.
func (d *ContractDraft) MonthRent(i int) decimal.Decimal {
	if d.UseCustomMonthlyRents && i >= 0 && i < len(d.CustomMonthlyRents) {
		return valueobject.Round3(d.CustomMonthlyRents[i])
	}
	return d.EffectiveMonthlyRent()
}
