package rental

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DraftInput carries the primary inputs of a draft. Nil fields are left unchanged.
type DraftInput struct {
	ContractType          *string                 `json:"contract_type,omitempty" binding:"omitempty,oneof=residential commercial"`
	StartDate             *time.Time              `json:"start_date,omitempty"`
	ActualRentalDate      *time.Time              `json:"actual_rental_date,omitempty"`
	UnitHandoverDate      *time.Time              `json:"unit_handover_date,omitempty"`
	DurationMonths        *int                    `json:"duration_months,omitempty" binding:"omitempty,min=1,max=120"`
	CalculateByArea       *bool                   `json:"calculate_by_area,omitempty"`
	RentArea              *decimal.Decimal        `json:"rent_area,omitempty"`
	PricePerMeter         *decimal.Decimal        `json:"price_per_meter,omitempty"`
	MonthlyRent           *decimal.Decimal        `json:"monthly_rent,omitempty"`
	Deposit               *decimal.Decimal        `json:"deposit,omitempty"`
	Currency              *string                 `json:"currency,omitempty" binding:"omitempty,len=3"`
	IncludesVAT           *bool                   `json:"includes_vat,omitempty"`
	VATRate               *decimal.Decimal        `json:"vat_rate,omitempty"`
	HasOtherTaxes         *bool                   `json:"has_other_taxes,omitempty"`
	OtherTaxName          *string                 `json:"other_tax_name,omitempty" binding:"omitempty,max=100"`
	OtherTaxRate          *decimal.Decimal        `json:"other_tax_rate,omitempty"`
	GracePeriodDays       *int                    `json:"grace_period_days,omitempty" binding:"omitempty,min=0,max=365"`
	RentDueDay            *int                    `json:"rent_due_day,omitempty" binding:"omitempty,min=0,max=31"`
	UseCustomMonthlyRents *bool                   `json:"use_custom_monthly_rents,omitempty"`
	CustomMonthlyRents    []decimal.Decimal       `json:"custom_monthly_rents,omitempty"`
	RentPayment           json.RawMessage         `json:"rent_payment,omitempty"`
	DepositPayment        json.RawMessage         `json:"deposit_payment,omitempty"`
	Municipal             *rental.MunicipalFiling `json:"municipal,omitempty"`
	Utilities             *rental.Utilities       `json:"utilities,omitempty"`
	Fees                  *rental.Fees            `json:"fees,omitempty"`
}

// ApplyTo applies the input to d in dependency order. It stops at the first
// rejected field; callers apply it to a copy to keep the input atomic.
func (in DraftInput) ApplyTo(d *rental.ContractDraft) error {
	steps := []func() error{
		func() error {
			if in.ContractType == nil {
				return nil
			}
			return d.SetContractType(rental.ContractType(*in.ContractType))
		},
		func() error {
			if in.StartDate == nil && in.ActualRentalDate == nil && in.UnitHandoverDate == nil {
				return nil
			}
			start := time.Time{}
			if in.StartDate != nil {
				start = *in.StartDate
			}
			actual, handover := d.ActualRentalDate, d.UnitHandoverDate
			if in.ActualRentalDate != nil {
				actual = in.ActualRentalDate
			}
			if in.UnitHandoverDate != nil {
				handover = in.UnitHandoverDate
			}
			return d.SetDates(start, actual, handover)
		},
		func() error {
			if in.Currency == nil {
				return nil
			}
			return d.SetCurrency(*in.Currency)
		},
		in.applyRentBasis(d),
		func() error {
			if in.DurationMonths == nil {
				return nil
			}
			return d.SetDuration(*in.DurationMonths)
		},
		in.applyCustomRents(d),
		func() error {
			if in.Deposit == nil {
				return nil
			}
			return d.SetDeposit(*in.Deposit)
		},
		func() error {
			if in.IncludesVAT == nil && in.VATRate == nil {
				return nil
			}
			return d.SetVAT(boolOr(in.IncludesVAT, d.IncludesVAT), decOr(in.VATRate, d.VATRate))
		},
		func() error {
			if in.HasOtherTaxes == nil && in.OtherTaxName == nil && in.OtherTaxRate == nil {
				return nil
			}
			name := d.OtherTaxName
			if in.OtherTaxName != nil {
				name = *in.OtherTaxName
			}
			return d.SetOtherTax(boolOr(in.HasOtherTaxes, d.HasOtherTaxes), name, decOr(in.OtherTaxRate, d.OtherTaxRate))
		},
		func() error {
			if in.GracePeriodDays == nil {
				return nil
			}
			return d.SetGracePeriodDays(*in.GracePeriodDays)
		},
		func() error {
			if in.RentDueDay == nil {
				return nil
			}
			return d.SetRentDueDay(*in.RentDueDay)
		},
		in.applyPayments(d),
		func() error {
			if in.Municipal == nil {
				return nil
			}
			return d.SetMunicipal(*in.Municipal)
		},
		func() error {
			if in.Utilities == nil {
				return nil
			}
			return d.SetUtilities(*in.Utilities)
		},
		func() error {
			if in.Fees == nil {
				return nil
			}
			return d.SetFees(*in.Fees)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (in DraftInput) applyRentBasis(d *rental.ContractDraft) func() error {
	return func() error {
		byArea := boolOr(in.CalculateByArea, d.CalculateByArea)
		if byArea {
			if in.CalculateByArea == nil && in.RentArea == nil && in.PricePerMeter == nil {
				if in.MonthlyRent != nil {
					return d.SetMonthlyRent(*in.MonthlyRent)
				}
				return nil
			}
			if in.MonthlyRent != nil {
				return shared.NewDomainError("MONTHLY_RENT_DERIVED", "Monthly rent is calculated from area and price per meter")
			}
			return d.SetRentByArea(decOr(in.RentArea, d.RentArea), decOr(in.PricePerMeter, d.PricePerMeter))
		}
		if in.CalculateByArea != nil {
			return d.SetRentDirect(decOr(in.MonthlyRent, d.MonthlyRent))
		}
		if in.MonthlyRent != nil {
			return d.SetMonthlyRent(*in.MonthlyRent)
		}
		return nil
	}
}

func (in DraftInput) applyCustomRents(d *rental.ContractDraft) func() error {
	return func() error {
		if in.UseCustomMonthlyRents != nil && *in.UseCustomMonthlyRents != d.UseCustomMonthlyRents {
			if err := d.SetUseCustomMonthlyRents(*in.UseCustomMonthlyRents); err != nil {
				return err
			}
		}
		if in.CustomMonthlyRents == nil {
			return nil
		}
		if len(in.CustomMonthlyRents) != len(d.CustomMonthlyRents) {
			return shared.NewDomainError("INVALID_CUSTOM_RENTS",
				fmt.Sprintf("Expected %d monthly rents, got %d", len(d.CustomMonthlyRents), len(in.CustomMonthlyRents)))
		}
		for i, v := range in.CustomMonthlyRents {
			if err := d.SetCustomMonthlyRent(i, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func (in DraftInput) applyPayments(d *rental.ContractDraft) func() error {
	return func() error {
		if len(in.RentPayment) > 0 {
			p, err := rental.UnmarshalRentPayment(in.RentPayment)
			if err != nil {
				return shared.NewDomainError("INVALID_PAYMENT", err.Error())
			}
			if err := d.SetRentPayment(p); err != nil {
				return err
			}
		}
		if len(in.DepositPayment) > 0 {
			p, err := rental.UnmarshalDepositPayment(in.DepositPayment)
			if err != nil {
				return shared.NewDomainError("INVALID_PAYMENT", err.Error())
			}
			if err := d.SetDepositPayment(p); err != nil {
				return err
			}
		}
		return nil
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func decOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}

// cloneDraft deep-copies a draft through its JSON form
func cloneDraft(d *rental.ContractDraft) (*rental.ContractDraft, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out rental.ContractDraft
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
