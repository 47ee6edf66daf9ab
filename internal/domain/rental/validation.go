package rental

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Step identifies a page of the contract wizard
type Step int

const (
	StepParties Step = iota + 1
	StepTerms
	StepPayments
	StepMunicipal
	StepReview
)

// Steps lists the wizard steps in order
var Steps = []Step{StepParties, StepTerms, StepPayments, StepMunicipal, StepReview}

var stepNames = map[Step]string{
	StepParties:   "parties",
	StepTerms:     "terms",
	StepPayments:  "payments",
	StepMunicipal: "municipal",
	StepReview:    "review",
}

// String returns the step name
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// IsValid checks if the step exists
func (s Step) IsValid() bool {
	_, ok := stepNames[s]
	return ok
}

// ParseStep resolves a step by name
func ParseStep(name string) (Step, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for step, n := range stepNames {
		if n == name {
			return step, true
		}
	}
	return 0, false
}

// ValidationIssue is one missing or invalid field. Lists are ordered;
// the first issue is the next thing to fix.
type ValidationIssue struct {
	FieldID string `json:"field_id"`
	Label   string `json:"label"`
	Anchor  string `json:"anchor"`
}

// AnchorPropertyAdditionalData anchors issues raised by the completeness check
const AnchorPropertyAdditionalData = "property_additional_data"

// Rule is one row of a step's rule table: when When holds (nil means always),
// Require lists the fields of the draft that are missing.
type Rule struct {
	Name    string
	When    func(d *ContractDraft) bool
	Require func(d *ContractDraft) []ValidationIssue
}

// Gate evaluates the per-step rule tables
type Gate struct {
	rules map[Step][]Rule
}

// NewGate creates a gate over the given rule tables
func NewGate(rules map[Step][]Rule) *Gate {
	return &Gate{rules: rules}
}

// DefaultGate is the gate used by the wizard
var DefaultGate = NewGate(StepRules())

// Evaluate returns every issue of step in table order
func (g *Gate) Evaluate(step Step, d *ContractDraft) []ValidationIssue {
	issues := make([]ValidationIssue, 0)
	for _, r := range g.rules[step] {
		if r.When != nil && !r.When(d) {
			continue
		}
		issues = append(issues, r.Require(d)...)
	}
	return issues
}

// FirstBlocked returns the earliest step before target whose gate is not clean
// and its issues. ok is false when every prior step passes.
func (g *Gate) FirstBlocked(target Step, d *ContractDraft) (Step, []ValidationIssue, bool) {
	for _, s := range Steps {
		if s >= target {
			break
		}
		if issues := g.Evaluate(s, d); len(issues) > 0 {
			return s, issues, true
		}
	}
	return 0, nil, false
}

// CanEnter reports whether every step before target passes its gate
func (g *Gate) CanEnter(target Step, d *ContractDraft) bool {
	_, _, blocked := g.FirstBlocked(target, d)
	return !blocked
}

// EvaluateAll returns the issues of every step in wizard order
func (g *Gate) EvaluateAll(d *ContractDraft) []ValidationIssue {
	issues := make([]ValidationIssue, 0)
	for _, s := range Steps {
		issues = append(issues, g.Evaluate(s, d)...)
	}
	return issues
}

// Evaluate runs DefaultGate
func Evaluate(step Step, d *ContractDraft) []ValidationIssue {
	return DefaultGate.Evaluate(step, d)
}

// CanEnter runs DefaultGate
func CanEnter(step Step, d *ContractDraft) bool {
	return DefaultGate.CanEnter(step, d)
}

// CompletenessIssues turns the missing labels of a completeness report into issues
func CompletenessIssues(r CompletenessReport) []ValidationIssue {
	if r.Complete {
		return nil
	}
	issues := make([]ValidationIssue, 0, len(r.Missing))
	for i, label := range r.Missing {
		issues = append(issues, ValidationIssue{
			FieldID: fmt.Sprintf("%s[%d]", AnchorPropertyAdditionalData, i),
			Label:   label,
			Anchor:  AnchorPropertyAdditionalData,
		})
	}
	if len(issues) == 0 {
		issues = append(issues, ValidationIssue{
			FieldID: AnchorPropertyAdditionalData,
			Label:   "Additional property data",
			Anchor:  AnchorPropertyAdditionalData,
		})
	}
	return issues
}

type field struct {
	id, label string
	missing   bool
}

func requireFields(anchor string, fields ...field) []ValidationIssue {
	var issues []ValidationIssue
	for _, f := range fields {
		if f.missing {
			issues = append(issues, ValidationIssue{FieldID: f.id, Label: f.label, Anchor: anchor})
		}
	}
	return issues
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func notPositive(v decimal.Decimal) bool { return !v.IsPositive() }

const (
	anchorParties = "parties"
	anchorTerms   = "terms"
	anchorRent    = "payments-rent"
	anchorDeposit = "payments-deposit"
	anchorFiling  = "municipal-filing"
	anchorUtility = "municipal-utilities"
	prefixRent    = "rent"
	prefixDeposit = "deposit"
)

func rentByCheque(d *ContractDraft) bool {
	_, ok := d.RentPayment.(ChequePayment)
	return ok
}

func depositOwed(d *ContractDraft) bool { return d.Deposit.IsPositive() }

func depositByCheque(d *ContractDraft) bool {
	switch d.DepositPayment.(type) {
	case ChequePayment, CashAndChequePayment:
		return true
	}
	return false
}

func chequeIssues(prefix, anchor string, lines []ChequeLine, bank BankAccount, payer Payer, datesRequired bool) []ValidationIssue {
	issues := requireFields(anchor, field{prefix + "_cheques", "Cheques", len(lines) == 0})
	for i, l := range lines {
		id := fmt.Sprintf("%s_cheques[%d]", prefix, i)
		n := i + 1
		dateMissing := l.Date == nil && (datesRequired || l.HasDate)
		issues = append(issues, requireFields(anchor,
			field{id + ".check_number", fmt.Sprintf("Cheque %d number", n), blank(l.CheckNumber)},
			field{id + ".amount", fmt.Sprintf("Cheque %d amount", n), notPositive(l.Amount)},
			field{id + ".date", fmt.Sprintf("Cheque %d date", n), dateMissing},
		)...)
	}
	issues = append(issues, requireFields(anchor,
		field{prefix + "_bank_name", "Bank name", blank(bank.BankName)},
		field{prefix + "_account_number", "Bank account number", blank(bank.AccountNumber)},
	)...)
	return append(issues, payerIssues(prefix, anchor, payer)...)
}

func payerIssues(prefix, anchor string, payer Payer) []ValidationIssue {
	switch p := payer.(type) {
	case TenantPayer:
		return nil
	case IndividualPayer:
		return requireFields(anchor,
			field{prefix + "_payer_full_name", "Payer full name", blank(p.FullName)},
			field{prefix + "_payer_national_id", "Payer national ID", blank(p.NationalID)},
		)
	case CompanyPayer:
		return requireFields(anchor,
			field{prefix + "_payer_company_name", "Company name", blank(p.CompanyName)},
			field{prefix + "_payer_registration_number", "Commercial registration number", blank(p.RegistrationNumber)},
			field{prefix + "_payer_signatory_name", "Authorized signatory name", blank(p.SignatoryName)},
			field{prefix + "_payer_signatory_national_id", "Authorized signatory national ID", blank(p.SignatoryNationalID)},
		)
	}
	return requireFields(anchor, field{prefix + "_payer", "Payer", true})
}

func receiptNumber(p any) string {
	switch v := p.(type) {
	case CashPayment:
		return v.ReceiptNumber
	case BankTransferPayment:
		return v.ReceiptNumber
	case ElectronicPayment:
		return v.ReceiptNumber
	}
	return ""
}

// StepRules returns the rule tables of the wizard. Rows are evaluated in order.
func StepRules() map[Step][]Rule {
	return map[Step][]Rule{
		StepParties: {
			{Name: "property", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorParties, field{"property_id", "Property", d.PropertyID == nil})
			}},
			{Name: "unit", When: func(d *ContractDraft) bool {
				return d.PropertyID != nil && (d.Property == nil || !d.Property.SingleUnit)
			}, Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorParties, field{"unit_id", "Unit", d.UnitID == nil})
			}},
			{Name: "tenant", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorParties, field{"tenant_id", "Tenant", d.TenantID == nil})
			}},
			{Name: "contract_type", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorParties, field{"contract_type", "Contract type", !d.ContractType.IsValid()})
			}},
		},
		StepTerms: {
			{Name: "period", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorTerms,
					field{"start_date", "Start date", d.StartDate.IsZero()},
					field{"duration_months", "Duration (months)", d.DurationMonths < 1},
				)
			}},
			{Name: "rent_by_area", When: func(d *ContractDraft) bool { return d.CalculateByArea },
				Require: func(d *ContractDraft) []ValidationIssue {
					return requireFields(anchorTerms,
						field{"rent_area", "Rent area", notPositive(d.RentArea)},
						field{"price_per_meter", "Price per meter", notPositive(d.PricePerMeter)},
					)
				}},
			{Name: "rent_direct", When: func(d *ContractDraft) bool { return !d.CalculateByArea },
				Require: func(d *ContractDraft) []ValidationIssue {
					return requireFields(anchorTerms, field{"monthly_rent", "Monthly rent", notPositive(d.MonthlyRent)})
				}},
			{Name: "currency", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorTerms, field{"currency", "Currency", !d.Currency.IsValid()})
			}},
			{Name: "vat", When: func(d *ContractDraft) bool { return d.IncludesVAT },
				Require: func(d *ContractDraft) []ValidationIssue {
					return requireFields(anchorTerms, field{"vat_rate", "VAT rate", notPositive(d.VATRate)})
				}},
			{Name: "other_tax", When: func(d *ContractDraft) bool { return d.HasOtherTaxes },
				Require: func(d *ContractDraft) []ValidationIssue {
					return requireFields(anchorTerms,
						field{"other_tax_name", "Other tax name", blank(d.OtherTaxName)},
						field{"other_tax_rate", "Other tax rate", notPositive(d.OtherTaxRate)},
					)
				}},
			{Name: "custom_rents", When: func(d *ContractDraft) bool { return d.UseCustomMonthlyRents },
				Require: func(d *ContractDraft) []ValidationIssue {
					return requireFields(anchorTerms, field{"custom_monthly_rents", "Custom monthly rents",
						len(d.CustomMonthlyRents) != d.DurationMonths})
				}},
		},
		StepPayments: {
			{Name: "rent_method", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorRent, field{"rent_payment_method", "Rent payment method", d.RentPayment == nil})
			}},
			{Name: "rent_cheques", When: rentByCheque, Require: func(d *ContractDraft) []ValidationIssue {
				p := d.RentPayment.(ChequePayment)
				return chequeIssues(prefixRent, anchorRent, p.Lines, p.Bank, p.Payer, true)
			}},
			{Name: "rent_receipt", When: func(d *ContractDraft) bool {
				return d.RentPayment != nil && !rentByCheque(d)
			}, Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorRent, field{"rent_receipt_number", "Rent receipt number", blank(receiptNumber(d.RentPayment))})
			}},
			{Name: "deposit_method", When: depositOwed, Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorDeposit, field{"deposit_payment_method", "Deposit payment method", d.DepositPayment == nil})
			}},
			{Name: "deposit_cash", When: func(d *ContractDraft) bool {
				_, ok := d.DepositPayment.(CashAndChequePayment)
				return ok
			}, Require: func(d *ContractDraft) []ValidationIssue {
				p := d.DepositPayment.(CashAndChequePayment)
				return requireFields(anchorDeposit,
					field{"deposit_cash_amount", "Deposit cash amount", notPositive(p.CashAmount)},
					field{"deposit_cash_receipt_number", "Deposit cash receipt number", blank(p.CashReceiptNumber)},
				)
			}},
			{Name: "deposit_cheques", When: depositByCheque, Require: func(d *ContractDraft) []ValidationIssue {
				switch p := d.DepositPayment.(type) {
				case ChequePayment:
					return chequeIssues(prefixDeposit, anchorDeposit, p.Lines, p.Bank, p.Payer, false)
				case CashAndChequePayment:
					return chequeIssues(prefixDeposit, anchorDeposit, p.Lines, p.Bank, p.Payer, false)
				}
				return nil
			}},
			{Name: "deposit_receipt", When: func(d *ContractDraft) bool {
				return d.DepositPayment != nil && !depositByCheque(d)
			}, Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorDeposit, field{"deposit_receipt_number", "Deposit receipt number", blank(receiptNumber(d.DepositPayment))})
			}},
		},
		StepMunicipal: {
			{Name: "filing", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorFiling,
					field{"municipal_filing_number", "Municipality filing number", blank(d.Municipal.FilingNumber)},
					field{"municipal_filing_attachment", "Municipality filing attachment", blank(d.Municipal.FilingAttachmentRef)},
				)
			}},
			{Name: "meters", Require: func(d *ContractDraft) []ValidationIssue {
				return requireFields(anchorUtility,
					field{"electricity_meter_reading", "Electricity meter reading", blank(d.Utilities.ElectricityMeterReading)},
					field{"water_meter_reading", "Water meter reading", blank(d.Utilities.WaterMeterReading)},
				)
			}},
		},
		StepReview: {},
	}
}
