package rental

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/rentdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AggregateTypeContractDraft is the aggregate type name used in domain events
const AggregateTypeContractDraft = "ContractDraft"

// MaxDurationMonths bounds the contract length a draft accepts
const MaxDurationMonths = 120

// ContractType represents the use the unit is rented for
type ContractType string

const (
	ContractTypeResidential ContractType = "residential"
	ContractTypeCommercial  ContractType = "commercial"
)

// IsValid checks if the contract type is valid
func (t ContractType) IsValid() bool {
	return t == ContractTypeResidential || t == ContractTypeCommercial
}

// DraftStatus is the lifecycle status carried by a draft
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusActive    DraftStatus = "active"
	DraftStatusCompleted DraftStatus = "completed"
	DraftStatusCancelled DraftStatus = "cancelled"
	DraftStatusArchived  DraftStatus = "archived"
)

// IsValid checks if the status is a valid DraftStatus
func (s DraftStatus) IsValid() bool {
	switch s {
	case DraftStatusDraft, DraftStatusActive, DraftStatusCompleted, DraftStatusCancelled, DraftStatusArchived:
		return true
	}
	return false
}

// CanEdit returns true while the wizard may still mutate the draft
func (s DraftStatus) CanEdit() bool {
	return s == DraftStatusDraft
}

// PropertyRef is the display snapshot of the selected property
type PropertyRef struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SingleUnit bool      `json:"single_unit"`
}

// UnitRef is the display snapshot of the selected unit
type UnitRef struct {
	ID     uuid.UUID       `json:"id"`
	Number string          `json:"number"`
	Area   decimal.Decimal `json:"area"`
}

// TenantRef is the display snapshot of the selected tenant
type TenantRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// MunicipalFiling holds the municipality registration references
type MunicipalFiling struct {
	FilingNumber                  string `json:"filing_number"`
	FilingAttachmentRef           string `json:"filing_attachment_ref"`
	ApprovedContractNumber        string `json:"approved_contract_number,omitempty"`
	ApprovedContractAttachmentRef string `json:"approved_contract_attachment_ref,omitempty"`
}

// Utilities holds the meter readings taken at handover and the outstanding bills
type Utilities struct {
	ElectricityMeterReading string          `json:"electricity_meter_reading"`
	WaterMeterReading       string          `json:"water_meter_reading"`
	ElectricityBillAmount   decimal.Decimal `json:"electricity_bill_amount"`
	WaterBillAmount         decimal.Decimal `json:"water_bill_amount"`
	ElectricityBillImageRef string          `json:"electricity_bill_image_ref,omitempty"`
	WaterBillImageRef       string          `json:"water_bill_image_ref,omitempty"`
}

// FeeLine is a named one-off fee charged to the tenant
type FeeLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Fees holds the charges billed alongside rent
type Fees struct {
	InternetIncluded            bool            `json:"internet_included"`
	InternetMonthly             bool            `json:"internet_monthly"`
	InternetFees                decimal.Decimal `json:"internet_fees"`
	MunicipalityRegistrationFee decimal.Decimal `json:"municipality_registration_fee"`
	OtherFees                   []FeeLine       `json:"other_fees,omitempty"`
}

// ContractDraft is the aggregate root edited by the rental contract wizard.
// Derived monetary values are never stored on it; see Derive.
type ContractDraft struct {
	shared.OrgAggregateRoot
	PropertyID       *uuid.UUID           `json:"property_id,omitempty"`
	UnitID           *uuid.UUID           `json:"unit_id,omitempty"`
	TenantID         *uuid.UUID           `json:"tenant_id,omitempty"`
	Property         *PropertyRef         `json:"property,omitempty"`
	Unit             *UnitRef             `json:"unit,omitempty"`
	Tenant           *TenantRef           `json:"tenant,omitempty"`
	ContractType     ContractType         `json:"contract_type"`
	ActualRentalDate *time.Time           `json:"actual_rental_date,omitempty"`
	UnitHandoverDate *time.Time           `json:"unit_handover_date,omitempty"`
	StartDate        time.Time            `json:"start_date"`
	DurationMonths   int                  `json:"duration_months"`
	CalculateByArea  bool                 `json:"calculate_by_area"`
	RentArea         decimal.Decimal      `json:"rent_area"`
	PricePerMeter    decimal.Decimal      `json:"price_per_meter"`
	MonthlyRent      decimal.Decimal      `json:"monthly_rent"`
	Deposit          decimal.Decimal      `json:"deposit"`
	Currency         valueobject.Currency `json:"currency"`
	IncludesVAT      bool                 `json:"includes_vat"`
	VATRate          decimal.Decimal      `json:"vat_rate"`
	HasOtherTaxes    bool                 `json:"has_other_taxes"`
	OtherTaxName     string               `json:"other_tax_name,omitempty"`
	OtherTaxRate     decimal.Decimal      `json:"other_tax_rate"`
	GracePeriodDays  int                  `json:"grace_period_days"`
	// RentDueDay is the day of month rent cheques are dated; 0 means the start day.
	RentDueDay            int               `json:"rent_due_day"`
	UseCustomMonthlyRents bool              `json:"use_custom_monthly_rents"`
	CustomMonthlyRents    []decimal.Decimal `json:"custom_monthly_rents,omitempty"`
	RentPayment           RentPayment       `json:"rent_payment,omitempty"`
	DepositPayment        DepositPayment    `json:"deposit_payment,omitempty"`
	Municipal             MunicipalFiling   `json:"municipal"`
	Utilities             Utilities         `json:"utilities"`
	Fees                  Fees              `json:"fees"`
	Status                DraftStatus       `json:"status"`
	SubmittedContractID   *uuid.UUID        `json:"submitted_contract_id,omitempty"`
}

// NewContractDraft creates an empty draft starting on the given date
func NewContractDraft(orgID uuid.UUID, startDate time.Time) *ContractDraft {
	return &ContractDraft{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		ContractType:     ContractTypeResidential,
		StartDate:        Date(startDate),
		DurationMonths:   12,
		Currency:         valueobject.DefaultCurrency,
		Status:           DraftStatusDraft,
	}
}

// EndDate is derived: StartDate + DurationMonths calendar months - 1 day.
// It is nil until both are set.
func (d *ContractDraft) EndDate() *time.Time {
	if d.StartDate.IsZero() || d.DurationMonths <= 0 {
		return nil
	}
	end := ContractEndDate(d.StartDate, d.DurationMonths)
	return &end
}

// EffectiveMonthlyRent is the monthly rent after applying the by-area basis
func (d *ContractDraft) EffectiveMonthlyRent() decimal.Decimal {
	if d.CalculateByArea {
		return valueobject.Mul3(d.RentArea, d.PricePerMeter)
	}
	return valueobject.Round3(d.MonthlyRent)
}

// RentCheques returns the cheque lines of the rent payment when paid by cheque
func (d *ContractDraft) RentCheques() []ChequeLine {
	return chequeLinesOf(d.RentPayment)
}

// DepositCheques returns the cheque lines of the deposit payment when cheques are involved
func (d *ContractDraft) DepositCheques() []ChequeLine {
	return chequeLinesOf(d.DepositPayment)
}

func (d *ContractDraft) ensureEditable() error {
	if !d.Status.CanEdit() {
		return shared.NewDomainError("INVALID_STATE", "Contract draft is no longer editable")
	}
	return nil
}

func (d *ContractDraft) touch() {
	d.IncrementVersion()
}

func nonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", field+" cannot be negative")
	}
	return nil
}

func validRate(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_RATE", field+" must be between 0 and 1")
	}
	return nil
}

// SelectProperty records the chosen property and clears any unit chosen under another property
func (d *ContractDraft) SelectProperty(ref PropertyRef) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if ref.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_PROPERTY", "Property ID cannot be empty")
	}
	if d.PropertyID == nil || *d.PropertyID != ref.ID {
		d.UnitID = nil
		d.Unit = nil
	}
	id := ref.ID
	d.PropertyID = &id
	d.Property = &ref
	d.touch()
	return nil
}

// SelectUnit records the chosen unit; a property must be selected first
func (d *ContractDraft) SelectUnit(ref UnitRef) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if d.PropertyID == nil {
		return shared.NewDomainError("PROPERTY_REQUIRED", "Select a property before choosing a unit")
	}
	if ref.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_UNIT", "Unit ID cannot be empty")
	}
	id := ref.ID
	d.UnitID = &id
	d.Unit = &ref
	d.touch()
	return nil
}

// SelectTenant records the renting party
func (d *ContractDraft) SelectTenant(ref TenantRef) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if ref.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	id := ref.ID
	d.TenantID = &id
	d.Tenant = &ref
	d.touch()
	return nil
}

// SetContractType sets residential or commercial use
func (d *ContractDraft) SetContractType(t ContractType) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if !t.IsValid() {
		return shared.NewDomainError("INVALID_CONTRACT_TYPE", "Contract type must be residential or commercial")
	}
	d.ContractType = t
	d.touch()
	return nil
}

// SetDates sets the start, actual rental and handover dates. A zero start keeps the current one.
func (d *ContractDraft) SetDates(start time.Time, actualRental, handover *time.Time) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if !start.IsZero() {
		d.StartDate = Date(start)
	}
	d.ActualRentalDate = dateOrNil(actualRental)
	d.UnitHandoverDate = dateOrNil(handover)
	d.touch()
	return nil
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := Date(*t)
	return &v
}

// SetDuration changes the contract length. Custom monthly rents are resized:
// overlapping entries are kept, new slots take the current monthly rent.
func (d *ContractDraft) SetDuration(months int) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if months < 1 || months > MaxDurationMonths {
		return shared.NewDomainError("INVALID_DURATION", "Duration must be between 1 and 120 months")
	}
	d.DurationMonths = months
	if d.UseCustomMonthlyRents {
		d.CustomMonthlyRents = resizeRents(d.CustomMonthlyRents, months, d.EffectiveMonthlyRent())
	}
	d.touch()
	return nil
}

func resizeRents(rents []decimal.Decimal, n int, fill decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	copied := copy(out, rents)
	for i := copied; i < n; i++ {
		out[i] = fill
	}
	return out
}

// SetMonthlyRent sets a directly entered rent. It is rejected while the rent is derived by area.
func (d *ContractDraft) SetMonthlyRent(v decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if d.CalculateByArea {
		return shared.NewDomainError("MONTHLY_RENT_DERIVED", "Monthly rent is calculated from area and price per meter")
	}
	if err := nonNegative("Monthly rent", v); err != nil {
		return err
	}
	d.MonthlyRent = valueobject.Round3(v)
	d.touch()
	return nil
}

// SetRentByArea switches the rent basis to area * price per meter
func (d *ContractDraft) SetRentByArea(area, pricePerMeter decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Rent area", area); err != nil {
		return err
	}
	if err := nonNegative("Price per meter", pricePerMeter); err != nil {
		return err
	}
	d.CalculateByArea = true
	d.RentArea = area
	d.PricePerMeter = pricePerMeter
	d.MonthlyRent = d.EffectiveMonthlyRent()
	d.touch()
	return nil
}

// SetRentDirect switches the rent basis back to direct entry
func (d *ContractDraft) SetRentDirect(monthlyRent decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Monthly rent", monthlyRent); err != nil {
		return err
	}
	d.CalculateByArea = false
	d.RentArea = decimal.Zero
	d.PricePerMeter = decimal.Zero
	d.MonthlyRent = valueobject.Round3(monthlyRent)
	d.touch()
	return nil
}

// SetDeposit sets the security deposit
func (d *ContractDraft) SetDeposit(v decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Deposit", v); err != nil {
		return err
	}
	d.Deposit = valueobject.Round3(v)
	d.touch()
	return nil
}

// SetCurrency sets the ISO 4217 currency; empty resets to the default
func (d *ContractDraft) SetCurrency(code string) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	c, err := valueobject.ParseCurrency(code)
	if err != nil {
		return shared.NewDomainError("INVALID_CURRENCY", err.Error())
	}
	d.Currency = c
	d.touch()
	return nil
}

// SetVAT toggles VAT and its rate
func (d *ContractDraft) SetVAT(included bool, rate decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := validRate("VAT rate", rate); err != nil {
		return err
	}
	d.IncludesVAT = included
	d.VATRate = rate
	d.touch()
	return nil
}

// SetOtherTax toggles the secondary tax, its name and rate
func (d *ContractDraft) SetOtherTax(has bool, name string, rate decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := validRate("Other tax rate", rate); err != nil {
		return err
	}
	d.HasOtherTaxes = has
	d.OtherTaxName = name
	d.OtherTaxRate = rate
	d.touch()
	return nil
}

// SetGracePeriodDays sets the number of rent-free days
func (d *ContractDraft) SetGracePeriodDays(days int) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if days < 0 {
		return shared.NewDomainError("INVALID_GRACE_PERIOD", "Grace period cannot be negative")
	}
	d.GracePeriodDays = days
	d.touch()
	return nil
}

// SetRentDueDay sets the day of month rent falls due (1-31, 0 to follow the start date)
func (d *ContractDraft) SetRentDueDay(day int) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if day < 0 || day > 31 {
		return shared.NewDomainError("INVALID_RENT_DUE_DAY", "Rent due day must be between 1 and 31")
	}
	d.RentDueDay = day
	d.touch()
	return nil
}

// SetUseCustomMonthlyRents toggles the per-month rent schedule. Turning it on
// seeds every month with the current monthly rent; turning it off drops the schedule.
func (d *ContractDraft) SetUseCustomMonthlyRents(on bool) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.UseCustomMonthlyRents = on
	if on {
		d.CustomMonthlyRents = resizeRents(d.CustomMonthlyRents, d.DurationMonths, d.EffectiveMonthlyRent())
	} else {
		d.CustomMonthlyRents = nil
	}
	d.touch()
	return nil
}

// SetCustomMonthlyRent overrides the rent of one month (0-based)
func (d *ContractDraft) SetCustomMonthlyRent(month int, v decimal.Decimal) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if !d.UseCustomMonthlyRents {
		return shared.NewDomainError("CUSTOM_RENTS_DISABLED", "Custom monthly rents are not enabled")
	}
	if month < 0 || month >= len(d.CustomMonthlyRents) {
		return shared.NewDomainError("INVALID_MONTH", "Month index is out of range")
	}
	if err := nonNegative("Monthly rent", v); err != nil {
		return err
	}
	d.CustomMonthlyRents[month] = valueobject.Round3(v)
	d.touch()
	return nil
}

// SetRentPayment replaces the rent payment variant
func (d *ContractDraft) SetRentPayment(p RentPayment) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.RentPayment = derefRent(p)
	d.touch()
	return nil
}

// SetDepositPayment replaces the deposit payment variant
func (d *ContractDraft) SetDepositPayment(p DepositPayment) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.DepositPayment = derefDeposit(p)
	d.touch()
	return nil
}

// SetMunicipal replaces the municipal filing references
func (d *ContractDraft) SetMunicipal(m MunicipalFiling) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.Municipal = m
	d.touch()
	return nil
}

// SetUtilities replaces meter readings and bills
func (d *ContractDraft) SetUtilities(u Utilities) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Electricity bill", u.ElectricityBillAmount); err != nil {
		return err
	}
	if err := nonNegative("Water bill", u.WaterBillAmount); err != nil {
		return err
	}
	d.Utilities = u
	d.touch()
	return nil
}

// SetFees replaces internet, registration and other fees
func (d *ContractDraft) SetFees(f Fees) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Internet fees", f.InternetFees); err != nil {
		return err
	}
	if err := nonNegative("Municipality registration fee", f.MunicipalityRegistrationFee); err != nil {
		return err
	}
	for _, line := range f.OtherFees {
		if err := nonNegative(line.Name, line.Amount); err != nil {
			return err
		}
	}
	d.Fees = f
	d.touch()
	return nil
}

// MarkSubmitted records the id assigned by the contract service and activates the draft
func (d *ContractDraft) MarkSubmitted(contractID uuid.UUID, summary FinancialSummary) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.SubmittedContractID = &contractID
	d.Status = DraftStatusActive
	d.touch()
	d.AddDomainEvent(NewContractDraftSubmittedEvent(d, contractID, summary))
	return nil
}

func derefRent(p RentPayment) RentPayment {
	switch v := p.(type) {
	case *CashPayment:
		return *v
	case *BankTransferPayment:
		return *v
	case *ElectronicPayment:
		return *v
	case *ChequePayment:
		return *v
	}
	return p
}

func derefDeposit(p DepositPayment) DepositPayment {
	if v, ok := p.(*CashAndChequePayment); ok {
		return *v
	}
	if r, ok := p.(RentPayment); ok {
		return derefRent(r).(DepositPayment)
	}
	return p
}

type draftAlias ContractDraft

// MarshalJSON encodes the draft with tagged payment variants
func (d ContractDraft) MarshalJSON() ([]byte, error) {
	rent, err := MarshalRentPayment(d.RentPayment)
	if err != nil {
		return nil, err
	}
	deposit, err := MarshalDepositPayment(d.DepositPayment)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		draftAlias
		EndDate        *time.Time      `json:"end_date,omitempty"`
		RentPayment    json.RawMessage `json:"rent_payment,omitempty"`
		DepositPayment json.RawMessage `json:"deposit_payment,omitempty"`
	}{draftAlias(d), d.EndDate(), rent, deposit})
}

// UnmarshalJSON decodes a draft. The derived end date is ignored.
func (d *ContractDraft) UnmarshalJSON(data []byte) error {
	aux := struct {
		*draftAlias
		EndDate        json.RawMessage `json:"end_date"`
		RentPayment    json.RawMessage `json:"rent_payment"`
		DepositPayment json.RawMessage `json:"deposit_payment"`
	}{draftAlias: (*draftAlias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	rent, err := UnmarshalRentPayment(aux.RentPayment)
	if err != nil {
		return err
	}
	deposit, err := UnmarshalDepositPayment(aux.DepositPayment)
	if err != nil {
		return err
	}
	d.RentPayment = rent
	d.DepositPayment = deposit
	return nil
}
