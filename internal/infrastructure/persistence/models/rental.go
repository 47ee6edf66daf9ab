package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PropertyModel is the persistence model for a rentable building.
// The additional data columns are required before payments can be entered.
type PropertyModel struct {
	OrgModel
	Code               string `gorm:"type:varchar(50);not null;index"`
	Name               string `gorm:"type:varchar(200);not null"`
	Address            string `gorm:"type:text"`
	LandNumber         string `gorm:"type:varchar(50)"`
	PlotNumber         string `gorm:"type:varchar(50)"`
	TitleDeedRef       string `gorm:"type:varchar(100)"`
	ElectricityAccount string `gorm:"type:varchar(50)"`
	WaterAccount       string `gorm:"type:varchar(50)"`
	// UnitCount is computed by the directory query
	UnitCount int `gorm:"->;-:migration"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property
func (m *PropertyModel) ToDomain() *rental.Property {
	return &rental.Property{
		ID:        m.ID,
		OrgID:     m.OrgID,
		Code:      m.Code,
		Name:      m.Name,
		Address:   m.Address,
		UnitCount: m.UnitCount,
	}
}

// UnitModel is the persistence model for a unit of a property
type UnitModel struct {
	OrgModel
	PropertyID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number     string          `gorm:"type:varchar(50);not null"`
	Floor      string          `gorm:"type:varchar(20)"`
	Area       decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
}

// TableName returns the table name for GORM
func (UnitModel) TableName() string {
	return "units"
}

// ToDomain converts the persistence model to a domain Unit
func (m *UnitModel) ToDomain() *rental.Unit {
	return &rental.Unit{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		Number:     m.Number,
		Floor:      m.Floor,
		Area:       m.Area,
	}
}

// TenantModel is the persistence model for the renting party.
// It is unrelated to the organization that owns the data.
type TenantModel struct {
	OrgModel
	Name       string `gorm:"type:varchar(200);not null"`
	NationalID string `gorm:"type:varchar(50);index"`
	Phone      string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant
func (m *TenantModel) ToDomain() *rental.Tenant {
	return &rental.Tenant{
		ID:         m.ID,
		Name:       m.Name,
		NationalID: m.NationalID,
		Phone:      m.Phone,
	}
}

// RentalContractModel is the persistence model for a submitted contract
type RentalContractModel struct {
	OrgAggregateModel
	DraftID              uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	PropertyID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	UnitID               *uuid.UUID           `gorm:"type:uuid;index"`
	TenantID             *uuid.UUID           `gorm:"type:uuid;index"`
	TenantName           string               `gorm:"type:varchar(200)"`
	State                rental.ContractState `gorm:"type:varchar(30);not null;index"`
	ContractType         rental.ContractType  `gorm:"type:varchar(20);not null"`
	StartDate            time.Time            `gorm:"type:date;not null"`
	EndDate              time.Time            `gorm:"type:date;not null"`
	DurationMonths       int                  `gorm:"not null"`
	Currency             valueobject.Currency `gorm:"type:varchar(3);not null"`
	MonthlyRent          decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	FullRent             decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	ActualRent           decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	MunicipalityFees     decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	TotalVAT             decimal.Decimal      `gorm:"column:total_vat;type:decimal(18,3);not null;default:0"`
	TotalOtherTax        decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	Deposit              decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	TenantTotalDue       decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	OwnerTotalDue        decimal.Decimal      `gorm:"type:decimal(18,3);not null;default:0"`
	RentPaymentMethod    string               `gorm:"type:varchar(30)"`
	DepositPaymentMethod string               `gorm:"type:varchar(30)"`
	// Draft holds the submitted draft as JSON
	Draft string `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM
func (RentalContractModel) TableName() string {
	return "rental_contracts"
}

// NewRentalContractModel builds the contract row for a finished draft
func NewRentalContractModel(id uuid.UUID, d *rental.ContractDraft, s rental.FinancialSummary, state rental.ContractState, payload string) *RentalContractModel {
	m := &RentalContractModel{
		DraftID:              d.ID,
		State:                state,
		ContractType:         d.ContractType,
		StartDate:            d.StartDate,
		DurationMonths:       d.DurationMonths,
		Currency:             s.Currency,
		MonthlyRent:          s.MonthlyRent,
		FullRent:             s.FullRent,
		ActualRent:           s.ActualRent,
		MunicipalityFees:     s.MunicipalityFees,
		TotalVAT:             s.TotalVAT,
		TotalOtherTax:        s.TotalOtherTax,
		Deposit:              s.Deposit,
		TenantTotalDue:       s.TenantTotalDue,
		OwnerTotalDue:        s.OwnerTotalDue,
		RentPaymentMethod:    methodOf(d.RentPayment),
		DepositPaymentMethod: methodOf(d.DepositPayment),
		Draft:                payload,
	}
	m.ID = id
	m.OrgID = d.OrgID
	m.Version = 1
	m.CreatedBy = d.CreatedBy
	if d.PropertyID != nil {
		m.PropertyID = *d.PropertyID
	}
	m.UnitID = d.UnitID
	m.TenantID = d.TenantID
	if d.Tenant != nil {
		m.TenantName = d.Tenant.Name
	}
	if end := d.EndDate(); end != nil {
		m.EndDate = *end
	}
	return m
}

func methodOf(p interface{ Method() rental.PaymentMethod }) string {
	if p == nil {
		return ""
	}
	return p.Method().String()
}

// ToSummary converts the row to the listing view used by the conflict guard
func (m *RentalContractModel) ToSummary() rental.ContractSummary {
	return rental.ContractSummary{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		UnitID:     m.UnitID,
		State:      m.State,
		TenantName: m.TenantName,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
	}
}

// ContractChequeModel is one cheque line of a submitted contract
type ContractChequeModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	ContractID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	List        string          `gorm:"type:varchar(10);not null"`
	Seq         int             `gorm:"not null"`
	CheckNumber string          `gorm:"type:varchar(50)"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,3);not null"`
	DueDate     *time.Time      `gorm:"type:date"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ContractChequeModel) TableName() string {
	return "rental_contract_cheques"
}

// NewContractChequeModels numbers the lines of one cheque list from 1
func NewContractChequeModels(contractID uuid.UUID, list string, lines []rental.ChequeLine) []ContractChequeModel {
	out := make([]ContractChequeModel, 0, len(lines))
	for i, l := range lines {
		c := ContractChequeModel{
			ID:          uuid.New(),
			ContractID:  contractID,
			List:        list,
			Seq:         i + 1,
			CheckNumber: l.CheckNumber,
			Amount:      l.Amount,
		}
		if l.Dated() {
			due := *l.Date
			c.DueDate = &due
		}
		out = append(out, c)
	}
	return out
}
