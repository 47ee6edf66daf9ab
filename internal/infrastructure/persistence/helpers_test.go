package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRentalTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

type seed struct {
	db    *gorm.DB
	t     *testing.T
	orgID uuid.UUID
}

func newSeed(t *testing.T, db *gorm.DB, orgID uuid.UUID) *seed {
	return &seed{db: db, t: t, orgID: orgID}
}

func (s *seed) property(code, name string, complete bool) *models.PropertyModel {
	s.t.Helper()
	m := &models.PropertyModel{Code: code, Name: name, Address: "Way 3021, Muscat"}
	m.ID = uuid.New()
	m.OrgID = s.orgID
	if complete {
		m.LandNumber = "L-19"
		m.PlotNumber = "P-204"
		m.TitleDeedRef = "deeds/19.pdf"
		m.ElectricityAccount = "E-55120"
		m.WaterAccount = "W-88007"
	}
	require.NoError(s.t, s.db.Create(m).Error)
	return m
}

func (s *seed) unit(propertyID uuid.UUID, number string) *models.UnitModel {
	s.t.Helper()
	m := &models.UnitModel{PropertyID: propertyID, Number: number, Floor: "2", Area: decimal.RequireFromString("85.5")}
	m.ID = uuid.New()
	m.OrgID = s.orgID
	require.NoError(s.t, s.db.Create(m).Error)
	return m
}

func (s *seed) tenant(name string) *models.TenantModel {
	s.t.Helper()
	m := &models.TenantModel{Name: name, NationalID: "9876543", Phone: "+968 9123 4567"}
	m.ID = uuid.New()
	m.OrgID = s.orgID
	require.NoError(s.t, s.db.Create(m).Error)
	return m
}

func (s *seed) contract(propertyID uuid.UUID, unitID *uuid.UUID, state rental.ContractState, start time.Time) *models.RentalContractModel {
	s.t.Helper()
	m := &models.RentalContractModel{
		DraftID:      uuid.New(),
		PropertyID:   propertyID,
		UnitID:       unitID,
		TenantName:   "Previous Tenant",
		State:        state,
		ContractType: rental.ContractTypeResidential,
		StartDate:    start,
		EndDate:      start.AddDate(1, 0, -1),
		Currency:     "OMR",
		Draft:        "{}",
	}
	m.ID = uuid.New()
	m.OrgID = s.orgID
	m.Version = 1
	require.NoError(s.t, s.db.Create(m).Error)
	return m
}

// finishedDraft returns a draft for the given selection that passes every step gate
func finishedDraft(t *testing.T, orgID uuid.UUID, propertyID uuid.UUID, unitID *uuid.UUID) *rental.ContractDraft {
	t.Helper()
	d := rental.NewContractDraft(orgID, rental.NewDate(2025, time.January, 1))
	require.NoError(t, d.SetDuration(3))
	require.NoError(t, d.SetMonthlyRent(decimal.RequireFromString("500")))
	require.NoError(t, d.SelectProperty(rental.PropertyRef{ID: propertyID, Name: "Al Khuwair Tower", SingleUnit: unitID == nil}))
	if unitID != nil {
		require.NoError(t, d.SelectUnit(rental.UnitRef{ID: *unitID, Number: "A-12"}))
	}
	require.NoError(t, d.SelectTenant(rental.TenantRef{ID: uuid.New(), Name: "Salim Al Harthy"}))
	require.NoError(t, d.SetRentDueDay(5))
	require.NoError(t, d.SetRentPayment(rental.ChequePayment{
		Bank:  rental.BankAccount{BankName: "Bank Muscat", AccountNumber: "0301-123456"},
		Payer: rental.TenantPayer{},
	}))
	require.NoError(t, d.RegenerateRentCheques())
	require.NoError(t, d.EditRentChequeNumber(0, "1001"))
	require.NoError(t, d.SetDeposit(decimal.RequireFromString("500")))
	require.NoError(t, d.SetDepositPayment(rental.CashPayment{ReceiptNumber: "R-77"}))
	return d
}
