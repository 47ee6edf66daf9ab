package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/rentdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cheque list names stored on rental_contract_cheques
const (
	ChequeListRent    = "rent"
	ChequeListDeposit = "deposit"
)

// GormContractRepository implements rental.ContractQuery and rental.ContractSubmitter using GORM
type GormContractRepository struct {
	db           *gorm.DB
	initialState rental.ContractState
}

// NewGormContractRepository creates a new GormContractRepository.
// Submitted contracts start out reserved.
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db, initialState: rental.ContractStateReserved}
}

// FindContracts lists contracts matching the filter, newest start date first
func (r *GormContractRepository) FindContracts(ctx context.Context, filter rental.ContractFilter) ([]rental.ContractSummary, error) {
	return findContracts(r.db.WithContext(ctx), filter)
}

func findContracts(db *gorm.DB, filter rental.ContractFilter) ([]rental.ContractSummary, error) {
	// applied directly so the org condition leads the WHERE clause
	query := OrgScope(filter.OrgID)(db.Model(&models.RentalContractModel{}))
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}
	switch {
	case filter.UnitlessOnly:
		query = query.Where("unit_id IS NULL")
	case filter.UnitID != nil:
		query = query.Where("unit_id = ?", *filter.UnitID)
	}
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.RentalContractModel
	if err := query.Order("start_date DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rental.ContractSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToSummary())
	}
	return out, nil
}

// Submit stores the draft as a new contract with its cheque lines.
// The conflict check is repeated inside the transaction while the property
// row is locked; a hit returns *rental.ContractConflictError and nothing is
// written. A concurrent submission that slips past the check is rejected by
// the open contract unique indexes and reported the same way.
func (r *GormContractRepository) Submit(ctx context.Context, draft *rental.ContractDraft, summary rental.FinancialSummary) (uuid.UUID, error) {
	if draft.PropertyID == nil {
		return uuid.Nil, shared.NewDomainError("PROPERTY_REQUIRED", "A contract needs a property")
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode contract draft: %w", err)
	}

	id := uuid.New()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProperty(tx, draft); err != nil {
			return err
		}
		held, err := openContractOn(tx, draft)
		if err != nil {
			return fmt.Errorf("failed to check open contracts: %w", err)
		}
		if held != nil {
			return rental.NewContractConflictError(*held)
		}

		contract := models.NewRentalContractModel(id, draft, summary, r.initialState, string(payload))
		if err := tx.Create(contract).Error; err != nil {
			return fmt.Errorf("failed to create rental contract: %w", err)
		}

		cheques := append(
			models.NewContractChequeModels(id, ChequeListRent, draft.RentCheques()),
			models.NewContractChequeModels(id, ChequeListDeposit, draft.DepositCheques())...,
		)
		if len(cheques) == 0 {
			return nil
		}
		if err := tx.Create(&cheques).Error; err != nil {
			return fmt.Errorf("failed to create contract cheques: %w", err)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return uuid.Nil, r.lostRace(ctx, draft)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// lostRace reports the contract that won a concurrent submission
func (r *GormContractRepository) lostRace(ctx context.Context, draft *rental.ContractDraft) error {
	held, err := openContractOn(r.db.WithContext(ctx), draft)
	if err != nil {
		return fmt.Errorf("failed to load conflicting contract: %w", err)
	}
	if held == nil {
		held = &rental.ContractSummary{PropertyID: *draft.PropertyID, UnitID: draft.UnitID}
	}
	return rental.NewContractConflictError(*held)
}

// lockProperty serializes submissions on one property. SQLite already
// serializes writers and has no row locks.
func lockProperty(tx *gorm.DB, d *rental.ContractDraft) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	var locked models.PropertyModel
	err := OrgScope(d.OrgID)(tx.Model(&models.PropertyModel{})).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", *d.PropertyID).
		Take(&locked).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewDomainError("NOT_FOUND", "Property not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock property: %w", err)
	}
	return nil
}

// openContractOn returns an open contract holding the draft's unit, or a
// unit-less open contract on its property. The queries run one after the
// other since they share the transaction's connection.
func openContractOn(tx *gorm.DB, d *rental.ContractDraft) (*rental.ContractSummary, error) {
	filters := make([]rental.ContractFilter, 0, 2)
	if d.UnitID != nil {
		filters = append(filters, rental.ContractFilter{OrgID: d.OrgID, UnitID: d.UnitID})
	}
	filters = append(filters, rental.ContractFilter{OrgID: d.OrgID, PropertyID: d.PropertyID, UnitlessOnly: true})

	for _, f := range filters {
		f.States = rental.OpenContractStates
		f.Limit = 1
		found, err := findContracts(tx, f)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}
