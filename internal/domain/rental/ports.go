package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Property is a building offered for rent. A property without units is
// rented as a whole (single-unit).
type Property struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	UnitCount int       `json:"unit_count"`
}

// SingleUnit reports whether the property is rented as one unit
func (p *Property) SingleUnit() bool {
	return p.UnitCount == 0
}

// Ref returns the display snapshot stored on a draft
func (p *Property) Ref() PropertyRef {
	return PropertyRef{ID: p.ID, Name: p.Name, SingleUnit: p.SingleUnit()}
}

// Unit is a rentable unit of a property
type Unit struct {
	ID         uuid.UUID       `json:"id"`
	PropertyID uuid.UUID       `json:"property_id"`
	Number     string          `json:"number"`
	Floor      string          `json:"floor,omitempty"`
	Area       decimal.Decimal `json:"area"`
}

// Ref returns the display snapshot stored on a draft
func (u *Unit) Ref() UnitRef {
	return UnitRef{ID: u.ID, Number: u.Number, Area: u.Area}
}

// Tenant is the renting party
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id,omitempty"`
	Phone      string    `json:"phone,omitempty"`
}

// Ref returns the display snapshot stored on a draft
func (t *Tenant) Ref() TenantRef {
	return TenantRef{ID: t.ID, Name: t.Name}
}

// PropertySearch filters property lookups
type PropertySearch struct {
	Query string
	Limit int
}

// PropertyDirectory looks up properties, units and tenants.
// Lookups return nil, nil when the record does not exist.
type PropertyDirectory interface {
	GetProperty(ctx context.Context, orgID, id uuid.UUID) (*Property, error)
	GetUnit(ctx context.Context, orgID, id uuid.UUID) (*Unit, error)
	GetTenant(ctx context.Context, orgID, id uuid.UUID) (*Tenant, error)
	SearchProperties(ctx context.Context, orgID uuid.UUID, search PropertySearch) ([]Property, error)
}

// CompletenessReport tells whether the additional data of a property is filled in
type CompletenessReport struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
}

// CompletenessChecker checks the additional property data required before payments
type CompletenessChecker interface {
	CheckAdditionalData(ctx context.Context, orgID, propertyID uuid.UUID) (CompletenessReport, error)
}

// ContractSummary is the listing view of an existing contract
type ContractSummary struct {
	ID         uuid.UUID     `json:"id"`
	PropertyID uuid.UUID     `json:"property_id"`
	UnitID     *uuid.UUID    `json:"unit_id,omitempty"`
	State      ContractState `json:"state"`
	TenantName string        `json:"tenant_name"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
}

// ContractFilter selects contracts for the conflict guard.
// UnitlessOnly restricts to contracts without a unit; otherwise a non-nil
// UnitID restricts to that unit.
type ContractFilter struct {
	OrgID        uuid.UUID
	PropertyID   *uuid.UUID
	UnitID       *uuid.UUID
	UnitlessOnly bool
	States       []ContractState
	Limit        int
}

// ContractQuery lists existing contracts
type ContractQuery interface {
	FindContracts(ctx context.Context, filter ContractFilter) ([]ContractSummary, error)
}

// ContractSubmitter persists a finished draft as a contract and returns its id
type ContractSubmitter interface {
	Submit(ctx context.Context, draft *ContractDraft, summary FinancialSummary) (uuid.UUID, error)
}

// DraftStore keeps raw draft snapshots by key. Put replaces the whole value.
// Get returns nil, nil when nothing is stored.
type DraftStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, snapshot []byte) error
	Delete(ctx context.Context, key string) error
}
