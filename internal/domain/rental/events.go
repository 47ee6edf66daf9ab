package rental

import (
	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeContractDraftSubmitted   = "ContractDraftSubmitted"
	EventTypeContractConflictDetected = "ContractConflictDetected"
)

// ContractDraftSubmittedEvent is raised when the contract service accepted a draft
type ContractDraftSubmittedEvent struct {
	shared.BaseDomainEvent
	ContractID     uuid.UUID       `json:"contract_id"`
	PropertyID     *uuid.UUID      `json:"property_id,omitempty"`
	UnitID         *uuid.UUID      `json:"unit_id,omitempty"`
	TenantID       *uuid.UUID      `json:"tenant_id,omitempty"`
	DurationMonths int             `json:"duration_months"`
	ActualRent     decimal.Decimal `json:"actual_rent"`
	TenantTotalDue decimal.Decimal `json:"tenant_total_due"`
}

// NewContractDraftSubmittedEvent creates the submission event
func NewContractDraftSubmittedEvent(d *ContractDraft, contractID uuid.UUID, summary FinancialSummary) *ContractDraftSubmittedEvent {
	return &ContractDraftSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractDraftSubmitted, AggregateTypeContractDraft, d.ID, d.OrgID),
		ContractID:      contractID,
		PropertyID:      d.PropertyID,
		UnitID:          d.UnitID,
		TenantID:        d.TenantID,
		DurationMonths:  d.DurationMonths,
		ActualRent:      summary.ActualRent,
		TenantTotalDue:  summary.TenantTotalDue,
	}
}

// ContractConflictDetectedEvent is raised when a selection or submission was
// blocked by an open contract
type ContractConflictDetectedEvent struct {
	shared.BaseDomainEvent
	PropertyID  uuid.UUID       `json:"property_id"`
	UnitID      *uuid.UUID      `json:"unit_id,omitempty"`
	Conflicting ContractSummary `json:"conflicting"`
}

// NewContractConflictDetectedEvent creates the conflict event
func NewContractConflictDetectedEvent(d *ContractDraft, propertyID uuid.UUID, unitID *uuid.UUID, c ContractSummary) *ContractConflictDetectedEvent {
	return &ContractConflictDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractConflictDetected, AggregateTypeContractDraft, d.ID, d.OrgID),
		PropertyID:      propertyID,
		UnitID:          unitID,
		Conflicting:     c,
	}
}
