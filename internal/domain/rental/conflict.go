package rental

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ContractState is the lifecycle state of an existing contract
type ContractState string

const (
	ContractStateActive            ContractState = "active"
	ContractStateReserved          ContractState = "reserved"
	ContractStatePaid              ContractState = "paid"
	ContractStateDocsSubmitted     ContractState = "docs_submitted"
	ContractStateDocsVerified      ContractState = "docs_verified"
	ContractStateHandoverCompleted ContractState = "handover_completed"
	ContractStateCancelled         ContractState = "cancelled"
	ContractStateExpired           ContractState = "expired"
	ContractStateCompleted         ContractState = "completed"
	ContractStateArchived          ContractState = "archived"
)

// OpenContractStates are the states in which a contract still holds its unit
var OpenContractStates = []ContractState{
	ContractStateActive,
	ContractStateReserved,
	ContractStatePaid,
	ContractStateDocsSubmitted,
	ContractStateDocsVerified,
	ContractStateHandoverCompleted,
}

// IsOpen reports whether the contract still reserves its unit
func (s ContractState) IsOpen() bool {
	for _, open := range OpenContractStates {
		if s == open {
			return true
		}
	}
	return false
}

// ConflictResult tells whether an open contract already holds the selection
type ConflictResult struct {
	Exists   bool             `json:"exists"`
	Contract *ContractSummary `json:"contract,omitempty"`
}

// ConflictGuard enforces one open contract per unit
type ConflictGuard struct {
	contracts ContractQuery
}

// NewConflictGuard creates a guard over the contract listing
func NewConflictGuard(contracts ContractQuery) *ConflictGuard {
	return &ConflictGuard{contracts: contracts}
}

// Check looks for an open contract on the selection. With no unit it looks
// for unit-less contracts on the property (single-unit properties). With a
// unit it looks for contracts on that unit and for unit-less contracts on the
// same property; both queries run concurrently and a unit match wins.
// Query failures are returned as TransientIOError.
func (g *ConflictGuard) Check(ctx context.Context, orgID, propertyID uuid.UUID, unitID *uuid.UUID) (ConflictResult, error) {
	propertyWide := ContractFilter{
		OrgID:        orgID,
		PropertyID:   &propertyID,
		UnitlessOnly: true,
		States:       OpenContractStates,
		Limit:        1,
	}
	if unitID == nil {
		found, err := g.firstOpen(ctx, propertyWide)
		if err != nil {
			return ConflictResult{}, err
		}
		return resultOf(found), nil
	}

	var onUnit, onProperty *ContractSummary
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		onUnit, err = g.firstOpen(egCtx, ContractFilter{
			OrgID:  orgID,
			UnitID: unitID,
			States: OpenContractStates,
			Limit:  1,
		})
		return err
	})
	eg.Go(func() error {
		var err error
		onProperty, err = g.firstOpen(egCtx, propertyWide)
		return err
	})
	if err := eg.Wait(); err != nil {
		return ConflictResult{}, err
	}
	if onUnit != nil {
		return resultOf(onUnit), nil
	}
	return resultOf(onProperty), nil
}

// CheckDraft runs Check against the draft's current selection
func (g *ConflictGuard) CheckDraft(ctx context.Context, d *ContractDraft) (ConflictResult, error) {
	if d.PropertyID == nil {
		return ConflictResult{}, nil
	}
	return g.Check(ctx, d.OrgID, *d.PropertyID, d.UnitID)
}

func (g *ConflictGuard) firstOpen(ctx context.Context, filter ContractFilter) (*ContractSummary, error) {
	contracts, err := g.contracts.FindContracts(ctx, filter)
	if err != nil {
		return nil, NewTransientIOError("list contracts", err)
	}
	for i := range contracts {
		if contracts[i].State.IsOpen() {
			return &contracts[i], nil
		}
	}
	return nil, nil
}

func resultOf(c *ContractSummary) ConflictResult {
	if c == nil {
		return ConflictResult{}
	}
	return ConflictResult{Exists: true, Contract: c}
}
