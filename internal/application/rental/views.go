package rental

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
)

// DraftView is what the wizard renders: the draft, its live financials and
// the issues of the current step
type DraftView struct {
	Key      string                   `json:"key"`
	Step     string                   `json:"step"`
	Restored bool                     `json:"restored"`
	Draft    *rental.ContractDraft    `json:"draft"`
	EndDate  *time.Time               `json:"end_date,omitempty"`
	Summary  rental.FinancialSummary  `json:"summary"`
	Issues   []rental.ValidationIssue `json:"issues"`
}

// PreviewView is the stateless derivation of a set of inputs
type PreviewView struct {
	Draft   *rental.ContractDraft    `json:"draft"`
	EndDate *time.Time               `json:"end_date,omitempty"`
	Summary rental.FinancialSummary  `json:"summary"`
	Cheques []rental.ChequeLine      `json:"rent_cheques"`
	Issues  []rental.ValidationIssue `json:"issues"`
}

// SubmitResult is returned once the contract service accepted the draft
type SubmitResult struct {
	ContractID uuid.UUID               `json:"contract_id"`
	Summary    rental.FinancialSummary `json:"summary"`
}
