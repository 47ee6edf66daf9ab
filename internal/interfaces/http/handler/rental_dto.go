package handler

import (
	"time"

	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
)

// SelectRecordRequest selects a property, unit or tenant by id
type SelectRecordRequest struct {
	ID string `json:"id" binding:"required,uuid" example:"5f0c7d1e-8b0a-4d35-9b55-2f4a3f1c9e10"`
}

// ChequeNumberRequest sets the number printed on one cheque
type ChequeNumberRequest struct {
	CheckNumber string `json:"check_number" binding:"max=50" example:"100231"`
}

// AddDepositChequeRequest appends a cheque to the deposit list
type AddDepositChequeRequest struct {
	CheckNumber string           `json:"check_number" binding:"max=50" example:"100240"`
	Amount      *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"500.000"`
	Date        *time.Time       `json:"date,omitempty"`
}

// DepositChequeDateRequest dates a deposit cheque, or undates it when date is null
type DepositChequeDateRequest struct {
	Date *time.Time `json:"date"`
}

// AdvanceRequest moves the wizard to another step
type AdvanceRequest struct {
	Step string `json:"step" binding:"required,wizard_step" example:"payments"`
}

// PropertySearchQuery filters the property picker
type PropertySearchQuery struct {
	Query string `form:"q" binding:"max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// IssuesQuery restricts the issue list to one step
type IssuesQuery struct {
	Step string `form:"step" binding:"omitempty,wizard_step"`
}

// IssuesResponse lists the missing or invalid fields
type IssuesResponse struct {
	Step   string                   `json:"step,omitempty"`
	Valid  bool                     `json:"valid"`
	Issues []rental.ValidationIssue `json:"issues"`
}

// PropertyResponse is one entry of the property picker
type PropertyResponse struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	UnitCount  int    `json:"unit_count"`
	SingleUnit bool   `json:"single_unit"`
}

func toPropertyResponses(properties []rental.Property) []PropertyResponse {
	out := make([]PropertyResponse, 0, len(properties))
	for _, p := range properties {
		out = append(out, PropertyResponse{
			ID:         p.ID.String(),
			Code:       p.Code,
			Name:       p.Name,
			Address:    p.Address,
			UnitCount:  p.UnitCount,
			SingleUnit: p.SingleUnit(),
		})
	}
	return out
}

func newIssuesResponse(step string, issues []rental.ValidationIssue) IssuesResponse {
	if issues == nil {
		issues = []rental.ValidationIssue{}
	}
	return IssuesResponse{Step: step, Valid: len(issues) == 0, Issues: issues}
}
