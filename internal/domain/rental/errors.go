package rental

import (
	"errors"
	"fmt"

	"github.com/rentdesk/backend/internal/domain/shared"
)

// Error codes raised by the rental wizard
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeContractConflict = "CONTRACT_CONFLICT"
	CodeDraftIntegrity   = "DRAFT_INTEGRITY"
	CodeTransientIO      = "TRANSIENT_IO"
	CodeSuperseded       = "SUPERSEDED"
)

// ErrDraftIntegrity marks a stored snapshot that cannot be restored
var ErrDraftIntegrity = shared.NewDomainError(CodeDraftIntegrity, "Stored contract draft is corrupted or incompatible")

// ErrSuperseded is returned when a newer action replaced the one whose result arrived
var ErrSuperseded = shared.NewDomainError(CodeSuperseded, "A newer change superseded this request")

// ValidationFailedError lists the issues that block a step
type ValidationFailedError struct {
	*shared.DomainError
	Step   Step              `json:"step"`
	Issues []ValidationIssue `json:"issues"`
}

// NewValidationFailedError creates a validation error for step
func NewValidationFailedError(step Step, issues []ValidationIssue) *ValidationFailedError {
	msg := fmt.Sprintf("Step %s has %d missing or invalid fields", step, len(issues))
	if len(issues) > 0 {
		msg = fmt.Sprintf("%s: %s is required", msg, issues[0].Label)
	}
	return &ValidationFailedError{
		DomainError: shared.NewDomainError(CodeValidationFailed, msg),
		Step:        step,
		Issues:      issues,
	}
}

// Unwrap exposes the embedded domain error
func (e *ValidationFailedError) Unwrap() error {
	return e.DomainError
}

// ContractConflictError reports an open contract holding the selection
type ContractConflictError struct {
	*shared.DomainError
	Contract ContractSummary `json:"contract"`
}

// NewContractConflictError creates a conflict error for the blocking contract
func NewContractConflictError(c ContractSummary) *ContractConflictError {
	return &ContractConflictError{
		DomainError: shared.NewDomainError(CodeContractConflict,
			fmt.Sprintf("Contract %s (%s) for %s already holds this unit", c.ID, c.State, c.TenantName)),
		Contract: c,
	}
}

// Unwrap exposes the embedded domain error
func (e *ContractConflictError) Unwrap() error {
	return e.DomainError
}

// TransientIOError wraps a failed call to a collaborator. The in-memory draft is left untouched.
type TransientIOError struct {
	*shared.DomainError
	Op  string
	Err error
}

// NewTransientIOError wraps err raised while performing op
func NewTransientIOError(op string, err error) *TransientIOError {
	return &TransientIOError{
		DomainError: shared.NewDomainError(CodeTransientIO, fmt.Sprintf("%s failed, please retry", op)),
		Op:          op,
		Err:         err,
	}
}

// Error includes the cause
func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes both the domain error and the cause
func (e *TransientIOError) Unwrap() []error {
	return []error{e.DomainError, e.Err}
}

// IsTransient reports whether err is a TransientIOError
func IsTransient(err error) bool {
	var t *TransientIOError
	return errors.As(err, &t)
}
