package dto

import "github.com/rentdesk/backend/internal/domain/rental"

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details. Step and Issues accompany step
// validation failures, Contract accompanies contract conflicts.
type ErrorInfo struct {
	Code      string                   `json:"code"`
	Message   string                   `json:"message"`
	RequestID string                   `json:"request_id,omitempty"`
	Details   []ValidationDetail       `json:"details,omitempty"`
	Step      string                   `json:"step,omitempty"`
	Issues    []rental.ValidationIssue `json:"issues,omitempty"`
	Contract  *rental.ContractSummary  `json:"contract,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response carrying the request id
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a binding validation error response
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// NewStepIncompleteResponse creates the response for a blocked wizard step
func NewStepIncompleteResponse(err *rental.ValidationFailedError, requestID string) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeStepIncomplete, err.Message, requestID)
	resp.Error.Step = err.Step.String()
	resp.Error.Issues = err.Issues
	return resp
}

// NewContractConflictResponse creates the response for an open contract holding the selection
func NewContractConflictResponse(err *rental.ContractConflictError, requestID string) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeContractConflict, err.Message, requestID)
	contract := err.Contract
	resp.Error.Contract = &contract
	return resp
}
