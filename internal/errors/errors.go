package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput        ErrorCode = "invalid_input"
	InvalidAmount       ErrorCode = "invalid_amount"
	InvalidType         ErrorCode = "invalid_type"
	InvalidProjection   ErrorCode = "invalid_projection"
	InvalidSort         ErrorCode = "invalid_sort"
	InvalidPage         ErrorCode = "invalid_page"
	AccountNotFound     ErrorCode = "account_not_found"
	TransactionNotFound ErrorCode = "transaction_not_found"
	AccountInUse        ErrorCode = "account_in_use"
	DuplicateAccount    ErrorCode = "duplicate_account"
	IntegrityViolation  ErrorCode = "integrity_violation"
	RouteNotFound       ErrorCode = "route_not_found"
	MethodNotAllowed    ErrorCode = "method_not_allowed"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so predefined errors are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is matches on code, so wrapped copies created by WithDetails still match
// the predefined values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus maps the error code to the status written by the handlers.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidAmount, InvalidType, InvalidProjection, InvalidSort, InvalidPage:
		return http.StatusBadRequest
	case AccountNotFound, TransactionNotFound, RouteNotFound:
		return http.StatusNotFound
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case AccountInUse, DuplicateAccount:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the caller can fix the request.
func (e *AppError) IsClientError() bool {
	return e.HTTPStatus() < http.StatusInternalServerError
}

// AsAppError extracts an AppError from err, falling back to a generic
// internal error that carries the original message as details.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred").WithDetails(err.Error())
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrTransactionNotFound    = NewAppError(TransactionNotFound, "transaction not found")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be greater than 0")
	ErrInvalidAmountFilter    = NewAppError(InvalidAmount, "amount must be zero or greater")
	ErrTypeRequired           = NewAppError(InvalidType, "transaction type is required")
	ErrInvalidType            = NewAppError(InvalidType, "type must be DEPOSIT or WITHDRAWAL")
	ErrInvalidProjection      = NewAppError(InvalidProjection, "projection type must be summary or with_account")
	ErrInvalidSortField       = NewAppError(InvalidSort, "sortBy must be one of amount, type, timestamp")
	ErrInvalidDirection       = NewAppError(InvalidSort, "direction must be ASC or DESC")
	ErrInvalidID              = NewAppError(InvalidInput, "id must be a positive integer")
	ErrHolderNameRequired     = NewAppError(InvalidInput, "holder name cannot be blank")
	ErrHolderNameTooLong      = NewAppError(InvalidInput, "holder name cannot exceed 100 characters")
	ErrAccountIDRequired      = NewAppError(InvalidInput, "account ID cannot be null")
	ErrAccountInUse           = NewAppError(AccountInUse, "account still owns transactions")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account number already exists")
	ErrIntegrityViolation     = NewAppError(IntegrityViolation, "transaction references a missing account")
	ErrCannotBeginTransaction = NewAppError(InternalError, "store cannot begin a transaction")
)
