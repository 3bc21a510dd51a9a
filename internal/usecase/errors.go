package usecase

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeLeadNotFound    = "LEAD_NOT_FOUND"
	CodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	CodeConflict        = "CONVERSION_CONFLICT"
	CodeTransaction     = "TRANSACTION_ERROR"
	CodeTimeout         = "CONVERSION_TIMEOUT"
)

// DomainError is a rejection the caller can act on. It never leaves partial
// state behind.
type DomainError struct {
	Code    string
	Message string
	Fields  []ValidationError
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError reports a persistence failure or timeout. Everything written
// by the failed attempt has been rolled back, so retrying is safe.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// ErrorCode returns the Code of a DomainError or TechnicalError in err's
// chain, or "" when there is none.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var te *TechnicalError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsNotFound covers both the missing lead and the missing linked account.
func IsNotFound(err error) bool {
	code := ErrorCode(err)
	return code == CodeLeadNotFound || code == CodeAccountNotFound
}

func newValidationError(fields []ValidationError) *DomainError {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Error())
	}
	return &DomainError{
		Code:    CodeValidation,
		Message: "validation failed: " + strings.Join(parts, "; "),
		Fields:  fields,
	}
}

func newLeadNotFoundError(leadID int64, err error) *DomainError {
	return &DomainError{
		Code:    CodeLeadNotFound,
		Message: fmt.Sprintf("lead %d not found", leadID),
		Err:     err,
	}
}

func newAccountNotFoundError(accountID int64, err error) *DomainError {
	return &DomainError{
		Code:    CodeAccountNotFound,
		Message: fmt.Sprintf("account %d not found", accountID),
		Err:     err,
	}
}

func newConflictError(leadID int64) *DomainError {
	return &DomainError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("lead %d already converted with different options", leadID),
	}
}

func newTransactionError(err error) *TechnicalError {
	return &TechnicalError{
		Code:    CodeTransaction,
		Message: "conversion rolled back: " + err.Error(),
		Err:     err,
	}
}

func newTimeoutError(err error) *TechnicalError {
	return &TechnicalError{
		Code:    CodeTimeout,
		Message: "conversion timed out and was rolled back",
		Err:     err,
	}
}
