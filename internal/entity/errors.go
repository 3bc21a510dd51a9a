package entity

import "errors"

var (
	ErrLeadNotFound        = errors.New("lead not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrContactNotFound     = errors.New("contact not found")
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrConversionNotFound  = errors.New("conversion not found")

	// ErrVersionConflict means another writer changed the row first, or the
	// database aborted the transaction to keep it serializable.
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid lead status transition")
)
