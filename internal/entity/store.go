package entity

import "context"

// EntityStore is the narrow persistence surface the conversion flow needs.
// All calls made through one store share a single unit of work.
type EntityStore interface {
	LeadRepositoryInterface
	ContactRepositoryInterface
	AccountRepositoryInterface
	OpportunityRepositoryInterface
	ConversionRepositoryInterface
}

// UnitOfWork runs fn with a store bound to one unit of work. It is committed
// when fn returns nil and undone otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store EntityStore) error) error
}
