package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// Store bundles every repository the conversion flow touches over one
// connection or transaction.
type Store struct {
	*LeadRepository
	*ContactRepository
	*AccountRepository
	*OpportunityRepository
	*ConversionRepository
}

var _ entity.EntityStore = (*Store)(nil)

func NewStore(db DBTX, dialect Dialect) *Store {
	return &Store{
		LeadRepository:        NewLeadRepository(db, dialect),
		ContactRepository:     NewContactRepository(db, dialect),
		AccountRepository:     NewAccountRepository(db, dialect),
		OpportunityRepository: NewOpportunityRepository(db, dialect),
		ConversionRepository:  NewConversionRepository(db, dialect),
	}
}

// UnitOfWork runs each conversion inside one database transaction.
type UnitOfWork struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ entity.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *DB, logger *slog.Logger) *UnitOfWork {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitOfWork{db: db.SQL, dialect: db.Dialect, logger: logger}
}

func (u *UnitOfWork) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, store entity.EntityStore) error,
) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				u.logger.Error("rolling back transaction", slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(ctx, NewStore(tx, u.dialect)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}
