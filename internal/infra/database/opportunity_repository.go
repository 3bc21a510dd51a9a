package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xavierca1/ligue-crm/internal/entity"
)

type OpportunityRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewOpportunityRepository(db DBTX, dialect Dialect) *OpportunityRepository {
	return &OpportunityRepository{DB: db, Dialect: dialect}
}

func (r *OpportunityRepository) CreateOpportunity(ctx context.Context, o *entity.Opportunity) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	query := r.Dialect.Rebind(`
		INSERT INTO opportunities (name, account_id, contact_id, amount, stage, expected_close_date, is_closed, is_won, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query,
		o.Name,
		nullInt64(o.AccountID),
		o.ContactID,
		o.Amount.StringFixed(2),
		string(o.Stage),
		timeArg(o.ExpectedCloseDate),
		o.IsClosed,
		o.IsWon,
		timeArg(o.CreatedAt),
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", classify(err))
	}
	return nil
}

func (r *OpportunityRepository) GetOpportunity(ctx context.Context, id int64) (*entity.Opportunity, error) {
	query := r.Dialect.Rebind(`
		SELECT id, name, account_id, contact_id, amount, stage, expected_close_date, is_closed, is_won, created_at
		FROM opportunities WHERE id = ?
	`)

	var (
		o                    entity.Opportunity
		accountID            sql.NullInt64
		amount               decimal.NullDecimal
		stage                string
		closeDate, createdAt dbTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.Name, &accountID, &o.ContactID, &amount, &stage,
		&closeDate, &o.IsClosed, &o.IsWon, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrOpportunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select opportunity %d: %w", id, classify(err))
	}

	o.AccountID = int64Ptr(accountID)
	o.Amount = amount.Decimal
	o.Stage = entity.Stage(stage)
	o.ExpectedCloseDate = closeDate.Time
	o.CreatedAt = createdAt.Time
	return &o, nil
}

func (r *OpportunityRepository) DeleteOpportunity(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM opportunities WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete opportunity %d: %w", id, classify(err))
	}
	return nil
}
