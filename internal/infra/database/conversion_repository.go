package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type ConversionRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewConversionRepository(db DBTX, dialect Dialect) *ConversionRepository {
	return &ConversionRepository{DB: db, Dialect: dialect}
}

// SaveConversion inserts the one record a lead may have. A second insert for
// the same lead means a concurrent conversion won and reports
// entity.ErrVersionConflict.
func (r *ConversionRepository) SaveConversion(ctx context.Context, rec *entity.ConversionRecord) error {
	query := r.Dialect.Rebind(`
		INSERT INTO lead_conversions (lead_id, contact_id, account_id, opportunity_id, account_mode, create_opportunity, actor_id, converted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		rec.LeadID,
		rec.ContactID,
		nullInt64(rec.AccountID),
		nullInt64(rec.OpportunityID),
		string(rec.AccountMode),
		rec.CreateOpportunity,
		nullString(rec.ActorID),
		timeArg(rec.ConvertedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Join(entity.ErrVersionConflict, err)
		}
		return fmt.Errorf("insert conversion for lead %d: %w", rec.LeadID, classify(err))
	}
	return nil
}

func (r *ConversionRepository) GetConversion(ctx context.Context, leadID int64) (*entity.ConversionRecord, error) {
	query := r.Dialect.Rebind(`
		SELECT lead_id, contact_id, account_id, opportunity_id, account_mode, create_opportunity, actor_id, converted_at
		FROM lead_conversions WHERE lead_id = ?
	`)

	var (
		rec                      entity.ConversionRecord
		accountID, opportunityID sql.NullInt64
		mode                     string
		actorID                  sql.NullString
		convertedAt              dbTime
	)
	err := r.DB.QueryRowContext(ctx, query, leadID).Scan(
		&rec.LeadID, &rec.ContactID, &accountID, &opportunityID, &mode,
		&rec.CreateOpportunity, &actorID, &convertedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrConversionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversion for lead %d: %w", leadID, classify(err))
	}

	rec.AccountID = int64Ptr(accountID)
	rec.OpportunityID = int64Ptr(opportunityID)
	rec.AccountMode = entity.AccountMode(mode)
	rec.ActorID = actorID.String
	rec.ConvertedAt = convertedAt.Time
	return &rec, nil
}

func (r *ConversionRepository) DeleteConversion(ctx context.Context, leadID int64) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM lead_conversions WHERE lead_id = ?`), leadID)
	if err != nil {
		return fmt.Errorf("delete conversion for lead %d: %w", leadID, classify(err))
	}
	return nil
}
