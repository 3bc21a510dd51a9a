package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type LeadRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewLeadRepository(db DBTX, dialect Dialect) *LeadRepository {
	return &LeadRepository{DB: db, Dialect: dialect}
}

const leadColumns = `id, company, first_name, last_name, email, phone, status,
		converted_contact_id, converted_account_id, converted_opportunity_id, converted_at,
		version, created_at, updated_at`

// CreateLead inserts a lead in its current status. Leads normally come from
// capture forms outside this service; it is used for seeding.
func (r *LeadRepository) CreateLead(ctx context.Context, lead *entity.Lead) error {
	if lead.Status == "" {
		lead.Status = entity.LeadStatusNew
	}
	if !lead.Status.Valid() {
		return fmt.Errorf("invalid lead status %q", lead.Status)
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = lead.CreatedAt
	}

	query := r.Dialect.Rebind(`
		INSERT INTO leads (company, first_name, last_name, email, phone, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query,
		lead.Company,
		lead.FirstName,
		lead.LastName,
		nullString(lead.Email),
		nullString(lead.Phone),
		string(lead.Status),
		lead.Version,
		timeArg(lead.CreatedAt),
		timeArg(lead.UpdatedAt),
	).Scan(&lead.ID)
	if err != nil {
		return fmt.Errorf("insert lead: %w", classify(err))
	}
	return nil
}

// GetLead reads a lead and, on Postgres, locks the row until the surrounding
// transaction ends.
func (r *LeadRepository) GetLead(ctx context.Context, id int64) (*entity.Lead, error) {
	query := r.Dialect.Rebind(`SELECT ` + leadColumns + ` FROM leads WHERE id = ?` + r.Dialect.LockClause())

	var (
		lead                 entity.Lead
		email, phone, status sql.NullString
		contactID, accountID sql.NullInt64
		opportunityID        sql.NullInt64
		convertedAt          dbTime
		createdAt, updatedAt dbTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&lead.ID,
		&lead.Company,
		&lead.FirstName,
		&lead.LastName,
		&email,
		&phone,
		&status,
		&contactID,
		&accountID,
		&opportunityID,
		&convertedAt,
		&lead.Version,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select lead %d: %w", id, classify(err))
	}

	lead.Email = email.String
	lead.Phone = phone.String
	lead.Status = entity.LeadStatus(status.String)
	lead.ConvertedContactID = int64Ptr(contactID)
	lead.ConvertedAccountID = int64Ptr(accountID)
	lead.ConvertedOpportunityID = int64Ptr(opportunityID)
	lead.ConvertedAt = convertedAt.Ptr()
	lead.CreatedAt = createdAt.Time
	lead.UpdatedAt = updatedAt.Time
	return &lead, nil
}

func (r *LeadRepository) UpdateLead(ctx context.Context, lead *entity.Lead, expectedVersion int64) error {
	query := r.Dialect.Rebind(`
		UPDATE leads SET
			status = ?,
			converted_contact_id = ?,
			converted_account_id = ?,
			converted_opportunity_id = ?,
			converted_at = ?,
			version = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`)
	res, err := r.DB.ExecContext(ctx, query,
		string(lead.Status),
		nullInt64(lead.ConvertedContactID),
		nullInt64(lead.ConvertedAccountID),
		nullInt64(lead.ConvertedOpportunityID),
		nullTimeArg(lead.ConvertedAt),
		lead.Version,
		timeArg(lead.UpdatedAt),
		lead.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", lead.ID, classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead %d: %w", lead.ID, err)
	}
	if n == 0 {
		return entity.ErrVersionConflict
	}
	return nil
}
