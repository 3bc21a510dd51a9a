package database

import (
	"context"
	"fmt"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// AuditRepository writes outside any conversion transaction.
type AuditRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewAuditRepository(db DBTX, dialect Dialect) *AuditRepository {
	return &AuditRepository{DB: db, Dialect: dialect}
}

func (r *AuditRepository) InsertAudit(ctx context.Context, e *entity.AuditEntry) error {
	query := r.Dialect.Rebind(`
		INSERT INTO lead_conversion_audit (id, lead_id, contact_id, account_id, opportunity_id, actor_id, possible_duplicate_account, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.LeadID,
		e.ContactID,
		nullInt64(e.AccountID),
		nullInt64(e.OpportunityID),
		nullString(e.ActorID),
		e.PossibleDuplicateAccount,
		timeArg(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert audit for lead %d: %w", e.LeadID, err)
	}
	return nil
}

// CountAudits returns how many audit rows exist for a lead.
func (r *AuditRepository) CountAudits(ctx context.Context, leadID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		r.Dialect.Rebind(`SELECT COUNT(*) FROM lead_conversion_audit WHERE lead_id = ?`), leadID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audits for lead %d: %w", leadID, err)
	}
	return n, nil
}
