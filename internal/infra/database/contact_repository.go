package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type ContactRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewContactRepository(db DBTX, dialect Dialect) *ContactRepository {
	return &ContactRepository{DB: db, Dialect: dialect}
}

func (r *ContactRepository) CreateContact(ctx context.Context, c *entity.Contact) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := r.Dialect.Rebind(`
		INSERT INTO contacts (first_name, last_name, email, phone, account_id, source_lead_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query,
		c.FirstName,
		c.LastName,
		nullString(c.Email),
		nullString(c.Phone),
		nullInt64(c.AccountID),
		nullInt64(c.SourceLeadID),
		timeArg(c.CreatedAt),
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert contact: %w", classify(err))
	}
	return nil
}

func (r *ContactRepository) GetContact(ctx context.Context, id int64) (*entity.Contact, error) {
	query := r.Dialect.Rebind(`
		SELECT id, first_name, last_name, email, phone, account_id, source_lead_id, created_at
		FROM contacts WHERE id = ?
	`)

	var (
		c                     entity.Contact
		email, phone          sql.NullString
		accountID, sourceLead sql.NullInt64
		createdAt             dbTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.FirstName, &c.LastName, &email, &phone, &accountID, &sourceLead, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select contact %d: %w", id, classify(err))
	}

	c.Email = email.String
	c.Phone = phone.String
	c.AccountID = int64Ptr(accountID)
	c.SourceLeadID = int64Ptr(sourceLead)
	c.CreatedAt = createdAt.Time
	return &c, nil
}

func (r *ContactRepository) DeleteContact(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM contacts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, classify(err))
	}
	return nil
}
