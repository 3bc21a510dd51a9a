package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type AccountRepository struct {
	DB      DBTX
	Dialect Dialect
}

func NewAccountRepository(db DBTX, dialect Dialect) *AccountRepository {
	return &AccountRepository{DB: db, Dialect: dialect}
}

const accountColumns = `id, name, industry, owner_id, email, phone,
		billing_street, billing_city, billing_state, billing_zip_code, billing_country, created_at`

func (r *AccountRepository) CreateAccount(ctx context.Context, a *entity.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := r.Dialect.Rebind(`
		INSERT INTO accounts (name, industry, owner_id, email, phone,
			billing_street, billing_city, billing_state, billing_zip_code, billing_country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query,
		a.Name,
		nullString(a.Industry),
		nullString(a.OwnerID),
		nullString(a.Email),
		nullString(a.Phone),
		nullString(a.BillingStreet),
		nullString(a.BillingCity),
		nullString(a.BillingState),
		nullString(a.BillingZipCode),
		nullString(a.BillingCountry),
		timeArg(a.CreatedAt),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert account: %w", classify(err))
	}
	return nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, id int64) (*entity.Account, error) {
	query := r.Dialect.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)
	a, err := scanAccount(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account %d: %w", id, classify(err))
	}
	return a, nil
}

func (r *AccountRepository) FindAccountsByName(ctx context.Context, name string) ([]*entity.Account, error) {
	query := r.Dialect.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(name) = ? ORDER BY id`)
	rows, err := r.DB.QueryContext(ctx, query, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, fmt.Errorf("find accounts by name: %w", classify(err))
	}
	defer rows.Close()

	var accounts []*entity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find accounts by name: %w", classify(err))
	}
	return accounts, nil
}

func (r *AccountRepository) DeleteAccount(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM accounts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, classify(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*entity.Account, error) {
	var (
		a                                 entity.Account
		industry, ownerID, email, phone   sql.NullString
		street, city, state, zip, country sql.NullString
		createdAt                         dbTime
	)
	if err := row.Scan(
		&a.ID, &a.Name, &industry, &ownerID, &email, &phone,
		&street, &city, &state, &zip, &country, &createdAt,
	); err != nil {
		return nil, err
	}
	a.Industry = industry.String
	a.OwnerID = ownerID.String
	a.Email = email.String
	a.Phone = phone.String
	a.BillingStreet = street.String
	a.BillingCity = city.String
	a.BillingState = state.String
	a.BillingZipCode = zip.String
	a.BillingCountry = country.String
	a.CreatedAt = createdAt.Time
	return &a, nil
}
