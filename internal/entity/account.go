package entity

import (
	"context"
	"time"
)

type Account struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
	OwnerID  string `json:"owner_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`

	BillingStreet  string `json:"billing_street,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingState   string `json:"billing_state,omitempty"`
	BillingZipCode string `json:"billing_zip_code,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type AccountRepositoryInterface interface {
	GetAccount(ctx context.Context, id int64) (*Account, error)
	CreateAccount(ctx context.Context, a *Account) error
	DeleteAccount(ctx context.Context, id int64) error
	// FindAccountsByName matches names case-insensitively.
	FindAccountsByName(ctx context.Context, name string) ([]*Account, error)
}
