package entity

import (
	"context"
	"time"
)

type Contact struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	AccountID    *int64    `json:"account_id,omitempty"`
	SourceLeadID *int64    `json:"source_lead_id,omitempty"` // set only by conversion
	CreatedAt    time.Time `json:"created_at"`
}

type ContactRepositoryInterface interface {
	// CreateContact inserts c and fills in c.ID.
	CreateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, id int64) (*Contact, error)
	DeleteContact(ctx context.Context, id int64) error
}
