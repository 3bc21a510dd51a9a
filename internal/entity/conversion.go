package entity

import (
	"context"
	"time"
)

type AccountMode string

const (
	AccountModeNone         AccountMode = "none"
	AccountModeLinkExisting AccountMode = "link"
	AccountModeCreateNew    AccountMode = "create"
)

// AccountDecision says what a conversion does about the account: nothing,
// link an existing one by id, or create a new one by name. Build it with
// NoAccount, LinkExisting or CreateNew.
type AccountDecision struct {
	Mode      AccountMode
	AccountID int64  // LinkExisting only
	Name      string // CreateNew only
}

func NoAccount() AccountDecision {
	return AccountDecision{Mode: AccountModeNone}
}

func LinkExisting(id int64) AccountDecision {
	return AccountDecision{Mode: AccountModeLinkExisting, AccountID: id}
}

func CreateNew(name string) AccountDecision {
	return AccountDecision{Mode: AccountModeCreateNew, Name: name}
}

// ConversionShape is what a repeated request must match to be treated as a
// replay of an earlier conversion.
type ConversionShape struct {
	AccountMode       AccountMode
	LinkedAccountID   int64
	CreateOpportunity bool
}

func (s ConversionShape) Matches(other ConversionShape) bool {
	return s == other
}

// ConversionRecord is persisted together with the lead update and is the
// source of truth for replays.
type ConversionRecord struct {
	LeadID            int64       `json:"lead_id"`
	ContactID         int64       `json:"contact_id"`
	AccountID         *int64      `json:"account_id,omitempty"`
	OpportunityID     *int64      `json:"opportunity_id,omitempty"`
	AccountMode       AccountMode `json:"account_mode"`
	CreateOpportunity bool        `json:"create_opportunity"`
	ActorID           string      `json:"actor_id,omitempty"`
	ConvertedAt       time.Time   `json:"converted_at"`
}

func (r *ConversionRecord) Shape() ConversionShape {
	s := ConversionShape{
		AccountMode:       r.AccountMode,
		CreateOpportunity: r.CreateOpportunity,
	}
	if r.AccountMode == AccountModeLinkExisting && r.AccountID != nil {
		s.LinkedAccountID = *r.AccountID
	}
	return s
}

type ConversionRepositoryInterface interface {
	SaveConversion(ctx context.Context, r *ConversionRecord) error
	GetConversion(ctx context.Context, leadID int64) (*ConversionRecord, error)
	DeleteConversion(ctx context.Context, leadID int64) error
}

// AuditEntry is written after commit and never inside the conversion
// transaction.
type AuditEntry struct {
	ID                       string    `json:"id"`
	LeadID                   int64     `json:"lead_id"`
	ContactID                int64     `json:"contact_id"`
	AccountID                *int64    `json:"account_id,omitempty"`
	OpportunityID            *int64    `json:"opportunity_id,omitempty"`
	ActorID                  string    `json:"actor_id,omitempty"`
	PossibleDuplicateAccount bool      `json:"possible_duplicate_account"`
	Timestamp                time.Time `json:"timestamp"`
}

type AuditRepositoryInterface interface {
	InsertAudit(ctx context.Context, e *AuditEntry) error
}
