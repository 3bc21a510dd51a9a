package entity

import (
	"context"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "New"
	LeadStatusContacted LeadStatus = "Contacted"
	LeadStatusQualified LeadStatus = "Qualified"
	LeadStatusConverted LeadStatus = "Converted" // terminal
)

// LeadTransitions lists the allowed status moves. Converted is only ever
// reached through the conversion flow and has no way out.
var LeadTransitions = map[LeadStatus]map[LeadStatus]bool{
	LeadStatusNew:       {LeadStatusContacted: true, LeadStatusQualified: true, LeadStatusConverted: true},
	LeadStatusContacted: {LeadStatusQualified: true, LeadStatusConverted: true},
	LeadStatusQualified: {LeadStatusConverted: true},
	LeadStatusConverted: {},
}

func (s LeadStatus) Valid() bool {
	_, ok := LeadTransitions[s]
	return ok
}

func (s LeadStatus) CanTransition(to LeadStatus) bool {
	return LeadTransitions[s][to]
}

type Lead struct {
	ID        int64      `json:"id"`
	Company   string     `json:"company"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Status    LeadStatus `json:"status"`

	ConvertedContactID     *int64     `json:"converted_contact_id,omitempty"`
	ConvertedAccountID     *int64     `json:"converted_account_id,omitempty"`
	ConvertedOpportunityID *int64     `json:"converted_opportunity_id,omitempty"`
	ConvertedAt            *time.Time `json:"converted_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Lead) IsConverted() bool {
	return l.Status == LeadStatusConverted
}

// MarkConverted moves the lead into its terminal state and bumps the version.
// The caller persists it with the version the lead was loaded at.
func (l *Lead) MarkConverted(contactID int64, accountID, opportunityID *int64, at time.Time) error {
	if !l.Status.CanTransition(LeadStatusConverted) {
		return ErrInvalidTransition
	}
	l.Status = LeadStatusConverted
	l.ConvertedContactID = &contactID
	l.ConvertedAccountID = accountID
	l.ConvertedOpportunityID = opportunityID
	l.ConvertedAt = &at
	l.UpdatedAt = at
	l.Version++
	return nil
}

type LeadRepositoryInterface interface {
	GetLead(ctx context.Context, id int64) (*Lead, error)
	// UpdateLead writes the conversion fields when the stored version still
	// equals expectedVersion, otherwise returns ErrVersionConflict.
	UpdateLead(ctx context.Context, lead *Lead, expectedVersion int64) error
}
