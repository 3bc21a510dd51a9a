package usecase

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xavierca1/ligue-crm/internal/entity"
)

// ConvertLeadInput is the raw request. LeadID comes from the route and
// ActorID from the caller's identity, not from the body.
type ConvertLeadInput struct {
	LeadID  int64  `json:"-"`
	ActorID string `json:"-"`

	CreateAccount     bool    `json:"createAccount"`
	CreateOpportunity bool    `json:"createOpportunity"`
	AccountID         *int64  `json:"accountId,omitempty"`
	AccountName       *string `json:"accountName,omitempty"`
	OpportunityName   *string `json:"opportunityName,omitempty"`
	Amount            *string `json:"amount,omitempty"`
	Stage             *string `json:"stage,omitempty"`
	ExpectedCloseDate *string `json:"expectedCloseDate,omitempty"`
}

type ConvertLeadOutput struct {
	ContactID     int64     `json:"contactId"`
	AccountID     *int64    `json:"accountId"`
	OpportunityID *int64    `json:"opportunityId"`
	LeadStatus    string    `json:"leadStatus"`
	ConvertedAt   time.Time `json:"convertedAt"`
	Replayed      bool      `json:"replayed"`
}

// OpportunitySpec carries the opportunity options; zero values mean
// "use the default".
type OpportunitySpec struct {
	Name              string
	Amount            *decimal.Decimal
	Stage             entity.Stage
	ExpectedCloseDate *time.Time
}

// ConversionCommand is a validated conversion request.
type ConversionCommand struct {
	LeadID      int64
	ActorID     string
	Account     entity.AccountDecision
	Opportunity *OpportunitySpec // nil when no opportunity is requested
}

func (c *ConversionCommand) Shape() entity.ConversionShape {
	s := entity.ConversionShape{
		AccountMode:       c.Account.Mode,
		CreateOpportunity: c.Opportunity != nil,
	}
	if c.Account.Mode == entity.AccountModeLinkExisting {
		s.LinkedAccountID = c.Account.AccountID
	}
	return s
}

// ConversionResult is what a committed (or replayed) conversion produced.
type ConversionResult struct {
	Record                   entity.ConversionRecord
	PossibleDuplicateAccount bool
	Replayed                 bool
}

func (r *ConversionResult) Output() *ConvertLeadOutput {
	return &ConvertLeadOutput{
		ContactID:     r.Record.ContactID,
		AccountID:     r.Record.AccountID,
		OpportunityID: r.Record.OpportunityID,
		LeadStatus:    string(entity.LeadStatusConverted),
		ConvertedAt:   r.Record.ConvertedAt,
		Replayed:      r.Replayed,
	}
}
