package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Stage string

const (
	StageLeadGeneration Stage = "Lead Generation"
	StageQualification  Stage = "Qualification"
	StageProposal       Stage = "Proposal"
	StageNegotiation    Stage = "Negotiation"
	StageClosing        Stage = "Closing"
)

// Stages is the pipeline in order.
var Stages = []Stage{
	StageLeadGeneration,
	StageQualification,
	StageProposal,
	StageNegotiation,
	StageClosing,
}

// ParseStage accepts exactly one of the five stage names.
func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Position returns the zero-based index of s in the pipeline, or -1.
func (s Stage) Position() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

type Opportunity struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	AccountID         *int64          `json:"account_id,omitempty"`
	ContactID         int64           `json:"contact_id"`
	Amount            decimal.Decimal `json:"amount"`
	Stage             Stage           `json:"stage"`
	ExpectedCloseDate time.Time       `json:"expected_close_date"`
	IsClosed          bool            `json:"is_closed"`
	IsWon             bool            `json:"is_won"`
	CreatedAt         time.Time       `json:"created_at"`
}

type OpportunityRepositoryInterface interface {
	CreateOpportunity(ctx context.Context, o *Opportunity) error
	GetOpportunity(ctx context.Context, id int64) (*Opportunity, error)
	DeleteOpportunity(ctx context.Context, id int64) error
}
