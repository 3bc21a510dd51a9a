package usecase

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xavierca1/ligue-crm/internal/entity"
)

const defaultCloseWindow = 30 * 24 * time.Hour

type EntityFactory struct {
	Now func() time.Time
}

func (f EntityFactory) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f EntityFactory) BuildContact(lead *entity.Lead, accountID *int64) *entity.Contact {
	leadID := lead.ID
	return &entity.Contact{
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Email:        lead.Email,
		Phone:        lead.Phone,
		AccountID:    accountID,
		SourceLeadID: &leadID,
		CreatedAt:    f.now(),
	}
}

// BuildAccount falls back to the lead's company when name is blank.
func (f EntityFactory) BuildAccount(name string, lead *entity.Lead, ownerID string) *entity.Account {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(lead.Company)
	}
	return &entity.Account{
		Name:      name,
		OwnerID:   ownerID,
		Email:     lead.Email,
		Phone:     lead.Phone,
		CreatedAt: f.now(),
	}
}

func (f EntityFactory) BuildOpportunity(spec *OpportunitySpec, contactID int64, accountID *int64) *entity.Opportunity {
	now := f.now()
	opp := &entity.Opportunity{
		Name:              spec.Name,
		AccountID:         accountID,
		ContactID:         contactID,
		Amount:            decimal.Zero,
		Stage:             entity.StageLeadGeneration,
		ExpectedCloseDate: now.Add(defaultCloseWindow),
		CreatedAt:         now,
	}
	if spec.Amount != nil {
		opp.Amount = *spec.Amount
	}
	if spec.Stage != "" {
		opp.Stage = spec.Stage
	}
	if spec.ExpectedCloseDate != nil {
		opp.ExpectedCloseDate = *spec.ExpectedCloseDate
	}
	return opp
}
