package usecase

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	maxNameLength = 255

	// Amounts are stored as NUMERIC(18,2).
	amountScale        = 2
	maxAmountIntDigits = 16
)

var amountLimit = decimal.New(1, maxAmountIntDigits)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConvertLeadInput turns a raw request into a ConversionCommand.
// With createAccount set and both accountId and accountName present, the
// link to accountId wins.
func ValidateConvertLeadInput(input ConvertLeadInput) (*ConversionCommand, error) {
	var errors []ValidationError

	if input.LeadID <= 0 {
		errors = append(errors, ValidationError{"leadId", "must be a positive integer"})
	}

	cmd := &ConversionCommand{
		LeadID:  input.LeadID,
		ActorID: strings.TrimSpace(input.ActorID),
		Account: entity.NoAccount(),
	}

	if input.CreateAccount {
		accountName := trimmed(input.AccountName)
		switch {
		case input.AccountID != nil:
			if *input.AccountID <= 0 {
				errors = append(errors, ValidationError{"accountId", "must be a positive integer"})
			} else {
				cmd.Account = entity.LinkExisting(*input.AccountID)
			}
		case accountName != "":
			if utf8.RuneCountInString(accountName) > maxNameLength {
				errors = append(errors, ValidationError{"accountName", "must not exceed 255 characters"})
			} else {
				cmd.Account = entity.CreateNew(accountName)
			}
		default:
			errors = append(errors, ValidationError{"accountId", "accountId or accountName is required when createAccount is true"})
		}
	}

	if input.CreateOpportunity {
		spec := &OpportunitySpec{Name: trimmed(input.OpportunityName)}

		if spec.Name == "" {
			errors = append(errors, ValidationError{"opportunityName", "is required when createOpportunity is true"})
		} else if utf8.RuneCountInString(spec.Name) > maxNameLength {
			errors = append(errors, ValidationError{"opportunityName", "must not exceed 255 characters"})
		}

		if raw := trimmed(input.Amount); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				errors = append(errors, ValidationError{"amount", "must be a decimal number"})
			} else if amount.IsNegative() {
				errors = append(errors, ValidationError{"amount", "must not be negative"})
			} else if !amount.Equal(amount.Truncate(amountScale)) {
				errors = append(errors, ValidationError{"amount", "must have at most 2 decimal places"})
			} else if amount.GreaterThanOrEqual(amountLimit) {
				errors = append(errors, ValidationError{"amount", "must have at most 16 integer digits"})
			} else {
				spec.Amount = &amount
			}
		}

		if raw := trimmed(input.Stage); raw != "" {
			stage, ok := entity.ParseStage(raw)
			if !ok {
				errors = append(errors, ValidationError{"stage", "must be one of Lead Generation, Qualification, Proposal, Negotiation, Closing"})
			} else {
				spec.Stage = stage
			}
		}

		if raw := trimmed(input.ExpectedCloseDate); raw != "" {
			date, ok := parseDate(raw)
			if !ok {
				errors = append(errors, ValidationError{"expectedCloseDate", "must be a valid date (YYYY-MM-DD)"})
			} else {
				spec.ExpectedCloseDate = &date
			}
		}

		cmd.Opportunity = spec
	}

	if len(errors) > 0 {
		return nil, newValidationError(errors)
	}
	return cmd, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func parseDate(dateStr string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, dateStr); err == nil {
		return t, true
	}
	return time.Time{}, false
}
