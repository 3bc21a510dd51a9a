package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
)

type ConversionAuditor struct {
	Repo      entity.AuditRepositoryInterface
	Publisher EventPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewConversionAuditor(repo entity.AuditRepositoryInterface, publisher EventPublisher, logger *slog.Logger) *ConversionAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionAuditor{
		Repo:      repo,
		Publisher: publisher,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Record writes the audit row and publishes LeadConverted. Both are
// attempted even if the first fails; errors are logged and returned joined.
// Redelivery of a failed publish belongs to the event-delivery side.
func (a *ConversionAuditor) Record(ctx context.Context, result *ConversionResult) error {
	rec := result.Record
	now := a.Now().UTC()

	var errs []error

	if a.Repo != nil {
		entry := &entity.AuditEntry{
			ID:                       uuid.New().String(),
			LeadID:                   rec.LeadID,
			ContactID:                rec.ContactID,
			AccountID:                rec.AccountID,
			OpportunityID:            rec.OpportunityID,
			ActorID:                  rec.ActorID,
			PossibleDuplicateAccount: result.PossibleDuplicateAccount,
			Timestamp:                now,
		}
		if err := a.Repo.InsertAudit(ctx, entry); err != nil {
			a.Logger.Error("writing conversion audit",
				slog.Int64("lead_id", rec.LeadID),
				slog.Any("err", err))
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}

	if result.PossibleDuplicateAccount {
		a.Logger.Warn("conversion created an account whose name already exists",
			slog.Int64("lead_id", rec.LeadID),
			slog.Any("account_id", rec.AccountID))
	}

	if a.Publisher != nil {
		event := queue.LeadConvertedEvent{
			EventID:                  uuid.New().String(),
			Type:                     queue.EventTypeLeadConverted,
			LeadID:                   rec.LeadID,
			ContactID:                rec.ContactID,
			AccountID:                rec.AccountID,
			OpportunityID:            rec.OpportunityID,
			AccountMode:              string(rec.AccountMode),
			PossibleDuplicateAccount: result.PossibleDuplicateAccount,
			ActorID:                  rec.ActorID,
			OccurredAt:               rec.ConvertedAt,
		}
		if err := a.Publisher.PublishLeadConverted(ctx, event); err != nil {
			a.Logger.Error("CRITICAL: lead converted but event not published",
				slog.Int64("lead_id", rec.LeadID),
				slog.String("event_id", event.EventID),
				slog.Any("err", err))
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}

	return errors.Join(errs...)
}
