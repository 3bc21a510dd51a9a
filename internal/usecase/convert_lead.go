package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xavierca1/ligue-crm/internal/backoff"
	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	DefaultConversionTimeout = 5 * time.Second
	DefaultMaxAttempts       = 3
)

var defaultRetryBackoff = backoff.MustNew(20*time.Millisecond, 500*time.Millisecond, 2, .2)

// ConvertLeadUseCase turns a lead into a contact plus an optional account and
// opportunity, and marks the lead Converted, all in one unit of work.
type ConvertLeadUseCase struct {
	UoW      entity.UnitOfWork
	Resolver AccountResolver
	Factory  EntityFactory
	Auditor  Auditor
	Logger   *slog.Logger

	Timeout     time.Duration
	MaxAttempts int
	Backoff     backoff.Backoff
	Now         func() time.Time
}

func NewConvertLeadUseCase(uow entity.UnitOfWork, auditor Auditor, logger *slog.Logger) *ConvertLeadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertLeadUseCase{
		UoW:         uow,
		Auditor:     auditor,
		Logger:      logger,
		Timeout:     DefaultConversionTimeout,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     defaultRetryBackoff,
		Now:         time.Now,
	}
}

func (uc *ConvertLeadUseCase) Execute(ctx context.Context, input ConvertLeadInput) (*ConvertLeadOutput, error) {
	cmd, err := ValidateConvertLeadInput(input)
	if err != nil {
		return nil, err
	}

	result, err := uc.Convert(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return result.Output(), nil
}

// Convert runs the orchestration for an already validated command. An
// optimistic-lock conflict restarts it from the top; the next attempt then
// usually takes the replay path.
func (uc *ConvertLeadUseCase) Convert(ctx context.Context, cmd *ConversionCommand) (*ConversionResult, error) {
	timeout := uc.Timeout
	if timeout <= 0 {
		timeout = DefaultConversionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := max(uc.MaxAttempts, 1)
	log := uc.Logger.With(slog.Int64("lead_id", cmd.LeadID))

	var (
		result *ConversionResult
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := uc.Backoff.Sleep(ctx, attempt); sleepErr != nil {
				err = sleepErr
				break
			}
		}
		result, err = uc.convertOnce(ctx, cmd)
		if !errors.Is(err, entity.ErrVersionConflict) {
			break
		}
		log.Warn("lead changed concurrently, retrying conversion", slog.Int("attempt", attempt+1))
	}

	if err != nil {
		err = uc.classify(ctx, cmd, err)
		if IsTechnicalError(err) {
			log.Error("lead conversion failed", slog.String("code", ErrorCode(err)), slog.Any("err", err))
		} else {
			log.Info("lead conversion rejected", slog.String("code", ErrorCode(err)), slog.String("reason", err.Error()))
		}
		return nil, err
	}

	if result.Replayed {
		log.Info("lead conversion replayed", slog.Int64("contact_id", result.Record.ContactID))
		return result, nil
	}

	log.Info("lead converted",
		slog.Int64("contact_id", result.Record.ContactID),
		slog.Any("account_id", result.Record.AccountID),
		slog.Any("opportunity_id", result.Record.OpportunityID))

	if uc.Auditor != nil {
		auditCtx := context.WithoutCancel(ctx)
		go func() {
			// Already logged by the auditor.
			_ = uc.Auditor.Record(auditCtx, result)
		}()
	}
	return result, nil
}

func (uc *ConvertLeadUseCase) convertOnce(ctx context.Context, cmd *ConversionCommand) (*ConversionResult, error) {
	var result *ConversionResult

	err := uc.UoW.WithinTx(ctx, func(ctx context.Context, store entity.EntityStore) error {
		lead, err := store.GetLead(ctx, cmd.LeadID)
		if errors.Is(err, entity.ErrLeadNotFound) {
			return newLeadNotFoundError(cmd.LeadID, err)
		}
		if err != nil {
			return fmt.Errorf("loading lead: %w", err)
		}

		if lead.IsConverted() {
			result, err = uc.replay(ctx, store, cmd)
			return err
		}

		// Reads first: a bad account reference aborts before any write.
		resolution, err := uc.Resolver.Resolve(ctx, store, cmd)
		if err != nil {
			return err
		}

		factory := uc.Factory
		if factory.Now == nil {
			factory.Now = uc.Now
		}

		var accountID *int64
		switch resolution.Decision.Mode {
		case entity.AccountModeLinkExisting:
			id := resolution.Existing.ID
			accountID = &id
		case entity.AccountModeCreateNew:
			account := factory.BuildAccount(resolution.Decision.Name, lead, cmd.ActorID)
			if err := store.CreateAccount(ctx, account); err != nil {
				return fmt.Errorf("creating account: %w", err)
			}
			accountID = &account.ID
		}

		contact := factory.BuildContact(lead, accountID)
		if err := store.CreateContact(ctx, contact); err != nil {
			return fmt.Errorf("creating contact: %w", err)
		}

		var opportunityID *int64
		if cmd.Opportunity != nil {
			opp := factory.BuildOpportunity(cmd.Opportunity, contact.ID, accountID)
			if err := store.CreateOpportunity(ctx, opp); err != nil {
				return fmt.Errorf("creating opportunity: %w", err)
			}
			opportunityID = &opp.ID
		}

		now := uc.now().UTC()
		loadedVersion := lead.Version
		if err := lead.MarkConverted(contact.ID, accountID, opportunityID, now); err != nil {
			return err
		}
		if err := store.UpdateLead(ctx, lead, loadedVersion); err != nil {
			return fmt.Errorf("updating lead: %w", err)
		}

		record := entity.ConversionRecord{
			LeadID:            lead.ID,
			ContactID:         contact.ID,
			AccountID:         accountID,
			OpportunityID:     opportunityID,
			AccountMode:       resolution.Decision.Mode,
			CreateOpportunity: cmd.Opportunity != nil,
			ActorID:           cmd.ActorID,
			ConvertedAt:       now,
		}
		if err := store.SaveConversion(ctx, &record); err != nil {
			return fmt.Errorf("saving conversion record: %w", err)
		}

		result = &ConversionResult{
			Record:                   record,
			PossibleDuplicateAccount: resolution.PossibleDuplicate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *ConvertLeadUseCase) replay(ctx context.Context, store entity.EntityStore, cmd *ConversionCommand) (*ConversionResult, error) {
	rec, err := store.GetConversion(ctx, cmd.LeadID)
	if errors.Is(err, entity.ErrConversionNotFound) {
		// Converted without a record: nothing to compare against.
		return nil, newConflictError(cmd.LeadID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversion record: %w", err)
	}
	if !rec.Shape().Matches(cmd.Shape()) {
		return nil, newConflictError(cmd.LeadID)
	}
	return &ConversionResult{Record: *rec, Replayed: true}, nil
}

// GetConversion returns the stored result for a converted lead.
func (uc *ConvertLeadUseCase) GetConversion(ctx context.Context, leadID int64) (*ConvertLeadOutput, error) {
	var out *ConvertLeadOutput
	err := uc.UoW.WithinTx(ctx, func(ctx context.Context, store entity.EntityStore) error {
		rec, err := store.GetConversion(ctx, leadID)
		if err != nil {
			return err
		}
		result := ConversionResult{Record: *rec, Replayed: true}
		out = result.Output()
		return nil
	})
	if errors.Is(err, entity.ErrConversionNotFound) {
		return nil, &DomainError{
			Code:    CodeLeadNotFound,
			Message: fmt.Sprintf("lead %d has not been converted", leadID),
			Err:     err,
		}
	}
	if err != nil {
		return nil, newTransactionError(err)
	}
	return out, nil
}

func (uc *ConvertLeadUseCase) classify(ctx context.Context, cmd *ConversionCommand, err error) error {
	switch {
	case IsDomainError(err), IsTechnicalError(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newTimeoutError(err)
	case errors.Is(err, entity.ErrVersionConflict):
		return newTransactionError(fmt.Errorf("lead %d kept changing concurrently: %w", cmd.LeadID, err))
	default:
		return newTransactionError(err)
	}
}

func (uc *ConvertLeadUseCase) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
