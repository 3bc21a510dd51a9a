package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) InsertAudit(ctx context.Context, e *entity.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLeadConverted(ctx context.Context, event queue.LeadConvertedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestConversionAuditorRecord(t *testing.T) {
	ctx := context.Background()
	convertedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	result := &usecase.ConversionResult{
		Record: entity.ConversionRecord{
			LeadID:      1,
			ContactID:   2,
			AccountID:   idPtr(3),
			AccountMode: entity.AccountModeCreateNew,
			ActorID:     "user-1",
			ConvertedAt: convertedAt,
		},
		PossibleDuplicateAccount: true,
	}

	repo := new(MockAuditRepository)
	repo.On("InsertAudit", ctx, mock.MatchedBy(func(e *entity.AuditEntry) bool {
		return e.ID != "" && e.LeadID == 1 && e.ContactID == 2 && *e.AccountID == 3 &&
			e.ActorID == "user-1" && e.PossibleDuplicateAccount
	})).Return(nil)

	pub := new(MockPublisher)
	pub.On("PublishLeadConverted", ctx, mock.MatchedBy(func(ev queue.LeadConvertedEvent) bool {
		return ev.Type == queue.EventTypeLeadConverted && ev.LeadID == 1 &&
			ev.AccountMode == "create" && ev.OccurredAt.Equal(convertedAt)
	})).Return(nil)

	auditor := usecase.NewConversionAuditor(repo, pub, slog.New(slog.DiscardHandler))
	require.NoError(t, auditor.Record(ctx, result))
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestConversionAuditorKeepsGoingOnFailure(t *testing.T) {
	ctx := context.Background()
	result := &usecase.ConversionResult{Record: entity.ConversionRecord{LeadID: 1, ContactID: 2}}

	repo := new(MockAuditRepository)
	repo.On("InsertAudit", ctx, mock.Anything).Return(errors.New("disk full"))
	pub := new(MockPublisher)
	pub.On("PublishLeadConverted", ctx, mock.Anything).Return(errors.New("broker down"))

	err := usecase.NewConversionAuditor(repo, pub, slog.New(slog.DiscardHandler)).Record(ctx, result)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "broker down")
	pub.AssertExpectations(t)
}
