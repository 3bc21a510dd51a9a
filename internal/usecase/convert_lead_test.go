package usecase_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/ligue-crm/internal/backoff"
	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/database"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type recordingAuditor struct {
	mu      sync.Mutex
	results []*usecase.ConversionResult
}

func (a *recordingAuditor) Record(_ context.Context, r *usecase.ConversionResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
	return nil
}

func (a *recordingAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// faultyStore lets a test replace single store calls.
type faultyStore struct {
	entity.EntityStore
	createOpportunity func(ctx context.Context, o *entity.Opportunity) error
	updateLead        func(ctx context.Context, lead *entity.Lead, expectedVersion int64) error
	saveConversion    func(ctx context.Context, r *entity.ConversionRecord) error
}

func (s *faultyStore) CreateOpportunity(ctx context.Context, o *entity.Opportunity) error {
	if s.createOpportunity != nil {
		return s.createOpportunity(ctx, o)
	}
	return s.EntityStore.CreateOpportunity(ctx, o)
}

func (s *faultyStore) UpdateLead(ctx context.Context, lead *entity.Lead, expectedVersion int64) error {
	if s.updateLead != nil {
		return s.updateLead(ctx, lead, expectedVersion)
	}
	return s.EntityStore.UpdateLead(ctx, lead, expectedVersion)
}

func (s *faultyStore) SaveConversion(ctx context.Context, r *entity.ConversionRecord) error {
	if s.saveConversion != nil {
		return s.saveConversion(ctx, r)
	}
	return s.EntityStore.SaveConversion(ctx, r)
}

type wrappedUoW struct {
	inner entity.UnitOfWork
	wrap  func(entity.EntityStore) entity.EntityStore
}

func (u wrappedUoW) WithinTx(ctx context.Context, fn func(context.Context, entity.EntityStore) error) error {
	return u.inner.WithinTx(ctx, func(ctx context.Context, s entity.EntityStore) error {
		return fn(ctx, u.wrap(s))
	})
}

type fixture struct {
	db      *database.DB
	store   *database.Store
	auditor *recordingAuditor
	logger  *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDBConnection(context.Background(), database.DriverSQLite, filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{
		db:      db,
		store:   database.NewStore(db.SQL, db.Dialect),
		auditor: &recordingAuditor{},
		logger:  slog.New(slog.DiscardHandler),
	}
}

func (f *fixture) useCase(uow entity.UnitOfWork) *usecase.ConvertLeadUseCase {
	uc := usecase.NewConvertLeadUseCase(uow, f.auditor, f.logger)
	uc.Now = func() time.Time { return fixedNow }
	uc.Backoff = backoff.MustNew(time.Millisecond, 5*time.Millisecond, 2, 0)
	return uc
}

func (f *fixture) txUseCase() *usecase.ConvertLeadUseCase {
	return f.useCase(database.NewUnitOfWork(f.db, f.logger))
}

func (f *fixture) seedLead(t *testing.T) *entity.Lead {
	t.Helper()
	lead := &entity.Lead{
		Company:   "Acme",
		FirstName: "Jo",
		LastName:  "Doe",
		Email:     "jo@acme.test",
		Status:    entity.LeadStatusQualified,
	}
	require.NoError(t, f.store.CreateLead(context.Background(), lead))
	return lead
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.SQL.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func (f *fixture) assertUntouched(t *testing.T, leadID int64) {
	t.Helper()
	lead, err := f.store.GetLead(context.Background(), leadID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusQualified, lead.Status)
	assert.Nil(t, lead.ConvertedContactID)
	assert.Equal(t, 0, f.count(t, "contacts"))
	assert.Equal(t, 0, f.count(t, "accounts"))
	assert.Equal(t, 0, f.count(t, "opportunities"))
	assert.Equal(t, 0, f.count(t, "lead_conversions"))
}

func TestConvertContactOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	out, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID, ActorID: "user-1"})
	require.NoError(t, err)
	assert.Nil(t, out.AccountID)
	assert.Nil(t, out.OpportunityID)
	assert.Equal(t, "Converted", out.LeadStatus)
	assert.Equal(t, fixedNow, out.ConvertedAt)
	assert.False(t, out.Replayed)

	contact, err := f.store.GetContact(ctx, out.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "Jo", contact.FirstName)
	assert.Equal(t, "Doe", contact.LastName)
	assert.Nil(t, contact.AccountID)

	stored, err := f.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusConverted, stored.Status)
	assert.Equal(t, out.ContactID, *stored.ConvertedContactID)
	assert.Equal(t, lead.Version+1, stored.Version)

	assert.Eventually(t, func() bool { return f.auditor.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestConvertCreatesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	out, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{
		LeadID:        lead.ID,
		CreateAccount: true,
		AccountName:   strPtr("Acme Inc"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.AccountID)

	account, err := f.store.GetAccount(ctx, *out.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", account.Name)

	contact, err := f.store.GetContact(ctx, out.ContactID)
	require.NoError(t, err)
	assert.Equal(t, *out.AccountID, *contact.AccountID)
}

func TestConvertFlagsDuplicateAccountName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.CreateAccount(ctx, &entity.Account{Name: "ACME INC"}))
	lead := f.seedLead(t)

	_, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{
		LeadID:        lead.ID,
		CreateAccount: true,
		AccountName:   strPtr("Acme Inc"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(t, "accounts"))

	require.Eventually(t, func() bool { return f.auditor.count() == 1 }, time.Second, 5*time.Millisecond)
	f.auditor.mu.Lock()
	defer f.auditor.mu.Unlock()
	assert.True(t, f.auditor.results[0].PossibleDuplicateAccount)
}

func TestConvertLinksExistingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := &entity.Account{Name: "Acme Holdings"}
	require.NoError(t, f.store.CreateAccount(ctx, existing))
	lead := f.seedLead(t)

	out, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{
		LeadID:        lead.ID,
		CreateAccount: true,
		AccountID:     idPtr(existing.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, *out.AccountID)
	assert.Equal(t, 1, f.count(t, "accounts"))

	contact, err := f.store.GetContact(ctx, out.ContactID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, *contact.AccountID)
}

func TestConvertMissingAccountWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	_, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{
		LeadID:        lead.ID,
		CreateAccount: true,
		AccountID:     idPtr(999),
	})
	assert.Equal(t, usecase.CodeAccountNotFound, usecase.ErrorCode(err))
	f.assertUntouched(t, lead.ID)
	assert.Never(t, func() bool { return f.auditor.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestConvertCreatesOpportunityWithDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	out, err := f.txUseCase().Execute(ctx, usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateOpportunity: true,
		OpportunityName:   strPtr("Q1 Deal"),
		Amount:            strPtr("5000"),
		Stage:             strPtr("Qualification"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.OpportunityID)

	opp, err := f.store.GetOpportunity(ctx, *out.OpportunityID)
	require.NoError(t, err)
	assert.Equal(t, "Q1 Deal", opp.Name)
	assert.Equal(t, entity.StageQualification, opp.Stage)
	assert.Equal(t, "5000", opp.Amount.String())
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), opp.ExpectedCloseDate)
	assert.Equal(t, out.ContactID, opp.ContactID)
	assert.Nil(t, opp.AccountID)
}

func TestConvertUnknownLead(t *testing.T) {
	f := newFixture(t)
	_, err := f.txUseCase().Execute(context.Background(), usecase.ConvertLeadInput{LeadID: 404})
	assert.Equal(t, usecase.CodeLeadNotFound, usecase.ErrorCode(err))
	assert.True(t, usecase.IsNotFound(err))
}

func TestConvertValidationRunsFirst(t *testing.T) {
	f := newFixture(t)
	lead := f.seedLead(t)

	_, err := f.txUseCase().Execute(context.Background(), usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
		Stage:             strPtr("Won"),
	})
	assert.Equal(t, usecase.CodeValidation, usecase.ErrorCode(err))
	f.assertUntouched(t, lead.ID)
}

func TestConvertRollsBackOnLateFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	uow := wrappedUoW{
		inner: database.NewUnitOfWork(f.db, f.logger),
		wrap: func(s entity.EntityStore) entity.EntityStore {
			return &faultyStore{EntityStore: s, createOpportunity: func(context.Context, *entity.Opportunity) error {
				return assert.AnError
			}}
		},
	}

	_, err := f.useCase(uow).Execute(ctx, usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateAccount:     true,
		AccountName:       strPtr("Acme Inc"),
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	})
	assert.Equal(t, usecase.CodeTransaction, usecase.ErrorCode(err))
	assert.ErrorIs(t, err, assert.AnError)
	f.assertUntouched(t, lead.ID)
}

func TestConvertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)
	uc := f.txUseCase()

	input := usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateAccount:     true,
		AccountName:       strPtr("Acme Inc"),
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	}
	first, err := uc.Execute(ctx, input)
	require.NoError(t, err)

	second, err := uc.Execute(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ContactID, second.ContactID)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, first.OpportunityID, second.OpportunityID)
	assert.Equal(t, first.ConvertedAt, second.ConvertedAt)

	assert.Equal(t, 1, f.count(t, "contacts"))
	assert.Equal(t, 1, f.count(t, "accounts"))
	assert.Equal(t, 1, f.count(t, "opportunities"))

	assert.Eventually(t, func() bool { return f.auditor.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return f.auditor.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	got, err := uc.GetConversion(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ContactID, got.ContactID)
}

func TestConvertDifferentShapeConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)
	uc := f.txUseCase()

	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID})
	require.NoError(t, err)

	_, err = uc.Execute(ctx, usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	})
	assert.Equal(t, usecase.CodeConflict, usecase.ErrorCode(err))
	assert.Equal(t, 1, f.count(t, "contacts"))
	assert.Equal(t, 0, f.count(t, "opportunities"))
}

func TestGetConversionBeforeConvert(t *testing.T) {
	f := newFixture(t)
	lead := f.seedLead(t)

	_, err := f.txUseCase().GetConversion(context.Background(), lead.ID)
	assert.Equal(t, usecase.CodeLeadNotFound, usecase.ErrorCode(err))
}

func TestConvertTimeoutRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	uow := wrappedUoW{
		inner: database.NewUnitOfWork(f.db, f.logger),
		wrap: func(s entity.EntityStore) entity.EntityStore {
			return &faultyStore{EntityStore: s, createOpportunity: func(ctx context.Context, _ *entity.Opportunity) error {
				<-ctx.Done()
				return ctx.Err()
			}}
		},
	}
	uc := f.useCase(uow)
	uc.Timeout = 50 * time.Millisecond

	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	})
	assert.Equal(t, usecase.CodeTimeout, usecase.ErrorCode(err))
	assert.True(t, usecase.IsTechnicalError(err))
	f.assertUntouched(t, lead.ID)
}

func TestConvertRetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	var calls atomic.Int32
	uow := wrappedUoW{
		inner: database.NewUnitOfWork(f.db, f.logger),
		wrap: func(s entity.EntityStore) entity.EntityStore {
			return &faultyStore{EntityStore: s, updateLead: func(ctx context.Context, l *entity.Lead, v int64) error {
				if calls.Add(1) == 1 {
					return entity.ErrVersionConflict
				}
				return s.UpdateLead(ctx, l, v)
			}}
		},
	}

	out, err := f.useCase(uow).Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID})
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, f.count(t, "contacts"))
}

func TestConvertGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	uow := wrappedUoW{
		inner: database.NewUnitOfWork(f.db, f.logger),
		wrap: func(s entity.EntityStore) entity.EntityStore {
			return &faultyStore{EntityStore: s, updateLead: func(context.Context, *entity.Lead, int64) error {
				return entity.ErrVersionConflict
			}}
		},
	}
	uc := f.useCase(uow)
	uc.MaxAttempts = 2

	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID})
	assert.Equal(t, usecase.CodeTransaction, usecase.ErrorCode(err))
	assert.ErrorIs(t, err, entity.ErrVersionConflict)
	f.assertUntouched(t, lead.ID)
}

func TestConcurrentConversionsConvertOnce(t *testing.T) {
	f := newFixture(t)
	lead := f.seedLead(t)
	uc := f.txUseCase()

	input := usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateAccount:     true,
		AccountName:       strPtr("Acme Inc"),
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	}

	const workers = 8
	outputs := make([]*usecase.ConvertLeadOutput, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			out, err := uc.Execute(context.Background(), input)
			outputs[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())

	fresh := 0
	for _, out := range outputs {
		if !out.Replayed {
			fresh++
		}
		assert.Equal(t, outputs[0].ContactID, out.ContactID)
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, f.count(t, "contacts"))
	assert.Equal(t, 1, f.count(t, "accounts"))
	assert.Equal(t, 1, f.count(t, "lead_conversions"))
}

func TestSagaConvert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)
	uc := f.useCase(usecase.NewSagaUnitOfWork(f.store, f.logger))

	input := usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateAccount:     true,
		AccountName:       strPtr("Acme Inc"),
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	}
	out, err := uc.Execute(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, out.AccountID)
	require.NotNil(t, out.OpportunityID)

	again, err := uc.Execute(ctx, input)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, 1, f.count(t, "contacts"))
}

func TestSagaCompensatesFailedConversion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	store := &faultyStore{EntityStore: f.store, saveConversion: func(context.Context, *entity.ConversionRecord) error {
		return assert.AnError
	}}
	uc := f.useCase(usecase.NewSagaUnitOfWork(store, f.logger))

	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{
		LeadID:            lead.ID,
		CreateAccount:     true,
		AccountName:       strPtr("Acme Inc"),
		CreateOpportunity: true,
		OpportunityName:   strPtr("Deal"),
	})
	assert.Equal(t, usecase.CodeTransaction, usecase.ErrorCode(err))
	f.assertUntouched(t, lead.ID)

	restored, err := f.store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.Version+2, restored.Version)
}

func TestSagaReleasesLeadLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saga := usecase.NewSagaUnitOfWork(f.store, f.logger)
	uc := f.useCase(saga)

	for range 3 {
		lead := f.seedLead(t)
		_, err := uc.Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID})
		require.NoError(t, err)
	}
	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{LeadID: 999999})
	require.Error(t, err)

	assert.Zero(t, saga.TrackedLocks())
}

func TestAuditRowWrittenAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lead := f.seedLead(t)

	audits := database.NewAuditRepository(f.db.SQL, f.db.Dialect)
	auditor := usecase.NewConversionAuditor(audits, queue.LogPublisher{Logger: f.logger}, f.logger)
	uc := usecase.NewConvertLeadUseCase(database.NewUnitOfWork(f.db, f.logger), auditor, f.logger)

	_, err := uc.Execute(ctx, usecase.ConvertLeadInput{LeadID: lead.ID, ActorID: "user-1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := audits.CountAudits(ctx, lead.ID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
