package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// Transaction is a saga: each successful step leaves behind a compensation,
// and Rollback runs them newest first.
type Transaction struct {
	compensations []Compensation
	logger        *slog.Logger
}

type Compensation struct {
	Name string
	Fn   func(context.Context) error
}

func NewTransaction(logger *slog.Logger) *Transaction {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transaction{logger: logger}
}

// Step runs op and, if it succeeds, remembers undo. A nil undo means the
// step has nothing to revert.
func (t *Transaction) Step(ctx context.Context, name string, op, undo func(context.Context) error) error {
	if err := op(ctx); err != nil {
		return fmt.Errorf("operation '%s' failed: %w", name, err)
	}
	if undo != nil {
		t.compensations = append(t.compensations, Compensation{Name: name, Fn: undo})
	}
	return nil
}

// Rollback runs every compensation even when some fail.
func (t *Transaction) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(t.compensations) - 1; i >= 0; i-- {
		comp := t.compensations[i]
		if err := comp.Fn(ctx); err != nil {
			t.logger.Error("compensation failed, manual cleanup needed",
				slog.String("step", comp.Name),
				slog.Any("err", err))
			errs = append(errs, fmt.Errorf("compensating '%s': %w", comp.Name, err))
		}
	}
	t.compensations = nil
	return errors.Join(errs...)
}

// Len is the number of pending compensations.
func (t *Transaction) Len() int {
	return len(t.compensations)
}

// SagaUnitOfWork runs a conversion against a store that cannot span one
// ACID transaction. Writes go straight to the store; on failure they are
// undone in reverse order. Same-lead conversions are serialized in process,
// and across processes the lead version check rejects the loser, whose
// writes are then compensated.
type SagaUnitOfWork struct {
	Store  entity.EntityStore
	Logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*leadLock
}

// leadLock is dropped from SagaUnitOfWork.locks once no conversion holds or
// waits on it.
type leadLock struct {
	sync.Mutex
	refs int
}

func NewSagaUnitOfWork(store entity.EntityStore, logger *slog.Logger) *SagaUnitOfWork {
	return &SagaUnitOfWork{Store: store, Logger: logger, locks: map[int64]*leadLock{}}
}

func (u *SagaUnitOfWork) WithinTx(ctx context.Context, fn func(context.Context, entity.EntityStore) error) error {
	txn := NewTransaction(u.Logger)
	store := &sagaStore{EntityStore: u.Store, txn: txn, uow: u, snapshots: map[int64]entity.Lead{}, held: map[int64]*leadLock{}}
	defer store.unlockAll()

	err := fn(ctx, store)
	if err == nil {
		return nil
	}
	// Compensate even if ctx has already expired.
	if rbErr := txn.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		return fmt.Errorf("%w (compensation: %v)", err, rbErr)
	}
	return err
}

func (u *SagaUnitOfWork) lockLead(id int64) *leadLock {
	u.mu.Lock()
	if u.locks == nil {
		u.locks = map[int64]*leadLock{}
	}
	l, ok := u.locks[id]
	if !ok {
		l = &leadLock{}
		u.locks[id] = l
	}
	l.refs++
	u.mu.Unlock()

	l.Lock()
	return l
}

func (u *SagaUnitOfWork) unlockLead(id int64, l *leadLock) {
	l.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(u.locks, id)
	}
}

func (u *SagaUnitOfWork) trackedLocks() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}

// sagaStore records a compensation for every write it forwards.
type sagaStore struct {
	entity.EntityStore
	txn       *Transaction
	uow       *SagaUnitOfWork
	snapshots map[int64]entity.Lead
	held      map[int64]*leadLock
}

func (s *sagaStore) unlockAll() {
	for id, l := range s.held {
		s.uow.unlockLead(id, l)
	}
	clear(s.held)
}

func (s *sagaStore) GetLead(ctx context.Context, id int64) (*entity.Lead, error) {
	if _, locked := s.held[id]; !locked {
		s.held[id] = s.uow.lockLead(id)
	}
	lead, err := s.EntityStore.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	s.snapshots[id] = *lead
	return lead, nil
}

func (s *sagaStore) CreateContact(ctx context.Context, c *entity.Contact) error {
	return s.txn.Step(ctx, "create_contact",
		func(ctx context.Context) error { return s.EntityStore.CreateContact(ctx, c) },
		func(ctx context.Context) error { return s.EntityStore.DeleteContact(ctx, c.ID) })
}

func (s *sagaStore) CreateAccount(ctx context.Context, a *entity.Account) error {
	return s.txn.Step(ctx, "create_account",
		func(ctx context.Context) error { return s.EntityStore.CreateAccount(ctx, a) },
		func(ctx context.Context) error { return s.EntityStore.DeleteAccount(ctx, a.ID) })
}

func (s *sagaStore) CreateOpportunity(ctx context.Context, o *entity.Opportunity) error {
	return s.txn.Step(ctx, "create_opportunity",
		func(ctx context.Context) error { return s.EntityStore.CreateOpportunity(ctx, o) },
		func(ctx context.Context) error { return s.EntityStore.DeleteOpportunity(ctx, o.ID) })
}

func (s *sagaStore) SaveConversion(ctx context.Context, r *entity.ConversionRecord) error {
	return s.txn.Step(ctx, "save_conversion",
		func(ctx context.Context) error { return s.EntityStore.SaveConversion(ctx, r) },
		func(ctx context.Context) error { return s.EntityStore.DeleteConversion(ctx, r.LeadID) })
}

// UpdateLead restores the loaded snapshot on rollback. The restore bumps the
// version again so no writer can mistake it for the pre-conversion row.
func (s *sagaStore) UpdateLead(ctx context.Context, lead *entity.Lead, expectedVersion int64) error {
	before, ok := s.snapshots[lead.ID]
	return s.txn.Step(ctx, "update_lead",
		func(ctx context.Context) error { return s.EntityStore.UpdateLead(ctx, lead, expectedVersion) },
		func(ctx context.Context) error {
			if !ok {
				return fmt.Errorf("no snapshot for lead %d", lead.ID)
			}
			restore := before
			restore.Version = lead.Version + 1
			return s.EntityStore.UpdateLead(ctx, &restore, lead.Version)
		})
}
