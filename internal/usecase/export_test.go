package usecase

// TrackedLocks reports how many per-lead saga locks are currently held or
// awaited.
func (u *SagaUnitOfWork) TrackedLocks() int { return u.trackedLocks() }
