package loan

import (
	"context"
	"errors"
	"time"

	"zkloan/internal/domain/event"
	"zkloan/internal/domain/lock"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/uow"
	"zkloan/internal/domain/verification"

	"go.uber.org/zap"
)

// Metrics receives outcome counters. Implementations must be cheap and
// non-blocking; they run after commit.
type Metrics interface {
	ObserveDecision(outcome string)
	ObserveLoanClosed(state string)
	ObservePool(p pool.State)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDecision(string)   {}
func (nopMetrics) ObserveLoanClosed(string) {}
func (nopMetrics) ObservePool(pool.State)   {}

// ErrNotConfigured is returned when the usecase was built without a unit of
// work or a locker.
var ErrNotConfigured = errors.New("loan usecase: unit of work and locker are required")

type Deps struct {
	UoW          uow.UnitOfWork
	Locker       lock.Locker
	Verifier     verification.ProofVerifier
	Models       verification.ModelAuthority
	Constraints  verification.ConstraintAuthority
	LoanDuration time.Duration

	// optional
	Publisher event.Publisher
	Metrics   Metrics
	Logger    *zap.Logger
	Clock     func() time.Time
}

type Usecase struct {
	uow         uow.UnitOfWork
	locker      lock.Locker
	verifier    verification.ProofVerifier
	models      verification.ModelAuthority
	constraints verification.ConstraintAuthority
	duration    time.Duration

	pub     event.Publisher
	metrics Metrics
	log     *zap.Logger
	clock   func() time.Time
}

func NewUsecase(d Deps) *Usecase {
	u := &Usecase{
		uow:         d.UoW,
		locker:      d.Locker,
		verifier:    d.Verifier,
		models:      d.Models,
		constraints: d.Constraints,
		duration:    d.LoanDuration,
		pub:         d.Publisher,
		metrics:     d.Metrics,
		log:         d.Logger,
		clock:       d.Clock,
	}
	if u.metrics == nil {
		u.metrics = nopMetrics{}
	}
	if u.log == nil {
		u.log = zap.NewNop()
	}
	if u.clock == nil {
		u.clock = time.Now
	}
	return u
}

// now is second-resolution UTC so deadlines compare the same way before and
// after a database round trip.
func (u *Usecase) now() time.Time { return u.clock().UTC().Truncate(time.Second) }

// withBorrower runs fn while holding the borrower's lease.
func (u *Usecase) withBorrower(ctx context.Context, borrowerID string, fn func() error) error {
	if u.uow == nil || u.locker == nil {
		return ErrNotConfigured
	}
	release, err := u.locker.Acquire(ctx, lock.BorrowerKey(borrowerID))
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// publish fans committed events out. The outbox rows are already durable, so
// a failure here is logged and not returned.
func (u *Usecase) publish(ctx context.Context, evs []event.Event) {
	if u.pub == nil || len(evs) == 0 {
		return
	}
	if err := u.pub.Publish(ctx, evs...); err != nil {
		u.log.Warn("publish events", zap.Error(err), zap.Int("count", len(evs)))
	}
}
