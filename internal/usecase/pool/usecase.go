package pool

import (
	"context"
	"time"

	"zkloan/internal/domain/event"
	domain "zkloan/internal/domain/pool"
	"zkloan/internal/domain/uow"
	"zkloan/pkg/amount"

	"go.uber.org/zap"
)

type Metrics interface {
	ObservePool(p domain.State)
}

type Policy struct {
	LoanDuration       time.Duration
	MinSecurityDeposit amount.Amount
	AssetDecimals      int32
}

type Usecase struct {
	uow     uow.UnitOfWork
	policy  Policy
	pub     event.Publisher
	metrics Metrics
	log     *zap.Logger
	clock   func() time.Time
}

// NewUsecase: pub, m and log may be nil.
func NewUsecase(tx uow.UnitOfWork, policy Policy, pub event.Publisher, m Metrics, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{uow: tx, policy: policy, pub: pub, metrics: m, log: log, clock: time.Now}
}

// Deposit adds LP liquidity. A zero amount is rejected.
func (u *Usecase) Deposit(ctx context.Context, in DepositInput) (*StatsDTO, error) {
	if in.Amount.IsZero() {
		return nil, domain.ErrZeroDeposit
	}
	return u.credit(ctx, in)
}

// ReceiveUnsolicited books a transfer that arrived outside Deposit. It has
// the same effect as a deposit, except that zero is a no-op.
func (u *Usecase) ReceiveUnsolicited(ctx context.Context, in DepositInput) (*StatsDTO, error) {
	if in.Amount.IsZero() {
		return u.Stats(ctx)
	}
	return u.credit(ctx, in)
}

func (u *Usecase) credit(ctx context.Context, in DepositInput) (*StatsDTO, error) {
	now := u.clock().UTC().Truncate(time.Second)
	var (
		out *StatsDTO
		ev  event.Event
		ps  domain.State
	)
	err := u.uow.WithinPoolTx(ctx, func(r uow.Repos, p *domain.State) error {
		if err := p.Deposit(in.Amount); err != nil {
			return err
		}
		if err := r.Pool.Save(ctx, p); err != nil {
			return err
		}
		var err error
		ev, err = event.New(event.KindLiquidityDeposited, in.DepositorID, event.LiquidityDeposited{
			Depositor: in.DepositorID,
			Amount:    in.Amount,
		}, now)
		if err != nil {
			return err
		}
		if err := r.Events.Append(ctx, ev); err != nil {
			return err
		}
		ps = *p
		out, err = toStats(p)
		return err
	})
	if err != nil {
		return nil, err
	}

	if u.pub != nil {
		if err := u.pub.Publish(ctx, ev); err != nil {
			u.log.Warn("publish events", zap.Error(err))
		}
	}
	if u.metrics != nil {
		u.metrics.ObservePool(ps)
	}
	u.log.Info("liquidity deposited", zap.String("depositor", in.DepositorID), zap.Stringer("amount", in.Amount))
	return out, nil
}

func (u *Usecase) Stats(ctx context.Context) (*StatsDTO, error) {
	var out *StatsDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pool.Get(ctx)
		if err != nil {
			return err
		}
		out, err = toStats(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Usecase) Policy() PolicyDTO {
	return PolicyDTO{
		LoanDuration:       u.policy.LoanDuration.String(),
		LoanDurationSecs:   int64(u.policy.LoanDuration / time.Second),
		MinSecurityDeposit: u.policy.MinSecurityDeposit,
		AssetDecimals:      u.policy.AssetDecimals,
	}
}

func toStats(p *domain.State) (*StatsDTO, error) {
	locked, err := p.TotalValueLocked.Sub(p.Liquidity)
	if err != nil {
		return nil, domain.ErrInvariantViolated
	}
	return &StatsDTO{
		TotalValueLocked: p.TotalValueLocked,
		Liquidity:        p.Liquidity,
		Locked:           locked,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}
