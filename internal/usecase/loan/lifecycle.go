package loan

import (
	"context"
	"errors"
	"fmt"

	"zkloan/internal/domain/event"
	domain "zkloan/internal/domain/loan"
	"zkloan/internal/domain/payout"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/uow"
	"zkloan/pkg/id"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func activeForUpdate(ctx context.Context, r uow.Repos, borrowerID string) (*domain.Loan, error) {
	l, err := r.Loans.GetActiveByBorrowerIDForUpdate(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// Repay closes the borrower's loan on or before its deadline. The pool keeps
// everything supplied, including any excess over the principal, and the
// collateral goes back to the borrower.
func (u *Usecase) Repay(ctx context.Context, in RepayInput) (*RepayResult, error) {
	var (
		res *RepayResult
		evs []event.Event
		ps  pool.State
	)
	err := u.withBorrower(ctx, in.BorrowerID, func() error {
		now := u.now()
		return u.uow.WithinPoolTx(ctx, func(r uow.Repos, p *pool.State) error {
			l, err := activeForUpdate(ctx, r, in.BorrowerID)
			if err != nil {
				return err
			}
			if in.Amount.Lt(l.Principal) {
				return domain.ErrInsufficientRepayment
			}
			if l.Expired(now) {
				return domain.ErrRepaymentDeadlinePassed
			}

			if err := p.SettleRepayment(in.Amount, l.Collateral); err != nil {
				return err
			}
			if err := l.Close(domain.StateRepaid, now); err != nil {
				return err
			}
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Pool.Save(ctx, p); err != nil {
				return err
			}

			ev, err := event.New(event.KindLoanRepaid, in.BorrowerID, event.LoanRepaid{
				Borrower:           in.BorrowerID,
				Amount:             in.Amount,
				CollateralReturned: l.Collateral,
				Timestamp:          now.Unix(),
			}, now)
			if err != nil {
				return err
			}
			evs = []event.Event{ev}
			if err := r.Events.Append(ctx, evs...); err != nil {
				return err
			}

			if err := r.Payouts.Create(ctx, &payout.Payout{
				PayoutID:    id.NewID32(),
				RecipientID: in.BorrowerID,
				Amount:      l.Collateral,
				Purpose:     payout.PurposeCollateralReturn,
				LoanID:      l.LoanID,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("return collateral: %w", err)
			}

			ps = *p
			res = &RepayResult{Loan: toDTO(l), Supplied: in.Amount, CollateralReturned: l.Collateral}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	u.publish(ctx, evs)
	u.metrics.ObserveLoanClosed(string(domain.StateRepaid))
	u.metrics.ObservePool(ps)
	u.log.Info("loan repaid",
		zap.String("borrower", in.BorrowerID),
		zap.String("loan_id", res.Loan.LoanID),
		zap.Stringer("supplied", in.Amount))
	return res, nil
}

// Liquidate closes an overdue loan and moves its collateral into liquidity.
// Anyone may call it; nothing is paid out.
func (u *Usecase) Liquidate(ctx context.Context, in LiquidateInput) (*LiquidateResult, error) {
	var (
		res *LiquidateResult
		evs []event.Event
		ps  pool.State
	)
	err := u.withBorrower(ctx, in.BorrowerID, func() error {
		now := u.now()
		return u.uow.WithinPoolTx(ctx, func(r uow.Repos, p *pool.State) error {
			l, err := activeForUpdate(ctx, r, in.BorrowerID)
			if err != nil {
				return err
			}
			if !l.Expired(now) {
				return domain.ErrNotYetLiquidatable
			}

			if err := p.Absorb(l.Collateral); err != nil {
				return err
			}
			if err := l.Close(domain.StateLiquidated, now); err != nil {
				return err
			}
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Pool.Save(ctx, p); err != nil {
				return err
			}

			ev, err := event.New(event.KindCollateralLiquidated, in.BorrowerID, event.CollateralLiquidated{
				Borrower:         in.BorrowerID,
				CollateralAmount: l.Collateral,
				Timestamp:        now.Unix(),
			}, now)
			if err != nil {
				return err
			}
			evs = []event.Event{ev}
			if err := r.Events.Append(ctx, evs...); err != nil {
				return err
			}

			ps = *p
			res = &LiquidateResult{Loan: toDTO(l), CollateralAbsorbed: l.Collateral}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	u.publish(ctx, evs)
	u.metrics.ObserveLoanClosed(string(domain.StateLiquidated))
	u.metrics.ObservePool(ps)
	u.log.Info("loan liquidated",
		zap.String("borrower", in.BorrowerID),
		zap.String("caller", in.CallerID),
		zap.String("loan_id", res.Loan.LoanID))
	return res, nil
}
