package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkloan/internal/domain/event"
	domain "zkloan/internal/domain/loan"
	"zkloan/internal/domain/payout"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/proof"
	"zkloan/internal/domain/uow"
	"zkloan/internal/domain/verification"
	"zkloan/pkg/id"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// request carries one loan request through the stages.
type request struct {
	in        RequestInput
	repos     uow.Repos
	now       time.Time
	fp        proof.Fingerprint
	income    *uint256.Int
	debtRatio *uint256.Int
	model     *uint256.Int
	ratio     uint64
}

// stage is one check of the pipeline. ok=false rejects with reject; an error
// aborts the whole request and rolls back.
type stage struct {
	name   string
	reject Reason
	check  func(u *Usecase, ctx context.Context, rq *request) (ok bool, err error)
}

// stages run in this order and no other.
var stages = [5]stage{
	{"anti-replay", ReasonReplay, (*Usecase).checkReplay},
	{"proof", ReasonInvalidProof, (*Usecase).checkProof},
	{"model", ReasonModelMismatch, (*Usecase).checkModel},
	{"constraints", ReasonFailsConstraints, (*Usecase).checkConstraints},
	{"collateral", ReasonInsufficientCollateral, (*Usecase).checkCollateral},
}

// checkReplay records the fingerprint as soon as it is seen, before the proof
// is known to be valid.
func (u *Usecase) checkReplay(ctx context.Context, rq *request) (bool, error) {
	used, err := rq.repos.Proofs.IsUsed(ctx, rq.fp)
	if err != nil {
		return false, err
	}
	if used {
		return false, nil
	}
	return true, rq.repos.Proofs.MarkUsed(ctx, &proof.UsedProof{
		Fingerprint: rq.fp.String(),
		BorrowerID:  rq.in.BorrowerID,
		UsedAt:      rq.now,
	})
}

func (u *Usecase) checkProof(ctx context.Context, rq *request) (bool, error) {
	return u.verifier.Verify(ctx, rq.in.Proof, rq.in.Signals)
}

func (u *Usecase) checkModel(ctx context.Context, rq *request) (bool, error) {
	return u.models.IsCommitted(ctx, rq.model)
}

func (u *Usecase) checkConstraints(ctx context.Context, rq *request) (bool, error) {
	return u.constraints.CheckEligibility(ctx, rq.income, rq.debtRatio, rq.in.CreditScore)
}

func (u *Usecase) checkCollateral(ctx context.Context, rq *request) (bool, error) {
	ratio, err := u.constraints.RequiredCollateralRatio(ctx, rq.in.CreditScore)
	if err != nil {
		return false, err
	}
	required, err := rq.in.Amount.MulDiv(ratio, 100)
	if err != nil {
		return false, err
	}
	rq.ratio = ratio
	return !rq.in.Collateral.Lt(required), nil
}

// parseSignals reads every signal, extras included, so the fingerprint can be
// taken over values rather than the client's spelling of them.
func parseSignals(signals []string) ([]*uint256.Int, error) {
	if len(signals) < verification.RequiredSignals {
		return nil, domain.ErrMalformedSignals
	}
	vals, err := verification.ParseSignals(signals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSignals, err)
	}
	return vals, nil
}

// RequestLoan checks the preconditions, runs the stages in order and, if all
// pass, opens the loan and disburses the principal. Precondition failures are
// returned as errors and change nothing. A rejection commits the fingerprint
// and the rejection events. Any error rolls back every write of the call.
func (u *Usecase) RequestLoan(ctx context.Context, in RequestInput) (*Decision, error) {
	vals, err := parseSignals(in.Signals)
	if err != nil {
		return nil, err
	}
	if in.Amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}

	var (
		dec *Decision
		evs []event.Event
		ps  pool.State
	)
	err = u.withBorrower(ctx, in.BorrowerID, func() error {
		now := u.now()
		return u.uow.WithinPoolTx(ctx, func(r uow.Repos, p *pool.State) error {
			dec, evs = nil, nil

			switch _, err := r.Loans.GetActiveByBorrowerID(ctx, in.BorrowerID); {
			case err == nil:
				return domain.ErrActiveLoanExists
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			if !p.CanDisburse(in.Amount) {
				return pool.ErrInsufficientLiquidity
			}

			rq := &request{
				in:        in,
				repos:     r,
				now:       now,
				fp:        proof.Compute(in.Proof, vals),
				income:    vals[verification.SignalIncome],
				debtRatio: vals[verification.SignalDebtRatio],
				model:     vals[verification.SignalModelFingerprint],
			}
			for _, st := range stages {
				ok, err := st.check(u, ctx, rq)
				if err != nil {
					return fmt.Errorf("%s stage: %w", st.name, err)
				}
				if !ok {
					dec = &Decision{Reason: st.reject, Fingerprint: rq.fp.String(), DecidedAt: now}
					if evs, err = rejectionEvents(rq, st.reject); err != nil {
						return err
					}
					return r.Events.Append(ctx, evs...)
				}
			}

			l, err := u.open(ctx, rq, p)
			if err != nil {
				return err
			}
			ev, err := event.New(event.KindLoanApproved, in.BorrowerID, event.LoanApproved{
				Borrower:    in.BorrowerID,
				Amount:      l.Principal,
				Collateral:  l.Collateral,
				Ratio:       l.CollateralRatio,
				CreditScore: l.CreditScore,
				Timestamp:   now.Unix(),
			}, now)
			if err != nil {
				return err
			}
			evs = []event.Event{ev}
			if err := r.Events.Append(ctx, evs...); err != nil {
				return err
			}

			// the transfer is the last write of the unit
			if err := r.Payouts.Create(ctx, &payout.Payout{
				PayoutID:    id.NewID32(),
				RecipientID: in.BorrowerID,
				Amount:      l.Principal,
				Purpose:     payout.PurposeDisbursement,
				LoanID:      l.LoanID,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("disburse principal: %w", err)
			}

			ps = *p
			dec = &Decision{Approved: true, Fingerprint: rq.fp.String(), Ratio: rq.ratio, Loan: toDTO(l), DecidedAt: now}
			return nil
		})
	})
	if err != nil {
		u.log.Info("loan request failed", zap.String("borrower", in.BorrowerID), zap.Error(err))
		return nil, err
	}

	u.publish(ctx, evs)
	if dec.Approved {
		u.metrics.ObserveDecision("approved")
		u.metrics.ObservePool(ps)
		u.log.Info("loan approved",
			zap.String("borrower", in.BorrowerID),
			zap.String("loan_id", dec.Loan.LoanID),
			zap.Stringer("principal", in.Amount),
			zap.Uint64("ratio", dec.Ratio))
	} else {
		u.metrics.ObserveDecision(string(dec.Reason))
		u.log.Info("loan rejected",
			zap.String("borrower", in.BorrowerID),
			zap.String("reason", string(dec.Reason)),
			zap.String("fingerprint", dec.Fingerprint))
	}
	return dec, nil
}

// open books the approved loan against the locked pool row.
func (u *Usecase) open(ctx context.Context, rq *request, p *pool.State) (*domain.Loan, error) {
	borrower := rq.in.BorrowerID
	l := &domain.Loan{
		LoanID:            id.NewID32(),
		BorrowerID:        borrower,
		ActiveBorrower:    &borrower,
		Principal:         rq.in.Amount,
		Collateral:        rq.in.Collateral,
		CollateralRatio:   rq.ratio,
		CreditScore:       rq.in.CreditScore,
		ProofFingerprint:  rq.fp.String(),
		State:             domain.StateActive,
		RepaymentDeadline: rq.now.Add(u.duration),
		CreatedAt:         rq.now,
	}
	if err := rq.repos.Loans.Create(ctx, l); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrActiveLoanExists
		}
		return nil, err
	}
	if err := p.Disburse(l.Principal, l.Collateral); err != nil {
		return nil, err
	}
	if err := rq.repos.Pool.Save(ctx, p); err != nil {
		return nil, err
	}
	return l, nil
}

func rejectionEvents(rq *request, reason Reason) ([]event.Event, error) {
	var out []event.Event
	if reason == ReasonReplay {
		ev, err := event.New(event.KindReplayAttempt, rq.in.BorrowerID, event.ReplayAttempt{
			Borrower:    rq.in.BorrowerID,
			Fingerprint: rq.fp.String(),
		}, rq.now)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	ev, err := event.New(event.KindLoanRejected, rq.in.BorrowerID, event.LoanRejected{
		Borrower:  rq.in.BorrowerID,
		Reason:    string(reason),
		Timestamp: rq.now.Unix(),
	}, rq.now)
	if err != nil {
		return nil, err
	}
	return append(out, ev), nil
}
