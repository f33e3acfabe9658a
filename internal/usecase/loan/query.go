package loan

import (
	"context"
	"errors"

	domain "zkloan/internal/domain/loan"
	"zkloan/internal/domain/proof"
	"zkloan/internal/domain/uow"

	"gorm.io/gorm"
)

const defaultActivityLimit = 50

// GetLoan returns the borrower's active loan or domain.ErrNotFound.
func (u *Usecase) GetLoan(ctx context.Context, borrowerID string) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetActiveByBorrowerID(ctx, borrowerID)
		if err != nil {
			return err
		}
		dto = toDTO(l)
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return dto, err
}

// GetLoanByID returns any loan, active or closed, by its public id.
func (u *Usecase) GetLoanByID(ctx context.Context, loanID string) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		dto = toDTO(l)
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return dto, err
}

func (u *Usecase) IsProofUsed(ctx context.Context, fp proof.Fingerprint) (bool, error) {
	var used bool
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		used, err = r.Proofs.IsUsed(ctx, fp)
		return err
	})
	return used, err
}

// Activity lists the newest events about an account and every payout to it.
func (u *Usecase) Activity(ctx context.Context, accountID string, limit int) (*ActivityDTO, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	out := &ActivityDTO{AccountID: accountID, Events: []EventDTO{}, Payouts: []PayoutDTO{}}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		evs, err := r.Events.ListBySubject(ctx, accountID, limit)
		if err != nil {
			return err
		}
		for _, e := range evs {
			out.Events = append(out.Events, EventDTO{ID: e.ID, Kind: string(e.Kind), Payload: e.Payload, CreatedAt: e.CreatedAt})
		}
		pos, err := r.Payouts.ListByRecipient(ctx, accountID)
		if err != nil {
			return err
		}
		for _, p := range pos {
			out.Payouts = append(out.Payouts, PayoutDTO{PayoutID: p.PayoutID, Amount: p.Amount, Purpose: string(p.Purpose), LoanID: p.LoanID, CreatedAt: p.CreatedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
