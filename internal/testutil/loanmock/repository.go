package loanmock

import (
	"context"

	domain "zkloan/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return context.Canceled so a missing stub fails loudly.
type Repo struct {
	CreateFn                         func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn                    func(ctx context.Context, loanID string) (*domain.Loan, error)
	SaveFn                           func(ctx context.Context, l *domain.Loan) error
	GetActiveByBorrowerIDFn          func(ctx context.Context, borrowerID string) (*domain.Loan, error)
	GetActiveByBorrowerIDForUpdateFn func(ctx context.Context, borrowerID string) (*domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetActiveByBorrowerID(ctx context.Context, borrowerID string) (*domain.Loan, error) {
	if m.GetActiveByBorrowerIDFn != nil {
		return m.GetActiveByBorrowerIDFn(ctx, borrowerID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetActiveByBorrowerIDForUpdate(ctx context.Context, borrowerID string) (*domain.Loan, error) {
	if m.GetActiveByBorrowerIDForUpdateFn != nil {
		return m.GetActiveByBorrowerIDForUpdateFn(ctx, borrowerID)
	}
	return nil, context.Canceled
}
