package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	Save(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetActiveByBorrowerID returns gorm.ErrRecordNotFound when the borrower has no active loan.
	GetActiveByBorrowerID(ctx context.Context, borrowerID string) (*Loan, error)
	GetActiveByBorrowerIDForUpdate(ctx context.Context, borrowerID string) (*Loan, error)
}
