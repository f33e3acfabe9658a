package uow

import (
	"context"

	"zkloan/internal/domain/event"
	"zkloan/internal/domain/loan"
	"zkloan/internal/domain/payout"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/proof"
)

// Repos are bound to one transaction.
type Repos struct {
	Loans   loan.Repository
	Proofs  proof.Repository
	Pool    pool.Repository
	Events  event.Repository
	Payouts payout.Repository
}

type UnitOfWork interface {
	// WithinTx commits when fn returns nil and rolls back every write otherwise.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinPoolTx locks the pool row first, then passes it in.
	WithinPoolTx(ctx context.Context, fn func(r Repos, p *pool.State) error) error
}
