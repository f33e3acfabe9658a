package mysql

import (
	"context"

	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func bind(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:   &LoanRepository{db: tx},
		Proofs:  &ProofRepository{db: tx},
		Pool:    &PoolRepository{db: tx},
		Events:  &EventRepository{db: tx},
		Payouts: &PayoutRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(bind(tx))
	})
}

func (u *GormUoW) WithinPoolTx(ctx context.Context, fn func(r uow.Repos, p *pool.State) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := bind(tx)
		// every mutation goes through the pool row lock, which serializes
		// counter updates across borrowers
		p, err := r.Pool.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		return fn(r, p)
	})
}
