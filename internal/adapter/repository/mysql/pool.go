package mysql

import (
	"context"

	poolDomain "zkloan/internal/domain/pool"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PoolRepository struct{ db *gorm.DB }

func NewPoolRepository(db *gorm.DB) *PoolRepository { return &PoolRepository{db: db} }

func (r *PoolRepository) Get(ctx context.Context) (*poolDomain.State, error) {
	var out poolDomain.State
	res := r.db.WithContext(ctx).Where("id = ?", poolDomain.SingletonID).First(&out)
	return &out, res.Error
}

func (r *PoolRepository) GetForUpdate(ctx context.Context) (*poolDomain.State, error) {
	var out poolDomain.State
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", poolDomain.SingletonID).
		First(&out)
	return &out, res.Error
}

func (r *PoolRepository) Save(ctx context.Context, s *poolDomain.State) error {
	s.ID = poolDomain.SingletonID
	return r.db.WithContext(ctx).Save(s).Error
}
