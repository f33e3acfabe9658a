package mysql

import (
	"context"
	"errors"

	proofDomain "zkloan/internal/domain/proof"

	"gorm.io/gorm"
)

type ProofRepository struct{ db *gorm.DB }

func NewProofRepository(db *gorm.DB) *ProofRepository { return &ProofRepository{db: db} }

func (r *ProofRepository) IsUsed(ctx context.Context, fp proofDomain.Fingerprint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&proofDomain.UsedProof{}).
		Where("fingerprint = ?", fp.String()).
		Count(&n).Error
	return n > 0, err
}

// MarkUsed relies on the primary key; the connection must be opened with
// TranslateError so duplicates surface as gorm.ErrDuplicatedKey.
func (r *ProofRepository) MarkUsed(ctx context.Context, p *proofDomain.UsedProof) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return proofDomain.ErrAlreadyUsed
	}
	return err
}
