package mysql

import (
	"context"

	payoutDomain "zkloan/internal/domain/payout"

	"gorm.io/gorm"
)

type PayoutRepository struct{ db *gorm.DB }

func NewPayoutRepository(db *gorm.DB) *PayoutRepository { return &PayoutRepository{db: db} }

func (r *PayoutRepository) Create(ctx context.Context, p *payoutDomain.Payout) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PayoutRepository) ListByRecipient(ctx context.Context, recipientID string) ([]payoutDomain.Payout, error) {
	var out []payoutDomain.Payout
	res := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("id ASC").Find(&out)
	return out, res.Error
}
