package proofmock

import (
	"context"

	domain "zkloan/internal/domain/proof"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	IsUsedFn   func(ctx context.Context, fp domain.Fingerprint) (bool, error)
	MarkUsedFn func(ctx context.Context, p *domain.UsedProof) error
}

func (m *Repo) IsUsed(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	if m.IsUsedFn != nil {
		return m.IsUsedFn(ctx, fp)
	}
	return false, context.Canceled
}

func (m *Repo) MarkUsed(ctx context.Context, p *domain.UsedProof) error {
	if m.MarkUsedFn != nil {
		return m.MarkUsedFn(ctx, p)
	}
	return nil
}
