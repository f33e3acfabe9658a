package proof

import "context"

// Repository is the replay ledger. Callers check IsUsed before MarkUsed;
// marking a used fingerprint fails with ErrAlreadyUsed.
type Repository interface {
	IsUsed(ctx context.Context, fp Fingerprint) (bool, error)
	MarkUsed(ctx context.Context, p *UsedProof) error
}
