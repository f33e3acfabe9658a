package pool

import "context"

type Repository interface {
	// Get returns the pool row, creating an empty one on first use.
	Get(ctx context.Context) (*State, error)
	// GetForUpdate is Get with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}
