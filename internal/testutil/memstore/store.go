// Package memstore is an in-memory uow.UnitOfWork for usecase tests. Every
// transaction runs under one mutex against a snapshot that is restored when
// the transaction body fails, so rollback behaves like the gorm store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"zkloan/internal/domain/event"
	"zkloan/internal/domain/loan"
	"zkloan/internal/domain/payout"
	"zkloan/internal/domain/pool"
	"zkloan/internal/domain/proof"
	"zkloan/internal/domain/uow"

	"gorm.io/gorm"
)

var _ uow.UnitOfWork = (*Store)(nil)

type data struct {
	loans   []loan.Loan
	nextID  uint64
	used    map[string]proof.UsedProof
	pool    pool.State
	events  []event.Event
	payouts []payout.Payout
}

func (d data) clone() data {
	out := d
	out.loans = append([]loan.Loan(nil), d.loans...)
	out.used = make(map[string]proof.UsedProof, len(d.used))
	for k, v := range d.used {
		out.used[k] = v
	}
	out.events = append([]event.Event(nil), d.events...)
	out.payouts = append([]payout.Payout(nil), d.payouts...)
	return out
}

type Store struct {
	mu sync.Mutex
	d  data

	// PayoutErr, when set, fails every payout write.
	PayoutErr error
	// Commits counts transactions that committed.
	Commits int
}

func New() *Store {
	return &Store{d: data{used: map[string]proof.UsedProof{}, pool: pool.State{ID: pool.SingletonID}}}
}

func (s *Store) repos() uow.Repos {
	return uow.Repos{
		Loans:   loanRepo{s},
		Proofs:  proofRepo{s},
		Pool:    poolRepo{s},
		Events:  eventRepo{s},
		Payouts: payoutRepo{s},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.d.clone()
	if err := fn(s.repos()); err != nil {
		s.d = snap
		return err
	}
	s.Commits++
	return nil
}

func (s *Store) WithinPoolTx(ctx context.Context, fn func(r uow.Repos, p *pool.State) error) error {
	return s.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pool.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		return fn(r, p)
	})
}

// Inspection helpers, safe outside transactions.

func (s *Store) Pool() pool.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.pool
}

func (s *Store) SetPool(p pool.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = pool.SingletonID
	s.d.pool = p
}

func (s *Store) Loans() []loan.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]loan.Loan(nil), s.d.loans...)
}

func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.d.events...)
}

func (s *Store) EventKinds() []event.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Kind, 0, len(s.d.events))
	for _, e := range s.d.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *Store) Payouts() []payout.Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]payout.Payout(nil), s.d.payouts...)
}

func (s *Store) IsUsed(fp proof.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.d.used[string(fp)]
	return ok
}

// UsedCount is the number of consumed fingerprints.
func (s *Store) UsedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.used)
}

// ----- repositories bound to the open transaction -----

type loanRepo struct{ s *Store }

func (r loanRepo) Create(_ context.Context, l *loan.Loan) error {
	if l.ActiveBorrower != nil {
		for _, x := range r.s.d.loans {
			if x.ActiveBorrower != nil && *x.ActiveBorrower == *l.ActiveBorrower {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.s.d.nextID++
	l.ID = r.s.d.nextID
	r.s.d.loans = append(r.s.d.loans, *l)
	return nil
}

func (r loanRepo) Save(_ context.Context, l *loan.Loan) error {
	for i := range r.s.d.loans {
		if r.s.d.loans[i].ID == l.ID {
			r.s.d.loans[i] = *l
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r loanRepo) GetByLoanID(_ context.Context, loanID string) (*loan.Loan, error) {
	for _, l := range r.s.d.loans {
		if l.LoanID == loanID {
			out := l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r loanRepo) GetActiveByBorrowerID(_ context.Context, borrowerID string) (*loan.Loan, error) {
	for _, l := range r.s.d.loans {
		if l.BorrowerID == borrowerID && l.State == loan.StateActive {
			out := l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r loanRepo) GetActiveByBorrowerIDForUpdate(ctx context.Context, borrowerID string) (*loan.Loan, error) {
	return r.GetActiveByBorrowerID(ctx, borrowerID)
}

type proofRepo struct{ s *Store }

func (r proofRepo) IsUsed(_ context.Context, fp proof.Fingerprint) (bool, error) {
	_, ok := r.s.d.used[string(fp)]
	return ok, nil
}

func (r proofRepo) MarkUsed(_ context.Context, p *proof.UsedProof) error {
	if _, ok := r.s.d.used[p.Fingerprint]; ok {
		return proof.ErrAlreadyUsed
	}
	r.s.d.used[p.Fingerprint] = *p
	return nil
}

type poolRepo struct{ s *Store }

func (r poolRepo) Get(context.Context) (*pool.State, error) {
	out := r.s.d.pool
	return &out, nil
}

func (r poolRepo) GetForUpdate(ctx context.Context) (*pool.State, error) { return r.Get(ctx) }

func (r poolRepo) Save(_ context.Context, p *pool.State) error {
	out := *p
	out.ID = pool.SingletonID
	r.s.d.pool = out
	return nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Append(_ context.Context, evs ...event.Event) error {
	r.s.d.events = append(r.s.d.events, evs...)
	return nil
}

func (r eventRepo) ListBySubject(_ context.Context, subject string, limit int) ([]event.Event, error) {
	var out []event.Event
	for _, e := range r.s.d.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type payoutRepo struct{ s *Store }

func (r payoutRepo) Create(_ context.Context, p *payout.Payout) error {
	if r.s.PayoutErr != nil {
		return r.s.PayoutErr
	}
	p.ID = uint64(len(r.s.d.payouts) + 1)
	r.s.d.payouts = append(r.s.d.payouts, *p)
	return nil
}

func (r payoutRepo) ListByRecipient(_ context.Context, recipientID string) ([]payout.Payout, error) {
	var out []payout.Payout
	for _, p := range r.s.d.payouts {
		if p.RecipientID == recipientID {
			out = append(out, p)
		}
	}
	return out, nil
}
