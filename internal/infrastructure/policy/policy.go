// Package policy serves the committed model fingerprint and the credit rules
// from a YAML file. The file can be reloaded at runtime; readers always see
// one complete version.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"zkloan/internal/domain/verification"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

var (
	_ verification.ModelAuthority      = (*Registry)(nil)
	_ verification.ConstraintAuthority = (*Registry)(nil)
)

var (
	ErrNoModel = errors.New("policy: no committed model fingerprint")
	ErrNoTier  = errors.New("policy: no collateral tier covers credit score")
)

type Tier struct {
	MinScore uint64 `yaml:"min_score"`
	Ratio    uint64 `yaml:"ratio"`
}

type File struct {
	Model struct {
		Fingerprint string `yaml:"fingerprint"`
		Version     string `yaml:"version"`
	} `yaml:"model"`
	Eligibility struct {
		MinIncome      uint64 `yaml:"min_income"`
		MaxDebtRatio   uint64 `yaml:"max_debt_ratio"`
		MinCreditScore uint64 `yaml:"min_credit_score"`
		MaxCreditScore uint64 `yaml:"max_credit_score"`
	} `yaml:"eligibility"`
	Collateral struct {
		Tiers []Tier `yaml:"tiers"`
	} `yaml:"collateral"`
}

// Policy is a validated, immutable File.
type Policy struct {
	Version        string
	Model          *uint256.Int
	MinIncome      *uint256.Int
	MaxDebtRatio   *uint256.Int
	MinCreditScore uint64
	MaxCreditScore uint64
	// Tiers sorted by MinScore, highest first.
	Tiers []Tier
}

func Parse(b []byte) (*Policy, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if f.Model.Fingerprint == "" {
		return nil, ErrNoModel
	}
	model, err := verification.ParseSignal(f.Model.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("policy: model fingerprint: %w", err)
	}
	if len(f.Collateral.Tiers) == 0 {
		return nil, errors.New("policy: collateral tiers are empty")
	}
	tiers := append([]Tier(nil), f.Collateral.Tiers...)
	for _, t := range tiers {
		if t.Ratio < 100 {
			return nil, fmt.Errorf("policy: tier min_score=%d ratio %d is below 100", t.MinScore, t.Ratio)
		}
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinScore > tiers[j].MinScore })

	maxScore := f.Eligibility.MaxCreditScore
	if maxScore == 0 {
		maxScore = 1000
	}
	if f.Eligibility.MinCreditScore > maxScore {
		return nil, fmt.Errorf("policy: min_credit_score %d above max %d", f.Eligibility.MinCreditScore, maxScore)
	}
	return &Policy{
		Version:        f.Model.Version,
		Model:          model,
		MinIncome:      uint256.NewInt(f.Eligibility.MinIncome),
		MaxDebtRatio:   uint256.NewInt(f.Eligibility.MaxDebtRatio),
		MinCreditScore: f.Eligibility.MinCreditScore,
		MaxCreditScore: maxScore,
		Tiers:          tiers,
	}, nil
}

// Registry holds the current Policy.
type Registry struct {
	path string
	cur  atomic.Pointer[Policy]
}

func NewRegistry(p *Policy) *Registry {
	r := &Registry{}
	r.cur.Store(p)
	return r
}

func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the file. On error the previous policy stays in force.
func (r *Registry) Reload() error {
	if r.path == "" {
		return errors.New("policy: registry has no backing file")
	}
	b, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	p, err := Parse(b)
	if err != nil {
		return err
	}
	r.cur.Store(p)
	return nil
}

func (r *Registry) Current() *Policy { return r.cur.Load() }

func (r *Registry) IsCommitted(_ context.Context, fp *uint256.Int) (bool, error) {
	return fp != nil && fp.Eq(r.Current().Model), nil
}

func (r *Registry) CheckEligibility(_ context.Context, income, debtRatio *uint256.Int, score uint64) (bool, error) {
	p := r.Current()
	switch {
	case income.Lt(p.MinIncome):
		return false, nil
	case debtRatio.Gt(p.MaxDebtRatio):
		return false, nil
	case score < p.MinCreditScore || score > p.MaxCreditScore:
		return false, nil
	}
	return true, nil
}

func (r *Registry) RequiredCollateralRatio(_ context.Context, score uint64) (uint64, error) {
	for _, t := range r.Current().Tiers {
		if score >= t.MinScore {
			return t.Ratio, nil
		}
	}
	return 0, fmt.Errorf("score %d: %w", score, ErrNoTier)
}
