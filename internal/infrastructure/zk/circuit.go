package zk

import (
	"github.com/consensys/gnark/frontend"
)

// CreditCircuit is the statement a borrower proves: a private score computed
// by the committed model over the declared income and debt ratio. Public
// inputs are declared in the same order as the loan request signals.
type CreditCircuit struct {
	Income           frontend.Variable `gnark:",public"`
	DebtRatio        frontend.Variable `gnark:",public"`
	ModelFingerprint frontend.Variable `gnark:",public"`

	Score frontend.Variable
	// Commitment binds the score to the model and the declared figures.
	Commitment frontend.Variable
}

const (
	MaxDebtRatio = 100
	MaxScore     = 1000
)

func (c *CreditCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.DebtRatio, MaxDebtRatio)
	api.AssertIsLessOrEqual(c.Score, MaxScore)
	api.AssertIsDifferent(c.Income, 0)

	bound := api.Add(api.Mul(c.Score, c.ModelFingerprint), c.Income, c.DebtRatio)
	api.AssertIsEqual(c.Commitment, bound)
	return nil
}
