package zk

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Keys is the output of a local trusted setup. Production keys come from a
// ceremony; these are for development and tests.
type Keys struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

func Compile() (constraint.ConstraintSystem, error) {
	var c CreditCircuit
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &c)
}

func Setup() (*Keys, error) {
	cs, err := Compile()
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Keys{CS: cs, PK: pk, VK: vk}, nil
}

func ReadProvingKey(r io.Reader) (groth16.ProvingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read proving key: %w", err)
	}
	return pk, nil
}

// Statement is the prover's full input.
type Statement struct {
	Income           *big.Int
	DebtRatio        *big.Int
	ModelFingerprint *big.Int
	Score            uint64
}

// Prove returns the serialized proof and the public signals it commits to.
func Prove(cs constraint.ConstraintSystem, pk groth16.ProvingKey, st Statement) ([]byte, []string, error) {
	commitment := new(big.Int).Mul(new(big.Int).SetUint64(st.Score), st.ModelFingerprint)
	commitment.Add(commitment, st.Income)
	commitment.Add(commitment, st.DebtRatio)
	commitment.Mod(commitment, ecc.BN254.ScalarField())

	assignment := &CreditCircuit{
		Income:           st.Income,
		DebtRatio:        st.DebtRatio,
		ModelFingerprint: st.ModelFingerprint,
		Score:            st.Score,
		Commitment:       commitment,
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("witness: %w", err)
	}
	proof, err := groth16.Prove(cs, pk, w)
	if err != nil {
		return nil, nil, fmt.Errorf("prove: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), []string{st.Income.String(), st.DebtRatio.String(), st.ModelFingerprint.String()}, nil
}
