package zk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"zkloan/internal/domain/verification"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"go.uber.org/zap"
)

var _ verification.ProofVerifier = (*Verifier)(nil)

// Verifier checks Groth16 proofs of CreditCircuit over BN254.
type Verifier struct {
	vk  groth16.VerifyingKey
	log *zap.Logger
}

func NewVerifier(vk groth16.VerifyingKey, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{vk: vk, log: log}
}

func ReadVerifyingKey(r io.Reader) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return vk, nil
}

func LoadVerifier(path string, log *zap.Logger) (*Verifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vk, err := ReadVerifyingKey(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return NewVerifier(vk, log), nil
}

// Verify returns false for anything that is not a valid proof of the three
// public signals, and never returns an error. The artifact must be the exact
// compressed encoding of the proof: trailing bytes or an alternative point
// encoding of the same proof are rejected, so one proof has one fingerprint.
func (v *Verifier) Verify(_ context.Context, artifact []byte, signals []string) (bool, error) {
	if len(signals) != verification.RequiredSignals {
		v.log.Debug("proof rejected: signal count", zap.Int("signals", len(signals)))
		return false, nil
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(artifact)); err != nil {
		v.log.Debug("proof rejected: decode", zap.Error(err))
		return false, nil
	}
	var canonical bytes.Buffer
	if _, err := proof.WriteTo(&canonical); err != nil || !bytes.Equal(canonical.Bytes(), artifact) {
		v.log.Debug("proof rejected: non-canonical encoding", zap.Int("bytes", len(artifact)))
		return false, nil
	}

	var in [verification.RequiredSignals]*big.Int
	for i, s := range signals {
		b, ok := fieldElement(s)
		if !ok {
			v.log.Debug("proof rejected: signal not in field", zap.Int("index", i))
			return false, nil
		}
		in[i] = b
	}
	assignment := &CreditCircuit{
		Income:           in[verification.SignalIncome],
		DebtRatio:        in[verification.SignalDebtRatio],
		ModelFingerprint: in[verification.SignalModelFingerprint],
	}
	public, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		v.log.Debug("proof rejected: witness", zap.Error(err))
		return false, nil
	}

	if err := groth16.Verify(proof, v.vk, public); err != nil {
		v.log.Debug("proof rejected: pairing", zap.Error(err))
		return false, nil
	}
	return true, nil
}

func fieldElement(s string) (*big.Int, bool) {
	u, err := verification.ParseSignal(s)
	if err != nil {
		return nil, false
	}
	b := u.ToBig()
	if b.Cmp(ecc.BN254.ScalarField()) >= 0 {
		return nil, false
	}
	return b, true
}
