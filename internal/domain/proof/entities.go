package proof

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

var ErrAlreadyUsed = errors.New("proof fingerprint already used")

// Fingerprint is the 0x-prefixed Keccak-256 digest of a proof artifact and
// all of its public signals.
type Fingerprint string

// Compute digests the artifact, length-prefixed, and every signal as its
// 32-byte big-endian value. Signals are hashed by value, so "5000" and
// "0x1388" give the same fingerprint.
func Compute(artifact []byte, signals []*uint256.Int) Fingerprint {
	h := sha3.NewLegacyKeccak256()
	var n [8]byte

	binary.BigEndian.PutUint64(n[:], uint64(len(artifact)))
	h.Write(n[:])
	h.Write(artifact)

	binary.BigEndian.PutUint64(n[:], uint64(len(signals)))
	h.Write(n[:])
	for _, s := range signals {
		b := s.Bytes32()
		h.Write(b[:])
	}
	return Fingerprint("0x" + hex.EncodeToString(h.Sum(nil)))
}

func (f Fingerprint) String() string { return string(f) }

// UsedProof is a consumed fingerprint. Rows are written once and never removed.
type UsedProof struct {
	Fingerprint string    `gorm:"primaryKey;size:66;column:fingerprint"`
	BorrowerID  string    `gorm:"size:32;column:borrower_id"`
	UsedAt      time.Time `gorm:"column:used_at"`
}

func (UsedProof) TableName() string { return "used_proofs" }
