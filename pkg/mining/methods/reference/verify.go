package reference

import (
	"errors"

	"cuckoominer/pkg/mining/core"
)

var (
	ErrEmptyProof  = errors.New("proof has no nonces")
	ErrNonceRange  = errors.New("nonce exceeds edge count")
	ErrNonceOrder  = errors.New("nonces not strictly ascending")
	ErrBranch      = errors.New("cycle branches")
	ErrDeadEnd     = errors.New("cycle dead-ends")
	ErrShortCycle  = errors.New("cycle shorter than proof")
	ErrProofLength = errors.New("proof length mismatch")
)

// Verify checks that nonces form a single cycle of len(nonces) edges in the
// graph derived from header. It is an independent check of engine output
// and does not apply any consensus rule beyond the cycle structure.
func Verify(header []byte, params core.CycleParameters, nonces []uint32) error {
	if err := params.Validate(); err != nil {
		return err
	}
	n := len(nonces)
	if n == 0 {
		return ErrEmptyProof
	}

	keys := deriveKeys(header)
	edgeMask := params.NodeCount()/2 - 1
	easiness := params.EdgeCount()

	uvs := make([]uint64, 2*n)
	for i, nonce := range nonces {
		if uint64(nonce) >= easiness {
			return ErrNonceRange
		}
		if i > 0 && nonce <= nonces[i-1] {
			return ErrNonceOrder
		}
		uvs[2*i] = keys.node(uint64(nonce), 0, edgeMask)
		uvs[2*i+1] = keys.node(uint64(nonce), 1, edgeMask)
	}

	i, count := 0, 0
	for {
		j := i
		for k := (i + 2) % (2 * n); k != i; k = (k + 2) % (2 * n) {
			if uvs[k] == uvs[i] {
				if j != i {
					return ErrBranch
				}
				j = k
			}
		}
		if j == i {
			return ErrDeadEnd
		}
		i = j ^ 1
		count++
		if count > n {
			return ErrBranch
		}
		if i == 0 {
			break
		}
	}

	if count != n {
		return ErrShortCycle
	}
	return nil
}

// VerifyProof is Verify for a core.Proof of the consensus length
func VerifyProof(header []byte, params core.CycleParameters, proof core.Proof) error {
	if proof.Len() != core.ProofSize {
		return ErrProofLength
	}
	return Verify(header, params, proof.Nonces())
}
