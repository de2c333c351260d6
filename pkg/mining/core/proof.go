package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SolutionBuffer is scratch space an engine writes its latest result into.
// It belongs to a single worker and is reused across searches.
type SolutionBuffer struct {
	nonces []uint32
}

// NewSolutionBuffer allocates a buffer for cycles of the given length
func NewSolutionBuffer(size int) *SolutionBuffer {
	if size <= 0 {
		size = ProofSize
	}
	return &SolutionBuffer{nonces: make([]uint32, size)}
}

// Len returns the cycle length the buffer holds
func (b *SolutionBuffer) Len() int {
	return len(b.nonces)
}

// Reset zeroes the buffer before a new search
func (b *SolutionBuffer) Reset() {
	for i := range b.nonces {
		b.nonces[i] = 0
	}
}

// Slot exposes the live storage to an engine for the duration of one search.
// Callers outside the worker must never retain it.
func (b *SolutionBuffer) Slot() []uint32 {
	return b.nonces
}

// Proof is the canonical ordered nonce sequence of a found cycle.
// The zero value is an empty proof.
type Proof struct {
	nonces []uint32
}

// NewProof copies nonces into a new Proof
func NewProof(nonces []uint32) Proof {
	cp := make([]uint32, len(nonces))
	copy(cp, nonces)
	return Proof{nonces: cp}
}

// ProofFromBuffer copies the current buffer contents out into an
// independent Proof. Later writes to the buffer never affect the result.
func ProofFromBuffer(b *SolutionBuffer) Proof {
	return NewProof(b.nonces)
}

// Nonces returns a copy of the proof's nonces in engine order
func (p Proof) Nonces() []uint32 {
	cp := make([]uint32, len(p.nonces))
	copy(cp, p.nonces)
	return cp
}

// Len returns the number of nonces
func (p Proof) Len() int {
	return len(p.nonces)
}

// IsZero reports whether p carries no nonces
func (p Proof) IsZero() bool {
	return len(p.nonces) == 0
}

// Equal compares two proofs element by element
func (p Proof) Equal(o Proof) bool {
	if len(p.nonces) != len(o.nonces) {
		return false
	}
	for i := range p.nonces {
		if p.nonces[i] != o.nonces[i] {
			return false
		}
	}
	return true
}

func (p Proof) String() string {
	parts := make([]string, len(p.nonces))
	for i, n := range p.nonces {
		parts[i] = fmt.Sprintf("%x", n)
	}
	return "Cuckoo" + fmt.Sprint(len(p.nonces)) + "(" + strings.Join(parts, " ") + ")"
}

func (p Proof) MarshalJSON() ([]byte, error) {
	if p.nonces == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.nonces)
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var nonces []uint32
	if err := json.Unmarshal(data, &nonces); err != nil {
		return err
	}
	p.nonces = nonces
	return nil
}
