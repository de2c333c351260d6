package core

import "strconv"

const (
	// ProofSize is the cycle length required by consensus
	ProofSize = 42

	// TagPrefix is prepended to the sizeshift to form a capability tag
	TagPrefix = "simple_"

	MinEase      = 1
	MaxEase      = 100
	MinSizeshift = 4
	MaxSizeshift = 63
)

// CycleParameters fixes the problem instance for a worker's lifetime
type CycleParameters struct {
	// Percentage of the node count used as the edge count
	Ease uint32 `json:"ease"`

	// log2 of the number of graph nodes
	Sizeshift uint32 `json:"sizeshift"`
}

// NewCycleParameters returns validated parameters
func NewCycleParameters(ease, sizeshift uint32) (CycleParameters, error) {
	p := CycleParameters{Ease: ease, Sizeshift: sizeshift}
	if err := p.Validate(); err != nil {
		return CycleParameters{}, err
	}
	return p, nil
}

// Validate reports parameters that no engine could be built for
func (p CycleParameters) Validate() error {
	if p.Ease < MinEase || p.Ease > MaxEase {
		return NewError(ErrCodeInvalidParameters, "invalid cycle parameters",
			"ease "+strconv.FormatUint(uint64(p.Ease), 10)+" outside 1..100")
	}
	if p.Sizeshift < MinSizeshift || p.Sizeshift > MaxSizeshift {
		return NewError(ErrCodeInvalidParameters, "invalid cycle parameters",
			"sizeshift "+strconv.FormatUint(uint64(p.Sizeshift), 10)+" outside 4..63")
	}
	return nil
}

// Tag returns the capability tag an engine must advertise to mine these
// parameters. Matching is exact.
func (p CycleParameters) Tag() string {
	return CapabilityTag(p.Sizeshift)
}

// NodeCount returns 2^Sizeshift
func (p CycleParameters) NodeCount() uint64 {
	return uint64(1) << p.Sizeshift
}

// EdgeCount returns the number of edges an engine walks for these parameters
func (p CycleParameters) EdgeCount() uint64 {
	// split to avoid overflow at sizeshift 63
	n := p.NodeCount()
	return n/100*uint64(p.Ease) + n%100*uint64(p.Ease)/100
}

// CapabilityTag formats the tag for a sizeshift
func CapabilityTag(sizeshift uint32) string {
	return TagPrefix + strconv.FormatUint(uint64(sizeshift), 10)
}
