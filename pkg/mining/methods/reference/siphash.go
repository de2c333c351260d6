package reference

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/blake2b"
)

// sipKeys holds the siphash-2-4 state derived from a header
type sipKeys struct {
	v0, v1, v2, v3 uint64
}

// deriveKeys hashes the header with blake2b-256 and seeds siphash with the
// first 16 bytes of the digest.
func deriveKeys(header []byte) sipKeys {
	sum := blake2b.Sum256(header)
	k0 := binary.LittleEndian.Uint64(sum[0:8])
	k1 := binary.LittleEndian.Uint64(sum[8:16])
	return sipKeys{
		v0: k0 ^ 0x736f6d6570736575,
		v1: k1 ^ 0x646f72616e646f6d,
		v2: k0 ^ 0x6c7967656e657261,
		v3: k1 ^ 0x7465646279746573,
	}
}

// siphash24 hashes a single 64-bit word
func (k *sipKeys) siphash24(nonce uint64) uint64 {
	v0, v1, v2, v3 := k.v0, k.v1, k.v2, k.v3^nonce

	round := func() {
		v0 += v1
		v2 += v3
		v1 = bits.RotateLeft64(v1, 13)
		v3 = bits.RotateLeft64(v3, 16)
		v1 ^= v0
		v3 ^= v2
		v0 = bits.RotateLeft64(v0, 32)
		v2 += v1
		v0 += v3
		v1 = bits.RotateLeft64(v1, 17)
		v3 = bits.RotateLeft64(v3, 21)
		v1 ^= v2
		v3 ^= v0
		v2 = bits.RotateLeft64(v2, 32)
	}

	round()
	round()
	v0 ^= nonce
	v2 ^= 0xff
	round()
	round()
	round()
	round()

	return v0 ^ v1 ^ v2 ^ v3
}

// node maps edge nonce to its endpoint on side uorv (0 = even, 1 = odd)
func (k *sipKeys) node(nonce, uorv, edgeMask uint64) uint64 {
	return (k.siphash24(2*nonce+uorv)&edgeMask)<<1 | uorv
}
