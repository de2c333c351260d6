package miner

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// HeaderSource supplies successive headers to mine. Next returns the header
// and the nonce it carries.
type HeaderSource interface {
	Next() ([]byte, uint64)
}

// NonceHeaders iterates a header template by writing a big-endian u64 nonce
// at a fixed offset, the way a pre-pow header is rolled between attempts.
type NonceHeaders struct {
	mutex    sync.Mutex
	template []byte
	offset   int
	nonce    uint64
}

// NewNonceHeaders creates a source starting at nonce start. The nonce
// occupies template[offset:offset+8].
func NewNonceHeaders(template []byte, offset int, start uint64) (*NonceHeaders, error) {
	if offset < 0 || offset+8 > len(template) {
		return nil, fmt.Errorf("nonce offset %d does not fit a %d-byte header", offset, len(template))
	}
	cp := make([]byte, len(template))
	copy(cp, template)
	return &NonceHeaders{template: cp, offset: offset, nonce: start}, nil
}

// Next returns a fresh header for the next nonce
func (h *NonceHeaders) Next() ([]byte, uint64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	nonce := h.nonce
	h.nonce++

	header := make([]byte, len(h.template))
	copy(header, h.template)
	binary.BigEndian.PutUint64(header[h.offset:], nonce)
	return header, nonce
}
