package pdu

import (
	"encoding/binary"
	"fmt"
)

// Accumulator turns an arbitrarily chunked byte stream into complete PDU
// blocks (header plus body). It is not safe for concurrent use.
type Accumulator struct {
	emit      func(block []byte)
	maxLength uint32

	// header holds fewer than HeaderSize bytes that arrived before the length
	// of the next PDU could be known.
	header []byte
	// pending is the PDU in progress and target its total size.
	pending []byte
	target  int
}

// NewAccumulator creates an Accumulator that hands each complete PDU to emit.
// A PDU declaring a body longer than maxLength is a framing error;
// maxLength 0 disables the check.
func NewAccumulator(emit func(block []byte), maxLength uint32) *Accumulator {
	return &Accumulator{emit: emit, maxLength: maxLength}
}

// Buffered reports the number of bytes held for an incomplete PDU.
func (a *Accumulator) Buffered() int {
	return len(a.header) + len(a.pending)
}

// Feed adds the next chunk of the stream. The chunk is not retained.
func (a *Accumulator) Feed(chunk []byte) error {
	for len(chunk) > 0 {
		if a.pending == nil {
			if len(a.header) > 0 {
				chunk = append(a.header, chunk...)
				a.header = nil
			}
			if len(chunk) < HeaderSize {
				a.header = append([]byte(nil), chunk...)
				return nil
			}
			length := binary.BigEndian.Uint32(chunk[2:HeaderSize])
			if a.maxLength > 0 && length > a.maxLength {
				return fmt.Errorf("Accumulator.Feed: %v declares %d bytes, limit %d", Type(chunk[0]), length, a.maxLength)
			}
			a.target = HeaderSize + int(length)
			if len(chunk) >= a.target {
				block := append([]byte(nil), chunk[:a.target]...)
				chunk = chunk[a.target:]
				a.emit(block)
				continue
			}
			a.pending = make([]byte, 0, min(a.target, 1<<20))
		}
		n := a.target - len(a.pending)
		if n > len(chunk) {
			n = len(chunk)
		}
		a.pending = append(a.pending, chunk[:n]...)
		chunk = chunk[n:]
		if len(a.pending) == a.target {
			block := a.pending
			a.pending = nil
			a.emit(block)
		}
	}
	return nil
}
