package pdu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// HeaderSize is the size of the fixed PDU header: type, reserved, length.
const HeaderSize = 6

var (
	// ErrOutOfRange is returned when a read runs past the end of the PDU body.
	ErrOutOfRange = errors.New("pdu: read out of range")
	// ErrUnbalancedLength is returned when a length marker is left open or
	// closed twice.
	ErrUnbalancedLength = errors.New("pdu: unbalanced length marker")
)

// bodyWriter is the subset of dicomio.Writer the PDU encoder needs.
type bodyWriter interface {
	WriteUInt16(v uint16) error
	WriteUInt32(v uint32) error
	WriteBytes(v []byte) error
	WriteZeros(len int) error
	WriteString(v string) error
}

type lengthMark struct {
	offset int
	size   int
}

// RawPdu is a cursor over the body of one PDU. A RawPdu built with
// NewRawPdu is written to; one returned by ParseRawPdu is read from.
//
// Nested items carry their own length prefix. MarkLength16/32 reserves the
// prefix and WriteLength16/32 fills it in once the item body is written.
type RawPdu struct {
	pduType Type

	buf   *bytes.Buffer
	w     bodyWriter
	marks []lengthMark
	err   error

	body []byte
	off  int
}

// NewRawPdu returns an empty PDU of the given type, ready for writing.
func NewRawPdu(t Type) *RawPdu {
	buf := &bytes.Buffer{}
	return &RawPdu{
		pduType: t,
		buf:     buf,
		w:       dicomio.NewWriter(buf, binary.BigEndian, false),
	}
}

// ParseRawPdu consumes the PDU header in block and returns a cursor bounded
// to exactly the declared body length.
func ParseRawPdu(block []byte) (*RawPdu, error) {
	if len(block) < HeaderSize {
		return nil, fmt.Errorf("ParseRawPdu: %d byte header: %w", len(block), ErrOutOfRange)
	}
	length := binary.BigEndian.Uint32(block[2:6])
	if uint64(length) > uint64(len(block)-HeaderSize) {
		return nil, fmt.Errorf("ParseRawPdu: body of %d bytes declared, %d present: %w",
			length, len(block)-HeaderSize, ErrOutOfRange)
	}
	return &RawPdu{
		pduType: Type(block[0]),
		body:    block[HeaderSize : HeaderSize+int(length)],
	}, nil
}

// Type returns the PDU type byte.
func (r *RawPdu) Type() Type { return r.pduType }

// Remaining returns the number of unread body bytes.
func (r *RawPdu) Remaining() int { return len(r.body) - r.off }

func (r *RawPdu) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("RawPdu: want %d bytes at offset %d, %d left: %w", n, r.off, r.Remaining(), ErrOutOfRange)
	}
	v := r.body[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *RawPdu) ReadByte() (byte, error) {
	v, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *RawPdu) ReadBytes(n int) ([]byte, error) {
	v, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

func (r *RawPdu) ReadUint16() (uint16, error) {
	v, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v), nil
}

func (r *RawPdu) ReadUint32() (uint32, error) {
	v, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(v), nil
}

// ReadString reads n bytes as a string, verbatim.
func (r *RawPdu) ReadString(n int) (string, error) {
	v, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Skip advances the read cursor by n bytes.
func (r *RawPdu) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Sub carves the next n bytes off as an independent cursor. Item decoders
// use it so that an item can never read into its sibling.
func (r *RawPdu) Sub(n int) (*RawPdu, error) {
	v, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return &RawPdu{pduType: r.pduType, body: v}, nil
}

func (r *RawPdu) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *RawPdu) WriteUint8(v byte) {
	r.setError(r.w.WriteBytes([]byte{v}))
}

func (r *RawPdu) WriteBytes(v []byte) {
	r.setError(r.w.WriteBytes(v))
}

func (r *RawPdu) WriteUint16(v uint16) {
	r.setError(r.w.WriteUInt16(v))
}

func (r *RawPdu) WriteUint32(v uint32) {
	r.setError(r.w.WriteUInt32(v))
}

func (r *RawPdu) WriteString(v string) {
	r.setError(r.w.WriteString(v))
}

func (r *RawPdu) WriteZeros(n int) {
	r.setError(r.w.WriteZeros(n))
}

// WriteStringWithPadding writes v into a fixed field of count bytes, filled
// with pad. Longer strings are an error.
func (r *RawPdu) WriteStringWithPadding(v string, count int, pad byte) {
	if len(v) > count {
		r.setError(fmt.Errorf("RawPdu: %q does not fit in %d bytes", v, count))
		return
	}
	r.WriteString(v + strings.Repeat(string(pad), count-len(v)))
}

func (r *RawPdu) mark(size int) {
	r.marks = append(r.marks, lengthMark{offset: r.buf.Len(), size: size})
	r.WriteZeros(size)
}

func (r *RawPdu) patch(size int) {
	if len(r.marks) == 0 || r.marks[len(r.marks)-1].size != size {
		r.setError(fmt.Errorf("RawPdu: closing %d byte length: %w", size, ErrUnbalancedLength))
		return
	}
	m := r.marks[len(r.marks)-1]
	r.marks = r.marks[:len(r.marks)-1]
	length := r.buf.Len() - m.offset - m.size
	dst := r.buf.Bytes()[m.offset : m.offset+m.size]
	switch size {
	case 2:
		if length > 0xffff {
			r.setError(fmt.Errorf("RawPdu: item of %d bytes overflows a 16 bit length", length))
			return
		}
		binary.BigEndian.PutUint16(dst, uint16(length))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(length))
	}
}

// MarkLength16 reserves a 16 bit length at the current write offset.
func (r *RawPdu) MarkLength16() { r.mark(2) }

// WriteLength16 fills the innermost 16 bit mark with the number of bytes
// written since.
func (r *RawPdu) WriteLength16() { r.patch(2) }

// MarkLength32 reserves a 32 bit length at the current write offset.
func (r *RawPdu) MarkLength32() { r.mark(4) }

// WriteLength32 fills the innermost 32 bit mark with the number of bytes
// written since.
func (r *RawPdu) WriteLength32() { r.patch(4) }

// Bytes finalizes the PDU: header followed by the body.
func (r *RawPdu) Bytes() ([]byte, error) {
	if r.buf == nil {
		return nil, fmt.Errorf("RawPdu.Bytes: PDU %v was not built for writing", r.pduType)
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.marks) != 0 {
		return nil, fmt.Errorf("RawPdu.Bytes: %d open markers: %w", len(r.marks), ErrUnbalancedLength)
	}
	body := r.buf.Bytes()
	out := make([]byte, HeaderSize, HeaderSize+len(body))
	out[0] = byte(r.pduType)
	binary.BigEndian.PutUint32(out[2:], uint32(len(body)))
	return append(out, body...), nil
}
