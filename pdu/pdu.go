// Package pdu implements the DICOM upper layer protocol data units, P3.8 9.3.
//
// Every PDU is a 6 byte header (type, reserved, 32 bit big endian length)
// followed by exactly length bytes of body. Bodies are built and parsed
// through RawPdu.
package pdu

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dicomnet/association"
)

// PDU is implemented by every PDU type.
type PDU interface {
	fmt.Stringer
	// Type is the PDU type byte.
	Type() Type
	// Write serializes the PDU body.
	Write() (*RawPdu, error)
}

// Type defines type of the PDU packet.
type Type byte

const (
	TypeAAssociateRq Type = 1 // A_ASSOCIATE_RQ
	TypeAAssociateAc Type = 2 // A_ASSOCIATE_AC
	TypeAAssociateRj Type = 3 // A_ASSOCIATE_RJ
	TypePDataTf      Type = 4 // P_DATA_TF
	TypeAReleaseRq   Type = 5 // A_RELEASE_RQ
	TypeAReleaseRp   Type = 6 // A_RELEASE_RP
	TypeAAbort       Type = 7 // A_ABORT
	TypeNoOp         Type = 0xff
)

func (t Type) String() string {
	switch t {
	case TypeAAssociateRq:
		return "A_ASSOCIATE_RQ"
	case TypeAAssociateAc:
		return "A_ASSOCIATE_AC"
	case TypeAAssociateRj:
		return "A_ASSOCIATE_RJ"
	case TypePDataTf:
		return "P_DATA_TF"
	case TypeAReleaseRq:
		return "A_RELEASE_RQ"
	case TypeAReleaseRp:
		return "A_RELEASE_RP"
	case TypeAAbort:
		return "A_ABORT"
	case TypeNoOp:
		return "NO_OP"
	}
	return fmt.Sprintf("PDU(0x%02x)", byte(t))
}

// ErrUnknownPDUType is returned by Decode for a type byte outside 0x01-0x07.
var ErrUnknownPDUType = errors.New("pdu: unknown PDU type")

// EncodePDU serializes a PDU including its header.
func EncodePDU(v PDU) ([]byte, error) {
	raw, err := v.Write()
	if err != nil {
		return nil, fmt.Errorf("EncodePDU: %v: %w", v.Type(), err)
	}
	return raw.Bytes()
}

// Decode parses one complete PDU block as produced by an Accumulator.
//
// An A-ASSOCIATE-AC updates the presentation contexts of a, the association
// the local side requested; a must be non-nil for that PDU type. A no-op PDU
// decodes to (nil, nil).
func Decode(block []byte, a *association.Association) (PDU, error) {
	raw, err := ParseRawPdu(block)
	if err != nil {
		return nil, err
	}
	var v PDU
	switch raw.Type() {
	case TypeAAssociateRq:
		v, err = asPDU(ReadAAssociateRQ(raw))
	case TypeAAssociateAc:
		if a == nil {
			return nil, fmt.Errorf("pdu.Decode: %v without a requested association", raw.Type())
		}
		v, err = asPDU(ReadAAssociateAC(raw, a))
	case TypeAAssociateRj:
		v, err = asPDU(ReadAAssociateRj(raw))
	case TypePDataTf:
		v, err = asPDU(ReadPDataTf(raw))
	case TypeAReleaseRq:
		v, err = &AReleaseRq{}, raw.Skip(4)
	case TypeAReleaseRp:
		v, err = &AReleaseRp{}, raw.Skip(4)
	case TypeAAbort:
		v, err = asPDU(ReadAAbort(raw))
	case TypeNoOp:
		return nil, nil
	default:
		return nil, fmt.Errorf("pdu.Decode: type 0x%02x: %w", byte(raw.Type()), ErrUnknownPDUType)
	}
	if err != nil {
		return nil, fmt.Errorf("pdu.Decode: %v: %w", raw.Type(), err)
	}
	return v, nil
}

// asPDU keeps a failed reader's typed nil out of the PDU interface.
func asPDU[T PDU](v T, err error) (PDU, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
