package pdu

import "fmt"

// AbortSourceType is the originator of an A-ABORT. Note that its values
// differ from SourceType.
type AbortSourceType byte

const (
	AbortSourceServiceUser     AbortSourceType = 0
	AbortSourceServiceProvider AbortSourceType = 2
)

func (v AbortSourceType) String() string {
	switch v {
	case AbortSourceServiceUser:
		return "service-user"
	case AbortSourceServiceProvider:
		return "service-provider"
	}
	return fmt.Sprintf("AbortSource(%d)", byte(v))
}

// AbortReasonType is the provider diagnostic of an A-ABORT. It is only
// meaningful when the source is the service provider.
type AbortReasonType byte

const (
	AbortReasonNotSpecified             AbortReasonType = 0
	AbortReasonUnrecognizedPDU          AbortReasonType = 1
	AbortReasonUnexpectedPDU            AbortReasonType = 2
	AbortReasonUnrecognizedPDUParameter AbortReasonType = 4
	AbortReasonUnexpectedPDUParameter   AbortReasonType = 5
	AbortReasonInvalidPDUParameterValue AbortReasonType = 6
)

func (v AbortReasonType) String() string {
	switch v {
	case AbortReasonNotSpecified:
		return "not-specified"
	case AbortReasonUnrecognizedPDU:
		return "unrecognized-PDU"
	case AbortReasonUnexpectedPDU:
		return "unexpected-PDU"
	case AbortReasonUnrecognizedPDUParameter:
		return "unrecognized-PDU-parameter"
	case AbortReasonUnexpectedPDUParameter:
		return "unexpected-PDU-parameter"
	case AbortReasonInvalidPDUParameterValue:
		return "invalid-PDU-parameter-value"
	}
	return fmt.Sprintf("AbortReason(%d)", byte(v))
}

// AAbort is the A-ABORT PDU, P3.8 9.3.8.
type AAbort struct {
	Source AbortSourceType
	Reason AbortReasonType
}

func (*AAbort) Type() Type { return TypeAAbort }

func (pdu *AAbort) Write() (*RawPdu, error) {
	r := NewRawPdu(TypeAAbort)
	r.WriteZeros(2)
	r.WriteUint8(byte(pdu.Source))
	r.WriteUint8(byte(pdu.Reason))
	return r, nil
}

func ReadAAbort(r *RawPdu) (*AAbort, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("ReadAAbort: %w", err)
	}
	return &AAbort{Source: AbortSourceType(b[2]), Reason: AbortReasonType(b[3])}, nil
}

func (pdu *AAbort) String() string {
	return fmt.Sprintf("A_ABORT{source:%v reason:%v}", pdu.Source, pdu.Reason)
}
