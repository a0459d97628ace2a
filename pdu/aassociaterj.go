package pdu

import "fmt"

// AAssociateRj is the A-ASSOCIATE-RJ PDU, P3.8 9.3.4.
type AAssociateRj struct {
	Result RejectResultType
	Source SourceType
	Reason RejectReasonType
}

// RejectResultType says whether a rejection is permanent.
type RejectResultType byte

const (
	ResultRejectedPermanent RejectResultType = 1
	ResultRejectedTransient RejectResultType = 2
)

func (v RejectResultType) String() string {
	switch v {
	case ResultRejectedPermanent:
		return "rejected-permanent"
	case ResultRejectedTransient:
		return "rejected-transient"
	}
	return fmt.Sprintf("RejectResult(%d)", byte(v))
}

// SourceType is who rejected or aborted the association.
type SourceType byte

const (
	SourceULServiceUser                 SourceType = 1
	SourceULServiceProviderACSE         SourceType = 2
	SourceULServiceProviderPresentation SourceType = 3
)

func (v SourceType) String() string {
	switch v {
	case SourceULServiceUser:
		return "service-user"
	case SourceULServiceProviderACSE:
		return "service-provider(ACSE)"
	case SourceULServiceProviderPresentation:
		return "service-provider(presentation)"
	}
	return fmt.Sprintf("Source(%d)", byte(v))
}

// RejectReasonType is the diagnostic of a rejection. Its meaning depends on
// the source: for SourceULServiceUser the codes below apply as named; for
// SourceULServiceProviderACSE 1 is no reason and 2 protocol version not
// supported; for SourceULServiceProviderPresentation 1 is temporary
// congestion and 2 local limit exceeded.
type RejectReasonType byte

const (
	RejectReasonNone                               RejectReasonType = 1
	RejectReasonApplicationContextNameNotSupported RejectReasonType = 2
	RejectReasonCallingAETitleNotRecognized        RejectReasonType = 3
	RejectReasonCalledAETitleNotRecognized         RejectReasonType = 7
)

func (v RejectReasonType) String() string {
	switch v {
	case RejectReasonNone:
		return "no-reason"
	case RejectReasonApplicationContextNameNotSupported:
		return "application-context-name-not-supported"
	case RejectReasonCallingAETitleNotRecognized:
		return "calling-AE-title-not-recognized"
	case RejectReasonCalledAETitleNotRecognized:
		return "called-AE-title-not-recognized"
	}
	return fmt.Sprintf("RejectReason(%d)", byte(v))
}

func (*AAssociateRj) Type() Type { return TypeAAssociateRj }

func (pdu *AAssociateRj) Write() (*RawPdu, error) {
	r := NewRawPdu(TypeAAssociateRj)
	r.WriteZeros(1)
	r.WriteUint8(byte(pdu.Result))
	r.WriteUint8(byte(pdu.Source))
	r.WriteUint8(byte(pdu.Reason))
	return r, nil
}

func ReadAAssociateRj(r *RawPdu) (*AAssociateRj, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("ReadAAssociateRj: %w", err)
	}
	return &AAssociateRj{
		Result: RejectResultType(b[1]),
		Source: SourceType(b[2]),
		Reason: RejectReasonType(b[3]),
	}, nil
}

func (pdu *AAssociateRj) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RJ{result: %v, source: %v, reason: %v}", pdu.Result, pdu.Source, pdu.Reason)
}
