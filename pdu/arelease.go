package pdu

// AReleaseRq is the A-RELEASE-RQ PDU, P3.8 9.3.6.
type AReleaseRq struct{}

func (*AReleaseRq) Type() Type { return TypeAReleaseRq }

func (*AReleaseRq) Write() (*RawPdu, error) {
	r := NewRawPdu(TypeAReleaseRq)
	r.WriteZeros(4)
	return r, nil
}

func (*AReleaseRq) String() string { return "A_RELEASE_RQ" }

// AReleaseRp is the A-RELEASE-RP PDU, P3.8 9.3.7.
type AReleaseRp struct{}

func (*AReleaseRp) Type() Type { return TypeAReleaseRp }

func (*AReleaseRp) Write() (*RawPdu, error) {
	r := NewRawPdu(TypeAReleaseRp)
	r.WriteZeros(4)
	return r, nil
}

func (*AReleaseRp) String() string { return "A_RELEASE_RP" }
