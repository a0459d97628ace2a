package pdu

import (
	"fmt"

	"github.com/giesekow/go-dicomnet/association"
)

// AAssociateAC is the A-ASSOCIATE-AC PDU, P3.8 9.3.3. It answers every
// presentation context of Association with its Result and, when accepted,
// the chosen transfer syntax.
type AAssociateAC struct {
	ProtocolVersion uint16
	Association     *association.Association
}

func (*AAssociateAC) Type() Type { return TypeAAssociateAc }

func (pdu *AAssociateAC) Write() (*RawPdu, error) {
	a := pdu.Association
	r := NewRawPdu(TypeAAssociateAc)
	version := pdu.ProtocolVersion
	if version == 0 {
		version = CurrentProtocolVersion
	}
	if err := writeAssociateHeader(r, version, a); err != nil {
		return nil, fmt.Errorf("AAssociateAC.Write: %w", err)
	}
	for _, pc := range a.PresentationContexts() {
		if pc.Result == association.ResultProposed {
			return nil, fmt.Errorf("AAssociateAC.Write: context %d has no result", pc.ID)
		}
		beginItem(r, ItemTypePresentationContextResponse)
		r.WriteUint8(pc.ID)
		r.WriteUint8(0)
		r.WriteUint8(byte(pc.Result))
		r.WriteUint8(0)
		if ts := pc.AcceptedTransferSyntaxUID(); ts != "" {
			writeNameItem(r, ItemTypeTransferSyntax, ts)
		}
		endItem(r)
	}
	writeUserInformation(r, a, false)
	return r, nil
}

// ReadAAssociateAC decodes an A-ASSOCIATE-AC body, recording the result of
// each presentation context in a and replacing a's user information with
// the peer's. A context id a never proposed is an error.
func ReadAAssociateAC(r *RawPdu, a *association.Association) (*AAssociateAC, error) {
	version, _, _, err := readAssociateHeader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadAAssociateAC: %w", err)
	}
	err = readItems(r, func(itemType byte, item *RawPdu) error {
		switch itemType {
		case ItemTypeApplicationContext:
			name, err := readName(item)
			a.ApplicationContextName = name
			return err
		case ItemTypePresentationContextResponse:
			return readPresentationContextResponse(item, a)
		case ItemTypeUserInformation:
			return readUserInformation(item, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ReadAAssociateAC: %w", err)
	}
	return &AAssociateAC{ProtocolVersion: version, Association: a}, nil
}

func readPresentationContextResponse(item *RawPdu, a *association.Association) error {
	id, err := item.ReadByte()
	if err != nil {
		return err
	}
	if err := item.Skip(1); err != nil {
		return err
	}
	result, err := item.ReadByte()
	if err != nil {
		return err
	}
	if err := item.Skip(1); err != nil {
		return err
	}
	var transferSyntaxUID string
	err = readItems(item, func(itemType byte, sub *RawPdu) error {
		if itemType != ItemTypeTransferSyntax || transferSyntaxUID != "" {
			return nil
		}
		transferSyntaxUID, err = readName(sub)
		return err
	})
	if err != nil {
		return err
	}
	pc, ok := a.PresentationContext(id)
	if !ok {
		return fmt.Errorf("presentation context %d was not proposed", id)
	}
	pc.SetResult(association.Result(result), transferSyntaxUID)
	return nil
}

func (pdu *AAssociateAC) String() string {
	return fmt.Sprintf("A_ASSOCIATE_AC{version:%v %v}", pdu.ProtocolVersion, pdu.Association)
}
