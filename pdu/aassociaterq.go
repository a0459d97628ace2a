package pdu

import (
	"fmt"

	"github.com/giesekow/go-dicomnet/association"
)

// AAssociateRQ is the A-ASSOCIATE-RQ PDU, P3.8 9.3.2. Its presentation
// contexts and user information live in Association.
type AAssociateRQ struct {
	ProtocolVersion uint16
	Association     *association.Association
}

func (*AAssociateRQ) Type() Type { return TypeAAssociateRq }

func (pdu *AAssociateRQ) Write() (*RawPdu, error) {
	a := pdu.Association
	r := NewRawPdu(TypeAAssociateRq)
	if err := writeAssociateHeader(r, pdu.version(), a); err != nil {
		return nil, fmt.Errorf("AAssociateRQ.Write: %w", err)
	}
	for _, pc := range a.PresentationContexts() {
		beginItem(r, ItemTypePresentationContextRequest)
		r.WriteUint8(pc.ID)
		r.WriteZeros(3)
		writeNameItem(r, ItemTypeAbstractSyntax, pc.AbstractSyntaxUID)
		for _, ts := range pc.TransferSyntaxUIDs {
			writeNameItem(r, ItemTypeTransferSyntax, ts)
		}
		endItem(r)
	}
	writeUserInformation(r, a, true)
	return r, nil
}

func (pdu *AAssociateRQ) version() uint16 {
	if pdu.ProtocolVersion == 0 {
		return CurrentProtocolVersion
	}
	return pdu.ProtocolVersion
}

// ReadAAssociateRQ decodes an A-ASSOCIATE-RQ body into a new Association.
func ReadAAssociateRQ(r *RawPdu) (*AAssociateRQ, error) {
	version, called, calling, err := readAssociateHeader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadAAssociateRQ: %w", err)
	}
	if called == "" || calling == "" {
		return nil, fmt.Errorf("ReadAAssociateRQ: {Called,Calling}AETitle must not be empty, got %q %q", called, calling)
	}
	a := association.FromPeer(calling, called)
	err = readItems(r, func(itemType byte, item *RawPdu) error {
		switch itemType {
		case ItemTypeApplicationContext:
			name, err := readName(item)
			a.ApplicationContextName = name
			return err
		case ItemTypePresentationContextRequest:
			pc, err := readPresentationContextRequest(item)
			if err != nil {
				return err
			}
			return a.PutPresentationContext(pc)
		case ItemTypeUserInformation:
			return readUserInformation(item, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ReadAAssociateRQ: %w", err)
	}
	return &AAssociateRQ{ProtocolVersion: version, Association: a}, nil
}

func readPresentationContextRequest(item *RawPdu) (*association.PresentationContext, error) {
	id, err := item.ReadByte()
	if err != nil {
		return nil, err
	}
	if err := item.Skip(3); err != nil {
		return nil, err
	}
	pc := association.NewPresentationContext(id, "")
	err = readItems(item, func(itemType byte, sub *RawPdu) error {
		switch itemType {
		case ItemTypeAbstractSyntax:
			name, err := readName(sub)
			pc.AbstractSyntaxUID = name
			return err
		case ItemTypeTransferSyntax:
			name, err := readName(sub)
			pc.AddTransferSyntax(name)
			return err
		}
		return nil
	})
	return pc, err
}

func (pdu *AAssociateRQ) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RQ{version:%v %v}", pdu.version(), pdu.Association)
}
