package pdu

import (
	"fmt"
	"strings"
)

// PDVHeaderSize is the per-item overhead inside a P-DATA-TF: the 4 byte item
// length, the context id and the message control header.
const PDVHeaderSize = 6

// PresentationDataValueItem is one fragment of a DIMSE command or data set,
// P3.8 9.3.5.1.
type PresentationDataValueItem struct {
	ContextID byte
	// Command is true for a command fragment, false for a data set fragment.
	Command bool
	// Last is true for the final fragment of the command or data set.
	Last  bool
	Value []byte
}

func (v *PresentationDataValueItem) header() byte {
	var h byte
	if v.Command {
		h |= 1
	}
	if v.Last {
		h |= 2
	}
	return h
}

func (v *PresentationDataValueItem) String() string {
	return fmt.Sprintf("PDV{context:%d command:%v last:%v value:%db}", v.ContextID, v.Command, v.Last, len(v.Value))
}

// PDataTf is the P-DATA-TF PDU, P3.8 9.3.5.
type PDataTf struct {
	Items []PresentationDataValueItem
}

func (*PDataTf) Type() Type { return TypePDataTf }

func (pdu *PDataTf) Write() (*RawPdu, error) {
	r := NewRawPdu(TypePDataTf)
	for i := range pdu.Items {
		item := &pdu.Items[i]
		r.MarkLength32()
		r.WriteUint8(item.ContextID)
		r.WriteUint8(item.header())
		r.WriteBytes(item.Value)
		r.WriteLength32()
	}
	return r, nil
}

func ReadPDataTf(r *RawPdu) (*PDataTf, error) {
	pdu := &PDataTf{}
	for r.Remaining() > 0 {
		length, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("ReadPDataTf: %w", err)
		}
		if length < 2 {
			return nil, fmt.Errorf("ReadPDataTf: PDV item length %d too short", length)
		}
		if uint64(length) > uint64(r.Remaining()) {
			return nil, fmt.Errorf("ReadPDataTf: PDV item of %d bytes, %d left: %w", length, r.Remaining(), ErrOutOfRange)
		}
		contextID, _ := r.ReadByte()
		header, _ := r.ReadByte()
		value, err := r.ReadBytes(int(length) - 2)
		if err != nil {
			return nil, fmt.Errorf("ReadPDataTf: %w", err)
		}
		pdu.Items = append(pdu.Items, PresentationDataValueItem{
			ContextID: contextID,
			Command:   header&1 != 0,
			Last:      header&2 != 0,
			Value:     value,
		})
	}
	return pdu, nil
}

func (pdu *PDataTf) String() string {
	items := make([]string, len(pdu.Items))
	for i := range pdu.Items {
		items[i] = pdu.Items[i].String()
	}
	return fmt.Sprintf("P_DATA_TF{items: [%s]}", strings.Join(items, ", "))
}
