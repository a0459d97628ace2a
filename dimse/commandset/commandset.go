// Package commandset defines the group 0000 command elements of a DIMSE
// message and their wire encoding. Command sets are always Implicit VR Little
// Endian (P3.7 6.3.1), so the value representation of each element is fixed
// by this table rather than carried on the wire.
package commandset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	CommandGroupLength                   = tag.Tag{Group: 0x0000, Element: 0x0000}
	AffectedSOPClassUID                  = tag.Tag{Group: 0x0000, Element: 0x0002}
	RequestedSOPClassUID                 = tag.Tag{Group: 0x0000, Element: 0x0003}
	CommandField                         = tag.Tag{Group: 0x0000, Element: 0x0100}
	MessageID                            = tag.Tag{Group: 0x0000, Element: 0x0110}
	MessageIDBeingRespondedTo            = tag.Tag{Group: 0x0000, Element: 0x0120}
	MoveDestination                      = tag.Tag{Group: 0x0000, Element: 0x0600}
	Priority                             = tag.Tag{Group: 0x0000, Element: 0x0700}
	CommandDataSetType                   = tag.Tag{Group: 0x0000, Element: 0x0800}
	Status                               = tag.Tag{Group: 0x0000, Element: 0x0900}
	OffendingElement                     = tag.Tag{Group: 0x0000, Element: 0x0901}
	ErrorComment                         = tag.Tag{Group: 0x0000, Element: 0x0902}
	ErrorID                              = tag.Tag{Group: 0x0000, Element: 0x0903}
	AffectedSOPInstanceUID               = tag.Tag{Group: 0x0000, Element: 0x1000}
	RequestedSOPInstanceUID              = tag.Tag{Group: 0x0000, Element: 0x1001}
	EventTypeID                          = tag.Tag{Group: 0x0000, Element: 0x1002}
	AttributeIdentifierList              = tag.Tag{Group: 0x0000, Element: 0x1005}
	ActionTypeID                         = tag.Tag{Group: 0x0000, Element: 0x1008}
	NumberOfRemainingSuboperations       = tag.Tag{Group: 0x0000, Element: 0x1020}
	NumberOfCompletedSuboperations       = tag.Tag{Group: 0x0000, Element: 0x1021}
	NumberOfFailedSuboperations          = tag.Tag{Group: 0x0000, Element: 0x1022}
	NumberOfWarningSuboperations         = tag.Tag{Group: 0x0000, Element: 0x1023}
	MoveOriginatorApplicationEntityTitle = tag.Tag{Group: 0x0000, Element: 0x1030}
	MoveOriginatorMessageID              = tag.Tag{Group: 0x0000, Element: 0x1031}
)

// VR returns the value representation of a command element, or "UN" for tags
// outside the table.
func VR(t tag.Tag) string {
	if vr, ok := vrs[t]; ok {
		return vr
	}
	return "UN"
}

var vrs = map[tag.Tag]string{
	CommandGroupLength:                   "UL",
	AffectedSOPClassUID:                  "UI",
	RequestedSOPClassUID:                 "UI",
	CommandField:                         "US",
	MessageID:                            "US",
	MessageIDBeingRespondedTo:            "US",
	MoveDestination:                      "AE",
	Priority:                             "US",
	CommandDataSetType:                   "US",
	Status:                               "US",
	OffendingElement:                     "AT",
	ErrorComment:                         "LO",
	ErrorID:                              "US",
	AffectedSOPInstanceUID:               "UI",
	RequestedSOPInstanceUID:              "UI",
	EventTypeID:                          "US",
	AttributeIdentifierList:              "AT",
	ActionTypeID:                         "US",
	NumberOfRemainingSuboperations:       "US",
	NumberOfCompletedSuboperations:       "US",
	NumberOfFailedSuboperations:          "US",
	NumberOfWarningSuboperations:         "US",
	MoveOriginatorApplicationEntityTitle: "AE",
	MoveOriginatorMessageID:              "US",
}

// ErrTruncated is returned by Decode when an element runs past the buffer.
var ErrTruncated = errors.New("commandset: truncated element")

// Element is one command element with its value already in wire form.
type Element struct {
	Tag   tag.Tag
	Value []byte
}

func (e Element) String() string {
	return fmt.Sprintf("%s[%s]:%db", e.Tag.String(), VR(e.Tag), len(e.Value))
}

// Uint16 builds a US element.
func Uint16(t tag.Tag, v uint16) Element {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return Element{Tag: t, Value: b}
}

// String builds a string element padded to even length. UIDs are padded with
// NUL, every other string VR with a space.
func String(t tag.Tag, s string) Element {
	b := []byte(s)
	if len(b)%2 == 1 {
		pad := byte(' ')
		if VR(t) == "UI" {
			pad = 0
		}
		b = append(b, pad)
	}
	return Element{Tag: t, Value: b}
}

// Tags builds an AT element holding a list of attribute tags.
func Tags(t tag.Tag, tags []tag.Tag) Element {
	b := make([]byte, 0, 4*len(tags))
	for _, v := range tags {
		b = binary.LittleEndian.AppendUint16(b, v.Group)
		b = binary.LittleEndian.AppendUint16(b, v.Element)
	}
	return Element{Tag: t, Value: b}
}

// Encode serializes elems in ascending tag order, preceded by the
// CommandGroupLength element. Any CommandGroupLength passed in is ignored.
func Encode(elems []Element) []byte {
	sorted := make([]Element, 0, len(elems))
	for _, e := range elems {
		if e.Tag != CommandGroupLength {
			sorted = append(sorted, e)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Tag.Group != sorted[j].Tag.Group {
			return sorted[i].Tag.Group < sorted[j].Tag.Group
		}
		return sorted[i].Tag.Element < sorted[j].Tag.Element
	})
	var body []byte
	for _, e := range sorted {
		body = appendElement(body, e)
	}
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(len(body)))
	out := appendElement(make([]byte, 0, len(body)+12), Element{Tag: CommandGroupLength, Value: groupLength})
	return append(out, body...)
}

func appendElement(b []byte, e Element) []byte {
	b = binary.LittleEndian.AppendUint16(b, e.Tag.Group)
	b = binary.LittleEndian.AppendUint16(b, e.Tag.Element)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(e.Value)))
	return append(b, e.Value...)
}

// Decode parses an Implicit VR Little Endian command set into its elements,
// keyed by tag.
func Decode(data []byte) (map[tag.Tag]Element, error) {
	elems := make(map[tag.Tag]Element)
	for len(data) > 0 {
		if len(data) < 8 {
			return nil, fmt.Errorf("commandset.Decode: %d trailing bytes: %w", len(data), ErrTruncated)
		}
		t := tag.Tag{
			Group:   binary.LittleEndian.Uint16(data[0:]),
			Element: binary.LittleEndian.Uint16(data[2:]),
		}
		length := binary.LittleEndian.Uint32(data[4:])
		data = data[8:]
		if uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("commandset.Decode: element %s wants %d bytes, %d left: %w", t.String(), length, len(data), ErrTruncated)
		}
		elems[t] = Element{Tag: t, Value: data[:length]}
		data = data[length:]
	}
	return elems, nil
}

// DecodeUint16 interprets a US value.
func DecodeUint16(e Element) (uint16, error) {
	if len(e.Value) != 2 {
		return 0, fmt.Errorf("commandset.DecodeUint16: element %s has %d bytes", e.Tag.String(), len(e.Value))
	}
	return binary.LittleEndian.Uint16(e.Value), nil
}

// DecodeString interprets a string value, dropping the padding.
func DecodeString(e Element) string {
	return strings.TrimRight(string(e.Value), " \x00")
}

// DecodeTags interprets an AT value.
func DecodeTags(e Element) ([]tag.Tag, error) {
	if len(e.Value)%4 != 0 {
		return nil, fmt.Errorf("commandset.DecodeTags: element %s has %d bytes", e.Tag.String(), len(e.Value))
	}
	tags := make([]tag.Tag, 0, len(e.Value)/4)
	for i := 0; i < len(e.Value); i += 4 {
		tags = append(tags, tag.Tag{
			Group:   binary.LittleEndian.Uint16(e.Value[i:]),
			Element: binary.LittleEndian.Uint16(e.Value[i+2:]),
		})
	}
	return tags, nil
}
