package commandset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestEncodeGroupLengthAndOrder(t *testing.T) {
	data := Encode([]Element{
		Uint16(MessageID, 7),
		Uint16(CommandField, 0x30),
	})
	assert.Equal(t, []byte{
		0, 0, 0, 0, 4, 0, 0, 0, 20, 0, 0, 0,
		0, 0, 0, 1, 2, 0, 0, 0, 0x30, 0,
		0, 0, 0x10, 1, 2, 0, 0, 0, 7, 0,
	}, data)
}

func TestStringPadding(t *testing.T) {
	assert.Equal(t, []byte("1.2.3\x00"), String(AffectedSOPClassUID, "1.2.3").Value)
	assert.Equal(t, []byte("DEST "), String(MoveDestination, "DEST ").Value[:5])
	assert.Len(t, String(MoveDestination, "ABC").Value, 4)
	assert.Equal(t, "1.2.3", DecodeString(String(AffectedSOPClassUID, "1.2.3")))
	assert.Equal(t, "ABC", DecodeString(String(MoveDestination, "ABC")))
}

func TestDecodeRoundTrip(t *testing.T) {
	tags := []tag.Tag{{Group: 0x0010, Element: 0x0020}}
	data := Encode([]Element{
		Uint16(CommandField, 0x8020),
		String(AffectedSOPClassUID, "1.2.840.10008.1.1"),
		Tags(AttributeIdentifierList, tags),
	})
	elems, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, elems, 4)
	v, err := DecodeUint16(elems[CommandField])
	require.NoError(t, err)
	assert.Equal(t, uint16(0x8020), v)
	got, err := DecodeTags(elems[AttributeIdentifierList])
	require.NoError(t, err)
	assert.Equal(t, tags, got)

	_, err = DecodeUint16(elems[AffectedSOPClassUID])
	assert.Error(t, err)
}

func TestVR(t *testing.T) {
	assert.Equal(t, "UL", VR(CommandGroupLength))
	assert.Equal(t, "US", VR(Status))
	assert.Equal(t, "UN", VR(tag.Tag{Group: 0x0000, Element: 0x4000}))
}
