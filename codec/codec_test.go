package codec

import (
	"errors"
	"testing"

	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func testDataset(t *testing.T) *dicom.Dataset {
	t.Helper()
	var elems []*dicom.Element
	for _, e := range []struct {
		tag   tag.Tag
		value []string
	}{
		{tag.TransferSyntaxUID, []string{transfersyntax.ExplicitVRLittleEndian}},
		{tag.PatientName, []string{"Doe^John"}},
		{tag.PatientID, []string{"123456"}},
		{tag.StudyInstanceUID, []string{"1.2.3.4"}},
	} {
		elem, err := dicom.NewElement(e.tag, e.value)
		require.NoError(t, err)
		elems = append(elems, elem)
	}
	return &dicom.Dataset{Elements: elems}
}

func stringValue(t *testing.T, ds *dicom.Dataset, tg tag.Tag) string {
	t.Helper()
	elem, err := ds.FindElementByTag(tg)
	require.NoError(t, err)
	v, ok := elem.Value.GetValue().([]string)
	require.True(t, ok)
	require.NotEmpty(t, v)
	return v[0]
}

func TestRoundTrip(t *testing.T) {
	c := New()
	for _, ts := range []string{
		"",
		transfersyntax.ImplicitVRLittleEndian,
		transfersyntax.ExplicitVRLittleEndian,
		transfersyntax.ExplicitVRBigEndian,
		transfersyntax.DeflatedExplicitVRLittleEndian,
	} {
		data, err := c.Encode(testDataset(t), ts)
		require.NoError(t, err, ts)
		require.NotEmpty(t, data)

		ds, err := c.Decode(data, ts)
		require.NoError(t, err, ts)
		assert.Len(t, ds.Elements, 3, ts)
		assert.Equal(t, "Doe^John", stringValue(t, ds, tag.PatientName), ts)
		assert.Equal(t, "123456", stringValue(t, ds, tag.PatientID), ts)
		_, err = ds.FindElementByTag(tag.TransferSyntaxUID)
		assert.Error(t, err, "file meta information is not sent")
	}
}

func TestEncodeNil(t *testing.T) {
	data, err := New().Encode(nil, "")
	assert.NoError(t, err)
	assert.Nil(t, data)

	ds, err := New().Decode(nil, "")
	require.NoError(t, err)
	assert.Empty(t, ds.Elements)
}

func TestDeflateShrinks(t *testing.T) {
	c := New()
	ds := testDataset(t)
	long, err := dicom.NewElement(tag.StudyDescription, []string{string(make([]byte, 4096))})
	require.NoError(t, err)
	ds.Elements = append(ds.Elements, long)
	plain, err := c.Encode(ds, transfersyntax.ExplicitVRLittleEndian)
	require.NoError(t, err)
	deflated, err := c.Encode(ds, transfersyntax.DeflatedExplicitVRLittleEndian)
	require.NoError(t, err)
	assert.Less(t, len(deflated), len(plain))
}

func TestTranscode(t *testing.T) {
	c := New()
	ds := testDataset(t)
	got, err := c.Transcode(ds, transfersyntax.ExplicitVRLittleEndian, "")
	require.NoError(t, err)
	assert.Same(t, ds, got)

	got, err = c.Transcode(ds, transfersyntax.JPEGBaseline8Bit, transfersyntax.JPEGBaseline8Bit)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	_, err = c.Transcode(ds, transfersyntax.JPEGBaseline8Bit, transfersyntax.ImplicitVRLittleEndian)
	assert.True(t, errors.Is(err, ErrUnsupportedTransferSyntax))
}

func TestDecodeShortDataset(t *testing.T) {
	c := New()
	for _, ts := range []string{
		transfersyntax.ImplicitVRLittleEndian,
		transfersyntax.ExplicitVRLittleEndian,
		transfersyntax.ExplicitVRBigEndian,
		transfersyntax.DeflatedExplicitVRLittleEndian,
	} {
		elem, err := dicom.NewElement(tag.QueryRetrieveLevel, []string{"STUDY"})
		require.NoError(t, err)
		data, err := c.Encode(&dicom.Dataset{Elements: []*dicom.Element{elem}}, ts)
		require.NoError(t, err, ts)
		require.Less(t, len(data), 100, ts)

		ds, err := c.Decode(data, ts)
		require.NoError(t, err, ts)
		require.Len(t, ds.Elements, 1, ts)
		assert.Equal(t, "STUDY", stringValue(t, ds, tag.QueryRetrieveLevel), ts)
	}
}

func TestMetaHeader(t *testing.T) {
	h := metaHeader(transfersyntax.ImplicitVRLittleEndian)
	assert.Equal(t, "DICM", string(h[128:132]))
	assert.Zero(t, len(h)%2)
	assert.Equal(t, metaHeader(transfersyntax.ExplicitVRLittleEndian),
		metaHeader(transfersyntax.DeflatedExplicitVRLittleEndian))
}
