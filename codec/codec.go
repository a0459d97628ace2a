// Package codec turns DIMSE payload datasets into bytes and back, at the
// transfer syntax of the presentation context they travel on.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/klauspost/compress/flate"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/uid"
)

// ErrUnsupportedTransferSyntax is returned for a conversion between transfer
// syntaxes that would require re-encoding pixel data.
var ErrUnsupportedTransferSyntax = errors.New("codec: unsupported transfer syntax conversion")

// metaGroup is the file meta information group. It never goes on the wire.
const metaGroup = 0x0002

// Codec encodes and decodes payload datasets with suyashkumar/dicom. It is
// stateless and safe for concurrent use.
type Codec struct {
	// DeflateLevel is the compression level for Deflated Explicit VR Little
	// Endian. Zero means flate.DefaultCompression.
	DeflateLevel int
}

// New returns a Codec with default settings.
func New() *Codec { return &Codec{} }

// Encode serializes the elements of ds, without file meta information, in
// transferSyntaxUID. An empty UID means Implicit VR Little Endian.
func (c *Codec) Encode(ds *dicom.Dataset, transferSyntaxUID string) ([]byte, error) {
	if ds == nil {
		return nil, nil
	}
	transferSyntaxUID = transfersyntax.OrDefault(transferSyntaxUID)
	bo, implicit, err := uid.ParseTransferSyntaxUID(transferSyntaxUID)
	if err != nil {
		return nil, fmt.Errorf("Codec.Encode: %s: %w", dicomuid.UIDString(transferSyntaxUID), err)
	}
	var buf bytes.Buffer
	var out io.Writer = &buf
	var deflater *flate.Writer
	if transferSyntaxUID == transfersyntax.DeflatedExplicitVRLittleEndian {
		level := c.DeflateLevel
		if level == 0 {
			level = flate.DefaultCompression
		}
		if deflater, err = flate.NewWriter(&buf, level); err != nil {
			return nil, fmt.Errorf("Codec.Encode: %w", err)
		}
		out = deflater
	}
	w, err := dicom.NewWriter(out, dicom.SkipVRVerification())
	if err != nil {
		return nil, fmt.Errorf("Codec.Encode: error creating writer: %w", err)
	}
	w.SetTransferSyntax(bo, implicit)
	for _, elem := range ds.Elements {
		if elem.Tag.Group == metaGroup {
			continue
		}
		if err := w.WriteElement(elem); err != nil {
			return nil, fmt.Errorf("Codec.Encode: element %s: %w", elem.Tag.String(), err)
		}
	}
	if deflater != nil {
		if err := deflater.Close(); err != nil {
			return nil, fmt.Errorf("Codec.Encode: %w", err)
		}
	}
	dicomlog.Vprintf(2, "dicom.codec: encoded %d elements, %d bytes, %s",
		len(ds.Elements), buf.Len(), dicomuid.UIDString(transferSyntaxUID))
	return buf.Bytes(), nil
}

// Decode parses a payload encoded in transferSyntaxUID.
func (c *Codec) Decode(data []byte, transferSyntaxUID string) (*dicom.Dataset, error) {
	transferSyntaxUID = transfersyntax.OrDefault(transferSyntaxUID)
	bo, implicit, err := uid.ParseTransferSyntaxUID(transferSyntaxUID)
	if err != nil {
		return nil, fmt.Errorf("Codec.Decode: %s: %w", dicomuid.UIDString(transferSyntaxUID), err)
	}
	if transferSyntaxUID == transfersyntax.DeflatedExplicitVRLittleEndian {
		inflater := flate.NewReader(bytes.NewReader(data))
		inflated, err := io.ReadAll(inflater)
		if err != nil {
			return nil, fmt.Errorf("Codec.Decode: inflate: %w", err)
		}
		if err := inflater.Close(); err != nil {
			return nil, fmt.Errorf("Codec.Decode: inflate: %w", err)
		}
		data = inflated
	}
	ds := &dicom.Dataset{}
	if len(data) == 0 {
		return ds, nil
	}
	// The parser guesses the syntax of a stream without file meta
	// information and cannot guess at all under 100 bytes, so it is told.
	header := metaHeader(transferSyntaxUID)
	in := io.MultiReader(bytes.NewReader(header), bytes.NewReader(data))
	p, err := dicom.NewParser(in, int64(len(header)+len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("Codec.Decode: error creating parser: %w", err)
	}
	p.SetTransferSyntax(bo, implicit)
	for {
		elem, err := p.Next()
		if errors.Is(err, dicom.ErrorEndOfDICOM) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Codec.Decode: after %d elements: %w", len(ds.Elements), err)
		}
		ds.Elements = append(ds.Elements, elem)
	}
	return ds, nil
}

// metaHeader is a minimal file preamble and meta group naming the syntax the
// payload that follows is in. Deflated payloads are inflated before parsing.
func metaHeader(transferSyntaxUID string) []byte {
	if transferSyntaxUID == transfersyntax.DeflatedExplicitVRLittleEndian {
		transferSyntaxUID = transfersyntax.ExplicitVRLittleEndian
	}
	value := []byte(transferSyntaxUID)
	if len(value)%2 == 1 {
		value = append(value, 0)
	}
	const elementHeaderSize = 8
	buf := make([]byte, 128, 128+4+elementHeaderSize+4+elementHeaderSize+len(value))
	buf = append(buf, "DICM"...)
	buf = binary.LittleEndian.AppendUint16(buf, metaGroup)
	buf = binary.LittleEndian.AppendUint16(buf, 0x0000)
	buf = append(buf, "UL"...)
	buf = binary.LittleEndian.AppendUint16(buf, 4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(elementHeaderSize+len(value)))
	buf = binary.LittleEndian.AppendUint16(buf, metaGroup)
	buf = binary.LittleEndian.AppendUint16(buf, 0x0010)
	buf = append(buf, "UI"...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

// Transcode converts ds from one transfer syntax to another. Datasets are
// held decoded, so between the syntaxes in transfersyntax.Transcodable the
// conversion happens in Encode and ds is returned as is. Any other pair
// returns ErrUnsupportedTransferSyntax.
func (c *Codec) Transcode(ds *dicom.Dataset, from, to string) (*dicom.Dataset, error) {
	from, to = transfersyntax.OrDefault(from), transfersyntax.OrDefault(to)
	if from == to {
		return ds, nil
	}
	if !transfersyntax.IsTranscodable(from) || !transfersyntax.IsTranscodable(to) {
		return nil, fmt.Errorf("Codec.Transcode: %s to %s: %w",
			dicomuid.UIDString(from), dicomuid.UIDString(to), ErrUnsupportedTransferSyntax)
	}
	dicomlog.Vprintf(1, "dicom.codec: transcoding %s to %s", dicomuid.UIDString(from), dicomuid.UIDString(to))
	return ds, nil
}
