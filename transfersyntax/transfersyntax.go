// Package transfersyntax lists the transfer syntax UIDs the engine knows how
// to negotiate and which of them can be converted into one another.
package transfersyntax

const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"

	JPEGBaseline8Bit        = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit       = "1.2.840.10008.1.2.4.51"
	JPEGLossless            = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1         = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless          = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless      = "1.2.840.10008.1.2.4.81"
	JPEG2000Lossless        = "1.2.840.10008.1.2.4.90"
	JPEG2000                = "1.2.840.10008.1.2.4.91"
	RLELossless             = "1.2.840.10008.1.2.5"
	MPEG2MainProfile        = "1.2.840.10008.1.2.4.100"
	MPEG4AVCH264HighProfile = "1.2.840.10008.1.2.4.102"
)

// Default is the transfer syntax every DICOM peer must support. It is also
// what an accepted presentation context means when it names no syntax.
const Default = ImplicitVRLittleEndian

// Transcodable is the allow-list of syntaxes a payload may be converted
// between without touching encapsulated pixel data.
var Transcodable = []string{
	ImplicitVRLittleEndian,
	ExplicitVRLittleEndian,
	DeflatedExplicitVRLittleEndian,
	ExplicitVRBigEndian,
}

// IsTranscodable reports whether uid is on the Transcodable allow-list.
func IsTranscodable(uid string) bool {
	for _, ts := range Transcodable {
		if ts == uid {
			return true
		}
	}
	return false
}

// IsLittleEndianUncompressed is true for the two syntaxes a storage request
// proposes by default. Any other payload syntax gets its own presentation
// context.
func IsLittleEndianUncompressed(uid string) bool {
	return uid == ImplicitVRLittleEndian || uid == ExplicitVRLittleEndian
}

// OrDefault returns uid, or Default if uid is empty.
func OrDefault(uid string) string {
	if uid == "" {
		return Default
	}
	return uid
}
