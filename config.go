package netdicom

import (
	"time"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/codec"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/suyashkumar/dicom"
)

const (
	DefaultConnectTimeout     = 3 * time.Second
	DefaultAssociationTimeout = 60 * time.Second
	DefaultPDUTimeout         = 60 * time.Second
	DefaultReleaseTimeout     = 10 * time.Second
	DefaultTimerInterval      = time.Second

	// DefaultMaxReceivePDULength bounds the body of an inbound PDU. Anything
	// larger is treated as a framing error.
	DefaultMaxReceivePDULength uint32 = 64 << 20
)

// DatasetCodec serializes payload datasets at a given transfer syntax.
type DatasetCodec interface {
	Encode(ds *dicom.Dataset, transferSyntaxUID string) ([]byte, error)
	Decode(data []byte, transferSyntaxUID string) (*dicom.Dataset, error)
}

// Transcoder converts a payload between two transfer syntaxes. The engine
// only calls it for pairs on transfersyntax.Transcodable.
type Transcoder interface {
	Transcode(ds *dicom.Dataset, fromTransferSyntaxUID, toTransferSyntaxUID string) (*dicom.Dataset, error)
}

// Config holds the parameters of one Network. The zero value is usable;
// zero fields take the defaults above.
type Config struct {
	// Label prefixes log lines of the connection.
	Label string
	// Implementation identifies this side in A-ASSOCIATE PDUs.
	Implementation association.Implementation
	// TransferSyntaxes are proposed for every presentation context by a
	// client, and are the preference order of a server.
	TransferSyntaxes []string

	ConnectTimeout     time.Duration
	AssociationTimeout time.Duration
	PDUTimeout         time.Duration
	ReleaseTimeout     time.Duration
	// TimerInterval is how often the timeouts are checked.
	TimerInterval time.Duration

	MaxReceivePDULength uint32

	Codec      DatasetCodec
	Transcoder Transcoder

	// StatisticsObserver, if set, receives the counters of each connection
	// when it closes.
	StatisticsObserver StatisticsObserver
}

func (c Config) withDefaults() Config {
	c.Implementation = c.Implementation.WithDefaults()
	if len(c.TransferSyntaxes) == 0 {
		c.TransferSyntaxes = association.DefaultProposedTransferSyntaxes
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AssociationTimeout <= 0 {
		c.AssociationTimeout = DefaultAssociationTimeout
	}
	if c.PDUTimeout <= 0 {
		c.PDUTimeout = DefaultPDUTimeout
	}
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = DefaultReleaseTimeout
	}
	if c.TimerInterval <= 0 {
		c.TimerInterval = DefaultTimerInterval
	}
	if c.MaxReceivePDULength == 0 {
		c.MaxReceivePDULength = DefaultMaxReceivePDULength
	}
	if c.Codec == nil || c.Transcoder == nil {
		cc := codec.New()
		if c.Codec == nil {
			c.Codec = cc
		}
		if c.Transcoder == nil {
			c.Transcoder = cc
		}
	}
	return c
}

// serverTransferSyntaxes is the preference order a server uses when the
// configuration names none.
var serverTransferSyntaxes = transfersyntax.Transcodable
