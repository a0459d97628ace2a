package netdicom

import (
	"fmt"
	"sync/atomic"
)

// Statistics counts the traffic of a connection. A Server keeps one more
// that every connection also adds to.
type Statistics struct {
	bytesReceived atomic.Uint64
	bytesSent     atomic.Uint64
	pdusReceived  atomic.Uint64
	pdusSent      atomic.Uint64

	parent *Statistics
}

// StatisticsSnapshot is a point in time copy of Statistics.
type StatisticsSnapshot struct {
	BytesReceived uint64
	BytesSent     uint64
	PDUsReceived  uint64
	PDUsSent      uint64
}

func (s StatisticsSnapshot) String() string {
	return fmt.Sprintf("rx %d PDUs/%d bytes, tx %d PDUs/%d bytes",
		s.PDUsReceived, s.BytesReceived, s.PDUsSent, s.BytesSent)
}

// StatisticsObserver is handed the final counters of a connection.
type StatisticsObserver func(label string, s StatisticsSnapshot)

func (s *Statistics) addBytesReceived(n int) {
	for ; s != nil; s = s.parent {
		s.bytesReceived.Add(uint64(n))
	}
}

func (s *Statistics) addPDUReceived() {
	for ; s != nil; s = s.parent {
		s.pdusReceived.Add(1)
	}
}

func (s *Statistics) addPDUSent(n int) {
	for ; s != nil; s = s.parent {
		s.pdusSent.Add(1)
		s.bytesSent.Add(uint64(n))
	}
}

func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		BytesReceived: s.bytesReceived.Load(),
		BytesSent:     s.bytesSent.Load(),
		PDUsReceived:  s.pdusReceived.Load(),
		PDUsSent:      s.pdusSent.Load(),
	}
}
