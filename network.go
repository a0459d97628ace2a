// Package netdicom implements the DICOM upper layer protocol engine, P3.8:
// association negotiation, the DIMSE request pump, fragmentation and
// reassembly of messages, and connection lifecycle with timeouts.
//
// A Network owns one connection and one association. Client and Server
// build on it for the common cases.
package netdicom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/grailbio/go-dicom/dicomlog"
)

// Role tells which side of the association a Network plays.
type Role int

const (
	// RoleRequestor opens the association (association requestor, SCU).
	RoleRequestor Role = iota
	// RoleAcceptor answers an association request (SCP).
	RoleAcceptor
)

func (r Role) String() string {
	if r == RoleRequestor {
		return "requestor"
	}
	return "acceptor"
}

// Network drives one connection: it runs the P3.8 state machine, queues
// outbound DIMSE requests, correlates their responses and dispatches
// inbound requests to Handlers.
//
// All protocol state is owned by a single goroutine. The exported methods
// only enqueue work for it and never block.
type Network struct {
	label    string
	isUser   bool
	cfg      Config
	events   Events
	handlers Handlers
	stats    *Statistics

	conn             net.Conn
	// assoc is the association being negotiated or established. Presentation
	// contexts are looked up in it by id.
	assoc            *association.Association
	peerMaxPDULength uint32
	// established is assoc once frozen, for readers outside the state machine.
	established      atomic.Pointer[association.Association]

	state     stateType
	netCh     chan rawEvent
	downcalls *eventQueue
	ticker    *time.Ticker

	connectedAt  time.Time
	lastPDUAt    time.Time
	artimStarted time.Time

	assembler dimse.CommandAssembler

	// Outbound requests: queue holds the ones not sent yet, pending the one
	// awaiting its final response.
	queue     []*dimse.Request
	pending   *dimse.Request
	messageID dimse.MessageID
	idle      bool

	// inbound are the requests received from the peer that have not been
	// answered with a final response yet.
	inbound map[dimse.MessageID]*dimse.Request

	handlerCtx    context.Context
	cancelHandler context.CancelFunc

	// active is set once the state machine left Idle for the first time.
	active     bool
	connClosed bool
	readerOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
	closed     chan struct{}
}

type rawEvent struct {
	block []byte
	err   error
}

// NewNetwork wraps conn. Call Start to run it.
func NewNetwork(conn net.Conn, role Role, cfg Config, events Events, handlers Handlers) *Network {
	cfg = cfg.withDefaults()
	label := cfg.Label
	if label == "" {
		label = fmt.Sprintf("%v:%v", role, conn.RemoteAddr())
	}
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	return &Network{
		label:         label,
		isUser:        role == RoleRequestor,
		cfg:           cfg,
		events:        events,
		handlers:      handlers,
		stats:         &Statistics{},
		conn:          conn,
		state:         stateIdle,
		netCh:         make(chan rawEvent, 128),
		downcalls:     newEventQueue(),
		connectedAt:   now,
		lastPDUAt:     now,
		inbound:       make(map[dimse.MessageID]*dimse.Request),
		handlerCtx:    ctx,
		cancelHandler: cancel,
		closed:        make(chan struct{}),
	}
}

// Start runs the connection in a new goroutine. An acceptor starts
// listening for A-ASSOCIATE-RQ right away; a requestor waits for
// SendAssociationRequest.
func (n *Network) Start() {
	if !n.isUser {
		n.downcalls.push(stateEvent{event: evtTransportAccepted})
	}
	n.ticker = time.NewTicker(n.cfg.TimerInterval)
	go n.run()
}

func (n *Network) run() {
	dicomlog.Vprintf(1, "dicom.Network(%s): starting", n.label)
	for {
		n.runOneStep()
		if n.state != stateIdle {
			n.active = true
		} else if n.active || n.connClosed {
			break
		}
	}
	n.shutdown()
	dicomlog.Vprintf(1, "dicom.Network(%s): statemachine finished", n.label)
}

// Label identifies the connection in logs.
func (n *Network) Label() string { return n.label }

// Association returns the established association, nil until it is
// accepted. It is read-only.
func (n *Network) Association() *association.Association { return n.established.Load() }

// PeerMaxPDULength is the maximum PDU length the peer announced, 0 meaning
// unlimited.
func (n *Network) PeerMaxPDULength() uint32 { return n.peerMaxPDULength }

// Statistics returns the live traffic counters.
func (n *Network) Statistics() *Statistics { return n.stats }

// Closed is closed once the connection is gone and every request has been
// completed.
func (n *Network) Closed() <-chan struct{} { return n.closed }

// Err is the reason the connection closed, nil after a clean release. It is
// only meaningful once Closed is closed.
func (n *Network) Err() error {
	select {
	case <-n.closed:
		return n.closeErr
	default:
		return nil
	}
}

// SendAssociationRequest proposes a to the peer. Only a requestor calls it.
func (n *Network) SendAssociationRequest(a *association.Association) {
	n.downcall(stateEvent{event: evtAssociateRequest, assoc: a})
}

// SendAssociationAccept answers the pending A-ASSOCIATE-RQ with the results
// recorded on the association's presentation contexts.
func (n *Network) SendAssociationAccept() {
	n.downcall(stateEvent{event: evtAssociateAccept})
}

func (n *Network) SendAssociationReject(rj *pdu.AAssociateRj) {
	n.downcall(stateEvent{event: evtAssociateReject, reject: rj})
}

func (n *Network) SendAssociationReleaseRequest() {
	n.downcall(stateEvent{event: evtReleaseRequest})
}

func (n *Network) SendAssociationReleaseResponse() {
	n.downcall(stateEvent{event: evtReleaseResponse})
}

// Abort sends A-ABORT and closes the connection. Calling it again, or after
// the connection closed, has no effect.
func (n *Network) Abort() {
	n.downcall(stateEvent{event: evtAbortRequest})
}

// SendRequests queues requests. They are sent one at a time once the
// association is established, each after the previous one got its final
// response. A request is always completed: by its final response, or with
// an error if it cannot be sent.
func (n *Network) SendRequests(requests ...*dimse.Request) {
	if len(requests) == 0 {
		return
	}
	if !n.downcalls.push(stateEvent{event: evtSendRequests, requests: requests}) {
		for _, req := range requests {
			req.Complete(ErrConnectionClosed)
		}
	}
}

// Cancel withdraws req. A queued request is completed with ErrCanceled; for
// the request in flight a C-CANCEL is sent and the peer's final response
// completes it.
func (n *Network) Cancel(req *dimse.Request) {
	n.downcall(stateEvent{event: evtCancelRequest, requests: []*dimse.Request{req}})
}

func (n *Network) downcall(event stateEvent) {
	if !n.downcalls.push(event) {
		dicomlog.Vprintf(2, "dicom.Network(%s): %v after close, ignored", n.label, event.event)
	}
}

func (n *Network) getNextEvent() stateEvent {
	for {
		if event, ok := n.downcalls.pop(); ok {
			return event
		}
		select {
		case raw := <-n.netCh:
			if event, ok := n.decodeEvent(raw); ok {
				return event
			}
		case <-n.downcalls.wake:
		case now := <-n.ticker.C:
			return stateEvent{event: evtTimerTick, now: now}
		}
	}
}

// decodeEvent turns what the reader saw into a P3.8 event. It returns false
// for a PDU to be ignored.
func (n *Network) decodeEvent(raw rawEvent) (stateEvent, bool) {
	if raw.err != nil {
		if errors.Is(raw.err, errFraming) {
			return stateEvent{event: evtInvalidPDU, err: fmt.Errorf("%w: %w", ErrProtocol, raw.err)}, true
		}
		n.connClosed = true
		return stateEvent{event: evtTransportClosed, err: raw.err}, true
	}
	n.lastPDUAt = time.Now()
	n.stats.addPDUReceived()
	// Only the AC answering our own request may update the association.
	a := n.assoc
	if a != nil && n.state != stateAwaitingAssociateResponse {
		a = a.Clone()
	}
	v, err := pdu.Decode(raw.block, a)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.Network(%s): failed to decode PDU: %v", n.label, err)
		return stateEvent{event: evtInvalidPDU, err: fmt.Errorf("%w: %w", ErrProtocol, err)}, true
	}
	if v == nil {
		dicomlog.Vprintf(2, "dicom.Network(%s): no-op PDU ignored", n.label)
		return stateEvent{}, false
	}
	dicomlog.Vprintf(2, "dicom.Network(%s): read PDU: %v", n.label, v.String())
	switch v.(type) {
	case *pdu.AAssociateRQ:
		return stateEvent{event: evtAssociateRQ, pdu: v}, true
	case *pdu.AAssociateAC:
		return stateEvent{event: evtAssociateAC, pdu: v}, true
	case *pdu.AAssociateRj:
		return stateEvent{event: evtAssociateRJ, pdu: v}, true
	case *pdu.PDataTf:
		return stateEvent{event: evtPDataTF, pdu: v}, true
	case *pdu.AReleaseRq:
		return stateEvent{event: evtReleaseRQ, pdu: v}, true
	case *pdu.AReleaseRp:
		return stateEvent{event: evtReleaseRP, pdu: v}, true
	case *pdu.AAbort:
		return stateEvent{event: evtAbortPDU, pdu: v}, true
	}
	return stateEvent{event: evtInvalidPDU, err: fmt.Errorf("%w: unexpected PDU %v", ErrProtocol, v.String())}, true
}

var errFraming = errors.New("framing error")

func (n *Network) startReader() {
	n.readerOnce.Do(func() { go n.readLoop() })
}

// readLoop feeds the socket into a PDU accumulator and hands complete PDUs
// to the state machine goroutine.
func (n *Network) readLoop() {
	dicomlog.Vprintf(2, "dicom.Network(%s): starting network reader, max PDU %d", n.label, n.cfg.MaxReceivePDULength)
	send := func(ev rawEvent) bool {
		select {
		case n.netCh <- ev:
			return true
		case <-n.closed:
			return false
		}
	}
	acc := pdu.NewAccumulator(func(block []byte) { send(rawEvent{block: block}) }, n.cfg.MaxReceivePDULength)
	buf := make([]byte, 64<<10)
	for {
		m, err := n.conn.Read(buf)
		if m > 0 {
			n.stats.addBytesReceived(m)
			if ferr := acc.Feed(buf[:m]); ferr != nil {
				dicomlog.Vprintf(0, "dicom.Network(%s): %v", n.label, ferr)
				send(rawEvent{err: fmt.Errorf("%w: %w", errFraming, ferr)})
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				dicomlog.Vprintf(1, "dicom.Network(%s): peer closed the connection", n.label)
			} else {
				dicomlog.Vprintf(1, "dicom.Network(%s): read failed: %v", n.label, err)
			}
			if acc.Buffered() > 0 {
				err = fmt.Errorf("%w, %d bytes of a partial PDU", err, acc.Buffered())
			}
			send(rawEvent{err: err})
			break
		}
	}
	dicomlog.Vprintf(2, "dicom.Network(%s): exiting network reader", n.label)
}

func (n *Network) sendPDU(v pdu.PDU) error {
	if n.connClosed {
		return ErrConnectionClosed
	}
	data, err := pdu.EncodePDU(v)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.Network(%s): failed to encode %v: %v", n.label, v.Type(), err)
		return err
	}
	if err := n.conn.SetWriteDeadline(time.Now().Add(n.cfg.PDUTimeout)); err != nil {
		dicomlog.Vprintf(1, "dicom.Network(%s): set write deadline: %v", n.label, err)
	}
	if _, err := n.conn.Write(data); err != nil {
		dicomlog.Vprintf(0, "dicom.Network(%s): failed to write %d bytes: %v; closing connection", n.label, len(data), err)
		n.connClosed = true
		n.conn.Close()
		n.setCloseErr(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
		return err
	}
	n.stats.addPDUSent(len(data))
	dicomlog.Vprintf(2, "dicom.Network(%s): sendPDU: %v", n.label, v.String())
	return nil
}

// closeConnection closes the transport. The state machine moves to Idle
// right after.
func (n *Network) closeConnection() {
	dicomlog.Vprintf(1, "dicom.Network(%s): closing connection", n.label)
	n.connClosed = true
	n.conn.Close()
}

// setCloseErr records the first reason for closing.
func (n *Network) setCloseErr(err error) {
	if n.closeErr == nil {
		n.closeErr = err
	}
}

func (n *Network) networkError(err error) {
	dicomlog.Vprintf(0, "dicom.Network(%s): %v", n.label, err)
	n.setCloseErr(err)
	n.events.networkError(err)
}

// sendFailed closes the transport after a handshake or release PDU could not
// be sent.
func (n *Network) sendFailed(v pdu.PDU, err error) stateType {
	n.networkError(fmt.Errorf("netdicom: send %v: %w", v.Type(), err))
	n.closeConnection()
	return stateIdle
}

func (n *Network) startARTIM() { n.artimStarted = time.Now() }

func (n *Network) stopARTIM() { n.artimStarted = time.Time{} }

// checkTimers enforces the timeouts. It runs on every tick.
func (n *Network) checkTimers(now time.Time) {
	switch n.state {
	case stateIdle:
		if n.active || n.connClosed {
			return
		}
		if now.Sub(n.connectedAt) > n.cfg.AssociationTimeout {
			n.timeout(fmt.Errorf("association not requested after %v: %w", n.cfg.AssociationTimeout, ErrTimeout))
		}
		return
	case stateAwaitingClose:
		if !n.artimStarted.IsZero() && now.Sub(n.artimStarted) > n.cfg.ReleaseTimeout {
			n.state = actionAa2.Callback(n, stateEvent{event: evtARTIMExpired})
		}
		return
	case stateAwaitingAssociateRQ, stateAwaitingLocalAssociateResponse, stateConnecting, stateAwaitingAssociateResponse:
		if now.Sub(n.connectedAt) > n.cfg.AssociationTimeout {
			n.timeout(fmt.Errorf("association not established after %v: %w", n.cfg.AssociationTimeout, ErrTimeout))
			return
		}
	case stateAwaitingReleaseResponse:
		if !n.artimStarted.IsZero() && now.Sub(n.artimStarted) > n.cfg.ReleaseTimeout {
			n.timeout(fmt.Errorf("no A-RELEASE-RP after %v: %w", n.cfg.ReleaseTimeout, ErrTimeout))
			return
		}
	}
	if now.Sub(n.lastPDUAt) > n.cfg.PDUTimeout {
		n.timeout(fmt.Errorf("no PDU for %v: %w", n.cfg.PDUTimeout, ErrTimeout))
	}
}

func (n *Network) timeout(err error) {
	n.networkError(err)
	if n.state != stateConnecting && n.state != stateIdle {
		n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonNotSpecified})
	}
	n.closeConnection()
	n.state = stateIdle
}

// shutdown releases everything once the state machine stopped. Requests
// that did not get their final response are completed with
// ErrConnectionClosed.
func (n *Network) shutdown() {
	n.closeOnce.Do(func() {
		if n.ticker != nil {
			n.ticker.Stop()
		}
		n.conn.Close()
		n.cancelHandler()

		cause := ErrConnectionClosed
		if n.closeErr != nil && !errors.Is(n.closeErr, ErrConnectionClosed) {
			cause = fmt.Errorf("%w: %w", ErrConnectionClosed, n.closeErr)
		}
		var orphans []*dimse.Request
		if n.pending != nil {
			orphans = append(orphans, n.pending)
			n.pending = nil
		}
		orphans = append(orphans, n.queue...)
		n.queue = nil
		for _, event := range n.downcalls.close() {
			if event.event == evtSendRequests {
				orphans = append(orphans, event.requests...)
			}
		}
		for _, req := range orphans {
			req.Complete(cause)
		}
		dicomlog.Vprintf(1, "dicom.Network(%s): closed (%v): %v", n.label, n.stats.Snapshot(), n.closeErr)
		if n.cfg.StatisticsObserver != nil {
			n.cfg.StatisticsObserver(n.label, n.stats.Snapshot())
		}
		n.events.close(n.closeErr)
		close(n.closed)
	})
}

// eventQueue is the unbounded queue of downcalls into the state machine.
type eventQueue struct {
	mu     sync.Mutex
	events []stateEvent
	closed bool
	wake   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) push(event stateEvent) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.events = append(q.events, event)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *eventQueue) pop() (stateEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return stateEvent{}, false
	}
	event := q.events[0]
	q.events[0] = stateEvent{}
	q.events = q.events[1:]
	return event, true
}

// close stops the queue and returns what was left in it.
func (q *eventQueue) close() []stateEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	left := q.events
	q.events = nil
	return left
}
