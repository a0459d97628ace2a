package netdicom

// Implements the network statemachine, as defined in P3.8 9.2.3.
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf

import (
	"fmt"
	"time"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/grailbio/go-dicom/dicomlog"
)

type stateType int

const (
	stateIdle                           stateType = iota + 1 // Sta1
	stateAwaitingAssociateRQ                                 // Sta2
	stateAwaitingLocalAssociateResponse                      // Sta3
	stateConnecting                                          // Sta4
	stateAwaitingAssociateResponse                           // Sta5
	stateEstablished                                         // Sta6
	stateAwaitingReleaseResponse                             // Sta7
	stateAwaitingLocalReleaseResponse                        // Sta8
	stateCollisionRequestorLocal                             // Sta9
	stateCollisionAcceptorRemote                             // Sta10
	stateCollisionRequestorRemote                            // Sta11
	stateCollisionAcceptorLocal                              // Sta12
	stateAwaitingClose                                       // Sta13
)

var stateDescriptions = map[stateType]string{
	stateIdle:                           "Idle",
	stateAwaitingAssociateRQ:            "Transport connection open (Awaiting A-ASSOCIATE-RQ PDU)",
	stateAwaitingLocalAssociateResponse: "Awaiting local A-ASSOCIATE response primitive",
	stateConnecting:                     "Awaiting transport connection opening to complete",
	stateAwaitingAssociateResponse:      "Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU",
	stateEstablished:                    "Association established and ready for data transfer",
	stateAwaitingReleaseResponse:        "Awaiting A-RELEASE-RP PDU",
	stateAwaitingLocalReleaseResponse:   "Awaiting local A-RELEASE response primitive",
	stateCollisionRequestorLocal:        "Release collision requestor side; awaiting A-RELEASE response",
	stateCollisionAcceptorRemote:        "Release collision acceptor side; awaiting A-RELEASE-RP PDU",
	stateCollisionRequestorRemote:       "Release collision requestor side; awaiting A-RELEASE-RP PDU",
	stateCollisionAcceptorLocal:         "Release collision acceptor side; awaiting A-RELEASE response primitive",
	stateAwaitingClose:                  "Awaiting transport connection close indication",
}

func (s stateType) String() string {
	description, ok := stateDescriptions[s]
	if !ok {
		description = "Unknown state"
	}
	return fmt.Sprintf("sta%02d(%s)", int(s), description)
}

type eventType int

const (
	evtAssociateRequest   eventType = iota + 1 // Evt1
	evtTransportConnected                      // Evt2
	evtAssociateAC                             // Evt3
	evtAssociateRJ                             // Evt4
	evtTransportAccepted                       // Evt5
	evtAssociateRQ                             // Evt6
	evtAssociateAccept                         // Evt7
	evtAssociateReject                         // Evt8
	evtPDataRequest                            // Evt9
	evtPDataTF                                 // Evt10
	evtReleaseRequest                          // Evt11
	evtReleaseRQ                               // Evt12
	evtReleaseRP                               // Evt13
	evtReleaseResponse                         // Evt14
	evtAbortRequest                            // Evt15
	evtAbortPDU                                // Evt16
	evtTransportClosed                         // Evt17
	evtARTIMExpired                            // Evt18
	evtInvalidPDU                              // Evt19
)

// Local events outside of P3.8. They never reach the transition table.
const (
	evtSendRequests eventType = 100 + iota
	evtCancelRequest
	evtTimerTick
)

var eventDescriptions = map[eventType]string{
	evtAssociateRequest:   "A-ASSOCIATE request (local user)",
	evtTransportConnected: "Connection established (for service user)",
	evtAssociateAC:        "A-ASSOCIATE-AC PDU (received on transport connection)",
	evtAssociateRJ:        "A-ASSOCIATE-RJ PDU (received on transport connection)",
	evtTransportAccepted:  "Connection accepted (for service provider)",
	evtAssociateRQ:        "A-ASSOCIATE-RQ PDU (on transport connection)",
	evtAssociateAccept:    "A-ASSOCIATE response primitive (accept)",
	evtAssociateReject:    "A-ASSOCIATE response primitive (reject)",
	evtPDataRequest:       "P-DATA request primitive",
	evtPDataTF:            "P-DATA-TF PDU (on transport connection)",
	evtReleaseRequest:     "A-RELEASE request primitive",
	evtReleaseRQ:          "A-RELEASE-RQ PDU (on transport)",
	evtReleaseRP:          "A-RELEASE-RP PDU (on transport)",
	evtReleaseResponse:    "A-RELEASE response primitive",
	evtAbortRequest:       "A-ABORT request primitive",
	evtAbortPDU:           "A-ABORT PDU (on transport)",
	evtTransportClosed:    "Transport connection closed indication",
	evtARTIMExpired:       "ARTIM timer expired",
	evtInvalidPDU:         "Unrecognized or invalid PDU received",
	evtSendRequests:       "Queue DIMSE requests",
	evtCancelRequest:      "Cancel DIMSE request",
	evtTimerTick:          "Timer tick",
}

func (e eventType) String() string {
	description, ok := eventDescriptions[e]
	if !ok {
		description = "Unknown event"
	}
	return fmt.Sprintf("evt%02d(%s)", int(e), description)
}

// outgoing is the payload of evtPDataRequest: responses a handler produced
// for an inbound request.
type outgoing struct {
	inbound   *dimse.Request
	responses []*dimse.Response
}

type stateEvent struct {
	event eventType
	pdu   pdu.PDU
	err   error

	assoc    *association.Association // evtAssociateRequest
	reject   *pdu.AAssociateRj        // evtAssociateReject
	outgoing *outgoing                // evtPDataRequest
	requests []*dimse.Request         // evtSendRequests, evtCancelRequest
	now      time.Time                // evtTimerTick
}

func (e *stateEvent) String() string {
	return fmt.Sprintf("type:%v err:%v pdu:%v", e.event, e.err, e.pdu)
}

type stateAction struct {
	Name        string
	Description string
	Callback    func(n *Network, event stateEvent) stateType
}

func (s *stateAction) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Description)
}

// Association establishment related actions
var actionAe1 = &stateAction{"AE-1",
	"Issue TRANSPORT CONNECT request primitive to local transport service",
	func(n *Network, event stateEvent) stateType {
		n.assoc = event.assoc
		// The transport is handed to the Network already connected.
		n.downcalls.push(stateEvent{event: evtTransportConnected})
		return stateConnecting
	}}

var actionAe2 = &stateAction{"AE-2", "Connection established on the user side. Send A-ASSOCIATE-RQ-PDU",
	func(n *Network, event stateEvent) stateType {
		n.startReader()
		n.events.connect()
		rq := &pdu.AAssociateRQ{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			Association:     n.assoc,
		}
		if err := n.sendPDU(rq); err != nil {
			return n.sendFailed(rq, err)
		}
		return stateAwaitingAssociateResponse
	}}

var actionAe3 = &stateAction{"AE-3", "Issue A-ASSOCIATE confirmation (accept) primitive",
	func(n *Network, event stateEvent) stateType {
		n.peerMaxPDULength = n.assoc.MaxPduLength
		n.assoc.Freeze()
		n.established.Store(n.assoc)
		accepted := 0
		for _, pc := range n.assoc.PresentationContexts() {
			if pc.Accepted() {
				accepted++
			}
		}
		dicomlog.Vprintf(1, "dicom.Network(%s): association accepted, %d of %d contexts, peer max PDU %d",
			n.label, accepted, len(n.assoc.PresentationContexts()), n.peerMaxPDULength)
		n.events.associationAccepted(n.assoc)
		return stateEstablished
	}}

var actionAe4 = &stateAction{"AE-4", "Issue A-ASSOCIATE confirmation (reject) primitive and close transport connection",
	func(n *Network, event stateEvent) stateType {
		rj := event.pdu.(*pdu.AAssociateRj)
		dicomlog.Vprintf(0, "dicom.Network(%s): association rejected: %v", n.label, rj.String())
		n.setCloseErr(&AssociationRejectedError{Reject: *rj})
		n.events.associationRejected(rj)
		n.closeConnection()
		return stateIdle
	}}

var actionAe5 = &stateAction{"AE-5", "Issue Transport connection response primitive",
	func(n *Network, event stateEvent) stateType {
		n.startReader()
		n.events.connect()
		return stateAwaitingAssociateRQ
	}}

var actionAe6 = &stateAction{"AE-6", `If A-ASSOCIATE-RQ acceptable by service-dul: issue A-ASSOCIATE indication primitive,
otherwise issue A-ASSOCIATE-RJ-PDU and start ARTIM timer`,
	func(n *Network, event stateEvent) stateType {
		v := event.pdu.(*pdu.AAssociateRQ)
		if v.ProtocolVersion != pdu.CurrentProtocolVersion {
			dicomlog.Vprintf(0, "dicom.Network(%s): wrong remote protocol version 0x%x", n.label, v.ProtocolVersion)
			n.sendPDU(&pdu.AAssociateRj{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: pdu.RejectReasonApplicationContextNameNotSupported,
			})
			n.startARTIM()
			return stateAwaitingClose
		}
		n.assoc = v.Association
		n.peerMaxPDULength = n.assoc.MaxPduLength
		dicomlog.Vprintf(1, "dicom.Network(%s): association requested: %v", n.label, n.assoc)
		if n.events.OnAssociationRequested == nil {
			n.downcalls.push(stateEvent{event: evtAssociateReject, reject: &pdu.AAssociateRj{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceUser,
				Reason: pdu.RejectReasonNone,
			}})
		} else {
			n.events.OnAssociationRequested(n.assoc)
		}
		return stateAwaitingLocalAssociateResponse
	}}

var actionAe7 = &stateAction{"AE-7", "Send A-ASSOCIATE-AC PDU",
	func(n *Network, event stateEvent) stateType {
		for _, pc := range n.assoc.PresentationContexts() {
			if pc.Result == association.ResultProposed {
				pc.SetResult(association.ResultRejectUser, "")
			}
		}
		ac := &pdu.AAssociateAC{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			Association:     n.assoc,
		}
		if err := n.sendPDU(ac); err != nil {
			return n.sendFailed(ac, err)
		}
		n.assoc.Freeze()
		n.established.Store(n.assoc)
		n.events.associationAccepted(n.assoc)
		return stateEstablished
	}}

var actionAe8 = &stateAction{"AE-8", "Send A-ASSOCIATE-RJ PDU and start ARTIM timer",
	func(n *Network, event stateEvent) stateType {
		dicomlog.Vprintf(1, "dicom.Network(%s): rejecting association: %v", n.label, event.reject.String())
		n.sendPDU(event.reject)
		n.events.associationRejected(event.reject)
		n.startARTIM()
		return stateAwaitingClose
	}}

// Data transfer related actions
var actionDt1 = &stateAction{"DT-1", "Send P-DATA-TF PDU",
	func(n *Network, event stateEvent) stateType {
		n.sendResponses(event.outgoing)
		return stateEstablished
	}}

var actionDt2 = &stateAction{"DT-2", "Send P-DATA indication primitive",
	func(n *Network, event stateEvent) stateType {
		if err := n.receivePData(event.pdu.(*pdu.PDataTf)); err != nil {
			event.err = err
			return actionAa8.Callback(n, event)
		}
		return stateEstablished
	}}

// Association release related actions
var actionAr1 = &stateAction{"AR-1", "Send A-RELEASE-RQ PDU",
	func(n *Network, event stateEvent) stateType {
		if err := n.sendPDU(&pdu.AReleaseRq{}); err != nil {
			return n.sendFailed(&pdu.AReleaseRq{}, err)
		}
		n.startARTIM()
		return stateAwaitingReleaseResponse
	}}

var actionAr2 = &stateAction{"AR-2", "Issue A-RELEASE indication primitive",
	func(n *Network, event stateEvent) stateType {
		if n.events.OnAssociationReleaseRequested == nil {
			n.downcalls.push(stateEvent{event: evtReleaseResponse})
		} else {
			n.events.OnAssociationReleaseRequested()
		}
		return stateAwaitingLocalReleaseResponse
	}}

var actionAr3 = &stateAction{"AR-3", "Issue A-RELEASE confirmation primitive and close transport connection",
	func(n *Network, event stateEvent) stateType {
		n.events.associationReleaseResponse()
		n.closeConnection()
		return stateIdle
	}}

var actionAr4 = &stateAction{"AR-4", "Issue A-RELEASE-RP PDU and start ARTIM timer",
	func(n *Network, event stateEvent) stateType {
		if err := n.sendPDU(&pdu.AReleaseRp{}); err != nil {
			return n.sendFailed(&pdu.AReleaseRp{}, err)
		}
		n.startARTIM()
		return stateAwaitingClose
	}}

var actionAr5 = &stateAction{"AR-5", "Stop ARTIM timer",
	func(n *Network, event stateEvent) stateType {
		n.stopARTIM()
		return stateIdle
	}}

var actionAr6 = &stateAction{"AR-6", "Issue P-DATA indication",
	func(n *Network, event stateEvent) stateType {
		if err := n.receivePData(event.pdu.(*pdu.PDataTf)); err != nil {
			event.err = err
			return actionAa8.Callback(n, event)
		}
		return stateAwaitingReleaseResponse
	}}

var actionAr7 = &stateAction{"AR-7", "Issue P-DATA-TF PDU",
	func(n *Network, event stateEvent) stateType {
		n.sendResponses(event.outgoing)
		return stateAwaitingLocalReleaseResponse
	}}

var actionAr8 = &stateAction{"AR-8", "Issue A-RELEASE indication (release collision): if association-requestor, next state is Sta09, if not next state is Sta10",
	func(n *Network, event stateEvent) stateType {
		if n.isUser {
			n.downcalls.push(stateEvent{event: evtReleaseResponse})
			return stateCollisionRequestorLocal
		}
		return stateCollisionAcceptorRemote
	}}

var actionAr9 = &stateAction{"AR-9", "Send A-RELEASE-RP PDU",
	func(n *Network, event stateEvent) stateType {
		n.sendPDU(&pdu.AReleaseRp{})
		return stateCollisionRequestorRemote
	}}

var actionAr10 = &stateAction{"AR-10", "Issue A-RELEASE confirmation primitive",
	func(n *Network, event stateEvent) stateType {
		n.events.associationReleaseResponse()
		n.downcalls.push(stateEvent{event: evtReleaseResponse})
		return stateCollisionAcceptorLocal
	}}

// Association abort related actions
var actionAa1 = &stateAction{"AA-1", "Send A-ABORT PDU and close transport connection",
	func(n *Network, event stateEvent) stateType {
		if event.event == evtAbortRequest {
			n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceUser})
			n.setCloseErr(&AbortedError{Source: pdu.AbortSourceServiceUser, Local: true})
		} else {
			n.networkError(fmt.Errorf("%w: %v in %v", ErrProtocol, event.event, n.state))
			n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		}
		n.closeConnection()
		return stateIdle
	}}

var actionAa2 = &stateAction{"AA-2", "Stop ARTIM timer if running. Close transport connection",
	func(n *Network, event stateEvent) stateType {
		n.stopARTIM()
		if v, ok := event.pdu.(*pdu.AAbort); ok {
			n.setCloseErr(&AbortedError{Source: v.Source, Reason: v.Reason})
			n.events.abort(v)
		} else if event.event == evtAbortRequest && n.state != stateAwaitingClose {
			n.setCloseErr(&AbortedError{Source: pdu.AbortSourceServiceUser, Local: true})
		}
		n.closeConnection()
		return stateIdle
	}}

var actionAa3 = &stateAction{"AA-3", "Issue A-ABORT or A-P-ABORT indication and close transport connection",
	func(n *Network, event stateEvent) stateType {
		v := event.pdu.(*pdu.AAbort)
		dicomlog.Vprintf(0, "dicom.Network(%s): association aborted by peer: %v", n.label, v.String())
		n.setCloseErr(&AbortedError{Source: v.Source, Reason: v.Reason})
		n.events.abort(v)
		n.closeConnection()
		return stateIdle
	}}

var actionAa4 = &stateAction{"AA-4", "Issue A-P-ABORT indication primitive",
	func(n *Network, event stateEvent) stateType {
		err := fmt.Errorf("%w in %v: %v", ErrConnectionClosed, n.state, event.err)
		n.networkError(err)
		return stateIdle
	}}

var actionAa5 = &stateAction{"AA-5", "Stop ARTIM timer",
	func(n *Network, event stateEvent) stateType {
		n.stopARTIM()
		return stateIdle
	}}

var actionAa6 = &stateAction{"AA-6", "Ignore PDU",
	func(n *Network, event stateEvent) stateType {
		return stateAwaitingClose
	}}

var actionAa7 = &stateAction{"AA-7", "Send A-ABORT PDU",
	func(n *Network, event stateEvent) stateType {
		n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		return stateAwaitingClose
	}}

var actionAa8 = &stateAction{"AA-8", "Send A-ABORT PDU (service-dul source), issue an A-P-ABORT indication and start ARTIM timer",
	func(n *Network, event stateEvent) stateType {
		reason := pdu.AbortReasonUnexpectedPDU
		err := event.err
		if event.event == evtInvalidPDU {
			reason = pdu.AbortReasonUnrecognizedPDU
		}
		if err == nil {
			err = fmt.Errorf("%w: %v in %v", ErrProtocol, event.event, n.state)
		}
		n.networkError(err)
		n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
		n.startARTIM()
		return stateAwaitingClose
	}}

// actionUnexpected handles events the table has no entry for.
var actionUnexpected = &stateAction{"AA-X", "Send A-ABORT PDU and close transport connection",
	func(n *Network, event stateEvent) stateType {
		n.networkError(fmt.Errorf("%w: no action for %v in %v", ErrProtocol, event.event, n.state))
		if n.state != stateConnecting && n.state != stateIdle {
			n.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		}
		n.closeConnection()
		return stateIdle
	}}

type stateTransitionKey struct {
	current stateType
	event   eventType
}

var stateTransitions = map[stateTransitionKey]*stateAction{
	{stateIdle, evtAssociateRequest}:                          actionAe1,
	{stateIdle, evtTransportAccepted}:                         actionAe5,
	{stateIdle, evtAbortRequest}:                              actionAa2,
	{stateAwaitingAssociateRQ, evtAssociateAC}:                actionAa1,
	{stateAwaitingAssociateRQ, evtAssociateRJ}:                actionAa1,
	{stateAwaitingAssociateRQ, evtAssociateRQ}:                actionAe6,
	{stateAwaitingAssociateRQ, evtPDataTF}:                    actionAa1,
	{stateAwaitingAssociateRQ, evtReleaseRQ}:                  actionAa1,
	{stateAwaitingAssociateRQ, evtReleaseRP}:                  actionAa1,
	{stateAwaitingAssociateRQ, evtAbortRequest}:               actionAa1,
	{stateAwaitingAssociateRQ, evtAbortPDU}:                   actionAa2,
	{stateAwaitingAssociateRQ, evtTransportClosed}:            actionAa5,
	{stateAwaitingAssociateRQ, evtARTIMExpired}:               actionAa2,
	{stateAwaitingAssociateRQ, evtInvalidPDU}:                 actionAa1,
	{stateAwaitingLocalAssociateResponse, evtAssociateAC}:     actionAa8,
	{stateAwaitingLocalAssociateResponse, evtAssociateRJ}:     actionAa8,
	{stateAwaitingLocalAssociateResponse, evtAssociateRQ}:     actionAa8,
	{stateAwaitingLocalAssociateResponse, evtAssociateAccept}: actionAe7,
	{stateAwaitingLocalAssociateResponse, evtAssociateReject}: actionAe8,
	{stateAwaitingLocalAssociateResponse, evtPDataTF}:         actionAa8,
	{stateAwaitingLocalAssociateResponse, evtReleaseRQ}:       actionAa8,
	{stateAwaitingLocalAssociateResponse, evtReleaseRP}:       actionAa8,
	{stateAwaitingLocalAssociateResponse, evtAbortRequest}:    actionAa1,
	{stateAwaitingLocalAssociateResponse, evtAbortPDU}:        actionAa3,
	{stateAwaitingLocalAssociateResponse, evtTransportClosed}: actionAa4,
	{stateAwaitingLocalAssociateResponse, evtInvalidPDU}:      actionAa8,
	{stateConnecting, evtTransportConnected}:                  actionAe2,
	{stateConnecting, evtAbortRequest}:                        actionAa2,
	{stateConnecting, evtTransportClosed}:                     actionAa4,
	{stateAwaitingAssociateResponse, evtAssociateAC}:          actionAe3,
	{stateAwaitingAssociateResponse, evtAssociateRJ}:          actionAe4,
	{stateAwaitingAssociateResponse, evtAssociateRQ}:          actionAa8,
	{stateAwaitingAssociateResponse, evtPDataTF}:              actionAa8,
	{stateAwaitingAssociateResponse, evtReleaseRQ}:            actionAa8,
	{stateAwaitingAssociateResponse, evtReleaseRP}:            actionAa8,
	{stateAwaitingAssociateResponse, evtAbortRequest}:         actionAa1,
	{stateAwaitingAssociateResponse, evtAbortPDU}:             actionAa3,
	{stateAwaitingAssociateResponse, evtTransportClosed}:      actionAa4,
	{stateAwaitingAssociateResponse, evtARTIMExpired}:         actionAa8,
	{stateAwaitingAssociateResponse, evtInvalidPDU}:           actionAa8,
	{stateEstablished, evtAssociateAC}:                        actionAa8,
	{stateEstablished, evtAssociateRJ}:                        actionAa8,
	{stateEstablished, evtAssociateRQ}:                        actionAa8,
	{stateEstablished, evtPDataRequest}:                       actionDt1,
	{stateEstablished, evtPDataTF}:                            actionDt2,
	{stateEstablished, evtReleaseRequest}:                     actionAr1,
	{stateEstablished, evtReleaseRQ}:                          actionAr2,
	{stateEstablished, evtReleaseRP}:                          actionAa8,
	{stateEstablished, evtAbortRequest}:                       actionAa1,
	{stateEstablished, evtAbortPDU}:                           actionAa3,
	{stateEstablished, evtTransportClosed}:                    actionAa4,
	{stateEstablished, evtInvalidPDU}:                         actionAa8,
	{stateAwaitingReleaseResponse, evtAssociateAC}:            actionAa8,
	{stateAwaitingReleaseResponse, evtAssociateRJ}:            actionAa8,
	{stateAwaitingReleaseResponse, evtAssociateRQ}:            actionAa8,
	{stateAwaitingReleaseResponse, evtPDataTF}:                actionAr6,
	{stateAwaitingReleaseResponse, evtReleaseRQ}:              actionAr8,
	{stateAwaitingReleaseResponse, evtReleaseRP}:              actionAr3,
	{stateAwaitingReleaseResponse, evtAbortRequest}:           actionAa1,
	{stateAwaitingReleaseResponse, evtAbortPDU}:               actionAa3,
	{stateAwaitingReleaseResponse, evtTransportClosed}:        actionAa4,
	{stateAwaitingReleaseResponse, evtInvalidPDU}:             actionAa8,
	{stateAwaitingLocalReleaseResponse, evtAssociateAC}:       actionAa8,
	{stateAwaitingLocalReleaseResponse, evtAssociateRJ}:       actionAa8,
	{stateAwaitingLocalReleaseResponse, evtAssociateRQ}:       actionAa8,
	{stateAwaitingLocalReleaseResponse, evtPDataRequest}:      actionAr7,
	{stateAwaitingLocalReleaseResponse, evtPDataTF}:           actionAa8,
	{stateAwaitingLocalReleaseResponse, evtReleaseRQ}:         actionAa8,
	{stateAwaitingLocalReleaseResponse, evtReleaseRP}:         actionAa8,
	{stateAwaitingLocalReleaseResponse, evtReleaseResponse}:   actionAr4,
	{stateAwaitingLocalReleaseResponse, evtAbortRequest}:      actionAa1,
	{stateAwaitingLocalReleaseResponse, evtAbortPDU}:          actionAa3,
	{stateAwaitingLocalReleaseResponse, evtTransportClosed}:   actionAa4,
	{stateAwaitingLocalReleaseResponse, evtInvalidPDU}:        actionAa8,
	{stateCollisionRequestorLocal, evtAssociateAC}:            actionAa8,
	{stateCollisionRequestorLocal, evtAssociateRJ}:            actionAa8,
	{stateCollisionRequestorLocal, evtAssociateRQ}:            actionAa8,
	{stateCollisionRequestorLocal, evtPDataTF}:                actionAa8,
	{stateCollisionRequestorLocal, evtReleaseRQ}:              actionAa8,
	{stateCollisionRequestorLocal, evtReleaseRP}:              actionAa8,
	{stateCollisionRequestorLocal, evtReleaseResponse}:        actionAr9,
	{stateCollisionRequestorLocal, evtAbortRequest}:           actionAa1,
	{stateCollisionRequestorLocal, evtAbortPDU}:               actionAa3,
	{stateCollisionRequestorLocal, evtTransportClosed}:        actionAa4,
	{stateCollisionRequestorLocal, evtInvalidPDU}:             actionAa8,
	{stateCollisionAcceptorRemote, evtAssociateAC}:            actionAa8,
	{stateCollisionAcceptorRemote, evtAssociateRJ}:            actionAa8,
	{stateCollisionAcceptorRemote, evtAssociateRQ}:            actionAa8,
	{stateCollisionAcceptorRemote, evtPDataTF}:                actionAa8,
	{stateCollisionAcceptorRemote, evtReleaseRQ}:              actionAa8,
	{stateCollisionAcceptorRemote, evtReleaseRP}:              actionAr10,
	{stateCollisionAcceptorRemote, evtAbortRequest}:           actionAa1,
	{stateCollisionAcceptorRemote, evtAbortPDU}:               actionAa3,
	{stateCollisionAcceptorRemote, evtTransportClosed}:        actionAa4,
	{stateCollisionAcceptorRemote, evtInvalidPDU}:             actionAa8,
	{stateCollisionRequestorRemote, evtAssociateAC}:           actionAa8,
	{stateCollisionRequestorRemote, evtAssociateRJ}:           actionAa8,
	{stateCollisionRequestorRemote, evtAssociateRQ}:           actionAa8,
	{stateCollisionRequestorRemote, evtPDataTF}:               actionAa8,
	{stateCollisionRequestorRemote, evtReleaseRQ}:             actionAa8,
	{stateCollisionRequestorRemote, evtReleaseRP}:             actionAr3,
	{stateCollisionRequestorRemote, evtAbortRequest}:          actionAa1,
	{stateCollisionRequestorRemote, evtAbortPDU}:              actionAa3,
	{stateCollisionRequestorRemote, evtTransportClosed}:       actionAa4,
	{stateCollisionRequestorRemote, evtInvalidPDU}:            actionAa8,
	{stateCollisionAcceptorLocal, evtAssociateAC}:             actionAa8,
	{stateCollisionAcceptorLocal, evtAssociateRJ}:             actionAa8,
	{stateCollisionAcceptorLocal, evtAssociateRQ}:             actionAa8,
	{stateCollisionAcceptorLocal, evtPDataTF}:                 actionAa8,
	{stateCollisionAcceptorLocal, evtReleaseRQ}:               actionAa8,
	{stateCollisionAcceptorLocal, evtReleaseRP}:               actionAa8,
	{stateCollisionAcceptorLocal, evtReleaseResponse}:         actionAr4,
	{stateCollisionAcceptorLocal, evtAbortRequest}:            actionAa1,
	{stateCollisionAcceptorLocal, evtAbortPDU}:                actionAa3,
	{stateCollisionAcceptorLocal, evtTransportClosed}:         actionAa4,
	{stateCollisionAcceptorLocal, evtInvalidPDU}:              actionAa8,
	{stateAwaitingClose, evtAssociateAC}:                      actionAa6,
	{stateAwaitingClose, evtAssociateRJ}:                      actionAa6,
	{stateAwaitingClose, evtAssociateRQ}:                      actionAa7,
	{stateAwaitingClose, evtAssociateAccept}:                  actionAa7,
	{stateAwaitingClose, evtAssociateReject}:                  actionAa7,
	{stateAwaitingClose, evtPDataRequest}:                     actionAa6,
	{stateAwaitingClose, evtPDataTF}:                          actionAa6,
	{stateAwaitingClose, evtReleaseRequest}:                   actionAa6,
	{stateAwaitingClose, evtReleaseRQ}:                        actionAa6,
	{stateAwaitingClose, evtReleaseRP}:                        actionAa6,
	{stateAwaitingClose, evtReleaseResponse}:                  actionAa6,
	{stateAwaitingClose, evtAbortRequest}:                     actionAa2,
	{stateAwaitingClose, evtAbortPDU}:                         actionAa2,
	{stateAwaitingClose, evtTransportClosed}:                  actionAr5,
	{stateAwaitingClose, evtARTIMExpired}:                     actionAa2,
	{stateAwaitingClose, evtInvalidPDU}:                       actionAa7,
}

func findAction(currentState stateType, event *stateEvent) *stateAction {
	key := stateTransitionKey{currentState, event.event}
	if action, ok := stateTransitions[key]; ok {
		return action
	}
	return nil
}

// runOneStep consumes the next event and runs it through the table. Local
// events are handled without a state change.
func (n *Network) runOneStep() {
	event := n.getNextEvent()
	switch event.event {
	case evtTimerTick:
		n.checkTimers(event.now)
		return
	case evtSendRequests:
		n.queueRequests(event.requests)
		return
	case evtCancelRequest:
		n.cancelRequests(event.requests)
		return
	}
	dicomlog.Vprintf(2, "dicom.Network(%s): current state: %v, event %v", n.label, n.state, event.String())
	action := findAction(n.state, &event)
	if action == nil && event.event == evtPDataRequest {
		dicomlog.Vprintf(0, "dicom.Network(%s): responses to %v dropped in %v", n.label, event.outgoing.inbound, n.state)
		return
	}
	if action == nil {
		action = actionUnexpected
	}
	dicomlog.Vprintf(2, "dicom.Network(%s): running action %v", n.label, action)
	n.state = action.Callback(n, event)
	dicomlog.Vprintf(2, "dicom.Network(%s): next state: %v", n.label, n.state)
	if n.state == stateEstablished {
		n.pump()
	}
}
