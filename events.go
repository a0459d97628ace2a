package netdicom

import (
	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/pdu"
)

// Events are the lifecycle callbacks of a Network. Every field is optional.
//
// Callbacks run on the goroutine that owns the connection. They must not
// block, but they may call any Network method.
type Events struct {
	// OnConnect fires once the transport is up.
	OnConnect func()
	// OnAssociationRequested fires on the accepting side with the peer's
	// proposal. The callback records a Result on each presentation context
	// and answers with SendAssociationAccept or SendAssociationReject. If it
	// is nil the association is rejected.
	OnAssociationRequested func(a *association.Association)
	OnAssociationAccepted  func(a *association.Association)
	// OnAssociationRejected fires for a rejection sent or received.
	OnAssociationRejected func(rj *pdu.AAssociateRj)
	// OnAssociationReleaseRequested fires when the peer asks to release. The
	// callback must answer with SendAssociationReleaseResponse. If it is nil
	// the release is answered automatically.
	OnAssociationReleaseRequested func()
	OnAssociationReleaseResponse  func()
	OnAbort                       func(abort *pdu.AAbort)
	// OnNetworkError reports framing, protocol, I/O and timeout errors. The
	// connection is closed afterwards.
	OnNetworkError func(err error)
	// OnClose fires once, last. err is nil after a clean release.
	OnClose func(err error)
	// OnDone fires when the request queue drains on an established
	// association, at least once after establishment.
	OnDone func()
}

func (e *Events) connect() {
	if e.OnConnect != nil {
		e.OnConnect()
	}
}

func (e *Events) associationAccepted(a *association.Association) {
	if e.OnAssociationAccepted != nil {
		e.OnAssociationAccepted(a)
	}
}

func (e *Events) associationRejected(rj *pdu.AAssociateRj) {
	if e.OnAssociationRejected != nil {
		e.OnAssociationRejected(rj)
	}
}

func (e *Events) associationReleaseResponse() {
	if e.OnAssociationReleaseResponse != nil {
		e.OnAssociationReleaseResponse()
	}
}

func (e *Events) abort(v *pdu.AAbort) {
	if e.OnAbort != nil {
		e.OnAbort(v)
	}
}

func (e *Events) networkError(err error) {
	if e.OnNetworkError != nil {
		e.OnNetworkError(err)
	}
}

func (e *Events) close(err error) {
	if e.OnClose != nil {
		e.OnClose(err)
	}
}

func (e *Events) done() {
	if e.OnDone != nil {
		e.OnDone()
	}
}
