package netdicom

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dicomnet/pdu"
)

var (
	// ErrTimeout is reported when the peer stays silent longer than
	// Config.PDUTimeout, the handshake exceeds Config.AssociationTimeout or a
	// release is not completed within Config.ReleaseTimeout.
	ErrTimeout = errors.New("netdicom: timeout")
	// ErrConnectionClosed completes every request still queued or awaiting a
	// response when the connection goes away.
	ErrConnectionClosed = errors.New("netdicom: connection closed")
	// ErrNoPresentationContext completes a request for which the peer accepted
	// no presentation context.
	ErrNoPresentationContext = errors.New("netdicom: no accepted presentation context")
	// ErrTranscodeUnsupported completes a request whose payload cannot be
	// converted to the transfer syntax of its presentation context. The
	// association stays up.
	ErrTranscodeUnsupported = errors.New("netdicom: payload transfer syntax cannot be converted")
	// ErrCanceled completes a request canceled before it was sent.
	ErrCanceled = errors.New("netdicom: request canceled")
	// ErrProtocol wraps every violation of the upper layer or DIMSE protocol
	// by the peer.
	ErrProtocol = errors.New("netdicom: protocol error")
)

// AssociationRejectedError is returned by Client.Send when the peer answers
// with A-ASSOCIATE-RJ.
type AssociationRejectedError struct {
	Reject pdu.AAssociateRj
}

func (e *AssociationRejectedError) Error() string {
	return fmt.Sprintf("netdicom: association rejected: %v", e.Reject.String())
}

// AbortedError reports an association torn down by A-ABORT. Local is set
// when this side sent the abort.
type AbortedError struct {
	Source pdu.AbortSourceType
	Reason pdu.AbortReasonType
	Local  bool
}

func (e *AbortedError) Error() string {
	if e.Local {
		return fmt.Sprintf("netdicom: association aborted locally (source %v)", e.Source)
	}
	return fmt.Sprintf("netdicom: association aborted by peer (source %v, reason %v)", e.Source, e.Reason)
}
