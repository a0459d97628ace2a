package dimse

import (
	"fmt"
	"sync/atomic"

	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Request is a DIMSE request: its command, the optional payload and the
// Notifier through which the sender observes responses and completion.
type Request struct {
	Command
	Notifier

	// Dataset is the payload, nil when the command says there is none.
	Dataset *dicom.Dataset
	// TransferSyntaxUID is the encoding Dataset is held in. Empty means
	// Implicit VR Little Endian. For a received request it is the syntax of
	// the presentation context it arrived on.
	TransferSyntaxUID string
	// ContextID is the presentation context the request travels on. It is
	// set by the network engine.
	ContextID byte

	canceled atomic.Bool
}

func newRequest(t CommandType, ds *dicom.Dataset) *Request {
	req := &Request{Command: Command{Type: t}, Dataset: ds}
	req.CommandDataSetType = CommandDataSetTypeNull
	if ds != nil {
		req.CommandDataSetType = CommandDataSetTypeNonNull
	}
	return req
}

// NewCEchoRequest returns a C-ECHO request on the Verification SOP class.
func NewCEchoRequest() *Request {
	req := newRequest(CommandTypeCEchoRq, nil)
	req.AffectedSOPClassUID = sopclass.Verification
	return req
}

// NewCFindRequest returns a C-FIND request with query as identifier.
func NewCFindRequest(sopClassUID string, query *dicom.Dataset) *Request {
	req := newRequest(CommandTypeCFindRq, query)
	req.AffectedSOPClassUID = sopClassUID
	return req
}

// NewCStoreRequest returns a C-STORE request for ds, which is encoded in
// transferSyntaxUID.
func NewCStoreRequest(sopClassUID, sopInstanceUID string, ds *dicom.Dataset, transferSyntaxUID string) *Request {
	req := newRequest(CommandTypeCStoreRq, ds)
	req.AffectedSOPClassUID = sopClassUID
	req.AffectedSOPInstanceUID = sopInstanceUID
	req.TransferSyntaxUID = transferSyntaxUID
	return req
}

// NewCMoveRequest returns a C-MOVE request sending the matches of query to
// the AE destination.
func NewCMoveRequest(sopClassUID, destination string, query *dicom.Dataset) *Request {
	req := newRequest(CommandTypeCMoveRq, query)
	req.AffectedSOPClassUID = sopClassUID
	req.MoveDestination = destination
	return req
}

// NewCGetRequest returns a C-GET request. The matches come back as C-STORE
// sub-operations on the same association.
func NewCGetRequest(sopClassUID string, query *dicom.Dataset) *Request {
	req := newRequest(CommandTypeCGetRq, query)
	req.AffectedSOPClassUID = sopClassUID
	return req
}

// NewCCancelRequest returns a C-CANCEL for the request with message id
// target.
func NewCCancelRequest(target MessageID) *Request {
	req := newRequest(CommandTypeCCancelRq, nil)
	req.MessageIDBeingRespondedTo = target
	return req
}

func NewNCreateRequest(sopClassUID, sopInstanceUID string, ds *dicom.Dataset) *Request {
	req := newRequest(CommandTypeNCreateRq, ds)
	req.AffectedSOPClassUID = sopClassUID
	req.AffectedSOPInstanceUID = sopInstanceUID
	return req
}

func NewNSetRequest(sopClassUID, sopInstanceUID string, ds *dicom.Dataset) *Request {
	req := newRequest(CommandTypeNSetRq, ds)
	req.RequestedSOPClassUID = sopClassUID
	req.RequestedSOPInstanceUID = sopInstanceUID
	return req
}

// NewNGetRequest asks for attributes of an instance; no attributes means
// all of them.
func NewNGetRequest(sopClassUID, sopInstanceUID string, attributes []tag.Tag) *Request {
	req := newRequest(CommandTypeNGetRq, nil)
	req.RequestedSOPClassUID = sopClassUID
	req.RequestedSOPInstanceUID = sopInstanceUID
	req.AttributeIdentifierList = attributes
	return req
}

func NewNActionRequest(sopClassUID, sopInstanceUID string, actionTypeID uint16, ds *dicom.Dataset) *Request {
	req := newRequest(CommandTypeNActionRq, ds)
	req.RequestedSOPClassUID = sopClassUID
	req.RequestedSOPInstanceUID = sopInstanceUID
	req.ActionTypeID = actionTypeID
	return req
}

func NewNDeleteRequest(sopClassUID, sopInstanceUID string) *Request {
	req := newRequest(CommandTypeNDeleteRq, nil)
	req.RequestedSOPClassUID = sopClassUID
	req.RequestedSOPInstanceUID = sopInstanceUID
	return req
}

func NewNEventReportRequest(sopClassUID, sopInstanceUID string, eventTypeID uint16, ds *dicom.Dataset) *Request {
	req := newRequest(CommandTypeNEventReportRq, ds)
	req.AffectedSOPClassUID = sopClassUID
	req.AffectedSOPInstanceUID = sopInstanceUID
	req.EventTypeID = eventTypeID
	return req
}

// SOPClassUID is the affected SOP class, or the requested one for the
// N-services that address an existing instance.
func (req *Request) SOPClassUID() string {
	if req.AffectedSOPClassUID != "" {
		return req.AffectedSOPClassUID
	}
	return req.RequestedSOPClassUID
}

// SOPInstanceUID is the affected or requested SOP instance.
func (req *Request) SOPInstanceUID() string {
	if req.AffectedSOPInstanceUID != "" {
		return req.AffectedSOPInstanceUID
	}
	return req.RequestedSOPInstanceUID
}

func (req *Request) PayloadTransferSyntaxUID() string {
	return transfersyntax.OrDefault(req.TransferSyntaxUID)
}

func (req *Request) IsStore() bool { return req.Type == CommandTypeCStoreRq }

func (req *Request) IsGet() bool { return req.Type == CommandTypeCGetRq }

// Cancel marks a received request as canceled by a C-CANCEL from the peer.
func (req *Request) Cancel() { req.canceled.Store(true) }

// Canceled reports whether the peer sent a C-CANCEL for this request.
// Handlers of long running services poll it between responses.
func (req *Request) Canceled() bool { return req.canceled.Load() }

func (req *Request) String() string {
	return fmt.Sprintf("Request{%v context:%d}", req.Command.String(), req.ContextID)
}
