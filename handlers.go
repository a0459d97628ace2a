package netdicom

import (
	"context"

	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/sopclass"
)

// Handler serves one inbound DIMSE request. It runs on its own goroutine and
// answers through rsp: zero or more pending responses, then a final one.
// ctx is canceled when the connection closes; req.Canceled reports a
// C-CANCEL from the peer.
type Handler func(ctx context.Context, req *dimse.Request, rsp *Responder)

// Handlers maps inbound request types to their Handler. A C-ECHO without a
// handler is answered with Success; any other request without one is
// answered with a failure status.
type Handlers struct {
	CEcho  Handler
	CFind  Handler
	CStore Handler
	CGet   Handler
	CMove  Handler

	NEventReport Handler
	NGet         Handler
	NSet         Handler
	NAction      Handler
	NCreate      Handler
	NDelete      Handler

	// CCancel, if set, is told about every C-CANCEL the peer sends, after
	// the targeted request was marked canceled.
	CCancel func(cancel *dimse.Request)
}

func (h *Handlers) lookup(t dimse.CommandType) Handler {
	switch t {
	case dimse.CommandTypeCEchoRq:
		return h.CEcho
	case dimse.CommandTypeCFindRq:
		return h.CFind
	case dimse.CommandTypeCStoreRq:
		return h.CStore
	case dimse.CommandTypeCGetRq:
		return h.CGet
	case dimse.CommandTypeCMoveRq:
		return h.CMove
	case dimse.CommandTypeNEventReportRq:
		return h.NEventReport
	case dimse.CommandTypeNGetRq:
		return h.NGet
	case dimse.CommandTypeNSetRq:
		return h.NSet
	case dimse.CommandTypeNActionRq:
		return h.NAction
	case dimse.CommandTypeNCreateRq:
		return h.NCreate
	case dimse.CommandTypeNDeleteRq:
		return h.NDelete
	}
	return nil
}

// abstractSyntaxes are the SOP classes a server with these handlers can
// serve.
func (h *Handlers) abstractSyntaxes() []string {
	uids := []string{sopclass.Verification}
	if h.CStore != nil || h.CGet != nil {
		uids = append(uids, sopclass.StorageClasses...)
	}
	if h.CFind != nil {
		uids = append(uids, sopclass.QueryRetrieveFindClasses...)
		uids = append(uids, sopclass.ModalityWorklistInformationModelFind)
	}
	if h.CMove != nil {
		uids = append(uids, sopclass.QueryRetrieveMoveClasses...)
	}
	if h.CGet != nil {
		uids = append(uids, sopclass.QueryRetrieveGetClasses...)
	}
	if h.NEventReport != nil || h.NGet != nil || h.NSet != nil || h.NAction != nil || h.NCreate != nil || h.NDelete != nil {
		uids = append(uids, sopclass.ModalityPerformedProcedureStep, sopclass.StorageCommitmentPushModel)
	}
	return uids
}

// Responder sends the responses to one inbound request. It is safe for use
// from the handler goroutine.
type Responder struct {
	n   *Network
	req *dimse.Request
}

// Network is the connection the request arrived on. A C-GET handler uses it
// to send C-STORE sub-operations back on the same association.
func (r *Responder) Network() *Network { return r.n }

// Respond queues responses for sending, in order. Missing command fields
// are filled in from the request.
func (r *Responder) Respond(responses ...*dimse.Response) {
	if len(responses) == 0 {
		return
	}
	r.n.downcall(stateEvent{event: evtPDataRequest, outgoing: &outgoing{inbound: r.req, responses: responses}})
}

// RespondStatus sends a final response with status and no payload.
func (r *Responder) RespondStatus(status dimse.Status) {
	r.Respond(dimse.NewResponse(r.req, status, nil))
}
