package dimse

import (
	"fmt"

	"github.com/suyashkumar/dicom"
)

// Response is a DIMSE response with its optional payload.
type Response struct {
	Command

	Dataset           *dicom.Dataset
	TransferSyntaxUID string
}

// NewResponse answers req with status and an optional payload. The message
// id and SOP UIDs are copied from req.
func NewResponse(req *Request, status Status, ds *dicom.Dataset) *Response {
	rsp := &Response{Dataset: ds}
	rsp.Type = req.Type.ResponseType()
	rsp.MessageIDBeingRespondedTo = req.MessageID
	rsp.AffectedSOPClassUID = req.SOPClassUID()
	rsp.AffectedSOPInstanceUID = req.SOPInstanceUID()
	rsp.Status = status
	rsp.CommandDataSetType = CommandDataSetTypeNull
	if ds != nil {
		rsp.CommandDataSetType = CommandDataSetTypeNonNull
	}
	switch req.Type {
	case CommandTypeNEventReportRq:
		rsp.EventTypeID = req.EventTypeID
	case CommandTypeNActionRq:
		rsp.ActionTypeID = req.ActionTypeID
	}
	return rsp
}

// IsPending is true while more responses to the same request follow.
func (rsp *Response) IsPending() bool { return rsp.Status.IsPending() }

func (rsp *Response) String() string {
	return fmt.Sprintf("Response{%v}", rsp.Command.String())
}
