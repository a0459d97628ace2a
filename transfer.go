package netdicom

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/codec"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/suyashkumar/dicom"
)

// MaxFragmentPDULength caps the P-DATA-TF PDUs carrying payload fragments,
// whatever the peer allows.
const MaxFragmentPDULength = 4 << 20

// fragmentSize is the payload bytes per PDV for a peer accepting PDUs of
// peerMax bytes, 0 meaning unlimited.
func fragmentSize(peerMax uint32) int {
	limit := uint32(MaxFragmentPDULength)
	if peerMax != 0 && peerMax < limit {
		limit = peerMax
	}
	if limit <= pdu.PDVHeaderSize {
		limit = association.DefaultMaxPduLength
	}
	return int(limit) - pdu.PDVHeaderSize
}

// fragment splits data into P-DATA-TF PDUs of one PDV each. Only the last
// PDV has Last set. Empty data still yields one (empty, last) PDV.
func fragment(contextID byte, command bool, data []byte, size int) []*pdu.PDataTf {
	var pdus []*pdu.PDataTf
	for {
		chunk := data
		if len(chunk) > size {
			chunk = chunk[:size]
		}
		data = data[len(chunk):]
		pdus = append(pdus, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{{
			ContextID: contextID,
			Command:   command,
			Last:      len(data) == 0,
			Value:     chunk,
		}}})
		if len(data) == 0 {
			return pdus
		}
	}
}

// contextTransferSyntax is the syntax payloads use on pc. An accepted
// context that named no syntax means Implicit VR Little Endian.
func (n *Network) contextTransferSyntax(pc *association.PresentationContext) string {
	ts := pc.AcceptedTransferSyntaxUID()
	if ts == "" {
		dicomlog.Vprintf(1, "dicom.Network(%s): context %d has no transfer syntax, using %s",
			n.label, pc.ID, dicomuid.UIDString(transfersyntax.Default))
		return transfersyntax.Default
	}
	return ts
}

// encodePayload serializes ds for pc. A payload held in another syntax is
// converted only between syntaxes on the transcodable allow-list.
func (n *Network) encodePayload(ds *dicom.Dataset, payloadTransferSyntaxUID string, pc *association.PresentationContext) ([]byte, error) {
	if ds == nil {
		return nil, nil
	}
	from := transfersyntax.OrDefault(payloadTransferSyntaxUID)
	to := n.contextTransferSyntax(pc)
	if from != to {
		if !transfersyntax.IsTranscodable(from) || !transfersyntax.IsTranscodable(to) {
			return nil, fmt.Errorf("%s to %s on context %d: %w",
				dicomuid.UIDString(from), dicomuid.UIDString(to), pc.ID, ErrTranscodeUnsupported)
		}
		var err error
		if ds, err = n.cfg.Transcoder.Transcode(ds, from, to); err != nil {
			if errors.Is(err, codec.ErrUnsupportedTransferSyntax) {
				return nil, fmt.Errorf("%w: %w", ErrTranscodeUnsupported, err)
			}
			return nil, err
		}
	}
	return n.cfg.Codec.Encode(ds, to)
}

// sendMessage sends the command as one PDV, then the payload, if any, in
// fragments.
func (n *Network) sendMessage(contextID byte, msg dimse.Message, payload []byte) error {
	dicomlog.Vprintf(1, "dicom.Network(%s): send DIMSE msg: %v", n.label, msg)
	command := dimse.EncodeMessage(msg)
	err := n.sendPDU(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{{
		ContextID: contextID,
		Command:   true,
		Last:      true,
		Value:     command,
	}}})
	if err != nil || !msg.HasData() {
		return err
	}
	dicomlog.Vprintf(2, "dicom.Network(%s): send DIMSE data of %db", n.label, len(payload))
	for _, v := range fragment(contextID, false, payload, fragmentSize(n.peerMaxPDULength)) {
		if err := n.sendPDU(v); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) queueRequests(requests []*dimse.Request) {
	n.queue = append(n.queue, requests...)
	n.idle = false
	if n.state == stateEstablished {
		n.pump()
	}
}

// pump sends queued requests while none is awaiting a response. OnDone fires
// when the queue runs dry.
func (n *Network) pump() {
	for n.pending == nil && len(n.queue) > 0 && !n.connClosed {
		req := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		if err := n.sendRequest(req); err != nil {
			dicomlog.Vprintf(0, "dicom.Network(%s): request %v not sent: %v", n.label, req, err)
			req.Complete(err)
			continue
		}
		n.pending = req
	}
	if n.pending == nil && len(n.queue) == 0 && !n.idle && !n.connClosed {
		n.idle = true
		n.events.done()
	}
}

func (n *Network) nextMessageID() dimse.MessageID {
	n.messageID++
	if n.messageID == 0 {
		n.messageID = 1
	}
	return n.messageID
}

func (n *Network) sendRequest(req *dimse.Request) error {
	pc := n.assoc.GetAcceptedPresentationContextFromRequest(req)
	if pc == nil {
		return fmt.Errorf("%v for %s: %w", req.Type, dicomuid.UIDString(req.SOPClassUID()), ErrNoPresentationContext)
	}
	payload, err := n.encodePayload(req.Dataset, req.TransferSyntaxUID, pc)
	if err != nil {
		return err
	}
	req.ContextID = pc.ID
	req.MessageID = n.nextMessageID()
	req.CommandDataSetType = dimse.CommandDataSetTypeNull
	if req.Dataset != nil {
		req.CommandDataSetType = dimse.CommandDataSetTypeNonNull
	}
	return n.sendMessage(pc.ID, req, payload)
}

func (n *Network) cancelRequests(requests []*dimse.Request) {
	for _, req := range requests {
		for i, queued := range n.queue {
			if queued == req {
				n.queue = append(n.queue[:i], n.queue[i+1:]...)
				req.Complete(ErrCanceled)
				break
			}
		}
		if req != n.pending || n.state != stateEstablished {
			continue
		}
		cancel := dimse.NewCCancelRequest(req.MessageID)
		if err := n.sendMessage(req.ContextID, cancel, nil); err != nil {
			dicomlog.Vprintf(0, "dicom.Network(%s): C-CANCEL for %d: %v", n.label, req.MessageID, err)
		}
	}
	if n.state == stateEstablished {
		n.pump()
	}
}

// receivePData feeds the PDVs of v to the assembler and delivers every
// message completed by them.
func (n *Network) receivePData(v *pdu.PDataTf) error {
	for i := range v.Items {
		item := &v.Items[i]
		pc, ok := n.assoc.PresentationContext(item.ContextID)
		if !ok || !pc.Accepted() {
			return fmt.Errorf("%w: PDV on unknown or rejected context %d", ErrProtocol, item.ContextID)
		}
		contextID, msg, data, err := n.assembler.AddPDV(item)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		if msg == nil {
			continue
		}
		if err := n.deliver(contextID, msg, data); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) deliver(contextID byte, msg dimse.Message, data []byte) error {
	pc, _ := n.assoc.PresentationContext(contextID)
	ts := n.contextTransferSyntax(pc)
	var ds *dicom.Dataset
	if msg.HasData() {
		var err error
		if ds, err = n.cfg.Codec.Decode(data, ts); err != nil {
			return fmt.Errorf("%w: payload of %v: %w", ErrProtocol, msg, err)
		}
	}
	dicomlog.Vprintf(1, "dicom.Network(%s): received DIMSE msg: %v", n.label, msg)
	switch m := msg.(type) {
	case *dimse.Response:
		m.Dataset, m.TransferSyntaxUID = ds, ts
		return n.receiveResponse(m)
	case *dimse.Request:
		m.Dataset, m.TransferSyntaxUID, m.ContextID = ds, ts, contextID
		n.receiveRequest(m)
	}
	return nil
}

// receiveResponse correlates rsp with the request in flight.
func (n *Network) receiveResponse(rsp *dimse.Response) error {
	req := n.pending
	if req == nil || rsp.MessageIDBeingRespondedTo != req.MessageID {
		return fmt.Errorf("%w: %v does not answer the request in flight", ErrProtocol, rsp)
	}
	req.EmitResponse(rsp)
	if rsp.IsPending() {
		return nil
	}
	n.pending = nil
	req.Complete(nil)
	return nil
}

// receiveRequest routes a request from the peer to its handler.
func (n *Network) receiveRequest(req *dimse.Request) {
	if req.Type == dimse.CommandTypeCCancelRq {
		if target, ok := n.inbound[req.MessageIDBeingRespondedTo]; ok {
			dicomlog.Vprintf(1, "dicom.Network(%s): peer canceled %v", n.label, target)
			target.Cancel()
		}
		if n.handlers.CCancel != nil {
			go n.handlers.CCancel(req)
		}
		return
	}
	n.inbound[req.MessageID] = req
	if req.Type == dimse.CommandTypeCStoreRq && n.pending != nil && n.pending.IsGet() && n.handlers.CStore == nil {
		// A C-GET sub-operation: the instance belongs to the request in flight.
		n.pending.EmitInstance(req)
		n.sendResponses(&outgoing{inbound: req, responses: []*dimse.Response{dimse.NewResponse(req, dimse.Success, nil)}})
		return
	}
	h := n.handlers.lookup(req.Type)
	if h == nil {
		status := dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "no handler for " + req.Type.String()}
		if req.Type == dimse.CommandTypeCEchoRq {
			status = dimse.Success
		}
		n.sendResponses(&outgoing{inbound: req, responses: []*dimse.Response{dimse.NewResponse(req, status, nil)}})
		return
	}
	rw := &Responder{n: n, req: req}
	go h(n.handlerCtx, req, rw)
}

// sendResponses sends the answers a handler produced for an inbound request.
func (n *Network) sendResponses(out *outgoing) {
	req := out.inbound
	pc, ok := n.assoc.PresentationContext(req.ContextID)
	if !ok {
		dicomlog.Vprintf(0, "dicom.Network(%s): no context %d for responses to %v", n.label, req.ContextID, req)
		return
	}
	for _, rsp := range out.responses {
		if rsp.Type == 0 {
			rsp.Type = req.Type.ResponseType()
		}
		rsp.MessageIDBeingRespondedTo = req.MessageID
		if rsp.AffectedSOPClassUID == "" {
			rsp.AffectedSOPClassUID = req.SOPClassUID()
		}
		if rsp.AffectedSOPInstanceUID == "" {
			rsp.AffectedSOPInstanceUID = req.SOPInstanceUID()
		}
		payload, err := n.encodePayload(rsp.Dataset, rsp.TransferSyntaxUID, pc)
		if err != nil {
			dicomlog.Vprintf(0, "dicom.Network(%s): response to %v: %v", n.label, req, err)
			if rsp.IsPending() {
				continue
			}
			rsp.Status = dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
			rsp.Dataset = nil
		}
		rsp.CommandDataSetType = dimse.CommandDataSetTypeNull
		if rsp.Dataset != nil {
			rsp.CommandDataSetType = dimse.CommandDataSetTypeNonNull
		}
		if err := n.sendMessage(pc.ID, rsp, payload); err != nil {
			return
		}
		if !rsp.IsPending() {
			delete(n.inbound, req.MessageID)
		}
	}
}
