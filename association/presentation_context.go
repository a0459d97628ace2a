package association

import (
	"fmt"
	"strings"

	"github.com/grailbio/go-dicom/dicomuid"
)

// Result is the outcome of negotiating one presentation context, P3.8
// 9.3.3.2. The wire values are 0 through 4; ResultProposed marks a context
// that has not been answered yet.
type Result byte

const (
	ResultAccept                             Result = 0
	ResultRejectUser                         Result = 1
	ResultRejectNoReason                     Result = 2
	ResultRejectAbstractSyntaxNotSupported   Result = 3
	ResultRejectTransferSyntaxesNotSupported Result = 4
	ResultProposed                           Result = 0xff
)

func (r Result) String() string {
	switch r {
	case ResultAccept:
		return "Accept"
	case ResultRejectUser:
		return "RejectUser"
	case ResultRejectNoReason:
		return "RejectNoReason"
	case ResultRejectAbstractSyntaxNotSupported:
		return "RejectAbstractSyntaxNotSupported"
	case ResultRejectTransferSyntaxesNotSupported:
		return "RejectTransferSyntaxesNotSupported"
	case ResultProposed:
		return "Proposed"
	}
	return fmt.Sprintf("Result(%d)", byte(r))
}

// PresentationContext pairs an abstract syntax with the transfer syntaxes it
// may be encoded in.
//
// While proposed, TransferSyntaxUIDs lists every candidate in preference
// order. Once a result is set it holds at most one syntax, the accepted one.
type PresentationContext struct {
	ID                 byte
	AbstractSyntaxUID  string
	TransferSyntaxUIDs []string
	Result             Result
}

// NewPresentationContext returns a proposed context.
func NewPresentationContext(id byte, abstractSyntaxUID string, transferSyntaxUIDs ...string) *PresentationContext {
	pc := &PresentationContext{ID: id, AbstractSyntaxUID: abstractSyntaxUID, Result: ResultProposed}
	for _, ts := range transferSyntaxUIDs {
		pc.AddTransferSyntax(ts)
	}
	return pc
}

// AddTransferSyntax appends uid to the proposal unless already present.
func (pc *PresentationContext) AddTransferSyntax(uid string) {
	if uid == "" || pc.HasTransferSyntax(uid) {
		return
	}
	pc.TransferSyntaxUIDs = append(pc.TransferSyntaxUIDs, uid)
}

func (pc *PresentationContext) HasTransferSyntax(uid string) bool {
	for _, ts := range pc.TransferSyntaxUIDs {
		if ts == uid {
			return true
		}
	}
	return false
}

// SetResult records the negotiation outcome. A non-empty transferSyntaxUID
// becomes the only syntax; otherwise the first proposed syntax, if any, is
// kept.
func (pc *PresentationContext) SetResult(result Result, transferSyntaxUID string) {
	pc.Result = result
	switch {
	case transferSyntaxUID != "":
		pc.TransferSyntaxUIDs = []string{transferSyntaxUID}
	case len(pc.TransferSyntaxUIDs) > 0:
		pc.TransferSyntaxUIDs = pc.TransferSyntaxUIDs[:1]
	}
}

// AcceptedTransferSyntaxUID returns the first transfer syntax, or "" if the
// context carries none.
func (pc *PresentationContext) AcceptedTransferSyntaxUID() string {
	if len(pc.TransferSyntaxUIDs) == 0 {
		return ""
	}
	return pc.TransferSyntaxUIDs[0]
}

func (pc *PresentationContext) Accepted() bool {
	return pc.Result == ResultAccept
}

func (pc *PresentationContext) clone() *PresentationContext {
	c := *pc
	c.TransferSyntaxUIDs = append([]string(nil), pc.TransferSyntaxUIDs...)
	return &c
}

func (pc *PresentationContext) String() string {
	names := make([]string, len(pc.TransferSyntaxUIDs))
	for i, ts := range pc.TransferSyntaxUIDs {
		names[i] = dicomuid.UIDString(ts)
	}
	return fmt.Sprintf("PresentationContext{id:%d abstract:%s transfer:[%s] result:%v}",
		pc.ID, dicomuid.UIDString(pc.AbstractSyntaxUID), strings.Join(names, ", "), pc.Result)
}
