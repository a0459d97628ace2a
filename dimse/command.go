package dimse

import (
	"fmt"
	"strings"

	"github.com/giesekow/go-dicomnet/dimse/commandset"
	"github.com/suyashkumar/dicom/pkg/tag"
)

type MessageID = uint16

// CommandType is the value of the CommandField element, P3.7 E.1. The set of
// values is closed: ReadMessage rejects anything not listed here.
type CommandType uint16

const (
	CommandTypeCStoreRq        CommandType = 0x0001
	CommandTypeCStoreRsp       CommandType = 0x8001
	CommandTypeCGetRq          CommandType = 0x0010
	CommandTypeCGetRsp         CommandType = 0x8010
	CommandTypeCFindRq         CommandType = 0x0020
	CommandTypeCFindRsp        CommandType = 0x8020
	CommandTypeCMoveRq         CommandType = 0x0021
	CommandTypeCMoveRsp        CommandType = 0x8021
	CommandTypeCEchoRq         CommandType = 0x0030
	CommandTypeCEchoRsp        CommandType = 0x8030
	CommandTypeNEventReportRq  CommandType = 0x0100
	CommandTypeNEventReportRsp CommandType = 0x8100
	CommandTypeNGetRq          CommandType = 0x0110
	CommandTypeNGetRsp         CommandType = 0x8110
	CommandTypeNSetRq          CommandType = 0x0120
	CommandTypeNSetRsp         CommandType = 0x8120
	CommandTypeNActionRq       CommandType = 0x0130
	CommandTypeNActionRsp      CommandType = 0x8130
	CommandTypeNCreateRq       CommandType = 0x0140
	CommandTypeNCreateRsp      CommandType = 0x8140
	CommandTypeNDeleteRq       CommandType = 0x0150
	CommandTypeNDeleteRsp      CommandType = 0x8150
	CommandTypeCCancelRq       CommandType = 0x0fff
)

var commandTypeNames = map[CommandType]string{
	CommandTypeCStoreRq:        "C-STORE-RQ",
	CommandTypeCStoreRsp:       "C-STORE-RSP",
	CommandTypeCGetRq:          "C-GET-RQ",
	CommandTypeCGetRsp:         "C-GET-RSP",
	CommandTypeCFindRq:         "C-FIND-RQ",
	CommandTypeCFindRsp:        "C-FIND-RSP",
	CommandTypeCMoveRq:         "C-MOVE-RQ",
	CommandTypeCMoveRsp:        "C-MOVE-RSP",
	CommandTypeCEchoRq:         "C-ECHO-RQ",
	CommandTypeCEchoRsp:        "C-ECHO-RSP",
	CommandTypeNEventReportRq:  "N-EVENT-REPORT-RQ",
	CommandTypeNEventReportRsp: "N-EVENT-REPORT-RSP",
	CommandTypeNGetRq:          "N-GET-RQ",
	CommandTypeNGetRsp:         "N-GET-RSP",
	CommandTypeNSetRq:          "N-SET-RQ",
	CommandTypeNSetRsp:         "N-SET-RSP",
	CommandTypeNActionRq:       "N-ACTION-RQ",
	CommandTypeNActionRsp:      "N-ACTION-RSP",
	CommandTypeNCreateRq:       "N-CREATE-RQ",
	CommandTypeNCreateRsp:      "N-CREATE-RSP",
	CommandTypeNDeleteRq:       "N-DELETE-RQ",
	CommandTypeNDeleteRsp:      "N-DELETE-RSP",
	CommandTypeCCancelRq:       "C-CANCEL-RQ",
}

func (t CommandType) String() string {
	if name, ok := commandTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CommandType(0x%04x)", uint16(t))
}

// Known reports whether t is one of the defined command types.
func (t CommandType) Known() bool {
	_, ok := commandTypeNames[t]
	return ok
}

// IsResponse is true for the *-RSP types.
func (t CommandType) IsResponse() bool { return t&0x8000 != 0 }

// ResponseType maps a request type to its response type. C-CANCEL has none.
func (t CommandType) ResponseType() CommandType {
	if t == CommandTypeCCancelRq || t.IsResponse() {
		return 0
	}
	return t | 0x8000
}

// Priority of a C-STORE, C-FIND, C-GET or C-MOVE request.
type Priority uint16

const (
	PriorityMedium Priority = 0
	PriorityHigh   Priority = 1
	PriorityLow    Priority = 2
)

type CommandDataSetType uint16

const (
	// CommandDataSetTypeNull indicates that the DIMSE message has no data payload,
	// when set in the CommandDataSetType element. Any other value indicates the
	// existence of a payload.
	CommandDataSetTypeNull CommandDataSetType = 0x101

	// CommandDataSetTypeNonNull indicates that the DIMSE message has a data
	// payload.
	CommandDataSetTypeNonNull CommandDataSetType = 1
)

// SubOperations carries the C-GET/C-MOVE sub-operation counters of a
// response.
type SubOperations struct {
	Remaining uint16
	Completed uint16
	Failed    uint16
	Warning   uint16
}

// Command is the command set of a DIMSE message. Which fields are meaningful
// depends on Type; zero values are left off the wire.
type Command struct {
	Type                      CommandType
	MessageID                 MessageID
	MessageIDBeingRespondedTo MessageID

	AffectedSOPClassUID     string
	RequestedSOPClassUID    string
	AffectedSOPInstanceUID  string
	RequestedSOPInstanceUID string

	Priority           Priority
	CommandDataSetType CommandDataSetType

	// Status is only sent in responses.
	Status Status

	MoveDestination                      string
	MoveOriginatorApplicationEntityTitle string
	MoveOriginatorMessageID              MessageID
	SubOperations                        *SubOperations

	EventTypeID             uint16
	ActionTypeID            uint16
	AttributeIdentifierList []tag.Tag

	// Extra holds elements the decoder did not recognize. They are sent back
	// unchanged on encode.
	Extra []commandset.Element
}

// GetCommand returns c itself, giving Request and Response a common accessor.
func (c *Command) GetCommand() *Command { return c }

// HasData is true if P-DATA-TF payload fragments follow the command.
func (c *Command) HasData() bool {
	return c.CommandDataSetType != CommandDataSetTypeNull
}

func (c *Command) usesPriority() bool {
	switch c.Type {
	case CommandTypeCStoreRq, CommandTypeCFindRq, CommandTypeCGetRq, CommandTypeCMoveRq:
		return true
	}
	return false
}

func (c *Command) usesEventTypeID() bool {
	return c.Type == CommandTypeNEventReportRq || c.Type == CommandTypeNEventReportRsp
}

func (c *Command) usesActionTypeID() bool {
	return c.Type == CommandTypeNActionRq || c.Type == CommandTypeNActionRsp
}

// Elements lists the command as wire elements, in no particular order.
func (c *Command) Elements() []commandset.Element {
	elems := []commandset.Element{commandset.Uint16(commandset.CommandField, uint16(c.Type))}
	addString := func(t tag.Tag, v string) {
		if v != "" {
			elems = append(elems, commandset.String(t, v))
		}
	}
	addString(commandset.AffectedSOPClassUID, c.AffectedSOPClassUID)
	addString(commandset.RequestedSOPClassUID, c.RequestedSOPClassUID)
	if c.Type.IsResponse() || c.Type == CommandTypeCCancelRq {
		elems = append(elems, commandset.Uint16(commandset.MessageIDBeingRespondedTo, c.MessageIDBeingRespondedTo))
	} else {
		elems = append(elems, commandset.Uint16(commandset.MessageID, c.MessageID))
	}
	addString(commandset.MoveDestination, c.MoveDestination)
	if c.usesPriority() {
		elems = append(elems, commandset.Uint16(commandset.Priority, uint16(c.Priority)))
	}
	dataSetType := c.CommandDataSetType
	if dataSetType == 0 && c.Type != 0 {
		dataSetType = CommandDataSetTypeNull
	}
	elems = append(elems, commandset.Uint16(commandset.CommandDataSetType, uint16(dataSetType)))
	if c.Type.IsResponse() {
		elems = append(elems, c.Status.elements()...)
	}
	addString(commandset.AffectedSOPInstanceUID, c.AffectedSOPInstanceUID)
	addString(commandset.RequestedSOPInstanceUID, c.RequestedSOPInstanceUID)
	if c.usesEventTypeID() {
		elems = append(elems, commandset.Uint16(commandset.EventTypeID, c.EventTypeID))
	}
	if c.usesActionTypeID() {
		elems = append(elems, commandset.Uint16(commandset.ActionTypeID, c.ActionTypeID))
	}
	if len(c.AttributeIdentifierList) > 0 {
		elems = append(elems, commandset.Tags(commandset.AttributeIdentifierList, c.AttributeIdentifierList))
	}
	if s := c.SubOperations; s != nil {
		elems = append(elems,
			commandset.Uint16(commandset.NumberOfRemainingSuboperations, s.Remaining),
			commandset.Uint16(commandset.NumberOfCompletedSuboperations, s.Completed),
			commandset.Uint16(commandset.NumberOfFailedSuboperations, s.Failed),
			commandset.Uint16(commandset.NumberOfWarningSuboperations, s.Warning))
	}
	addString(commandset.MoveOriginatorApplicationEntityTitle, c.MoveOriginatorApplicationEntityTitle)
	if c.MoveOriginatorMessageID != 0 {
		elems = append(elems, commandset.Uint16(commandset.MoveOriginatorMessageID, c.MoveOriginatorMessageID))
	}
	return append(elems, c.Extra...)
}

// Encode serializes the command set, group length included.
func (c *Command) Encode() []byte {
	return commandset.Encode(c.Elements())
}

func (c *Command) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v{", c.Type)
	if c.Type.IsResponse() || c.Type == CommandTypeCCancelRq {
		fmt.Fprintf(&b, "MessageIDBeingRespondedTo:%d", c.MessageIDBeingRespondedTo)
	} else {
		fmt.Fprintf(&b, "MessageID:%d", c.MessageID)
	}
	if c.AffectedSOPClassUID != "" {
		fmt.Fprintf(&b, " AffectedSOPClassUID:%s", c.AffectedSOPClassUID)
	}
	if c.RequestedSOPClassUID != "" {
		fmt.Fprintf(&b, " RequestedSOPClassUID:%s", c.RequestedSOPClassUID)
	}
	if c.AffectedSOPInstanceUID != "" {
		fmt.Fprintf(&b, " AffectedSOPInstanceUID:%s", c.AffectedSOPInstanceUID)
	}
	if c.RequestedSOPInstanceUID != "" {
		fmt.Fprintf(&b, " RequestedSOPInstanceUID:%s", c.RequestedSOPInstanceUID)
	}
	if c.MoveDestination != "" {
		fmt.Fprintf(&b, " MoveDestination:%s", c.MoveDestination)
	}
	if c.Type.IsResponse() {
		fmt.Fprintf(&b, " Status:%v", c.Status)
	}
	fmt.Fprintf(&b, " HasData:%v}", c.HasData())
	return b.String()
}
