package dimse

import (
	"fmt"
	"sort"

	"github.com/giesekow/go-dicomnet/dimse/commandset"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Helper class for extracting values from a decoded command set. Each getter
// consumes the element it reads; whatever is left over ends up in
// Command.Extra.
type MessageDecoder struct {
	elements map[tag.Tag]commandset.Element
}

type isOptionalElement int

const (
	RequiredElement isOptionalElement = iota
	OptionalElement
)

// requiredElements lists, per command type, the elements P3.7 marks
// mandatory beyond CommandField and CommandDataSetType.
var requiredElements = map[CommandType][]tag.Tag{
	CommandTypeCStoreRq:        {commandset.AffectedSOPClassUID, commandset.MessageID, commandset.Priority, commandset.AffectedSOPInstanceUID},
	CommandTypeCFindRq:         {commandset.AffectedSOPClassUID, commandset.MessageID, commandset.Priority},
	CommandTypeCGetRq:          {commandset.AffectedSOPClassUID, commandset.MessageID, commandset.Priority},
	CommandTypeCMoveRq:         {commandset.AffectedSOPClassUID, commandset.MessageID, commandset.Priority, commandset.MoveDestination},
	CommandTypeCEchoRq:         {commandset.AffectedSOPClassUID, commandset.MessageID},
	CommandTypeCCancelRq:       {commandset.MessageIDBeingRespondedTo},
	CommandTypeNEventReportRq:  {commandset.AffectedSOPClassUID, commandset.AffectedSOPInstanceUID, commandset.MessageID, commandset.EventTypeID},
	CommandTypeNGetRq:          {commandset.RequestedSOPClassUID, commandset.RequestedSOPInstanceUID, commandset.MessageID},
	CommandTypeNSetRq:          {commandset.RequestedSOPClassUID, commandset.RequestedSOPInstanceUID, commandset.MessageID},
	CommandTypeNActionRq:       {commandset.RequestedSOPClassUID, commandset.RequestedSOPInstanceUID, commandset.MessageID, commandset.ActionTypeID},
	CommandTypeNCreateRq:       {commandset.AffectedSOPClassUID, commandset.MessageID},
	CommandTypeNDeleteRq:       {commandset.RequestedSOPClassUID, commandset.RequestedSOPInstanceUID, commandset.MessageID},
	CommandTypeCStoreRsp:       {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeCFindRsp:        {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeCGetRsp:         {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeCMoveRsp:        {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeCEchoRsp:        {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNEventReportRsp: {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNGetRsp:         {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNSetRsp:         {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNActionRsp:      {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNCreateRsp:      {commandset.MessageIDBeingRespondedTo, commandset.Status},
	CommandTypeNDeleteRsp:      {commandset.MessageIDBeingRespondedTo, commandset.Status},
}

func (d *MessageDecoder) optional(commandType CommandType, t tag.Tag) isOptionalElement {
	for _, r := range requiredElements[commandType] {
		if r == t {
			return RequiredElement
		}
	}
	return OptionalElement
}

// Decode builds the command of the given type from the remaining elements.
func (d *MessageDecoder) Decode(commandType CommandType) (*Command, error) {
	if !commandType.Known() {
		return nil, fmt.Errorf("unknown DIMSE command 0x%x", uint16(commandType))
	}
	c := &Command{Type: commandType}
	var err error
	str := func(dst *string, t tag.Tag) {
		if err == nil {
			*dst, err = d.GetString(t, d.optional(commandType, t))
		}
	}
	u16 := func(dst *uint16, t tag.Tag) {
		if err == nil {
			*dst, err = d.GetUInt16(t, d.optional(commandType, t))
		}
	}
	str(&c.AffectedSOPClassUID, commandset.AffectedSOPClassUID)
	str(&c.RequestedSOPClassUID, commandset.RequestedSOPClassUID)
	str(&c.AffectedSOPInstanceUID, commandset.AffectedSOPInstanceUID)
	str(&c.RequestedSOPInstanceUID, commandset.RequestedSOPInstanceUID)
	u16(&c.MessageID, commandset.MessageID)
	u16(&c.MessageIDBeingRespondedTo, commandset.MessageIDBeingRespondedTo)
	str(&c.MoveDestination, commandset.MoveDestination)
	str(&c.MoveOriginatorApplicationEntityTitle, commandset.MoveOriginatorApplicationEntityTitle)
	u16(&c.MoveOriginatorMessageID, commandset.MoveOriginatorMessageID)
	u16(&c.EventTypeID, commandset.EventTypeID)
	u16(&c.ActionTypeID, commandset.ActionTypeID)
	var priority uint16
	u16(&priority, commandset.Priority)
	c.Priority = Priority(priority)
	if err != nil {
		return nil, fmt.Errorf("MessageDecoder.Decode(%v): %w", commandType, err)
	}
	if c.CommandDataSetType, err = d.GetCommandDataSetType(); err != nil {
		return nil, fmt.Errorf("MessageDecoder.Decode(%v): %w", commandType, err)
	}
	if commandType.IsResponse() {
		if c.Status, err = d.GetStatus(); err != nil {
			return nil, fmt.Errorf("MessageDecoder.Decode(%v): %w", commandType, err)
		}
	}
	if c.AttributeIdentifierList, err = d.GetTags(commandset.AttributeIdentifierList, OptionalElement); err != nil {
		return nil, fmt.Errorf("MessageDecoder.Decode(%v): %w", commandType, err)
	}
	if c.SubOperations, err = d.GetSubOperations(); err != nil {
		return nil, fmt.Errorf("MessageDecoder.Decode(%v): %w", commandType, err)
	}
	c.Extra = d.UnparsedElements()
	return c, nil
}

// UnparsedElements returns the elements no getter consumed, in tag order.
func (d *MessageDecoder) UnparsedElements() []commandset.Element {
	if len(d.elements) == 0 {
		return nil
	}
	elems := make([]commandset.Element, 0, len(d.elements))
	for _, elem := range d.elements {
		elems = append(elems, elem)
	}
	sort.Slice(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		return a.Group < b.Group || (a.Group == b.Group && a.Element < b.Element)
	})
	return elems
}

func (d *MessageDecoder) GetStatus() (s Status, err error) {
	statusCode, err := d.GetUInt16(commandset.Status, RequiredElement)
	if err != nil {
		return s, fmt.Errorf("GetStatus: failed to get status code: %w", err)
	}
	s.Status = StatusCode(statusCode)
	s.ErrorComment, err = d.GetString(commandset.ErrorComment, OptionalElement)
	if err != nil {
		return s, fmt.Errorf("GetStatus: failed to get error comment: %w", err)
	}
	return s, nil
}

func (d *MessageDecoder) GetCommandDataSetType() (CommandDataSetType, error) {
	cmdDataSetType, err := d.GetUInt16(commandset.CommandDataSetType, RequiredElement)
	if err != nil {
		return CommandDataSetTypeNull, fmt.Errorf("GetCommandDataSetType: failed to get command data set type: %w", err)
	}
	return CommandDataSetType(cmdDataSetType), nil
}

// GetSubOperations returns nil unless at least one counter is present.
func (d *MessageDecoder) GetSubOperations() (*SubOperations, error) {
	counters := []tag.Tag{
		commandset.NumberOfRemainingSuboperations,
		commandset.NumberOfCompletedSuboperations,
		commandset.NumberOfFailedSuboperations,
		commandset.NumberOfWarningSuboperations,
	}
	present := false
	for _, t := range counters {
		if _, ok := d.elements[t]; ok {
			present = true
		}
	}
	if !present {
		return nil, nil
	}
	s := &SubOperations{}
	var err error
	for i, dst := range []*uint16{&s.Remaining, &s.Completed, &s.Failed, &s.Warning} {
		if *dst, err = d.GetUInt16(counters[i], OptionalElement); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (d *MessageDecoder) GetString(tag tag.Tag, optional isOptionalElement) (string, error) {
	elem, ok := d.elements[tag]
	if !ok {
		if optional == RequiredElement {
			return "", fmt.Errorf("GetString: tag %s not found", tag.String())
		}
		return "", nil
	}
	delete(d.elements, tag)
	return commandset.DecodeString(elem), nil
}

// Find an element with "tag", and extract a uint16 from it.
func (d *MessageDecoder) GetUInt16(tag tag.Tag, optional isOptionalElement) (uint16, error) {
	elem, ok := d.elements[tag]
	if !ok {
		if optional == RequiredElement {
			return 0, fmt.Errorf("GetUInt16: tag %s not found", tag.String())
		}
		return 0, nil
	}
	v, err := commandset.DecodeUint16(elem)
	if err != nil {
		return 0, fmt.Errorf("GetUInt16: %w", err)
	}
	delete(d.elements, tag)
	return v, nil
}

func (d *MessageDecoder) GetTags(tag tag.Tag, optional isOptionalElement) ([]tag.Tag, error) {
	elem, ok := d.elements[tag]
	if !ok {
		if optional == RequiredElement {
			return nil, fmt.Errorf("GetTags: tag %s not found", tag.String())
		}
		return nil, nil
	}
	v, err := commandset.DecodeTags(elem)
	if err != nil {
		return nil, fmt.Errorf("GetTags: %w", err)
	}
	delete(d.elements, tag)
	return v, nil
}
