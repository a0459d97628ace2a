package dimse

import (
	"fmt"

	"github.com/giesekow/go-dicomnet/pdu"
)

// CommandAssembler is a helper that assembles a DIMSE command message and data
// payload from a sequence of P_DATA_TF PDUs.
type CommandAssembler struct {
	contextID      byte
	commandBytes   []byte
	command        Message
	dataBytes      []byte
	readAllCommand bool

	readAllData bool
}

// AddPDV is to be called for each presentation data value received from the
// network. Once the command and, if the command announces one, the payload
// are complete, AddPDV returns <contextID, message, payload, nil> and resets
// itself for the next message. Until then it returns <0, nil, nil, nil>.
func (a *CommandAssembler) AddPDV(item *pdu.PresentationDataValueItem) (byte, Message, []byte, error) {
	if a.contextID == 0 {
		a.contextID = item.ContextID
	} else if a.contextID != item.ContextID {
		return 0, nil, nil, fmt.Errorf("CommandAssembler.AddPDV: mixed context: %d %d", a.contextID, item.ContextID)
	}
	if item.Command {
		if a.readAllCommand {
			return 0, nil, nil, fmt.Errorf("CommandAssembler.AddPDV: command fragment after the last one")
		}
		a.commandBytes = append(a.commandBytes, item.Value...)
		a.readAllCommand = item.Last
	} else {
		if !a.readAllCommand {
			return 0, nil, nil, fmt.Errorf("CommandAssembler.AddPDV: data fragment before the command is complete")
		}
		if a.readAllData {
			return 0, nil, nil, fmt.Errorf("CommandAssembler.AddPDV: data fragment after the last one")
		}
		a.dataBytes = append(a.dataBytes, item.Value...)
		a.readAllData = item.Last
	}
	if !a.readAllCommand {
		return 0, nil, nil, nil
	}
	if a.command == nil {
		command, err := ReadMessage(a.commandBytes)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("CommandAssembler.AddPDV: %w", err)
		}
		a.command = command
		a.commandBytes = nil
	}
	if a.command.HasData() && !a.readAllData {
		return 0, nil, nil, nil
	}
	contextID, command, dataBytes := a.contextID, a.command, a.dataBytes
	*a = CommandAssembler{}
	return contextID, command, dataBytes, nil
}

// Pending reports whether a message is partially assembled.
func (a *CommandAssembler) Pending() bool {
	return a.contextID != 0
}
