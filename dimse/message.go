// Package dimse implements the DICOM message service element layer, P3.7:
// the command set carried in the command fragments of P-DATA-TF PDUs, the
// request and response messages built from it, and their reassembly.
package dimse

import (
	"fmt"

	"github.com/giesekow/go-dicomnet/dimse/commandset"
)

// Message is either a *Request or a *Response.
type Message interface {
	fmt.Stringer
	// GetCommand returns the command set of the message.
	GetCommand() *Command
	// HasData is true if we expect P_DATA_TF packets after the command packets.
	HasData() bool
}

// ReadMessage decodes a command set and materializes the message variant its
// CommandField names. The payload, if any, is attached later by the caller.
func ReadMessage(data []byte) (Message, error) {
	elems, err := commandset.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("ReadMessage: %w", err)
	}
	delete(elems, commandset.CommandGroupLength)
	mDecoder := MessageDecoder{elements: elems}
	commandField, err := mDecoder.GetUInt16(commandset.CommandField, RequiredElement)
	if err != nil {
		return nil, fmt.Errorf("ReadMessage: failed to get command field: %w", err)
	}
	c, err := mDecoder.Decode(CommandType(commandField))
	if err != nil {
		return nil, fmt.Errorf("ReadMessage: %w", err)
	}
	if c.Type.IsResponse() {
		return &Response{Command: *c}, nil
	}
	return &Request{Command: *c}, nil
}

// EncodeMessage serializes the command set of v. DIMSE command sets are
// always encoded Implicit+LE, see P3.7 6.3.1.
func EncodeMessage(v Message) []byte {
	return v.GetCommand().Encode()
}
