package dimse

import (
	"fmt"

	"github.com/giesekow/go-dicomnet/dimse/commandset"
)

// Status represents a result of a DIMSE call.  P3.7 C defines list of status
// codes and error payloads.
type Status struct {
	// Status==StatusSuccess on success. A non-zero value on error.
	Status StatusCode

	// Optional error payloads.
	ErrorComment string // Encoded as (0000,0902)
}

// Success is an OK status for a call.
var Success = Status{Status: StatusSuccess}

// Pending is the status of every response but the last of a multi-response
// service.
var Pending = Status{Status: StatusPending}

// StatusCode represents a DIMSE service response code, as defined in P3.7
type StatusCode uint16

const (
	StatusSuccess                  StatusCode = 0
	StatusCancel                   StatusCode = 0xFE00
	StatusAttributeListError       StatusCode = 0x0107
	StatusSOPClassNotSupported     StatusCode = 0x0122
	StatusInvalidArgumentValue     StatusCode = 0x0115
	StatusAttributeValueOutOfRange StatusCode = 0x0116
	StatusInvalidAttributeValue    StatusCode = 0x0106
	StatusInvalidObjectInstance    StatusCode = 0x0117
	StatusNoSuchSOPClass           StatusCode = 0x0118
	StatusClassInstanceConflict    StatusCode = 0x0119
	StatusNoSuchSOPInstance        StatusCode = 0x0112
	StatusDuplicateSOPInstance     StatusCode = 0x0111
	StatusNoSuchEventType          StatusCode = 0x0113
	StatusNoSuchActionType         StatusCode = 0x0123
	StatusProcessingFailure        StatusCode = 0x0110
	StatusResourceLimitation       StatusCode = 0x0213
	StatusUnrecognizedOperation    StatusCode = 0x0211
	StatusNotAuthorized            StatusCode = 0x0124
	StatusDuplicateInvocation      StatusCode = 0x0210
	StatusMistypedArgument         StatusCode = 0x0212
	StatusPending                  StatusCode = 0xFF00
	StatusPendingWithWarnings      StatusCode = 0xFF01
	StatusCoercionOfDataElements   StatusCode = 0xB000
	StatusElementsDiscarded        StatusCode = 0xB007
	StatusDataSetDoesNotMatchWarn  StatusCode = 0xB006

	// C-STORE-specific status codes. P3.4 GG4-1
	CStoreOutOfResources              StatusCode = 0xA700
	CStoreCannotUnderstand            StatusCode = 0xC000
	CStoreDataSetDoesNotMatchSOPClass StatusCode = 0xA900

	// C-FIND-specific status codes.
	CFindUnableToProcess StatusCode = 0xC000

	// C-MOVE/C-GET-specific status codes.
	CMoveOutOfResourcesUnableToCalculateNumberOfMatches StatusCode = 0xA701
	CMoveOutOfResourcesUnableToPerformSubOperations     StatusCode = 0xA702
	CMoveMoveDestinationUnknown                         StatusCode = 0xA801
	CMoveDataSetDoesNotMatchSOPClass                    StatusCode = 0xA900
)

var statusCodeNames = map[StatusCode]string{
	StatusSuccess:                                       "Success",
	StatusCancel:                                        "Cancel",
	StatusAttributeListError:                            "AttributeListError",
	StatusSOPClassNotSupported:                          "SOPClassNotSupported",
	StatusInvalidArgumentValue:                          "InvalidArgumentValue",
	StatusAttributeValueOutOfRange:                      "AttributeValueOutOfRange",
	StatusInvalidAttributeValue:                         "InvalidAttributeValue",
	StatusInvalidObjectInstance:                         "InvalidObjectInstance",
	StatusNoSuchSOPClass:                                "NoSuchSOPClass",
	StatusClassInstanceConflict:                         "ClassInstanceConflict",
	StatusNoSuchSOPInstance:                             "NoSuchSOPInstance",
	StatusDuplicateSOPInstance:                          "DuplicateSOPInstance",
	StatusNoSuchEventType:                               "NoSuchEventType",
	StatusNoSuchActionType:                              "NoSuchActionType",
	StatusProcessingFailure:                             "ProcessingFailure",
	StatusResourceLimitation:                            "ResourceLimitation",
	StatusUnrecognizedOperation:                         "UnrecognizedOperation",
	StatusNotAuthorized:                                 "NotAuthorized",
	StatusDuplicateInvocation:                           "DuplicateInvocation",
	StatusMistypedArgument:                              "MistypedArgument",
	StatusPending:                                       "Pending",
	StatusPendingWithWarnings:                           "PendingWithWarnings",
	StatusCoercionOfDataElements:                        "CoercionOfDataElements",
	StatusElementsDiscarded:                             "ElementsDiscarded",
	StatusDataSetDoesNotMatchWarn:                       "DataSetDoesNotMatchSOPClassWarning",
	CStoreOutOfResources:                                "OutOfResources",
	CStoreCannotUnderstand:                              "CannotUnderstand",
	CStoreDataSetDoesNotMatchSOPClass:                   "DataSetDoesNotMatchSOPClass",
	CMoveOutOfResourcesUnableToCalculateNumberOfMatches: "OutOfResourcesUnableToCalculateNumberOfMatches",
	CMoveOutOfResourcesUnableToPerformSubOperations:     "OutOfResourcesUnableToPerformSubOperations",
	CMoveMoveDestinationUnknown:                         "MoveDestinationUnknown",
}

func (s StatusCode) String() string {
	if name, ok := statusCodeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%04x)", uint16(s))
}

// IsPending is true for 0xFF00 and 0xFF01: more responses follow.
func (s StatusCode) IsPending() bool {
	return s == StatusPending || s == StatusPendingWithWarnings
}

// IsWarning is true for the warning class of P3.7 C.
func (s StatusCode) IsWarning() bool {
	return s == 0x0001 || s == StatusAttributeListError || s == StatusAttributeValueOutOfRange ||
		s&0xF000 == 0xB000
}

// IsFailure is true for every code that is neither success, warning,
// pending nor cancel.
func (s StatusCode) IsFailure() bool {
	return s != StatusSuccess && s != StatusCancel && !s.IsPending() && !s.IsWarning()
}

func (s Status) IsPending() bool { return s.Status.IsPending() }

func (s Status) String() string {
	if s.ErrorComment == "" {
		return s.Status.String()
	}
	return fmt.Sprintf("%v(%q)", s.Status, s.ErrorComment)
}

func (s Status) elements() []commandset.Element {
	elems := []commandset.Element{commandset.Uint16(commandset.Status, uint16(s.Status))}
	if s.ErrorComment != "" {
		elems = append(elems, commandset.String(commandset.ErrorComment, s.ErrorComment))
	}
	return elems
}
