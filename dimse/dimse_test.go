package dimse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/dimse/commandset"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func testDIMSE(t *testing.T, v dimse.Message) dimse.Message {
	t.Helper()
	v2, err := dimse.ReadMessage(dimse.EncodeMessage(v))
	require.NoError(t, err)
	assert.Equal(t, v.String(), v2.String())
	assert.Equal(t, v.HasData(), v2.HasData())
	return v2
}

func TestCStoreRq(t *testing.T) {
	req := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3.4", &dicom.Dataset{}, transfersyntax.ExplicitVRLittleEndian)
	req.MessageID = 0x1234
	req.Priority = dimse.PriorityHigh
	req.MoveOriginatorApplicationEntityTitle = "MOVER"
	req.MoveOriginatorMessageID = 7
	v := testDIMSE(t, req)
	got, ok := v.(*dimse.Request)
	require.True(t, ok)
	assert.Equal(t, dimse.CommandTypeCStoreRq, got.Type)
	assert.Equal(t, dimse.MessageID(0x1234), got.MessageID)
	assert.Equal(t, dimse.PriorityHigh, got.Priority)
	assert.Equal(t, "1.2.3.4", got.AffectedSOPInstanceUID)
	assert.Equal(t, "MOVER", got.MoveOriginatorApplicationEntityTitle)
	assert.Equal(t, dimse.MessageID(7), got.MoveOriginatorMessageID)
	assert.True(t, got.HasData())
	assert.True(t, got.IsStore())
}

func TestCStoreRsp(t *testing.T) {
	req := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3.4", &dicom.Dataset{}, "")
	req.MessageID = 0x1234
	rsp := dimse.NewResponse(req, dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: "disk full"}, nil)
	v := testDIMSE(t, rsp)
	got, ok := v.(*dimse.Response)
	require.True(t, ok)
	assert.Equal(t, dimse.CommandTypeCStoreRsp, got.Type)
	assert.Equal(t, dimse.MessageID(0x1234), got.MessageIDBeingRespondedTo)
	assert.Equal(t, sopclass.CTImageStorage, got.AffectedSOPClassUID)
	assert.Equal(t, "1.2.3.4", got.AffectedSOPInstanceUID)
	assert.Equal(t, dimse.CStoreOutOfResources, got.Status.Status)
	assert.Equal(t, "disk full", got.Status.ErrorComment)
	assert.False(t, got.HasData())
	assert.True(t, got.Status.Status.IsFailure())
}

func TestCEcho(t *testing.T) {
	req := dimse.NewCEchoRequest()
	req.MessageID = 1
	v := testDIMSE(t, req)
	assert.Equal(t, sopclass.Verification, v.(*dimse.Request).SOPClassUID())
	assert.False(t, v.HasData())

	rsp := testDIMSE(t, dimse.NewResponse(req, dimse.Success, nil))
	assert.Equal(t, dimse.CommandTypeCEchoRsp, rsp.GetCommand().Type)
	assert.Equal(t, dimse.StatusSuccess, rsp.GetCommand().Status.Status)
}

func TestCFindPending(t *testing.T) {
	req := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind, &dicom.Dataset{})
	req.MessageID = 9
	v := testDIMSE(t, dimse.NewResponse(req, dimse.Pending, &dicom.Dataset{}))
	rsp := v.(*dimse.Response)
	assert.True(t, rsp.IsPending())
	assert.True(t, rsp.HasData())

	rsp.Status.Status = dimse.StatusPendingWithWarnings
	assert.True(t, rsp.IsPending())
}

func TestCMoveAndCGet(t *testing.T) {
	move := dimse.NewCMoveRequest(sopclass.PatientRootQueryRetrieveInformationModelMove, "DEST", &dicom.Dataset{})
	move.MessageID = 3
	got := testDIMSE(t, move).(*dimse.Request)
	assert.Equal(t, "DEST", got.MoveDestination)

	get := dimse.NewCGetRequest(sopclass.PatientRootQueryRetrieveInformationModelGet, &dicom.Dataset{})
	get.MessageID = 4
	assert.True(t, get.IsGet())
	rsp := dimse.NewResponse(get, dimse.Pending, nil)
	rsp.SubOperations = &dimse.SubOperations{Remaining: 3, Completed: 1, Failed: 0, Warning: 2}
	gotRsp := testDIMSE(t, rsp).(*dimse.Response)
	assert.Equal(t, rsp.SubOperations, gotRsp.SubOperations)
}

func TestCCancel(t *testing.T) {
	got := testDIMSE(t, dimse.NewCCancelRequest(42)).(*dimse.Request)
	assert.Equal(t, dimse.CommandTypeCCancelRq, got.Type)
	assert.Equal(t, dimse.MessageID(42), got.MessageIDBeingRespondedTo)
	assert.Equal(t, dimse.CommandType(0), got.Type.ResponseType())
}

func TestNServices(t *testing.T) {
	attrs := []tag.Tag{{Group: 0x0010, Element: 0x0010}, {Group: 0x0008, Element: 0x0018}}
	for _, req := range []*dimse.Request{
		dimse.NewNCreateRequest(sopclass.ModalityPerformedProcedureStep, "1.2.3", &dicom.Dataset{}),
		dimse.NewNSetRequest(sopclass.ModalityPerformedProcedureStep, "1.2.3", &dicom.Dataset{}),
		dimse.NewNGetRequest(sopclass.ModalityPerformedProcedureStep, "1.2.3", attrs),
		dimse.NewNActionRequest(sopclass.StorageCommitmentPushModel, "1.2.840.10008.1.20.1.1", 1, &dicom.Dataset{}),
		dimse.NewNDeleteRequest(sopclass.ModalityPerformedProcedureStep, "1.2.3"),
		dimse.NewNEventReportRequest(sopclass.StorageCommitmentPushModel, "1.2.840.10008.1.20.1.1", 2, &dicom.Dataset{}),
	} {
		req.MessageID = 11
		got := testDIMSE(t, req).(*dimse.Request)
		assert.Equal(t, req.SOPClassUID(), got.SOPClassUID(), "%v", req.Type)
		assert.Equal(t, req.SOPInstanceUID(), got.SOPInstanceUID(), "%v", req.Type)
		assert.Equal(t, req.EventTypeID, got.EventTypeID)
		assert.Equal(t, req.ActionTypeID, got.ActionTypeID)
		assert.Equal(t, req.AttributeIdentifierList, got.AttributeIdentifierList)

		rsp := testDIMSE(t, dimse.NewResponse(req, dimse.Success, nil)).(*dimse.Response)
		assert.Equal(t, req.Type|0x8000, rsp.Type)
		assert.Equal(t, req.SOPInstanceUID(), rsp.AffectedSOPInstanceUID)
	}
}

func TestReadMessageErrors(t *testing.T) {
	_, err := dimse.ReadMessage(commandset.Encode([]commandset.Element{
		commandset.Uint16(commandset.CommandField, 0x4242),
		commandset.Uint16(commandset.CommandDataSetType, 0x0101),
	}))
	assert.Error(t, err)

	// C-STORE-RQ without AffectedSOPInstanceUID.
	_, err = dimse.ReadMessage(commandset.Encode([]commandset.Element{
		commandset.Uint16(commandset.CommandField, uint16(dimse.CommandTypeCStoreRq)),
		commandset.String(commandset.AffectedSOPClassUID, sopclass.CTImageStorage),
		commandset.Uint16(commandset.MessageID, 1),
		commandset.Uint16(commandset.Priority, 0),
		commandset.Uint16(commandset.CommandDataSetType, 1),
	}))
	assert.Error(t, err)

	_, err = dimse.ReadMessage([]byte{0, 0, 0, 1, 9, 0})
	assert.True(t, errors.Is(err, commandset.ErrTruncated))
}

func TestUnknownElementsKept(t *testing.T) {
	extra := commandset.String(tag.Tag{Group: 0x0000, Element: 0x4000}, "hello")
	req := dimse.NewCEchoRequest()
	req.MessageID = 5
	data := commandset.Encode(append(req.Elements(), extra))
	v, err := dimse.ReadMessage(data)
	require.NoError(t, err)
	require.Len(t, v.GetCommand().Extra, 1)
	assert.Equal(t, extra, v.GetCommand().Extra[0])
	assert.Equal(t, data, dimse.EncodeMessage(v))
}

func TestCommandAssembler(t *testing.T) {
	req := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3", &dicom.Dataset{}, "")
	req.MessageID = 2
	command := dimse.EncodeMessage(req)

	var a dimse.CommandAssembler
	half := len(command) / 2
	items := []pdu.PresentationDataValueItem{
		{ContextID: 3, Command: true, Value: command[:half]},
		{ContextID: 3, Command: true, Last: true, Value: command[half:]},
		{ContextID: 3, Value: []byte{1, 2}},
		{ContextID: 3, Last: true, Value: []byte{3}},
	}
	for i := range items[:3] {
		id, msg, data, err := a.AddPDV(&items[i])
		require.NoError(t, err)
		assert.Nil(t, msg)
		assert.Nil(t, data)
		assert.Zero(t, id)
		assert.True(t, a.Pending())
	}
	id, msg, data, err := a.AddPDV(&items[3])
	require.NoError(t, err)
	assert.Equal(t, byte(3), id)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, dimse.CommandTypeCStoreRq, msg.GetCommand().Type)
	assert.False(t, a.Pending())

	echo := dimse.NewCEchoRequest()
	echo.MessageID = 3
	id, msg, data, err = a.AddPDV(&pdu.PresentationDataValueItem{ContextID: 1, Command: true, Last: true, Value: dimse.EncodeMessage(echo)})
	require.NoError(t, err)
	assert.Equal(t, byte(1), id)
	assert.Nil(t, data)
	assert.Equal(t, dimse.CommandTypeCEchoRq, msg.GetCommand().Type)
}

func TestCommandAssemblerMixedContext(t *testing.T) {
	var a dimse.CommandAssembler
	_, _, _, err := a.AddPDV(&pdu.PresentationDataValueItem{ContextID: 1, Command: true, Value: []byte{0}})
	require.NoError(t, err)
	_, _, _, err = a.AddPDV(&pdu.PresentationDataValueItem{ContextID: 3, Command: true, Last: true, Value: []byte{0}})
	assert.Error(t, err)
}

func TestNotifierCompletesOnce(t *testing.T) {
	req := dimse.NewCEchoRequest()
	var calls []error
	req.OnDone(func(err error) { calls = append(calls, err) })
	var responses int
	req.OnResponse(func(*dimse.Response) { responses++ })

	req.EmitResponse(dimse.NewResponse(req, dimse.Success, nil))
	req.Complete(nil)
	req.Complete(errors.New("late"))
	require.Len(t, calls, 1)
	assert.NoError(t, calls[0])
	assert.Equal(t, 1, responses)
	assert.Len(t, req.Responses(), 1)
	assert.NoError(t, req.Wait(context.Background()))

	var late error = errors.New("unset")
	req.OnDone(func(err error) { late = err })
	assert.NoError(t, late)
}

func TestNotifierWait(t *testing.T) {
	req := dimse.NewCEchoRequest()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(req.Wait(ctx), context.DeadlineExceeded))

	boom := errors.New("boom")
	go req.Complete(boom)
	assert.Equal(t, boom, req.Wait(context.Background()))
}

func TestNotifierInstance(t *testing.T) {
	get := dimse.NewCGetRequest(sopclass.PatientRootQueryRetrieveInformationModelGet, &dicom.Dataset{})
	var got *dimse.Request
	get.OnInstance(func(r *dimse.Request) { got = r })
	store := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2", &dicom.Dataset{}, "")
	get.EmitInstance(store)
	assert.Same(t, store, got)
}

func TestCanceled(t *testing.T) {
	req := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind, &dicom.Dataset{})
	assert.False(t, req.Canceled())
	req.Cancel()
	assert.True(t, req.Canceled())
}

func TestStatusCodes(t *testing.T) {
	assert.True(t, dimse.StatusPending.IsPending())
	assert.True(t, dimse.StatusPendingWithWarnings.IsPending())
	assert.False(t, dimse.StatusSuccess.IsPending())
	assert.True(t, dimse.StatusCoercionOfDataElements.IsWarning())
	assert.False(t, dimse.StatusCancel.IsFailure())
	assert.True(t, dimse.CMoveMoveDestinationUnknown.IsFailure())
	assert.Equal(t, "Pending", dimse.StatusPending.String())
	assert.Equal(t, "StatusCode(0x1234)", dimse.StatusCode(0x1234).String())
}
