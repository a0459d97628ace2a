package netdicom

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const testTimeout = 10 * time.Second

func newDataset(t *testing.T, values map[tag.Tag]string) *dicom.Dataset {
	t.Helper()
	ds := &dicom.Dataset{}
	for tg, v := range values {
		elem, err := dicom.NewElement(tg, []string{v})
		require.NoError(t, err)
		ds.Elements = append(ds.Elements, elem)
	}
	return ds
}

func stringValue(t *testing.T, ds *dicom.Dataset, tg tag.Tag) string {
	t.Helper()
	require.NotNil(t, ds)
	elem, err := ds.FindElementByTag(tg)
	require.NoError(t, err)
	v, ok := elem.Value.GetValue().([]string)
	require.True(t, ok)
	require.NotEmpty(t, v)
	return strings.TrimRight(v[0], " \x00")
}

// startServer serves s on a loopback port until the test ends.
func startServer(t *testing.T, s *Server) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(testTimeout):
			t.Error("server did not stop")
		}
	})
	return l.Addr().String()
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// dialNetwork opens a requestor Network to addr without starting it.
func dialNetwork(t *testing.T, addr string, cfg Config, events Events) *Network {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	nw := NewNetwork(conn, RoleRequestor, cfg, events, Handlers{})
	t.Cleanup(nw.Abort)
	return nw
}

func TestFragmentSize(t *testing.T) {
	assert.Equal(t, 16384-pdu.PDVHeaderSize, fragmentSize(16384))
	assert.Equal(t, MaxFragmentPDULength-pdu.PDVHeaderSize, fragmentSize(0))
	assert.Equal(t, MaxFragmentPDULength-pdu.PDVHeaderSize, fragmentSize(64<<20))
	assert.Equal(t, int(association.DefaultMaxPduLength)-pdu.PDVHeaderSize, fragmentSize(4))
}

func TestFragment(t *testing.T) {
	data := make([]byte, 25)
	for i := range data {
		data[i] = byte(i)
	}
	pdus := fragment(3, false, data, 10)
	require.Len(t, pdus, 3)
	var joined []byte
	for i, v := range pdus {
		require.Len(t, v.Items, 1)
		item := v.Items[0]
		assert.Equal(t, byte(3), item.ContextID)
		assert.False(t, item.Command)
		assert.Equal(t, i == 2, item.Last)
		joined = append(joined, item.Value...)
	}
	assert.Equal(t, data, joined)
	assert.Len(t, pdus[2].Items[0].Value, 5)

	// Exact multiple: no trailing empty fragment.
	assert.Len(t, fragment(1, false, data[:20], 10), 2)

	empty := fragment(1, false, nil, 10)
	require.Len(t, empty, 1)
	assert.True(t, empty[0].Items[0].Last)
	assert.Empty(t, empty[0].Items[0].Value)
}

func TestEchoCleanRelease(t *testing.T) {
	addr := startServer(t, &Server{})

	var done, closes atomic.Int32
	var closeErr error
	c := &Client{Events: Events{
		OnDone:  func() { done.Add(1) },
		OnClose: func(err error) { closes.Add(1); closeErr = err },
	}}
	echo := dimse.NewCEchoRequest()
	c.AddRequest(echo)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))

	require.NoError(t, echo.Err())
	rsps := echo.Responses()
	require.Len(t, rsps, 1)
	assert.Equal(t, dimse.StatusSuccess, rsps[0].Status.Status)
	assert.Equal(t, dimse.CommandTypeCEchoRsp, rsps[0].Type)
	assert.Equal(t, dimse.MessageID(1), echo.MessageID)
	assert.Equal(t, echo.MessageID, rsps[0].MessageIDBeingRespondedTo)
	assert.Equal(t, int32(1), done.Load())
	assert.Equal(t, int32(1), closes.Load())
	assert.NoError(t, closeErr)
}

func TestEchoWithoutRequests(t *testing.T) {
	addr := startServer(t, &Server{})
	var accepted *association.Association
	c := &Client{Events: Events{OnAssociationAccepted: func(a *association.Association) { accepted = a }}}
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))
	require.NotNil(t, accepted)
	require.Len(t, accepted.PresentationContexts(), 1)
	assert.Equal(t, sopclass.Verification, accepted.PresentationContexts()[0].AbstractSyntaxUID)
	assert.True(t, accepted.PresentationContexts()[0].Accepted())
}

func TestMessageIDsIncrease(t *testing.T) {
	addr := startServer(t, &Server{})
	c := &Client{}
	var reqs []*dimse.Request
	for i := 0; i < 3; i++ {
		req := dimse.NewCEchoRequest()
		reqs = append(reqs, req)
		c.AddRequest(req)
	}
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))
	for i, req := range reqs {
		require.NoError(t, req.Err())
		assert.Equal(t, dimse.MessageID(i+1), req.MessageID)
	}
}

func TestNextMessageIDSkipsZero(t *testing.T) {
	n := &Network{messageID: 0xfffe}
	assert.Equal(t, dimse.MessageID(0xffff), n.nextMessageID())
	assert.Equal(t, dimse.MessageID(1), n.nextMessageID())
	assert.Equal(t, dimse.MessageID(2), n.nextMessageID())
}

func TestRejectedContextSkipped(t *testing.T) {
	addr := startServer(t, &Server{AbstractSyntaxes: []string{sopclass.Verification}})

	var done atomic.Int32
	c := &Client{Events: Events{OnDone: func() { done.Add(1) }}}
	find := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind,
		newDataset(t, map[tag.Tag]string{tag.PatientID: "*"}))
	echo := dimse.NewCEchoRequest()
	c.AddRequest(find, echo)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))

	assert.ErrorIs(t, find.Err(), ErrNoPresentationContext)
	assert.Empty(t, find.Responses())
	require.NoError(t, echo.Err())
	// The skipped request never took a message id.
	assert.Equal(t, dimse.MessageID(1), echo.MessageID)
	assert.Equal(t, int32(1), done.Load())
}

func TestCFindMultipleResponses(t *testing.T) {
	var query *dicom.Dataset
	s := &Server{Handlers: Handlers{
		CFind: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			query = req.Dataset
			rsp.Respond(
				dimse.NewResponse(req, dimse.Pending, newDataset(t, map[tag.Tag]string{tag.PatientName: "Doe^Jane"})),
				dimse.NewResponse(req, dimse.Pending, newDataset(t, map[tag.Tag]string{tag.PatientName: "Doe^John"})),
				dimse.NewResponse(req, dimse.Success, nil),
			)
		},
	}}
	addr := startServer(t, s)

	find := dimse.NewCFindRequest(sopclass.PatientRootQueryRetrieveInformationModelFind,
		newDataset(t, map[tag.Tag]string{tag.PatientName: "Doe*"}))
	var seen atomic.Int32
	find.OnResponse(func(*dimse.Response) { seen.Add(1) })
	c := &Client{}
	c.AddRequest(find)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))

	require.NoError(t, find.Err())
	assert.Equal(t, "Doe*", stringValue(t, query, tag.PatientName))
	rsps := find.Responses()
	require.Len(t, rsps, 3)
	assert.Equal(t, int32(3), seen.Load())
	assert.True(t, rsps[0].IsPending())
	assert.Equal(t, "Doe^Jane", stringValue(t, rsps[0].Dataset, tag.PatientName))
	assert.Equal(t, "Doe^John", stringValue(t, rsps[1].Dataset, tag.PatientName))
	assert.Equal(t, dimse.StatusSuccess, rsps[2].Status.Status)
	assert.Nil(t, rsps[2].Dataset)
}

func TestCStoreFragmented(t *testing.T) {
	stored := make(chan *dimse.Request, 1)
	s := &Server{
		Config: Config{Implementation: association.Implementation{MaxPduLength: 4096}},
		Handlers: Handlers{
			CStore: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
				stored <- req
				rsp.RespondStatus(dimse.Success)
			},
		},
	}
	addr := startServer(t, s)

	description := strings.Repeat("ab", 4500)
	ds := newDataset(t, map[tag.Tag]string{
		tag.PatientName:      "Doe^John",
		tag.StudyDescription: description,
	})
	var sent StatisticsSnapshot
	c := &Client{Config: Config{StatisticsObserver: func(_ string, s StatisticsSnapshot) { sent = s }}}
	store := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3.4.5", ds, transfersyntax.ExplicitVRLittleEndian)
	c.AddRequest(store)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))
	require.NoError(t, store.Err())

	var got *dimse.Request
	select {
	case got = <-stored:
	default:
		t.Fatal("C-STORE not delivered")
	}
	assert.Equal(t, "1.2.3.4.5", got.AffectedSOPInstanceUID)
	assert.Equal(t, sopclass.CTImageStorage, got.AffectedSOPClassUID)
	assert.Equal(t, "Doe^John", stringValue(t, got.Dataset, tag.PatientName))
	assert.Equal(t, description, stringValue(t, got.Dataset, tag.StudyDescription))
	// A-ASSOCIATE-RQ, the command, at least three data fragments, A-RELEASE-RQ.
	assert.GreaterOrEqual(t, sent.PDUsSent, uint64(6))
	assert.Greater(t, s.Statistics().Snapshot().BytesReceived, uint64(9000))
}

func TestTranscodeGuard(t *testing.T) {
	var stores atomic.Int32
	s := &Server{
		Handlers: Handlers{
			CStore: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
				stores.Add(1)
				rsp.RespondStatus(dimse.Success)
			},
		},
		// Only uncompressed syntaxes.
		Negotiate: func(a *association.Association) *pdu.AAssociateRj {
			for _, pc := range a.PresentationContexts() {
				if pc.Accepted() && !transfersyntax.IsTranscodable(pc.AcceptedTransferSyntaxUID()) {
					pc.SetResult(association.ResultRejectTransferSyntaxesNotSupported, "")
				}
			}
			return nil
		},
	}
	addr := startServer(t, s)

	store := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3.4.6",
		newDataset(t, map[tag.Tag]string{tag.PatientName: "Doe^John"}), transfersyntax.JPEGBaseline8Bit)
	echo := dimse.NewCEchoRequest()
	c := &Client{}
	c.AddRequest(store, echo)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))

	assert.ErrorIs(t, store.Err(), ErrTranscodeUnsupported)
	assert.Zero(t, store.MessageID)
	assert.Zero(t, stores.Load())
	// The association survived.
	require.NoError(t, echo.Err())
	assert.Equal(t, dimse.MessageID(1), echo.MessageID)
}

func TestTranscodeBetweenUncompressedSyntaxes(t *testing.T) {
	stored := make(chan *dimse.Request, 1)
	s := &Server{
		Config: Config{TransferSyntaxes: []string{transfersyntax.ImplicitVRLittleEndian}},
		Handlers: Handlers{
			CStore: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
				stored <- req
				rsp.RespondStatus(dimse.Success)
			},
		},
	}
	addr := startServer(t, s)

	store := dimse.NewCStoreRequest(sopclass.MRImageStorage, "1.2.3.4.7",
		newDataset(t, map[tag.Tag]string{tag.PatientID: "42"}), transfersyntax.ExplicitVRLittleEndian)
	c := &Client{}
	c.AddRequest(store)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))
	require.NoError(t, store.Err())

	got := <-stored
	assert.Equal(t, transfersyntax.ImplicitVRLittleEndian, got.TransferSyntaxUID)
	assert.Equal(t, "42", stringValue(t, got.Dataset, tag.PatientID))
}

func TestUnhandledRequest(t *testing.T) {
	addr := startServer(t, &Server{AbstractSyntaxes: []string{sopclass.StudyRootQueryRetrieveInformationModelFind}})
	find := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind,
		newDataset(t, map[tag.Tag]string{tag.PatientID: "*"}))
	c := &Client{}
	c.AddRequest(find)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))
	require.NoError(t, find.Err())
	rsps := find.Responses()
	require.Len(t, rsps, 1)
	assert.Equal(t, dimse.StatusUnrecognizedOperation, rsps[0].Status.Status)
}

func TestAssociationRejected(t *testing.T) {
	addr := startServer(t, &Server{AETitle: "SCP"})

	var rejected *pdu.AAssociateRj
	c := &Client{Events: Events{OnAssociationRejected: func(rj *pdu.AAssociateRj) { rejected = rj }}}
	echo := dimse.NewCEchoRequest()
	c.AddRequest(echo)
	err := c.Send(testContext(t), addr, "SCU", "OTHER")

	var rjErr *AssociationRejectedError
	require.ErrorAs(t, err, &rjErr)
	assert.Equal(t, pdu.RejectReasonCalledAETitleNotRecognized, rjErr.Reject.Reason)
	assert.Equal(t, pdu.SourceULServiceUser, rjErr.Reject.Source)
	require.NotNil(t, rejected)
	assert.ErrorIs(t, echo.Err(), ErrConnectionClosed)
}

func TestConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	echo := dimse.NewCEchoRequest()
	c := &Client{}
	c.AddRequest(echo)
	err = c.Send(testContext(t), addr, "SCU", "SCP")
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, echo.Err(), ErrConnectionClosed)
}

func TestPDUTimeout(t *testing.T) {
	s := &Server{Handlers: Handlers{
		CEcho: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			<-ctx.Done()
		},
	}}
	addr := startServer(t, s)

	var networkErrs atomic.Int32
	c := &Client{
		Config: Config{PDUTimeout: 300 * time.Millisecond, TimerInterval: 50 * time.Millisecond},
		Events: Events{OnNetworkError: func(error) { networkErrs.Add(1) }},
	}
	echo := dimse.NewCEchoRequest()
	c.AddRequest(echo)
	start := time.Now()
	err := c.Send(testContext(t), addr, "SCU", "SCP")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, echo.Err(), ErrConnectionClosed)
	assert.ErrorIs(t, echo.Err(), ErrTimeout)
	assert.Equal(t, int32(1), networkErrs.Load())
}

func TestContextCancelAborts(t *testing.T) {
	s := &Server{Handlers: Handlers{
		CEcho: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			<-ctx.Done()
		},
	}}
	addr := startServer(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	echo := dimse.NewCEchoRequest()
	c := &Client{Events: Events{OnAssociationAccepted: func(*association.Association) {
		time.AfterFunc(100*time.Millisecond, cancel)
	}}}
	c.AddRequest(echo)
	err := c.Send(ctx, addr, "SCU", "SCP")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, echo.Err(), ErrConnectionClosed)
}

func TestAbortIdempotent(t *testing.T) {
	var aborts atomic.Int32
	serverClosed := make(chan error, 1)
	addr := startServer(t, &Server{Events: Events{
		OnAbort: func(*pdu.AAbort) { aborts.Add(1) },
		OnClose: func(err error) { serverClosed <- err },
	}})

	established := make(chan struct{})
	nw := dialNetwork(t, addr, Config{}, Events{
		OnAssociationAccepted: func(*association.Association) { close(established) },
	})
	a := association.New("SCU", "SCP", association.Implementation{})
	_, err := a.AddPresentationContext(sopclass.Verification, transfersyntax.ImplicitVRLittleEndian)
	require.NoError(t, err)
	nw.SendAssociationRequest(a)
	nw.Start()

	select {
	case <-established:
	case <-time.After(testTimeout):
		t.Fatal("association not established")
	}
	nw.Abort()
	nw.Abort()
	<-nw.Closed()
	nw.Abort()

	var abortErr *AbortedError
	require.ErrorAs(t, nw.Err(), &abortErr)
	assert.True(t, abortErr.Local)

	select {
	case err := <-serverClosed:
		require.ErrorAs(t, err, &abortErr)
		assert.False(t, abortErr.Local)
		assert.Equal(t, pdu.AbortSourceServiceUser, abortErr.Source)
	case <-time.After(testTimeout):
		t.Fatal("server side not closed")
	}
	assert.Equal(t, int32(1), aborts.Load())
}

func TestCancelRequests(t *testing.T) {
	s := &Server{Handlers: Handlers{
		CFind: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			for !req.Canceled() {
				rsp.Respond(dimse.NewResponse(req, dimse.Pending, nil))
				select {
				case <-ctx.Done():
					return
				case <-time.After(20 * time.Millisecond):
				}
			}
			rsp.RespondStatus(dimse.Status{Status: dimse.StatusCancel})
		},
	}}
	addr := startServer(t, s)

	var nw *Network
	nw = dialNetwork(t, addr, Config{}, Events{OnDone: func() { nw.SendAssociationReleaseRequest() }})
	find := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind,
		newDataset(t, map[tag.Tag]string{tag.PatientID: "*"}))
	queued := dimse.NewCFindRequest(sopclass.StudyRootQueryRetrieveInformationModelFind,
		newDataset(t, map[tag.Tag]string{tag.PatientID: "1"}))
	var once sync.Once
	find.OnResponse(func(rsp *dimse.Response) {
		if rsp.IsPending() {
			once.Do(func() { nw.Cancel(find) })
		}
	})

	a := association.New("SCU", "SCP", association.Implementation{})
	require.NoError(t, a.AddPresentationContextFromRequest(find, nil))
	nw.SendRequests(find, queued)
	nw.Cancel(queued)
	nw.SendAssociationRequest(a)
	nw.Start()

	ctx := testContext(t)
	require.NoError(t, find.Wait(ctx))
	assert.ErrorIs(t, queued.Err(), ErrCanceled)
	rsps := find.Responses()
	require.NotEmpty(t, rsps)
	assert.Equal(t, dimse.StatusCancel, rsps[len(rsps)-1].Status.Status)

	select {
	case <-nw.Closed():
	case <-ctx.Done():
		t.Fatal("association not released")
	}
	assert.NoError(t, nw.Err())
}

func TestCGetInstances(t *testing.T) {
	s := &Server{Handlers: Handlers{
		CGet: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			store := dimse.NewCStoreRequest(sopclass.CTImageStorage, "1.2.3.4.8",
				newDataset(t, map[tag.Tag]string{tag.PatientName: "Doe^John"}), "")
			rsp.Network().SendRequests(store)
			status := dimse.Success
			if err := store.Wait(ctx); err != nil {
				status = dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
			}
			rsp.RespondStatus(status)
		},
	}}
	addr := startServer(t, s)

	var instances []*dimse.Request
	get := dimse.NewCGetRequest(sopclass.StudyRootQueryRetrieveInformationModelGet,
		newDataset(t, map[tag.Tag]string{tag.StudyInstanceUID: "1.2.3"}))
	get.OnInstance(func(req *dimse.Request) { instances = append(instances, req) })
	c := &Client{}
	c.AddRequest(get)
	require.NoError(t, c.Send(testContext(t), addr, "SCU", "SCP"))

	require.NoError(t, get.Err())
	rsps := get.Responses()
	require.NotEmpty(t, rsps)
	assert.Equal(t, dimse.StatusSuccess, rsps[len(rsps)-1].Status.Status)
	require.Len(t, instances, 1)
	assert.Equal(t, "1.2.3.4.8", instances[0].AffectedSOPInstanceUID)
	assert.Equal(t, "Doe^John", stringValue(t, instances[0].Dataset, tag.PatientName))
}

func TestServerShutdownAbortsAssociations(t *testing.T) {
	s := &Server{Handlers: Handlers{
		CEcho: func(ctx context.Context, req *dimse.Request, rsp *Responder) {
			<-ctx.Done()
		},
	}}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, l) }()

	c := &Client{Events: Events{OnAssociationAccepted: func(*association.Association) {
		time.AfterFunc(100*time.Millisecond, cancel)
	}}}
	echo := dimse.NewCEchoRequest()
	c.AddRequest(echo)
	err = c.Send(testContext(t), l.Addr().String(), "SCU", "SCP")

	var abortErr *AbortedError
	require.ErrorAs(t, err, &abortErr)
	assert.False(t, abortErr.Local)
	assert.True(t, errors.Is(echo.Err(), ErrConnectionClosed))
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return")
	}
}

func TestClientRejectsInvalidAETitle(t *testing.T) {
	addr := startServer(t, &Server{})
	for _, called := range []string{"THIS_AE_TITLE_IS_WAY_TOO_LONG", "", "   ", "A\\B"} {
		echo := dimse.NewCEchoRequest()
		c := &Client{}
		c.AddRequest(echo)
		start := time.Now()
		err := c.Send(testContext(t), addr, "SCU", called)
		assert.ErrorIs(t, err, association.ErrInvalidAETitle, called)
		assert.ErrorIs(t, echo.Err(), association.ErrInvalidAETitle, called)
		assert.Less(t, time.Since(start), time.Second, called)
	}
}

func TestUnsendableAssociationRequestCloses(t *testing.T) {
	addr := startServer(t, &Server{})

	var networkErrs atomic.Int32
	nw := dialNetwork(t, addr, Config{AssociationTimeout: time.Minute}, Events{
		OnNetworkError: func(error) { networkErrs.Add(1) },
	})
	a := association.New("SCU", "THIS_AE_TITLE_IS_WAY_TOO_LONG", association.Implementation{})
	_, err := a.AddPresentationContext(sopclass.Verification)
	require.NoError(t, err)
	echo := dimse.NewCEchoRequest()
	nw.SendRequests(echo)
	nw.SendAssociationRequest(a)
	nw.Start()

	select {
	case <-nw.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("network did not close")
	}
	require.Error(t, nw.Err())
	assert.NotErrorIs(t, nw.Err(), ErrTimeout)
	assert.Contains(t, nw.Err().Error(), "does not fit")
	assert.Equal(t, int32(1), networkErrs.Load())
	assert.ErrorIs(t, echo.Err(), ErrConnectionClosed)
}

func TestServeReturnsWhenListenerClosed(t *testing.T) {
	s := &Server{}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- s.Serve(context.Background(), l) }()

	c := &Client{}
	c.AddRequest(dimse.NewCEchoRequest())
	require.NoError(t, c.Send(testContext(t), l.Addr().String(), "SCU", "SCP"))

	require.NoError(t, l.Close())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return")
	}
}

func TestAssociationPublishedOnAccept(t *testing.T) {
	addr := startServer(t, &Server{})

	accepted := make(chan *association.Association, 1)
	nw := dialNetwork(t, addr, Config{}, Events{
		OnAssociationAccepted: func(a *association.Association) { accepted <- a },
	})
	assert.Nil(t, nw.Association())

	a := association.New("SCU", "SCP", association.Implementation{})
	_, err := a.AddPresentationContext(sopclass.Verification)
	require.NoError(t, err)
	nw.SendAssociationRequest(a)
	nw.Start()

	select {
	case got := <-accepted:
		assert.Same(t, got, nw.Association())
	case <-time.After(testTimeout):
		t.Fatal("association not accepted")
	}
	nw.SendAssociationReleaseRequest()
	<-nw.Closed()
	assert.NoError(t, nw.Err())
}
