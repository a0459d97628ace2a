package netdicom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/grailbio/go-dicom/dicomlog"
	"golang.org/x/sync/errgroup"
)

// Server is an association acceptor (SCP). Each accepted connection gets
// its own Network sharing Config and Handlers.
type Server struct {
	Config Config
	// AETitle, if set, is the only called AE title accepted.
	AETitle  string
	Handlers Handlers
	// AbstractSyntaxes are the SOP classes accepted. If empty they are
	// derived from the Handlers that are set.
	AbstractSyntaxes []string
	// Negotiate, if set, runs after the presentation contexts were answered.
	// It may change the results, or return a rejection.
	Negotiate func(a *association.Association) *pdu.AAssociateRj
	// Events are forwarded from every connection. OnAssociationRequested and
	// OnAssociationReleaseRequested are owned by the server.
	Events Events

	stats Statistics
}

// Statistics counts the traffic of all connections served so far.
func (s *Server) Statistics() *Statistics { return &s.stats }

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("netdicom: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is canceled, then aborts the
// open associations and waits for them to close. l is closed on return. If
// the caller closes l, Serve returns once the open associations end.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	accepting := make(chan struct{})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-accepting:
		}
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer close(accepting)
		for {
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				dicomlog.Vprintf(0, "dicom.Server: accept: %v", err)
				return fmt.Errorf("netdicom: accept: %w", err)
			}
			nw := s.newNetwork(conn)
			nw.Start()
			g.Go(func() error {
				select {
				case <-nw.Closed():
				case <-ctx.Done():
					nw.Abort()
					<-nw.Closed()
				}
				return nil
			})
		}
	})
	return g.Wait()
}

func (s *Server) newNetwork(conn net.Conn) *Network {
	var nw *Network
	events := s.Events
	events.OnAssociationRequested = func(a *association.Association) {
		if rj := s.negotiate(nw.cfg, a); rj != nil {
			nw.SendAssociationReject(rj)
			return
		}
		nw.SendAssociationAccept()
	}
	events.OnAssociationReleaseRequested = func() {
		dicomlog.Vprintf(1, "dicom.Server(%s): release requested", nw.Label())
		nw.SendAssociationReleaseResponse()
	}
	nw = NewNetwork(conn, RoleAcceptor, s.Config, events, s.Handlers)
	nw.stats.parent = &s.stats
	return nw
}

// negotiate answers every proposed presentation context of a. It returns a
// rejection for the whole association, or nil.
func (s *Server) negotiate(cfg Config, a *association.Association) *pdu.AAssociateRj {
	if s.AETitle != "" && strings.TrimSpace(a.CalledAETitle) != s.AETitle {
		dicomlog.Vprintf(0, "dicom.Server: called AE %q is not %q", a.CalledAETitle, s.AETitle)
		return &pdu.AAssociateRj{
			Result: pdu.ResultRejectedPermanent,
			Source: pdu.SourceULServiceUser,
			Reason: pdu.RejectReasonCalledAETitleNotRecognized,
		}
	}
	supported := s.AbstractSyntaxes
	if len(supported) == 0 {
		supported = s.Handlers.abstractSyntaxes()
	}
	preferred := serverTransferSyntaxes
	if len(s.Config.TransferSyntaxes) > 0 {
		preferred = s.Config.TransferSyntaxes
	}
	for _, pc := range a.PresentationContexts() {
		if !slices.Contains(supported, pc.AbstractSyntaxUID) {
			pc.SetResult(association.ResultRejectAbstractSyntaxNotSupported, "")
			continue
		}
		if ts := pickTransferSyntax(pc, preferred); ts != "" {
			pc.SetResult(association.ResultAccept, ts)
			continue
		}
		// Stored instances are kept in whatever syntax they arrive in.
		if s.Handlers.CStore != nil && sopclass.IsStorage(pc.AbstractSyntaxUID) && len(pc.TransferSyntaxUIDs) > 0 {
			pc.SetResult(association.ResultAccept, pc.TransferSyntaxUIDs[0])
			continue
		}
		pc.SetResult(association.ResultRejectTransferSyntaxesNotSupported, "")
	}
	a.MaxPduLength = cfg.Implementation.MaxPduLength
	a.ImplementationClassUID = cfg.Implementation.ClassUID
	a.ImplementationVersion = cfg.Implementation.Version
	a.AsyncOps = nil
	a.UserIdentity = nil
	if s.Negotiate != nil {
		return s.Negotiate(a)
	}
	return nil
}

// pickTransferSyntax returns the first of preferred that pc proposes.
func pickTransferSyntax(pc *association.PresentationContext, preferred []string) string {
	for _, ts := range preferred {
		if pc.HasTransferSyntax(ts) {
			return ts
		}
	}
	return ""
}
