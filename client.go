package netdicom

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/grailbio/go-dicom/dicomlog"
)

// Client is an association requestor (SCU). It connects, proposes one
// presentation context per distinct request, sends the requests one after
// the other and releases the association once all are answered.
type Client struct {
	Config Config
	// Events are forwarded from the underlying Network. OnDone is wrapped to
	// release the association.
	Events Events
	// Handlers serve requests the peer sends on the association, such as
	// C-STORE sub-operations of a C-GET.
	Handlers Handlers

	mu       sync.Mutex
	requests []*dimse.Request
}

// AddRequest queues requests for the next Send.
func (c *Client) AddRequest(requests ...*dimse.Request) {
	c.mu.Lock()
	c.requests = append(c.requests, requests...)
	c.mu.Unlock()
}

func (c *Client) takeRequests() []*dimse.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	requests := c.requests
	c.requests = nil
	return requests
}

// newAssociation proposes a context for every request, or Verification alone
// when there are none.
func (c *Client) newAssociation(cfg Config, callingAETitle, calledAETitle string, requests []*dimse.Request) (*association.Association, error) {
	a := association.New(callingAETitle, calledAETitle, cfg.Implementation)
	if len(requests) == 0 {
		if _, err := a.AddPresentationContext(sopclass.Verification, cfg.TransferSyntaxes...); err != nil {
			return nil, err
		}
		return a, nil
	}
	for _, req := range requests {
		if err := a.AddPresentationContextFromRequest(req, cfg.TransferSyntaxes); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Send runs one association with the peer at addr and returns once it is
// closed. It returns nil after a clean release, even if some requests
// failed; each request reports its own outcome through its Notifier.
//
// Canceling ctx aborts the association.
func (c *Client) Send(ctx context.Context, addr, callingAETitle, calledAETitle string) error {
	cfg := c.Config.withDefaults()
	requests := c.takeRequests()
	fail := func(err error) error {
		for _, req := range requests {
			req.Complete(err)
		}
		return err
	}
	for _, title := range []string{callingAETitle, calledAETitle} {
		if err := association.ValidateAETitle(title); err != nil {
			return fail(fmt.Errorf("netdicom: %w", err))
		}
	}
	a, err := c.newAssociation(cfg, callingAETitle, calledAETitle, requests)
	if err != nil {
		return fail(fmt.Errorf("netdicom: build association: %w", err))
	}
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.Client: connect %s: %v", addr, err)
		return fail(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
	}

	events := c.Events
	var nw *Network
	var release sync.Once
	userDone := events.OnDone
	events.OnDone = func() {
		if userDone != nil {
			userDone()
		}
		release.Do(nw.SendAssociationReleaseRequest)
	}
	nw = NewNetwork(conn, RoleRequestor, cfg, events, c.Handlers)
	nw.SendRequests(requests...)
	nw.SendAssociationRequest(a)
	nw.Start()

	select {
	case <-nw.Closed():
		return nw.Err()
	case <-ctx.Done():
		nw.Abort()
		<-nw.Closed()
		return ctx.Err()
	}
}
