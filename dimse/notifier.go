package dimse

import (
	"context"
	"slices"
	"sync"
)

// Notifier is the event side of a Request: subscribers learn about each
// response, each instance received on its behalf, and its completion.
// The zero value is ready to use.
type Notifier struct {
	mu         sync.Mutex
	onResponse []func(*Response)
	onInstance []func(*Request)
	onDone     []func(error)
	responses  []*Response
	done       chan struct{}
	completed  bool
	err        error
}

func (n *Notifier) doneCh() chan struct{} {
	if n.done == nil {
		n.done = make(chan struct{})
	}
	return n.done
}

// OnResponse registers fn to run for every response, pending ones included.
func (n *Notifier) OnResponse(fn func(*Response)) {
	n.mu.Lock()
	n.onResponse = append(n.onResponse, fn)
	n.mu.Unlock()
}

// OnInstance registers fn to run for every C-STORE sub-operation received on
// behalf of a C-GET.
func (n *Notifier) OnInstance(fn func(*Request)) {
	n.mu.Lock()
	n.onInstance = append(n.onInstance, fn)
	n.mu.Unlock()
}

// OnDone registers fn to run once the request is finished. If it already
// is, fn runs right away.
func (n *Notifier) OnDone(fn func(error)) {
	n.mu.Lock()
	if n.completed {
		err := n.err
		n.mu.Unlock()
		fn(err)
		return
	}
	n.onDone = append(n.onDone, fn)
	n.mu.Unlock()
}

func (n *Notifier) EmitResponse(rsp *Response) {
	n.mu.Lock()
	n.responses = append(n.responses, rsp)
	fns := slices.Clone(n.onResponse)
	n.mu.Unlock()
	for _, fn := range fns {
		fn(rsp)
	}
}

func (n *Notifier) EmitInstance(req *Request) {
	n.mu.Lock()
	fns := slices.Clone(n.onInstance)
	n.mu.Unlock()
	for _, fn := range fns {
		fn(req)
	}
}

// Complete finishes the request with err, nil meaning a terminal response
// arrived. Only the first call has an effect.
func (n *Notifier) Complete(err error) {
	n.mu.Lock()
	if n.completed {
		n.mu.Unlock()
		return
	}
	n.completed = true
	n.err = err
	close(n.doneCh())
	fns := n.onDone
	n.onDone = nil
	n.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// Done is closed once Complete has been called.
func (n *Notifier) Done() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.doneCh()
}

// Err is the error passed to Complete.
func (n *Notifier) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Wait blocks until the request completes or ctx expires.
func (n *Notifier) Wait(ctx context.Context) error {
	select {
	case <-n.Done():
		return n.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses returns the responses emitted so far.
func (n *Notifier) Responses() []*Response {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Response(nil), n.responses...)
}
