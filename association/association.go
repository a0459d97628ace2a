// Package association holds the negotiation model of a DICOM association:
// the connection parameters exchanged in A-ASSOCIATE-RQ/AC and the set of
// presentation contexts, owned by the Association and addressed by id.
package association

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/grailbio/go-dicom/dicomlog"
)

const (
	// DefaultImplementationClassUIDPrefix is the UID root of this implementation.
	DefaultImplementationClassUIDPrefix = "1.2.826.0.1.3680043.9.7133"
	DefaultImplementationClassUID       = DefaultImplementationClassUIDPrefix + ".2.1"
	DefaultImplementationVersion        = "GODICOMNET_1_0"
	DefaultMaxPduLength          uint32 = 16384
)

// Implementation identifies the local DICOM implementation. It is a plain
// value: every Association and Network gets its own copy.
type Implementation struct {
	ClassUID     string
	Version      string
	MaxPduLength uint32
}

// DefaultImplementation returns the built-in implementation identity.
func DefaultImplementation() Implementation {
	return Implementation{
		ClassUID:     DefaultImplementationClassUID,
		Version:      DefaultImplementationVersion,
		MaxPduLength: DefaultMaxPduLength,
	}
}

// WithDefaults fills the zero fields of impl from DefaultImplementation.
func (impl Implementation) WithDefaults() Implementation {
	d := DefaultImplementation()
	if impl.ClassUID == "" {
		impl.ClassUID = d.ClassUID
	}
	if impl.Version == "" {
		impl.Version = d.Version
	}
	if impl.MaxPduLength == 0 {
		impl.MaxPduLength = d.MaxPduLength
	}
	return impl
}

// AsyncOps is the asynchronous operations window sub-item, P3.7 D.3.3.3.
type AsyncOps struct {
	MaxOperationsInvoked   uint16
	MaxOperationsPerformed uint16
}

// UserIdentityType is the form of the user identity, P3.7 D.3.3.7.
type UserIdentityType byte

const (
	UserIdentityUsername         UserIdentityType = 1
	UserIdentityUsernamePassword UserIdentityType = 2
	UserIdentityKerberos         UserIdentityType = 3
	UserIdentitySAML             UserIdentityType = 4
	UserIdentityJWT              UserIdentityType = 5
)

// UserIdentity is the user identity negotiation sub-item of a request.
type UserIdentity struct {
	Type                      UserIdentityType
	PositiveResponseRequested bool
	PrimaryField              string
	SecondaryField            string
}

var (
	// ErrFrozen is returned when modifying an established association.
	ErrFrozen = errors.New("association: association is established and read-only")
	// ErrNoFreeContextID is returned when all 128 odd context ids are taken.
	ErrNoFreeContextID = errors.New("association: no free presentation context id")
	// ErrDuplicateContextID is returned when a peer repeats a context id.
	ErrDuplicateContextID = errors.New("association: duplicate presentation context id")
	// ErrInvalidAETitle is returned for an AE title that cannot be sent.
	ErrInvalidAETitle = errors.New("association: invalid AE title")
)

// MaxAETitleLength is the size of the AE title fields of A-ASSOCIATE-RQ/AC.
const MaxAETitleLength = 16

// ValidateAETitle checks that title is non-blank, fits MaxAETitleLength
// bytes and holds no backslash or control characters (P3.5 AE VR).
func ValidateAETitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAETitle)
	}
	if len(title) > MaxAETitleLength {
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidAETitle, title, MaxAETitleLength)
	}
	for _, c := range []byte(title) {
		if c == '\\' || c < 0x20 || c == 0x7f {
			return fmt.Errorf("%w: %q contains 0x%02x", ErrInvalidAETitle, title, c)
		}
	}
	return nil
}

// DefaultProposedTransferSyntaxes are proposed when a caller names none.
var DefaultProposedTransferSyntaxes = []string{
	transfersyntax.ImplicitVRLittleEndian,
	transfersyntax.ExplicitVRLittleEndian,
}

// Association is the negotiated (or being negotiated) session between two
// application entities.
type Association struct {
	CallingAETitle         string
	CalledAETitle          string
	ApplicationContextName string
	MaxPduLength           uint32
	ImplementationClassUID string
	ImplementationVersion  string

	// Optional extended negotiation.
	AsyncOps                   *AsyncOps
	UserIdentity               *UserIdentity
	UserIdentityServerResponse string

	contexts map[byte]*PresentationContext
	order    []byte
	frozen   bool
}

// New returns an association with no presentation contexts, identified by
// impl.
func New(callingAETitle, calledAETitle string, impl Implementation) *Association {
	impl = impl.WithDefaults()
	return &Association{
		CallingAETitle:         callingAETitle,
		CalledAETitle:          calledAETitle,
		ApplicationContextName: sopclass.ApplicationContextName,
		MaxPduLength:           impl.MaxPduLength,
		ImplementationClassUID: impl.ClassUID,
		ImplementationVersion:  impl.Version,
		contexts:               make(map[byte]*PresentationContext),
	}
}

// FromPeer returns an association carrying only the AE titles. PDU decoders
// fill in the rest from what the peer sent.
func FromPeer(callingAETitle, calledAETitle string) *Association {
	return &Association{
		CallingAETitle: callingAETitle,
		CalledAETitle:  calledAETitle,
		contexts:       make(map[byte]*PresentationContext),
	}
}

// Freeze makes the association read-only. The network engine calls it when
// the association becomes established.
func (a *Association) Freeze() { a.frozen = true }

func (a *Association) Frozen() bool { return a.frozen }

// PresentationContexts returns the contexts in the order they were added.
func (a *Association) PresentationContexts() []*PresentationContext {
	out := make([]*PresentationContext, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.contexts[id])
	}
	return out
}

// PresentationContext looks up a context by id.
func (a *Association) PresentationContext(id byte) (*PresentationContext, bool) {
	pc, ok := a.contexts[id]
	return pc, ok
}

// PutPresentationContext stores pc under its own id. Decoders use it for
// contexts whose id was chosen by the peer.
func (a *Association) PutPresentationContext(pc *PresentationContext) error {
	if a.frozen {
		return ErrFrozen
	}
	if a.contexts == nil {
		a.contexts = make(map[byte]*PresentationContext)
	}
	if _, ok := a.contexts[pc.ID]; ok {
		return fmt.Errorf("Association.PutPresentationContext: id %d: %w", pc.ID, ErrDuplicateContextID)
	}
	a.contexts[pc.ID] = pc
	a.order = append(a.order, pc.ID)
	return nil
}

// AddPresentationContext proposes abstractSyntaxUID under the smallest free
// odd id and returns that id.
func (a *Association) AddPresentationContext(abstractSyntaxUID string, transferSyntaxUIDs ...string) (byte, error) {
	return a.AddPresentationContextWithID(abstractSyntaxUID, 1, transferSyntaxUIDs...)
}

// AddPresentationContextWithID is AddPresentationContext starting the search
// at id. Taken ids are skipped two at a time so the result stays odd.
func (a *Association) AddPresentationContextWithID(abstractSyntaxUID string, id byte, transferSyntaxUIDs ...string) (byte, error) {
	if a.frozen {
		return 0, ErrFrozen
	}
	next := int(id)
	if next%2 == 0 {
		next++
	}
	for ; next <= 0xff; next += 2 {
		if _, ok := a.contexts[byte(next)]; !ok {
			break
		}
	}
	if next > 0xff {
		return 0, fmt.Errorf("Association.AddPresentationContext: %s: %w", abstractSyntaxUID, ErrNoFreeContextID)
	}
	pc := NewPresentationContext(byte(next), abstractSyntaxUID, transferSyntaxUIDs...)
	if err := a.PutPresentationContext(pc); err != nil {
		return 0, err
	}
	return pc.ID, nil
}

// AddOrGetPresentationContext returns the first context proposing
// abstractSyntaxUID, adding transferSyntaxUIDs to it, or creates one.
func (a *Association) AddOrGetPresentationContext(abstractSyntaxUID string, transferSyntaxUIDs ...string) (byte, error) {
	for _, id := range a.order {
		pc := a.contexts[id]
		if pc.AbstractSyntaxUID != abstractSyntaxUID {
			continue
		}
		if a.frozen {
			return pc.ID, nil
		}
		for _, ts := range transferSyntaxUIDs {
			pc.AddTransferSyntax(ts)
		}
		return pc.ID, nil
	}
	return a.AddPresentationContext(abstractSyntaxUID, transferSyntaxUIDs...)
}

// Request is what AddPresentationContextFromRequest and
// GetAcceptedPresentationContextFromRequest need to know about a DIMSE
// request.
type Request interface {
	// SOPClassUID is the abstract syntax the request is addressed to.
	SOPClassUID() string
	// PayloadTransferSyntaxUID is the encoding the request payload is held in.
	PayloadTransferSyntaxUID() string
	IsStore() bool
	IsGet() bool
}

// AddPresentationContextFromRequest proposes the contexts req needs.
//
// Every request gets a context for its SOP class with proposed. A store
// request whose payload is neither implicit nor explicit VR little endian
// also gets a context offering only the payload's own syntax, shared with
// earlier requests in that syntax. A get request also proposes every
// storage SOP class, for the C-STORE sub-operations the peer will send back.
func (a *Association) AddPresentationContextFromRequest(req Request, proposed []string) error {
	if len(proposed) == 0 {
		proposed = DefaultProposedTransferSyntaxes
	}
	sopClassUID := req.SOPClassUID()
	if sopClassUID == "" {
		return errors.New("Association.AddPresentationContextFromRequest: request has no SOP class")
	}
	if _, err := a.AddOrGetPresentationContext(sopClassUID, proposed...); err != nil {
		return err
	}
	switch {
	case req.IsStore():
		ts := transfersyntax.OrDefault(req.PayloadTransferSyntaxUID())
		if transfersyntax.IsLittleEndianUncompressed(ts) {
			return nil
		}
		if a.FindPresentationContextByAbstractSyntaxAndTransferSyntax(sopClassUID, ts) != nil {
			return nil
		}
		id, err := a.AddPresentationContext(sopClassUID, ts)
		if err != nil {
			return err
		}
		dicomlog.Vprintf(2, "dicom.association(%s): context %d for %s payload", a.CallingAETitle, id, ts)
	case req.IsGet():
		for _, sc := range sopclass.StorageClasses {
			if _, err := a.AddOrGetPresentationContext(sc, proposed...); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindPresentationContextByAbstractSyntaxAndTransferSyntax returns the first
// context for abstractSyntaxUID that offers transferSyntaxUID.
func (a *Association) FindPresentationContextByAbstractSyntaxAndTransferSyntax(abstractSyntaxUID, transferSyntaxUID string) *PresentationContext {
	for _, id := range a.order {
		pc := a.contexts[id]
		if pc.AbstractSyntaxUID == abstractSyntaxUID && pc.HasTransferSyntax(transferSyntaxUID) {
			return pc
		}
	}
	return nil
}

// GetAcceptedPresentationContextFromRequest picks the accepted context req
// travels on. An accepted context whose syntax equals the payload's own
// encoding wins; otherwise any accepted context for the SOP class does.
func (a *Association) GetAcceptedPresentationContextFromRequest(req Request) *PresentationContext {
	sopClassUID := req.SOPClassUID()
	ts := transfersyntax.OrDefault(req.PayloadTransferSyntaxUID())
	for _, id := range a.order {
		pc := a.contexts[id]
		if pc.Accepted() && pc.AbstractSyntaxUID == sopClassUID &&
			transfersyntax.OrDefault(pc.AcceptedTransferSyntaxUID()) == ts {
			return pc
		}
	}
	for _, id := range a.order {
		pc := a.contexts[id]
		if pc.Accepted() && pc.AbstractSyntaxUID == sopClassUID {
			return pc
		}
	}
	return nil
}

// Clone returns a deep copy that is not frozen.
func (a *Association) Clone() *Association {
	c := *a
	c.frozen = false
	c.contexts = make(map[byte]*PresentationContext, len(a.contexts))
	c.order = append([]byte(nil), a.order...)
	for id, pc := range a.contexts {
		c.contexts[id] = pc.clone()
	}
	if a.AsyncOps != nil {
		ops := *a.AsyncOps
		c.AsyncOps = &ops
	}
	if a.UserIdentity != nil {
		ui := *a.UserIdentity
		c.UserIdentity = &ui
	}
	return &c
}

func (a *Association) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Association{calling:%q called:%q maxpdu:%d impl:%s/%s",
		a.CallingAETitle, a.CalledAETitle, a.MaxPduLength, a.ImplementationClassUID, a.ImplementationVersion)
	for _, pc := range a.PresentationContexts() {
		b.WriteString(" ")
		b.WriteString(pc.String())
	}
	b.WriteString("}")
	return b.String()
}
