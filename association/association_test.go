package association

import (
	"errors"
	"testing"

	"github.com/giesekow/go-dicomnet/sopclass"
	"github.com/giesekow/go-dicomnet/transfersyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	sopClassUID string
	ts          string
	store, get  bool
}

func (r testRequest) SOPClassUID() string              { return r.sopClassUID }
func (r testRequest) PayloadTransferSyntaxUID() string { return r.ts }
func (r testRequest) IsStore() bool                    { return r.store }
func (r testRequest) IsGet() bool                      { return r.get }

func newAssociation() *Association {
	return New("SCU", "SCP", DefaultImplementation())
}

func TestContextIDAllocation(t *testing.T) {
	a := newAssociation()
	seen := map[byte]bool{}
	var last byte
	for i := 0; i < 10; i++ {
		id, err := a.AddPresentationContext(sopclass.StorageClasses[i])
		require.NoError(t, err)
		assert.Equal(t, byte(1), id%2, "id %d", id)
		assert.False(t, seen[id])
		if i > 0 {
			assert.GreaterOrEqual(t, int(id), int(last)+2)
		}
		seen[id] = true
		last = id
	}
	assert.Len(t, a.PresentationContexts(), 10)
}

func TestContextIDAllocationWithID(t *testing.T) {
	a := newAssociation()
	id, err := a.AddPresentationContextWithID(sopclass.Verification, 7)
	require.NoError(t, err)
	assert.Equal(t, byte(7), id)

	id, err = a.AddPresentationContextWithID(sopclass.CTImageStorage, 6)
	require.NoError(t, err)
	assert.Equal(t, byte(9), id)

	id, err = a.AddPresentationContext(sopclass.MRImageStorage)
	require.NoError(t, err)
	assert.Equal(t, byte(1), id)
}

func TestContextIDExhausted(t *testing.T) {
	a := newAssociation()
	for i := 0; i < 128; i++ {
		_, err := a.AddPresentationContext(sopclass.Verification)
		require.NoError(t, err)
	}
	_, err := a.AddPresentationContext(sopclass.Verification)
	assert.True(t, errors.Is(err, ErrNoFreeContextID))
}

func TestAddOrGet(t *testing.T) {
	a := newAssociation()
	id1, err := a.AddOrGetPresentationContext(sopclass.Verification, transfersyntax.ImplicitVRLittleEndian)
	require.NoError(t, err)
	id2, err := a.AddOrGetPresentationContext(sopclass.Verification, transfersyntax.ExplicitVRLittleEndian)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	pc, ok := a.PresentationContext(id1)
	require.True(t, ok)
	assert.Equal(t, []string{transfersyntax.ImplicitVRLittleEndian, transfersyntax.ExplicitVRLittleEndian}, pc.TransferSyntaxUIDs)
}

func TestSetResult(t *testing.T) {
	pc := NewPresentationContext(1, sopclass.Verification,
		transfersyntax.ExplicitVRLittleEndian, transfersyntax.ImplicitVRLittleEndian)
	pc.SetResult(ResultAccept, transfersyntax.ImplicitVRLittleEndian)
	assert.Equal(t, transfersyntax.ImplicitVRLittleEndian, pc.AcceptedTransferSyntaxUID())
	assert.Len(t, pc.TransferSyntaxUIDs, 1)
	assert.True(t, pc.Accepted())

	pc = NewPresentationContext(1, sopclass.Verification,
		transfersyntax.ExplicitVRLittleEndian, transfersyntax.ImplicitVRLittleEndian)
	pc.SetResult(ResultAccept, "")
	assert.Equal(t, transfersyntax.ExplicitVRLittleEndian, pc.AcceptedTransferSyntaxUID())

	pc = NewPresentationContext(1, sopclass.Verification)
	pc.SetResult(ResultRejectAbstractSyntaxNotSupported, "")
	assert.Equal(t, "", pc.AcceptedTransferSyntaxUID())
	assert.False(t, pc.Accepted())
}

func TestFrozen(t *testing.T) {
	a := newAssociation()
	_, err := a.AddPresentationContext(sopclass.Verification)
	require.NoError(t, err)
	a.Freeze()
	_, err = a.AddPresentationContext(sopclass.CTImageStorage)
	assert.True(t, errors.Is(err, ErrFrozen))
	assert.True(t, errors.Is(a.PutPresentationContext(NewPresentationContext(9, sopclass.CTImageStorage)), ErrFrozen))

	c := a.Clone()
	assert.False(t, c.Frozen())
	_, err = c.AddPresentationContext(sopclass.CTImageStorage)
	assert.NoError(t, err)
	assert.Len(t, a.PresentationContexts(), 1)
}

func TestStoreContextPolicy(t *testing.T) {
	a := newAssociation()
	req := testRequest{sopClassUID: sopclass.CTImageStorage, ts: transfersyntax.ExplicitVRLittleEndian, store: true}
	require.NoError(t, a.AddPresentationContextFromRequest(req, nil))
	assert.Len(t, a.PresentationContexts(), 1)

	jpeg := testRequest{sopClassUID: sopclass.CTImageStorage, ts: transfersyntax.JPEGBaseline8Bit, store: true}
	require.NoError(t, a.AddPresentationContextFromRequest(jpeg, nil))
	pcs := a.PresentationContexts()
	require.Len(t, pcs, 2)
	assert.NotEqual(t, pcs[0].ID, pcs[1].ID)
	assert.Equal(t, []string{transfersyntax.JPEGBaseline8Bit}, pcs[1].TransferSyntaxUIDs)

	require.NoError(t, a.AddPresentationContextFromRequest(jpeg, nil))
	assert.Len(t, a.PresentationContexts(), 2)
}

func TestGetContextPolicy(t *testing.T) {
	a := newAssociation()
	req := testRequest{sopClassUID: sopclass.PatientRootQueryRetrieveInformationModelGet, get: true}
	require.NoError(t, a.AddPresentationContextFromRequest(req, nil))
	assert.Len(t, a.PresentationContexts(), len(sopclass.StorageClasses)+1)
}

func TestGenericContextPolicy(t *testing.T) {
	a := newAssociation()
	req := testRequest{sopClassUID: sopclass.Verification}
	require.NoError(t, a.AddPresentationContextFromRequest(req, []string{transfersyntax.ImplicitVRLittleEndian}))
	pcs := a.PresentationContexts()
	require.Len(t, pcs, 1)
	assert.Equal(t, []string{transfersyntax.ImplicitVRLittleEndian}, pcs[0].TransferSyntaxUIDs)

	assert.Error(t, a.AddPresentationContextFromRequest(testRequest{}, nil))
}

func TestAcceptedContextPrefersPayloadSyntax(t *testing.T) {
	a := newAssociation()
	plain, err := a.AddPresentationContext(sopclass.CTImageStorage, transfersyntax.ExplicitVRLittleEndian)
	require.NoError(t, err)
	jpeg, err := a.AddPresentationContext(sopclass.CTImageStorage, transfersyntax.JPEGBaseline8Bit)
	require.NoError(t, err)
	for _, pc := range a.PresentationContexts() {
		pc.SetResult(ResultAccept, "")
	}

	pc := a.GetAcceptedPresentationContextFromRequest(testRequest{sopClassUID: sopclass.CTImageStorage, ts: transfersyntax.JPEGBaseline8Bit, store: true})
	require.NotNil(t, pc)
	assert.Equal(t, jpeg, pc.ID)

	pc = a.GetAcceptedPresentationContextFromRequest(testRequest{sopClassUID: sopclass.CTImageStorage, ts: transfersyntax.ExplicitVRLittleEndian, store: true})
	require.NotNil(t, pc)
	assert.Equal(t, plain, pc.ID)

	pc = a.GetAcceptedPresentationContextFromRequest(testRequest{sopClassUID: sopclass.CTImageStorage, ts: transfersyntax.RLELossless, store: true})
	require.NotNil(t, pc)
	assert.Equal(t, plain, pc.ID)

	assert.Nil(t, a.GetAcceptedPresentationContextFromRequest(testRequest{sopClassUID: sopclass.MRImageStorage}))
}

func TestAcceptedContextSkipsRejected(t *testing.T) {
	a := newAssociation()
	id, err := a.AddPresentationContext(sopclass.Verification, transfersyntax.ImplicitVRLittleEndian)
	require.NoError(t, err)
	pc, _ := a.PresentationContext(id)
	pc.SetResult(ResultRejectAbstractSyntaxNotSupported, "")
	assert.Nil(t, a.GetAcceptedPresentationContextFromRequest(testRequest{sopClassUID: sopclass.Verification}))
}

func TestImplementationDefaults(t *testing.T) {
	impl := Implementation{Version: "X"}.WithDefaults()
	assert.Equal(t, DefaultImplementationClassUID, impl.ClassUID)
	assert.Equal(t, "X", impl.Version)
	assert.Equal(t, DefaultMaxPduLength, impl.MaxPduLength)

	a := New("A", "B", Implementation{MaxPduLength: 1 << 20})
	assert.Equal(t, uint32(1<<20), a.MaxPduLength)
	assert.Equal(t, sopclass.ApplicationContextName, a.ApplicationContextName)
}

func TestValidateAETitle(t *testing.T) {
	for _, title := range []string{"SCU", "ANY-SCP", "SIXTEEN_CHARS_AE"} {
		assert.NoError(t, ValidateAETitle(title), title)
	}
	for _, title := range []string{"", "    ", "SEVENTEEN_CHARS_A", "A\\B", "A\nB"} {
		assert.ErrorIs(t, ValidateAETitle(title), ErrInvalidAETitle, title)
	}
}
