package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keyworder/keyworder/internal/generation"
	"github.com/keyworder/keyworder/internal/identity"
	"github.com/keyworder/keyworder/internal/ingest"
	"github.com/keyworder/keyworder/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readyBackend reports the given principal on subscription, the state an
// embedded client sees once its host already signed in.
type readyBackend struct {
	principal *identity.Principal
}

func (b *readyBackend) SignInAnonymously(ctx context.Context) (*identity.Principal, error) {
	return b.principal, nil
}

func (b *readyBackend) SignInWithToken(ctx context.Context, token string) (*identity.Principal, error) {
	return b.principal, nil
}

func (b *readyBackend) Subscribe(fn func(*identity.Principal)) func() {
	fn(b.principal)
	return func() {}
}

// silentBackend never reports an auth state, leaving identity unresolved.
type silentBackend struct{}

func (silentBackend) SignInAnonymously(ctx context.Context) (*identity.Principal, error) {
	return nil, errors.New("unused")
}

func (silentBackend) SignInWithToken(ctx context.Context, token string) (*identity.Principal, error) {
	return nil, errors.New("unused")
}

func (silentBackend) Subscribe(fn func(*identity.Principal)) func() {
	return func() {}
}

type stubGenerator struct {
	mu     sync.Mutex
	result *generation.Result
	err    error
	block  chan struct{}
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, image *ingest.EncodedImage) (*generation.Result, error) {
	g.mu.Lock()
	g.calls++
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type spyNotifier struct {
	mu       sync.Mutex
	messages []string
	kinds    []string
}

func (n *spyNotifier) Notify(message, kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	n.kinds = append(n.kinds, kind)
}

func newTestController(gen generation.Generator, writer store.DocWriter) (*Controller, *spyNotifier) {
	backend := &readyBackend{principal: &identity.Principal{ID: "user-1", Anonymous: true}}
	provider := identity.NewProvider(backend, "")
	notifier := &spyNotifier{}
	controller := New(provider, gen, store.New(writer, "keyworder"), notifier)
	controller.Start(context.Background())
	return controller, notifier
}

func selectJPEG(t *testing.T, c *Controller, contents string) {
	t.Helper()
	err := c.SelectImage("photo.jpg", "image/jpeg", strings.NewReader(contents))
	require.NoError(t, err)
}

func TestGenerateWithoutImageIsPreconditionFailure(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "x"}}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	_, err := controller.Generate(context.Background())
	require.Error(t, err)

	state := controller.State()
	assert.Equal(t, Failed, state.Phase)
	assert.NotEmpty(t, state.Err)
	assert.Zero(t, gen.callCount(), "no network call on precondition failure")
	assert.Zero(t, writer.Len())
}

func TestGenerateWithoutIdentityIsPreconditionFailure(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "x"}}
	writer := store.NewMemoryWriter()
	provider := identity.NewProvider(silentBackend{}, "")
	controller := New(provider, gen, store.New(writer, "keyworder"), nil)
	controller.Start(context.Background())

	selectJPEG(t, controller, "image bytes")

	_, err := controller.Generate(context.Background())
	require.Error(t, err)

	state := controller.State()
	assert.Equal(t, Failed, state.Phase)
	assert.Zero(t, gen.callCount())
}

func TestGenerateSuccess(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "Sunset", Keywords: []string{"sky", "orange"}}}
	writer := store.NewMemoryWriter()
	controller, notifier := newTestController(gen, writer)

	selectJPEG(t, controller, "image bytes")
	assert.Equal(t, ReadyWithImage, controller.State().Phase)

	record, err := controller.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Sunset", record.Title)
	assert.Equal(t, []string{"sky", "orange"}, record.Keywords)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "image/jpeg", record.ImageMimeType)

	state := controller.State()
	assert.Equal(t, Succeeded, state.Phase)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Err)
	require.NotNil(t, state.Result)
	assert.Equal(t, "Sunset", state.Result.Title)
	assert.Nil(t, state.Image, "the encoded image is discarded after completion")

	assert.Equal(t, 1, writer.Len())
	assert.Contains(t, notifier.kinds, "success")
}

func TestGenerateFailureSkipsPersistence(t *testing.T) {
	gen := &stubGenerator{err: &generation.SchemaError{Reason: "no candidates returned"}}
	writer := store.NewMemoryWriter()
	controller, notifier := newTestController(gen, writer)

	selectJPEG(t, controller, "image bytes")

	_, err := controller.Generate(context.Background())
	require.Error(t, err)

	state := controller.State()
	assert.Equal(t, Failed, state.Phase)
	assert.False(t, state.Loading)
	assert.Equal(t, "generation failed, please try again", state.Err)
	assert.Nil(t, state.Result)
	assert.Zero(t, writer.Len(), "no write is attempted when generation failed")
	assert.Contains(t, notifier.kinds, "error")
}

type failingWriter struct{}

func (failingWriter) Write(ctx context.Context, path string, record *store.PersistedRecord) error {
	return errors.New("quota exceeded")
}

func TestStorageFailureStillDisplaysResult(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "Sunset", Keywords: []string{"sky"}}}
	controller, _ := newTestController(gen, failingWriter{})

	selectJPEG(t, controller, "image bytes")

	_, err := controller.Generate(context.Background())
	require.Error(t, err)

	state := controller.State()
	assert.Equal(t, Failed, state.Phase)
	assert.NotEmpty(t, state.Err)
	require.NotNil(t, state.Result, "the computed result stays visible")
	assert.Equal(t, "Sunset", state.Result.Title)
}

func TestGenerateRejectsReentrantCalls(t *testing.T) {
	gen := &stubGenerator{
		result: &generation.Result{Title: "Sunset"},
		block:  make(chan struct{}),
	}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	selectJPEG(t, controller, "image bytes")

	done := make(chan error, 1)
	go func() {
		_, err := controller.Generate(context.Background())
		done <- err
	}()

	// Wait for the first action to take the loading gate.
	for controller.State().Phase != Generating {
		time.Sleep(time.Millisecond)
	}

	_, err := controller.Generate(context.Background())
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	close(gen.block)
	require.NoError(t, <-done)

	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, 1, writer.Len())
}

func TestSequentialGenerationsAppendRecords(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "First", Keywords: []string{"a"}}}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	selectJPEG(t, controller, "image one")
	_, err := controller.Generate(context.Background())
	require.NoError(t, err)

	gen.result = &generation.Result{Title: "Second", Keywords: []string{"b"}}
	selectJPEG(t, controller, "image two")
	_, err = controller.Generate(context.Background())
	require.NoError(t, err)

	paths := writer.Paths()
	require.Len(t, paths, 2, "records are append-only with distinct keys")
	assert.NotEqual(t, paths[0], paths[1])
}

func TestInvalidSelectionClearsImage(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "x"}}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	selectJPEG(t, controller, "good image")
	require.Equal(t, ReadyWithImage, controller.State().Phase)

	err := controller.SelectImage("notes.txt", "text/plain", strings.NewReader("not an image"))
	require.Error(t, err)

	state := controller.State()
	assert.Equal(t, ReadyNoImage, state.Phase, "readiness state, with the image cleared")
	assert.NotEmpty(t, state.Err)
	assert.Nil(t, state.Image)

	_, err = controller.Generate(context.Background())
	require.Error(t, err)
	assert.Zero(t, gen.callCount())
}

func TestStaleSelectionIsDiscarded(t *testing.T) {
	gen := &stubGenerator{result: &generation.Result{Title: "x"}}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	first := controller.BeginSelection()
	second := controller.BeginSelection()

	// The newer selection's read completes first.
	require.NoError(t, controller.FinishSelection(second, "new.jpg", "image/jpeg", strings.NewReader("newer")))
	// The older read settles late and must not overwrite it.
	require.NoError(t, controller.FinishSelection(first, "old.jpg", "image/jpeg", strings.NewReader("older")))

	state := controller.State()
	require.NotNil(t, state.Image)
	assert.Equal(t, len("newer"), state.Image.SizeBytes)
}

func TestRecoveryAfterFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("boom")}
	writer := store.NewMemoryWriter()
	controller, _ := newTestController(gen, writer)

	selectJPEG(t, controller, "image bytes")
	_, err := controller.Generate(context.Background())
	require.Error(t, err)
	require.Equal(t, Failed, controller.State().Phase)

	// The session stays usable: a new image and action succeed.
	gen.err = nil
	gen.result = &generation.Result{Title: "Recovered", Keywords: []string{"ok"}}
	selectJPEG(t, controller, "another image")
	assert.Equal(t, ReadyWithImage, controller.State().Phase)

	record, err := controller.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Recovered", record.Title)
	assert.Equal(t, Succeeded, controller.State().Phase)
}
