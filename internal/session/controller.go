package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/keyworder/keyworder/internal/generation"
	"github.com/keyworder/keyworder/internal/identity"
	"github.com/keyworder/keyworder/internal/ingest"
	"github.com/keyworder/keyworder/internal/store"
)

// Phase is the user-visible stage of the session.
type Phase int

const (
	Idle Phase = iota
	AwaitingIdentity
	ReadyNoImage
	ReadyWithImage
	Generating
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingIdentity:
		return "awaiting-identity"
	case ReadyNoImage:
		return "ready-no-image"
	case ReadyWithImage:
		return "ready-with-image"
	case Generating:
		return "generating"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the single source of truth driving the UI.
type State struct {
	Phase         Phase
	Identity      *identity.Identity
	IdentityReady bool
	Image         *ingest.EncodedImage
	Loading       bool
	Err           string
	Result        *generation.Result
}

// Notifier receives presentation feedback (copy confirmations, toasts). It is
// a collaborator, not part of the orchestration logic.
type Notifier interface {
	Notify(message, kind string)
}

// ErrGenerationInFlight is returned when a generate action arrives while one
// is already running. Loading is a hard gate; the call is rejected without
// touching session state.
var ErrGenerationInFlight = errors.New("a generation action is already in flight")

// Controller sequences identity, ingestion, generation and persistence per
// user action. Collaborators are injected so tests can substitute doubles.
type Controller struct {
	provider  *identity.Provider
	generator generation.Generator
	store     *store.Store
	notifier  Notifier

	stager ingest.Stager

	mu    sync.Mutex
	state State
}

func New(provider *identity.Provider, generator generation.Generator, st *store.Store, notifier Notifier) *Controller {
	return &Controller{
		provider:  provider,
		generator: generator,
		store:     st,
		notifier:  notifier,
		state:     State{Phase: Idle},
	}
}

// Start begins identity bootstrap. The session waits in AwaitingIdentity
// until the provider reports a principal or a terminal sign-in failure.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.state.Phase = AwaitingIdentity
	c.mu.Unlock()

	c.provider.OnChange(func(st identity.State) {
		c.onIdentityState(st)
	})
	c.provider.Start(ctx)
}

// Close releases the identity subscription at session end.
func (c *Controller) Close() {
	c.provider.Close()
}

func (c *Controller) onIdentityState(st identity.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st.Err != nil {
		c.state.Phase = Failed
		c.state.Err = "sign-in failed, generation is unavailable"
		return
	}

	if !st.Ready {
		return
	}

	c.state.Identity = st.Identity
	c.state.IdentityReady = true

	// Identity arriving mid-action must not clobber the action's phase.
	if c.state.Phase == Idle || c.state.Phase == AwaitingIdentity {
		c.state.Phase = c.readinessLocked()
	}
}

// readinessLocked is the resting phase implied by identity and image state.
func (c *Controller) readinessLocked() Phase {
	if !c.state.IdentityReady {
		return AwaitingIdentity
	}
	if c.state.Image != nil {
		return ReadyWithImage
	}
	return ReadyNoImage
}

// BeginSelection marks a new image selection and returns its token. Reads
// still pending for earlier tokens become stale: last selection wins.
func (c *Controller) BeginSelection() uint64 {
	return c.stager.Begin()
}

// FinishSelection validates and stages the file read for the given selection.
// Stale completions are discarded without touching session state.
func (c *Controller) FinishSelection(token uint64, filename, mimeType string, r io.Reader) error {
	img, err := ingest.Ingest(filename, mimeType, r)
	if !c.stager.Complete(token, img, err) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state.Image = nil
		c.state.Err = err.Error()
		c.state.Phase = c.readinessLocked()
		slog.Warn("Image rejected", "filename", filename, "err", err)
		return err
	}

	c.state.Image = img
	c.state.Err = ""
	c.state.Phase = c.readinessLocked()
	slog.Info("Image staged", "filename", filename, "mime_type", img.MimeType, "size_bytes", img.SizeBytes)
	return nil
}

// SelectImage stages a file synchronously.
func (c *Controller) SelectImage(filename, mimeType string, r io.Reader) error {
	return c.FinishSelection(c.stager.Begin(), filename, mimeType, r)
}

// Generate runs one generate action: precondition checks, the generation
// call, then the persistence write. The write is only attempted after
// generation succeeded, and the result is published before the write so a
// storage failure still leaves it visible.
func (c *Controller) Generate(ctx context.Context) (*store.PersistedRecord, error) {
	c.mu.Lock()

	if c.state.Loading {
		c.mu.Unlock()
		return nil, ErrGenerationInFlight
	}

	if !c.state.IdentityReady && c.provider != nil {
		// The provider may have settled between its notification and this
		// action; consult it directly rather than miss a ready identity.
		if snap := c.provider.Snapshot(); snap.Ready {
			c.state.Identity = snap.Identity
			c.state.IdentityReady = true
		}
	}

	img := c.stager.Image()
	if precondition := c.checkPreconditionsLocked(img); precondition != "" {
		c.state.Phase = Failed
		c.state.Err = precondition
		c.mu.Unlock()
		c.notify(precondition, "error")
		return nil, errors.New(precondition)
	}

	owner := c.state.Identity
	c.state.Phase = Generating
	c.state.Loading = true
	c.state.Err = ""
	c.state.Result = nil
	c.mu.Unlock()

	result, err := c.generator.Generate(ctx, img)
	if err != nil {
		slog.Error("Generation failed", "err", err)
		c.fail("generation failed, please try again")
		return nil, err
	}

	c.mu.Lock()
	c.state.Result = result
	c.mu.Unlock()

	record, err := c.store.Persist(ctx, owner, img, result)
	if err != nil {
		slog.Error("Persistence failed", "err", err)
		c.fail("generated result could not be saved")
		return nil, err
	}

	c.stager.Clear()
	c.mu.Lock()
	c.state.Phase = Succeeded
	c.state.Loading = false
	c.state.Image = nil
	c.mu.Unlock()

	c.notify("title and keywords ready", "success")
	return record, nil
}

func (c *Controller) checkPreconditionsLocked(img *ingest.EncodedImage) string {
	if img == nil {
		return "select an image before generating"
	}
	if !c.state.IdentityReady {
		return "waiting for sign-in to complete"
	}
	if c.store == nil {
		return "storage is not available"
	}
	return ""
}

func (c *Controller) fail(message string) {
	c.mu.Lock()
	c.state.Phase = Failed
	c.state.Loading = false
	c.state.Err = message
	c.mu.Unlock()

	c.notify(message, "error")
}

func (c *Controller) notify(message, kind string) {
	if c.notifier != nil {
		c.notifier.Notify(message, kind)
	}
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Describe renders a short human-readable summary of the current state.
func (c *Controller) Describe() string {
	s := c.State()
	if s.Err != "" {
		return fmt.Sprintf("%s: %s", s.Phase, s.Err)
	}
	return s.Phase.String()
}
