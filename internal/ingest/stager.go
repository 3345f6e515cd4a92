package ingest

import "sync"

// Stager holds the image staged for the next generate action with
// last-selection-wins semantics: a read that finishes after a newer selection
// began is discarded instead of overwriting the newer one.
type Stager struct {
	mu    sync.Mutex
	seq   uint64
	image *EncodedImage
}

// Begin marks a new selection and returns its token. Any read still pending
// for an earlier token becomes stale.
func (s *Stager) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Complete applies the outcome of the read started with token. It reports
// whether the outcome was applied. A validation failure clears the staged
// image, leaving no partial state.
func (s *Stager) Complete(token uint64, img *EncodedImage, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.seq {
		return false
	}

	if err != nil {
		s.image = nil
		return true
	}

	s.image = img
	return true
}

// Image returns the currently staged image, or nil.
func (s *Stager) Image() *EncodedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Clear discards the staged image, invalidating pending reads.
func (s *Stager) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.image = nil
}
