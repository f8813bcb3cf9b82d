package store

import (
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chaterr"
)

// BeginLoad marks one more network call in flight and returns the epoch to
// hand to EndLoad when the call finishes.
func (s *Session) BeginLoad() uint64 {
	s.mu.Lock()
	s.loading++
	epoch := s.loadEpoch
	s.mu.Unlock()

	s.bus.Emit(bus.KindLoading, true)
	return epoch
}

// EndLoad marks one in-flight network call as finished. Calls begun before
// the last Reset were already dropped from the count and are ignored.
func (s *Session) EndLoad(epoch uint64) {
	s.mu.Lock()
	if epoch == s.loadEpoch && s.loading > 0 {
		s.loading--
	}
	loading := s.loading > 0
	s.mu.Unlock()

	s.bus.Emit(bus.KindLoading, loading)
}

// Loading reports whether any network call is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// SetError records the error the UI should display.
func (s *Session) SetError(err *chaterr.Error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.bus.Emit(bus.KindError, err)
}

// Error returns the visible error, if any.
func (s *Session) Error() *chaterr.Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClearError dismisses the visible error.
func (s *Session) ClearError() {
	s.SetError(nil)
}
