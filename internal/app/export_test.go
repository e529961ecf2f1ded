package app

// WaitPrefetch blocks until every background fill has returned.
func (s *Session) WaitPrefetch() {
	s.prefetch.wait()
}

// PrefetchReady reports whether a question is buffered.
func (s *Session) PrefetchReady() bool {
	return s.prefetch.ready()
}

// ClockDone returns a channel closed once the running clock has exited, or nil
// when no clock is armed.
func (s *Session) ClockDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clock == nil {
		return nil
	}
	return s.clock.stopped()
}
