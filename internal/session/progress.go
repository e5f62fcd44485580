package session

// Progress reports completion of a session's main sequence. DeclaredTotal is
// the most recently declared estimate, not a maximum: the thinker may revise
// its own plan up or down between thoughts.
type Progress struct {
	Current       int  `json:"current"`
	DeclaredTotal int  `json:"declared_total"`
	Finished      bool `json:"finished"`
}

// Progress returns the highest main-sequence number seen and the latest
// declared total. Finished is set once a non-continuing thought is accepted
// on the main sequence, regardless of whether the estimate was met.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Progress{
		Current:       lastNumber(s.main),
		DeclaredTotal: s.meta.DeclaredTotal,
		Finished:      s.meta.Completed,
	}
}
