// Package service exposes one operation per tool concept over the session
// registry. Callers hand it decoded argument records; wire framing, auth,
// and transport live upstream.
package service

import (
	"time"

	"thinktrace/internal/analytics"
	"thinktrace/internal/export"
	"thinktrace/internal/model"
	"thinktrace/internal/session"
)

// Service wires the session registry to the tool operations.
type Service struct {
	reg   *session.Registry
	clock func() time.Time
}

// New creates a service over the given registry.
func New(reg *session.Registry) *Service {
	return &Service{reg: reg, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Registry returns the underlying registry.
func (s *Service) Registry() *session.Registry { return s.reg }

// ThoughtAccepted summarizes a successful add-thought operation.
type ThoughtAccepted struct {
	SessionID string           `json:"session_id"`
	Number    int              `json:"number"`
	BranchID  string           `json:"branch_id,omitempty"`
	Progress  session.Progress `json:"progress"`
}

// AddThought appends a thought to the session, creating the session on first
// reference.
func (s *Service) AddThought(sessionID string, in model.ThoughtInput) (ThoughtAccepted, error) {
	sess, err := s.reg.GetOrCreate(sessionID)
	if err != nil {
		return ThoughtAccepted{}, err
	}
	t, err := sess.Append(in, s.clock())
	if err != nil {
		return ThoughtAccepted{}, err
	}
	return ThoughtAccepted{
		SessionID: sess.ID(),
		Number:    t.Number,
		BranchID:  t.BranchID,
		Progress:  sess.Progress(),
	}, nil
}

// CreateSession creates a session with a generated id.
func (s *Service) CreateSession(title string) (string, error) {
	sess, err := s.reg.Create(title)
	if err != nil {
		return "", err
	}
	return sess.ID(), nil
}

// GetSession returns a snapshot of an existing session.
func (s *Service) GetSession(sessionID string) (model.SessionSnapshot, error) {
	sess, err := s.reg.Get(sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Progress reports main-sequence progress for an existing session.
func (s *Service) Progress(sessionID string) (session.Progress, error) {
	sess, err := s.reg.Get(sessionID)
	if err != nil {
		return session.Progress{}, err
	}
	return sess.Progress(), nil
}

// AnalyzeSession computes the analytics snapshot for an existing session.
func (s *Service) AnalyzeSession(sessionID string) (analytics.Snapshot, error) {
	sess, err := s.reg.Get(sessionID)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return analytics.Analyze(sess.Snapshot(), s.clock())
}

// ExportSession builds the structural export document for an existing
// session in the named format. The embedded analytics report is stamped with
// the session's last-modified time, not the wall clock, so exporting an
// unmutated session twice yields identical documents.
func (s *Service) ExportSession(sessionID, format string) (*export.Document, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	sess, err := s.reg.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	report, err := analytics.Analyze(snap, snap.Metadata.LastModified)
	if err != nil {
		return nil, err
	}
	return export.Build(snap, report, f)
}

// MergeSessions combines the named sessions, in order, into a new session
// and registers it. Source sessions are left untouched.
func (s *Service) MergeSessions(sessionIDs []string, strategy string) (string, error) {
	strat, err := session.ParseMergeStrategy(strategy)
	if err != nil {
		return "", err
	}
	if len(sessionIDs) == 0 {
		return "", session.ErrEmptyMergeSet
	}

	snaps := make([]model.SessionSnapshot, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		sess, err := s.reg.Get(id)
		if err != nil {
			return "", err
		}
		snaps = append(snaps, sess.Snapshot())
	}

	merged, err := session.Merge(snaps, strat, s.reg.SessionLimits(), s.clock())
	if err != nil {
		return "", err
	}
	if err := s.reg.Put(merged); err != nil {
		return "", err
	}
	return merged.ID(), nil
}

// DeleteSession removes an existing session.
func (s *Service) DeleteSession(sessionID string) error {
	return s.reg.Delete(sessionID)
}

// ListSessions returns the ids of all live sessions.
func (s *Service) ListSessions() []string {
	return s.reg.ListIDs()
}
