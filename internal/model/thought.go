// Package model defines the core thinking-trace data types.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MainSequence is the reserved identifier for a session's main line of
// thought. Branch ids may not collide with it.
const MainSequence = "main"

// ErrInvalidThought indicates a thought input failed field validation.
var ErrInvalidThought = errors.New("invalid thought")

// Thought is one recorded reasoning step. Thoughts are immutable once
// accepted; a revision is a new thought, not an edit.
type Thought struct {
	ID             string    `json:"id,omitempty"`
	Text           string    `json:"text"`
	Number         int       `json:"number"`
	DeclaredTotal  int       `json:"declared_total"`
	Continues      bool      `json:"continues"`
	RevisionOf     int       `json:"revision_of,omitempty"`
	BranchPoint    int       `json:"branch_point,omitempty"`
	BranchID       string    `json:"branch_id,omitempty"`
	NeedsExpansion bool      `json:"needs_expansion,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsRevision reports whether this thought supersedes an earlier one.
func (t *Thought) IsRevision() bool { return t.RevisionOf > 0 }

// IsBranchRoot reports whether this thought is the first record of a branch.
func (t *Thought) IsBranchRoot() bool { return t.BranchPoint > 0 }

// Sequence returns the id of the sequence this thought belongs to.
func (t *Thought) Sequence() string {
	if t.BranchID == "" {
		return MainSequence
	}
	return t.BranchID
}

// ThoughtInput is the decoded argument record for an add-thought operation.
// Wire parsing and schema validation happen upstream; Validate covers the
// semantic field constraints.
type ThoughtInput struct {
	Text           string `json:"text"`
	Number         int    `json:"number"`
	DeclaredTotal  int    `json:"declared_total"`
	Continues      bool   `json:"continues"`
	RevisionOf     int    `json:"revision_of,omitempty"`
	BranchPoint    int    `json:"branch_point,omitempty"`
	BranchID       string `json:"branch_id,omitempty"`
	ParentBranch   string `json:"parent_branch,omitempty"` // fork source for implicit branch creation; empty = main
	NeedsExpansion bool   `json:"needs_expansion,omitempty"`
}

// Validate checks field-level constraints on the input.
func (in *ThoughtInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrInvalidThought)
	}
	if in.Number <= 0 {
		return fmt.Errorf("%w: number must be positive", ErrInvalidThought)
	}
	if in.DeclaredTotal <= 0 {
		return fmt.Errorf("%w: declared_total must be positive", ErrInvalidThought)
	}
	if in.RevisionOf < 0 || in.BranchPoint < 0 {
		return fmt.Errorf("%w: references must be positive", ErrInvalidThought)
	}
	if in.BranchPoint > 0 && in.BranchID == "" {
		return fmt.Errorf("%w: branch_point requires branch_id", ErrInvalidThought)
	}
	if in.BranchID == MainSequence || in.ParentBranch == MainSequence {
		return fmt.Errorf("%w: %q is reserved for the main sequence", ErrInvalidThought, MainSequence)
	}
	return nil
}

// Thought builds the immutable record for an accepted input.
func (in *ThoughtInput) Thought(now time.Time) Thought {
	return Thought{
		Text:           in.Text,
		Number:         in.Number,
		DeclaredTotal:  in.DeclaredTotal,
		Continues:      in.Continues,
		RevisionOf:     in.RevisionOf,
		BranchPoint:    in.BranchPoint,
		BranchID:       in.BranchID,
		NeedsExpansion: in.NeedsExpansion,
		CreatedAt:      now,
	}
}

// Branch is a forked sequence departing from a specific thought in a parent
// sequence. Parent is MainSequence or another branch id.
type Branch struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	ForkPoint int       `json:"fork_point"`
	Thoughts  []Thought `json:"thoughts"`
	CreatedAt time.Time `json:"created_at"`
}

// Metadata holds session bookkeeping.
type Metadata struct {
	CreatedAt     time.Time `json:"created_at"`
	LastModified  time.Time `json:"last_modified"`
	DeclaredTotal int       `json:"declared_total"`
	Completed     bool      `json:"completed"`
}

// SessionSnapshot is a point-in-time copy of a session's state. Snapshots
// share no memory with the live session.
type SessionSnapshot struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title,omitempty"`
	Main      []Thought `json:"main"`
	Branches  []Branch  `json:"branches,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

// BranchByID returns the named branch from the snapshot, or nil.
func (s *SessionSnapshot) BranchByID(id string) *Branch {
	for i := range s.Branches {
		if s.Branches[i].ID == id {
			return &s.Branches[i]
		}
	}
	return nil
}

// SequenceThoughts returns the thoughts of the named sequence.
func (s *SessionSnapshot) SequenceThoughts(seq string) []Thought {
	if seq == MainSequence {
		return s.Main
	}
	if b := s.BranchByID(seq); b != nil {
		return b.Thoughts
	}
	return nil
}
