// Package session implements the thinking-session state engine: per-session
// thought sequences with revisions and branches, a process-wide registry,
// and session merging.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"thinktrace/internal/model"
)

var (
	// ErrSessionNotFound indicates the session id is not in the registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrThoughtNotFound indicates the thought number is absent from the sequence.
	ErrThoughtNotFound = errors.New("thought not found")

	// ErrBranchNotFound indicates the branch id does not exist in the session.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrInvalidNumbering indicates a thought number does not exceed every
	// existing number in its target sequence.
	ErrInvalidNumbering = errors.New("invalid thought numbering")

	// ErrDanglingReference indicates revision_of or branch_point names a
	// thought that does not exist.
	ErrDanglingReference = errors.New("dangling thought reference")

	// ErrSequenceCycle indicates accepting a branch would close a cycle in
	// branch ancestry.
	ErrSequenceCycle = errors.New("branch ancestry cycle")

	// ErrDuplicateBranch indicates the branch id already exists.
	ErrDuplicateBranch = errors.New("duplicate branch")

	// ErrInvalidBranch indicates a malformed branch: a reserved name, or a
	// first record whose fork point does not match the branch.
	ErrInvalidBranch = errors.New("invalid branch")

	// ErrLimitExceeded indicates a configured per-session limit was hit.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrEmptyMergeSet indicates merge was given zero sessions.
	ErrEmptyMergeSet = errors.New("empty merge set")

	// ErrMergeConflict indicates colliding branches could not be reconciled
	// under the requested merge strategy.
	ErrMergeConflict = errors.New("merge conflict")
)

// Limits bound per-session growth. Zero means unlimited.
type Limits struct {
	MaxThoughts int
	MaxBranches int
}

// Session is one thinking trace: a main sequence plus named branches.
// All methods are safe for concurrent use; mutating operations serialize on
// the session's exclusive lock, reads share it.
type Session struct {
	mu sync.RWMutex

	id          string
	title       string
	main        []model.Thought
	branches    map[string]*model.Branch
	branchOrder []string
	meta        model.Metadata
	limits      Limits
}

// New creates an empty session.
func New(id, title string, limits Limits, now time.Time) *Session {
	return &Session{
		id:       id,
		title:    title,
		branches: make(map[string]*model.Branch),
		meta:     model.Metadata{CreatedAt: now, LastModified: now},
		limits:   limits,
	}
}

// Restore rebuilds a session from a snapshot, such as one loaded from the
// archive.
func Restore(snap model.SessionSnapshot, limits Limits) *Session {
	s := New(snap.SessionID, snap.Title, limits, snap.Metadata.CreatedAt)
	s.main = append(s.main, snap.Main...)
	for _, b := range snap.Branches {
		nb := b
		nb.Thoughts = append([]model.Thought(nil), b.Thoughts...)
		s.branches[b.ID] = &nb
		s.branchOrder = append(s.branchOrder, b.ID)
	}
	s.meta = snap.Metadata
	return s
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string { return s.id }

// Append validates and accepts one thought. Either the record is fully
// appended (sequence, branch map, and metadata updated) or the session is
// left untouched.
func (s *Session) Append(in model.ThoughtInput, now time.Time) (model.Thought, error) {
	if err := in.Validate(); err != nil {
		return model.Thought{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits.MaxThoughts > 0 && s.thoughtCountLocked() >= s.limits.MaxThoughts {
		return model.Thought{}, fmt.Errorf("%w: max %d thoughts per session", ErrLimitExceeded, s.limits.MaxThoughts)
	}

	var createBranch *model.Branch
	target := s.main
	if in.BranchID != "" {
		b, ok := s.branches[in.BranchID]
		switch {
		case ok:
			// Fork point appears on the first record only; if repeated it
			// must match the branch.
			if in.BranchPoint != 0 && in.BranchPoint != b.ForkPoint {
				return model.Thought{}, fmt.Errorf("%w: branch %q forks at %d, not %d",
					ErrInvalidBranch, in.BranchID, b.ForkPoint, in.BranchPoint)
			}
			if len(b.Thoughts) == 0 && in.BranchPoint == 0 {
				return model.Thought{}, fmt.Errorf("%w: first record of branch %q must carry branch_point %d",
					ErrInvalidBranch, in.BranchID, b.ForkPoint)
			}
			target = b.Thoughts
		case in.BranchPoint == 0:
			return model.Thought{}, fmt.Errorf("%w: branch %q (set branch_point to create it)", ErrBranchNotFound, in.BranchID)
		default:
			parent := in.ParentBranch
			if parent == "" {
				parent = model.MainSequence
			}
			nb, err := s.newBranchLocked(in.BranchID, parent, in.BranchPoint, now)
			if err != nil {
				return model.Thought{}, err
			}
			createBranch = nb
			target = nil
		}
	}

	if last := lastNumber(target); in.Number <= last {
		return model.Thought{}, fmt.Errorf("%w: %d does not exceed %d in sequence %q",
			ErrInvalidNumbering, in.Number, last, sequenceName(in.BranchID))
	}
	if in.RevisionOf > 0 {
		if in.RevisionOf >= in.Number {
			return model.Thought{}, fmt.Errorf("%w: revision_of %d must precede %d",
				ErrInvalidNumbering, in.RevisionOf, in.Number)
		}
		if !hasNumber(target, in.RevisionOf) {
			return model.Thought{}, fmt.Errorf("%w: revision_of %d in sequence %q",
				ErrDanglingReference, in.RevisionOf, sequenceName(in.BranchID))
		}
	}

	// Validation complete; mutate.
	t := in.Thought(now)
	if createBranch != nil {
		s.branches[createBranch.ID] = createBranch
		s.branchOrder = append(s.branchOrder, createBranch.ID)
	}
	if in.BranchID == "" {
		s.main = append(s.main, t)
		if !in.Continues {
			s.meta.Completed = true
		}
	} else {
		b := s.branches[in.BranchID]
		b.Thoughts = append(b.Thoughts, t)
	}
	s.meta.DeclaredTotal = in.DeclaredTotal
	s.meta.LastModified = now

	return t, nil
}

// CreateBranch registers an empty branch forked from the given thought in
// the parent sequence. Its first appended record must carry a matching
// branch_point.
func (s *Session) CreateBranch(id, parent string, forkPoint int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.newBranchLocked(id, parent, forkPoint, now)
	if err != nil {
		return err
	}
	s.branches[b.ID] = b
	s.branchOrder = append(s.branchOrder, b.ID)
	s.meta.LastModified = now
	return nil
}

// newBranchLocked validates a prospective branch without registering it.
func (s *Session) newBranchLocked(id, parent string, forkPoint int, now time.Time) (*model.Branch, error) {
	if id == "" || id == model.MainSequence {
		return nil, fmt.Errorf("%w: name %q is reserved", ErrInvalidBranch, id)
	}
	if _, exists := s.branches[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBranch, id)
	}
	if s.limits.MaxBranches > 0 && len(s.branches) >= s.limits.MaxBranches {
		return nil, fmt.Errorf("%w: max %d branches per session", ErrLimitExceeded, s.limits.MaxBranches)
	}
	if err := s.checkAncestryLocked(id, parent); err != nil {
		return nil, err
	}

	parentSeq := s.main
	if parent != model.MainSequence {
		pb, ok := s.branches[parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent branch %q", ErrBranchNotFound, parent)
		}
		parentSeq = pb.Thoughts
	}
	if !hasNumber(parentSeq, forkPoint) {
		return nil, fmt.Errorf("%w: fork point %d in sequence %q", ErrDanglingReference, forkPoint, parent)
	}

	return &model.Branch{ID: id, Parent: parent, ForkPoint: forkPoint, CreatedAt: now}, nil
}

// checkAncestryLocked walks the parent chain to the main sequence, rejecting
// any path that reaches the new branch or revisits a node.
func (s *Session) checkAncestryLocked(id, parent string) error {
	seen := map[string]bool{id: true}
	for cur := parent; cur != model.MainSequence; {
		if seen[cur] {
			return fmt.Errorf("%w: branch %q via %q", ErrSequenceCycle, id, cur)
		}
		seen[cur] = true
		b, ok := s.branches[cur]
		if !ok {
			return fmt.Errorf("%w: parent branch %q", ErrBranchNotFound, cur)
		}
		cur = b.Parent
	}
	return nil
}

// Get returns the thought with the given number from the named sequence.
func (s *Session) Get(seq string, number int) (model.Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thoughts, err := s.sequenceLocked(seq)
	if err != nil {
		return model.Thought{}, err
	}
	for _, t := range thoughts {
		if t.Number == number {
			return t, nil
		}
	}
	return model.Thought{}, fmt.Errorf("%w: %d in sequence %q", ErrThoughtNotFound, number, seq)
}

// ListBranches returns the session's branches (without thoughts) in creation
// order.
func (s *Session) ListBranches() []model.Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Branch, 0, len(s.branchOrder))
	for _, id := range s.branchOrder {
		b := s.branches[id]
		out = append(out, model.Branch{ID: b.ID, Parent: b.Parent, ForkPoint: b.ForkPoint, CreatedAt: b.CreatedAt})
	}
	return out
}

// Snapshot returns a deep copy of the session's state.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		SessionID: s.id,
		Title:     s.title,
		Main:      append([]model.Thought(nil), s.main...),
		Metadata:  s.meta,
	}
	for _, id := range s.branchOrder {
		b := s.branches[id]
		snap.Branches = append(snap.Branches, model.Branch{
			ID:        b.ID,
			Parent:    b.Parent,
			ForkPoint: b.ForkPoint,
			Thoughts:  append([]model.Thought(nil), b.Thoughts...),
			CreatedAt: b.CreatedAt,
		})
	}
	return snap
}

// LastModified returns the session's last-modified time.
func (s *Session) LastModified() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.LastModified
}

func (s *Session) sequenceLocked(seq string) ([]model.Thought, error) {
	if seq == model.MainSequence || seq == "" {
		return s.main, nil
	}
	b, ok := s.branches[seq]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBranchNotFound, seq)
	}
	return b.Thoughts, nil
}

func (s *Session) thoughtCountLocked() int {
	n := len(s.main)
	for _, b := range s.branches {
		n += len(b.Thoughts)
	}
	return n
}

func lastNumber(thoughts []model.Thought) int {
	if len(thoughts) == 0 {
		return 0
	}
	return thoughts[len(thoughts)-1].Number
}

func hasNumber(thoughts []model.Thought, number int) bool {
	for _, t := range thoughts {
		if t.Number == number {
			return true
		}
	}
	return false
}

func sequenceName(branchID string) string {
	if branchID == "" {
		return model.MainSequence
	}
	return branchID
}
