package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"thinktrace/internal/model"
)

// ErrUnknownStrategy indicates an unrecognized merge strategy name.
var ErrUnknownStrategy = errors.New("unknown merge strategy")

// MergeStrategy selects how branch id collisions across input sessions are
// handled.
type MergeStrategy string

const (
	// MergeRenumber renumbers main sequences into disjoint bands and
	// disambiguates colliding branch ids with a source-session suffix.
	MergeRenumber MergeStrategy = "renumber"

	// MergeRejectOnCollision fails with ErrMergeConflict when colliding
	// branch ids cannot be reconciled without renaming.
	MergeRejectOnCollision MergeStrategy = "reject_on_collision"
)

// ParseMergeStrategy resolves a strategy name; empty means the default.
func ParseMergeStrategy(name string) (MergeStrategy, error) {
	switch MergeStrategy(name) {
	case "":
		return MergeRenumber, nil
	case MergeRenumber, MergeRejectOnCollision:
		return MergeStrategy(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Merge combines the input sessions, in order, into one new session. Each
// input's main sequence is renumbered into a contiguous band following the
// previous input's, and every revision_of or main-rooted branch_point inside
// that input is rewritten to the shifted numbers. Inputs are snapshots; the
// source sessions are never touched.
func Merge(inputs []model.SessionSnapshot, strategy MergeStrategy, limits Limits, now time.Time) (*Session, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyMergeSet
	}

	merged := New(uuid.NewString(), fmt.Sprintf("merge of %d sessions", len(inputs)), limits, now)
	offset := 0

	for _, in := range inputs {
		numMap := make(map[int]int, len(in.Main))
		for i, t := range in.Main {
			numMap[t.Number] = offset + i + 1
		}

		for _, t := range in.Main {
			t.Number = numMap[t.Number]
			if t.RevisionOf > 0 {
				t.RevisionOf = numMap[t.RevisionOf]
			}
			merged.main = append(merged.main, t)
		}
		offset += len(in.Main)

		renames := branchRenames(merged, in, strategy)
		for _, b := range in.Branches {
			if err := mergeBranch(merged, in, b, numMap, renames, strategy); err != nil {
				return nil, err
			}
		}
	}

	if n := len(merged.main); n > 0 {
		last := merged.main[n-1]
		merged.meta.DeclaredTotal = last.DeclaredTotal
		merged.meta.Completed = !last.Continues
	}
	merged.meta.LastModified = now
	return merged, nil
}

// branchRenames maps colliding branch ids of one input session to their
// disambiguated names. Under reject_on_collision no renames happen; the
// collision is judged in mergeBranch instead.
func branchRenames(merged *Session, in model.SessionSnapshot, strategy MergeStrategy) map[string]string {
	renames := make(map[string]string)
	if strategy != MergeRenumber {
		return renames
	}
	for _, b := range in.Branches {
		if _, taken := merged.branches[b.ID]; taken {
			renames[b.ID] = fmt.Sprintf("%s@%s", b.ID, shortID(in.SessionID))
		}
	}
	return renames
}

func mergeBranch(merged *Session, in model.SessionSnapshot, b model.Branch, numMap map[int]int, renames map[string]string, strategy MergeStrategy) error {
	id := b.ID
	if renamed, ok := renames[id]; ok {
		id = renamed
	}
	parent := b.Parent
	if renamed, ok := renames[parent]; ok {
		parent = renamed
	}
	forkPoint := b.ForkPoint
	if parent == model.MainSequence {
		forkPoint = numMap[b.ForkPoint]
	}

	if existing, taken := merged.branches[id]; taken {
		if strategy == MergeRejectOnCollision {
			if existing.Parent != parent || existing.ForkPoint != forkPoint {
				return fmt.Errorf("%w: branch %q from session %s forks at %s/%d, existing at %s/%d",
					ErrMergeConflict, b.ID, shortID(in.SessionID),
					parent, forkPoint, existing.Parent, existing.ForkPoint)
			}
			appendBranchThoughts(existing, b.Thoughts)
			return nil
		}
		// Renumber strategy renames collisions up front; reaching here means
		// two branches inside one input share an id, which a session cannot
		// represent.
		return fmt.Errorf("%w: branch %q", ErrMergeConflict, id)
	}

	nb := &model.Branch{ID: id, Parent: parent, ForkPoint: forkPoint, CreatedAt: b.CreatedAt}
	for _, t := range b.Thoughts {
		t.BranchID = id
		if t.BranchPoint > 0 {
			t.BranchPoint = forkPoint
		}
		nb.Thoughts = append(nb.Thoughts, t)
	}
	merged.branches[id] = nb
	merged.branchOrder = append(merged.branchOrder, id)
	return nil
}

// appendBranchThoughts unions a compatible colliding branch into an existing
// one, renumbering the appended thoughts to continue the existing sequence.
func appendBranchThoughts(dst *model.Branch, thoughts []model.Thought) {
	next := lastNumber(dst.Thoughts) + 1
	shift := make(map[int]int, len(thoughts))
	for i, t := range thoughts {
		shift[t.Number] = next + i
	}
	for _, t := range thoughts {
		t.Number = shift[t.Number]
		if t.RevisionOf > 0 {
			t.RevisionOf = shift[t.RevisionOf]
		}
		t.BranchID = dst.ID
		t.BranchPoint = 0
		dst.Thoughts = append(dst.Thoughts, t)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
