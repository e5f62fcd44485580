package session

import (
	"errors"
	"fmt"
	"testing"

	"thinktrace/internal/model"
)

func snapshotWithMain(t *testing.T, id string, texts ...string) model.SessionSnapshot {
	t.Helper()
	s := New(id, "", Limits{}, testTime)
	for i, text := range texts {
		mustAppend(t, s, mainInput(i+1, len(texts), text))
	}
	return s.Snapshot()
}

func TestParseMergeStrategy(t *testing.T) {
	if got, err := ParseMergeStrategy(""); err != nil || got != MergeRenumber {
		t.Errorf("empty strategy: got %q, %v", got, err)
	}
	if got, err := ParseMergeStrategy("reject_on_collision"); err != nil || got != MergeRejectOnCollision {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := ParseMergeStrategy("squash"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestMergeEmptySet(t *testing.T) {
	if _, err := Merge(nil, MergeRenumber, Limits{}, testTime); !errors.Is(err, ErrEmptyMergeSet) {
		t.Errorf("expected ErrEmptyMergeSet, got %v", err)
	}
}

func TestMergeRenumbersIntoBands(t *testing.T) {
	a := snapshotWithMain(t, "aaaa", "a1", "a2", "a3")
	b := snapshotWithMain(t, "bbbb", "b1", "b2")

	merged, err := Merge([]model.SessionSnapshot{a, b}, MergeRenumber, Limits{}, testTime)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := merged.Snapshot()
	if len(snap.Main) != 5 {
		t.Fatalf("expected 5 thoughts, got %d", len(snap.Main))
	}
	for i, th := range snap.Main {
		if th.Number != i+1 {
			t.Errorf("thought %d has number %d", i, th.Number)
		}
	}
	if snap.Main[3].Text != "b1" {
		t.Errorf("expected second band to start with b1, got %q", snap.Main[3].Text)
	}
}

func TestMergeShiftsRevisionReferences(t *testing.T) {
	a := snapshotWithMain(t, "aaaa", "a1", "a2")

	bs := New("bbbb", "", Limits{}, testTime)
	mustAppend(t, bs, mainInput(1, 2, "b1"))
	in := mainInput(2, 2, "b1 revised")
	in.RevisionOf = 1
	mustAppend(t, bs, in)
	b := bs.Snapshot()

	merged, err := Merge([]model.SessionSnapshot{a, b}, MergeRenumber, Limits{}, testTime)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := merged.Snapshot()
	last := snap.Main[3]
	if last.Number != 4 || last.RevisionOf != 3 {
		t.Errorf("expected thought 4 revising 3, got number %d revising %d", last.Number, last.RevisionOf)
	}
}

func TestMergeRenamesCollidingBranches(t *testing.T) {
	mk := func(id string) model.SessionSnapshot {
		s := New(id, "", Limits{}, testTime)
		mustAppend(t, s, mainInput(1, 3, "one"))
		mustAppend(t, s, mainInput(2, 3, "two"))
		in := mainInput(1, 3, "side")
		in.BranchID = "alt"
		in.BranchPoint = 2
		mustAppend(t, s, in)
		return s.Snapshot()
	}
	a := mk("aaaaaaaa-1111")
	b := mk("bbbbbbbb-2222")

	merged, err := Merge([]model.SessionSnapshot{a, b}, MergeRenumber, Limits{}, testTime)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := merged.Snapshot()
	if len(snap.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(snap.Branches))
	}
	if snap.Branches[0].ID != "alt" || snap.Branches[0].ForkPoint != 2 {
		t.Errorf("first branch: %+v", snap.Branches[0])
	}

	renamed := snap.Branches[1]
	want := fmt.Sprintf("alt@%s", "bbbbbbbb-2222"[:8])
	if renamed.ID != want {
		t.Errorf("expected id %q, got %q", want, renamed.ID)
	}
	// B's fork point 2 lands at 4 after renumbering behind A's band
	if renamed.ForkPoint != 4 {
		t.Errorf("expected fork point 4, got %d", renamed.ForkPoint)
	}
	if len(renamed.Thoughts) != 1 || renamed.Thoughts[0].BranchID != want || renamed.Thoughts[0].BranchPoint != 4 {
		t.Errorf("branch thoughts not rewritten: %+v", renamed.Thoughts)
	}
}

func TestMergeRejectOnCollisionConflict(t *testing.T) {
	mk := func(id string) model.SessionSnapshot {
		s := New(id, "", Limits{}, testTime)
		mustAppend(t, s, mainInput(1, 2, "one"))
		in := mainInput(1, 2, "side")
		in.BranchID = "alt"
		in.BranchPoint = 1
		mustAppend(t, s, in)
		return s.Snapshot()
	}

	_, err := Merge([]model.SessionSnapshot{mk("aaaa"), mk("bbbb")}, MergeRejectOnCollision, Limits{}, testTime)
	if !errors.Is(err, ErrMergeConflict) {
		t.Errorf("expected ErrMergeConflict, got %v", err)
	}
}

func TestMergeRejectOnCollisionUnionsCompatibleBranches(t *testing.T) {
	// Branches forked from a non-main parent keep their fork point, so two
	// inputs can carry genuinely compatible branches with the same id.
	mkBranch := func(texts ...string) model.Branch {
		b := model.Branch{ID: "alt", Parent: "side", ForkPoint: 5, CreatedAt: testTime}
		for i, text := range texts {
			b.Thoughts = append(b.Thoughts, model.Thought{
				Number: i + 1, Text: text, DeclaredTotal: 2, Continues: true,
				BranchID: "alt", CreatedAt: testTime,
			})
		}
		return b
	}
	a := model.SessionSnapshot{SessionID: "aaaa", Main: []model.Thought{{Number: 1, Text: "m", DeclaredTotal: 1}}, Branches: []model.Branch{mkBranch("x1", "x2")}}
	b := model.SessionSnapshot{SessionID: "bbbb", Branches: []model.Branch{mkBranch("y1", "y2")}}

	merged, err := Merge([]model.SessionSnapshot{a, b}, MergeRejectOnCollision, Limits{}, testTime)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := merged.Snapshot()
	if len(snap.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(snap.Branches))
	}
	alt := snap.Branches[0]
	if len(alt.Thoughts) != 4 {
		t.Fatalf("expected 4 thoughts, got %d", len(alt.Thoughts))
	}
	// Appended thoughts continue the existing numbering
	for i, th := range alt.Thoughts {
		if th.Number != i+1 {
			t.Errorf("thought %d has number %d", i, th.Number)
		}
	}
	if alt.Thoughts[2].Text != "y1" {
		t.Errorf("expected 'y1' at position 2, got %q", alt.Thoughts[2].Text)
	}
}

func TestMergeCompletionFollowsLastThought(t *testing.T) {
	a := snapshotWithMain(t, "aaaa", "a1")

	bs := New("bbbb", "", Limits{}, testTime)
	in := mainInput(1, 1, "done")
	in.Continues = false
	mustAppend(t, bs, in)

	merged, err := Merge([]model.SessionSnapshot{a, bs.Snapshot()}, MergeRenumber, Limits{}, testTime)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if p := merged.Progress(); !p.Finished {
		t.Errorf("expected merged session finished, got %+v", p)
	}
}

func TestMergeLeavesSourcesUntouched(t *testing.T) {
	s := New("aaaa", "", Limits{}, testTime)
	mustAppend(t, s, mainInput(1, 1, "only"))
	before := s.Snapshot()

	if _, err := Merge([]model.SessionSnapshot{s.Snapshot(), s.Snapshot()}, MergeRenumber, Limits{}, testTime); err != nil {
		t.Fatalf("merge: %v", err)
	}

	after := s.Snapshot()
	if len(after.Main) != len(before.Main) || after.Main[0].Number != 1 {
		t.Errorf("merge mutated source session: %+v", after)
	}
}
