package session

import (
	"errors"
	"testing"

	"thinktrace/internal/model"
)

func TestRevisionChain(t *testing.T) {
	s := newTestSession(t)

	mustAppend(t, s, mainInput(1, 6, "draft"))
	mustAppend(t, s, mainInput(2, 6, "other"))

	in := mainInput(3, 6, "draft v2")
	in.RevisionOf = 1
	mustAppend(t, s, in)

	in = mainInput(5, 6, "draft v3")
	in.RevisionOf = 3
	mustAppend(t, s, in)

	chain, err := s.RevisionChain(model.MainSequence, 1)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 2 || chain[0] != 3 || chain[1] != 5 {
		t.Errorf("expected [3 5], got %v", chain)
	}

	chain, err = s.RevisionChain(model.MainSequence, 2)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("expected empty chain, got %v", chain)
	}

	if _, err := s.RevisionChain(model.MainSequence, 99); !errors.Is(err, ErrThoughtNotFound) {
		t.Errorf("expected ErrThoughtNotFound, got %v", err)
	}
	if _, err := s.RevisionChain("ghost", 1); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("expected ErrBranchNotFound, got %v", err)
	}
}

func TestEffectiveContent(t *testing.T) {
	s := newTestSession(t)

	mustAppend(t, s, mainInput(1, 4, "draft"))
	in := mainInput(2, 4, "final")
	in.RevisionOf = 1
	mustAppend(t, s, in)

	got, err := s.EffectiveContent(model.MainSequence, 1)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if got != "final" {
		t.Errorf("expected 'final', got %q", got)
	}

	// Unrevised thought resolves to itself
	got, err = s.EffectiveContent(model.MainSequence, 2)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if got != "final" {
		t.Errorf("expected 'final', got %q", got)
	}

	if _, err := s.EffectiveContent(model.MainSequence, 7); !errors.Is(err, ErrThoughtNotFound) {
		t.Errorf("expected ErrThoughtNotFound, got %v", err)
	}
}

func TestRevisionChainDiamond(t *testing.T) {
	// Two thoughts revise the same ancestor; the chain holds both, newest last.
	thoughts := []model.Thought{
		{Number: 1, Text: "a"},
		{Number: 2, Text: "b", RevisionOf: 1},
		{Number: 3, Text: "c", RevisionOf: 1},
		{Number: 4, Text: "d", RevisionOf: 3},
	}

	chain := RevisionChain(thoughts, 1)
	if len(chain) != 3 || chain[0] != 2 || chain[1] != 3 || chain[2] != 4 {
		t.Errorf("expected [2 3 4], got %v", chain)
	}

	text, err := EffectiveText(thoughts, 1)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if text != "d" {
		t.Errorf("expected 'd', got %q", text)
	}
}
