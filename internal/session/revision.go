package session

import (
	"fmt"
	"sort"

	"thinktrace/internal/model"
)

// RevisionChain returns the numbers of the thoughts that transitively revise
// the given thought in a sequence, newest last. A thought can only revise a
// strictly lower number, so the chain always terminates.
//
// This is a pure projection over the stored thoughts; nothing is cached.
func RevisionChain(thoughts []model.Thought, number int) []int {
	revisers := make(map[int][]int)
	for _, t := range thoughts {
		if t.RevisionOf > 0 {
			revisers[t.RevisionOf] = append(revisers[t.RevisionOf], t.Number)
		}
	}

	var chain []int
	frontier := []int{number}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, n := range revisers[next] {
			chain = append(chain, n)
			frontier = append(frontier, n)
		}
	}
	sort.Ints(chain)
	return chain
}

// EffectiveText returns the current understanding of a thought: the text of
// the newest record in its revision chain, or its own text if unrevised.
func EffectiveText(thoughts []model.Thought, number int) (string, error) {
	if !hasNumber(thoughts, number) {
		return "", fmt.Errorf("%w: %d", ErrThoughtNotFound, number)
	}
	chain := RevisionChain(thoughts, number)
	latest := number
	if len(chain) > 0 {
		latest = chain[len(chain)-1]
	}
	for _, t := range thoughts {
		if t.Number == latest {
			return t.Text, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrThoughtNotFound, latest)
}

// RevisionChain resolves the chain for a thought in the named sequence of
// this session.
func (s *Session) RevisionChain(seq string, number int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thoughts, err := s.sequenceLocked(seq)
	if err != nil {
		return nil, err
	}
	if !hasNumber(thoughts, number) {
		return nil, fmt.Errorf("%w: %d in sequence %q", ErrThoughtNotFound, number, seq)
	}
	return RevisionChain(thoughts, number), nil
}

// EffectiveContent resolves the effective text for a thought in the named
// sequence of this session.
func (s *Session) EffectiveContent(seq string, number int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thoughts, err := s.sequenceLocked(seq)
	if err != nil {
		return "", err
	}
	return EffectiveText(thoughts, number)
}
