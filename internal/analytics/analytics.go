// Package analytics computes immutable statistics snapshots over thinking
// sessions. Analysis never mutates session state.
package analytics

import (
	"errors"
	"fmt"
	"time"

	"thinktrace/internal/model"
)

// ErrEmptySession indicates analysis was requested for a session with no
// thoughts.
var ErrEmptySession = errors.New("empty session")

// Thinking styles classified from revision and branching behavior.
const (
	StyleLinear      = "linear"
	StyleIterative   = "iterative"
	StyleExploratory = "exploratory"
	StyleMixed       = "mixed"
)

// Snapshot aggregates statistics over a session's main sequence and all of
// its branches.
type Snapshot struct {
	SessionID      string    `json:"session_id"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
	TotalThoughts  int       `json:"total_thoughts"`
	RevisionCount  int       `json:"revision_count"`
	RevisionRatio  float64   `json:"revision_ratio"`
	BranchCount    int       `json:"branch_count"`
	MaxBranchDepth int       `json:"max_branch_depth"`
	AvgTextLength  float64   `json:"avg_text_length"`
	// Efficiency is the highest main-sequence number over the latest declared
	// total. Above 1.0 means the session overran its own estimate; reported,
	// not judged.
	Efficiency    float64 `json:"efficiency"`
	ThinkingStyle string  `json:"thinking_style"`
}

// Analyze builds a statistics snapshot for the session.
func Analyze(snap model.SessionSnapshot, now time.Time) (Snapshot, error) {
	total := len(snap.Main)
	for _, b := range snap.Branches {
		total += len(b.Thoughts)
	}
	if total == 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrEmptySession, snap.SessionID)
	}

	revisions := 0
	textLen := 0
	for _, t := range snap.Main {
		if t.IsRevision() {
			revisions++
		}
		textLen += len(t.Text)
	}
	for _, b := range snap.Branches {
		for _, t := range b.Thoughts {
			if t.IsRevision() {
				revisions++
			}
			textLen += len(t.Text)
		}
	}

	out := Snapshot{
		SessionID:      snap.SessionID,
		AnalyzedAt:     now,
		TotalThoughts:  total,
		RevisionCount:  revisions,
		RevisionRatio:  float64(revisions) / float64(total),
		BranchCount:    len(snap.Branches),
		MaxBranchDepth: maxBranchDepth(snap.Branches),
		AvgTextLength:  float64(textLen) / float64(total),
	}
	if n := len(snap.Main); n > 0 && snap.Metadata.DeclaredTotal > 0 {
		out.Efficiency = float64(snap.Main[n-1].Number) / float64(snap.Metadata.DeclaredTotal)
	}
	out.ThinkingStyle = classifyStyle(total, revisions, len(snap.Branches))
	return out, nil
}

// maxBranchDepth returns the longest ancestry chain over all branches; a
// branch forked directly from the main sequence has depth 1.
func maxBranchDepth(branches []model.Branch) int {
	parents := make(map[string]string, len(branches))
	for _, b := range branches {
		parents[b.ID] = b.Parent
	}

	max := 0
	for _, b := range branches {
		depth := 0
		for cur := b.ID; cur != model.MainSequence; {
			depth++
			next, ok := parents[cur]
			if !ok || depth > len(branches) {
				break
			}
			cur = next
		}
		if depth > max {
			max = depth
		}
	}
	return max
}

// classifyStyle buckets a session by how it revised and branched: heavy
// revision reads as iterative, heavy branching as exploratory.
func classifyStyle(total, revisions, branches int) string {
	switch {
	case revisions == 0 && branches == 0:
		return StyleLinear
	case revisions > total/3:
		return StyleIterative
	case branches > 0 && branches*4 > total:
		return StyleExploratory
	default:
		return StyleMixed
	}
}
