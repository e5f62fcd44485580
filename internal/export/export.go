// Package export builds structural documents from thinking sessions.
// Serialization to a concrete byte encoding is the caller's concern; this
// layer only assembles the document tree.
package export

import (
	"errors"
	"fmt"
	"strings"

	"thinktrace/internal/analytics"
	"thinktrace/internal/model"
	"thinktrace/internal/session"
)

// ErrUnsupportedFormat indicates an unrecognized export format name.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format names a supported export shape.
type Format string

const (
	// FormatStructured is the machine-readable tree.
	FormatStructured Format = "structured"

	// FormatNarrative is the human-readable linearization: the main sequence
	// with branch call-outs at their fork points.
	FormatNarrative Format = "narrative"
)

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatStructured, FormatNarrative:
		return Format(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ResolvedThought is a thought with its revision chain resolved against its
// owning sequence.
type ResolvedThought struct {
	model.Thought
	RevisionChain []int  `json:"revision_chain,omitempty"`
	EffectiveText string `json:"effective_text"`
}

// BranchSection is one branch in a document, in number order, with its fork
// point annotated.
type BranchSection struct {
	ID        string            `json:"id"`
	Parent    string            `json:"parent"`
	ForkPoint int               `json:"fork_point"`
	Thoughts  []ResolvedThought `json:"thoughts"`
}

// Document is the structural export of a session. Building it twice from the
// same unmutated session yields identical documents.
type Document struct {
	SessionID string             `json:"session_id"`
	Title     string             `json:"title,omitempty"`
	Format    Format             `json:"format"`
	Metadata  model.Metadata     `json:"metadata"`
	Main      []ResolvedThought  `json:"main"`
	Branches  []BranchSection    `json:"branches,omitempty"`
	Analytics analytics.Snapshot `json:"analytics"`
}

// Build assembles the export document for a session snapshot.
func Build(snap model.SessionSnapshot, report analytics.Snapshot, format Format) (*Document, error) {
	if format != FormatStructured && format != FormatNarrative {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	doc := &Document{
		SessionID: snap.SessionID,
		Title:     snap.Title,
		Format:    format,
		Metadata:  snap.Metadata,
		Main:      resolveSequence(snap.Main),
		Analytics: report,
	}
	for _, b := range snap.Branches {
		doc.Branches = append(doc.Branches, BranchSection{
			ID:        b.ID,
			Parent:    b.Parent,
			ForkPoint: b.ForkPoint,
			Thoughts:  resolveSequence(b.Thoughts),
		})
	}
	return doc, nil
}

func resolveSequence(thoughts []model.Thought) []ResolvedThought {
	out := make([]ResolvedThought, 0, len(thoughts))
	for _, t := range thoughts {
		effective, err := session.EffectiveText(thoughts, t.Number)
		if err != nil {
			effective = t.Text
		}
		out = append(out, ResolvedThought{
			Thought:       t,
			RevisionChain: session.RevisionChain(thoughts, t.Number),
			EffectiveText: effective,
		})
	}
	return out
}

// Narrative renders the document as linearized text: main-sequence thoughts
// in order, with each branch called out under the thought it forks from.
func (d *Document) Narrative() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s", d.SessionID)
	if d.Title != "" {
		fmt.Fprintf(&b, ": %s", d.Title)
	}
	b.WriteString("\n\n")

	for _, t := range d.Main {
		writeThought(&b, t, 0)
		d.writeForks(&b, model.MainSequence, t.Number, 1)
	}

	fmt.Fprintf(&b, "\n%d thoughts, %d revisions, %d branches, style %s\n",
		d.Analytics.TotalThoughts, d.Analytics.RevisionCount,
		d.Analytics.BranchCount, d.Analytics.ThinkingStyle)
	return b.String()
}

func (d *Document) writeForks(b *strings.Builder, parent string, number, depth int) {
	for _, br := range d.Branches {
		if br.Parent != parent || br.ForkPoint != number {
			continue
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(b, "%s[branch %s from thought %d]\n", indent, br.ID, br.ForkPoint)
		for _, t := range br.Thoughts {
			writeThought(b, t, depth)
			d.writeForks(b, br.ID, t.Number, depth+1)
		}
	}
}

func writeThought(b *strings.Builder, t ResolvedThought, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := ""
	if t.IsRevision() {
		marker = fmt.Sprintf(" (revises %d)", t.RevisionOf)
	}
	fmt.Fprintf(b, "%s%d/%d%s: %s\n", indent, t.Number, t.DeclaredTotal, marker, t.EffectiveText)
}
