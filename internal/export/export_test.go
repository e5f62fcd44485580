package export

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"thinktrace/internal/analytics"
	"thinktrace/internal/model"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot() model.SessionSnapshot {
	return model.SessionSnapshot{
		SessionID: "s1",
		Title:     "planning",
		Main: []model.Thought{
			{Number: 1, Text: "first guess", DeclaredTotal: 3, Continues: true},
			{Number: 2, Text: "aside", DeclaredTotal: 3, Continues: true},
			{Number: 3, Text: "better guess", DeclaredTotal: 3, RevisionOf: 1},
		},
		Branches: []model.Branch{
			{
				ID: "alt", Parent: model.MainSequence, ForkPoint: 2,
				Thoughts: []model.Thought{{Number: 1, Text: "what if", DeclaredTotal: 3, BranchID: "alt", BranchPoint: 2}},
			},
		},
		Metadata: model.Metadata{DeclaredTotal: 3, Completed: true},
	}
}

func testReport(t *testing.T, snap model.SessionSnapshot) analytics.Snapshot {
	t.Helper()
	report, err := analytics.Analyze(snap, testTime)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return report
}

func TestParseFormat(t *testing.T) {
	if got, err := ParseFormat("structured"); err != nil || got != FormatStructured {
		t.Errorf("got %q, %v", got, err)
	}
	if got, err := ParseFormat("narrative"); err != nil || got != FormatNarrative {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := ParseFormat("yaml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBuildResolvesRevisions(t *testing.T) {
	snap := testSnapshot()
	doc, err := Build(snap, testReport(t, snap), FormatStructured)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(doc.Main) != 3 {
		t.Fatalf("expected 3 main thoughts, got %d", len(doc.Main))
	}
	first := doc.Main[0]
	if first.EffectiveText != "better guess" {
		t.Errorf("expected revised text, got %q", first.EffectiveText)
	}
	if len(first.RevisionChain) != 1 || first.RevisionChain[0] != 3 {
		t.Errorf("expected chain [3], got %v", first.RevisionChain)
	}
	if doc.Main[1].EffectiveText != "aside" {
		t.Errorf("unrevised thought changed: %q", doc.Main[1].EffectiveText)
	}

	if len(doc.Branches) != 1 || doc.Branches[0].ForkPoint != 2 {
		t.Fatalf("branches: %+v", doc.Branches)
	}
}

func TestBuildDeterministic(t *testing.T) {
	snap := testSnapshot()
	report := testReport(t, snap)

	d1, err := Build(snap, report, FormatStructured)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d2, err := Build(snap, report, FormatStructured)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(d1, d2) {
		t.Error("same snapshot produced different documents")
	}
}

func TestNarrative(t *testing.T) {
	snap := testSnapshot()
	doc, err := Build(snap, testReport(t, snap), FormatNarrative)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	text := doc.Narrative()
	if !strings.Contains(text, "Session s1: planning") {
		t.Errorf("missing header:\n%s", text)
	}
	if !strings.Contains(text, "[branch alt from thought 2]") {
		t.Errorf("missing branch call-out:\n%s", text)
	}
	if !strings.Contains(text, "(revises 1)") {
		t.Errorf("missing revision marker:\n%s", text)
	}

	// Branch call-out appears right after the thought it forks from
	fork := strings.Index(text, "2/3: aside")
	callout := strings.Index(text, "[branch alt")
	last := strings.Index(text, "3/3 (revises 1)")
	if fork < 0 || callout < fork || last < callout {
		t.Errorf("ordering wrong:\n%s", text)
	}
}
