package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"thinktrace/internal/export"
	"thinktrace/internal/model"
	"thinktrace/internal/session"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg := session.NewRegistry(session.RegistryConfig{
		Limits: session.Limits{MaxThoughts: 100, MaxBranches: 10},
	})
	t.Cleanup(func() { reg.Close() })
	return New(reg).WithClock(func() time.Time { return testTime })
}

func addThought(t *testing.T, svc *Service, sessionID string, number, total int, text string) ThoughtAccepted {
	t.Helper()
	got, err := svc.AddThought(sessionID, model.ThoughtInput{
		Text: text, Number: number, DeclaredTotal: total, Continues: true,
	})
	if err != nil {
		t.Fatalf("add thought %d: %v", number, err)
	}
	return got
}

func TestAddThoughtCreatesSession(t *testing.T) {
	svc := newTestService(t)

	got := addThought(t, svc, "s1", 1, 3, "first")
	if got.SessionID != "s1" || got.Number != 1 {
		t.Errorf("unexpected ack: %+v", got)
	}
	if got.Progress.Current != 1 || got.Progress.DeclaredTotal != 3 {
		t.Errorf("unexpected progress: %+v", got.Progress)
	}

	snap, err := svc.GetSession("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(snap.Main) != 1 {
		t.Errorf("expected 1 thought, got %d", len(snap.Main))
	}
}

func TestGetSessionStrict(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.GetSession("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Progress("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.AnalyzeSession("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAnalyzeSession(t *testing.T) {
	svc := newTestService(t)

	addThought(t, svc, "s1", 1, 2, "a")
	addThought(t, svc, "s1", 2, 2, "b")

	report, err := svc.AnalyzeSession("s1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.TotalThoughts != 2 || report.ThinkingStyle == "" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestExportSession(t *testing.T) {
	svc := newTestService(t)
	addThought(t, svc, "s1", 1, 1, "only")

	doc, err := svc.ExportSession("s1", "narrative")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Format != export.FormatNarrative || len(doc.Main) != 1 {
		t.Errorf("unexpected doc: %+v", doc)
	}

	if _, err := svc.ExportSession("s1", "xml"); !errors.Is(err, export.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportByteIdentical(t *testing.T) {
	reg := session.NewRegistry(session.RegistryConfig{
		Limits: session.Limits{MaxThoughts: 100, MaxBranches: 10},
	})
	t.Cleanup(func() { reg.Close() })

	// A ticking clock: every call returns a later time.
	tick := testTime
	svc := New(reg).WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	addThought(t, svc, "s1", 1, 2, "a")
	addThought(t, svc, "s1", 2, 2, "b")

	d1, err := svc.ExportSession("s1", "structured")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	d2, err := svc.ExportSession("s1", "structured")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	b1, _ := json.Marshal(d1)
	b2, _ := json.Marshal(d2)
	if !bytes.Equal(b1, b2) {
		t.Errorf("exports of an unmutated session differ:\n%s\n%s", b1, b2)
	}
}

func TestMergeSessions(t *testing.T) {
	svc := newTestService(t)

	addThought(t, svc, "a", 1, 2, "a1")
	addThought(t, svc, "a", 2, 2, "a2")
	addThought(t, svc, "b", 1, 1, "b1")

	mergedID, err := svc.MergeSessions([]string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap, err := svc.GetSession(mergedID)
	if err != nil {
		t.Fatalf("get merged: %v", err)
	}
	if len(snap.Main) != 3 || snap.Main[2].Text != "b1" {
		t.Errorf("unexpected merged session: %+v", snap.Main)
	}

	// Sources still live
	if _, err := svc.GetSession("a"); err != nil {
		t.Errorf("source session gone: %v", err)
	}
}

func TestMergeSessionsErrors(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.MergeSessions(nil, ""); !errors.Is(err, session.ErrEmptyMergeSet) {
		t.Errorf("expected ErrEmptyMergeSet, got %v", err)
	}
	if _, err := svc.MergeSessions([]string{"a"}, "squash"); !errors.Is(err, session.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
	if _, err := svc.MergeSessions([]string{"ghost"}, ""); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	svc := newTestService(t)

	addThought(t, svc, "b", 1, 1, "x")
	addThought(t, svc, "a", 1, 1, "y")

	ids := svc.ListSessions()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected sorted [a b], got %v", ids)
	}

	if err := svc.DeleteSession("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteSession("a"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
