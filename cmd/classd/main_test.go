package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/persistence"
)

type directoryStoreStub struct {
	entries map[string]persistence.DirectoryEntry
}

func (s *directoryStoreStub) LookupTeacher(ctx context.Context, teacherID string) (persistence.DirectoryEntry, error) {
	entry, ok := s.entries[teacherID]
	if !ok {
		return persistence.DirectoryEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

func TestDirectoryAdapterLookup(t *testing.T) {
	school := "school-1"
	adapter := newDirectoryAdapter(&directoryStoreStub{
		entries: map[string]persistence.DirectoryEntry{
			"teacher-1": {TeacherID: "teacher-1", SchoolID: &school},
			"teacher-2": {TeacherID: "teacher-2", Exempt: true},
		},
	})

	principal, err := adapter.Lookup(context.Background(), "teacher-1")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if principal.TeacherID != "teacher-1" {
		t.Fatalf("unexpected teacher ID %q", principal.TeacherID)
	}
	if principal.SchoolID == nil || *principal.SchoolID != school {
		t.Fatalf("unexpected school affiliation %v", principal.SchoolID)
	}
	if principal.Exempt {
		t.Fatal("expected non-exempt principal")
	}

	exempt, err := adapter.Lookup(context.Background(), "teacher-2")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !exempt.Exempt || exempt.SchoolID != nil {
		t.Fatalf("unexpected exempt principal %+v", exempt)
	}

	if _, err := adapter.Lookup(context.Background(), "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown teacher, got %v", err)
	}
}

func TestSlogNotifierLogsEvents(t *testing.T) {
	var buf bytes.Buffer
	notifier := &slogNotifier{logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	if err := notifier.SessionScheduled(context.Background(), "session-1"); err != nil {
		t.Fatalf("SessionScheduled returned error: %v", err)
	}
	if err := notifier.SessionStarting(context.Background(), "session-1"); err != nil {
		t.Fatalf("SessionStarting returned error: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["session_id"] != "session-1" {
		t.Fatalf("unexpected session_id %v", entry["session_id"])
	}
}

var _ application.Directory = (*directoryAdapter)(nil)
var _ application.Notifier = (*slogNotifier)(nil)
