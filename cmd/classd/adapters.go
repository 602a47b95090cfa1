package main

import (
	"context"
	"log/slog"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/persistence"
)

// directoryStore is the slice of the store the directory adapter needs.
type directoryStore interface {
	LookupTeacher(ctx context.Context, teacherID string) (persistence.DirectoryEntry, error)
}

// directoryAdapter exposes the directory mirror in the shape the access
// service consumes.
type directoryAdapter struct {
	store directoryStore
}

func newDirectoryAdapter(store directoryStore) *directoryAdapter {
	return &directoryAdapter{store: store}
}

func (a *directoryAdapter) Lookup(ctx context.Context, teacherID string) (application.PrincipalInfo, error) {
	entry, err := a.store.LookupTeacher(ctx, teacherID)
	if err != nil {
		return application.PrincipalInfo{}, err
	}
	return application.PrincipalInfo{
		TeacherID: entry.TeacherID,
		SchoolID:  entry.SchoolID,
		Exempt:    entry.Exempt,
	}, nil
}

// slogNotifier records outbound session events in the process log. It stands
// in for the push gateway the surrounding platform provides.
type slogNotifier struct {
	logger *slog.Logger
}

func (n *slogNotifier) SessionScheduled(ctx context.Context, sessionID string) error {
	n.logger.InfoContext(ctx, "session scheduled event", "session_id", sessionID)
	return nil
}

func (n *slogNotifier) SessionStarting(ctx context.Context, sessionID string) error {
	n.logger.InfoContext(ctx, "session starting event", "session_id", sessionID)
	return nil
}
