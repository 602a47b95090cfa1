package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite store
// for integration-style persistence tests. Store is exposed directly so tests
// can seed the timetable and directory mirrors.
type SQLiteHarness struct {
	Rules       persistence.RuleRepository
	Sessions    persistence.SessionRepository
	Activations persistence.ActivationRepository
	Timetable   persistence.TimetableRepository
	Directory   persistence.DirectoryRepository
	Store       *sqlite.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "classd.db")

	store, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}

	harness := &SQLiteHarness{
		Rules:       store,
		Sessions:    store,
		Activations: store,
		Timetable:   store,
		Directory:   store,
		Store:       store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
