package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/database"
	_ "github.com/nerrad567/optoma-core/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecordAndRecent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ProjectorID: "cinema", Power: "standby", Available: true, RecordedAt: base},
		{ProjectorID: "cinema", Power: "warming", Available: true, RecordedAt: base.Add(time.Minute)},
		{ProjectorID: "cinema", Power: "on", InputSource: "0", Available: true,
			Fields: map[string]string{"pw": "1", "a": "0"}, RecordedAt: base.Add(2 * time.Minute)},
		{ProjectorID: "office", Power: "on", Available: true, RecordedAt: base},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	got, err := repo.Recent(ctx, "cinema", 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(got))
	}
	if got[0].Power != "on" || got[2].Power != "standby" {
		t.Errorf("order wrong: first=%s last=%s", got[0].Power, got[2].Power)
	}
	if got[0].Fields["a"] != "0" {
		t.Errorf("Fields not round-tripped: %v", got[0].Fields)
	}
	if !got[0].RecordedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("RecordedAt = %v", got[0].RecordedAt)
	}
}

func TestRecentLimitClamping(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		e := Entry{ProjectorID: "cinema", Power: "on", Available: true,
			RecordedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)}
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	got, err := repo.Recent(ctx, "cinema", 0)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != defaultLimit {
		t.Errorf("default limit returned %d, want %d", len(got), defaultLimit)
	}
}

func TestRecordRequiresProjectorID(t *testing.T) {
	repo := openTestRepo(t)

	if err := repo.Record(context.Background(), Entry{Power: "on"}); err == nil {
		t.Error("Record() without projector id succeeded")
	}
	if _, err := repo.Recent(context.Background(), "", 10); err == nil {
		t.Error("Recent() without projector id succeeded")
	}
}

func TestPrune(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	old := Entry{ProjectorID: "cinema", Power: "standby", Available: true,
		RecordedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := Entry{ProjectorID: "cinema", Power: "on", Available: true,
		RecordedAt: time.Now().UTC()}
	if err := repo.Record(ctx, old); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := repo.Record(ctx, recent); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d rows, want 1", n)
	}

	got, err := repo.Recent(ctx, "cinema", 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 1 || got[0].Power != "on" {
		t.Errorf("remaining entries = %+v", got)
	}
}
