package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/config"
	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
	"github.com/nerrad567/optoma-core/internal/projector"
)

type fakeSource struct {
	ch chan projector.Snapshot
}

func (f *fakeSource) Subscribe() (<-chan projector.Snapshot, func()) {
	return f.ch, func() {}
}

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memRepo) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRepo) Recent(_ context.Context, _ string, _ int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *memRepo) Prune(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func snapshotWith(power projector.PowerState, input string, available bool) projector.Snapshot {
	fields := map[string]string{"pw": "1"}
	if input != "" {
		fields["a"] = input
	}
	return projector.Snapshot{
		Fields:    fields,
		Power:     power,
		Available: available,
	}
}

func waitForCount(t *testing.T, repo *memRepo, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if repo.count() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("recorded %d entries, want %d", repo.count(), want)
}

func TestRecorderRecordsMeaningfulChanges(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	src := &fakeSource{ch: make(chan projector.Snapshot, 8)}
	repo := &memRepo{}

	r := NewRecorder("cinema", repo, src, 0, log)
	r.Start(context.Background())
	defer r.Close()

	// First snapshot always records.
	src.ch <- snapshotWith(projector.PowerStandby, "", true)
	waitForCount(t, repo, 1)

	// Same power, same input, same availability: skipped.
	src.ch <- snapshotWith(projector.PowerStandby, "", true)
	// Power change records.
	src.ch <- snapshotWith(projector.PowerWarming, "", true)
	waitForCount(t, repo, 2)

	// Input change records.
	src.ch <- snapshotWith(projector.PowerOn, "1", true)
	waitForCount(t, repo, 3)

	// Availability change records.
	src.ch <- snapshotWith(projector.PowerOn, "1", false)
	waitForCount(t, repo, 4)

	entries, _ := repo.Recent(context.Background(), "cinema", 10)
	if entries[0].Power != "standby" || entries[1].Power != "warming" {
		t.Errorf("entries = %+v", entries)
	}
	if entries[3].Available {
		t.Error("availability change not recorded")
	}
}

func TestRecorderCloseStopsConsuming(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	src := &fakeSource{ch: make(chan projector.Snapshot, 1)}
	repo := &memRepo{}

	r := NewRecorder("cinema", repo, src, 0, log)
	r.Start(context.Background())
	r.Close()

	// Closing twice is safe.
	r.Close()
}
