package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
	"github.com/nerrad567/optoma-core/internal/projector"
)

// pruneInterval is how often retention is enforced.
const pruneInterval = time.Hour

// snapshotSource is the part of the coordinator the recorder consumes.
type snapshotSource interface {
	Subscribe() (<-chan projector.Snapshot, func())
}

// Recorder watches coordinator snapshots and persists the ones that
// represent a meaningful change: power state, input source, or
// reachability. Raw field churn (volume nudges and the like) is left
// to the time-series database.
type Recorder struct {
	projectorID string
	repo        Repository
	source      snapshotSource
	retention   time.Duration
	logger      *logging.Logger

	mu        sync.Mutex
	lastPower string
	lastInput string
	lastAvail *bool

	cancel   func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder builds a Recorder. Retention of zero disables pruning.
func NewRecorder(projectorID string, repo Repository, source snapshotSource, retention time.Duration, logger *logging.Logger) *Recorder {
	return &Recorder{
		projectorID: projectorID,
		repo:        repo,
		source:      source,
		retention:   retention,
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start subscribes to snapshots and begins recording.
func (r *Recorder) Start(ctx context.Context) {
	ch, cancel := r.source.Subscribe()
	r.cancel = cancel

	r.wg.Add(1)
	go r.run(ctx, ch)
}

// Close stops the recorder and waits for it to drain.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.cancel != nil {
			r.cancel()
		}
	})
	r.wg.Wait()
}

func (r *Recorder) run(ctx context.Context, ch <-chan projector.Snapshot) {
	defer r.wg.Done()

	var pruneC <-chan time.Time
	if r.retention > 0 {
		t := time.NewTicker(pruneInterval)
		defer t.Stop()
		pruneC = t.C
	}

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			r.observe(ctx, snap)
		case <-pruneC:
			if n, err := r.repo.Prune(ctx, r.retention); err != nil {
				r.logger.Warn("history prune failed", "error", err)
			} else if n > 0 {
				r.logger.Debug("history pruned", "rows", n)
			}
		}
	}
}

func (r *Recorder) observe(ctx context.Context, snap projector.Snapshot) {
	input, _ := snap.Field("a")
	power := string(snap.Power)

	r.mu.Lock()
	changed := r.lastAvail == nil ||
		*r.lastAvail != snap.Available ||
		r.lastPower != power ||
		r.lastInput != input
	if changed {
		avail := snap.Available
		r.lastAvail = &avail
		r.lastPower = power
		r.lastInput = input
	}
	r.mu.Unlock()

	if !changed {
		return
	}

	entry := Entry{
		ProjectorID: r.projectorID,
		Power:       power,
		InputSource: input,
		Available:   snap.Available,
		Fields:      snap.Fields,
		RecordedAt:  time.Now().UTC(),
	}
	if err := r.repo.Record(ctx, entry); err != nil {
		r.logger.Warn("history record failed", "error", err)
	}
}
