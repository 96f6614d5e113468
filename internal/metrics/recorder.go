// Package metrics routes coordinator telemetry into the time-series
// database: poll latencies, command results, and power state changes.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
	"github.com/nerrad567/optoma-core/internal/projector"
)

// Sink is the write surface of the time-series client. Satisfied by
// *influxdb.Client.
type Sink interface {
	WritePowerState(projectorID string, state string, available bool)
	WritePollLatency(projectorID string, latency time.Duration, success bool)
	WriteCommandResult(projectorID string, control string, success bool, duration time.Duration)
}

// snapshotSource is the subscription side of the coordinator.
type snapshotSource interface {
	Subscribe() (<-chan projector.Snapshot, func())
}

// Recorder implements projector.Observer and additionally tracks power
// state transitions from the snapshot stream. Writes are asynchronous
// inside the sink, so observer callbacks never block the coordinator.
type Recorder struct {
	projectorID string
	sink        Sink
	source      snapshotSource
	logger      *logging.Logger

	mu        sync.Mutex
	lastPower projector.PowerState
	lastAvail bool
	started   bool

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder builds a Recorder.
func NewRecorder(projectorID string, sink Sink, source snapshotSource, logger *logging.Logger) *Recorder {
	return &Recorder{
		projectorID: projectorID,
		sink:        sink,
		source:      source,
		logger:      logger,
	}
}

// PollCompleted implements projector.Observer.
func (r *Recorder) PollCompleted(latency time.Duration, err error) {
	r.sink.WritePollLatency(r.projectorID, latency, err == nil)
}

// CommandCompleted implements projector.Observer.
func (r *Recorder) CommandCompleted(control string, latency time.Duration, err error) {
	r.sink.WriteCommandResult(r.projectorID, control, err == nil, latency)
}

// Start begins consuming snapshots for power state telemetry.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	snapshots, unsubscribe := r.source.Subscribe()
	r.logger.Debug("metrics recorder started", "projector_id", r.projectorID)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				r.record(snap)
			}
		}
	}()
}

// Close stops the snapshot consumer.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}

// record writes a power state point when power or availability changed.
func (r *Recorder) record(snap projector.Snapshot) {
	r.mu.Lock()
	changed := !r.started || snap.Power != r.lastPower || snap.Available != r.lastAvail
	r.started = true
	r.lastPower = snap.Power
	r.lastAvail = snap.Available
	r.mu.Unlock()

	if changed {
		r.sink.WritePowerState(r.projectorID, string(snap.Power), snap.Available)
	}
}
