package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/config"
	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
	"github.com/nerrad567/optoma-core/internal/projector"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

type fakeSink struct {
	mu       sync.Mutex
	power    []string
	polls    []bool
	commands []string
}

func (f *fakeSink) WritePowerState(_ string, state string, available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	suffix := "/offline"
	if available {
		suffix = "/online"
	}
	f.power = append(f.power, state+suffix)
}

func (f *fakeSink) WritePollLatency(_ string, _ time.Duration, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, success)
}

func (f *fakeSink) WriteCommandResult(_ string, control string, success bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if success {
		f.commands = append(f.commands, control+"/ok")
	} else {
		f.commands = append(f.commands, control+"/fail")
	}
}

type fakeSource struct {
	ch      chan projector.Snapshot
	cancels int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan projector.Snapshot, 8)}
}

func (f *fakeSource) Subscribe() (<-chan projector.Snapshot, func()) {
	return f.ch, func() { f.cancels++ }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestObserverCallbacks(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder("cinema", sink, newFakeSource(), testLogger())

	r.PollCompleted(50*time.Millisecond, nil)
	r.PollCompleted(100*time.Millisecond, errors.New("timeout"))
	r.CommandCompleted("volume", 20*time.Millisecond, nil)
	r.CommandCompleted("power_on", 5*time.Second, errors.New("boom"))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.polls) != 2 || !sink.polls[0] || sink.polls[1] {
		t.Errorf("polls = %v, want [true false]", sink.polls)
	}
	if len(sink.commands) != 2 || sink.commands[0] != "volume/ok" || sink.commands[1] != "power_on/fail" {
		t.Errorf("commands = %v", sink.commands)
	}
}

func TestPowerStateChanges(t *testing.T) {
	sink := &fakeSink{}
	source := newFakeSource()
	r := NewRecorder("cinema", sink, source, testLogger())
	r.Start(context.Background())
	defer r.Close()

	on := projector.Snapshot{Power: projector.PowerOn, Available: true}
	source.ch <- on
	source.ch <- on // unchanged, should not write again
	source.ch <- projector.Snapshot{Power: projector.PowerCooling, Available: true}
	source.ch <- projector.Snapshot{Power: projector.PowerCooling, Available: false}

	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.power) >= 3
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	want := []string{"on/online", "cooling/online", "cooling/offline"}
	if len(sink.power) != len(want) {
		t.Fatalf("power writes = %v, want %v", sink.power, want)
	}
	for i := range want {
		if sink.power[i] != want[i] {
			t.Errorf("power[%d] = %q, want %q", i, sink.power[i], want[i])
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	r := NewRecorder("cinema", &fakeSink{}, newFakeSource(), testLogger())
	r.Start(context.Background())
	r.Close()
	r.Close()
}
