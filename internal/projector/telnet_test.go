package projector

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// pipeDialer hands out the client end of a pipe and serves the other
// end with canned responses per command.
type pipeDialer struct {
	mu      sync.Mutex
	respond func(cmd string) string
	dials   int
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	client, server := net.Pipe()
	go func() {
		defer server.Close()
		r := bufio.NewReader(server)
		for {
			line, err := r.ReadString('\r')
			if err != nil {
				return
			}
			cmd := strings.TrimSuffix(line, "\r")
			if _, err := server.Write([]byte(d.respond(cmd))); err != nil {
				return
			}
		}
	}()
	return client, nil
}

type failDialer struct{}

func (failDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func newTelnetUnderTest(d Dialer) *TelnetClient {
	return NewTelnetClient(TelnetConfig{Host: "projector.local", ProjectorID: 1, Timeout: time.Second}, d, testLogger())
}

func TestTelnetPowerOn(t *testing.T) {
	var gotCmd string
	d := &pipeDialer{respond: func(cmd string) string {
		gotCmd = cmd
		return "P"
	}}

	tc := newTelnetUnderTest(d)
	defer tc.Close()

	if err := tc.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn() error: %v", err)
	}
	if gotCmd != "~0100 1" {
		t.Errorf("command = %q, want %q", gotCmd, "~0100 1")
	}
}

func TestTelnetPowerOffAcceptsOk(t *testing.T) {
	d := &pipeDialer{respond: func(cmd string) string { return "Ok" }}

	tc := newTelnetUnderTest(d)
	defer tc.Close()

	if err := tc.PowerOff(context.Background()); err != nil {
		t.Fatalf("PowerOff() error: %v", err)
	}
}

func TestTelnetUnacknowledgedCommand(t *testing.T) {
	d := &pipeDialer{respond: func(cmd string) string { return "F" }}

	tc := newTelnetUnderTest(d)
	defer tc.Close()

	err := tc.PowerOn(context.Background())
	if !errors.Is(err, ErrFallback) {
		t.Errorf("PowerOn() error = %v, want ErrFallback", err)
	}
}

func TestTelnetPowerStatus(t *testing.T) {
	tests := []struct {
		response string
		want     PowerState
	}{
		{"Ok0", PowerStandby},
		{"Ok1", PowerWarming},
		{"Ok2", PowerCooling},
		{"Ok24", PowerOn},
		{"Ok99", PowerUnknown},
	}
	for _, tt := range tests {
		d := &pipeDialer{respond: func(cmd string) string { return tt.response }}
		tc := newTelnetUnderTest(d)

		got, err := tc.PowerStatus(context.Background())
		if err != nil {
			t.Fatalf("PowerStatus(%q) error: %v", tt.response, err)
		}
		if got != tt.want {
			t.Errorf("PowerStatus(%q) = %v, want %v", tt.response, got, tt.want)
		}
		tc.Close()
	}
}

func TestTelnetStatusQueryCommand(t *testing.T) {
	var gotCmd string
	d := &pipeDialer{respond: func(cmd string) string {
		gotCmd = cmd
		return "Ok24"
	}}

	tc := NewTelnetClient(TelnetConfig{Host: "h", ProjectorID: 7, Timeout: time.Second}, d, testLogger())
	defer tc.Close()

	if _, err := tc.PowerStatus(context.Background()); err != nil {
		t.Fatalf("PowerStatus() error: %v", err)
	}
	if gotCmd != "~07124 1" {
		t.Errorf("command = %q, want %q", gotCmd, "~07124 1")
	}
}

func TestTelnetDialFailure(t *testing.T) {
	tc := newTelnetUnderTest(failDialer{})
	defer tc.Close()

	err := tc.PowerOn(context.Background())
	if !errors.Is(err, ErrFallback) {
		t.Errorf("PowerOn() error = %v, want ErrFallback", err)
	}
}

func TestTelnetReusesConnection(t *testing.T) {
	d := &pipeDialer{respond: func(cmd string) string { return "P" }}

	tc := newTelnetUnderTest(d)
	defer tc.Close()

	if err := tc.PowerOn(context.Background()); err != nil {
		t.Fatalf("first PowerOn() error: %v", err)
	}
	if err := tc.PowerOff(context.Background()); err != nil {
		t.Fatalf("PowerOff() error: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1", d.dials)
	}
}
