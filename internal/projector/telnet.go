package projector

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
)

// RS232-over-TCP command templates, %d is the projector id.
const (
	telnetCmdPowerOn     = "~%02d00 1"
	telnetCmdPowerOff    = "~%02d00 0"
	telnetCmdPowerStatus = "~%02d124 1"
)

// Power status codes reported by the serial protocol.
const (
	TelnetStatusStandby = 0
	TelnetStatusWarming = 1
	TelnetStatusCooling = 2
	TelnetStatusReady   = 24
)

var telnetStatusPattern = regexp.MustCompile(`(\d+)`)

// Dialer abstracts the TCP dial so tests can supply a pipe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TelnetClient drives the projector's RS232 command set over its
// telnet port. It exists as a fallback for power commands when the
// web endpoint stops answering, which standby firmware is prone to.
//
// The connection is opened lazily per command batch and dropped on any
// error; the serial bridge tolerates reconnects better than idle
// sockets.
type TelnetClient struct {
	host        string
	port        int
	projectorID int
	timeout     time.Duration
	dialer      Dialer
	logger      *logging.Logger

	mu   sync.Mutex
	conn net.Conn
}

// TelnetConfig carries the fallback channel parameters.
type TelnetConfig struct {
	Host        string
	Port        int           // 0 means the standard telnet port 23
	ProjectorID int           // 0-99, addressed in each command
	Timeout     time.Duration // dial and read deadline
}

// NewTelnetClient builds a TelnetClient. A nil dialer uses net.Dialer.
func NewTelnetClient(cfg TelnetConfig, dialer Dialer, logger *logging.Logger) *TelnetClient {
	if cfg.Port == 0 {
		cfg.Port = 23
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &TelnetClient{
		host:        cfg.Host,
		port:        cfg.Port,
		projectorID: cfg.ProjectorID,
		timeout:     cfg.Timeout,
		dialer:      dialer,
		logger:      logger,
	}
}

// PowerOn sends the serial power-on command. The bridge acknowledges
// with "P" (pass) or "Ok".
func (t *TelnetClient) PowerOn(ctx context.Context) error {
	return t.sendAcked(ctx, telnetCmdPowerOn)
}

// PowerOff sends the serial power-off command.
func (t *TelnetClient) PowerOff(ctx context.Context) error {
	return t.sendAcked(ctx, telnetCmdPowerOff)
}

// PowerStatus queries the serial power status and maps it to a
// PowerState. Unknown codes return PowerUnknown with no error.
func (t *TelnetClient) PowerStatus(ctx context.Context) (PowerState, error) {
	resp, err := t.send(ctx, telnetCmdPowerStatus)
	if err != nil {
		return PowerUnknown, err
	}
	m := telnetStatusPattern.FindString(resp)
	if m == "" {
		return PowerUnknown, fmt.Errorf("%w: unparseable status %q", ErrFallback, resp)
	}
	code, _ := strconv.Atoi(m)
	switch code {
	case TelnetStatusStandby:
		return PowerStandby, nil
	case TelnetStatusWarming:
		return PowerWarming, nil
	case TelnetStatusCooling:
		return PowerCooling, nil
	case TelnetStatusReady:
		return PowerOn, nil
	default:
		return PowerUnknown, nil
	}
}

// Close drops the connection if one is open.
func (t *TelnetClient) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropLocked()
}

func (t *TelnetClient) sendAcked(ctx context.Context, template string) error {
	resp, err := t.send(ctx, template)
	if err != nil {
		return err
	}
	if strings.Contains(resp, "P") || strings.Contains(strings.ToLower(resp), "ok") {
		return nil
	}
	return fmt.Errorf("%w: command not acknowledged: %q", ErrFallback, resp)
}

func (t *TelnetClient) send(ctx context.Context, template string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.connectLocked(ctx); err != nil {
		return "", err
	}

	cmd := fmt.Sprintf(template, t.projectorID)
	t.logger.Debug("telnet send", "host", t.host, "command", cmd)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetDeadline(deadline)

	if _, err := t.conn.Write([]byte(cmd + "\r")); err != nil {
		_ = t.dropLocked()
		return "", fmt.Errorf("%w: write: %v", ErrFallback, err)
	}

	buf := make([]byte, 256)
	n, err := t.conn.Read(buf)
	if err != nil {
		_ = t.dropLocked()
		return "", fmt.Errorf("%w: read: %v", ErrFallback, err)
	}

	resp := strings.TrimSpace(string(buf[:n]))
	t.logger.Debug("telnet response", "host", t.host, "response", resp)
	return resp, nil
}

func (t *TelnetClient) connectLocked(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	conn, err := t.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrFallback, addr, err)
	}
	t.conn = conn
	return nil
}

func (t *TelnetClient) dropLocked() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
