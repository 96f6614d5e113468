package projector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
)

// commandSender is the HTTP conversation the coordinator drives.
// Satisfied by *Session.
type commandSender interface {
	Do(ctx context.Context, body string) (string, error)
	Reset()
}

// powerFallback is the serial escape hatch for power commands.
// Satisfied by *TelnetClient.
type powerFallback interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	PowerStatus(ctx context.Context) (PowerState, error)
}

// Observer receives timing callbacks for polls and commands, for
// telemetry sinks. Implementations must be safe for concurrent use and
// must not block.
type Observer interface {
	PollCompleted(latency time.Duration, err error)
	CommandCompleted(control string, latency time.Duration, err error)
}

// CoordinatorConfig carries the polling cadence and command timing.
type CoordinatorConfig struct {
	// IntervalOn is the poll interval while the lamp is on.
	IntervalOn time.Duration

	// IntervalStandby is the poll interval in standby, where state
	// changes are rare and the CGI handler is at its flakiest.
	IntervalStandby time.Duration

	// IntervalTransition is the poll interval while warming or
	// cooling, to catch the settle quickly.
	IntervalTransition time.Duration

	// RequestTimeout bounds ordinary query and setting requests.
	RequestTimeout time.Duration

	// PowerTimeout bounds power commands, which the firmware answers
	// slowly while the lamp driver spins up.
	PowerTimeout time.Duration

	// FollowUpDelay is how soon after an unconfirmed write the next
	// poll runs to verify it.
	FollowUpDelay time.Duration

	// Optimistic publishes written values immediately, before the
	// device confirms them. The next confirmed poll replaces them
	// either way.
	Optimistic bool
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.IntervalOn == 0 {
		c.IntervalOn = 4 * time.Second
	}
	if c.IntervalStandby == 0 {
		c.IntervalStandby = 12 * time.Second
	}
	if c.IntervalTransition == 0 {
		c.IntervalTransition = 2 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 6 * time.Second
	}
	if c.PowerTimeout == 0 {
		c.PowerTimeout = 12 * time.Second
	}
	if c.FollowUpDelay == 0 {
		c.FollowUpDelay = 800 * time.Millisecond
	}
}

// Coordinator owns the projector state machine: it polls the device at
// a cadence driven by the reported power state, serialises writes
// through the gate, applies optimistic overlays, and publishes
// snapshots to subscribers.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Coordinator struct {
	cfg     CoordinatorConfig
	sender  commandSender
	gate    *Gate
	telnet  powerFallback
	clock   Clock
	logger  *logging.Logger

	observer Observer

	mu        sync.Mutex
	confirmed map[string]string // last device-confirmed state
	pending   map[string]string // optimistic overlay, cleared on confirm
	power     PowerState
	available bool
	stale     bool
	updatedAt time.Time
	lastError string
	info      DeviceInfo
	infoDone  bool
	subs      map[int]chan Snapshot
	nextSub   int

	kick     chan time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCoordinator builds a Coordinator. The telnet fallback may be nil.
// A nil clock uses the wall clock.
func NewCoordinator(cfg CoordinatorConfig, sender commandSender, gate *Gate, telnet powerFallback, clock Clock, logger *logging.Logger) *Coordinator {
	cfg.applyDefaults()
	if clock == nil {
		clock = realClock{}
	}
	return &Coordinator{
		cfg:       cfg,
		sender:    sender,
		gate:      gate,
		telnet:    telnet,
		clock:     clock,
		logger:    logger,
		confirmed: map[string]string{},
		pending:   map[string]string{},
		power:     PowerUnknown,
		subs:      map[int]chan Snapshot{},
		kick:      make(chan time.Duration, 1),
		done:      make(chan struct{}),
	}
}

// SetObserver installs a telemetry observer. Must be called before
// Start.
func (c *Coordinator) SetObserver(o Observer) {
	c.observer = o
}

// Start runs an immediate poll and then launches the polling loop.
// The first poll's error is returned so startup can report an
// unreachable device, but the loop starts regardless; the device may
// simply be off the network right now.
func (c *Coordinator) Start(ctx context.Context) error {
	err := c.poll(ctx)

	c.wg.Add(1)
	go c.run(ctx)

	return err
}

// Close stops the polling loop and waits for it to exit.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// Snapshot returns a copy of the current published state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers a snapshot listener. The returned channel is
// buffered; a subscriber that falls behind loses intermediate
// snapshots, never blocks the coordinator. The cancel func must be
// called when done.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 8)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// PowerOn turns the projector on. Returns ErrBlockedByTransition while
// cooling; a projector that is already on or warming is a no-op
// success. Falls back to the serial channel when the web endpoint
// fails and a fallback is configured.
func (c *Coordinator) PowerOn(ctx context.Context) (err error) {
	start := c.clock.Now()
	defer func() {
		if c.observer != nil {
			c.observer.CommandCompleted("power_on", c.clock.Now().Sub(start), err)
		}
	}()

	c.mu.Lock()
	power := c.power
	c.mu.Unlock()

	switch power {
	case PowerCooling:
		return fmt.Errorf("%w: cooling down", ErrBlockedByTransition)
	case PowerOn, PowerWarming:
		return nil
	}

	err = c.sendPower(ctx, CmdPowerOn)
	if err != nil && c.telnet != nil {
		c.logger.Warn("power on over HTTP failed, trying serial fallback", "error", err)
		if tErr := c.telnet.PowerOn(ctx); tErr != nil {
			return errors.Join(err, tErr)
		}
		err = nil
	}
	if err != nil {
		return err
	}

	c.applyOptimistic(KeyPower, powerRawWarming)
	c.scheduleFollowUp()
	return nil
}

// PowerOff turns the projector off. Returns ErrBlockedByTransition
// while warming; already off or cooling is a no-op success.
func (c *Coordinator) PowerOff(ctx context.Context) (err error) {
	start := c.clock.Now()
	defer func() {
		if c.observer != nil {
			c.observer.CommandCompleted("power_off", c.clock.Now().Sub(start), err)
		}
	}()

	c.mu.Lock()
	power := c.power
	c.mu.Unlock()

	switch power {
	case PowerWarming:
		return fmt.Errorf("%w: warming up", ErrBlockedByTransition)
	case PowerStandby, PowerCooling:
		return nil
	}

	err = c.sendPower(ctx, CmdPowerOff)
	if err != nil && c.telnet != nil {
		c.logger.Warn("power off over HTTP failed, trying serial fallback", "error", err)
		if tErr := c.telnet.PowerOff(ctx); tErr != nil {
			return errors.Join(err, tErr)
		}
		err = nil
	}
	if err != nil {
		return err
	}

	c.applyOptimistic(KeyPower, powerRawCooling)
	c.scheduleFollowUp()
	return nil
}

// SetControl validates value against the control table and sends it to
// the device. Number values are clamped into range rather than
// rejected. When the command response carries parsable state it is
// applied as confirmed; otherwise the value is published optimistically
// and an accelerated poll verifies it.
func (c *Coordinator) SetControl(ctx context.Context, id, value string) (err error) {
	start := c.clock.Now()
	defer func() {
		if c.observer != nil {
			c.observer.CommandCompleted(id, c.clock.Now().Sub(start), err)
		}
	}()

	var ctl Control
	ctl, err = ControlByID(id)
	if err != nil {
		return err
	}
	var norm string
	norm, err = ctl.NormalizeValue(value)
	if err != nil {
		return err
	}

	var text string
	text, err = c.gate.Do(ctx, c.cfg.RequestTimeout, func(ctx context.Context) (string, error) {
		return c.sender.Do(ctx, ctl.Body(norm))
	})
	if err != nil {
		return err
	}

	// The CGI handler usually echoes the full state back. When it
	// does, that is a confirmation; when it mangles the echo, publish
	// optimistically and let the follow-up poll settle it.
	if fields, perr := Normalize(text); perr == nil {
		c.applyConfirmed(fields)
		return nil
	}

	if ctl.StateKey != "" {
		c.applyOptimistic(ctl.StateKey, norm)
	}
	c.scheduleFollowUp()
	return nil
}

// PressButton triggers a one-shot action control such as resync.
func (c *Coordinator) PressButton(ctx context.Context, id string) error {
	ctl, err := ControlByID(id)
	if err != nil {
		return err
	}
	if ctl.Kind != KindButton && ctl.Kind != KindToggle {
		return fmt.Errorf("%w: %s is not a button", ErrInvalidValue, id)
	}
	return c.SetControl(ctx, id, "")
}

// Refresh forces a poll on the next loop iteration.
func (c *Coordinator) Refresh() {
	select {
	case c.kick <- 0:
	default:
	}
}

// PowerStatusSerial queries power over the serial fallback, for
// diagnostics when the web endpoint is down. Returns ErrFallback when
// no fallback is configured.
func (c *Coordinator) PowerStatusSerial(ctx context.Context) (PowerState, error) {
	if c.telnet == nil {
		return PowerUnknown, fmt.Errorf("%w: not configured", ErrFallback)
	}
	return c.telnet.PowerStatus(ctx)
}

func (c *Coordinator) sendPower(ctx context.Context, body string) error {
	_, err := c.gate.Do(ctx, c.cfg.PowerTimeout, func(ctx context.Context) (string, error) {
		return c.sender.Do(ctx, body)
	})
	return err
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		interval := c.currentInterval()

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case d := <-c.kick:
			if d > 0 {
				select {
				case <-c.clock.After(d):
				case <-c.done:
					return
				case <-ctx.Done():
					return
				}
			}
		case <-c.clock.After(interval):
		}

		if err := c.poll(ctx); err != nil {
			c.logger.Debug("poll failed", "error", err)
		}
	}
}

func (c *Coordinator) currentInterval() time.Duration {
	c.mu.Lock()
	power := c.power
	c.mu.Unlock()

	switch power {
	case PowerWarming, PowerCooling:
		return c.cfg.IntervalTransition
	case PowerStandby, PowerUnknown:
		return c.cfg.IntervalStandby
	default:
		return c.cfg.IntervalOn
	}
}

func (c *Coordinator) poll(ctx context.Context) (err error) {
	start := c.clock.Now()
	defer func() {
		if c.observer != nil {
			c.observer.PollCompleted(c.clock.Now().Sub(start), err)
		}
	}()

	var text string
	text, err = c.gate.Do(ctx, c.cfg.RequestTimeout, func(ctx context.Context) (string, error) {
		return c.sender.Do(ctx, CmdQuery)
	})
	if err != nil {
		if errors.Is(err, ErrTransport) {
			c.sender.Reset()
		}
		c.markUnavailable(err)
		return err
	}

	var fields map[string]string
	fields, err = Normalize(text)
	if err != nil {
		c.markUnavailable(err)
		return err
	}

	c.applyConfirmed(fields)

	c.mu.Lock()
	needInfo := !c.infoDone
	c.mu.Unlock()
	if needInfo {
		c.fetchInfo(ctx)
	}
	return nil
}

// fetchInfo pulls the static identity block once. Failures are not
// fatal; some firmware revisions never answer the info query.
func (c *Coordinator) fetchInfo(ctx context.Context) {
	text, err := c.gate.Do(ctx, c.cfg.RequestTimeout, func(ctx context.Context) (string, error) {
		return c.sender.Do(ctx, CmdQueryInfo)
	})
	if err != nil {
		c.logger.Debug("device info query failed", "error", err)
		return
	}
	fields, err := Normalize(text)
	if err != nil {
		c.logger.Debug("device info response unparseable", "error", err)
		c.mu.Lock()
		c.infoDone = true
		c.mu.Unlock()
		return
	}

	info := DeviceInfo{
		ModelName:       firstOf(fields, "model", "Model"),
		FirmwareVersion: firstOf(fields, "fw", "firmware", "Firmware"),
		MACAddress:      firstOf(fields, "mac", "MAC", "macaddr"),
		LampHours:       firstOf(fields, "lamp", "lamphour"),
	}

	c.mu.Lock()
	c.info = info
	c.infoDone = true
	snap := c.snapshotLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.publish(snap, subs)
	c.logger.Info("device info fetched", "model", info.ModelName, "firmware", info.FirmwareVersion)
}

func firstOf(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// applyConfirmed installs a device-confirmed state map, discarding any
// optimistic overlay. Unconfirmed writes roll back here.
func (c *Coordinator) applyConfirmed(fields map[string]string) {
	c.mu.Lock()

	changed := !c.available || c.stale || len(c.pending) > 0 || !equalFields(c.confirmed, fields)

	c.confirmed = fields
	c.pending = map[string]string{}
	c.power = PowerFromRaw(fields[KeyPower])
	c.available = true
	c.stale = false
	c.updatedAt = c.clock.Now()
	c.lastError = ""

	var snap Snapshot
	var subs []chan Snapshot
	if changed {
		snap = c.snapshotLocked()
		subs = c.subscribersLocked()
	}
	c.mu.Unlock()

	if changed {
		c.publish(snap, subs)
	}
}

func (c *Coordinator) applyOptimistic(key, value string) {
	if !c.cfg.Optimistic {
		return
	}
	c.mu.Lock()
	c.pending[key] = value
	if key == KeyPower {
		c.power = PowerFromRaw(value)
	}
	snap := c.snapshotLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.publish(snap, subs)
}

func (c *Coordinator) markUnavailable(err error) {
	c.mu.Lock()

	wasAvailable := c.available
	c.available = false
	c.stale = len(c.confirmed) > 0
	c.lastError = err.Error()

	var snap Snapshot
	var subs []chan Snapshot
	if wasAvailable {
		snap = c.snapshotLocked()
		subs = c.subscribersLocked()
	}
	c.mu.Unlock()

	if wasAvailable {
		c.publish(snap, subs)
	}
}

func (c *Coordinator) scheduleFollowUp() {
	select {
	case c.kick <- c.cfg.FollowUpDelay:
	default:
	}
}

func (c *Coordinator) snapshotLocked() Snapshot {
	fields := make(map[string]string, len(c.confirmed)+len(c.pending))
	for k, v := range c.confirmed {
		fields[k] = v
	}
	for k, v := range c.pending {
		fields[k] = v
	}
	return Snapshot{
		Fields:    fields,
		Power:     c.power,
		Available: c.available,
		Stale:     c.stale,
		UpdatedAt: c.updatedAt,
		LastError: c.lastError,
		Info:      c.info,
	}
}

func (c *Coordinator) subscribersLocked() []chan Snapshot {
	out := make([]chan Snapshot, 0, len(c.subs))
	for _, ch := range c.subs {
		out = append(out, ch)
	}
	return out
}

func (c *Coordinator) publish(snap Snapshot, subs []chan Snapshot) {
	for _, ch := range subs {
		select {
		case ch <- snap.clone():
		default:
			// Slow subscriber, drop rather than stall the loop.
		}
	}
}

func equalFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
