package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/optoma-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/optoma-core/internal/projector"
)

// MQTTClient is the MQTT surface the bridge needs. Satisfied by
// *mqtt.Client; mocked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Controller is the projector surface the bridge drives. Satisfied by
// *projector.Coordinator.
type Controller interface {
	Snapshot() projector.Snapshot
	Subscribe() (<-chan projector.Snapshot, func())
	SetControl(ctx context.Context, id, value string) error
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Bridge.
type Options struct {
	// ProjectorID names the projector in topic paths. Required.
	ProjectorID string

	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// Controller is the projector coordinator. Required.
	Controller Controller

	// QoS for published and subscribed messages. Defaults to 1.
	QoS byte

	// Logger is optional structured logger.
	Logger Logger
}

// Metrics holds bridge operation counters.
type Metrics struct {
	CommandsTotal   uint64
	CommandsFailed  uint64
	StatesPublished uint64
}

// Bridge connects the projector coordinator to MQTT: it republishes
// state snapshots and translates inbound command/power messages into
// controller calls, acknowledging each one.
type Bridge struct {
	projectorID string
	mqtt        MQTTClient
	ctrl        Controller
	topics      mqtt.Topics
	qos         byte
	logger      Logger

	// lastAvail tracks the last published availability payload so the
	// retained topic only changes on transitions.
	availMu   sync.Mutex
	lastAvail string

	commandsTotal   atomic.Uint64
	commandsFailed  atomic.Uint64
	statesPublished atomic.Uint64

	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.ProjectorID == "" {
		return nil, fmt.Errorf("projector ID is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}

	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}

	// Bridge-level context aborts in-flight commands on shutdown.
	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		projectorID: opts.ProjectorID,
		mqtt:        opts.MQTTClient,
		ctrl:        opts.Controller,
		qos:         qos,
		logger:      opts.Logger,
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		done:        make(chan struct{}),
	}, nil
}

// Start subscribes to the command and power topics and begins
// republishing coordinator snapshots.
func (b *Bridge) Start() error {
	commandTopic := b.topics.ProjectorCommand(b.projectorID)
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	powerTopic := b.topics.ProjectorPower(b.projectorID)
	if err := b.mqtt.Subscribe(powerTopic, b.qos, b.handlePower); err != nil {
		return fmt.Errorf("subscribe to power: %w", err)
	}

	// Publish the current state immediately so the retained topics are
	// populated before the first poll-driven change.
	b.publishState(b.ctrl.Snapshot())

	snapshots, cancel := b.ctrl.Subscribe()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		for {
			select {
			case <-b.done:
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				b.publishState(snap)
			}
		}
	}()

	b.logInfo("bridge started",
		"projector_id", b.projectorID,
		"command_topic", commandTopic,
		"power_topic", powerTopic)

	return nil
}

// Stop shuts the bridge down, marking the projector offline on the
// retained availability topic.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()

		if b.mqtt.IsConnected() {
			topic := b.topics.ProjectorAvailability(b.projectorID)
			if err := b.mqtt.Publish(topic, []byte(availabilityOffline), b.qos, true); err != nil {
				b.logError("failed to publish offline availability", err)
			}
		}

		b.logInfo("bridge stopped", "projector_id", b.projectorID)
	})
}

// Metrics returns a copy of the bridge's operation counters.
func (b *Bridge) Metrics() Metrics {
	return Metrics{
		CommandsTotal:   b.commandsTotal.Load(),
		CommandsFailed:  b.commandsFailed.Load(),
		StatesPublished: b.statesPublished.Load(),
	}
}

// publishState publishes a retained state snapshot and, on transitions,
// the availability payload.
func (b *Bridge) publishState(snap projector.Snapshot) {
	msg := StateMessage{
		ProjectorID: b.projectorID,
		Timestamp:   time.Now().UTC(),
		Power:       snap.Power,
		Available:   snap.Available,
		Stale:       snap.Stale,
		Fields:      snap.Fields,
		Info:        snap.Info,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := b.topics.ProjectorState(b.projectorID)
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.statesPublished.Add(1)

	avail := availabilityOffline
	if snap.Available {
		avail = availabilityOnline
	}
	b.availMu.Lock()
	changed := avail != b.lastAvail
	if changed {
		b.lastAvail = avail
	}
	b.availMu.Unlock()
	if changed {
		availTopic := b.topics.ProjectorAvailability(b.projectorID)
		if err := b.mqtt.Publish(availTopic, []byte(avail), b.qos, true); err != nil {
			b.logError("failed to publish availability", err)
		}
	}
}

// handleCommand processes a control command from MQTT.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	b.commandsTotal.Add(1)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.commandsFailed.Add(1)
		b.logError("malformed command payload", err)
		b.publishAckError("", "", ErrCodeMalformedPayload, err.Error())
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Control == "" {
		b.commandsFailed.Add(1)
		b.publishAckError(cmd.ID, "", ErrCodeMalformedPayload, "control is required")
		return nil
	}

	b.logDebug("command received",
		"command_id", cmd.ID,
		"control", cmd.Control,
		"value", cmd.Value,
		"source", cmd.Source)

	err := b.ctrl.SetControl(b.ctx, cmd.Control, cmd.Value)
	if err != nil {
		b.commandsFailed.Add(1)
		b.publishAckError(cmd.ID, cmd.Control, errorCode(err), err.Error())
		b.logError("command failed", err)
		return nil
	}

	b.publishAck(AckMessage{
		CommandID:   cmd.ID,
		Timestamp:   time.Now().UTC(),
		ProjectorID: b.projectorID,
		Status:      AckAccepted,
		Control:     cmd.Control,
	})
	return nil
}

// handlePower processes a power request from MQTT.
func (b *Bridge) handlePower(topic string, payload []byte) error {
	b.commandsTotal.Add(1)

	msg, err := parsePowerPayload(payload)
	if err != nil {
		b.commandsFailed.Add(1)
		b.logError("malformed power payload", err)
		b.publishAckError("", "power", ErrCodeMalformedPayload, err.Error())
		return nil
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	b.logDebug("power request received", "request_id", msg.ID, "action", msg.Action)

	if msg.Action == "on" {
		err = b.ctrl.PowerOn(b.ctx)
	} else {
		err = b.ctrl.PowerOff(b.ctx)
	}
	if err != nil {
		b.commandsFailed.Add(1)
		b.publishAckError(msg.ID, "power", errorCode(err), err.Error())
		b.logError("power request failed", err)
		return nil
	}

	b.publishAck(AckMessage{
		CommandID:   msg.ID,
		Timestamp:   time.Now().UTC(),
		ProjectorID: b.projectorID,
		Status:      AckAccepted,
		Control:     "power",
	})
	return nil
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	topic := b.topics.ProjectorAck(b.projectorID)
	if err := b.mqtt.Publish(topic, payload, b.qos, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) publishAckError(commandID, control, code, message string) {
	b.publishAck(AckMessage{
		CommandID:   commandID,
		Timestamp:   time.Now().UTC(),
		ProjectorID: b.projectorID,
		Status:      AckFailed,
		Control:     control,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	})
}

// errorCode maps controller errors to ack error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, projector.ErrUnknownControl):
		return ErrCodeUnknownControl
	case errors.Is(err, projector.ErrInvalidValue):
		return ErrCodeInvalidValue
	case errors.Is(err, projector.ErrBlockedByTransition):
		return ErrCodeBlockedByTransition
	case errors.Is(err, projector.ErrTransport),
		errors.Is(err, projector.ErrTransportTimeout),
		errors.Is(err, projector.ErrGateTimeout),
		errors.Is(err, projector.ErrFallback):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}
