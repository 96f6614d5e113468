package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/optoma-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/optoma-core/internal/projector"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		_ = handler(topic, payload)
	}
}

// MockController implements Controller for testing.
type MockController struct {
	mu         sync.Mutex
	snapshot   projector.Snapshot
	snapshots  chan projector.Snapshot
	setCalls   []setCall
	powerOns   int
	powerOffs  int
	setErr     error
	powerErr   error
	subCancels int
}

type setCall struct {
	ID    string
	Value string
}

func NewMockController() *MockController {
	return &MockController{
		snapshot: projector.Snapshot{
			Fields:    map[string]string{"pw": "1", "a": "0"},
			Power:     projector.PowerOn,
			Available: true,
		},
		snapshots: make(chan projector.Snapshot, 8),
	}
}

func (m *MockController) Snapshot() projector.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *MockController) Subscribe() (<-chan projector.Snapshot, func()) {
	return m.snapshots, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subCancels++
	}
}

func (m *MockController) SetControl(ctx context.Context, id, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, setCall{ID: id, Value: value})
	return m.setErr
}

func (m *MockController) PowerOn(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerOns++
	return m.powerErr
}

func (m *MockController) PowerOff(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerOffs++
	return m.powerErr
}

func (m *MockController) SetCalls() []setCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]setCall, len(m.setCalls))
	copy(out, m.setCalls)
	return out
}

func newTestBridge(t *testing.T) (*Bridge, *MockMQTTClient, *MockController) {
	t.Helper()
	mc := NewMockMQTTClient()
	ctrl := NewMockController()
	b, err := New(Options{
		ProjectorID: "cinema",
		MQTTClient:  mc,
		Controller:  ctrl,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, mc, ctrl
}

func waitForPublished(t *testing.T, mc *MockMQTTClient, n int) []mockPublish {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pubs := mc.GetPublished()
		if len(pubs) >= n {
			return pubs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d published messages, have %d", n, len(mc.GetPublished()))
	return nil
}

func findPublished(pubs []mockPublish, topic string) (mockPublish, bool) {
	for _, p := range pubs {
		if p.Topic == topic {
			return p, true
		}
	}
	return mockPublish{}, false
}

func TestNewValidation(t *testing.T) {
	mc := NewMockMQTTClient()
	ctrl := NewMockController()

	if _, err := New(Options{MQTTClient: mc, Controller: ctrl}); err == nil {
		t.Error("expected error for missing projector ID")
	}
	if _, err := New(Options{ProjectorID: "cinema", Controller: ctrl}); err == nil {
		t.Error("expected error for missing MQTT client")
	}
	if _, err := New(Options{ProjectorID: "cinema", MQTTClient: mc}); err == nil {
		t.Error("expected error for missing controller")
	}
}

func TestStartSubscribesAndPublishesInitialState(t *testing.T) {
	b, mc, _ := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	mc.mu.Lock()
	subs := make([]mockSubscription, len(mc.subscriptions))
	copy(subs, mc.subscriptions)
	mc.mu.Unlock()

	topics := make(map[string]bool)
	for _, s := range subs {
		topics[s.Topic] = true
	}
	if !topics["optoma/cinema/command"] {
		t.Error("expected subscription to command topic")
	}
	if !topics["optoma/cinema/power"] {
		t.Error("expected subscription to power topic")
	}

	pubs := waitForPublished(t, mc, 2)

	state, ok := findPublished(pubs, "optoma/cinema/state")
	if !ok {
		t.Fatal("expected initial state publish")
	}
	if !state.Retained {
		t.Error("state publish should be retained")
	}
	var msg StateMessage
	if err := json.Unmarshal(state.Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.ProjectorID != "cinema" {
		t.Errorf("ProjectorID = %q, want cinema", msg.ProjectorID)
	}
	if msg.Power != projector.PowerOn {
		t.Errorf("Power = %q, want on", msg.Power)
	}

	avail, ok := findPublished(pubs, "optoma/cinema/availability")
	if !ok {
		t.Fatal("expected availability publish")
	}
	if string(avail.Payload) != "online" {
		t.Errorf("availability = %q, want online", avail.Payload)
	}
}

func TestSnapshotChangePublished(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	ctrl.snapshots <- projector.Snapshot{
		Fields:    map[string]string{"pw": "1", "a": "1"},
		Power:     projector.PowerOn,
		Available: true,
	}

	pubs := waitForPublished(t, mc, 1)
	state, ok := findPublished(pubs, "optoma/cinema/state")
	if !ok {
		t.Fatal("expected state publish after snapshot change")
	}
	var msg StateMessage
	if err := json.Unmarshal(state.Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.Fields["a"] != "1" {
		t.Errorf("Fields[a] = %q, want 1", msg.Fields["a"])
	}

	// Availability unchanged, so no second availability publish.
	if _, ok := findPublished(pubs, "optoma/cinema/availability"); ok {
		t.Error("availability should only publish on transitions")
	}
}

func TestAvailabilityTransition(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	ctrl.snapshots <- projector.Snapshot{
		Fields:    map[string]string{"pw": "1"},
		Power:     projector.PowerOn,
		Available: false,
		Stale:     true,
	}

	pubs := waitForPublished(t, mc, 2)
	avail, ok := findPublished(pubs, "optoma/cinema/availability")
	if !ok {
		t.Fatal("expected availability publish on transition")
	}
	if string(avail.Payload) != "offline" {
		t.Errorf("availability = %q, want offline", avail.Payload)
	}
}

func TestCommandAccepted(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	cmd := CommandMessage{ID: "cmd-1", Control: "a", Value: "5"}
	payload, _ := json.Marshal(cmd)
	mc.SimulateMessage("optoma/cinema/command", payload)

	calls := ctrl.SetCalls()
	if len(calls) != 1 || calls[0].ID != "a" || calls[0].Value != "5" {
		t.Fatalf("SetControl calls = %+v, want [{a 5}]", calls)
	}

	pubs := waitForPublished(t, mc, 1)
	ackPub, ok := findPublished(pubs, "optoma/cinema/ack")
	if !ok {
		t.Fatal("expected ack publish")
	}
	var ack AckMessage
	if err := json.Unmarshal(ackPub.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.CommandID != "cmd-1" {
		t.Errorf("CommandID = %q, want cmd-1", ack.CommandID)
	}
	if ack.Status != AckAccepted {
		t.Errorf("Status = %q, want accepted", ack.Status)
	}
	if ack.Control != "a" {
		t.Errorf("Control = %q, want a", ack.Control)
	}
}

func TestCommandGeneratesID(t *testing.T) {
	b, mc, _ := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	mc.SimulateMessage("optoma/cinema/command", []byte(`{"control":"resync"}`))

	pubs := waitForPublished(t, mc, 1)
	ackPub, _ := findPublished(pubs, "optoma/cinema/ack")
	var ack AckMessage
	if err := json.Unmarshal(ackPub.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.CommandID == "" {
		t.Error("expected generated command ID")
	}
}

func TestCommandErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"unknown control", projector.ErrUnknownControl, ErrCodeUnknownControl},
		{"invalid value", projector.ErrInvalidValue, ErrCodeInvalidValue},
		{"transition", projector.ErrBlockedByTransition, ErrCodeBlockedByTransition},
		{"transport", projector.ErrTransport, ErrCodeDeviceUnreachable},
		{"gate timeout", projector.ErrGateTimeout, ErrCodeDeviceUnreachable},
		{"other", errors.New("boom"), ErrCodeBridgeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mc, ctrl := newTestBridge(t)
			ctrl.setErr = tt.err
			if err := b.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			defer b.Stop()
			waitForPublished(t, mc, 2)
			mc.ClearPublished()

			mc.SimulateMessage("optoma/cinema/command", []byte(`{"id":"x","control":"a","value":"5"}`))

			pubs := waitForPublished(t, mc, 1)
			ackPub, ok := findPublished(pubs, "optoma/cinema/ack")
			if !ok {
				t.Fatal("expected ack publish")
			}
			var ack AckMessage
			if err := json.Unmarshal(ackPub.Payload, &ack); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			if ack.Status != AckFailed {
				t.Errorf("Status = %q, want failed", ack.Status)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}
}

func TestMalformedCommandAcked(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	mc.SimulateMessage("optoma/cinema/command", []byte(`{not json`))

	pubs := waitForPublished(t, mc, 1)
	ackPub, ok := findPublished(pubs, "optoma/cinema/ack")
	if !ok {
		t.Fatal("expected ack publish")
	}
	var ack AckMessage
	if err := json.Unmarshal(ackPub.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeMalformedPayload {
		t.Errorf("Error = %+v, want MALFORMED_PAYLOAD", ack.Error)
	}
	if len(ctrl.SetCalls()) != 0 {
		t.Error("malformed payload should not reach the controller")
	}
}

func TestPowerBareString(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	mc.SimulateMessage("optoma/cinema/power", []byte("on"))

	ctrl.mu.Lock()
	ons := ctrl.powerOns
	ctrl.mu.Unlock()
	if ons != 1 {
		t.Fatalf("powerOns = %d, want 1", ons)
	}

	pubs := waitForPublished(t, mc, 1)
	ackPub, _ := findPublished(pubs, "optoma/cinema/ack")
	var ack AckMessage
	if err := json.Unmarshal(ackPub.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Status != AckAccepted || ack.Control != "power" {
		t.Errorf("ack = %+v, want accepted power", ack)
	}
}

func TestPowerJSONOff(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)

	mc.SimulateMessage("optoma/cinema/power", []byte(`{"id":"p1","action":"OFF"}`))

	ctrl.mu.Lock()
	offs := ctrl.powerOffs
	ctrl.mu.Unlock()
	if offs != 1 {
		t.Fatalf("powerOffs = %d, want 1", offs)
	}
}

func TestPowerUnknownAction(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	mc.SimulateMessage("optoma/cinema/power", []byte("reboot"))

	ctrl.mu.Lock()
	ons, offs := ctrl.powerOns, ctrl.powerOffs
	ctrl.mu.Unlock()
	if ons != 0 || offs != 0 {
		t.Error("unknown action should not reach the controller")
	}

	pubs := waitForPublished(t, mc, 1)
	ackPub, _ := findPublished(pubs, "optoma/cinema/ack")
	if !strings.Contains(string(ackPub.Payload), ErrCodeMalformedPayload) {
		t.Errorf("ack payload = %s, want MALFORMED_PAYLOAD", ackPub.Payload)
	}
}

func TestStopPublishesOffline(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForPublished(t, mc, 2)
	mc.ClearPublished()

	b.Stop()
	b.Stop() // idempotent

	pubs := mc.GetPublished()
	avail, ok := findPublished(pubs, "optoma/cinema/availability")
	if !ok {
		t.Fatal("expected offline availability on stop")
	}
	if string(avail.Payload) != "offline" {
		t.Errorf("availability = %q, want offline", avail.Payload)
	}

	ctrl.mu.Lock()
	cancels := ctrl.subCancels
	ctrl.mu.Unlock()
	if cancels != 1 {
		t.Errorf("subscription cancels = %d, want 1", cancels)
	}
}

func TestMetrics(t *testing.T) {
	b, mc, ctrl := newTestBridge(t)
	ctrl.setErr = projector.ErrInvalidValue
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	waitForPublished(t, mc, 2)

	mc.SimulateMessage("optoma/cinema/command", []byte(`{"id":"x","control":"a","value":"bad"}`))

	m := b.Metrics()
	if m.CommandsTotal != 1 {
		t.Errorf("CommandsTotal = %d, want 1", m.CommandsTotal)
	}
	if m.CommandsFailed != 1 {
		t.Errorf("CommandsFailed = %d, want 1", m.CommandsFailed)
	}
	if m.StatesPublished == 0 {
		t.Error("StatesPublished should be nonzero after Start")
	}
}
