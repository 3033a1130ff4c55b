package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

func testRecord() logic.Record {
	return logic.Record{
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Controlled: logic.Readings{Temperature: 25.5, Humidity: 80, CO2: 850, Light: 120.25, Moisture: 60},
	}
}

func TestSensorMessagesTopicsAndOrder(t *testing.T) {
	msgs := SensorMessages(testRecord())
	want := []Message{
		{Topic: "greenhouse/sensors/temperature", Payload: "25.5"},
		{Topic: "greenhouse/sensors/humidity", Payload: "80"},
		{Topic: "greenhouse/sensors/co2", Payload: "850"},
		{Topic: "greenhouse/sensors/light", Payload: "120.25"},
		{Topic: "greenhouse/sensors/moisture", Payload: "60"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestSensorMessagesIncludeControlSection(t *testing.T) {
	rec := testRecord()
	rec.Control = &logic.Readings{Temperature: 30, Humidity: 55, CO2: 1200, Light: 90, Moisture: 35}
	msgs := SensorMessages(rec)
	if len(msgs) != 10 {
		t.Fatalf("got %d messages, want 10", len(msgs))
	}
	if msgs[5].Topic != "greenhouse/sensors/control/temperature" || msgs[5].Payload != "30" {
		t.Errorf("first control message = %+v", msgs[5])
	}
	if msgs[9].Topic != "greenhouse/sensors/control/moisture" || msgs[9].Payload != "35" {
		t.Errorf("last control message = %+v", msgs[9])
	}
}

// payloads maps each topic below root to its payload.
func payloads(root string, msgs []Message) map[string]string {
	m := make(map[string]string, len(msgs))
	for _, msg := range msgs {
		m[strings.TrimPrefix(msg.Topic, root+"/")] = msg.Payload
	}
	return m
}

func TestSensorPayloads(t *testing.T) {
	rec := testRecord()
	rec.Control = &logic.Readings{CO2: 1200}
	m := payloads(TopicSensors, SensorMessages(rec))
	checks := map[string]string{
		"temperature":   "25.5",
		"co2":           "850",
		"control/co2":   "1200",
		"control/light": "0",
	}
	for k, v := range checks {
		if m[k] != v {
			t.Errorf("%s = %q, want %q", k, m[k], v)
		}
	}
	if len(m) != 10 {
		t.Errorf("got %d topics, want 10", len(m))
	}
}

func TestOutputMessages(t *testing.T) {
	out := logic.Outputs{HumidifierPWM: 102, FanPWM: 0, LEDPWM: 255, PumpPWM: 17}
	msgs := OutputMessages(out)
	wantTopics := []string{
		"greenhouse/actuators/humidifier_pwm",
		"greenhouse/actuators/fan_pwm",
		"greenhouse/actuators/led_pwm",
		"greenhouse/actuators/pump_pwm",
	}
	wantPayloads := []string{"102", "0", "255", "17"}
	for i := range wantTopics {
		if msgs[i].Topic != wantTopics[i] || msgs[i].Payload != wantPayloads[i] {
			t.Errorf("message %d = %+v", i, msgs[i])
		}
		if msgs[i].Retained || msgs[i].QoS != 0 {
			t.Errorf("message %d: outputs must be QoS 0, not retained", i)
		}
	}

	flat := payloads(TopicActuators, msgs)
	if flat["led_pwm"] != "255" || flat["pump_pwm"] != "17" || len(flat) != 4 {
		t.Errorf("output payloads = %v", flat)
	}
}

func TestStatusMessage(t *testing.T) {
	m := StatusMessage(logic.LinkOffline)
	if m.Topic != TopicStatus || m.Payload != "OFFLINE" || m.QoS != 1 || !m.Retained {
		t.Errorf("StatusMessage = %+v", m)
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		25:      "25",
		25.5:    "25.5",
		-0.125:  "-0.125",
		1234.56: "1234.56",
	}
	for v, want := range tests {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	if err := f.PublishStatus(logic.LinkOnline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSensors(testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishOutputs(logic.Outputs{FanPWM: 9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Records) != 1 || len(f.Outputs) != 1 || len(f.Statuses) != 1 {
		t.Fatalf("recorded %d records, %d outputs, %d statuses", len(f.Records), len(f.Outputs), len(f.Statuses))
	}
	if len(f.Messages) != 1+5+4 {
		t.Errorf("got %d messages, want 10", len(f.Messages))
	}
	if f.Messages[0].Topic != TopicStatus {
		t.Errorf("messages not in publish order: first is %s", f.Messages[0].Topic)
	}
	if f.LastStatus() != logic.LinkOnline {
		t.Errorf("LastStatus = %q", f.LastStatus())
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.StatusError = errors.New("simulated status error")

	if err := f.PublishSensors(testRecord()); err == nil {
		t.Error("expected error from PublishSensors")
	}
	if err := f.PublishOutputs(logic.Outputs{}); err == nil {
		t.Error("expected error from PublishOutputs")
	}
	if err := f.PublishStatus(logic.LinkOnline); err == nil {
		t.Error("expected error from PublishStatus")
	}
	if len(f.Messages) != 0 {
		t.Errorf("expected nothing recorded on error, got %d", len(f.Messages))
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishStatus(logic.LinkOnline)
	f.Close()
	f.Reset()
	if f.Closed || len(f.Statuses) != 0 || f.LastStatus() != "" {
		t.Errorf("Reset left state behind: %+v", f)
	}
}

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	connected  bool
	published  []Message
	publishErr error
	timeout    bool
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr == nil && !c.timeout {
		c.published = append(c.published, Message{Topic: topic, Payload: payload.(string), QoS: qos, Retained: retained})
	}
	return &fakeToken{err: c.publishErr, timeout: c.timeout}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newPublisherWithClient(client, 10, nil)

	if err := p.PublishSensors(testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishStatus(logic.LinkOnline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.published) != 6 {
		t.Fatalf("published %d messages, want 6", len(client.published))
	}
	last := client.published[5]
	if last.Topic != TopicStatus || last.QoS != 1 || !last.Retained {
		t.Errorf("status publish = %+v", last)
	}
	if p.Buffered() != 0 {
		t.Errorf("buffered = %d, want 0", p.Buffered())
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	client := &fakeClient{}
	p := newPublisherWithClient(client, 10, nil)

	p.PublishOutputs(logic.Outputs{HumidifierPWM: 1, FanPWM: 2, LEDPWM: 3, PumpPWM: 4})
	p.PublishStatus(logic.LinkOffline)
	if len(client.published) != 0 {
		t.Fatalf("published %d messages while disconnected", len(client.published))
	}
	if p.Buffered() != 5 {
		t.Fatalf("buffered = %d, want 5", p.Buffered())
	}

	client.mu.Lock()
	client.connected = true
	client.mu.Unlock()
	p.flush()

	if p.Buffered() != 0 {
		t.Errorf("buffered after flush = %d", p.Buffered())
	}
	if len(client.published) != 5 {
		t.Fatalf("replayed %d messages, want 5", len(client.published))
	}
	if client.published[0].Payload != "1" || client.published[4].Payload != "OFFLINE" {
		t.Errorf("replay out of order: %+v", client.published)
	}
}

func TestRealPublisherBufferDropsOldest(t *testing.T) {
	client := &fakeClient{}
	p := newPublisherWithClient(client, 3, nil)
	for i := 0; i < 2; i++ {
		p.PublishOutputs(logic.Outputs{PumpPWM: i})
	}
	if p.Buffered() != 3 {
		t.Fatalf("buffered = %d, want capacity 3", p.Buffered())
	}
	client.connected = true
	p.flush()
	if client.published[2].Topic != "greenhouse/actuators/pump_pwm" || client.published[2].Payload != "1" {
		t.Errorf("newest message lost: %+v", client.published)
	}
}

func TestRealPublisherErrors(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("not authorized")}
	p := newPublisherWithClient(client, 10, nil)
	if err := p.PublishStatus(logic.LinkOnline); err == nil {
		t.Error("expected publish error")
	}

	client.publishErr = nil
	client.timeout = true
	err := p.PublishOutputs(logic.Outputs{})
	if !errors.Is(err, ErrPublishTimeout) {
		t.Errorf("expected ErrPublishTimeout, got %v", err)
	}
}

func TestRealPublisherClose(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newPublisherWithClient(client, 10, nil)
	if !p.IsConnected() {
		t.Fatal("expected connected")
	}
	p.Close()
	if p.IsConnected() {
		t.Error("expected disconnected after Close")
	}
}

func TestNewRealPublisherRequiresBroker(t *testing.T) {
	if _, err := NewRealPublisher(Options{}, nil); err == nil {
		t.Error("expected error for empty broker")
	}
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ Publisher        = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
)
