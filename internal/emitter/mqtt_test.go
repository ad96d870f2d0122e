package emitter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/andresmejia3/biomech/internal/types"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []message
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message{topic, qos, retained, payload.([]byte)})
	return &doneToken{err: f.err}
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) sent() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.messages...)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSampleRetainedPublishes(t *testing.T) {
	client := &fakeClient{connected: true}
	e := NewMQTTEmitter(client, "lab1", quiet())

	var a types.JointAngles
	a.Set(types.LeftKneeAngle, 92.5)
	e.SampleRetained(types.JointAngleSample{Timestamp: time.Unix(100, 0).UTC(), Angles: a})

	sent := client.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].topic != "lab1/samples" || sent[0].qos != 0 || sent[0].retained {
		t.Errorf("unexpected publish %+v", sent[0])
	}
	var got types.JointAngleSample
	if err := json.Unmarshal(sent[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if v, ok := got.Angles.Get(types.LeftKneeAngle); !ok || v != 92.5 {
		t.Errorf("payload angle = %v (%v)", v, ok)
	}
	if _, ok := got.Angles.Get(types.RightKneeAngle); ok {
		t.Error("absent angle must stay absent on the wire")
	}

	deadline := time.Now().Add(time.Second)
	for e.Stats().Published["lab1/samples"] != 1 {
		if time.Now().After(deadline) {
			t.Fatal("publish was never counted")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDisconnectedClientCountsErrors(t *testing.T) {
	client := &fakeClient{connected: false}
	e := NewMQTTEmitter(client, "lab1", quiet())

	e.SampleRetained(types.JointAngleSample{})
	if err := e.PublishSession(types.SessionSummary{ID: "x"}); err == nil {
		t.Error("expected error while disconnected")
	}
	if len(client.sent()) != 0 {
		t.Error("nothing should be sent while disconnected")
	}
	if e.Stats().Errors != 2 {
		t.Errorf("expected 2 errors, got %d", e.Stats().Errors)
	}
}

func TestPublishStateAndSession(t *testing.T) {
	client := &fakeClient{connected: true}
	e := NewMQTTEmitter(client, "lab1", quiet())

	if err := e.PublishState("recording", types.SessionMeta{Name: "squat", Type: "strength"}); err != nil {
		t.Fatal(err)
	}
	if err := e.PublishSession(types.SessionSummary{ID: "abc", Name: "squat", SampleCount: 3}); err != nil {
		t.Fatal(err)
	}

	sent := client.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].topic != "lab1/state" || !sent[0].retained {
		t.Errorf("state should be retained on lab1/state, got %+v", sent[0])
	}
	if sent[1].topic != "lab1/sessions" || sent[1].qos != 1 {
		t.Errorf("unexpected session publish %+v", sent[1])
	}

	client.err = errors.New("broker said no")
	if err := e.PublishSession(types.SessionSummary{ID: "def"}); err == nil {
		t.Error("expected broker error to surface")
	}
}
