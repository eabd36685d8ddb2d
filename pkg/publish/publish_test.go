// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// ============================================================
// Fakes
// ============================================================

type fakePublisher struct {
	keys     []string
	payloads [][]byte
	err      error
	closed   int
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(_ context.Context, key string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed++
	return nil
}

type fakeRedis struct {
	published map[string][][]byte
	lists     map[string][][]byte
	trims     map[string]int64
	pubErr    error
	closed    bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		published: map[string][][]byte{},
		lists:     map[string][][]byte{},
		trims:     map[string]int64{},
	}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.pubErr != nil {
		cmd.SetErr(f.pubErr)
		return cmd
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([][]byte{v.([]byte)}, f.lists[key]...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	if int64(len(f.lists[key])) > stop+1 {
		f.lists[key] = f.lists[key][start : stop+1]
	}
	f.trims[key] = stop
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTT struct {
	topics       []string
	qos          []byte
	payloads     [][]byte
	err          error
	hang         bool
	disconnected bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.qos = append(f.qos, qos)
	f.payloads = append(f.payloads, payload.([]byte))
	return newFakeToken(f.err, !f.hang)
}

func (f *fakeMQTT) Disconnect(uint) { f.disconnected = true }

type fakeKafka struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

// ============================================================
// Writer Tests
// ============================================================

func TestWriter_EmitAndClose(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWriter(pub, "run-1", quietLogger())

	r := dl24.NewReading(1700000000, 12.0, 2000, 150, 30)
	r.SetExternalTemp(21.0)
	if err := w.Emit(r); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := w.Emit(dl24.NewReading(1700000001, 12.0, 0, 160, 30)); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	avg := 21.0
	if err := w.Close(session.Summary{State: session.StateStopped, AverageTemp: &avg, Samples: 1}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = w.Close(session.Summary{})

	if len(pub.payloads) != 3 || pub.closed != 1 {
		t.Fatalf("payloads = %d, closed = %d", len(pub.payloads), pub.closed)
	}
	for _, k := range pub.keys {
		if k != "run-1" {
			t.Errorf("key = %q, want session id", k)
		}
	}

	var rec map[string]interface{}
	if err := json.Unmarshal(pub.payloads[0], &rec); err != nil {
		t.Fatal(err)
	}
	if rec["session"] != "run-1" || rec["voltage"] != 12.0 || rec["ext_temp"] != 21.0 || rec["resistance"] != 6.0 {
		t.Errorf("record = %v", rec)
	}

	var second map[string]interface{}
	_ = json.Unmarshal(pub.payloads[1], &second)
	if _, ok := second["resistance"]; ok {
		t.Errorf("resistance should be omitted at zero current: %v", second)
	}

	var sum Summary
	if err := json.Unmarshal(pub.payloads[2], &sum); err != nil {
		t.Fatal(err)
	}
	if sum.State != "stopped" || sum.AverageTemp == nil || *sum.AverageTemp != 21.0 {
		t.Errorf("summary = %+v", sum)
	}
	if w.Published() != 3 {
		t.Errorf("Published() = %d", w.Published())
	}
}

func TestWriter_FailuresAreNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	w := NewWriter(pub, "run-2", quietLogger())

	var reported []string
	w.OnFailure = func(sink string, err error) { reported = append(reported, sink) }

	for i := 0; i < 3; i++ {
		if err := w.Emit(dl24.NewReading(int64(i), 12.0, 1000, i*10, 30)); err != nil {
			t.Fatalf("Emit returned %v, publishing is best effort", err)
		}
	}
	if w.Failures() != 3 || len(reported) != 3 || reported[0] != "fake" {
		t.Errorf("failures = %d, reported = %v", w.Failures(), reported)
	}
}

func TestWriter_EmitAfterCloseIgnored(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWriter(pub, "run-3", quietLogger())
	_ = w.Close(session.Summary{})
	_ = w.Emit(dl24.NewReading(1, 12.0, 1000, 10, 30))
	if len(pub.payloads) != 1 {
		t.Errorf("only the summary should be published, got %d payloads", len(pub.payloads))
	}
}

// ============================================================
// Broker Tests
// ============================================================

func TestRedis_PublishAndCap(t *testing.T) {
	client := newFakeRedis()
	r := newRedis(client, "dl24_readings", 2)

	for i := 0; i < 3; i++ {
		if err := r.Publish(context.Background(), "abc", []byte{byte('0' + i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	if got := len(client.published["dl24_readings"]); got != 3 {
		t.Errorf("channel messages = %d, want 3", got)
	}
	list := client.lists[ListKey("abc")]
	if len(list) != 2 || string(list[0]) != "2" || string(list[1]) != "1" {
		t.Errorf("list = %q, want newest two", list)
	}
	if client.trims["dl24:abc:readings"] != 1 {
		t.Errorf("trim stop = %d", client.trims["dl24:abc:readings"])
	}

	_ = r.Close()
	if !client.closed {
		t.Error("client not closed")
	}
}

func TestRedis_PublishError(t *testing.T) {
	client := newFakeRedis()
	client.pubErr = errors.New("connection refused")
	r := newRedis(client, "ch", 0)
	if err := r.Publish(context.Background(), "abc", []byte("x")); err == nil {
		t.Error("expected error")
	}
	if len(client.lists) != 0 {
		t.Error("list should not be written when publish fails")
	}
}

func TestMQTT_Publish(t *testing.T) {
	client := &fakeMQTT{}
	m := newMQTT(client, "dl24/readings", 1)

	if err := m.Publish(context.Background(), "abc", []byte("{}")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.topics[0] != "dl24/readings" || client.qos[0] != 1 {
		t.Errorf("topic = %v, qos = %v", client.topics, client.qos)
	}

	client.err = errors.New("not connected")
	if err := m.Publish(context.Background(), "abc", []byte("{}")); err == nil {
		t.Error("expected token error")
	}

	_ = m.Close()
	if !client.disconnected {
		t.Error("client not disconnected")
	}
}

func TestMQTT_PublishTimeout(t *testing.T) {
	m := newMQTT(&fakeMQTT{hang: true}, "t", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Publish(ctx, "abc", []byte("{}")); !errors.Is(err, errMQTTTimeout) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestKafka_Publish(t *testing.T) {
	w := &fakeKafka{}
	k := newKafka(w, "dl24.readings")
	k.now = func() time.Time { return time.Unix(100, 0) }

	if err := k.Publish(context.Background(), "abc", []byte("{}")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "abc" || !w.msgs[0].Time.Equal(time.Unix(100, 0)) {
		t.Errorf("messages = %+v", w.msgs)
	}

	w.err = errors.New("leader not available")
	if err := k.Publish(context.Background(), "abc", []byte("{}")); err == nil {
		t.Error("expected error")
	}

	_ = k.Close()
	if !w.closed {
		t.Error("writer not closed")
	}
}
