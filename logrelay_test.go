package logrelay

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/lcx/logrelay/config"
	"github.com/lcx/logrelay/record"
	"github.com/lcx/logrelay/sink"
	"github.com/lcx/logrelay/spool"
)

// bufferFactory builds console sinks writing into a shared buffer so
// tests can observe what reached the destination.
type bufferFactory struct {
	out *bytes.Buffer
}

func (bufferFactory) Type() string    { return "buffer" }
func (bufferFactory) ConfigType() any { return &sink.ConsoleSinkConfig{} }

func (f bufferFactory) Setup(name string, _ any) (sink.Sink, error) {
	return sink.NewConsoleSinkTo(name, f.out), nil
}

// brokenSink always fails delivery.
type brokenSink struct {
	name string

	mu       sync.Mutex
	attempts int
}

func (s *brokenSink) Name() string { return s.name }

func (s *brokenSink) Deliver(*record.Record) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return errors.New("permanently down")
}

func (s *brokenSink) Close() error { return nil }

type brokenFactory struct {
	sink *brokenSink
}

func (brokenFactory) Type() string    { return "broken" }
func (brokenFactory) ConfigType() any { return &sink.ConsoleSinkConfig{} }

func (f brokenFactory) Setup(string, any) (sink.Sink, error) {
	return f.sink, nil
}

// memoryFacade captures rollover notifications.
type memoryFacade struct {
	mu   sync.Mutex
	msgs []string
}

func (f *memoryFacade) GetChannel(string) spool.Channel { return f }

func (f *memoryFacade) EmitFatal(msg string, _ error) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func TestRelayEndToEnd(t *testing.T) {
	var out bytes.Buffer
	registry := sink.NewRegistry()
	if err := registry.Register(bufferFactory{out: &out}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Sinks = []config.SinkSpec{{Type: "buffer"}}
	cfg.WakeIntervalMillSec = 10

	relay, err := NewWithOptions(cfg, Options{Registry: registry})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	if err := relay.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if !relay.Capture(record.InfoLevel, "request handled", "method", "GET", "status", "200") {
		t.Fatal("capture rejected")
	}
	relay.Flush()

	output := out.String()
	if !strings.Contains(output, "request handled") {
		t.Errorf("output missing message: %s", output)
	}
	if !strings.Contains(output, `"method":"GET"`) {
		t.Errorf("output missing field: %s", output)
	}

	if err := relay.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if relay.BufferedCount() != 0 {
		t.Errorf("buffered = %d after close, want 0", relay.BufferedCount())
	}
}

func TestRelayFailoverWithNotification(t *testing.T) {
	var out bytes.Buffer
	broken := &brokenSink{name: "primary"}
	facade := &memoryFacade{}

	registry := sink.NewRegistry()
	if err := registry.Register(brokenFactory{sink: broken}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(bufferFactory{out: &out}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.RolloverNotificationTarget = "ops"
	cfg.WakeIntervalMillSec = 10
	cfg.Sinks = []config.SinkSpec{
		{Type: "broken", Name: "primary"},
		{Type: "buffer", Name: "fallback"},
	}

	relay, err := NewWithOptions(cfg, Options{Registry: registry, Facade: facade})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	if err := relay.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer relay.Close()

	relay.Capture(record.ErrorLevel, "important event")
	relay.Flush()

	if !strings.Contains(out.String(), "important event") {
		t.Errorf("fallback did not receive the record: %s", out.String())
	}

	facade.mu.Lock()
	defer facade.mu.Unlock()
	if len(facade.msgs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(facade.msgs))
	}
	if !strings.Contains(facade.msgs[0], "primary") {
		t.Errorf("notification %q does not name the failed sink", facade.msgs[0])
	}
}

func TestRelayEnqueueAfterCloseIsDropped(t *testing.T) {
	relay, err := New(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := relay.Close(); err != nil {
		t.Fatal(err)
	}

	if relay.Enqueue(record.New(record.InfoLevel, "late")) {
		t.Error("enqueue accepted after close")
	}
}

func TestRelayCloseIsIdempotent(t *testing.T) {
	relay, err := New(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.Activate(); err != nil {
		t.Fatal(err)
	}

	if err := relay.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := relay.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRelayCloseWithoutActivate(t *testing.T) {
	relay, err := New(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.Close(); err != nil {
		t.Fatalf("close without activate: %v", err)
	}
}

func TestActivateServesMetricsEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsListenAddr = "127.0.0.1:0"

	relay, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := relay.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer relay.Close()

	addr := relay.MetricsAddr()
	if addr == nil {
		t.Fatal("no metrics address after activate")
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "logrelay_records_buffered") {
		t.Error("scrape output is missing the buffered gauge")
	}
}

func TestNewRejectsUnknownSinkType(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = []config.SinkSpec{{Type: "carrier-pigeon"}}

	if _, err := New(cfg); err == nil {
		t.Error("unknown sink type accepted")
	}
}

func TestNewWithNilConfigUsesDefaults(t *testing.T) {
	relay, err := New(nil)
	if err != nil {
		t.Fatalf("new with nil config: %v", err)
	}
	defer relay.Close()

	if relay.BufferedCount() != 0 {
		t.Errorf("buffered = %d, want 0", relay.BufferedCount())
	}
}
