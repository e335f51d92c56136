package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestMetricName(t *testing.T) {
	tests := map[string]string{
		"jobs.processed":        "jobs.processed",
		"  consumer cycle  ":    "consumer_cycle",
		"queue/dead letter":     "queue_dead_letter",
		"..analytics..gauge..":  "analytics.gauge",
		"":                      "",
		"   ":                   "",
	}
	for in, want := range tests {
		if got := metricName(in); got != want {
			t.Errorf("metricName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientLine(t *testing.T) {
	c := &Client{prefix: "brandpulse", global: map[string]string{"env": "prod", "service": "api"}}

	tests := []struct {
		name  string
		value string
		kind  string
		tags  map[string]string
		want  string
	}{
		{
			name: "jobs.processed", value: "1", kind: "c",
			tags: map[string]string{"job_type": "CLEANUP", " ": "dropped"},
			want: "brandpulse.jobs.processed:1|c|#env:prod,job_type:CLEANUP,service:api",
		},
		{
			name: "analytics.average_positioning", value: "2.5", kind: "g",
			tags: map[string]string{"env": "staging"},
			want: "brandpulse.analytics.average_positioning:2.5|g|#env:staging,service:api",
		},
		{name: "  ", value: "1", kind: "c", want: ""},
	}
	for _, tt := range tests {
		if got := c.line(tt.name, tt.value, tt.kind, tt.tags); got != tt.want {
			t.Errorf("line(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	bare := &Client{}
	if got := bare.line("x", "3", "ms", nil); got != "x:3|ms" {
		t.Errorf("line without prefix or tags = %q", got)
	}
}

func TestClientWritesDatagrams(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{prefix: "bp", conn: clientConn, global: map[string]string{}}
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		got <- string(buf[:n])
	}()

	c.Timing("consumer.cycle", 1500*time.Microsecond, nil)
	select {
	case line := <-got:
		if line != "bp.consumer.cycle:1.5|ms" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("no datagram written")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{conn: clientConn}
	if !c.Enabled() {
		t.Fatal("expected enabled client with an open connection")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected disabled client after Close")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	c.Count("after.close", 1, nil)

	var nilClient *Client
	nilClient.Gauge("x", 1, nil)
	if nilClient.Enabled() || nilClient.Close() != nil {
		t.Fatal("nil client should be a disabled no-op")
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Config{Enabled: true, Address: "   ", Prefix: ".brandpulse."})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected client to stay disabled without an address")
	}
	if c.prefix != "brandpulse" {
		t.Fatalf("prefix = %q", c.prefix)
	}

	_, err = NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil || !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
