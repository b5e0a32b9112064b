package main

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"pushstream-latency/pkg/config"
	"pushstream-latency/pkg/telemetry"
)

type fakeReader struct {
	snapshot telemetry.Snapshot
}

func (f *fakeReader) Snapshot() telemetry.Snapshot { return f.snapshot }

func newTestCLI(reader telemetry.TelemetryReader) (*CLI, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Channel:      "latency",
		PublishDelay: time.Second,
		MaxLatency:   0.5,
		Telemetry:    config.TelemetryConfig{StatusInterval: time.Hour},
	}
	return NewCLI(reader, cfg, log.New(&buf, "", 0)), &buf
}

func TestCLI_PrintStatus(t *testing.T) {
	reader := &fakeReader{snapshot: telemetry.Snapshot{
		MessagesPublished:   1234,
		MessagesReceived:    1200,
		SamplesTotal:        1199,
		AlertsTotal:         3,
		PublisherConnected:  true,
		SubscriberConnected: true,
		LastLatency:         0.012,
		AvgLatency:          0.01,
		P95Latency:          0.02,
		MaxLatency:          0.7,
	}}
	cli, buf := newTestCLI(reader)

	cli.printStatus()
	out := buf.String()

	for _, want := range []string{
		"published=1,234",
		"received=1,200",
		"alerts=3",
		"publisher: true, subscriber: true",
		"last=12.0ms",
		"max=700.0ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected status to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Errors -") {
		t.Errorf("expected no error breakdown without errors, got:\n%s", out)
	}
}

func TestCLI_SkipsUnchangedStatus(t *testing.T) {
	reader := &fakeReader{snapshot: telemetry.Snapshot{MessagesPublished: 1}}
	cli, buf := newTestCLI(reader)

	cli.printStatus()
	first := buf.Len()
	if first == 0 {
		t.Fatal("expected first status to always print")
	}

	cli.printStatus()
	if buf.Len() != first {
		t.Errorf("expected unchanged snapshot to be skipped, got:\n%s", buf.String())
	}

	reader.snapshot.SubscriberConnected = true
	cli.printStatus()
	if buf.Len() == first {
		t.Error("expected connection change to print")
	}
}

func TestCLI_ErrorBreakdown(t *testing.T) {
	reader := &fakeReader{}
	cli, buf := newTestCLI(reader)
	cli.printStatus()

	reader.snapshot.ErrorsTotal = 7
	reader.snapshot.ErrorsByType = map[string]uint64{
		"subscribe":     4,
		"publish":       2,
		"outfile_write": 1,
		"connect":       1,
	}
	cli.printStatus()

	want := "Errors - subscribe=4, publish=2, connect=1"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q, got:\n%s", want, buf.String())
	}
}

func TestCLI_RunStops(t *testing.T) {
	t.Run("context", func(t *testing.T) {
		cli, _ := newTestCLI(&fakeReader{})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- cli.Run(ctx) }()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected nil, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("stop", func(t *testing.T) {
		cli, _ := newTestCLI(&fakeReader{})
		done := make(chan error, 1)
		go func() { done <- cli.Run(context.Background()) }()
		cli.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after Stop")
		}
	})
}
