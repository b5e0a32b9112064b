package latency

import (
	"math"
	"testing"
	"time"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want float64
		ok   bool
	}{
		{"bare probe", "TS:1700000000.000:\r\n", 1700000000.0, true},
		{"millis", "TS:1700000000.123:\r\n", 1700000000.123, true},
		{"embedded in envelope", `{"text":"TS:1700000000.500:"}` + "\r\n", 1700000000.5, true},
		{"first marker wins", "TS:1.5:TS:2.5:\r\n", 1.5, true},
		{"plain text", "hello world\r\n", 0, false},
		{"empty", "", 0, false},
		{"missing fraction", "TS:1700000000:\r\n", 0, false},
		{"missing trailing colon", "TS:1700000000.000\r\n", 0, false},
		{"signed", "TS:-1.5:\r\n", 0, false},
		{"lowercase marker", "ts:1.5:\r\n", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTimestamp([]byte(tt.msg))
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("under threshold", func(t *testing.T) {
		send, recv := 1700000000.000, 1700000000.300
		s := Evaluate(send, recv, 0.5)
		if s.Latency != recv-send {
			t.Errorf("expected latency to be receive-send, got %v", s.Latency)
		}
		if math.Abs(s.Latency-0.3) > 1e-6 {
			t.Errorf("expected latency ~0.300, got %v", s.Latency)
		}
		if s.Class != ClassOK {
			t.Errorf("expected OK, got %s", s.Class)
		}
	})

	t.Run("over threshold", func(t *testing.T) {
		s := Evaluate(1700000000.000, 1700000000.900, 0.5)
		if math.Abs(s.Latency-0.9) > 1e-6 {
			t.Errorf("expected latency ~0.900, got %v", s.Latency)
		}
		if s.Class != ClassAlert || !s.Alert() {
			t.Errorf("expected ALERT, got %s", s.Class)
		}
	})

	t.Run("threshold is OK", func(t *testing.T) {
		s := Evaluate(10, 10.5, 0.5)
		if s.Latency != 0.5 {
			t.Fatalf("expected exact 0.5, got %v", s.Latency)
		}
		if s.Class != ClassOK {
			t.Errorf("expected threshold itself to be OK, got %s", s.Class)
		}
	})

	t.Run("negative latency passes through", func(t *testing.T) {
		s := Evaluate(100.25, 100, 0.5)
		if s.Latency != -0.25 {
			t.Errorf("expected -0.25, got %v", s.Latency)
		}
		if s.Class != ClassOK {
			t.Errorf("expected OK for negative latency, got %s", s.Class)
		}
	})

	t.Run("zero threshold", func(t *testing.T) {
		if Evaluate(1, 1, 0).Class != ClassOK {
			t.Error("expected zero latency at zero threshold to be OK")
		}
		if Evaluate(1, 1.001, 0).Class != ClassAlert {
			t.Error("expected positive latency at zero threshold to alert")
		}
	})
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	if got := FormatTimestamp(ts); got != "TS:1700000000.123:" {
		t.Errorf("expected TS:1700000000.123:, got %s", got)
	}

	ts = time.Unix(1700000000, 7*int64(time.Millisecond))
	if got := FormatTimestamp(ts); got != "TS:1700000000.007:" {
		t.Errorf("expected zero-padded millis, got %s", got)
	}
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 250*int64(time.Millisecond))
	got, ok := ExtractTimestamp([]byte(FormatTimestamp(ts) + "\r\n"))
	if !ok {
		t.Fatal("expected formatted timestamp to be extractable")
	}
	if got != 1700000000.25 {
		t.Errorf("expected 1700000000.25, got %v", got)
	}
}

func TestSeconds(t *testing.T) {
	got := Seconds(time.Unix(1700000000, 300*int64(time.Millisecond)))
	if math.Abs(got-1700000000.3) > 1e-6 {
		t.Errorf("expected 1700000000.3, got %v", got)
	}
}

func TestSample_Duration(t *testing.T) {
	s := Sample{Latency: 0.25}
	if s.Duration() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", s.Duration())
	}
}

func TestFormatLatency(t *testing.T) {
	tests := map[float64]string{
		0.3:     "0.3",
		-0.015:  "-0.015",
		2:       "2",
		1.25e-7: "0.000000125",
	}
	for in, want := range tests {
		if got := FormatLatency(in); got != want {
			t.Errorf("FormatLatency(%v): expected %s, got %s", in, want, got)
		}
	}
}

func TestClass_String(t *testing.T) {
	if ClassOK.String() != "OK" || ClassAlert.String() != "ALERT" {
		t.Errorf("unexpected class names %s/%s", ClassOK, ClassAlert)
	}
}
