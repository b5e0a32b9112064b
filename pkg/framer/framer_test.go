package framer

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func collect(f *Framer) []string {
	var out []string
	for msg := range f.Messages() {
		out = append(out, msg.String())
	}
	return out
}

func frameAll(chunks []string) []string {
	f := New(WithMaxBuffered(0))
	var out []string
	for _, c := range chunks {
		if _, err := f.Write([]byte(c)); err != nil {
			panic(err)
		}
		out = append(out, collect(f)...)
	}
	return out
}

func TestFramer_SplitTimestampAcrossChunks(t *testing.T) {
	f := New()

	f.Write([]byte("TS:170000"))
	if got := collect(f); len(got) != 0 {
		t.Fatalf("expected no message before terminator, got %q", got)
	}
	if f.Buffered() != len("TS:170000") {
		t.Errorf("expected partial chunk to stay buffered, got %d bytes", f.Buffered())
	}

	f.Write([]byte("0000.000:\r\n"))
	got := collect(f)
	want := []string{"TS:1700000000.000:\r\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if f.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", f.Buffered())
	}
}

func TestFramer_MultipleMessagesInOneChunk(t *testing.T) {
	f := New()
	f.Write([]byte("a\r\nb\r\nc"))

	got := collect(f)
	want := []string{"a\r\n", "b\r\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if f.Buffered() != 1 {
		t.Errorf("expected tail 'c' to remain, got %d bytes", f.Buffered())
	}

	f.Write([]byte("\r\n"))
	if got := collect(f); !reflect.DeepEqual(got, []string{"c\r\n"}) {
		t.Fatalf("expected tail to complete, got %q", got)
	}
}

func TestFramer_TerminatorSplitAcrossChunks(t *testing.T) {
	got := frameAll([]string{"hello\r", "\nworld\r", "\n"})
	want := []string{"hello\r\n", "world\r\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFramer_EmptyChunk(t *testing.T) {
	f := New()
	n, err := f.Write(nil)
	if n != 0 || err != nil {
		t.Fatalf("expected no-op write, got n=%d err=%v", n, err)
	}
	if got := collect(f); len(got) != 0 {
		t.Fatalf("expected no messages, got %q", got)
	}
}

func TestFramer_NoTerminatorGrowsBuffer(t *testing.T) {
	f := New()
	for i := 0; i < 10; i++ {
		f.Write([]byte("abc"))
		if got := collect(f); len(got) != 0 {
			t.Fatalf("unexpected message %q", got)
		}
	}
	if f.Buffered() != 30 {
		t.Errorf("expected 30 buffered bytes, got %d", f.Buffered())
	}
}

func TestFramer_BareLineFeedIsNotATerminator(t *testing.T) {
	got := frameAll([]string{"one\ntwo\r\n"})
	want := []string{"one\ntwo\r\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFramer_EarlyBreakKeepsRemainder(t *testing.T) {
	f := New()
	f.Write([]byte("1\r\n2\r\n3\r\n"))

	for msg := range f.Messages() {
		if msg.String() != "1\r\n" {
			t.Fatalf("expected first message, got %q", msg)
		}
		break
	}

	got := collect(f)
	want := []string{"2\r\n", "3\r\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFramer_YieldedMessagesSurviveLaterWrites(t *testing.T) {
	f := New()
	f.Write([]byte("first\r\nsec"))
	msgs := collect(f)

	f.Write([]byte("ond\r\n"))
	collect(f)

	if msgs[0] != "first\r\n" {
		t.Fatalf("yielded message was modified: %q", msgs[0])
	}
}

func TestFramer_Overflow(t *testing.T) {
	t.Run("unterminated tail over limit", func(t *testing.T) {
		f := New(WithMaxBuffered(8))
		if _, err := f.Write([]byte("12345678")); err != nil {
			t.Fatalf("expected no error at limit, got %v", err)
		}
		_, err := f.Write([]byte("9"))
		if !errors.Is(err, ErrBufferOverflow) {
			t.Fatalf("expected ErrBufferOverflow, got %v", err)
		}
	})

	t.Run("complete messages do not count", func(t *testing.T) {
		f := New(WithMaxBuffered(8))
		if _, err := f.Write([]byte("0123456789\r\nab")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := collect(f); len(got) != 1 {
			t.Fatalf("expected one message, got %q", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := New(WithMaxBuffered(0))
		big := make([]byte, 4*DefaultMaxBuffered)
		if _, err := f.Write(big); err != nil {
			t.Fatalf("expected unbounded framer to accept %d bytes, got %v", len(big), err)
		}
	})
}

func TestMessage_Payload(t *testing.T) {
	m := Message("TS:1.2:\r\n")
	if string(m.Payload()) != "TS:1.2:" {
		t.Errorf("expected payload without terminator, got %q", m.Payload())
	}
}

// Framing must not depend on where the transport happened to cut the stream.
func TestFramer_ChunkBoundaryInvariance(t *testing.T) {
	stream := "TS:1700000000.000:\r\nhello world\r\n\r\nTS:1700000000.123:\r\n{\"x\":1}\r\ntail"
	want := frameAll([]string{stream})

	t.Run("every two-way split", func(t *testing.T) {
		for i := 0; i <= len(stream); i++ {
			got := frameAll([]string{stream[:i], stream[i:]})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("split at %d: expected %q, got %q", i, want, got)
			}
		}
	})

	t.Run("every three-way split", func(t *testing.T) {
		for i := 0; i <= len(stream); i++ {
			for j := i; j <= len(stream); j++ {
				got := frameAll([]string{stream[:i], stream[i:j], stream[j:]})
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("split at %d,%d: expected %q, got %q", i, j, want, got)
				}
			}
		}
	})

	t.Run("random partitions", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 500; round++ {
			var chunks []string
			rest := stream
			for len(rest) > 0 {
				n := rng.Intn(len(rest)) + 1
				chunks = append(chunks, rest[:n])
				rest = rest[n:]
			}
			got := frameAll(chunks)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round %d chunks %q: expected %q, got %q", round, chunks, want, got)
			}
		}
	})
}

func BenchmarkFramer_Write(b *testing.B) {
	chunk := []byte("TS:1700000000.000:\r\nTS:1700000000.001:\r\nTS:17000")
	f := New()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		f.Write(chunk)
		for range f.Messages() {
		}
	}
}
