package bus

import (
	"testing"

	"github.com/vzdtic/raftsim/internal/prng"
)

func TestPassDeliversImmediately(t *testing.T) {
	b := New(prng.New(1))
	b.Send(Message{From: "n1", To: "n2", Type: "vote"})
	b.Tick(0)
	msgs := b.Drain("n2")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestDropDiscardsMessage(t *testing.T) {
	b := New(prng.New(1))
	b.SetRules([]Rule{{From: "n1", To: "n2", Action: Drop()}})
	b.Send(Message{From: "n1", To: "n2", Type: "vote"})
	b.Tick(0)
	if len(b.Drain("n2")) != 0 {
		t.Fatal("expected message to be dropped")
	}
}

func TestDelaySchedulesLaterDelivery(t *testing.T) {
	b := New(prng.New(1))
	b.SetRules([]Rule{{Action: Delay(3)}})
	b.Send(Message{From: "n1", To: "n2"})

	b.Tick(0)
	if len(b.Drain("n2")) != 0 {
		t.Fatal("message delivered too early")
	}
	b.Tick(2)
	if len(b.Drain("n2")) != 0 {
		t.Fatal("message delivered too early")
	}
	b.Tick(3)
	if len(b.Drain("n2")) != 1 {
		t.Fatal("message not delivered at scheduled tick")
	}
}

func TestDropProbFallsThrough(t *testing.T) {
	b := New(prng.New(1))
	b.SetRules([]Rule{
		{Action: DropProb(0.0)}, // never drops, must fall through
		{Action: Pass()},
	})
	b.Send(Message{From: "n1", To: "n2"})
	b.Tick(0)
	if len(b.Drain("n2")) != 1 {
		t.Fatal("DropProb(0.0) should fall through to the Pass rule")
	}
}

func TestDropProbAlwaysDrops(t *testing.T) {
	b := New(prng.New(1))
	b.SetRules([]Rule{{Action: DropProb(1.0)}})
	b.Send(Message{From: "n1", To: "n2"})
	b.Tick(0)
	if len(b.Drain("n2")) != 0 {
		t.Fatal("DropProb(1.0) should always drop")
	}
}

func TestFIFOOrderPreserved(t *testing.T) {
	b := New(prng.New(1))
	b.Send(Message{From: "n1", To: "n2", Type: "a"})
	b.Send(Message{From: "n1", To: "n2", Type: "b"})
	b.Tick(0)
	msgs := b.Drain("n2")
	if len(msgs) != 2 || msgs[0].Type != "a" || msgs[1].Type != "b" {
		t.Fatalf("expected FIFO order [a b], got %+v", msgs)
	}
}

// TestDropProbFallThroughBatchStatistics is S5: rules
// [DropProb(0.5), Delay(3)] from n1 to n2. Of 1000 sent messages, roughly
// half should be dropped by the first rule; every survivor must fall
// through to the second rule and be delivered with exactly a 3-tick
// delay, never more or less.
func TestDropProbFallThroughBatchStatistics(t *testing.T) {
	const (
		total = 1000
		delay = 3
	)
	b := New(prng.New(1))
	b.SetRules([]Rule{
		{From: "n1", To: "n2", Action: DropProb(0.5)},
		{From: "n1", To: "n2", Action: Delay(delay)},
	})
	for i := 0; i < total; i++ {
		b.Send(Message{From: "n1", To: "n2", Type: "probe"})
	}

	delivered := 0
	for tick := int64(0); tick <= delay; tick++ {
		b.Tick(tick)
		got := b.Drain("n2")
		if tick < delay && len(got) != 0 {
			t.Fatalf("tick %d: delivered %d messages before the 3-tick delay elapsed", tick, len(got))
		}
		if tick == delay {
			delivered = len(got)
		}
	}
	if extra := b.Drain("n2"); len(extra) != 0 {
		t.Fatalf("unexpected late delivery of %d messages after tick %d", len(extra), delay)
	}

	dropped := total - delivered
	if dropped < total/4 || dropped > total*3/4 {
		t.Fatalf("drop count %d out of expected ~50%% range for %d sends", dropped, total)
	}
}

func TestResetClearsRules(t *testing.T) {
	b := New(prng.New(1))
	b.SetRules([]Rule{{Action: Drop()}})
	b.Reset()
	b.Send(Message{From: "n1", To: "n2"})
	b.Tick(0)
	if len(b.Drain("n2")) != 1 {
		t.Fatal("expected default Pass after Reset")
	}
}
