package cluster

import (
	"testing"

	"github.com/vzdtic/raftsim/internal/bus"
	"github.com/vzdtic/raftsim/internal/prng"
)

type recordingNode struct {
	id        string
	ticks     []int64
	messages  []bus.Message
	tickOrder *[]string
}

func (n *recordingNode) ID() string { return n.id }
func (n *recordingNode) OnTick(tick int64) {
	n.ticks = append(n.ticks, tick)
	*n.tickOrder = append(*n.tickOrder, "tick:"+n.id)
}
func (n *recordingNode) OnMessage(msg bus.Message) {
	n.messages = append(n.messages, msg)
	*n.tickOrder = append(*n.tickOrder, "msg:"+n.id)
}

func TestStepOrdersTicksBeforeMessages(t *testing.T) {
	b := bus.New(prng.New(1))
	d := New(b)

	var order []string
	n1 := &recordingNode{id: "n1", tickOrder: &order}
	n2 := &recordingNode{id: "n2", tickOrder: &order}
	if err := d.Register(n1); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(n2); err != nil {
		t.Fatal(err)
	}

	b.Send(bus.Message{From: "n2", To: "n1", Type: "ping"})
	d.Step()

	want := []string{"tick:n1", "tick:n2", "msg:n1"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestCrashedNodeSkipsStepsButKeepsInbox(t *testing.T) {
	b := bus.New(prng.New(1))
	d := New(b)

	var order []string
	n1 := &recordingNode{id: "n1", tickOrder: &order}
	_ = d.Register(n1)

	if err := d.Crash("n1"); err != nil {
		t.Fatal(err)
	}
	b.Send(bus.Message{From: "n2", To: "n1", Type: "ping"})
	d.Step()
	if len(n1.ticks) != 0 || len(n1.messages) != 0 {
		t.Fatal("crashed node should not be stepped")
	}

	if err := d.Recover("n1"); err != nil {
		t.Fatal(err)
	}
	d.Step()
	if len(n1.messages) != 1 {
		t.Fatalf("expected the pre-crash message to be delivered after recovery, got %d", len(n1.messages))
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	b := bus.New(prng.New(1))
	d := New(b)
	var order []string
	n1 := &recordingNode{id: "n1", tickOrder: &order}
	if err := d.Register(n1); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(n1); err == nil {
		t.Fatal("expected error registering duplicate node ID")
	}
}
