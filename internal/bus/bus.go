// Package bus implements the programmable, deterministic message bus that
// sits between simulated cluster nodes: an ordered list of network rules
// decides whether each sent message is passed, dropped, delayed, or
// probabilistically dropped, and delayed messages are scheduled onto a
// tick-indexed priority queue for later delivery.
//
// Grounded on the teacher's pkg/testing/simulator.go Event/EventHeap
// (container/heap keyed by a delivery time) and pkg/simulation/network.go's
// rule matching, converted here from wall-clock delivery to integer ticks.
package bus

import (
	"container/heap"

	"github.com/vzdtic/raftsim/internal/prng"
)

// event is one scheduled delayed delivery, ordered by DeliveryTick.
type event struct {
	deliveryTick int64
	seq          uint64 // tie-breaker, preserves send order at equal ticks
	msg          Message
}

// eventHeap is a min-heap of events ordered by deliveryTick, then seq.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].deliveryTick != h[j].deliveryTick {
		return h[i].deliveryTick < h[j].deliveryTick
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*event))
}
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bus is the deterministic, programmable network between cluster members.
// It is driven exclusively by Tick and is not safe for concurrent use.
type Bus struct {
	rules   []Rule
	pending eventHeap
	inbox   map[string][]Message
	rng     *prng.Source
	seq     uint64
	tick    int64
}

// New returns an empty Bus using rng for DropProb decisions.
func New(rng *prng.Source) *Bus {
	b := &Bus{
		inbox: make(map[string][]Message),
		rng:   rng,
	}
	heap.Init(&b.pending)
	return b
}

// SetRules replaces the ordered rule list wholesale.
func (b *Bus) SetRules(rules []Rule) {
	b.rules = append([]Rule(nil), rules...)
}

// AddRule appends a rule to the end of the ordered list.
func (b *Bus) AddRule(r Rule) {
	b.rules = append(b.rules, r)
}

// RemoveRule deletes the first rule equal to r from the ordered list,
// reporting whether one was found. Rules are plain comparable values, so
// equality here means an exact field-by-field match, not just an
// overlapping match pattern.
func (b *Bus) RemoveRule(r Rule) bool {
	for i, existing := range b.rules {
		if existing == r {
			b.rules = append(b.rules[:i], b.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Reset clears every rule. Used by the model facade's clear_partitions,
// which intentionally drops all programmed conditions, not just
// partition-shaped ones, for compatibility with the facade's coarse
// partition model.
func (b *Bus) Reset() {
	b.rules = nil
}

// Rules returns a copy of the currently installed ordered rule list, for
// callers that need to introspect network state (e.g. a REPL's "dump
// net").
func (b *Bus) Rules() []Rule {
	return append([]Rule(nil), b.rules...)
}

// resolve evaluates the rule list against msg and returns the action that
// applies, falling through past DropProb misses to later rules, and
// defaulting to Pass when nothing matches.
func (b *Bus) resolve(msg Message) Action {
	for _, r := range b.rules {
		if !r.Matches(msg) {
			continue
		}
		switch r.Action.Kind {
		case ActionDropProb:
			if b.rng.Chance(r.Action.P) {
				return Drop()
			}
			continue
		default:
			return r.Action
		}
	}
	return Pass()
}

// Send evaluates msg against the rule list and either enqueues it for
// delivery this tick, schedules a delayed delivery, or discards it.
func (b *Bus) Send(msg Message) {
	action := b.resolve(msg)
	switch action.Kind {
	case ActionDrop:
		return
	case ActionDelay:
		b.schedule(msg, b.tick+int64(action.Ticks))
	default: // ActionPass
		b.schedule(msg, b.tick)
	}
}

func (b *Bus) schedule(msg Message, deliveryTick int64) {
	b.seq++
	heap.Push(&b.pending, &event{deliveryTick: deliveryTick, seq: b.seq, msg: msg})
}

// Tick advances the bus to tick n, moving every event whose deliveryTick
// has arrived into its recipient's inbox in scheduled order.
func (b *Bus) Tick(n int64) {
	b.tick = n
	for b.pending.Len() > 0 && b.pending[0].deliveryTick <= n {
		ev := heap.Pop(&b.pending).(*event)
		b.inbox[ev.msg.To] = append(b.inbox[ev.msg.To], ev.msg)
	}
}

// Drain returns and clears the FIFO inbox for nodeID.
func (b *Bus) Drain(nodeID string) []Message {
	msgs := b.inbox[nodeID]
	delete(b.inbox, nodeID)
	return msgs
}

// Pending reports how many messages are still in flight (scheduled but not
// yet delivered), useful for settle-buffer bookkeeping.
func (b *Bus) Pending() int {
	return b.pending.Len()
}
