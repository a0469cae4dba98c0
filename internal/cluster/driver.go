// Package cluster implements the cluster driver: the single-threaded,
// cooperative tick loop that advances every registered node in a fixed,
// deterministic registry order, and the registry itself.
//
// Grounded on pkg/cluster/membership.go's Manager (mutex-guarded map with a
// version counter), adapted here to drop the join/leave lifecycle the
// teacher's membership model carries (this simulator's node set is fixed at
// construction) and to add an insertion-order slice, since Go map iteration
// order is unspecified and the driver's tick loop must be reproducible.
package cluster

import (
	"fmt"

	"github.com/vzdtic/raftsim/internal/bus"
)

// Handle is what the cluster driver expects of a participating node. The
// raft node type implements this.
type Handle interface {
	ID() string
	OnTick(tick int64)
	OnMessage(msg bus.Message)
}

// Driver owns the registry of participating nodes and steps them, in
// registry order, against a shared Bus.
type Driver struct {
	bus     *bus.Bus
	order   []string
	nodes   map[string]Handle
	crashed map[string]bool
	tick    int64
}

// New returns a Driver with no registered nodes yet.
func New(b *bus.Bus) *Driver {
	return &Driver{
		bus:     b,
		nodes:   make(map[string]Handle),
		crashed: make(map[string]bool),
	}
}

// Register adds a node to the registry in call order. Registering the same
// ID twice is an error.
func (d *Driver) Register(h Handle) error {
	id := h.ID()
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("cluster: node %q already registered", id)
	}
	d.nodes[id] = h
	d.order = append(d.order, id)
	return nil
}

// Order returns the registry-order list of node IDs.
func (d *Driver) Order() []string {
	return append([]string(nil), d.order...)
}

// Has reports whether id is a registered node.
func (d *Driver) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Crash marks id as crashed; it stops receiving OnTick/OnMessage calls
// until Recover is called, but messages addressed to it keep accumulating
// in its bus inbox.
func (d *Driver) Crash(id string) error {
	if !d.Has(id) {
		return fmt.Errorf("cluster: unknown node %q", id)
	}
	d.crashed[id] = true
	return nil
}

// Recover clears id's crashed flag. Its accumulated inbox is delivered on
// the next Step.
func (d *Driver) Recover(id string) error {
	if !d.Has(id) {
		return fmt.Errorf("cluster: unknown node %q", id)
	}
	delete(d.crashed, id)
	return nil
}

// IsCrashed reports whether id is currently crashed.
func (d *Driver) IsCrashed(id string) bool {
	return d.crashed[id]
}

// Tick returns the current tick number (the tick most recently completed
// by Step; 0 before the first Step).
func (d *Driver) Tick() int64 {
	return d.tick
}

// Step advances the simulation by exactly one tick: it advances the bus,
// calls OnTick on every live node in registry order, then delivers each
// live node's inbox via OnMessage, also in registry order.
func (d *Driver) Step() {
	d.tick++
	d.bus.Tick(d.tick)

	for _, id := range d.order {
		if d.crashed[id] {
			continue
		}
		d.nodes[id].OnTick(d.tick)
	}
	for _, id := range d.order {
		if d.crashed[id] {
			continue
		}
		for _, msg := range d.bus.Drain(id) {
			d.nodes[id].OnMessage(msg)
		}
	}
}
