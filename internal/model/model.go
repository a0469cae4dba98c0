// Package model implements the Raft model facade: the single object a
// simulation controller drives, wrapping a cluster driver, a bus, and one
// raft.Node per cluster member behind seed-once construction, fault
// injection, and client-write semantics.
//
// Grounded on pkg/testing/cluster.go's TestCluster (WaitForLeader/
// WaitForStableLeader shape, adapted into CurrentLeaderID) and
// pkg/raft/raft.go's Propose (adapted into ClientWrite's Accepted/Queued
// contract).
package model

import (
	"fmt"
	"sort"

	"github.com/vzdtic/raftsim/internal/bus"
	"github.com/vzdtic/raftsim/internal/cluster"
	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/prng"
	"github.com/vzdtic/raftsim/internal/raft"
)

// WriteOutcome is the result of a ClientWrite call.
type WriteOutcome int

const (
	// Accepted means the write was appended to the current leader's log
	// immediately.
	Accepted WriteOutcome = iota
	// Queued means there was no known leader at the time of the call; the
	// write is held and retried against whoever becomes leader, in FIFO
	// order, at the end of each Step.
	Queued
)

func (o WriteOutcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "queued"
}

type pendingWrite struct {
	command []byte
}

// Model is the facade a simulation controller drives: one Step advances
// the whole cluster by one tick.
type Model struct {
	driver  *cluster.Driver
	bus     *bus.Bus
	nodes   map[string]*raft.Node
	order   []string
	pending []pendingWrite
}

// New constructs a Model with nodeIDs as the fixed, registry-ordered set of
// cluster members, seeded once from seed. The node set never changes after
// construction: raftsim scenarios have no join/leave timeline action.
func New(nodeIDs []string, seed int64, cfg config.Config) *Model {
	rng := prng.New(seed)
	b := bus.New(rng)
	d := cluster.New(b)

	m := &Model{
		driver: d,
		bus:    b,
		nodes:  make(map[string]*raft.Node, len(nodeIDs)),
		order:  append([]string(nil), nodeIDs...),
	}

	for _, id := range nodeIDs {
		peers := make([]string, 0, len(nodeIDs)-1)
		for _, other := range nodeIDs {
			if other != id {
				peers = append(peers, other)
			}
		}
		n := raft.New(id, peers, cfg, rng, b)
		m.nodes[id] = n
		if err := d.Register(n); err != nil {
			panic(fmt.Sprintf("model: %v", err)) // unreachable: nodeIDs are caller-guaranteed unique
		}
	}
	return m
}

// Step advances the simulation by exactly one tick, then flushes any
// pending (queued) client writes against the newly current leader, in
// FIFO order.
func (m *Model) Step() {
	m.driver.Step()
	m.flushPending()
}

// Tick returns the number of ticks elapsed so far.
func (m *Model) Tick() int64 {
	return m.driver.Tick()
}

// Crash marks nodeID as crashed: it stops ticking and stops processing
// messages until Recover is called. Its volatile leader/candidate state is
// reset immediately, per spec.md §4.5.9, so a recovered process starts
// clean as Follower rather than resuming whatever role it held before
// crashing.
func (m *Model) Crash(nodeID string) error {
	if err := m.driver.Crash(nodeID); err != nil {
		return err
	}
	m.nodes[nodeID].OnCrash()
	return nil
}

// IsCrashed reports whether nodeID is currently crashed.
func (m *Model) IsCrashed(nodeID string) bool {
	return m.driver.IsCrashed(nodeID)
}

// Recover clears nodeID's crashed flag and resets its volatile role state,
// as a real process restart would.
func (m *Model) Recover(nodeID string) error {
	if err := m.driver.Recover(nodeID); err != nil {
		return err
	}
	m.nodes[nodeID].OnRecover(m.driver.Tick())
	return nil
}

// Partition adds one bidirectional drop rule for every pairing of an ID in
// groupA with an ID in groupB, isolating the two groups from each other
// while leaving intra-group traffic untouched.
func (m *Model) Partition(groupA, groupB []string) {
	for _, a := range groupA {
		for _, b := range groupB {
			m.bus.AddRule(bus.Rule{From: a, To: b, Bidirectional: true, Action: bus.Drop()})
		}
	}
}

// ClearPartitions resets the bus to having no programmed rules at all,
// intentionally clearing every rule (not just partition-shaped ones), for
// compatibility with this facade's coarse partition model.
func (m *Model) ClearPartitions() {
	m.bus.Reset()
}

// AddNetworkRule appends an arbitrary rule to the bus's ordered rule list,
// for scenarios that program delay/probabilistic-drop conditions directly
// rather than through Partition.
func (m *Model) AddNetworkRule(r bus.Rule) {
	m.bus.AddRule(r)
}

// NetworkRules returns a copy of the bus's currently installed ordered
// rule list, for callers that need to introspect network state directly
// (spec.md §6's "dump net").
func (m *Model) NetworkRules() []bus.Rule {
	return m.bus.Rules()
}

// ClientWrite proposes cmd against the current leader. If there is no
// known leader, the write is queued and retried at the end of every
// subsequent Step until some node accepts it.
func (m *Model) ClientWrite(cmd []byte) WriteOutcome {
	if leaderID := m.CurrentLeaderID(); leaderID != "" {
		if leader := m.nodes[leaderID]; leader != nil {
			if _, _, ok := leader.Propose(cmd); ok {
				leader.ReplicateNow()
				return Accepted
			}
		}
	}
	m.pending = append(m.pending, pendingWrite{command: cmd})
	return Queued
}

func (m *Model) flushPending() {
	if len(m.pending) == 0 {
		return
	}
	leaderID := m.CurrentLeaderID()
	if leaderID == "" {
		return
	}
	leader := m.nodes[leaderID]

	remaining := m.pending[:0]
	for _, w := range m.pending {
		if _, _, ok := leader.Propose(w.command); !ok {
			remaining = append(remaining, w)
		}
	}
	m.pending = remaining
	leader.ReplicateNow()
}

// CurrentLeaderID returns the ID of whichever live node currently believes
// itself to be leader. With at most one true leader per term, this is
// unambiguous; it returns "" if no live node currently holds leadership.
func (m *Model) CurrentLeaderID() string {
	for _, id := range m.order {
		if m.driver.IsCrashed(id) {
			continue
		}
		if m.nodes[id].Role() == raft.Leader {
			return id
		}
	}
	return ""
}

// LogsArePrefixConsistent reports whether every live node's committed log
// prefix agrees, entry for entry, with every other live node's: two nodes
// that have both committed the same index must hold the same (term,
// command) pair there. Grouping by index first, the way
// pkg/testing/invariant_checker.go's checkLogMatchingSafety does, is what
// catches a divergence where two nodes committed different terms at the
// same index — keying by (index, term) together would never put those
// entries in the same bucket to compare.
func (m *Model) LogsArePrefixConsistent() bool {
	type entry struct {
		term    uint64
		command string
	}
	seenAtIndex := make(map[uint64]entry)

	for _, id := range m.order {
		if m.driver.IsCrashed(id) {
			continue
		}
		n := m.nodes[id]
		log := n.Log()
		commit := n.CommitIndex()
		for idx := uint64(1); idx <= commit && idx < uint64(len(log)); idx++ {
			e := entry{term: log[idx].Term, command: string(log[idx].Command)}
			if existing, ok := seenAtIndex[idx]; ok {
				if existing != e {
					return false
				}
				continue
			}
			seenAtIndex[idx] = e
		}
	}
	return true
}

// NodeIDs returns the registry-order list of cluster member IDs.
func (m *Model) NodeIDs() []string {
	return append([]string(nil), m.order...)
}

// Node returns the raft.Node for id, or nil if id is not a cluster member.
func (m *Model) Node(id string) *raft.Node {
	return m.nodes[id]
}

// PendingWriteCount returns how many client writes are currently queued
// waiting for a leader.
func (m *Model) PendingWriteCount() int {
	return len(m.pending)
}

// Dump returns a deterministic, human-readable snapshot of every node,
// sorted by node ID: role/term/commit-index for a live node and just
// "crashed" for a crashed one, useful for the
// determinism property test (run the same seed twice, diff the dumps).
func (m *Model) Dump() []string {
	ids := append([]string(nil), m.order...)
	sort.Strings(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		status := "crashed"
		if !m.driver.IsCrashed(id) {
			n := m.nodes[id]
			status = fmt.Sprintf("role=%s term=%d commit=%d", n.Role(), n.Term(), n.CommitIndex())
		}
		lines = append(lines, fmt.Sprintf("%s: %s", id, status))
	}
	return lines
}
