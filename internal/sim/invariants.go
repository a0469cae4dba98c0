package sim

import (
	"fmt"

	"github.com/vzdtic/raftsim/internal/model"
)

// InvariantChecker runs spec.md §8's quantified safety invariants after
// every tick. Adapted from pkg/testing/invariant_checker.go's
// checkLogMatchingSafety/checkMonotonicCommit/checkTermConsistency, moved
// from a post-hoc, recorded-commit-history check to a continuous one driven
// straight off live model.Model state each tick.
type InvariantChecker struct {
	lastCommit map[string]uint64
	lastTerm   map[string]uint64
}

// NewInvariantChecker returns a checker with no prior observations.
func NewInvariantChecker() *InvariantChecker {
	return &InvariantChecker{
		lastCommit: make(map[string]uint64),
		lastTerm:   make(map[string]uint64),
	}
}

// Check inspects m's current state and returns a non-empty description of
// the first violation found, or "" if every invariant holds.
func (ic *InvariantChecker) Check(m *model.Model) string {
	if v := ic.checkElectionSafety(m); v != "" {
		return v
	}
	if v := ic.checkTermMonotonic(m); v != "" {
		return v
	}
	if v := ic.checkMonotonicCommit(m); v != "" {
		return v
	}
	if v := ic.checkLogIndexContiguity(m); v != "" {
		return v
	}
	if v := ic.checkLogMatchingSafety(m); v != "" {
		return v
	}
	return ""
}

// checkElectionSafety verifies at most one leader exists per term among
// live nodes. Crashed nodes are skipped; model.Crash already resets a
// crashed node's role to Follower through OnCrash, so none of them reads
// back as a leader anyway.
func (ic *InvariantChecker) checkElectionSafety(m *model.Model) string {
	leadersByTerm := make(map[uint64]string)
	for _, id := range m.NodeIDs() {
		if m.IsCrashed(id) {
			continue
		}
		n := m.Node(id)
		if n == nil || n.Role().String() != "leader" {
			continue
		}
		if other, ok := leadersByTerm[n.Term()]; ok && other != id {
			return fmt.Sprintf("two leaders in term %d: %s and %s", n.Term(), other, id)
		}
		leadersByTerm[n.Term()] = id
	}
	return ""
}

// checkTermMonotonic verifies no live node's current term ever decreases
// between observations (spec.md §8 invariant 2).
func (ic *InvariantChecker) checkTermMonotonic(m *model.Model) string {
	for _, id := range m.NodeIDs() {
		if m.IsCrashed(id) {
			continue
		}
		n := m.Node(id)
		if n == nil {
			continue
		}
		term := n.Term()
		if prev, ok := ic.lastTerm[id]; ok && term < prev {
			return fmt.Sprintf("node %s current_term regressed from %d to %d", id, prev, term)
		}
		ic.lastTerm[id] = term
	}
	return ""
}

// checkLogIndexContiguity verifies each live node's log has no index gaps
// and that entry terms never decrease as index increases (spec.md §8
// invariant 3).
func (ic *InvariantChecker) checkLogIndexContiguity(m *model.Model) string {
	for _, id := range m.NodeIDs() {
		if m.IsCrashed(id) {
			continue
		}
		n := m.Node(id)
		if n == nil {
			continue
		}
		log := n.Log()
		var prevTerm uint64
		for idx := 1; idx < len(log); idx++ {
			if log[idx].Index != uint64(idx) {
				return fmt.Sprintf("node %s log index %d holds entry for index %d", id, idx, log[idx].Index)
			}
			if log[idx].Term < prevTerm {
				return fmt.Sprintf("node %s log term decreased at index %d: %d after %d", id, idx, log[idx].Term, prevTerm)
			}
			prevTerm = log[idx].Term
		}
	}
	return ""
}

// checkMonotonicCommit verifies no node's commit index ever decreases
// between observations. Unlike the other checks it also covers crashed
// nodes.
func (ic *InvariantChecker) checkMonotonicCommit(m *model.Model) string {
	for _, id := range m.NodeIDs() {
		n := m.Node(id)
		if n == nil {
			continue
		}
		commit := n.CommitIndex()
		if prev, ok := ic.lastCommit[id]; ok && commit < prev {
			return fmt.Sprintf("node %s commit index regressed from %d to %d", id, prev, commit)
		}
		ic.lastCommit[id] = commit
	}
	return ""
}

// checkLogMatchingSafety verifies that any two live nodes which have both
// committed the same index agree on its term and command.
func (ic *InvariantChecker) checkLogMatchingSafety(m *model.Model) string {
	if !m.LogsArePrefixConsistent() {
		return "committed log entries diverged across nodes at the same index"
	}
	return ""
}
