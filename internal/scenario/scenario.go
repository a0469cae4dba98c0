// Package scenario loads and validates the YAML scenario files spec.md §6
// describes: cluster size, seed, initial node state, network rules, a
// timeline of fault-injection actions, and assertions.
//
// Grounded on cuemby-warren/cmd/warren/apply.go's yaml.Unmarshal-over-a-
// tagged-struct pattern.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level shape of a scenario document.
type File struct {
	Model      string      `yaml:"model"`
	Seed       int64       `yaml:"seed"`
	Cluster    ClusterSpec `yaml:"cluster"`
	Network    NetworkSpec `yaml:"network"`
	Timeline   []Action    `yaml:"timeline"`
	Assertions []Assertion `yaml:"assertions"`
}

// ClusterSpec names the fixed set of cluster member IDs.
type ClusterSpec struct {
	Nodes []string `yaml:"nodes"`
}

// NetworkSpec is the ordered list of network rules applied to the bus at
// construction time.
type NetworkSpec struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one ordered network rule. From/To/Type default to wildcard
// ("*") when empty. Action is one of "pass", "drop", "delay", "drop_prob".
// Bidirectional, per spec.md §4.2's match{from,to,type,bidirectional},
// matches messages traveling in either direction between From and To
// instead of just From -> To.
type RuleSpec struct {
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	Type          string  `yaml:"type"`
	Bidirectional bool    `yaml:"bidirectional"`
	Action        string  `yaml:"action"`
	Ticks         int     `yaml:"ticks"`
	P             float64 `yaml:"p"`
}

// Action is one timeline entry, scheduled at Tick. Op is one of "crash",
// "recover", "partition", "clear_partitions", "client_write", "run".
type Action struct {
	Tick    int      `yaml:"tick"`
	Op      string   `yaml:"op"`
	Node    string   `yaml:"node"`
	GroupA  []string `yaml:"group_a"`
	GroupB  []string `yaml:"group_b"`
	Command string   `yaml:"command"`
	Ticks   int      `yaml:"ticks"` // run{ticks=k}
}

// Assertion is one of spec.md §4.7's two assertion kinds: "leader_exists"
// or "log_consistency". After names the tick the assertion is evaluated
// at: the controller checks it the moment the run has advanced to at
// least that tick, not just once at the very end, so a scenario can assert
// different things at different points in its timeline. An After of 0 (the
// default when omitted) is checked once the whole timeline and the settle
// buffer have run.
type Assertion struct {
	Kind  string `yaml:"kind"`
	After int    `yaml:"after"`
}

// Load reads and parses the scenario file at path, then validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a validated File.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseError wraps a malformed scenario document (spec.md §7's
// ScenarioParse kind).
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return "scenario parse error: " + e.Message }

// UnknownModelError is returned when Model names a model this binary
// doesn't implement (spec.md §7's UnknownModel kind).
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string { return "unknown model: " + e.Model }

// InvalidArgumentError wraps a malformed field value (spec.md §7's
// InvalidArgument kind, fatal at call time).
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return "invalid argument: " + e.Message }

// Validate checks the scenario's shape and known fields. It does not
// resolve node-name typos inside the timeline against the cluster's node
// list beyond what's needed to reject obvious nonsense up front — that is
// spec.md's UnknownNode case, handled non-fatally (logged) by the
// controller as each action actually executes, not at load time.
func (f *File) Validate() error {
	if f.Model == "" {
		return &UnknownModelError{Model: ""}
	}
	if f.Model != "raft" {
		return &UnknownModelError{Model: f.Model}
	}
	if len(f.Cluster.Nodes) == 0 {
		return &InvalidArgumentError{Message: "cluster.nodes must name at least one node"}
	}
	seen := make(map[string]bool, len(f.Cluster.Nodes))
	for _, id := range f.Cluster.Nodes {
		if id == "" {
			return &InvalidArgumentError{Message: "cluster.nodes entries must be non-empty"}
		}
		if seen[id] {
			return &InvalidArgumentError{Message: fmt.Sprintf("duplicate cluster node id %q", id)}
		}
		seen[id] = true
	}

	for i, r := range f.Network.Rules {
		switch r.Action {
		case "pass", "drop":
		case "delay":
			if r.Ticks < 0 {
				return &InvalidArgumentError{Message: fmt.Sprintf("network.rules[%d]: delay ticks must be >= 0", i)}
			}
		case "drop_prob":
			if r.P < 0 || r.P > 1 {
				return &InvalidArgumentError{Message: fmt.Sprintf("network.rules[%d]: drop_prob p must be in [0,1]", i)}
			}
		default:
			return &InvalidArgumentError{Message: fmt.Sprintf("network.rules[%d]: unknown action %q", i, r.Action)}
		}
	}

	for i, a := range f.Timeline {
		switch a.Op {
		case "crash", "recover", "partition", "clear_partitions", "client_write", "run":
		default:
			return &InvalidArgumentError{Message: fmt.Sprintf("timeline[%d]: unknown op %q", i, a.Op)}
		}
		if a.Op == "run" && a.Ticks <= 0 {
			return &InvalidArgumentError{Message: fmt.Sprintf("timeline[%d]: run requires ticks > 0", i)}
		}
	}

	for i, a := range f.Assertions {
		switch a.Kind {
		case "leader_exists", "log_consistency":
		default:
			return &InvalidArgumentError{Message: fmt.Sprintf("assertions[%d]: unknown kind %q", i, a.Kind)}
		}
		if a.After < 0 {
			return &InvalidArgumentError{Message: fmt.Sprintf("assertions[%d]: after must be >= 0", i)}
		}
	}
	return nil
}
