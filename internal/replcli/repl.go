// Package replcli implements the interactive text surface of spec.md §6:
// a small set of commands that drive a model.Model one step, or one fault
// injection, at a time.
//
// No pack example exercises github.com/chzyer/readline directly (it only
// appears as an indirect dependency in firefly-oss-flydb's go.mod); this
// follows the library's documented public API rather than a pack usage
// site, as disclosed in DESIGN.md.
package replcli

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/vzdtic/raftsim/internal/bus"
	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/model"
	"github.com/vzdtic/raftsim/internal/scenario"
	"github.com/vzdtic/raftsim/internal/sim"
)

// REPL is a thin adapter from typed commands onto a model.Model. It never
// reaches into raft node internals beyond the facade's own public
// accessors (Role/Term/Log), and reaches the bus only through its rule
// API, per spec.md §6's scenario-loader-coupling note.
type REPL struct {
	model *model.Model
	cfg   config.Config
	ctrl  *sim.Controller // set by load; play requires it
	out   io.Writer
}

// New returns a REPL driving m, writing command output to out.
func New(m *model.Model, out io.Writer) *REPL {
	return &REPL{model: m, cfg: config.DefaultConfig(), out: out}
}

// Run starts the interactive read-eval-print loop against stdin/stdout
// until the user types "quit" or sends EOF.
func (r *REPL) Run() error {
	rl, err := readline.New("raftsim> ")
	if err != nil {
		return fmt.Errorf("replcli: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if r.dispatch(strings.Fields(line)) {
			return nil
		}
	}
}

// dispatch executes one command line and reports whether the REPL should
// exit.
func (r *REPL) dispatch(fields []string) bool {
	switch fields[0] {
	case "quit", "exit":
		return true
	case "step":
		n := 1
		if len(fields) > 1 {
			fmt.Sscanf(fields[1], "%d", &n)
		}
		for i := 0; i < n; i++ {
			r.model.Step()
		}
		fmt.Fprintf(r.out, "tick=%d\n", r.model.Tick())
	case "crash":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: crash <node>")
			return false
		}
		if err := r.model.Crash(fields[1]); err != nil {
			fmt.Fprintln(r.out, "error:", err)
		}
	case "recover":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: recover <node>")
			return false
		}
		if err := r.model.Recover(fields[1]); err != nil {
			fmt.Fprintln(r.out, "error:", err)
		}
	case "partition":
		if len(fields) < 3 {
			fmt.Fprintln(r.out, "usage: partition <a1,a2,...> <b1,b2,...>")
			return false
		}
		r.model.Partition(strings.Split(fields[1], ","), strings.Split(fields[2], ","))
	case "clear_partitions":
		r.model.ClearPartitions()
	case "write":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: write <command>")
			return false
		}
		outcome := r.model.ClientWrite([]byte(strings.Join(fields[1:], " ")))
		fmt.Fprintln(r.out, outcome)
	case "leader":
		fmt.Fprintln(r.out, r.model.CurrentLeaderID())
	case "load":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: load <path>")
			return false
		}
		file, err := scenario.Load(fields[1])
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return false
		}
		r.ctrl = sim.New(file, r.cfg, fields[1])
		r.model = r.ctrl.Model()
		fmt.Fprintf(r.out, "loaded %s: %d nodes, %d assertions\n", fields[1], len(file.Cluster.Nodes), len(file.Assertions))
	case "init":
		nodes, seed := 3, int64(1)
		for i := 1; i+1 < len(fields); i++ {
			switch fields[i] {
			case "--nodes":
				fmt.Sscanf(fields[i+1], "%d", &nodes)
			case "--seed":
				fmt.Sscanf(fields[i+1], "%d", &seed)
			}
		}
		ids := make([]string, nodes)
		for i := range ids {
			ids[i] = fmt.Sprintf("n%d", i+1)
		}
		r.model = model.New(ids, seed, r.cfg)
		r.ctrl = nil
		fmt.Fprintf(r.out, "initialized %d nodes, seed=%d\n", nodes, seed)
	case "play":
		if r.ctrl == nil {
			fmt.Fprintln(r.out, "error: no scenario loaded; use load <path> first")
			return false
		}
		results, err := r.ctrl.PlayToEnd(r.cfg)
		if err != nil {
			fmt.Fprintln(r.out, "error:", err)
			return false
		}
		for _, res := range results {
			status := "PASS"
			if !res.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(r.out, "[%s] %s (%s)\n", status, res.Kind, res.Detail)
		}
	case "delay":
		kv := parseKV(fields[1:])
		if kv["from"] == "" || kv["to"] == "" {
			fmt.Fprintln(r.out, "usage: delay from=A to=B [type=T] steps=k")
			return false
		}
		steps := 0
		fmt.Sscanf(kv["steps"], "%d", &steps)
		r.model.AddNetworkRule(bus.Rule{From: kv["from"], To: kv["to"], Type: kv["type"], Action: bus.Delay(steps)})
	case "drop":
		kv := parseKV(fields[1:])
		if kv["from"] == "" || kv["to"] == "" {
			fmt.Fprintln(r.out, "usage: drop from=A to=B [type=T] [pct=p]")
			return false
		}
		action := bus.Drop()
		if pctStr, ok := kv["pct"]; ok {
			var pct float64
			fmt.Sscanf(pctStr, "%f", &pct)
			action = bus.DropProb(pct)
		}
		r.model.AddNetworkRule(bus.Rule{From: kv["from"], To: kv["to"], Type: kv["type"], Action: action})
	case "dump":
		variant := "state"
		if len(fields) > 1 {
			variant = fields[1]
		}
		r.dump(variant)
	default:
		fmt.Fprintf(r.out, "unknown command: %s\n", fields[0])
	}
	return false
}

// dump writes one of spec.md §6's dump variants to r.out: "state" (the
// default, role/term/commit per node), "nodes" (liveness only), "logs"
// (full per-node committed-and-uncommitted log), or "net" (installed bus
// rules).
func (r *REPL) dump(variant string) {
	switch variant {
	case "state", "":
		for _, line := range r.model.Dump() {
			fmt.Fprintln(r.out, line)
		}
	case "nodes":
		for _, id := range r.model.NodeIDs() {
			fmt.Fprintf(r.out, "%s: crashed=%v\n", id, r.model.IsCrashed(id))
		}
	case "logs":
		for _, id := range r.model.NodeIDs() {
			n := r.model.Node(id)
			if n == nil {
				continue
			}
			for _, e := range n.Log()[1:] {
				fmt.Fprintf(r.out, "%s[%d]: term=%d command=%q\n", id, e.Index, e.Term, e.Command)
			}
		}
	case "net":
		for _, rule := range r.model.NetworkRules() {
			fmt.Fprintln(r.out, rule)
		}
	default:
		fmt.Fprintf(r.out, "unknown dump variant: %s\n", variant)
	}
}

// parseKV splits "key=value" fields into a map; fields without an "="
// are ignored.
func parseKV(fields []string) map[string]string {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		if i := strings.IndexByte(f, '='); i >= 0 {
			kv[f[:i]] = f[i+1:]
		}
	}
	return kv
}
