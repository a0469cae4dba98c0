package sim

import (
	"testing"

	"github.com/vzdtic/raftsim/internal/config"
)

func TestCheckInvariantsIsCleanAfterHealthyRun(t *testing.T) {
	doc := `
model: raft
seed: 21
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: run, ticks: 30}
assertions:
  - {kind: leader_exists}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	if _, err := c.PlayToEnd(config.DefaultConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := c.CheckInvariants(); v != "" {
		t.Fatalf("expected no invariant violation after a healthy run, got %q", v)
	}
}
