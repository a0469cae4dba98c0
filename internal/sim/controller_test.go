package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/scenario"
)

func mustParse(t *testing.T, doc string) *scenario.File {
	t.Helper()
	f, err := scenario.Parse([]byte(doc))
	require.NoError(t, err)
	return f
}

func TestBaseElectionScenario(t *testing.T) {
	doc := `
model: raft
seed: 1
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: run, ticks: 30}
assertions:
  - {kind: leader_exists}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed, results[0].Detail)
}

func TestLeaderCrashScenario(t *testing.T) {
	doc := `
model: raft
seed: 2
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: run, ticks: 20}
  - {tick: 20, op: crash, node: n1}
  - {tick: 20, op: run, ticks: 30}
assertions:
  - {kind: leader_exists}
  - {kind: log_consistency}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Kind, r.Detail)
	}
}

// TestLeaderCrashScenarioWithStaggeredAssertions is S2: leader_exists and
// log_consistency name different After ticks, so each must be checked the
// moment the run reaches its own tick rather than only once at the end.
func TestLeaderCrashScenarioWithStaggeredAssertions(t *testing.T) {
	doc := `
model: raft
seed: 12345
cluster:
  nodes: [n1, n2, n3, n4, n5]
timeline:
  - {tick: 0, op: run, ticks: 1}
  - {tick: 1, op: client_write, command: "x=1"}
  - {tick: 1, op: run, ticks: 2}
  - {tick: 3, op: crash, node: n1}
  - {tick: 3, op: run, ticks: 27}
assertions:
  - {kind: leader_exists, after: 25}
  - {kind: log_consistency, after: 30}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Kind, r.Detail)
	}
}

func TestSymmetricPartitionScenario(t *testing.T) {
	doc := `
model: raft
seed: 3
cluster:
  nodes: [n1, n2, n3, n4]
timeline:
  - {tick: 0, op: run, ticks: 20}
  - {tick: 20, op: partition, group_a: [n1, n2], group_b: [n3, n4]}
  - {tick: 20, op: run, ticks: 30}
assertions:
  - {kind: log_consistency}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, results[0].Passed, results[0].Detail)
}

func TestQueuedClientWriteScenario(t *testing.T) {
	doc := `
model: raft
seed: 4
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: client_write, command: "x=1"}
  - {tick: 0, op: run, ticks: 30}
assertions:
  - {kind: leader_exists}
  - {kind: log_consistency}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Kind, r.Detail)
	}
	assert.Equal(t, 0, c.Model().PendingWriteCount())
}

// TestProbabilisticLossUnderNoiseStillElectsLeader is a coarse liveness
// check: a modest background drop_prob rate must not prevent a cluster
// from ever electing a leader. S5's actual fall-through/drop-ratio/delay
// property is exercised precisely at the bus layer, not through a
// scenario, in bus.TestDropProbFallThroughBatchStatistics — a scenario
// has no op for "send 1000 raw messages between two fixed nodes".
func TestProbabilisticLossUnderNoiseStillElectsLeader(t *testing.T) {
	doc := `
model: raft
seed: 5
cluster:
  nodes: [n1, n2, n3]
network:
  rules:
    - {action: drop_prob, p: 0.3}
timeline:
  - {tick: 0, op: run, ticks: 60}
assertions:
  - {kind: leader_exists}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, results[0].Passed, results[0].Detail)
}

func TestDeterminismAcrossIdenticalRuns(t *testing.T) {
	doc := `
model: raft
seed: 99
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: client_write, command: "x=1"}
  - {tick: 0, op: run, ticks: 40}
assertions:
  - {kind: leader_exists}
`
	a := New(mustParse(t, doc), config.DefaultConfig(), "run-a")
	b := New(mustParse(t, doc), config.DefaultConfig(), "run-b")

	_, errA := a.PlayToEnd(config.DefaultConfig())
	_, errB := b.PlayToEnd(config.DefaultConfig())
	require.NoError(t, errA)
	require.NoError(t, errB)

	assert.Equal(t, a.Model().Dump(), b.Model().Dump())
}

func TestUnknownNodeInTimelineIsNonFatal(t *testing.T) {
	doc := `
model: raft
seed: 6
cluster:
  nodes: [n1, n2, n3]
timeline:
  - {tick: 0, op: crash, node: ghost}
  - {tick: 0, op: run, ticks: 20}
assertions:
  - {kind: leader_exists}
`
	c := New(mustParse(t, doc), config.DefaultConfig(), "test-run")
	results, err := c.PlayToEnd(config.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, results[0].Passed, results[0].Detail)
}

func TestScenarioValidationRejectsUnknownModel(t *testing.T) {
	_, err := scenario.Parse([]byte("model: paxos\ncluster:\n  nodes: [n1]\n"))
	require.Error(t, err)
	var umErr *scenario.UnknownModelError
	assert.ErrorAs(t, err, &umErr)
}

func TestScenarioValidationRejectsEmptyClusterNodes(t *testing.T) {
	_, err := scenario.Parse([]byte("model: raft\ncluster:\n  nodes: []\n"))
	require.Error(t, err)
	var argErr *scenario.InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}
