// Package config holds the tick-denominated constants spec.md leaves open,
// with defaults, grounded on the teacher's pkg/raft/types.go
// NodeConfig/DefaultConfig pattern. A Config is passed in by the caller of
// model.New or sim.New; scenario files carry no timing settings.
package config

// Config holds the timing constants that drive a simulated Raft node.
type Config struct {
	// HeartbeatPeriodTicks is how often a leader sends AppendEntries to
	// keep its followers' election timers from firing.
	HeartbeatPeriodTicks int
	// ElectionTimeoutMinTicks and ElectionTimeoutMaxTicks bound the
	// randomized election timeout jittered per node, per election.
	ElectionTimeoutMinTicks int
	ElectionTimeoutMaxTicks int
	// SettleBufferTicks is the minimum number of extra ticks play_to_end
	// runs after the last scheduled timeline action, so in-flight messages
	// have a chance to resolve before assertions are evaluated.
	SettleBufferTicks int
}

// DefaultConfig returns spec.md's suggested defaults: heartbeat every 2
// ticks, election timeout jittered in [9, 15] ticks, a 5-tick settle
// buffer.
func DefaultConfig() Config {
	return Config{
		HeartbeatPeriodTicks:    2,
		ElectionTimeoutMinTicks: 9,
		ElectionTimeoutMaxTicks: 15,
		SettleBufferTicks:       5,
	}
}
