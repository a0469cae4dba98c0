// Package raft implements a single Raft node as a tick-driven state
// machine: no goroutines, no wall clock, no channels. A node advances only
// when its OnTick or OnMessage is called by the cluster driver, which makes
// an entire cluster's behavior a pure function of its inputs.
//
// Synthesized from the teacher's two parallel implementations: the
// term/role/log shape and commit-advancement rule of pkg/raft/raft.go plus
// pkg/raft/state.go, and the accelerated conflict-index/conflict-term log
// backtracking and RequestVoteArgs/AppendEntriesArgs naming of
// pkg/raft/node.go plus pkg/raft/types.go.
package raft

// Role is the three Raft roles a node can be in.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// LogEntry is one entry of a node's replicated log. Command is an opaque
// payload; raftsim never interprets it, it only replicates and commits it.
// This is the in-memory log-entry shape the teacher's pkg/wal.Entry carried
// alongside its durable framing; only the shape survives here.
type LogEntry struct {
	Term    uint64
	Index   uint64
	Command []byte
}

// RequestVoteArgs is the RequestVote RPC payload.
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteReply is the RequestVote RPC response payload.
type RequestVoteReply struct {
	VoterID     string
	Term        uint64
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC payload (also used as the
// empty-Entries heartbeat).
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []LogEntry
	LeaderCommit uint64
}

// AppendEntriesReply is the AppendEntries RPC response payload.
// ConflictIndex/ConflictTerm let the leader back up nextIndex in one round
// trip instead of one entry at a time.
type AppendEntriesReply struct {
	FollowerID    string
	Term          uint64
	Success       bool
	ConflictIndex uint64
	ConflictTerm  uint64
	MatchIndex    uint64
}

const (
	MessageRequestVote       = "request_vote"
	MessageRequestVoteReply  = "request_vote_reply"
	MessageAppendEntries     = "append_entries"
	MessageAppendEntriesReply = "append_entries_reply"
)
