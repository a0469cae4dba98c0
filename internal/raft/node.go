package raft

import (
	"github.com/vzdtic/raftsim/internal/bus"
	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/prng"
	"github.com/vzdtic/raftsim/internal/rlog"
)

// Sender is the narrow interface a Node needs of the message bus.
type Sender interface {
	Send(bus.Message)
}

// Node is one Raft participant, advanced only by OnTick and OnMessage.
type Node struct {
	id    string
	peers []string
	cfg   config.Config
	rng   *prng.Source
	out   Sender
	log   rlog.Logger

	// persistent state (durable on real Raft; here it just lives for the
	// lifetime of the process, since raftsim never restarts one)
	currentTerm uint64
	votedFor    string
	entries     []LogEntry // 1-indexed; entries[0] is an unused sentinel

	// volatile state
	role        Role
	commitIndex uint64
	lastApplied uint64
	leaderID    string

	// candidate state
	votesReceived map[string]bool

	// leader state
	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	electionDeadline    int64
	lastHeartbeatAtTick int64
	currentTick         int64
}

// New returns a Node in the Follower role with an empty log.
func New(id string, peers []string, cfg config.Config, rng *prng.Source, out Sender) *Node {
	n := &Node{
		id:      id,
		peers:   append([]string(nil), peers...),
		cfg:     cfg,
		rng:     rng,
		out:     out,
		log:     rlog.Base().WithComponent("raft").WithNodeID(id),
		entries: []LogEntry{{}}, // sentinel at index 0
	}
	n.resetElectionDeadline(0)
	return n
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// Role returns the node's current role.
func (n *Node) Role() Role { return n.role }

// Term returns the node's current term.
func (n *Node) Term() uint64 { return n.currentTerm }

// LeaderID returns the node's last known leader, or "" if unknown.
func (n *Node) LeaderID() string { return n.leaderID }

// CommitIndex returns the highest log index known to be committed.
func (n *Node) CommitIndex() uint64 { return n.commitIndex }

// Log returns a defensive copy of the node's log, including the index-0
// sentinel.
func (n *Node) Log() []LogEntry {
	out := make([]LogEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

func (n *Node) lastLogIndex() uint64 { return uint64(len(n.entries) - 1) }
func (n *Node) lastLogTerm() uint64  { return n.entries[n.lastLogIndex()].Term }
func (n *Node) termAt(index uint64) uint64 {
	if index == 0 || index > n.lastLogIndex() {
		return 0
	}
	return n.entries[index].Term
}

func (n *Node) quorumSize() int {
	return (len(n.peers)+1)/2 + 1
}

func (n *Node) resetElectionDeadline(fromTick int64) {
	span, err := n.rng.Jitter(n.cfg.ElectionTimeoutMinTicks, n.cfg.ElectionTimeoutMaxTicks)
	if err != nil {
		span = n.cfg.ElectionTimeoutMinTicks
	}
	n.electionDeadline = fromTick + int64(span)
}

// OnRecover resets the volatile role/leadership state a real process would
// lose on restart, while keeping the persistent term/vote/log untouched.
// Called by the cluster facade when a crashed node is recovered.
func (n *Node) OnRecover(tick int64) {
	n.role = Follower
	n.leaderID = ""
	n.votesReceived = nil
	n.nextIndex = nil
	n.matchIndex = nil
	n.resetElectionDeadline(tick)
}

// OnCrash resets the same volatile role/leadership state OnRecover does,
// per spec.md §4.5.9: a crashed node drops back to Follower and clears any
// leader/candidate bookkeeping immediately, rather than carrying stale
// role state until the next recovery. The persistent term/vote/log
// survive, since a real process's disk state would too. No election
// deadline is scheduled here; the node isn't ticking while crashed, and
// Recover/OnRecover sets a fresh one when it rejoins.
func (n *Node) OnCrash() {
	n.role = Follower
	n.leaderID = ""
	n.votesReceived = nil
	n.nextIndex = nil
	n.matchIndex = nil
}

// Propose appends cmd to the log if this node is currently the leader. It
// returns the new entry's index, the node's current term, and whether the
// append happened.
func (n *Node) Propose(cmd []byte) (index uint64, term uint64, ok bool) {
	if n.role != Leader {
		return 0, n.currentTerm, false
	}
	entry := LogEntry{Term: n.currentTerm, Index: n.lastLogIndex() + 1, Command: cmd}
	n.entries = append(n.entries, entry)
	n.matchIndex[n.id] = entry.Index
	return entry.Index, n.currentTerm, true
}

// OnTick drives time-based behavior: election timeouts for non-leaders,
// heartbeats/replication for leaders, and commit-index advancement.
func (n *Node) OnTick(tick int64) {
	n.currentTick = tick
	switch n.role {
	case Leader:
		if tick-n.lastHeartbeatAtTick >= int64(n.cfg.HeartbeatPeriodTicks) {
			n.lastHeartbeatAtTick = tick
			n.replicateToAll()
		}
		n.advanceCommitIndex()
	default:
		if tick >= n.electionDeadline {
			n.startElection(tick)
		}
	}
}

func (n *Node) startElection(tick int64) {
	n.role = Candidate
	n.currentTerm++
	n.votedFor = n.id
	n.leaderID = ""
	n.votesReceived = map[string]bool{n.id: true}
	n.resetElectionDeadline(tick)
	n.log.Debug().Uint64("term", n.currentTerm).Int64("tick", tick).Msg("starting election")

	args := RequestVoteArgs{
		Term:         n.currentTerm,
		CandidateID:  n.id,
		LastLogIndex: n.lastLogIndex(),
		LastLogTerm:  n.lastLogTerm(),
	}
	for _, peer := range n.peers {
		n.out.Send(bus.Message{From: n.id, To: peer, Type: MessageRequestVote, Payload: args})
	}

	if len(n.peers) == 0 {
		n.becomeLeader(tick)
	}
}

func (n *Node) becomeLeader(tick int64) {
	n.role = Leader
	n.leaderID = n.id
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers)+1)
	for _, peer := range n.peers {
		n.nextIndex[peer] = n.lastLogIndex() + 1
		n.matchIndex[peer] = 0
	}
	n.matchIndex[n.id] = n.lastLogIndex()
	n.lastHeartbeatAtTick = tick
	n.log.Info().Uint64("term", n.currentTerm).Int64("tick", tick).Msg("became leader")
	n.replicateToAll()
}

func (n *Node) stepDown(newTerm uint64) {
	n.currentTerm = newTerm
	n.votedFor = ""
	n.role = Follower
	n.votesReceived = nil
	n.nextIndex = nil
	n.matchIndex = nil
	n.resetElectionDeadline(n.currentTick)
}

// ReplicateNow pushes the leader's current log to every peer immediately,
// instead of waiting for the next heartbeat tick. The model facade calls
// this right after a successful Propose so a client write doesn't sit idle
// until the next heartbeat.
func (n *Node) ReplicateNow() {
	if n.role == Leader {
		n.replicateToAll()
	}
}

func (n *Node) replicateToAll() {
	for _, peer := range n.peers {
		n.replicateTo(peer)
	}
}

func (n *Node) replicateTo(peer string) {
	next := n.nextIndex[peer]
	if next == 0 {
		next = 1
	}
	prevIndex := next - 1
	prevTerm := n.termAt(prevIndex)

	var toSend []LogEntry
	if next <= n.lastLogIndex() {
		toSend = append(toSend, n.entries[next:]...)
	}

	args := AppendEntriesArgs{
		Term:         n.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      toSend,
		LeaderCommit: n.commitIndex,
	}
	n.out.Send(bus.Message{From: n.id, To: peer, Type: MessageAppendEntries, Payload: args})
}

// advanceCommitIndex implements spec.md's §4.5.7 commit rule: a leader only
// commits directly at an index whose entry belongs to its own current
// term; earlier, prior-term entries ride along and commit transitively.
func (n *Node) advanceCommitIndex() {
	if n.role != Leader {
		return
	}
	for idx := n.lastLogIndex(); idx > n.commitIndex; idx-- {
		if n.entries[idx].Term != n.currentTerm {
			continue
		}
		count := 0
		for _, m := range n.matchIndex {
			if m >= idx {
				count++
			}
		}
		if count >= n.quorumSize() {
			n.commitIndex = idx
			return
		}
	}
}

// OnMessage dispatches an incoming RPC or RPC reply by its bus message
// type.
func (n *Node) OnMessage(msg bus.Message) {
	switch msg.Type {
	case MessageRequestVote:
		args, ok := msg.Payload.(RequestVoteArgs)
		if !ok {
			return
		}
		reply := n.handleRequestVote(args)
		n.out.Send(bus.Message{From: n.id, To: msg.From, Type: MessageRequestVoteReply, Payload: reply})
	case MessageRequestVoteReply:
		reply, ok := msg.Payload.(RequestVoteReply)
		if !ok {
			return
		}
		n.handleRequestVoteReply(reply)
	case MessageAppendEntries:
		args, ok := msg.Payload.(AppendEntriesArgs)
		if !ok {
			return
		}
		reply := n.handleAppendEntries(args)
		n.out.Send(bus.Message{From: n.id, To: msg.From, Type: MessageAppendEntriesReply, Payload: reply})
	case MessageAppendEntriesReply:
		reply, ok := msg.Payload.(AppendEntriesReply)
		if !ok {
			return
		}
		n.handleAppendEntriesReply(reply)
	}
}

func (n *Node) handleRequestVote(args RequestVoteArgs) RequestVoteReply {
	if args.Term > n.currentTerm {
		n.stepDown(args.Term)
	}
	if args.Term < n.currentTerm {
		return RequestVoteReply{VoterID: n.id, Term: n.currentTerm, VoteGranted: false}
	}

	upToDate := args.LastLogTerm > n.lastLogTerm() ||
		(args.LastLogTerm == n.lastLogTerm() && args.LastLogIndex >= n.lastLogIndex())

	grant := (n.votedFor == "" || n.votedFor == args.CandidateID) && upToDate
	if grant {
		n.votedFor = args.CandidateID
		n.resetElectionDeadline(n.currentTick)
	}
	return RequestVoteReply{VoterID: n.id, Term: n.currentTerm, VoteGranted: grant}
}

func (n *Node) handleRequestVoteReply(reply RequestVoteReply) {
	if reply.Term > n.currentTerm {
		n.stepDown(reply.Term)
		return
	}
	if n.role != Candidate || reply.Term < n.currentTerm || !reply.VoteGranted {
		return
	}
	n.votesReceived[reply.VoterID] = true
	if len(n.votesReceived) >= n.quorumSize() {
		n.becomeLeader(n.currentTick)
	}
}

func (n *Node) handleAppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	if args.Term > n.currentTerm {
		n.stepDown(args.Term)
	}
	if args.Term < n.currentTerm {
		return AppendEntriesReply{FollowerID: n.id, Term: n.currentTerm, Success: false}
	}

	// A valid leader for our term resets our election clock and role.
	n.role = Follower
	n.leaderID = args.LeaderID
	n.resetElectionDeadline(n.currentTick)

	if args.PrevLogIndex > n.lastLogIndex() {
		return AppendEntriesReply{
			FollowerID:    n.id,
			Term:          n.currentTerm,
			Success:       false,
			ConflictIndex: n.lastLogIndex() + 1,
			ConflictTerm:  0,
		}
	}
	if n.termAt(args.PrevLogIndex) != args.PrevLogTerm {
		conflictTerm := n.termAt(args.PrevLogIndex)
		conflictIndex := args.PrevLogIndex
		for conflictIndex > 1 && n.termAt(conflictIndex-1) == conflictTerm {
			conflictIndex--
		}
		return AppendEntriesReply{
			FollowerID:    n.id,
			Term:          n.currentTerm,
			Success:       false,
			ConflictIndex: conflictIndex,
			ConflictTerm:  conflictTerm,
		}
	}

	// Conservative scan-and-truncate at the first conflicting index.
	insertAt := args.PrevLogIndex + 1
	for i, e := range args.Entries {
		idx := insertAt + uint64(i)
		if idx <= n.lastLogIndex() {
			if n.entries[idx].Term != e.Term {
				n.entries = n.entries[:idx]
				n.entries = append(n.entries, args.Entries[i:]...)
				break
			}
			continue
		}
		n.entries = append(n.entries, args.Entries[i:]...)
		break
	}

	if args.LeaderCommit > n.commitIndex {
		last := args.PrevLogIndex + uint64(len(args.Entries))
		if args.LeaderCommit < last {
			n.commitIndex = args.LeaderCommit
		} else {
			n.commitIndex = last
		}
	}

	return AppendEntriesReply{
		FollowerID: n.id,
		Term:       n.currentTerm,
		Success:    true,
		MatchIndex: args.PrevLogIndex + uint64(len(args.Entries)),
	}
}

func (n *Node) handleAppendEntriesReply(reply AppendEntriesReply) {
	if reply.Term > n.currentTerm {
		n.stepDown(reply.Term)
		return
	}
	if n.role != Leader || reply.Term < n.currentTerm {
		return
	}
	if reply.Success {
		if reply.MatchIndex > n.matchIndex[reply.FollowerID] {
			n.matchIndex[reply.FollowerID] = reply.MatchIndex
		}
		n.nextIndex[reply.FollowerID] = reply.MatchIndex + 1
		n.advanceCommitIndex()
		return
	}

	if reply.ConflictTerm == 0 {
		n.nextIndex[reply.FollowerID] = reply.ConflictIndex
		return
	}
	newNext := reply.ConflictIndex
	for idx := n.lastLogIndex(); idx >= 1; idx-- {
		if n.entries[idx].Term == reply.ConflictTerm {
			newNext = idx + 1
			break
		}
	}
	n.nextIndex[reply.FollowerID] = newNext
}
