package raft

import "errors"

// Grounded verbatim on the teacher's pkg/raft/errors.go sentinel style.
var (
	ErrNotLeader      = errors.New("raft: node is not the leader")
	ErrUnknownPeer    = errors.New("raft: unknown peer node")
	ErrStaleTerm      = errors.New("raft: message carries a stale term")
	ErrInvalidRequest = errors.New("raft: invalid request")
)
