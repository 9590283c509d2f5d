// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"sync"
	"time"

	"github.com/luxfi/ids"
)

// Phase is the position of a round in the PBFT-style state machine.
type Phase uint32

const (
	Idle Phase = iota
	Prepare
	Commit
	Finalized
	Failed
	Expired
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Prepare:
		return "prepare"
	case Commit:
		return "commit"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase admits no further votes.
func (p Phase) Terminal() bool {
	return p == Finalized || p == Failed || p == Expired
}

// Outcome describes the effect one vote had on a round.
type Outcome struct {
	Phase    Phase
	Advanced bool // the vote crossed the quorum and moved the round forward
	// Voters holds the affirmative voters of the commit phase, populated
	// only when the vote finalized the round. The ledger pays these.
	Voters []ids.NodeID
}

// round is the voting record for one transfer. Each phase requires
// independent re-affirmation: advancing resets the vote counters, so a
// validator set that agreed in Prepare must agree again in Commit.
//
// All mutation happens under the round's own lock. Two concurrent votes
// that would both cross the quorum threshold therefore produce exactly one
// phase transition: the second vote of the pair is observed as a duplicate
// or lands in the next phase's fresh counter.
type round struct {
	mu sync.Mutex

	transferID ids.ID
	quorum     int
	phase      Phase
	deadline   time.Time

	votes       map[ids.NodeID]bool
	affirmative int
}

func newRound(transferID ids.ID, quorum int, deadline time.Time) *round {
	return &round{
		transferID: transferID,
		quorum:     quorum,
		phase:      Prepare,
		deadline:   deadline,
		votes:      make(map[ids.NodeID]bool),
	}
}

// recordVote applies one vote. Duplicate votes from the same validator in
// the same phase are a no-op reported via ErrAlreadyVoted; the counters do
// not change.
func (r *round) recordVote(nodeID ids.NodeID, vote bool, now time.Time) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase.Terminal() {
		return Outcome{Phase: r.phase}, ErrRoundClosed
	}
	if now.After(r.deadline) {
		r.phase = Expired
		return Outcome{Phase: Expired}, ErrDeadlineExpired
	}
	if _, ok := r.votes[nodeID]; ok {
		return Outcome{Phase: r.phase}, ErrAlreadyVoted
	}

	r.votes[nodeID] = vote
	if !vote {
		return Outcome{Phase: r.phase}, nil
	}
	r.affirmative++
	if r.affirmative < r.quorum {
		return Outcome{Phase: r.phase}, nil
	}

	// Quorum reached: advance and reset the phase counters.
	switch r.phase {
	case Prepare:
		r.phase = Commit
		r.votes = make(map[ids.NodeID]bool)
		r.affirmative = 0
		return Outcome{Phase: Commit, Advanced: true}, nil
	default: // Commit
		voters := make([]ids.NodeID, 0, len(r.votes))
		for voter, affirmed := range r.votes {
			if affirmed {
				voters = append(voters, voter)
			}
		}
		r.phase = Finalized
		return Outcome{Phase: Finalized, Advanced: true, Voters: voters}, nil
	}
}

// expireIfDue lazily transitions a past-deadline round to Expired.
func (r *round) expireIfDue(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase.Terminal() || !now.After(r.deadline) {
		return false
	}
	r.phase = Expired
	return true
}

func (r *round) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.phase.Terminal() {
		r.phase = Failed
	}
}

// snapshot returns the round's externally visible state.
func (r *round) snapshot() RoundInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RoundInfo{
		TransferID:  r.transferID,
		Phase:       r.phase,
		Quorum:      r.quorum,
		Affirmative: r.affirmative,
		VoteCount:   len(r.votes),
		Deadline:    r.deadline,
	}
}

// RoundInfo is a read-only view of a round.
type RoundInfo struct {
	TransferID  ids.ID
	Phase       Phase
	Quorum      int
	Affirmative int
	VoteCount   int
	Deadline    time.Time
}
