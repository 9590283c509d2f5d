// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the Byzantine-quorum voting state machine
// that validates cross-chain transfers. Each transfer gets an independent
// round with its own lock, so votes on different transfers never contend.
package consensus

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/config"
)

var (
	ErrRoundExists     = errors.New("consensus round already exists")
	ErrUnknownRound    = errors.New("unknown consensus round")
	ErrRoundClosed     = errors.New("consensus round closed")
	ErrAlreadyVoted    = errors.New("validator already voted in this phase")
	ErrDeadlineExpired = errors.New("consensus deadline expired")
)

// Engine tracks the live voting rounds. Terminal rounds are dropped; the
// ledger's transfer record is the durable account of the result.
type Engine struct {
	params config.Params
	log    log.Logger

	mu     sync.RWMutex
	rounds map[ids.ID]*round
}

func NewEngine(params config.Params, logger log.Logger) *Engine {
	return &Engine{
		params: params,
		log:    logger,
		rounds: make(map[ids.ID]*round),
	}
}

// StartRound opens a Prepare-phase round for the transfer.
func (e *Engine) StartRound(transferID ids.ID, quorum int, deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rounds[transferID]; ok {
		return ErrRoundExists
	}
	e.rounds[transferID] = newRound(transferID, quorum, deadline)
	e.log.Debug("consensus round started",
		log.Stringer("transferID", transferID),
		log.Int("quorum", quorum),
	)
	return nil
}

func (e *Engine) get(transferID ids.ID) (*round, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rounds[transferID]
	if !ok {
		return nil, ErrUnknownRound
	}
	return r, nil
}

// RecordVote applies a validator's vote to the transfer's round. The
// round's deadline is checked lazily here; a vote arriving after the
// deadline expires the round instead of counting.
func (e *Engine) RecordVote(transferID ids.ID, nodeID ids.NodeID, vote bool, now time.Time) (Outcome, error) {
	r, err := e.get(transferID)
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := r.recordVote(nodeID, vote, now)
	if outcome.Phase.Terminal() {
		e.drop(transferID)
	}
	if outcome.Advanced {
		e.log.Info("consensus phase advanced",
			log.Stringer("transferID", transferID),
			log.String("phase", outcome.Phase.String()),
		)
	}
	return outcome, err
}

// ExpireIfDue lazily expires the transfer's round if its deadline passed.
// Returns true if this call performed the transition.
func (e *Engine) ExpireIfDue(transferID ids.ID, now time.Time) bool {
	r, err := e.get(transferID)
	if err != nil {
		return false
	}
	if !r.expireIfDue(now) {
		return false
	}
	e.drop(transferID)
	return true
}

// Abort fails the transfer's round, e.g. when the transfer is disputed
// while still voting.
func (e *Engine) Abort(transferID ids.ID) {
	r, err := e.get(transferID)
	if err != nil {
		return
	}
	r.fail()
	e.drop(transferID)
}

// Round returns a read-only view of the transfer's live round.
func (e *Engine) Round(transferID ids.ID) (RoundInfo, bool) {
	r, err := e.get(transferID)
	if err != nil {
		return RoundInfo{}, false
	}
	return r.snapshot(), true
}

func (e *Engine) drop(transferID ids.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rounds, transferID)
}
