// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger owns the lifecycle of every cross-chain transfer. All
// mutation goes through defined state transitions; each transfer carries
// its own lock so operations on different transfers never contend.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/chains"
	"github.com/luxfi/bridge/config"
	"github.com/luxfi/bridge/consensus"
	"github.com/luxfi/bridge/fraud"
	"github.com/luxfi/bridge/timelock"
	safemath "github.com/luxfi/bridge/utils/math"
	"github.com/luxfi/bridge/validators"
)

const transferCacheSize = 2048

var (
	ErrUnknownTransfer       = errors.New("unknown transfer")
	ErrTransferExists        = errors.New("transfer already exists")
	ErrTransferNotPending    = errors.New("transfer is not pending")
	ErrUnauthorizedValidator = errors.New("validator not authorized for this transfer")
	ErrNotValidated          = errors.New("transfer is not validated")
	ErrStillTimelocked       = errors.New("transfer is still timelocked")
	ErrRiskReassessment      = errors.New("risk reassessment failed at execution")
	ErrInvalidTransition     = errors.New("operation invalid for transfer status")
)

// VoteResult reports what a recorded vote did to the transfer.
type VoteResult struct {
	Phase     consensus.Phase
	Advanced  bool
	Finalized bool
	// Voters holds the affirmative commit-phase voters when the vote
	// finalized consensus; they are owed the transfer fee.
	Voters   []ids.NodeID
	Transfer Transfer
}

// ExecResult reports the effect of an execution attempt.
type ExecResult struct {
	AlreadyExecuted bool
	Transfer        Transfer
}

// Ledger validates, records, and transitions transfers. It delegates limit
// checks to the chain store, risk gating to the fraud detector, voter
// eligibility to the validator registry, and vote counting to the
// consensus engine; the transfer record itself is owned exclusively here.
type Ledger struct {
	params   config.Params
	log      log.Logger
	chains   *chains.Store
	fraud    *fraud.Detector
	registry *validators.Registry
	engine   *consensus.Engine

	db    database.Database
	cache *lru.Cache[ids.ID, Transfer]

	// lockMu guards the lock map only; per-transfer mutation happens
	// under the transfer's own lock.
	lockMu sync.Mutex
	locks  map[ids.ID]*sync.Mutex
}

func New(
	db database.Database,
	chainStore *chains.Store,
	detector *fraud.Detector,
	registry *validators.Registry,
	engine *consensus.Engine,
	params config.Params,
	logger log.Logger,
) *Ledger {
	return &Ledger{
		params:   params,
		log:      logger,
		chains:   chainStore,
		fraud:    detector,
		registry: registry,
		engine:   engine,
		db:       db,
		cache:    lru.NewCache[ids.ID, Transfer](transferCacheSize),
		locks:    make(map[ids.ID]*sync.Mutex),
	}
}

func (l *Ledger) lock(transferID ids.ID) *sync.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()

	mu, ok := l.locks[transferID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[transferID] = mu
	}
	return mu
}

func (l *Ledger) put(t *Transfer) error {
	bytes, err := Codec.Marshal(codecVersion, t)
	if err != nil {
		return fmt.Errorf("failed to serialize transfer: %w", err)
	}
	if err := l.db.Put(t.ID[:], bytes); err != nil {
		return err
	}
	l.cache.Put(t.ID, *t)
	return nil
}

func (l *Ledger) get(transferID ids.ID) (*Transfer, error) {
	if t, ok := l.cache.Get(transferID); ok {
		return &t, nil
	}
	bytes, err := l.db.Get(transferID[:])
	if err == database.ErrNotFound {
		return nil, ErrUnknownTransfer
	}
	if err != nil {
		return nil, err
	}
	t := &Transfer{}
	if _, err := Codec.Unmarshal(bytes, t); err != nil {
		return nil, fmt.Errorf("failed to deserialize transfer: %w", err)
	}
	l.cache.Put(transferID, *t)
	return t, nil
}

// Initiate validates a transfer request against chain limits and fraud
// risk, computes its quorum and unlock time, and opens its consensus
// round. The attempt is scored even when it is rejected.
func (l *Ledger) Initiate(req Request, now time.Time) (*Transfer, error) {
	if req.Timestamp == 0 {
		req.Timestamp = now.Unix()
	}
	transferID, err := req.ComputeID()
	if err != nil {
		return nil, err
	}

	cfg, err := l.chains.Get(req.DestChain)
	if err != nil {
		return nil, err
	}
	if err := l.chains.CheckTransfer(req.DestChain, req.Amount, now); err != nil {
		return nil, err
	}

	// The attempt updates the risk score before the gate is consulted:
	// a rejected attempt is itself signal.
	l.fraud.RecordAttempt(req.Sender, req.Amount, cfg.MaxAmount, now)
	if l.fraud.Blocked(req.Sender, now) {
		return nil, fraud.ErrRiskTooHigh
	}

	quorum := consensus.QuorumSize(l.registry.ActiveCount(), req.Amount, cfg.MaxAmount, l.params)
	highValue := safemath.ExceedsRatio(req.Amount, cfg.MaxAmount, l.params.HighValueRatio)
	unlock := timelock.UnlockTime(now, req.Delay, highValue, l.params)
	deadline := now.Add(l.params.ConsensusTimeout)

	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := l.get(transferID); err == nil {
		return nil, ErrTransferExists
	} else if !errors.Is(err, ErrUnknownTransfer) {
		return nil, err
	}
	if err := l.chains.Consume(req.DestChain, req.Amount, now); err != nil {
		return nil, err
	}

	t := &Transfer{
		ID:                 transferID,
		Sender:             req.Sender,
		Recipient:          req.Recipient,
		Asset:              req.Asset,
		Amount:             req.Amount,
		SourceChain:        req.SourceChain,
		DestChain:          req.DestChain,
		Nonce:              req.Nonce,
		Status:             Pending,
		RequiredSignatures: uint32(quorum),
		HighValue:          highValue,
		FeeRateBps:         cfg.FeeRateBps,
		CreatedAt:          now.Unix(),
		UnlockTime:         unlock.Unix(),
		Deadline:           deadline.Unix(),
	}
	if err := l.put(t); err != nil {
		return nil, err
	}
	if err := l.engine.StartRound(transferID, quorum, deadline); err != nil {
		return nil, err
	}

	l.log.Info("transfer initiated",
		log.Stringer("transferID", transferID),
		log.Stringer("sender", req.Sender),
		log.String("destChain", req.DestChain),
		log.Uint64("amount", req.Amount),
		log.Int("quorum", quorum),
	)
	snapshot := *t
	return &snapshot, nil
}

// RecordVote applies a validator's vote to a pending transfer. Duplicate
// votes leave all counts unchanged and report consensus.ErrAlreadyVoted.
// A vote arriving after the consensus deadline expires the transfer.
func (l *Ledger) RecordVote(transferID ids.ID, nodeID ids.NodeID, vote bool, now time.Time) (VoteResult, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return VoteResult{}, err
	}
	if t.Status != Pending {
		return VoteResult{Transfer: *t}, ErrTransferNotPending
	}
	if t.deadlinePassed(now) {
		if err := l.expire(t); err != nil {
			return VoteResult{}, err
		}
		return VoteResult{Transfer: *t}, consensus.ErrDeadlineExpired
	}
	if !l.registry.Eligible(nodeID, t.DestChain) {
		return VoteResult{Transfer: *t}, ErrUnauthorizedValidator
	}

	outcome, err := l.engine.RecordVote(transferID, nodeID, vote, now)
	switch {
	case errors.Is(err, consensus.ErrDeadlineExpired):
		if expireErr := l.expire(t); expireErr != nil {
			return VoteResult{}, expireErr
		}
		return VoteResult{Transfer: *t}, err
	case err != nil:
		return VoteResult{Transfer: *t}, err
	}

	if vote {
		t.ReceivedSignatures++
	}
	if !t.hasVoted(nodeID) {
		t.Voters = append(t.Voters, nodeID)
	}

	result := VoteResult{
		Phase:    outcome.Phase,
		Advanced: outcome.Advanced,
	}
	if outcome.Phase == consensus.Finalized {
		t.Status = Validated
		result.Finalized = true
		result.Voters = outcome.Voters
		l.log.Info("transfer validated",
			log.Stringer("transferID", transferID),
			log.Uint64("affirmativeVotes", uint64(t.ReceivedSignatures)),
		)
	}
	if err := l.put(t); err != nil {
		return VoteResult{}, err
	}
	result.Transfer = *t
	return result, nil
}

// Execute releases a validated transfer. It re-checks the sender's risk at
// execution time to catch risk accrued during the voting window, and it is
// idempotent: executing an already-executed transfer is a no-op.
func (l *Ledger) Execute(transferID ids.ID, now time.Time) (ExecResult, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return ExecResult{}, err
	}
	if t.Status == Executed {
		return ExecResult{AlreadyExecuted: true, Transfer: *t}, nil
	}
	if t.Status != Validated {
		return ExecResult{Transfer: *t}, ErrNotValidated
	}
	if !timelock.CanRelease(time.Unix(t.UnlockTime, 0), now) {
		return ExecResult{Transfer: *t}, ErrStillTimelocked
	}
	if l.fraud.Blocked(t.Sender, now) {
		return ExecResult{Transfer: *t}, ErrRiskReassessment
	}

	t.Status = Executed
	if err := l.put(t); err != nil {
		return ExecResult{}, err
	}
	l.log.Info("transfer executed",
		log.Stringer("transferID", transferID),
		log.Uint64("amount", t.Amount),
	)
	return ExecResult{Transfer: *t}, nil
}

// Dispute freezes a pending or validated transfer. Executed transfers can
// no longer be disputed.
func (l *Ledger) Dispute(transferID ids.ID, reason string) (Transfer, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != Pending && t.Status != Validated {
		return *t, fmt.Errorf("%w: cannot dispute %s transfer", ErrInvalidTransition, t.Status)
	}

	if t.Status == Pending {
		l.engine.Abort(transferID)
	}
	t.Status = Disputed
	t.Reason = reason
	if err := l.put(t); err != nil {
		return Transfer{}, err
	}
	l.log.Warn("transfer disputed",
		log.Stringer("transferID", transferID),
		log.String("reason", reason),
	)
	return *t, nil
}

// Resolve settles a disputed transfer: refunded, or restored to Validated
// for another execution attempt.
func (l *Ledger) Resolve(transferID ids.ID, refund bool) (Transfer, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != Disputed {
		return *t, fmt.Errorf("%w: cannot resolve %s transfer", ErrInvalidTransition, t.Status)
	}

	if refund {
		t.Status = Refunded
	} else {
		t.Status = Validated
	}
	if err := l.put(t); err != nil {
		return Transfer{}, err
	}
	return *t, nil
}

// Refund settles an expired transfer.
func (l *Ledger) Refund(transferID ids.ID) (Transfer, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != Expired {
		return *t, fmt.Errorf("%w: cannot refund %s transfer", ErrInvalidTransition, t.Status)
	}
	t.Status = Refunded
	if err := l.put(t); err != nil {
		return Transfer{}, err
	}
	return *t, nil
}

// ExpireIfDue lazily expires a pending transfer whose consensus deadline
// passed. Returns true if this call performed the transition.
func (l *Ledger) ExpireIfDue(transferID ids.ID, now time.Time) (bool, error) {
	mu := l.lock(transferID)
	mu.Lock()
	defer mu.Unlock()

	t, err := l.get(transferID)
	if err != nil {
		return false, err
	}
	if t.Status != Pending || !t.deadlinePassed(now) {
		return false, nil
	}
	return true, l.expire(t)
}

// expire transitions the (already locked) transfer to Expired and drops
// its consensus round. The transfer becomes eligible for refund.
func (l *Ledger) expire(t *Transfer) error {
	l.engine.ExpireIfDue(t.ID, time.Unix(t.Deadline, 0).Add(time.Second))
	t.Status = Expired
	if err := l.put(t); err != nil {
		return err
	}
	l.log.Info("transfer expired",
		log.Stringer("transferID", t.ID),
	)
	return nil
}

// Get returns a snapshot of the transfer record.
func (l *Ledger) Get(transferID ids.ID) (Transfer, error) {
	t, err := l.get(transferID)
	if err != nil {
		return Transfer{}, err
	}
	return *t, nil
}
