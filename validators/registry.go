// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators tracks the identity, stake, and standing of the
// validator set that votes on cross-chain transfers. Validators are never
// erased: removal and slashing deactivate or jail, preserving history.
package validators

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/config"
)

var (
	ErrInvalidStake           = errors.New("stake below configured minimum")
	ErrCapacityExceeded       = errors.New("validator capacity exceeded")
	ErrBelowMinimumValidators = errors.New("removal would drop active set below minimum")
	ErrUnknownValidator       = errors.New("unknown validator")
	ErrValidatorExists        = errors.New("validator already registered")
)

// Validator is the stored per-validator record.
type Validator struct {
	NodeID          ids.NodeID `serialize:"true" json:"nodeId"`
	Stake           uint64     `serialize:"true" json:"stake"`
	Reputation      uint32     `serialize:"true" json:"reputation"`
	Active          bool       `serialize:"true" json:"active"`
	Jailed          bool       `serialize:"true" json:"jailed"`
	LastActivity    int64      `serialize:"true" json:"lastActivity"`
	SupportedChains []string   `serialize:"true" json:"supportedChains"`
}

func (v *Validator) supportsChain(chainID string) bool {
	for _, c := range v.SupportedChains {
		if c == chainID {
			return true
		}
	}
	return false
}

// Registry is the database-backed validator set. The full set is small
// (bounded by MaxValidators) and is kept resident; the database is the
// system of record.
type Registry struct {
	params config.Params
	log    log.Logger

	mu         sync.RWMutex
	db         database.Database
	validators map[ids.NodeID]*Validator
}

// NewRegistry loads any previously persisted validators from [db].
func NewRegistry(db database.Database, params config.Params, logger log.Logger) (*Registry, error) {
	r := &Registry{
		params:     params,
		log:        logger,
		db:         db,
		validators: make(map[ids.NodeID]*Validator),
	}

	it := db.NewIterator()
	defer it.Release()
	for it.Next() {
		vdr := &Validator{}
		if _, err := Codec.Unmarshal(it.Value(), vdr); err != nil {
			return nil, fmt.Errorf("failed to deserialize validator: %w", err)
		}
		r.validators[vdr.NodeID] = vdr
	}
	return r, it.Error()
}

func (r *Registry) put(vdr *Validator) error {
	bytes, err := Codec.Marshal(codecVersion, vdr)
	if err != nil {
		return fmt.Errorf("failed to serialize validator: %w", err)
	}
	if err := r.db.Put(vdr.NodeID.Bytes(), bytes); err != nil {
		return err
	}
	r.validators[vdr.NodeID] = vdr
	return nil
}

func (r *Registry) activeCount() int {
	count := 0
	for _, vdr := range r.validators {
		if vdr.Active {
			count++
		}
	}
	return count
}

// Add registers a new active validator with baseline reputation.
func (r *Registry) Add(nodeID ids.NodeID, stake uint64, supportedChains []string, now time.Time) error {
	if stake < r.params.MinStake {
		return fmt.Errorf("%w: %d < %d", ErrInvalidStake, stake, r.params.MinStake)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.validators[nodeID]; ok && existing.Active {
		return ErrValidatorExists
	}
	if r.activeCount() >= r.params.MaxValidators {
		return ErrCapacityExceeded
	}

	vdr := &Validator{
		NodeID:          nodeID,
		Stake:           stake,
		Reputation:      r.params.BaselineReputation,
		Active:          true,
		LastActivity:    now.Unix(),
		SupportedChains: append([]string(nil), supportedChains...),
	}
	if err := r.put(vdr); err != nil {
		return err
	}
	r.log.Info("validator added",
		log.Stringer("nodeID", nodeID),
		log.Uint64("stake", stake),
		log.Int("supportedChains", len(supportedChains)),
	)
	return nil
}

// Remove deactivates a validator. History is preserved. Fails if the
// active set would drop below the configured minimum.
func (r *Registry) Remove(nodeID ids.NodeID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vdr, ok := r.validators[nodeID]
	if !ok || !vdr.Active {
		return ErrUnknownValidator
	}
	if r.activeCount()-1 < r.params.MinValidators {
		return ErrBelowMinimumValidators
	}

	updated := *vdr
	updated.Active = false
	if err := r.put(&updated); err != nil {
		return err
	}
	r.log.Info("validator removed",
		log.Stringer("nodeID", nodeID),
		log.String("reason", reason),
	)
	return nil
}

// Slash reduces a validator's stake by fraction (0, 1]. A validator slashed
// under the minimum stake is deactivated, unless deactivation would violate
// the minimum-set invariant, in which case it is jailed instead.
func (r *Registry) Slash(nodeID ids.NodeID, fraction float64, reason string) error {
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("invalid slash fraction %f", fraction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	vdr, ok := r.validators[nodeID]
	if !ok {
		return ErrUnknownValidator
	}

	updated := *vdr
	updated.Stake -= uint64(float64(updated.Stake) * fraction)
	if updated.Stake < r.params.MinStake {
		if updated.Active && r.activeCount()-1 >= r.params.MinValidators {
			updated.Active = false
		} else {
			updated.Jailed = true
		}
	}
	if err := r.put(&updated); err != nil {
		return err
	}
	r.log.Warn("validator slashed",
		log.Stringer("nodeID", nodeID),
		log.String("reason", reason),
		log.Uint64("remainingStake", updated.Stake),
	)
	return nil
}

// Jail bars a validator from voting without deactivating it.
func (r *Registry) Jail(nodeID ids.NodeID) error {
	return r.setJailed(nodeID, true)
}

// Unjail restores a jailed validator's voting rights.
func (r *Registry) Unjail(nodeID ids.NodeID) error {
	return r.setJailed(nodeID, false)
}

func (r *Registry) setJailed(nodeID ids.NodeID, jailed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vdr, ok := r.validators[nodeID]
	if !ok {
		return ErrUnknownValidator
	}
	updated := *vdr
	updated.Jailed = jailed
	return r.put(&updated)
}

// RecordParticipation adjusts reputation and activity from a consensus
// outcome. Participation in a finalized round earns reputation; voting in
// a round that failed or expired costs it.
func (r *Registry) RecordParticipation(nodeID ids.NodeID, finalized bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vdr, ok := r.validators[nodeID]
	if !ok {
		return ErrUnknownValidator
	}
	updated := *vdr
	if finalized {
		updated.Reputation++
	} else if updated.Reputation > 0 {
		updated.Reputation--
	}
	updated.LastActivity = now.Unix()
	return r.put(&updated)
}

// Get returns a snapshot of the validator's record.
func (r *Registry) Get(nodeID ids.NodeID) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vdr, ok := r.validators[nodeID]
	if !ok {
		return Validator{}, ErrUnknownValidator
	}
	return *vdr, nil
}

// IsActive reports whether the validator exists and is active.
func (r *Registry) IsActive(nodeID ids.NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vdr, ok := r.validators[nodeID]
	return ok && vdr.Active
}

// SupportsChain reports whether the validator attests the given chain.
func (r *Registry) SupportsChain(nodeID ids.NodeID, chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vdr, ok := r.validators[nodeID]
	return ok && vdr.supportsChain(chainID)
}

// Eligible reports whether the validator may vote on transfers to the
// given chain: active, not jailed, and supporting the chain.
func (r *Registry) Eligible(nodeID ids.NodeID, chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vdr, ok := r.validators[nodeID]
	return ok && vdr.Active && !vdr.Jailed && vdr.supportsChain(chainID)
}

// ActiveCount returns the number of active validators.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCount()
}

// ActiveForChain returns the validators eligible to vote on transfers to
// the given chain.
func (r *Registry) ActiveForChain(chainID string) []ids.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodeIDs := make([]ids.NodeID, 0, len(r.validators))
	for nodeID, vdr := range r.validators {
		if vdr.Active && !vdr.Jailed && vdr.supportsChain(chainID) {
			nodeIDs = append(nodeIDs, nodeID)
		}
	}
	return nodeIDs
}
