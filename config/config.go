// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	errNoValidators      = errors.New("min validator count must be positive")
	errValidatorBounds   = errors.New("max validator count below min validator count")
	errQuorumFraction    = errors.New("quorum fraction must be in (0, 1]")
	errQuorumScale       = errors.New("high value quorum scale must be >= 1")
	errTimelockBounds    = errors.New("min timelock exceeds max timelock")
	errDecayRate         = errors.New("fraud decay rate must be in (0, 1]")
	errDecayInterval     = errors.New("fraud decay interval must be positive")
	errConsensusTimeout  = errors.New("consensus timeout must be positive")
	errHighValueRatio    = errors.New("high value ratio must be in (0, 1]")
	errZeroFraudCeiling  = errors.New("fraud threshold must be positive")
	errVolumeWindowBound = errors.New("volume window must be positive")
)

// Params collects all the foundational parameters of the transfer
// consensus core. Every heuristic constant the voting, fraud, and timelock
// logic depends on is a field here so deployments can retune them without
// code changes.
type Params struct {
	// Validator set bounds.
	MinValidators int    `json:"minValidators"` // Consensus is disabled below this
	MaxValidators int    `json:"maxValidators"`
	MinStake      uint64 `json:"minStake"`

	// Reputation assigned to a freshly added validator.
	BaselineReputation uint32 `json:"baselineReputation"`

	// Quorum arithmetic. Base quorum is ceil(n * QuorumNumerator /
	// QuorumDenominator) over the active validator count n.
	QuorumNumerator   uint64 `json:"quorumNumerator"`
	QuorumDenominator uint64 `json:"quorumDenominator"`

	// Scale applied to the base quorum when the transfer amount exceeds
	// FraudHighValueRatio of the chain maximum.
	HighValueQuorumScale float64 `json:"highValueQuorumScale"`

	// Hard floor on the computed quorum.
	MinQuorum int `json:"minQuorum"`

	// Window a consensus round has to reach quorum before expiring.
	ConsensusTimeout time.Duration `json:"consensusTimeout"`

	// Timelock bounds for delayed execution.
	MinTimelock time.Duration `json:"minTimelock"`
	MaxTimelock time.Duration `json:"maxTimelock"`

	// A transfer above HighValueRatio of the chain maximum is flagged
	// high-value and receives a mandatory unlock delay.
	HighValueRatio float64 `json:"highValueRatio"`

	// A transfer above FraudHighValueRatio of the chain maximum triggers
	// the high-value risk penalty and quorum scaling.
	FraudHighValueRatio float64 `json:"fraudHighValueRatio"`

	// Fraud scoring heuristics.
	RapidFireWindow  time.Duration `json:"rapidFireWindow"`
	RapidFirePenalty float64       `json:"rapidFirePenalty"`
	HighValuePenalty float64       `json:"highValuePenalty"`
	FraudThreshold   float64       `json:"fraudThreshold"`
	FraudDecayRate   float64       `json:"fraudDecayRate"`
	FraudDecayEvery  time.Duration `json:"fraudDecayEvery"`

	// Rolling window for per-chain daily volume caps.
	VolumeWindow time.Duration `json:"volumeWindow"`
}

// Default returns the production parameter set.
func Default() Params {
	return Params{
		MinValidators:        5,
		MaxValidators:        100,
		MinStake:             1_000_000,
		BaselineReputation:   100,
		QuorumNumerator:      67,
		QuorumDenominator:    100,
		HighValueQuorumScale: 1.5,
		MinQuorum:            5,
		ConsensusTimeout:     24 * time.Hour,
		MinTimelock:          time.Hour,
		MaxTimelock:          30 * 24 * time.Hour,
		HighValueRatio:       0.10,
		FraudHighValueRatio:  0.50,
		RapidFireWindow:      time.Minute,
		RapidFirePenalty:     10,
		HighValuePenalty:     20,
		FraudThreshold:       100,
		FraudDecayRate:       0.95,
		FraudDecayEvery:      time.Hour,
		VolumeWindow:         24 * time.Hour,
	}
}

// Validate rejects parameter sets the core cannot operate under.
func (p Params) Validate() error {
	switch {
	case p.MinValidators <= 0:
		return errNoValidators
	case p.MaxValidators < p.MinValidators:
		return errValidatorBounds
	case p.QuorumDenominator == 0 || p.QuorumNumerator == 0 || p.QuorumNumerator > p.QuorumDenominator:
		return errQuorumFraction
	case p.HighValueQuorumScale < 1:
		return errQuorumScale
	case p.MinQuorum <= 0:
		return fmt.Errorf("min quorum must be positive, got %d", p.MinQuorum)
	case p.ConsensusTimeout <= 0:
		return errConsensusTimeout
	case p.MinTimelock > p.MaxTimelock:
		return errTimelockBounds
	case p.HighValueRatio <= 0 || p.HighValueRatio > 1:
		return errHighValueRatio
	case p.FraudHighValueRatio <= 0 || p.FraudHighValueRatio > 1:
		return errHighValueRatio
	case p.FraudDecayRate <= 0 || p.FraudDecayRate > 1:
		return errDecayRate
	case p.FraudDecayEvery <= 0:
		return errDecayInterval
	case p.FraudThreshold <= 0:
		return errZeroFraudCeiling
	case p.VolumeWindow <= 0:
		return errVolumeWindowBound
	}
	return nil
}
