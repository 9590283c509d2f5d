// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fraud maintains a decaying per-sender risk score used to throttle
// suspicious transfer activity. The score is a best-effort heuristic and is
// never the sole compliance control.
package fraud

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/config"
	safemath "github.com/luxfi/bridge/utils/math"
)

var ErrRiskTooHigh = errors.New("fraud risk too high")

// Profile is the per-sender risk record. Created lazily on a sender's first
// transfer attempt and mutated on every attempt after that.
type Profile struct {
	Score             float64
	LastActivity      time.Time
	HighValueAttempts uint64
	Blacklisted       bool
}

// Detector scores senders and gates new transfers. Profiles are soft state:
// they decay toward zero and are rebuilt from live traffic, so they are kept
// in memory rather than in the backing store.
type Detector struct {
	params config.Params
	log    log.Logger

	mu       sync.Mutex
	profiles map[ids.ShortID]*Profile
}

func NewDetector(params config.Params, logger log.Logger) *Detector {
	return &Detector{
		params:   params,
		log:      logger,
		profiles: make(map[ids.ShortID]*Profile),
	}
}

// decayedScore returns the profile's score with the lazy exponential decay
// applied: once per full decay interval since the last attempt the score is
// multiplied by the decay rate. Decay alone never increases a score and
// never drives it negative. The profile itself is not mutated, so repeated
// reads observe the same value; only RecordAttempt re-anchors the decay.
func (d *Detector) decayedScore(p *Profile, now time.Time) float64 {
	if p.Score <= 0 || !now.After(p.LastActivity) {
		return p.Score
	}
	intervals := now.Sub(p.LastActivity) / d.params.FraudDecayEvery
	if intervals <= 0 {
		return p.Score
	}
	score := p.Score * math.Pow(d.params.FraudDecayRate, float64(intervals))
	if score < 0 {
		return 0
	}
	return score
}

// RecordAttempt scores a transfer attempt and returns the updated score.
// The attempt is scored even when the transfer itself ends up rejected; the
// attempt is signal. chainMax is the destination chain's configured maximum
// transfer amount.
func (d *Detector) RecordAttempt(sender ids.ShortID, amount, chainMax uint64, now time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[sender]
	if !ok {
		p = &Profile{LastActivity: now}
		d.profiles[sender] = p
	}
	p.Score = d.decayedScore(p, now)

	// A brand-new profile anchors LastActivity at now, so a sender's very
	// first attempt also takes the rapid-fire penalty.
	if now.Sub(p.LastActivity) < d.params.RapidFireWindow {
		p.Score += d.params.RapidFirePenalty
	}
	if safemath.ExceedsRatio(amount, chainMax, d.params.FraudHighValueRatio) {
		p.Score += d.params.HighValuePenalty
		p.HighValueAttempts++
	}
	p.LastActivity = now

	if p.Score >= d.params.FraudThreshold {
		d.log.Warn("sender crossed fraud threshold",
			log.Stringer("sender", sender),
			log.Uint64("score", uint64(p.Score)),
		)
	}
	return p.Score
}

// Score returns the sender's current risk score with decay applied.
// Unknown senders score zero. Reading a score is not activity and does not
// re-anchor the decay.
func (d *Detector) Score(sender ids.ShortID, now time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[sender]
	if !ok {
		return 0
	}
	return d.decayedScore(p, now)
}

// Blocked reports whether new transfers from the sender should be refused.
func (d *Detector) Blocked(sender ids.ShortID, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[sender]
	if !ok {
		return false
	}
	if p.Blacklisted {
		return true
	}
	return d.decayedScore(p, now) >= d.params.FraudThreshold
}

// Reset clears a sender's score. Administrative override for senders whose
// score was inflated by legitimate bursts.
func (d *Detector) Reset(sender ids.ShortID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.profiles[sender]; ok {
		p.Score = 0
		p.HighValueAttempts = 0
	}
}

// Blacklist permanently blocks a sender until Unblacklist.
func (d *Detector) Blacklist(sender ids.ShortID, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[sender]
	if !ok {
		p = &Profile{LastActivity: now}
		d.profiles[sender] = p
	}
	p.Blacklisted = true
}

func (d *Detector) Unblacklist(sender ids.ShortID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.profiles[sender]; ok {
		p.Blacklisted = false
	}
}
