// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chains holds the per-destination-chain transfer parameters and
// enforces amount bounds and the rolling daily volume cap.
package chains

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/config"
	safemath "github.com/luxfi/bridge/utils/math"
)

const configCacheSize = 64

var (
	ErrChainNotSupported  = errors.New("chain not supported")
	ErrAmountOutOfBounds  = errors.New("amount out of bounds")
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	ErrInvalidFeeRate     = errors.New("fee rate exceeds 100%")
)

const maxFeeRateBps = 10_000

// Config is the stored per-chain parameter record. Timestamps are unix
// seconds so the record round-trips through the linear codec.
type Config struct {
	ChainID          string `serialize:"true" json:"chainId"`
	Active           bool   `serialize:"true" json:"active"`
	MinConfirmations uint32 `serialize:"true" json:"minConfirmations"`
	MinAmount        uint64 `serialize:"true" json:"minAmount"`
	MaxAmount        uint64 `serialize:"true" json:"maxAmount"`
	DailyLimit       uint64 `serialize:"true" json:"dailyLimit"`
	DailyVolume      uint64 `serialize:"true" json:"dailyVolume"`
	LastReset        int64  `serialize:"true" json:"lastReset"`
	FeeRateBps       uint32 `serialize:"true" json:"feeRateBps"`
}

// windowElapsed reports whether the daily volume window has rolled over
// since the last reset.
func (c *Config) windowElapsed(now time.Time, window time.Duration) bool {
	return now.Sub(time.Unix(c.LastReset, 0)) >= window
}

// effectiveVolume is the volume counted against the cap at [now]: zero if
// the window has elapsed, the accumulated volume otherwise.
func (c *Config) effectiveVolume(now time.Time, window time.Duration) uint64 {
	if c.windowElapsed(now, window) {
		return 0
	}
	return c.DailyVolume
}

// Store is the database-backed chain configuration registry.
type Store struct {
	params config.Params
	log    log.Logger

	mu    sync.RWMutex
	db    database.Database
	cache *lru.Cache[string, *Config]
}

func NewStore(db database.Database, params config.Params, logger log.Logger) *Store {
	return &Store{
		params: params,
		log:    logger,
		db:     db,
		cache:  lru.NewCache[string, *Config](configCacheSize),
	}
}

// Put inserts or replaces a chain configuration.
func (s *Store) Put(cfg *Config) error {
	if cfg.MinAmount > cfg.MaxAmount {
		return fmt.Errorf("%w: min %d > max %d", ErrAmountOutOfBounds, cfg.MinAmount, cfg.MaxAmount)
	}
	if cfg.FeeRateBps > maxFeeRateBps {
		return ErrInvalidFeeRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put(cfg); err != nil {
		return err
	}
	s.log.Info("chain configured",
		log.String("chainID", cfg.ChainID),
		log.Uint64("maxAmount", cfg.MaxAmount),
		log.Uint64("dailyLimit", cfg.DailyLimit),
	)
	return nil
}

func (s *Store) put(cfg *Config) error {
	bytes, err := Codec.Marshal(codecVersion, cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize chain config: %w", err)
	}
	if err := s.db.Put([]byte(cfg.ChainID), bytes); err != nil {
		return err
	}
	s.cache.Put(cfg.ChainID, cfg)
	return nil
}

func (s *Store) get(chainID string) (*Config, error) {
	if cfg, ok := s.cache.Get(chainID); ok {
		return cfg, nil
	}
	bytes, err := s.db.Get([]byte(chainID))
	if err == database.ErrNotFound {
		return nil, ErrChainNotSupported
	}
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := Codec.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize chain config: %w", err)
	}
	s.cache.Put(chainID, cfg)
	return cfg, nil
}

// Get returns a snapshot of the chain's configuration.
func (s *Store) Get(chainID string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.get(chainID)
	if err != nil {
		return Config{}, err
	}
	return *cfg, nil
}

// CheckTransfer validates a prospective transfer against the chain's
// limits without mutating any state. The volume observed is the effective
// volume at [now], so an elapsed window reads as zero.
func (s *Store) CheckTransfer(chainID string, amount uint64, now time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.get(chainID)
	if err != nil {
		return err
	}
	return s.check(cfg, amount, now)
}

func (s *Store) check(cfg *Config, amount uint64, now time.Time) error {
	if !cfg.Active {
		return ErrChainNotSupported
	}
	if amount < cfg.MinAmount || amount > cfg.MaxAmount {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfBounds, amount, cfg.MinAmount, cfg.MaxAmount)
	}
	volume := cfg.effectiveVolume(now, s.params.VolumeWindow)
	newVolume, err := safemath.Add(volume, amount)
	if err != nil || newVolume > cfg.DailyLimit {
		return ErrDailyLimitExceeded
	}
	return nil
}

// Consume re-validates the transfer and debits the daily volume window.
// The reset is applied lazily here: the first consume after the window
// elapses observes a zero volume before adding the new amount.
func (s *Store) Consume(chainID string, amount uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.get(chainID)
	if err != nil {
		return err
	}
	if err := s.check(cfg, amount, now); err != nil {
		return err
	}

	updated := *cfg
	if updated.windowElapsed(now, s.params.VolumeWindow) {
		updated.DailyVolume = 0
		updated.LastReset = now.Unix()
	}
	// check already proved this addition stays within the cap.
	updated.DailyVolume += amount
	return s.put(&updated)
}
