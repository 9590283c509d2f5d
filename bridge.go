// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge assembles the cross-chain transfer core: the chain
// configuration store, validator registry, fraud detector, consensus
// engine, transfer ledger, and reward distributor, behind one authorized
// surface. State transitions commit to the ledger first; events, reward
// accrual, reputation updates, and compliance reports follow the commit.
package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/pubsub"
	"github.com/luxfi/timer/mockable"

	"github.com/luxfi/bridge/authz"
	"github.com/luxfi/bridge/chains"
	"github.com/luxfi/bridge/config"
	"github.com/luxfi/bridge/consensus"
	"github.com/luxfi/bridge/events"
	"github.com/luxfi/bridge/fraud"
	"github.com/luxfi/bridge/ledger"
	"github.com/luxfi/bridge/rewards"
	"github.com/luxfi/bridge/validators"
)

var (
	chainPrefix     = []byte("chain")
	validatorPrefix = []byte("validator")
	transferPrefix  = []byte("transfer")
	rewardPrefix    = []byte("reward")

	ErrComplianceRejected = errors.New("transfer rejected by compliance")
	ErrInvalidSignatures  = errors.New("release signatures failed verification")
)

// Options carries the optional collaborators of the core. Zero values are
// replaced with accept-all defaults, so a core built with Options{} is
// fully functional and externally ungated.
type Options struct {
	Oracle     ChainOracle
	Compliance ComplianceEngine
	Crypto     CryptoValidator
	PubSub     *pubsub.Server
}

// Core is the assembled transfer validation system.
type Core struct {
	params config.Params
	log    log.Logger
	clock  mockable.Clock

	chains   *chains.Store
	fraud    *fraud.Detector
	registry *validators.Registry
	engine   *consensus.Engine
	ledger   *ledger.Ledger
	rewards  *rewards.Distributor

	authz    *authz.Table
	notifier *events.Notifier
	metrics  *metrics

	oracle     ChainOracle
	compliance ComplianceEngine
	crypto     CryptoValidator
}

// New builds a core over [db]. Each subsystem gets its own key prefix, so
// one database serves the whole core.
func New(db database.Database, params config.Params, logger log.Logger, opts Options) (*Core, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	registry, err := validators.NewRegistry(prefixdb.New(validatorPrefix, db), params, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load validator registry: %w", err)
	}

	chainStore := chains.NewStore(prefixdb.New(chainPrefix, db), params, logger)
	detector := fraud.NewDetector(params, logger)
	engine := consensus.NewEngine(params, logger)

	c := &Core{
		params:     params,
		log:        logger,
		chains:     chainStore,
		fraud:      detector,
		registry:   registry,
		engine:     engine,
		rewards:    rewards.NewDistributor(prefixdb.New(rewardPrefix, db), logger),
		authz:      authz.NewTable(),
		notifier:   events.NewNotifier(opts.PubSub),
		metrics:    newMetrics(),
		oracle:     opts.Oracle,
		compliance: opts.Compliance,
		crypto:     opts.Crypto,
	}
	c.ledger = ledger.New(
		prefixdb.New(transferPrefix, db),
		chainStore,
		detector,
		registry,
		engine,
		params,
		logger,
	)

	if c.oracle == nil {
		c.oracle = acceptAllOracle{}
	}
	if c.compliance == nil {
		c.compliance = acceptAllCompliance{}
	}
	if c.crypto == nil {
		c.crypto = acceptAllCrypto{}
	}
	return c, nil
}

// Authz exposes the role table so deployments can assign admin and
// operator actors.
func (c *Core) Authz() *authz.Table { return c.authz }

// InitiateTransfer admits a transfer request and opens its consensus
// round. The request is screened by the compliance engine and the chain
// oracle before it reaches the ledger.
func (c *Core) InitiateTransfer(req ledger.Request) (ids.ID, error) {
	now := c.clock.Time()

	if !c.oracle.ChainIsSupported(req.DestChain) {
		return ids.Empty, chains.ErrChainNotSupported
	}
	if !c.compliance.CheckCompliance(req.Sender, req.Amount, req.DestChain) {
		return ids.Empty, ErrComplianceRejected
	}

	t, err := c.ledger.Initiate(req, now)
	if errors.Is(err, fraud.ErrRiskTooHigh) {
		c.metrics.fraudBlocks.Inc()
		c.notifier.Publish(&events.Event{
			Type:      events.FraudFlagged,
			Sender:    req.Sender,
			Chain:     req.DestChain,
			Amount:    req.Amount,
			Timestamp: now,
		})
		return ids.Empty, err
	}
	if err != nil {
		return ids.Empty, err
	}

	c.metrics.transfersInitiated.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.TransferInitiated,
		TransferID: t.ID,
		Sender:     t.Sender,
		Recipient:  t.Recipient,
		Chain:      t.DestChain,
		Amount:     t.Amount,
		Timestamp:  now,
	})
	return t.ID, nil
}

// SubmitVote records a validator's vote on a pending transfer. When the
// vote finalizes consensus, the fee is distributed to the affirmative
// voters and their reputations are credited, after the ledger commit.
func (c *Core) SubmitVote(transferID ids.ID, nodeID ids.NodeID, vote bool) error {
	now := c.clock.Time()

	result, err := c.ledger.RecordVote(transferID, nodeID, vote, now)
	if errors.Is(err, consensus.ErrDeadlineExpired) {
		c.onExpired(result.Transfer, now)
		return err
	}
	if err != nil {
		return err
	}

	c.metrics.votesRecorded.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.VoteRecorded,
		TransferID: transferID,
		Validator:  nodeID,
		Timestamp:  now,
	})
	if !result.Finalized {
		return nil
	}

	c.metrics.transfersValidated.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.ConsensusFinalized,
		TransferID: transferID,
		Sender:     result.Transfer.Sender,
		Chain:      result.Transfer.DestChain,
		Amount:     result.Transfer.Amount,
		Timestamp:  now,
	})

	fee, err := c.rewards.Distribute(transferID, result.Transfer.Amount, result.Transfer.FeeRateBps, result.Voters)
	if err != nil {
		c.log.Error("reward distribution failed",
			log.Stringer("transferID", transferID),
			log.Err(err),
		)
	} else if fee > 0 {
		c.metrics.rewardsDistributed.Inc()
	}
	for _, voter := range result.Voters {
		if err := c.registry.RecordParticipation(voter, true, now); err != nil {
			c.log.Warn("failed to credit participation",
				log.Stringer("nodeID", voter),
				log.Err(err),
			)
		}
	}
	return nil
}

// ExecuteTransfer releases a validated transfer. Signature material is
// checked against the finalizing voters before the ledger transition;
// executing an already-executed transfer is a no-op.
func (c *Core) ExecuteTransfer(transferID ids.ID, sigs [][]byte) error {
	now := c.clock.Time()

	t, err := c.ledger.Get(transferID)
	if err != nil {
		return err
	}
	if !c.crypto.VerifyMultiSignature(transferID, sigs, t.Voters) {
		return ErrInvalidSignatures
	}
	if !c.crypto.ValidateTimelock(transferID, time.Unix(t.UnlockTime, 0)) {
		return ErrInvalidSignatures
	}

	result, err := c.ledger.Execute(transferID, now)
	if err != nil {
		return err
	}
	if result.AlreadyExecuted {
		return nil
	}

	c.metrics.transfersExecuted.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.TransferExecuted,
		TransferID: transferID,
		Sender:     result.Transfer.Sender,
		Recipient:  result.Transfer.Recipient,
		Chain:      result.Transfer.DestChain,
		Amount:     result.Transfer.Amount,
		Timestamp:  now,
	})
	c.compliance.ReportTransaction(transferID, result.Transfer.Sender, result.Transfer.Amount, result.Transfer.DestChain)
	return nil
}

// DisputeTransfer freezes a pending or validated transfer.
func (c *Core) DisputeTransfer(transferID ids.ID, reason string) error {
	now := c.clock.Time()

	t, err := c.ledger.Dispute(transferID, reason)
	if err != nil {
		return err
	}
	c.metrics.transfersDisputed.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.TransferDisputed,
		TransferID: transferID,
		Sender:     t.Sender,
		Timestamp:  now,
	})
	return nil
}

// ResolveDispute settles a disputed transfer: refunded, or restored to
// validated for another execution attempt.
func (c *Core) ResolveDispute(actor ids.ShortID, transferID ids.ID, refund bool) error {
	if err := c.authz.Require(actor, authz.CapResolveDispute); err != nil {
		return err
	}
	now := c.clock.Time()

	t, err := c.ledger.Resolve(transferID, refund)
	if err != nil {
		return err
	}
	if refund {
		c.metrics.transfersRefunded.Inc()
		c.notifier.Publish(&events.Event{
			Type:       events.TransferRefunded,
			TransferID: transferID,
			Sender:     t.Sender,
			Timestamp:  now,
		})
	}
	return nil
}

// RefundExpired refunds a transfer that missed its consensus deadline.
func (c *Core) RefundExpired(transferID ids.ID) error {
	now := c.clock.Time()

	// Expire lazily first, so callers need not race the deadline sweep.
	if _, err := c.ledger.ExpireIfDue(transferID, now); err != nil {
		return err
	}
	t, err := c.ledger.Refund(transferID)
	if err != nil {
		return err
	}
	c.metrics.transfersRefunded.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.TransferRefunded,
		TransferID: transferID,
		Sender:     t.Sender,
		Timestamp:  now,
	})
	return nil
}

// ExpireTransfer lazily expires a pending transfer whose consensus
// deadline passed. Returns true if this call performed the transition.
func (c *Core) ExpireTransfer(transferID ids.ID) (bool, error) {
	now := c.clock.Time()

	expired, err := c.ledger.ExpireIfDue(transferID, now)
	if err != nil || !expired {
		return false, err
	}
	t, err := c.ledger.Get(transferID)
	if err != nil {
		return true, err
	}
	c.onExpired(t, now)
	return true, nil
}

func (c *Core) onExpired(t ledger.Transfer, now time.Time) {
	c.metrics.transfersExpired.Inc()
	c.notifier.Publish(&events.Event{
		Type:       events.TransferExpired,
		TransferID: t.ID,
		Sender:     t.Sender,
		Timestamp:  now,
	})
	// Validators who voted in the failed round pay the reputation cost.
	for _, voter := range t.Voters {
		if err := c.registry.RecordParticipation(voter, false, now); err != nil {
			c.log.Warn("failed to debit participation",
				log.Stringer("nodeID", voter),
				log.Err(err),
			)
		}
	}
}

// AddValidator registers a new validator. Requires validator.add.
func (c *Core) AddValidator(actor ids.ShortID, nodeID ids.NodeID, stake uint64, supportedChains []string) error {
	if err := c.authz.Require(actor, authz.CapAddValidator); err != nil {
		return err
	}
	now := c.clock.Time()
	if err := c.registry.Add(nodeID, stake, supportedChains, now); err != nil {
		return err
	}
	c.notifier.Publish(&events.Event{
		Type:      events.ValidatorAdded,
		Validator: nodeID,
		Timestamp: now,
	})
	return nil
}

// RemoveValidator deactivates a validator. Requires validator.remove.
func (c *Core) RemoveValidator(actor ids.ShortID, nodeID ids.NodeID, reason string) error {
	if err := c.authz.Require(actor, authz.CapRemoveValidator); err != nil {
		return err
	}
	if err := c.registry.Remove(nodeID, reason); err != nil {
		return err
	}
	c.notifier.Publish(&events.Event{
		Type:      events.ValidatorRemoved,
		Validator: nodeID,
		Timestamp: c.clock.Time(),
	})
	return nil
}

// SlashValidator cuts a validator's stake. Requires validator.slash.
func (c *Core) SlashValidator(actor ids.ShortID, nodeID ids.NodeID, fraction float64, reason string) error {
	if err := c.authz.Require(actor, authz.CapSlashValidator); err != nil {
		return err
	}
	return c.registry.Slash(nodeID, fraction, reason)
}

// PutChain inserts or replaces a chain configuration. Requires chain.put.
func (c *Core) PutChain(actor ids.ShortID, cfg *chains.Config) error {
	if err := c.authz.Require(actor, authz.CapPutChain); err != nil {
		return err
	}
	return c.chains.Put(cfg)
}

// ResetRisk clears a sender's fraud score. Requires fraud.reset.
func (c *Core) ResetRisk(actor ids.ShortID, sender ids.ShortID) error {
	if err := c.authz.Require(actor, authz.CapResetRisk); err != nil {
		return err
	}
	c.fraud.Reset(sender)
	return nil
}

// BlacklistSender permanently blocks a sender. Requires fraud.blacklist.
func (c *Core) BlacklistSender(actor ids.ShortID, sender ids.ShortID) error {
	if err := c.authz.Require(actor, authz.CapBlacklist); err != nil {
		return err
	}
	c.fraud.Blacklist(sender, c.clock.Time())
	return nil
}

// UnblacklistSender lifts a sender's blacklist. Requires fraud.blacklist.
func (c *Core) UnblacklistSender(actor ids.ShortID, sender ids.ShortID) error {
	if err := c.authz.Require(actor, authz.CapBlacklist); err != nil {
		return err
	}
	c.fraud.Unblacklist(sender)
	return nil
}

// Transfer returns the transfer record.
func (c *Core) Transfer(transferID ids.ID) (ledger.Transfer, error) {
	return c.ledger.Get(transferID)
}

// ConsensusRound returns the transfer's live voting round, if any.
func (c *Core) ConsensusRound(transferID ids.ID) (consensus.RoundInfo, bool) {
	return c.engine.Round(transferID)
}

// Validator returns the validator's record.
func (c *Core) Validator(nodeID ids.NodeID) (validators.Validator, error) {
	return c.registry.Get(nodeID)
}

// Chain returns the chain's configuration.
func (c *Core) Chain(chainID string) (chains.Config, error) {
	return c.chains.Get(chainID)
}

// RiskScore returns the sender's current decayed fraud score.
func (c *Core) RiskScore(sender ids.ShortID) float64 {
	return c.fraud.Score(sender, c.clock.Time())
}

// AccruedRewards returns a validator's undistributed reward balance.
func (c *Core) AccruedRewards(nodeID ids.NodeID) (uint64, error) {
	return c.rewards.Accrued(nodeID)
}
