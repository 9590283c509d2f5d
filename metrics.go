// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "github.com/luxfi/metric"

type metrics struct {
	transfersInitiated metric.Counter
	transfersValidated metric.Counter
	transfersExecuted  metric.Counter
	transfersDisputed  metric.Counter
	transfersExpired   metric.Counter
	transfersRefunded  metric.Counter
	votesRecorded      metric.Counter
	fraudBlocks        metric.Counter
	rewardsDistributed metric.Counter
}

func newMetrics() *metrics {
	return &metrics{
		transfersInitiated: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_initiated",
			Help: "Number of transfers admitted into the ledger",
		}),
		transfersValidated: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_validated",
			Help: "Number of transfers that reached consensus",
		}),
		transfersExecuted: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_executed",
			Help: "Number of transfers released to their destination chain",
		}),
		transfersDisputed: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_disputed",
			Help: "Number of transfers frozen by a dispute",
		}),
		transfersExpired: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_expired",
			Help: "Number of transfers that missed their consensus deadline",
		}),
		transfersRefunded: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_transfers_refunded",
			Help: "Number of transfers refunded to their sender",
		}),
		votesRecorded: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_votes_recorded",
			Help: "Number of validator votes accepted",
		}),
		fraudBlocks: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_fraud_blocks",
			Help: "Number of transfers refused by the fraud gate",
		}),
		rewardsDistributed: metric.NewCounter(metric.CounterOpts{
			Name: "bridge_rewards_distributed",
			Help: "Number of reward distributions performed",
		}),
	}
}
