// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events publishes the core's observable side effects. Events are
// notifications, not a network protocol: they are emitted after the state
// transition they describe has committed, never before.
package events

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/pubsub"
)

// Type names an observable side effect of the transfer core.
type Type string

const (
	TransferInitiated  Type = "transfer_initiated"
	VoteRecorded       Type = "vote_recorded"
	ConsensusFinalized Type = "consensus_finalized"
	TransferExecuted   Type = "transfer_executed"
	TransferDisputed   Type = "transfer_disputed"
	TransferExpired    Type = "transfer_expired"
	TransferRefunded   Type = "transfer_refunded"
	FraudFlagged       Type = "fraud_flagged"
	ValidatorAdded     Type = "validator_added"
	ValidatorRemoved   Type = "validator_removed"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type       Type        `json:"type"`
	TransferID ids.ID      `json:"transferId,omitempty"`
	Sender     ids.ShortID `json:"sender,omitempty"`
	Recipient  ids.ShortID `json:"recipient,omitempty"`
	Validator  ids.NodeID  `json:"validator,omitempty"`
	Chain      string      `json:"chain,omitempty"`
	Amount     uint64      `json:"amount,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Filter implements pubsub.Filterer. Subscribers filtering on an address
// receive events whose sender or recipient matches.
func (e *Event) Filter(filters []pubsub.Filter) ([]bool, interface{}) {
	resp := make([]bool, len(filters))
	for i, f := range filters {
		resp[i] = f.Check(e.Sender[:]) || f.Check(e.Recipient[:])
	}
	return resp, e
}

// Notifier fans events out to a pubsub server. A nil Notifier, or one
// built without a server, drops events; callers never need to guard.
type Notifier struct {
	server *pubsub.Server
}

func NewNotifier(server *pubsub.Server) *Notifier {
	return &Notifier{server: server}
}

// Publish delivers the event to subscribers.
func (n *Notifier) Publish(ev *Event) {
	if n == nil || n.server == nil {
		return
	}
	n.server.Publish(ev)
}
