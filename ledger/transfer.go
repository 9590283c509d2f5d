// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"time"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

// Status is a transfer's position in its lifecycle.
type Status uint32

const (
	Pending Status = iota
	Validated
	Executed
	Disputed
	Expired
	Refunded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Validated:
		return "validated"
	case Executed:
		return "executed"
	case Disputed:
		return "disputed"
	case Expired:
		return "expired"
	case Refunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Request carries the caller-supplied parameters of a transfer. The
// transfer id is derived deterministically from the serialized request, so
// two requests with identical fields collide instead of double-spending.
type Request struct {
	Sender      ids.ShortID `serialize:"true" json:"sender"`
	Recipient   ids.ShortID `serialize:"true" json:"recipient"`
	Asset       ids.ID      `serialize:"true" json:"asset"`
	Amount      uint64      `serialize:"true" json:"amount"`
	SourceChain string      `serialize:"true" json:"sourceChain"`
	DestChain   string      `serialize:"true" json:"destChain"`
	Nonce       uint64      `serialize:"true" json:"nonce"`
	Timestamp   int64       `serialize:"true" json:"timestamp"`

	// Delay is the execution delay requested by the caller. It does not
	// participate in id derivation.
	Delay time.Duration `json:"delay"`
}

// ComputeID derives the transfer id from the request's identifying fields.
func (r *Request) ComputeID() (ids.ID, error) {
	bytes, err := Codec.Marshal(codecVersion, r)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to serialize transfer request: %w", err)
	}
	return hash.ComputeHash256Array(bytes), nil
}

// Transfer is the ledger's record of one cross-chain transfer. Records are
// never deleted; terminal states are retained for audit and dispute.
// Timestamps are unix seconds so the record round-trips through the linear
// codec.
type Transfer struct {
	ID          ids.ID      `serialize:"true" json:"id"`
	Sender      ids.ShortID `serialize:"true" json:"sender"`
	Recipient   ids.ShortID `serialize:"true" json:"recipient"`
	Asset       ids.ID      `serialize:"true" json:"asset"`
	Amount      uint64      `serialize:"true" json:"amount"`
	SourceChain string      `serialize:"true" json:"sourceChain"`
	DestChain   string      `serialize:"true" json:"destChain"`
	Nonce       uint64      `serialize:"true" json:"nonce"`

	Status             Status       `serialize:"true" json:"status"`
	RequiredSignatures uint32       `serialize:"true" json:"requiredSignatures"`
	ReceivedSignatures uint32       `serialize:"true" json:"receivedSignatures"`
	Voters             []ids.NodeID `serialize:"true" json:"voters"`
	HighValue          bool         `serialize:"true" json:"highValue"`
	FeeRateBps         uint32       `serialize:"true" json:"feeRateBps"`

	CreatedAt  int64  `serialize:"true" json:"createdAt"`
	UnlockTime int64  `serialize:"true" json:"unlockTime"`
	Deadline   int64  `serialize:"true" json:"deadline"`
	Reason     string `serialize:"true" json:"reason,omitempty"`
}

func (t *Transfer) hasVoted(nodeID ids.NodeID) bool {
	for _, voter := range t.Voters {
		if voter == nodeID {
			return true
		}
	}
	return false
}

// deadlinePassed reports whether the consensus window has closed.
func (t *Transfer) deadlinePassed(now time.Time) bool {
	return now.After(time.Unix(t.Deadline, 0))
}
