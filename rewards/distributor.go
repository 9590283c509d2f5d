// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rewards accrues transfer fees to the validators whose votes
// finalized consensus. Balances only accrue here; payout and withdrawal
// live outside the core.
package rewards

import (
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/bridge/utils/math"
)

const feeRateDenominator = 10_000 // fee rates are basis points

// Distributor splits finalization fees evenly across affirmative voters.
type Distributor struct {
	log log.Logger

	mu sync.Mutex
	db database.Database
}

func NewDistributor(db database.Database, logger log.Logger) *Distributor {
	return &Distributor{
		log: logger,
		db:  db,
	}
}

// Distribute credits each voter an even share of the transfer fee and
// returns the total fee charged. A round with no affirmative voters is
// skipped silently; the split never divides by zero.
func (d *Distributor) Distribute(transferID ids.ID, amount uint64, feeRateBps uint32, voters []ids.NodeID) (uint64, error) {
	if len(voters) == 0 {
		return 0, nil
	}
	fee := feeFor(amount, feeRateBps)
	if fee == 0 {
		return 0, nil
	}

	share := fee / uint64(len(voters))
	remainder := fee % uint64(len(voters))

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, voter := range voters {
		credit := share
		if i == 0 {
			// The first voter absorbs the remainder so the split always
			// sums to the fee.
			credit += remainder
		}
		if credit == 0 {
			continue
		}
		if err := d.credit(voter, credit); err != nil {
			return 0, err
		}
	}

	d.log.Info("rewards distributed",
		log.Stringer("transferID", transferID),
		log.Uint64("fee", fee),
		log.Int("voters", len(voters)),
	)
	return fee, nil
}

// feeFor computes amount * rate without overflowing on amounts near the
// uint64 ceiling.
func feeFor(amount uint64, feeRateBps uint32) uint64 {
	quot := amount / feeRateDenominator
	rem := amount % feeRateDenominator
	return quot*uint64(feeRateBps) + rem*uint64(feeRateBps)/feeRateDenominator
}

func (d *Distributor) credit(nodeID ids.NodeID, amount uint64) error {
	balance, err := database.GetUInt64(d.db, nodeID.Bytes())
	if err == database.ErrNotFound {
		balance = 0
	} else if err != nil {
		return err
	}
	newBalance, err := safemath.Add(balance, amount)
	if err != nil {
		newBalance = safemath.MaxUint[uint64]()
	}
	return database.PutUInt64(d.db, nodeID.Bytes(), newBalance)
}

// Accrued returns the validator's undistributed reward balance.
func (d *Distributor) Accrued(nodeID ids.NodeID) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	balance, err := database.GetUInt64(d.db, nodeID.Bytes())
	if err == database.ErrNotFound {
		return 0, nil
	}
	return balance, err
}
