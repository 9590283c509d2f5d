// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"math"

	"github.com/luxfi/bridge/config"
	safemath "github.com/luxfi/bridge/utils/math"
)

// QuorumSize computes the affirmative votes a phase must accumulate before
// the round advances. The base quorum is ceil(n * 67/100) over the active
// validator count n, the practical approximation of the 2f+1 BFT bound.
// Transfers above the high-value ratio of the chain maximum scale the
// quorum by 1.5x (rounded up). The result is floored at the configured
// hard minimum.
func QuorumSize(activeValidators int, amount, chainMax uint64, p config.Params) int {
	if activeValidators < 0 {
		activeValidators = 0
	}
	scaled, err := safemath.Mul(uint64(activeValidators), p.QuorumNumerator)
	if err != nil {
		return p.MinQuorum
	}
	quorum := int(safemath.CeilDiv(scaled, p.QuorumDenominator))

	if safemath.ExceedsRatio(amount, chainMax, p.FraudHighValueRatio) {
		quorum = int(math.Ceil(float64(quorum) * p.HighValueQuorumScale))
	}
	if quorum < p.MinQuorum {
		quorum = p.MinQuorum
	}
	return quorum
}
