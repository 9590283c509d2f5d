// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/config"
)

const chainMax = 1000

func TestQuorumSize(t *testing.T) {
	params := config.Default()

	tests := []struct {
		name   string
		active int
		amount uint64
		want   int
	}{
		{
			name:   "seven validators",
			active: 7,
			amount: 100,
			want:   5, // ceil(7 * 0.67) = 5
		},
		{
			name:   "ten validators",
			active: 10,
			amount: 100,
			want:   7,
		},
		{
			name:   "hundred validators",
			active: 100,
			amount: 100,
			want:   67,
		},
		{
			name:   "minimum floor",
			active: 3,
			amount: 100,
			want:   params.MinQuorum, // ceil(3 * 0.67) = 3, floored to 5
		},
		{
			name:   "high value scales quorum",
			active: 10,
			amount: 501, // above half the chain maximum
			want:   11,  // ceil(7 * 1.5)
		},
		{
			name:   "half chain maximum is not high value",
			active: 10,
			amount: 500,
			want:   7,
		},
		{
			name:   "zero validators",
			active: 0,
			amount: 100,
			want:   params.MinQuorum,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, QuorumSize(tt.active, tt.amount, chainMax, params))
		})
	}
}

func TestQuorumMonotonic(t *testing.T) {
	require := require.New(t)

	params := config.Default()
	prev := 0
	for n := 0; n <= 200; n++ {
		q := QuorumSize(n, 100, chainMax, params)
		require.GreaterOrEqual(q, prev)
		require.GreaterOrEqual(q, params.MinQuorum)
		prev = q
	}
}
