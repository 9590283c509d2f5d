// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	require := require.New(t)

	sum, err := Add(uint64(1), uint64(2))
	require.NoError(err)
	require.Equal(uint64(3), sum)

	sum, err = Add(MaxUint[uint64](), uint64(0))
	require.NoError(err)
	require.Equal(MaxUint[uint64](), sum)

	_, err = Add(MaxUint[uint64](), uint64(1))
	require.ErrorIs(err, ErrOverflow)
}

func TestSub(t *testing.T) {
	require := require.New(t)

	diff, err := Sub(uint64(5), uint64(3))
	require.NoError(err)
	require.Equal(uint64(2), diff)

	_, err = Sub(uint64(3), uint64(5))
	require.ErrorIs(err, ErrUnderflow)
}

func TestMul(t *testing.T) {
	require := require.New(t)

	prod, err := Mul(uint64(7), uint64(6))
	require.NoError(err)
	require.Equal(uint64(42), prod)

	prod, err = Mul(uint64(0), MaxUint[uint64]())
	require.NoError(err)
	require.Zero(prod)

	_, err = Mul(MaxUint[uint64](), uint64(2))
	require.ErrorIs(err, ErrOverflow)
}

func TestCeilDiv(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(0), CeilDiv(uint64(0), uint64(100)))
	require.Equal(uint64(1), CeilDiv(uint64(1), uint64(100)))
	require.Equal(uint64(1), CeilDiv(uint64(100), uint64(100)))
	require.Equal(uint64(2), CeilDiv(uint64(101), uint64(100)))
	require.Equal(uint64(5), CeilDiv(uint64(469), uint64(100)))
}

func TestExceedsRatio(t *testing.T) {
	require := require.New(t)

	// Boundary is exclusive: exactly the ratio does not exceed it.
	require.False(ExceedsRatio(50, 100, 0.5))
	require.True(ExceedsRatio(51, 100, 0.5))

	require.False(ExceedsRatio(100, 0, 0.5))
	require.False(ExceedsRatio(100, 100, 0))

	// Amounts near the uint64 ceiling must not wrap.
	require.True(ExceedsRatio(MaxUint[uint64](), MaxUint[uint64]()/2, 0.9))
}
