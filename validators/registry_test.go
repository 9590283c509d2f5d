// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/config"
)

var testChains = []string{"ethereum", "bitcoin"}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(memdb.New(), config.Default(), log.NewNoOpLogger())
	require.NoError(t, err)
	return r
}

func addValidators(t *testing.T, r *Registry, n int) []ids.NodeID {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	nodeIDs := make([]ids.NodeID, n)
	for i := range nodeIDs {
		nodeIDs[i] = ids.GenerateTestNodeID()
		require.NoError(t, r.Add(nodeIDs[i], config.Default().MinStake, testChains, now))
	}
	return nodeIDs
}

func TestAdd(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	now := time.Unix(1_700_000_000, 0)
	nodeID := ids.GenerateTestNodeID()

	require.NoError(r.Add(nodeID, config.Default().MinStake, testChains, now))
	require.True(r.IsActive(nodeID))
	require.Equal(1, r.ActiveCount())

	vdr, err := r.Get(nodeID)
	require.NoError(err)
	require.Equal(config.Default().BaselineReputation, vdr.Reputation)

	require.ErrorIs(r.Add(nodeID, config.Default().MinStake, testChains, now), ErrValidatorExists)
}

func TestAddRejectsLowStake(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	now := time.Unix(1_700_000_000, 0)
	err := r.Add(ids.GenerateTestNodeID(), config.Default().MinStake-1, testChains, now)
	require.ErrorIs(err, ErrInvalidStake)
}

func TestAddCapacity(t *testing.T) {
	require := require.New(t)

	params := config.Default()
	params.MaxValidators = 6
	r, err := NewRegistry(memdb.New(), params, log.NewNoOpLogger())
	require.NoError(err)

	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < 6; i++ {
		require.NoError(r.Add(ids.GenerateTestNodeID(), params.MinStake, testChains, now))
	}
	err = r.Add(ids.GenerateTestNodeID(), params.MinStake, testChains, now)
	require.ErrorIs(err, ErrCapacityExceeded)
}

func TestRemove(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 6)

	require.NoError(r.Remove(nodeIDs[0], "rotation"))
	require.False(r.IsActive(nodeIDs[0]))
	require.Equal(5, r.ActiveCount())

	// History survives removal.
	vdr, err := r.Get(nodeIDs[0])
	require.NoError(err)
	require.False(vdr.Active)

	// Removing again fails: the validator is no longer active.
	require.ErrorIs(r.Remove(nodeIDs[0], "again"), ErrUnknownValidator)
}

func TestRemoveRespectsMinimumSet(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)

	require.ErrorIs(r.Remove(nodeIDs[0], "rotation"), ErrBelowMinimumValidators)
	require.True(r.IsActive(nodeIDs[0]))
}

func TestSlash(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 6)

	// A half slash drops the stake below minimum; the set can spare the
	// validator, so it is deactivated.
	require.NoError(r.Slash(nodeIDs[0], 0.5, "double vote"))
	vdr, err := r.Get(nodeIDs[0])
	require.NoError(err)
	require.Equal(config.Default().MinStake/2, vdr.Stake)
	require.False(vdr.Active)
	require.False(vdr.Jailed)
}

func TestSlashJailsWhenSetAtMinimum(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)

	// Deactivating would break the minimum-set invariant: jail instead.
	require.NoError(r.Slash(nodeIDs[0], 0.5, "double vote"))
	vdr, err := r.Get(nodeIDs[0])
	require.NoError(err)
	require.True(vdr.Active)
	require.True(vdr.Jailed)
	require.False(r.Eligible(nodeIDs[0], "ethereum"))
}

func TestSlashRejectsBadFraction(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)

	require.Error(r.Slash(nodeIDs[0], 0, "nothing"))
	require.Error(r.Slash(nodeIDs[0], 1.5, "too much"))
}

func TestJailUnjail(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)

	require.True(r.Eligible(nodeIDs[0], "ethereum"))
	require.NoError(r.Jail(nodeIDs[0]))
	require.False(r.Eligible(nodeIDs[0], "ethereum"))
	require.True(r.IsActive(nodeIDs[0]))

	require.NoError(r.Unjail(nodeIDs[0]))
	require.True(r.Eligible(nodeIDs[0], "ethereum"))
}

func TestEligibleRequiresChainSupport(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)

	require.True(r.Eligible(nodeIDs[0], "bitcoin"))
	require.False(r.Eligible(nodeIDs[0], "solana"))
	require.False(r.SupportsChain(nodeIDs[0], "solana"))
}

func TestActiveForChain(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 6)

	require.ElementsMatch(nodeIDs, r.ActiveForChain("ethereum"))
	require.Empty(r.ActiveForChain("solana"))

	// Jailed and removed validators drop out.
	require.NoError(r.Jail(nodeIDs[0]))
	require.NoError(r.Remove(nodeIDs[1], "rotation"))
	require.ElementsMatch(nodeIDs[2:], r.ActiveForChain("ethereum"))
}

func TestRecordParticipation(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t)
	nodeIDs := addValidators(t, r, 5)
	now := time.Unix(1_700_000_001, 0)
	baseline := config.Default().BaselineReputation

	require.NoError(r.RecordParticipation(nodeIDs[0], true, now))
	vdr, err := r.Get(nodeIDs[0])
	require.NoError(err)
	require.Equal(baseline+1, vdr.Reputation)
	require.Equal(now.Unix(), vdr.LastActivity)

	require.NoError(r.RecordParticipation(nodeIDs[0], false, now))
	vdr, err = r.Get(nodeIDs[0])
	require.NoError(err)
	require.Equal(baseline, vdr.Reputation)
}

func TestReputationFloorsAtZero(t *testing.T) {
	require := require.New(t)

	params := config.Default()
	params.BaselineReputation = 1
	r, err := NewRegistry(memdb.New(), params, log.NewNoOpLogger())
	require.NoError(err)

	now := time.Unix(1_700_000_000, 0)
	nodeID := ids.GenerateTestNodeID()
	require.NoError(r.Add(nodeID, params.MinStake, testChains, now))

	require.NoError(r.RecordParticipation(nodeID, false, now))
	require.NoError(r.RecordParticipation(nodeID, false, now))
	vdr, err := r.Get(nodeID)
	require.NoError(err)
	require.Zero(vdr.Reputation)
}

func TestRegistryReload(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	params := config.Default()
	r, err := NewRegistry(db, params, log.NewNoOpLogger())
	require.NoError(err)

	now := time.Unix(1_700_000_000, 0)
	nodeID := ids.GenerateTestNodeID()
	require.NoError(r.Add(nodeID, params.MinStake, testChains, now))

	reopened, err := NewRegistry(db, params, log.NewNoOpLogger())
	require.NoError(err)
	require.True(reopened.IsActive(nodeID))
	require.Equal(1, reopened.ActiveCount())
}
