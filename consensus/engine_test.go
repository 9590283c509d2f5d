// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"sync"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/config"
)

func newTestEngine() *Engine {
	return NewEngine(config.Default(), log.NewNoOpLogger())
}

func startTestRound(t *testing.T, e *Engine, quorum int) (ids.ID, time.Time) {
	t.Helper()
	transferID := ids.GenerateTestID()
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, e.StartRound(transferID, quorum, now.Add(24*time.Hour)))
	return transferID, now
}

func TestStartRoundRejectsDuplicate(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)
	require.ErrorIs(e.StartRound(transferID, 2, now.Add(time.Hour)), ErrRoundExists)
}

func TestTwoPhaseFinalization(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	voters := []ids.NodeID{
		ids.GenerateTestNodeID(),
		ids.GenerateTestNodeID(),
	}

	// Prepare phase: the second affirmative vote crosses the quorum.
	outcome, err := e.RecordVote(transferID, voters[0], true, now)
	require.NoError(err)
	require.Equal(Prepare, outcome.Phase)
	require.False(outcome.Advanced)

	outcome, err = e.RecordVote(transferID, voters[1], true, now)
	require.NoError(err)
	require.Equal(Commit, outcome.Phase)
	require.True(outcome.Advanced)

	// Advancing reset the counters: the same validators must re-affirm.
	info, ok := e.Round(transferID)
	require.True(ok)
	require.Zero(info.Affirmative)
	require.Zero(info.VoteCount)

	outcome, err = e.RecordVote(transferID, voters[0], true, now)
	require.NoError(err)
	require.Equal(Commit, outcome.Phase)

	outcome, err = e.RecordVote(transferID, voters[1], true, now)
	require.NoError(err)
	require.Equal(Finalized, outcome.Phase)
	require.True(outcome.Advanced)
	require.ElementsMatch(voters, outcome.Voters)

	// Terminal rounds are dropped.
	_, ok = e.Round(transferID)
	require.False(ok)
	_, err = e.RecordVote(transferID, voters[0], true, now)
	require.ErrorIs(err, ErrUnknownRound)
}

func TestDuplicateVoteIsNoOp(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)
	nodeID := ids.GenerateTestNodeID()

	_, err := e.RecordVote(transferID, nodeID, true, now)
	require.NoError(err)

	_, err = e.RecordVote(transferID, nodeID, true, now)
	require.ErrorIs(err, ErrAlreadyVoted)

	// The duplicate changed nothing.
	info, ok := e.Round(transferID)
	require.True(ok)
	require.Equal(1, info.Affirmative)
	require.Equal(1, info.VoteCount)
}

func TestNegativeVotesDoNotCount(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	_, err := e.RecordVote(transferID, ids.GenerateTestNodeID(), false, now)
	require.NoError(err)
	_, err = e.RecordVote(transferID, ids.GenerateTestNodeID(), false, now)
	require.NoError(err)

	info, ok := e.Round(transferID)
	require.True(ok)
	require.Equal(Prepare, info.Phase)
	require.Zero(info.Affirmative)
	require.Equal(2, info.VoteCount)
}

func TestNegativeVoterExcludedFromFinalizers(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	affirming := []ids.NodeID{
		ids.GenerateTestNodeID(),
		ids.GenerateTestNodeID(),
	}
	dissenting := ids.GenerateTestNodeID()

	for _, nodeID := range affirming {
		_, err := e.RecordVote(transferID, nodeID, true, now)
		require.NoError(err)
	}
	// Commit phase: a dissent plus two affirmations.
	_, err := e.RecordVote(transferID, dissenting, false, now)
	require.NoError(err)
	_, err = e.RecordVote(transferID, affirming[0], true, now)
	require.NoError(err)
	outcome, err := e.RecordVote(transferID, affirming[1], true, now)
	require.NoError(err)

	require.Equal(Finalized, outcome.Phase)
	require.ElementsMatch(affirming, outcome.Voters)
}

func TestDeadlineExpiresRound(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	outcome, err := e.RecordVote(transferID, ids.GenerateTestNodeID(), true, now.Add(25*time.Hour))
	require.ErrorIs(err, ErrDeadlineExpired)
	require.Equal(Expired, outcome.Phase)

	_, ok := e.Round(transferID)
	require.False(ok)
}

func TestExpireIfDue(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	require.False(e.ExpireIfDue(transferID, now.Add(time.Hour)))
	require.True(e.ExpireIfDue(transferID, now.Add(25*time.Hour)))
	require.False(e.ExpireIfDue(transferID, now.Add(25*time.Hour)))
}

func TestAbort(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	transferID, now := startTestRound(t, e, 2)

	e.Abort(transferID)
	_, err := e.RecordVote(transferID, ids.GenerateTestNodeID(), true, now)
	require.ErrorIs(err, ErrUnknownRound)

	// Aborting an unknown round is harmless.
	e.Abort(ids.GenerateTestID())
}

func TestConcurrentVotesSingleTransition(t *testing.T) {
	require := require.New(t)

	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)
	transferID := ids.GenerateTestID()
	require.NoError(e.StartRound(transferID, 10, now.Add(24*time.Hour)))

	// 15 distinct validators race their votes against a quorum of 10.
	// Exactly one vote must observe the Prepare->Commit transition; the
	// remaining 5 land in the fresh commit counter.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		advanced int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := e.RecordVote(transferID, ids.GenerateTestNodeID(), true, now)
			require.NoError(err)
			if outcome.Advanced {
				mu.Lock()
				advanced++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(1, advanced)
	info, ok := e.Round(transferID)
	require.True(ok)
	require.Equal(Commit, info.Phase)
	require.Equal(5, info.Affirmative)
}
