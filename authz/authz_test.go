// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package authz

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	require := require.New(t)

	table := NewTable()
	admin := ids.GenerateTestShortID()
	operator := ids.GenerateTestShortID()
	stranger := ids.GenerateTestShortID()

	table.Assign(admin, RoleAdmin)
	table.Assign(operator, RoleOperator)

	require.NoError(table.Require(admin, CapAddValidator))
	require.NoError(table.Require(admin, CapResolveDispute))

	require.NoError(table.Require(operator, CapResetRisk))
	require.ErrorIs(table.Require(operator, CapAddValidator), ErrUnauthorized)

	require.ErrorIs(table.Require(stranger, CapResetRisk), ErrUnauthorized)
}

func TestRevoke(t *testing.T) {
	require := require.New(t)

	table := NewTable()
	actor := ids.GenerateTestShortID()

	table.Assign(actor, RoleAdmin)
	require.NoError(table.Require(actor, CapPutChain))

	table.Revoke(actor)
	require.ErrorIs(table.Require(actor, CapPutChain), ErrUnauthorized)
}

func TestGrant(t *testing.T) {
	require := require.New(t)

	table := NewTable()
	actor := ids.GenerateTestShortID()
	table.Assign(actor, RoleOperator)

	require.ErrorIs(table.Require(actor, CapBlacklist), ErrUnauthorized)
	table.Grant(RoleOperator, CapBlacklist)
	require.NoError(table.Require(actor, CapBlacklist))
}

func TestGrantDoesNotMutateDefaults(t *testing.T) {
	require := require.New(t)

	table := NewTable()
	table.Grant(RoleOperator, CapSlashValidator)

	fresh := NewTable()
	actor := ids.GenerateTestShortID()
	fresh.Assign(actor, RoleOperator)
	require.ErrorIs(fresh.Require(actor, CapSlashValidator), ErrUnauthorized)
}
