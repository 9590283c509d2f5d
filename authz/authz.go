// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authz implements an explicit capability table for the admin and
// operator surface of the bridge core. Every privileged operation declares
// the capability it requires; there is no implicit role inheritance.
package authz

import (
	"errors"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// Capability names a single privileged operation.
type Capability string

const (
	CapAddValidator    Capability = "validator.add"
	CapRemoveValidator Capability = "validator.remove"
	CapSlashValidator  Capability = "validator.slash"
	CapPutChain        Capability = "chain.put"
	CapResetRisk       Capability = "fraud.reset"
	CapBlacklist       Capability = "fraud.blacklist"
	CapResolveDispute  Capability = "transfer.resolve"
)

// Role is a named bundle of capabilities.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

var ErrUnauthorized = errors.New("actor lacks required capability")

// defaultGrants is the capability set each built-in role starts with.
var defaultGrants = map[Role]set.Set[Capability]{
	RoleAdmin: set.Of(
		CapAddValidator,
		CapRemoveValidator,
		CapSlashValidator,
		CapPutChain,
		CapResetRisk,
		CapBlacklist,
		CapResolveDispute,
	),
	RoleOperator: set.Of(
		CapResetRisk,
		CapResolveDispute,
	),
}

// Table maps actors to roles and roles to capabilities.
type Table struct {
	mu     sync.RWMutex
	roles  map[ids.ShortID]Role
	grants map[Role]set.Set[Capability]
}

// NewTable returns a table with the built-in role grants and no actors.
func NewTable() *Table {
	grants := make(map[Role]set.Set[Capability], len(defaultGrants))
	for role, caps := range defaultGrants {
		granted := make(set.Set[Capability], caps.Len())
		granted.Union(caps)
		grants[role] = granted
	}
	return &Table{
		roles:  make(map[ids.ShortID]Role),
		grants: grants,
	}
}

// Assign gives an actor a role, replacing any previous assignment.
func (t *Table) Assign(actor ids.ShortID, role Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roles[actor] = role
}

// Revoke removes an actor's role assignment.
func (t *Table) Revoke(actor ids.ShortID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.roles, actor)
}

// Grant adds a capability to a role.
func (t *Table) Grant(role Role, c Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()
	caps, ok := t.grants[role]
	if !ok {
		caps = make(set.Set[Capability])
		t.grants[role] = caps
	}
	caps.Add(c)
}

// Require returns ErrUnauthorized unless the actor's role carries the
// capability.
func (t *Table) Require(actor ids.ShortID, c Capability) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	role, ok := t.roles[actor]
	if !ok {
		return ErrUnauthorized
	}
	caps, ok := t.grants[role]
	if !ok || !caps.Contains(c) {
		return ErrUnauthorized
	}
	return nil
}
