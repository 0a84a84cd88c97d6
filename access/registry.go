// Package access holds the capability registry used to gate administrative operations.
package access

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudx-io/nftauction/core"
)

// Registry maps principals to capability sets.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger
	grants map[core.Address]map[core.Role]struct{}
}

// NewRegistry returns a registry where admin holds RoleAdmin.
func NewRegistry(logger *slog.Logger, admin core.Address) *Registry {
	r := &Registry{
		logger: logger,
		grants: make(map[core.Address]map[core.Role]struct{}),
	}
	r.grant(admin, core.RoleAdmin)
	return r
}

// HasCapability implements core.AccessGate.
func (r *Registry) HasCapability(principal core.Address, role core.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[principal][role]
	return ok
}

// Grant gives role to principal. Only admins may grant.
func (r *Registry) Grant(caller, principal core.Address, role core.Role) error {
	if !r.HasCapability(caller, core.RoleAdmin) {
		return fmt.Errorf("failed to grant %s: %w", role, core.ErrUnauthorized)
	}
	if principal.IsZero() {
		return fmt.Errorf("failed to grant %s: %w", role, core.ErrZeroAddress)
	}
	r.grant(principal, role)
	r.logger.Info("capability granted", "principal", principal, "role", role, "by", caller)
	return nil
}

// Revoke removes role from principal. Only admins may revoke.
func (r *Registry) Revoke(caller, principal core.Address, role core.Role) error {
	if !r.HasCapability(caller, core.RoleAdmin) {
		return fmt.Errorf("failed to revoke %s: %w", role, core.ErrUnauthorized)
	}

	r.mu.Lock()
	delete(r.grants[principal], role)
	r.mu.Unlock()

	r.logger.Info("capability revoked", "principal", principal, "role", role, "by", caller)
	return nil
}

// Roles lists the roles held by principal.
func (r *Registry) Roles(principal core.Address) []core.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]core.Role, 0, len(r.grants[principal]))
	for _, role := range []core.Role{core.RoleAdmin, core.RoleConfigurator, core.RoleMinter} {
		if _, ok := r.grants[principal][role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func (r *Registry) grant(principal core.Address, role core.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.grants[principal]
	if !ok {
		set = make(map[core.Role]struct{})
		r.grants[principal] = set
	}
	set[role] = struct{}{}
}
