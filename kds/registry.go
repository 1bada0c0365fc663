package kds

import (
	"sync"

	"github.com/yeremiapane/restaurant-orders/metrics"
)

// Role is the dashboard a connection registered as.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the client_type values of the register handshake.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleKitchen, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Audience is the subset of connections an event targets.
type Audience string

const (
	AudienceAll     Audience = "all"
	AudienceKitchen Audience = "kitchen"
	AudienceAdmin   Audience = "admin"
)

// Registry tracks live connections and their roles. Every connection is in
// all; kitchen and admin connections are additionally in the index of their
// current role and in no other.
type Registry struct {
	mu      sync.RWMutex
	all     map[string]Client
	roles   map[string]Role
	kitchen map[string]Client
	admin   map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		all:     make(map[string]Client),
		roles:   make(map[string]Role),
		kitchen: make(map[string]Client),
		admin:   make(map[string]Client),
	}
}

// index returns the role-specific index for role, or nil for customers.
func (r *Registry) index(role Role) map[string]Client {
	switch role {
	case RoleKitchen:
		return r.kitchen
	case RoleAdmin:
		return r.admin
	}
	return nil
}

// Register inserts c with role. Registering an id that is already present
// moves it from its old role index to the new one under the same lock.
func (r *Registry) Register(c Client, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	if old, ok := r.roles[id]; ok {
		if idx := r.index(old); idx != nil {
			delete(idx, id)
		}
	}
	r.all[id] = c
	r.roles[id] = role
	if idx := r.index(role); idx != nil {
		idx[id] = c
	}
	r.observe()
}

// Unregister removes c from all and from its role index. It reports whether
// c was present; a second call is a no-op.
func (r *Registry) Unregister(c Client, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	if idx := r.index(role); idx != nil {
		delete(idx, id)
	}
	return r.removeLocked(id)
}

// Evict removes id from all and from every role index regardless of its
// recorded role.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.kitchen, id)
	delete(r.admin, id)
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) bool {
	if _, ok := r.all[id]; !ok {
		return false
	}
	if role, ok := r.roles[id]; ok {
		if idx := r.index(role); idx != nil {
			delete(idx, id)
		}
	}
	delete(r.all, id)
	delete(r.roles, id)
	r.observe()
	return true
}

// Enumerate returns a copy of the connections in audience. The slice is not
// affected by later registry mutation.
func (r *Registry) Enumerate(audience Audience) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var src map[string]Client
	switch audience {
	case AudienceKitchen:
		src = r.kitchen
	case AudienceAdmin:
		src = r.admin
	default:
		src = r.all
	}

	out := make([]Client, 0, len(src))
	for _, c := range src {
		out = append(out, c)
	}
	return out
}

// RoleOf returns the recorded role of id.
func (r *Registry) RoleOf(id string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	return role, ok
}

func (r *Registry) Count(audience Audience) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch audience {
	case AudienceKitchen:
		return len(r.kitchen)
	case AudienceAdmin:
		return len(r.admin)
	default:
		return len(r.all)
	}
}

// observe must be called with mu held.
func (r *Registry) observe() {
	customers := len(r.all) - len(r.kitchen) - len(r.admin)
	metrics.ConnectedClients.WithLabelValues(string(RoleCustomer)).Set(float64(customers))
	metrics.ConnectedClients.WithLabelValues(string(RoleKitchen)).Set(float64(len(r.kitchen)))
	metrics.ConnectedClients.WithLabelValues(string(RoleAdmin)).Set(float64(len(r.admin)))
}
