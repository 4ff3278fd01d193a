// Package store provides in-memory collaborator implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// MEMORY DIRECTORY - Users, projects and role grants (for testing/dev)
// =============================================================================

// Memory implements generic.UserDirectory, generic.ProjectDirectory and
// generic.Authorizer.
type Memory struct {
	mu       sync.RWMutex
	users    map[generic.UserID]generic.User
	projects map[generic.ProjectID]generic.Project
	members  map[generic.ProjectID]map[generic.UserID]bool
	roles    map[generic.UserID]map[string]bool
	grants   map[string][]generic.Permission
}

func NewMemory() *Memory {
	grants := make(map[string][]generic.Permission, len(generic.DefaultRoles))
	for role, perms := range generic.DefaultRoles {
		grants[role] = append([]generic.Permission{}, perms...)
	}
	return &Memory{
		users:    make(map[generic.UserID]generic.User),
		projects: make(map[generic.ProjectID]generic.Project),
		members:  make(map[generic.ProjectID]map[generic.UserID]bool),
		roles:    make(map[generic.UserID]map[string]bool),
		grants:   grants,
	}
}

// PutUser adds or replaces a user.
func (m *Memory) PutUser(u generic.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutProject adds or replaces a project and marks its Members active.
func (m *Memory) PutProject(p generic.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	set := make(map[generic.UserID]bool, len(p.Members))
	for _, id := range p.Members {
		set[id] = true
	}
	m.members[p.ID] = set
}

// Grant gives a user a role.
func (m *Memory) Grant(userID generic.UserID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[userID] == nil {
		m.roles[userID] = make(map[string]bool)
	}
	m.roles[userID][role] = true
}

func (m *Memory) GetUser(_ context.Context, id generic.UserID) (generic.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return generic.User{}, generic.Errorf(generic.ErrUserNotFound, "user %s not found", id)
	}
	return u, nil
}

func (m *Memory) FindUsers(_ context.Context, filter generic.UserFilter) ([]generic.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.User
	for _, u := range m.users {
		if filter.Department != "" && u.Department != filter.Department {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProject(_ context.Context, id generic.ProjectID) (generic.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return generic.Project{}, generic.Errorf(generic.ErrProjectNotFound, "project %s not found", id)
	}
	return p, nil
}

func (m *Memory) IsMember(_ context.Context, projectID generic.ProjectID, userID generic.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[projectID][userID], nil
}

func (m *Memory) Check(_ context.Context, actor generic.Actor, perm generic.Permission) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for role := range m.roles[actor.ID] {
		for _, p := range m.grants[role] {
			if p == perm {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *Memory) HasRole(_ context.Context, actor generic.Actor, role string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[actor.ID][role], nil
}
