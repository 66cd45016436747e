// Package memory implementa repository.Store en memoria.
// Sirve para desarrollo (storage.driver=memory) y para tests del core.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/accountlink/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

// Store guarda todo bajo un único RWMutex; AddExternalLogin es atómico respecto
// del índice (provider, subject).
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	users   map[string]repository.User
	logins  map[string]repository.ExternalLogin
	byPair  map[string]string // provider\x00subject -> login id
	roles   map[string]map[string]struct{}
	tenants map[string]repository.Tenant
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		users:   make(map[string]repository.User),
		logins:  make(map[string]repository.ExternalLogin),
		byPair:  make(map[string]string),
		roles:   make(map[string]map[string]struct{}),
		tenants: make(map[string]repository.Tenant),
	}
}

func pairKey(provider, subject string) string {
	return provider + "\x00" + subject
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.NotFoundf("user %s", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *repository.User
	for _, u := range s.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, repository.NotFoundf("user with email")
	}
	return found, nil
}

func (s *Store) GetExternalLoginForProvider(ctx context.Context, provider, subject string) (*repository.ExternalLogin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey(provider, subject)]
	if !ok {
		return nil, repository.NotFoundf("external login %s/%s", provider, subject)
	}
	l := s.logins[id]
	return &l, nil
}

func (s *Store) GetExternalLoginsForUser(ctx context.Context, userID string) ([]repository.ExternalLogin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.ExternalLogin, 0)
	for _, l := range s.logins {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

func (s *Store) AddExternalLogin(ctx context.Context, userID, provider, subject string) (*repository.ExternalLogin, error) {
	if userID == "" || provider == "" || subject == "" {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, repository.NotFoundf("user %s", userID)
	}
	key := pairKey(provider, subject)
	if _, exists := s.byPair[key]; exists {
		return nil, repository.Conflictf("external login %s/%s", provider, subject)
	}
	now := s.now()
	l := repository.ExternalLogin{
		ID:              uuid.NewString(),
		Provider:        provider,
		ProviderSubject: subject,
		UserID:          userID,
		Created:         now,
		LastModified:    now,
	}
	s.logins[l.ID] = l
	s.byPair[key] = l.ID
	return &l, nil
}

func (s *Store) RemoveExternalLogin(ctx context.Context, userID, loginID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logins[loginID]
	if !ok || l.UserID != userID {
		return repository.NotFoundf("external login %s of user %s", loginID, userID)
	}
	delete(s.logins, loginID)
	delete(s.byPair, pairKey(l.Provider, l.ProviderSubject))
	return nil
}

func (s *Store) CreateUserWithRoles(ctx context.Context, user *repository.User, roles []string) (*repository.User, error) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, exists := s.users[u.ID]; exists {
		return nil, repository.Conflictf("user %s", u.ID)
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastModified = now
	s.users[u.ID] = u

	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	s.roles[u.ID] = set
	return &u, nil
}

func (s *Store) GetRolesForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.roles[userID]))
	for r := range s.roles[userID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) AssignRole(ctx context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return repository.NotFoundf("user %s", userID)
	}
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[string]struct{})
	}
	s.roles[userID][role] = struct{}{}
	return nil
}

func (s *Store) GetTenantByID(ctx context.Context, id string) (*repository.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, repository.NotFoundf("tenant %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTenantForUser(ctx context.Context, userID, name string) (*repository.Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.NotFoundf("user %s", userID)
	}
	now := s.now()
	t := repository.Tenant{ID: uuid.NewString(), Name: name, CreatedAt: now, LastModified: now}
	s.tenants[t.ID] = t
	u.TenantID = t.ID
	u.LastModified = now
	s.users[userID] = u
	return &t, nil
}

// CountExternalLogins devuelve cuántas filas hay para (provider, subject).
// Solo lo usan los tests de invariantes.
func (s *Store) CountExternalLogins(provider, subject string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.logins {
		if l.Provider == provider && l.ProviderSubject == subject {
			n++
		}
	}
	return n
}
