package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

type stubIdentityRepo struct {
	mu       sync.Mutex
	users    map[string]*storedUser
	projects map[string]*domain.Project
	centers  map[string]string
	roles    map[string]domain.Role
	failWith error
	nextID   int
}

type storedUser struct {
	user     domain.User
	password string
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{
		users:    make(map[string]*storedUser),
		projects: make(map[string]*domain.Project),
		centers:  make(map[string]string),
		roles:    make(map[string]domain.Role),
	}
}

func (r *stubIdentityRepo) addProject(key, name, secret, center string) {
	r.projects[key] = &domain.Project{ID: key, Name: name, State: "active", Secret: secret, CenterID: center}
	r.centers[center] = center
}

func (r *stubIdentityRepo) CreateUser(_ context.Context, in domain.NewUser) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.user.Username == in.Username {
			return nil, domain.ErrUserExists
		}
	}
	if in.ProjectKey != "" {
		if _, ok := r.projects[in.ProjectKey]; !ok {
			return nil, domain.ErrBadProjectID
		}
	}
	r.nextID++
	id := fmt.Sprintf("user-%d", r.nextID)
	r.users[id] = &storedUser{
		user:     domain.User{ID: id, Username: in.Username, ProjectKey: in.ProjectKey, CreatedAt: time.Now().UTC()},
		password: in.Password,
	}
	r.roles[id] = domain.RoleParti
	return r.account(id), nil
}

func (r *stubIdentityRepo) FindByCredentials(_ context.Context, username, password string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for id, u := range r.users {
		if u.user.Username == username && u.password != "" && u.password == password {
			return r.account(id), nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.account(id), nil
}

func (r *stubIdentityRepo) account(id string) *domain.Account {
	u := r.users[id]
	acc := &domain.Account{User: u.user}
	if p, ok := r.projects[u.user.ProjectKey]; ok {
		clone := *p
		acc.Project = &clone
		acc.CenterName = r.centers[p.CenterID]
	}
	if role, ok := r.roles[id]; ok {
		acc.Role = role.Ptr()
	}
	return acc
}

type stubPass struct {
	userID    string
	expiresAt time.Time
}

type stubRealmRepo struct {
	mu      sync.Mutex
	passes  map[string]stubPass
	secrets map[string]string
	now     func() time.Time
}

func newStubRealmRepo() *stubRealmRepo {
	return &stubRealmRepo{
		passes:  make(map[string]stubPass),
		secrets: make(map[string]string),
		now:     time.Now,
	}
}

func passKey(realm ports.RealmRef, pass string) string {
	return realm.Namespace + "/" + realm.Partition + "/" + pass
}

func (r *stubRealmRepo) StampPass(_ context.Context, realm ports.RealmRef, userID, pass string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.passes {
		if p.userID == userID {
			delete(r.passes, k)
		}
	}
	r.passes[passKey(realm, pass)] = stubPass{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *stubRealmRepo) ConsumePass(_ context.Context, realm ports.RealmRef, pass string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := passKey(realm, pass)
	p, ok := r.passes[key]
	if !ok || !r.now().Before(p.expiresAt) {
		return "", domain.ErrInvalidCredentials
	}
	delete(r.passes, key)
	return p.userID, nil
}

func (r *stubRealmRepo) ProjectSecret(_ context.Context, partition string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.secrets[partition]
	if !ok {
		return "", domain.ErrRealmNotFound
	}
	return s, nil
}

type stubLimiter struct {
	mu       sync.Mutex
	max      int
	attempts map[string]int
	err      error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{max: max, attempts: make(map[string]int)}
}

func (l *stubLimiter) Hit(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.attempts[key]++
	return l.attempts[key] <= l.max, nil
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}

func (l *stubLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[key]
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(ev domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAudit) last() domain.AuthEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return domain.AuthEvent{}
	}
	return a.events[len(a.events)-1]
}

type stubAuditRepo struct {
	inserted []domain.AuthEvent
	err      error
}

func (r *stubAuditRepo) InsertEvent(_ context.Context, ev *domain.AuthEvent) error {
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, *ev)
	return nil
}
