package userrepo

import (
	"context"
	"strings"
	"sync"

	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.UserID]userrepo.User
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.UserID]userrepo.User),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	for _, other := range r.byID {
		if strings.EqualFold(other.Email, u.Email) {
			return userrepo.ErrEmailAlreadyExists
		}
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return userrepo.ErrNotFound
	}
	for id, other := range r.byID {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return userrepo.ErrEmailAlreadyExists
		}
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return userrepo.User{}, userrepo.ErrNotFound
}

func cloneUser(u userrepo.User) userrepo.User {
	cp := u
	cp.PhoneNumber = cloneStringPtr(u.PhoneNumber)
	cp.Instagram = cloneStringPtr(u.Instagram)
	cp.Facebook = cloneStringPtr(u.Facebook)
	cp.Snapchat = cloneStringPtr(u.Snapchat)
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
