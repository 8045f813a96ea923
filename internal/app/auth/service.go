package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wesrides/rides-api/internal/app/users"
	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/platform/auth/token"
	clockport "github.com/wesrides/rides-api/internal/ports/out/clock"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 32
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string

	PhoneNumber *string
}

type Service struct {
	repo   userrepo.Repository
	tokens *token.Issuer
	clk    clockport.Clock

	newUserID func() domain.UserID
}

func NewService(repo userrepo.Repository, tokens *token.Issuer, clk clockport.Clock) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		clk:    clk,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
	}
}

// SetNewUserIDForTest overrides user ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewUserIDForTest(fn func() domain.UserID) {
	if fn != nil {
		s.newUserID = fn
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.UserID, error) {
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return "", &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid name", Details: map[string]any{"name": "must be non-empty"}}
	}
	email := strings.TrimSpace(in.Email)
	if err := users.ValidateEmail(email); err != nil {
		return "", &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid email", Details: map[string]any{"email": err.Error()}}
	}
	if len(in.Password) < minPasswordLen {
		return "", &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid password", Details: map[string]any{"password": "must be at least 6 characters"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	now := s.clk.Now()
	id := s.newUserID()
	u := userrepo.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		PhoneNumber:  trimPtr(in.PhoneNumber),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			return "", &Error{Status: 409, Code: "EMAIL_ALREADY_IN_USE", Message: "a user with this email already exists"}
		}
		return "", err
	}
	return id, nil
}

// Login verifies credentials and returns a signed bearer token. Wrong email
// and wrong password are deliberately the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return "", invalidCredentials()
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", invalidCredentials()
	}
	return s.tokens.Issue(u.ID)
}

// ChangePassword verifies the caller's current password before storing a new
// hash. The wrong-password error is distinct from login's so a logged-in user
// gets a usable message.
func (s *Service) ChangePassword(ctx context.Context, id domain.UserID, oldPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return &Error{Status: 401, Code: "WRONG_PASSWORD", Message: "wrong password"}
	}
	if len(newPassword) < minPasswordLen {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid password", Details: map[string]any{"new_password": "must be at least 6 characters"}}
	}
	if len(newPassword) > maxPasswordLen {
		return &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid password", Details: map[string]any{"new_password": "must be at most 32 characters"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = s.clk.Now()
	return s.repo.Update(ctx, u)
}

func invalidCredentials() *Error {
	return &Error{Status: 401, Code: "INVALID_CREDENTIALS", Message: "email or password is incorrect"}
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
