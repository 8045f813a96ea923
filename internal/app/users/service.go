package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/wesrides/rides-api/internal/domain"
	clockport "github.com/wesrides/rides-api/internal/ports/out/clock"
	"github.com/wesrides/rides-api/internal/ports/out/userrepo"
)

type Service struct {
	repo userrepo.Repository
	clk  clockport.Clock
}

func NewService(repo userrepo.Repository, clk clockport.Clock) *Service {
	return &Service{repo: repo, clk: clk}
}

func (s *Service) GetMyProfile(ctx context.Context, caller domain.UserID) (domain.User, error) {
	u, err := s.repo.GetByID(ctx, caller)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "no profile exists for the authenticated user"}
		}
		return domain.User{}, err
	}
	return toDomain(u), nil
}

func (s *Service) UpdateMyProfile(ctx context.Context, caller domain.UserID, in UpdateMyProfileInput) (domain.User, error) {
	u, err := s.repo.GetByID(ctx, caller)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "no profile exists for the authenticated user"}
		}
		return domain.User{}, err
	}

	if in.Name.IsSpecified() {
		if in.Name.IsNull() {
			return domain.User{}, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid name", Details: map[string]any{"name": "cannot be null"}}
		}
		name := domain.NormalizeHumanName(in.Name.Value())
		if name == "" {
			return domain.User{}, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid name", Details: map[string]any{"name": "must be non-empty"}}
		}
		u.Name = name
	}

	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.User{}, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid email", Details: map[string]any{"email": "cannot be null"}}
		}
		email := strings.TrimSpace(in.Email.Value())
		if err := ValidateEmail(email); err != nil {
			return domain.User{}, &Error{Status: 400, Code: "VALIDATION_ERROR", Message: "invalid email", Details: map[string]any{"email": err.Error()}}
		}
		u.Email = email
	}

	applyNullableString := func(dst **string, o Optional[string]) {
		if !o.IsSpecified() {
			return
		}
		if o.IsNull() {
			*dst = nil
			return
		}
		v := strings.TrimSpace(o.Value())
		if v == "" {
			*dst = nil
			return
		}
		*dst = &v
	}
	applyNullableString(&u.PhoneNumber, in.PhoneNumber)
	applyNullableString(&u.Instagram, in.Instagram)
	applyNullableString(&u.Facebook, in.Facebook)
	applyNullableString(&u.Snapchat, in.Snapchat)

	u.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			return domain.User{}, &Error{Status: 409, Code: "EMAIL_ALREADY_IN_USE", Message: "email address is already in use"}
		}
		return domain.User{}, err
	}
	return toDomain(u), nil
}

// ValidateEmail rejects anything but a bare, parseable email address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func toDomain(u userrepo.User) domain.User {
	return domain.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: cloneStringPtr(u.PhoneNumber),
		Instagram:   cloneStringPtr(u.Instagram),
		Facebook:    cloneStringPtr(u.Facebook),
		Snapchat:    cloneStringPtr(u.Snapchat),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
