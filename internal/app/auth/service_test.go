package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	memclock "github.com/wesrides/rides-api/internal/adapters/memory/clock"
	memuserrepo "github.com/wesrides/rides-api/internal/adapters/memory/userrepo"
	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/platform/auth/token"
)

func newTestService(t *testing.T) (*Service, *memuserrepo.Repo, *memclock.ManualClock) {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := memuserrepo.NewRepo()
	svc := NewService(repo, token.NewIssuer("test-secret", time.Hour, clk), clk)

	var n int
	svc.SetNewUserIDForTest(func() domain.UserID {
		n++
		return domain.UserID(fmt.Sprintf("user-%d", n))
	})
	return svc, repo, clk
}

func mustRegister(t *testing.T, svc *Service, name, email, password string) domain.UserID {
	t.Helper()
	id, err := svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		t.Fatalf("Register err=%v", err)
	}
	return id
}

func TestRegister_HashesPassword(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	id := mustRegister(t, svc, "Ada Lovelace", "ada@wesleyan.edu", "s3cret-pw")

	u, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID err=%v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "s3cret-pw" {
		t.Fatalf("password stored in the clear or empty: %q", u.PasswordHash)
	}
	if u.Name != "Ada Lovelace" || u.Email != "ada@wesleyan.edu" {
		t.Fatalf("unexpected stored user: %+v", u)
	}
}

func TestRegister_NormalizesName(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	id := mustRegister(t, svc, "  Ada   Lovelace  ", "ada@wesleyan.edu", "s3cret-pw")

	u, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID err=%v", err)
	}
	if u.Name != "Ada Lovelace" {
		t.Fatalf("name=%q, want normalized", u.Name)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"empty name", RegisterInput{Name: "   ", Email: "a@wesleyan.edu", Password: "s3cret-pw"}},
		{"bad email", RegisterInput{Name: "Ada", Email: "not-an-email", Password: "s3cret-pw"}},
		{"short password", RegisterInput{Name: "Ada", Email: "a@wesleyan.edu", Password: "pw"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := newTestService(t)
			_, err := svc.Register(context.Background(), tc.in)

			var appErr *Error
			if !errors.As(err, &appErr) || appErr.Status != 400 {
				t.Fatalf("err=%v, want 400 validation error", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	mustRegister(t, svc, "Ada", "ada@wesleyan.edu", "s3cret-pw")

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Other", Email: "ADA@wesleyan.edu", Password: "s3cret-pw"})

	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 409 || appErr.Code != "EMAIL_ALREADY_IN_USE" {
		t.Fatalf("err=%v, want 409 EMAIL_ALREADY_IN_USE", err)
	}
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := memuserrepo.NewRepo()
	iss := token.NewIssuer("test-secret", time.Hour, clk)
	svc := NewService(repo, iss, clk)

	id, err := svc.Register(context.Background(), RegisterInput{Name: "Ada", Email: "ada@wesleyan.edu", Password: "s3cret-pw"})
	if err != nil {
		t.Fatalf("Register err=%v", err)
	}

	raw, err := svc.Login(context.Background(), "ada@wesleyan.edu", "s3cret-pw")
	if err != nil {
		t.Fatalf("Login err=%v", err)
	}
	got, err := iss.Verify(raw)
	if err != nil {
		t.Fatalf("Verify err=%v", err)
	}
	if got != id {
		t.Fatalf("subject=%q, want %q", got, id)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	mustRegister(t, svc, "Ada", "ada@wesleyan.edu", "s3cret-pw")

	_, err := svc.Login(context.Background(), "ada@wesleyan.edu", "wrong-pw")

	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 401 || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("err=%v, want 401 INVALID_CREDENTIALS", err)
	}
}

func TestChangePassword_ReplacesHash(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	id := mustRegister(t, svc, "Ada", "ada@wesleyan.edu", "s3cret-pw")

	if err := svc.ChangePassword(context.Background(), id, "s3cret-pw", "n3w-secret"); err != nil {
		t.Fatalf("ChangePassword err=%v", err)
	}

	if _, err := svc.Login(context.Background(), "ada@wesleyan.edu", "n3w-secret"); err != nil {
		t.Fatalf("Login with new password err=%v", err)
	}
	_, err := svc.Login(context.Background(), "ada@wesleyan.edu", "s3cret-pw")
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 401 {
		t.Fatalf("err=%v, want 401 for the old password", err)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	id := mustRegister(t, svc, "Ada", "ada@wesleyan.edu", "s3cret-pw")

	err := svc.ChangePassword(context.Background(), id, "wrong-pw", "n3w-secret")

	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 401 || appErr.Code != "WRONG_PASSWORD" {
		t.Fatalf("err=%v, want 401 WRONG_PASSWORD", err)
	}
	if _, err := svc.Login(context.Background(), "ada@wesleyan.edu", "s3cret-pw"); err != nil {
		t.Fatalf("old password no longer valid: %v", err)
	}
}

func TestChangePassword_NewPasswordLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		pw   string
	}{
		{"too short", "pw"},
		{"too long", strings.Repeat("x", 33)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := newTestService(t)
			id := mustRegister(t, svc, "Ada", "ada@wesleyan.edu", "s3cret-pw")

			err := svc.ChangePassword(context.Background(), id, "s3cret-pw", tc.pw)

			var appErr *Error
			if !errors.As(err, &appErr) || appErr.Status != 400 {
				t.Fatalf("err=%v, want 400 validation error", err)
			}
		})
	}
}

func TestChangePassword_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	err := svc.ChangePassword(context.Background(), "missing", "s3cret-pw", "n3w-secret")

	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 404 || appErr.Code != "USER_NOT_FOUND" {
		t.Fatalf("err=%v, want 404 USER_NOT_FOUND", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@wesleyan.edu", "s3cret-pw")

	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Status != 401 || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("err=%v, want 401 INVALID_CREDENTIALS", err)
	}
}
