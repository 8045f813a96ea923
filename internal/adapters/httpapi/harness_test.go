package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wesrides/rides-api/internal/adapters/email"
	memclock "github.com/wesrides/rides-api/internal/adapters/memory/clock"
	memridestore "github.com/wesrides/rides-api/internal/adapters/memory/ridestore"
	memuserrepo "github.com/wesrides/rides-api/internal/adapters/memory/userrepo"
	"github.com/wesrides/rides-api/internal/app/auth"
	"github.com/wesrides/rides-api/internal/app/interests"
	"github.com/wesrides/rides-api/internal/app/rides"
	"github.com/wesrides/rides-api/internal/app/users"
	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/platform/auth/token"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	handler http.Handler
	tokens  *token.Issuer
	clk     *memclock.ManualClock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clk := memclock.NewManualClock(testNow)
	store := memridestore.NewStore()
	userRepo := memuserrepo.NewRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := token.NewIssuer("test-secret", time.Hour, clk)
	notify := email.NewLogNotifier(logger)

	srv := NewServer(
		auth.NewService(userRepo, tokens, clk),
		users.NewService(userRepo, clk),
		rides.NewService(store, userRepo, clk),
		interests.NewService(store, userRepo, notify, clk, logger),
	)
	handler := NewRouter(srv, RouterConfig{
		Tokens:            tokens,
		Logger:            logger,
		AuthRatePerMinute: 600,
		AuthRateBurst:     100,
	})
	return &testAPI{handler: handler, tokens: tokens, clk: clk}
}

func (a *testAPI) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.7:51234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// registerAndLogin creates an account through the API and returns its user ID
// and a valid bearer token.
func (a *testAPI) registerAndLogin(t *testing.T, name, email string) (domain.UserID, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/authentication/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "s3cret-pw",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &created)

	rec = a.do(t, http.MethodPost, "/authentication/login", "", map[string]any{
		"email":    email,
		"password": "s3cret-pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	decodeJSON(t, rec, &login)
	return domain.UserID(created.ID), login.Token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &body)
	return body.Error.Code
}
