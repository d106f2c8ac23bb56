package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestJWTRoundtrip(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	handler := authMiddleware(secret)(func(c echo.Context) error {
		return c.String(http.StatusOK, userID(c))
	})

	// Bearer header
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("bearer auth: %v", err)
	}
	if rec.Body.String() != "user-123" {
		t.Errorf("subject = %q", rec.Body.String())
	}

	// Cookie
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("cookie auth: %v", err)
	}

	// Missing token
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	err = handler(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("missing token err = %v", err)
	}

	// Wrong secret
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	err = authMiddleware([]byte("other-secret"))(func(c echo.Context) error { return nil })(e.NewContext(req, rec))
	he, ok = err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret err = %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-123", secret, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	err = authMiddleware(secret)(func(c echo.Context) error { return nil })(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expired token err = %v", err)
	}
}

func TestNormalizeMode(t *testing.T) {
	for in, want := range map[string]string{
		"":              "deep_research",
		"deep_research": "deep_research",
		"baseline":      "baseline",
	} {
		got, err := normalizeMode(in)
		if err != nil || got != want {
			t.Errorf("normalizeMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := normalizeMode("turbo"); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-25 * time.Hour)

	if !isDue("@daily", nil) {
		t.Error("never-run daily topic not due")
	}
	if isDue("@daily", &recent) {
		t.Error("recently-run daily topic due")
	}
	if !isDue("@daily", &old) {
		t.Error("stale daily topic not due")
	}
	if isDue("@hourly", &recent) {
		t.Error("recently-run hourly topic due")
	}

	// Standard cron expression: every day at midnight
	if !isDue("0 0 * * *", &old) {
		t.Error("cron topic past its next fire time not due")
	}
	future := now.Add(-time.Minute)
	if isDue("0 0 * * *", &future) && now.Hour() != 0 {
		t.Error("cron topic before its next fire time due")
	}

	// Invalid cron falls back to daily
	if !isDue("not a cron", &old) {
		t.Error("invalid cron with stale run not due")
	}
	if isDue("not a cron", &recent) {
		t.Error("invalid cron with recent run due")
	}
}

func TestMigrateRejectsBadInput(t *testing.T) {
	if err := Migrate("file://migrations", "", "up", 0); err == nil {
		t.Error("empty dsn accepted")
	}
	if err := Migrate("file://migrations", "postgres://localhost/db", "sideways", 0); err == nil {
		t.Error("unknown direction accepted")
	}
}
