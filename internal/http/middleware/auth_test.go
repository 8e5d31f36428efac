package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tendant/pawfinder/internal/httputil"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/domain"
)

func TestAuth(t *testing.T) {
	sessions := auth.NewSessionService(auth.SessionConfig{JWTSecret: []byte("secret"), Issuer: "pawfinder"})
	pair, err := sessions.IssueSession(&domain.Account{ID: 7, Username: "alice", Email: "a@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	other := auth.NewSessionService(auth.SessionConfig{JWTSecret: []byte("other")})
	forged, _ := other.IssueSession(&domain.Account{ID: 7})

	var gotID int64
	var gotUsername string
	handler := Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetAccountID(r.Context())
		if claims, ok := GetClaims(r.Context()); ok {
			gotUsername = claims.Username
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer " + pair.AccessToken, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + pair.AccessToken, wantStatus: http.StatusOK},
		{name: "cookie fallback", cookie: pair.AccessToken, wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "other secret", header: "Bearer " + forged.AccessToken, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotUsername = 0, ""
			req := httptest.NewRequest(http.MethodGet, "/me/pets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				w := httptest.NewRecorder()
				httputil.SetAccessTokenCookie(w, tt.cookie, time.Hour, httputil.DefaultCookieConfig())
				req.AddCookie(w.Result().Cookies()[0])
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (gotID != 7 || gotUsername != "alice") {
				t.Errorf("context account = %d %q, want 7 alice", gotID, gotUsername)
			}
		})
	}
}

func TestGetAccountID_Missing(t *testing.T) {
	if _, ok := GetAccountID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Error("GetAccountID on a bare context should report false")
	}
}
