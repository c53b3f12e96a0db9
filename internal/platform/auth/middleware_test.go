package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubUserGetter struct {
	record  *firebaseauth.UserRecord
	calls   int
	lastUID string
}

func (s *stubUserGetter) GetUser(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
	s.calls++
	s.lastUID = uid
	return s.record, nil
}

func staffToken(uid string) *firebaseauth.Token {
	return &firebaseauth.Token{
		UID: uid,
		Claims: map[string]interface{}{
			"role":  []interface{}{"staff", "admin"},
			"email": "cook@tastyhub.example",
		},
	}
}

func serveAuthed(handler http.Handler, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireFirebaseAuthAllowsStaffToken(t *testing.T) {
	verifier := &stubTokenVerifier{token: staffToken("uid-123")}
	userGetter := &stubUserGetter{record: &firebaseauth.UserRecord{
		UserInfo: &firebaseauth.UserInfo{UID: "uid-123", Email: "cook@tastyhub.example"},
	}}
	authn := NewAuthenticator(verifier, WithUserGetter(userGetter))

	var seen *Identity
	handler := authn.RequireFirebaseAuth(RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		seen = identity

		first, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("User: %v", err)
		}
		second, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("User (second call): %v", err)
		}
		if first != second {
			t.Error("user record not memoised")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := serveAuthed(handler, "token-value")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if seen == nil {
		t.Fatal("handler never ran")
	}
	if seen.UID != "uid-123" {
		t.Errorf("uid = %s, want uid-123", seen.UID)
	}
	if !seen.HasRole(RoleStaff) {
		t.Errorf("roles = %v, want staff", seen.Roles)
	}
	if seen.Email != "cook@tastyhub.example" {
		t.Errorf("email = %s", seen.Email)
	}
	if verifier.received != "token-value" {
		t.Errorf("verifier received %q, want token-value", verifier.received)
	}
	if userGetter.calls != 1 || userGetter.lastUID != "uid-123" {
		t.Errorf("user getter calls = %d uid = %s, want one call for uid-123", userGetter.calls, userGetter.lastUID)
	}
}

func TestRequireFirebaseAuthMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{})
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not execute without a bearer token")
	}))

	if rr := serveAuthed(handler, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestRequireFirebaseAuthExpiredToken(t *testing.T) {
	authn := NewAuthenticator(&stubTokenVerifier{err: ErrTokenExpired})
	handler := authn.RequireFirebaseAuth(RoleUser)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not execute on expired token")
	}))

	rr := serveAuthed(handler, "expired-token")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if code := errorCode(t, rr); code != "token_expired" {
		t.Fatalf("error = %q, want token_expired", code)
	}
}

func TestRequireFirebaseAuthRejectsDinerOnStaffRoute(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    "uid-789",
		Claims: map[string]interface{}{"role": "user"},
	}}
	authn := NewAuthenticator(verifier)
	handler := authn.RequireFirebaseAuth(RoleStaff, RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not execute for a diner on a staff route")
	}))

	rr := serveAuthed(handler, "diner-token")

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if code := errorCode(t, rr); code != "insufficient_role" {
		t.Fatalf("error = %q, want insufficient_role", code)
	}
}

func TestRequireFirebaseAuthDefaultsToUserRole(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    "uid-456",
		Claims: map[string]interface{}{},
	}}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		if len(identity.Roles) != 1 || identity.Roles[0] != RoleUser {
			t.Fatalf("roles = %v, want [%s]", identity.Roles, RoleUser)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if rr := serveAuthed(handler, "missing-role-token"); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
}
