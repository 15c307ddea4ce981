package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestMFAEnrollConfirmAndChallenge(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "alice@test.com", "correct-horse")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/enroll", nil, authHeaders(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enroll status = %d", resp.StatusCode)
	}
	enrollment := dataMap(t, resp)
	secret, _ := enrollment["secret"].(string)
	if secret == "" {
		t.Fatalf("enrollment missing secret: %v", enrollment)
	}

	// A bad code does not confirm.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/confirm", map[string]any{
		"code": "000000",
	}, authHeaders(token))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad confirm status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generating code: %v", err)
	}
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/confirm", map[string]any{
		"code": code,
	}, authHeaders(token))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// With a confirmed factor, login turns into a challenge.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "alice@test.com",
		"password": "correct-horse",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	challenge := dataMap(t, resp)
	if challenge["mfaRequired"] != true {
		t.Fatalf("expected challenge, got %v", challenge)
	}
	mfaToken, _ := challenge["mfaToken"].(string)
	if mfaToken == "" {
		t.Fatal("challenge missing token")
	}
	if _, ok := challenge["token"]; ok {
		t.Fatal("session token issued before second factor")
	}

	code, err = totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generating code: %v", err)
	}
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login/mfa", map[string]any{
		"mfaToken": mfaToken,
		"code":     code,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	session := dataMap(t, resp)
	if session["token"] == "" || session["token"] == nil {
		t.Fatalf("no session issued: %v", session)
	}

	// The challenge token is single use.
	code, _ = totp.GenerateCode(secret, time.Now())
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login/mfa", map[string]any{
		"mfaToken": mfaToken,
		"code":     code,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed challenge status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}
