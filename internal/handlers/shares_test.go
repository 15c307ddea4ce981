package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestShareLifecycleOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "owner@test.com", "password1")

	// Seed a directory under the volume root so browse has content.
	docs := filepath.Join(env.cfg.Volumes.RootPath, "docs")
	if err := os.MkdirAll(docs, 0o755); err != nil {
		t.Fatalf("seeding docs dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(docs, "readme.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shares/", map[string]any{
		"sourcePath": "/docs/",
		"accessMode": "readonly",
	}, authHeaders(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := dataMap(t, resp)
	shareToken, _ := created["shareToken"].(string)
	shareID, _ := created["id"].(string)
	if shareToken == "" || shareID == "" {
		t.Fatalf("create response incomplete: %v", created)
	}
	if created["sourcePath"] != "docs" {
		t.Fatalf("sourcePath = %v", created["sourcePath"])
	}
	if created["sourceSpace"] != "volume" {
		t.Fatalf("sourceSpace = %v", created["sourceSpace"])
	}

	// Public info needs no session.
	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/info", nil, nil)
	info := dataMap(t, resp)
	if info["isExpired"] != false {
		t.Fatalf("fresh share reported expired: %v", info)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/access", nil, nil)
	access := dataMap(t, resp)
	if access["accessMode"] != "readonly" {
		t.Fatalf("accessMode = %v", access["accessMode"])
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/browse/", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse status = %d", resp.StatusCode)
	}
	listing := dataMap(t, resp)
	items, _ := listing["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	first, _ := items[0].(map[string]any)
	if first["name"] != "readme.txt" {
		t.Fatalf("entry = %v", first)
	}
}

func TestShareExpiryOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "owner@test.com", "password1")

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shares/", map[string]any{
		"sourcePath": "docs",
		"expiresAt":  past,
	}, authHeaders(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := dataMap(t, resp)
	shareToken := created["shareToken"].(string)
	shareID := created["id"].(string)

	// Info still answers with the expired flag; access is refused.
	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status = %d", resp.StatusCode)
	}
	info := dataMap(t, resp)
	if info["isExpired"] != true {
		t.Fatalf("expected isExpired true: %v", info)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/access", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("access status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// Clearing the expiry revives the share.
	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/shares/"+shareID, map[string]any{
		"clearExpiry": true,
	}, authHeaders(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := dataMap(t, resp)
	if updated["isExpired"] != false {
		t.Fatalf("expiry not cleared: %v", updated)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/access", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revived access status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsersShareOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	_, ownerToken := createTestUser(t, env.db, "owner@test.com", "password1")
	recipient, recipientToken := createTestUser(t, env.db, "friend@test.com", "password1")
	_, strangerToken := createTestUser(t, env.db, "stranger@test.com", "password1")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shares/", map[string]any{
		"sourcePath":  "docs",
		"sharingType": "users",
		"userIds":     []string{recipient.ID.String()},
	}, authHeaders(ownerToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	shareToken := dataMap(t, resp)["shareToken"].(string)

	cases := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"stranger", authHeaders(strangerToken), http.StatusForbidden},
		{"recipient", authHeaders(recipientToken), http.StatusOK},
	}
	for _, tc := range cases {
		resp := performRequest(t, env.app, http.MethodGet, "/api/share/"+shareToken+"/access", nil, tc.headers)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s access status = %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
		resp.Body.Close()
	}
}

func TestShareCreateRequiresSession(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shares/", map[string]any{
		"sourcePath": "docs",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestShareDeleteOwnerOnly(t *testing.T) {
	env := setupTestEnv(t)
	_, ownerToken := createTestUser(t, env.db, "owner@test.com", "password1")
	_, otherToken := createTestUser(t, env.db, "other@test.com", "password1")

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shares/", map[string]any{
		"sourcePath": "docs",
	}, authHeaders(ownerToken))
	shareID := dataMap(t, resp)["id"].(string)

	resp = performRequest(t, env.app, http.MethodDelete, "/api/shares/"+shareID, nil, authHeaders(otherToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = performRequest(t, env.app, http.MethodDelete, "/api/shares/"+shareID, nil, authHeaders(ownerToken))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("owner delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
