package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/middleware"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
		utils.ConfigurePasswordCost(4)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.AuthMethod{},
		&models.AuthLock{},
		&models.MFAConfig{},
		&models.AccessRule{},
		&models.UserVolume{},
		&models.Share{},
		&models.ShareRecipient{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://localhost:3001"},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpirationHours: 24},
		Auth: config.AuthConfig{
			Enabled:           true,
			MaxFailedAttempts: 3,
			LockoutMinutes:    15,
		},
		Volumes: config.VolumeConfig{
			RootPath:           t.TempDir(),
			UserVolumesEnabled: true,
		},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	lockout := services.NewLockoutService(db, cfg.Auth)
	localAuth := services.NewLocalAuthService(db, lockout)
	oidc := services.NewOIDCService(db)
	resolver := services.NewRequestUserService(db, cfg.OIDC)
	users := services.NewUserService(db)
	access := services.NewAccessService(db)
	volumes := services.NewUserVolumeService(db)
	shares := services.NewShareService(db, volumes, cfg.Volumes)
	wopiLocks := services.NewWOPILockService(0)

	authHandler := NewAuthHandler(db, users, localAuth, cfg)
	mfaHandler := NewMFAHandler(db, users, cfg)
	ssoHandler := NewSSOHandler(cfg, oidc)
	usersHandler := NewUsersHandler(users)
	rulesHandler := NewAccessRulesHandler(access)
	volumesHandler := NewVolumesHandler(volumes)
	sharesHandler := NewSharesHandler(shares)
	filesHandler := NewFilesHandler(cfg, access)
	wopiHandler := NewWOPIHandler(cfg, wopiLocks)

	authMw := middleware.NewAuthMiddleware(resolver, cfg)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(authMw.Authenticate)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Get("/status", authHandler.Status)
	auth.Post("/setup", authHandler.Setup)
	auth.Post("/login", authHandler.Login)
	auth.Post("/login/mfa", func(c *fiber.Ctx) error {
		return mfaHandler.Verify(c, authHandler)
	})
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", middleware.RequireAuth, authHandler.Me)
	auth.Put("/password", middleware.RequireAuth, authHandler.ChangePassword)
	auth.Post("/password", middleware.RequireAuth, authHandler.AddPassword)
	auth.Post("/mfa/enroll", middleware.RequireAuth, mfaHandler.Enroll)
	auth.Post("/mfa/confirm", middleware.RequireAuth, mfaHandler.Confirm)

	sso := api.Group("/sso")
	sso.Get("/login", ssoHandler.Login)
	sso.Get("/callback", ssoHandler.Callback)

	usersGroup := api.Group("/users")
	usersGroup.Get("/", middleware.RequireAuth, middleware.AdminOnly, usersHandler.List)
	usersGroup.Get("/shareable", middleware.RequireAuth, usersHandler.Shareable)
	usersGroup.Put("/:id/profile", middleware.RequireAuth, middleware.AdminOnly, usersHandler.UpdateProfile)
	usersGroup.Put("/:id/roles", middleware.RequireAuth, middleware.AdminOnly, usersHandler.UpdateRoles)
	usersGroup.Put("/:id/password", middleware.RequireAuth, middleware.AdminOnly, authHandler.ResetPassword)
	usersGroup.Delete("/:id", middleware.RequireAuth, middleware.AdminOnly, usersHandler.Delete)

	rules := api.Group("/access-rules", middleware.RequireAuth, middleware.AdminOnly)
	rules.Get("/", rulesHandler.List)
	rules.Put("/", rulesHandler.Set)

	volumesGroup := api.Group("/volumes", middleware.RequireAuth)
	volumesGroup.Get("/mine", volumesHandler.Mine)
	volumesGroup.Post("/", middleware.AdminOnly, volumesHandler.Add)
	volumesGroup.Get("/user/:id", middleware.AdminOnly, volumesHandler.ListForUser)

	sharesGroup := api.Group("/shares", middleware.RequireAuth)
	sharesGroup.Post("/", sharesHandler.Create)
	sharesGroup.Get("/", sharesHandler.ListMine)
	sharesGroup.Put("/:id", sharesHandler.Update)
	sharesGroup.Delete("/:id", sharesHandler.Delete)

	share := api.Group("/share")
	share.Get("/:token/info", sharesHandler.Info)
	share.Get("/:token/access", sharesHandler.Access)
	share.Get("/:token/browse/*", sharesHandler.Browse)

	files := api.Group("/files", middleware.RequireAuth)
	files.Get("/browse/*", filesHandler.Browse)
	files.Get("/download/*", filesHandler.Download)
	files.Post("/upload/*", filesHandler.Upload)
	files.Post("/mkdir", filesHandler.Mkdir)
	files.Delete("/*", filesHandler.Delete)

	wopi := api.Group("/wopi", middleware.RequireAuth)
	wopi.Get("/files/:id", wopiHandler.CheckFileInfo)
	wopi.Get("/files/:id/contents", wopiHandler.GetFile)
	wopi.Post("/files/:id/contents", wopiHandler.PutFile)
	wopi.Post("/files/:id", wopiHandler.LockOps)

	return &testEnv{app: app, db: db, cfg: cfg}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, roles ...string) (*models.User, string) {
	t.Helper()

	if len(roles) == 0 {
		roles = []string{"user"}
	}
	roleRows := make([]models.UserRole, 0, len(roles))
	for _, r := range roles {
		roleRows = append(roleRows, models.UserRole{Role: r})
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email: utils.NormalizeEmail(email),
		Roles: roleRows,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	method := models.AuthMethod{
		UserID:       user.ID,
		MethodType:   models.AuthMethodLocal,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := db.Create(&method).Error; err != nil {
		t.Fatalf("failed creating auth method: %v", err)
	}

	token, err := utils.GenerateSessionToken(user)
	if err != nil {
		t.Fatalf("failed generating session token: %v", err)
	}
	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed decoding response %q: %v", raw, err)
	}
	return decoded
}

func dataMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return data
}
