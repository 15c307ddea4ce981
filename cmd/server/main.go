package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/database"
	"github.com/fileharbor/backend/internal/handlers"
	"github.com/fileharbor/backend/internal/middleware"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigurePasswordCost(cfg.Auth.PasswordCost)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	if err := database.BootstrapAdmin(db, cfg.Auth); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
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

	authHandler := handlers.NewAuthHandler(db, users, localAuth, cfg)
	mfaHandler := handlers.NewMFAHandler(db, users, cfg)
	ssoHandler := handlers.NewSSOHandler(cfg, oidc)
	usersHandler := handlers.NewUsersHandler(users)
	rulesHandler := handlers.NewAccessRulesHandler(access)
	volumesHandler := handlers.NewVolumesHandler(volumes)
	sharesHandler := handlers.NewSharesHandler(shares)
	filesHandler := handlers.NewFilesHandler(cfg, access)
	wopiHandler := handlers.NewWOPIHandler(cfg, wopiLocks)

	authMw := middleware.NewAuthMiddleware(resolver, cfg)

	app := fiber.New(fiber.Config{
		AppName:   "FileHarbor",
		BodyLimit: 512 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(authMw.Authenticate)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

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

	// Public share surface; recipient checks happen inside.
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

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("server_starting", map[string]interface{}{"addr": addr})
		if err := app.Listen(addr); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down", nil)
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown_failed", map[string]interface{}{"error": err.Error()})
	}
}
