package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	config "github.com/MarselBissengaliyev/x-backend/configs"
	"github.com/MarselBissengaliyev/x-backend/internal/api/handlers"
	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
	"github.com/MarselBissengaliyev/x-backend/internal/scheduler"
	"github.com/MarselBissengaliyev/x-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	accountRepo := repository.NewAccountRepository(db)
	postRepo := repository.NewPostRepository(db)
	scheduledPostRepo := repository.NewScheduledPostRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	driver := browser.NewChromeDriver(cfg.Browser.ExecPath, cfg.Browser.Headless)
	classifier := browser.NewClassifier()
	cookieStore := browser.NewCookieStore(cfg.CookiesDir)
	sessionStore := service.NewSessionStore(cfg.SessionTTL)
	defer sessionStore.Close()

	generator := service.NewOpenAIGenerator(cfg.OpenAIAPIKey)
	driveService := service.NewDriveService(*cfg)
	authService := service.NewAuthService(*cfg, driver, classifier, cookieStore, sessionStore, accountRepo)
	accountService := service.NewAccountService(accountRepo, cookieStore)
	claimService := service.NewClaimService(mediaAssetRepo, driveService)
	contentService := service.NewContentService(generator)
	publishService := service.NewPublishService(driver, classifier, cookieStore)

	registry := scheduler.NewRegistry(accountRepo, scheduledPostRepo, postRepo, mediaAssetRepo,
		claimService, contentService, publishService)
	if err := registry.Restore(context.Background()); err != nil {
		log.Fatalf("Failed to restore scheduled jobs: %v", err)
	}
	registry.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api := app.Group("/api")

	account := handlers.NewAccountHandler(authService, accountService)
	api.Post("/accounts/create", account.CreateAccount)
	api.Post("/accounts/submit-challenge", account.SubmitChallenge)
	api.Post("/accounts/submit-code", account.SubmitCode)
	api.Get("/accounts", account.ListAccounts)
	api.Post("/accounts/remove", account.RemoveAccount)

	schedule := handlers.NewScheduleHandler(registry)
	api.Post("/schedules/create", schedule.CreateSchedule)
	api.Get("/schedules", schedule.ListSchedules)
	api.Post("/schedules/remove", schedule.RemoveSchedule)
	api.Get("/schedules/active", schedule.ActiveJobs)

	post := handlers.NewPostHandler(service.NewPostService(postRepo))
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	content := handlers.NewContentHandler(generator)
	api.Post("/content/generate", content.Generate)

	go func() {
		if err := app.Listen(cfg.ServerAddress); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ServerAddress)

	gracefulShutdown(app, registry, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, registry *scheduler.Registry, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	registry.Stop(ctx)

	closeDB(db)
	log.Println("Server shutdown complete.")
}
