package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/tagfiler/backend/internal/config"
	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/handlers"
	"github.com/tagfiler/backend/internal/middleware"
	"github.com/tagfiler/backend/internal/services"
	"github.com/tagfiler/backend/pkg/logger"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the tagfiler engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			app := buildApp(db)

			listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
			logger.Info("server_starting", map[string]interface{}{
				"address": listenAddr,
				"driver":  string(db.Driver),
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Listen(listenAddr)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-quit:
				log.Printf("shutting down due to signal: %s", sig)
				shutdownDone := make(chan struct{})
				go func() {
					_ = app.Shutdown()
					close(shutdownDone)
				}()
				select {
				case <-shutdownDone:
				case <-time.After(10 * time.Second):
					log.Print("forced shutdown timeout reached")
				}
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			return nil
		},
	}
}

func buildApp(db *database.Database) *fiber.App {
	fileService := services.NewFileService(db)
	tagService := services.NewTagService(db)
	associationService := services.NewAssociationService(db, fileService)
	searchService := services.NewSearchService(db)

	tagsHandler := handlers.NewTagsHandler(tagService, searchService)
	filesHandler := handlers.NewFilesHandler(fileService, associationService, searchService)
	eventsHandler := handlers.NewEventsHandler(fileService)

	app := fiber.New(fiber.Config{BodyLimit: 4 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.Health(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unreachable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	tagRoutes := api.Group("/tags")
	tagRoutes.Get("/", tagsHandler.List)
	tagRoutes.Get("/search", tagsHandler.SearchByName)
	tagRoutes.Post("/", tagsHandler.Create)
	tagRoutes.Put("/:id", tagsHandler.Modify)
	tagRoutes.Delete("/:id", tagsHandler.Delete)
	tagRoutes.Get("/:id/files", tagsHandler.Files)

	fileRoutes := api.Group("/files")
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Post("/search", filesHandler.SearchByTags)
	fileRoutes.Post("/tags", filesHandler.TagPaths)
	fileRoutes.Get("/:id/tags", filesHandler.ListTags)
	fileRoutes.Delete("/:id/tags/:tagId", filesHandler.Untag)

	eventRoutes := api.Group("/events")
	eventRoutes.Post("/moved", eventsHandler.Moved)
	eventRoutes.Post("/copied", eventsHandler.Copied)
	eventRoutes.Post("/deleted", eventsHandler.Deleted)

	fsRoutes := api.Group("/fs")
	fsRoutes.Post("/move", eventsHandler.BatchMove)
	fsRoutes.Post("/copy", eventsHandler.BatchCopy)
	fsRoutes.Post("/delete", eventsHandler.BatchDelete)
	fsRoutes.Post("/rename", eventsHandler.Rename)

	api.Get("/history", eventsHandler.History)

	return app
}
