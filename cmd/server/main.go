package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/thomst/searchkit/internal/api"
	"github.com/thomst/searchkit/internal/config"
	"github.com/thomst/searchkit/internal/db"
	"github.com/thomst/searchkit/internal/export"
	"github.com/thomst/searchkit/internal/middleware"
	"github.com/thomst/searchkit/internal/query"
	"github.com/thomst/searchkit/internal/repository"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Register searchable models
	registry, err := demoRegistry()
	if err != nil {
		log.Fatalf("Failed to build model registry: %v", err)
	}

	// Create repositories and services
	searchRepo := repository.NewSearchRepository(conn.Pool)
	executor := query.NewExecutor(conn.Pool, registry, cfg.MaxDepth)
	exportService := export.NewService(searchRepo, executor)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	searchkitHandler := api.NewHandler(registry, searchRepo, executor, cfg.MaxDepth)
	exportHandler := export.NewHTTPHandler(exportService)

	mux := http.NewServeMux()
	mux.Handle("/searchkit/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/export") {
			exportHandler.ServeHTTP(w, r)
			return
		}
		searchkitHandler.ServeHTTP(w, r)
	}))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting searchkit server on %s", cfg.ServerAddr)
		log.Printf("Search endpoints available below http://localhost%s/searchkit/", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
