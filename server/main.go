// Command server exposes a faultfix dependency graph over a read-only JSON API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPort      = "8080"
	defaultCacheSize = 256
	shutdownTimeout  = 10 * time.Second
)

type serverConfig struct {
	dbPath    string
	port      string
	cacheSize int
}

// loadServerConfig reads flags, falling back to FAULTFIX_DB, PORT and
// SLICE_CACHE for anything not given on the command line.
func loadServerConfig(args []string) (serverConfig, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg := serverConfig{}
	fs.StringVar(&cfg.dbPath, "db", os.Getenv("FAULTFIX_DB"), "faultfix SQLite graph database (env FAULTFIX_DB)")
	fs.StringVar(&cfg.port, "port", envOr("PORT", defaultPort), "HTTP port (env PORT)")
	cache := envOr("SLICE_CACHE", strconv.Itoa(defaultCacheSize))
	fs.Func("cache", "number of dependency slices kept in memory (env SLICE_CACHE)", func(v string) error {
		cache = v
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	n, err := strconv.Atoi(cache)
	if err != nil || n <= 0 {
		return cfg, fmt.Errorf("invalid slice cache size %q", cache)
	}
	cfg.cacheSize = n
	if cfg.dbPath == "" {
		return cfg, errors.New("database path required: set -db or FAULTFIX_DB")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.dbPath, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("open %s: %w", cfg.dbPath, err)
	}

	app, err := NewApp(db, cfg.cacheSize)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving %s on :%s", cfg.dbPath, cfg.port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
