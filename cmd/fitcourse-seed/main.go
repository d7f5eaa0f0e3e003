package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/meltforce/fitcourse/internal/catalog"
	"github.com/meltforce/fitcourse/internal/config"
	"github.com/meltforce/fitcourse/internal/remote"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (direct database mode)")
	file := flag.String("file", "", "catalog file, .yaml/.yml or .json (required)")
	serverURL := flag.String("url", "", "backend URL; when set the catalog is posted to /api/v1/seed instead of written to the database")
	apiKey := flag.String("api-key", os.Getenv("FITCOURSE_AUTH_API_KEY"), "seed API key for -url mode")
	dryRun := flag.Bool("dry-run", false, "validate and report counts without writing")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *file == "" {
		fmt.Fprintf(os.Stderr, "Usage: fitcourse-seed -file catalog.yaml [-url URL -api-key KEY | -config config.yaml] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cat, err := catalog.LoadFile(*file)
	if err != nil {
		log.Error("failed to load catalog", "file", *file, "error", err)
		os.Exit(1)
	}
	log.Info("catalog loaded", "courses", len(cat.Courses), "workouts", len(cat.Workouts))

	ctx := context.Background()
	var stats *catalog.Stats
	switch {
	case *dryRun:
		stats, err = catalog.NewSeeder(nil, log, true).Seed(ctx, cat)
	case *serverURL != "":
		stats, err = post(ctx, strings.TrimRight(*serverURL, "/"), *apiKey, cat)
	default:
		stats, err = seedDatabase(ctx, *configPath, cat, log)
	}
	if err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("seed complete", "courses", stats.Courses, "workouts", stats.Workouts)
}

func seedDatabase(ctx context.Context, configPath string, cat *catalog.Catalog, log *slog.Logger) (*catalog.Stats, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.InMemory() {
		return nil, fmt.Errorf("no database configured; use -url to seed a running backend")
	}
	dsn := cfg.Database.DSN()
	if err := remote.RunMigrations(dsn, "migrations"); err != nil {
		return nil, err
	}
	db, err := remote.NewPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return catalog.NewSeeder(db, log, false).Seed(ctx, cat)
}

func post(ctx context.Context, baseURL, apiKey string, cat *catalog.Catalog) (*catalog.Stats, error) {
	body, err := json.Marshal(cat)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/seed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var stats catalog.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &stats, nil
}
