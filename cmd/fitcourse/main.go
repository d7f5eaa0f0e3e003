package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/cache"
	"github.com/meltforce/fitcourse/internal/config"
	"github.com/meltforce/fitcourse/internal/courses"
	"github.com/meltforce/fitcourse/internal/remote"
	"github.com/meltforce/fitcourse/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `Usage: fitcourse [-config file] [-v] <command> [args]

Account:
  signup -email E -password P     create an account and sign in
  login -email E -password P      sign in
  logout                          sign out
  whoami                          show the signed-in user
  name NAME                       set the display name
  reset-password -email E         request a password reset
  change-password -password P     change the password

Courses:
  catalog                         list all courses
  my-courses                      list enrolled courses with completion
  enroll COURSE                   enroll in a course
  unenroll COURSE                 leave a course and delete its progress
  course COURSE                   show per-workout progress of a course
  reset COURSE                    delete progress of a course, keep enrollment
  workout WORKOUT                 show a workout with progress
  start WORKOUT                   create an empty progress record
  save WORKOUT NAME=COUNT...      record repetitions

Other:
  mcp                             serve MCP over stdio
  watch                           keep the session open and report changes
  version                         print version
`

// app bundles the wired client components for one invocation.
type app struct {
	cfg      *config.ClientConfig
	log      *slog.Logger
	repo     *courses.Repository
	sessions *session.Manager
}

func main() {
	configPath := flag.String("config", "fitcourse.yaml", "path to optional client config file")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Println("fitcourse", Version)
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so stdout stays clean for the MCP transport.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	state, err := cache.OpenSQLite(cfg.StateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := wire(cfg, state, log)
	if err := a.sessions.Start(ctx); err != nil {
		log.Error("session start failed", "error", err)
		os.Exit(1)
	}
	defer a.sessions.Stop()

	if err := a.run(ctx, cmd, args); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr)
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		msg := auth.Message(err)
		if errors.Is(err, courses.ErrInvalidID) {
			msg = err.Error()
		}
		fmt.Fprintln(os.Stderr, "error:", msg)
		log.Debug("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// wire builds the client stack: token and cache in the local SQLite state,
// remote reads through the backend HTTP API.
func wire(cfg *config.ClientConfig, medium cache.Medium, log *slog.Logger) *app {
	provider := auth.NewHTTPProvider(cfg.RemoteURL, medium, log)

	store := remote.NewHTTPStore(cfg.RemoteURL, provider)
	store.OnUnauthorized = provider.Expire

	c := cache.New(medium, log, cache.WithTTL(cfg.CacheTTL))
	sessions := session.New(provider, c, log,
		session.WithInactivityWindow(cfg.InactivityTimeout),
		session.WithCheckInterval(cfg.CheckInterval),
	)
	repo := courses.New(store, c, log,
		courses.WithFanout(cfg.Fanout),
		courses.WithIdentitySource(sessions),
	)
	return &app{cfg: cfg, log: log, repo: repo, sessions: sessions}
}
