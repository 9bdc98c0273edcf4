package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/ymca/gcalsync/internal/auth"
	"github.com/ymca/gcalsync/internal/cache"
	calclient "github.com/ymca/gcalsync/internal/calendar"
	"github.com/ymca/gcalsync/internal/config"
	"github.com/ymca/gcalsync/internal/groupex"
	"github.com/ymca/gcalsync/internal/logger"
	"github.com/ymca/gcalsync/internal/schedule"
	"github.com/ymca/gcalsync/internal/state"
	"github.com/ymca/gcalsync/internal/storage"
	"github.com/ymca/gcalsync/internal/sync"
	"github.com/ymca/gcalsync/internal/translate"
)

// app holds the dependencies a command needs. Google resources are created
// lazily so that local commands work without credentials.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	repo    cache.Repository
	store   state.Store
	closers []io.Closer
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configFile, opts.overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.Debug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	if cfg.LogFile != "" {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		logOpts = append(logOpts, logger.WithWriter(f))
	}
	a.logger = logger.New(logOpts...)

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db)
	a.repo = cache.NewSQLiteRepository(db)

	switch cfg.StateBackend {
	case config.BackendRedis:
		store, err := state.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store)
		a.store = store
	default:
		a.store = storage.NewStateStore(db)
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.logger != nil {
			a.logger.Warn("Failed to close resource", "error", err)
		}
	}
}

func (a *app) cursor() *schedule.Cursor {
	return schedule.NewCursor(a.store,
		schedule.WithSteps(a.cfg.ScheduleSteps),
		schedule.WithStepLength(a.cfg.StepLength()),
	)
}

func (a *app) oauthConfig() (*oauth2.Config, error) {
	clientID, clientSecret, err := config.LoadGoogleCredentials(a.cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes:       []string{auth.CalendarScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}, nil
}

// google returns the calendar client and the credentials behind it.
func (a *app) google(ctx context.Context) (*calclient.Client, *auth.Credentials, error) {
	oauthConfig, err := a.oauthConfig()
	if err != nil {
		return nil, nil, err
	}

	creds, err := auth.NewCredentials(oauthConfig, auth.NewFileTokenStore(a.cfg.TokenPath))
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return nil, nil, fmt.Errorf("%w (token path %s)", err, a.cfg.TokenPath)
		}
		return nil, nil, err
	}

	client, err := calclient.NewClient(ctx, creds.HTTPClient(ctx))
	if err != nil {
		return nil, nil, err
	}
	return client, creds, nil
}

// runner wires a complete pass. Without a Google client (dry runs) the push
// step is not available.
func (a *app) runner(ctx context.Context, withGoogle bool) (*sync.Runner, error) {
	loc, err := a.cfg.SourceLocation()
	if err != nil {
		return nil, err
	}
	translator := translate.New(loc, a.logger)
	wrapper := sync.NewWrapper(a.cursor())

	var syncer *sync.Syncer
	if withGoogle {
		client, creds, err := a.google(ctx)
		if err != nil {
			return nil, err
		}
		resolver := calclient.NewResolver(client, a.logger, calclient.ResolverOptions{
			Production:       a.cfg.IsProduction,
			TestCalendarName: a.cfg.TestCalendarName,
			TimeZone:         a.cfg.CalendarTimeZone,
		})
		syncer = sync.NewSyncer(client, resolver, translator, a.repo, wrapper, creds, a.logger)
	}

	var source sync.Source
	if len(a.cfg.GroupEx.Locations) > 0 {
		source = groupex.NewClient(groupex.Options{
			BaseURL:   a.cfg.GroupEx.BaseURL,
			Account:   a.cfg.GroupEx.Account,
			Locations: a.cfg.GroupEx.Locations,
			Timeout:   30 * time.Second,
		}, a.logger)
	} else {
		a.logger.Warn("No GroupEx locations configured, pushing cached classes only")
	}

	importer := groupex.NewImporter(a.repo, loc, a.logger)
	return sync.NewRunner(wrapper, source, importer, a.repo, syncer, translator, a.logger), nil
}
