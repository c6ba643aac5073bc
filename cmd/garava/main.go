package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/garava/garava/internal/config"
	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/garmin"
	"github.com/garava/garava/internal/logger"
	"github.com/garava/garava/internal/repository"
	"github.com/garava/garava/internal/strava"
	engine "github.com/garava/garava/internal/sync"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

const oauthFlowTimeout = 5 * time.Minute

func main() {
	app := &cli.App{
		Name:  "garava",
		Usage: "one-way Garmin Connect to Strava activity sync",
		Commands: []*cli.Command{
			setupCommand(),
			runCommand(),
			statusCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// application bundles the wired components shared by all commands.
type application struct {
	cfg        *config.Config
	db         *gorm.DB
	activities *repository.ActivityRepository
	tokens     *repository.TokenRepository
	runs       *repository.SyncRunRepository
	settings   *repository.SettingsRepository
}

// bootstrap loads configuration, initializes logging and the database, and
// applies persisted config overrides.
func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.SetDefaultLogger(logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "garava",
		LogFile:     cfg.Log.File,
		MaxSizeMB:   5,
		MaxBackups:  3,
		MaxAgeDays:  30,
	}))

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	settings := repository.NewSettingsRepository(db)
	if err := cfg.ApplyStoredOverrides(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to apply stored config overrides: %w", err)
	}

	return &application{
		cfg:        cfg,
		db:         db,
		activities: repository.NewActivityRepository(db),
		tokens:     repository.NewTokenRepository(db),
		runs:       repository.NewSyncRunRepository(db),
		settings:   settings,
	}, nil
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "authenticate with Garmin Connect and authorize Strava",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			if violations := app.cfg.Validate(); len(violations) > 0 {
				for _, v := range violations {
					fmt.Fprintf(os.Stderr, "config: %s\n", v)
				}
				return errors.New("configuration is incomplete")
			}

			if err := setupGarmin(app.cfg); err != nil {
				return err
			}
			return setupStrava(ctx, app)
		},
	}
}

func setupGarmin(cfg *config.Config) error {
	client := garmin.NewClient(cfg.Garmin.SessionDir)

	if client.VerifySession() {
		fmt.Println("Garmin session is still valid, reusing it.")
		return nil
	}

	email := os.Getenv("GARMIN_EMAIL")
	password := os.Getenv("GARMIN_PASSWORD")
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("Garmin email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Garmin password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	if err := client.Login(email, password); err != nil {
		return err
	}
	fmt.Println("Garmin Connect login successful.")
	return nil
}

func setupStrava(ctx context.Context, app *application) error {
	client := strava.NewClient(app.cfg.Strava.ClientID, app.cfg.Strava.ClientSecret)

	result := strava.RunOAuthFlow(ctx, client, app.cfg.Strava.RedirectURI, oauthFlowTimeout)
	if !result.Success {
		return fmt.Errorf("strava authorization failed: %s", result.Error)
	}
	if err := app.tokens.Save(ctx, result.Token); err != nil {
		return fmt.Errorf("failed to save Strava token: %w", err)
	}

	if athlete, err := client.GetAthlete(ctx); err == nil {
		fmt.Printf("Authorized as %s %s (athlete %d).\n", athlete.Firstname, athlete.Lastname, athlete.ID)
	} else {
		fmt.Println("Strava authorization successful.")
	}
	fmt.Println("Setup complete. Start syncing with 'garava run'.")
	return nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the sync engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "run a single sync cycle and exit"},
		},
		Action: func(c *cli.Context) error {
			app, err := bootstrap(c.Context)
			if err != nil {
				return err
			}
			eng := buildEngine(app)
			ctx := logger.SetComponent(c.Context, "sync")

			if c.Bool("once") {
				_, err := eng.RunCycle(ctx)
				return err
			}

			stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, stopCtx.Done(), eng)
		},
	}
}

func buildEngine(app *application) *engine.Engine {
	stravaClient := strava.NewClient(app.cfg.Strava.ClientID, app.cfg.Strava.ClientSecret)
	garminClient := garmin.NewClient(app.cfg.Garmin.SessionDir)
	filter := engine.NewActivityFilter(app.cfg.Sync.BlockedActivityTypes)

	uploader := &engine.StravaUploader{
		API:          stravaClient,
		Timeout:      time.Duration(app.cfg.Sync.UploadTimeoutSecs) * time.Second,
		PollInterval: time.Duration(app.cfg.Sync.UploadPollSecs) * time.Second,
	}
	processor := engine.NewProcessor(app.activities, garminClient, uploader, filter)

	gearRules := strava.ParseGearRules(app.cfg.Sync.GearRules)
	var gearAPI strava.GearAPI
	if len(gearRules) > 0 {
		gearAPI = stravaClient
	}

	return engine.NewEngine(engine.EngineOptions{
		Source:     garminClient,
		Processor:  processor,
		Tokens:     app.tokens,
		StravaAuth: stravaClient,
		GearAPI:    gearAPI,
		GearRules:  gearRules,
		Runs:       app.runs,
		Settings:   app.settings,
		FetchLimit: app.cfg.Sync.FetchLimit,
	})
}

// cycleRunner is the engine surface the loop drives.
type cycleRunner interface {
	RunCycle(ctx context.Context) (*domain.SyncRun, error)
}

// runLoop runs cycles continuously, aligned to quarter-hour boundaries. The
// stop channel is consumed only between cycles: an in-flight cycle always
// completes, so no activity upload is ever interrupted by a shutdown signal.
func runLoop(ctx context.Context, stop <-chan struct{}, eng cycleRunner) error {
	logger.Info("Sync loop started, cycles aligned to quarter-hour boundaries")

	for {
		if _, err := eng.RunCycle(ctx); err != nil {
			logger.Error("Cycle aborted: %v", err)
		}

		select {
		case <-stop:
			logger.Info("Shutting down")
			return nil
		default:
		}

		wait := untilNextQuarterHour(time.Now())
		logger.Info("Next cycle in %s", wait.Round(time.Second))
		select {
		case <-time.After(wait):
		case <-stop:
			logger.Info("Shutting down")
			return nil
		}
	}
}

// untilNextQuarterHour returns the duration until the next :00, :15, :30 or
// :45 wall-clock boundary, never zero.
func untilNextQuarterHour(now time.Time) time.Duration {
	next := now.Truncate(15 * time.Minute).Add(15 * time.Minute)
	return next.Sub(now)
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show sync state and totals",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			token, err := app.tokens.Get(ctx)
			if err != nil {
				return err
			}
			if token == nil {
				fmt.Println("Strava: not authorized (run 'garava setup')")
			} else if token.IsExpired(domain.TokenExpiryBuffer) {
				fmt.Println("Strava: authorized (token needs refresh)")
			} else {
				fmt.Println("Strava: authorized")
			}

			last, err := app.runs.GetLast(ctx)
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Println("Last run: never")
			} else {
				state := "running"
				if last.CompletedAt != nil {
					state = "completed " + *last.CompletedAt
				}
				fmt.Printf("Last run: #%d started %s, %s\n", last.ID, last.StartedAt, state)
				fmt.Printf("  checked=%d synced=%d skipped=%d failed=%d\n",
					last.ActivitiesChecked, last.ActivitiesSynced, last.ActivitiesSkipped, last.ActivitiesFailed)
				if last.Error != nil {
					fmt.Printf("  error: %s\n", *last.Error)
				}
			}

			counts, err := app.activities.CountByStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Activities: synced=%d duplicate=%d skipped=%d failed=%d\n",
				counts[domain.StatusSynced], counts[domain.StatusDuplicate],
				counts[domain.StatusSkipped], counts[domain.StatusFailed])

			failed, err := app.activities.GetFailed(ctx)
			if err != nil {
				return err
			}
			for _, act := range failed {
				msg := ""
				if act.ErrorMessage != nil {
					msg = *act.ErrorMessage
				}
				fmt.Printf("  failed %s (%s): %s\n", act.GarminActivityID, act.ActivityType, msg)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recently processed activities",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of activities to show"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			activities, err := app.activities.GetRecent(ctx, c.Int("limit"))
			if err != nil {
				return err
			}
			if len(activities) == 0 {
				fmt.Println("No activities processed yet.")
				return nil
			}

			for _, act := range activities {
				detail := ""
				switch {
				case act.StravaActivityID != nil:
					detail = "strava=" + *act.StravaActivityID
				case act.SkipReason != nil:
					detail = *act.SkipReason
				case act.ErrorMessage != nil:
					detail = *act.ErrorMessage
				}
				fmt.Printf("%-22s %-10s %-20s %-9s %s\n",
					act.ProcessedAt, act.GarminActivityID, act.ActivityType, act.Status, detail)
			}
			return nil
		},
	}
}
