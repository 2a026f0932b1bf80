// Package app assembles the pipeline and scheduler from configuration.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/persona-forge/internal/content"
	"github.com/xaenox/persona-forge/internal/coordinator"
	"github.com/xaenox/persona-forge/internal/image"
	"github.com/xaenox/persona-forge/internal/inference"
	"github.com/xaenox/persona-forge/internal/models"
	"github.com/xaenox/persona-forge/internal/privacy"
	"github.com/xaenox/persona-forge/internal/prompt"
	"github.com/xaenox/persona-forge/internal/scheduler"
	"github.com/xaenox/persona-forge/internal/storage"
	"github.com/xaenox/persona-forge/pkg/config"
	"go.uber.org/zap"
)

const sealPurpose = "post-body"

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       storage.Storage
	Profile     models.UserProfile
	Location    *time.Location
	Coordinator *coordinator.Coordinator
	Scheduler   *scheduler.Scheduler
	Runner      *scheduler.Runner
}

// NewLogger builds a production zap logger at the configured level, or a
// development one when asked.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// New opens the configured store and inference client and wires them.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	client := inference.NewOpenAIClient(inference.Config{
		BaseURL:           cfg.Inference.BaseURL,
		APIKey:            cfg.Inference.APIKey,
		Model:             cfg.Inference.Model,
		RequestsPerSecond: cfg.Inference.RequestsPerSecond,
	}, logger)

	a, err := Build(cfg, logger, store, client)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the components around an already opened store and client.
func Build(cfg *config.Config, logger *zap.Logger, store storage.Storage, client inference.Client) (*App, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	style, err := models.ParseImageStyle(cfg.Image.DefaultStyle)
	if err != nil {
		return nil, err
	}
	policy, err := scheduler.ParseMissedPolicy(cfg.Scheduler.MissedPolicy)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(prompt.Options{
		MaxLength:   cfg.Content.MaxPostLength,
		MaxTokens:   cfg.Inference.MaxTokens,
		Temperature: cfg.Inference.Temperature,
		MaxHashtags: cfg.Content.MaxHashtags,
	}, logger)
	drafter := content.NewAgent(client, store, content.Options{
		MaxLength:       cfg.Content.MaxPostLength,
		MaxHashtags:     cfg.Content.MaxHashtags,
		DefaultHashtags: cfg.Content.DefaultHashtags,
	}, logger)
	composer := image.NewAgent(client, image.Options{
		Width:  cfg.Image.Width,
		Height: cfg.Image.Height,
	}, logger)

	coord := coordinator.New(builder, drafter, composer, store, coordinator.Options{
		PerStageTimeout: cfg.Pipeline.PerStageTimeout(),
		PipelineTimeout: cfg.Pipeline.PipelineTimeout(),
		MaxRetries:      cfg.Pipeline.MaxRetries,
		RetryBackoff:    cfg.Pipeline.RetryBackoff(),
		WorkerLimit:     cfg.Pipeline.WorkerLimit,
		DefaultStyle:    style,
	}, logger)

	profile := ProfileFromConfig(cfg.Profile)
	sched := scheduler.New(coord, store, profile, scheduler.Options{
		Cadence: scheduler.Cadence{
			MiniIntervalDays: cfg.Cadence.MiniIntervalDays,
			MainIntervalDays: cfg.Cadence.MainIntervalDays,
			HorizonDays:      cfg.Cadence.HorizonDays,
		},
		LookaheadDays: cfg.Scheduler.LookaheadDays,
		MissedPolicy:  policy,
		Location:      loc,
		Style:         style,
	}, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Profile:     profile,
		Location:    loc,
		Coordinator: coord,
		Scheduler:   sched,
		Runner:      scheduler.NewRunner(sched, store, logger),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Cadence is the configured cadence as the scheduler sees it.
func (a *App) Cadence() scheduler.Cadence {
	return scheduler.Cadence{
		MiniIntervalDays: a.Config.Cadence.MiniIntervalDays,
		MainIntervalDays: a.Config.Cadence.MainIntervalDays,
		HorizonDays:      a.Config.Cadence.HorizonDays,
	}
}

func ProfileFromConfig(p config.ProfileConfig) models.UserProfile {
	return models.UserProfile{
		Name:            p.Name,
		Industry:        p.Industry,
		ExperienceLevel: p.ExperienceLevel,
		CurrentWork:     p.CurrentWork,
		Skills:          p.Skills,
		Goals:           p.Goals,
		Tone:            p.Tone,
		Cadence:         p.Cadence,
	}.Snapshot()
}

// OpenStore opens the configured backend. Persistent backends get post
// bodies sealed when privacy.encrypt is on; every backend is wrapped so
// writes to one post never overlap.
func OpenStore(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	var (
		store storage.Storage
		err   error
	)
	driver := strings.ToLower(cfg.Database.Driver)
	switch driver {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		store, err = storage.NewSQLiteStorage(cfg.Database.Path, cfg.Database.LockPath, logger)
	case "postgres":
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Database.Host))
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if cfg.Privacy.Encrypt && driver != "memory" {
		key, err := privacy.LoadOrCreateKey(cfg.Privacy.KeyFile)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load encryption key: %w", err)
		}
		box, err := privacy.NewSecretBox(key, sealPurpose)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = storage.NewSealedStore(store, box)
	}
	return storage.NewSerializedStore(store), nil
}
