package app

import (
	"context"
	"fmt"
	"log/slog"

	"PaperPromoter/internal/config"
	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/gateway"
	"PaperPromoter/internal/infrastructure/imaging"
	"PaperPromoter/internal/infrastructure/llm"
	"PaperPromoter/internal/infrastructure/output"
	"PaperPromoter/internal/infrastructure/parser"
	"PaperPromoter/internal/infrastructure/pdf"
	"PaperPromoter/internal/infrastructure/storage"
	"PaperPromoter/internal/infrastructure/telegram"
	"PaperPromoter/internal/logging"
	"PaperPromoter/internal/stage"
	"PaperPromoter/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	mode         domain.PipelineMode
	orchestrator *usecase.Orchestrator
	ledger       *storage.PostgresLedger
}

// New builds the runnable application. cfg must already be validated.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	platform, err := stage.LookupPlatform(cfg.Run.Platform)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "platform", Err: err}
	}
	images, err := imaging.NewPreprocessor(cfg.Images.Quality)
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "image quality", Err: err}
	}

	client, err := llm.NewOpenAIClient(llm.Settings{
		APIKey:      cfg.Models.APIKey,
		BaseURL:     cfg.Models.BaseURL,
		TextModel:   cfg.Models.TextModel,
		VisionModel: cfg.Models.VisionModel,
	})
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "model client", Err: err}
	}
	gw := gateway.New(client, client, gateway.Settings{
		MaxRetries:  cfg.Models.MaxRetries,
		BaseDelay:   cfg.Models.BaseDelay,
		MaxDelay:    cfg.Models.MaxDelay,
		CallTimeout: cfg.Models.CallTimeout,
	}, baseLogger.With("component", "gateway"))

	a := &Application{cfg: cfg, mode: mode}

	deps := usecase.OrchestratorDeps{
		Registry:   stage.DefaultRegistry(),
		Gateway:    gw,
		Documents:  pdf.NewExtractor(pdf.Options{MaxPages: cfg.Images.MaxPages}, baseLogger.With("component", "pdf")),
		Images:     images,
		Metadata:   parser.NewArxivMetadata(nil, ""),
		Writer:     output.NewFileWriter(),
		Platform:   platform,
		MaxFigures: cfg.Images.MaxFigures,
		Observer:   transitionLogger(baseLogger.With("component", "runner")),
		Logger:     baseLogger,
	}

	if cfg.Database.DSN != "" {
		ledger, err := storage.OpenPostgresLedger(ctx, cfg.Database.DSN)
		if err != nil {
			if cfg.Run.SkipSucceeded {
				return nil, &domain.ConfigurationError{Reason: "run ledger required by --skip-succeeded", Err: err}
			}
			baseLogger.Warn("run ledger unavailable", "error", err)
		} else {
			a.ledger = ledger
			deps.Ledger = ledger
		}
	} else if cfg.Run.SkipSucceeded {
		baseLogger.Warn("--skip-succeeded has no effect without a database DSN")
	}

	if cfg.Notifications.Telegram.BotToken != "" {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.orchestrator = usecase.NewOrchestrator(deps)
	return a, nil
}

// Run executes one batch.
func (a *Application) Run(ctx context.Context) (domain.RunSummary, error) {
	if a.orchestrator == nil {
		return domain.RunSummary{}, fmt.Errorf("application not initialised")
	}
	return a.orchestrator.Run(ctx, usecase.RunRequest{
		InputDir:      a.cfg.Run.InputDir,
		OutputDir:     a.cfg.Run.OutputDir,
		CacheDir:      a.cfg.Run.CacheDir,
		Concurrency:   a.cfg.Run.Concurrency,
		Mode:          a.mode,
		SkipSucceeded: a.cfg.Run.SkipSucceeded,
	})
}

// Close releases the ledger connection.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

func transitionLogger(logger *slog.Logger) usecase.Observer {
	return func(projectID string, status domain.ProjectStatus, stageName string) {
		logger.Debug("project transition", "project", projectID, "status", status, "stage", stageName)
	}
}
