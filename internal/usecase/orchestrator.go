package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"PaperPromoter/internal/cache"
	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
	"PaperPromoter/internal/stage"
)

// RunRequest describes one batch run.
type RunRequest struct {
	InputDir      string
	OutputDir     string
	CacheDir      string
	Concurrency   int
	Mode          domain.PipelineMode
	SkipSucceeded bool
}

// OrchestratorDeps wires the driven adapters into the orchestrator. Ledger,
// Notifier, Metadata and Observer are optional. Cache overrides the cache
// opened from RunRequest.CacheDir.
type OrchestratorDeps struct {
	Registry   *stage.Registry
	Gateway    ports.ModelGateway
	Documents  ports.DocumentExtractor
	Images     ports.ImagePreparer
	Metadata   ports.MetadataSource
	Writer     ports.ArtifactWriter
	Ledger     ports.ResultLedger
	Notifier   ports.Notifier
	Cache      ports.AssetCache
	Platform   stage.Platform
	MaxFigures int
	Observer   Observer
	Logger     *slog.Logger
}

// Orchestrator runs every discovered project with bounded concurrency and
// isolates per-project failures.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = stage.DefaultRegistry()
	}
	return &Orchestrator{deps: deps, logger: logger.With("component", "orchestrator"), now: time.Now}
}

// Run processes the batch. Per-project failures end up in the summary;
// only configuration problems are returned as errors.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (domain.RunSummary, error) {
	if err := o.validate(req); err != nil {
		return domain.RunSummary{}, err
	}
	stages, err := o.deps.Registry.Resolve(req.Mode)
	if err != nil {
		return domain.RunSummary{}, err
	}
	projects, skips, err := DiscoverProjects(req.InputDir, o.logger)
	if err != nil {
		return domain.RunSummary{}, err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return domain.RunSummary{}, &domain.ConfigurationError{Reason: "create output directory " + req.OutputDir, Err: err}
	}

	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		Mode:      req.Mode.String(),
		StartedAt: o.now(),
	}
	logger := o.logger.With("run_id", summary.RunID, "mode", summary.Mode)
	for _, s := range skips {
		summary.Record(s)
	}

	projects, done := o.skipSucceeded(ctx, req, projects, logger)
	for _, s := range done {
		summary.Record(s)
	}

	assets := o.deps.Cache
	if assets == nil {
		assets = cache.Open(req.CacheDir, logger.With("component", "cache"))
	}
	runner := NewRunner(req.Mode, stages, stage.Env{
		Gateway:    o.deps.Gateway,
		Cache:      assets,
		Documents:  o.deps.Documents,
		Images:     o.deps.Images,
		Metadata:   o.deps.Metadata,
		Platform:   o.deps.Platform,
		MaxFigures: o.deps.MaxFigures,
		Logger:     logger.With("component", "stage"),
	}, o.deps.Observer)

	logger.Info("run started", "projects", len(projects), "skipped", len(summary.Results), "concurrency", req.Concurrency)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(req.Concurrency)
	runID, modeName := summary.RunID, summary.Mode
	for _, project := range projects {
		project := project
		g.Go(func() error {
			result := o.runProject(ctx, runner, req, project, logger)

			mu.Lock()
			summary.Record(result)
			mu.Unlock()

			o.saveResult(ctx, runID, modeName, result, logger)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = o.now()
	if err := o.deps.Writer.WriteSummary(ctx, req.OutputDir, summary); err != nil {
		logger.Warn("write run summary", "error", err)
	}
	o.publish(ctx, summary, logger)

	logger.Info("run finished",
		"total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed,
		"skipped", summary.Skipped, "took", summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

func (o *Orchestrator) validate(req RunRequest) error {
	switch {
	case req.InputDir == "":
		return &domain.ConfigurationError{Reason: "input directory is required"}
	case req.OutputDir == "":
		return &domain.ConfigurationError{Reason: "output directory is required"}
	case req.Concurrency < 1:
		return &domain.ConfigurationError{Reason: fmt.Sprintf("concurrency must be at least 1, got %d", req.Concurrency)}
	case o.deps.Gateway == nil:
		return &domain.ConfigurationError{Reason: "model gateway is not configured"}
	case o.deps.Documents == nil:
		return &domain.ConfigurationError{Reason: "document extractor is not configured"}
	case o.deps.Writer == nil:
		return &domain.ConfigurationError{Reason: "artifact writer is not configured"}
	}
	return nil
}

func (o *Orchestrator) runProject(ctx context.Context, runner *Runner, req RunRequest, project domain.Project, logger *slog.Logger) domain.RunResult {
	started := o.now()
	logger = logger.With("project", project.ID)
	logger.Info("project started")

	state, err := runner.Run(ctx, project)
	if err != nil {
		logger.Error("project failed", "kind", domain.KindOf(err), "error", err)
		return domain.Failed(project.ID, err, o.now().Sub(started))
	}

	path, err := o.deps.Writer.WriteProject(ctx, req.OutputDir, state)
	if err != nil {
		err = fmt.Errorf("write artifacts: %w", err)
		logger.Error("project failed", "kind", domain.KindOf(err), "error", err)
		return domain.Failed(project.ID, err, o.now().Sub(started))
	}

	took := o.now().Sub(started)
	logger.Info("project succeeded", "output", path, "took", took)
	return domain.Succeeded(project.ID, path, took)
}

// skipSucceeded drops projects the ledger already holds a success for in
// this mode. Ledger errors disable skipping.
func (o *Orchestrator) skipSucceeded(ctx context.Context, req RunRequest, projects []domain.Project, logger *slog.Logger) ([]domain.Project, []domain.RunResult) {
	if !req.SkipSucceeded || o.deps.Ledger == nil || len(projects) == 0 {
		return projects, nil
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	done, err := o.deps.Ledger.AlreadySucceeded(ctx, req.Mode.String(), ids)
	if err != nil {
		logger.Warn("load ledger, running every project", "error", err)
		return projects, nil
	}

	var (
		keep    []domain.Project
		skipped []domain.RunResult
	)
	for _, p := range projects {
		if done[p.ID] {
			skipped = append(skipped, domain.Skipped(p.ID, "already succeeded in mode "+req.Mode.String()))
			continue
		}
		keep = append(keep, p)
	}
	return keep, skipped
}

func (o *Orchestrator) saveResult(ctx context.Context, runID, mode string, result domain.RunResult, logger *slog.Logger) {
	if o.deps.Ledger == nil {
		return
	}
	if err := o.deps.Ledger.SaveResult(ctx, runID, mode, result); err != nil {
		logger.Warn("persist result", "project", result.ProjectID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, summary domain.RunSummary, logger *slog.Logger) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.PublishSummary(ctx, buildSummaryMessage(summary)); err != nil {
		logger.Warn("publish summary", "error", err)
	}
}

func buildSummaryMessage(s domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", s.RunID, s.Mode)
	fmt.Fprintf(&b, "Succeeded: %d, failed: %d, skipped: %d\n", s.Succeeded, s.Failed, s.Skipped)
	for _, f := range s.Failures() {
		fmt.Fprintf(&b, "- %s [%s] %s\n", f.ProjectID, f.ErrorKind, f.Message)
	}
	return b.String()
}
