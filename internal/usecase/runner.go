package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/stage"
)

// StageIngest names the fingerprinting step that precedes the stages.
const StageIngest = "ingest"

// Observer receives every state transition of a project. stageName is set
// while the project is running.
type Observer func(projectID string, status domain.ProjectStatus, stageName string)

// Runner drives one project through a resolved stage sequence.
type Runner struct {
	stages   []stage.Stage
	env      stage.Env
	mode     domain.PipelineMode
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner builds a runner for stages, which must be the resolution of mode.
func NewRunner(mode domain.PipelineMode, stages []stage.Stage, env stage.Env, observer Observer) *Runner {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		stages:   stages,
		env:      env,
		mode:     mode,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes every stage in order and stops at the first failure. The
// returned state carries the stage records in both cases.
func (r *Runner) Run(ctx context.Context, project domain.Project) (domain.GenerationState, error) {
	state := domain.NewGenerationState(project, r.mode)
	logger := r.logger.With("project", project.ID)
	r.notify(project.ID, domain.StatusPending, "")

	r.notify(project.ID, domain.StatusRunning, StageIngest)
	fp, err := domain.FingerprintFile(project.PrimaryPDF())
	if err != nil {
		return r.fail(state, StageIngest, r.now(), &domain.StageError{Stage: StageIngest, Err: err})
	}
	state.Fingerprint = fp

	for _, s := range r.stages {
		r.notify(project.ID, domain.StatusRunning, s.Name())
		started := r.now()

		next, err := r.runStage(ctx, s, state)
		if err != nil {
			logger.Warn("stage failed", "stage", s.Name(), "error", err)
			return r.fail(state, s.Name(), started, domain.NewStageError(s.Name(), err))
		}

		next.Stages = append(state.Stages, domain.StageRecord{
			Name:      s.Name(),
			Status:    domain.StageSucceeded,
			StartedAt: started,
			Duration:  r.now().Sub(started),
		})
		state = next
		logger.Debug("stage done", "stage", s.Name())
	}

	if state.Post == nil {
		post, err := stage.AssemblePost(state, r.env.Platform)
		if err != nil {
			return r.fail(state, domain.StagePlatformAdaptation, r.now(), domain.NewStageError(domain.StagePlatformAdaptation, err))
		}
		state.Post = &post
		logger.Info("post assembled without platform adaptation")
	}

	r.notify(project.ID, domain.StatusSucceeded, "")
	return state, nil
}

func (r *Runner) runStage(ctx context.Context, s stage.Stage, state domain.GenerationState) (out domain.GenerationState, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = state
			err = &domain.StageError{Stage: s.Name(), Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return s.Run(ctx, state, r.env)
}

func (r *Runner) fail(state domain.GenerationState, name string, started time.Time, err error) (domain.GenerationState, error) {
	state.Stages = append(state.Stages, domain.StageRecord{
		Name:      name,
		Status:    domain.StageFailed,
		StartedAt: started,
		Duration:  r.now().Sub(started),
		Error:     err.Error(),
	})
	r.notify(state.Project.ID, domain.StatusFailed, name)
	return state, err
}

func (r *Runner) notify(projectID string, status domain.ProjectStatus, stageName string) {
	if r.observer != nil {
		r.observer(projectID, status, stageName)
	}
}
