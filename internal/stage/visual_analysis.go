package stage

import (
	"context"
	"fmt"

	"PaperPromoter/internal/domain"
)

// VisualAnalysis asks the vision model about the project's leading figures.
// A paper without figures yields no notes; a model failure fails the stage.
type VisualAnalysis struct{}

func (VisualAnalysis) Name() string { return domain.StageVisualAnalysis }

func (s VisualAnalysis) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	logger := env.logger().With("project", state.Project.ID)

	figures, err := loadFigures(ctx, state, env)
	if err != nil {
		return state, domain.NewStageError(s.Name(), err)
	}
	if len(figures) > env.maxFigures() {
		figures = figures[:env.maxFigures()]
	}
	state.Figures = figures
	if len(figures) == 0 {
		logger.Warn("no figures found, continuing without visual notes")
		state.VisualNotes = nil
		return state, nil
	}

	notes := make([]domain.VisualNote, 0, len(figures))
	for _, fig := range figures {
		img, err := prepareFigure(ctx, state, env, fig)
		if err != nil {
			logger.Warn("skipping figure", "figure", fig.ID, "error", err)
			continue
		}
		analysis, err := env.Gateway.AnalyzeImage(ctx, img, visionPrompt(state, fig), domain.CallOptions{MaxTokens: 400})
		if err != nil {
			return state, domain.NewStageError(s.Name(), fmt.Errorf("analyze %s: %w", fig.ID, err))
		}
		notes = append(notes, domain.VisualNote{FigureID: fig.ID, Kind: fig.Kind, Page: fig.Page, Analysis: analysis})
	}

	state.VisualNotes = notes
	logger.Debug("visual analysis done", "figures", len(figures), "notes", len(notes))
	return state, nil
}
