package stage

import (
	"context"
	"fmt"

	"PaperPromoter/internal/domain"
)

// PlatformAdaptation writes the final post from the draft and figure notes.
// Without a draft it falls back to the paper text.
type PlatformAdaptation struct{}

func (PlatformAdaptation) Name() string { return domain.StagePlatformAdaptation }

func (s PlatformAdaptation) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	if state.Draft == nil {
		var err error
		if state, err = withDocument(ctx, state, env); err != nil {
			return state, domain.NewStageError(s.Name(), err)
		}
	}

	p := env.platform()
	raw, err := env.Gateway.GenerateText(ctx, adaptationPrompt(state, p), domain.CallOptions{Temperature: 0.7, MaxTokens: 1500})
	if err != nil {
		return state, domain.NewStageError(s.Name(), fmt.Errorf("generate post: %w", err))
	}
	post, err := ParsePost(raw, p)
	if err != nil {
		return state, domain.NewStageError(s.Name(), err)
	}
	if post.Title == "" && state.Draft != nil {
		post.Title = state.Draft.Title
	}
	if len(state.VisualNotes) > 0 {
		post.FigureID = state.VisualNotes[0].FigureID
	}

	state.Post = &post
	return state, nil
}
