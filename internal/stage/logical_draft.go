package stage

import (
	"context"
	"fmt"

	"PaperPromoter/internal/domain"
)

// LogicalDraft turns the paper text into a structured outline.
type LogicalDraft struct{}

func (LogicalDraft) Name() string { return domain.StageLogicalDraft }

func (s LogicalDraft) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	state, err := withDocument(ctx, state, env)
	if err != nil {
		return state, domain.NewStageError(s.Name(), err)
	}

	raw, err := env.Gateway.GenerateText(ctx, draftPrompt(state), domain.CallOptions{Temperature: 0.2, MaxTokens: 1200})
	if err != nil {
		return state, domain.NewStageError(s.Name(), fmt.Errorf("generate draft: %w", err))
	}
	draft, err := ParseDraft(raw)
	if err != nil {
		return state, domain.NewStageError(s.Name(), err)
	}

	state.Draft = &draft
	env.logger().Debug("draft ready", "project", state.Project.ID, "claims", len(draft.Claims), "findings", len(draft.KeyFindings))
	return state, nil
}
