// Package stage holds the generation steps a project runner executes and
// the registry that maps pipeline modes onto them.
package stage

import (
	"context"
	"log/slog"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// DefaultMaxFigures bounds how many figures are sent to the vision model.
const DefaultMaxFigures = 4

// Env is what a stage may touch besides the state it is given. Metadata
// is optional; everything else is required.
type Env struct {
	Gateway    ports.ModelGateway
	Cache      ports.AssetCache
	Documents  ports.DocumentExtractor
	Images     ports.ImagePreparer
	Metadata   ports.MetadataSource
	Platform   Platform
	MaxFigures int
	Logger     *slog.Logger
}

// Stage transforms a generation state. Implementations overwrite only the
// fields they own so re-running one on an unchanged state is safe.
type Stage interface {
	Name() string
	Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error)
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e Env) maxFigures() int {
	if e.MaxFigures <= 0 {
		return DefaultMaxFigures
	}
	return e.MaxFigures
}

func (e Env) platform() Platform {
	if e.Platform.Name == "" {
		return Twitter
	}
	return e.Platform
}
