package ports

import (
	"context"

	"PaperPromoter/internal/domain"
)

// TextModel is the raw transport to a text-generation model.
type TextModel interface {
	Complete(ctx context.Context, prompt domain.Prompt, opts domain.CallOptions) (string, error)
	TextModelName() string
}

// VisionModel is the raw transport to an image-understanding model.
type VisionModel interface {
	Describe(ctx context.Context, img domain.Image, prompt domain.Prompt, opts domain.CallOptions) (string, error)
	VisionModelName() string
}

// ModelGateway is what stages call: retries, timeouts and error
// classification live behind it.
type ModelGateway interface {
	GenerateText(ctx context.Context, prompt domain.Prompt, opts domain.CallOptions) (string, error)
	AnalyzeImage(ctx context.Context, img domain.Image, prompt domain.Prompt, opts domain.CallOptions) (string, error)
}

// AssetCache memoises derived assets by content identity.
type AssetCache interface {
	GetOrCompute(ctx context.Context, key domain.CacheKey, compute func(context.Context) ([]byte, error)) ([]byte, error)
	// Invalidate drops a stored payload so the next lookup recomputes it.
	Invalidate(key domain.CacheKey) error
}

// DocumentExtractor reads text and embedded figures out of a PDF.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (domain.Document, error)
	ExtractFigures(ctx context.Context, pdfPath string) ([]domain.Figure, error)
}

// ImagePreparer normalises raw figure bytes for the vision model.
type ImagePreparer interface {
	Prepare(data []byte) (domain.Image, error)
	// Combine stacks a figure and its caption into one image.
	Combine(figure, caption []byte, captionAbove bool) ([]byte, error)
	Quality() string
}

// MetadataSource looks up bibliographic data for a paper identifier.
type MetadataSource interface {
	Lookup(ctx context.Context, arxivID string) (domain.PaperMetadata, error)
}

// ArtifactWriter persists a finished project and the run summary.
type ArtifactWriter interface {
	WriteProject(ctx context.Context, outputDir string, state domain.GenerationState) (string, error)
	WriteSummary(ctx context.Context, outputDir string, summary domain.RunSummary) error
}

// ResultLedger persists project outcomes across runs for re-run selection.
type ResultLedger interface {
	AlreadySucceeded(ctx context.Context, mode string, ids []string) (map[string]bool, error)
	SaveResult(ctx context.Context, runID, mode string, result domain.RunResult) error
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, text string) error
}
