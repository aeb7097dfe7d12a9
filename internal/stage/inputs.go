package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"PaperPromoter/internal/domain"
)

var arxivIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)

// ArxivID extracts an arXiv identifier from a PDF file name, if it has one.
func ArxivID(pdfPath string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	m := arxivIDPattern.FindStringSubmatch(stem)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func fingerprint(state domain.GenerationState) (string, error) {
	if state.Fingerprint != "" {
		return state.Fingerprint, nil
	}
	pdf := state.Project.PrimaryPDF()
	if pdf == "" {
		return "", errors.New("project has no pdf")
	}
	return domain.FingerprintFile(pdf)
}

// loadDocument returns the extracted text, going through the cache so the
// PDF is parsed once per content fingerprint.
func loadDocument(ctx context.Context, state domain.GenerationState, env Env) (domain.Document, error) {
	if state.Document != nil {
		return *state.Document, nil
	}
	fp, err := fingerprint(state)
	if err != nil {
		return domain.Document{}, err
	}
	key := domain.CacheKey{ProjectID: state.Project.ID, Fingerprint: fp, Kind: domain.AssetDocument}
	doc, err := cachedJSON(ctx, env, key, func(ctx context.Context) (domain.Document, error) {
		return env.Documents.ExtractText(ctx, state.Project.PrimaryPDF())
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("extract text: %w", err)
	}
	if doc.Empty() {
		return domain.Document{}, errors.New("no text could be extracted from the pdf")
	}
	return doc, nil
}

// withDocument loads the document and metadata into state.
func withDocument(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	doc, err := loadDocument(ctx, state, env)
	if err != nil {
		return state, err
	}
	state.Document = &doc
	if state.Metadata == nil {
		state.Metadata = lookupMetadata(ctx, state, env)
	}
	return state, nil
}

// lookupMetadata is best effort: failures are logged and yield nil.
func lookupMetadata(ctx context.Context, state domain.GenerationState, env Env) *domain.PaperMetadata {
	if env.Metadata == nil {
		return nil
	}
	id, ok := ArxivID(state.Project.PrimaryPDF())
	if !ok {
		return nil
	}
	key := domain.CacheKey{ProjectID: state.Project.ID, Fingerprint: id, Kind: domain.AssetArxivMeta}
	meta, err := cachedJSON(ctx, env, key, func(ctx context.Context) (domain.PaperMetadata, error) {
		return env.Metadata.Lookup(ctx, id)
	})
	if err != nil {
		env.logger().Warn("arxiv metadata lookup failed", "project", state.Project.ID, "arxiv_id", id, "error", err)
		return nil
	}
	return &meta
}

// loadFigures returns the candidate figures of a project. Supplied figure
// files take priority over images embedded in the PDF.
func loadFigures(ctx context.Context, state domain.GenerationState, env Env) ([]domain.Figure, error) {
	if len(state.Project.FigurePaths) > 0 {
		pairs := PairFigureFiles(state.Project.Dir, state.Project.FigurePaths, DefaultPairThreshold)
		return LoadFigurePairs(pairs)
	}

	fp, err := fingerprint(state)
	if err != nil {
		return nil, err
	}
	key := domain.CacheKey{ProjectID: state.Project.ID, Fingerprint: fp, Kind: domain.AssetFigures}
	figures, err := cachedJSON(ctx, env, key, func(ctx context.Context) ([]domain.Figure, error) {
		figures, err := env.Documents.ExtractFigures(ctx, state.Project.PrimaryPDF())
		if figures == nil && err == nil {
			figures = []domain.Figure{}
		}
		return figures, err
	})
	if err != nil {
		return nil, fmt.Errorf("extract figures: %w", err)
	}
	return figures, nil
}

// cachedJSON returns the value stored under key, computing and encoding it
// on a miss. An entry that no longer decodes is dropped and computed again
// once.
func cachedJSON[T any](ctx context.Context, env Env, key domain.CacheKey, compute func(context.Context) (T, error)) (T, error) {
	fetch := func() (T, error) {
		var v T
		payload, err := env.Cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
			v, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		})
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(payload, &v); err != nil {
			return v, &decodeError{kind: key.Kind, err: err}
		}
		return v, nil
	}

	v, err := fetch()
	var decErr *decodeError
	if !errors.As(err, &decErr) {
		return v, err
	}
	env.logger().Warn("dropping undecodable cache entry", "key", key.String(), "error", err)
	if err := env.Cache.Invalidate(key); err != nil {
		return v, fmt.Errorf("invalidate %s: %w", key.String(), err)
	}
	return fetch()
}

type decodeError struct {
	kind string
	err  error
}

func (e *decodeError) Error() string { return fmt.Sprintf("decode cached %s: %v", e.kind, e.err) }

func (e *decodeError) Unwrap() error { return e.err }

// prepareFigure returns the vision-ready image for fig, cached per figure
// content and quality preset.
func prepareFigure(ctx context.Context, state domain.GenerationState, env Env, fig domain.Figure) (domain.Image, error) {
	if len(fig.Data) == 0 {
		return domain.Image{}, fmt.Errorf("figure %s has no image data", fig.ID)
	}
	if env.Images == nil {
		return domain.Image{MIME: http.DetectContentType(fig.Data), Data: fig.Data}, nil
	}

	fp := domain.Fingerprint(append(append([]byte(nil), fig.Data...), fig.CaptionData...)) + "-" + env.Images.Quality()
	key := domain.CacheKey{ProjectID: state.Project.ID, Fingerprint: fp, Kind: domain.AssetFigureImage}
	payload, err := env.Cache.GetOrCompute(ctx, key, func(context.Context) ([]byte, error) {
		raw := fig.Data
		if len(fig.CaptionData) > 0 {
			combined, err := env.Images.Combine(fig.Data, fig.CaptionData, fig.CaptionAbove)
			if err != nil {
				return nil, err
			}
			raw = combined
		}
		img, err := env.Images.Prepare(raw)
		if err != nil {
			return nil, err
		}
		return img.Data, nil
	})
	if err != nil {
		return domain.Image{}, fmt.Errorf("prepare figure %s: %w", fig.ID, err)
	}
	return domain.Image{MIME: http.DetectContentType(payload), Data: payload}, nil
}
