package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

const (
	defaultMaxPages     = 12
	defaultMinImageSide = 120
	maxSections         = 30
)

// Options tune extraction.
type Options struct {
	// MaxPages limits text extraction to the leading pages. Zero uses the default.
	MaxPages int
	// MinImageSide drops embedded images smaller than this in either dimension.
	MinImageSide int
}

// Extractor reads text, headings and embedded images using tabula.
type Extractor struct {
	maxPages     int
	minImageSide int
	logger       *slog.Logger
}

var _ ports.DocumentExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor.
func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.MinImageSide <= 0 {
		opts.MinImageSide = defaultMinImageSide
	}
	return &Extractor{maxPages: opts.MaxPages, minImageSide: opts.MinImageSide, logger: logger}
}

// ExtractText returns the body text of the leading pages and the detected
// section headings.
func (e *Extractor) ExtractText(ctx context.Context, pdfPath string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	counter := tabula.Open(pdfPath)
	count, err := counter.PageCount()
	_ = counter.Close()
	if err != nil {
		return domain.Document{}, fmt.Errorf("open pdf %s: %w", pdfPath, err)
	}
	if count == 0 {
		return domain.Document{}, fmt.Errorf("pdf %s has no pages", pdfPath)
	}
	last := count
	if last > e.maxPages {
		last = e.maxPages
	}

	text, warnings, err := tabula.Open(pdfPath).
		PageRange(1, last).
		ExcludeHeadersAndFooters().
		JoinParagraphs().
		Text()
	if err != nil {
		return domain.Document{}, fmt.Errorf("extract text %s: %w", pdfPath, err)
	}
	if len(warnings) > 0 {
		e.logger.Debug("pdf text extracted with warnings", "path", pdfPath, "warnings", len(warnings))
	}

	doc := domain.Document{Text: strings.TrimSpace(text), Pages: count}

	headings, err := tabula.Open(pdfPath).PageRange(1, last).Headings()
	if err != nil {
		e.logger.Warn("heading detection failed", "path", pdfPath, "error", err)
		return doc, nil
	}
	titles := make([]string, 0, len(headings))
	for _, h := range headings {
		titles = append(titles, h.Text)
	}
	doc.Sections = sectionTitles(titles)
	return doc, nil
}

// ExtractFigures decodes the image XObjects of every page into PNGs.
func (e *Extractor) ExtractFigures(ctx context.Context, pdfPath string) ([]domain.Figure, error) {
	r, err := reader.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", pdfPath, err)
	}
	defer r.Close()

	count, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("count pages %s: %w", pdfPath, err)
	}

	var figures []domain.Figure
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := r.GetPage(i)
		if err != nil {
			e.logger.Warn("skipping unreadable page", "path", pdfPath, "page", i+1, "error", err)
			continue
		}
		images, err := r.ExtractPageImages(page)
		if err != nil {
			e.logger.Warn("image extraction failed", "path", pdfPath, "page", i+1, "error", err)
			continue
		}
		for _, img := range images {
			if !e.keep(img.Width, img.Height) {
				continue
			}
			data, err := img.ToPNG()
			if err != nil {
				e.logger.Debug("image not decodable", "path", pdfPath, "page", i+1, "image", img.Name, "error", err)
				continue
			}
			figures = append(figures, domain.Figure{
				ID:     figureID(i+1, img.Name),
				Kind:   domain.FigureKindFigure,
				Source: domain.FigureFromPDF,
				Page:   i + 1,
				Width:  img.Width,
				Height: img.Height,
				Data:   data,
			})
		}
	}
	return figures, nil
}

func (e *Extractor) keep(width, height int) bool {
	return width >= e.minImageSide && height >= e.minImageSide
}

func figureID(page int, name string) string {
	name = strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name), "_")
	if name == "" {
		name = "img"
	}
	return fmt.Sprintf("page%d_%s", page, name)
}

// sectionTitles normalises heading text and drops blanks and repeats.
func sectionTitles(headings []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range headings {
		h = strings.Join(strings.Fields(h), " ")
		key := strings.ToLower(h)
		if h == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
		if len(out) == maxSections {
			break
		}
	}
	return out
}
