package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// File names inside a project output directory.
const (
	PostMarkdown   = "post.md"
	PostHTML       = "post.html"
	GenerationJSON = "generation.json"
	SummaryJSON    = "run_summary.json"
)

var figureExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileWriter stores artifacts on the local file system. Each file is
// written to a temporary name and renamed into place.
type FileWriter struct {
	md goldmark.Markdown
}

var _ ports.ArtifactWriter = (*FileWriter)(nil)

// NewFileWriter builds a writer rendering GitHub-flavoured markdown.
func NewFileWriter() *FileWriter {
	return &FileWriter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// WriteProject writes post.md, post.html, generation.json and the featured
// figure under outputDir/<project id>/ and returns that directory.
func (w *FileWriter) WriteProject(ctx context.Context, outputDir string, state domain.GenerationState) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if state.Post == nil {
		return "", fmt.Errorf("project %s has no post", state.Project.ID)
	}

	dir := filepath.Join(outputDir, state.Project.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	markdown := state.Post.Markdown
	if name, data := featuredFigure(state); data != nil {
		if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
			return "", err
		}
		markdown += "\n\n![" + state.Post.FigureID + "](" + name + ")\n"
	}

	if err := writeFileAtomic(filepath.Join(dir, PostMarkdown), []byte(markdown)); err != nil {
		return "", err
	}

	page, err := w.renderHTML(state.Post.Title, markdown)
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, PostHTML), page); err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, GenerationJSON), payload); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteSummary writes outputDir/run_summary.json.
func (w *FileWriter) WriteSummary(ctx context.Context, outputDir string, summary domain.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outputDir, err)
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return writeFileAtomic(filepath.Join(outputDir, SummaryJSON), payload)
}

func (w *FileWriter) renderHTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := w.md.Convert([]byte(markdown), &body); err != nil {
		return nil, err
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	page.WriteString(html.EscapeString(title))
	page.WriteString("</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// featuredFigure returns the file name and bytes of the post's figure when
// its image data is still held in state.
func featuredFigure(state domain.GenerationState) (string, []byte) {
	id := state.Post.FigureID
	if id == "" {
		return "", nil
	}
	for _, f := range state.Figures {
		if f.ID != id || len(f.Data) == 0 {
			continue
		}
		ext, ok := figureExt[http.DetectContentType(f.Data)]
		if !ok {
			return "", nil
		}
		return "figure" + ext, f.Data
	}
	return "", nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
