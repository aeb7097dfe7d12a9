package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Project is one paper folder discovered under the input directory.
type Project struct {
	ID          string
	Dir         string
	PDFPaths    []string
	FigurePaths []string
}

// PrimaryPDF returns the PDF that drives text and figure extraction.
func (p Project) PrimaryPDF() string {
	if len(p.PDFPaths) == 0 {
		return ""
	}
	return p.PDFPaths[0]
}

// PaperMetadata is bibliographic data looked up for a paper (e.g., from arXiv).
type PaperMetadata struct {
	ArxivID  string   `json:"arxiv_id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"url"`
}

// Document is the text extracted from a project's primary PDF.
type Document struct {
	Text     string   `json:"text"`
	Sections []string `json:"sections,omitempty"`
	Pages    int      `json:"pages"`
}

// Empty reports whether extraction produced no usable text.
func (d Document) Empty() bool {
	for _, r := range d.Text {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}

// FigureKind distinguishes figures from tables.
type FigureKind string

const (
	FigureKindFigure FigureKind = "figure"
	FigureKindTable  FigureKind = "table"
)

// FigureSource tells where a figure came from.
type FigureSource string

const (
	FigureFromPDF      FigureSource = "pdf"
	FigureFromSupplied FigureSource = "supplied"
)

// Figure is a candidate image for visual analysis. Data holds the encoded
// image bytes; CaptionData optionally holds a separately cropped caption.
type Figure struct {
	ID          string       `json:"id"`
	Kind        FigureKind   `json:"kind"`
	Source      FigureSource `json:"source"`
	Page        int          `json:"page,omitempty"`
	Path        string       `json:"path,omitempty"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	Data        []byte       `json:"data,omitempty"`
	CaptionData []byte       `json:"caption_data,omitempty"`
	// CaptionAbove places the caption over the figure when the two are combined.
	CaptionAbove bool `json:"caption_above,omitempty"`
}

// Fingerprint returns the hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile streams path through SHA-256.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
