package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// writeOnePagePDF writes a minimal text-only PDF with a valid xref table.
func writeOnePagePDF(t *testing.T, text string) string {
	t.Helper()

	content := fmt.Sprintf("BT /F1 24 Tf 72 400 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestExtractFromOnePagePDF(t *testing.T) {
	t.Parallel()

	path := writeOnePagePDF(t, "Hello World Paper")
	e := NewExtractor(Options{}, nil)

	doc, err := e.ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(doc.Text, "Hello World Paper") || doc.Pages != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}

	figures, err := e.ExtractFigures(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFigures: %v", err)
	}
	if len(figures) != 0 {
		t.Fatalf("text-only page must yield no figures, got %d", len(figures))
	}
}

func TestExtractTextFailsForMissingFile(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Options{}, nil)
	if _, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := e.ExtractFigures(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestExtractTextFailsForNonPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewExtractor(Options{}, nil).ExtractText(context.Background(), path); err == nil {
		t.Fatalf("expected error for non-pdf content")
	}
}

func TestExtractTextHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor(Options{}, nil).ExtractText(ctx, "any.pdf"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSectionTitles(t *testing.T) {
	t.Parallel()

	got := sectionTitles([]string{"1  Introduction", "", "  ", "1 Introduction", "2 Method\n", "Results"})
	want := []string{"1 Introduction", "2 Method", "Results"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestFigureIDAndSizeFilter(t *testing.T) {
	t.Parallel()

	if id := figureID(3, "/Im1"); id != "page3_Im1" {
		t.Fatalf("unexpected id %s", id)
	}
	if id := figureID(1, ""); id != "page1_img" {
		t.Fatalf("unexpected id %s", id)
	}

	e := NewExtractor(Options{MinImageSide: 100}, nil)
	if e.keep(99, 500) || !e.keep(100, 100) {
		t.Fatalf("unexpected size filter")
	}
	if e.maxPages != defaultMaxPages {
		t.Fatalf("expected default max pages, got %d", e.maxPages)
	}
}
