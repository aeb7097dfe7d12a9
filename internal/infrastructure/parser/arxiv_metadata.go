package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

const arxivBaseURL = "https://arxiv.org"

// ArxivMetadata reads bibliographic data from arXiv abstract pages.
type ArxivMetadata struct {
	client  *http.Client
	baseURL string
}

var _ ports.MetadataSource = (*ArxivMetadata)(nil)

// NewArxivMetadata wires an HTTP client; baseURL defaults to arxiv.org.
func NewArxivMetadata(client *http.Client, baseURL string) *ArxivMetadata {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = arxivBaseURL
	}
	return &ArxivMetadata{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Lookup fetches /abs/<id> and extracts title, authors and abstract.
func (a *ArxivMetadata) Lookup(ctx context.Context, arxivID string) (domain.PaperMetadata, error) {
	id := strings.TrimSpace(strings.TrimPrefix(arxivID, "arXiv:"))
	if id == "" {
		return domain.PaperMetadata{}, fmt.Errorf("empty arxiv id")
	}
	pageURL := a.baseURL + "/abs/" + id

	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.PaperMetadata{}, fmt.Errorf("arxiv %s: %w", id, err)
	}
	meta := parseAbstractPage(doc)
	if meta.Title == "" {
		return domain.PaperMetadata{}, fmt.Errorf("arxiv %s: no title on abstract page", id)
	}
	meta.ArxivID = id
	meta.URL = arxivBaseURL + "/abs/" + id
	return meta, nil
}

func (a *ArxivMetadata) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperPromoter/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// parseAbstractPage prefers the visible page elements and falls back to
// the citation meta tags.
func parseAbstractPage(doc *goquery.Document) domain.PaperMetadata {
	var meta domain.PaperMetadata

	meta.Title = cleanDescriptor(doc.Find("h1.title").First().Text(), "Title:")
	if meta.Title == "" {
		meta.Title = metaContent(doc, "citation_title")
	}

	doc.Find("div.authors a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	})
	if len(meta.Authors) == 0 {
		doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
			if name, ok := s.Attr("content"); ok && strings.TrimSpace(name) != "" {
				meta.Authors = append(meta.Authors, flipName(name))
			}
		})
	}

	meta.Abstract = cleanDescriptor(doc.Find("blockquote.abstract").First().Text(), "Abstract:")
	if meta.Abstract == "" {
		meta.Abstract = metaContent(doc, "citation_abstract")
	}
	return meta
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.Join(strings.Fields(v), " ")
}

func cleanDescriptor(text, descriptor string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, descriptor)
	return strings.Join(strings.Fields(text), " ")
}

// flipName turns "Last, First" into "First Last".
func flipName(name string) string {
	parts := strings.SplitN(name, ",", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
}
