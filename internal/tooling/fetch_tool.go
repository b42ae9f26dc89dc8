package tooling

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"agentloop/internal/domain"
)

// maxResponseSize limits the HTTP response body read by HTTPFetcher.
const maxResponseSize = 10 * 1024 * 1024

// maxPageChars caps the page text returned to the model.
const maxPageChars = 8000

// PageFetcher retrieves the raw body at a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchPageInput is the argument struct for fetch_page.
type FetchPageInput struct {
	URL string `json:"url" jsonschema:"minLength=1,description=Endereço http(s) da página"`
}

// Page is the structured result of fetch_page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Injectable for tests.
var (
	readabilityFunc = func(input io.Reader, pageURL *url.URL) (readability.Article, error) {
		return readability.FromReader(input, pageURL)
	}
	readAllFunc = io.ReadAll
)

// NewFetchPage returns the fetch_page executable: fetch, drop scripts and
// styles, then keep the main article text (or all visible text when no
// article is found).
func NewFetchPage(fetcher PageFetcher) Executable {
	if fetcher == nil {
		panic("tooling: nil page fetcher")
	}
	return func(ctx context.Context, args domain.Args) (any, error) {
		raw, err := args.String("url")
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(raw)
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			return nil, fmt.Errorf("invalid URL: must start with http:// or https://")
		}
		body, err := fetcher.Fetch(ctx, raw)
		if err != nil {
			return nil, err
		}
		page, err := extractPage(body, raw)
		if err != nil {
			return nil, err
		}
		if r := []rune(page.Content); len(r) > maxPageChars {
			page.Content = string(r[:maxPageChars])
			page.Truncated = true
		}
		return page, nil
	}
}

// extractPage strips non-content tags and extracts readable text.
func extractPage(rawHTML []byte, sourceURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	page := Page{URL: sourceURL, Title: strings.TrimSpace(doc.Find("title").First().Text())}

	cleaned, err := doc.Html()
	if err != nil {
		return Page{}, fmt.Errorf("failed to render HTML: %w", err)
	}
	if u, err := url.Parse(sourceURL); err == nil {
		if article, err := readabilityFunc(strings.NewReader(cleaned), u); err == nil && strings.TrimSpace(article.TextContent) != "" {
			if article.Title != "" {
				page.Title = article.Title
			}
			page.Content = collapseSpace(article.TextContent)
			return page, nil
		}
	}

	text := collapseSpace(doc.Text())
	if text == "" {
		return Page{}, fmt.Errorf("no content found at URL")
	}
	page.Content = text
	return page, nil
}

// collapseSpace joins the non-blank lines of s, trimmed.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// HTTPFetcher implements PageFetcher with net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a 30 second client timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// StatusError is returned by HTTPFetcher for non-200 responses. The retry
// policy reads StatusCode to retry 429 and 5xx.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status) }

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int { return e.Code }

// Fetch GETs fetchURL. Non-200 responses return a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentloop/1.0 (fetch_page)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := readAllFunc(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
