// Package webfetch retrieves web pages and extracts their readable text
// so users can pull page content into a council query.
package webfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const (
	fetchTimeout = 30 * time.Second

	// maxContentLength caps extracted text; fetched pages end up inside
	// model prompts and must not blow the context window.
	maxContentLength = 50000

	maxRetries = 2
	retryDelay = 2 * time.Second
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Fetcher downloads pages and extracts readable text, with a TTL cache in
// front of the network.
type Fetcher struct {
	http  *http.Client
	cache *Cache
	log   zerolog.Logger
}

// NewFetcher creates a Fetcher whose results are cached for cacheTTL.
func NewFetcher(cacheTTL time.Duration, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		http:  &http.Client{Timeout: fetchTimeout},
		cache: NewCache(cacheTTL),
		log:   logger.With().Str("component", "webfetch").Logger(),
	}
}

// Fetch returns the readable text of the page at rawURL, serving repeat
// requests from cache.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid URL %q: only http and https are supported", rawURL)
	}

	if content, ok := f.cache.Get(rawURL); ok {
		f.log.Debug().Str("url", rawURL).Msg("serving fetched content from cache")
		return content, nil
	}

	doc, err := f.fetchDocument(ctx, rawURL)
	if err != nil {
		return "", err
	}

	content := extractReadableText(doc)
	if content == "" {
		return "", fmt.Errorf("no readable content found at %s", rawURL)
	}

	f.cache.Set(rawURL, content)
	return content, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var resp *http.Response
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = f.http.Do(req)
		if err == nil {
			break
		}
		if attempt < maxRetries-1 {
			f.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("fetch failed, retrying")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", rawURL, maxRetries, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// extractReadableText strips page chrome and collapses the remaining text.
// The document title, when present, leads the output.
func extractReadableText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, iframe, nav, header, footer, aside").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(text)

	content := b.String()
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}
	return strings.TrimSpace(content)
}
