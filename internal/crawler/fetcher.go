package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"
)

// Page is a fetched and processed web page.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Title       string
	Text        string
	Links       []string
}

// Fetcher retrieves and processes a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcherConfig tunes the production fetcher.
type HTTPFetcherConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	MaxBodyBytes int64
}

// HTTPFetcher fetches pages over HTTP with robots.txt enforcement, bounded
// response sizes, and capped retries for transient failures. robots.txt
// verdicts are cached per host for the fetcher's lifetime.
type HTTPFetcher struct {
	client *http.Client
	cfg    HTTPFetcherConfig
	logger *slog.Logger

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// NewHTTPFetcher creates a fetcher. Zero config fields get conservative
// defaults.
func NewHTTPFetcher(cfg HTTPFetcherConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mnemo/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
		robots: make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch retrieves rawURL and returns its main text content and outgoing
// links. Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff up to the configured cap; 4xx statuses, robots
// denials and non-text bodies fail immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedContent, u.Scheme)
	}

	allowed, err := f.robotsAllow(ctx, u)
	if err != nil {
		f.logger.Debug("robots.txt unavailable, proceeding", "host", u.Host, "error", err)
	} else if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}

	var page *Page
	op := func() error {
		var ferr error
		page, ferr = f.fetchOnce(ctx, rawURL)
		return ferr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	err = backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(f.cfg.MaxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &HTTPStatusError{Code: resp.StatusCode}
		if serr.Retryable() {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextual(contentType) {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	finalURL := resp.Request.URL
	page := &Page{
		URL:         finalURL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}

	if strings.Contains(contentType, "text/plain") {
		page.Text = strings.TrimSpace(string(body))
		return page, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing html: %w", err))
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	page.Links = extractLinks(doc, finalURL)
	page.Text = extractText(body, finalURL, doc)
	return page, nil
}

// robotsAllow checks the host's robots.txt, fetching and caching it on
// first use.
func (f *HTTPFetcher) robotsAllow(ctx context.Context, u *url.URL) (bool, error) {
	host := u.Scheme + "://" + u.Host

	f.robotsMu.Lock()
	data, ok := f.robots[host]
	f.robotsMu.Unlock()

	if !ok {
		var err error
		data, err = f.fetchRobots(ctx, host)
		if err != nil {
			return true, err
		}
		f.robotsMu.Lock()
		f.robots[host] = data
		f.robotsMu.Unlock()
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.FindGroup(f.cfg.UserAgent).Test(path), nil
}

func (f *HTTPFetcher) fetchRobots(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, err
	}
	// FromStatusAndBytes applies the protocol's status semantics: 404
	// allows everything, 5xx disallows everything.
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

func isTextual(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml") ||
		strings.Contains(contentType, "text/plain")
}

// extractLinks returns absolute, deduplicated http(s) links with fragments
// stripped, in document order.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		s := abs.String()
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		links = append(links, s)
	})
	return links
}

// extractText pulls the page's main content via readability, falling back
// to stripping boilerplate tags when readability finds no article.
func extractText(body []byte, pageURL *url.URL, doc *goquery.Document) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}

	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()
	text := doc.Find("body").Text()
	return strings.Join(strings.Fields(text), " ")
}
