package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

// Ingestor is the slice of the ingestion pipeline the crawler needs.
type Ingestor interface {
	Ingest(ctx context.Context, source, content string, metadata map[string]string) (*knowledge.IngestResult, error)
}

// State tracks a crawl invocation's lifecycle.
type State string

const (
	StateSeeded   State = "seeded"
	StateCrawling State = "crawling"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// PageIngest records one successfully crawled and ingested page.
type PageIngest struct {
	URL    string                 `json:"url"`
	Depth  int                    `json:"depth"`
	Title  string                 `json:"title,omitempty"`
	Ingest knowledge.IngestResult `json:"ingest"`
}

// PageFailure records one page that could not be crawled or ingested. A
// failure never aborts the rest of the crawl.
type PageFailure struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
	Error string `json:"error"`
}

// Result summarizes a finished crawl.
type Result struct {
	Seed     string        `json:"seed"`
	State    State         `json:"state"`
	Visited  int           `json:"visited"`
	Ingested []PageIngest  `json:"ingested"`
	Failures []PageFailure `json:"failures,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Options bound a crawl.
type Options struct {
	// MaxPages caps fetch attempts, the seed included. Default 10.
	MaxPages int
	// MaxDepth caps link distance from the seed; 0 fetches only the seed.
	MaxDepth int
	// ExtraDomains widens the scope beyond the seed's registrable domain.
	ExtraDomains []string
}

// Crawler walks pages breadth-first within a scope and hands their text to
// the ingestion pipeline.
type Crawler struct {
	fetcher  Fetcher
	ingestor Ingestor
	limiter  *rate.Limiter
	workers  int
	logger   *slog.Logger
}

// New creates a crawler. workers <= 0 defaults to 4; delay <= 0 disables
// rate limiting.
func New(fetcher Fetcher, ingestor Ingestor, workers int, delay time.Duration, logger *slog.Logger) *Crawler {
	if workers <= 0 {
		workers = 4
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Crawler{
		fetcher:  fetcher,
		ingestor: ingestor,
		limiter:  limiter,
		workers:  workers,
		logger:   logger,
	}
}

// outcome is what a worker reports back for one task.
type outcome struct {
	task    task
	page    *Page
	ingest  *knowledge.IngestResult
	failure error
}

// Crawl walks breadth-first from seed until the frontier empties or a
// budget is hit. Per-page failures are recorded in the result; the only
// fatal errors are an invalid seed, a failed seed fetch, and context
// cancellation.
func (c *Crawler) Crawl(ctx context.Context, seed string, opts Options) (*Result, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}

	scope, err := NewScope(seed, opts.ExtraDomains...)
	if err != nil {
		return &Result{Seed: seed, State: StateFailed}, err
	}
	seedURL, err := normalizeURL(seed)
	if err != nil {
		return &Result{Seed: seed, State: StateFailed}, fmt.Errorf("parsing seed: %w", err)
	}

	start := time.Now()
	res := &Result{Seed: seed, State: StateSeeded, Ingested: []PageIngest{}}

	front := newFrontier()
	front.push(seedURL, 0)
	res.State = StateCrawling

	workCh := make(chan task)
	outCh := make(chan outcome)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for t := range workCh {
				out := c.process(gctx, t)
				select {
				case outCh <- out:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var seedErr error
	dispatched, inFlight := 0, 0

	for inFlight > 0 || (front.len() > 0 && dispatched < opts.MaxPages) {
		if t, ok := front.pop(); ok && dispatched < opts.MaxPages {
			select {
			case workCh <- t:
				dispatched++
				inFlight++
			case out := <-outCh:
				front.requeue(t)
				inFlight--
				c.collect(res, scope, front, opts, out, &seedErr)
			case <-gctx.Done():
				front.requeue(t)
				goto drain
			}
			continue
		} else if ok {
			// Popped past the page budget: the task stays unfetched.
			front.requeue(t)
		}

		select {
		case out := <-outCh:
			inFlight--
			c.collect(res, scope, front, opts, out, &seedErr)
		case <-gctx.Done():
			goto drain
		}
	}

drain:
	close(workCh)
	if werr := g.Wait(); werr != nil && seedErr == nil {
		seedErr = werr
	}
	if cerr := ctx.Err(); cerr != nil && seedErr == nil {
		seedErr = cerr
	}

	res.Elapsed = time.Since(start)
	if seedErr != nil {
		res.State = StateFailed
		return res, seedErr
	}
	res.State = StateDone

	c.logger.Info("crawl finished",
		"seed", seed, "visited", res.Visited,
		"ingested", len(res.Ingested), "failures", len(res.Failures),
		"elapsed", res.Elapsed)
	return res, nil
}

// collect folds one worker outcome into the result and expands the
// frontier with in-scope links.
func (c *Crawler) collect(res *Result, scope *Scope, front *frontier, opts Options, out outcome, seedErr *error) {
	res.Visited++

	if out.failure != nil {
		res.Failures = append(res.Failures, PageFailure{
			URL:   out.task.url,
			Depth: out.task.depth,
			Error: out.failure.Error(),
		})
		if out.task.depth == 0 && out.page == nil {
			// An unreachable seed fails the whole crawl.
			*seedErr = fmt.Errorf("fetching seed: %w", out.failure)
		}
		c.logger.Warn("page failed", "url", out.task.url, "depth", out.task.depth, "error", out.failure)
		if out.page == nil {
			return
		}
		// Fetch succeeded, only ingestion failed: the links are still
		// worth following.
	}

	if out.ingest != nil {
		res.Ingested = append(res.Ingested, PageIngest{
			URL:    out.task.url,
			Depth:  out.task.depth,
			Title:  out.page.Title,
			Ingest: *out.ingest,
		})
	}

	next := out.task.depth + 1
	if next > opts.MaxDepth {
		return
	}
	for _, link := range out.page.Links {
		norm, err := normalizeURL(link)
		if err != nil || !scope.Allows(norm) {
			continue
		}
		front.push(norm, next)
	}
}

// process fetches and ingests one page, honoring the shared rate limit.
func (c *Crawler) process(ctx context.Context, t task) outcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return outcome{task: t, failure: err}
	}

	page, err := c.fetcher.Fetch(ctx, t.url)
	if err != nil {
		return outcome{task: t, failure: err}
	}

	ingest, err := c.ingestor.Ingest(ctx, page.URL, page.Text, pageMetadata(page, t.depth))
	if err != nil {
		// The page itself was fine; record the ingestion failure but keep
		// its links crawlable.
		return outcome{task: t, page: page, failure: fmt.Errorf("ingesting %s: %w", page.URL, err)}
	}
	return outcome{task: t, page: page, ingest: ingest}
}

// Scrape fetches a single page and ingests it. No frontier, no scope.
func (c *Crawler) Scrape(ctx context.Context, rawURL string) (*PageIngest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	ingest, err := c.ingestor.Ingest(ctx, page.URL, page.Text, pageMetadata(page, 0))
	if err != nil {
		return nil, err
	}

	c.logger.Info("page scraped", "url", page.URL, "chunks", ingest.ChunksAdded, "reused", ingest.Reused)
	return &PageIngest{URL: page.URL, Title: page.Title, Ingest: *ingest}, nil
}

func pageMetadata(page *Page, depth int) map[string]string {
	md := map[string]string{
		"url":   page.URL,
		"depth": fmt.Sprintf("%d", depth),
	}
	if page.Title != "" {
		md["title"] = page.Title
	}
	return md
}
