package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mnemo-ai/mnemo/internal/crawler"
	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_add",
		Description: "Add text content to the knowledge base. Identical content is deduplicated.",
	}, s.kbAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_search",
		Description: "Semantic search over the knowledge base. Returns the most similar chunks with their source documents.",
	}, s.kbSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_find",
		Description: "Keyword search over stored documents: matches exact terms, ids and URLs in content, source and metadata. Complements the semantic kb_search.",
	}, s.kbFind)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_retrieve",
		Description: "Retrieve a stored document by id, including its full content.",
	}, s.kbRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_recent",
		Description: "List the most recently added documents, newest first.",
	}, s.kbRecent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_delete",
		Description: "Delete a document and all of its chunks from the knowledge base.",
	}, s.kbDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kb_stats",
		Description: "Report knowledge base totals: documents, chunks, stored bytes.",
	}, s.kbStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "web_scrape",
		Description: "Fetch a single web page, extract its main content and add it to the knowledge base.",
	}, s.webScrape)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "web_crawl",
		Description: "Crawl a site breadth-first from a seed URL, ingesting each page. Bounded by page and depth budgets and scoped to the seed's domain.",
	}, s.webCrawl)
}

type kbAddInput struct {
	Content  string            `json:"content" jsonschema:"the text to store"`
	Source   string            `json:"source,omitempty" jsonschema:"origin label, defaults to manual"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"optional key/value annotations"`
}

func (s *Server) kbAdd(ctx context.Context, _ *mcp.CallToolRequest, input kbAddInput) (*mcp.CallToolResult, *knowledge.IngestResult, error) {
	source := input.Source
	if source == "" {
		source = "manual"
	}
	res, err := s.ingestor.Ingest(ctx, source, input.Content, input.Metadata)
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

type kbSearchInput struct {
	Query string `json:"query" jsonschema:"natural language search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum results, defaults to 5"`
}

type searchHit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

type kbSearchOutput struct {
	Results []searchHit `json:"results"`
}

func (s *Server) kbSearch(ctx context.Context, _ *mcp.CallToolRequest, input kbSearchInput) (*mcp.CallToolResult, *kbSearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}
	results, err := s.retriever.Query(ctx, input.Query, limit)
	if err != nil {
		return nil, nil, err
	}

	out := &kbSearchOutput{Results: make([]searchHit, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, searchHit{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Document.ID,
			Source:     r.Document.Source,
			Score:      r.Score,
			Content:    r.Chunk.Content,
		})
	}
	return nil, out, nil
}

type kbFindInput struct {
	Query string `json:"query" jsonschema:"keyword or phrase to match literally"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum documents, defaults to 10"`
}

func (s *Server) kbFind(ctx context.Context, _ *mcp.CallToolRequest, input kbFindInput) (*mcp.CallToolResult, *kbRecentOutput, error) {
	docs, err := s.store.SearchDocuments(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, nil, err
	}

	out := &kbRecentOutput{Documents: make([]documentSummary, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, documentSummary{
			ID:        d.ID,
			Source:    d.Source,
			Preview:   preview(d.Content, 200),
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

type kbRetrieveInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the document to fetch"`
}

func (s *Server) kbRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input kbRetrieveInput) (*mcp.CallToolResult, *knowledge.Document, error) {
	doc, err := s.store.Get(ctx, input.DocumentID)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return nil, nil, fmt.Errorf("document %s not found", input.DocumentID)
		}
		return nil, nil, err
	}
	return nil, doc, nil
}

type kbRecentInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum documents, defaults to 10"`
}

type documentSummary struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Preview   string `json:"preview"`
	CreatedAt string `json:"created_at"`
}

type kbRecentOutput struct {
	Documents []documentSummary `json:"documents"`
}

func (s *Server) kbRecent(ctx context.Context, _ *mcp.CallToolRequest, input kbRecentInput) (*mcp.CallToolResult, *kbRecentOutput, error) {
	docs, err := s.store.ListRecent(ctx, input.Limit)
	if err != nil {
		return nil, nil, err
	}

	out := &kbRecentOutput{Documents: make([]documentSummary, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, documentSummary{
			ID:        d.ID,
			Source:    d.Source,
			Preview:   preview(d.Content, 200),
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

type kbDeleteInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the document to delete"`
}

type kbDeleteOutput struct {
	Deleted       bool `json:"deleted"`
	ChunksRemoved int  `json:"chunks_removed"`
}

func (s *Server) kbDelete(ctx context.Context, _ *mcp.CallToolRequest, input kbDeleteInput) (*mcp.CallToolResult, *kbDeleteOutput, error) {
	removed, err := s.ingestor.Delete(ctx, input.DocumentID)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return nil, &kbDeleteOutput{Deleted: false}, nil
		}
		return nil, nil, err
	}
	return nil, &kbDeleteOutput{Deleted: true, ChunksRemoved: removed}, nil
}

type kbStatsInput struct{}

func (s *Server) kbStats(ctx context.Context, _ *mcp.CallToolRequest, _ kbStatsInput) (*mcp.CallToolResult, *knowledge.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, &st, nil
}

type webScrapeInput struct {
	URL string `json:"url" jsonschema:"page to fetch and ingest"`
}

func (s *Server) webScrape(ctx context.Context, _ *mcp.CallToolRequest, input webScrapeInput) (*mcp.CallToolResult, *crawler.PageIngest, error) {
	res, err := s.crawler.Scrape(ctx, input.URL)
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

type webCrawlInput struct {
	URL          string   `json:"url" jsonschema:"seed URL to start from"`
	MaxPages     int      `json:"max_pages,omitempty" jsonschema:"fetch budget including the seed, defaults to 10"`
	MaxDepth     int      `json:"max_depth,omitempty" jsonschema:"link distance budget, defaults to 1"`
	ExtraDomains []string `json:"extra_domains,omitempty" jsonschema:"additional registrable domains to allow"`
}

func (s *Server) webCrawl(ctx context.Context, _ *mcp.CallToolRequest, input webCrawlInput) (*mcp.CallToolResult, *crawler.Result, error) {
	// A depth-0 crawl is just web_scrape; treat an omitted depth as 1.
	if input.MaxDepth <= 0 {
		input.MaxDepth = 1
	}
	res, err := s.crawler.Crawl(ctx, input.URL, crawler.Options{
		MaxPages:     input.MaxPages,
		MaxDepth:     input.MaxDepth,
		ExtraDomains: input.ExtraDomains,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
