// Package crawler implements bounded breadth-first web crawling feeding
// the knowledge base. A coordinator owns the FIFO frontier and visited
// set; a fixed worker pool fetches pages, extracts their main content and
// links, and hands the text to the ingestion pipeline. Crawls are scoped
// to the seed's registrable domain and bounded by page and depth budgets.
// No crawl state survives the invocation.
package crawler
