package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/crawler"
)

var (
	flagCrawlMaxPages int
	flagCrawlMaxDepth int
	flagCrawlDomains  []string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Fetch one page and add it to the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Crawler.Scrape(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if res.Ingest.Reused {
			fmt.Printf("%s already stored as %s\n", res.URL, res.Ingest.DocumentID)
			return nil
		}
		fmt.Printf("scraped %s -> %s (%d chunks)\n", res.URL, res.Ingest.DocumentID, res.Ingest.ChunksAdded)
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a site breadth-first and ingest each page",
	Long: `Crawls from the seed URL, staying within its registrable domain unless
--domain widens the scope. Bounded by --max-pages and --max-depth; failed
pages are reported but do not stop the crawl.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Crawler.Crawl(cmd.Context(), args[0], crawler.Options{
			MaxPages:     flagCrawlMaxPages,
			MaxDepth:     flagCrawlMaxDepth,
			ExtraDomains: flagCrawlDomains,
		})
		if res != nil {
			printCrawlResult(res)
		}
		return err
	},
}

func printCrawlResult(res *crawler.Result) {
	fmt.Printf("crawl %s: %s (%d pages visited in %s)\n",
		res.Seed, res.State, res.Visited, res.Elapsed.Round(time.Millisecond))
	for _, p := range res.Ingested {
		label := fmt.Sprintf("%d chunks", p.Ingest.ChunksAdded)
		if p.Ingest.Reused {
			label = "already stored"
		}
		fmt.Printf("  + %s (%s)\n", p.URL, label)
	}
	for _, f := range res.Failures {
		fmt.Printf("  ! %s: %s\n", f.URL, f.Error)
	}
}

func init() {
	crawlCmd.Flags().IntVar(&flagCrawlMaxPages, "max-pages", 10, "fetch budget including the seed")
	crawlCmd.Flags().IntVar(&flagCrawlMaxDepth, "max-depth", 1, "link distance budget (0 = seed only)")
	crawlCmd.Flags().StringArrayVar(&flagCrawlDomains, "domain", nil, "extra registrable domain to allow (repeatable)")

	rootCmd.AddCommand(scrapeCmd, crawlCmd)
}
