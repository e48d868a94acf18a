package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge base as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout exposing kb_add, kb_search,
kb_retrieve, kb_recent, kb_delete, kb_stats, web_scrape and web_crawl.
All logging goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		server := mcp.NewServer(Version, app.Ingestor, app.Retriever, app.Store, app.Crawler, app.Logger)
		return server.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
