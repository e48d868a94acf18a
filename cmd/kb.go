package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

var (
	flagAddSource   string
	flagAddMeta     []string
	flagSearchLimit int
	flagFindLimit   int
	flagRecentLimit int
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add content to the knowledge base",
	Long:  "Adds the given text, or stdin when no argument is given. Identical content is deduplicated.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content string
		if len(args) == 1 {
			content = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			content = string(data)
		}

		metadata, err := parseMetadata(flagAddMeta)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Ingestor.Ingest(cmd.Context(), flagAddSource, content, metadata)
		if err != nil {
			return err
		}
		if res.Reused {
			fmt.Printf("already stored as %s\n", res.DocumentID)
			return nil
		}
		fmt.Printf("stored %s (%d chunks", res.DocumentID, res.ChunksAdded)
		if len(res.FailedChunks) > 0 {
			fmt.Printf(", %d failed to embed", len(res.FailedChunks))
		}
		fmt.Println(")")
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		results, err := app.Retriever.Query(cmd.Context(), args[0], flagSearchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s (doc %s)\n", i+1, r.Score, r.Document.Source, r.Document.ID)
			fmt.Printf("   %s\n", preview(r.Chunk.Content, 200))
		}
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find <keyword>",
	Short: "Keyword search over stored documents",
	Long:  "Matches the query literally against document content, source and metadata. Use \"search\" for semantic similarity.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		docs, err := app.Store.SearchDocuments(cmd.Context(), args[0], flagFindLimit)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %s  %s\n  %s\n",
				d.CreatedAt.Format("2006-01-02 15:04"), d.ID, d.Source, preview(d.Content, 120))
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Print a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		doc, err := app.Store.Get(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				return fmt.Errorf("document %s not found", args[0])
			}
			return err
		}
		fmt.Printf("id:      %s\nsource:  %s\ncreated: %s\n", doc.ID, doc.Source, doc.CreatedAt.Format("2006-01-02 15:04:05"))
		for k, v := range doc.Metadata {
			fmt.Printf("meta:    %s=%s\n", k, v)
		}
		fmt.Printf("\n%s\n", doc.Content)
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently added documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		docs, err := app.Store.ListRecent(cmd.Context(), flagRecentLimit)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("knowledge base is empty")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %s  %s\n  %s\n",
				d.CreatedAt.Format("2006-01-02 15:04"), d.ID, d.Source, preview(d.Content, 120))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		removed, err := app.Ingestor.Delete(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				return fmt.Errorf("document %s not found", args[0])
			}
			return err
		}
		fmt.Printf("deleted %s (%d chunks)\n", args[0], removed)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		st, err := app.Store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("documents: %d\nchunks:    %d\nbytes:     %d\n",
			st.DocumentCount, st.ChunkCount, st.TotalBytes)
		return nil
	},
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", p)
		}
		md[k] = v
	}
	return md, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	addCmd.Flags().StringVar(&flagAddSource, "source", "manual", "origin label for the content")
	addCmd.Flags().StringArrayVar(&flagAddMeta, "meta", nil, "metadata key=value (repeatable)")
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "n", 5, "maximum results")
	findCmd.Flags().IntVarP(&flagFindLimit, "limit", "n", 10, "maximum documents")
	recentCmd.Flags().IntVarP(&flagRecentLimit, "limit", "n", 10, "maximum documents")

	rootCmd.AddCommand(addCmd, searchCmd, findCmd, getCmd, recentCmd, deleteCmd, statsCmd)
}
