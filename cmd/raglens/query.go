package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/diagnostics"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

var (
	searchDocument string
	searchFolder   string
	searchLimit    int

	graphDocument string
	graphFolder   string
	graphEntity   string
	graphType     string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Runs a semantic search when an embedding provider is configured, a
metadata-filtered scan when --document or --folder is given without one, and
returns the most recent chunks otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the knowledge graph of a document, a folder or an entity as JSON",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [document-id]",
	Short: "List documents with diagnostic streams, or print one stream as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiagnostics,
}

func init() {
	searchCmd.Flags().StringVar(&searchDocument, "document", "", "restrict to a document id")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "restrict to a folder id")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of chunks")

	graphCmd.Flags().StringVar(&graphDocument, "document", "", "document id")
	graphCmd.Flags().StringVar(&graphFolder, "folder", "", "folder id")
	graphCmd.Flags().StringVar(&graphEntity, "entity", "", "entity name")
	graphCmd.Flags().StringVar(&graphType, "type", "", "entity type, used with --entity")

	rootCmd.AddCommand(searchCmd, graphCmd, diagnosticsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	q := vectorindex.Query{Limit: searchLimit}
	if len(args) == 1 {
		q.Text = strings.TrimSpace(args[0])
	}
	filter := map[string]any{}
	if searchDocument != "" {
		filter["document_id"] = searchDocument
	}
	if searchFolder != "" {
		filter["folder_id"] = searchFolder
	}
	if len(filter) > 0 {
		q.Filter = filter
	}

	res, err := a.Index.Search(cmd.Context(), q)
	if err != nil {
		return err
	}
	fmt.Printf("Mode: %s, %d result(s)\n", res.Mode, len(res.Matches))
	for i, m := range res.Matches {
		name, _ := m.Metadata["document_name"].(string)
		fmt.Println()
		if res.Mode == vectorindex.ModeVector {
			fmt.Printf("%d. %s [%s] score=%.3f\n", i+1, name, m.ID, m.Score)
		} else {
			fmt.Printf("%d. %s [%s]\n", i+1, name, m.ID)
		}
		fmt.Println(indent(preview(m.Text, 400), "   "))
	}
	return nil
}

func runGraph(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx := cmd.Context()
	var g graph.Graph
	switch {
	case graphDocument != "":
		g, err = a.Graph.DocumentGraph(ctx, graphDocument)
	case graphFolder != "":
		g, err = a.Graph.FolderGraph(ctx, graphFolder)
	case graphEntity != "":
		t := graphType
		if t != "" {
			t = a.Schema.NormalizeEntityType(t)
		}
		g, err = a.Graph.EntityGraph(ctx, graphEntity, t)
	default:
		return errors.New("one of --document, --folder or --entity is required")
	}
	if err != nil {
		return err
	}
	return printJSON(g)
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		ids, err := diagnostics.List(cfg.DiagnosticsDir)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}
	records, err := diagnostics.Read(cfg.DiagnosticsDir, args[0])
	if err != nil {
		return err
	}
	return printJSON(records)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
