package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	ghclient "github.com/Mekopa/AIHackathon-RAGLens/internal/github"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
)

var (
	importFolder    string
	importNoProcess bool
)

var importCmd = &cobra.Command{
	Use:   "import-github <owner/repo[/path][@ref]>",
	Short: "Import a GitHub directory into the documents tree",
	Long: `Copies every supported file below a repository path into a folder,
keeping subdirectories as subfolders, then processes the imported documents.

Files whose name already exists in the target folder are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFolder, "folder", "f", "", "target folder path, e.g. Imports/eino")
	importCmd.Flags().BoolVar(&importNoProcess, "no-process", false, "import only; leave the documents in processing")
	rootCmd.AddCommand(importCmd)
}

// collector records queued ids so they can be processed after the import.
type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) Submit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	source, err := ghclient.ParseSource(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	client, err := ghclient.NewClient(a.Config.GitHubToken)
	if err != nil {
		return fmt.Errorf("Failed to create GitHub client: %w", err)
	}

	queued := &collector{}
	lib := library.New(a.Docs, a.Files, queued,
		library.WithCleaner(a.Pipeline),
		library.WithLogger(a.Logger),
	)

	folderID := ""
	if names := splitPath(importFolder); len(names) > 0 {
		if folderID, err = lib.EnsureFolders(ctx, "", names); err != nil {
			return fmt.Errorf("Failed to create folder: %w", err)
		}
	}

	fmt.Printf("Importing %s...\n", source)
	importer := ghclient.NewImporter(ghclient.NewFetcher(client, source), lib, a.Logger)
	result, err := importer.Import(ctx, folderID)
	if err != nil {
		return fmt.Errorf("Import failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Import complete!")
	fmt.Printf("  Files: %d imported, %d skipped, %d failed of %d\n",
		len(result.Imported), len(result.Skipped), len(result.FailedFiles), result.TotalFiles)
	fmt.Printf("  Commit: %s\n", result.CommitSHA)
	if len(result.FailedFiles) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.FailedFiles {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	if !importNoProcess && len(queued.ids) > 0 {
		fmt.Println()
		failed := 0
		for _, id := range queued.ids {
			if err := processOne(ctx, a.Pool.Run, a.Docs, id); err != nil {
				failed++
			}
		}
		fmt.Printf("\nProcessed %d document(s), %d failed\n", len(queued.ids), failed)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}
