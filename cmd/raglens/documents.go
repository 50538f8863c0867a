package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/tasks"
)

var (
	uploadFolder    string
	uploadNoProcess bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files and process them",
	Long: `Copies files into the documents tree and runs the pipeline on each.

--folder takes a slash-separated path below Documents; missing folders are
created.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var processCmd = &cobra.Command{
	Use:   "process <document-id>...",
	Short: "Run the pipeline on documents, with retries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

var statusCmd = &cobra.Command{
	Use:   "status <document-id>...",
	Short: "Show the processing status of documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <document-id>...",
	Short: "Reset error documents and process them again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReprocess,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail documents stuck in processing past the timeout",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadFolder, "folder", "f", "", "target folder path, e.g. Reports/2024")
	uploadCmd.Flags().BoolVar(&uploadNoProcess, "no-process", false, "store only; leave the documents in processing")
	rootCmd.AddCommand(uploadCmd, processCmd, statusCmd, reprocessCmd, sweepCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	folderID := ""
	if names := splitPath(uploadFolder); len(names) > 0 {
		if folderID, err = a.Library.EnsureFolders(ctx, "", names); err != nil {
			return fmt.Errorf("Failed to create folder: %w", err)
		}
	}

	failed := 0
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		doc, err := a.Library.Upload(ctx, folderID, filepath.Base(path), f)
		f.Close()
		if err != nil {
			fmt.Printf("  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("Uploaded %s as %s (%s)\n", path, doc.ID, doc.Status)
		if uploadNoProcess || doc.Status != documents.StatusProcessing {
			continue
		}
		if err := processOne(ctx, a.Pool.Run, a.Docs, doc.ID); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	failed := 0
	for _, id := range args {
		if err := processOne(ctx, a.Pool.Run, a.Docs, id); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// processOne runs one document and prints its final status.
func processOne(ctx context.Context, run func(context.Context, string) error, docs *documents.Store, id string) error {
	start := time.Now()
	fmt.Printf("Processing %s...\n", id)
	runErr := run(ctx, id)
	doc, err := docs.GetDocument(ctx, id)
	if err != nil {
		fmt.Printf("  %s: %v\n", id, err)
		return err
	}
	fmt.Printf("  %s: %s in %s\n", doc.Name, doc.Status, time.Since(start).Round(time.Millisecond))
	if doc.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", doc.ErrorMessage)
	}
	return runErr
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docs, err := documents.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer docs.Close()

	reports, err := docs.Statuses(cmd.Context(), args)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUPDATED\tERROR")
	for _, r := range reports {
		updated := "-"
		if r.UpdatedAt != nil {
			updated = r.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Status, updated, r.Error)
	}
	return w.Flush()
}

func runReprocess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	var errs []error
	for _, id := range args {
		res, err := a.Pool.ReprocessNow(ctx, id)
		switch {
		case res.Reason != "":
			fmt.Printf("%s: %s (%s)\n", id, res.Status, res.Reason)
		case res.Status != "":
			fmt.Printf("%s: %s\n", id, res.Status)
		}
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docs, err := documents.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer docs.Close()

	ids, err := tasks.NewSweeper(docs, cfg.StaleAfter(), cfg.SweepInterval(), logger()).Sweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Marked %d stale document(s) as error\n", len(ids))
	for _, id := range ids {
		fmt.Printf("  - %s\n", id)
	}
	return nil
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
