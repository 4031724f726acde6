package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	perDocument  bool
	// noCache, noFooter, providerKey and saveRun are defined in analyze.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many documents in parallel",
	Long: `Batch analyzes many documents concurrently:
- Read document locations from the input file (one per line, # comments)
- Analyze documents in parallel with a configurable worker count
- Reconcile all documents as one session
- Write the session report, and optionally one JSON file per document

Example:
  medbilldozer batch documents.txt
  medbilldozer batch documents.txt --concurrency 8 --output-dir ./reports
  medbilldozer batch documents.txt --per-document --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./medbilldozer-reports", "output directory (local path or gs:// prefix)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&perDocument, "per-document", false, "also write one JSON report per document")

	// Shared with analyze
	batchCmd.Flags().StringVar(&providerKey, "provider", "", "analysis provider key")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the completion cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable the advisory footer in Markdown reports")
	batchCmd.Flags().BoolVar(&saveRun, "save", false, "store the run in the history database")
}

// providerAnalyzer pins a provider key for every batch job
type providerAnalyzer struct {
	pipeline *pipeline.Pipeline
	provider string
}

func (a providerAnalyzer) AnalyzeText(ctx context.Context, name, text string) (*model.Document, error) {
	return a.pipeline.Analyze(ctx, text, pipeline.Options{Name: name, Provider: a.provider})
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	workers := max(cfg.Concurrency.Workers, 1)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  medbilldozer Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	locations, err := worker.ReadListFile(file)
	if err != nil {
		return fmt.Errorf("read list file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Loading documents...\n")
	inputs, err := loadInputs(ctx, locations, cfg.Sources)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d documents from %d locations\n", len(inputs), len(locations))

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintf(os.Stderr, "  Providers:    %v\n\n", a.registry.Keys())

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing with %d workers...\n\n", workers)
	processor := worker.NewBatchProcessor(providerAnalyzer{pipeline: a.pipeline, provider: providerKey}, workers)
	results := processor.Process(ctx, inputs)

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	var docs []*model.Document
	failures := 0
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Name, result.Error)
			continue
		}
		docs = append(docs, result.Document)
		fmt.Fprintf(os.Stderr, "✓ %s (%d issues, $%.2f, %v)\n",
			result.Document.Label, len(result.Document.Issues), result.Document.SavingsTotal(), result.Duration.Round(time.Millisecond))

		if perDocument {
			if err := writeDocument(ctx, renderer, result.Document); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write report: %v\n", result.Name, err)
			}
		}
	}
	if len(docs) == 0 {
		return fmt.Errorf("all %d documents failed", len(results))
	}

	session := pipeline.BuildSession(docs)
	base := joinOutput(outputDir, "session-"+shortID(session.ID))
	if err := renderer.Render(ctx, session, base+".json", base+".md", os.Stdout, true); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if err := saveSession(ctx, a, session); err != nil {
		return err
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(docs))
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// writeDocument writes a single-document session as JSON next to the batch report
func writeDocument(ctx context.Context, r *pipeline.Renderer, doc *model.Document) error {
	name := sanitizeFilename(doc.Name)
	if name == "" {
		name = doc.ID
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	path := joinOutput(outputDir, name+"-"+doc.ID+".json")
	return r.WriteFile(ctx, path, append(data, '\n'), "application/json")
}

// joinOutput joins an output directory and file name for local paths and gs:// prefixes
func joinOutput(dir, name string) string {
	if strings.HasPrefix(dir, "gs://") {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = strings.TrimSuffix(filepath.Base(s), filepath.Ext(s))
	if s == "." || s == string(filepath.Separator) {
		return ""
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
