package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/source"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"github.com/spf13/cobra"
)

var (
	outJSON      string
	outMD        string
	timeout      time.Duration
	providerKey  string
	noCache      bool
	noFooter     bool
	saveRun      bool
	showProgress bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <path|url|gs://bucket/prefix>...",
	Short: "Analyze billing documents together as one session",
	Long: `Analyze reads every document at the given locations and, for each one:
- Classifies it (medical bill, EOB, pharmacy, dental, FSA/HSA claims)
- Extracts facts and line items
- Runs the selected analysis provider plus deterministic checks

The documents are then reconciled together: transactions are deduplicated
across documents and a coverage matrix shows how each service was paid.

Locations may be files, directories (.txt .md .html .htm), http(s) URLs or
gs://bucket/prefix. Output paths may also be gs:// URLs.

Example:
  medbilldozer analyze bill.txt eob.txt
  medbilldozer analyze ./statements --md report.md --provider ensemble
  medbilldozer analyze gs://my-bucket/2026/ --json gs://my-bucket/reports/2026.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (empty to skip)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable the advisory footer in Markdown reports")

	// Analysis flags
	analyzeCmd.Flags().StringVar(&providerKey, "provider", "", "analysis provider key (default from config, \"smart\" picks the best available)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the completion cache")
	analyzeCmd.Flags().BoolVar(&saveRun, "save", false, "store the run in the history database")
	analyzeCmd.Flags().BoolVar(&showProgress, "progress", false, "print stage progress events")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCommonFlags(cfg)

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %v\n", args)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	inputs, err := loadInputs(ctx, args, cfg.Sources)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Providers: %v\n", a.registry.Keys())
		if excluded := a.registry.Excluded(); len(excluded) > 0 {
			fmt.Fprintf(os.Stderr, "   Excluded (health check failed): %v\n", excluded)
		}
	}

	var docs []*model.Document
	for _, in := range inputs {
		opts := pipeline.Options{Name: in.Name, Provider: providerKey}
		if showProgress {
			opts.Progress = progressPrinter(in.Name)
		}

		doc, err := a.pipeline.Analyze(ctx, in.Text, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", in.Name, err)
			continue
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s: %s, %d line items, %d issues (%s)\n",
				in.Name, doc.Type.Title(), len(doc.LineItems), len(doc.Issues), doc.Provider)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents could be analyzed")
	}

	session := pipeline.BuildSession(docs)
	if err := pipeline.NewRenderer(cfg.Output.IncludeFooter).Render(ctx, session, outJSON, outMD, os.Stdout, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return saveSession(ctx, a, session)
}

// applyCommonFlags applies the flags shared by analyze and batch
func applyCommonFlags(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if saveRun {
		cfg.Store.Enabled = true
	}
	if providerKey == "" {
		providerKey = cfg.Analysis.DefaultProvider
	}
}

// loadInputs loads every location in order
func loadInputs(ctx context.Context, locations []string, cfg model.SourcesConfig) ([]worker.Input, error) {
	var inputs []worker.Input
	for _, loc := range locations {
		in, err := source.Load(ctx, loc, cfg)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", loc, err)
		}
		inputs = append(inputs, in...)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no documents found in %v", locations)
	}
	return inputs, nil
}

func saveSession(ctx context.Context, a *app, session *model.Session) error {
	if a.store == nil {
		return nil
	}
	id, err := a.store.SaveSession(ctx, session)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Saved run %s (%s)\n", id, a.store.Path())
	return nil
}

func progressPrinter(name string) pipeline.ProgressFunc {
	return func(ev pipeline.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "  [%s] %-28s %s\n", name, ev.Stage, ev.Status)
	}
}
