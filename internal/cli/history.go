package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/store"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analysis runs",
	Long: `List the runs saved with --save (or with store.enabled in the config),
newest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			runs, err := st.ListRuns(ctx, historyLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No stored runs.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tDOCS\tISSUES\tSAVINGS\tHIGH CONF.\tCONFIDENCE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.2f\t$%.2f\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Documents, r.IssueCount,
					r.TotalMaxSavings, r.HighConfidenceSavings, r.Confidence)
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the Markdown report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			session, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Print(pipeline.NewRenderer(true).Markdown(session))
			return nil
		})
	},
}

var historyIssuesCmd = &cobra.Command{
	Use:   "issues <document-id>",
	Short: "List the stored issues of one document across runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			issues, err := st.IssuesForDocument(ctx, args[0])
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				fmt.Printf("No stored issues for document %s.\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tTYPE\tCODE\tDATE\tMAX SAVINGS\tSOURCE\tSUMMARY")
			for _, i := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(i.RunID), i.Type, i.Code, i.Date, savings(i.Issue), i.Source, i.Summary)
			}
			return w.Flush()
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.SQLiteStore) error {
			if err := st.DeleteRun(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted run %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyIssuesCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list (0 for all)")
}

// withStore opens the configured history database for one command
func withStore(fn func(ctx context.Context, st *store.SQLiteStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	return fn(context.Background(), st)
}

func savings(i model.Issue) string {
	if i.MaxSavings == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *i.MaxSavings)
}
