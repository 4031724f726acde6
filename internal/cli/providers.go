package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List analysis providers and their health",
	Long: `Build every configured backend, run the provider health checks and list
the providers that can be selected with --provider. Providers that failed
their health check are listed as excluded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATUS\tDESCRIPTION")
		for _, key := range a.registry.Keys() {
			p, _ := a.registry.Get(key)
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, "available", p.Description())
		}
		for _, key := range a.registry.Excluded() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, "excluded", "health check failed")
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nDefault: %s\n", cfg.Analysis.DefaultProvider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
