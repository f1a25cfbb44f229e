package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	addURL      string
	addSelector string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a scrape job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		job, err := st.AddJob(ctx, addURL, addSelector)
		if err != nil {
			return eris.Wrap(err, "add job")
		}

		zap.L().Info("job registered",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	addCmd.Flags().StringVar(&addURL, "url", "", "page URL to fetch (required)")
	addCmd.Flags().StringVar(&addSelector, "selector", "", "CSS selector to extract (required)")
	_ = addCmd.MarkFlagRequired("url")
	_ = addCmd.MarkFlagRequired("selector")
	rootCmd.AddCommand(addCmd)
}
