package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var importFilePath string

// importedJob is one entry in an import file.
type importedJob struct {
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Register jobs in bulk from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importFilePath)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		var entries []importedJob
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return eris.Wrap(err, "parse import file")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var created, rejected int
		for _, e := range entries {
			job, err := st.AddJob(ctx, e.URL, e.Selector)
			if err != nil {
				rejected++
				zap.L().Warn("import: job rejected",
					zap.String("url", e.URL),
					zap.Error(err),
				)
				continue
			}
			created++
			zap.L().Debug("import: job registered", zap.String("job_id", job.ID))
		}

		zap.L().Info("import complete",
			zap.Int("created", created),
			zap.Int("rejected", rejected),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to YAML job list (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
