package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pagesift/pagesift/internal/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List registered scrape jobs",
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

		jobs, err := st.ListJobs(ctx)
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs registered.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, jobs []model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tURL\tSELECTOR\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t---\t--------\t-------")

	for _, j := range jobs {
		url := j.URL
		if len(url) > 50 {
			url = url[:47] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateID(j.ID),
			url,
			j.Selector,
			j.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
