package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KP1729/coursepilot/internal/catalog"
)

// NewCoursesCmd constructs the `coursepilot courses` command, which lists
// every ingested course from the local catalog.
func NewCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List ingested courses",
		Long: `List every course in the local catalog with its lesson and chunk counts.

This command reads only the catalog database; it does not contact Qdrant or
any model provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("COURSEPILOT_CATALOG_DB")
			if dbPath == "" {
				var err error
				dbPath, err = catalog.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("courses: %w", err)
				}
			}

			cat, err := catalog.Open(dbPath)
			if err != nil {
				return fmt.Errorf("courses: failed to open catalog at %s: %w", dbPath, err)
			}
			defer cat.Close()

			summaries, err := cat.Courses(ctx)
			if err != nil {
				return fmt.Errorf("courses: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No courses ingested yet. Run 'coursepilot ingest' first.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tINSTRUCTOR\tLESSONS\tCHUNKS")
			for _, c := range summaries {
				instructor := c.Instructor
				if instructor == "" {
					instructor = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", c.Title, instructor, c.LessonCount, c.ChunkCount)
			}
			return w.Flush()
		},
	}
}
