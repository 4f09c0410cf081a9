package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-media/pkg/simplemedia/admin"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	var (
		category   string
		uploaderID string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				svc, err := admin.New(rt.Catalog)
				if err != nil {
					return err
				}
				resp, err := svc.GetStatistics(cmd.Context(), admin.StatisticsRequest{
					Filters: admin.ContentFilters{Category: category, UploaderID: uploaderID},
					Options: admin.DefaultStatisticsOptions(),
				})
				if err != nil {
					return fmt.Errorf("stats failed: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				printStatistics(cmd.OutOrStdout(), resp.Statistics)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only count this category")
	cmd.Flags().StringVar(&uploaderID, "uploader", "", "only count this uploader")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")

	return cmd
}

func printStatistics(w io.Writer, stats admin.ContentStatistics) {
	fmt.Fprintf(w, "Videos:   %d\n", stats.TotalCount)
	fmt.Fprintf(w, "Views:    %d\n", stats.TotalViews)
	fmt.Fprintf(w, "Likes:    %d\n", stats.TotalLikes)
	fmt.Fprintf(w, "Bytes:    %d\n", stats.TotalBytes)
	fmt.Fprintf(w, "Duration: %.1fs\n", stats.TotalDurationSeconds)
	if stats.OldestContent != nil && stats.NewestContent != nil {
		fmt.Fprintf(w, "Uploaded: %s to %s\n",
			stats.OldestContent.Format("2006-01-02 15:04"),
			stats.NewestContent.Format("2006-01-02 15:04"))
	}

	printBreakdown(w, "STATUS", stats.ByStatus)
	printBreakdown(w, "PROCESSING", stats.ByProcessingType)
	printBreakdown(w, "QUALITY", stats.ByQuality)
	printBreakdown(w, "CATEGORY", stats.ByCategory)
}

func printBreakdown(w io.Writer, heading string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tVIDEOS\n", heading)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
	}
	tw.Flush()
}
