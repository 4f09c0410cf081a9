package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// NewIngestCommand creates the ingest command
func NewIngestCommand() *cobra.Command {
	var (
		title          string
		description    string
		category       string
		uploader       string
		quality        string
		processingType string
		deleteOriginal bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a video file",
		Long:  `Derive the playback rendition and thumbnail of a video file and add it to the catalog.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			file, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer file.Close()

			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				result, err := rt.Service.Ingest(cmd.Context(), simplemedia.IngestRequest{
					File:             file,
					OriginalFilename: filepath.Base(filePath),
					Title:            title,
					Description:      description,
					Category:         category,
					UploaderID:       uploader,
					Quality:          simplemedia.Quality(quality),
					ProcessingType:   simplemedia.ProcessingType(processingType),
					DeleteOriginal:   deleteOriginal,
				})
				if err != nil {
					return fmt.Errorf("ingest failed: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Ingest successful!\n")
				fmt.Fprintf(out, "Video ID: %s\n", result.Record.ID)
				if result.Record.StreamingURL != nil {
					fmt.Fprintf(out, "Streaming URL: %s\n", *result.Record.StreamingURL)
				}
				if result.ThumbnailFailed {
					fmt.Fprintf(out, "Thumbnail: not available\n")
				}
				fmt.Fprintf(out, "Derivation took: %s\n", result.DerivationElapsed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title (default: file name)")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&category, "category", "", "Category (default: uncategorized)")
	cmd.Flags().StringVar(&uploader, "uploader", os.Getenv("USER"), "Uploader identity")
	cmd.Flags().StringVar(&quality, "quality", "medium", "Quality tier: low, medium, high")
	cmd.Flags().StringVar(&processingType, "processing-type", "streaming", "Processing type: streaming or convert")
	cmd.Flags().BoolVar(&deleteOriginal, "delete-original", false, "Remove the stored upload after success")

	return cmd
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var (
		page     int
		limit    int
		category string
		sortBy   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ranked video previews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				result, err := rt.Service.ListPreviews(cmd.Context(), simplemedia.ListQuery{
					Category: category,
					Sort:     simplemedia.SortPolicy(sortBy),
					Page:     page,
					Limit:    limit,
				})
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printPreviews(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 12, "Page size")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&sortBy, "sort", "latest", "Sort: latest, popular, trending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <video-id>",
		Short: "Show a catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				record, err := rt.Service.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("get failed: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), record)
			})
		},
	}
}

// NewCategoriesCommand creates the categories command
func NewCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show the number of videos per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				categories, err := rt.Service.Categories(cmd.Context())
				if err != nil {
					return fmt.Errorf("categories failed: %w", err)
				}
				printCategories(cmd.OutOrStdout(), categories)
				return nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <video-id>",
		Short: "Delete a video and all of its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *config.Runtime) error {
				if err := rt.Service.Delete(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("delete failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPreviews(w io.Writer, page *simplemedia.PreviewPage) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tVIEWS\tLIKES\tUPLOADED")
	for _, p := range page.Videos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", p.ID, p.Title, p.Category, p.Views, p.Likes, p.UploadTimestamp.Format("2006-01-02 15:04"))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nPage %d of %d (%d total)\n", page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
}

func printCategories(w io.Writer, categories map[string]int) {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tVIDEOS")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, categories[name])
	}
	tw.Flush()
}
