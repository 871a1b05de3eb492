package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/comicgen/internal/export"
)

func newExportCmd() *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export <comic-id>",
		Short: "Export a stored comic as YAML or Parquet",
		Example: `  comicgen export 0b6f1c1e-5d0e-4a8e-9f57-0c0a3f6e1d2a --format yaml
  comicgen export 0b6f1c1e-5d0e-4a8e-9f57-0c0a3f6e1d2a --format parquet --out comic.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ext, err := export.ContentType(format)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			comic, err := a.service.GetComic(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output == "" {
				output = "comic-" + comic.ID + ext
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			if err := export.Write(f, comic, format); err != nil {
				return err
			}
			slog.Info("Comic exported", "comic_id", comic.ID, "format", format, "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", export.FormatYAML, "Export format: yaml or parquet")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (defaults to comic-<id>.<ext>)")

	return cmd
}
