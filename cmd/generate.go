package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/comicgen/internal/comics"
	"github.com/lehigh-university-libraries/comicgen/internal/images"
)

func newGenerateCmd() *cobra.Command {
	var language string
	var reference string

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a comic and store it",
		Long: `Runs the full creation workflow from the command line: writes the story,
draws every panel in order and stores the finished comic in the database.
Nothing is stored if any step fails.`,
		Example: `  comicgen generate "A cat who learns to fly"

  # Spanish captions, main character based on a photo
  comicgen generate "Un gato que aprende a volar" --language es --reference ./cat.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ref, err := loadReference(cmd.Context(), reference)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{withAI: true})
			if err != nil {
				return err
			}
			defer a.Close()

			comic, err := a.service.Generate(cmd.Context(), comics.GenerateRequest{
				Prompt:    args[0],
				Language:  language,
				Reference: ref,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d panels\n", comic.ID, comic.Title, len(comic.Panels))
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Language tag for the title and captions (defaults to DEFAULT_LANGUAGE)")
	cmd.Flags().StringVar(&reference, "reference", "", "Reference image for the main character: file path, URL or data URI")

	return cmd
}

// loadReference reads a reference image from disk, falling back to URL or data URI resolution.
// The operator runs the CLI, so local and private hosts are allowed.
func loadReference(ctx context.Context, ref string) (*images.Image, error) {
	if ref == "" {
		return nil, nil
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference image: %w", err)
		}
		slog.Debug("Loaded reference image", "path", ref, "bytes", len(data))
		return images.New(data)
	}
	return images.NewFetcher(images.WithPrivateHosts()).Resolve(ctx, ref)
}
