// Package packcmd implements the pack command: publish a local directory of
// already-converted assets as a sticker pack, bypassing the source connector
// and the conversion engine.
package packcmd

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/mxpack/mxpack/internal/config"
	"github.com/mxpack/mxpack/internal/format"
	"github.com/mxpack/mxpack/internal/manifest"
	"github.com/mxpack/mxpack/internal/matrix"
	"github.com/mxpack/mxpack/internal/publish"
)

var (
	packTitle    string
	packID       string
	packPacksDir string
)

// PackCmd publishes a local asset directory as a pack.
var PackCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "Publish a local directory of assets as a sticker pack",
	Long: "Publish a local directory of assets as a sticker pack.\n\n" +
		"Files are taken in sorted name order; a numeric \"NNN-\" filename " +
		"prefix orders stickers without leaking into the body text. Assets are " +
		"uploaded as-is (no conversion), deduplicated by content hash against " +
		"previous runs, and merged into the picker index.",
	Example: `  # Publish ./my-pack as a sticker pack named after the directory
  mxpack pack ./my-pack

  # Publish with an explicit title
  mxpack pack ./my-pack --title "My Pack"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validatePack,
	RunE:    runPack,
}

func init() {
	PackCmd.Flags().StringVar(&packTitle, "title", "", "Override the pack display title")
	PackCmd.Flags().StringVar(&packID, "id", "", "Override the pack identifier")
	PackCmd.Flags().StringVar(&packPacksDir, "packs-dir", "", "Pack index directory (default from config)")
}

func validatePack(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if config.GetString("matrix.homeserver_url") == "" || config.GetString("matrix.access_token") == "" {
		return fmt.Errorf("matrix.homeserver_url and matrix.access_token must be configured")
	}
	return nil
}

func runPack(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := args[0]
	logger := slog.Default().With("dir", dir)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory; %w", err)
	}

	id := packID
	if id == "" {
		id = manifest.SanitizeID(filepath.Base(absDir))
	}
	title := packTitle
	if title == "" {
		title = filepath.Base(absDir)
	}

	packsDir := packPacksDir
	if packsDir == "" {
		packsDir = config.GetPath("index.dir")
	}
	index, err := manifest.OpenIndex(packsDir, config.GetString("matrix.homeserver_url"))
	if err != nil {
		return err
	}

	cache := publish.NewMemoryCache()
	if previous, ok, err := index.Pack(id); err != nil {
		logger.Warn("could not read previous manifest", "error", err)
	} else if ok {
		cache.Seed(previous.References())
	}

	store := matrix.NewClient(
		config.GetString("matrix.homeserver_url"),
		config.GetString("matrix.access_token"),
		matrix.WithTimeout(time.Duration(config.GetInt("matrix.upload_timeout_seconds"))*time.Second),
	)
	publisher := publish.NewPublisher(store, cache, publish.WithLogger(logger))

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return fmt.Errorf("failed to read directory; %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var stickers []manifest.Sticker
	var skipped int
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(filepath.Join(absDir, name))
		if err != nil {
			logger.Warn("failed to read asset; skipping", "file", name, "error", err)
			skipped++
			continue
		}

		if format.Detect(data, "") == format.Unknown {
			logger.Warn("unrecognized asset; skipping", "file", name)
			skipped++
			continue
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			logger.Warn("undecodable asset; skipping", "file", name, "error", err)
			skipped++
			continue
		}

		ref, err := publisher.Publish(ctx, data, format.DetectMIME(data))
		if err != nil {
			return fmt.Errorf("failed to publish %s; %w", name, err)
		}

		stickers = append(stickers, manifest.NewSticker(ref, cfg.Width, cfg.Height, manifest.BodyFromFilename(name)))
		logger.Info("asset published", "file", name, "uri", ref.URI)
	}

	if len(stickers) == 0 {
		return fmt.Errorf("no publishable assets in %s", absDir)
	}

	pack := &manifest.Pack{ID: id, Title: title, Stickers: stickers}
	if err := index.Merge(pack); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pack %q written to %s (%d stickers", id, index.Dir(), len(stickers))
	if skipped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d skipped", skipped)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ")")

	if skipped > 0 {
		return fmt.Errorf("pack %q packaged with %d skipped assets", id, skipped)
	}
	return nil
}
