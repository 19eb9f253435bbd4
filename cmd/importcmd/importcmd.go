// Package importcmd implements the import command: fetch a Telegram sticker
// set, convert and publish every sticker, and merge the resulting manifest
// into the pack index.
package importcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mxpack/mxpack/internal/config"
	"github.com/mxpack/mxpack/internal/convert"
	"github.com/mxpack/mxpack/internal/manifest"
	"github.com/mxpack/mxpack/internal/matrix"
	"github.com/mxpack/mxpack/internal/pipeline"
	"github.com/mxpack/mxpack/internal/publish"
	"github.com/mxpack/mxpack/internal/report"
	"github.com/mxpack/mxpack/internal/telegram"
)

var (
	importTitle    string
	importID       string
	importPacksDir string
	importWorkers  int
)

// ImportCmd imports a Telegram sticker set.
var ImportCmd = &cobra.Command{
	Use:   "import <set-name>",
	Short: "Import a Telegram sticker set",
	Long: "Import a Telegram sticker set.\n\n" +
		"Fetches the set's stickers in declared order, converts each one into " +
		"the canonical output format (PNG for stills, GIF for animations, " +
		"including TGS vector stickers), uploads converted assets to the " +
		"configured Matrix homeserver with content-hash deduplication, and " +
		"merges the pack manifest into the picker index.\n\n" +
		"A sticker that fails or has an unsupported format is reported and " +
		"skipped; the rest of the pack still imports. The exit code is non-zero " +
		"when any sticker did not make it into the manifest.",
	Example: `  # Import a sticker set by its share name
  mxpack import NekoAtsume

  # Import under a custom pack ID and title
  mxpack import NekoAtsume --id neko --title "Neko Atsume"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateImport,
	RunE:    runImport,
}

func init() {
	ImportCmd.Flags().StringVar(&importTitle, "title", "", "Override the pack display title")
	ImportCmd.Flags().StringVar(&importID, "id", "", "Override the pack identifier")
	ImportCmd.Flags().StringVar(&importPacksDir, "packs-dir", "", "Pack index directory (default from config)")
	ImportCmd.Flags().IntVar(&importWorkers, "workers", 0, "Concurrent stickers in flight (default from config)")
}

func validateImport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if config.GetString("telegram.bot_token") == "" {
		return fmt.Errorf("telegram.bot_token is not configured")
	}
	if config.GetString("matrix.homeserver_url") == "" || config.GetString("matrix.access_token") == "" {
		return fmt.Errorf("matrix.homeserver_url and matrix.access_token must be configured")
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setName := args[0]
	logger := slog.Default().With("set", setName)

	source := telegram.NewClient(config.GetString("telegram.bot_token"),
		telegram.WithAPIURL(config.GetString("telegram.api_url")),
		telegram.WithTimeout(time.Duration(config.GetInt("telegram.timeout_seconds"))*time.Second),
		telegram.WithRateLimit(config.GetFloat("telegram.requests_per_second")),
	)

	set, err := source.GetStickerSet(ctx, setName)
	if err != nil {
		return fmt.Errorf("failed to list sticker set %q; %w", setName, err)
	}

	packID := importID
	if packID == "" {
		packID = manifest.SanitizeID(set.Name)
	}
	title := importTitle
	if title == "" {
		title = set.Title
	}

	packsDir := importPacksDir
	if packsDir == "" {
		packsDir = config.GetPath("index.dir")
	}
	index, err := manifest.OpenIndex(packsDir, config.GetString("matrix.homeserver_url"))
	if err != nil {
		return err
	}

	cache, closeCache, err := openDedupCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	// References published by a prior run of this pack short-circuit the
	// upload even when the dedup cache file was lost.
	if previous, ok, err := index.Pack(packID); err != nil {
		logger.Warn("could not read previous manifest", "error", err)
	} else if ok {
		for digest, ref := range previous.References() {
			if err := cache.Put(ctx, digest, ref); err != nil {
				logger.Warn("failed to seed dedup cache", "digest", digest, "error", err)
				break
			}
		}
	}

	store := matrix.NewClient(
		config.GetString("matrix.homeserver_url"),
		config.GetString("matrix.access_token"),
		matrix.WithTimeout(time.Duration(config.GetInt("matrix.upload_timeout_seconds"))*time.Second),
	)
	publisher := publish.NewPublisher(store, cache,
		publish.WithLogger(logger),
		publish.WithRetryPolicy(publish.RetryPolicy{
			MaxAttempts: config.GetInt("import.max_attempts"),
			BaseDelay:   time.Duration(config.GetInt("import.retry_base_ms")) * time.Millisecond,
			MaxDelay:    5 * time.Second,
		}),
	)

	workers := importWorkers
	if workers <= 0 {
		workers = config.GetInt("import.workers")
	}
	importer := pipeline.NewImporter(
		stickerSource{source},
		convert.New(config.GetInt("import.bounding_box")),
		publisher,
		pipeline.WithWorkers(workers),
		pipeline.WithLogger(logger),
	)

	assets := make([]pipeline.Asset, len(set.Stickers))
	for i, s := range set.Stickers {
		assets[i] = pipeline.Asset{Ref: s.FileID, Annotation: s.Emoji}
	}

	summary, err := importer.Run(ctx, assets)
	if err != nil {
		return fmt.Errorf("import aborted; %w", err)
	}

	pack := &manifest.Pack{
		ID:       packID,
		Title:    title,
		Stickers: summary.Stickers(),
	}
	if err := index.Merge(pack); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render(packID, summary))
	if !summary.FullyUsable() {
		return fmt.Errorf("pack %q partially imported: %d skipped, %d failed", packID, summary.Skipped, summary.Failed)
	}
	return nil
}

// stickerSource adapts the Telegram client to the pipeline's Source.
type stickerSource struct {
	client *telegram.Client
}

func (s stickerSource) Fetch(ctx context.Context, assetRef string) ([]byte, string, error) {
	return s.client.Download(ctx, assetRef)
}

// openDedupCache builds the configured dedup cache backend.
func openDedupCache(ctx context.Context) (publish.Cache, func(), error) {
	switch backend := config.GetString("dedup.backend"); backend {
	case "redis":
		cache, err := publish.NewRedisCache(ctx,
			config.GetString("dedup.redis_addr"),
			config.GetString("dedup.redis_password"),
			config.GetInt("dedup.redis_db"))
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	case "file", "":
		cache, err := publish.OpenFileCache(config.GetPath("dedup.cache_file"))
		if err != nil {
			return nil, nil, err
		}
		return cache, func() {}, nil
	case "memory":
		return publish.NewMemoryCache(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown dedup backend %q", backend)
	}
}
