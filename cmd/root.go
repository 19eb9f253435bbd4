// Package cmd wires the mxpack command tree.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mxpack/mxpack/cmd/configcmd"
	"github.com/mxpack/mxpack/cmd/importcmd"
	"github.com/mxpack/mxpack/cmd/packcmd"
	"github.com/mxpack/mxpack/cmd/version"
	"github.com/mxpack/mxpack/internal/config"
	"github.com/mxpack/mxpack/internal/logging"
)

// logManager is the process logging manager, created in init() in bootstrap
// mode and upgraded after config loads.
var logManager *logging.Manager

var mxpackCmd = &cobra.Command{
	Use:   "mxpack",
	Short: "Import sticker packs into a Matrix sticker picker",
	Long: "mxpack imports Telegram sticker packs, converts every sticker into a " +
		"canonical raster format (PNG stills, GIF animations), uploads the results " +
		"to a Matrix homeserver's media repository with content-hash deduplication, " +
		"and maintains the sticker picker's pack index.\n",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()

	mxpackCmd.AddCommand(importcmd.ImportCmd)
	mxpackCmd.AddCommand(packcmd.PackCmd)
	mxpackCmd.AddCommand(configcmd.ConfigCmd)
	mxpackCmd.AddCommand(version.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	levelStr := config.GetString("log_level")
	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		level = logging.DefaultLevel
		if levelStr != "" {
			logger.Warn("invalid log level configured, using default", "configured", levelStr, "default", "info")
		}
	}

	if err := logManager.Upgrade(config.GetPath("log_file"), level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	// Components default to slog.Default when no logger is injected.
	slog.SetDefault(logManager.Logger())

	return nil
}

func Execute() error {
	mxpackCmd.SilenceErrors = true
	mxpackCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := mxpackCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
