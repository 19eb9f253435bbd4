// Package version implements the version command.
package version

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the semantic version, overridable at build time with
// -ldflags "-X github.com/mxpack/mxpack/cmd/version.Version=...".
var Version = "dev"

// VersionCmd displays version and build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build information",
	Example: `  # Display version information
  mxpack version`,
	RunE: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	revision := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
				break
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mxpack %s (%s)\n", Version, revision)
	return nil
}
