package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabi-dev/tabi/internal/version"
)

var (
	versionShort  bool
	versionFormat string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tabi version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version string")
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text or json)")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	if versionShort {
		fmt.Fprintln(out, info.Short())

		return nil
	}

	switch versionFormat {
	case "text":
		fmt.Fprintf(out, "tabi %s\n", info.Short())
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "  platform: %s\n", info.Platform)
		if !info.BuildDate.IsZero() {
			fmt.Fprintf(out, "  built:    %s\n", info.BuildDate.Format("2006-01-02 15:04:05 MST"))
		}

		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(info)
	default:
		return fmt.Errorf("unsupported format %q (want text or json)", versionFormat)
	}
}
