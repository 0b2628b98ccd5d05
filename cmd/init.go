package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tabi-dev/tabi/internal/scaffold"
)

var initTitle string

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a new tabi site",
	Long: `Create the starter files for a new tabi site: a config file, a
package manifest, a document shell, a root layout, an index page and a
favicon. Existing files are left untouched, so init is safe to run in a
directory that already has some of them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initTitle, "title", "", "site title (default: derived from the directory name)")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	if len(args) == 1 {
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving project directory: %w", err)
		}
	}

	res, err := scaffold.Generate(dir, initTitle)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range res.Created {
		fmt.Fprintf(out, "  create %s\n", path)
	}
	for _, path := range res.Skipped {
		fmt.Fprintf(out, "  skip   %s (already exists)\n", path)
	}

	fmt.Fprintf(out, "\nSite ready in %s\n\nNext steps:\n", dir)
	if len(args) == 1 {
		fmt.Fprintf(out, "  cd %s\n", args[0])
	}
	fmt.Fprintln(out, "  npm install")
	fmt.Fprintln(out, "  tabi serve")

	return nil
}
