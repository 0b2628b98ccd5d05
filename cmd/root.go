// Package cmd provides the tabi command-line interface.
//
// Configuration sources, highest priority first:
//
//  1. Command-line flags (--port, --out, ...)
//  2. Environment variables with the TABI_ prefix
//     (TABI_SERVER_PORT, TABI_SITE_PAGES, ...)
//  3. The config file: --config flag, then the TABI_CONFIG_FILE
//     environment variable, then .tabi.yml in the working directory
//  4. Built-in defaults
//
// A .env file in the working directory is loaded before the environment
// is read.
package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabi-dev/tabi/internal/config"
	"github.com/tabi-dev/tabi/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tabi",
	Short: "File-based static site builder with a live-reloading dev server",
	Long: `tabi builds static sites from a directory of .tsx, .jsx and .md pages.
Routes come from file locations, layouts nest by directory, and markdown
gets frontmatter and styling for free.

Quick start:
  tabi init my-site    Scaffold a new project
  tabi serve           Develop with on-demand builds and live reload
  tabi build           Emit the production site`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default .tabi.yml, or TABI_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text",
		"log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// initConfig points the global viper at the right config file and wires
// the environment. Reading is lazy: config.Load performs the actual read
// so commands that never touch config (version, init) skip it.
func initConfig() {
	// Missing .env files are the normal case.
	_ = godotenv.Load()

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv("TABI_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv("TABI_CONFIG_FILE"))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the resolved config file (if any) into the global
// viper and validates the result. A missing default config file is fine;
// an unreadable explicit one is not.
func loadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return config.Load()
}

// newLogger builds the process logger from the validated config.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
