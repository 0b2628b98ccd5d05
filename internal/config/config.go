// Package config provides configuration management for tabi sites using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration comes from .tabi.yml, environment variable overrides
// with the TABI_ prefix, and bound cobra flags. Relative paths in the
// file are resolved against the project root: the directory holding the
// config file, or the working directory when no file was found.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tabi-dev/tabi/internal/errors"
)

// EnvPrefix is the environment variable namespace, TABI_SECTION_KEY.
const EnvPrefix = "TABI"

// FileName is the default config file basename (.tabi.yml).
const FileName = ".tabi"

// Config is the root configuration for one site.
type Config struct {
	Site   SiteConfig   `mapstructure:"site" yaml:"site"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Render RenderConfig `mapstructure:"render" yaml:"render"`
	Styles StylesConfig `mapstructure:"styles" yaml:"styles"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`

	// ProjectRoot is the absolute directory relative paths resolve
	// against. Derived at load time, never read from the file.
	ProjectRoot string `mapstructure:"-" yaml:"-"`

	// ConfigFile is the absolute path of the file the configuration was
	// read from, or "" when running on defaults. The dev server hands it
	// to isolated build workers so they load the same project settings.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// SiteConfig describes the content tree and the framework wiring.
type SiteConfig struct {
	// Pages is the content root holding page and layout files.
	Pages string `mapstructure:"pages" yaml:"pages"`
	// Public is the static-assets root served verbatim.
	Public string `mapstructure:"public" yaml:"public"`
	// BasePath is the URL prefix the site is served under ("" = root).
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
	// MarkdownClass wraps rendered markdown bodies.
	MarkdownClass string `mapstructure:"markdown_class" yaml:"markdown_class"`
	// JSXImportSource is the framework package the JSX transform targets.
	JSXImportSource string `mapstructure:"jsx_import_source" yaml:"jsx_import_source"`
	// RuntimeModule provides hydrate, the providers, and the markdown
	// placeholder component.
	RuntimeModule string `mapstructure:"runtime_module" yaml:"runtime_module"`
	// SSRExternals overrides the packages kept external in server
	// bundles. Empty derives them from the runtime and JSX source.
	SSRExternals []string `mapstructure:"ssr_externals" yaml:"ssr_externals,omitempty"`
}

// ServerConfig holds dev-server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// Open launches a browser once the server is listening.
	Open bool `mapstructure:"open" yaml:"open"`
	// Isolate builds every page in a fresh worker process instead of
	// in-process bundler sessions.
	Isolate bool `mapstructure:"isolate" yaml:"isolate"`
	// AllowedOrigins extends the hosts accepted on the live-reload
	// socket beyond the server's own addresses.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

// BuildConfig holds production build settings.
type BuildConfig struct {
	// OutDir receives the static site.
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

// RenderConfig configures the server-render harness subprocess.
type RenderConfig struct {
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StylesConfig configures the utility-CSS compiler subprocess.
type StylesConfig struct {
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load builds a Config from the global viper instance the CLI
// initialized.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from an explicit viper instance. The worker
// command uses this to read a project config file without touching CLI
// state.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"config did not decode: "+err.Error(),
		)
	}

	root, err := projectRoot(v)
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = root

	if used := v.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(used)
		if err != nil {
			return nil, errors.NewConfigError(
				errors.ErrCodeConfigInvalid,
				"config file path did not resolve: "+err.Error(),
			)
		}
		cfg.ConfigFile = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.pages", "pages")
	v.SetDefault("site.public", "public")
	v.SetDefault("site.base_path", "")
	v.SetDefault("site.markdown_class", "markdown-body")
	v.SetDefault("site.jsx_import_source", "preact")
	v.SetDefault("site.runtime_module", "@tabi/runtime")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7331)
	v.SetDefault("server.open", false)
	v.SetDefault("server.isolate", false)

	v.SetDefault("build.out_dir", "dist")

	v.SetDefault("render.command", "node")
	v.SetDefault("render.args", []string{"node_modules/@tabi/runtime/render.mjs"})
	v.SetDefault("render.timeout", 30*time.Second)

	v.SetDefault("styles.command", "unocss")
	v.SetDefault("styles.timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// projectRoot anchors relative paths at the config file's directory, or
// the working directory when no file was read.
func projectRoot(v *viper.Viper) (string, error) {
	if used := v.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(filepath.Dir(used))
		if err != nil {
			return "", errors.NewConfigError(
				errors.ErrCodeConfigInvalid,
				"config file directory did not resolve: "+err.Error(),
			)
		}

		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"working directory did not resolve: "+err.Error(),
		)
	}

	return cwd, nil
}

// PagesDir returns the absolute content root.
func (c *Config) PagesDir() string {
	return c.resolve(c.Site.Pages)
}

// PublicDir returns the absolute static-assets root.
func (c *Config) PublicDir() string {
	return c.resolve(c.Site.Public)
}

// OutDir returns the absolute production output root.
func (c *Config) OutDir() string {
	return c.resolve(c.Build.OutDir)
}

func (c *Config) resolve(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(c.ProjectRoot, path)
}

// SSRExternalList returns the packages kept external in server bundles.
// Without an override the standard set is derived from the runtime
// wiring, so a custom runtime module stays external too.
func (c *Config) SSRExternalList() []string {
	if len(c.Site.SSRExternals) > 0 {
		return c.Site.SSRExternals
	}

	return []string{
		c.Site.JSXImportSource,
		c.Site.JSXImportSource + "/*",
		c.Site.RuntimeModule,
	}
}

// ListenAddr is the host:port the dev server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// URL is the browser-facing address of the dev server, including the
// base path.
func (c *Config) URL() string {
	return "http://" + c.ListenAddr() + c.Site.BasePath
}

// Validate rejects configurations that could not serve a site or that
// smuggle dangerous values toward subprocess boundaries. Violations are
// configuration errors: the process refuses to start.
func (c *Config) Validate() error {
	if err := validatePathValue("site.pages", c.Site.Pages, true); err != nil {
		return err
	}
	if err := validatePathValue("site.public", c.Site.Public, false); err != nil {
		return err
	}
	if err := validatePathValue("build.out_dir", c.Build.OutDir, true); err != nil {
		return err
	}

	if err := validateBasePath(c.Site.BasePath); err != nil {
		return err
	}

	if c.Server.Host == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "server.host is empty")
	}
	if strings.ContainsAny(c.Server.Host, " \t\n\r/\\;|&$`") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"server.host contains invalid characters: "+c.Server.Host,
		)
	}

	// Port 0 is allowed: the listener picks a free port.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.port %d is out of range", c.Server.Port),
		)
	}

	for key, value := range map[string]string{
		"site.markdown_class":    c.Site.MarkdownClass,
		"site.jsx_import_source": c.Site.JSXImportSource,
		"site.runtime_module":    c.Site.RuntimeModule,
	} {
		if err := validateToken(key, value); err != nil {
			return err
		}
	}

	if c.Site.JSXImportSource == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "site.jsx_import_source is empty")
	}
	if c.Site.RuntimeModule == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "site.runtime_module is empty")
	}

	if c.Render.Command == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "render.command is empty")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"log.level must be debug, info, warn, or error: "+c.Log.Level,
		)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"log.format must be text or json: "+c.Log.Format,
		)
	}

	return nil
}

// validatePathValue keeps configured roots inert: no traversal, no null
// bytes, no shell metacharacters. Containment against the project root
// is enforced later by the components that write there.
func validatePathValue(key, value string, required bool) error {
	if value == "" {
		if required {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, key+" is empty")
		}

		return nil
	}

	if strings.Contains(value, "..") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			key+" must not contain path traversal: "+value,
		)
	}

	if strings.ContainsAny(value, "\x00\n\r;|&$`") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			key+" contains invalid characters: "+value,
		)
	}

	return nil
}

func validateBasePath(basePath string) error {
	if basePath == "" {
		return nil
	}

	if !strings.HasPrefix(basePath, "/") || strings.HasSuffix(basePath, "/") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			`site.base_path must start with "/" and not end with one: `+basePath,
		)
	}

	if strings.Contains(basePath, "..") || strings.ContainsAny(basePath, " \t\n\r\\") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			"site.base_path contains invalid characters: "+basePath,
		)
	}

	return nil
}

// validateToken rejects values that will be interpolated into generated
// source or subprocess argument lists.
func validateToken(key, value string) error {
	if strings.ContainsAny(value, "\x00\n\r\"'`;|&$<>") {
		return errors.NewConfigError(
			errors.ErrCodeConfigInvalid,
			key+" contains invalid characters: "+value,
		)
	}

	return nil
}
