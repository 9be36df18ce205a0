// Package cli implements the hwcomposer command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/pkg/buildinfo"
	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
	"github.com/matzehuels/hwcomposer/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "hwcomposer"

	// configEnv names a config file when --config is not given.
	configEnv = "HWCOMPOSER_CONFIG"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output; logs go to the logger's writer.
	Out io.Writer

	configPath string
	config     scenario.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		config: scenario.DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "hwcomposer decides how display layers reach the screen",
		Long: `hwcomposer runs display scenarios through a hardware composer decision
engine. Each frame's layers are assigned to hardware planes or to a
composer, the plan is committed to simulated hardware and the outcome is
reported as text, JSON or a diagram.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $"+configEnv+")")

	root.AddCommand(c.simulateCommand())
	root.AddCommand(c.dumpCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.reportsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	path := c.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg, err := scenario.LoadConfig(path)
	if err != nil {
		return err
	}
	c.config = cfg
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// runnerOpts selects the backends of a runner.
type runnerOpts struct {
	noCache bool
	// store opens the report store.
	store bool
	// memoryStore keeps reports in memory when no Mongo URI is configured.
	memoryStore bool
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, o runnerOpts) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, o.noCache)
	if err != nil {
		return nil, err
	}
	// A shared Redis cache may serve several releases with different
	// report layouts.
	var keyer cache.Keyer
	if _, shared := ch.(*cache.RedisCache); shared {
		keyer = cache.NewScopedKeyer(nil, buildinfo.Version+":")
	}
	var st store.Store
	if o.store {
		if st, err = c.newStore(ctx, o.memoryStore); err != nil {
			ch.Close()
			return nil, err
		}
	}
	return pipeline.NewRunner(ch, keyer, st, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache || c.config.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	if c.config.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, c.config.Redis)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache", "addr", c.config.Redis.Addr)
		return rc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

func (c *CLI) newStore(ctx context.Context, memory bool) (store.Store, error) {
	if m := c.config.Mongo; m.URI != "" {
		c.Logger.Debug("using mongo store", "database", m.Database, "collection", m.Collection)
		return store.NewMongoStore(ctx, store.MongoOptions{
			URI:        m.URI,
			Database:   m.Database,
			Collection: m.Collection,
		})
	}
	if memory {
		return store.NewMemoryStore(), nil
	}
	return store.NewFileStore("")
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory or the XDG default
// (~/.cache/hwcomposer/).
func (c *CLI) cacheDir() (string, error) {
	if c.config.Cache.Dir != "" {
		return c.config.Cache.Dir, nil
	}
	return cacheDir()
}

func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
