package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"e6pools/pkg/config"
	"e6pools/pkg/logger"
	"e6pools/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool

	// Download flags
	destDir     string
	cacheDir    string
	workers     int
	display     bool
	accountName string
	maxAttempts int
)

var rootCmd = &cobra.Command{
	Use:   "e6pools [flags] <id> [id...]",
	Short: "Download e621 pools as numbered WebP archives",
	Long: `e6pools downloads the posts of one or more pools, converts them to WebP
and packages each pool as <name>.zip in the destination directory.

Converted files are cached, so repeated runs only fetch new posts.
Credentials are optional and are read from E621_USER/E621_PASS, the
configuration file or the accounts stored with 'e6pools auth login'.`,
	Example: `  # Download two pools into the current directory
  e6pools 1234 5678

  # Download into a specific directory with a visible browser
  e6pools -d ./pools --display 1234`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		ui.SetQuiet(quiet)
	},
	RunE: runRoot,
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the command's context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	var ee *exitError
	if err != nil && (!errors.As(err, &ee) || ee.err != nil) {
		ui.PrintError("Error", err)
	}
	return exitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .e6pools.yaml or ~/.config/e6pools/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.Flags().StringVarP(&destDir, "dest", "d", "", "destination directory (default: current directory)")
	rootCmd.Flags().StringVar(&cacheDir, "cache", "", "cache directory (default: <executable dir>/cache)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent download and package tasks")
	rootCmd.Flags().BoolVar(&display, "display", false, "show the browser window")
	rootCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	rootCmd.Flags().IntVar(&maxAttempts, "max-attempts", -1, "navigation attempts per page, 0 retries forever")

	rootCmd.SetVersionTemplate(`e6pools {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}
	set("dest", destDir)
	set("cache", cacheDir)
	set("workers", workers)
	set("display", display)
	set("max-attempts", maxAttempts)
	set("account", accountName)
	set("notifications", notifications)
	set("log-level", logLevel)
	set("no-color", noColor)
	if verbose {
		flags["log-level"] = "debug"
	} else if quiet {
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Usage()
	}
	if f := cmd.Flags().Lookup("dest"); f != nil && f.Changed && strings.TrimSpace(destDir) == "" {
		ui.PrintError("Destination directory is empty")
		return nil
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	code := runDownload(cmd.Context(), cfg, ids)
	if code != exitOK {
		return withCode(code, nil)
	}
	return nil
}

// parseIDs converts the positional arguments to pool IDs.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid pool id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
