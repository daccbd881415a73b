// Package main is the entry point for the daily tech digest CLI.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sawzhang/daily-tech-digest/config"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool

	cfg     *config.Config
	logger  *log.Logger
	logSink *os.File
)

// rootCmd is the base command for the digest CLI.
var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate and publish the daily AI tech digest",
	Long: `digest asks a web-search enabled model for today's AI news across the
configured keyword dimensions, saves the markdown and WeChat HTML reports under
output_dir, and publishes the HTML to a WeChat Official Account when
credentials are configured.

Run once with "digest run", on a daily schedule with "digest schedule", or
behind an HTTP API with "digest serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		l, err := newLogger(c.LogFile)
		if err != nil {
			return err
		}
		logger = l
		if c.File != "" {
			infof("using config file %s", c.File)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
			logSink = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./digest.yaml or ~/.config/daily-tech-digest/digest.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")
}

// newLogger writes to stderr and, when path is set, appends to that file too.
func newLogger(path string) (*log.Logger, error) {
	var w io.Writer = os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logSink = f
		w = io.MultiWriter(os.Stderr, f)
	}
	return log.New(w, "", log.LstdFlags|log.Lshortfile), nil
}

func infof(format string, args ...interface{}) {
	if !verbose {
		return
	}
	logger.Output(2, fmt.Sprintf("[INFO] "+format, args...))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
