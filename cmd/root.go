package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/smartcast/lint"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	debug   bool

	logger *zap.Logger
	config lint.Config
)

var rootCmd = &cobra.Command{
	Use:               "smartcast [packages...]",
	Short:             "smartcast - flow-sensitive nil check and type assertion analysis",
	TraverseChildren:  true, // Prioritize subcommands
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}
		// smartcast [packages...] => behaves like the check subcommand
		checkCmd.Run(checkCmd, args)
	},
}

func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", lint.DefaultConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Set a timeout for the whole run")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	logger, err = newLogger(debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())

	config, err = loadConfig(cfgFile)
	return err
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads path. A missing file at the default location means the
// defaults; a missing file named explicitly is an error.
func loadConfig(path string) (lint.Config, error) {
	cfg, err := lint.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == lint.DefaultConfigPath {
			return lint.DefaultConfig(), nil
		}
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
