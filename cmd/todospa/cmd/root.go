// Package cmd holds the todospa command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/app"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// OsExit is swapped out by tests.
var OsExit = os.Exit

// PrintVersion returns the version line.
func PrintVersion() string {
	return fmt.Sprintf("todospa v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand creates the root command for the todospa binary.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "todospa",
		Short: "todospa - a route-driven todo client and its demo server",
		Long: `todospa runs a small todo client whose screen is a pure function of its
state, and the JSON:API server it talks to.`,
		Version:       PrintVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (yaml or toml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Log at debug level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger every subcommand uses.
func (o *rootOptions) load(cmd *cobra.Command) (app.Config, *logrus.Logger, todospa.Logger, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return app.Config{}, nil, nil, err
	}
	if o.debug {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	base := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return cfg, base, todospa.NewLogrusLogger(base), nil
}
