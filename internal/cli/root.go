// Package cli wires configuration, logging and the harvest client into the
// cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	harvest "github.com/dkobozev/harvest-cli"
	"github.com/dkobozev/harvest-cli/internal/config"
	"github.com/dkobozev/harvest-cli/internal/logging"
)

// App holds what the commands need from the outside world. Zero values fall
// back to the process defaults.
type App struct {
	Out io.Writer
	Log io.Writer

	// Config locates the configuration layers; Explicit is overridden by
	// --config when given.
	Config config.Options

	// ClientOptions are appended to the options derived from configuration.
	ClientOptions []harvest.Option
}

type globalFlags struct {
	configPath string
	logLevel   string
	insecure   bool
}

// NewRootCommand builds the harvest command tree.
func NewRootCommand(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Log == nil {
		app.Log = os.Stderr
	}

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "harvest",
		Short:         "Log hours against a Harvest project from the command line",
		Version:       harvest.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errors.New("a command is required")
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Out)

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "extra configuration file overlaid on ~/.harvest and the nearest .harvest")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error or off")
	root.PersistentFlags().BoolVar(&flags.insecure, "insecure", false, "try plain HTTP before HTTPS")

	root.AddCommand(newLogCmd(app, flags))
	root.AddCommand(newShowCmd(app, flags))
	root.AddCommand(newVersionCmd(app))
	return root
}

// Execute runs the command tree with args and returns the first error.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// entryService resolves configuration and builds a service bound to the
// configured project and task. No request is made here.
func (a *App) entryService(flags *globalFlags) (*harvest.EntryService, error) {
	logger, err := logging.New(flags.logLevel, a.Log)
	if err != nil {
		return nil, err
	}

	opts := a.Config
	if flags.configPath != "" {
		opts.Explicit = flags.configPath
	}
	cfg, sources, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug().Strs("sources", sources).Msg("configuration loaded")

	clientOpts := []harvest.Option{
		harvest.WithSecure(cfg.Login.Secure && !flags.insecure),
		harvest.WithLogger(harvest.NewZerologLogger(logger)),
		harvest.WithDebug(),
	}
	clientOpts = append(clientOpts, a.ClientOptions...)

	client, err := harvest.New(cfg.Login.Domain, cfg.Login.Email, cfg.Login.Password, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return harvest.NewEntryService(client, cfg.Project.ProjectID, cfg.Project.TaskID), nil
}
