// Package cli implements the apiary command line.
package cli

import (
	"context"

	"github.com/artpar/apiary/internal/app"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dataDir string
	backend string
	debug   bool
	logFile string
}

// runner opens the application for one command invocation.
type runner struct {
	opts    *globalOptions
	appOpts []app.Option
}

// NewRootCommand creates the root command. appOpts are applied to every
// application the commands open.
func NewRootCommand(version string, appOpts ...app.Option) *cobra.Command {
	r := &runner{opts: &globalOptions{}, appOpts: appOpts}

	cmd := &cobra.Command{
		Use:           "apiary",
		Short:         "Apiary - an API workspace on the command line",
		Long:          "Apiary organizes HTTP requests into projects, folders and environments and sends them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&r.opts.dataDir, "data-dir", "", "Directory holding the workspace (env APIARY_DATA_DIR)")
	flags.StringVar(&r.opts.backend, "backend", "", "Storage backend: yaml, sqlite or memory (env APIARY_BACKEND)")
	flags.BoolVar(&r.opts.debug, "debug", false, "Enable debug logging (env APIARY_DEBUG)")
	flags.StringVar(&r.opts.logFile, "log-file", "", "Write the log to this file (env APIARY_LOG_FILE)")

	cmd.AddCommand(
		newTreeCommand(r),
		newProjectCommand(r),
		newFolderCommand(r),
		newRequestCommand(r),
		newMoveCommand(r),
		newRemoveCommand(r),
		newDuplicateCommand(r),
		newSortCommand(r),
		newCopyCommand(r),
		newCutCommand(r),
		newPasteCommand(r),
		newEnvCommand(r),
		newResolveCommand(r),
		newImportCommand(r),
		newExportCommand(r),
		newCurlCommand(r),
		newSendCommand(r),
		newHistoryCommand(r),
	)

	return cmd
}

// config overlays the flags that were set on the environment configuration.
func (r *runner) config(cmd *cobra.Command) app.Config {
	cfg := app.ConfigFromEnv()
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = r.opts.dataDir
	}
	if flags.Changed("backend") {
		cfg.Backend = app.Backend(r.opts.backend)
	}
	if flags.Changed("debug") {
		cfg.Debug = r.opts.debug
	}
	if flags.Changed("log-file") {
		cfg.LogFile = r.opts.logFile
	}
	return cfg
}

// run opens the application, calls fn and closes the application, saving
// whatever fn changed.
func (r *runner) run(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := app.New(ctx, r.config(cmd), r.appOpts...)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(ctx); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		return fn(cmd, args, a)
	}
}
