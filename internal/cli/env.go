package cli

import (
	"fmt"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/interpolate"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/spf13/cobra"
)

func newEnvCommand(r *runner) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the environments of a project",
	}
	cmd.PersistentFlags().StringVar(&project, "project", "", "Project (defaults to the active project)")

	// withProject resolves the --project flag before calling fn.
	withProject := func(fn func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error) func(*cobra.Command, []string) error {
		return r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			p, err := findProject(a.Store().State(), project)
			if err != nil {
				return err
			}
			return fn(cmd, args, a, p)
		})
	}

	var envRef string
	// targetEnv is the --env flag, or the active environment.
	targetEnv := func(p *core.Project) (*core.Environment, error) {
		if envRef != "" {
			return findEnvironment(p, envRef)
		}
		if env := p.ActiveEnvironment(); env != nil {
			return env, nil
		}
		return nil, fmt.Errorf("project %q has no active environment", p.Name)
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a variable, updating the first one with the same key",
		Args:  cobra.ExactArgs(2),
		RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
			if err := workspace.ValidateVariableKey(args[0]); err != nil {
				return fmt.Errorf("invalid key: %w", err)
			}
			env, err := targetEnv(p)
			if err != nil {
				return err
			}
			for _, v := range env.Variables {
				if v.Key == args[0] {
					v.Value = args[1]
					v.Enabled = true
					a.Store().UpdateVariable(env.ID, v)
					return nil
				}
			}
			_, ok := a.Store().AddVariable(env.ID, args[0], args[1])
			return changed(ok, "set variable")
		}),
	}
	set.Flags().StringVar(&envRef, "env", "", "Environment (defaults to the active one)")

	unset := &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove every variable with the given key",
		Args:  cobra.ExactArgs(1),
		RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
			env, err := targetEnv(p)
			if err != nil {
				return err
			}
			removed := false
			for _, v := range env.Variables {
				if v.Key == args[0] {
					removed = a.Store().DeleteVariable(env.ID, v.ID) || removed
				}
			}
			return changed(removed, "unset "+args[0])
		}),
	}
	unset.Flags().StringVar(&envRef, "env", "", "Environment (defaults to the active one)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create an environment",
			Args:  cobra.ExactArgs(1),
			RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
				if err := workspace.ValidateName(args[0]); err != nil {
					return fmt.Errorf("invalid name: %w", err)
				}
				id, ok := a.Store().AddEnvironment(p.ID, args[0])
				if err := changed(ok, "add environment"); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List environments and their variables",
			Args:  cobra.NoArgs,
			RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
				out := cmd.OutOrStdout()
				for _, env := range p.Environments {
					marker := " "
					if env.ID == p.ActiveEnvironmentID {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, env.Name)
					for _, v := range env.Variables {
						state := ""
						if !v.Enabled {
							state = " (disabled)"
						}
						fmt.Fprintf(out, "    %s = %s%s\n", v.Key, v.Value, state)
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "use ENV",
			Short: "Activate an environment",
			Args:  cobra.ExactArgs(1),
			RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
				env, err := findEnvironment(p, args[0])
				if err != nil {
					return err
				}
				a.Store().SetActiveEnvironment(p.ID, env.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:     "rm ENV",
			Aliases: []string{"remove"},
			Short:   "Delete an environment; the last one is kept",
			Args:    cobra.ExactArgs(1),
			RunE: withProject(func(cmd *cobra.Command, args []string, a *app.App, p *core.Project) error {
				env, err := findEnvironment(p, args[0])
				if err != nil {
					return err
				}
				return changed(a.Store().DeleteEnvironment(p.ID, env.ID), "delete environment")
			}),
		},
		set,
		unset,
	)

	return cmd
}

func newResolveCommand(r *runner) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "resolve TEXT",
		Short: "Resolve {{variables}} against the active environment",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			p, err := findProject(a.Store().State(), project)
			if err != nil {
				return err
			}
			engine := interpolate.NewEngine(a.Store().ActiveVariables(p.ID))
			fmt.Fprintln(cmd.OutOrStdout(), engine.Resolve(args[0]))
			for _, name := range engine.Unknown(args[0]) {
				fmt.Fprintf(cmd.ErrOrStderr(), "unresolved: %s\n", name)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&project, "project", "", "Project (defaults to the active project)")
	return cmd
}
