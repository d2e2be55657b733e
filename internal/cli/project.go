package cli

import (
	"fmt"
	"strings"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/spf13/cobra"
)

func newProjectCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create a project and make it active",
			Args:  cobra.ExactArgs(1),
			RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
				if err := workspace.ValidateName(args[0]); err != nil {
					return fmt.Errorf("invalid name: %w", err)
				}
				id := a.Store().AddProject(args[0])
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
				st := a.Store().State()
				for _, p := range st.Projects {
					marker := " "
					if p.ID == st.ActiveProjectID {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%d requests\n",
						marker, p.ID, p.Name, len(tree.Requests(p.Root)))
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "use PROJECT",
			Short: "Make a project active",
			Args:  cobra.ExactArgs(1),
			RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
				p, err := findProject(a.Store().State(), args[0])
				if err != nil {
					return err
				}
				a.Store().SetActiveProject(p.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rename PROJECT NAME",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
				if err := workspace.ValidateName(args[1]); err != nil {
					return fmt.Errorf("invalid name: %w", err)
				}
				p, err := findProject(a.Store().State(), args[0])
				if err != nil {
					return err
				}
				return changed(a.Store().RenameProject(p.ID, args[1]), "rename project")
			}),
		},
		&cobra.Command{
			Use:     "rm PROJECT",
			Aliases: []string{"remove"},
			Short:   "Delete a project",
			Args:    cobra.ExactArgs(1),
			RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
				p, err := findProject(a.Store().State(), args[0])
				if err != nil {
					return err
				}
				return changed(a.Store().DeleteProject(p.ID), "delete project")
			}),
		},
		newProjectInfoCommand(r),
	)

	return cmd
}

func newProjectInfoCommand(r *runner) *cobra.Command {
	var (
		description string
		icon        string
		baseURL     string
		bearer      string
		basic       string
		noAuth      bool
	)

	cmd := &cobra.Command{
		Use:   "info [PROJECT]",
		Short: "Show or update the description, base URL and default auth of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			p, err := findProject(a.Store().State(), ref)
			if err != nil {
				return err
			}

			info := workspace.ProjectInfo{
				Description: p.Description,
				Icon:        p.Icon,
				BaseURL:     p.BaseURL,
				DefaultAuth: p.DefaultAuth,
			}
			flags := cmd.Flags()
			if flags.Changed("description") {
				info.Description = description
			}
			if flags.Changed("icon") {
				info.Icon = icon
			}
			if flags.Changed("base-url") {
				info.BaseURL = baseURL
			}
			if flags.Changed("bearer") {
				auth := core.NewBearerAuth(bearer)
				info.DefaultAuth = &auth
			}
			if flags.Changed("basic") {
				user, pass, _ := strings.Cut(basic, ":")
				auth := core.NewBasicAuth(user, pass)
				info.DefaultAuth = &auth
			}
			if noAuth {
				info.DefaultAuth = nil
			}

			updated := false
			for _, name := range []string{"description", "icon", "base-url", "bearer", "basic", "no-auth"} {
				updated = updated || flags.Changed(name)
			}
			if updated {
				if err := info.Validate(); err != nil {
					return err
				}
				a.Store().UpdateProjectInfo(p.ID, info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", p.ID)
			fmt.Fprintf(out, "name:        %s\n", p.Name)
			fmt.Fprintf(out, "description: %s\n", info.Description)
			fmt.Fprintf(out, "base url:    %s\n", info.BaseURL)
			if info.DefaultAuth != nil {
				fmt.Fprintf(out, "auth:        %s\n", info.DefaultAuth.DisplayName())
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&icon, "icon", "", "Project icon")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL prepended to relative request URLs")
	cmd.Flags().StringVar(&bearer, "bearer", "", "Default bearer token")
	cmd.Flags().StringVar(&basic, "basic", "", "Default basic auth (user:password)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Remove the default auth")
	return cmd
}
