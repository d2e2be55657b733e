package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/spf13/cobra"
)

func newTreeCommand(r *runner) *cobra.Command {
	var (
		showIDs bool
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "tree [PROJECT]",
		Short: "Show the folders and requests of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			st := a.Store().State()
			if all {
				for i, p := range st.Projects {
					if i > 0 {
						fmt.Fprintln(cmd.OutOrStdout())
					}
					renderProject(cmd.OutOrStdout(), st, p, showIDs)
				}
				return nil
			}

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			p, err := findProject(st, ref)
			if err != nil {
				return err
			}
			renderProject(cmd.OutOrStdout(), st, p, showIDs)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show item ids")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show every project")
	return cmd
}

// renderProject writes the project header and its tree.
func renderProject(w io.Writer, st *workspace.State, p *core.Project, showIDs bool) {
	header := projectStyle.Render(p.Name)
	if p.ID == st.ActiveProjectID {
		header += " " + dimStyle.Render("(active)")
	}
	if env := p.ActiveEnvironment(); env != nil {
		header += " " + dimStyle.Render("env: "+env.Name)
	}
	if showIDs {
		header += " " + dimStyle.Render(p.ID)
	}
	fmt.Fprintln(w, header)
	renderChildren(w, st, p.Root, "", showIDs)
}

func renderChildren(w io.Writer, st *workspace.State, folder *core.Folder, prefix string, showIDs bool) {
	children := folder.Children()
	for i, child := range children {
		last := i == len(children)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}

		var line strings.Builder
		line.WriteString(prefix)
		line.WriteString(dimStyle.Render(branch))

		switch item := child.(type) {
		case *core.Folder:
			marker := "▸ "
			if item.Expanded() {
				marker = "▾ "
			}
			line.WriteString(marker + folderStyle.Render(item.Name()))
		case *core.Request:
			name := item.Name()
			if item.ID() == st.ActiveRequestID {
				name = activeStyle.Render(name)
			}
			line.WriteString(methodBadge(item.Method()) + " " + name)
			if st.IsDirty(item.ID()) {
				line.WriteString(dirtyStyle.Render(" *"))
			}
			if resp := item.Response(); resp != nil {
				line.WriteString(" " + statusStyle(resp.Status).Render(fmt.Sprint(resp.Status)))
			}
		}

		if st.Clipboard != nil && st.Clipboard.ItemID == child.ID() {
			line.WriteString(" " + dimStyle.Render("["+string(st.Clipboard.Mode)+"]"))
		}
		if showIDs {
			line.WriteString(" " + dimStyle.Render(child.ID()))
		}
		fmt.Fprintln(w, line.String())

		if sub, ok := child.(*core.Folder); ok {
			renderChildren(w, st, sub, prefix+dimStyle.Render(indent), showIDs)
		}
	}
}
