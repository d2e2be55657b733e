package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/storage"
	"github.com/artpar/apiary/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

// versionStore is a persister that keeps earlier workspace versions.
type versionStore interface {
	History(ctx context.Context) ([]sqlite.Version, error)
	LoadVersion(ctx context.Context, id int64) (*storage.Snapshot, error)
}

var errNoHistory = errors.New("the storage backend keeps no history, use --backend sqlite")

func versions(a *app.App) (versionStore, error) {
	vs, ok := a.Persister().(versionStore)
	if !ok {
		return nil, errNoHistory
	}
	return vs, nil
}

func newHistoryCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved workspace versions",
		Long: `List the workspace versions kept by the sqlite backend, newest first.
The newest version, marked with *, is the current workspace.`,
		Args: cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			vs, err := versions(a)
			if err != nil {
				return err
			}
			list, err := vs.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No saved versions"))
				return nil
			}
			for i, v := range list {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\t%s\t%d projects\t%d bytes\n",
					marker, v.ID, v.SavedAt.Local().Format("2006-01-02 15:04:05"), v.ProjectCount, v.Size)
			}
			return nil
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "restore VERSION",
		Short: "Replace the workspace with a saved version",
		Long: `Replace the whole workspace with a saved version. The restored workspace
is saved as a new version, so the replaced one stays in the history.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			vs, err := versions(a)
			if err != nil {
				return err
			}
			snap, err := vs.LoadVersion(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("version %d: %w", id, err)
			}
			if err := a.Store().Restore(snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored version %d: %d projects\n", id, len(snap.Projects))
			return nil
		}),
	})

	return cmd
}
