package cli

import (
	"fmt"
	"strings"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newFolderCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage folders",
	}

	var parent string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			if err := workspace.ValidateName(args[0]); err != nil {
				return fmt.Errorf("invalid name: %w", err)
			}
			folder, err := findFolder(a.Store().State(), parent)
			if err != nil {
				return err
			}
			id, ok := a.Store().AddFolder(folder.ID(), args[0])
			if err := changed(ok, "add folder"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	add.Flags().StringVarP(&parent, "parent", "p", "", "Parent folder (id or path; defaults to the project root)")

	cmd.AddCommand(add, newRenameCommand(r))
	return cmd
}

func newRenameCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ITEM NAME",
		Short: "Rename a folder or request",
		Args:  cobra.ExactArgs(2),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			if err := workspace.ValidateName(args[1]); err != nil {
				return fmt.Errorf("invalid name: %w", err)
			}
			item, err := findItem(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			return changed(a.Store().Rename(item.ID(), args[1]), "rename")
		}),
	}
}

// requestOptions are the definition fields request add and request set accept.
type requestOptions struct {
	method      string
	url         string
	headers     []string
	query       []string
	body        string
	contentType string
	basic       string
	bearer      string
	noAuth      bool
	description string
}

func (o *requestOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.method, "method", "X", "", "HTTP method")
	flags.StringVarP(&o.url, "url", "u", "", "Request URL; {{variables}} are kept")
	flags.StringArrayVarP(&o.headers, "header", "H", nil, "Header (format: Key:Value)")
	flags.StringArrayVarP(&o.query, "query", "q", nil, "Query parameter (format: key=value)")
	flags.StringVarP(&o.body, "body", "d", "", "Raw request body")
	flags.StringVar(&o.contentType, "content-type", "", "Content type of the raw body")
	flags.StringVar(&o.basic, "basic", "", "Basic auth (user:password)")
	flags.StringVar(&o.bearer, "bearer", "", "Bearer token")
	flags.BoolVar(&o.noAuth, "no-auth", false, "Remove auth")
	flags.StringVar(&o.description, "description", "", "Request description")
}

// apply copies the flags that were set onto def.
func (o *requestOptions) apply(cmd *cobra.Command, def *core.RequestDefinition) {
	flags := cmd.Flags()
	if flags.Changed("method") {
		def.Method = strings.ToUpper(o.method)
	}
	if flags.Changed("url") {
		def.URL = o.url
	}
	for _, h := range parseHeaders(o.headers) {
		def.SetHeader(h.Key, h.Value)
	}
	for _, q := range o.query {
		key, value, _ := strings.Cut(q, "=")
		def.SetQueryParam(key, value)
	}
	if flags.Changed("body") {
		def.Body = core.RawBody(o.body, o.contentType)
	} else if flags.Changed("content-type") && def.Body.Type == core.BodyRaw {
		def.Body.ContentType = o.contentType
	}
	if flags.Changed("basic") {
		user, pass, _ := strings.Cut(o.basic, ":")
		def.Auth = core.NewBasicAuth(user, pass)
	}
	if flags.Changed("bearer") {
		def.Auth = core.NewBearerAuth(o.bearer)
	}
	if o.noAuth {
		def.Auth = core.NoAuth()
	}
}

func newRequestCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage requests",
	}

	addOpts := &requestOptions{}
	var parent string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a request",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			if err := workspace.ValidateName(args[0]); err != nil {
				return fmt.Errorf("invalid name: %w", err)
			}
			folder, err := findFolder(a.Store().State(), parent)
			if err != nil {
				return err
			}
			id, ok := a.Store().AddRequest(folder.ID(), args[0])
			if err := changed(ok, "add request"); err != nil {
				return err
			}
			a.Store().UpdateRequest(id, func(def *core.RequestDefinition) {
				addOpts.apply(cmd, def)
			})
			if cmd.Flags().Changed("description") {
				a.Store().SetDescription(id, addOpts.description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	addOpts.register(add)
	add.Flags().StringVarP(&parent, "parent", "p", "", "Parent folder (id or path; defaults to the project root)")

	setOpts := &requestOptions{}
	set := &cobra.Command{
		Use:   "set REQUEST",
		Short: "Edit a request",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			req, err := findRequest(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			a.Store().UpdateRequest(req.ID(), func(def *core.RequestDefinition) {
				setOpts.apply(cmd, def)
			})
			if cmd.Flags().Changed("description") {
				a.Store().SetDescription(req.ID(), setOpts.description)
			}
			return nil
		}),
	}
	setOpts.register(set)

	var resolved bool
	show := &cobra.Command{
		Use:   "show REQUEST",
		Short: "Print a request definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			req, err := findRequest(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			def := req.Definition()
			if resolved {
				if def, err = a.Store().PrepareRequest(req.ID()); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(def); err != nil {
				return err
			}
			return enc.Close()
		}),
	}
	show.Flags().BoolVar(&resolved, "resolved", false, "Apply project defaults and resolve variables")

	save := &cobra.Command{
		Use:   "save REQUEST",
		Short: "Mark a request as saved",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			req, err := findRequest(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			a.Store().MarkSaved(req.ID())
			return nil
		}),
	}

	cmd.AddCommand(add, set, show, save)
	return cmd
}

func newMoveCommand(r *runner) *cobra.Command {
	var (
		index  int
		before string
		after  string
	)

	cmd := &cobra.Command{
		Use:   "mv ITEM [FOLDER]",
		Short: "Move an item into a folder, or next to another item",
		Args:  cobra.RangeArgs(1, 2),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			st := a.Store().State()
			item, err := findItem(st, args[0])
			if err != nil {
				return err
			}

			switch {
			case before != "":
				anchor, err := findItem(st, before)
				if err != nil {
					return err
				}
				return changed(a.Store().MoveBefore(item.ID(), anchor.ID()), "move")
			case after != "":
				anchor, err := findItem(st, after)
				if err != nil {
					return err
				}
				return changed(a.Store().MoveAfter(item.ID(), anchor.ID()), "move")
			}

			if len(args) < 2 {
				return fmt.Errorf("a target folder, --before or --after is required")
			}
			target, err := findFolder(st, args[1])
			if err != nil {
				return err
			}
			if index < 0 {
				index = target.Len()
			}
			return changed(a.Store().Move(item.ID(), target.ID(), index), "move")
		}),
	}

	cmd.Flags().IntVarP(&index, "index", "i", -1, "Position in the target folder (default: last)")
	cmd.Flags().StringVar(&before, "before", "", "Move directly before this item")
	cmd.Flags().StringVar(&after, "after", "", "Move directly after this item")
	return cmd
}

func newRemoveCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ITEM",
		Aliases: []string{"remove"},
		Short:   "Delete a folder or request",
		Args:    cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := findItem(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			return changed(a.Store().Delete(item.ID()), "delete")
		}),
	}
}

func newDuplicateCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "dup ITEM",
		Short: "Duplicate a folder or request next to itself",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := findItem(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			id, ok := a.Store().Duplicate(item.ID())
			if err := changed(ok, "duplicate"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
}

func newSortCommand(r *runner) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "sort [FOLDER]",
		Short: "Sort the children of a folder by name or method",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			folder, err := findFolder(a.Store().State(), ref)
			if err != nil {
				return err
			}

			var mode tree.SortMode
			switch strings.ToLower(by) {
			case "name", "alphabetical":
				mode = tree.SortAlphabetical
			case "method":
				mode = tree.SortMethod
			default:
				return fmt.Errorf("unknown sort order %q (use name or method)", by)
			}
			a.Store().Sort(folder.ID(), mode)
			return nil
		}),
	}

	cmd.Flags().StringVar(&by, "by", "name", "Sort order: name or method")
	return cmd
}

func newCopyCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "cp ITEM",
		Short: "Mark an item to be copied by the next paste",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := findItem(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			a.Store().Copy(item.ID())
			return nil
		}),
	}
}

func newCutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "cut ITEM",
		Short: "Mark an item to be moved by the next paste",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			item, err := findItem(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			a.Store().Cut(item.ID())
			return nil
		}),
	}
}

func newPasteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "paste [FOLDER]",
		Short: "Paste the copied or cut item into a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			st := a.Store().State()
			if st.Clipboard == nil {
				return fmt.Errorf("clipboard is empty")
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			folder, err := findFolder(st, ref)
			if err != nil {
				return err
			}
			id, ok := a.Store().Paste(folder.ID())
			if err := changed(ok, "paste"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
}

// parseHeaders converts "Key: Value" strings to enabled pairs, in order.
func parseHeaders(headerStrs []string) []core.KeyValue {
	var headers []core.KeyValue
	for _, h := range headerStrs {
		idx := strings.Index(h, ":")
		if idx == -1 {
			continue
		}
		headers = append(headers, core.KeyValue{
			Key:     strings.TrimSpace(h[:idx]),
			Value:   strings.TrimSpace(h[idx+1:]),
			Enabled: true,
		})
	}
	return headers
}
