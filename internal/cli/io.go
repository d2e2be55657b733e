package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/exporter"
	"github.com/artpar/apiary/internal/importer"
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

func newImportCommand(r *runner) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a Postman, Insomnia, HAR, OpenAPI or curl file as a new project",
		Long: `Import a file as a new project and make it active. The format is detected
unless --format is given. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			content, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			result, id, err := a.Import(cmd.Context(), importer.Format(format), content)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q from %s: %d requests, %d folders, %d variables\n",
				result.Project.Name, result.SourceFormat, result.RequestCount, result.FolderCount, result.VariableCount)
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(importer.FormatAuto), "Format: auto, postman, insomnia, har, openapi or curl")
	return cmd
}

func newExportCommand(r *runner) *cobra.Command {
	var (
		project     string
		request     string
		output      string
		toClipboard bool
	)

	cmd := &cobra.Command{
		Use:   "export FORMAT",
		Short: "Export a project as postman, curl or openapi",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			format := exporter.Format(args[0])
			ctx := cmd.Context()

			var content []byte
			if request != "" {
				exp, ok := a.Exporters().Get(format)
				reqExp, single := exp.(exporter.RequestExporter)
				if !ok || !single {
					return fmt.Errorf("format %s cannot export a single request", format)
				}
				req, err := findRequest(a.Store().State(), request)
				if err != nil {
					return err
				}
				if content, err = reqExp.ExportRequest(ctx, req.Definition()); err != nil {
					return err
				}
			} else {
				st := a.Store().State()
				p, err := findProject(st, project)
				if err != nil {
					return err
				}
				result, err := a.Export(ctx, format, p.ID)
				if err != nil {
					return fmt.Errorf("failed to export %s: %w", format, err)
				}
				content = result.Content
			}

			if toClipboard {
				if err := writeClipboard(string(content)); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
			}

			if output != "" {
				if err := os.WriteFile(output, content, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(content), output)
				return nil
			}

			out := cmd.OutOrStdout()
			out.Write(content)
			if !strings.HasSuffix(string(content), "\n") {
				fmt.Fprintln(out)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&project, "project", "", "Project (defaults to the active project)")
	cmd.Flags().StringVarP(&request, "request", "r", "", "Export only this request (curl)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVarP(&toClipboard, "clipboard", "c", false, "Also copy the output to the clipboard")
	return cmd
}

// newCurlCommand imports a curl command line given as arguments.
func newCurlCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "curl [curl command arguments...]",
		Short: "Import a curl command as a new project",
		Long: `Parse a curl command and add it to the workspace as a new project.

Examples:
  apiary curl https://httpbin.org/get
  apiary curl -X POST https://httpbin.org/post -H "Content-Type: application/json" -d '{"name": "test"}'
  apiary curl -u admin:secret https://api.example.com/protected`,
		DisableFlagParsing: true,
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			if len(args) == 0 {
				return fmt.Errorf("no curl arguments provided")
			}

			quoted := make([]string, len(args))
			for i, arg := range args {
				quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
			}

			_, id, err := a.Import(cmd.Context(), importer.FormatCurl, []byte("curl "+strings.Join(quoted, " ")))
			if err != nil {
				return fmt.Errorf("failed to parse curl command: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
