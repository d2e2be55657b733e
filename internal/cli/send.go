package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/apiary/internal/app"
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/spf13/cobra"
)

// SendOptions holds options for the send command.
type SendOptions struct {
	JSON    bool
	Headers bool
	NoBody  bool
}

func newSendCommand(r *runner) *cobra.Command {
	opts := &SendOptions{}

	cmd := &cobra.Command{
		Use:   "send REQUEST",
		Short: "Send a request and store its response",
		Long: `Resolve a request against its project's defaults and active environment,
send it, and attach the response to the request.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string, a *app.App) error {
			req, err := findRequest(a.Store().State(), args[0])
			if err != nil {
				return err
			}
			a.Store().SelectRequest(req.ID())

			resp, err := a.Store().Send(cmd.Context(), req.ID())
			if err != nil && (resp == nil || !errors.Is(err, workspace.ErrStaleResponse)) {
				return fmt.Errorf("request failed: %w", err)
			}

			if opts.JSON {
				return outputJSON(cmd, resp)
			}
			return outputHuman(cmd, resp, opts)
		}),
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output response as JSON")
	cmd.Flags().BoolVarP(&opts.Headers, "include", "i", false, "Print response headers")
	cmd.Flags().BoolVar(&opts.NoBody, "no-body", false, "Do not print the response body")

	return cmd
}

func outputJSON(cmd *cobra.Command, resp *core.Response) error {
	result := map[string]any{
		"status":      resp.Status,
		"status_text": resp.StatusText,
		"headers":     resp.Headers,
		"body":        string(resp.Body()),
		"timing":      resp.Timing,
		"redirects":   resp.Redirects,
		"renderers":   resp.Renderers,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputHuman(cmd *cobra.Command, resp *core.Response, opts *SendOptions) error {
	out := cmd.OutOrStdout()

	status := resp.StatusText
	if status == "" {
		status = strconv.Itoa(resp.Status)
	}
	status = strings.TrimSpace(resp.HTTPVersion + " " + status)
	fmt.Fprintln(out, statusStyle(resp.Status).Render(status))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Time: %.0fms  Size: %dB", resp.Timing.TotalMs, resp.ResponseSize.TotalBytes)))
	for _, hop := range resp.Redirects {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Redirect: %d %s", hop.Status, hop.URL)))
	}

	if opts.Headers {
		fmt.Fprintln(out)
		headers := append([]core.KeyValue(nil), resp.Headers...)
		sort.SliceStable(headers, func(i, j int) bool { return headers[i].Key < headers[j].Key })
		for _, h := range headers {
			fmt.Fprintf(out, "%s: %s\n", h.Key, h.Value)
		}
	}

	if body := resp.Body(); len(body) > 0 && !opts.NoBody {
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(body))
	}

	return nil
}
