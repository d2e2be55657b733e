package exporter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/apiary/internal/core"
)

// CurlExporter exports projects and requests to curl commands.
type CurlExporter struct {
	Pretty      bool // one option per line with continuations
	IncludeAuth bool
}

// NewCurlExporter creates a new curl exporter.
func NewCurlExporter() *CurlExporter {
	return &CurlExporter{
		Pretty:      true,
		IncludeAuth: true,
	}
}

func (c *CurlExporter) Name() string {
	return "curl command"
}

func (c *CurlExporter) Format() Format {
	return FormatCurl
}

func (c *CurlExporter) FileExtension() string {
	return ".sh"
}

// Export writes a shell script with one command per request, each preceded
// by a comment holding its folder path.
func (c *CurlExporter) Export(ctx context.Context, p *core.Project) ([]byte, error) {
	if p == nil || p.Root == nil {
		return nil, ErrInvalidProject
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "#!/bin/bash\n# Project: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&sb, "# %s\n", p.Description)
	}
	sb.WriteString("\n")

	if err := c.exportFolder(ctx, &sb, p.Root, nil); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func (c *CurlExporter) exportFolder(ctx context.Context, sb *strings.Builder, folder *core.Folder, path []string) error {
	for _, child := range folder.Children() {
		switch item := child.(type) {
		case *core.Folder:
			if err := c.exportFolder(ctx, sb, item, append(path, item.Name())); err != nil {
				return err
			}
		case *core.Request:
			if err := ctx.Err(); err != nil {
				return err
			}
			cmd, err := c.ExportRequest(ctx, item.Definition())
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "# %s\n", strings.Join(append(path, item.Name()), " / "))
			sb.Write(cmd)
			sb.WriteString("\n\n")
		}
	}
	return nil
}

// ExportRequest exports a single request to a curl command.
func (c *CurlExporter) ExportRequest(ctx context.Context, def core.RequestDefinition) ([]byte, error) {
	if def.URL == "" {
		return nil, fmt.Errorf("%w: request has no URL", ErrExportFailed)
	}

	var args [][]string
	add := func(parts ...string) { args = append(args, parts) }

	if def.Method != "GET" || !def.Body.IsEmpty() {
		add("-X", def.Method)
	}

	for _, h := range def.Headers {
		if h.Enabled && h.Key != "" {
			add("-H", h.Key+": "+h.Value)
		}
	}
	if ct := def.Body.ContentType; ct != "" && def.Header("Content-Type") == "" &&
		(def.Body.Type == core.BodyRaw || def.Body.Type == core.BodyBinary) {
		add("-H", "Content-Type: "+ct)
	}

	if cookies := cookieHeader(def.Cookies); cookies != "" {
		add("-b", cookies)
	}

	var extraQuery []core.KeyValue
	if c.IncludeAuth && def.Auth.IsConfigured() {
		switch def.Auth.Type {
		case core.AuthTypeBasic:
			add("-u", def.Auth.Username+":"+def.Auth.Password)
		case core.AuthTypeBearer:
			add("-H", "Authorization: Bearer "+def.Auth.Token)
		case core.AuthTypeAPIKey:
			if def.Auth.In == core.APIKeyInQuery {
				extraQuery = append(extraQuery, core.KeyValue{Key: def.Auth.Key, Value: def.Auth.Value, Enabled: true})
			} else {
				add("-H", def.Auth.Key+": "+def.Auth.Value)
			}
		}
	}

	switch def.Body.Type {
	case core.BodyRaw:
		if def.Body.Content != "" {
			add("--data-raw", def.Body.Content)
		}
	case core.BodyFormURLEncoded:
		for _, f := range def.Body.Fields {
			if f.Enabled {
				add("--data-urlencode", f.Key+"="+f.Value)
			}
		}
	case core.BodyMultipart:
		for _, part := range def.Body.Parts {
			value := part.Value
			if part.IsFile {
				value = "@" + part.Filename
				if part.ContentType != "" {
					value += ";type=" + part.ContentType
				}
			}
			add("-F", part.Name+"="+value)
		}
	case core.BodyBinary:
		if def.Body.Filename != "" {
			add("--data-binary", "@"+def.Body.Filename)
		}
	}

	s := def.Settings
	if s.ShouldFollowRedirects() {
		add("-L")
		if s.MaxRedirects > 0 {
			add("--max-redirs", strconv.Itoa(s.MaxRedirects))
		}
	}
	if !s.ShouldVerifyTLS() {
		add("-k")
	}
	if s.TimeoutMs > 0 {
		add("--max-time", strconv.FormatFloat(float64(s.TimeoutMs)/1000, 'f', -1, 64))
	}
	if s.Proxy != nil && s.Proxy.URL != "" {
		add("-x", s.Proxy.URL)
		if s.Proxy.Username != "" {
			add("-U", s.Proxy.Username+":"+s.Proxy.Password)
		}
	}
	if s.Protocol == core.ProtocolQUIC {
		add("--http3")
	}

	add(requestURL(def, extraQuery...))

	sep := " "
	if c.Pretty {
		sep = " \\\n  "
	}
	var sb strings.Builder
	sb.WriteString("curl")
	for _, group := range args {
		sb.WriteString(sep)
		for i, part := range group {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(shellQuote(part))
		}
	}
	return []byte(sb.String()), nil
}

// shellQuote wraps s in single quotes when the shell would otherwise
// interpret any of its characters.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'$`\\!*?[]{}()<>|&;#~=%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

var (
	_ Exporter        = (*CurlExporter)(nil)
	_ RequestExporter = (*CurlExporter)(nil)
)
