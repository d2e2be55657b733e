// Package exporter converts projects into formats other API clients and
// tools understand.
package exporter

import (
	"context"
	"errors"
	"strings"

	"github.com/artpar/apiary/internal/core"
)

// Common errors
var (
	ErrInvalidProject = errors.New("invalid project")
	ErrExportFailed   = errors.New("export failed")
)

// Format represents a supported export format.
type Format string

const (
	FormatPostman Format = "postman"
	FormatCurl    Format = "curl"
	FormatOpenAPI Format = "openapi"
)

// Exporter defines the interface for exporting projects to external formats.
type Exporter interface {
	// Name returns the name of this exporter.
	Name() string

	// Format returns the format this exporter produces.
	Format() Format

	// FileExtension returns the file extension for exported files.
	FileExtension() string

	// Export converts the project to the target format.
	Export(ctx context.Context, p *core.Project) ([]byte, error)
}

// RequestExporter exports individual requests.
type RequestExporter interface {
	// ExportRequest exports a single request definition.
	ExportRequest(ctx context.Context, def core.RequestDefinition) ([]byte, error)
}

// ExportResult contains the result of an export operation.
type ExportResult struct {
	Content       []byte
	Format        Format
	FileExtension string
}

// Registry holds all registered exporters.
type Registry struct {
	exporters map[Format]Exporter
	order     []Format
}

// NewRegistry creates a new exporter registry.
func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[Format]Exporter),
	}
}

// NewDefaultRegistry registers every shipped exporter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPostmanExporter())
	r.Register(NewCurlExporter())
	r.Register(NewOpenAPIExporter())
	return r
}

// Register adds an exporter to the registry.
func (r *Registry) Register(exp Exporter) {
	if _, ok := r.exporters[exp.Format()]; !ok {
		r.order = append(r.order, exp.Format())
	}
	r.exporters[exp.Format()] = exp
}

// Get returns an exporter by format.
func (r *Registry) Get(format Format) (Exporter, bool) {
	exp, ok := r.exporters[format]
	return exp, ok
}

// Export exports the project using the specified format.
func (r *Registry) Export(ctx context.Context, format Format, p *core.Project) (*ExportResult, error) {
	exp, ok := r.exporters[format]
	if !ok {
		return nil, ErrExportFailed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := exp.Export(ctx, p)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Content:       content,
		Format:        format,
		FileExtension: exp.FileExtension(),
	}, nil
}

// ListFormats returns all registered formats in registration order.
func (r *Registry) ListFormats() []Format {
	return append([]Format(nil), r.order...)
}

// requestURL appends the enabled query parameters to the URL verbatim, so
// placeholders are not escaped.
func requestURL(def core.RequestDefinition, extra ...core.KeyValue) string {
	var pairs []string
	for _, q := range append(append([]core.KeyValue(nil), def.QueryParams...), extra...) {
		if !q.Enabled {
			continue
		}
		pairs = append(pairs, q.Key+"="+q.Value)
	}
	if len(pairs) == 0 {
		return def.URL
	}
	sep := "?"
	if strings.Contains(def.URL, "?") {
		sep = "&"
	}
	return def.URL + sep + strings.Join(pairs, "&")
}

// bodyContentType returns the content type a body implies.
func bodyContentType(b core.Body) string {
	switch b.Type {
	case core.BodyRaw, core.BodyBinary:
		return b.ContentType
	case core.BodyFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case core.BodyMultipart:
		return "multipart/form-data"
	}
	return ""
}

// languageForContentType maps a MIME type to Postman's raw language hint.
func languageForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "json"):
		return "json"
	case strings.Contains(contentType, "xml"):
		return "xml"
	case strings.Contains(contentType, "html"):
		return "html"
	case strings.Contains(contentType, "javascript"):
		return "javascript"
	}
	return "text"
}

// cookieHeader joins named cookies into a Cookie header value.
func cookieHeader(cookies []core.Cookie) string {
	var pairs []string
	for _, ck := range cookies {
		if ck.Name != "" {
			pairs = append(pairs, ck.Name+"="+ck.Value)
		}
	}
	return strings.Join(pairs, "; ")
}
