// Package importer converts collections exported by other API clients into
// projects.
package importer

import (
	"context"
	"errors"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/tree"
)

// Common errors
var (
	ErrInvalidFormat      = errors.New("invalid format")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrParseError         = errors.New("parse error")
)

// Format represents a supported import format.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatPostman  Format = "postman"
	FormatInsomnia Format = "insomnia"
	FormatCurl     Format = "curl"
	FormatHAR      Format = "har"
	FormatOpenAPI  Format = "openapi"
)

// Importer converts one external format into a project. Every node,
// environment and variable of the result carries a fresh id.
type Importer interface {
	// Name returns the name of this importer.
	Name() string

	// Format returns the format this importer handles.
	Format() Format

	// FileExtensions returns the file extensions this importer can handle.
	FileExtensions() []string

	// DetectFormat checks if the content matches this importer's format.
	DetectFormat(content []byte) bool

	// Import parses the content and returns a project.
	Import(ctx context.Context, content []byte) (*core.Project, error)
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Project       *core.Project
	RequestCount  int
	FolderCount   int
	VariableCount int
	SourceFormat  Format
}

// Registry holds the registered importers in registration order, which is
// also the order auto-detection tries them in.
type Registry struct {
	importers []Importer
}

// NewRegistry creates a new importer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry registers every shipped importer with the given allocator.
func NewDefaultRegistry(alloc ident.Allocator) *Registry {
	r := NewRegistry()
	r.Register(NewPostmanImporter(alloc))
	r.Register(NewInsomniaImporter(alloc))
	r.Register(NewHARImporter(alloc))
	r.Register(NewOpenAPIImporter(alloc))
	r.Register(NewCurlImporter(alloc))
	return r
}

// Register adds an importer, replacing any importer of the same format.
func (r *Registry) Register(imp Importer) {
	for i, existing := range r.importers {
		if existing.Format() == imp.Format() {
			r.importers[i] = imp
			return
		}
	}
	r.importers = append(r.importers, imp)
}

// Get returns an importer by format.
func (r *Registry) Get(format Format) (Importer, bool) {
	for _, imp := range r.importers {
		if imp.Format() == format {
			return imp, true
		}
	}
	return nil, false
}

// Detect returns the first importer that recognizes the content.
func (r *Registry) Detect(content []byte) (Importer, bool) {
	for _, imp := range r.importers {
		if imp.DetectFormat(content) {
			return imp, true
		}
	}
	return nil, false
}

// DetectAndImport automatically detects the format and imports the content.
func (r *Registry) DetectAndImport(ctx context.Context, content []byte) (*ImportResult, error) {
	imp, ok := r.Detect(content)
	if !ok {
		return nil, ErrInvalidFormat
	}
	return run(ctx, imp, content)
}

// Import imports content using the specified format.
func (r *Registry) Import(ctx context.Context, format Format, content []byte) (*ImportResult, error) {
	if format == FormatAuto || format == "" {
		return r.DetectAndImport(ctx, content)
	}

	imp, ok := r.Get(format)
	if !ok {
		return nil, ErrInvalidFormat
	}
	return run(ctx, imp, content)
}

// ListFormats returns all registered formats.
func (r *Registry) ListFormats() []Format {
	formats := make([]Format, 0, len(r.importers))
	for _, imp := range r.importers {
		formats = append(formats, imp.Format())
	}
	return formats
}

func run(ctx context.Context, imp Importer, content []byte) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := imp.Import(ctx, content)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Project: p, SourceFormat: imp.Format()}
	tree.Walk(p.Root, func(item core.Item, _ *core.Folder) {
		if item.Kind() == core.KindFolder {
			result.FolderCount++
		} else {
			result.RequestCount++
		}
	})
	for _, env := range p.Environments {
		result.VariableCount += len(env.Variables)
	}
	return result, nil
}

// splitURL separates the query string of a raw URL into parameters without
// decoding, so placeholders survive untouched.
func splitURL(raw string) (string, []core.KeyValue) {
	base, query, found := strings.Cut(raw, "?")
	if !found || query == "" {
		return base, nil
	}

	var params []core.KeyValue
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params = append(params, core.KeyValue{Key: key, Value: value, Enabled: true})
	}
	return base, params
}

// nameFromURL derives a request name from the last path segment, falling
// back to the host.
func nameFromURL(rawURL string) string {
	name, _, _ := strings.Cut(rawURL, "?")
	if idx := strings.Index(name, "://"); idx >= 0 {
		name = name[idx+3:]
	}

	if idx := strings.Index(name, "/"); idx >= 0 {
		segments := strings.Split(strings.Trim(name[idx:], "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return last
		}
		name = name[:idx]
	}
	if idx := strings.Index(name, ":"); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		return "Request"
	}
	return name
}

// contentTypeForLanguage maps an editor language hint to a MIME type.
func contentTypeForLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "json":
		return "application/json"
	case "xml":
		return "application/xml"
	case "html":
		return "text/html"
	case "javascript":
		return "application/javascript"
	case "text":
		return "text/plain"
	}
	return ""
}
