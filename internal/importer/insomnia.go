package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"gopkg.in/yaml.v3"
)

// insomniaTemplate matches Insomnia template tags such as {{ _.base_url }}.
var insomniaTemplate = regexp.MustCompile(`\{\{\s*(?:_\.)?([A-Za-z0-9_\-.$]+)\s*\}\}`)

// InsomniaImporter imports Insomnia v4 exports in JSON or YAML form.
type InsomniaImporter struct {
	alloc ident.Allocator
}

// NewInsomniaImporter creates a new Insomnia importer.
func NewInsomniaImporter(alloc ident.Allocator) *InsomniaImporter {
	return &InsomniaImporter{alloc: ident.OrDefault(alloc)}
}

func (i *InsomniaImporter) Name() string {
	return "Insomnia Export"
}

func (i *InsomniaImporter) Format() Format {
	return FormatInsomnia
}

func (i *InsomniaImporter) FileExtensions() []string {
	return []string{".json", ".yaml", ".yml"}
}

func (i *InsomniaImporter) DetectFormat(content []byte) bool {
	export, err := decodeInsomnia(content)
	return err == nil && export.Type == "export" && export.ExportFormat > 0
}

func (i *InsomniaImporter) Import(ctx context.Context, content []byte) (*core.Project, error) {
	export, err := decodeInsomnia(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	if export.Type != "export" {
		return nil, ErrInvalidFormat
	}
	if export.ExportFormat < 4 {
		return nil, fmt.Errorf("%w: export format %d", ErrUnsupportedVersion, export.ExportFormat)
	}

	var workspace *insomniaResource
	children := make(map[string][]*insomniaResource)
	var environments []*insomniaResource
	for idx := range export.Resources {
		r := &export.Resources[idx]
		switch r.Type {
		case "workspace":
			if workspace == nil {
				workspace = r
			}
		case "request_group", "request":
			children[r.ParentID] = append(children[r.ParentID], r)
		case "environment":
			environments = append(environments, r)
		}
	}
	if workspace == nil {
		return nil, fmt.Errorf("%w: no workspace resource", ErrInvalidFormat)
	}

	name := workspace.Name
	if name == "" {
		name = "Insomnia Import"
	}
	project := core.NewProject(i.alloc, name)
	project.Description = workspace.Description

	if envs := i.convertEnvironments(workspace.ID, environments); len(envs) > 0 {
		project.Environments = envs
		project.ActiveEnvironmentID = envs[0].ID
	}

	visited := make(map[string]bool)
	if err := i.importChildren(ctx, project.Root, workspace.ID, children, visited); err != nil {
		return nil, err
	}
	return project, nil
}

func (i *InsomniaImporter) importChildren(ctx context.Context, parent *core.Folder, parentID string, children map[string][]*insomniaResource, visited map[string]bool) error {
	if visited[parentID] {
		return nil
	}
	visited[parentID] = true

	items := children[parentID]
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].MetaSortKey < items[b].MetaSortKey
	})

	for _, r := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Type == "request_group" {
			folder := core.NewFolder(i.alloc.NewID(), r.Name)
			if err := i.importChildren(ctx, folder, r.ID, children, visited); err != nil {
				return err
			}
			parent.Append(folder)
			continue
		}

		req := core.NewRequest(i.alloc.NewID(), r.Name, "", "")
		req.SetDescription(r.Description)
		req.SetDefinition(convertInsomniaRequest(r))
		parent.Append(req)
	}
	return nil
}

// convertEnvironments keeps the base environment first, followed by its
// sub-environments in sort order.
func (i *InsomniaImporter) convertEnvironments(workspaceID string, resources []*insomniaResource) []*core.Environment {
	var base []*insomniaResource
	var sub []*insomniaResource
	for _, r := range resources {
		if r.ParentID == workspaceID {
			base = append(base, r)
		} else {
			sub = append(sub, r)
		}
	}
	sort.SliceStable(sub, func(a, b int) bool {
		return sub[a].MetaSortKey < sub[b].MetaSortKey
	})

	var out []*core.Environment
	for _, r := range append(base, sub...) {
		name := r.Name
		if name == "" {
			name = core.DefaultEnvironmentName
		}
		env := core.NewEnvironment(i.alloc.NewID(), name)

		keys := make([]string, 0, len(r.Data))
		for k := range r.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env.Variables = append(env.Variables, core.Variable{
				ID:      i.alloc.NewID(),
				Key:     k,
				Value:   environmentValue(r.Data[k]),
				Enabled: true,
			})
		}
		out = append(out, env)
	}
	return out
}

func convertInsomniaRequest(r *insomniaResource) core.RequestDefinition {
	def := core.NewRequestDefinition(r.Method, "")
	def.URL, def.QueryParams = splitURL(templateText(r.URL))

	for _, p := range r.Parameters {
		def.QueryParams = append(def.QueryParams, core.KeyValue{
			Key:     templateText(p.Name),
			Value:   templateText(p.Value),
			Enabled: !p.Disabled,
		})
	}
	for _, h := range r.Headers {
		def.Headers = append(def.Headers, core.KeyValue{
			Key:     templateText(h.Name),
			Value:   templateText(h.Value),
			Enabled: !h.Disabled,
		})
	}

	def.Body = convertInsomniaBody(r.Body)
	if r.Authentication != nil && !r.Authentication.Disabled {
		def.Auth = convertInsomniaAuth(r.Authentication)
	}
	return def
}

func convertInsomniaBody(b *insomniaBody) core.Body {
	if b == nil {
		return core.NoBody()
	}

	switch {
	case strings.HasPrefix(b.MimeType, "application/x-www-form-urlencoded"):
		body := core.Body{Type: core.BodyFormURLEncoded}
		for _, p := range b.Params {
			body.Fields = append(body.Fields, core.KeyValue{
				Key:     templateText(p.Name),
				Value:   templateText(p.Value),
				Enabled: !p.Disabled,
			})
		}
		return body

	case strings.HasPrefix(b.MimeType, "multipart/form-data"):
		body := core.Body{Type: core.BodyMultipart}
		for _, p := range b.Params {
			if p.Disabled {
				continue
			}
			part := core.MultipartPart{Name: templateText(p.Name)}
			if p.Type == "file" {
				part.IsFile = true
				part.Filename = p.FileName
			} else {
				part.Value = templateText(p.Value)
			}
			body.Parts = append(body.Parts, part)
		}
		return body

	case b.FileName != "":
		return core.Body{Type: core.BodyBinary, Filename: b.FileName, ContentType: b.MimeType}

	case b.Text != "":
		return core.RawBody(templateText(b.Text), b.MimeType)
	}
	return core.NoBody()
}

func convertInsomniaAuth(a *insomniaAuth) core.Auth {
	switch a.Type {
	case "basic":
		return core.NewBasicAuth(templateText(a.Username), templateText(a.Password))
	case "bearer":
		return core.NewBearerAuth(templateText(a.Token))
	case "apikey":
		in := core.APIKeyInHeader
		if a.AddTo == "queryParams" {
			in = core.APIKeyInQuery
		}
		return core.NewAPIKeyAuth(templateText(a.Key), templateText(a.Value), in)
	}
	return core.NoAuth()
}

// templateText rewrites Insomnia template tags to plain placeholders.
func templateText(s string) string {
	return insomniaTemplate.ReplaceAllString(s, "{{$1}}")
}

func environmentValue(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return scalarText(v)
}

// decodeInsomnia reads a JSON export, falling back to YAML.
func decodeInsomnia(content []byte) (*insomniaExport, error) {
	var export insomniaExport
	if err := json.Unmarshal(content, &export); err == nil {
		return &export, nil
	}
	if err := yaml.Unmarshal(content, &export); err != nil {
		return nil, err
	}
	return &export, nil
}

// Insomnia export format structures

type insomniaExport struct {
	Type         string             `json:"_type" yaml:"_type"`
	ExportFormat int                `json:"__export_format" yaml:"__export_format"`
	Resources    []insomniaResource `json:"resources" yaml:"resources"`
}

type insomniaResource struct {
	ID             string                 `json:"_id" yaml:"_id"`
	Type           string                 `json:"_type" yaml:"_type"`
	ParentID       string                 `json:"parentId" yaml:"parentId"`
	Name           string                 `json:"name" yaml:"name"`
	Description    string                 `json:"description,omitempty" yaml:"description,omitempty"`
	MetaSortKey    float64                `json:"metaSortKey,omitempty" yaml:"metaSortKey,omitempty"`
	Method         string                 `json:"method,omitempty" yaml:"method,omitempty"`
	URL            string                 `json:"url,omitempty" yaml:"url,omitempty"`
	Body           *insomniaBody          `json:"body,omitempty" yaml:"body,omitempty"`
	Parameters     []insomniaPair         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Headers        []insomniaPair         `json:"headers,omitempty" yaml:"headers,omitempty"`
	Authentication *insomniaAuth          `json:"authentication,omitempty" yaml:"authentication,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

type insomniaBody struct {
	MimeType string         `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Text     string         `json:"text,omitempty" yaml:"text,omitempty"`
	FileName string         `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	Params   []insomniaPair `json:"params,omitempty" yaml:"params,omitempty"`
}

type insomniaPair struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	FileName string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
}

type insomniaAuth struct {
	Type     string `json:"type" yaml:"type"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	AddTo    string `json:"addTo,omitempty" yaml:"addTo,omitempty"`
}

var _ Importer = (*InsomniaImporter)(nil)
