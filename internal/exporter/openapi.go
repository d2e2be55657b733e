package exporter

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"gopkg.in/yaml.v3"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// OpenAPIExporter exports projects to an OpenAPI 3.0 YAML document. Folders
// become tags and placeholders in paths become path parameters.
type OpenAPIExporter struct{}

// NewOpenAPIExporter creates a new OpenAPI exporter.
func NewOpenAPIExporter() *OpenAPIExporter {
	return &OpenAPIExporter{}
}

func (o *OpenAPIExporter) Name() string {
	return "OpenAPI 3.0"
}

func (o *OpenAPIExporter) Format() Format {
	return FormatOpenAPI
}

func (o *OpenAPIExporter) FileExtension() string {
	return ".openapi.yaml"
}

func (o *OpenAPIExporter) Export(ctx context.Context, p *core.Project) ([]byte, error) {
	if p == nil || p.Root == nil {
		return nil, ErrInvalidProject
	}

	spec := openAPISpec{
		OpenAPI: "3.0.3",
		Info: openAPIInfo{
			Title:       p.Name,
			Description: p.Description,
			Version:     "1.0.0",
		},
		Paths: make(map[string]map[string]*openAPIOperation),
	}

	if p.BaseURL != "" {
		spec.Servers = []openAPIServer{{URL: placeholderPattern.ReplaceAllString(p.BaseURL, "{$1}")}}
	}

	if p.DefaultAuth != nil {
		if name, scheme, ok := securityScheme(*p.DefaultAuth); ok {
			spec.addScheme(name, scheme)
			spec.Security = []map[string][]string{{name: {}}}
		}
	}

	tags := make(map[string]bool)
	var walk func(folder *core.Folder, tag string) error
	walk = func(folder *core.Folder, tag string) error {
		for _, child := range folder.Children() {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch item := child.(type) {
			case *core.Folder:
				sub := item.Name()
				if tag != "" {
					sub = tag + "/" + sub
				}
				tags[sub] = true
				if err := walk(item, sub); err != nil {
					return err
				}
			case *core.Request:
				spec.addRequest(item, tag, p.BaseURL)
			}
		}
		return nil
	}
	if err := walk(p.Root, ""); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec.Tags = append(spec.Tags, openAPITag{Name: name})
	}

	return yaml.Marshal(spec)
}

func (s *openAPISpec) addScheme(name string, scheme openAPISecurityScheme) {
	if s.Components == nil {
		s.Components = &openAPIComponents{SecuritySchemes: make(map[string]openAPISecurityScheme)}
	}
	s.Components.SecuritySchemes[name] = scheme
}

func (s *openAPISpec) addRequest(req *core.Request, tag, baseURL string) {
	def := req.Definition()
	path := operationPath(def.URL, baseURL)

	op := &openAPIOperation{
		Summary:     req.Name(),
		Description: req.Description(),
		OperationID: operationID(def.Method, path, req.Name()),
		Responses:   map[string]openAPIResponse{},
	}
	if tag != "" {
		op.Tags = []string{tag}
	}

	for _, name := range pathParams(path) {
		op.Parameters = append(op.Parameters, openAPIParameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &openAPISchema{Type: "string"},
		})
	}
	for _, q := range def.QueryParams {
		if !q.Enabled {
			continue
		}
		op.Parameters = append(op.Parameters, openAPIParameter{
			Name:    q.Key,
			In:      "query",
			Schema:  &openAPISchema{Type: "string"},
			Example: q.Value,
		})
	}
	for _, h := range def.Headers {
		if !h.Enabled || strings.EqualFold(h.Key, "Content-Type") || strings.EqualFold(h.Key, "Authorization") {
			continue
		}
		op.Parameters = append(op.Parameters, openAPIParameter{
			Name:    h.Key,
			In:      "header",
			Schema:  &openAPISchema{Type: "string"},
			Example: h.Value,
		})
	}
	for _, c := range def.Cookies {
		if c.Name == "" {
			continue
		}
		op.Parameters = append(op.Parameters, openAPIParameter{
			Name:    c.Name,
			In:      "cookie",
			Schema:  &openAPISchema{Type: "string"},
			Example: c.Value,
		})
	}

	if body := requestBody(def); body != nil {
		op.RequestBody = body
	}

	if def.Auth.Type != core.AuthTypeNone {
		if name, scheme, ok := securityScheme(def.Auth); ok {
			s.addScheme(name, scheme)
			op.Security = []map[string][]string{{name: {}}}
		}
	}

	if resp := req.Response(); resp != nil && resp.Status > 0 {
		r := openAPIResponse{Description: resp.StatusText}
		if r.Description == "" {
			r.Description = "Recorded response"
		}
		if ct := mediaType(resp.Header("Content-Type")); ct != "" {
			body := string(resp.Body())
			r.Content = map[string]openAPIMediaType{
				ct: {Schema: inferSchema(body, ct), Example: parseExample(body, ct)},
			}
		}
		op.Responses[strconv.Itoa(resp.Status)] = r
	} else {
		op.Responses["200"] = openAPIResponse{Description: "Successful response"}
	}

	if s.Paths[path] == nil {
		s.Paths[path] = make(map[string]*openAPIOperation)
	}
	s.Paths[path][strings.ToLower(def.Method)] = op
}

func requestBody(def core.RequestDefinition) *openAPIRequestBody {
	ct := mediaType(def.Header("Content-Type"))
	if ct == "" {
		ct = mediaType(bodyContentType(def.Body))
	}

	switch def.Body.Type {
	case core.BodyRaw:
		if def.Body.Content == "" {
			return nil
		}
		if ct == "" {
			trimmed := strings.TrimSpace(def.Body.Content)
			if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
				ct = "application/json"
			} else {
				ct = "text/plain"
			}
		}
		return &openAPIRequestBody{Content: map[string]openAPIMediaType{
			ct: {Schema: inferSchema(def.Body.Content, ct), Example: parseExample(def.Body.Content, ct)},
		}}

	case core.BodyFormURLEncoded, core.BodyMultipart:
		schema := &openAPISchema{Type: "object", Properties: make(map[string]*openAPISchema)}
		if def.Body.Type == core.BodyFormURLEncoded {
			for _, f := range def.Body.Fields {
				if f.Enabled {
					schema.Properties[f.Key] = &openAPISchema{Type: "string"}
				}
			}
		} else {
			for _, part := range def.Body.Parts {
				prop := &openAPISchema{Type: "string"}
				if part.IsFile {
					prop.Format = "binary"
				}
				schema.Properties[part.Name] = prop
			}
		}
		return &openAPIRequestBody{Content: map[string]openAPIMediaType{ct: {Schema: schema}}}

	case core.BodyBinary:
		if ct == "" {
			ct = "application/octet-stream"
		}
		return &openAPIRequestBody{Content: map[string]openAPIMediaType{
			ct: {Schema: &openAPISchema{Type: "string", Format: "binary"}},
		}}
	}
	return nil
}

func securityScheme(auth core.Auth) (string, openAPISecurityScheme, bool) {
	switch auth.Type {
	case core.AuthTypeBearer:
		return "bearerAuth", openAPISecurityScheme{Type: "http", Scheme: "bearer"}, true
	case core.AuthTypeBasic:
		return "basicAuth", openAPISecurityScheme{Type: "http", Scheme: "basic"}, true
	case core.AuthTypeAPIKey:
		in := string(auth.In)
		if in == "" {
			in = string(core.APIKeyInHeader)
		}
		return "apiKeyAuth", openAPISecurityScheme{Type: "apiKey", Name: auth.Key, In: in}, true
	}
	return "", openAPISecurityScheme{}, false
}

// operationPath reduces a request URL to an OpenAPI path template.
func operationPath(rawURL, baseURL string) string {
	u, _, _ := strings.Cut(rawURL, "?")
	if baseURL != "" && strings.HasPrefix(u, baseURL) {
		u = strings.TrimPrefix(u, baseURL)
	}

	// {{host}}/users: the leading placeholder stands for the server.
	if loc := placeholderPattern.FindStringIndex(u); loc != nil && loc[0] == 0 && strings.HasPrefix(u[loc[1]:], "/") {
		u = u[loc[1]:]
	}
	u = placeholderPattern.ReplaceAllString(u, "{$1}")

	if strings.Contains(u, "://") {
		if parsed, err := url.Parse(u); err == nil {
			u = parsed.Path
		} else if idx := strings.Index(u[strings.Index(u, "://")+3:], "/"); idx >= 0 {
			u = u[strings.Index(u, "://")+3+idx:]
		} else {
			u = ""
		}
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}

func pathParams(path string) []string {
	var params []string
	for {
		start := strings.Index(path, "{")
		if start == -1 {
			return params
		}
		end := strings.Index(path[start:], "}")
		if end == -1 {
			return params
		}
		params = append(params, path[start+1:start+end])
		path = path[start+end+1:]
	}
}

func operationID(method, path, name string) string {
	if words := strings.Fields(name); len(words) > 0 {
		var sb strings.Builder
		sb.WriteString(strings.ToLower(words[0]))
		for _, word := range words[1:] {
			sb.WriteString(strings.ToUpper(word[:1]) + strings.ToLower(word[1:]))
		}
		return sb.String()
	}

	parts := []string{strings.ToLower(method)}
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part != "" && !strings.HasPrefix(part, "{") {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "_")
}

func mediaType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(ct)
}

func inferSchema(body, contentType string) *openAPISchema {
	if strings.Contains(contentType, "json") {
		var parsed interface{}
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			return schemaOf(parsed)
		}
	}
	return &openAPISchema{Type: "string"}
}

func schemaOf(v interface{}) *openAPISchema {
	switch val := v.(type) {
	case map[string]interface{}:
		props := make(map[string]*openAPISchema, len(val))
		for k, child := range val {
			props[k] = schemaOf(child)
		}
		return &openAPISchema{Type: "object", Properties: props}
	case []interface{}:
		if len(val) > 0 {
			return &openAPISchema{Type: "array", Items: schemaOf(val[0])}
		}
		return &openAPISchema{Type: "array"}
	case float64:
		if val == float64(int64(val)) {
			return &openAPISchema{Type: "integer"}
		}
		return &openAPISchema{Type: "number"}
	case bool:
		return &openAPISchema{Type: "boolean"}
	case nil:
		return &openAPISchema{Type: "string", Nullable: true}
	}
	return &openAPISchema{Type: "string"}
}

func parseExample(body, contentType string) interface{} {
	if strings.Contains(contentType, "json") {
		var parsed interface{}
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			return parsed
		}
	}
	if body == "" {
		return nil
	}
	return body
}

// OpenAPI 3.0 document structures

type openAPISpec struct {
	OpenAPI    string                                  `yaml:"openapi"`
	Info       openAPIInfo                             `yaml:"info"`
	Servers    []openAPIServer                         `yaml:"servers,omitempty"`
	Tags       []openAPITag                            `yaml:"tags,omitempty"`
	Paths      map[string]map[string]*openAPIOperation `yaml:"paths"`
	Components *openAPIComponents                      `yaml:"components,omitempty"`
	Security   []map[string][]string                   `yaml:"security,omitempty"`
}

type openAPIInfo struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version"`
}

type openAPIServer struct {
	URL string `yaml:"url"`
}

type openAPITag struct {
	Name string `yaml:"name"`
}

type openAPIOperation struct {
	Tags        []string                   `yaml:"tags,omitempty"`
	Summary     string                     `yaml:"summary,omitempty"`
	Description string                     `yaml:"description,omitempty"`
	OperationID string                     `yaml:"operationId,omitempty"`
	Parameters  []openAPIParameter         `yaml:"parameters,omitempty"`
	RequestBody *openAPIRequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]openAPIResponse `yaml:"responses"`
	Security    []map[string][]string      `yaml:"security,omitempty"`
}

type openAPIParameter struct {
	Name     string         `yaml:"name"`
	In       string         `yaml:"in"`
	Required bool           `yaml:"required,omitempty"`
	Schema   *openAPISchema `yaml:"schema,omitempty"`
	Example  interface{}    `yaml:"example,omitempty"`
}

type openAPIRequestBody struct {
	Content map[string]openAPIMediaType `yaml:"content"`
}

type openAPIMediaType struct {
	Schema  *openAPISchema `yaml:"schema,omitempty"`
	Example interface{}    `yaml:"example,omitempty"`
}

type openAPIResponse struct {
	Description string                      `yaml:"description"`
	Content     map[string]openAPIMediaType `yaml:"content,omitempty"`
}

type openAPISchema struct {
	Type       string                    `yaml:"type,omitempty"`
	Format     string                    `yaml:"format,omitempty"`
	Properties map[string]*openAPISchema `yaml:"properties,omitempty"`
	Items      *openAPISchema            `yaml:"items,omitempty"`
	Nullable   bool                      `yaml:"nullable,omitempty"`
}

type openAPIComponents struct {
	SecuritySchemes map[string]openAPISecurityScheme `yaml:"securitySchemes,omitempty"`
}

type openAPISecurityScheme struct {
	Type   string `yaml:"type"`
	Scheme string `yaml:"scheme,omitempty"`
	Name   string `yaml:"name,omitempty"`
	In     string `yaml:"in,omitempty"`
}

var _ Exporter = (*OpenAPIExporter)(nil)
