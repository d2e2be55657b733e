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

var (
	refPattern      = regexp.MustCompile(`^#/components/\w+/(.+)$`)
	templatePattern = regexp.MustCompile(`\{\{[^{}]*\}\}|\{[^{}/]+\}`)
)

// maxSchemaDepth bounds example generation for recursive schemas.
const maxSchemaDepth = 5

// OpenAPIImporter imports OpenAPI 3.x documents in JSON or YAML. The first
// tag of an operation picks its folder, and a tag of the form "a/b" nests.
type OpenAPIImporter struct {
	alloc ident.Allocator
}

// NewOpenAPIImporter creates a new OpenAPI importer.
func NewOpenAPIImporter(alloc ident.Allocator) *OpenAPIImporter {
	return &OpenAPIImporter{alloc: ident.OrDefault(alloc)}
}

func (o *OpenAPIImporter) Name() string {
	return "OpenAPI 3.x"
}

func (o *OpenAPIImporter) Format() Format {
	return FormatOpenAPI
}

func (o *OpenAPIImporter) FileExtensions() []string {
	return []string{".yaml", ".yml", ".json", ".openapi.yaml"}
}

func (o *OpenAPIImporter) DetectFormat(content []byte) bool {
	var check struct {
		OpenAPI string `json:"openapi" yaml:"openapi"`
	}
	if err := json.Unmarshal(content, &check); err == nil {
		return strings.HasPrefix(check.OpenAPI, "3.")
	}
	if err := yaml.Unmarshal(content, &check); err == nil {
		return strings.HasPrefix(check.OpenAPI, "3.")
	}
	return false
}

func (o *OpenAPIImporter) Import(ctx context.Context, content []byte) (*core.Project, error) {
	var doc openAPIDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseError, err)
		}
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		return nil, fmt.Errorf("%w: expected OpenAPI 3.x, got %q", ErrUnsupportedVersion, doc.OpenAPI)
	}

	name := doc.Info.Title
	if name == "" {
		name = "OpenAPI Import"
	}
	project := core.NewProject(o.alloc, name)
	project.Description = doc.Info.Description

	env := project.ActiveEnvironment()
	if len(doc.Servers) > 0 {
		server := doc.Servers[0]
		project.BaseURL = placeholders(server.URL)

		keys := make([]string, 0, len(server.Variables))
		for key := range server.Variables {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			v := server.Variables[key]
			value := v.Default
			if value == "" && len(v.Enum) > 0 {
				value = v.Enum[0]
			}
			env.Variables = append(env.Variables, core.Variable{
				ID:      o.alloc.NewID(),
				Key:     key,
				Value:   value,
				Enabled: true,
			})
		}
	}

	if len(doc.Security) > 0 {
		if auth := doc.auth(doc.Security); auth.Type != core.AuthTypeNone {
			project.DefaultAuth = &auth
		}
	}

	var ops []openAPIOperationRef
	for path, item := range doc.Paths {
		ops = append(ops, item.operations(path)...)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].path == ops[j].path {
			return ops[i].method < ops[j].method
		}
		return ops[i].path < ops[j].path
	})

	folders := make(map[string]*core.Folder)
	var tags []string
	tagged := make(map[string][]openAPIOperationRef)
	var untagged []openAPIOperationRef
	for _, op := range ops {
		if len(op.Tags) == 0 {
			untagged = append(untagged, op)
			continue
		}
		tag := op.Tags[0]
		if _, seen := tagged[tag]; !seen {
			tags = append(tags, tag)
		}
		tagged[tag] = append(tagged[tag], op)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		folder := o.folderFor(project.Root, folders, tag)
		for _, op := range tagged[tag] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			folder.Append(o.request(&doc, op, project.BaseURL))
		}
	}
	for _, op := range untagged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		project.Root.Append(o.request(&doc, op, project.BaseURL))
	}

	return project, nil
}

// folderFor returns the folder for a slash-separated tag, creating the
// missing levels under root.
func (o *OpenAPIImporter) folderFor(root *core.Folder, folders map[string]*core.Folder, tag string) *core.Folder {
	parent := root
	var path string
	for _, segment := range strings.Split(tag, "/") {
		if segment == "" {
			continue
		}
		if path != "" {
			path += "/"
		}
		path += segment
		folder, ok := folders[path]
		if !ok {
			folder = core.NewFolder(o.alloc.NewID(), segment)
			parent.Append(folder)
			folders[path] = folder
		}
		parent = folder
	}
	return parent
}

func (o *OpenAPIImporter) request(doc *openAPIDocument, op openAPIOperationRef, baseURL string) *core.Request {
	name := op.Summary
	if name == "" {
		name = op.OperationID
	}
	if name == "" {
		name = op.method + " " + op.path
	}

	path := op.path
	def := core.NewRequestDefinition(op.method, "")
	for _, param := range op.params {
		param = doc.parameter(param)
		value := exampleValue(param.Schema, param.Example)
		switch param.In {
		case "path":
			if param.Example != nil || (param.Schema != nil && param.Schema.Example != nil) {
				path = strings.ReplaceAll(path, "{"+param.Name+"}", value)
			}
		case "query":
			def.QueryParams = append(def.QueryParams, core.KeyValue{Key: param.Name, Value: value, Enabled: true})
		case "header":
			def.Headers = append(def.Headers, core.KeyValue{Key: param.Name, Value: value, Enabled: true})
		case "cookie":
			def.Cookies = append(def.Cookies, core.Cookie{Name: param.Name, Value: value})
		}
	}

	prefix := baseURL
	if prefix == "" {
		prefix = "{{base_url}}"
	}
	def.URL = prefix + placeholders(path)

	if op.RequestBody != nil {
		def.Body = doc.body(doc.requestBody(op.RequestBody))
	}
	if len(op.Security) > 0 {
		def.Auth = doc.auth(op.Security)
	}

	desc := op.Description
	if op.Deprecated {
		desc = strings.TrimSpace("[DEPRECATED] " + desc)
	}

	req := core.NewRequest(o.alloc.NewID(), name, "", "")
	req.SetDescription(desc)
	req.SetDefinition(def)
	return req
}

// placeholders turns OpenAPI {name} templates into {{name}} variables.
func placeholders(s string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m, "{{") {
			return m
		}
		return "{" + m + "}"
	})
}

func (d *openAPIDocument) parameter(param openAPIParameter) openAPIParameter {
	if param.Ref == "" || d.Components == nil {
		return param
	}
	if resolved, ok := d.Components.Parameters[refName(param.Ref)]; ok {
		return resolved
	}
	return param
}

func (d *openAPIDocument) requestBody(body *openAPIRequestBody) *openAPIRequestBody {
	if body.Ref == "" || d.Components == nil {
		return body
	}
	if resolved, ok := d.Components.RequestBodies[refName(body.Ref)]; ok {
		return &resolved
	}
	return body
}

func (d *openAPIDocument) schema(s *openAPISchema) *openAPISchema {
	if s == nil || s.Ref == "" || d.Components == nil {
		return s
	}
	if resolved, ok := d.Components.Schemas[refName(s.Ref)]; ok {
		return &resolved
	}
	return s
}

func refName(ref string) string {
	if m := refPattern.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return ""
}

// body picks JSON first, then the form encodings, then the first media
// type in name order.
func (d *openAPIDocument) body(rb *openAPIRequestBody) core.Body {
	if rb == nil || len(rb.Content) == 0 {
		return core.NoBody()
	}

	contentType := ""
	for _, preferred := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if _, ok := rb.Content[preferred]; ok {
			contentType = preferred
			break
		}
	}
	if contentType == "" {
		types := make([]string, 0, len(rb.Content))
		for ct := range rb.Content {
			types = append(types, ct)
		}
		sort.Strings(types)
		contentType = types[0]
	}
	media := rb.Content[contentType]
	schema := d.schema(media.Schema)

	switch {
	case contentType == "application/x-www-form-urlencoded":
		body := core.Body{Type: core.BodyFormURLEncoded}
		for _, name := range d.propertyNames(schema) {
			prop := schema.Properties[name]
			body.Fields = append(body.Fields, core.KeyValue{Key: name, Value: exampleValue(&prop, nil), Enabled: true})
		}
		return body

	case contentType == "multipart/form-data":
		body := core.Body{Type: core.BodyMultipart}
		for _, name := range d.propertyNames(schema) {
			prop := schema.Properties[name]
			if prop.Format == "binary" {
				body.Parts = append(body.Parts, core.MultipartPart{Name: name, IsFile: true})
				continue
			}
			body.Parts = append(body.Parts, core.MultipartPart{Name: name, Value: exampleValue(&prop, nil)})
		}
		return body

	case schema != nil && schema.Type == "string" && schema.Format == "binary":
		return core.Body{Type: core.BodyBinary, ContentType: contentType}
	}

	example := media.Example
	if example == nil && schema != nil {
		example = d.example(schema, 0)
	}
	if example == nil {
		return core.RawBody("", contentType)
	}
	if s, ok := example.(string); ok && !strings.Contains(contentType, "json") {
		return core.RawBody(s, contentType)
	}
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return core.RawBody(scalarText(example), contentType)
	}
	return core.RawBody(string(data), contentType)
}

func (d *openAPIDocument) propertyNames(schema *openAPISchema) []string {
	if schema == nil {
		return nil
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// example builds a sample value from a schema.
func (d *openAPIDocument) example(s *openAPISchema, depth int) interface{} {
	s = d.schema(s)
	if s == nil || depth > maxSchemaDepth {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}

	switch s.Type {
	case "object":
		obj := make(map[string]interface{}, len(s.Properties))
		for name, prop := range s.Properties {
			obj[name] = d.example(&prop, depth+1)
		}
		return obj
	case "array":
		if s.Items != nil {
			return []interface{}{d.example(s.Items, depth+1)}
		}
		return []interface{}{}
	case "string":
		return exampleValue(s, nil)
	case "integer":
		return 0
	case "number":
		return 0.0
	case "boolean":
		return true
	}

	if len(s.AllOf) > 0 {
		merged := make(map[string]interface{})
		for i := range s.AllOf {
			if m, ok := d.example(&s.AllOf[i], depth+1).(map[string]interface{}); ok {
				for k, v := range m {
					merged[k] = v
				}
			}
		}
		return merged
	}
	if len(s.OneOf) > 0 {
		return d.example(&s.OneOf[0], depth+1)
	}
	if len(s.AnyOf) > 0 {
		return d.example(&s.AnyOf[0], depth+1)
	}
	return nil
}

// exampleValue renders a parameter example, falling back to the schema's
// example, default or a value typical for its type.
func exampleValue(schema *openAPISchema, example interface{}) string {
	if example != nil {
		return scalarText(example)
	}
	if schema == nil {
		return ""
	}
	if schema.Example != nil {
		return scalarText(schema.Example)
	}
	if schema.Default != nil {
		return scalarText(schema.Default)
	}
	if len(schema.Enum) > 0 {
		return scalarText(schema.Enum[0])
	}

	switch schema.Type {
	case "string":
		switch schema.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "550e8400-e29b-41d4-a716-446655440000"
		}
		return "string"
	case "integer":
		return "0"
	case "number":
		return "0.0"
	case "boolean":
		return "true"
	}
	return ""
}

// auth maps the first satisfiable security requirement to an auth with
// placeholder credentials.
func (d *openAPIDocument) auth(security []map[string][]string) core.Auth {
	if d.Components == nil {
		return core.NoAuth()
	}
	for _, requirement := range security {
		names := make([]string, 0, len(requirement))
		for name := range requirement {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			scheme, ok := d.Components.SecuritySchemes[name]
			if !ok {
				continue
			}
			switch scheme.Type {
			case "http":
				switch strings.ToLower(scheme.Scheme) {
				case "bearer":
					return core.NewBearerAuth("{{access_token}}")
				case "basic":
					return core.NewBasicAuth("{{username}}", "{{password}}")
				}
			case "apiKey":
				in := core.APIKeyInHeader
				if scheme.In == "query" {
					in = core.APIKeyInQuery
				}
				return core.NewAPIKeyAuth(scheme.Name, "{{api_key}}", in)
			case "oauth2", "openIdConnect":
				return core.NewBearerAuth("{{access_token}}")
			}
		}
	}
	return core.NoAuth()
}

type openAPIOperationRef struct {
	*openAPIOperation
	path   string
	method string
	params []openAPIParameter
}

// operations lists the operations of a path item. Operation parameters
// override path-level ones with the same name and location.
func (p openAPIPathItem) operations(path string) []openAPIOperationRef {
	byMethod := []struct {
		method string
		op     *openAPIOperation
	}{
		{"GET", p.Get}, {"POST", p.Post}, {"PUT", p.Put}, {"PATCH", p.Patch},
		{"DELETE", p.Delete}, {"HEAD", p.Head}, {"OPTIONS", p.Options}, {"TRACE", p.Trace},
	}

	var out []openAPIOperationRef
	for _, m := range byMethod {
		if m.op == nil {
			continue
		}
		params := append([]openAPIParameter(nil), p.Parameters...)
		for _, param := range m.op.Parameters {
			replaced := false
			for i, existing := range params {
				if existing.Ref == "" && existing.Name == param.Name && existing.In == param.In {
					params[i] = param
					replaced = true
					break
				}
			}
			if !replaced {
				params = append(params, param)
			}
		}
		out = append(out, openAPIOperationRef{openAPIOperation: m.op, path: path, method: m.method, params: params})
	}
	return out
}

// OpenAPI 3.x document structures

type openAPIDocument struct {
	OpenAPI    string                     `json:"openapi" yaml:"openapi"`
	Info       openAPIInfo                `json:"info" yaml:"info"`
	Servers    []openAPIServer            `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      map[string]openAPIPathItem `json:"paths" yaml:"paths"`
	Components *openAPIComponents         `json:"components,omitempty" yaml:"components,omitempty"`
	Security   []map[string][]string      `json:"security,omitempty" yaml:"security,omitempty"`
}

type openAPIInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
}

type openAPIServer struct {
	URL       string                      `json:"url" yaml:"url"`
	Variables map[string]openAPIServerVar `json:"variables,omitempty" yaml:"variables,omitempty"`
}

type openAPIServerVar struct {
	Default string   `json:"default" yaml:"default"`
	Enum    []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

type openAPIPathItem struct {
	Get        *openAPIOperation  `json:"get,omitempty" yaml:"get,omitempty"`
	Post       *openAPIOperation  `json:"post,omitempty" yaml:"post,omitempty"`
	Put        *openAPIOperation  `json:"put,omitempty" yaml:"put,omitempty"`
	Patch      *openAPIOperation  `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete     *openAPIOperation  `json:"delete,omitempty" yaml:"delete,omitempty"`
	Head       *openAPIOperation  `json:"head,omitempty" yaml:"head,omitempty"`
	Options    *openAPIOperation  `json:"options,omitempty" yaml:"options,omitempty"`
	Trace      *openAPIOperation  `json:"trace,omitempty" yaml:"trace,omitempty"`
	Parameters []openAPIParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type openAPIOperation struct {
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	OperationID string                `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []openAPIParameter    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *openAPIRequestBody   `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

type openAPIParameter struct {
	Ref     string         `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	In      string         `json:"in,omitempty" yaml:"in,omitempty"`
	Schema  *openAPISchema `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example interface{}    `json:"example,omitempty" yaml:"example,omitempty"`
}

type openAPIRequestBody struct {
	Ref     string                      `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Content map[string]openAPIMediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type openAPIMediaType struct {
	Schema  *openAPISchema `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example interface{}    `json:"example,omitempty" yaml:"example,omitempty"`
}

type openAPISchema struct {
	Ref        string                   `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type       string                   `json:"type,omitempty" yaml:"type,omitempty"`
	Format     string                   `json:"format,omitempty" yaml:"format,omitempty"`
	Properties map[string]openAPISchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items      *openAPISchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Enum       []interface{}            `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default    interface{}              `json:"default,omitempty" yaml:"default,omitempty"`
	Example    interface{}              `json:"example,omitempty" yaml:"example,omitempty"`
	AllOf      []openAPISchema          `json:"allOf,omitempty" yaml:"allOf,omitempty"`
	OneOf      []openAPISchema          `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
	AnyOf      []openAPISchema          `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
}

type openAPIComponents struct {
	Schemas         map[string]openAPISchema         `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	Parameters      map[string]openAPIParameter      `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBodies   map[string]openAPIRequestBody    `json:"requestBodies,omitempty" yaml:"requestBodies,omitempty"`
	SecuritySchemes map[string]openAPISecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

type openAPISecurityScheme struct {
	Type   string `json:"type" yaml:"type"`
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	In     string `json:"in,omitempty" yaml:"in,omitempty"`
}

var _ Importer = (*OpenAPIImporter)(nil)
