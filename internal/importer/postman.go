package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
)

// PostmanImporter imports Postman collection format (v2.0 and v2.1).
type PostmanImporter struct {
	alloc ident.Allocator
}

// NewPostmanImporter creates a new Postman importer.
func NewPostmanImporter(alloc ident.Allocator) *PostmanImporter {
	return &PostmanImporter{alloc: ident.OrDefault(alloc)}
}

func (p *PostmanImporter) Name() string {
	return "Postman Collection"
}

func (p *PostmanImporter) Format() Format {
	return FormatPostman
}

func (p *PostmanImporter) FileExtensions() []string {
	return []string{".json", ".postman_collection.json"}
}

func (p *PostmanImporter) DetectFormat(content []byte) bool {
	var check struct {
		Info struct {
			Schema string `json:"schema"`
		} `json:"info"`
	}

	if err := json.Unmarshal(content, &check); err != nil {
		return false
	}

	return strings.Contains(check.Info.Schema, "schema.getpostman.com/json/collection")
}

func (p *PostmanImporter) Import(ctx context.Context, content []byte) (*core.Project, error) {
	var pm postmanCollection
	if err := json.Unmarshal(content, &pm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	if !strings.Contains(pm.Info.Schema, "v2.") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, pm.Info.Schema)
	}

	name := pm.Info.Name
	if name == "" {
		name = "Postman Import"
	}
	project := core.NewProject(p.alloc, name)
	project.Description = descriptionText(pm.Info.Description)

	env := project.ActiveEnvironment()
	for _, v := range pm.Variable {
		if v.Key == "" {
			continue
		}
		env.Variables = append(env.Variables, core.Variable{
			ID:      p.alloc.NewID(),
			Key:     v.Key,
			Value:   scalarText(v.Value),
			Enabled: !v.Disabled,
		})
	}

	if pm.Auth != nil {
		if auth := convertPostmanAuth(pm.Auth); auth.Type != core.AuthTypeNone {
			project.DefaultAuth = &auth
		}
	}

	for _, item := range pm.Item {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.importItem(project.Root, item)
	}

	return project, nil
}

func (p *PostmanImporter) importItem(parent *core.Folder, item postmanItem) {
	if item.Request == nil {
		folder := core.NewFolder(p.alloc.NewID(), item.Name)
		for _, sub := range item.Item {
			p.importItem(folder, sub)
		}
		parent.Append(folder)
		return
	}

	req := core.NewRequest(p.alloc.NewID(), item.Name, "", "")
	req.SetDescription(descriptionText(item.Request.Description))
	req.SetDefinition(convertPostmanRequest(item.Request))
	parent.Append(req)
}

func convertPostmanRequest(pm *postmanRequest) core.RequestDefinition {
	def := core.NewRequestDefinition(pm.Method, "")
	def.URL, def.QueryParams = extractURL(pm.URL)

	for _, h := range pm.Header {
		if !h.Disabled && strings.EqualFold(h.Key, "Cookie") {
			def.Cookies = append(def.Cookies, parseCookies(h.Value)...)
			continue
		}
		def.Headers = append(def.Headers, core.KeyValue{Key: h.Key, Value: h.Value, Enabled: !h.Disabled})
	}

	if pm.Body != nil {
		def.Body = convertPostmanBody(pm.Body, def.Header("Content-Type"))
	}
	if pm.Auth != nil {
		def.Auth = convertPostmanAuth(pm.Auth)
	}
	return def
}

func convertPostmanBody(b *postmanBody, contentType string) core.Body {
	switch b.Mode {
	case "raw":
		if contentType == "" && b.Options != nil {
			contentType = contentTypeForLanguage(b.Options.Raw.Language)
		}
		return core.RawBody(b.Raw, contentType)

	case "urlencoded":
		body := core.Body{Type: core.BodyFormURLEncoded}
		for _, f := range b.URLEncoded {
			body.Fields = append(body.Fields, core.KeyValue{Key: f.Key, Value: f.Value, Enabled: !f.Disabled})
		}
		return body

	case "formdata":
		body := core.Body{Type: core.BodyMultipart}
		for _, f := range b.FormData {
			if f.Disabled {
				continue
			}
			part := core.MultipartPart{Name: f.Key, ContentType: f.ContentType}
			if f.Type == "file" {
				part.IsFile = true
				part.Filename = scalarText(f.Src)
			} else {
				part.Value = f.Value
			}
			body.Parts = append(body.Parts, part)
		}
		return body

	case "file":
		if b.File != nil {
			return core.Body{Type: core.BodyBinary, Filename: b.File.Src, ContentType: contentType}
		}

	case "graphql":
		if b.GraphQL != nil {
			payload := map[string]interface{}{"query": b.GraphQL.Query}
			if b.GraphQL.Variables != "" {
				var vars interface{}
				if err := json.Unmarshal([]byte(b.GraphQL.Variables), &vars); err == nil {
					payload["variables"] = vars
				}
			}
			data, _ := json.Marshal(payload)
			return core.RawBody(string(data), "application/json")
		}
	}
	return core.NoBody()
}

// extractURL accepts both the string and the object form of a Postman URL.
func extractURL(raw interface{}) (string, []core.KeyValue) {
	switch v := raw.(type) {
	case string:
		return splitURL(v)
	case map[string]interface{}:
		var base string
		var params []core.KeyValue
		if s, ok := v["raw"].(string); ok {
			base, params = splitURL(s)
		} else {
			base = buildURL(v)
		}

		if query, ok := v["query"].([]interface{}); ok {
			params = params[:0]
			for _, q := range query {
				entry, ok := q.(map[string]interface{})
				if !ok {
					continue
				}
				key, _ := entry["key"].(string)
				disabled, _ := entry["disabled"].(bool)
				params = append(params, core.KeyValue{
					Key:     key,
					Value:   scalarText(entry["value"]),
					Enabled: !disabled,
				})
			}
		}
		return base, params
	}
	return "", nil
}

func buildURL(v map[string]interface{}) string {
	var result strings.Builder
	if protocol, ok := v["protocol"].(string); ok {
		result.WriteString(protocol)
		result.WriteString("://")
	}
	switch host := v["host"].(type) {
	case string:
		result.WriteString(host)
	case []interface{}:
		parts := make([]string, 0, len(host))
		for _, h := range host {
			parts = append(parts, scalarText(h))
		}
		result.WriteString(strings.Join(parts, "."))
	}
	if port, ok := v["port"].(string); ok && port != "" {
		result.WriteString(":")
		result.WriteString(port)
	}
	switch path := v["path"].(type) {
	case string:
		result.WriteString("/")
		result.WriteString(strings.TrimLeft(path, "/"))
	case []interface{}:
		for _, seg := range path {
			result.WriteString("/")
			result.WriteString(scalarText(seg))
		}
	}
	return result.String()
}

func convertPostmanAuth(auth *postmanAuth) core.Auth {
	lookup := func(items []postmanAuthItem, key string) string {
		for _, item := range items {
			if item.Key == key {
				return scalarText(item.Value)
			}
		}
		return ""
	}

	switch auth.Type {
	case "bearer":
		return core.NewBearerAuth(lookup(auth.Bearer, "token"))
	case "basic":
		return core.NewBasicAuth(lookup(auth.Basic, "username"), lookup(auth.Basic, "password"))
	case "apikey":
		in := core.APIKeyInHeader
		if lookup(auth.APIKey, "in") == "query" {
			in = core.APIKeyInQuery
		}
		return core.NewAPIKeyAuth(lookup(auth.APIKey, "key"), lookup(auth.APIKey, "value"), in)
	}
	return core.NoAuth()
}

// descriptionText accepts both a plain description and the {content, type} form.
func descriptionText(v interface{}) string {
	switch d := v.(type) {
	case string:
		return d
	case map[string]interface{}:
		return scalarText(d["content"])
	}
	return ""
}

func scalarText(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// Postman collection format structures

type postmanCollection struct {
	Info     postmanInfo   `json:"info"`
	Item     []postmanItem `json:"item"`
	Variable []postmanVar  `json:"variable,omitempty"`
	Auth     *postmanAuth  `json:"auth,omitempty"`
}

type postmanInfo struct {
	Name        string      `json:"name"`
	Description interface{} `json:"description,omitempty"`
	Schema      string      `json:"schema"`
}

type postmanItem struct {
	Name    string          `json:"name"`
	Item    []postmanItem   `json:"item,omitempty"`
	Request *postmanRequest `json:"request,omitempty"`
}

type postmanRequest struct {
	Method      string          `json:"method"`
	Header      []postmanHeader `json:"header,omitempty"`
	Body        *postmanBody    `json:"body,omitempty"`
	URL         interface{}     `json:"url"`
	Auth        *postmanAuth    `json:"auth,omitempty"`
	Description interface{}     `json:"description,omitempty"`
}

type postmanHeader struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

type postmanBody struct {
	Mode       string              `json:"mode"`
	Raw        string              `json:"raw,omitempty"`
	URLEncoded []postmanHeader     `json:"urlencoded,omitempty"`
	FormData   []postmanFormData   `json:"formdata,omitempty"`
	File       *postmanFile        `json:"file,omitempty"`
	GraphQL    *postmanGraphQL     `json:"graphql,omitempty"`
	Options    *postmanBodyOptions `json:"options,omitempty"`
}

type postmanFormData struct {
	Key         string      `json:"key"`
	Value       string      `json:"value,omitempty"`
	Type        string      `json:"type,omitempty"`
	Src         interface{} `json:"src,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	Disabled    bool        `json:"disabled,omitempty"`
}

type postmanFile struct {
	Src string `json:"src"`
}

type postmanGraphQL struct {
	Query     string `json:"query"`
	Variables string `json:"variables,omitempty"`
}

type postmanBodyOptions struct {
	Raw struct {
		Language string `json:"language,omitempty"`
	} `json:"raw,omitempty"`
}

type postmanAuth struct {
	Type   string            `json:"type"`
	Bearer []postmanAuthItem `json:"bearer,omitempty"`
	Basic  []postmanAuthItem `json:"basic,omitempty"`
	APIKey []postmanAuthItem `json:"apikey,omitempty"`
}

type postmanAuthItem struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type postmanVar struct {
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
	Disabled bool        `json:"disabled,omitempty"`
}

var _ Importer = (*PostmanImporter)(nil)
