package exporter

import (
	"context"
	"encoding/json"

	"github.com/artpar/apiary/internal/core"
	"github.com/google/uuid"
)

const postmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// PostmanExporter exports projects to Postman format (v2.1).
type PostmanExporter struct{}

// NewPostmanExporter creates a new Postman exporter.
func NewPostmanExporter() *PostmanExporter {
	return &PostmanExporter{}
}

func (p *PostmanExporter) Name() string {
	return "Postman Collection"
}

func (p *PostmanExporter) Format() Format {
	return FormatPostman
}

func (p *PostmanExporter) FileExtension() string {
	return ".postman_collection.json"
}

// Export writes the project tree as a collection. The active environment's
// variables become collection variables.
func (p *PostmanExporter) Export(ctx context.Context, project *core.Project) ([]byte, error) {
	if project == nil || project.Root == nil {
		return nil, ErrInvalidProject
	}

	pm := postmanCollection{
		Info: postmanInfo{
			PostmanID:   uuid.New().String(),
			Name:        project.Name,
			Description: project.Description,
			Schema:      postmanSchema,
		},
		Item: p.convertChildren(project.Root),
	}

	if env := project.ActiveEnvironment(); env != nil {
		for _, v := range env.Variables {
			pm.Variable = append(pm.Variable, postmanVar{
				Key:      v.Key,
				Value:    v.Value,
				Type:     "string",
				Disabled: !v.Enabled,
			})
		}
	}

	if project.DefaultAuth != nil {
		pm.Auth = convertAuth(*project.DefaultAuth)
	}

	return json.MarshalIndent(pm, "", "  ")
}

func (p *PostmanExporter) convertChildren(folder *core.Folder) []postmanItem {
	items := make([]postmanItem, 0, folder.Len())
	for _, child := range folder.Children() {
		switch c := child.(type) {
		case *core.Folder:
			items = append(items, postmanItem{Name: c.Name(), Item: p.convertChildren(c)})
		case *core.Request:
			items = append(items, p.convertRequest(c))
		}
	}
	return items
}

func (p *PostmanExporter) convertRequest(req *core.Request) postmanItem {
	def := req.Definition()
	item := postmanItem{
		Name: req.Name(),
		Request: &postmanRequest{
			Method:      def.Method,
			Description: req.Description(),
			Header:      make([]postmanKeyValue, 0, len(def.Headers)),
			URL:         convertURL(def),
			Body:        convertBody(def.Body),
		},
	}

	for _, h := range def.Headers {
		item.Request.Header = append(item.Request.Header, postmanKeyValue{Key: h.Key, Value: h.Value, Disabled: !h.Enabled})
	}
	if cookies := cookieHeader(def.Cookies); cookies != "" {
		item.Request.Header = append(item.Request.Header, postmanKeyValue{Key: "Cookie", Value: cookies})
	}

	if def.Auth.Type != core.AuthTypeNone {
		item.Request.Auth = convertAuth(def.Auth)
	}
	return item
}

func convertURL(def core.RequestDefinition) interface{} {
	if len(def.QueryParams) == 0 {
		return def.URL
	}

	urlObj := postmanURLObject{
		Raw:   requestURL(def),
		Query: make([]postmanKeyValue, 0, len(def.QueryParams)),
	}
	for _, q := range def.QueryParams {
		urlObj.Query = append(urlObj.Query, postmanKeyValue{Key: q.Key, Value: q.Value, Disabled: !q.Enabled})
	}
	return urlObj
}

func convertBody(b core.Body) *postmanBody {
	switch b.Type {
	case core.BodyRaw:
		body := &postmanBody{Mode: "raw", Raw: b.Content}
		if b.ContentType != "" {
			body.Options = &postmanBodyOptions{Raw: postmanRawOptions{Language: languageForContentType(b.ContentType)}}
		}
		return body

	case core.BodyFormURLEncoded:
		body := &postmanBody{Mode: "urlencoded", URLEncoded: make([]postmanKeyValue, 0, len(b.Fields))}
		for _, f := range b.Fields {
			body.URLEncoded = append(body.URLEncoded, postmanKeyValue{Key: f.Key, Value: f.Value, Disabled: !f.Enabled})
		}
		return body

	case core.BodyMultipart:
		body := &postmanBody{Mode: "formdata", FormData: make([]postmanFormData, 0, len(b.Parts))}
		for _, part := range b.Parts {
			fd := postmanFormData{Key: part.Name, Type: "text", Value: part.Value, ContentType: part.ContentType}
			if part.IsFile {
				fd.Type = "file"
				fd.Value = ""
				fd.Src = part.Filename
			}
			body.FormData = append(body.FormData, fd)
		}
		return body

	case core.BodyBinary:
		return &postmanBody{Mode: "file", File: &postmanFile{Src: b.Filename}}
	}
	return nil
}

func convertAuth(auth core.Auth) *postmanAuth {
	pm := &postmanAuth{Type: string(auth.Type)}

	switch auth.Type {
	case core.AuthTypeBearer:
		pm.Bearer = []postmanAuthItem{
			{Key: "token", Value: auth.Token, Type: "string"},
		}
	case core.AuthTypeBasic:
		pm.Basic = []postmanAuthItem{
			{Key: "username", Value: auth.Username, Type: "string"},
			{Key: "password", Value: auth.Password, Type: "string"},
		}
	case core.AuthTypeAPIKey:
		in := string(auth.In)
		if in == "" {
			in = string(core.APIKeyInHeader)
		}
		pm.APIKey = []postmanAuthItem{
			{Key: "key", Value: auth.Key, Type: "string"},
			{Key: "value", Value: auth.Value, Type: "string"},
			{Key: "in", Value: in, Type: "string"},
		}
	default:
		pm.Type = "noauth"
	}

	return pm
}

// Postman format structures for export

type postmanCollection struct {
	Info     postmanInfo   `json:"info"`
	Item     []postmanItem `json:"item"`
	Variable []postmanVar  `json:"variable,omitempty"`
	Auth     *postmanAuth  `json:"auth,omitempty"`
}

type postmanInfo struct {
	PostmanID   string `json:"_postman_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

type postmanItem struct {
	Name    string          `json:"name"`
	Item    []postmanItem   `json:"item,omitempty"`
	Request *postmanRequest `json:"request,omitempty"`
}

type postmanRequest struct {
	Method      string            `json:"method"`
	Header      []postmanKeyValue `json:"header"`
	Body        *postmanBody      `json:"body,omitempty"`
	URL         interface{}       `json:"url"`
	Auth        *postmanAuth      `json:"auth,omitempty"`
	Description string            `json:"description,omitempty"`
}

type postmanURLObject struct {
	Raw   string            `json:"raw"`
	Query []postmanKeyValue `json:"query,omitempty"`
}

type postmanKeyValue struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

type postmanBody struct {
	Mode       string              `json:"mode"`
	Raw        string              `json:"raw,omitempty"`
	Options    *postmanBodyOptions `json:"options,omitempty"`
	FormData   []postmanFormData   `json:"formdata,omitempty"`
	URLEncoded []postmanKeyValue   `json:"urlencoded,omitempty"`
	File       *postmanFile        `json:"file,omitempty"`
}

type postmanFormData struct {
	Key         string `json:"key"`
	Value       string `json:"value,omitempty"`
	Type        string `json:"type,omitempty"`
	Src         string `json:"src,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type postmanFile struct {
	Src string `json:"src"`
}

type postmanBodyOptions struct {
	Raw postmanRawOptions `json:"raw"`
}

type postmanRawOptions struct {
	Language string `json:"language,omitempty"`
}

type postmanAuth struct {
	Type   string            `json:"type"`
	Bearer []postmanAuthItem `json:"bearer,omitempty"`
	Basic  []postmanAuthItem `json:"basic,omitempty"`
	APIKey []postmanAuthItem `json:"apikey,omitempty"`
}

type postmanAuthItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

type postmanVar struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

var _ Exporter = (*PostmanExporter)(nil)
