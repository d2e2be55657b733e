package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every stored document.
const FormatVersion = 1

// LegacyEnvironmentName names the environment synthesized from project-level
// variables written by older versions.
const LegacyEnvironmentName = "Legacy variables"

// Document is the storage format shared by every backend.
type Document struct {
	Version         int             `yaml:"version" json:"version"`
	SavedAt         time.Time       `yaml:"saved_at" json:"saved_at"`
	Projects        []projectData   `yaml:"projects" json:"projects"`
	ActiveProjectID string          `yaml:"active_project_id,omitempty" json:"active_project_id,omitempty"`
	ActiveRequestID string          `yaml:"active_request_id,omitempty" json:"active_request_id,omitempty"`
	SelectedItemID  string          `yaml:"selected_item_id,omitempty" json:"selected_item_id,omitempty"`
	Dirty           []string        `yaml:"dirty,omitempty" json:"dirty,omitempty"`
	Clipboard       *core.Clipboard `yaml:"clipboard,omitempty" json:"clipboard,omitempty"`
}

type projectData struct {
	ID                  string            `yaml:"id" json:"id"`
	Name                string            `yaml:"name" json:"name"`
	Description         string            `yaml:"description,omitempty" json:"description,omitempty"`
	Icon                string            `yaml:"icon,omitempty" json:"icon,omitempty"`
	BaseURL             string            `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	DefaultAuth         *core.Auth        `yaml:"default_auth,omitempty" json:"default_auth,omitempty"`
	Root                *itemData         `yaml:"root" json:"root"`
	Environments        []environmentData `yaml:"environments" json:"environments"`
	ActiveEnvironmentID string            `yaml:"active_environment_id,omitempty" json:"active_environment_id,omitempty"`

	// Variables holds project-level variables from older documents, either a
	// list of {key, value, enabled} entries or a flat key/value map. Never written.
	Variables interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`
}

type environmentData struct {
	ID        string         `yaml:"id" json:"id"`
	Name      string         `yaml:"name" json:"name"`
	Variables []variableData `yaml:"variables" json:"variables"`
}

type variableData struct {
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
	Key     string `yaml:"key" json:"key"`
	Value   string `yaml:"value" json:"value"`
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

type itemData struct {
	Kind        string          `yaml:"kind" json:"kind"`
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Expanded    *bool           `yaml:"expanded,omitempty" json:"expanded,omitempty"`
	Children    []itemData      `yaml:"children,omitempty" json:"children,omitempty"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Request     *definitionData `yaml:"request,omitempty" json:"request,omitempty"`
	Response    *core.Response  `yaml:"response,omitempty" json:"response,omitempty"`
}

type definitionData struct {
	Method      string          `yaml:"method" json:"method"`
	URL         string          `yaml:"url" json:"url"`
	Headers     []core.KeyValue `yaml:"headers,omitempty" json:"headers,omitempty"`
	QueryParams []core.KeyValue `yaml:"query_params,omitempty" json:"query_params,omitempty"`
	Cookies     []core.Cookie   `yaml:"cookies,omitempty" json:"cookies,omitempty"`
	Body        bodyData        `yaml:"body" json:"body"`
	Auth        core.Auth       `yaml:"auth" json:"auth"`
	Settings    core.Settings   `yaml:"settings" json:"settings"`
}

type bodyData struct {
	Type        string          `yaml:"type" json:"type"`
	Content     string          `yaml:"content,omitempty" json:"content,omitempty"`
	ContentType string          `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Fields      []core.KeyValue `yaml:"fields,omitempty" json:"fields,omitempty"`
	Parts       []partData      `yaml:"parts,omitempty" json:"parts,omitempty"`
	Data        string          `yaml:"data_base64,omitempty" json:"data_base64,omitempty"`
	Filename    string          `yaml:"filename,omitempty" json:"filename,omitempty"`
}

type partData struct {
	Name        string `yaml:"name" json:"name"`
	Value       string `yaml:"value,omitempty" json:"value,omitempty"`
	IsFile      bool   `yaml:"is_file,omitempty" json:"is_file,omitempty"`
	Filename    string `yaml:"filename,omitempty" json:"filename,omitempty"`
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Data        string `yaml:"data_base64,omitempty" json:"data_base64,omitempty"`
}

// EncodeJSON serializes a snapshot as a JSON document.
func EncodeJSON(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(ToDocument(snap))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workspace: %w", err)
	}
	return data, nil
}

// EncodeYAML serializes a snapshot as a YAML document.
func EncodeYAML(snap *Snapshot) ([]byte, error) {
	data, err := yaml.Marshal(ToDocument(snap))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workspace: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a JSON document leniently.
func DecodeJSON(content []byte) (*Snapshot, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Decode(raw)
}

// DecodeYAML parses a YAML document leniently.
func DecodeYAML(content []byte) (*Snapshot, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Decode(raw)
}

// Decode converts a generic document tree into a snapshot. Scalars are
// weakly typed, so "true", 1 and true all decode into a bool. The result is
// not repaired; callers run the workspace repair on it.
func Decode(raw map[string]interface{}) (*Snapshot, error) {
	var doc Document
	if err := decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return FromDocument(&doc), nil
}

// ToDocument converts a snapshot into its storage format.
func ToDocument(snap *Snapshot) *Document {
	doc := &Document{
		Version:         FormatVersion,
		SavedAt:         snap.SavedAt,
		ActiveProjectID: snap.ActiveProjectID,
		ActiveRequestID: snap.ActiveRequestID,
		SelectedItemID:  snap.SelectedItemID,
		Dirty:           append([]string(nil), snap.Dirty...),
	}
	if snap.Clipboard != nil {
		cb := *snap.Clipboard
		doc.Clipboard = &cb
	}

	for _, p := range snap.Projects {
		doc.Projects = append(doc.Projects, toProjectData(p))
	}
	return doc
}

func toProjectData(p *core.Project) projectData {
	data := projectData{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		Icon:                p.Icon,
		BaseURL:             p.BaseURL,
		ActiveEnvironmentID: p.ActiveEnvironmentID,
		Environments:        make([]environmentData, 0, len(p.Environments)),
	}
	if p.DefaultAuth != nil {
		auth := *p.DefaultAuth
		data.DefaultAuth = &auth
	}
	if p.Root != nil {
		root := toItemData(p.Root)
		data.Root = &root
	}

	for _, e := range p.Environments {
		env := environmentData{ID: e.ID, Name: e.Name, Variables: make([]variableData, 0, len(e.Variables))}
		for _, v := range e.Variables {
			enabled := v.Enabled
			env.Variables = append(env.Variables, variableData{ID: v.ID, Key: v.Key, Value: v.Value, Enabled: &enabled})
		}
		data.Environments = append(data.Environments, env)
	}
	return data
}

func toItemData(item core.Item) itemData {
	switch it := item.(type) {
	case *core.Folder:
		expanded := it.Expanded()
		data := itemData{Kind: string(core.KindFolder), ID: it.ID(), Name: it.Name(), Expanded: &expanded}
		for _, child := range it.Children() {
			data.Children = append(data.Children, toItemData(child))
		}
		return data
	case *core.Request:
		def := toDefinitionData(it.Definition())
		return itemData{
			Kind:        string(core.KindRequest),
			ID:          it.ID(),
			Name:        it.Name(),
			Description: it.Description(),
			Request:     &def,
			Response:    it.Response(),
		}
	}
	return itemData{}
}

func toDefinitionData(def core.RequestDefinition) definitionData {
	data := definitionData{
		Method:      def.Method,
		URL:         def.URL,
		Headers:     def.Headers,
		QueryParams: def.QueryParams,
		Cookies:     def.Cookies,
		Auth:        def.Auth,
		Settings:    def.Settings,
		Body: bodyData{
			Type:        string(def.Body.Type),
			Content:     def.Body.Content,
			ContentType: def.Body.ContentType,
			Fields:      def.Body.Fields,
			Filename:    def.Body.Filename,
		},
	}
	if len(def.Body.Data) > 0 {
		data.Body.Data = base64.StdEncoding.EncodeToString(def.Body.Data)
	}
	for _, p := range def.Body.Parts {
		part := partData{
			Name:        p.Name,
			Value:       p.Value,
			IsFile:      p.IsFile,
			Filename:    p.Filename,
			ContentType: p.ContentType,
		}
		if len(p.Data) > 0 {
			part.Data = base64.StdEncoding.EncodeToString(p.Data)
		}
		data.Body.Parts = append(data.Body.Parts, part)
	}
	return data
}

// FromDocument converts a storage document into a snapshot. Missing ids stay
// empty; repair assigns them.
func FromDocument(doc *Document) *Snapshot {
	snap := &Snapshot{
		SavedAt:         doc.SavedAt,
		ActiveProjectID: doc.ActiveProjectID,
		ActiveRequestID: doc.ActiveRequestID,
		SelectedItemID:  doc.SelectedItemID,
		Dirty:           append([]string(nil), doc.Dirty...),
	}
	if doc.Clipboard != nil {
		cb := *doc.Clipboard
		snap.Clipboard = &cb
	}

	for i := range doc.Projects {
		snap.Projects = append(snap.Projects, fromProjectData(&doc.Projects[i]))
	}
	return snap
}

func fromProjectData(data *projectData) *core.Project {
	p := &core.Project{
		ID:                  data.ID,
		Name:                data.Name,
		Description:         data.Description,
		Icon:                data.Icon,
		BaseURL:             data.BaseURL,
		ActiveEnvironmentID: data.ActiveEnvironmentID,
	}
	if data.DefaultAuth != nil {
		auth := *data.DefaultAuth
		p.DefaultAuth = &auth
	}
	if data.Root != nil {
		if root, ok := fromItemData(data.Root).(*core.Folder); ok {
			p.Root = root
		}
	}

	for _, ed := range data.Environments {
		env := core.NewEnvironment(ed.ID, ed.Name)
		env.Variables = fromVariableData(ed.Variables)
		p.Environments = append(p.Environments, env)
	}

	if legacy := legacyVariables(data.Variables); len(legacy) > 0 {
		name := core.DefaultEnvironmentName
		if len(p.Environments) > 0 {
			name = LegacyEnvironmentName
		}
		env := core.NewEnvironment("", name)
		env.Variables = legacy
		p.Environments = append(p.Environments, env)
	}
	return p
}

func fromItemData(data *itemData) core.Item {
	if data.Kind == string(core.KindRequest) || (data.Kind == "" && data.Request != nil) {
		def := core.NewRequestDefinition("GET", "")
		if data.Request != nil {
			def = fromDefinitionData(data.Request)
		}
		req := core.NewRequest(data.ID, data.Name, def.Method, def.URL)
		req.SetDescription(data.Description)
		req.SetDefinition(def)
		req.SetResponse(data.Response)
		return req
	}

	f := core.NewFolder(data.ID, data.Name)
	if data.Expanded != nil {
		f.SetExpanded(*data.Expanded)
	}
	for i := range data.Children {
		f.Append(fromItemData(&data.Children[i]))
	}
	return f
}

func fromDefinitionData(data *definitionData) core.RequestDefinition {
	def := core.NewRequestDefinition(data.Method, data.URL)
	def.Headers = data.Headers
	def.QueryParams = data.QueryParams
	def.Cookies = data.Cookies
	def.Settings = data.Settings
	if data.Auth.Type != "" {
		def.Auth = data.Auth
	}

	body := core.Body{
		Type:        core.BodyType(data.Body.Type),
		Content:     data.Body.Content,
		ContentType: data.Body.ContentType,
		Fields:      data.Body.Fields,
		Filename:    data.Body.Filename,
		Data:        decodeBase64(data.Body.Data),
	}
	if body.Type == "" {
		body.Type = core.BodyNone
		if body.Content != "" {
			body.Type = core.BodyRaw
		}
	}
	for _, p := range data.Body.Parts {
		body.Parts = append(body.Parts, core.MultipartPart{
			Name:        p.Name,
			Value:       p.Value,
			IsFile:      p.IsFile,
			Filename:    p.Filename,
			ContentType: p.ContentType,
			Data:        decodeBase64(p.Data),
		})
	}
	def.Body = body
	return def
}

func fromVariableData(in []variableData) []core.Variable {
	out := make([]core.Variable, 0, len(in))
	for _, v := range in {
		out = append(out, core.Variable{
			ID:      v.ID,
			Key:     v.Key,
			Value:   v.Value,
			Enabled: v.Enabled == nil || *v.Enabled,
		})
	}
	return out
}

// legacyVariables accepts either a list of variable entries or a flat map.
func legacyVariables(raw interface{}) []core.Variable {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make([]core.Variable, 0, len(keys))
		for _, k := range keys {
			out = append(out, core.Variable{Key: k, Value: fmt.Sprint(v[k]), Enabled: true})
		}
		return out
	case []interface{}:
		var entries []variableData
		if err := decode(v, &entries); err != nil {
			return nil
		}
		return fromVariableData(entries)
	}
	return nil
}

func decode(input interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           result,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func decodeBase64(s string) []byte {
	if s == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return []byte(s)
	}
	return data
}
