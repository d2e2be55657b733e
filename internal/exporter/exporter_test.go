package exporter

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func boolPtr(b bool) *bool { return &b }

// shopProject builds a project touching every body and auth variant.
func shopProject() *core.Project {
	alloc := ident.NewSequence("t")
	p := core.NewProject(alloc, "Shop API")
	p.Description = "demo"
	p.BaseURL = "https://api.example.com"
	auth := core.NewBearerAuth("secret")
	p.DefaultAuth = &auth

	env := p.ActiveEnvironment()
	env.Variables = append(env.Variables,
		core.Variable{ID: alloc.NewID(), Key: "base", Value: "https://api.example.com", Enabled: true},
		core.Variable{ID: alloc.NewID(), Key: "old", Value: "x", Enabled: false},
	)

	users := core.NewFolder(alloc.NewID(), "Users")

	list := core.NewRequest(alloc.NewID(), "List users", "GET", "{{base}}/users")
	def := list.Definition()
	def.QueryParams = []core.KeyValue{
		{Key: "page", Value: "1", Enabled: true},
		{Key: "limit", Value: "10", Enabled: false},
	}
	def.Headers = []core.KeyValue{
		{Key: "Accept", Value: "application/json", Enabled: true},
		{Key: "X-Debug", Value: "1", Enabled: false},
	}
	def.Cookies = []core.Cookie{{Name: "session", Value: "abc"}, {Name: "theme", Value: "dark"}}
	list.SetDefinition(def)
	users.Append(list)

	create := core.NewRequest(alloc.NewID(), "Create user", "POST", "{{base}}/users")
	create.SetDescription("Creates a user")
	def = create.Definition()
	def.Body = core.RawBody(`{"name":"ada"}`, "application/json")
	def.Auth = core.NewBasicAuth("ada", "pw")
	create.SetDefinition(def)
	users.Append(create)

	get := core.NewRequest(alloc.NewID(), "Get user", "GET", "https://api.example.com/users/{{id}}")
	get.SetResponse(&core.Response{
		Status:     200,
		StatusText: "OK",
		Headers:    []core.KeyValue{{Key: "Content-Type", Value: "application/json; charset=utf-8", Enabled: true}},
		BodyBase64: base64.StdEncoding.EncodeToString([]byte(`{"id":1,"name":"ada"}`)),
	})
	users.Append(get)

	p.Root.Append(users)

	upload := core.NewRequest(alloc.NewID(), "Upload", "POST", "{{base}}/files")
	def = upload.Definition()
	def.Body = core.Body{Type: core.BodyMultipart, Parts: []core.MultipartPart{
		{Name: "note", Value: "hi"},
		{Name: "file", IsFile: true, Filename: "/tmp/a.csv", ContentType: "text/csv"},
	}}
	upload.SetDefinition(def)
	p.Root.Append(upload)

	login := core.NewRequest(alloc.NewID(), "Login", "POST", "{{base}}/login")
	def = login.Definition()
	def.Body = core.Body{Type: core.BodyFormURLEncoded, Fields: []core.KeyValue{
		{Key: "user", Value: "ada", Enabled: true},
		{Key: "remember", Value: "1", Enabled: false},
	}}
	login.SetDefinition(def)
	p.Root.Append(login)

	return p
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("default registry order", func(t *testing.T) {
		r := NewDefaultRegistry()
		assert.Equal(t, []Format{FormatPostman, FormatCurl, FormatOpenAPI}, r.ListFormats())
	})

	t.Run("register replaces same format", func(t *testing.T) {
		r := NewRegistry()
		r.Register(NewCurlExporter())
		r.Register(&CurlExporter{})
		assert.Equal(t, []Format{FormatCurl}, r.ListFormats())

		exp, ok := r.Get(FormatCurl)
		require.True(t, ok)
		assert.False(t, exp.(*CurlExporter).Pretty)
	})

	t.Run("exports with extension", func(t *testing.T) {
		r := NewDefaultRegistry()
		result, err := r.Export(ctx, FormatPostman, shopProject())
		require.NoError(t, err)
		assert.Equal(t, FormatPostman, result.Format)
		assert.Equal(t, ".postman_collection.json", result.FileExtension)
		assert.NotEmpty(t, result.Content)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewRegistry().Export(ctx, FormatCurl, shopProject())
		assert.ErrorIs(t, err, ErrExportFailed)
	})

	t.Run("nil project", func(t *testing.T) {
		for _, format := range []Format{FormatPostman, FormatCurl, FormatOpenAPI} {
			_, err := NewDefaultRegistry().Export(ctx, format, nil)
			assert.ErrorIs(t, err, ErrInvalidProject, "format %s", format)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewDefaultRegistry().Export(cancelled, FormatPostman, shopProject())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPostmanExporter_RoundTrip(t *testing.T) {
	original := shopProject()

	data, err := NewPostmanExporter().Export(context.Background(), original)
	require.NoError(t, err)
	assert.Contains(t, string(data), "v2.1.0")

	imported, err := importer.NewPostmanImporter(ident.NewSequence("i")).Import(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "Shop API", imported.Name)
	assert.Equal(t, "demo", imported.Description)
	require.NotNil(t, imported.DefaultAuth)
	assert.Equal(t, core.NewBearerAuth("secret"), *imported.DefaultAuth)

	vars := imported.ActiveEnvironment().Variables
	require.Len(t, vars, 2)
	assert.Equal(t, "base", vars[0].Key)
	assert.True(t, vars[0].Enabled)
	assert.Equal(t, "old", vars[1].Key)
	assert.False(t, vars[1].Enabled)

	require.Equal(t, 3, imported.Root.Len())
	users, ok := imported.Root.ChildAt(0).(*core.Folder)
	require.True(t, ok)
	assert.Equal(t, "Users", users.Name())
	require.Equal(t, 3, users.Len())

	origUsers := original.Root.ChildAt(0).(*core.Folder)
	for i := 0; i < users.Len(); i++ {
		want := origUsers.ChildAt(i).(*core.Request)
		got := users.ChildAt(i).(*core.Request)
		assert.Equal(t, want.Name(), got.Name())
		assert.Equal(t, want.Description(), got.Description())
		assert.Equal(t, want.Definition(), got.Definition(), want.Name())
	}

	for i := 1; i < 3; i++ {
		want := original.Root.ChildAt(i).(*core.Request)
		got := imported.Root.ChildAt(i).(*core.Request)
		assert.Equal(t, want.Name(), got.Name())
		assert.Equal(t, want.Definition(), got.Definition(), want.Name())
	}
}

func TestPostmanExporter_Cookies(t *testing.T) {
	p := core.NewProject(ident.NewSequence("t"), "Cookies")
	req := core.NewRequest("r", "Profile", "GET", "https://example.com/me")
	def := req.Definition()
	def.Headers = []core.KeyValue{{Key: "Cookie", Value: "old=1", Enabled: false}}
	def.Cookies = []core.Cookie{{Name: "s", Value: "1"}}
	req.SetDefinition(def)
	p.Root.Append(req)

	data, err := NewPostmanExporter().Export(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value": "s=1"`)

	imported, err := importer.NewPostmanImporter(ident.NewSequence("i")).Import(context.Background(), data)
	require.NoError(t, err)
	got := imported.Root.ChildAt(0).(*core.Request).Definition()
	assert.Equal(t, []core.Cookie{{Name: "s", Value: "1"}}, got.Cookies)
	assert.Equal(t, def.Headers, got.Headers, "a disabled Cookie header stays a header")
}

func TestPostmanExporter_Binary(t *testing.T) {
	p := core.NewProject(ident.NewSequence("t"), "Files")
	req := core.NewRequest("r", "Put blob", "PUT", "https://example.com/blob")
	def := req.Definition()
	def.Body = core.Body{Type: core.BodyBinary, Filename: "/tmp/blob.bin"}
	req.SetDefinition(def)
	p.Root.Append(req)

	data, err := NewPostmanExporter().Export(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode": "file"`)
	assert.Contains(t, string(data), `"src": "/tmp/blob.bin"`)
}

func TestCurlExporter_ExportRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("plain GET", func(t *testing.T) {
		out, err := (&CurlExporter{}).ExportRequest(ctx, core.NewRequestDefinition("GET", "https://api.example.com/health"))
		require.NoError(t, err)
		assert.Equal(t, "curl https://api.example.com/health", string(out))
	})

	t.Run("missing URL", func(t *testing.T) {
		_, err := NewCurlExporter().ExportRequest(ctx, core.NewRequestDefinition("GET", ""))
		assert.ErrorIs(t, err, ErrExportFailed)
	})

	t.Run("quotes single quotes", func(t *testing.T) {
		assert.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
		assert.Equal(t, "plain", shellQuote("plain"))
		assert.Equal(t, "''", shellQuote(""))
	})

	t.Run("auth omitted unless requested", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", "https://example.com")
		def.Auth = core.NewBearerAuth("tok")
		out, err := (&CurlExporter{}).ExportRequest(ctx, def)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "Authorization")
	})

	t.Run("api key in query", func(t *testing.T) {
		def := core.NewRequestDefinition("GET", "https://example.com/items")
		def.Auth = core.NewAPIKeyAuth("api_key", "k1", core.APIKeyInQuery)
		out, err := (&CurlExporter{IncludeAuth: true}).ExportRequest(ctx, def)
		require.NoError(t, err)
		assert.Equal(t, "curl 'https://example.com/items?api_key=k1'", string(out))
	})

	t.Run("pretty output", func(t *testing.T) {
		def := core.NewRequestDefinition("DELETE", "https://example.com/items/1")
		out, err := (&CurlExporter{Pretty: true}).ExportRequest(ctx, def)
		require.NoError(t, err)
		assert.Equal(t, "curl \\\n  -X DELETE \\\n  https://example.com/items/1", string(out))
	})
}

func TestCurlExporter_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		def  func() core.RequestDefinition
		// adjust maps the original onto what the importer is expected to produce.
		adjust func(d *core.RequestDefinition)
	}{
		{
			name: "json body with settings",
			def: func() core.RequestDefinition {
				d := core.NewRequestDefinition("POST", "https://api.example.com/users")
				d.QueryParams = []core.KeyValue{{Key: "x", Value: "{{x}}", Enabled: true}}
				d.Headers = []core.KeyValue{{Key: "Accept", Value: "application/json", Enabled: true}}
				d.Cookies = []core.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
				d.Body = core.RawBody("{\n  \"name\": \"ada's\"\n}", "application/json")
				d.Auth = core.NewBasicAuth("ada", "pw")
				d.Settings = core.Settings{
					TimeoutMs:       2500,
					FollowRedirects: boolPtr(true),
					MaxRedirects:    3,
					VerifyTLS:       boolPtr(false),
					Proxy:           &core.Proxy{URL: "http://proxy:8080", Username: "u", Password: "p"},
				}
				return d
			},
			adjust: func(d *core.RequestDefinition) {
				d.Headers = append(d.Headers, core.KeyValue{Key: "Content-Type", Value: "application/json", Enabled: true})
			},
		},
		{
			name: "bearer and multipart",
			def: func() core.RequestDefinition {
				d := core.NewRequestDefinition("POST", "https://api.example.com/files")
				d.Body = core.Body{Type: core.BodyMultipart, Parts: []core.MultipartPart{
					{Name: "note", Value: "hi"},
					{Name: "file", IsFile: true, Filename: "/tmp/a.csv", ContentType: "text/csv"},
				}}
				d.Auth = core.NewBearerAuth("tok")
				d.Settings.FollowRedirects = boolPtr(true)
				return d
			},
			adjust: func(d *core.RequestDefinition) {
				// the lifted Authorization header leaves an empty list behind
				d.Headers = []core.KeyValue{}
			},
		},
		{
			name: "urlencoded drops disabled fields",
			def: func() core.RequestDefinition {
				d := core.NewRequestDefinition("POST", "https://api.example.com/login")
				d.Body = core.Body{Type: core.BodyFormURLEncoded, Fields: []core.KeyValue{
					{Key: "user", Value: "ada", Enabled: true},
					{Key: "remember", Value: "1", Enabled: false},
				}}
				d.Settings.FollowRedirects = boolPtr(true)
				return d
			},
			adjust: func(d *core.RequestDefinition) {
				d.Body.Fields = d.Body.Fields[:1]
			},
		},
		{
			name: "binary file over http3",
			def: func() core.RequestDefinition {
				d := core.NewRequestDefinition("PUT", "https://api.example.com/blob")
				d.Body = core.Body{Type: core.BodyBinary, Filename: "/tmp/blob.bin", ContentType: "image/png"}
				d.Settings.FollowRedirects = boolPtr(false)
				d.Settings.Protocol = core.ProtocolQUIC
				return d
			},
			adjust: func(d *core.RequestDefinition) {
				d.Headers = []core.KeyValue{{Key: "Content-Type", Value: "image/png", Enabled: true}}
				d.Settings.FollowRedirects = nil
			},
		},
	}

	for _, tt := range tests {
		for _, pretty := range []bool{false, true} {
			t.Run(tt.name, func(t *testing.T) {
				original := tt.def()
				out, err := (&CurlExporter{Pretty: pretty, IncludeAuth: true}).ExportRequest(context.Background(), original)
				require.NoError(t, err)

				got, err := importer.ParseCurl(string(out))
				require.NoError(t, err, string(out))

				want := original.Clone()
				if tt.adjust != nil {
					tt.adjust(&want)
				}
				assert.Equal(t, want, got, string(out))
			})
		}
	}
}

func TestCurlExporter_Export(t *testing.T) {
	data, err := (&CurlExporter{IncludeAuth: true}).Export(context.Background(), shopProject())
	require.NoError(t, err)
	script := string(data)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n# Project: Shop API\n# demo\n"))
	assert.Contains(t, script, "# Users / List users\ncurl ")
	assert.Contains(t, script, "# Users / Create user\ncurl -X POST")
	assert.Contains(t, script, "# Upload\ncurl -X POST")
	assert.Contains(t, script, "'{{base}}/users?page=1'")
	assert.NotContains(t, script, "limit=10")
	assert.Equal(t, 5, strings.Count(script, "\ncurl "))
}

func TestOpenAPIExporter(t *testing.T) {
	data, err := NewOpenAPIExporter().Export(context.Background(), shopProject())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, "3.0.3", doc["openapi"])
	info := doc["info"].(map[string]interface{})
	assert.Equal(t, "Shop API", info["title"])
	assert.Equal(t, "demo", info["description"])

	servers := doc["servers"].([]interface{})
	assert.Equal(t, "https://api.example.com", servers[0].(map[string]interface{})["url"])

	tags := doc["tags"].([]interface{})
	require.Len(t, tags, 1)
	assert.Equal(t, "Users", tags[0].(map[string]interface{})["name"])

	schemes := doc["components"].(map[string]interface{})["securitySchemes"].(map[string]interface{})
	assert.Contains(t, schemes, "bearerAuth")
	assert.Contains(t, schemes, "basicAuth")

	paths := doc["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/users")
	assert.Contains(t, paths, "/users/{id}")
	assert.Contains(t, paths, "/files")
	assert.Contains(t, paths, "/login")

	users := paths["/users"].(map[string]interface{})
	list := users["get"].(map[string]interface{})
	assert.Equal(t, "List users", list["summary"])
	assert.Equal(t, "listUsers", list["operationId"])
	assert.Equal(t, []interface{}{"Users"}, list["tags"])
	params := list["parameters"].([]interface{})
	require.Len(t, params, 4)
	assert.Equal(t, "page", params[0].(map[string]interface{})["name"])
	assert.Equal(t, "query", params[0].(map[string]interface{})["in"])
	assert.Equal(t, "Accept", params[1].(map[string]interface{})["name"])
	assert.Equal(t, "session", params[2].(map[string]interface{})["name"])
	assert.Equal(t, "cookie", params[2].(map[string]interface{})["in"])

	create := users["post"].(map[string]interface{})
	content := create["requestBody"].(map[string]interface{})["content"].(map[string]interface{})
	assert.Contains(t, content, "application/json")

	get := paths["/users/{id}"].(map[string]interface{})["get"].(map[string]interface{})
	idParam := get["parameters"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "id", idParam["name"])
	assert.Equal(t, "path", idParam["in"])
	assert.Equal(t, true, idParam["required"])

	resp := get["responses"].(map[string]interface{})["200"].(map[string]interface{})
	assert.Equal(t, "OK", resp["description"])
	schema := resp["content"].(map[string]interface{})["application/json"].(map[string]interface{})["schema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]interface{})
	assert.Equal(t, "integer", props["id"].(map[string]interface{})["type"])
	assert.Equal(t, "string", props["name"].(map[string]interface{})["type"])

	upload := paths["/files"].(map[string]interface{})["post"].(map[string]interface{})
	form := upload["requestBody"].(map[string]interface{})["content"].(map[string]interface{})["multipart/form-data"].(map[string]interface{})
	fileProp := form["schema"].(map[string]interface{})["properties"].(map[string]interface{})["file"].(map[string]interface{})
	assert.Equal(t, "binary", fileProp["format"])
}

func TestOpenAPIExporter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	original := shopProject()
	data, err := NewOpenAPIExporter().Export(ctx, original)
	require.NoError(t, err)

	imported, err := importer.NewOpenAPIImporter(ident.NewSequence("rt")).Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, original.Name, imported.Name)
	assert.Equal(t, original.Description, imported.Description)
	assert.Equal(t, original.BaseURL, imported.BaseURL)
	require.NotNil(t, imported.DefaultAuth)
	assert.Equal(t, core.AuthTypeBearer, imported.DefaultAuth.Type)

	requests := func(p *core.Project) map[string]core.RequestDefinition {
		out := make(map[string]core.RequestDefinition)
		var walk func(f *core.Folder, prefix string)
		walk = func(f *core.Folder, prefix string) {
			for _, child := range f.Children() {
				switch item := child.(type) {
				case *core.Folder:
					walk(item, prefix+item.Name()+"/")
				case *core.Request:
					out[prefix+item.Name()] = item.Definition()
				}
			}
		}
		walk(p.Root, "")
		return out
	}
	enabled := func(kvs []core.KeyValue) []core.KeyValue {
		var out []core.KeyValue
		for _, kv := range kvs {
			if kv.Enabled {
				out = append(out, kv)
			}
		}
		return out
	}

	want := requests(original)
	got := requests(imported)
	require.Len(t, got, len(want))
	for name, def := range want {
		t.Run(name, func(t *testing.T) {
			back, ok := got[name]
			require.True(t, ok, "request %q missing after import", name)
			assert.Equal(t, def.Method, back.Method)
			assert.Equal(t, operationPath(def.URL, original.BaseURL), operationPath(back.URL, imported.BaseURL))
			assert.Equal(t, enabled(def.QueryParams), back.QueryParams)
			assert.Equal(t, enabled(def.Headers), back.Headers)
			assert.Equal(t, def.Cookies, back.Cookies)
			assert.Equal(t, def.Body.Type, back.Body.Type)
			assert.Equal(t, def.Auth.Type, back.Auth.Type)
		})
	}

	create := got["Users/Create user"]
	assert.JSONEq(t, `{"name":"ada"}`, create.Body.Content)
	assert.Equal(t, "https://api.example.com/users/{{id}}", got["Users/Get user"].URL)
}

func TestOperationPath(t *testing.T) {
	tests := []struct {
		url, base, want string
	}{
		{"https://api.example.com/users", "", "/users"},
		{"https://api.example.com/users/{{id}}?x=1", "https://api.example.com", "/users/{id}"},
		{"{{base}}/orders/{{ orderId }}", "", "/orders/{orderId}"},
		{"https://{{host}}/status", "", "/status"},
		{"https://api.example.com", "", "/"},
		{"/relative", "", "/relative"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, operationPath(tt.url, tt.base))
		})
	}

	assert.Equal(t, []string{"a", "b"}, pathParams("/x/{a}/y/{b}"))
	assert.Nil(t, pathParams("/x"))
	assert.Equal(t, "get_users_orders", operationID("GET", "/users/{id}/orders", ""))
}
