package storage

import (
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
)

// SampleSnapshot builds a snapshot exercising every stored field. Ids come
// from a "s" sequence, so the login request is "s-5" and the upload request is "s-6".
func SampleSnapshot() *Snapshot {
	alloc := ident.NewSequence("s")
	p := core.NewProject(alloc, "Billing API") // env s-1, project s-2, root s-3
	p.Description = "Invoices and payments"
	p.BaseURL = "https://billing.example.com"
	bearer := core.NewBearerAuth("{{token}}")
	p.DefaultAuth = &bearer

	env := p.Environments[0]
	env.Variables = []core.Variable{
		{ID: "var-1", Key: "host", Value: "billing.example.com", Enabled: true},
		{ID: "var-2", Key: "token", Value: "secret", Enabled: false},
	}

	auth := core.NewFolder(alloc.NewID(), "Auth") // s-4
	auth.SetExpanded(false)

	login := core.NewRequest(alloc.NewID(), "Login", "POST", "https://{{host}}/login") // s-5
	login.SetDescription("Exchange credentials for a token")
	def := login.Definition()
	def.Headers = []core.KeyValue{
		{Key: "Content-Type", Value: "application/json", Enabled: true},
		{Key: "X-Debug", Value: "1", Enabled: false},
	}
	def.QueryParams = []core.KeyValue{{Key: "v", Value: "2", Enabled: true}}
	def.Body = core.RawBody(`{"user":"ada"}`, "application/json")
	def.Auth = core.NewBasicAuth("ada", "lovelace")
	follow := false
	def.Settings = core.Settings{TimeoutMs: 5000, FollowRedirects: &follow, MaxRedirects: 3}
	login.SetDefinition(def)
	login.SetResponse(&core.Response{
		Status:      200,
		StatusText:  "200 OK",
		Headers:     []core.KeyValue{{Key: "Content-Type", Value: "application/json", Enabled: true}},
		BodyBase64:  "eyJvayI6dHJ1ZX0=",
		Timing:      core.Timing{TotalMs: 12.5},
		HTTPVersion: "HTTP/1.1",
		Renderers:   []core.Renderer{core.RendererRaw, core.RendererJSON},
		ReceivedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	auth.Append(login)

	upload := core.NewRequest(alloc.NewID(), "Upload", "PUT", "https://{{host}}/files") // s-6
	udef := upload.Definition()
	udef.Body = core.Body{
		Type: core.BodyMultipart,
		Parts: []core.MultipartPart{
			{Name: "note", Value: "hello"},
			{Name: "file", IsFile: true, Filename: "a.bin", ContentType: "application/octet-stream", Data: []byte{0, 1, 2, 255}},
		},
	}
	upload.SetDefinition(udef)

	p.Root.Append(auth)
	p.Root.Append(upload)

	return &Snapshot{
		Projects:        []*core.Project{p},
		ActiveProjectID: p.ID,
		ActiveRequestID: login.ID(),
		SelectedItemID:  auth.ID(),
		Dirty:           []string{upload.ID()},
		Clipboard:       &core.Clipboard{ItemID: login.ID(), Mode: core.ClipboardCopy},
		SavedAt:         time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}
