package importer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	protohttp "github.com/artpar/apiary/internal/protocol/http"
)

// HARImporter imports HTTP Archive (HAR 1.2) files. Entries are grouped into
// one folder per host and keep their recorded response.
type HARImporter struct {
	alloc ident.Allocator
}

// NewHARImporter creates a new HAR importer.
func NewHARImporter(alloc ident.Allocator) *HARImporter {
	return &HARImporter{alloc: ident.OrDefault(alloc)}
}

func (h *HARImporter) Name() string {
	return "HTTP Archive (HAR)"
}

func (h *HARImporter) Format() Format {
	return FormatHAR
}

func (h *HARImporter) FileExtensions() []string {
	return []string{".har"}
}

func (h *HARImporter) DetectFormat(content []byte) bool {
	var check struct {
		Log *struct {
			Version string            `json:"version"`
			Entries []json.RawMessage `json:"entries"`
		} `json:"log"`
	}

	if err := json.Unmarshal(content, &check); err != nil || check.Log == nil {
		return false
	}
	return check.Log.Version != "" || check.Log.Entries != nil
}

func (h *HARImporter) Import(ctx context.Context, content []byte) (*core.Project, error) {
	var har harFile
	if err := json.Unmarshal(content, &har); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}

	name := "HAR Import"
	if har.Log.Creator.Name != "" {
		name = fmt.Sprintf("HAR from %s", har.Log.Creator.Name)
	}
	project := core.NewProject(h.alloc, name)

	hostFolders := make(map[string]*core.Folder)
	for i, entry := range har.Log.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parsed, err := url.Parse(entry.Request.URL)
		if err != nil || parsed.Host == "" {
			continue
		}

		folder, ok := hostFolders[parsed.Host]
		if !ok {
			folder = core.NewFolder(h.alloc.NewID(), parsed.Host)
			project.Root.Append(folder)
			hostFolders[parsed.Host] = folder
		}

		req := core.NewRequest(h.alloc.NewID(), harRequestName(parsed, i), "", "")
		req.SetDefinition(convertHARRequest(entry.Request))
		req.SetResponse(convertHARResponse(entry))
		folder.Append(req)
	}

	return project, nil
}

func convertHARRequest(r harRequest) core.RequestDefinition {
	def := core.NewRequestDefinition(r.Method, "")
	def.URL, def.QueryParams = splitURL(r.URL)

	for _, header := range r.Headers {
		// HTTP/2 pseudo-headers and cookies are carried elsewhere.
		if strings.HasPrefix(header.Name, ":") || strings.EqualFold(header.Name, "Cookie") {
			continue
		}
		def.Headers = append(def.Headers, core.KeyValue{Key: header.Name, Value: header.Value, Enabled: true})
	}
	for _, c := range r.Cookies {
		def.Cookies = append(def.Cookies, core.Cookie{Name: c.Name, Value: c.Value})
	}

	if r.PostData == nil {
		return def
	}
	switch {
	case strings.HasPrefix(r.PostData.MimeType, "application/x-www-form-urlencoded") && len(r.PostData.Params) > 0:
		def.Body = core.Body{Type: core.BodyFormURLEncoded}
		for _, p := range r.PostData.Params {
			def.Body.Fields = append(def.Body.Fields, core.KeyValue{Key: p.Name, Value: p.Value, Enabled: true})
		}
	case strings.HasPrefix(r.PostData.MimeType, "multipart/form-data") && len(r.PostData.Params) > 0:
		def.Body = core.Body{Type: core.BodyMultipart}
		for _, p := range r.PostData.Params {
			def.Body.Parts = append(def.Body.Parts, core.MultipartPart{
				Name:        p.Name,
				Value:       p.Value,
				IsFile:      p.FileName != "",
				Filename:    p.FileName,
				ContentType: p.ContentType,
			})
		}
	case r.PostData.Text != "":
		def.Body = core.RawBody(r.PostData.Text, r.PostData.MimeType)
	}
	return def
}

func convertHARResponse(entry harEntry) *core.Response {
	r := entry.Response
	if r.Status == 0 {
		return nil
	}

	body := []byte(r.Content.Text)
	if r.Content.Encoding == "base64" {
		if decoded, err := base64.StdEncoding.DecodeString(r.Content.Text); err == nil {
			body = decoded
		}
	}

	resp := &core.Response{
		Status:              r.Status,
		StatusText:          strings.TrimSpace(fmt.Sprintf("%d %s", r.Status, r.StatusText)),
		BodyBase64:          base64.StdEncoding.EncodeToString(body),
		HTTPVersion:         r.HTTPVersion,
		DetectedContentType: r.Content.MimeType,
		RemoteAddr:          entry.ServerIPAddress,
		ProtocolUsed:        string(core.ProtocolTCP),
		Renderers:           protohttp.DetectRenderers(r.Content.MimeType, body),
		Timing: core.Timing{
			TotalMs:           entry.Time,
			DNSLookupMs:       nonNegative(entry.Timings.DNS),
			TCPHandshakeMs:    nonNegative(entry.Timings.Connect),
			TLSHandshakeMs:    nonNegative(entry.Timings.SSL),
			TTFBMs:            nonNegative(entry.Timings.Wait),
			ContentDownloadMs: nonNegative(entry.Timings.Receive),
		},
		ResponseSize: core.Size{
			HeadersBytes: max(r.HeadersSize, 0),
			BodyBytes:    len(body),
			TotalBytes:   max(r.HeadersSize, 0) + len(body),
		},
	}
	for _, header := range r.Headers {
		resp.Headers = append(resp.Headers, core.KeyValue{Key: header.Name, Value: header.Value, Enabled: true})
	}
	for _, c := range r.Cookies {
		resp.Cookies = append(resp.Cookies, core.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	if started, err := time.Parse(time.RFC3339Nano, entry.StartedDateTime); err == nil {
		resp.ReceivedAt = started.Add(time.Duration(entry.Time * float64(time.Millisecond)))
	}
	return resp
}

// HAR uses -1 for phases that do not apply.
func nonNegative(ms float64) float64 {
	if ms < 0 {
		return 0
	}
	return ms
}

func harRequestName(u *url.URL, index int) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		return last
	}
	return fmt.Sprintf("Request %d", index+1)
}

// HAR format structures (HTTP Archive 1.2)

type harFile struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Timings         harTimings  `json:"timings"`
	ServerIPAddress string      `json:"serverIPAddress,omitempty"`
}

type harRequest struct {
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Headers  []harNameValue `json:"headers"`
	Cookies  []harCookie    `json:"cookies"`
	PostData *harPostData   `json:"postData,omitempty"`
}

type harResponse struct {
	Status      int            `json:"status"`
	StatusText  string         `json:"statusText"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []harNameValue `json:"headers"`
	Cookies     []harCookie    `json:"cookies"`
	Content     harContent     `json:"content"`
	HeadersSize int            `json:"headersSize"`
}

type harNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

type harPostData struct {
	MimeType string         `json:"mimeType"`
	Text     string         `json:"text,omitempty"`
	Params   []harPostParam `json:"params,omitempty"`
}

type harPostParam struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

type harTimings struct {
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	SSL     float64 `json:"ssl"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

var _ Importer = (*HARImporter)(nil)
