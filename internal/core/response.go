package core

import (
	"encoding/base64"
	"strings"
	"time"
)

// Renderer names a way the UI can display a response body.
type Renderer string

const (
	RendererRaw         Renderer = "raw"
	RendererJSON        Renderer = "json"
	RendererXML         Renderer = "xml"
	RendererHTML        Renderer = "html"
	RendererHTMLPreview Renderer = "html_preview"
	RendererImage       Renderer = "image"
	RendererAudio       Renderer = "audio"
	RendererVideo       Renderer = "video"
	RendererPDF         Renderer = "pdf"
)

// Timing breaks down where the time of an exchange was spent.
type Timing struct {
	TotalMs           float64 `json:"total_ms" yaml:"total_ms"`
	DNSLookupMs       float64 `json:"dns_lookup_ms" yaml:"dns_lookup_ms"`
	TCPHandshakeMs    float64 `json:"tcp_handshake_ms" yaml:"tcp_handshake_ms"`
	TLSHandshakeMs    float64 `json:"tls_handshake_ms" yaml:"tls_handshake_ms"`
	TTFBMs            float64 `json:"ttfb_ms" yaml:"ttfb_ms"`
	ContentDownloadMs float64 `json:"content_download_ms" yaml:"content_download_ms"`
}

// Size counts header and body bytes of one side of an exchange.
type Size struct {
	HeadersBytes int `json:"headers_bytes" yaml:"headers_bytes"`
	BodyBytes    int `json:"body_bytes" yaml:"body_bytes"`
	TotalBytes   int `json:"total_bytes" yaml:"total_bytes"`
}

// Redirect is one hop of a followed redirect chain.
type Redirect struct {
	URL    string `json:"url" yaml:"url"`
	Status int    `json:"status" yaml:"status"`
}

// Response is the snapshot of the last result received for a request.
// Responses are never mutated after construction.
type Response struct {
	Status              int        `json:"status" yaml:"status"`
	StatusText          string     `json:"status_text" yaml:"status_text"`
	Headers             []KeyValue `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies             []Cookie   `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	BodyBase64          string     `json:"body_base64,omitempty" yaml:"body_base64,omitempty"`
	Timing              Timing     `json:"timing" yaml:"timing"`
	RequestSize         Size       `json:"request_size" yaml:"request_size"`
	ResponseSize        Size       `json:"response_size" yaml:"response_size"`
	Redirects           []Redirect `json:"redirects,omitempty" yaml:"redirects,omitempty"`
	RemoteAddr          string     `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	HTTPVersion         string     `json:"http_version" yaml:"http_version"`
	Renderers           []Renderer `json:"renderers,omitempty" yaml:"renderers,omitempty"`
	DetectedContentType string     `json:"detected_content_type,omitempty" yaml:"detected_content_type,omitempty"`
	ProtocolUsed        string     `json:"protocol_used" yaml:"protocol_used"`
	ReceivedAt          time.Time  `json:"received_at" yaml:"received_at"`
}

// Body decodes the response body.
func (r *Response) Body() []byte {
	if r == nil || r.BodyBase64 == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(r.BodyBase64)
	if err != nil {
		return nil
	}
	return data
}

// Header returns the first response header with the given key.
func (r *Response) Header(key string) string {
	if r == nil {
		return ""
	}
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}
