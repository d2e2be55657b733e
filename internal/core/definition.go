package core

import (
	"net/url"
	"strings"
)

// HTTP methods known to the workspace, in sort precedence order.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE", "CONNECT"}

// KeyValue is an ordered, toggleable header, query parameter or form field.
type KeyValue struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Cookie is a cookie sent with a request or received in a response.
type Cookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Expires  string `json:"expires,omitempty" yaml:"expires,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty" yaml:"http_only,omitempty"`
	Secure   bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// BodyType selects the body variant.
type BodyType string

const (
	BodyNone           BodyType = "none"
	BodyRaw            BodyType = "raw"
	BodyFormURLEncoded BodyType = "urlencoded"
	BodyMultipart      BodyType = "multipart"
	BodyBinary         BodyType = "binary"
)

// MultipartPart is one part of a multipart body: a text value or a file.
type MultipartPart struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value,omitempty" yaml:"value,omitempty"`
	IsFile      bool   `json:"is_file,omitempty" yaml:"is_file,omitempty"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty" yaml:"data,omitempty"`
}

// Body is the body variant of a request definition.
// Only the fields belonging to Type are meaningful.
type Body struct {
	Type        BodyType        `json:"type" yaml:"type"`
	Content     string          `json:"content,omitempty" yaml:"content,omitempty"`
	ContentType string          `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Fields      []KeyValue      `json:"fields,omitempty" yaml:"fields,omitempty"`
	Parts       []MultipartPart `json:"parts,omitempty" yaml:"parts,omitempty"`
	Data        []byte          `json:"data,omitempty" yaml:"data,omitempty"`
	Filename    string          `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// NoBody returns the empty body variant.
func NoBody() Body {
	return Body{Type: BodyNone}
}

// RawBody returns a raw body with an optional content type.
func RawBody(content, contentType string) Body {
	return Body{Type: BodyRaw, Content: content, ContentType: contentType}
}

// IsEmpty reports whether the body carries no payload.
func (b Body) IsEmpty() bool {
	switch b.Type {
	case BodyRaw:
		return b.Content == ""
	case BodyFormURLEncoded:
		return len(b.Fields) == 0
	case BodyMultipart:
		return len(b.Parts) == 0
	case BodyBinary:
		return len(b.Data) == 0
	}
	return true
}

func (b Body) clone() Body {
	out := b
	out.Fields = cloneKeyValues(b.Fields)
	if b.Parts != nil {
		out.Parts = make([]MultipartPart, len(b.Parts))
		for i, p := range b.Parts {
			p.Data = append([]byte(nil), p.Data...)
			out.Parts[i] = p
		}
	}
	if b.Data != nil {
		out.Data = append([]byte(nil), b.Data...)
	}
	return out
}

// Protocol selects the transport used to execute a request.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolQUIC Protocol = "quic"
)

// Proxy routes a request through an HTTP proxy.
type Proxy struct {
	URL      string `json:"url" yaml:"url"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Settings holds per-request transport options. Zero values mean "use the default".
type Settings struct {
	TimeoutMs       int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	FollowRedirects *bool    `json:"follow_redirects,omitempty" yaml:"follow_redirects,omitempty"`
	MaxRedirects    int      `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty"`
	VerifyTLS       *bool    `json:"verify_tls,omitempty" yaml:"verify_tls,omitempty"`
	Protocol        Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Proxy           *Proxy   `json:"proxy,omitempty" yaml:"proxy,omitempty"`
}

// ShouldFollowRedirects defaults to true.
func (s Settings) ShouldFollowRedirects() bool {
	return s.FollowRedirects == nil || *s.FollowRedirects
}

// ShouldVerifyTLS defaults to true.
func (s Settings) ShouldVerifyTLS() bool {
	return s.VerifyTLS == nil || *s.VerifyTLS
}

func (s Settings) clone() Settings {
	out := s
	if s.FollowRedirects != nil {
		v := *s.FollowRedirects
		out.FollowRedirects = &v
	}
	if s.VerifyTLS != nil {
		v := *s.VerifyTLS
		out.VerifyTLS = &v
	}
	if s.Proxy != nil {
		p := *s.Proxy
		out.Proxy = &p
	}
	return out
}

// RequestDefinition is everything needed to execute a request.
type RequestDefinition struct {
	Method      string     `json:"method" yaml:"method"`
	URL         string     `json:"url" yaml:"url"`
	Headers     []KeyValue `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams []KeyValue `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	Cookies     []Cookie   `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Body        Body       `json:"body" yaml:"body"`
	Auth        Auth       `json:"auth" yaml:"auth"`
	Settings    Settings   `json:"settings" yaml:"settings"`
}

// NewRequestDefinition creates a definition with no body and no auth.
func NewRequestDefinition(method, rawURL string) RequestDefinition {
	if method == "" {
		method = "GET"
	}
	return RequestDefinition{
		Method: strings.ToUpper(method),
		URL:    rawURL,
		Body:   NoBody(),
		Auth:   NoAuth(),
	}
}

// Header returns the first enabled header with the given key (case-insensitive).
func (d RequestDefinition) Header(key string) string {
	for _, h := range d.Headers {
		if h.Enabled && strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

// SetHeader replaces the first header with the given key or appends a new one.
func (d *RequestDefinition) SetHeader(key, value string) {
	for i, h := range d.Headers {
		if strings.EqualFold(h.Key, key) {
			d.Headers[i].Value = value
			d.Headers[i].Enabled = true
			return
		}
	}
	d.Headers = append(d.Headers, KeyValue{Key: key, Value: value, Enabled: true})
}

// SetQueryParam replaces the first parameter with the given key or appends a new one.
func (d *RequestDefinition) SetQueryParam(key, value string) {
	for i, q := range d.QueryParams {
		if q.Key == key {
			d.QueryParams[i].Value = value
			d.QueryParams[i].Enabled = true
			return
		}
	}
	d.QueryParams = append(d.QueryParams, KeyValue{Key: key, Value: value, Enabled: true})
}

// FullURL returns the URL with the enabled query parameters appended.
func (d RequestDefinition) FullURL() string {
	var enabled []KeyValue
	for _, q := range d.QueryParams {
		if q.Enabled {
			enabled = append(enabled, q)
		}
	}
	if len(enabled) == 0 {
		return d.URL
	}
	parsed, err := url.Parse(d.URL)
	if err != nil {
		return d.URL
	}
	q := parsed.Query()
	for _, kv := range enabled {
		q.Add(kv.Key, kv.Value)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// Clone creates a deep copy of the definition.
func (d RequestDefinition) Clone() RequestDefinition {
	out := d
	out.Headers = cloneKeyValues(d.Headers)
	out.QueryParams = cloneKeyValues(d.QueryParams)
	if d.Cookies != nil {
		out.Cookies = append([]Cookie(nil), d.Cookies...)
	}
	out.Body = d.Body.clone()
	out.Settings = d.Settings.clone()
	return out
}

func cloneKeyValues(in []KeyValue) []KeyValue {
	if in == nil {
		return nil
	}
	return append([]KeyValue(nil), in...)
}
