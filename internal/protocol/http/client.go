// Package http executes request definitions over HTTP/1.1 and HTTP/2.
package http

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/artpar/apiary/internal/core"
	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects caps a redirect chain when the request does not.
const DefaultMaxRedirects = 10

// ErrProtocolUnsupported is returned for transports this client cannot speak.
var ErrProtocolUnsupported = errors.New("protocol not supported")

// Client executes core.RequestDefinition values.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Config holds HTTP client configuration.
type Config struct {
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
}

// Option is a function that configures the Client.
type Option func(*Client)

// NewClient creates a new HTTP client with the given options. Cookies set by
// responses are kept for the lifetime of the client.
func NewClient(opts ...Option) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		config: Config{
			Timeout:        30 * time.Second,
			FollowRedirect: true,
			MaxRedirects:   DefaultMaxRedirects,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithTimeout sets the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.Timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithTransport sets a custom HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = transport
	}
}

// WithNoRedirects disables redirect following unless a request enables it.
func WithNoRedirects() Option {
	return func(c *Client) {
		c.config.FollowRedirect = false
	}
}

// WithoutCookieJar disables the session cookie jar.
func WithoutCookieJar() Option {
	return func(c *Client) {
		c.httpClient.Jar = nil
	}
}

// Protocol returns the protocol identifier.
func (c *Client) Protocol() string {
	return "http"
}

// Execute sends the request and captures the response snapshot.
func (c *Client) Execute(ctx context.Context, def core.RequestDefinition) (*core.Response, error) {
	if def.Settings.Protocol == core.ProtocolQUIC {
		return nil, fmt.Errorf("%w: HTTP/3 over QUIC", ErrProtocolUnsupported)
	}

	if def.Settings.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.Settings.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	transport, cleanup, err := c.transportFor(def.Settings)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var redirects []core.Redirect
	follow := c.config.FollowRedirect
	if def.Settings.FollowRedirects != nil {
		follow = *def.Settings.FollowRedirects
	}
	maxRedirects := c.config.MaxRedirects
	if def.Settings.MaxRedirects > 0 {
		maxRedirects = def.Settings.MaxRedirects
	}

	client := &http.Client{
		Transport: transport,
		Jar:       c.httpClient.Jar,
		Timeout:   c.httpClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !follow {
				return http.ErrUseLastResponse
			}
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			redirects = append(redirects, core.Redirect{URL: req.URL.String(), Status: req.Response.StatusCode})
			return nil
		},
	}
	if def.Settings.TimeoutMs > 0 {
		client.Timeout = 0
	}

	trace := &timingTrace{}
	ctx = httptrace.WithClientTrace(ctx, trace.clientTrace())

	httpReq, reqSize, err := toHTTPRequest(ctx, def)
	if err != nil {
		return nil, err
	}

	trace.start = time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	trace.end = time.Now()

	resp := fromHTTPResponse(httpResp, bodyBytes)
	resp.Timing = trace.timing()
	resp.RequestSize = reqSize
	resp.Redirects = redirects
	resp.RemoteAddr = trace.remoteAddr
	return resp, nil
}

// transportFor returns the transport for one request. TLS verification and
// proxies are per-request settings, so they get a cloned transport that is
// released afterwards.
func (c *Client) transportFor(s core.Settings) (http.RoundTripper, func(), error) {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if s.ShouldVerifyTLS() && s.Proxy == nil {
		return base, func() {}, nil
	}

	t, ok := base.(*http.Transport)
	if !ok {
		return base, func() {}, nil
	}
	t = t.Clone()

	if !s.ShouldVerifyTLS() {
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = true
	}

	if s.Proxy != nil && s.Proxy.URL != "" {
		proxyURL, err := url.Parse(s.Proxy.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if s.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(s.Proxy.Username, s.Proxy.Password)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	return t, t.CloseIdleConnections, nil
}

// timingTrace records the phases of an exchange. With redirects the last hop wins.
type timingTrace struct {
	start, end                time.Time
	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	firstByte                 time.Time
	remoteAddr                string
}

func (t *timingTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:              func(httptrace.DNSDoneInfo) { t.dnsDone = time.Now() },
		ConnectStart:         func(string, string) { t.connectStart = time.Now() },
		ConnectDone:          func(string, string, error) { t.connectDone = time.Now() },
		TLSHandshakeStart:    func() { t.tlsStart = time.Now() },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { t.tlsDone = time.Now() },
		GotFirstResponseByte: func() { t.firstByte = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Conn != nil {
				t.remoteAddr = info.Conn.RemoteAddr().String()
			}
		},
	}
}

func (t *timingTrace) timing() core.Timing {
	timing := core.Timing{
		TotalMs:        millis(t.start, t.end),
		DNSLookupMs:    millis(t.dnsStart, t.dnsDone),
		TCPHandshakeMs: millis(t.connectStart, t.connectDone),
		TLSHandshakeMs: millis(t.tlsStart, t.tlsDone),
		TTFBMs:         millis(t.start, t.firstByte),
	}
	timing.ContentDownloadMs = millis(t.firstByte, t.end)
	return timing
}

func millis(from, to time.Time) float64 {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return 0
	}
	return float64(to.Sub(from).Microseconds()) / 1000
}

// fromHTTPResponse converts an http.Response to a core.Response.
func fromHTTPResponse(httpResp *http.Response, body []byte) *core.Response {
	keys := make([]string, 0, len(httpResp.Header))
	for key := range httpResp.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var headers []core.KeyValue
	headerBytes := len(httpResp.Proto) + len(httpResp.Status) + 3
	for _, key := range keys {
		for _, value := range httpResp.Header[key] {
			headers = append(headers, core.KeyValue{Key: key, Value: value, Enabled: true})
			headerBytes += len(key) + len(value) + 4
		}
	}

	var cookies []core.Cookie
	for _, ck := range httpResp.Cookies() {
		cookie := core.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HttpOnly,
			Secure:   ck.Secure,
		}
		if !ck.Expires.IsZero() {
			cookie.Expires = ck.Expires.UTC().Format(http.TimeFormat)
		}
		cookies = append(cookies, cookie)
	}

	contentType := httpResp.Header.Get("Content-Type")
	detected := contentType
	if detected == "" && len(body) > 0 {
		detected = http.DetectContentType(body)
	}

	return &core.Response{
		Status:              httpResp.StatusCode,
		StatusText:          httpResp.Status,
		Headers:             headers,
		Cookies:             cookies,
		BodyBase64:          base64.StdEncoding.EncodeToString(body),
		ResponseSize:        core.Size{HeadersBytes: headerBytes, BodyBytes: len(body), TotalBytes: headerBytes + len(body)},
		HTTPVersion:         httpResp.Proto,
		Renderers:           DetectRenderers(contentType, body),
		DetectedContentType: detected,
		ProtocolUsed:        string(core.ProtocolTCP),
		ReceivedAt:          time.Now(),
	}
}

// requestHeaderBytes approximates the size of the request line and headers on the wire.
func requestHeaderBytes(req *http.Request) int {
	n := len(req.Method) + len(req.URL.RequestURI()) + len("HTTP/1.1") + 4
	for key, values := range req.Header {
		for _, value := range values {
			n += len(key) + len(value) + 4
		}
	}
	return n
}

func cookieHeader(cookies []core.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
