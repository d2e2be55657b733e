package importer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
)

// CurlImporter imports a single curl command as a one-request project.
type CurlImporter struct {
	alloc ident.Allocator
}

// NewCurlImporter creates a new curl importer.
func NewCurlImporter(alloc ident.Allocator) *CurlImporter {
	return &CurlImporter{alloc: ident.OrDefault(alloc)}
}

func (c *CurlImporter) Name() string {
	return "curl command"
}

func (c *CurlImporter) Format() Format {
	return FormatCurl
}

func (c *CurlImporter) FileExtensions() []string {
	return []string{".sh", ".curl", ".txt"}
}

func (c *CurlImporter) DetectFormat(content []byte) bool {
	trimmed := strings.TrimSpace(stripComments(string(content)))
	return strings.HasPrefix(trimmed, "curl ") || strings.HasPrefix(trimmed, "curl\t")
}

func (c *CurlImporter) Import(ctx context.Context, content []byte) (*core.Project, error) {
	def, err := ParseCurl(stripComments(string(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}

	project := core.NewProject(c.alloc, "Imported from curl")
	req := core.NewRequest(c.alloc.NewID(), nameFromURL(def.URL), "", "")
	req.SetDefinition(def)
	project.Root.Append(req)
	return project, nil
}

// stripComments drops shell comment lines and a shebang.
func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ParseCurl converts one curl command line into a request definition.
func ParseCurl(cmd string) (core.RequestDefinition, error) {
	tokens, err := tokenize(strings.TrimSpace(cmd))
	if err != nil {
		return core.RequestDefinition{}, err
	}
	if len(tokens) == 0 || tokens[0] != "curl" {
		return core.RequestDefinition{}, errors.New("not a curl command")
	}

	def := core.NewRequestDefinition("", "")
	method := ""
	var data []string
	var urlencoded []core.KeyValue
	var parts []core.MultipartPart
	var getMode bool
	var rawURL string

	var inline *string
	next := func(i *int) (string, bool) {
		if inline != nil {
			v := *inline
			inline = nil
			return v, true
		}
		if *i+1 >= len(tokens) {
			return "", false
		}
		*i++
		return tokens[*i], true
	}

parse:
	for i := 1; i < len(tokens); i++ {
		token := tokens[i]
		inline = nil
		if strings.HasPrefix(token, "--") {
			if name, value, ok := strings.Cut(token, "="); ok {
				token = name
				inline = &value
			}
		}

		switch token {
		case "-X", "--request":
			if v, ok := next(&i); ok {
				method = strings.ToUpper(v)
			}

		case "-H", "--header":
			if v, ok := next(&i); ok {
				addCurlHeader(&def, v)
			}

		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			if v, ok := next(&i); ok {
				data = append(data, v)
			}

		case "--data-urlencode":
			if v, ok := next(&i); ok {
				key, value, _ := strings.Cut(v, "=")
				urlencoded = append(urlencoded, core.KeyValue{Key: key, Value: value, Enabled: true})
			}

		case "-F", "--form":
			if v, ok := next(&i); ok {
				parts = append(parts, parseFormPart(v))
			}

		case "--json":
			if v, ok := next(&i); ok {
				data = append(data, v)
				if def.Header("Content-Type") == "" {
					def.SetHeader("Content-Type", "application/json")
				}
				if def.Header("Accept") == "" {
					def.SetHeader("Accept", "application/json")
				}
			}

		case "-u", "--user":
			if v, ok := next(&i); ok {
				user, pass, _ := strings.Cut(v, ":")
				def.Auth = core.NewBasicAuth(user, pass)
			}

		case "-A", "--user-agent":
			if v, ok := next(&i); ok {
				def.SetHeader("User-Agent", v)
			}

		case "-e", "--referer":
			if v, ok := next(&i); ok {
				def.SetHeader("Referer", v)
			}

		case "-b", "--cookie":
			if v, ok := next(&i); ok {
				def.Cookies = append(def.Cookies, parseCookies(v)...)
			}

		case "--compressed":
			def.SetHeader("Accept-Encoding", "gzip, deflate, br")

		case "-L", "--location":
			follow := true
			def.Settings.FollowRedirects = &follow

		case "--max-redirs":
			if v, ok := next(&i); ok {
				if n, err := strconv.Atoi(v); err == nil {
					def.Settings.MaxRedirects = n
				}
			}

		case "-k", "--insecure":
			verify := false
			def.Settings.VerifyTLS = &verify

		case "-m", "--max-time":
			if v, ok := next(&i); ok {
				if secs, err := strconv.ParseFloat(v, 64); err == nil {
					def.Settings.TimeoutMs = int(secs * 1000)
				}
			}

		case "-x", "--proxy":
			if v, ok := next(&i); ok {
				if def.Settings.Proxy == nil {
					def.Settings.Proxy = &core.Proxy{}
				}
				def.Settings.Proxy.URL = v
			}

		case "-U", "--proxy-user":
			if v, ok := next(&i); ok {
				if def.Settings.Proxy == nil {
					def.Settings.Proxy = &core.Proxy{}
				}
				def.Settings.Proxy.Username, def.Settings.Proxy.Password, _ = strings.Cut(v, ":")
			}

		case "--http3", "--http3-only":
			def.Settings.Protocol = core.ProtocolQUIC

		case "-I", "--head":
			method = "HEAD"

		case "-G", "--get":
			getMode = true

		case "--url":
			if v, ok := next(&i); ok && rawURL == "" {
				rawURL = v
			}

		case "-o", "--output", "-w", "--write-out", "--connect-timeout", "--retry", "-c", "--cookie-jar":
			next(&i)

		case "curl":
			// Only the first command of a script is read.
			break parse

		default:
			if strings.HasPrefix(token, "-") {
				// Unknown flags are assumed to be switches.
				continue
			}
			if rawURL == "" {
				rawURL = token
			}
		}
	}

	if rawURL == "" {
		return core.RequestDefinition{}, errors.New("no URL found in curl command")
	}
	def.URL, def.QueryParams = splitURL(rawURL)

	switch {
	case getMode:
		for _, d := range data {
			_, params := splitURL("?" + d)
			def.QueryParams = append(def.QueryParams, params...)
		}
		def.QueryParams = append(def.QueryParams, urlencoded...)
	case len(parts) > 0:
		def.Body = core.Body{Type: core.BodyMultipart, Parts: parts}
	case len(urlencoded) > 0 && len(data) == 0:
		def.Body = core.Body{Type: core.BodyFormURLEncoded, Fields: urlencoded}
	case len(data) > 0:
		def.Body = dataBody(data, def.Header("Content-Type"))
	}

	switch {
	case method != "":
		def.Method = method
	case getMode:
		def.Method = "GET"
	case def.Body.Type != core.BodyNone:
		def.Method = "POST"
	}

	liftAuthorization(&def)
	return def, nil
}

// dataBody joins -d arguments the way curl does. A single @file argument
// becomes a binary body and a form content type is kept as urlencoded fields.
func dataBody(data []string, contentType string) core.Body {
	if len(data) == 1 && strings.HasPrefix(data[0], "@") {
		return core.Body{Type: core.BodyBinary, Filename: data[0][1:], ContentType: contentType}
	}
	joined := strings.Join(data, "&")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		_, fields := splitURL("?" + joined)
		return core.Body{Type: core.BodyFormURLEncoded, Fields: fields}
	}
	return core.RawBody(joined, contentType)
}

func addCurlHeader(def *core.RequestDefinition, header string) {
	key, value, ok := strings.Cut(header, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return
	}
	value = strings.TrimSpace(value)
	if strings.EqualFold(key, "Cookie") {
		def.Cookies = append(def.Cookies, parseCookies(value)...)
		return
	}
	def.Headers = append(def.Headers, core.KeyValue{Key: key, Value: value, Enabled: true})
}

// liftAuthorization turns a Basic or Bearer Authorization header into auth
// when no -u flag set one.
func liftAuthorization(def *core.RequestDefinition) {
	if def.Auth.Type != core.AuthTypeNone {
		return
	}
	for i, h := range def.Headers {
		if !strings.EqualFold(h.Key, "Authorization") {
			continue
		}
		scheme, credentials, _ := strings.Cut(h.Value, " ")
		switch strings.ToLower(scheme) {
		case "bearer":
			def.Auth = core.NewBearerAuth(credentials)
		case "basic":
			decoded, err := base64.StdEncoding.DecodeString(credentials)
			if err != nil {
				return
			}
			user, pass, _ := strings.Cut(string(decoded), ":")
			def.Auth = core.NewBasicAuth(user, pass)
		default:
			return
		}
		def.Headers = append(def.Headers[:i], def.Headers[i+1:]...)
		return
	}
}

func parseFormPart(v string) core.MultipartPart {
	name, value, _ := strings.Cut(v, "=")
	part := core.MultipartPart{Name: name}

	// name=@path;type=text/csv
	segments := strings.Split(value, ";")
	value = segments[0]
	for _, seg := range segments[1:] {
		if ct, ok := strings.CutPrefix(strings.TrimSpace(seg), "type="); ok {
			part.ContentType = ct
		}
	}

	if path, ok := strings.CutPrefix(value, "@"); ok {
		part.IsFile = true
		part.Filename = path
	} else {
		part.Value = value
	}
	return part
}

func parseCookies(header string) []core.Cookie {
	var cookies []core.Cookie
	for _, pair := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, core.Cookie{Name: name, Value: value})
	}
	return cookies
}

// tokenize splits a command line with POSIX shell quoting: single quotes are
// literal, double quotes honor backslash escapes, and a backslash-newline
// continues the line.
func tokenize(cmd string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	runes := []rune(cmd)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 < len(runes) {
				i++
				if runes[i] == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
					i++
					continue
				}
				if runes[i] == '\n' {
					continue
				}
				current.WriteRune(runes[i])
				inToken = true
			}

		case r == '\'':
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end >= len(runes) {
				return nil, errors.New("unterminated single quote")
			}
			current.WriteString(string(runes[i+1 : end]))
			inToken = true
			i = end

		case r == '"':
			i++
			for ; i < len(runes) && runes[i] != '"'; i++ {
				if runes[i] == '\\' && i+1 < len(runes) && strings.ContainsRune("\"\\$`\n", runes[i+1]) {
					i++
					if runes[i] == '\n' {
						continue
					}
				}
				current.WriteRune(runes[i])
			}
			if i >= len(runes) {
				return nil, errors.New("unterminated double quote")
			}
			inToken = true

		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}

		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

var _ Importer = (*CurlImporter)(nil)
