package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/apiary/internal/core"
)

// toHTTPRequest converts a definition to an http.Request and reports the
// request size.
func toHTTPRequest(ctx context.Context, def core.RequestDefinition) (*http.Request, core.Size, error) {
	body, contentType, err := encodeBody(def.Body)
	if err != nil {
		return nil, core.Size{}, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, def.Method, def.FullURL(), bodyReader)
	if err != nil {
		return nil, core.Size{}, fmt.Errorf("failed to build request: %w", err)
	}

	for _, h := range def.Headers {
		if !h.Enabled || h.Key == "" {
			continue
		}
		if strings.EqualFold(h.Key, "Host") {
			httpReq.Host = h.Value
			continue
		}
		httpReq.Header.Add(h.Key, h.Value)
	}

	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if cookie := cookieHeader(def.Cookies); cookie != "" {
		httpReq.Header.Add("Cookie", cookie)
	}

	query := url.Values{}
	def.Auth.Apply(httpReq.Header, query)
	if len(query) > 0 {
		if httpReq.URL.RawQuery != "" {
			httpReq.URL.RawQuery += "&"
		}
		httpReq.URL.RawQuery += query.Encode()
	}

	headerBytes := requestHeaderBytes(httpReq)
	size := core.Size{
		HeadersBytes: headerBytes,
		BodyBytes:    len(body),
		TotalBytes:   headerBytes + len(body),
	}
	return httpReq, size, nil
}

// encodeBody renders the body variant and returns its default content type.
func encodeBody(b core.Body) ([]byte, string, error) {
	switch b.Type {
	case core.BodyRaw:
		if b.Content == "" {
			return nil, b.ContentType, nil
		}
		return []byte(b.Content), b.ContentType, nil

	case core.BodyFormURLEncoded:
		form := url.Values{}
		for _, f := range b.Fields {
			if f.Enabled && f.Key != "" {
				form.Add(f.Key, f.Value)
			}
		}
		return []byte(form.Encode()), "application/x-www-form-urlencoded", nil

	case core.BodyMultipart:
		return encodeMultipart(b.Parts)

	case core.BodyBinary:
		data := b.Data
		if len(data) == 0 && b.Filename != "" {
			var err error
			data, err = os.ReadFile(b.Filename)
			if err != nil {
				return nil, "", fmt.Errorf("failed to read body file: %w", err)
			}
		}
		contentType := b.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return data, contentType, nil
	}
	return nil, "", nil
}

func encodeMultipart(parts []core.MultipartPart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		if !p.IsFile {
			if err := w.WriteField(p.Name, p.Value); err != nil {
				return nil, "", err
			}
			continue
		}

		data := p.Data
		filename := p.Filename
		if len(data) == 0 && filename != "" {
			var err error
			data, err = os.ReadFile(filename)
			if err != nil {
				return nil, "", fmt.Errorf("failed to read multipart file %s: %w", filename, err)
			}
		}

		contentType := p.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Name, filepath.Base(filename)))
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
