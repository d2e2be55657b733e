package http

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/artpar/apiary/internal/core"
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/svg", "image/bmp", "image/ico"}

// DetectRenderers lists the ways a response body can be displayed, based on
// its content type and, when that is inconclusive, on the body itself. Raw
// is always first.
func DetectRenderers(contentType string, body []byte) []core.Renderer {
	renderers := []core.Renderer{core.RendererRaw}
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "application/json") || strings.Contains(ct, "+json") {
		if json.Valid(body) {
			renderers = append(renderers, core.RendererJSON)
		}
	} else if bytes.HasPrefix(body, []byte("{")) || bytes.HasPrefix(body, []byte("[")) {
		if json.Valid(body) {
			renderers = append(renderers, core.RendererJSON)
		}
	}

	isHTML := strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
	isXML := strings.Contains(ct, "application/xml") || strings.Contains(ct, "text/xml") || strings.Contains(ct, "+xml")

	switch {
	case isHTML:
		renderers = append(renderers, core.RendererHTML, core.RendererHTMLPreview)
	case isXML:
		renderers = append(renderers, core.RendererXML)
	default:
		trimmed := bytes.TrimLeft(body, " \t\r\n")
		switch {
		case bytes.HasPrefix(trimmed, []byte("<?xml")):
			renderers = append(renderers, core.RendererXML)
		case bytes.HasPrefix(trimmed, []byte("<!DOCTYPE html")), bytes.HasPrefix(trimmed, []byte("<html")):
			renderers = append(renderers, core.RendererHTML, core.RendererHTMLPreview)
		}
	}

	for _, t := range imageTypes {
		if strings.Contains(ct, t) {
			renderers = append(renderers, core.RendererImage)
			break
		}
	}
	if strings.Contains(ct, "application/pdf") {
		renderers = append(renderers, core.RendererPDF)
	}
	if strings.Contains(ct, "audio/") {
		renderers = append(renderers, core.RendererAudio)
	}
	if strings.Contains(ct, "video/") {
		renderers = append(renderers, core.RendererVideo)
	}

	return renderers
}
