// Package popup renders the cross-window response document. Its only side
// effect, loaded in a popup, is posting the serialized payload to the
// window that opened it, scoped to the origin captured at flow start, then
// closing itself. The target origin is never taken from request headers.
package popup

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
)

// Document is a rendered popup response.
type Document struct {
	HTML  []byte
	Nonce string
}

const tpl = `<!DOCTYPE html>
<html>
  <head>
    <script nonce="{{.Nonce}}">
      window.opener.postMessage({{.Payload}}, {{.Origin}});
      window.close();
    </script>
  </head>
</html>
`

var page = template.Must(template.New("popup").Parse(tpl))

// Render serializes payload and scopes delivery to origin. An empty origin
// means none was ever captured; only then does the message broaden to "*"
// as a best-effort diagnostic path.
func Render(payload any, origin string) (*Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("popup: marshal payload: %w", err)
	}

	target := `"*"`
	if origin != "" {
		quoted, err := json.Marshal(origin)
		if err != nil {
			return nil, err
		}
		target = string(quoted)
	}

	nonce := randNonce(16)
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Nonce   string
		Payload template.JS
		Origin  template.JS
	}{
		Nonce:   nonce,
		Payload: template.JS(raw),
		Origin:  template.JS(target),
	})
	if err != nil {
		return nil, err
	}
	return &Document{HTML: buf.Bytes(), Nonce: nonce}, nil
}

// ErrorPayload is the payload shape for failed resolutions.
func ErrorPayload(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

// Write renders and writes the document with a CSP that only permits this
// page's own inline script.
func Write(w http.ResponseWriter, payload any, origin string) {
	doc, err := Render(payload, origin)
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Security-Policy",
		"default-src 'none'; script-src 'nonce-"+doc.Nonce+"'; base-uri 'self'; frame-ancestors 'none'")
	_, _ = w.Write(doc.HTML)
}

func randNonce(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
