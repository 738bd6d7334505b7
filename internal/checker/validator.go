package checker

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Verdict is the result of a content validation.
type Verdict struct {
	OK      bool
	Skipped bool
	Reason  string
}

// Validator decides whether a response plausibly carries the resource kind a
// column is expected to hold. Media columns that come back as HTML or as a
// JSON error payload indicate a broken URL behind the edge.
type Validator struct {
	htmlAllowed map[string]bool
}

// NewValidator builds a validator; columns listed in htmlAllowedColumns are
// allowed to legitimately serve HTML.
func NewValidator(htmlAllowedColumns []string) *Validator {
	allowed := make(map[string]bool, len(htmlAllowedColumns))
	for _, c := range htmlAllowedColumns {
		allowed[c] = true
	}
	return &Validator{htmlAllowed: allowed}
}

// Validate inspects content type and, when available, the body head. A nil
// body with an empty content type cannot be judged and is skipped (treated as
// pass); real validation then happens on the post-fetch path.
func (v *Validator) Validate(column, contentType string, body []byte) Verdict {
	ct := strings.ToLower(contentType)

	if ct == "" && len(body) == 0 {
		return Verdict{OK: true, Skipped: true}
	}

	if strings.Contains(ct, "text/html") && !v.htmlAllowed[column] {
		reason := "resource returned HTML, likely an error page"
		if title := htmlTitle(body); title != "" {
			reason = "resource returned HTML page: " + title
		}
		return Verdict{Reason: reason}
	}

	if strings.Contains(ct, "json") && isJSONError(body) {
		return Verdict{Reason: "resource returned a JSON error payload"}
	}

	return Verdict{OK: true}
}

// htmlTitle extracts the <title> of an HTML error page for diagnostics.
func htmlTitle(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// isJSONError detects error-shaped JSON objects ({"error": ...},
// {"errors": [...]}, or {"success": false}).
func isJSONError(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	if _, ok := payload["error"]; ok {
		return true
	}
	if _, ok := payload["errors"]; ok {
		return true
	}
	if raw, ok := payload["success"]; ok && string(bytes.TrimSpace(raw)) == "false" {
		return true
	}
	return false
}
