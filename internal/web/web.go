package web

import (
	"embed"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses the embedded absen.html and rekap.html.
func Templates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"pathSegment": PathSegment}).
		ParseFS(files, "templates/*.html")
}

// PathSegment escapes a user id as one URL path segment. '+' is escaped as
// well since gin unescapes raw path values with query rules.
func PathSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "+", "%2B")
}
