package info

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
)

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// Page is what the dashboard renders. NodeCount is left out of the copy when zero.
type Page struct {
	Snapshot
	NodeCount int
}

func RenderHTML(w io.Writer, page Page) error {
	return indexTemplate.Execute(w, page)
}

func RenderJSON(w io.Writer, s Snapshot) error {
	return json.NewEncoder(w).Encode(s)
}
