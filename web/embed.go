package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

// TemplatesFS holds the console pages and HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the HTMX event glue.
//
//go:embed static/*
var StaticFS embed.FS

// ParseTemplates parses every console template with the given helpers.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("console").Funcs(funcs).ParseFS(TemplatesFS, "templates/*.html")
}

// StaticHandler serves the embedded assets below prefix.
func StaticHandler(prefix string) (http.Handler, error) {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		return nil, err
	}
	return http.StripPrefix(prefix, http.FileServer(http.FS(sub))), nil
}
