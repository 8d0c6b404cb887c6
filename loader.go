package main

import (
	"html/template"
	"net/http"
	"strings"
)

var loaderTemplate = template.Must(template.New("loader").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Kosmi</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
html, body { height: 100%; }
body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
    background: {{.Background}};
    color: #e8e3f3;
    display: flex;
    flex-direction: column;
    align-items: center;
    justify-content: center;
    gap: 18px;
    user-select: none;
    -webkit-user-select: none;
}
.spinner {
    width: 36px;
    height: 36px;
    border: 3px solid rgba(255, 255, 255, 0.15);
    border-top-color: {{.Accent}};
    border-radius: 50%;
    animation: spin 0.9s linear infinite;
}
@keyframes spin { to { transform: rotate(360deg); } }
p { font-size: 14px; color: #b9b1cc; }
</style>
</head>
<body>
<div class="spinner"></div>
<p>{{.Message}}</p>
</body>
</html>
`))

type loaderPage struct {
	Background template.CSS
	Accent     template.CSS
	Message    string
}

// renderLoaderHTML returns the splash page shown while the remote app is
// being reached.
func renderLoaderHTML() string {
	var sb strings.Builder
	_ = loaderTemplate.Execute(&sb, loaderPage{
		Background: "#2a2139",
		Accent:     "#8b5cf6",
		Message:    "Connecting to Kosmi…",
	})
	return sb.String()
}

// loaderHandler serves the splash page for every local asset request.
func loaderHandler() http.Handler {
	page := []byte(renderLoaderHTML())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(page)
	})
}
