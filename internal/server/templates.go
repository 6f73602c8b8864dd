package server

import (
	"html/template"
	"net/http"

	"github.com/zigdocs/zigdocs/internal/domain"
)

type modulesPage struct {
	Source  domain.Source
	Modules []string
}

type queuedPage struct {
	Source domain.Source
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>zigdocs</title></head>
<body>
<h1>zigdocs</h1>
<p>Documentation on demand. Request <code>/&lt;host&gt;/&lt;org&gt;/&lt;repo&gt;[@version]</code> to get started.</p>
</body>
</html>
`))

var modulesTemplate = template.Must(template.New("modules").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Source.Repository}}@{{.Source.Version}}</title></head>
<body>
<h1>{{.Source.Repository}}@{{.Source.Version}}</h1>
<ul>
{{- range .Modules}}
<li><a href="/{{$.Source.Repository}}@{{$.Source.Version}}/{{.}}/index.html">{{.}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

var queuedTemplate = template.Must(template.New("queued").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Building {{.Source.Repository}}@{{.Source.Version}}</title>
</head>
<body>
<h1>Build queued</h1>
<p>Documentation for <code>{{.Source.Repository}}@{{.Source.Version}}</code> is being generated. This page is safe to reload.</p>
<script>
const es = new EventSource("/subscribe/{{.Source.Repository}}@{{.Source.Version}}");
es.addEventListener("ready", () => location.reload());
</script>
</body>
</html>
`))

func (s *Server) render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Str("template", t.Name()).Msg("template render failed")
	}
}
