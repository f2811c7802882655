package index

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Site.Title}}</title>
{{- if .Site.Description}}
<meta name="description" content="{{.Site.Description}}">
{{- end}}
{{- if .Site.BaseURL}}
<link rel="canonical" href="{{.Site.BaseURL}}/">
{{- end}}
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.game { border-bottom: 1px solid #ddd; padding: 1rem 0; }
.game h2 { margin: 0 0 .25rem; }
.tags span { background: #eee; border-radius: .25rem; padding: .1rem .4rem; margin-right: .3rem; font-size: .8rem; }
</style>
</head>
<body>
<h1>{{.Site.Title}}</h1>
{{- range .Entries}}
<div class="game">
<h2><a href="{{.PlayHref}}">{{.Name}}</a></h2>
{{- if .Description}}
<div class="description">{{.Description}}</div>
{{- end}}
{{- if .Tags}}
<div class="tags">{{range .Tags}}<span>{{.}}</span>{{end}}</div>
{{- end}}
<p><a href="{{.PlayHref}}">Play</a> · <a href="{{.InfoHref}}">Info</a></p>
</div>
{{- end}}
</body>
</html>
`

const infoTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}} · {{.Site.Title}}</title>
{{- if .Site.BaseURL}}
<link rel="canonical" href="{{.Site.BaseURL}}{{.PlayHref}}info/">
{{- end}}
</head>
<body>
<h1>{{.Name}}</h1>
{{- if .Description}}
<div class="description">{{.Description}}</div>
{{- end}}
{{- if .Tags}}
<p>Tags: {{range .Tags}}<span>{{.}}</span> {{end}}</p>
{{- end}}
{{- if .Commit}}
<p>Built from commit <code>{{.Commit}}</code></p>
{{- end}}
<p><a href="{{.PlayHref}}">Play</a> · <a href="/">All games</a></p>
</body>
</html>
`
