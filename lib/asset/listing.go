// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"bytes"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

var listingTemplate = template.Must(template.New("listing").Funcs(template.FuncMap{
	"bytes": humanize.IBytes,
	"time": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Assets</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 0.25em 1em; text-align: left; }
td.hash { font-family: monospace; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Assets</h1>
<p>{{len .}} file{{if ne (len .) 1}}s{{end}}</p>
<table>
<tr><th>Path</th><th>Size</th><th>Modified</th><th>Hash</th></tr>
{{range .}}<tr><td><a href="{{.Path}}">{{.Path}}</a></td><td>{{bytes .Size}}</td><td>{{time .ModifiedAt}}</td><td class="hash">{{.Hash}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func renderListing(files []File) ([]byte, error) {
	var buffer bytes.Buffer
	if err := listingTemplate.Execute(&buffer, files); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
