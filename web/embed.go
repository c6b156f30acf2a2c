package web

import "embed"

// FS holds the status page served by geofix serve.
//
//go:embed *.html *.css *.js
var FS embed.FS
