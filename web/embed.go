// Package web embeds the page templates and the CSS and chart script served
// under /static.
package web

import "embed"

// TemplatesFS holds layouts/, partials/ and pages/ under templates/.
//
//go:embed all:templates
var TemplatesFS embed.FS

// StaticFS holds everything served under /static.
//
//go:embed all:static
var StaticFS embed.FS
