// Package appfs exposes static assets embedded into the binary:
// database migrations (run by goose) and email templates.
package appfs

import "embed"

// all: is required to pick up the underscore-prefixed base templates.
//
//go:embed all:migrations all:templates
var FS embed.FS
