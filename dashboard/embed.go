// Package dashboard provides the embedded web UI assets for the meter.
//
// The dashboard HTML, CSS and JavaScript are included at compile time with
// the embed directive, so the binary needs no asset files on disk.
//
// The assets are served by the server package at the root path ("/").
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Readings table with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
