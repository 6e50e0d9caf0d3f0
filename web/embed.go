// Package web embeds the dashboard UI so the bugbesty binary is
// self-contained.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed dist
var assets embed.FS

// GetFS returns the embedded dashboard as an http.FileSystem rooted at
// dist/
func GetFS() (http.FileSystem, error) {
	dist, err := fs.Sub(assets, "dist")
	if err != nil {
		return nil, err
	}
	return http.FS(dist), nil
}

// HasAssets reports whether a built dashboard is embedded
func HasAssets() bool {
	_, err := assets.Open("dist/index.html")
	return err == nil
}
