package httpapi

import (
	"embed"
	"io/fs"
)

// The single-page UI: markup, script and styles.
//
//go:embed assets/index.html assets/app.js assets/style.css
var embeddedAssets embed.FS

var assetsFS = subAssets(embeddedAssets, "assets")

func subAssets(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return fsys
	}
	return sub
}
