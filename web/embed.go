// Package web embeds the static assets the client pages load: persona avatar
// images and anything else under static/. The country tables are generated
// per-request by the API layer, not embedded here.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:static
var staticFS embed.FS

// StaticHandler returns an http.Handler serving the embedded assets under
// /static/. Mount it at the router root; paths outside static/ 404.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// AvatarExists reports whether an avatar asset is present in the bundle.
// Used at startup to verify the persona set and the assets stay in sync.
func AvatarExists(name string) bool {
	f, err := staticFS.Open("static/img/personas/" + name + ".svg")
	if err != nil {
		return false
	}
	f.Close()
	return true
}
