package http

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// NewFileServerHandler serves a static web client from dir. Dotfiles are
// hidden and unknown paths fall back to index.html so client-side routes
// resolve.
func NewFileServerHandler(dir string) http.Handler {
	return newFSHandler(os.DirFS(dir))
}

func newFSHandler(assets fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(assets))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		for part := range strings.SplitSeq(name, "/") {
			if strings.HasPrefix(part, ".") {
				http.NotFound(w, r)
				return
			}
		}

		if name != "" {
			if _, err := fs.Stat(assets, name); err != nil {
				r = r.Clone(r.Context())
				r.URL.Path = "/"
			}
		}

		fileServer.ServeHTTP(w, r)
	})
}
