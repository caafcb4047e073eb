package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestFileServer(t *testing.T) {
	assets := fstest.MapFS{
		"index.html":    {Data: []byte("<html>index</html>")},
		"app.js":        {Data: []byte("console.log(1)")},
		".env":          {Data: []byte("AUTH_SECRET=x")},
		"sub/.hidden":   {Data: []byte("nope")},
		"sub/page.html": {Data: []byte("page")},
	}
	h := newFSHandler(assets)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "<html>index</html>"},
		{"/app.js", http.StatusOK, "console.log(1)"},
		{"/sub/page.html", http.StatusOK, "page"},
		{"/chat/userB", http.StatusOK, "<html>index</html>"},
		{"/.env", http.StatusNotFound, ""},
		{"/sub/.hidden", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}
