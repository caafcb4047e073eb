package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"Bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"Header", func(r *http.Request) { r.Header.Set("token", "def") }, "def"},
		{"Cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "ghi"}) }, "ghi"},
		{"Query", func(r *http.Request) { r.URL.RawQuery = "token=jkl" }, "jkl"},
		{"Bearer wins", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer first")
			r.URL.RawQuery = "token=second"
		}, "first"},
		{"Basic ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic xyz") }, ""},
		{"None", func(r *http.Request) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
