package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "127.0.0.1:8080"},
		{raw: "garbage", want: "127.0.0.1:8080"},
		{raw: "0.0.0.0:9090", want: "127.0.0.1:9090"},
		{raw: ":9090", want: "127.0.0.1:9090"},
		{raw: "[::]:9090", want: "127.0.0.1:9090"},
		{raw: "10.0.0.5:8080", want: "10.0.0.5:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{name: "ok", status: http.StatusOK, body: `{"status":"ok"}`, want: 0},
		{name: "degraded is still alive", status: http.StatusOK, body: `{"status":"degraded"}`, want: 0},
		{name: "down", status: http.StatusServiceUnavailable, body: `{"status":"down"}`, want: 1},
		{name: "not json", status: http.StatusOK, body: `ok`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			addr := strings.TrimPrefix(srv.URL, "http://")
			assert.Equal(t, tt.want, check(addr, srv.Client()))
		})
	}
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	assert.Equal(t, 1, check(addr, http.DefaultClient))
}
