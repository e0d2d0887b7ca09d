package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func contentTypeProbe(called *bool) http.Handler {
	return ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestContentTypeJSON_AcceptedRequests(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
	}{
		{
			name:   "post without content type passes",
			method: http.MethodPost,
			path:   "/api/v1/auth/signin",
			body:   `{"email":"john@example.com","password":"SecurePass123"}`,
		},
		{
			name:   "put without content type passes",
			method: http.MethodPut,
			path:   "/api/v1/users/me/email",
			body:   `{"email":"new@example.com"}`,
		},
		{
			name:   "patch without content type passes",
			method: http.MethodPatch,
			path:   "/api/v1/users/me",
			body:   `{"phone":"+201234567890"}`,
		},
		{
			name:        "explicit json passes",
			method:      http.MethodPost,
			path:        "/api/v1/auth/signup",
			body:        `{"email":"john@example.com"}`,
			contentType: "application/json",
		},
		{
			name:        "json with charset passes",
			method:      http.MethodPost,
			path:        "/api/v1/auth/signup",
			body:        `{"email":"john@example.com"}`,
			contentType: "application/json; charset=utf-8",
		},
		{
			name:   "get without content type passes",
			method: http.MethodGet,
			path:   "/api/v1/users/me",
		},
		{
			name:   "delete without content type passes",
			method: http.MethodDelete,
			path:   "/api/v1/users/me",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()

			called := false
			contentTypeProbe(&called).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.True(t, called, "next handler should have been reached")
		})
	}
}

func TestContentTypeJSON_WrongContentTypeRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(`email=john`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	called := false
	contentTypeProbe(&called).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Contains(t, rr.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
	assert.False(t, called, "handler must not run for non-JSON bodies")
}

func TestContentTypeJSON_RejectionBodyIsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(`plain text`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()

	called := false
	contentTypeProbe(&called).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}