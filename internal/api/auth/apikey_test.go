package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequireAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		key        string
		header     string
		query      string
		wantStatus int
	}{
		{name: "disabled", key: "", wantStatus: http.StatusOK},
		{name: "header", key: "secret", header: "secret", wantStatus: http.StatusOK},
		{name: "query", key: "secret", query: "secret", wantStatus: http.StatusOK},
		{name: "missing", key: "secret", wantStatus: http.StatusUnauthorized},
		{name: "wrong", key: "secret", header: "nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", RequireAPIKey(tt.key), func(c *gin.Context) { c.Status(http.StatusOK) })

			url := "/"
			if tt.query != "" {
				url += "?apikey=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set(HeaderAPIKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
