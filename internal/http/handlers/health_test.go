package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		checks map[string]Check
		want   int
	}{
		{"all ok", map[string]Check{"postgres": func(context.Context) error { return nil }}, http.StatusOK},
		{"one failing", map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"neo4j":    func(context.Context) error { return errors.New("unreachable") },
		}, http.StatusServiceUnavailable},
		{"no checks", nil, http.StatusOK},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/readyz", NewHealthHandler(tc.checks).Ready)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if w.Code != tc.want {
			t.Fatalf("%s: status: want=%d got=%d", tc.name, tc.want, w.Code)
		}
		var body struct {
			Checks map[string]string `json:"checks"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if len(body.Checks) != len(tc.checks) {
			t.Fatalf("%s: checks: want=%d got=%d", tc.name, len(tc.checks), len(body.Checks))
		}
	}
}
