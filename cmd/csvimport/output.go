package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

type problem struct {
	Status int            `json:"status"`
	Code   string         `json:"code,omitempty"`
	Detail string         `json:"detail"`
	Props  map[string]any `json:"props,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func problemOf(err error) problem {
	p := problem{Status: apierr.StatusOf(err), Detail: err.Error()}
	if e, ok := apierr.As(err); ok {
		p.Code = e.Code
		p.Props = e.Props
	}
	return p
}

// exitCode maps the problem status onto a small set of process exit codes.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch status := apierr.StatusOf(err); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return 3
	case status == http.StatusNotFound:
		return 4
	case status == http.StatusConflict:
		return 5
	case status >= 400 && status < 500:
		return 2
	default:
		return 1
	}
}
