package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem 是 RFC 7807 风格的错误响应
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Render implements the chi render.Renderer interface
func (p *Problem) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, title string, err error) {
	p := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Trace:  middleware.GetReqID(r.Context()),
	}
	if err != nil {
		p.Detail = err.Error()
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.Int("status", status),
		slog.String("title", title),
		slog.Any("error", err),
		slog.String("request_id", p.Trace))
	_ = render.Render(w, r, p)
}
