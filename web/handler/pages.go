package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"startup-cms/internal/cms"
)

type indexPage struct {
	Query    string
	Startups []cms.Startup
}

type startupPage struct {
	Startup *cms.Startup
	Author  *cms.Author
	Views   int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	startups, err := s.content.ListStartups(r.Context(), query)
	if err != nil {
		s.log.Error("list startups", "query", query, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, "index.html", indexPage{Query: query, Startups: startups})
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	st, err := s.content.Startup(r.Context(), slug)
	if errors.Is(err, cms.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("load startup", "slug", slug, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views, err := s.content.IncrementViews(r.Context(), slug)
	if err != nil {
		s.log.Warn("increment views", "slug", slug, "err", err)
		views = st.Views
	}

	page := startupPage{Startup: st, Views: views}
	if st.AuthorID != "" {
		if a, err := s.content.Author(r.Context(), st.AuthorID); err == nil {
			page.Author = a
		}
	}
	s.render(w, "startup.html", page)
}
