package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"startup-cms/internal/auth"
	"startup-cms/internal/cms"
)

// handleLogin starts an editor session when the form password matches
// EDITOR_PASSWORD. Each login registers the editor as an author.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.editorPassword == "" {
		http.Error(w, "Login disabled", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.PostFormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.editorPassword)) != 1 {
		s.log.Warn("login rejected", "remote", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		name = "Editor"
	}

	author, err := s.content.CreateAuthor(r.Context(), cms.Author{Name: name})
	if err != nil {
		s.log.Error("create author", "name", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sess, err := s.sessions.Store().Create(r.Context(), author.ID, name)
	if err != nil {
		s.log.Error("create session", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.sessions.SetCookie(w, r, sess)
	s.log.Info("editor logged in", "user", author.ID, "name", name)
	http.Redirect(w, r, "/studio", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		if err := s.sessions.Store().Delete(r.Context(), sess.ID); err != nil {
			s.log.Warn("delete session", "err", err)
		}
	}
	s.sessions.ClearCookie(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
