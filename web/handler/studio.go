package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"startup-cms/internal/auth"
	"startup-cms/internal/cms"
)

type studioPage struct {
	// Authorized is false for anonymous viewers, who only get the login form.
	Authorized bool
	Editor     *auth.Session
	Startups   []cms.Startup
	Schema     cms.Schema
	Error      string
	Form       cms.NewStartup
}

// studioAccess reports whether r may use the studio: an editor session, or
// the Basic auth password when STUDIO_ACCESS_KEY is configured. Any user name
// is accepted.
func (s *Server) studioAccess(r *http.Request) bool {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		return true
	}
	if s.studioAccessKey == "" {
		return false
	}
	_, pass, ok := r.BasicAuth()
	return ok && subtle.ConstantTimeCompare([]byte(pass), []byte(s.studioAccessKey)) == 1
}

func (s *Server) challenge(w http.ResponseWriter) {
	if s.studioAccessKey != "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="studio"`)
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// handleStudio renders the editor page. Without studio access only the login
// form is shown, or a Basic auth challenge when an access key is configured.
func (s *Server) handleStudio(w http.ResponseWriter, r *http.Request) {
	if !s.studioAccess(r) {
		if s.studioAccessKey != "" {
			s.challenge(w)
			return
		}
		s.render(w, "studio.html", studioPage{Schema: cms.StartupSchema})
		return
	}
	s.renderStudio(w, r, http.StatusOK, studioPage{})
}

// renderStudio renders the full editor page and mints a fresh studio
// capability. Callers must have checked studioAccess.
func (s *Server) renderStudio(w http.ResponseWriter, r *http.Request, status int, page studioPage) {
	startups, err := s.content.ListStartups(r.Context(), "")
	if err != nil {
		s.log.Error("list startups", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	page.Authorized = true
	page.Startups = startups
	page.Schema = cms.StartupSchema
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		page.Editor = sess
	}

	if s.capabilities != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     CapabilityCookie,
			Value:    s.capabilities.Mint(s.now()),
			Path:     "/",
			MaxAge:   int(s.capabilities.TTL().Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
	}

	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	s.render(w, "studio.html", page)
}

func (s *Server) handleCreateStartup(w http.ResponseWriter, r *http.Request) {
	if !s.studioAccess(r) {
		s.challenge(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	in := cms.NewStartup{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		AuthorID:    strings.TrimSpace(r.PostFormValue("author")),
		Description: r.PostFormValue("description"),
		Category:    strings.TrimSpace(r.PostFormValue("category")),
		Image:       strings.TrimSpace(r.PostFormValue("image")),
		Pitch:       r.PostFormValue("pitch"),
	}
	if sess, ok := auth.SessionFromContext(r.Context()); ok && in.AuthorID == "" {
		in.AuthorID = sess.UserID
	}

	st, err := s.content.CreateStartup(r.Context(), in)
	if err != nil {
		var verr *cms.ValidationError
		if errors.As(err, &verr) {
			s.renderStudio(w, r, http.StatusUnprocessableEntity, studioPage{Error: verr.Error(), Form: in})
			return
		}
		s.log.Error("create startup", "title", in.Title, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.log.Info("startup created", "id", st.ID, "slug", st.Slug)
	http.Redirect(w, r, "/studio", http.StatusSeeOther)
}
