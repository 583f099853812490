// Package handler serves the CMS over HTTP: the public pages, the studio,
// editor login and the image upload relay.
package handler

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"startup-cms/internal/auth"
	"startup-cms/internal/cms"
	"startup-cms/internal/security"
	"startup-cms/internal/upload"
)

//go:embed templates/*.html
var templates embed.FS

// DefaultUploadTimeout is the read and write deadline given to an upload
// request, covering a 50 MiB body on a slow link plus the storage write.
const DefaultUploadTimeout = 10 * time.Minute

// Options wires the server's collaborators. Relay, Content and Sessions are
// required.
type Options struct {
	Relay        *upload.Relay
	Content      cms.Store
	Sessions     *auth.Provider
	Capabilities *security.Capabilities
	Logger       *slog.Logger

	// Middleware wraps every routed request, e.g. metrics.Middleware.
	Middleware []mux.MiddlewareFunc
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	EditorPassword  string
	StudioAccessKey string
	// TrustReferer exempts uploads whose Referer mentions /studio.
	TrustReferer bool

	// UploadTimeout overrides the server's read and write deadlines for
	// POST /api/upload. It must exceed the relay's storage put timeout.
	// Default: DefaultUploadTimeout.
	UploadTimeout time.Duration
}

// Server is the CMS HTTP handler.
type Server struct {
	relay        *upload.Relay
	content      cms.Store
	sessions     *auth.Provider
	capabilities *security.Capabilities
	log          *slog.Logger
	tmpl         *template.Template
	router       *mux.Router
	now          func() time.Time

	uploadTimeout   time.Duration
	editorPassword  string
	studioAccessKey string
	trustReferer    bool
}

// New parses the page templates and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Relay == nil || opts.Content == nil || opts.Sessions == nil {
		return nil, errors.New("handler: relay, content and sessions are required")
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("January 2, 2006") },
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	uploadTimeout := opts.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	if put := opts.Relay.PutTimeout(); put > 0 && put >= uploadTimeout {
		return nil, fmt.Errorf("handler: upload timeout %s must exceed storage put timeout %s", uploadTimeout, put)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		relay:           opts.Relay,
		content:         opts.Content,
		sessions:        opts.Sessions,
		capabilities:    opts.Capabilities,
		log:             logger,
		tmpl:            tmpl,
		now:             time.Now,
		uploadTimeout:   uploadTimeout,
		editorPassword:  opts.EditorPassword,
		studioAccessKey: opts.StudioAccessKey,
		trustReferer:    opts.TrustReferer,
	}
	s.router = s.routes(opts)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(opts Options) *mux.Router {
	r := mux.NewRouter()
	r.Use(opts.Middleware...)
	r.Use(s.sessions.Middleware())

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/startup/{slug}", s.handleStartup).Methods("GET")

	r.HandleFunc("/studio", s.handleStudio).Methods("GET")
	r.HandleFunc("/studio/startups", s.handleCreateStartup).Methods("POST")

	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	r.HandleFunc("/api/upload", s.handleUpload).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}).Methods("GET")
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods("GET")
	}
	return r
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", "template", name, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
