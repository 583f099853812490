package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"startup-cms/internal/auth"
	"startup-cms/internal/upload"
)

const (
	// CapabilityCookie carries the studio capability minted by GET /studio.
	CapabilityCookie = "studio_capability"
	// CapabilityHeader is the header alternative to CapabilityCookie.
	CapabilityHeader = "X-Studio-Capability"

	// multipartOverhead is allowed on top of MaxFileSize for boundaries and
	// part headers.
	multipartOverhead = 1 << 20
)

// handleUpload relays a single image to object storage and answers with its
// public URL. Failures are answered in plain text.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.extendDeadlines(w)

	var size int64
	res, err := s.relayUpload(w, r, &size)
	s.relay.Recorder().UploadFinished(upload.Outcome(err), size)

	if err != nil {
		var uerr *upload.Error
		if !errors.As(err, &uerr) {
			uerr = &upload.Error{Kind: upload.KindInternal, Message: "Upload failed: " + err.Error(), Err: err}
		}
		status := uerr.Kind.StatusCode()
		s.log.Error("upload failed",
			"kind", string(uerr.Kind),
			"status", status,
			"err", errText(uerr),
			"remote", r.RemoteAddr,
		)
		http.Error(w, uerr.Message, status)
		return
	}

	s.log.Info("upload stored", "object", res.Name, "size", size)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) relayUpload(w http.ResponseWriter, r *http.Request, size *int64) (upload.Result, error) {
	if !s.authorized(r) {
		return upload.Result{}, upload.Unauthorized()
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return upload.Result{}, upload.Invalid(upload.ErrTooLarge)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return upload.Result{}, upload.Invalid(upload.ErrNoFile)
		}
		return upload.Result{}, &upload.Error{Kind: upload.KindInvalidInput, Message: "Upload failed: " + err.Error(), Err: err}
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	switch {
	case len(headers) == 0:
		return upload.Result{}, upload.Invalid(upload.ErrNoFile)
	case len(headers) > 1:
		return upload.Result{}, upload.Invalid(upload.ErrMultipleFiles)
	}

	fh := headers[0]
	*size = fh.Size
	file, err := fh.Open()
	if err != nil {
		return upload.Result{}, &upload.Error{Kind: upload.KindInternal, Message: "Upload failed: " + err.Error(), Err: err}
	}
	defer file.Close()

	return s.relay.Upload(r.Context(), upload.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      file,
	})
}

// extendDeadlines replaces the server-wide read and write deadlines with the
// upload timeout for this request only.
func (s *Server) extendDeadlines(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(s.uploadTimeout)
	for _, set := range []func(time.Time) error{rc.SetReadDeadline, rc.SetWriteDeadline} {
		if err := set(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.log.Warn("extend upload deadline", "err", err)
		}
	}
}

// authorized reports whether r may upload: an editor session, a valid studio
// capability, or, when trusted, a studio Referer.
func (s *Server) authorized(r *http.Request) bool {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		return true
	}

	if s.capabilities != nil {
		token := r.Header.Get(CapabilityHeader)
		if token == "" {
			if c, err := r.Cookie(CapabilityCookie); err == nil {
				token = c.Value
			}
		}
		if token != "" {
			err := s.capabilities.Verify(token, s.now())
			if err == nil {
				return true
			}
			s.log.Debug("studio capability rejected", "err", err)
		}
	}

	return s.trustReferer && strings.Contains(r.Referer(), "/studio")
}

func errText(e *upload.Error) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}
