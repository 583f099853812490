package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startup-cms/internal/auth"
	"startup-cms/internal/cms"
	"startup-cms/internal/security"
	"startup-cms/internal/storage"
	"startup-cms/internal/upload"
)

type memObjects struct {
	mu   sync.Mutex
	puts []storage.Object
	err  error
}

func (m *memObjects) Put(_ context.Context, obj storage.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.puts = append(m.puts, obj)
	return nil
}

func (m *memObjects) Backend() string { return "mem" }

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) UploadFinished(outcome string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *outcomeRecorder) StoragePut(string, time.Duration) {}

type testEnv struct {
	server   *Server
	objects  *memObjects
	content  *cms.MemoryStore
	sessions *auth.MemoryStore
	caps     *security.Capabilities
	recorder *outcomeRecorder
}

func newTestEnv(t *testing.T, configure ...func(*Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		objects:  &memObjects{},
		content:  cms.NewMemoryStore(),
		sessions: auth.NewMemoryStore(time.Hour),
		recorder: &outcomeRecorder{},
	}
	caps, err := security.NewCapabilities("test-secret", time.Hour)
	require.NoError(t, err)
	env.caps = caps

	opts := Options{
		Relay: upload.NewRelay(env.objects, "https://cdn.example.com/",
			upload.WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
			upload.WithTokenSource(func() string { return "k3y9x0abcdefg" }),
			upload.WithRecorder(env.recorder),
		),
		Content:        env.content,
		Sessions:       auth.New(env.sessions),
		Capabilities:   caps,
		EditorPassword: "hunter2",
	}
	for _, fn := range configure {
		fn(&opts)
	}

	env.server, err = New(opts)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	author, err := e.content.CreateAuthor(context.Background(), cms.Author{Name: "Ada"})
	require.NoError(t, err)
	sess, err := e.sessions.Create(context.Background(), author.ID, author.Name)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.DefaultCookieName, Value: sess.ID}
}

type part struct {
	field, filename, contentType, body string
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename == "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		}
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func pngPart() part {
	return part{field: "file", filename: "logo.png", contentType: "image/png", body: "pixels"}
}

func TestUpload_WithSession(t *testing.T) {
	env := newTestEnv(t)
	req := multipartRequest(t, pngPart())
	req.AddCookie(env.sessionCookie(t))

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{
		"success": true,
		"url":     "https://cdn.example.com/1700000000000-k3y9x0abcdefg.png",
	}, body)

	require.Equal(t, 1, env.objects.count())
	assert.Equal(t, "1700000000000-k3y9x0abcdefg.png", env.objects.puts[0].Name)
	assert.Equal(t, []byte("pixels"), env.objects.puts[0].Body)
	assert.Equal(t, []string{"success"}, env.recorder.outcomes)
}

func TestUpload_Authorization(t *testing.T) {
	tests := []struct {
		name         string
		trustReferer bool
		prepare      func(t *testing.T, env *testEnv, req *http.Request)
		wantStatus   int
	}{
		{
			name:       "anonymous",
			prepare:    func(*testing.T, *testEnv, *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "capability header",
			prepare: func(_ *testing.T, env *testEnv, req *http.Request) {
				req.Header.Set(CapabilityHeader, env.caps.Mint(time.Now()))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "capability cookie",
			prepare: func(_ *testing.T, env *testEnv, req *http.Request) {
				req.AddCookie(&http.Cookie{Name: CapabilityCookie, Value: env.caps.Mint(time.Now())})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "expired capability",
			prepare: func(_ *testing.T, env *testEnv, req *http.Request) {
				req.Header.Set(CapabilityHeader, env.caps.Mint(time.Now().Add(-2*time.Hour)))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "forged capability",
			prepare: func(_ *testing.T, _ *testEnv, req *http.Request) {
				req.Header.Set(CapabilityHeader, fmt.Sprintf("%d.bm90LWEtc2lnbmF0dXJl", time.Now().Add(time.Hour).Unix()))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "studio referer is not trusted by default",
			prepare: func(_ *testing.T, _ *testEnv, req *http.Request) {
				req.Header.Set("Referer", "http://localhost:8080/studio/structure")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "studio referer when trusted",
			trustReferer: true,
			prepare: func(_ *testing.T, _ *testEnv, req *http.Request) {
				req.Header.Set("Referer", "http://localhost:8080/studio/structure")
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "stale session cookie",
			prepare: func(_ *testing.T, _ *testEnv, req *http.Request) {
				req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: "gone"})
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(o *Options) { o.TrustReferer = tt.trustReferer })
			req := multipartRequest(t, pngPart())
			tt.prepare(t, env, req)

			rec := env.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Unauthorized\n", rec.Body.String())
				assert.Zero(t, env.objects.count())
				assert.Equal(t, []string{"unauthorized"}, env.recorder.outcomes)
			}
		})
	}
}

func TestUpload_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		parts []part
		want  string
	}{
		{
			name:  "no file field",
			parts: []part{{field: "title", body: "Acme"}},
			want:  "No file provided",
		},
		{
			name:  "not an image",
			parts: []part{{field: "file", filename: "deck.pdf", contentType: "application/pdf", body: "%PDF"}},
			want:  "File must be an image",
		},
		{
			name:  "missing content type",
			parts: []part{{field: "file", filename: "logo.png", body: "pixels"}},
			want:  "File must be an image",
		},
		{
			name:  "two files",
			parts: []part{pngPart(), pngPart()},
			want:  "Only one file may be uploaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := multipartRequest(t, tt.parts...)
			req.AddCookie(env.sessionCookie(t))

			rec := env.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, strings.TrimSpace(rec.Body.String()))
			assert.Zero(t, env.objects.count())
			assert.Equal(t, []string{"invalid_input"}, env.recorder.outcomes)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(env.sessionCookie(t))

	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided\n", rec.Body.String())
}

func TestUpload_Oversize(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a 50 MiB body")
	}
	env := newTestEnv(t)
	big := part{field: "file", filename: "huge.png", contentType: "image/png", body: strings.Repeat("x", int(upload.MaxFileSize)+1)}
	req := multipartRequest(t, big)
	req.AddCookie(env.sessionCookie(t))

	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File size exceeds 50MB limit\n", rec.Body.String())
	assert.Zero(t, env.objects.count())
}

func TestUpload_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.objects.err = &storage.UpstreamError{Backend: "bunny", StatusCode: http.StatusUnauthorized, Message: `{"HttpCode":401,"Message":"Unauthorized"}`}
	req := multipartRequest(t, pngPart())
	req.AddCookie(env.sessionCookie(t))

	rec := env.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `Storage upload failed: {"HttpCode":401,"Message":"Unauthorized"}`+"\n", rec.Body.String())
	assert.Equal(t, []string{"upstream_failed"}, env.recorder.outcomes)
}

func TestUpload_TransportFailure(t *testing.T) {
	env := newTestEnv(t)
	env.objects.err = fmt.Errorf("put object: %w", context.DeadlineExceeded)
	req := multipartRequest(t, pngPart())
	req.AddCookie(env.sessionCookie(t))

	rec := env.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Upload failed: put object: context deadline exceeded\n", rec.Body.String())
	assert.Equal(t, []string{"internal"}, env.recorder.outcomes)
}

type slowObjects struct {
	memObjects
	delay time.Duration
}

func (s *slowObjects) Put(ctx context.Context, obj storage.Object) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.memObjects.Put(ctx, obj)
}

func TestUpload_OutlastsServerWriteTimeout(t *testing.T) {
	slow := &slowObjects{delay: 300 * time.Millisecond}
	env := newTestEnv(t, func(o *Options) {
		o.Relay = upload.NewRelay(slow, "https://cdn.example.com")
	})

	ts := httptest.NewUnstartedServer(env.server)
	ts.Config.ReadTimeout = 100 * time.Millisecond
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	body, contentType := multipartBody(t, pngPart())
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(env.sessionCookie(t))

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, slow.count())
}

func TestNew_UploadTimeoutMustExceedPutTimeout(t *testing.T) {
	_, err := New(Options{
		Relay:         upload.NewRelay(&memObjects{}, "", upload.WithPutTimeout(time.Minute)),
		Content:       cms.NewMemoryStore(),
		Sessions:      auth.New(auth.NewMemoryStore(time.Hour)),
		UploadTimeout: time.Minute,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must exceed storage put timeout")
}

func TestUpload_RejectsGet(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		})
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}
