package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"startup-cms/internal/storage"
)

// File is one incoming upload.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Result is the JSON body returned on success.
type Result struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Name    string `json:"-"`
}

// Recorder receives upload measurements. *metrics.Metrics implements it.
type Recorder interface {
	UploadFinished(outcome string, size int64)
	StoragePut(backend string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) UploadFinished(string, int64)    {}
func (nopRecorder) StoragePut(string, time.Duration) {}

// Relay validates uploads and writes them to an ObjectStore.
type Relay struct {
	store      storage.ObjectStore
	pullZone   string
	now        func() time.Time
	token      func() string
	recorder   Recorder
	putTimeout time.Duration
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock sets the time source used for object names.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// WithTokenSource sets the random suffix generator used for object names.
func WithTokenSource(token func() string) Option {
	return func(r *Relay) { r.token = token }
}

// WithRecorder attaches a measurement sink.
func WithRecorder(rec Recorder) Option {
	return func(r *Relay) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithPutTimeout bounds the storage write. Non-positive values disable the
// bound.
func WithPutTimeout(d time.Duration) Option {
	return func(r *Relay) { r.putTimeout = d }
}

// NewRelay returns a relay writing to store and building URLs under pullZone.
func NewRelay(store storage.ObjectStore, pullZone string, opts ...Option) *Relay {
	r := &Relay{
		store:      store,
		pullZone:   pullZone,
		now:        time.Now,
		token:      RandomToken,
		recorder:   nopRecorder{},
		putTimeout: storage.DefaultPutTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PutTimeout is the bound on a single storage write, 0 when unbounded.
func (r *Relay) PutTimeout() time.Duration { return r.putTimeout }

// Recorder returns the relay's measurement sink.
func (r *Relay) Recorder() Recorder { return r.recorder }

// PublicURL joins the pull-zone base and an object name.
func (r *Relay) PublicURL(name string) string {
	return strings.TrimRight(r.pullZone, "/") + "/" + name
}

// Upload checks f, stores it under a generated name and returns its public
// URL. The whole payload is held in memory for the single storage request.
func (r *Relay) Upload(ctx context.Context, f File) (res Result, err error) {
	ctx, span := otel.Tracer("startup-cms/upload").Start(ctx, "upload.relay")
	span.SetAttributes(
		attribute.String("upload.filename", f.Filename),
		attribute.String("upload.content_type", f.ContentType),
		attribute.Int64("upload.size", f.Size),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if f.Reader == nil {
		return Result{}, Invalid(ErrNoFile)
	}
	if err := CheckFile(f.ContentType, f.Size); err != nil {
		return Result{}, Invalid(err)
	}

	name := ObjectName(f.Filename, r.now(), r.token())
	span.SetAttributes(attribute.String("upload.object", name))

	body, err := io.ReadAll(io.LimitReader(f.Reader, MaxFileSize+1))
	if err != nil {
		return Result{}, &Error{Kind: KindInternal, Message: "Upload failed: " + err.Error(), Err: err}
	}
	if int64(len(body)) > MaxFileSize {
		return Result{}, Invalid(ErrTooLarge)
	}

	putCtx := ctx
	if r.putTimeout > 0 {
		var cancel context.CancelFunc
		putCtx, cancel = context.WithTimeout(ctx, r.putTimeout)
		defer cancel()
	}

	start := time.Now()
	err = r.store.Put(putCtx, storage.Object{Name: name, ContentType: f.ContentType, Body: body})
	r.recorder.StoragePut(r.store.Backend(), time.Since(start))
	if err != nil {
		var upErr *storage.UpstreamError
		if errors.As(err, &upErr) {
			return Result{}, &Error{
				Kind:    KindUpstream,
				Message: fmt.Sprintf("Storage upload failed: %s", upErr.Error()),
				Err:     err,
			}
		}
		return Result{}, &Error{Kind: KindInternal, Message: "Upload failed: " + err.Error(), Err: err}
	}

	return Result{Success: true, URL: r.PublicURL(name), Name: name}, nil
}
