// Package storage writes uploaded objects to the CDN-side blob store.
//
// Three backends are provided: Bunny Storage (the default, addressed over its
// plain HTTP API), S3 and MinIO. All of them are write-only from this
// system's point of view: objects are created once and never read back,
// mutated or deleted.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "startup-cms/storage"

// DefaultPutTimeout bounds a single storage write. Servers relaying uploads
// must allow at least this long for the response.
const DefaultPutTimeout = 5 * time.Minute

// Object is a blob about to be written under Name.
type Object struct {
	Name        string
	ContentType string
	Body        []byte
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	// Put writes obj in a single request. A non-2xx answer from the
	// storage service is reported as *UpstreamError.
	Put(ctx context.Context, obj Object) error

	// Backend names the backend for logs and metrics.
	Backend() string
}

// UpstreamError is returned when the storage service answered but refused
// the write.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s returned %d %s", e.Backend, e.StatusCode, http.StatusText(e.StatusCode))
}

func startSpan(ctx context.Context, backend string, obj Object) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "storage.put",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.backend", backend),
			attribute.String("storage.object", obj.Name),
			attribute.Int("storage.size", len(obj.Body)),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
