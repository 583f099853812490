package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startup-cms/internal/storage"
)

type fakeStore struct {
	mu   sync.Mutex
	puts []storage.Object
	err  error
}

func (s *fakeStore) Put(_ context.Context, obj storage.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.puts = append(s.puts, obj)
	return nil
}

func (s *fakeStore) Backend() string { return "fake" }

type fakeRecorder struct {
	puts []string
}

func (r *fakeRecorder) UploadFinished(string, int64) {}

func (r *fakeRecorder) StoragePut(backend string, _ time.Duration) {
	r.puts = append(r.puts, backend)
}

func fixedRelay(store storage.ObjectStore, opts ...Option) *Relay {
	opts = append([]Option{
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
		WithTokenSource(func() string { return "k3y9x0abcdefg" }),
	}, opts...)
	return NewRelay(store, "https://cdn.example.com", opts...)
}

func imageFile(name string, body []byte) File {
	return File{Filename: name, ContentType: "image/png", Size: int64(len(body)), Reader: bytes.NewReader(body)}
}

func TestRelay_Upload(t *testing.T) {
	store := &fakeStore{}
	rec := &fakeRecorder{}
	relay := fixedRelay(store, WithRecorder(rec))

	res, err := relay.Upload(context.Background(), imageFile("logo.png", []byte("pixels")))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "1700000000000-k3y9x0abcdefg.png", res.Name)
	assert.Equal(t, "https://cdn.example.com/1700000000000-k3y9x0abcdefg.png", res.URL)

	require.Len(t, store.puts, 1)
	assert.Equal(t, res.Name, store.puts[0].Name)
	assert.Equal(t, "image/png", store.puts[0].ContentType)
	assert.Equal(t, []byte("pixels"), store.puts[0].Body)
	assert.Equal(t, []string{"fake"}, rec.puts)
}

func TestRelay_UploadDefaultsExtension(t *testing.T) {
	res, err := fixedRelay(&fakeStore{}).Upload(context.Background(), imageFile("screenshot", []byte("x")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.URL, ".jpg"))
}

func TestRelay_PublicURLTrimsTrailingSlash(t *testing.T) {
	relay := NewRelay(&fakeStore{}, "https://cdn.example.com/")
	assert.Equal(t, "https://cdn.example.com/a.png", relay.PublicURL("a.png"))
}

func TestRelay_RejectsBeforeStoring(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr error
		wantMsg string
	}{
		{
			name:    "no reader",
			file:    File{Filename: "a.png", ContentType: "image/png"},
			wantErr: ErrNoFile,
			wantMsg: "No file provided",
		},
		{
			name:    "not an image",
			file:    File{Filename: "a.pdf", ContentType: "application/pdf", Size: 3, Reader: strings.NewReader("pdf")},
			wantErr: ErrNotImage,
			wantMsg: "File must be an image",
		},
		{
			name:    "declared oversize",
			file:    File{Filename: "a.png", ContentType: "image/png", Size: MaxFileSize + 1, Reader: strings.NewReader("x")},
			wantErr: ErrTooLarge,
			wantMsg: "File size exceeds 50MB limit",
		},
		{
			name:    "actual oversize",
			file:    File{Filename: "a.png", ContentType: "image/png", Size: 1, Reader: bytes.NewReader(make([]byte, MaxFileSize+1))},
			wantErr: ErrTooLarge,
			wantMsg: "File size exceeds 50MB limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := fixedRelay(store).Upload(context.Background(), tt.file)

			var uerr *Error
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, KindInvalidInput, uerr.Kind)
			assert.Equal(t, http.StatusBadRequest, uerr.Kind.StatusCode())
			assert.Equal(t, tt.wantMsg, uerr.Error())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.puts)
		})
	}
}

func TestRelay_UpstreamFailure(t *testing.T) {
	store := &fakeStore{err: &storage.UpstreamError{Backend: "bunny", StatusCode: 500, Message: "zone is full"}}

	_, err := fixedRelay(store).Upload(context.Background(), imageFile("a.png", []byte("x")))

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindUpstream, uerr.Kind)
	assert.Equal(t, http.StatusInternalServerError, uerr.Kind.StatusCode())
	assert.Equal(t, "Storage upload failed: zone is full", uerr.Error())
	assert.Equal(t, "upstream_failed", Outcome(err))
}

func TestRelay_TransportFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("dial tcp: connection refused")}

	_, err := fixedRelay(store).Upload(context.Background(), imageFile("a.png", []byte("x")))

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindInternal, uerr.Kind)
	assert.Equal(t, "Upload failed: dial tcp: connection refused", uerr.Error())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "unauthorized", Outcome(Unauthorized()))
	assert.Equal(t, "invalid_input", Outcome(Invalid(ErrNotImage)))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
}

type blockingStore struct{}

func (blockingStore) Put(ctx context.Context, _ storage.Object) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Backend() string { return "blocking" }

func TestRelay_UploadBoundsStorageWrite(t *testing.T) {
	relay := fixedRelay(blockingStore{}, WithPutTimeout(10*time.Millisecond))

	_, err := relay.Upload(context.Background(), imageFile("logo.png", []byte("pixels")))
	require.Error(t, err)

	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindInternal, uerr.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "Upload failed: context deadline exceeded", uerr.Message)
}

func TestNewRelay_DefaultPutTimeout(t *testing.T) {
	assert.Equal(t, storage.DefaultPutTimeout, NewRelay(&fakeStore{}, "").PutTimeout())
}
