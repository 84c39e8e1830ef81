package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// fakeS3 is a minimal path-style S3 endpoint keeping objects in memory.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	requests []recordedRequest
	failPuts bool
}

func newFakeS3(t *testing.T, buckets ...string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		body:        body,
	})

	isBucket := len(r.URL.Path) > 1 && !strings.Contains(r.URL.Path[1:], "/")
	switch {
	case r.Method == http.MethodHead && isBucket:
		if !f.buckets[r.URL.Path[1:]] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && isBucket:
		f.buckets[r.URL.Path[1:]] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if f.failPuts {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>InternalError</Code><Message>boom</Message></Error>`))
			return
		}
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[p]
	return b, ok
}

func (f *fakeS3) lastPut() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].method == http.MethodPut {
			return f.requests[i]
		}
	}
	return recordedRequest{}
}

func testStorageConfig(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Enabled:         true,
		Bucket:          "archive",
		Endpoint:        endpoint,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}
}

func TestNewS3Archive_Validation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		mutate  func(*config.StorageConfig)
		wantErr string
	}{
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = "" }, "bucket is required"},
		{"missing access key", func(c *config.StorageConfig) { c.AccessKeyID = "" }, "access key is required"},
		{"missing secret key", func(c *config.StorageConfig) { c.SecretAccessKey = "" }, "secret key is required"},
		{"endpoint without scheme", func(c *config.StorageConfig) { c.Endpoint = "localhost:9000" }, "invalid storage endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStorageConfig("http://localhost:9000")
			tt.mutate(&cfg)
			_, err := NewS3Archive(ctx, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid config", func(t *testing.T) {
		a, err := NewS3Archive(ctx, testStorageConfig("http://localhost:9000"), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "archive", a.Bucket())
	})
}

func TestS3Archive_ObjectKey(t *testing.T) {
	cfg := testStorageConfig("http://localhost:9000")
	a, err := NewS3Archive(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "settlements/2026/01/x.json", a.ObjectKey("settlements/2026/01/x.json"))

	cfg.Prefix = "/prod/"
	a, err = NewS3Archive(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "prod/settlements/2026/01/x.json", a.ObjectKey("settlements/2026/01/x.json"))
}

func TestS3Archive_PutObject(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t, "archive")
	cfg := testStorageConfig(srv.URL)
	cfg.Prefix = "audit"
	a, err := NewS3Archive(ctx, cfg, WithMaxAttempts(1))
	require.NoError(t, err)

	body := []byte(`{"settlement_id":"s-1"}`)
	require.NoError(t, a.PutObject(ctx, "settlements/2026/10/s-1.json", body, "application/json"))

	stored, ok := fake.object("/archive/audit/settlements/2026/10/s-1.json")
	require.True(t, ok)
	assert.Equal(t, body, stored)
	assert.Equal(t, "application/json", fake.lastPut().contentType)

	exists, err := a.ObjectExists(ctx, "settlements/2026/10/s-1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.ObjectExists(ctx, "settlements/2026/10/missing.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3Archive_PutObjectErrors(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t, "archive")
	a, err := NewS3Archive(ctx, testStorageConfig(srv.URL), WithMaxAttempts(1))
	require.NoError(t, err)

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, a.PutObject(ctx, "", []byte("x"), "text/plain"))
	})

	t.Run("server failure is a store error", func(t *testing.T) {
		fake.mu.Lock()
		fake.failPuts = true
		fake.mu.Unlock()

		err := a.PutObject(ctx, "k.json", []byte("{}"), "application/json")
		require.Error(t, err)
		assert.Equal(t, shared.CodeStoreUnavailable, shared.CodeOf(err))
	})
}

func TestS3Archive_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket is left alone", func(t *testing.T) {
		fake, srv := newFakeS3(t, "archive")
		a, err := NewS3Archive(ctx, testStorageConfig(srv.URL), WithMaxAttempts(1))
		require.NoError(t, err)

		require.NoError(t, a.EnsureBucket(ctx))
		assert.Equal(t, recordedRequest{}, fake.lastPut())
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		fake, srv := newFakeS3(t)
		a, err := NewS3Archive(ctx, testStorageConfig(srv.URL), WithMaxAttempts(1))
		require.NoError(t, err)

		require.NoError(t, a.EnsureBucket(ctx))
		assert.Equal(t, "/archive", fake.lastPut().path)
		fake.mu.Lock()
		assert.True(t, fake.buckets["archive"])
		fake.mu.Unlock()
	})
}
