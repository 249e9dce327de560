package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestGCS(t *testing.T, handler http.Handler, object string) *GCS {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sink, err := NewGCS(client, "test-bucket", object)
	require.NoError(t, err)
	return sink
}

func TestGCSUploadsOnClose(t *testing.T) {
	var uploads atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "runs/abc.jsonl", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `"name":"Alpha"`)
		assert.Contains(t, string(body), `"comments_list":[`)

		fmt.Fprintln(w, `{"name": "runs/abc.jsonl", "bucket": "test-bucket"}`)
	})

	sink := newTestGCS(t, handler, "runs/abc.jsonl")
	assert.Equal(t, "gs://test-bucket/runs/abc.jsonl", sink.URI())

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, sampleProduct()))
	require.NoError(t, sink.Write(ctx, sampleProduct()))
	assert.Zero(t, uploads.Load(), "nothing is uploaded before Close")

	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Close(ctx))
	assert.Equal(t, int32(1), uploads.Load())
	require.Error(t, sink.Write(ctx, sampleProduct()))
}

func TestGCSSkipsEmptyUpload(t *testing.T) {
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("unexpected upload")
	})
	sink := newTestGCS(t, handler, "empty.jsonl")
	require.NoError(t, sink.Close(context.Background()))
}

func TestGCSUploadError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	sink := newTestGCS(t, handler, "broken.jsonl")
	require.NoError(t, sink.Write(context.Background(), sampleProduct()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, sink.Close(ctx))
}

func TestNewGCSValidation(t *testing.T) {
	_, err := NewGCS(nil, "bucket", "object")
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = NewGCS(client, "", "object")
	require.Error(t, err)
	_, err = NewGCS(client, "bucket", " ")
	require.Error(t, err)
}
