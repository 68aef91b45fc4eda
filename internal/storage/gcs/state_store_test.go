package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	store "github.com/JakeFAU/boardwatch/internal/storage"
)

type fakeObject struct {
	data    []byte
	readErr error
	written *bytes.Buffer
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func (f *fakeObject) NewReader(context.Context) (io.ReadCloser, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *fakeObject) NewWriter(context.Context) io.WriteCloser {
	f.written = &bytes.Buffer{}
	return nopCloser{f.written}
}

func TestReadMapsMissingObject(t *testing.T) {
	t.Parallel()

	s := &StateStore{obj: &fakeObject{readErr: storage.ErrObjectNotExist}, uri: "gs://b/o"}
	_, err := s.Read(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)

	s = &StateStore{obj: &fakeObject{readErr: errors.New("permission denied")}, uri: "gs://b/o"}
	_, err = s.Read(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestReadWriteFake(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{data: []byte(`["x"]`)}
	s := &StateStore{obj: obj, uri: "gs://b/o"}

	got, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, `["x"]`, string(got))

	require.NoError(t, s.Write(context.Background(), []byte(`["x","y"]`)))
	require.Equal(t, `["x","y"]`, obj.written.String())
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b", Object: "o"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = New(client, Config{Object: "o"})
	require.Error(t, err)
	_, err = New(client, Config{Bucket: "b"})
	require.Error(t, err)

	s, err := New(client, Config{Bucket: "b", Object: "state/seen.json"})
	require.NoError(t, err)
	require.Equal(t, "gs://b/state/seen.json", s.URI())
}

func TestWriteUploadsToBucket(t *testing.T) {
	objectName := "state/seen.json"
	bucketName := "test-bucket"
	payload := `["https://theqoo.net/bl/1"]`

	// This handler simulates the GCS JSON API for multipart uploads.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, fmt.Sprintf("/upload/storage/v1/b/%s/o", bucketName))
		assert.Equal(t, objectName, r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), payload)

		fmt.Fprintln(w, `{ "name": "`+objectName+`", "bucket": "`+bucketName+`" }`)
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	s, err := New(client, Config{Bucket: bucketName, Object: objectName})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), []byte(payload)))
}
