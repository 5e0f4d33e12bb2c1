package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stashbox/client"
)

const testToken = "0b6f8a52-3c1e-4a0d-9f77-2d5e8c1a9b34"

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newClient(t *testing.T, endpoint string) *client.Client {
	t.Helper()

	c, err := client.New(&client.Config{Endpoint: endpoint, Token: testToken})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		c, err := client.New(&client.Config{Endpoint: "http://localhost:5708", Token: testToken})
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := client.New(nil)
		assert.ErrorIs(t, err, client.ErrConfigRequired)
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("successful upload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/", r.URL.Path)
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

			f, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer func() { _ = f.Close() }()
			body, err := io.ReadAll(f)
			require.NoError(t, err)

			assert.Equal(t, "photo.png", header.Filename)
			assert.Equal(t, "test content", string(body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":200,"data":{"link":"http://files.test/v1/4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.png"}}`))
		}))
		defer server.Close()

		localPath := writeTempFile(t, "photo.png", "test content")

		results, err := newClient(t, server.URL).Upload(context.Background(), client.UploadOptions{
			Paths: []string{localPath},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, localPath, results[0].LocalPath)
		assert.Equal(t, "http://files.test/v1/4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.png", results[0].Link)
		assert.Equal(t, int64(12), results[0].Size)
		assert.NoError(t, results[0].Err)
		assert.False(t, client.HasUploadErrors(results))
	})

	t.Run("server error is collected per file", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":401,"message":"unauthorized"}`))
		}))
		defer server.Close()

		localPath := writeTempFile(t, "a.txt", "x")

		results, err := newClient(t, server.URL).Upload(context.Background(), client.UploadOptions{
			Paths: []string{localPath, filepath.Join(t.TempDir(), "missing.txt")},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.ErrorIs(t, results[0].Err, client.ErrUnauthorized)
		assert.Contains(t, results[0].Err.Error(), "unauthorized")
		assert.Error(t, results[1].Err)
		assert.True(t, client.HasUploadErrors(results))
	})

	t.Run("too large", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = w.Write([]byte(`{"status":413,"message":"file too large"}`))
		}))
		defer server.Close()

		results, err := newClient(t, server.URL).Upload(context.Background(), client.UploadOptions{
			Paths: []string{writeTempFile(t, "big.bin", "0123456789")},
		})
		require.NoError(t, err)
		assert.ErrorIs(t, results[0].Err, client.ErrTooLarge)
	})

	t.Run("no paths", func(t *testing.T) {
		_, err := newClient(t, "http://localhost:5708").Upload(context.Background(), client.UploadOptions{})
		assert.ErrorIs(t, err, client.ErrNoPaths)
	})

	t.Run("no token", func(t *testing.T) {
		c, err := client.New(&client.Config{})
		require.NoError(t, err)

		_, err = c.Upload(context.Background(), client.UploadOptions{Paths: []string{"a.txt"}})
		assert.ErrorIs(t, err, client.ErrTokenRequired)
	})

	t.Run("root base path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":200,"data":{"link":"x"}}`))
		}))
		defer server.Close()

		c, err := client.New(&client.Config{Endpoint: server.URL + "/", BasePath: "/", Token: testToken})
		require.NoError(t, err)

		results, err := c.Upload(context.Background(), client.UploadOptions{Paths: []string{writeTempFile(t, "a.txt", "x")}})
		require.NoError(t, err)
		assert.NoError(t, results[0].Err)
	})
}

func TestClient_Download(t *testing.T) {
	const name = "4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.png"

	newServer := func(t *testing.T) *httptest.Server {
		t.Helper()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/"+name {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":404,"message":"not found"}`))
				return
			}
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("ETag", `"abc123"`)
			_, _ = w.Write([]byte("png bytes"))
		}))
		t.Cleanup(server.Close)
		return server
	}

	t.Run("to file derived from name", func(t *testing.T) {
		server := newServer(t)
		t.Chdir(t.TempDir())

		result, reader, err := newClient(t, server.URL).Download(context.Background(), client.DownloadOptions{Name: name})
		require.NoError(t, err)
		assert.Nil(t, reader)

		assert.Equal(t, name, result.Name)
		assert.Equal(t, name, result.LocalPath)
		assert.Equal(t, "abc123", result.ETag)
		assert.Equal(t, "image/png", result.ContentType)
		assert.Equal(t, int64(9), result.Size)

		data, err := os.ReadFile(name)
		require.NoError(t, err)
		assert.Equal(t, "png bytes", string(data))
	})

	t.Run("to nested path", func(t *testing.T) {
		server := newServer(t)
		out := filepath.Join(t.TempDir(), "a", "b", "out.png")

		result, _, err := newClient(t, server.URL).Download(context.Background(), client.DownloadOptions{Name: name, LocalPath: out})
		require.NoError(t, err)
		assert.Equal(t, out, result.LocalPath)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "png bytes", string(data))
	})

	t.Run("stdout by link", func(t *testing.T) {
		server := newServer(t)

		result, reader, err := newClient(t, "http://unused.invalid").Download(context.Background(), client.DownloadOptions{
			Name:      server.URL + "/v1/" + name,
			LocalPath: "-",
		})
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer func() { _ = reader.Close() }()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "png bytes", string(data))
		assert.Equal(t, name, result.Name)
		assert.Equal(t, "-", result.LocalPath)
	})

	t.Run("not found", func(t *testing.T) {
		server := newServer(t)

		_, _, err := newClient(t, server.URL).Download(context.Background(), client.DownloadOptions{Name: "missing", LocalPath: "-"})
		assert.ErrorIs(t, err, client.ErrNotFound)

		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "not found", apiErr.Message)
	})

	t.Run("empty name", func(t *testing.T) {
		_, _, err := newClient(t, "http://localhost:5708").Download(context.Background(), client.DownloadOptions{})
		assert.ErrorIs(t, err, client.ErrEmptyName)
	})
}

func TestClient_Health(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	assert.NoError(t, c.Health(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	err := c.Health(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestAPIError_Is(t *testing.T) {
	err := &client.APIError{StatusCode: http.StatusNotFound, Message: "not found"}

	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.NotErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, "server error: 404 - not found", err.Error())
}
