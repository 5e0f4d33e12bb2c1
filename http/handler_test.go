package http_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/stashbox"
	stashboxhttp "github.com/sagarc03/stashbox/http"
	"github.com/sagarc03/stashbox/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// readSeekNopCloser wraps an io.ReadSeeker to add a no-op Close method
type readSeekNopCloser struct {
	io.ReadSeeker
}

func (r readSeekNopCloser) Close() error { return nil }

// MockService is a mock implementation of http.Service. Upload drains the
// content before recording the call so expectations can match on the body.
type MockService struct {
	mock.Mock
}

func (m *MockService) Authorize(ctx context.Context, value string) (stashbox.AccessToken, error) {
	args := m.Called(ctx, value)
	return args.Get(0).(stashbox.AccessToken), args.Error(1)
}

func (m *MockService) Upload(ctx context.Context, tok stashbox.AccessToken, up stashbox.Upload) (stashbox.StoredObject, error) {
	body, err := io.ReadAll(up.Content)
	if err != nil {
		return stashbox.StoredObject{}, fmt.Errorf("upload: %w: %w", stashbox.ErrStorage, err)
	}
	args := m.Called(ctx, tok, up.Filename, string(body), up.BaseURL)
	return args.Get(0).(stashbox.StoredObject), args.Error(1)
}

func (m *MockService) Open(ctx context.Context, name string) (stashbox.StoredObject, stashbox.Blob, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(stashbox.StoredObject), args.Get(1).(stashbox.Blob), args.Error(2)
}

func (m *MockService) RecordView(ctx context.Context, ev stashbox.ViewEvent) {
	m.Called(ctx, ev)
}

var alice = stashbox.AccessToken{Value: testToken, UserID: "alice"}

func newRouter(cfg stashboxhttp.HandlerConfig, service *MockService) http.Handler {
	return stashboxhttp.NewHandler(&cfg, service).Router()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename == "" {
		require.NoError(t, mw.WriteField(field, string(content)))
	} else {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()

	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestHandler_Upload_Success(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	id := uuid.New()
	link := "http://example.com/" + id.String() + ".png"

	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)
	service.On("Upload", mock.Anything, alice, "photo.png", "fake png bytes", "http://example.com").
		Return(stashbox.StoredObject{ID: id, Path: id.String() + ".png", URL: link, UserID: "alice", SizeBytes: 14}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/", "photo.png", []byte("fake png bytes")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"status":200,"data":{"link":%q}}`, link), rec.Body.String())
	service.AssertExpectations(t)
}

func TestHandler_Upload_MissingToken(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	req := uploadRequest(t, "/", "photo.png", []byte("x"))
	req.Header.Del("Authorization")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token required", decodeEnvelope(t, rec).Message)
	service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Upload_InvalidToken(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	service.On("Authorize", mock.Anything, testToken).
		Return(stashbox.AccessToken{}, fmt.Errorf("authorize: unknown token: %w", stashbox.ErrUnauthorized))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/", "photo.png", []byte("x")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeEnvelope(t, rec).Message)
	service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Upload_NotMultipart(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)
	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("raw bytes"))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "expected multipart/form-data body", decodeEnvelope(t, rec).Message)
}

func TestHandler_Upload_FirstPartNotFile(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)
	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)

	body, contentType := multipartBody(t, "note", "", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request", decodeEnvelope(t, rec).Message)
}

func TestHandler_Upload_EmptyForm(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)
	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Upload_TooLarge(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{MaxUploadSize: 1024}, service)
	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/", "big.bin", bytes.Repeat([]byte("a"), 4096)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "upload too large", decodeEnvelope(t, rec).Message)
}

func TestHandler_Upload_ServiceFailure(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	service.On("Authorize", mock.Anything, testToken).Return(alice, nil)
	service.On("Upload", mock.Anything, alice, "a.txt", "x", mock.Anything).
		Return(stashbox.StoredObject{}, fmt.Errorf("upload: persist record: %w", errors.New("db down")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/", "a.txt", []byte("x")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeEnvelope(t, rec).Message)
}

func TestHandler_Upload_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     stashboxhttp.HandlerConfig
		target  string
		headers map[string]string
		want    string
	}{
		{
			name:   "request host",
			target: "http://files.example.com/",
			want:   "http://files.example.com",
		},
		{
			name:    "forwarded proto",
			target:  "http://files.example.com/",
			headers: map[string]string{"X-Forwarded-Proto": "https"},
			want:    "https://files.example.com",
		},
		{
			name:   "base path",
			cfg:    stashboxhttp.HandlerConfig{BasePath: "/files/"},
			target: "http://files.example.com/files/",
			want:   "http://files.example.com/files",
		},
		{
			name:   "public url",
			cfg:    stashboxhttp.HandlerConfig{PublicURL: "https://cdn.example.com/", BasePath: "files"},
			target: "http://internal:8080/files/",
			want:   "https://cdn.example.com/files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			router := newRouter(tt.cfg, service)

			service.On("Authorize", mock.Anything, testToken).Return(alice, nil)
			service.On("Upload", mock.Anything, alice, "a.txt", "x", tt.want).
				Return(stashbox.StoredObject{URL: tt.want + "/obj.txt"}, nil)

			req := uploadRequest(t, tt.target, "a.txt", []byte("x"))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			service.AssertExpectations(t)
		})
	}
}

func storedObject(content []byte) (stashbox.StoredObject, stashbox.Blob) {
	id := uuid.New()
	obj := stashbox.StoredObject{
		ID:        id,
		Path:      id.String() + ".bin",
		Filename:  "data.bin",
		MimeType:  "application/octet-stream",
		SizeBytes: int64(len(content)),
		ETag:      "abc123",
	}
	blob := stashbox.Blob{
		Content: readSeekNopCloser{bytes.NewReader(content)},
		Size:    int64(len(content)),
		ModTime: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return obj, blob
}

func viewFor(name string) any {
	return mock.MatchedBy(func(ev stashbox.ViewEvent) bool {
		return ev.ObjectID == name && len(ev.RequestData) > 0
	})
}

func TestHandler_Download_Success(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	content := bytes.Repeat([]byte("z"), 1000)
	obj, blob := storedObject(content)

	service.On("Open", mock.Anything, obj.Path).Return(obj, blob, nil)
	service.On("RecordView", mock.Anything, viewFor(obj.Path)).Return()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+obj.Path, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, `inline; filename=data.bin`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, content, rec.Body.Bytes())
	service.AssertExpectations(t)
}

func TestHandler_Download_Range(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	obj, blob := storedObject(content)

	service.On("Open", mock.Anything, obj.Path).Return(obj, blob, nil)
	service.On("RecordView", mock.Anything, mock.MatchedBy(func(ev stashbox.ViewEvent) bool {
		return ev.ObjectID == obj.Path && strings.Contains(string(ev.RequestData), "bytes=0-99")
	})).Return()

	req := httptest.NewRequest(http.MethodGet, "/"+obj.Path, nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, content[:100], rec.Body.Bytes())
	service.AssertExpectations(t)
}

func TestHandler_Download_UnsatisfiableRange(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	obj, blob := storedObject(make([]byte, 10))
	service.On("Open", mock.Anything, obj.Path).Return(obj, blob, nil)
	service.On("RecordView", mock.Anything, viewFor(obj.Path)).Return()

	req := httptest.NewRequest(http.MethodGet, "/"+obj.Path, nil)
	req.Header.Set("Range", "bytes=500-600")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	service.AssertExpectations(t)
}

func TestHandler_Download_Head(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	obj, blob := storedObject(make([]byte, 42))
	service.On("Open", mock.Anything, obj.Path).Return(obj, blob, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/"+obj.Path, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
	service.AssertExpectations(t)
	service.AssertNotCalled(t, "RecordView", mock.Anything, mock.Anything)
}

func TestHandler_Download_HeadMissingRecordsNothing(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	service.On("Open", mock.Anything, "nope").Return(stashbox.StoredObject{}, stashbox.Blob{}, stashbox.ErrNotFound)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	service.AssertNotCalled(t, "RecordView", mock.Anything, mock.Anything)
}

func TestHandler_Download_NotFoundRecordsView(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	name := uuid.NewString() + ".png"
	service.On("Open", mock.Anything, name).
		Return(stashbox.StoredObject{}, stashbox.Blob{}, fmt.Errorf("open object: %w", stashbox.ErrNotFound))
	service.On("RecordView", mock.Anything, viewFor(name)).Return()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+name, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeEnvelope(t, rec).Message)
	service.AssertExpectations(t)
}

func TestHandler_Download_Traversal(t *testing.T) {
	tests := []string{
		"/..%2Fetc%2Fpasswd",
		"/..",
		"/a..b",
		"/%5c..%5cwin.ini",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			service := new(MockService)
			router := newRouter(stashboxhttp.HandlerConfig{}, service)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			service.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
			service.AssertNotCalled(t, "RecordView", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Download_BasePath(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{BasePath: "/files"}, service)

	obj, blob := storedObject([]byte("hi"))
	service.On("Open", mock.Anything, obj.Path).Return(obj, blob, nil)
	service.On("RecordView", mock.Anything, viewFor(obj.Path)).Return()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+obj.Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+obj.Path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	service.AssertNumberOfCalls(t, "Open", 1)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeEnvelope(t, rec).Message)
}

func TestHandler_Health(t *testing.T) {
	service := new(MockService)

	healthy := newRouter(stashboxhttp.HandlerConfig{
		HealthChecks: map[string]stashboxhttp.HealthCheck{
			"database": func(context.Context) error { return nil },
		},
	}, service)

	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeEnvelope(t, rec).Message)

	unhealthy := newRouter(stashboxhttp.HandlerConfig{
		HealthChecks: map[string]stashboxhttp.HealthCheck{
			"database": func(context.Context) error { return nil },
			"storage":  func(context.Context) error { return errors.New("disk gone") },
		},
	}, service)

	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decodeEnvelope(t, rec).Message)
}

func TestHandler_Metrics(t *testing.T) {
	service := new(MockService)
	m := metrics.New()
	router := newRouter(stashboxhttp.HandlerConfig{Metrics: m}, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stashbox_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestHandler_MetricsDisabled(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{}, service)

	service.On("Open", mock.Anything, "metrics").
		Return(stashbox.StoredObject{}, stashbox.Blob{}, fmt.Errorf("open object: %w", stashbox.ErrNotFound))
	service.On("RecordView", mock.Anything, viewFor("metrics")).Return()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	service.AssertExpectations(t)
}

func TestHandler_CORS(t *testing.T) {
	service := new(MockService)
	router := newRouter(stashboxhttp.HandlerConfig{
		CORS: stashboxhttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"https://app.example.com"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		},
	}, service)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
