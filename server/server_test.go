package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/esimov/facefind"
	"github.com/esimov/facefind/config"
	"github.com/esimov/facefind/internal/cascadetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.MinNeighbors = 3
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	c, err := facefind.LoadCascade(cascadetest.BrightCenter(), cfg.BaseSize)
	require.NoError(t, err)
	d, err := facefind.NewDetector(c, cfg.DetectionParams())
	require.NoError(t, err)

	s, err := NewServer(logs.NewTestingLog(t), cfg, cfg.NewProcessor(d))
	require.NoError(t, err)
	return s
}

func squarePNG(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(64, 64, color.Black)
	draw.Draw(img, image.Rect(16, 16, 48, 48), image.NewUniform(color.White), image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func doUpload(t *testing.T, s *Server, path, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestServer_DetectFaces(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := doUpload(t, s, "/detect_faces", "file", "square.png", squarePNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res facefind.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotZero(t, res.Count)
	assert.Len(t, res.Boxes, res.Count)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	box := raw["boxes"].([]any)[0].(map[string]any)
	for _, k := range []string{"x", "y", "w", "h"} {
		assert.Contains(t, box, k)
	}
}

func TestServer_DetectFacesShouldReturnEmptyList(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(40, 40, color.White), imaging.PNG))

	rec := doUpload(t, s, "/detect_faces", "file", "blank.png", buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"boxes":[],"count":0}`, rec.Body.String())
}

func TestServer_ShouldRequireFile(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := doUpload(t, s, "/detect_faces", "image", "square.png", squarePNG(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no file", decodeError(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/detect_faces", bytes.NewReader([]byte("raw bytes")))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no file", decodeError(t, rec))
}

func TestServer_ShouldRejectInvalidImage(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := doUpload(t, s, "/detect_faces", "file", "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid image", decodeError(t, rec))

	rec = doUpload(t, s, "/detect_faces", "file", "empty.png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid image", decodeError(t, rec))
}

func TestServer_ShouldRejectLargeUploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadBytes = 1024
	s := newTestServer(t, cfg)

	rec := doUpload(t, s, "/detect_faces", "file", "big.png", make([]byte, 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_ShouldRejectOversizedImages(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPixels = 32 * 32
	s := newTestServer(t, cfg)

	for _, path := range []string{"/detect_faces", "/annotate_faces"} {
		rec := doUpload(t, s, path, "file", "square.png", squarePNG(t))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "image too large", decodeError(t, rec))
	}

	// A few bytes of GIF header declaring a 65535x65535 screen.
	rec := doUpload(t, newTestServer(t, testConfig(t)), "/detect_faces", "file", "bomb.gif",
		[]byte("GIF89a\xff\xff\xff\xff\x00\x00\x00"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_ShouldSaveUploads(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	data := squarePNG(t)
	rec := doUpload(t, s, "/detect_faces", "file", "my face (1).png", data)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := os.ReadFile(filepath.Join(cfg.UploadDir, "my_face_1.png"))
	require.NoError(t, err)
	assert.Equal(t, data, saved)
}

func TestServer_ShouldNotSaveWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.UploadDir = ""
	s := newTestServer(t, cfg)

	rec := doUpload(t, s, "/detect_faces", "file", "square.png", squarePNG(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, s.uploads)
}

func TestServer_AnnotateFaces(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	for _, style := range []string{"", "outline", "blur"} {
		rec := doUpload(t, s, "/annotate_faces?style="+style, "file", "square.png", squarePNG(t))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

		n, err := strconv.Atoi(rec.Header().Get("X-Face-Count"))
		require.NoError(t, err)
		assert.NotZero(t, n)

		img, err := imaging.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	}

	rec := doUpload(t, s, "/annotate_faces?style=sepia", "file", "square.png", squarePNG(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ShouldRejectUnknownRoutes(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detect_faces", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ShouldRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = 2
	cfg.RateWindow = time.Minute
	s := newTestServer(t, cfg)

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, doUpload(t, s, "/detect_faces", "file", "square.png", squarePNG(t)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
