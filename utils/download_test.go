package utils

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestUtils_ShouldDownloadImage(t *testing.T) {
	data := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f, err := DownloadImage(context.Background(), srv.URL+"/spiral.png")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUtils_ShouldRejectNonImageDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not an image</body></html>"))
	}))
	defer srv.Close()

	_, err := DownloadImage(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestUtils_ShouldFailOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DownloadImage(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestUtils_ShouldBeValidUrl(t *testing.T) {
	assert.True(t, IsValidUrl("https://github.com/pdscreen/pdscreen/"))
	assert.False(t, IsValidUrl("spiral.png"))
	assert.False(t, IsValidUrl("ftp://example.com/spiral.png"))
	assert.False(t, IsValidUrl("/tmp/spiral.png"))
}

func TestUtils_ShouldDetectValidFileType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.png")
	require.NoError(t, os.WriteFile(path, samplePNG(t), 0644))

	ftype, err := DetectContentType(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ftype)
	assert.True(t, IsImageContent(ftype, path))
	assert.True(t, IsImageContent("application/octet-stream", "scan.TIFF"))
	assert.False(t, IsImageContent("text/plain", "notes.txt"))
}
