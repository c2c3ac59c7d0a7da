package filemgr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("cropName", "Wheat"))
	if data != nil {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/crops", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStoresImageAndThumbnail(t *testing.T) {
	m := NewManager(t.TempDir())
	var got *Saved
	h := m.Upload(EntityCrop, "image")(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		got, _ = FromContext(r.Context())
		assert.Equal(t, "Wheat", r.FormValue("cropName"))
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t, "image", "My Wheat.png", pngBytes(t, 900, 600)), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got)
	assert.True(t, strings.HasPrefix(got.URL, "/static/uploads/crops/my_wheat_"))
	assert.Contains(t, got.ThumbURL, "/crops/thumb/")

	thumbPath := filepath.Join(m.Root, "crops", "thumb", filepath.Base(got.URL))
	thumb, err := imaging.Open(thumbPath)
	require.NoError(t, err)
	assert.Equal(t, ThumbWidth, thumb.Bounds().Dx())
	assert.Equal(t, 200, thumb.Bounds().Dy())

	m.Remove(got.URL)
	_, err = os.Stat(got.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadWithoutFilePassesThrough(t *testing.T) {
	m := NewManager(t.TempDir())
	called := false
	h := m.Upload(EntityCrop, "image")(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_, ok := FromContext(r.Context())
		assert.False(t, ok)
		called = true
	})
	h(httptest.NewRecorder(), multipartRequest(t, "image", "", nil), nil)
	assert.True(t, called)
}

func TestUploadRejectsNonImage(t *testing.T) {
	m := NewManager(t.TempDir())
	h := m.Upload(EntityCrop, "image")(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		t.Fatal("handler must not run")
	})
	rec := httptest.NewRecorder()
	h(rec, multipartRequest(t, "image", "notes.txt", []byte("just some text, definitely not a picture")), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInvalidMIME.Error())
}

func TestSniffMIMERecognisesWebP(t *testing.T) {
	head := append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 8)...)
	assert.Equal(t, "image/webp", sniffMIME(head))
	assert.Equal(t, "image/png", sniffMIME(pngBytes(t, 2, 2)))
}

func TestEnsureSafeFilename(t *testing.T) {
	assert.Equal(t, "fresh_tomatoes.jpg", ensureSafeFilename("Fresh Tomatoes!.PNG", ".jpg"))
}

func TestUploadPassesThroughJSON(t *testing.T) {
	m := NewManager(t.TempDir())
	var body string
	h := m.Upload(EntityCrop, "image")(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_, ok := FromContext(r.Context())
		assert.False(t, ok)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPut, "/api/crops/c1", strings.NewReader(`{"pricePerUnit": 20}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pricePerUnit": 20}`, body)
}
