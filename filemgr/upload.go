package filemgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"
	_ "golang.org/x/image/webp"

	"cropconnect/globals"
	"cropconnect/utils"
)

// Saved describes one stored image and its thumbnail.
type Saved struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
	Path     string `json:"-"`
}

// Manager writes uploads under Root and serves them below URLPrefix.
type Manager struct {
	Root      string
	URLPrefix string
}

func NewManager(root string) *Manager {
	return &Manager{Root: root, URLPrefix: "/static/uploads"}
}

// SaveImage validates, decodes and stores an image plus a 300px wide thumbnail.
func (m *Manager) SaveImage(entity EntityType, fh *multipart.FileHeader) (Saved, error) {
	if fh.Size > MaxImageSize {
		return Saved{}, ErrFileTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return Saved{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer src.Close()
	return m.save(entity, fh.Filename, src)
}

func (m *Manager) save(entity EntityType, name string, src io.Reader) (Saved, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return Saved{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return Saved{}, ErrFileTooLarge
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if !isMIMEAllowed(sniffMIME(head)) {
		return Saved{}, ErrInvalidMIME
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Saved{}, ErrDecode
	}

	base := utils.GetUUID()
	if safe := ensureSafeFilename(name, ""); safe != "" {
		base = safe + "_" + base[:8]
	}
	fileName := base + ".jpg"

	dir := filepath.Join(m.Root, string(entity))
	thumbDir := filepath.Join(dir, "thumb")
	if err := ensureDirExists(thumbDir); err != nil {
		return Saved{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	originalPath := filepath.Join(dir, fileName)
	if err := imaging.Save(img, originalPath, imaging.JPEGQuality(90)); err != nil {
		return Saved{}, fmt.Errorf("failed to save original image: %w", err)
	}
	thumb := imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(thumbDir, fileName)); err != nil {
		_ = os.Remove(originalPath)
		return Saved{}, fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return Saved{
		URL:      path.Join(m.URLPrefix, string(entity), fileName),
		ThumbURL: path.Join(m.URLPrefix, string(entity), "thumb", fileName),
		Path:     originalPath,
	}, nil
}

// Remove deletes a stored image and its thumbnail by URL.
func (m *Manager) Remove(url string) {
	if url == "" {
		return
	}
	rel, err := filepath.Rel(m.URLPrefix, url)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	full := filepath.Join(m.Root, rel)
	thumb := filepath.Join(filepath.Dir(full), "thumb", filepath.Base(full))
	for _, p := range []string{full, thumb} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[filemgr] remove %s: %v", p, err)
		}
	}
}

// Upload parses a multipart form and stores the optional file under field.
// The next handler reads the result with FromContext. Other bodies pass
// through untouched.
func (m *Manager) Upload(entity EntityType, field string) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			if !isMultipart(r) {
				next(w, r, ps)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+(1<<20))
			if err := r.ParseMultipartForm(MaxImageSize); err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form")
				return
			}
			fh := firstFile(r.MultipartForm, field)
			if fh == nil {
				next(w, r, ps)
				return
			}
			saved, err := m.SaveImage(entity, fh)
			if err != nil {
				log.Printf("[filemgr] upload rejected: %v", err)
				switch {
				case errors.Is(err, ErrFileTooLarge):
					utils.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
				case errors.Is(err, ErrInvalidMIME), errors.Is(err, ErrDecode):
					utils.RespondWithError(w, http.StatusBadRequest, err.Error())
				default:
					utils.RespondWithError(w, http.StatusInternalServerError, "Failed to store image")
				}
				return
			}
			ctx := context.WithValue(r.Context(), globals.UploadKey, &saved)
			next(w, r.WithContext(ctx), ps)
		}
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

// FromContext returns the image stored by Upload, if any.
func FromContext(ctx context.Context) (*Saved, bool) {
	s, ok := ctx.Value(globals.UploadKey).(*Saved)
	return s, ok && s != nil
}
