package filemgr

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_\-]`)

func ensureSafeFilename(name, ext string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeChars.ReplaceAllString(name, "") + ext
}

// sniffMIME detects the content type from the leading bytes.
func sniffMIME(head []byte) string {
	mime := http.DetectContentType(head)
	if mime == "application/octet-stream" && len(head) >= 12 &&
		string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP" {
		return "image/webp"
	}
	return mime
}

func isMIMEAllowed(mimeType string) bool {
	for _, a := range AllowedMIMEs {
		if mimeType == a {
			return true
		}
	}
	return false
}

func ensureDirExists(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
